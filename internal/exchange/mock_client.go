package exchange

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MockClient is a deterministic in-memory Gateway used for dry runs and tests.
// Prices and balances are seeded up front and only change through SetPrice /
// MarketBuy, so test scenarios stay reproducible.
type MockClient struct {
	mu          sync.Mutex
	prices      map[string]float64
	candles     map[string][]Candle
	balances    map[string]float64
	openOrders  []OpenOrder
	nextGroupID int64
	nextOrderID int64
}

// NewMockClient creates a mock gateway with the given seed prices and balances.
func NewMockClient(prices map[string]float64, balances map[string]float64) *MockClient {
	m := &MockClient{
		prices:      make(map[string]float64),
		candles:     make(map[string][]Candle),
		balances:    make(map[string]float64),
		nextGroupID: 1000,
		nextOrderID: 5000,
	}
	for k, v := range prices {
		m.prices[k] = v
	}
	for k, v := range balances {
		m.balances[k] = v
	}
	return m
}

// SetPrice updates the simulated market price for a pair.
func (m *MockClient) SetPrice(pair string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[pair] = price
}

// SetBalance overrides the simulated balance for an asset.
func (m *MockClient) SetBalance(asset string, quantity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[asset] = quantity
}

// SetCandles seeds candle history for a pair and interval.
func (m *MockClient) SetCandles(pair, interval string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[pair+"/"+interval] = candles
}

func (m *MockClient) GetPrice(pair string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[pair]
	if !ok {
		return 0, fmt.Errorf("mock: no price for %s", pair)
	}
	return price, nil
}

func (m *MockClient) GetCandles(pair, interval string, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candles, ok := m.candles[pair+"/"+interval]
	if !ok {
		return nil, fmt.Errorf("mock: no candles for %s %s", pair, interval)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (m *MockClient) GetOpenOrders() ([]OpenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OpenOrder, len(m.openOrders))
	copy(out, m.openOrders)
	return out, nil
}

func (m *MockClient) GetBalance(asset string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[asset], nil
}

func (m *MockClient) GetTotalValueUSDT() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0.0
	for asset, qty := range m.balances {
		if qty <= 0 {
			continue
		}
		if asset == "USDT" {
			total += qty
			continue
		}
		if price, ok := m.prices[asset+"USDT"]; ok {
			total += qty * price
		}
	}
	return total, nil
}

func (m *MockClient) MarketBuy(pair string, quantity float64) (*FilledOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[pair]
	if !ok {
		return nil, fmt.Errorf("mock: no price for %s", pair)
	}

	cost := quantity * price
	if m.balances["USDT"] < cost {
		return nil, fmt.Errorf("mock: insufficient USDT balance for %s buy", pair)
	}

	m.balances["USDT"] -= cost
	base := baseAsset(pair)
	m.balances[base] += quantity

	m.nextOrderID++
	return &FilledOrder{
		Pair:     pair,
		OrderID:  m.nextOrderID,
		Price:    price,
		Quantity: quantity,
		Side:     "BUY",
		Status:   "FILLED",
	}, nil
}

func (m *MockClient) PlaceProtectiveExitPair(pair string, quantity, takeProfit, stopLoss float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextGroupID++
	groupID := strconv.FormatInt(m.nextGroupID, 10)

	m.nextOrderID++
	m.openOrders = append(m.openOrders, OpenOrder{
		Pair:      pair,
		OrderID:   m.nextOrderID,
		GroupID:   groupID,
		Side:      "SELL",
		Type:      LegStopLoss,
		Price:     stopLoss,
		StopPrice: stopLoss,
		Quantity:  quantity,
	})
	m.nextOrderID++
	m.openOrders = append(m.openOrders, OpenOrder{
		Pair:     pair,
		OrderID:  m.nextOrderID,
		GroupID:  groupID,
		Side:     "SELL",
		Type:     LegTakeProfit,
		Price:    takeProfit,
		Quantity: quantity,
	})

	return groupID, nil
}

func (m *MockClient) CancelOrderGroup(pair, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.openOrders[:0]
	found := false
	for _, o := range m.openOrders {
		if o.GroupID == groupID && o.Pair == pair {
			found = true
			continue
		}
		kept = append(kept, o)
	}
	m.openOrders = kept

	if !found {
		return fmt.Errorf("mock: order group %s not found for %s", groupID, pair)
	}
	return nil
}

// baseAsset strips the USDT quote suffix from a pair symbol.
func baseAsset(pair string) string {
	if len(pair) > 4 && pair[len(pair)-4:] == "USDT" {
		return pair[:len(pair)-4]
	}
	return pair
}

// SeedCandles builds a flat candle series ending at the given close price,
// useful for seeding mock history in tests.
func SeedCandles(n int, close float64) []Candle {
	now := time.Now().UnixMilli()
	candles := make([]Candle, n)
	for i := range candles {
		candles[i] = Candle{
			OpenTime:    now - int64(n-i)*60_000,
			Open:        close,
			High:        close * 1.001,
			Low:         close * 0.999,
			Close:       close,
			Volume:      10,
			CloseTime:   now - int64(n-i-1)*60_000,
			QuoteVolume: 10 * close,
		}
	}
	return candles
}
