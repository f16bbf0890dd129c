package exchange

// Candle represents a single OHLCV candlestick.
type Candle struct {
	OpenTime    int64   `json:"openTime"`
	Open        float64 `json:"open,string"`
	High        float64 `json:"high,string"`
	Low         float64 `json:"low,string"`
	Close       float64 `json:"close,string"`
	Volume      float64 `json:"volume,string"`
	CloseTime   int64   `json:"closeTime"`
	QuoteVolume float64 `json:"quoteVolume,string"`
}

// FilledOrder is the result of a market entry.
type FilledOrder struct {
	Pair     string  `json:"symbol"`
	OrderID  int64   `json:"orderId"`
	Price    float64 `json:"price,string"`
	Quantity float64 `json:"executedQty,string"`
	Side     string  `json:"side"`
	Status   string  `json:"status"`
}

// Order leg types within a protective exit pair.
const (
	LegStopLoss   = "STOP_LOSS_LIMIT"
	LegTakeProfit = "LIMIT_MAKER"
)

// OpenOrder is one leg of an open protective or limit order.
type OpenOrder struct {
	Pair      string  `json:"symbol"`
	OrderID   int64   `json:"orderId"`
	GroupID   string  `json:"orderListId"`
	Side      string  `json:"side"`
	Type      string  `json:"type"`
	Price     float64 `json:"price,string"`
	StopPrice float64 `json:"stopPrice,string"`
	Quantity  float64 `json:"origQty,string"`
}

// Gateway is the narrow exchange contract the engine consumes. All calls are
// fallible; callers treat failures as a skipped step, not a fatal error.
type Gateway interface {
	GetPrice(pair string) (float64, error)
	GetCandles(pair, interval string, limit int) ([]Candle, error)
	GetOpenOrders() ([]OpenOrder, error)
	GetTotalValueUSDT() (float64, error)
	GetBalance(asset string) (float64, error)
	MarketBuy(pair string, quantity float64) (*FilledOrder, error)
	PlaceProtectiveExitPair(pair string, quantity, takeProfit, stopLoss float64) (string, error)
	CancelOrderGroup(pair, groupID string) error
}
