package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is the Binance spot REST binding.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new exchange client.
func NewClient(apiKey, secretKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetPrice fetches the current price for a pair.
func (c *Client) GetPrice(pair string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, pair)

	body, err := c.get(endpoint)
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return priceResp.Price, nil
}

// GetCandles fetches candlestick data, oldest first.
func (c *Client) GetCandles(pair, interval string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

	body, err := c.get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("error fetching candles: %w", err)
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing candles: %w", err)
	}

	candles := make([]Candle, len(raw))
	for i, r := range raw {
		if len(r) < 8 {
			return nil, fmt.Errorf("short candle row at index %d", i)
		}
		candles[i] = Candle{
			OpenTime:    int64(asFloat(r[0])),
			Open:        asFloat(r[1]),
			High:        asFloat(r[2]),
			Low:         asFloat(r[3]),
			Close:       asFloat(r[4]),
			Volume:      asFloat(r[5]),
			CloseTime:   int64(asFloat(r[6])),
			QuoteVolume: asFloat(r[7]),
		}
	}

	return candles, nil
}

// GetOpenOrders fetches all open orders on the account.
func (c *Client) GetOpenOrders() ([]OpenOrder, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("signature", c.sign(values))

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/v3/openOrders", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching open orders: %w", err)
	}

	var rows []struct {
		Symbol      string  `json:"symbol"`
		OrderID     int64   `json:"orderId"`
		OrderListID int64   `json:"orderListId"`
		Side        string  `json:"side"`
		Type        string  `json:"type"`
		Price       float64 `json:"price,string"`
		StopPrice   float64 `json:"stopPrice,string"`
		OrigQty     float64 `json:"origQty,string"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("error parsing open orders: %w", err)
	}

	orders := make([]OpenOrder, len(rows))
	for i, r := range rows {
		orders[i] = OpenOrder{
			Pair:      r.Symbol,
			OrderID:   r.OrderID,
			GroupID:   strconv.FormatInt(r.OrderListID, 10),
			Side:      r.Side,
			Type:      r.Type,
			Price:     r.Price,
			StopPrice: r.StopPrice,
			Quantity:  r.OrigQty,
		}
	}

	return orders, nil
}

// accountSnapshot is the authenticated account endpoint payload.
type accountSnapshot struct {
	Balances []struct {
		Asset  string  `json:"asset"`
		Free   float64 `json:"free,string"`
		Locked float64 `json:"locked,string"`
	} `json:"balances"`
}

func (c *Client) getAccount() (*accountSnapshot, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("signature", c.sign(values))

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/v3/account", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching account: %w", err)
	}

	var acct accountSnapshot
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, fmt.Errorf("error parsing account: %w", err)
	}
	return &acct, nil
}

// GetBalance returns the total (free + locked) balance of a single asset.
func (c *Client) GetBalance(asset string) (float64, error) {
	acct, err := c.getAccount()
	if err != nil {
		return 0, err
	}
	for _, b := range acct.Balances {
		if b.Asset == asset {
			return b.Free + b.Locked, nil
		}
	}
	return 0, nil
}

// GetTotalValueUSDT values every non-dust asset on the account in USDT.
func (c *Client) GetTotalValueUSDT() (float64, error) {
	acct, err := c.getAccount()
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, b := range acct.Balances {
		qty := b.Free + b.Locked
		if qty <= 0 {
			continue
		}
		if b.Asset == "USDT" {
			total += qty
			continue
		}
		price, err := c.GetPrice(b.Asset + "USDT")
		if err != nil {
			// No USDT market for this asset; skip it rather than fail the snapshot.
			continue
		}
		total += qty * price
	}

	return total, nil
}

// MarketBuy submits a market buy for the given base quantity.
func (c *Client) MarketBuy(pair string, quantity float64) (*FilledOrder, error) {
	params := map[string]string{
		"symbol":    pair,
		"side":      "BUY",
		"type":      "MARKET",
		"quantity":  strconv.FormatFloat(quantity, 'f', 8, 64),
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("signature", c.sign(values))

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/api/v3/order", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("error placing market buy: %w", err)
	}

	var resp struct {
		Symbol              string  `json:"symbol"`
		OrderID             int64   `json:"orderId"`
		ExecutedQty         float64 `json:"executedQty,string"`
		CummulativeQuoteQty float64 `json:"cummulativeQuoteQty,string"`
		Status              string  `json:"status"`
		Side                string  `json:"side"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}

	fill := &FilledOrder{
		Pair:     resp.Symbol,
		OrderID:  resp.OrderID,
		Quantity: resp.ExecutedQty,
		Side:     resp.Side,
		Status:   resp.Status,
	}
	if resp.ExecutedQty > 0 {
		fill.Price = resp.CummulativeQuoteQty / resp.ExecutedQty
	}

	return fill, nil
}

// PlaceProtectiveExitPair places a linked take-profit/stop-loss (OCO) sell pair
// and returns the order-group id.
func (c *Client) PlaceProtectiveExitPair(pair string, quantity, takeProfit, stopLoss float64) (string, error) {
	params := map[string]string{
		"symbol":               pair,
		"side":                 "SELL",
		"quantity":             strconv.FormatFloat(quantity, 'f', 8, 64),
		"price":                strconv.FormatFloat(takeProfit, 'f', 8, 64),
		"stopPrice":            strconv.FormatFloat(stopLoss, 'f', 8, 64),
		"stopLimitPrice":       strconv.FormatFloat(stopLoss, 'f', 8, 64),
		"stopLimitTimeInForce": "GTC",
		"timestamp":            strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("signature", c.sign(values))

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/api/v3/order/oco", c.baseURL), nil)
	if err != nil {
		return "", err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("error placing exit pair: %w", err)
	}

	var resp struct {
		OrderListID int64 `json:"orderListId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("error parsing exit pair response: %w", err)
	}

	return strconv.FormatInt(resp.OrderListID, 10), nil
}

// CancelOrderGroup cancels an open OCO order group.
func (c *Client) CancelOrderGroup(pair, groupID string) error {
	params := map[string]string{
		"symbol":      pair,
		"orderListId": groupID,
		"timestamp":   strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("signature", c.sign(values))

	req, err := http.NewRequest("DELETE", fmt.Sprintf("%s/api/v3/orderList", c.baseURL), nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("error canceling order group: %w", err)
	}
	return nil
}

func (c *Client) get(endpoint string) ([]byte, error) {
	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

// sign computes the request signature over the exact encoded query that will
// be sent; the exchange rejects signatures over a differently ordered string.
func (c *Client) sign(values url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(values.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

func asFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
