package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/liquidation_hunter/internal/domain"
	"go.uber.org/zap"
)

const (
	BinanceBaseURL = "https://fapi.binance.com"
	BinanceWSURL   = "wss://fstream.binance.com"

	reconnectDelay = 5 * time.Second
	depthLimit     = 100
)

// BinanceAdapter reads Binance USD-M futures market data: REST for price and
// open interest, websocket forceOrder streams for raw liquidation events.
type BinanceAdapter struct {
	baseURL string
	wsURL   string
	client  *http.Client
	logger  *zap.Logger

	wsConn               *websocket.Conn
	subscribed           []string
	liquidationCallbacks []func(domain.RawLiquidationEvent)
	closed               bool
	mu                   sync.Mutex
}

func NewBinanceAdapter(baseURL, wsURL string, logger *zap.Logger) *BinanceAdapter {
	if baseURL == "" {
		baseURL = BinanceBaseURL
	}
	if wsURL == "" {
		wsURL = BinanceWSURL
	}
	return &BinanceAdapter{
		baseURL: baseURL,
		wsURL:   wsURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// --- REST API ---

func (b *BinanceAdapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("binance api error: %s", string(body))
	}
	return json.Unmarshal(body, out)
}

func (b *BinanceAdapter) GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceSnapshot, error) {
	var result struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
		Time   int64  `json:"time"`
	}
	if err := b.get(ctx, "/fapi/v1/ticker/price?symbol="+symbol, &result); err != nil {
		return nil, err
	}

	price, err := strconv.ParseFloat(result.Price, 64)
	if err != nil || price <= 0 {
		return nil, fmt.Errorf("binance ticker: bad price %q for %s", result.Price, symbol)
	}
	ts := time.Now()
	if result.Time > 0 {
		ts = time.UnixMilli(result.Time)
	}
	return &domain.PriceSnapshot{Symbol: symbol, Price: price, Timestamp: ts}, nil
}

// GetOpenInterest returns aggregate OI in USD, split long/short by the
// order-book depth imbalance (bid volume reads as long bias, ask as short).
func (b *BinanceAdapter) GetOpenInterest(ctx context.Context, symbol string) (*domain.OISnapshot, error) {
	var oiResult struct {
		OpenInterest string `json:"openInterest"`
		Symbol       string `json:"symbol"`
		Time         int64  `json:"time"`
	}
	if err := b.get(ctx, "/fapi/v1/openInterest?symbol="+symbol, &oiResult); err != nil {
		return nil, err
	}
	contracts, err := strconv.ParseFloat(oiResult.OpenInterest, 64)
	if err != nil {
		return nil, fmt.Errorf("binance oi: bad value %q for %s", oiResult.OpenInterest, symbol)
	}

	var depth struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	path := fmt.Sprintf("/fapi/v1/depth?symbol=%s&limit=%d", symbol, depthLimit)
	if err := b.get(ctx, path, &depth); err != nil {
		return nil, err
	}

	bidVolume, bestBid := sideVolume(depth.Bids)
	askVolume, bestAsk := sideVolume(depth.Asks)
	if bestBid <= 0 || bestAsk <= 0 {
		return nil, fmt.Errorf("binance depth: empty book for %s", symbol)
	}
	mid := (bestBid + bestAsk) / 2
	totalUSD := contracts * mid

	longRatio := 0.5
	if total := bidVolume + askVolume; total > 0 {
		longRatio = bidVolume / total
	}

	ts := time.Now()
	if oiResult.Time > 0 {
		ts = time.UnixMilli(oiResult.Time)
	}
	return &domain.OISnapshot{
		Symbol:    symbol,
		TotalOI:   totalUSD,
		LongOI:    totalUSD * longRatio,
		ShortOI:   totalUSD * (1 - longRatio),
		Timestamp: ts,
	}, nil
}

// sideVolume sums notional over one book side and returns the top-of-book price.
func sideVolume(levels [][]string) (volume, best float64) {
	for i, level := range levels {
		if len(level) < 2 {
			continue
		}
		price, _ := strconv.ParseFloat(level[0], 64)
		qty, _ := strconv.ParseFloat(level[1], 64)
		if i == 0 {
			best = price
		}
		volume += price * qty
	}
	return volume, best
}

// --- Liquidation stream ---

func (b *BinanceAdapter) OnLiquidation(callback func(event domain.RawLiquidationEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.liquidationCallbacks = append(b.liquidationCallbacks, callback)
}

// Subscribe opens (or reopens) the combined forceOrder stream for the symbols.
func (b *BinanceAdapter) Subscribe(symbols []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(symbols) > 0 {
		b.subscribed = symbols
	}
	if len(b.subscribed) == 0 {
		return fmt.Errorf("no symbols to subscribe")
	}
	if b.wsConn != nil {
		b.wsConn.Close()
		b.wsConn = nil
	}

	streams := make([]string, len(b.subscribed))
	for i, s := range b.subscribed {
		streams[i] = strings.ToLower(s) + "@forceOrder"
	}
	url := b.wsURL + "/stream?streams=" + strings.Join(streams, "/")

	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return err
	}
	b.wsConn = c
	b.closed = false

	go b.readLoop(c)
	return nil
}

func (b *BinanceAdapter) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.wsConn != nil {
		b.wsConn.Close()
		b.wsConn = nil
	}
}

func (b *BinanceAdapter) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			closed := b.closed
			b.mu.Unlock()
			if closed {
				return
			}
			b.logger.Warn("liquidation stream read error, reconnecting", zap.Error(err))
			time.Sleep(reconnectDelay)
			if err := b.Subscribe(nil); err != nil {
				b.logger.Error("liquidation stream reconnect failed", zap.Error(err))
			}
			return
		}

		ev, ok := parseForceOrder(message)
		if !ok {
			continue
		}

		b.mu.Lock()
		callbacks := b.liquidationCallbacks
		b.mu.Unlock()
		for _, cb := range callbacks {
			cb(ev)
		}
	}
}

// parseForceOrder extracts a liquidation event from a combined-stream
// forceOrder message. BUY orders liquidate longs, SELL orders shorts.
func parseForceOrder(message []byte) (domain.RawLiquidationEvent, bool) {
	var frame struct {
		Stream string `json:"stream"`
		Data   struct {
			EventType string `json:"e"`
			EventTime int64  `json:"E"`
			Order     struct {
				Symbol   string `json:"s"`
				Side     string `json:"S"`
				Price    string `json:"p"`
				Quantity string `json:"q"`
				Time     int64  `json:"T"`
			} `json:"o"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		return domain.RawLiquidationEvent{}, false
	}
	o := frame.Data.Order
	if frame.Data.EventType != "forceOrder" || o.Symbol == "" {
		return domain.RawLiquidationEvent{}, false
	}

	price, _ := strconv.ParseFloat(o.Price, 64)
	qty, _ := strconv.ParseFloat(o.Quantity, 64)
	if price <= 0 || qty <= 0 {
		return domain.RawLiquidationEvent{}, false
	}

	side := domain.SideShort
	if strings.EqualFold(o.Side, "BUY") {
		side = domain.SideLong
	}
	ts := o.Time
	if ts == 0 {
		ts = frame.Data.EventTime
	}

	return domain.RawLiquidationEvent{
		Symbol:    o.Symbol,
		Price:     price,
		Side:      side,
		Notional:  price * qty,
		Timestamp: time.UnixMilli(ts),
	}, true
}
