package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/flowmetrics/hfsignal/internal/analytics"
	engineerrors "github.com/flowmetrics/hfsignal/internal/common/errors"
)

const (
	exchangeInfoEndpoint = "/api/v3/exchangeInfo"
	exchangeInfoCacheKey = "exchangeInfo"
	exchangeInfoTTL      = 10 * time.Minute

	// initialReconnectDelay/maxReconnectDelay implement spec.md §6.1's
	// "exponential backoff (base 1s, cap 60s), reset backoff on a
	// successful connection."
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 60 * time.Second
)

// binanceExchangeInfo is the subset of Binance's /exchangeInfo response this
// feed actually consumes (spec.md's "Exchange-info enumeration" supplement).
type binanceExchangeInfo struct {
	Symbols []struct {
		Symbol string `json:"symbol"`
		Status string `json:"status"`
	} `json:"symbols"`
}

type binanceDepthMessage struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

type binanceTradeMessage struct {
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// BinanceFeed streams trade and partial-depth updates from Binance's public
// WebSocket API and routes them into an analytics Sink.
type BinanceFeed struct {
	baseURL     string
	wsURL       string
	httpClient  *http.Client
	log         *zap.Logger
	breaker     *gobreaker.CircuitBreaker
	symbolCache *gocache.Cache

	mu           sync.Mutex
	conns        []*websocket.Conn
	connListener ConnectionListener
}

// NewBinanceFeed constructs a feed using Binance's production endpoints.
func NewBinanceFeed(log *zap.Logger) *BinanceFeed {
	if log == nil {
		log = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "binance-rest",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
	})
	return &BinanceFeed{
		baseURL:     "https://api.binance.com",
		wsURL:       "wss://stream.binance.com:9443/ws",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
		breaker:     breaker,
		symbolCache: gocache.New(exchangeInfoTTL, 2*exchangeInfoTTL),
	}
}

// Name implements Feed.
func (f *BinanceFeed) Name() string { return "binance" }

// SetConnectionListener implements Feed.
func (f *BinanceFeed) SetConnectionListener(l ConnectionListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connListener = l
}

func (f *BinanceFeed) notifyConnection(symbol string, connected bool) {
	f.mu.Lock()
	l := f.connListener
	f.mu.Unlock()
	if l != nil {
		l(symbol, connected)
	}
}

// Run opens one trade stream and one depth stream per symbol and blocks
// until ctx is cancelled; a stream whose connection fails is redialed with
// backoff rather than abandoned.
func (f *BinanceFeed) Run(ctx context.Context, symbols []string, sink Sink) error {
	if _, err := f.ExchangeInfo(ctx); err != nil {
		f.log.Warn("exchange info unavailable, continuing with raw symbols", zap.Error(err))
	}

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		symbol := symbol
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.streamTrades(ctx, symbol, sink)
		}()
		go func() {
			defer wg.Done()
			f.streamDepth(ctx, symbol, sink)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Stop closes every open connection.
func (f *BinanceFeed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
	return nil
}

// ExchangeInfo fetches (and caches) Binance's symbol enumeration, guarded by
// a circuit breaker since it is a REST dependency on the feed's hot path.
func (f *BinanceFeed) ExchangeInfo(ctx context.Context) ([]string, error) {
	if cached, ok := f.symbolCache.Get(exchangeInfoCacheKey); ok {
		return cached.([]string), nil
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+exchangeInfoEndpoint, nil)
		if err != nil {
			return nil, engineerrors.Wrap(err, engineerrors.ErrUpstreamFatal, "build exchange info request")
		}
		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, engineerrors.Wrap(err, engineerrors.ErrUpstreamTransient, "exchange info request failed")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, engineerrors.Wrap(err, engineerrors.ErrUpstreamTransient, "read exchange info body")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, engineerrors.Newf(engineerrors.ErrUpstreamFatal, "exchange info status %d", resp.StatusCode)
		}

		var info binanceExchangeInfo
		if err := json.Unmarshal(body, &info); err != nil {
			return nil, engineerrors.Wrap(err, engineerrors.ErrUpstreamFatal, "unmarshal exchange info")
		}
		symbols := make([]string, 0, len(info.Symbols))
		for _, s := range info.Symbols {
			if s.Status == "TRADING" {
				symbols = append(symbols, s.Symbol)
			}
		}
		return symbols, nil
	})
	if err != nil {
		return nil, err
	}

	symbols := result.([]string)
	f.symbolCache.Set(exchangeInfoCacheKey, symbols, gocache.DefaultExpiration)
	return symbols, nil
}

func (f *BinanceFeed) streamTrades(ctx context.Context, symbol string, sink Sink) {
	stream := fmt.Sprintf("%s@trade", lowerSymbol(symbol))
	f.runStream(ctx, symbol, stream, func(message []byte) {
		var msg binanceTradeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			f.log.Warn("malformed trade message", zap.Error(err), zap.String("symbol", symbol))
			return
		}
		price, priceErr := strconv.ParseFloat(msg.Price, 64)
		qty, qtyErr := strconv.ParseFloat(msg.Quantity, 64)
		if priceErr != nil || qtyErr != nil {
			f.log.Warn("malformed trade price or quantity", zap.String("symbol", symbol))
			return
		}
		sink.AddTrade(analytics.Trade{
			Symbol:     symbol,
			Price:      price,
			Quantity:   qty,
			Timestamp:  time.UnixMilli(msg.TradeTime),
			BuyerMaker: msg.IsBuyerMaker,
			TradeID:    strconv.FormatInt(msg.TradeID, 10),
		})
	})
}

func (f *BinanceFeed) streamDepth(ctx context.Context, symbol string, sink Sink) {
	stream := fmt.Sprintf("%s@depth20@100ms", lowerSymbol(symbol))
	f.runStream(ctx, symbol, stream, func(message []byte) {
		var msg binanceDepthMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			f.log.Warn("malformed depth message", zap.Error(err), zap.String("symbol", symbol))
			return
		}
		sink.AddBook(analytics.OrderBook{
			Symbol:    symbol,
			Timestamp: time.Now(),
			Bids:      parseLevels(msg.Bids),
			Asks:      parseLevels(msg.Asks),
		})
	})
}

// runStream dials streamName and invokes handle for every message,
// reconnecting with exponential backoff (base 1s, cap 60s, reset on a
// successful connection) until ctx is cancelled, and notifies the
// connection listener on every transition (spec.md §6.1).
func (f *BinanceFeed) runStream(ctx context.Context, symbol, streamName string, handle func([]byte)) {
	delay := initialReconnectDelay
	defer f.notifyConnection(symbol, false)

	for {
		if ctx.Err() != nil {
			return
		}

		url := fmt.Sprintf("%s/%s", f.wsURL, streamName)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			f.log.Warn("websocket dial failed, backing off",
				zap.Error(err), zap.String("stream", streamName), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = nextReconnectDelay(delay)
			continue
		}

		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()

		delay = initialReconnectDelay
		f.notifyConnection(symbol, true)

		f.readLoop(ctx, conn, handle)
		f.notifyConnection(symbol, false)
	}
}

func nextReconnectDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}

func (f *BinanceFeed) readLoop(ctx context.Context, conn *websocket.Conn, handle func([]byte)) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		handle(message)
	}
}

func parseLevels(raw [][]string) []analytics.OrderBookLevel {
	out := make([]analytics.OrderBookLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		price, _ := strconv.ParseFloat(lvl[0], 64)
		qty, _ := strconv.ParseFloat(lvl[1], 64)
		out = append(out, analytics.OrderBookLevel{Price: price, Quantity: qty})
	}
	return out
}

func lowerSymbol(symbol string) string {
	out := make([]byte, len(symbol))
	for i := 0; i < len(symbol); i++ {
		c := symbol[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
