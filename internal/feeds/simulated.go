package feeds

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/flowmetrics/hfsignal/internal/analytics"
)

// SimulatedFeed synthesizes trades and order books for a symbol with no
// external dependency, for local development and deterministic tests
// (spec.md's original data_feeds module offered an equivalent simulated
// source alongside the live exchange feed).
type SimulatedFeed struct {
	Seed     int64
	Interval time.Duration

	stop         chan struct{}
	mu           sync.Mutex
	connListener ConnectionListener
}

// NewSimulatedFeed builds a feed that emits one trade+book pair per Interval
// (default 100ms) using a deterministic PRNG seeded by Seed.
func NewSimulatedFeed(seed int64, interval time.Duration) *SimulatedFeed {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &SimulatedFeed{Seed: seed, Interval: interval, stop: make(chan struct{})}
}

// Name implements Feed.
func (f *SimulatedFeed) Name() string { return "simulated" }

// SetConnectionListener implements Feed.
func (f *SimulatedFeed) SetConnectionListener(l ConnectionListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connListener = l
}

func (f *SimulatedFeed) notifyConnection(symbol string, connected bool) {
	f.mu.Lock()
	l := f.connListener
	f.mu.Unlock()
	if l != nil {
		l(symbol, connected)
	}
}

// Run generates data for every symbol on its own goroutine until ctx is
// cancelled or Stop is called.
func (f *SimulatedFeed) Run(ctx context.Context, symbols []string, sink Sink) error {
	done := make(chan struct{}, len(symbols))
	for i, symbol := range symbols {
		go f.generate(ctx, symbol, int64(i), sink, done)
	}
	for range symbols {
		<-done
	}
	return ctx.Err()
}

// Stop halts all running generators.
func (f *SimulatedFeed) Stop() error {
	close(f.stop)
	return nil
}

func (f *SimulatedFeed) generate(ctx context.Context, symbol string, offset int64, sink Sink, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	defer f.notifyConnection(symbol, false)

	rng := rand.New(rand.NewSource(f.Seed + offset))
	price := 100.0 + rng.Float64()*10
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()

	f.notifyConnection(symbol, true)

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case now := <-ticker.C:
			price = math.Max(0.01, price+(rng.Float64()-0.5))
			buyerMaker := rng.Float64() < 0.5
			sink.AddTrade(analytics.Trade{
				Symbol:     symbol,
				Price:      price,
				Quantity:   1 + rng.Float64()*5,
				Timestamp:  now,
				BuyerMaker: buyerMaker,
				TradeID:    fmt.Sprintf("%s-%d", symbol, i),
			})
			sink.AddBook(analytics.OrderBook{
				Symbol:    symbol,
				Timestamp: now,
				Bids:      syntheticLevels(price, -1, rng),
				Asks:      syntheticLevels(price, 1, rng),
			})
		}
	}
}

func syntheticLevels(mid float64, sign float64, rng *rand.Rand) []analytics.OrderBookLevel {
	levels := make([]analytics.OrderBookLevel, 5)
	for i := range levels {
		offset := sign * float64(i+1) * 0.01
		levels[i] = analytics.OrderBookLevel{
			Price:    mid + offset,
			Quantity: 1 + rng.Float64()*10,
		}
	}
	return levels
}
