// Package feeds adapts external market-data sources into the analytics
// engine's ingestion calls (spec.md §6.1, "Feed abstraction").
package feeds

import (
	"context"

	"github.com/flowmetrics/hfsignal/internal/analytics"
)

// Sink is the subset of *analytics.Manager a Feed needs to push data into.
type Sink interface {
	AddTrade(t analytics.Trade)
	AddBook(b analytics.OrderBook)
	AddCandle(symbol string, c analytics.Candle)
}

// ConnectionListener is notified on every connection state transition a Feed
// makes for a symbol: true when a stream successfully connects, false when
// it disconnects or the feed stops for that symbol (spec.md §5, §6.1, §9).
// A failed reconnect attempt is not itself reported.
type ConnectionListener func(symbol string, connected bool)

// Feed is a market-data source that can be started for a set of symbols and
// stopped on shutdown or a connect/disconnect operational request.
type Feed interface {
	Name() string
	Run(ctx context.Context, symbols []string, sink Sink) error
	Stop() error
	// SetConnectionListener registers the callback invoked on every
	// connect/disconnect transition. Must be called before Run.
	SetConnectionListener(l ConnectionListener)
}
