package analytics

import (
	"sync"
	"time"

	"go.uber.org/zap"

	engineerrors "github.com/flowmetrics/hfsignal/internal/common/errors"
)

// Observer receives call-level instrumentation from the Manager without the
// analytics package importing a metrics backend directly (spec.md §9,
// "Global engine state"). internal/metrics.Collector implements this.
type Observer interface {
	ObserveIngest(symbol, kind string, d time.Duration)
	ObserveSignal(symbol string, d time.Duration)
	IncActiveSymbols(delta int)
}

type noopObserver struct{}

func (noopObserver) ObserveIngest(string, string, time.Duration) {}
func (noopObserver) ObserveSignal(string, time.Duration)         {}
func (noopObserver) IncActiveSymbols(int)                        {}

// Manager is the process-wide facade: a map from symbol to Engine,
// instantiated once per symbol, created at first subscription and
// destroyed on explicit disconnect or process shutdown (spec.md §9).
type Manager struct {
	mu       sync.RWMutex
	engines  map[string]*Engine
	cfg      EngineConfig
	log      *zap.Logger
	observer Observer
}

// NewManager creates an empty Manager sharing cfg as the default
// configuration for engines created on demand.
func NewManager(cfg EngineConfig, log *zap.Logger, observer Observer) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Manager{
		engines:  make(map[string]*Engine),
		cfg:      cfg,
		log:      log,
		observer: observer,
	}
}

// Engine returns the engine for symbol, creating it on first use.
func (m *Manager) Engine(symbol string) *Engine {
	m.mu.RLock()
	e, ok := m.engines[symbol]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.engines[symbol]; ok {
		return e
	}
	e = NewEngine(symbol, m.cfg, m.log.With(zap.String("symbol", symbol)))
	m.engines[symbol] = e
	m.observer.IncActiveSymbols(1)
	m.log.Info("engine created", zap.String("symbol", symbol))
	return e
}

// Disconnect tears down the engine for symbol, if any.
func (m *Manager) Disconnect(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.engines[symbol]; ok {
		delete(m.engines, symbol)
		m.observer.IncActiveSymbols(-1)
		m.log.Info("engine disconnected", zap.String("symbol", symbol))
	}
}

// Symbols lists the currently active symbols.
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.engines))
	for s := range m.engines {
		out = append(out, s)
	}
	return out
}

// AddTrade routes a trade to its symbol's engine, instrumenting call
// latency via the Observer.
func (m *Manager) AddTrade(t Trade) {
	start := time.Now()
	m.Engine(t.Symbol).AddTrade(t)
	m.observer.ObserveIngest(t.Symbol, "trade", time.Since(start))
}

// AddBook routes a book snapshot to its symbol's engine.
func (m *Manager) AddBook(b OrderBook) {
	start := time.Now()
	m.Engine(b.Symbol).AddBook(b)
	m.observer.ObserveIngest(b.Symbol, "book", time.Since(start))
}

// AddCandle routes a candle to symbol's engine.
func (m *Manager) AddCandle(symbol string, c Candle) {
	start := time.Now()
	m.Engine(symbol).AddCandle(c)
	m.observer.ObserveIngest(symbol, "candle", time.Since(start))
}

// GenerateSignal produces a signal for an existing symbol, or a
// SymbolNotFound error if the engine was never created.
func (m *Manager) GenerateSignal(symbol string, now time.Time) (TradingSignal, error) {
	m.mu.RLock()
	e, ok := m.engines[symbol]
	m.mu.RUnlock()
	if !ok {
		return TradingSignal{}, engineerrors.New(engineerrors.ErrSymbolNotFound, "no engine tracking symbol").WithDetail("symbol", symbol)
	}
	start := time.Now()
	sig := e.GenerateSignal(now)
	m.observer.ObserveSignal(symbol, time.Since(start))
	return sig, nil
}

// UpdateWeights applies new weights to every active engine, so a global
// configuration change takes effect uniformly.
func (m *Manager) UpdateWeights(w SignalWeights) error {
	if err := validateWeights(w); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.SignalWeights = w
	for _, e := range m.engines {
		_ = e.UpdateWeights(w)
	}
	return nil
}
