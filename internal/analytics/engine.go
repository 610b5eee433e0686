package analytics

import (
	"math"
	"time"

	"go.uber.org/zap"

	engineerrors "github.com/flowmetrics/hfsignal/internal/common/errors"
)

// EngineConfig carries the tunables of the Configuration enumeration
// (spec.md §6.2) that are not bound to a single call.
type EngineConfig struct {
	WindowSize       int
	MicroBarMs       int
	ATRPeriod        int
	LevelQuantum     int
	RetentionSeconds int
	IcebergCoeffs    IcebergCoeffs
	TRPCoeffs        TRPCoeffs
	SignalWeights    SignalWeights
}

// DefaultEngineConfig returns the reference implementation's defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		WindowSize:       100,
		MicroBarMs:       500,
		ATRPeriod:        atrPeriod,
		LevelQuantum:     defaultLevelQuantum,
		RetentionSeconds: int(defaultRetention / time.Second),
		IcebergCoeffs:    DefaultIcebergCoeffs(),
		TRPCoeffs:        DefaultTRPCoeffs(),
		SignalWeights:    DefaultSignalWeights(),
	}
}

// Engine is the single-writer, single-owner per-symbol analytics pipeline
// (spec.md §4, §5). All mutating and query methods are expected to be
// called serially with respect to engine state; the caller is responsible
// for the serialization point described in spec.md §5.
type Engine struct {
	symbol string
	state  *rollingState
	levels *levelIndex
	cfg    EngineConfig
	log    *zap.Logger
}

// NewEngine creates an Engine for one symbol.
func NewEngine(symbol string, cfg EngineConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		symbol: symbol,
		state:  newRollingState(),
		levels: newLevelIndex(cfg.LevelQuantum, time.Duration(cfg.RetentionSeconds)*time.Second),
		cfg:    cfg,
		log:    log,
	}
}

// Symbol returns the symbol this engine tracks.
func (e *Engine) Symbol() string { return e.symbol }

// AddTrade ingests a trade. Never fails on numeric degeneracy (spec.md §4.1).
func (e *Engine) AddTrade(t Trade) {
	e.state.addTrade(t)
	e.levels.recordTrade(t)
}

// AddBook ingests an order book snapshot.
func (e *Engine) AddBook(b OrderBook) {
	book := b
	e.state.addBook(&book)
	e.levels.recordBook(&book)
}

// AddCandle ingests a candle for ATR purposes only.
func (e *Engine) AddCandle(c Candle) {
	e.state.addCandle(c)
}

// UpdateWeights validates and applies new signal weights. Rejects negative
// weights or non-finite values at the boundary, leaving prior configuration
// untouched (spec.md §7, Configuration-invalid policy). Applying the same
// weights twice has identical effect to applying once.
func (e *Engine) UpdateWeights(w SignalWeights) error {
	if err := validateWeights(w); err != nil {
		e.log.Warn("rejected signal weight update",
			zap.String("symbol", e.symbol),
			zap.Error(err))
		return err
	}
	e.cfg.SignalWeights = w
	return nil
}

// UpdateCoefficients validates and applies new iceberg/TRP coefficients.
func (e *Engine) UpdateCoefficients(iceberg IcebergCoeffs, trp TRPCoeffs) error {
	if err := validateCoeffs(iceberg, trp); err != nil {
		e.log.Warn("rejected coefficient update",
			zap.String("symbol", e.symbol),
			zap.Error(err))
		return err
	}
	e.cfg.IcebergCoeffs = iceberg
	e.cfg.TRPCoeffs = trp
	return nil
}

func validateWeights(w SignalWeights) error {
	values := []float64{
		w.DeltaWeight, w.AbsorptionWeight, w.IcebergWeight,
		w.OFMBIWeight, w.StructureWeight, w.SpreadPenaltyWeight,
	}
	for _, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return engineerrors.New(engineerrors.ErrConfigInvalid, "signal weights must be non-negative and finite")
		}
	}
	return nil
}

func validateCoeffs(iceberg IcebergCoeffs, trp TRPCoeffs) error {
	values := []float64{iceberg.A0, iceberg.A1, iceberg.A2, iceberg.A3, trp.B0, trp.B1, trp.Lambda}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return engineerrors.New(engineerrors.ErrConfigInvalid, "coefficients must be finite")
		}
	}
	return nil
}

// DeltaMetrics exposes the delta/imbalance family over the given window, or
// the engine's configured default window (micro_bar_ms) when windowMs < 0.
func (e *Engine) DeltaMetrics(now time.Time, windowMs int) DeltaMetrics {
	return calculateDelta(e.state, now, e.resolveWindow(windowMs))
}

func (e *Engine) AbsorptionMetrics() AbsorptionMetrics {
	return calculateAbsorption(e.state, e.levels)
}

func (e *Engine) IcebergMetrics() IcebergMetrics {
	return calculateIceberg(e.levels, e.cfg.IcebergCoeffs, e.state.latestBook())
}

func (e *Engine) MomentumMetrics(now time.Time, windowMs int) MomentumMetrics {
	return calculateMomentum(e.state, now, e.resolveWindow(windowMs))
}

func (e *Engine) StructureMetrics(now time.Time) StructureMetrics {
	return calculateStructure(e.state, now, e.cfg.MicroBarMs, e.cfg.TRPCoeffs)
}

func (e *Engine) LiquidityMetrics() LiquidityMetrics {
	return calculateLiquidity(e.state)
}

// resolveWindow treats a negative windowMs as "use the configured default
// (micro_bar_ms)"; an explicit 0 is a real zero-length window (spec.md §8:
// querying delta with a window of 0ms must return an empty-window result).
func (e *Engine) resolveWindow(windowMs int) int {
	if windowMs < 0 {
		return e.cfg.MicroBarMs
	}
	return windowMs
}

// AllMetrics is a point-in-time snapshot of every metric family. Two calls
// in a row with no intervening mutation return equal outputs (spec.md §5,
// §8).
type AllMetrics struct {
	Delta      DeltaMetrics
	Absorption AbsorptionMetrics
	Iceberg    IcebergMetrics
	Momentum   MomentumMetrics
	Structure  StructureMetrics
	Liquidity  LiquidityMetrics
}

func (e *Engine) AllMetrics(now time.Time) AllMetrics {
	return AllMetrics{
		Delta:      e.DeltaMetrics(now, -1),
		Absorption: e.AbsorptionMetrics(),
		Iceberg:    e.IcebergMetrics(),
		Momentum:   e.MomentumMetrics(now, -1),
		Structure:  e.StructureMetrics(now),
		Liquidity:  e.LiquidityMetrics(),
	}
}

// GenerateSignal composes the current state into a TradingSignal. Pure with
// respect to engine state: repeated calls with no intervening mutation
// return equal outputs (spec.md §5, §8).
func (e *Engine) GenerateSignal(now time.Time) TradingSignal {
	delta := e.DeltaMetrics(now, -1)
	absorption := e.AbsorptionMetrics()
	iceberg := e.IcebergMetrics()
	momentum := e.MomentumMetrics(now, -1)
	structure := e.StructureMetrics(now)

	var currentSpread float64
	if book := e.state.latestBook(); book != nil {
		currentSpread = book.Spread()
	}

	var priceAtSignal float64
	if e.state.prices.len() > 0 {
		priceAtSignal = e.state.prices.last()
	}

	return composeSignal(
		e.symbol, now,
		delta, absorption, iceberg, momentum, structure,
		e.cfg.SignalWeights,
		currentSpread, e.state.medianSpread, e.state.currentATR(), e.state.medianATR,
		priceAtSignal,
	)
}
