// Package analytics implements the per-symbol order-flow analytics engine:
// rolling windows over trades/books/candles, price-level hit and depth
// statistics, six families of derived metrics, and a composite
// high-frequency signal score (HFSS) with a three-way trade decision.
package analytics

import "time"

// epsilon is added to every denominator in the metrics path so that no
// division ever occurs against an exact zero.
const epsilon = 1e-10

// Trade is an immutable, exchange-agnostic print.
type Trade struct {
	Symbol     string
	Price      float64
	Quantity   float64
	Timestamp  time.Time
	BuyerMaker bool // true: the taker was a seller (sell aggressor)
	TradeID    string
}

// OrderBookLevel is a single price/size entry in an order book side.
type OrderBookLevel struct {
	Price      float64
	Quantity   float64
	OrderCount int
}

// OrderBook is a point-in-time snapshot of both sides of a book. Bids must
// be sorted strictly descending by price, asks strictly ascending; the
// engine trusts this ordering and derives BestBid/BestAsk/Spread/Mid from
// the first element of each side.
type OrderBook struct {
	Symbol    string
	Timestamp time.Time
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
}

func (b *OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

func (b *OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

func (b *OrderBook) Spread() float64 {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0
	}
	return b.BestAsk() - b.BestBid()
}

func (b *OrderBook) Mid() float64 {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0
	}
	return (b.BestAsk() + b.BestBid()) / 2
}

// Candle carries only the fields the ATR series needs.
type Candle struct {
	High  float64
	Low   float64
	Close float64
}

// DeltaMetrics is the delta/imbalance family (spec.md §4.3).
type DeltaMetrics struct {
	RawDelta         float64
	NormalizedDelta  float64
	DepthAwareDelta  float64
	CumulativeDelta  float64
}

// AbsorptionLevel is a single reported absorption level (spec.md §4.4).
type AbsorptionLevel struct {
	Price     float64
	Side      string // "bid" or "ask"
	Score     float64
	Strength  float64
	VolumeHit float64
}

// AbsorptionMetrics is the absorption family.
type AbsorptionMetrics struct {
	Score           float64
	Strength        float64
	BidAbsorption   float64
	AskAbsorption   float64
	AbsorptionLevels []AbsorptionLevel
}

// IcebergLevel is a single reported iceberg level (spec.md §4.5).
type IcebergLevel struct {
	Price           float64
	Side            string
	Probability     float64
	FDR             float64
	EstimatedHidden float64
}

// IcebergMetrics is the iceberg family.
type IcebergMetrics struct {
	MaxProbability      float64
	FillToDisplayRatio  float64
	RefillIntensity     float64
	PersistenceScore    float64
	DetectedLevels      []IcebergLevel
}

// MomentumMetrics is the order-flow momentum burst index family
// (spec.md §4.6).
type MomentumMetrics struct {
	OFMBI              float64
	OFMBIVolNormalized float64
	TapeSpeed          float64
	VolumeVelocity     float64
}

// MarketRegime classifies recent price behavior (spec.md §4.7).
type MarketRegime string

const (
	RegimeTrend      MarketRegime = "trend"
	RegimeRange      MarketRegime = "range"
	RegimeSpike      MarketRegime = "spike"
	RegimeMeanRevert MarketRegime = "mean_revert"
)

// TrendDirection is the swing-based directional read.
type TrendDirection string

const (
	TrendUp      TrendDirection = "up"
	TrendDown    TrendDirection = "down"
	TrendNeutral TrendDirection = "neutral"
)

// StructureMetrics is the market-structure/regime family.
type StructureMetrics struct {
	Regime                        MarketRegime
	TrendDirection                TrendDirection
	SwingHighs                    []float64
	SwingLows                     []float64
	SupportLevels                 []float64
	ResistanceLevels              []float64
	BOSDetected                   bool
	CHOCHDetected                 bool
	TrendlineRejectionProbability float64
}

// LiquidityZone is a price level with outsized displayed size.
type LiquidityZone struct {
	Price    float64
	Quantity float64
	Side     string
}

// VolumeProfileBucket is one bucket of the binned volume profile.
type VolumeProfileBucket struct {
	Price  float64
	Volume float64
}

// LiquidityMetrics is the liquidity/VWAP family.
type LiquidityMetrics struct {
	LiquidityZones []LiquidityZone
	VolumeProfile  []VolumeProfileBucket
	VWAP           float64
	PremiumZone    bool
	DiscountZone   bool
}

// SignalType is the composer's categorical decision.
type SignalType string

const (
	SignalBuy     SignalType = "buy"
	SignalSell    SignalType = "sell"
	SignalNoTrade SignalType = "no_trade"
)

// SignalBreakdown is the per-component contribution to HFSS.
type SignalBreakdown struct {
	DeltaContribution      float64
	AbsorptionContribution float64
	IcebergContribution    float64
	MomentumContribution   float64
	StructureContribution  float64
	SpreadPenalty          float64
}

// TradingSignal is the composite output of the pipeline.
type TradingSignal struct {
	Symbol             string
	Timestamp          time.Time
	Type               SignalType
	HFSS               float64
	ProbabilityBuy     float64
	ProbabilitySell    float64
	ProbabilityNoTrade float64
	Confidence         float64
	Breakdown          SignalBreakdown
	Reason             string
	PriceAtSignal      float64
}

// SignalWeights are the six non-negative composition weights (spec.md §3).
type SignalWeights struct {
	DeltaWeight         float64
	AbsorptionWeight    float64
	IcebergWeight       float64
	OFMBIWeight         float64
	StructureWeight     float64
	SpreadPenaltyWeight float64
}

// DefaultSignalWeights matches the reference implementation's defaults.
func DefaultSignalWeights() SignalWeights {
	return SignalWeights{
		DeltaWeight:         0.25,
		AbsorptionWeight:    0.20,
		IcebergWeight:       0.15,
		OFMBIWeight:         0.20,
		StructureWeight:     0.10,
		SpreadPenaltyWeight: 0.10,
	}
}

// IcebergCoeffs are the logistic-model coefficients for iceberg detection.
type IcebergCoeffs struct {
	A0, A1, A2, A3 float64
}

// DefaultIcebergCoeffs matches the reference implementation.
func DefaultIcebergCoeffs() IcebergCoeffs {
	return IcebergCoeffs{A0: -2.0, A1: 1.5, A2: 1.0, A3: 0.5}
}

// TRPCoeffs are the trendline-rejection-probability coefficients.
type TRPCoeffs struct {
	B0, B1, Lambda float64
}

// DefaultTRPCoeffs matches the reference implementation.
func DefaultTRPCoeffs() TRPCoeffs {
	return TRPCoeffs{B0: 0.0, B1: 2.0, Lambda: 2.0}
}
