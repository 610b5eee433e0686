package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComposeSignalPureMomentumBurstBuys(t *testing.T) {
	now := time.Now()
	momentum := MomentumMetrics{OFMBI: 5000}
	sig := composeSignal(
		"BTCUSDT", now,
		DeltaMetrics{}, AbsorptionMetrics{}, IcebergMetrics{}, momentum, StructureMetrics{},
		DefaultSignalWeights(),
		0, 0, 0, 0, 100,
	)
	assert.Equal(t, SignalBuy, sig.Type)
	assert.InDelta(t, 1.0, sig.ProbabilityBuy+sig.ProbabilitySell+sig.ProbabilityNoTrade, 1e-9)
}

// TestComposeSignalSpreadPenaltyDominatesToNoTrade exercises spec.md §4.8's
// spread-penalty term alone: with every other family neutral, a maxed-out
// penalty depresses HFSS just enough that no side clears the decision
// threshold.
func TestComposeSignalSpreadPenaltyDominatesToNoTrade(t *testing.T) {
	now := time.Now()
	sig := composeSignal(
		"BTCUSDT", now,
		DeltaMetrics{}, AbsorptionMetrics{}, IcebergMetrics{}, MomentumMetrics{}, StructureMetrics{},
		DefaultSignalWeights(),
		10, 1, 1, 1, 100,
	)
	assert.Equal(t, SignalNoTrade, sig.Type)
	assert.InDelta(t, -DefaultSignalWeights().SpreadPenaltyWeight, sig.HFSS, 1e-9)
}

func TestComposeSignalProbabilitiesSumToOne(t *testing.T) {
	now := time.Now()
	delta := DeltaMetrics{NormalizedDelta: 0.7}
	absorption := AbsorptionMetrics{BidAbsorption: 0.6, AskAbsorption: 0.1}
	iceberg := IcebergMetrics{MaxProbability: 0.8}
	momentum := MomentumMetrics{OFMBI: -20}
	structure := StructureMetrics{TrendDirection: TrendDown, BOSDetected: true}

	sig := composeSignal(
		"BTCUSDT", now,
		delta, absorption, iceberg, momentum, structure,
		DefaultSignalWeights(),
		2, 1, 1, 1, 100,
	)
	assert.InDelta(t, 1.0, sig.ProbabilityBuy+sig.ProbabilitySell+sig.ProbabilityNoTrade, 1e-9)
}

// TestSoftmax3Monotonic asserts buy probability is strictly increasing in x,
// the quantified monotonicity invariant of spec.md §4.9.
func TestSoftmax3Monotonic(t *testing.T) {
	prev := -1.0
	for _, x := range []float64{-2, -1, 0, 1, 2, 3} {
		pBuy, _, _ := softmax3(x)
		assert.Greater(t, pBuy, prev)
		prev = pBuy
	}
}
