package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	hfssScale           = 3.0
	decisionThreshold   = 0.45
	reasonDeltaThreshold    = 0.3
	reasonAbsorptionThreshold = 0.3
	reasonIcebergThreshold    = 0.5
	reasonOFMBIThreshold      = 10.0
)

// composeSignal implements the Composer of spec.md §4.9: per-family
// normalization, weighted combination into HFSS, softmax decision, and a
// human-readable reason string.
func composeSignal(
	symbol string,
	now time.Time,
	delta DeltaMetrics,
	absorption AbsorptionMetrics,
	iceberg IcebergMetrics,
	momentum MomentumMetrics,
	structure StructureMetrics,
	weights SignalWeights,
	currentSpread, medianSpread, atr, medianATR, priceAtSignal float64,
) TradingSignal {
	deltaContribution := clip(delta.NormalizedDelta, -1, 1)
	absorptionContribution := clip(absorption.BidAbsorption-absorption.AskAbsorption, -1, 1)
	icebergContribution := 0.5 * iceberg.MaxProbability
	momentumContribution := clip(momentum.OFMBI/100, -1, 1)

	structureFactor := structureContribution(structure)

	spreadPenalty := spreadPenalty(currentSpread, medianSpread, atr, medianATR)

	hfss := weights.DeltaWeight*deltaContribution +
		weights.AbsorptionWeight*absorptionContribution +
		weights.IcebergWeight*icebergContribution +
		weights.OFMBIWeight*momentumContribution +
		weights.StructureWeight*structureFactor -
		weights.SpreadPenaltyWeight*spreadPenalty

	pBuy, pSell, pNone := softmax3(hfss * hfssScale)

	signalType := SignalNoTrade
	confidence := pNone
	switch {
	case pBuy > decisionThreshold && pBuy > pSell:
		signalType = SignalBuy
		confidence = pBuy
	case pSell > decisionThreshold && pSell > pBuy:
		signalType = SignalSell
		confidence = pSell
	}

	breakdown := SignalBreakdown{
		DeltaContribution:      weights.DeltaWeight * deltaContribution,
		AbsorptionContribution: weights.AbsorptionWeight * absorptionContribution,
		IcebergContribution:    weights.IcebergWeight * icebergContribution,
		MomentumContribution:   weights.OFMBIWeight * momentumContribution,
		StructureContribution:  weights.StructureWeight * structureFactor,
		SpreadPenalty:          weights.SpreadPenaltyWeight * spreadPenalty,
	}

	return TradingSignal{
		Symbol:             symbol,
		Timestamp:          now.UTC(),
		Type:               signalType,
		HFSS:               hfss,
		ProbabilityBuy:     pBuy,
		ProbabilitySell:    pSell,
		ProbabilityNoTrade: pNone,
		Confidence:         confidence,
		Breakdown:          breakdown,
		Reason:             buildReason(deltaContribution, absorption, iceberg, momentum, structure),
		PriceAtSignal:      priceAtSignal,
	}
}

func structureContribution(s StructureMetrics) float64 {
	var factor float64
	switch s.TrendDirection {
	case TrendUp:
		factor = 0.5
		if s.BOSDetected {
			factor = 0.8
		}
	case TrendDown:
		factor = -0.5
		if s.BOSDetected {
			factor = -0.8
		}
	}
	if s.CHOCHDetected {
		factor *= -0.5
	}
	return factor
}

func spreadPenalty(currentSpread, medianSpread, atr, medianATR float64) float64 {
	if medianSpread <= 0 {
		return 0
	}
	penalty := (currentSpread / medianSpread) * (atr / (medianATR + epsilon))
	return math.Min(penalty, 1.0)
}

// softmax3 implements the three-way softmax over (x, -x, 0) of spec.md §4.9.
func softmax3(x float64) (pBuy, pSell, pNone float64) {
	expBuy := math.Exp(x)
	expSell := math.Exp(-x)
	expNone := math.Exp(0)
	total := expBuy + expSell + expNone
	return expBuy / total, expSell / total, expNone / total
}

func buildReason(
	deltaContribution float64,
	absorption AbsorptionMetrics,
	iceberg IcebergMetrics,
	momentum MomentumMetrics,
	structure StructureMetrics,
) string {
	var reasons []string

	if abs(deltaContribution) > reasonDeltaThreshold {
		dir := "Bearish"
		if deltaContribution > 0 {
			dir = "Bullish"
		}
		reasons = append(reasons, fmt.Sprintf("Delta: %s (%.2f)", dir, deltaContribution))
	}
	if absorption.Strength > reasonAbsorptionThreshold {
		side := "Ask"
		if absorption.BidAbsorption > absorption.AskAbsorption {
			side = "Bid"
		}
		reasons = append(reasons, fmt.Sprintf("Absorption: %s wall detected", side))
	}
	if iceberg.MaxProbability > reasonIcebergThreshold {
		reasons = append(reasons, fmt.Sprintf("Iceberg: Hidden liquidity detected (%.1f%%)", iceberg.MaxProbability*100))
	}
	if abs(momentum.OFMBI) > reasonOFMBIThreshold {
		dir := "down"
		if momentum.OFMBI > 0 {
			dir = "up"
		}
		reasons = append(reasons, fmt.Sprintf("Momentum: Burst %s", dir))
	}
	if structure.BOSDetected {
		reasons = append(reasons, "Structure: Break of structure")
	}
	if structure.CHOCHDetected {
		reasons = append(reasons, "Structure: Change of character")
	}

	if len(reasons) == 0 {
		return "No significant signals"
	}
	return strings.Join(reasons, " | ")
}
