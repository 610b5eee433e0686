package analytics

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	swingLookback     = 5
	minStructurePrices = 20
	regimeSpikeFactor  = 3.0
	regimeTrendRho     = 0.3
	regimeRevertRho    = -0.2
)

// calculateStructure implements spec.md §4.7.
func calculateStructure(s *rollingState, now time.Time, defaultWindowMs int, coeffs TRPCoeffs) StructureMetrics {
	if s.prices.len() < minStructurePrices {
		return StructureMetrics{
			Regime:         RegimeRange,
			TrendDirection: TrendNeutral,
		}
	}

	prices := s.prices.slice()

	swingHighs := detectSwingHighs(prices, swingLookback)
	swingLows := detectSwingLows(prices, swingLookback)

	trend := determineTrend(swingHighs, swingLows)
	regime := detectRegime(prices)
	bos, choch := detectStructureBreaks(prices[len(prices)-1], swingHighs, swingLows, trend)

	delta := calculateDelta(s, now, defaultWindowMs)
	trp := calculateTRP(prices, swingHighs, swingLows, s.currentATR(), delta.NormalizedDelta, coeffs)

	return StructureMetrics{
		Regime:                        regime,
		TrendDirection:                trend,
		SwingHighs:                    lastN(swingHighs, 5),
		SwingLows:                     lastN(swingLows, 5),
		SupportLevels:                 lastN(swingLows, 3),
		ResistanceLevels:              lastN(swingHighs, 3),
		BOSDetected:                   bos,
		CHOCHDetected:                 choch,
		TrendlineRejectionProbability: trp,
	}
}

func detectSwingHighs(prices []float64, lookback int) []float64 {
	var out []float64
	for i := lookback; i < len(prices)-lookback; i++ {
		if prices[i] == maxOf(prices[i-lookback:i+lookback+1]) {
			out = append(out, prices[i])
		}
	}
	return out
}

func detectSwingLows(prices []float64, lookback int) []float64 {
	var out []float64
	for i := lookback; i < len(prices)-lookback; i++ {
		if prices[i] == minOf(prices[i-lookback:i+lookback+1]) {
			out = append(out, prices[i])
		}
	}
	return out
}

func determineTrend(highs, lows []float64) TrendDirection {
	if len(highs) < 2 || len(lows) < 2 {
		return TrendNeutral
	}
	h1, h2 := highs[len(highs)-2], highs[len(highs)-1]
	l1, l2 := lows[len(lows)-2], lows[len(lows)-1]

	switch {
	case h2 > h1 && l2 > l1:
		return TrendUp
	case h2 < h1 && l2 < l1:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// detectRegime implements the σ/μ_abs/ρ classification of spec.md §4.7.
func detectRegime(prices []float64) MarketRegime {
	if len(prices) < minStructurePrices {
		return RegimeRange
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}

	sigma := stat.StdDev(returns, nil)
	absReturns := make([]float64, len(returns))
	for i, r := range returns {
		absReturns[i] = abs(r)
	}
	muAbs := stat.Mean(absReturns, nil)

	var rho float64
	if len(returns) > 1 {
		rho = stat.Correlation(returns[:len(returns)-1], returns[1:], nil)
	}

	switch {
	case sigma > regimeSpikeFactor*muAbs:
		return RegimeSpike
	case abs(rho) > regimeTrendRho:
		return RegimeTrend
	case rho < regimeRevertRho:
		return RegimeMeanRevert
	default:
		return RegimeRange
	}
}

// detectStructureBreaks implements BOS/CHOCH per spec.md §4.7 and the
// disambiguation in §9: N=3 swings for BOS, N=2 for CHOCH.
func detectStructureBreaks(currentPrice float64, highs, lows []float64, trend TrendDirection) (bos, choch bool) {
	switch trend {
	case TrendUp:
		if len(highs) > 0 && currentPrice > maxOf(lastN(highs, 3)) {
			bos = true
		}
		if len(lows) > 0 && currentPrice < minOf(lastN(lows, 2)) {
			choch = true
		}
	case TrendDown:
		if len(lows) > 0 && currentPrice < minOf(lastN(lows, 3)) {
			bos = true
		}
		if len(highs) > 0 && currentPrice > maxOf(lastN(highs, 2)) {
			choch = true
		}
	}
	return bos, choch
}

// calculateTRP implements spec.md §4.7's trendline-rejection probability.
func calculateTRP(prices, highs, lows []float64, atr, normalizedDelta float64, coeffs TRPCoeffs) float64 {
	if len(prices) == 0 {
		return 0
	}
	currentPrice := prices[len(prices)-1]

	candidates := append(append([]float64{}, lastN(highs, 3)...), lastN(lows, 3)...)
	if len(candidates) == 0 {
		return 0
	}

	var trendline float64
	minDistance := -1.0
	for _, level := range candidates {
		d := abs(currentPrice - level)
		if minDistance < 0 || d < minDistance {
			minDistance = d
			trendline = level
		}
	}

	distanceNormalized := minDistance / (coeffs.Lambda*atr + epsilon)
	trpDist := 1 - minOf2(1, distanceNormalized)

	rejFlow := normalizedDelta
	if currentPrice > trendline {
		rejFlow = -normalizedDelta
	}

	z := coeffs.B0 + coeffs.B1*rejFlow
	return trpDist * sigmoid(z)
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func minOf2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func lastN(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return append([]float64{}, xs...)
	}
	return append([]float64{}, xs[len(xs)-n:]...)
}
