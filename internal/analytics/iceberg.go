package analytics

import "math"

const (
	topIcebergLevels      = 10
	icebergReportThreshold = 0.5
)

// calculateIceberg implements spec.md §4.5. Per the Open Question decision
// recorded in SPEC_FULL.md, fill_to_display_ratio and refill_intensity are the
// arithmetic means across the scanned levels while each detected level
// retains its own precise values.
func calculateIceberg(idx *levelIndex, coeffs IcebergCoeffs, book *OrderBook) IcebergMetrics {
	if book == nil {
		return IcebergMetrics{}
	}

	var levels []scannedLevel
	levels = append(levels, sideLevels(book.Bids, "bid")...)
	levels = append(levels, sideLevels(book.Asks, "ask")...)

	var detected []IcebergLevel
	var maxProbability float64
	var fdrSum, refillSum float64

	for _, s := range levels {
		price := s.lvl.Price
		vExec := idx.hitVolume(price)
		lDisp := s.lvl.Quantity
		fdr := vExec / (lDisp + epsilon)
		refill := idx.refillIntensity(price)
		persist := idx.persistence(price)

		fdrSum += fdr
		refillSum += refill

		z := coeffs.A0 + coeffs.A1*fdr + coeffs.A2*refill + coeffs.A3*persist
		probability := sigmoid(z)

		if probability <= icebergReportThreshold {
			continue
		}
		if probability > maxProbability {
			maxProbability = probability
		}

		hidden := vExec - lDisp
		if hidden < 0 {
			hidden = 0
		}
		detected = append(detected, IcebergLevel{
			Price:           idx.round(price),
			Side:            s.side,
			Probability:     probability,
			FDR:             fdr,
			EstimatedHidden: hidden,
		})
	}

	var meanFDR, meanRefill float64
	if len(levels) > 0 {
		meanFDR = fdrSum / float64(len(levels))
		meanRefill = refillSum / float64(len(levels))
	}

	return IcebergMetrics{
		MaxProbability:     maxProbability,
		FillToDisplayRatio: meanFDR,
		RefillIntensity:    meanRefill,
		PersistenceScore:   meanPersistence(idx, levels),
		DetectedLevels:     detected,
	}
}

// scannedLevel pairs a book level with the side it was read from, for the
// combined bid+ask scan in calculateIceberg.
type scannedLevel struct {
	lvl  OrderBookLevel
	side string
}

func sideLevels(obLevels []OrderBookLevel, side string) []scannedLevel {
	n := topIcebergLevels
	if n > len(obLevels) {
		n = len(obLevels)
	}
	out := make([]scannedLevel, n)
	for i := 0; i < n; i++ {
		out[i] = scannedLevel{obLevels[i], side}
	}
	return out
}

func meanPersistence(idx *levelIndex, levels []scannedLevel) float64 {
	if len(levels) == 0 {
		return 0
	}
	var sum float64
	for _, s := range levels {
		sum += idx.persistence(s.lvl.Price)
	}
	return sum / float64(len(levels))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
