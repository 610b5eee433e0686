package analytics

const (
	topAbsorptionLevels    = 10
	absorptionReportScore  = 0.30
)

// calculateAbsorption implements spec.md §4.4.
func calculateAbsorption(s *rollingState, idx *levelIndex) AbsorptionMetrics {
	book := s.latestBook()
	if book == nil {
		return AbsorptionMetrics{}
	}

	var levels []AbsorptionLevel
	var maxBid, maxAsk float64

	scan := func(obLevels []OrderBookLevel, side string) {
		n := topAbsorptionLevels
		if n > len(obLevels) {
			n = len(obLevels)
		}
		for _, lvl := range obLevels[:n] {
			vHit := idx.hitVolume(lvl.Price)
			lVis := lvl.Quantity
			lRes := idx.estimateHiddenReserve(lvl.Price)

			score := vHit / (vHit + lVis + epsilon)
			strength := (vHit + lRes) / (vHit + lVis + lRes + epsilon)

			if score <= absorptionReportScore {
				continue
			}
			levels = append(levels, AbsorptionLevel{
				Price:     idx.round(lvl.Price),
				Side:      side,
				Score:     score,
				Strength:  strength,
				VolumeHit: vHit,
			})
			if side == "bid" && strength > maxBid {
				maxBid = strength
			}
			if side == "ask" && strength > maxAsk {
				maxAsk = strength
			}
		}
	}

	scan(book.Bids, "bid")
	scan(book.Asks, "ask")

	var overallScore, overallStrength float64
	if len(levels) > 0 {
		var sumScore, sumStrength float64
		for _, l := range levels {
			sumScore += l.Score
			sumStrength += l.Strength
		}
		overallScore = sumScore / float64(len(levels))
		overallStrength = sumStrength / float64(len(levels))
	}

	return AbsorptionMetrics{
		Score:            overallScore,
		Strength:         overallStrength,
		BidAbsorption:    maxBid,
		AskAbsorption:    maxAsk,
		AbsorptionLevels: levels,
	}
}
