package analytics

import "time"

// calculateMomentum implements spec.md §4.6.
func calculateMomentum(s *rollingState, now time.Time, windowMs int) MomentumMetrics {
	delta := calculateDelta(s, now, windowMs)

	cutoff := now.Add(-time.Duration(windowMs) * time.Millisecond)
	recent := s.tradesSince(cutoff)

	windowSeconds := float64(windowMs) / 1000.0
	var tapeSpeed, volumeVelocity float64
	if windowMs > 0 {
		tapeSpeed = float64(len(recent)) / windowSeconds
		var qty float64
		for _, t := range recent {
			qty += t.Quantity
		}
		volumeVelocity = qty / windowSeconds
	}

	spread := s.medianSpread
	if spread <= 0 {
		spread = 0.01
	}
	if book := s.latestBook(); book != nil {
		spread = book.Spread()
	}

	atr := s.currentATR()

	return MomentumMetrics{
		OFMBI:              (delta.NormalizedDelta * tapeSpeed) / (spread + epsilon),
		OFMBIVolNormalized: (delta.NormalizedDelta * tapeSpeed) / (spread*atr + epsilon),
		TapeSpeed:          tapeSpeed,
		VolumeVelocity:     volumeVelocity,
	}
}
