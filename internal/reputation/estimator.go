package reputation

import "math"

// EstimateFeedback converts a seller's aggregate rating into estimated
// positive/negative feedback buckets for the chain's reputation counters.
//
// The off-chain schema keeps only an average rating and a sample count, not
// individual feedback events, so this is a deliberate lossy approximation:
// the average is clamped into [1,5] and mapped onto a positive fraction, and
// the buckets always sum exactly to ratingCount. If per-order feedback is
// ever persisted off-chain this should become an exact count.
func EstimateFeedback(ratingAvg float64, ratingCount int) (positive, negative uint64) {
	if ratingCount <= 0 {
		return 0, 0
	}

	clamped := ratingAvg
	if math.IsNaN(clamped) || math.IsInf(clamped, 0) || clamped < 1 {
		clamped = 1
	} else if clamped > 5 {
		clamped = 5
	}

	count := uint64(ratingCount)
	approx := uint64(math.Round(clamped / 5 * float64(ratingCount)))
	if approx > count {
		approx = count
	}
	return approx, count - approx
}
