package reputation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateFeedback(t *testing.T) {
	t.Run("should split a high average mostly positive", func(t *testing.T) {
		positive, negative := EstimateFeedback(4.5, 10)
		assert.Equal(t, uint64(9), positive)
		assert.Equal(t, uint64(1), negative)
	})

	t.Run("should split a low average mostly negative", func(t *testing.T) {
		positive, negative := EstimateFeedback(1.2, 5)
		assert.Equal(t, uint64(1), positive)
		assert.Equal(t, uint64(4), negative)
	})

	t.Run("should return zero buckets for zero ratings", func(t *testing.T) {
		positive, negative := EstimateFeedback(4.8, 0)
		assert.Equal(t, uint64(0), positive)
		assert.Equal(t, uint64(0), negative)

		positive, negative = EstimateFeedback(math.NaN(), 0)
		assert.Equal(t, uint64(0), positive)
		assert.Equal(t, uint64(0), negative)
	})

	t.Run("should return zero buckets for negative counts", func(t *testing.T) {
		positive, negative := EstimateFeedback(5, -3)
		assert.Equal(t, uint64(0), positive)
		assert.Equal(t, uint64(0), negative)
	})

	t.Run("should clamp averages outside the rating scale", func(t *testing.T) {
		lowPos, lowNeg := EstimateFeedback(-2, 8)
		boundPos, boundNeg := EstimateFeedback(1, 8)
		assert.Equal(t, boundPos, lowPos)
		assert.Equal(t, boundNeg, lowNeg)

		highPos, highNeg := EstimateFeedback(9.7, 8)
		topPos, topNeg := EstimateFeedback(5, 8)
		assert.Equal(t, topPos, highPos)
		assert.Equal(t, topNeg, highNeg)
	})

	t.Run("should treat non-finite averages as the bottom of the scale", func(t *testing.T) {
		nanPos, nanNeg := EstimateFeedback(math.NaN(), 6)
		bottomPos, bottomNeg := EstimateFeedback(1, 6)
		assert.Equal(t, bottomPos, nanPos)
		assert.Equal(t, bottomNeg, nanNeg)
	})

	t.Run("buckets always sum to the rating count", func(t *testing.T) {
		for _, avg := range []float64{-1, 0, 1, 1.5, 2.7, 3, 4.4, 5, 6.2} {
			for _, count := range []int{0, 1, 2, 7, 100, 9999} {
				positive, negative := EstimateFeedback(avg, count)
				want := uint64(0)
				if count > 0 {
					want = uint64(count)
				}
				assert.Equal(t, want, positive+negative, "avg=%v count=%d", avg, count)
			}
		}
	})

	t.Run("perfect average is all positive", func(t *testing.T) {
		positive, negative := EstimateFeedback(5, 42)
		assert.Equal(t, uint64(42), positive)
		assert.Equal(t, uint64(0), negative)
	})
}
