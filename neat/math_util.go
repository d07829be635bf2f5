package neat

import (
	"math"
	"math/rand"
)

// clamp restricts a value to a given range [minVal, maxVal].
func clamp(value, minVal, maxVal float64) float64 {
	return math.Max(minVal, math.Min(value, maxVal))
}

// randPosNeg returns +1 or -1 with equal probability.
func randPosNeg(rng *rand.Rand) float64 {
	if rng.Intn(2) == 0 {
		return -1.0
	}
	return 1.0
}

// randBool returns a fair coin flip.
func randBool(rng *rand.Rand) bool {
	return rng.Intn(2) == 1
}

// splitOffspring separates an expected offspring value into whole and fractional parts.
func splitOffspring(expected float64) (int, float64) {
	whole := math.Floor(expected)
	return int(whole), expected - whole
}
