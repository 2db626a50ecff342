package common

import (
	"math"
)

const (
	// ZeroAnimWeightThreshold is the weight below which an animation contribution is treated as absent.
	ZeroAnimWeightThreshold float32 = 0.00001

	// KindaSmallNumber is the general purpose tolerance used for float comparisons.
	KindaSmallNumber float32 = 1e-4

	// SmallNumber is the tolerance used where KindaSmallNumber is too coarse.
	SmallNumber float32 = 1e-8
)

// IsRelevant reports whether a weight is large enough to contribute to a blend.
//
// Parameters:
//   - weight: the blend weight to test
//
// Returns:
//   - bool: true if weight is above ZeroAnimWeightThreshold
func IsRelevant(weight float32) bool {
	return weight > ZeroAnimWeightThreshold
}

// IsFullWeight reports whether a weight is within threshold of one.
//
// Parameters:
//   - weight: the blend weight to test
//
// Returns:
//   - bool: true if weight is effectively 1
func IsFullWeight(weight float32) bool {
	return weight >= 1-ZeroAnimWeightThreshold
}

// NearlyEqual compares two floats with an absolute tolerance.
//
// Parameters:
//   - a: the first value
//   - b: the second value
//   - tolerance: the maximum allowed absolute difference
//
// Returns:
//   - bool: true if |a-b| <= tolerance
func NearlyEqual(a, b, tolerance float32) bool {
	return Abs(a-b) <= tolerance
}

// Abs returns the absolute value of a float32.
func Abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Clamp restricts v to the closed range [lo, hi].
//
// Parameters:
//   - v: the value to clamp
//   - lo: the lower bound
//   - hi: the upper bound
//
// Returns:
//   - float32: v clamped to [lo, hi]
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 restricts v to [0, 1].
func Clamp01(v float32) float32 {
	return Clamp(v, 0, 1)
}

// FMod returns the float32 remainder of x/y with the sign of x.
func FMod(x, y float32) float32 {
	return float32(math.Mod(float64(x), float64(y)))
}

// IsNaN reports whether a float32 is NaN or infinite.
func IsNaN(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b, alpha float32) float32 {
	return a + (b-a)*alpha
}
