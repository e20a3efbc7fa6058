// Package particle provides the value syntax shared by effect presets:
// fixed values, random ranges and keyframe curves, plus the random source
// abstraction every emission draws from.
//
// Preset files keep these values as strings, which may contain:
//   - Fixed values: "2.5"
//   - Ranges: "[1.5 3.0]" (random value between min and max)
//   - Keyframes: "0,1 0.6,0.8 1,0" (time,value pairs over normalized lifetime)
//   - Interpolation keywords: "Linear", "EaseIn", "EaseOut", "FastInOutWeak"
package particle

import "math"

// RandomSource is the single injectable source of randomness used by
// emission. *math/rand.Rand satisfies it; seeding it makes emission
// reproducible.
type RandomSource interface {
	Float64() float64
	NormFloat64() float64
	Intn(n int) int
}

// Keyframe represents a single keyframe in an animation curve.
// Used for animating particle properties over normalized lifetime (e.g. alpha).
type Keyframe struct {
	Time  float64 // Normalized time (0-1)
	Value float64 // Value at this keyframe
}

// Range is a closed interval sampled uniformly.
type Range struct {
	Min float64
	Max float64
}

// Fixed reports whether the range collapses to a single value.
func (r Range) Fixed() bool {
	return r.Min == r.Max
}

// Finite reports whether both bounds are finite numbers.
func (r Range) Finite() bool {
	return !math.IsNaN(r.Min) && !math.IsInf(r.Min, 0) && !math.IsNaN(r.Max) && !math.IsInf(r.Max, 0)
}

// Sample draws a value in [Min, Max] from rng.
func (r Range) Sample(rng RandomSource) float64 {
	return RandomInRange(rng, r.Min, r.Max)
}

// Curve is a parsed keyframe curve with its interpolation mode.
type Curve struct {
	Keyframes     []Keyframe
	Interpolation string
}

// Empty reports whether the curve has no keyframes.
func (c Curve) Empty() bool {
	return len(c.Keyframes) == 0
}

// At evaluates the curve at normalized time t.
func (c Curve) At(t float64) float64 {
	return EvaluateKeyframes(c.Keyframes, t, c.Interpolation)
}
