package particle

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// interpolationKeywords lists the easing modes understood by EvaluateKeyframes
var interpolationKeywords = []string{"Linear", "EaseIn", "EaseOut", "FastInOutWeak"}

// ParseValue parses a value string from a preset file.
// Supports multiple formats:
//   - Fixed value: "1500" → min=1500, max=1500, keyframes=nil
//   - Range: "[0.7 0.9]" → min=0.7, max=0.9, keyframes=nil
//   - Single-value range: "[2]" → min=2, max=2
//   - Keyframes: "0,1 0.5,0.8 1,0" → keyframes=[{0,1} {0.5,0.8} {1,0}]
//   - Interpolation: "0,1 1,0 EaseIn" → keyframes with interpolation="EaseIn"
//
// Returns:
//   - min, max: Range values (if not keyframes)
//   - keyframes: Parsed keyframe array (if keyframes format)
//   - interpolation: Interpolation mode ("Linear", "EaseIn", etc.)
//
// Unparseable input yields zeros; use ParseRange / ParseCurve when the
// caller needs an error.
func ParseValue(s string) (min, max float64, keyframes []Keyframe, interpolation string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil, ""
	}

	// Range format: "[min max]" or "[value]"
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		rangeStr := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		parts := strings.Fields(rangeStr)
		switch len(parts) {
		case 2:
			lo, err1 := strconv.ParseFloat(parts[0], 64)
			hi, err2 := strconv.ParseFloat(parts[1], 64)
			if err1 == nil && err2 == nil {
				return lo, hi, nil, ""
			}
		case 1:
			val, err := strconv.ParseFloat(parts[0], 64)
			if err == nil {
				return val, val, nil, ""
			}
		}
		return 0, 0, nil, ""
	}

	for _, keyword := range interpolationKeywords {
		if strings.Contains(s, keyword) {
			interpolation = keyword
			s = strings.TrimSpace(strings.ReplaceAll(s, keyword, ""))
			break
		}
	}

	// Keyframes format: "time,value" pairs
	if strings.Contains(s, ",") {
		parts := strings.Fields(s)
		keyframes = make([]Keyframe, 0, len(parts))
		for _, part := range parts {
			pair := strings.Split(part, ",")
			if len(pair) != 2 {
				continue
			}
			tm, err1 := strconv.ParseFloat(pair[0], 64)
			val, err2 := strconv.ParseFloat(pair[1], 64)
			if err1 != nil || err2 != nil {
				continue
			}
			keyframes = append(keyframes, Keyframe{Time: tm, Value: val})
		}
		if len(keyframes) > 0 {
			sort.SliceStable(keyframes, func(i, j int) bool {
				return keyframes[i].Time < keyframes[j].Time
			})
			return 0, 0, keyframes, interpolation
		}
		return 0, 0, nil, ""
	}

	// Fixed value format
	value, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return value, value, nil, ""
	}

	return 0, 0, nil, ""
}

// ParseRange parses a fixed value or "[min max]" range strictly.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, fmt.Errorf("empty range")
	}
	if strings.Contains(s, ",") {
		return Range{}, fmt.Errorf("range %q: keyframes not allowed here", s)
	}
	if !strings.HasPrefix(s, "[") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Range{}, fmt.Errorf("range %q: %w", s, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Range{}, fmt.Errorf("range %q: value must be finite", s)
		}
		return Range{Min: v, Max: v}, nil
	}
	if !strings.HasSuffix(s, "]") {
		return Range{}, fmt.Errorf("range %q: missing closing bracket", s)
	}
	parts := strings.Fields(strings.TrimSuffix(strings.TrimPrefix(s, "["), "]"))
	if len(parts) != 1 && len(parts) != 2 {
		return Range{}, fmt.Errorf("range %q: want 1 or 2 values, got %d", s, len(parts))
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	hi := lo
	if len(parts) == 2 {
		if hi, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return Range{}, fmt.Errorf("range %q: %w", s, err)
		}
	}
	if r := (Range{Min: lo, Max: hi}); !r.Finite() {
		return Range{}, fmt.Errorf("range %q: bounds must be finite", s)
	}
	if lo > hi {
		return Range{}, fmt.Errorf("range %q: min(%g) > max(%g)", s, lo, hi)
	}
	return Range{Min: lo, Max: hi}, nil
}

// ParseCurve parses a keyframe curve strictly. An empty string yields an
// empty curve.
func ParseCurve(s string) (Curve, error) {
	if strings.TrimSpace(s) == "" {
		return Curve{}, nil
	}
	_, _, keyframes, interp := ParseValue(s)
	if len(keyframes) == 0 {
		return Curve{}, fmt.Errorf("curve %q: no keyframes", s)
	}
	for _, kf := range keyframes {
		if kf.Time < 0 || kf.Time > 1 {
			return Curve{}, fmt.Errorf("curve %q: keyframe time %g outside [0,1]", s, kf.Time)
		}
	}
	return Curve{Keyframes: keyframes, Interpolation: interp}, nil
}

// EvaluateKeyframes calculates the interpolated value at time t (0-1)
// using the provided keyframes and interpolation mode.
//
// Parameters:
//   - keyframes: Array of keyframes (must be sorted by Time)
//   - t: Normalized time (0-1)
//   - interpolation: Interpolation mode ("Linear", "EaseIn", etc.)
//
// Returns the interpolated value at time t.
func EvaluateKeyframes(keyframes []Keyframe, t float64, interpolation string) float64 {
	if len(keyframes) == 0 {
		return 0
	}
	if len(keyframes) == 1 {
		return keyframes[0].Value
	}

	// Clamp t to [0, 1]
	t = math.Max(0, math.Min(1, t))

	if t < keyframes[0].Time {
		return keyframes[0].Value
	}

	for i := 0; i < len(keyframes)-1; i++ {
		k0 := keyframes[i]
		k1 := keyframes[i+1]

		if t >= k0.Time && t <= k1.Time {
			duration := k1.Time - k0.Time
			if duration <= 0 {
				return k0.Value
			}
			ratio := (t - k0.Time) / duration

			switch interpolation {
			case "EaseIn":
				ratio = ratio * ratio // Quadratic ease-in
			case "EaseOut":
				ratio = 1 - (1-ratio)*(1-ratio) // Quadratic ease-out
			case "FastInOutWeak":
				ratio = ratio * ratio * (3 - 2*ratio) // smoothstep
			}
			return k0.Value + ratio*(k1.Value-k0.Value)
		}
	}

	// t is beyond the last keyframe
	return keyframes[len(keyframes)-1].Value
}

// RandomInRange returns a random float64 in the range [min, max] drawn from rng.
func RandomInRange(rng RandomSource, min, max float64) float64 {
	if min >= max {
		return min
	}
	return min + rng.Float64()*(max-min)
}
