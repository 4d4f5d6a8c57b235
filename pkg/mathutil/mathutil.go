// Package mathutil provides common mathematical utility functions.
package mathutil

import "math"

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// WithinRelative checks if two values agree to a relative tolerance, falling
// back to an absolute check near zero.
func WithinRelative(val1, val2, tolerance float64) bool {
	scale := math.Max(math.Abs(val1), math.Abs(val2))
	if scale < 1 {
		return math.Abs(val1-val2) <= tolerance
	}
	return math.Abs(val1-val2) <= tolerance*scale
}

// InRange reports whether val lies in the closed interval [lo, hi].
func InRange(val, lo, hi float64) bool {
	return val >= lo && val <= hi
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}
