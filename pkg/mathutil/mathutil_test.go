package mathutil

import (
	"math"
	"testing"
)

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		tol      float64
		expected bool
	}{
		{"Identical", 5.448, 5.448, 0, true},
		{"Inside tolerance", 1.0, 1.0005, 0.001, true},
		{"On the boundary", 2, 2.5, 0.5, true},
		{"Outside tolerance", 1.0, 1.01, 0.001, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := WithinTolerance(tt.a, tt.b, tt.tol); result != tt.expected {
				t.Errorf("WithinTolerance(%v, %v, %v) = %v, expected %v", tt.a, tt.b, tt.tol, result, tt.expected)
			}
		})
	}
}

func TestWithinRelative(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		tol      float64
		expected bool
	}{
		{"Identical", 10735.33, 10735.33, 1e-12, true},
		{"Large values close", 1e9, 1e9 + 0.5, 1e-9, true},
		{"Large values apart", 1e9, 1e9 + 10, 1e-9, false},
		{"Near zero absolute", 1e-12, 0, 1e-9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := WithinRelative(tt.a, tt.b, tt.tol); result != tt.expected {
				t.Errorf("WithinRelative(%v, %v, %v) = %v, expected %v", tt.a, tt.b, tt.tol, result, tt.expected)
			}
		})
	}
}

func TestInRangeAndFinite(t *testing.T) {
	if !InRange(0.5, 0, 0.5) {
		t.Error("InRange should include the upper bound")
	}
	if InRange(0.51, 0, 0.5) {
		t.Error("InRange should exclude values above the upper bound")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) {
		t.Error("IsFinite should reject NaN and Inf")
	}
	if !IsFinite(-1e300) {
		t.Error("IsFinite should accept large finite values")
	}
}
