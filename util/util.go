package util

import (
	"math"

	"github.com/fogleman/ease"
)

// Lerp interpolates between a and b by t.
func Lerp(a float64, b float64, t float64) float64 {
	return a + (b-a)*t
}

// AngleDelta returns the signed shortest-path delta from angle a to angle b
// in degrees, normalized to [-180, 180).
func AngleDelta(a float64, b float64) float64 {
	d := math.Mod(b-a+180.0, 360.0)
	if d < 0 {
		d += 360.0
	}
	return d - 180.0
}

// GenerateRamp builds a symmetric eased lookup table. Code assets use it for
// pulsing effects.
func GenerateRamp(length int) []float64 {
	increment := 1.0 / float64(length/2)
	ramp := make([]float64, length)
	for i, j := 0, length-1; i < length/2; i, j = i+1, j-1 {
		value := float64(i) * increment
		ramp[i] = ease.InOutQuad(value)
		ramp[j] = ease.InOutQuad(value)
	}
	return ramp
}
