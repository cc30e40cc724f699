// Package activation provides the squashing functions that map a unit's net
// drive to its bounded output activity.
package activation

import "math"

// Func maps a single net input to an output activity.
type Func func(x float64) float64

// Apply writes fn(src[i]) into dst and returns dst. When dst is nil or too
// short a new slice is allocated.
func Apply(fn Func, dst, src []float64) []float64 {
	if len(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, x := range src {
		dst[i] = fn(x)
	}
	return dst
}

// Sigmoid is the standard logistic function. Sigmoid(0) = 0.5.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Logistic returns a logistic function with the given gain and offset:
// 1/(1+exp(-gain*(x-offset))).
func Logistic(gain, offset float64) Func {
	return func(x float64) float64 {
		return 1.0 / (1.0 + math.Exp(-gain*(x-offset)))
	}
}

// XX1 returns the thresholded x/(x+1) rate code used by Leabra-style units.
// Inputs at or below thr produce zero.
func XX1(gain, thr float64) Func {
	return func(x float64) float64 {
		g := gain * (x - thr)
		if g <= 0 {
			return 0
		}
		return g / (g + 1)
	}
}

// ReLU clips negative inputs to zero.
func ReLU(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// Tanh is the hyperbolic tangent.
func Tanh(x float64) float64 {
	return math.Tanh(x)
}

// Linear is the identity function.
func Linear(x float64) float64 {
	return x
}
