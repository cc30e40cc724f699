package mesh

import "math"

// Sigmoid is the weight bounding transform 1/(1+(off*(1-l)/l)^gain). Linear
// values at or beyond the [0,1] domain map to the bounds.
func Sigmoid(l, off, gain float64) float64 {
	switch {
	case l <= 0:
		return 0
	case l >= 1:
		return 1
	}
	return 1 / (1 + math.Pow(off*(1-l)/l, gain))
}

// InvSigmoid is the algebraic inverse of Sigmoid. Weights at or beyond the
// bounds map to 0 and 1.
func InvSigmoid(w, off, gain float64) float64 {
	switch {
	case w <= 0:
		return 0
	case w >= 1:
		return 1
	}
	return 1 / (1 + math.Pow((1-w)/w, 1/gain)/off)
}

// clampUnit restricts x to [0,1]. NaN maps to 0.
func clampUnit(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
