package engine

import "math"

// probEps keeps probabilities off the exact [0,1] boundary so logit stays finite.
const probEps = 1e-6

func logit(p float64) float64 {
	p = clamp(p, probEps, 1-probEps)
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	// large |x| saturates cleanly, no overflow in Exp for negated arg
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// sanitize replaces NaN/Inf with fallback and clamps into [0,1]. Every
// probability leaving the engine passes through here.
func sanitize(x, fallback float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fallback
	}
	return clamp(x, 0, 1)
}
