package knowledge

import "math"

// Cosine returns the cosine similarity of a and b, i.e. 1 - cosine distance.
// Mismatched lengths and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	den := math.Sqrt(magA) * math.Sqrt(magB)
	if den == 0 {
		return 0
	}
	sim := dot / den
	// float error can push parallel vectors past 1
	return math.Max(-1, math.Min(1, sim))
}
