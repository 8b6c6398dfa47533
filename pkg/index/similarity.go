package index

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Vectors of different length or with zero norm score 0.
//
// Both embedders emit unit vectors, so for stored entries this equals the
// dot product; the norms are still computed because Build keeps vectors
// as given.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, aa, bb float64
	for i, x := range a {
		y := b[i]
		dot += float64(x) * float64(y)
		aa += float64(x) * float64(x)
		bb += float64(y) * float64(y)
	}
	if aa == 0 || bb == 0 {
		return 0
	}

	cos := dot / math.Sqrt(aa*bb)
	return float32(math.Max(-1, math.Min(1, cos)))
}
