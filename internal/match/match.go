// Package match scores whether two face embeddings belong to the same identity.
package match

import "math"

const epsilon = 1e-9

// CosineSimilarity returns dot(a,b) / (|a||b| + eps). Norms are always recomputed, so
// callers may pass unnormalized vectors. Zero vectors score 0. The result is symmetric
// in its arguments and lies in [-1,1].
func CosineSimilarity(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, sumA, sumB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		sumA += a[i] * a[i]
		sumB += b[i] * b[i]
	}
	return dot / (math.Sqrt(sumA)*math.Sqrt(sumB) + epsilon)
}

// IsMatch applies a similarity threshold; reaching it counts as a match.
func IsMatch(similarity, threshold float64) bool {
	return similarity >= threshold
}

// Normalize scales v to unit length in place and returns it. Zero vectors are left as is.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum) + epsilon
	if sum == 0 {
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}
