// Package vector provides the pure, stateless vector arithmetic the rest of
// the recommendation pipeline is built on: cosine similarity, normalization,
// distance metrics, and weighted combination.
//
// Every function here is pure and side-effect free. Functions that require
// matching dimensions fail fast with an InvalidDimension error rather than
// silently truncating or zero-padding, per spec §4.1 — the one exception is
// CombineVectors, which explicitly zero-pads per its documented contract.
package vector

import (
	"math"

	"github.com/circle-system/swipeengine/internal/errs"
	"github.com/circle-system/swipeengine/internal/model"
)

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Returns 0 if either vector has zero norm (by convention, not as
// an error — a zero vector is a valid, if uninformative, input).
func CosineSimilarity(a, b model.Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.InvalidDimension("vector: cosine similarity", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// EuclideanDistance returns the non-negative L2 distance between a and b.
func EuclideanDistance(a, b model.Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.InvalidDimension("vector: euclidean distance", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// ManhattanDistance returns the non-negative L1 distance between a and b.
func ManhattanDistance(a, b model.Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.InvalidDimension("vector: manhattan distance", len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum, nil
}

// NormalizeL2 returns v scaled to unit Euclidean norm. The zero vector is
// returned unchanged (there is no direction to normalize to).
func NormalizeL2(v model.Vector) model.Vector {
	var normSq float64
	for _, x := range v {
		normSq += x * x
	}
	if normSq == 0 {
		out := make(model.Vector, len(v))
		copy(out, v)
		return out
	}
	norm := math.Sqrt(normSq)
	out := make(model.Vector, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// CombineVectors returns the element-wise weighted sum of vectors, after
// renormalizing weights to sum to 1. Vectors shorter than the longest input
// are treated as zero-padded; len(weights) must equal len(vectors).
func CombineVectors(vectors []model.Vector, weights []float64) (model.Vector, error) {
	if len(vectors) == 0 {
		return model.Vector{}, nil
	}
	if len(vectors) != len(weights) {
		return nil, errs.InvalidDimension("vector: combine vectors (weights)", len(vectors), len(weights))
	}

	maxLen := 0
	for _, v := range vectors {
		if len(v) > maxLen {
			maxLen = len(v)
		}
	}

	weightSum := 0.0
	for _, w := range weights {
		weightSum += w
	}
	normWeights := make([]float64, len(weights))
	if weightSum == 0 {
		// An all-zero weight vector has no well-defined renormalization;
		// treat every input as equally weighted rather than dividing by zero.
		for i := range normWeights {
			normWeights[i] = 1.0 / float64(len(weights))
		}
	} else {
		for i, w := range weights {
			normWeights[i] = w / weightSum
		}
	}

	out := make(model.Vector, maxLen)
	for i, v := range vectors {
		w := normWeights[i]
		for j := 0; j < maxLen; j++ {
			if j < len(v) {
				out[j] += w * v[j]
			}
		}
	}
	return out, nil
}

// AverageVectors returns the element-wise arithmetic mean of vectors. All
// vectors must share the same dimension.
func AverageVectors(vectors []model.Vector) (model.Vector, error) {
	if len(vectors) == 0 {
		return model.Vector{}, nil
	}
	dim := len(vectors[0])
	for _, v := range vectors[1:] {
		if len(v) != dim {
			return nil, errs.InvalidDimension("vector: average vectors", dim, len(v))
		}
	}

	out := make(model.Vector, dim)
	for _, v := range vectors {
		for j, x := range v {
			out[j] += x
		}
	}
	n := float64(len(vectors))
	for j := range out {
		out[j] /= n
	}
	return out, nil
}
