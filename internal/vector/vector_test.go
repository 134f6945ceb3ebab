package vector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circle-system/swipeengine/internal/errs"
	"github.com/circle-system/swipeengine/internal/model"
)

func TestCosineSimilarity_IdenticalVectorsAreOne(t *testing.T) {
	v := model.Vector{1, 2, 3}
	sim, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9, "invariant 1: cosine similarity of a vector with itself is 1")
}

func TestCosineSimilarity_OrthogonalVectorsAreZero(t *testing.T) {
	sim, err := CosineSimilarity(model.Vector{1, 0}, model.Vector{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosineSimilarity_OppositeVectorsAreNegativeOne(t *testing.T) {
	sim, err := CosineSimilarity(model.Vector{1, 2, 3}, model.Vector{-1, -2, -3})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)
}

func TestCosineSimilarity_ZeroVectorReturnsZero(t *testing.T) {
	sim, err := CosineSimilarity(model.Vector{0, 0, 0}, model.Vector{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity(model.Vector{1, 2}, model.Vector{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidDimension), "invariant 2: dimension mismatches fail with InvalidDimension")
}

func TestCosineSimilarity_Bounded(t *testing.T) {
	sim, err := CosineSimilarity(model.Vector{0.1, 0.9, -0.4}, model.Vector{-0.3, 0.2, 0.8})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sim, -1.0)
	assert.LessOrEqual(t, sim, 1.0)
}

func TestEuclideanDistance_SamePointIsZero(t *testing.T) {
	d, err := EuclideanDistance(model.Vector{1, 1}, model.Vector{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
}

func TestEuclideanDistance_KnownValue(t *testing.T) {
	d, err := EuclideanDistance(model.Vector{0, 0}, model.Vector{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)
}

func TestEuclideanDistance_DimensionMismatch(t *testing.T) {
	_, err := EuclideanDistance(model.Vector{1}, model.Vector{1, 2})
	assert.ErrorIs(t, err, errs.ErrInvalidDimension)
}

func TestManhattanDistance_KnownValue(t *testing.T) {
	d, err := ManhattanDistance(model.Vector{0, 0}, model.Vector{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, d, 1e-9)
}

func TestManhattanDistance_DimensionMismatch(t *testing.T) {
	_, err := ManhattanDistance(model.Vector{1, 2}, model.Vector{1})
	assert.ErrorIs(t, err, errs.ErrInvalidDimension)
}

func TestNormalizeL2_ProducesUnitNorm(t *testing.T) {
	out := NormalizeL2(model.Vector{3, 4})
	require.Len(t, out, 2)
	assert.InDelta(t, 0.6, out[0], 1e-9)
	assert.InDelta(t, 0.8, out[1], 1e-9)
}

func TestNormalizeL2_ZeroVectorUnchanged(t *testing.T) {
	out := NormalizeL2(model.Vector{0, 0, 0})
	assert.Equal(t, model.Vector{0, 0, 0}, out)
}

func TestCombineVectors_WeightedSum(t *testing.T) {
	out, err := CombineVectors([]model.Vector{{1, 0}, {0, 1}}, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0], 1e-9)
	assert.InDelta(t, 0.5, out[1], 1e-9)
}

func TestCombineVectors_RenormalizesWeights(t *testing.T) {
	// weights {2, 2} should behave identically to {0.5, 0.5} after renormalization.
	out, err := CombineVectors([]model.Vector{{1, 0}, {0, 1}}, []float64{2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0], 1e-9)
	assert.InDelta(t, 0.5, out[1], 1e-9)
}

func TestCombineVectors_ZeroPadsShorterVectors(t *testing.T) {
	out, err := CombineVectors([]model.Vector{{1, 1, 1}, {1, 1}}, []float64{1, 1})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 1.0, out[0], 1e-9)
	assert.InDelta(t, 1.0, out[1], 1e-9)
	assert.InDelta(t, 0.5, out[2], 1e-9)
}

func TestCombineVectors_WeightCountMismatch(t *testing.T) {
	_, err := CombineVectors([]model.Vector{{1}, {2}}, []float64{1})
	assert.ErrorIs(t, err, errs.ErrInvalidDimension)
}

func TestCombineVectors_Empty(t *testing.T) {
	out, err := CombineVectors(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAverageVectors_SimpleMean(t *testing.T) {
	out, err := AverageVectors([]model.Vector{{2, 4}, {4, 8}, {0, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out[0], 1e-9)
	assert.InDelta(t, 4.0, out[1], 1e-9)
}

func TestAverageVectors_DimensionMismatch(t *testing.T) {
	_, err := AverageVectors([]model.Vector{{1, 2}, {1}})
	assert.ErrorIs(t, err, errs.ErrInvalidDimension)
}
