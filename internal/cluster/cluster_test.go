package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circle-system/swipeengine/internal/errs"
	"github.com/circle-system/swipeengine/internal/model"
)

func TestNewClusterer_RejectsInvalidConfig(t *testing.T) {
	_, err := NewClusterer(Config{Epsilon: 0, MinPoints: 5})
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = NewClusterer(Config{Epsilon: 0.3, MinPoints: 1})
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = NewClusterer(Config{Epsilon: 0.3, MinPoints: 2, Distance: "nonsense"})
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestRun_EmptyInput(t *testing.T) {
	c, err := NewClusterer(Config{Epsilon: 0.3, MinPoints: 5})
	require.NoError(t, err)

	res, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Clusters)
	assert.Equal(t, 0.0, res.Quality)
	assert.True(t, res.Metadata.Converged)
}

func TestRun_SinglePointProducesNoCluster(t *testing.T) {
	c, err := NewClusterer(Config{Epsilon: 0.3, MinPoints: 2})
	require.NoError(t, err)

	res, err := c.Run(context.Background(), []Point{{ContentID: "a", Vector: model.Vector{0, 0}}})
	require.NoError(t, err)
	assert.Empty(t, res.Clusters)
	assert.Equal(t, 1, res.Metadata.NoisePoints)
}

func TestRun_DimensionMismatch(t *testing.T) {
	c, err := NewClusterer(Config{Epsilon: 0.3, MinPoints: 2})
	require.NoError(t, err)

	_, err = c.Run(context.Background(), []Point{
		{ContentID: "a", Vector: model.Vector{0, 0}},
		{ContentID: "b", Vector: model.Vector{0, 0, 0}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidDimension))
}

// TestRun_S5DenseClusterWithNoise mirrors the scenario of six collinear
// points dense enough to cluster, plus one distant isolated point.
func TestRun_S5DenseClusterWithNoise(t *testing.T) {
	c, err := NewClusterer(Config{Epsilon: 0.3, MinPoints: 5, Distance: DistanceEuclidean})
	require.NoError(t, err)

	points := []Point{
		{ContentID: "p0", Vector: model.Vector{0.0, 0.0}},
		{ContentID: "p1", Vector: model.Vector{0.1, 0.1}},
		{ContentID: "p2", Vector: model.Vector{0.2, 0.2}},
		{ContentID: "p3", Vector: model.Vector{0.3, 0.3}},
		{ContentID: "p4", Vector: model.Vector{0.4, 0.4}},
		{ContentID: "p5", Vector: model.Vector{0.5, 0.5}},
		{ContentID: "isolated", Vector: model.Vector{5, 5}},
	}

	res, err := c.Run(context.Background(), points)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.GreaterOrEqual(t, res.Clusters[0].Size, 5)

	_, assigned := res.Assignments["isolated"]
	assert.False(t, assigned, "isolated point must be labelled noise, not assigned to the cluster")
	assert.GreaterOrEqual(t, res.Metadata.NoisePoints, 1)
}

// TestRun_Invariant8NeighborhoodProperty checks the neighborhood property on
// a small input: four points within epsilon of one another form a single
// cluster of size 4, and the distant point is left unassigned as noise.
func TestRun_Invariant8NeighborhoodProperty(t *testing.T) {
	c, err := NewClusterer(Config{Epsilon: 0.3, MinPoints: 3})
	require.NoError(t, err)

	points := []Point{
		{ContentID: "a", Vector: model.Vector{0, 0}},
		{ContentID: "b", Vector: model.Vector{0.1, 0}},
		{ContentID: "c", Vector: model.Vector{0.2, 0}},
		{ContentID: "d", Vector: model.Vector{0.2, 0.1}},
		{ContentID: "noise", Vector: model.Vector{10, 10}},
	}

	res, err := c.Run(context.Background(), points)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)

	_, noiseAssigned := res.Assignments["noise"]
	assert.False(t, noiseAssigned)
	assert.Equal(t, 4, res.Clusters[0].Size)
}

func TestRun_QualityAndCentroidAreWellFormed(t *testing.T) {
	c, err := NewClusterer(Config{Epsilon: 0.3, MinPoints: 3})
	require.NoError(t, err)

	points := []Point{
		{ContentID: "a", Vector: model.Vector{1, 0}},
		{ContentID: "b", Vector: model.Vector{0.95, 0.1}},
		{ContentID: "c", Vector: model.Vector{0.9, 0.05}},
	}

	res, err := c.Run(context.Background(), points)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)

	assert.GreaterOrEqual(t, res.Quality, 0.0)
	assert.LessOrEqual(t, res.Quality, 1.0)
	assert.GreaterOrEqual(t, res.Clusters[0].Coherence, 0.0)

	var normSq float64
	for _, x := range res.Clusters[0].Centroid {
		normSq += x * x
	}
	assert.InDelta(t, 1.0, normSq, 1e-5, "centroid is L2-normalized")
}
