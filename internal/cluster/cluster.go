// Package cluster implements DBSCAN density-based clustering over content
// embeddings.
//
// The expansion loop follows the same visited-array + neighbor-queue BFS
// shape used by the clustering engine in the wider pack (each unvisited
// point's epsilon-neighborhood is computed once; points with too few
// neighbors are left labeled noise; otherwise a cluster opens and absorbs
// every density-reachable point, promoting noise encountered along the way
// without ever reassigning a point that already belongs to a cluster).
package cluster

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circle-system/swipeengine/internal/errs"
	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/vector"
)

// Distance names the distance function DBSCAN measures neighborhoods with.
type Distance string

const (
	DistanceEuclidean Distance = "euclidean"
	DistanceCosine    Distance = "cosine"
	DistanceManhattan Distance = "manhattan"
)

// Config configures a Clusterer. Zero-value Config is invalid; use
// NewClusterer to construct one with validation.
type Config struct {
	Epsilon   float64
	MinPoints int
	Distance  Distance
	// Workers bounds how many goroutines compute neighbor distances
	// concurrently. Defaults to 4 when <= 0.
	Workers int
}

// Clusterer runs DBSCAN over a fixed configuration.
type Clusterer struct {
	epsilon   float64
	minPoints int
	distance  func(a, b model.Vector) (float64, error)
	workers   int
}

// NewClusterer validates cfg and returns a ready Clusterer. Fails
// construction with InvalidConfig on a non-positive epsilon, a minPoints
// below 2, or an unknown distance function.
func NewClusterer(cfg Config) (*Clusterer, error) {
	if cfg.Epsilon <= 0 {
		return nil, errs.InvalidConfig("cluster: epsilon must be positive")
	}
	if cfg.MinPoints < 2 {
		return nil, errs.InvalidConfig("cluster: minPoints must be at least 2")
	}

	var distFn func(a, b model.Vector) (float64, error)
	switch cfg.Distance {
	case DistanceEuclidean, "":
		distFn = vector.EuclideanDistance
	case DistanceCosine:
		distFn = func(a, b model.Vector) (float64, error) {
			sim, err := vector.CosineSimilarity(a, b)
			if err != nil {
				return 0, err
			}
			return 1 - sim, nil
		}
	case DistanceManhattan:
		distFn = vector.ManhattanDistance
	default:
		return nil, errs.InvalidConfig(fmt.Sprintf("cluster: unknown distance function %q", cfg.Distance))
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	return &Clusterer{
		epsilon:   cfg.Epsilon,
		minPoints: cfg.MinPoints,
		distance:  distFn,
		workers:   workers,
	}, nil
}

// Point is a single clustering input: a content identifier and its vector.
type Point struct {
	ContentID string
	Vector    model.Vector
}

// Metadata describes a clustering run beyond the clusters it produced.
type Metadata struct {
	TotalPoints int
	NoisePoints int
	WallTime    time.Duration
	Converged   bool
}

// Result is the output of a clustering run.
type Result struct {
	Clusters    []model.Cluster
	Assignments map[string]string // contentId -> clusterId
	Quality     float64
	Metadata    Metadata
}

// Run executes DBSCAN over points. Empty input returns an empty, converged
// result with quality 0. A single point never forms a cluster.
//
// Fails with InvalidDimension if any two points disagree on vector length.
func (c *Clusterer) Run(ctx context.Context, points []Point) (Result, error) {
	start := time.Now()

	if len(points) == 0 {
		return Result{
			Assignments: map[string]string{},
			Metadata:    Metadata{Converged: true, WallTime: time.Since(start)},
		}, nil
	}

	dim := len(points[0].Vector)
	for _, p := range points[1:] {
		if len(p.Vector) != dim {
			return Result{}, errs.InvalidDimension("cluster: run", dim, len(p.Vector))
		}
	}

	neighborIdx, err := c.neighborLists(ctx, points)
	if err != nil {
		return Result{}, err
	}

	n := len(points)
	visited := make([]bool, n)
	labels := make([]int, n) // -1 = noise, otherwise cluster index
	for i := range labels {
		labels[i] = -1
	}

	var memberIdx [][]int
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := neighborIdx[i]
		if len(neighbors)+1 < c.minPoints { // +1: getNeighbors excludes the point itself
			continue // remains noise
		}

		clusterID := len(memberIdx)
		labels[i] = clusterID
		queue := append([]int{}, neighbors...)

		for j := 0; j < len(queue); j++ {
			q := queue[j]
			if !visited[q] {
				visited[q] = true
				qNeighbors := neighborIdx[q]
				if len(qNeighbors)+1 >= c.minPoints {
					queue = append(queue, qNeighbors...)
				}
			}
			if labels[q] == -1 {
				labels[q] = clusterID
			}
		}

		members := make([]int, 0)
		for idx, l := range labels {
			if l == clusterID {
				members = append(members, idx)
			}
		}
		memberIdx = append(memberIdx, members)
	}

	clusters := make([]model.Cluster, 0, len(memberIdx))
	assignments := make(map[string]string, n)
	noiseCount := 0
	var coherenceSum float64

	for ci, members := range memberIdx {
		vecs := make([]model.Vector, len(members))
		for i, idx := range members {
			vecs[i] = points[idx].Vector
		}
		centroid, err := vector.AverageVectors(vecs)
		if err != nil {
			return Result{}, err
		}
		centroid = vector.NormalizeL2(centroid)

		var distSum float64
		for _, idx := range members {
			d, err := vector.EuclideanDistance(points[idx].Vector, centroid)
			if err != nil {
				return Result{}, err
			}
			distSum += d
		}
		meanDist := distSum / float64(len(members))
		coherence := math.Max(0, 1-meanDist)
		coherenceSum += coherence

		id := fmt.Sprintf("cluster-%d", ci)
		clusters = append(clusters, model.Cluster{
			ID:        id,
			Centroid:  centroid,
			Size:      len(members),
			Density:   float64(len(members)) / (math.Pi * c.epsilon * c.epsilon),
			Coherence: coherence,
		})
		for _, idx := range members {
			assignments[points[idx].ContentID] = id
		}
	}

	for _, l := range labels {
		if l == -1 {
			noiseCount++
		}
	}

	pointsInClusters := n - noiseCount
	var quality float64
	if n > 0 && len(clusters) > 0 {
		quality = (float64(pointsInClusters) / float64(n)) * (coherenceSum / float64(len(clusters)))
	}

	return Result{
		Clusters:    clusters,
		Assignments: assignments,
		Quality:     quality,
		Metadata: Metadata{
			TotalPoints: n,
			NoisePoints: noiseCount,
			WallTime:    time.Since(start),
			Converged:   true,
		},
	}, nil
}

// neighborLists computes, for every point, the indices of points within
// epsilon. The O(N^2) distance matrix is split across workers goroutines,
// following the bounded-worker-pool shape used elsewhere in this codebase
// for batch distance computation.
func (c *Clusterer) neighborLists(ctx context.Context, points []Point) ([][]int, error) {
	n := len(points)
	result := make([][]int, n)

	g, ctx := errgroup.WithContext(ctx)
	chunk := (n + c.workers - 1) / c.workers
	if chunk == 0 {
		chunk = n
	}

	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		start, end := start, end
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				neighbors, err := c.getNeighbors(points, i)
				if err != nil {
					return err
				}
				result[i] = neighbors
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Clusterer) getNeighbors(points []Point, idx int) ([]int, error) {
	neighbors := make([]int, 0)
	for j, p := range points {
		if j == idx {
			continue
		}
		d, err := c.distance(points[idx].Vector, p.Vector)
		if err != nil {
			return nil, err
		}
		if d <= c.epsilon {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors, nil
}
