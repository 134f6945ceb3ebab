// Package clustermatch scores clusters against a user and returns the
// ones worth drawing candidates from.
//
// The weighted, documented-sub-term formula here follows the shape of
// the teacher's search.ReScore: a handful of named signals, each
// contributing zero when its input is absent, combined into one score and
// then sorted and truncated.
package clustermatch

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/vector"
)

// Config configures a Matcher. Weights need not be pre-normalized; the
// constructor renormalizes them to sum to 1 and logs a warning when it had
// to.
type Config struct {
	EmbeddingWeight   float64
	InterestWeight    float64
	ContextWeight     float64
	MinMatchThreshold float64
	MaxClusters       int
}

// Matcher implements findRelevantClusters.
type Matcher struct {
	embeddingWeight float64
	interestWeight  float64
	contextWeight   float64
	minMatch        float64
	maxClusters     int
	logger          *slog.Logger
	rng             *rand.Rand
}

// New constructs a Matcher. Weights are renormalized to sum to 1; if the
// input was not already normalized, a warning is logged once at
// construction time rather than on every call.
func New(cfg Config, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}

	sum := cfg.EmbeddingWeight + cfg.InterestWeight + cfg.ContextWeight
	ew, iw, cw := cfg.EmbeddingWeight, cfg.InterestWeight, cfg.ContextWeight
	if sum > 0 && (sum < 0.999999 || sum > 1.000001) {
		ew, iw, cw = ew/sum, iw/sum, cw/sum
		logger.Warn("clustermatch: weights were not normalized, renormalizing",
			"embeddingWeight", cfg.EmbeddingWeight,
			"interestWeight", cfg.InterestWeight,
			"contextWeight", cfg.ContextWeight)
	}

	maxClusters := cfg.MaxClusters
	if maxClusters <= 0 {
		maxClusters = 20
	}

	return &Matcher{
		embeddingWeight: ew,
		interestWeight:  iw,
		contextWeight:   cw,
		minMatch:        cfg.MinMatchThreshold,
		maxClusters:     maxClusters,
		logger:          logger,
		rng:             rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithRandomSource overrides the Matcher's source of randomness for the
// cold-start default allocation (§4.4 branch 3), making it reproducible in
// tests and support tooling.
func (m *Matcher) WithRandomSource(rng *rand.Rand) *Matcher {
	m.rng = rng
	return m
}

// FindRelevantClusters scores clusters against the available user signals
// and returns the top matches, sorted by similarity descending and
// truncated to MaxClusters. userVector and userProfile and reqCtx may all
// be nil.
func (m *Matcher) FindRelevantClusters(
	ctx context.Context,
	clusters []model.Cluster,
	userVector model.Vector,
	userProfile *model.UserProfile,
	reqCtx *model.RequestContext,
) ([]model.MatchResult, error) {
	var results []model.MatchResult

	switch {
	case userVector != nil:
		r, err := m.matchByEmbedding(clusters, userVector, userProfile, reqCtx)
		if err != nil {
			return nil, err
		}
		results = r
	case userProfile != nil:
		results = m.matchByProfile(clusters, userProfile, reqCtx)
	default:
		results = m.matchColdStart(clusters)
	}

	filtered := make([]model.MatchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity >= m.minMatch {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Similarity > filtered[j].Similarity
	})
	if len(filtered) > m.maxClusters {
		filtered = filtered[:m.maxClusters]
	}
	return filtered, nil
}

func (m *Matcher) matchByEmbedding(clusters []model.Cluster, userVector model.Vector, profile *model.UserProfile, reqCtx *model.RequestContext) ([]model.MatchResult, error) {
	normUser := vector.NormalizeL2(userVector)
	results := make([]model.MatchResult, 0, len(clusters))

	for _, c := range clusters {
		normCentroid := vector.NormalizeL2(c.Centroid)
		base, err := vector.CosineSimilarity(normUser, normCentroid)
		if err != nil {
			return nil, err
		}

		similarity := base
		if profile != nil && reqCtx != nil {
			boost := m.contextualBoost(profile, reqCtx, c)
			similarity = (1-m.contextWeight)*base + m.contextWeight*boost
		}

		results = append(results, model.MatchResult{
			ClusterID:  c.ID,
			Similarity: similarity,
			Score:      similarity,
		})
	}
	return results, nil
}

func (m *Matcher) matchByProfile(clusters []model.Cluster, profile *model.UserProfile, reqCtx *model.RequestContext) []model.MatchResult {
	results := make([]model.MatchResult, 0, len(clusters))
	for _, c := range clusters {
		similarity := 0.5
		shared := sharedInterestCount(profile.Interests, c.Topics)
		similarity += minFloat(0.3, 0.1*float64(shared))

		if reqCtx != nil {
			similarity += m.contextWeight * m.contextualBoost(profile, reqCtx, c)
		}

		results = append(results, model.MatchResult{
			ClusterID:  c.ID,
			Similarity: similarity,
			Score:      similarity,
		})
	}
	return results
}

// matchColdStart implements §4.4 branch 3: a diversified default ranking
// when neither a user embedding nor a profile is available, partitioning
// clusters by relative size into small/medium/large buckets and allocating
// 60%/30%/10% of the result slots to large/medium/small respectively.
func (m *Matcher) matchColdStart(clusters []model.Cluster) []model.MatchResult {
	if len(clusters) == 0 {
		return nil
	}

	var totalSize int
	for _, c := range clusters {
		totalSize += c.Size
	}
	mean := float64(totalSize) / float64(len(clusters))

	var small, medium, large []model.Cluster
	for _, c := range clusters {
		switch {
		case float64(c.Size) < mean*0.5:
			small = append(small, c)
		case float64(c.Size) > mean*1.5:
			large = append(large, c)
		default:
			medium = append(medium, c)
		}
	}

	byDensityThenSize := func(bucket []model.Cluster) {
		sort.SliceStable(bucket, func(i, j int) bool {
			if bucket[i].Density != bucket[j].Density {
				return bucket[i].Density > bucket[j].Density
			}
			return bucket[i].Size > bucket[j].Size
		})
	}
	byDensityThenSize(small)
	byDensityThenSize(medium)
	byDensityThenSize(large)

	targetTotal := len(clusters)
	allocations := []struct {
		bucket []model.Cluster
		ratio  float64
	}{
		{large, 0.6},
		{medium, 0.3},
		{small, 0.1},
	}

	results := make([]model.MatchResult, 0, targetTotal)
	for _, alloc := range allocations {
		take := int(float64(targetTotal)*alloc.ratio + 0.5)
		if take > len(alloc.bucket) {
			take = len(alloc.bucket)
		}
		for _, c := range alloc.bucket[:take] {
			sizeScore := 0.0
			if mean > 0 {
				sizeScore = minFloat(1.0, float64(c.Size)/mean)
			}
			similarity := 0.6*sizeScore + 0.4*c.Density
			noise := m.rng.Float64() * 0.01
			results = append(results, model.MatchResult{
				ClusterID:  c.ID,
				Similarity: similarity,
				Score:      similarity + noise,
			})
		}
	}
	return results
}

// contextualBoost implements §4.4's contextualBoost formula.
func (m *Matcher) contextualBoost(profile *model.UserProfile, reqCtx *model.RequestContext, c model.Cluster) float64 {
	var boost float64

	if c.ActiveTime != nil && reqCtx.TimeOfDay != nil && c.ActiveTime.Contains(*reqCtx.TimeOfDay) {
		boost += 0.20
	}

	shared := sharedInterestCount(profile.Interests, c.Topics)
	boost += minFloat(0.30, 0.10*float64(shared))

	if reqCtx.Location != "" && c.Geography != "" && reqCtx.Location == c.Geography {
		boost += 0.15
	}

	if profile.Demographic.Language != "" && containsString(c.Languages, profile.Demographic.Language) {
		boost += 0.15
	}

	return boost
}

func sharedInterestCount(interests, topics []string) int {
	topicSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		topicSet[t] = struct{}{}
	}
	count := 0
	for _, i := range interests {
		if _, ok := topicSet[i]; ok {
			count++
		}
	}
	return count
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
