// Package engine orchestrates the recommendation pipeline: fetch user
// signals, match clusters, select candidates, rank, and trim to the
// caller's requested size.
//
// The coalesced single-in-flight recluster job follows the teacher's
// search.OutboxWorker start/drain lifecycle (an atomic.Bool guard plus a
// pending-run flag instead of a queue), adapted from a poll loop to an
// on-demand batch job.
package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circle-system/swipeengine/internal/candidate"
	"github.com/circle-system/swipeengine/internal/cluster"
	"github.com/circle-system/swipeengine/internal/clustermatch"
	"github.com/circle-system/swipeengine/internal/errs"
	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/ranker"
	"github.com/circle-system/swipeengine/internal/repo"
	"github.com/circle-system/swipeengine/internal/vector"
)

// defaultLimit is getRecommendations' limit when the request omits one.
const defaultLimit = 20

// profileInteractionWindow is how many of a user's most recent
// interactions feed profile-building (spec §4.8 step 2).
const profileInteractionWindow = 100

// profileTopTopics bounds how many most-frequent topics become interests.
const profileTopTopics = 10

// Config configures an Engine's batch behavior.
type Config struct {
	ReclusterBatchSize int
	// ColdStartSeed, when ColdStartSeedSet is true, makes the cluster
	// matcher's cold-start diversified-default fallback deterministic
	// (spec §9 open question).
	ColdStartSeed    int64
	ColdStartSeedSet bool
}

// Engine implements getRecommendations and reclusterMoments (spec §4.8).
type Engine struct {
	userEmbeddings    repo.UserEmbeddingRepo
	contentEmbeddings repo.ContentEmbeddingRepo
	clusters          repo.ClusterRepo
	interactions      repo.InteractionRepo

	clusterer *cluster.Clusterer
	matcher   *clustermatch.Matcher
	selector  *candidate.Selector
	ranker    *ranker.Ranker

	logger             *slog.Logger
	reclusterBatchSize int

	reclustering atomic.Bool
	mu           sync.Mutex
	pendingRun   bool
}

// New constructs an Engine. clusterer, matcher, selector, and ranker are
// pre-built collaborators; the engine only sequences calls to them.
func New(
	userEmbeddings repo.UserEmbeddingRepo,
	contentEmbeddings repo.ContentEmbeddingRepo,
	clusters repo.ClusterRepo,
	interactions repo.InteractionRepo,
	clusterer *cluster.Clusterer,
	matcher *clustermatch.Matcher,
	selector *candidate.Selector,
	rnk *ranker.Ranker,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ColdStartSeedSet {
		matcher = matcher.WithRandomSource(rand.New(rand.NewPCG(uint64(cfg.ColdStartSeed), uint64(cfg.ColdStartSeed)+1)))
	}
	batchSize := cfg.ReclusterBatchSize
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &Engine{
		userEmbeddings:     userEmbeddings,
		contentEmbeddings:  contentEmbeddings,
		clusters:           clusters,
		interactions:       interactions,
		clusterer:          clusterer,
		matcher:            matcher,
		selector:           selector,
		ranker:             rnk,
		logger:             logger,
		reclusterBatchSize: batchSize,
	}
}

// Request is the input to GetRecommendations.
type Request struct {
	UserID     string
	Limit      int
	ExcludeIDs []string
	Context    *model.RequestContext

	NoveltyLevel   *float64
	DiversityLevel *float64
}

// GetRecommendations implements spec §4.8. On any unrecoverable error it
// returns an empty, non-nil slice rather than propagating the error.
func (e *Engine) GetRecommendations(ctx context.Context, req Request) []model.Recommendation {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	userVector, profile := e.fetchUserSignals(ctx, req.UserID)

	clusters, err := e.clusters.FindAll(ctx)
	if err != nil {
		e.logger.Warn("engine: failed to fetch clusters, returning empty recommendations",
			"userId", req.UserID, "error", err)
		return []model.Recommendation{}
	}
	if len(clusters) == 0 {
		if err := e.ReclusterMoments(ctx); err != nil {
			e.logger.Warn("engine: recluster failed while bootstrapping empty cluster set",
				"error", err)
		}
		clusters, err = e.clusters.FindAll(ctx)
		if err != nil {
			e.logger.Warn("engine: failed to refetch clusters after recluster", "error", err)
			return []model.Recommendation{}
		}
	}

	if userVector == nil && profile == nil && len(clusters) == 0 {
		e.logger.Info("engine: no user embedding, no profile, and no clusters; returning empty list",
			"userId", req.UserID, "missingRequirement", errs.ErrMissingRequirement)
		return []model.Recommendation{}
	}

	if ctx.Err() != nil {
		return []model.Recommendation{}
	}

	matches, err := e.matcher.FindRelevantClusters(ctx, clusters, userVector, profile, req.Context)
	if err != nil {
		e.logger.Warn("engine: cluster matching failed, returning empty recommendations",
			"userId", req.UserID, "error", err)
		return []model.Recommendation{}
	}

	candidates := e.selector.SelectCandidates(ctx, matches, candidate.Options{
		UserID: req.UserID,
		Limit:  limit * 3,
	})

	if ctx.Err() != nil {
		return []model.Recommendation{}
	}

	contentVectors := e.fetchContentVectors(ctx, candidates)

	var userInterests []string
	if profile != nil {
		userInterests = profile.Interests
	}

	ranked := e.ranker.RankCandidates(ctx, candidates, ranker.Options{
		UserVector:     userVector,
		ContentVectors: contentVectors,
		UserInterests:  userInterests,
		Context:        req.Context,
		NoveltyLevel:   req.NoveltyLevel,
		DiversityLevel: req.DiversityLevel,
	})

	excluded := make(map[string]struct{}, len(req.ExcludeIDs))
	for _, id := range req.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	recommendations := make([]model.Recommendation, 0, limit)
	for _, rc := range ranked {
		if _, skip := excluded[rc.Candidate.ContentID]; skip {
			continue
		}
		recommendations = append(recommendations, model.Recommendation{
			ContentID: rc.Candidate.ContentID,
			Score:     rc.FinalScore,
			Reason:    selectReason(rc.SubScores),
			ClusterID: rc.Candidate.ClusterID,
			Metadata:  rc.Candidate.Metadata,
		})
		if len(recommendations) >= limit {
			break
		}
	}
	return recommendations
}

func selectReason(s model.SubScores) string {
	switch {
	case s.Relevance > 0.7:
		return "Highly relevant"
	case s.Novelty > 0.7:
		return "Fresh content"
	case s.Engagement > 0.7:
		return "Popular with others"
	default:
		return "Recommended for you"
	}
}

// fetchUserSignals fetches the user's embedding (if any) and builds a
// profile from their most recent interactions (spec §4.8 steps 1-2).
// Both may come back nil; repository errors degrade to nil rather than
// failing the request.
func (e *Engine) fetchUserSignals(ctx context.Context, userID string) (model.Vector, *model.UserProfile) {
	var userVector model.Vector
	var profile *model.UserProfile

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		emb, err := e.userEmbeddings.FindByUserID(gctx, userID)
		if err != nil {
			e.logger.Warn("engine: failed to fetch user embedding", "userId", userID, "error", err)
			return nil
		}
		if emb != nil {
			userVector = emb.Vector
		}
		return nil
	})
	g.Go(func() error {
		p, err := e.buildProfile(gctx, userID)
		if err != nil {
			e.logger.Warn("engine: failed to build user profile", "userId", userID, "error", err)
			return nil
		}
		profile = p
		return nil
	})
	_ = g.Wait()

	return userVector, profile
}

func (e *Engine) buildProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	interactions, err := e.interactions.FindByUserID(ctx, userID, profileInteractionWindow, 0)
	if err != nil {
		return nil, err
	}
	if len(interactions) == 0 {
		return nil, nil
	}

	freq := make(map[string]int)
	for _, in := range interactions {
		for _, t := range in.Metadata.Topics {
			freq[t]++
		}
	}
	if len(freq) == 0 {
		return &model.UserProfile{UserID: userID}, nil
	}

	topics := make([]string, 0, len(freq))
	for t := range freq {
		topics = append(topics, t)
	}
	sort.SliceStable(topics, func(i, j int) bool {
		if freq[topics[i]] != freq[topics[j]] {
			return freq[topics[i]] > freq[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > profileTopTopics {
		topics = topics[:profileTopTopics]
	}

	return &model.UserProfile{UserID: userID, Interests: topics}, nil
}

// fetchContentVectors loads the cached content embeddings for a batch of
// candidates, used only by the ranker's relevance sub-score. Missing or
// failed lookups simply leave that candidate without a cached vector.
func (e *Engine) fetchContentVectors(ctx context.Context, candidates []model.Candidate) map[string]model.Vector {
	if len(candidates) == 0 {
		return nil
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ContentID
	}

	embeddings, err := e.contentEmbeddings.FindByIDs(ctx, ids)
	if err != nil {
		e.logger.Warn("engine: failed to fetch content vectors for ranking", "error", err)
		return nil
	}

	out := make(map[string]model.Vector, len(embeddings))
	for _, emb := range embeddings {
		out[emb.ContentID] = emb.Vector
	}
	return out
}

// ReclusterMoments loads up to reclusterBatchSize content embeddings, runs
// DBSCAN, and persists the clusters and assignments as a full replacement
// of the prior set. Idempotent with respect to the input set: re-running
// against an unchanged embedding set produces the same clusters.
//
// At most one recluster runs at a time; a call arriving while one is in
// flight is coalesced into a single pending run rather than queued or
// rejected.
func (e *Engine) ReclusterMoments(ctx context.Context) error {
	if !e.reclustering.CompareAndSwap(false, true) {
		e.mu.Lock()
		e.pendingRun = true
		e.mu.Unlock()
		return nil
	}

	err := e.runRecluster(ctx)
	e.reclustering.Store(false)

	e.mu.Lock()
	runAgain := e.pendingRun
	e.pendingRun = false
	e.mu.Unlock()
	if runAgain {
		return e.ReclusterMoments(ctx)
	}
	return err
}

func (e *Engine) runRecluster(ctx context.Context) error {
	start := time.Now()
	embeddings, err := e.contentEmbeddings.FindAll(ctx, e.reclusterBatchSize, 0)
	if err != nil {
		return errs.Repository("engine: recluster: fetch embeddings", err)
	}

	points := make([]cluster.Point, len(embeddings))
	for i, emb := range embeddings {
		points[i] = cluster.Point{ContentID: emb.ContentID, Vector: emb.Vector}
	}

	result, err := e.clusterer.Run(ctx, points)
	if err != nil {
		return errs.Repository("engine: recluster: run clusterer", err)
	}

	existing, err := e.clusters.FindAll(ctx)
	if err != nil {
		return errs.Repository("engine: recluster: fetch existing clusters", err)
	}
	for _, c := range existing {
		if err := e.clusters.Delete(ctx, c.ID); err != nil {
			e.logger.Warn("engine: recluster: failed to delete stale cluster", "clusterId", c.ID, "error", err)
		}
	}

	if len(result.Clusters) > 0 {
		if err := e.clusters.SaveMany(ctx, result.Clusters); err != nil {
			return errs.Repository("engine: recluster: save clusters", err)
		}
	}

	centroids := make(map[string]model.Vector, len(result.Clusters))
	for _, c := range result.Clusters {
		centroids[c.ID] = c.Centroid
	}
	vectorByContentID := make(map[string]model.Vector, len(points))
	for _, p := range points {
		vectorByContentID[p.ContentID] = p.Vector
	}

	for contentID, clusterID := range result.Assignments {
		if err := e.clusters.DeleteAssignmentsByContentID(ctx, contentID); err != nil {
			e.logger.Warn("engine: recluster: failed to clear prior assignments", "contentId", contentID, "error", err)
		}

		similarity := 0.0
		if sim, err := vector.CosineSimilarity(vectorByContentID[contentID], centroids[clusterID]); err == nil {
			similarity = sim
		}

		if err := e.clusters.SaveAssignment(ctx, model.ClusterAssignment{
			ContentID:  contentID,
			ClusterID:  clusterID,
			Similarity: similarity,
			AssignedAt: time.Now(),
		}); err != nil {
			e.logger.Warn("engine: recluster: failed to save assignment", "contentId", contentID, "error", err)
		}
	}

	e.logger.Info("engine: recluster complete",
		"totalPoints", result.Metadata.TotalPoints,
		"noisePoints", result.Metadata.NoisePoints,
		"clusters", len(result.Clusters),
		"quality", result.Quality,
		"wallTime", time.Since(start))
	return nil
}
