// Package candidate pulls content ids from matched clusters and turns them
// into ranking candidates, excluding already-seen items.
//
// The "fetch, skip excluded, log and degrade to empty on repository error"
// shape follows the teacher's search.OutboxWorker poll loop: a collaborator
// failure here never fails the caller's request, it just yields a smaller
// (possibly empty) result.
package candidate

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/repo"
)

// Config configures a Selector. Zero values fall back to the spec's
// defaults (timeWindowHours=168, minClusterScore=0.2).
type Config struct {
	TimeWindowHours int
	MinClusterScore float64
}

// Selector implements selectCandidates (spec §4.5).
type Selector struct {
	clusters     repo.ClusterRepo
	interactions repo.InteractionRepo
	timeWindow   int
	minScore     float64
	logger       *slog.Logger
}

// New constructs a Selector.
func New(clusters repo.ClusterRepo, interactions repo.InteractionRepo, cfg Config, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	timeWindow := cfg.TimeWindowHours
	if timeWindow <= 0 {
		timeWindow = 168
	}
	minScore := cfg.MinClusterScore
	if minScore <= 0 {
		minScore = 0.2
	}
	return &Selector{
		clusters:     clusters,
		interactions: interactions,
		timeWindow:   timeWindow,
		minScore:     minScore,
		logger:       logger,
	}
}

// Options bounds a single selectCandidates call.
type Options struct {
	UserID string
	Limit  int
}

// excludedInteractionTypes are the interaction kinds that mark content as
// "already seen" for exclusion purposes: every terminal outcome, not just
// positive engagement.
var excludedInteractionTypes = []model.InteractionType{
	model.InteractionView,
	model.InteractionCompleteView,
	model.InteractionPartialView,
	model.InteractionLike,
	model.InteractionLikeComment,
	model.InteractionComment,
	model.InteractionShare,
	model.InteractionSave,
	model.InteractionDislike,
	model.InteractionSkip,
	model.InteractionReport,
	model.InteractionShowLessOften,
}

// SelectCandidates implements spec §4.5. Repository errors are logged and
// never fail the caller's request: if the exclusion set cannot be fetched
// it returns an empty, non-nil slice; a failed cluster-stats fetch proceeds
// without size/density, a failed member fetch skips that cluster, and a
// failed assignment lookup uses zero similarity.
func (s *Selector) SelectCandidates(ctx context.Context, matches []model.MatchResult, opts Options) []model.Candidate {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	retained := make([]model.MatchResult, 0, len(matches))
	for _, m := range matches {
		if m.Score >= s.minScore {
			retained = append(retained, m)
		}
	}
	if len(retained) == 0 {
		return []model.Candidate{}
	}

	cutoff := time.Now().Add(-time.Duration(s.timeWindow) * time.Hour)

	excluded, err := s.interactions.FindInteractedContentIDs(ctx, opts.UserID, excludedInteractionTypes)
	if err != nil {
		s.logger.Warn("candidate: failed to fetch exclusion set, degrading to empty result",
			"userId", opts.UserID, "error", err)
		return []model.Candidate{}
	}
	excludedSet := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = struct{}{}
	}

	perCluster := int(math.Ceil(float64(limit)/float64(len(retained)))) * 2
	if perCluster <= 0 {
		perCluster = 2
	}

	clusterIDs := make([]string, len(retained))
	for i, m := range retained {
		clusterIDs[i] = m.ClusterID
	}
	clusterInfo := make(map[string]model.Cluster, len(clusterIDs))
	if clusters, err := s.clusters.FindByIDs(ctx, clusterIDs); err != nil {
		s.logger.Warn("candidate: failed to fetch cluster stats, proceeding without size/density",
			"error", err)
	} else {
		for _, c := range clusters {
			clusterInfo[c.ID] = c
		}
	}

	byContentID := make(map[string]model.Candidate)
	for _, m := range retained {
		contentIDs, err := s.clusters.FindContentIDsByClusterID(ctx, m.ClusterID, perCluster)
		if err != nil {
			s.logger.Warn("candidate: failed to fetch cluster members, skipping cluster",
				"clusterId", m.ClusterID, "error", err)
			continue
		}

		for _, contentID := range contentIDs {
			if _, skip := excludedSet[contentID]; skip {
				continue
			}

			assignments, err := s.clusters.FindAssignmentsByContentID(ctx, contentID)
			if err != nil {
				s.logger.Warn("candidate: failed to fetch assignment, using zero similarity",
					"contentId", contentID, "error", err)
			}
			similarity := 0.0
			var assigned model.ClusterAssignment
			var haveAssignment bool
			for _, a := range assignments {
				if a.ClusterID == m.ClusterID {
					similarity = a.Similarity
					assigned = a
					haveAssignment = true
					break
				}
			}
			// An assignment older than the time window is past its relevance
			// horizon for this selection pass; a missing or zero-valued
			// AssignedAt can't be judged for recency and is left unfiltered.
			if haveAssignment && !assigned.AssignedAt.IsZero() && assigned.AssignedAt.Before(cutoff) {
				continue
			}

			meta := model.CandidateMetadata{Similarity: similarity}
			if info, ok := clusterInfo[m.ClusterID]; ok {
				meta.ClusterSize = info.Size
				meta.ClusterDensity = info.Density
				meta.Topics = info.Topics
			}

			cand := model.Candidate{
				ContentID:    contentID,
				ClusterID:    m.ClusterID,
				ClusterScore: m.Score,
				Metadata:     meta,
			}

			if existing, ok := byContentID[contentID]; !ok || cand.ClusterScore > existing.ClusterScore {
				byContentID[contentID] = cand
			}
		}
	}

	candidates := make([]model.Candidate, 0, len(byContentID))
	for _, c := range byContentID {
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ClusterScore > candidates[j].ClusterScore
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
