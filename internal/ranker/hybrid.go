package ranker

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/vector"
)

// HybridConfig configures a HybridRanker. Weights need not pre-sum to 1;
// they are renormalized on construction and on every UpdateConfig call.
type HybridConfig struct {
	SimilarityWeight float64
	EngagementWeight float64
	RecencyWeight    float64
	MinSimilarity    float64
	RecencyDecayDays float64
}

// HybridRanker is the stateless alternative ranking surface (spec §4.7):
// repeated calls with identical inputs produce byte-identical outputs,
// since it never reads a clock or an RNG — callers supply "now" as Rank's
// referenceTime argument, and recency is measured from it.
type HybridRanker struct {
	mu  sync.RWMutex
	cfg HybridConfig
}

// NewHybridRanker constructs a HybridRanker with normalized weights.
func NewHybridRanker(cfg HybridConfig) *HybridRanker {
	h := &HybridRanker{}
	h.cfg = normalizeHybridConfig(cfg)
	return h
}

// UpdateConfig replaces the ranker's weights, renormalizing them to sum
// to 1 within 1e-5 (spec §8 invariant 7).
func (h *HybridRanker) UpdateConfig(cfg HybridConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = normalizeHybridConfig(cfg)
}

func normalizeHybridConfig(cfg HybridConfig) HybridConfig {
	sum := cfg.SimilarityWeight + cfg.EngagementWeight + cfg.RecencyWeight
	if sum <= 0 {
		cfg.SimilarityWeight, cfg.EngagementWeight, cfg.RecencyWeight = 1.0/3, 1.0/3, 1.0/3
	} else {
		cfg.SimilarityWeight /= sum
		cfg.EngagementWeight /= sum
		cfg.RecencyWeight /= sum
	}
	if cfg.RecencyDecayDays <= 0 {
		cfg.RecencyDecayDays = 14
	}
	return cfg
}

// Rank implements HybridRanker.rank (spec §4.7). queryVector is compared
// against each item's content vector; items below minSimilarity are
// dropped. The result is ordered by score descending.
//
// referenceTime anchors the recency decay; since the ranker itself must
// never read the clock to stay pure (spec §8 invariant 6), the caller
// supplies "now".
func (h *HybridRanker) Rank(_ context.Context, referenceTime time.Time, queryVector model.Vector, items []model.RankableItem) ([]model.RankedItem, error) {
	h.mu.RLock()
	cfg := h.cfg
	h.mu.RUnlock()

	ranked := make([]model.RankedItem, 0, len(items))
	for _, item := range items {
		sim, err := vector.CosineSimilarity(queryVector, item.ContentVector)
		if err != nil {
			return nil, err
		}
		if sim < cfg.MinSimilarity {
			continue
		}

		engagementScore := hybridEngagementScore(item.Engagement)
		ageDays := referenceTime.Sub(item.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		recency := clamp01(math.Exp(-ageDays / cfg.RecencyDecayDays))

		score := cfg.SimilarityWeight*sim + cfg.EngagementWeight*engagementScore + cfg.RecencyWeight*recency
		ranked = append(ranked, model.RankedItem{Item: item, Score: clamp01(score)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// hybridEngagementScore derives the same rate-based features
// EngagementFeatures computes, but without a watch-duration input
// (RankableItem carries raw counters, not session duration) the
// retention term of qualityScore is necessarily 0.
func hybridEngagementScore(m *model.EngagementMetrics) float64 {
	if m == nil || m.Views == 0 {
		return 0
	}
	views := float64(m.Views)
	likeRate := float64(m.Likes) / views
	commentRate := float64(m.Comments) / views
	shareRate := float64(m.Shares) / views
	saveRate := float64(m.Saves) / views
	reportRate := float64(m.Reports) / views

	viralityScore := (shareRate + saveRate) / 2
	qualityScore := math.Max(0, m.CompletionRate-2*reportRate)

	return clamp01(0.4*qualityScore + 0.3*viralityScore + 0.15*likeRate + 0.15*commentRate)
}
