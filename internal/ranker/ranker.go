// Package ranker computes per-candidate sub-scores, combines them into a
// final score, and applies MMR-style diversification.
//
// The sub-score combination mirrors the teacher's search.ReScore: a
// handful of named, independently-computed contributions summed under a
// single formula, sorted, and truncated. Per-candidate failure recovery
// (spec §4.6, §7, §9 "exception-driven control flow") is a deferred
// recover() that substitutes neutral sub-scores, never propagated to the
// caller.
package ranker

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/vector"
)

// engagementCalibration is the divisor applied to the legacy weighted
// engagement total before capping at 1. Chosen so a candidate with ~500
// likes and proportionate comments/shares saturates the sub-score.
const engagementCalibration = 500.0

// Config configures a Ranker's base weights. Weights need not pre-sum to
// 1; renormalization happens after any per-request adjustment.
type Config struct {
	RelevanceWeight  float64
	EngagementWeight float64
	NoveltyWeight    float64
	DiversityWeight  float64
	ContextWeight    float64

	PeakHoursWeight        float64
	LowEngagementWeight    float64
	WeekendWeight          float64
	MidWeekWeight          float64
	WeekStartEndWeight     float64
	SameLocationWeight     float64
	DifferentLocationWeight float64
}

func defaultConfig() Config {
	return Config{
		RelevanceWeight:  0.40,
		EngagementWeight: 0.25,
		NoveltyWeight:    0.15,
		DiversityWeight:  0.10,
		ContextWeight:    0.10,

		PeakHoursWeight:         0.20,
		LowEngagementWeight:     0.10,
		WeekendWeight:           0.15,
		MidWeekWeight:           0.10,
		WeekStartEndWeight:      0.05,
		SameLocationWeight:      0.20,
		DifferentLocationWeight: 0.10,
	}
}

// Ranker implements rankCandidates (spec §4.6).
type Ranker struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a Ranker. When all five base weights are zero they all
// take the spec's base weights; otherwise they are used as given. Each
// peak/off-peak, day-of-week and location weight that is zero falls back
// to its default individually.
func New(cfg Config, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	d := defaultConfig()
	if cfg.RelevanceWeight == 0 && cfg.EngagementWeight == 0 && cfg.NoveltyWeight == 0 && cfg.DiversityWeight == 0 && cfg.ContextWeight == 0 {
		cfg = d
	}
	if cfg.PeakHoursWeight == 0 {
		cfg.PeakHoursWeight = d.PeakHoursWeight
	}
	if cfg.LowEngagementWeight == 0 {
		cfg.LowEngagementWeight = d.LowEngagementWeight
	}
	if cfg.WeekendWeight == 0 {
		cfg.WeekendWeight = d.WeekendWeight
	}
	if cfg.MidWeekWeight == 0 {
		cfg.MidWeekWeight = d.MidWeekWeight
	}
	if cfg.WeekStartEndWeight == 0 {
		cfg.WeekStartEndWeight = d.WeekStartEndWeight
	}
	if cfg.SameLocationWeight == 0 {
		cfg.SameLocationWeight = d.SameLocationWeight
	}
	if cfg.DifferentLocationWeight == 0 {
		cfg.DifferentLocationWeight = d.DifferentLocationWeight
	}
	return &Ranker{cfg: cfg, logger: logger}
}

// Options parameterizes a single RankCandidates call.
type Options struct {
	UserVector model.Vector
	// ContentVectors maps contentId to its cached content embedding, used
	// only for the relevance sub-score's cosine-similarity term. Absent
	// entries simply skip that term.
	ContentVectors map[string]model.Vector
	UserInterests  []string
	Context        *model.RequestContext

	// NoveltyLevel and DiversityLevel, when non-nil, shift the base
	// weights per spec §4.6. DiversityLevel > 0 also enables MMR
	// diversification of the output order.
	NoveltyLevel   *float64
	DiversityLevel *float64
}

// RankCandidates transforms candidates into an ordered, scored list.
// A panic while computing any single candidate's sub-scores is
// recovered and replaced with neutral (0.5) sub-scores; the call never
// fails because of one bad candidate.
func (r *Ranker) RankCandidates(ctx context.Context, candidates []model.Candidate, opts Options) []model.RankedCandidate {
	weights := r.adjustedWeights(opts)

	ranked := make([]model.RankedCandidate, 0, len(candidates))
	var selected []model.Candidate

	for _, c := range candidates {
		sub := r.scoreCandidateSafe(c, opts, selected)
		final := weights.relevance*sub.Relevance +
			weights.engagement*sub.Engagement +
			weights.novelty*sub.Novelty +
			weights.diversity*sub.Diversity +
			weights.context*sub.Context
		final = clamp01(final)

		ranked = append(ranked, model.RankedCandidate{
			Candidate:  c,
			SubScores:  sub,
			FinalScore: final,
		})

		selected = append(selected, c)
		if len(selected) > 5 {
			selected = selected[len(selected)-5:]
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})

	if opts.DiversityLevel != nil && *opts.DiversityLevel > 0 {
		ranked = diversify(ranked, *opts.DiversityLevel)
	}
	return ranked
}

type adjustedWeightSet struct {
	relevance, engagement, novelty, diversity, context float64
}

// adjustedWeights applies the noveltyLevel/diversityLevel shifts and
// renormalizes, per spec §4.6.
func (r *Ranker) adjustedWeights(opts Options) adjustedWeightSet {
	w := adjustedWeightSet{
		relevance:  r.cfg.RelevanceWeight,
		engagement: r.cfg.EngagementWeight,
		novelty:    r.cfg.NoveltyWeight,
		diversity:  r.cfg.DiversityWeight,
		context:    r.cfg.ContextWeight,
	}

	if opts.NoveltyLevel != nil {
		delta := *opts.NoveltyLevel - 0.3
		w.novelty += delta
		w.relevance -= delta / 2
		w.engagement -= delta / 2
	}
	if opts.DiversityLevel != nil {
		delta := *opts.DiversityLevel - 0.4
		w.diversity += delta
		w.relevance -= delta
	}

	sum := w.relevance + w.engagement + w.novelty + w.diversity + w.context
	if sum <= 0 {
		return adjustedWeightSet{relevance: 0.2, engagement: 0.2, novelty: 0.2, diversity: 0.2, context: 0.2}
	}
	w.relevance /= sum
	w.engagement /= sum
	w.novelty /= sum
	w.diversity /= sum
	w.context /= sum
	return w
}

// scoreCandidateSafe wraps scoreCandidate with panic recovery so a single
// malformed candidate degrades to neutral sub-scores instead of aborting
// the whole ranking pass.
func (r *Ranker) scoreCandidateSafe(c model.Candidate, opts Options, selected []model.Candidate) (sub model.SubScores) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("ranker: recovered panic scoring candidate, using neutral sub-scores",
				"contentId", c.ContentID, "panic", rec)
			sub = neutralSubScores()
		}
	}()
	return r.scoreCandidate(c, opts, selected)
}

func neutralSubScores() model.SubScores {
	return model.SubScores{Relevance: 0.5, Engagement: 0.5, Novelty: 0.5, Diversity: 0.5, Context: 0.5}
}

func (r *Ranker) scoreCandidate(c model.Candidate, opts Options, selected []model.Candidate) model.SubScores {
	return model.SubScores{
		Relevance:  relevanceScore(c, opts),
		Engagement: engagementScore(c),
		Novelty:    noveltyScore(c, opts),
		Diversity:  diversityScore(c, selected),
		Context:    r.contextScore(opts.Context),
	}
}

func relevanceScore(c model.Candidate, opts Options) float64 {
	score := c.ClusterScore * 0.5
	if opts.UserVector != nil {
		if contentVec, ok := opts.ContentVectors[c.ContentID]; ok {
			sim, err := vector.CosineSimilarity(opts.UserVector, contentVec)
			if err == nil {
				score += ((sim + 1) / 2) * 0.5
			}
		}
	}
	return clamp01(score)
}

func engagementScore(c model.Candidate) float64 {
	m := c.Metadata.Engagement
	if m == nil {
		return 0.5
	}
	weightedTotal := float64(m.Likes) + 1.5*float64(m.Comments) + 2*float64(m.Shares) + 0.2*float64(m.Views)
	return clamp01(weightedTotal / engagementCalibration)
}

func noveltyScore(c model.Candidate, opts Options) float64 {
	if c.Metadata.CreatedAt.IsZero() {
		return 0.5
	}
	ageHours := time.Since(c.Metadata.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	recency := math.Exp(-ageHours / 48)

	if len(c.Metadata.Topics) == 0 {
		return clamp01(recency)
	}

	overlap := sharedCount(c.Metadata.Topics, opts.UserInterests)
	topicNovelty := 1 - float64(overlap)/math.Max(1, float64(len(c.Metadata.Topics)))
	return clamp01(recency*0.6 + topicNovelty*0.4)
}

func diversityScore(c model.Candidate, selected []model.Candidate) float64 {
	if len(selected) == 0 {
		return 1.0
	}
	if len(c.Metadata.Topics) == 0 && c.Metadata.Engagement == nil {
		return 0.5
	}

	window := selected
	if len(window) > 5 {
		window = window[len(window)-5:]
	}

	topicDiv := topicDiversityAgainst(c, window)
	if c.Metadata.Engagement == nil {
		return clamp01(topicDiv)
	}
	entropyDiv := engagementEntropyDiversity(c)
	return clamp01((topicDiv + entropyDiv) / 2)
}

func topicDiversityAgainst(c model.Candidate, window []model.Candidate) float64 {
	if len(c.Metadata.Topics) == 0 {
		return 1.0
	}
	var sumOverlapRatio float64
	for _, prev := range window {
		overlap := sharedCount(c.Metadata.Topics, prev.Metadata.Topics)
		sumOverlapRatio += float64(overlap) / math.Max(1, float64(len(c.Metadata.Topics)))
	}
	meanOverlap := sumOverlapRatio / float64(len(window))
	return 1 - meanOverlap
}

// engagementEntropyDiversity computes Shannon entropy over the
// like/comment/share proportions of a candidate's engagement, normalized
// by log2(3) so a perfectly even split scores 1 and a single dominant
// signal scores 0.
func engagementEntropyDiversity(c model.Candidate) float64 {
	m := c.Metadata.Engagement
	total := float64(m.Likes + m.Comments + m.Shares)
	if total <= 0 {
		return 0.5
	}
	proportions := []float64{float64(m.Likes) / total, float64(m.Comments) / total, float64(m.Shares) / total}

	var entropy float64
	for _, p := range proportions {
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return clamp01(entropy / math.Log2(3))
}

func (r *Ranker) contextScore(reqCtx *model.RequestContext) float64 {
	if reqCtx == nil {
		return 0.5
	}

	var total float64
	var count float64

	if reqCtx.TimeOfDay != nil {
		total += r.timeOfDayScore(*reqCtx.TimeOfDay)
		count++
	}
	if reqCtx.Weekday != nil {
		total += r.dayOfWeekScore(*reqCtx.Weekday)
		count++
	}
	if reqCtx.Location != "" {
		// No per-candidate location to compare against here (spec §9:
		// candidates don't carry a location field); a present location
		// context is treated as neutral rather than matched.
		total += 0.5
		count++
	}

	if count == 0 {
		return 0.5
	}
	return clamp01(total / count)
}

// timeOfDayScore implements the peak/off-peak/decay shape from spec §4.6,
// scaled onto [0,1] around a 0.5 baseline.
func (r *Ranker) timeOfDayScore(hour float64) float64 {
	switch {
	case (hour >= 7 && hour <= 9) || (hour >= 18 && hour <= 21):
		return clamp01(0.5 + r.cfg.PeakHoursWeight)
	case hour >= 0 && hour <= 5:
		return clamp01(0.5 - r.cfg.LowEngagementWeight)
	default:
		nearestPeak := nearestPeakHour(hour)
		dist := math.Abs(hour - nearestPeak)
		decay := math.Exp(-dist / 4)
		return clamp01(0.5 + r.cfg.PeakHoursWeight*decay*0.5)
	}
}

func nearestPeakHour(hour float64) float64 {
	peaks := []float64{8, 19.5}
	best := peaks[0]
	bestDist := math.Abs(hour - peaks[0])
	for _, p := range peaks[1:] {
		if d := math.Abs(hour - p); d < bestDist {
			bestDist = d
			best = p
		}
	}
	return best
}

func (r *Ranker) dayOfWeekScore(day time.Weekday) float64 {
	switch day {
	case time.Sunday, time.Saturday:
		return clamp01(0.5 + r.cfg.WeekendWeight)
	case time.Tuesday, time.Wednesday, time.Thursday:
		return clamp01(0.5 + r.cfg.MidWeekWeight)
	default: // Monday, Friday
		return clamp01(0.5 + r.cfg.WeekStartEndWeight)
	}
}

func sharedCount(a, b []string) int {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	count := 0
	for _, v := range a {
		if _, ok := set[v]; ok {
			count++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// diversify reorders ranked by MMR: always keep the current top-1, then
// greedily pick the candidate maximizing (1-λ)*finalScore +
// λ*minDiversityAgainstSelected until every candidate is placed.
func diversify(ranked []model.RankedCandidate, lambda float64) []model.RankedCandidate {
	if len(ranked) <= 1 {
		return ranked
	}

	selected := []model.RankedCandidate{ranked[0]}
	remaining := append([]model.RankedCandidate{}, ranked[1:]...)

	for len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i, cand := range remaining {
			minDiv := math.Inf(1)
			for _, sel := range selected {
				d := topicDiversityAgainst(cand.Candidate, []model.Candidate{sel.Candidate})
				if d < minDiv {
					minDiv = d
				}
			}
			if math.IsInf(minDiv, 1) {
				minDiv = 1
			}
			mmr := (1-lambda)*cand.FinalScore + lambda*minDiv
			if mmr > bestScore {
				bestScore = mmr
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}
