// Package engagement derives the normalized engagement feature vector a
// content item's raw counters imply. The derivation is pure and
// deterministic: the same metrics always yield the same features.
//
// Modeled on the teacher's internal/service/quality.Score: a small set of
// named factors, each documented with its contribution, composed into a
// single result.
package engagement

import (
	"math"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/vector"
)

// Metrics is the raw-counter input to Calculate. DurationSeconds is the
// content's own duration, used to derive RetentionRate; it is distinct
// from AvgWatchTime (the average amount of that duration users watched).
type Metrics struct {
	model.EngagementMetrics
	DurationSeconds float64
}

// Calculate derives the 9-dimensional engagement feature vector from raw
// metrics. Every rate-based feature is 0 when Views is 0, never NaN or Inf.
func Calculate(m Metrics) model.EngagementVector {
	views := float64(m.Views)

	rate := func(numerator float64) float64 {
		if views == 0 {
			return 0
		}
		return numerator / views
	}

	likeRate := rate(float64(m.Likes))
	commentRate := rate(float64(m.Comments))
	shareRate := rate(float64(m.Shares))
	saveRate := rate(float64(m.Saves))
	reportRate := rate(float64(m.Reports))

	// Factor: retention. Average watch time relative to total possible
	// watch time across all views; zero when there were no views or the
	// content has no meaningful duration.
	retentionRate := 0.0
	if views > 0 && m.DurationSeconds > 0 {
		retentionRate = clamp01(m.AvgWatchTime / (views * m.DurationSeconds))
	}

	avgCompletionRate := m.CompletionRate

	// Factor: virality. Shares and saves are the two actions that carry
	// content outside the immediate feed loop.
	viralityScore := (shareRate + saveRate) / 2

	// Factor: quality. Retention and completion signal genuine interest;
	// reports pull it down twice as hard as either signal pulls it up.
	qualityScore := math.Max(0, retentionRate+avgCompletionRate-2*reportRate)

	raw := model.Vector{
		likeRate, commentRate, shareRate, saveRate,
		retentionRate, avgCompletionRate, reportRate,
		viralityScore, qualityScore,
	}
	normalized := vector.NormalizeL2(raw)

	return model.EngagementVector{
		Vector:            normalized,
		LikeRate:          likeRate,
		CommentRate:       commentRate,
		ShareRate:         shareRate,
		SaveRate:          saveRate,
		RetentionRate:     retentionRate,
		AvgCompletionRate: avgCompletionRate,
		ReportRate:        reportRate,
		ViralityScore:     viralityScore,
		QualityScore:      qualityScore,
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
