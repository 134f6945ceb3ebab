package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/circle-system/swipeengine/internal/model"
)

func TestCalculate_S3KnownValues(t *testing.T) {
	ev := Calculate(Metrics{
		EngagementMetrics: model.EngagementMetrics{
			Views:          1000,
			Likes:          150,
			Comments:       50,
			Shares:         30,
			Saves:          20,
			AvgWatchTime:   25,
			CompletionRate: 0.75,
			Reports:        2,
		},
		DurationSeconds: 30,
	})

	assert.InDelta(t, 0.15, ev.LikeRate, 1e-9)
	assert.InDelta(t, 0.05, ev.CommentRate, 1e-9)
	assert.InDelta(t, 0.03, ev.ShareRate, 1e-9)
	assert.InDelta(t, 0.02, ev.SaveRate, 1e-9)
	assert.InDelta(t, 0.025, ev.ViralityScore, 1e-9)

	for _, f := range []float64{
		ev.LikeRate, ev.CommentRate, ev.ShareRate, ev.SaveRate,
		ev.RetentionRate, ev.AvgCompletionRate, ev.ReportRate,
		ev.ViralityScore, ev.QualityScore,
	} {
		assert.GreaterOrEqual(t, f, 0.0, "invariant 3: every feature is non-negative")
		assert.LessOrEqual(t, f, 1.0, "invariant 3: every feature is at most 1")
	}
}

func TestCalculate_S4ZeroViews(t *testing.T) {
	ev := Calculate(Metrics{DurationSeconds: 30})

	assert.Equal(t, 0.0, ev.LikeRate, "invariant 4: zero views yields exactly zero rate")
	assert.Equal(t, 0.0, ev.CommentRate)
	assert.Equal(t, 0.0, ev.ShareRate)
	assert.Equal(t, 0.0, ev.SaveRate)
	assert.Equal(t, 0.0, ev.ReportRate)
	assert.Equal(t, 0.0, ev.RetentionRate)
}

func TestCalculate_ZeroDurationYieldsZeroRetention(t *testing.T) {
	ev := Calculate(Metrics{
		EngagementMetrics: model.EngagementMetrics{Views: 100, AvgWatchTime: 10},
		DurationSeconds:   0,
	})
	assert.Equal(t, 0.0, ev.RetentionRate)
}

func TestCalculate_VectorIsL2Normalized(t *testing.T) {
	ev := Calculate(Metrics{
		EngagementMetrics: model.EngagementMetrics{
			Views: 200, Likes: 40, Comments: 10, Shares: 5, Saves: 5,
			AvgWatchTime: 12, CompletionRate: 0.5, Reports: 1,
		},
		DurationSeconds: 20,
	})

	var normSq float64
	for _, x := range ev.Vector {
		normSq += x * x
	}
	if normSq > 0 {
		assert.InDelta(t, 1.0, normSq, 1e-5, "invariant 1: the derived vector is unit-norm when non-zero")
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	m := Metrics{
		EngagementMetrics: model.EngagementMetrics{
			Views: 500, Likes: 80, Comments: 20, Shares: 10, Saves: 10, Reports: 3,
			AvgWatchTime: 18, CompletionRate: 0.6,
		},
		DurationSeconds: 25,
	}
	assert.Equal(t, Calculate(m), Calculate(m))
}

func TestCalculate_HighReportsCapsQualityAtZero(t *testing.T) {
	ev := Calculate(Metrics{
		EngagementMetrics: model.EngagementMetrics{Views: 100, Reports: 100},
		DurationSeconds:   10,
	})
	assert.Equal(t, 0.0, ev.QualityScore)
}
