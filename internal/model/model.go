// Package model defines the domain entities shared by every stage of the
// recommendation pipeline: vectors, embeddings, clusters, interactions,
// and the ephemeral per-request candidate and recommendation types.
package model

import "time"

// Vector is a fixed-dimension real-valued embedding. Operations on it live
// in package vector; Vector itself carries no behavior.
type Vector []float64

// UserEmbedding is a user's learned representation in the shared embedding
// space, refreshed as new interactions arrive.
type UserEmbedding struct {
	UserID    string
	Vector    Vector
	UpdatedAt time.Time
	Metadata  UserEmbeddingMetadata
}

// UserEmbeddingMetadata carries optional, open-ended signals about a user
// that accompany the embedding but are not part of the vector itself.
type UserEmbeddingMetadata struct {
	Interests         []string
	LastInteractionAt *time.Time
}

// ContentEmbedding is a content item's representation in the shared
// embedding space.
type ContentEmbedding struct {
	ContentID string
	Vector    Vector
	UpdatedAt time.Time
	Metadata  ContentEmbeddingMetadata
}

// ContentEmbeddingMetadata carries optional descriptive fields for a
// content item.
type ContentEmbeddingMetadata struct {
	Topics   []string
	AuthorID string
}

// EngagementMetrics are the raw counters EngagementFeatures derives a
// feature vector from.
type EngagementMetrics struct {
	Views          int64
	UniqueViews    int64
	Likes          int64
	Comments       int64
	Shares         int64
	Saves          int64
	AvgWatchTime   float64 // seconds
	CompletionRate float64 // [0,1]
	Reports        int64
}

// EngagementVector is the 9-dimensional derived engagement representation
// plus the individual named features it was built from.
type EngagementVector struct {
	Vector            Vector
	LikeRate          float64
	CommentRate       float64
	ShareRate         float64
	SaveRate          float64
	RetentionRate     float64
	AvgCompletionRate float64
	ReportRate        float64
	ViralityScore     float64
	QualityScore      float64
}

// Cluster is a dense group of content embeddings discovered by the
// clusterer. Clusters exclusively own their centroid.
type Cluster struct {
	ID         string
	Centroid   Vector
	Size       int
	Density    float64
	Coherence  float64
	Topics     []string
	ActiveTime *TimeOfDayRange
	Geography  string
	Languages  []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TimeOfDayRange is an hour-of-day range in [0,24) that may wrap past
// midnight (e.g. From=22, To=2 covers 22:00-02:00).
type TimeOfDayRange struct {
	From float64
	To   float64
}

// Contains reports whether hour (in [0,24)) falls within the range,
// accounting for midnight wraparound.
func (r TimeOfDayRange) Contains(hour float64) bool {
	if r.From <= r.To {
		return hour >= r.From && hour <= r.To
	}
	return hour >= r.From || hour <= r.To
}

// ClusterAssignment relates a content item to the cluster it was assigned
// to by the most recent clustering run.
type ClusterAssignment struct {
	ContentID  string
	ClusterID  string
	Similarity float64
	AssignedAt time.Time
}

// InteractionType enumerates the closed set of user interaction kinds.
type InteractionType string

const (
	InteractionView          InteractionType = "view"
	InteractionCompleteView  InteractionType = "completeView"
	InteractionPartialView   InteractionType = "partialView"
	InteractionLike          InteractionType = "like"
	InteractionLikeComment   InteractionType = "likeComment"
	InteractionComment       InteractionType = "comment"
	InteractionShare         InteractionType = "share"
	InteractionSave          InteractionType = "save"
	InteractionDislike       InteractionType = "dislike"
	InteractionSkip          InteractionType = "skip"
	InteractionReport        InteractionType = "report"
	InteractionShowLessOften InteractionType = "showLessOften"
)

// UserInteraction is a single recorded user action against a content item.
type UserInteraction struct {
	UserID    string
	ContentID string
	Type      InteractionType
	Timestamp time.Time
	Metadata  InteractionMetadata
}

// InteractionMetadata carries optional signals about how an interaction
// happened.
type InteractionMetadata struct {
	DurationSeconds float64
	WatchPercent    float64
	Topics          []string
}

// UserProfile is built from a user's recent interactions when no direct
// embedding is available or to augment one with topic interests.
type UserProfile struct {
	UserID      string
	Interests   []string // top topics by frequency, most frequent first
	Demographic Demographic
}

// Demographic carries optional demographic signals used by contextual
// boosting in ClusterMatcher.
type Demographic struct {
	Language string
	Location string
}

// RequestContext is the optional situational context supplied alongside a
// recommendation request.
type RequestContext struct {
	TimeOfDay *float64 // hour-of-day, [0,24)
	Weekday   *time.Weekday
	Location  string
}

// MatchResult is a cluster scored against a user by ClusterMatcher.
type MatchResult struct {
	ClusterID  string
	Similarity float64
	Score      float64
}

// CandidateMetadata is the open-ended per-candidate side information
// carried from CandidateSelector through to the Ranker.
type CandidateMetadata struct {
	Similarity     float64
	ClusterSize    int
	ClusterDensity float64
	CreatedAt      time.Time
	Engagement     *EngagementMetrics
	Topics         []string
}

// Candidate is a content item proposed by CandidateSelector for ranking.
type Candidate struct {
	ContentID    string
	ClusterID    string
	ClusterScore float64
	Metadata     CandidateMetadata
}

// SubScores are the individual [0,1] components the Ranker combines into
// a Candidate's finalScore.
type SubScores struct {
	Relevance  float64
	Engagement float64
	Novelty    float64
	Diversity  float64
	Context    float64
}

// RankedCandidate is a Candidate after scoring, ready for trimming and
// mapping into a Recommendation.
type RankedCandidate struct {
	Candidate  Candidate
	SubScores  SubScores
	FinalScore float64
}

// Recommendation is the final, per-request output of the engine.
type Recommendation struct {
	ContentID string
	Score     float64
	Reason    string
	ClusterID string
	Metadata  CandidateMetadata
}

// RankableItem is the input shape for HybridRanker.Rank: a candidate item
// together with the vectors/signals it is scored against.
type RankableItem struct {
	ContentID     string
	ContentVector Vector
	Engagement    *EngagementMetrics
	CreatedAt     time.Time
}

// RankedItem is a RankableItem after HybridRanker scoring.
type RankedItem struct {
	Item  RankableItem
	Score float64
}
