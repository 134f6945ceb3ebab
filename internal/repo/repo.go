// Package repo defines the narrow repository and embedding-service
// contracts the recommendation core depends on. Each interface documents
// exactly what swapping its implementation changes, following the
// teacher's interfaces.go convention. Concrete implementations live in
// internal/repo/postgres and internal/repo/qdrant; the core never imports
// either directly.
package repo

import (
	"context"
	"time"

	"github.com/circle-system/swipeengine/internal/model"
)

// UserEmbeddingRepo persists and retrieves user embeddings.
type UserEmbeddingRepo interface {
	FindByUserID(ctx context.Context, userID string) (*model.UserEmbedding, error)
	Save(ctx context.Context, e model.UserEmbedding) error
	Count(ctx context.Context) (int64, error)
}

// ContentEmbeddingRepo persists and retrieves content embeddings.
// FindSimilar is an ANN-accelerated lookup; implementations backed by an
// index without native ANN support (e.g. a plain Postgres table without
// pgvector's index) may implement it as a linear scan.
type ContentEmbeddingRepo interface {
	FindByContentID(ctx context.Context, contentID string) (*model.ContentEmbedding, error)
	FindByIDs(ctx context.Context, contentIDs []string) ([]model.ContentEmbedding, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.ContentEmbedding, error)
	FindSimilar(ctx context.Context, v model.Vector, limit int, minSim float64) ([]model.ContentEmbedding, error)
	Save(ctx context.Context, e model.ContentEmbedding) error
	Delete(ctx context.Context, contentID string) error
}

// ClusterRepo persists clusters and the content-to-cluster assignments
// produced by a clustering run.
type ClusterRepo interface {
	Save(ctx context.Context, c model.Cluster) error
	SaveMany(ctx context.Context, cs []model.Cluster) error
	FindAll(ctx context.Context) ([]model.Cluster, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Cluster, error)
	Delete(ctx context.Context, id string) error

	SaveAssignment(ctx context.Context, a model.ClusterAssignment) error
	FindAssignmentsByContentID(ctx context.Context, contentID string) ([]model.ClusterAssignment, error)
	FindContentIDsByClusterID(ctx context.Context, clusterID string, limit int) ([]string, error)
	DeleteAssignmentsByContentID(ctx context.Context, contentID string) error

	// UpdateClusterStats recomputes size and density for a cluster from its
	// current assignments without a full re-cluster; coherence keeps the
	// value the last clustering run stored.
	UpdateClusterStats(ctx context.Context, clusterID string) error
}

// InteractionRepo persists and queries recorded user interactions.
type InteractionRepo interface {
	Save(ctx context.Context, i model.UserInteraction) error
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]model.UserInteraction, error)
	FindRecentByUserID(ctx context.Context, userID string, days int, limit int) ([]model.UserInteraction, error)
	FindByUserIDAndType(ctx context.Context, userID string, t model.InteractionType) ([]model.UserInteraction, error)
	HasInteracted(ctx context.Context, userID, contentID string) (bool, error)
	FindInteractedContentIDs(ctx context.Context, userID string, types []model.InteractionType) ([]string, error)
	CountByUserID(ctx context.Context, userID string) (int64, error)
	FindByContentID(ctx context.Context, contentID string) ([]model.UserInteraction, error)

	// DeleteOlderThan is an administrative retention hook; the core never
	// calls it on the request path.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TextEmbeddingResult is the outcome of a text embedding request.
type TextEmbeddingResult struct {
	Vector     model.Vector
	TokenCount int
	Success    bool
}

// TextEmbeddingService generates a vector embedding from text. Defined for
// the adjacent ingestion pipeline, not consumed by the ranking core.
type TextEmbeddingService interface {
	Generate(ctx context.Context, text string) (TextEmbeddingResult, error)
}

// VisualEmbeddingResult is the outcome of a visual embedding request.
type VisualEmbeddingResult struct {
	Vector          model.Vector
	FramesProcessed int
	Success         bool
}

// VisualEmbeddingService generates a vector embedding from video frames.
type VisualEmbeddingService interface {
	Generate(ctx context.Context, frames [][]byte) (VisualEmbeddingResult, error)
}

// TranscriptionResult is the outcome of an audio transcription request.
type TranscriptionResult struct {
	Text       string
	Language   *string
	Confidence *float64
}

// TranscriptionService transcribes audio to text.
type TranscriptionService interface {
	Transcribe(ctx context.Context, audio []byte) (TranscriptionResult, error)
}
