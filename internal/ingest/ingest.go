// Package ingest is the adjacent pipeline that turns raw content (text,
// video frames, audio) into the embeddings the recommendation core
// consumes. It sits in front of repo.ContentEmbeddingRepo: callers submit
// content, ingest generates a vector via the configured embedding
// services, and the result is persisted through the same repository
// contract the core reads from. User embeddings are not written here.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/repo"
)

// Pipeline generates and persists content embeddings from raw inputs.
type Pipeline struct {
	content   repo.ContentEmbeddingRepo
	text      repo.TextEmbeddingService
	visual    repo.VisualEmbeddingService
	transcribe repo.TranscriptionService
	logger    *slog.Logger
}

// New constructs a Pipeline. Any of the embedding services may be a noop
// implementation; IngestText/IngestVideo/IngestAudio surface
// embedding.ErrNoProvider through their error return in that case rather
// than persisting a zero vector.
func New(content repo.ContentEmbeddingRepo, text repo.TextEmbeddingService, visual repo.VisualEmbeddingService, transcribe repo.TranscriptionService, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{content: content, text: text, visual: visual, transcribe: transcribe, logger: logger}
}

// IngestText embeds contentText and stores the resulting embedding under
// contentID, carrying topics/authorID through to ContentEmbeddingMetadata.
func (p *Pipeline) IngestText(ctx context.Context, contentID, contentText string, topics []string, authorID string) error {
	result, err := p.text.Generate(ctx, contentText)
	if err != nil {
		return fmt.Errorf("ingest: generate text embedding: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("ingest: text embedding not generated for content %s", contentID)
	}

	return p.content.Save(ctx, model.ContentEmbedding{
		ContentID: contentID,
		Vector:    result.Vector,
		UpdatedAt: time.Now().UTC(),
		Metadata: model.ContentEmbeddingMetadata{
			Topics:   topics,
			AuthorID: authorID,
		},
	})
}

// IngestVideo embeds a sequence of sampled video frames.
func (p *Pipeline) IngestVideo(ctx context.Context, contentID string, frames [][]byte, topics []string, authorID string) error {
	result, err := p.visual.Generate(ctx, frames)
	if err != nil {
		return fmt.Errorf("ingest: generate visual embedding: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("ingest: visual embedding not generated for content %s", contentID)
	}

	return p.content.Save(ctx, model.ContentEmbedding{
		ContentID: contentID,
		Vector:    result.Vector,
		UpdatedAt: time.Now().UTC(),
		Metadata: model.ContentEmbeddingMetadata{
			Topics:   topics,
			AuthorID: authorID,
		},
	})
}

// IngestAudio transcribes audio then embeds the resulting text. Useful
// for spoken-word content (podcasts, voiceovers) where the transcript is
// a better semantic signal than the raw waveform.
func (p *Pipeline) IngestAudio(ctx context.Context, contentID string, audio []byte, topics []string, authorID string) error {
	transcript, err := p.transcribe.Transcribe(ctx, audio)
	if err != nil {
		return fmt.Errorf("ingest: transcribe audio: %w", err)
	}
	return p.IngestText(ctx, contentID, transcript.Text, topics, authorID)
}
