package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/repo"
)

type fakeContentRepo struct {
	saved *model.ContentEmbedding
}

func (f *fakeContentRepo) FindByContentID(ctx context.Context, contentID string) (*model.ContentEmbedding, error) {
	return nil, nil
}
func (f *fakeContentRepo) FindByIDs(ctx context.Context, contentIDs []string) ([]model.ContentEmbedding, error) {
	return nil, nil
}
func (f *fakeContentRepo) FindAll(ctx context.Context, limit, offset int) ([]model.ContentEmbedding, error) {
	return nil, nil
}
func (f *fakeContentRepo) FindSimilar(ctx context.Context, v model.Vector, limit int, minSim float64) ([]model.ContentEmbedding, error) {
	return nil, nil
}
func (f *fakeContentRepo) Save(ctx context.Context, e model.ContentEmbedding) error {
	f.saved = &e
	return nil
}
func (f *fakeContentRepo) Delete(ctx context.Context, contentID string) error { return nil }

type fakeTextService struct {
	result repo.TextEmbeddingResult
	err    error
}

func (f fakeTextService) Generate(ctx context.Context, text string) (repo.TextEmbeddingResult, error) {
	return f.result, f.err
}

type fakeVisualService struct{}

func (fakeVisualService) Generate(ctx context.Context, frames [][]byte) (repo.VisualEmbeddingResult, error) {
	return repo.VisualEmbeddingResult{}, errors.New("not used")
}

type fakeTranscriptionService struct {
	text string
}

func (f fakeTranscriptionService) Transcribe(ctx context.Context, audio []byte) (repo.TranscriptionResult, error) {
	return repo.TranscriptionResult{Text: f.text}, nil
}

func TestIngestText_SavesEmbeddingOnSuccess(t *testing.T) {
	content := &fakeContentRepo{}
	text := fakeTextService{result: repo.TextEmbeddingResult{
		Vector: model.Vector{0.1, 0.2, 0.3}, Success: true,
	}}
	p := New(content, text, fakeVisualService{}, fakeTranscriptionService{}, nil)

	err := p.IngestText(context.Background(), "c1", "hello world", []string{"news"}, "author-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.saved == nil {
		t.Fatal("expected embedding to be saved")
	}
	if content.saved.ContentID != "c1" {
		t.Errorf("expected content id c1, got %s", content.saved.ContentID)
	}
	if content.saved.Metadata.AuthorID != "author-1" {
		t.Errorf("expected author-1, got %s", content.saved.Metadata.AuthorID)
	}
}

func TestIngestText_FailsWhenProviderUnsuccessful(t *testing.T) {
	content := &fakeContentRepo{}
	text := fakeTextService{result: repo.TextEmbeddingResult{Success: false}}
	p := New(content, text, fakeVisualService{}, fakeTranscriptionService{}, nil)

	err := p.IngestText(context.Background(), "c1", "hello", nil, "")
	if err == nil {
		t.Fatal("expected an error when the provider reports no success")
	}
	if content.saved != nil {
		t.Error("expected no embedding to be saved on failure")
	}
}

func TestIngestText_PropagatesProviderError(t *testing.T) {
	content := &fakeContentRepo{}
	text := fakeTextService{err: errors.New("upstream down")}
	p := New(content, text, fakeVisualService{}, fakeTranscriptionService{}, nil)

	err := p.IngestText(context.Background(), "c1", "hello", nil, "")
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestIngestAudio_TranscribesThenEmbeds(t *testing.T) {
	content := &fakeContentRepo{}
	text := fakeTextService{result: repo.TextEmbeddingResult{
		Vector: model.Vector{0.4, 0.5}, Success: true,
	}}
	p := New(content, text, fakeVisualService{}, fakeTranscriptionService{text: "transcribed words"}, nil)

	err := p.IngestAudio(context.Background(), "c2", []byte{1, 2, 3}, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.saved == nil || content.saved.ContentID != "c2" {
		t.Fatal("expected embedding saved for c2")
	}
}
