package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/circle-system/swipeengine/internal/repo"
)

func TestOllamaTextService_Generate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	s := NewOllamaTextService(srv.URL, "mxbai-embed-large")
	result, err := s.Generate(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatal("expected Success=true")
	}
	if len(result.Vector) != 3 {
		t.Fatalf("expected 3-dim vector, got %d", len(result.Vector))
	}
	if result.TokenCount <= 0 {
		t.Fatal("expected a positive token count estimate")
	}
}

func TestOllamaTextService_Generate_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	s := NewOllamaTextService(srv.URL, "mxbai-embed-large")
	_, err := s.Generate(context.Background(), "hello world")
	if err == nil {
		t.Fatal("expected an error on non-200 response")
	}
}

func TestTruncateText_BreaksOnWordBoundary(t *testing.T) {
	in := "one two three four five"
	out := truncateText(in, 10)
	if len(out) > 10 {
		t.Fatalf("expected truncated text within bound, got %q (%d chars)", out, len(out))
	}
	if out != "one two" {
		t.Fatalf("expected truncation at the last word boundary before the limit, got %q", out)
	}
}

func TestNoopServices_ReturnErrNoProvider(t *testing.T) {
	var ts repo.TextEmbeddingService = NoopTextService{}
	if _, err := ts.Generate(context.Background(), "x"); err != ErrNoProvider {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}

	var vs repo.VisualEmbeddingService = NoopVisualService{}
	if _, err := vs.Generate(context.Background(), nil); err != ErrNoProvider {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}

	var trs repo.TranscriptionService = NoopTranscriptionService{}
	if _, err := trs.Transcribe(context.Background(), nil); err != ErrNoProvider {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}
