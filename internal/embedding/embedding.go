// Package embedding generates the vector and text signals the ingestion
// pipeline feeds into content/user embeddings, following the teacher's
// embedding.Provider split between a real HTTP-backed implementation and a
// Noop fallback used when no provider is configured. Unlike the teacher,
// results are returned as the repo package's open result structs
// (TextEmbeddingResult, VisualEmbeddingResult, TranscriptionResult) rather
// than a bare (pgvector.Vector, error) pair, since this domain's core needs
// to know whether generation genuinely succeeded (Success) and how much
// input was consumed, not just get a vector back.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/repo"
)

// ErrNoProvider signals that no real embedding backend is configured.
// Callers treat this as "no embedding available", not a transient failure.
var ErrNoProvider = errors.New("embedding: no provider configured (noop)")

const defaultMaxInputChars = 2000

// OllamaTextService generates text embeddings using a local Ollama server,
// via the teacher's same POST /api/embed contract.
type OllamaTextService struct {
	baseURL       string
	model         string
	httpClient    *http.Client
	maxInputChars int
}

// NewOllamaTextService creates a provider that calls Ollama's embedding API.
// model should be an embedding model such as "mxbai-embed-large" or
// "nomic-embed-text".
func NewOllamaTextService(baseURL, model string) *OllamaTextService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaTextService{
		baseURL:       baseURL,
		model:         model,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		maxInputChars: defaultMaxInputChars,
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Generate produces a text embedding. Text beyond maxInputChars is
// truncated at a word boundary; the /api/embed endpoint truncates again at
// the token level as a safety net.
func (s *OllamaTextService) Generate(ctx context.Context, text string) (repo.TextEmbeddingResult, error) {
	truncated := truncateText(text, s.maxInputChars)

	reqBody, err := json.Marshal(ollamaEmbedRequest{Model: s.model, Input: truncated})
	if err != nil {
		return repo.TextEmbeddingResult{}, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embed", bytes.NewReader(reqBody))
	if err != nil {
		return repo.TextEmbeddingResult{}, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return repo.TextEmbeddingResult{}, fmt.Errorf("embedding: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return repo.TextEmbeddingResult{}, fmt.Errorf("embedding: status %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return repo.TextEmbeddingResult{}, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return repo.TextEmbeddingResult{}, fmt.Errorf("embedding: empty embedding returned")
	}

	vec := make(model.Vector, len(result.Embeddings[0]))
	for i, f := range result.Embeddings[0] {
		vec[i] = float64(f)
	}
	return repo.TextEmbeddingResult{Vector: vec, TokenCount: approxTokenCount(truncated), Success: true}, nil
}

// truncateText trims s to at most max characters on a word boundary.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == ' ' {
			return cut[:i]
		}
	}
	return cut
}

// approxTokenCount estimates token count at ~4 characters per token for
// English prose, matching the teacher's sizing rationale for
// maxInputChars.
func approxTokenCount(s string) int {
	return (len(s) + 3) / 4
}

// NoopTextService returns ErrNoProvider. Used when no embedding backend is
// configured; callers skip storage on error rather than persist a
// zero-vector.
type NoopTextService struct{}

func (NoopTextService) Generate(_ context.Context, _ string) (repo.TextEmbeddingResult, error) {
	return repo.TextEmbeddingResult{}, ErrNoProvider
}

// NoopVisualService returns ErrNoProvider. No example repo in this pack
// wires a real frame-embedding backend, so this fallback is the only
// VisualEmbeddingService implementation shipped; a real one (CLIP-style
// model server) would follow the same HTTP-adapter shape as
// OllamaTextService.
type NoopVisualService struct{}

func (NoopVisualService) Generate(_ context.Context, _ [][]byte) (repo.VisualEmbeddingResult, error) {
	return repo.VisualEmbeddingResult{}, ErrNoProvider
}

// NoopTranscriptionService returns ErrNoProvider. No example repo
// in this pack wires a real speech-to-text backend.
type NoopTranscriptionService struct{}

func (NoopTranscriptionService) Transcribe(_ context.Context, _ []byte) (repo.TranscriptionResult, error) {
	return repo.TranscriptionResult{}, ErrNoProvider
}
