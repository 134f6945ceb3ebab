package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/circle-system/swipeengine/internal/cluster"
	"github.com/circle-system/swipeengine/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClusterDistance(t *testing.T) {
	cases := []struct {
		raw     string
		want    cluster.Distance
		wantErr bool
	}{
		{"euclidean", cluster.DistanceEuclidean, false},
		{"cosine", cluster.DistanceCosine, false},
		{"manhattan", cluster.DistanceManhattan, false},
		{"chebyshev", "", true},
		{"", "", true},
	}

	for _, c := range cases {
		got, err := clusterDistance(c.raw)
		if c.wantErr {
			if err == nil {
				t.Errorf("clusterDistance(%q): expected error, got none", c.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("clusterDistance(%q): unexpected error: %v", c.raw, err)
		}
		if got != c.want {
			t.Errorf("clusterDistance(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestNewEmbeddingServices_Noop(t *testing.T) {
	cfg := config.Config{EmbeddingProvider: "noop"}
	text, visual, transcribe := newEmbeddingServices(cfg, testLogger())
	if text == nil || visual == nil || transcribe == nil {
		t.Fatal("expected non-nil services for noop provider")
	}
}

func TestNewEmbeddingServices_AutoFallsBackWhenUnreachable(t *testing.T) {
	cfg := config.Config{EmbeddingProvider: "auto", OllamaURL: "http://127.0.0.1:1"}
	text, visual, transcribe := newEmbeddingServices(cfg, testLogger())
	if text == nil || visual == nil || transcribe == nil {
		t.Fatal("expected non-nil services even when the probed backend is unreachable")
	}
}

func TestOllamaReachable_TrueForHealthyServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if !ollamaReachable(srv.URL) {
		t.Error("expected ollamaReachable to report true for a responsive server")
	}
}

func TestOllamaReachable_FalseForUnreachableServer(t *testing.T) {
	if ollamaReachable("http://127.0.0.1:1") {
		t.Error("expected ollamaReachable to report false for an unreachable address")
	}
}
