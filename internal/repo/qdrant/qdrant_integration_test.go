package qdrant_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/repo/qdrant"
	"github.com/circle-system/swipeengine/internal/testutil"
)

var testIndex *qdrant.ContentIndex

func TestMain(m *testing.M) {
	code := func() int {
		ctx := context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "qdrant/qdrant:latest",
			ExposedPorts: []string{"6333/tcp", "6334/tcp"},
			WaitingFor:   wait.ForListeningPort("6334/tcp").WithStartupTimeout(60 * time.Second),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "qdrant_integration_test: failed to start container: %v\n", err)
			return 1
		}
		defer func() { _ = container.Terminate(ctx) }()

		host, err := container.Host(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "qdrant_integration_test: failed to get host: %v\n", err)
			return 1
		}
		port, err := container.MappedPort(ctx, "6334")
		if err != nil {
			fmt.Fprintf(os.Stderr, "qdrant_integration_test: failed to get port: %v\n", err)
			return 1
		}

		index, err := qdrant.New(qdrant.Config{
			URL:        fmt.Sprintf("http://%s:%s", host, port.Port()),
			Collection: "test_content",
			Dims:       3,
		}, testutil.TestLogger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "qdrant_integration_test: failed to connect: %v\n", err)
			return 1
		}
		defer func() { _ = index.Close() }()

		if err := index.EnsureCollection(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "qdrant_integration_test: failed to ensure collection: %v\n", err)
			return 1
		}
		testIndex = index

		return m.Run()
	}()

	os.Exit(code)
}

func TestContentIndex_UpsertAndFindSimilar(t *testing.T) {
	ctx := context.Background()

	embeddings := []model.ContentEmbedding{
		{
			ContentID: "content-q-1",
			Vector:    model.Vector{1, 0, 0},
			UpdatedAt: time.Now().UTC(),
			Metadata:  model.ContentEmbeddingMetadata{Topics: []string{"tech"}, AuthorID: "author-q"},
		},
		{
			ContentID: "content-q-2",
			Vector:    model.Vector{0, 1, 0},
			UpdatedAt: time.Now().UTC(),
		},
	}

	if err := testIndex.Upsert(ctx, embeddings); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	results, err := testIndex.FindSimilar(ctx, model.Vector{1, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("find similar failed: %v", err)
	}
	found := false
	for _, r := range results {
		if r.ContentID == "content-q-1" {
			found = true
			if r.Metadata.AuthorID != "author-q" {
				t.Errorf("expected author-q payload, got %q", r.Metadata.AuthorID)
			}
		}
	}
	if !found {
		t.Error("expected content-q-1 in similar results")
	}
}

func TestContentIndex_DeleteByIDs(t *testing.T) {
	ctx := context.Background()

	if err := testIndex.Upsert(ctx, []model.ContentEmbedding{
		{ContentID: "content-q-delete", Vector: model.Vector{0, 0, 1}, UpdatedAt: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := testIndex.DeleteByIDs(ctx, []string{"content-q-delete"}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	results, err := testIndex.FindSimilar(ctx, model.Vector{0, 0, 1}, 10, 0.99)
	if err != nil {
		t.Fatalf("find similar failed: %v", err)
	}
	for _, r := range results {
		if r.ContentID == "content-q-delete" {
			t.Error("expected content-q-delete to be removed from the index")
		}
	}
}

func TestContentIndex_Healthy(t *testing.T) {
	if err := testIndex.Healthy(context.Background()); err != nil {
		t.Fatalf("expected healthy index, got %v", err)
	}
}
