package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/repo/postgres"
	"github.com/circle-system/swipeengine/internal/testutil"
)

var testDB *postgres.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()

	code := func() int {
		defer tc.Terminate()

		ctx := context.Background()
		logger := testutil.TestLogger()

		var err error
		testDB, err = tc.NewTestDB(ctx, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgres_integration_test: failed to create test DB: %v\n", err)
			return 1
		}
		defer testDB.Close()

		return m.Run()
	}()

	os.Exit(code)
}

func TestUserEmbeddingRepo_SaveAndFindByUserID(t *testing.T) {
	repo := postgres.NewUserEmbeddingRepo(testDB)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	e := model.UserEmbedding{
		UserID:    "user-int-1",
		Vector:    model.Vector{0.1, 0.2, 0.3},
		UpdatedAt: now,
		Metadata: model.UserEmbeddingMetadata{
			Interests:         []string{"news", "sports"},
			LastInteractionAt: &now,
		},
	}

	if err := repo.Save(ctx, e); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := repo.FindByUserID(ctx, "user-int-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected embedding, got nil")
	}
	if len(got.Vector) != 3 {
		t.Errorf("expected vector of length 3, got %d", len(got.Vector))
	}
	if len(got.Metadata.Interests) != 2 {
		t.Errorf("expected 2 interests, got %d", len(got.Metadata.Interests))
	}
}

func TestUserEmbeddingRepo_FindByUserID_NotFoundReturnsNilNil(t *testing.T) {
	repo := postgres.NewUserEmbeddingRepo(testDB)
	got, err := repo.FindByUserID(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for a missing user embedding")
	}
}

func TestUserEmbeddingRepo_SaveUpserts(t *testing.T) {
	repo := postgres.NewUserEmbeddingRepo(testDB)
	ctx := context.Background()

	e := model.UserEmbedding{UserID: "user-int-2", Vector: model.Vector{1, 2}, UpdatedAt: time.Now().UTC()}
	if err := repo.Save(ctx, e); err != nil {
		t.Fatalf("initial save failed: %v", err)
	}
	e.Vector = model.Vector{3, 4}
	if err := repo.Save(ctx, e); err != nil {
		t.Fatalf("upsert save failed: %v", err)
	}

	got, err := repo.FindByUserID(ctx, "user-int-2")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.Vector[0] != 3 || got.Vector[1] != 4 {
		t.Errorf("expected upserted vector [3 4], got %v", got.Vector)
	}
}

func TestContentEmbeddingRepo_SaveFindSimilarDelete(t *testing.T) {
	repo := postgres.NewContentEmbeddingRepo(testDB)
	ctx := context.Background()

	base := model.ContentEmbedding{
		ContentID: "content-int-1",
		Vector:    model.Vector{1, 0, 0},
		UpdatedAt: time.Now().UTC(),
		Metadata:  model.ContentEmbeddingMetadata{Topics: []string{"tech"}, AuthorID: "author-1"},
	}
	near := model.ContentEmbedding{
		ContentID: "content-int-2",
		Vector:    model.Vector{0.9, 0.1, 0},
		UpdatedAt: time.Now().UTC(),
	}
	far := model.ContentEmbedding{
		ContentID: "content-int-3",
		Vector:    model.Vector{0, 0, 1},
		UpdatedAt: time.Now().UTC(),
	}

	for _, e := range []model.ContentEmbedding{base, near, far} {
		if err := repo.Save(ctx, e); err != nil {
			t.Fatalf("save %s failed: %v", e.ContentID, err)
		}
	}

	similar, err := repo.FindSimilar(ctx, base.Vector, 10, 0.5)
	if err != nil {
		t.Fatalf("find similar failed: %v", err)
	}
	ids := make(map[string]bool)
	for _, e := range similar {
		ids[e.ContentID] = true
	}
	if !ids["content-int-1"] || !ids["content-int-2"] {
		t.Errorf("expected base and near content in similar results, got %v", ids)
	}
	if ids["content-int-3"] {
		t.Error("expected far content to be excluded by the similarity threshold")
	}

	if err := repo.Delete(ctx, "content-int-3"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, err := repo.FindByContentID(ctx, "content-int-3")
	if err != nil {
		t.Fatalf("find after delete failed: %v", err)
	}
	if got != nil {
		t.Error("expected content to be gone after delete")
	}
}

func TestClusterRepo_SaveManyIsTransactional(t *testing.T) {
	repo := postgres.NewClusterRepo(testDB)
	ctx := context.Background()

	clusters := []model.Cluster{
		{ID: "cluster-int-1", Centroid: model.Vector{1, 2}, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
		{ID: "cluster-int-2", Centroid: model.Vector{3, 4}, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
	}
	if err := repo.SaveMany(ctx, clusters); err != nil {
		t.Fatalf("save many failed: %v", err)
	}

	got, err := repo.FindByIDs(ctx, []string{"cluster-int-1", "cluster-int-2"})
	if err != nil {
		t.Fatalf("find by ids failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(got))
	}
}

func TestClusterRepo_AssignmentsAndStats(t *testing.T) {
	clusterRepo := postgres.NewClusterRepo(testDB)
	ctx := context.Background()

	cluster := model.Cluster{ID: "cluster-int-stats", Centroid: model.Vector{1, 1}, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := clusterRepo.Save(ctx, cluster); err != nil {
		t.Fatalf("save cluster failed: %v", err)
	}

	assignments := []model.ClusterAssignment{
		{ContentID: "content-stats-1", ClusterID: cluster.ID, Similarity: 0.9, AssignedAt: time.Now().UTC()},
		{ContentID: "content-stats-2", ClusterID: cluster.ID, Similarity: 0.7, AssignedAt: time.Now().UTC()},
	}
	for _, a := range assignments {
		if err := clusterRepo.SaveAssignment(ctx, a); err != nil {
			t.Fatalf("save assignment failed: %v", err)
		}
	}

	if err := clusterRepo.UpdateClusterStats(ctx, cluster.ID); err != nil {
		t.Fatalf("update cluster stats failed: %v", err)
	}

	got, err := clusterRepo.FindByIDs(ctx, []string{cluster.ID})
	if err != nil {
		t.Fatalf("find by ids failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(got))
	}
	if got[0].Size != 2 {
		t.Errorf("expected size 2, got %d", got[0].Size)
	}
	if got[0].Density <= 0 {
		t.Errorf("expected positive density, got %f", got[0].Density)
	}

	ids, err := clusterRepo.FindContentIDsByClusterID(ctx, cluster.ID, 10)
	if err != nil {
		t.Fatalf("find content ids failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "content-stats-1" {
		t.Errorf("expected content-stats-1 ranked first by similarity, got %v", ids)
	}
}

func TestInteractionRepo_SaveAndQuery(t *testing.T) {
	repo := postgres.NewInteractionRepo(testDB)
	ctx := context.Background()

	i := model.UserInteraction{
		UserID:    "user-int-interactions",
		ContentID: "content-int-interactions",
		Type:      model.InteractionLike,
		Timestamp: time.Now().UTC(),
		Metadata:  model.InteractionMetadata{Topics: []string{"news"}},
	}
	if err := repo.Save(ctx, i); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	has, err := repo.HasInteracted(ctx, i.UserID, i.ContentID)
	if err != nil {
		t.Fatalf("has interacted failed: %v", err)
	}
	if !has {
		t.Error("expected HasInteracted to report true")
	}

	found, err := repo.FindByUserID(ctx, i.UserID, 10, 0)
	if err != nil {
		t.Fatalf("find by user id failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(found))
	}
}

func TestInteractionRepo_DeleteOlderThan(t *testing.T) {
	repo := postgres.NewInteractionRepo(testDB)
	ctx := context.Background()

	old := model.UserInteraction{
		UserID: "user-int-retention", ContentID: "content-int-retention",
		Type: model.InteractionView, Timestamp: time.Now().UTC().AddDate(-1, 0, 0),
	}
	if err := repo.Save(ctx, old); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().AddDate(0, -1, 0))
	if err != nil {
		t.Fatalf("delete older than failed: %v", err)
	}
	if deleted < 1 {
		t.Errorf("expected at least 1 row deleted, got %d", deleted)
	}
}
