package qdrant

import (
	"context"
	"log/slog"

	"github.com/circle-system/swipeengine/internal/model"
	"github.com/circle-system/swipeengine/internal/repo/postgres"
)

// CombinedContentEmbeddingRepo composes the Postgres repository (source of
// truth, used for everything but ANN search) with a Qdrant ContentIndex
// (used only for FindSimilar). Writes fan out to both; a Qdrant write
// failure is logged and swallowed rather than failing the request, since
// Postgres remains consistent and a later reindex can repair the ANN side.
type CombinedContentEmbeddingRepo struct {
	pg     *postgres.ContentEmbeddingRepo
	index  *ContentIndex
	logger *slog.Logger
}

// NewCombinedContentEmbeddingRepo builds a repo.ContentEmbeddingRepo backed
// by Postgres with Qdrant-accelerated similarity search.
func NewCombinedContentEmbeddingRepo(pg *postgres.ContentEmbeddingRepo, index *ContentIndex, logger *slog.Logger) *CombinedContentEmbeddingRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &CombinedContentEmbeddingRepo{pg: pg, index: index, logger: logger}
}

func (c *CombinedContentEmbeddingRepo) FindByContentID(ctx context.Context, contentID string) (*model.ContentEmbedding, error) {
	return c.pg.FindByContentID(ctx, contentID)
}

func (c *CombinedContentEmbeddingRepo) FindByIDs(ctx context.Context, contentIDs []string) ([]model.ContentEmbedding, error) {
	return c.pg.FindByIDs(ctx, contentIDs)
}

func (c *CombinedContentEmbeddingRepo) FindAll(ctx context.Context, limit, offset int) ([]model.ContentEmbedding, error) {
	return c.pg.FindAll(ctx, limit, offset)
}

// FindSimilar prefers the ANN index; if Qdrant is unreachable it degrades to
// Postgres's linear-scan pgvector query rather than failing the request.
func (c *CombinedContentEmbeddingRepo) FindSimilar(ctx context.Context, v model.Vector, limit int, minSim float64) ([]model.ContentEmbedding, error) {
	if c.index != nil {
		results, err := c.index.FindSimilar(ctx, v, limit, minSim)
		if err == nil {
			return results, nil
		}
		c.logger.Warn("qdrant: find similar failed, falling back to postgres linear scan", "error", err)
	}
	return c.pg.FindSimilar(ctx, v, limit, minSim)
}

func (c *CombinedContentEmbeddingRepo) Save(ctx context.Context, e model.ContentEmbedding) error {
	if err := c.pg.Save(ctx, e); err != nil {
		return err
	}
	if c.index != nil {
		if err := c.index.Upsert(ctx, []model.ContentEmbedding{e}); err != nil {
			c.logger.Warn("qdrant: upsert failed after postgres save", "contentId", e.ContentID, "error", err)
		}
	}
	return nil
}

func (c *CombinedContentEmbeddingRepo) Delete(ctx context.Context, contentID string) error {
	if err := c.pg.Delete(ctx, contentID); err != nil {
		return err
	}
	if c.index != nil {
		if err := c.index.DeleteByIDs(ctx, []string{contentID}); err != nil {
			c.logger.Warn("qdrant: delete failed after postgres delete", "contentId", contentID, "error", err)
		}
	}
	return nil
}
