package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/circle-system/swipeengine/internal/model"
)

// ContentEmbeddingRepo implements repo.ContentEmbeddingRepo against the
// content_embeddings table. FindSimilar uses pgvector's cosine-distance
// operator with an ORDER BY / LIMIT; when a package using Qdrant is wired
// in instead, that implementation takes over ANN lookups and this one is
// reserved for the fallback / bootstrap path.
type ContentEmbeddingRepo struct {
	db *DB
}

// NewContentEmbeddingRepo builds a ContentEmbeddingRepo over db.
func NewContentEmbeddingRepo(db *DB) *ContentEmbeddingRepo {
	return &ContentEmbeddingRepo{db: db}
}

func (r *ContentEmbeddingRepo) scanRow(row pgx.Row) (model.ContentEmbedding, error) {
	var (
		e         model.ContentEmbedding
		rawVector any
		topics    []string
		authorID  *string
	)
	if err := row.Scan(&e.ContentID, &rawVector, &e.UpdatedAt, &topics, &authorID); err != nil {
		return model.ContentEmbedding{}, err
	}
	vec, err := decodeVector(rawVector)
	if err != nil {
		return model.ContentEmbedding{}, err
	}
	e.Vector = vec
	e.Metadata.Topics = topics
	if authorID != nil {
		e.Metadata.AuthorID = *authorID
	}
	return e, nil
}

func (r *ContentEmbeddingRepo) FindByContentID(ctx context.Context, contentID string) (*model.ContentEmbedding, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT content_id, embedding, updated_at, topics, author_id
		 FROM content_embeddings WHERE content_id = $1`, contentID)
	e, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find content embedding by content id: %w", err)
	}
	return &e, nil
}

func (r *ContentEmbeddingRepo) FindByIDs(ctx context.Context, contentIDs []string) ([]model.ContentEmbedding, error) {
	if len(contentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.pool.Query(ctx,
		`SELECT content_id, embedding, updated_at, topics, author_id
		 FROM content_embeddings WHERE content_id = ANY($1)`, contentIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: find content embeddings by ids: %w", err)
	}
	defer rows.Close()

	var out []model.ContentEmbedding
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan content embedding: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ContentEmbeddingRepo) FindAll(ctx context.Context, limit, offset int) ([]model.ContentEmbedding, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT content_id, embedding, updated_at, topics, author_id
		 FROM content_embeddings ORDER BY content_id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: find all content embeddings: %w", err)
	}
	defer rows.Close()

	var out []model.ContentEmbedding
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan content embedding: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindSimilar orders by pgvector's cosine-distance operator (<=>), which is
// 1 - cosine similarity, and filters on the equivalent similarity threshold.
func (r *ContentEmbeddingRepo) FindSimilar(ctx context.Context, v model.Vector, limit int, minSim float64) ([]model.ContentEmbedding, error) {
	maxDistance := 1 - minSim
	rows, err := r.db.pool.Query(ctx,
		`SELECT content_id, embedding, updated_at, topics, author_id
		 FROM content_embeddings
		 WHERE embedding <=> $1 <= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`, encodeVector(v), maxDistance, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: find similar content embeddings: %w", err)
	}
	defer rows.Close()

	var out []model.ContentEmbedding
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan content embedding: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ContentEmbeddingRepo) Save(ctx context.Context, e model.ContentEmbedding) error {
	var authorID *string
	if e.Metadata.AuthorID != "" {
		authorID = &e.Metadata.AuthorID
	}
	topics := e.Metadata.Topics
	if topics == nil {
		topics = []string{}
	}
	_, err := r.db.pool.Exec(ctx,
		`INSERT INTO content_embeddings (content_id, embedding, updated_at, topics, author_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (content_id) DO UPDATE SET
		   embedding = EXCLUDED.embedding,
		   updated_at = EXCLUDED.updated_at,
		   topics = EXCLUDED.topics,
		   author_id = EXCLUDED.author_id`,
		e.ContentID, encodeVector(e.Vector), e.UpdatedAt, topics, authorID,
	)
	if err != nil {
		return fmt.Errorf("postgres: save content embedding: %w", err)
	}
	return nil
}

func (r *ContentEmbeddingRepo) Delete(ctx context.Context, contentID string) error {
	if _, err := r.db.pool.Exec(ctx, `DELETE FROM content_embeddings WHERE content_id = $1`, contentID); err != nil {
		return fmt.Errorf("postgres: delete content embedding: %w", err)
	}
	return nil
}
