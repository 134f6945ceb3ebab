package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/circle-system/swipeengine/internal/model"
)

// UserEmbeddingRepo implements repo.UserEmbeddingRepo against the
// user_embeddings table.
type UserEmbeddingRepo struct {
	db *DB
}

// NewUserEmbeddingRepo builds a UserEmbeddingRepo over db.
func NewUserEmbeddingRepo(db *DB) *UserEmbeddingRepo {
	return &UserEmbeddingRepo{db: db}
}

func (r *UserEmbeddingRepo) FindByUserID(ctx context.Context, userID string) (*model.UserEmbedding, error) {
	var (
		e                 model.UserEmbedding
		rawVector         any
		interests         []string
		lastInteractionAt *time.Time
	)
	err := r.db.pool.QueryRow(ctx,
		`SELECT user_id, embedding, updated_at, interests, last_interaction_at
		 FROM user_embeddings WHERE user_id = $1`, userID,
	).Scan(&e.UserID, &rawVector, &e.UpdatedAt, &interests, &lastInteractionAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find user embedding by user id: %w", err)
	}

	vec, err := decodeVector(rawVector)
	if err != nil {
		return nil, err
	}
	e.Vector = vec
	e.Metadata.Interests = interests
	e.Metadata.LastInteractionAt = lastInteractionAt
	return &e, nil
}

func (r *UserEmbeddingRepo) Save(ctx context.Context, e model.UserEmbedding) error {
	interests := e.Metadata.Interests
	if interests == nil {
		interests = []string{}
	}
	_, err := r.db.pool.Exec(ctx,
		`INSERT INTO user_embeddings (user_id, embedding, updated_at, interests, last_interaction_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
		   embedding = EXCLUDED.embedding,
		   updated_at = EXCLUDED.updated_at,
		   interests = EXCLUDED.interests,
		   last_interaction_at = EXCLUDED.last_interaction_at`,
		e.UserID, encodeVector(e.Vector), e.UpdatedAt, interests, e.Metadata.LastInteractionAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save user embedding: %w", err)
	}
	return nil
}

func (r *UserEmbeddingRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.pool.QueryRow(ctx, `SELECT count(*) FROM user_embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count user embeddings: %w", err)
	}
	return n, nil
}
