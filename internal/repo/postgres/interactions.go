package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/circle-system/swipeengine/internal/model"
)

// InteractionRepo implements repo.InteractionRepo against the
// user_interactions table.
type InteractionRepo struct {
	db *DB
}

// NewInteractionRepo builds an InteractionRepo over db.
func NewInteractionRepo(db *DB) *InteractionRepo {
	return &InteractionRepo{db: db}
}

func scanInteraction(row interface {
	Scan(dest ...any) error
}) (model.UserInteraction, error) {
	var (
		i               model.UserInteraction
		durationSeconds *float64
		watchPercent    *float64
		topics          []string
	)
	if err := row.Scan(&i.UserID, &i.ContentID, &i.Type, &i.Timestamp, &durationSeconds, &watchPercent, &topics); err != nil {
		return model.UserInteraction{}, err
	}
	if durationSeconds != nil {
		i.Metadata.DurationSeconds = *durationSeconds
	}
	if watchPercent != nil {
		i.Metadata.WatchPercent = *watchPercent
	}
	i.Metadata.Topics = topics
	return i, nil
}

func (r *InteractionRepo) Save(ctx context.Context, i model.UserInteraction) error {
	topics := i.Metadata.Topics
	if topics == nil {
		topics = []string{}
	}
	_, err := r.db.pool.Exec(ctx,
		`INSERT INTO user_interactions (user_id, content_id, type, timestamp, duration_seconds, watch_percent, topics)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		i.UserID, i.ContentID, i.Type, i.Timestamp, i.Metadata.DurationSeconds, i.Metadata.WatchPercent, topics,
	)
	if err != nil {
		return fmt.Errorf("postgres: save user interaction: %w", err)
	}
	return nil
}

func (r *InteractionRepo) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]model.UserInteraction, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT user_id, content_id, type, timestamp, duration_seconds, watch_percent, topics
		 FROM user_interactions WHERE user_id = $1 ORDER BY timestamp DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: find interactions by user id: %w", err)
	}
	defer rows.Close()

	var out []model.UserInteraction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user interaction: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *InteractionRepo) FindRecentByUserID(ctx context.Context, userID string, days int, limit int) ([]model.UserInteraction, error) {
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	rows, err := r.db.pool.Query(ctx,
		`SELECT user_id, content_id, type, timestamp, duration_seconds, watch_percent, topics
		 FROM user_interactions WHERE user_id = $1 AND timestamp >= $2 ORDER BY timestamp DESC LIMIT $3`,
		userID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: find recent interactions by user id: %w", err)
	}
	defer rows.Close()

	var out []model.UserInteraction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user interaction: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *InteractionRepo) FindByUserIDAndType(ctx context.Context, userID string, t model.InteractionType) ([]model.UserInteraction, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT user_id, content_id, type, timestamp, duration_seconds, watch_percent, topics
		 FROM user_interactions WHERE user_id = $1 AND type = $2 ORDER BY timestamp DESC`, userID, t)
	if err != nil {
		return nil, fmt.Errorf("postgres: find interactions by user id and type: %w", err)
	}
	defer rows.Close()

	var out []model.UserInteraction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user interaction: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *InteractionRepo) HasInteracted(ctx context.Context, userID, contentID string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_interactions WHERE user_id = $1 AND content_id = $2)`, userID, contentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: has interacted: %w", err)
	}
	return exists, nil
}

func (r *InteractionRepo) FindInteractedContentIDs(ctx context.Context, userID string, types []model.InteractionType) ([]string, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT DISTINCT content_id FROM user_interactions WHERE user_id = $1 AND type = ANY($2)`, userID, types)
	if err != nil {
		return nil, fmt.Errorf("postgres: find interacted content ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan content id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *InteractionRepo) CountByUserID(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.pool.QueryRow(ctx, `SELECT count(*) FROM user_interactions WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count interactions by user id: %w", err)
	}
	return n, nil
}

func (r *InteractionRepo) FindByContentID(ctx context.Context, contentID string) ([]model.UserInteraction, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT user_id, content_id, type, timestamp, duration_seconds, watch_percent, topics
		 FROM user_interactions WHERE content_id = $1 ORDER BY timestamp DESC`, contentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: find interactions by content id: %w", err)
	}
	defer rows.Close()

	var out []model.UserInteraction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user interaction: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// DeleteOlderThan is the administrative retention hook; it is never invoked
// from the request path, only from the prune subcommand.
func (r *InteractionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM user_interactions WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete interactions older than cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}
