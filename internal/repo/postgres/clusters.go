package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/circle-system/swipeengine/internal/model"
)

// ClusterRepo implements repo.ClusterRepo against the clusters and
// cluster_assignments tables.
type ClusterRepo struct {
	db *DB
}

// NewClusterRepo builds a ClusterRepo over db.
func NewClusterRepo(db *DB) *ClusterRepo {
	return &ClusterRepo{db: db}
}

func (r *ClusterRepo) scanCluster(row pgx.Row) (model.Cluster, error) {
	var (
		c                  model.Cluster
		rawCentroid        any
		topics, languages  []string
		activeFrom, to     *float64
		geography          *string
	)
	if err := row.Scan(
		&c.ID, &rawCentroid, &c.Size, &c.Density, &c.Coherence,
		&topics, &activeFrom, &to, &geography, &languages, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return model.Cluster{}, err
	}
	centroid, err := decodeVector(rawCentroid)
	if err != nil {
		return model.Cluster{}, err
	}
	c.Centroid = centroid
	c.Topics = topics
	c.Languages = languages
	if geography != nil {
		c.Geography = *geography
	}
	if activeFrom != nil && to != nil {
		c.ActiveTime = &model.TimeOfDayRange{From: *activeFrom, To: *to}
	}
	return c, nil
}

func (r *ClusterRepo) Save(ctx context.Context, c model.Cluster) error {
	return r.saveOne(ctx, r.db.pool, c)
}

func (r *ClusterRepo) saveOne(ctx context.Context, q queryer, c model.Cluster) error {
	topics := c.Topics
	if topics == nil {
		topics = []string{}
	}
	languages := c.Languages
	if languages == nil {
		languages = []string{}
	}
	var from, to *float64
	if c.ActiveTime != nil {
		from, to = &c.ActiveTime.From, &c.ActiveTime.To
	}
	var geography *string
	if c.Geography != "" {
		geography = &c.Geography
	}
	_, err := q.Exec(ctx,
		`INSERT INTO clusters (id, centroid, size, density, coherence, topics, active_from, active_to, geography, languages, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   centroid = EXCLUDED.centroid, size = EXCLUDED.size, density = EXCLUDED.density,
		   coherence = EXCLUDED.coherence, topics = EXCLUDED.topics,
		   active_from = EXCLUDED.active_from, active_to = EXCLUDED.active_to,
		   geography = EXCLUDED.geography, languages = EXCLUDED.languages, updated_at = EXCLUDED.updated_at`,
		c.ID, encodeVector(c.Centroid), c.Size, c.Density, c.Coherence, topics,
		from, to, geography, languages, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save cluster: %w", err)
	}
	return nil
}

// SaveMany persists a full clustering run's output inside a single
// transaction so a reader never observes a partially-written generation of
// clusters.
func (r *ClusterRepo) SaveMany(ctx context.Context, cs []model.Cluster) error {
	if len(cs) == 0 {
		return nil
	}
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save many clusters tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range cs {
		if err := r.saveOne(ctx, tx, c); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save many clusters: %w", err)
	}
	return nil
}

func (r *ClusterRepo) FindAll(ctx context.Context) ([]model.Cluster, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT id, centroid, size, density, coherence, topics, active_from, active_to, geography, languages, created_at, updated_at
		 FROM clusters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: find all clusters: %w", err)
	}
	defer rows.Close()

	var out []model.Cluster
	for rows.Next() {
		c, err := r.scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClusterRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Cluster, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.pool.Query(ctx,
		`SELECT id, centroid, size, density, coherence, topics, active_from, active_to, geography, languages, created_at, updated_at
		 FROM clusters WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: find clusters by ids: %w", err)
	}
	defer rows.Close()

	var out []model.Cluster
	for rows.Next() {
		c, err := r.scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClusterRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.pool.Exec(ctx, `DELETE FROM clusters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete cluster: %w", err)
	}
	return nil
}

func (r *ClusterRepo) SaveAssignment(ctx context.Context, a model.ClusterAssignment) error {
	_, err := r.db.pool.Exec(ctx,
		`INSERT INTO cluster_assignments (content_id, cluster_id, similarity, assigned_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (content_id) DO UPDATE SET
		   cluster_id = EXCLUDED.cluster_id, similarity = EXCLUDED.similarity, assigned_at = EXCLUDED.assigned_at`,
		a.ContentID, a.ClusterID, a.Similarity, a.AssignedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save cluster assignment: %w", err)
	}
	return nil
}

func (r *ClusterRepo) FindAssignmentsByContentID(ctx context.Context, contentID string) ([]model.ClusterAssignment, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT content_id, cluster_id, similarity, assigned_at FROM cluster_assignments WHERE content_id = $1`, contentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: find assignments by content id: %w", err)
	}
	defer rows.Close()

	var out []model.ClusterAssignment
	for rows.Next() {
		var a model.ClusterAssignment
		if err := rows.Scan(&a.ContentID, &a.ClusterID, &a.Similarity, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan cluster assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ClusterRepo) FindContentIDsByClusterID(ctx context.Context, clusterID string, limit int) ([]string, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT content_id FROM cluster_assignments WHERE cluster_id = $1 ORDER BY similarity DESC LIMIT $2`, clusterID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: find content ids by cluster id: %w", err)
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

func (r *ClusterRepo) DeleteAssignmentsByContentID(ctx context.Context, contentID string) error {
	if _, err := r.db.pool.Exec(ctx, `DELETE FROM cluster_assignments WHERE content_id = $1`, contentID); err != nil {
		return fmt.Errorf("postgres: delete assignments by content id: %w", err)
	}
	return nil
}

// UpdateClusterStats recomputes size and density from the current
// assignment rows without running a full re-cluster. Density is approximated
// as the mean similarity of the cluster's members to its centroid,
// since the assignment row already carries that similarity from the last
// clustering pass.
func (r *ClusterRepo) UpdateClusterStats(ctx context.Context, clusterID string) error {
	_, err := r.db.pool.Exec(ctx,
		`UPDATE clusters SET
		   size = sub.size,
		   density = sub.density,
		   updated_at = now()
		 FROM (
		   SELECT count(*) AS size, coalesce(avg(similarity), 0) AS density
		   FROM cluster_assignments WHERE cluster_id = $1
		 ) AS sub
		 WHERE clusters.id = $1`, clusterID)
	if err != nil {
		return fmt.Errorf("postgres: update cluster stats: %w", err)
	}
	return nil
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting saveOne run
// either standalone or inside a transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
