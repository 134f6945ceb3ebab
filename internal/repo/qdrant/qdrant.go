// Package qdrant implements repo.ContentEmbeddingRepo's ANN-accelerated
// FindSimilar against a Qdrant collection, following the teacher's
// search.QdrantIndex: gRPC client construction from a REST-style URL, an
// idempotent EnsureCollection bootstrap with payload field indexes, and a
// 5-second-cached Healthy check.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/circle-system/swipeengine/internal/model"
)

// Config holds the connection and collection parameters for a
// ContentIndex.
type Config struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// ContentIndex implements the ANN-accelerated half of
// repo.ContentEmbeddingRepo: FindSimilar, plus Upsert/DeleteByIDs to keep the
// index in sync with writes made through the Postgres repo.
type ContentIndex struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	logger     *slog.Logger

	healthMu  sync.Mutex
	lastCheck time.Time
	lastErr   error
}

// parseURL extracts host, port, and TLS flag from a Qdrant URL. Accepts
// forms like "https://host:6333", "http://host:6333", or "host:6334"; the
// REST port 6333 is translated to the gRPC port 6334 since this client only
// speaks gRPC.
func parseURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("qdrant: invalid URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("qdrant: invalid port in URL: %q", portStr)
		}
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// New connects to the Qdrant server via gRPC.
func New(cfg Config, logger *slog.Logger) (*ContentIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect to %s:%d: %w", host, port, err)
	}

	return &ContentIndex{
		client:     client,
		collection: cfg.Collection,
		dims:       cfg.Dims,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection if it doesn't already exist, with
// HNSW parameters tuned for cosine similarity over content embeddings, plus
// keyword/float payload indexes for filtered lookups.
func (q *ContentIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection exists: %w", err)
	}
	if exists {
		q.logger.Info("qdrant: collection already exists", "collection", q.collection)
		return nil
	}

	m := uint64(16)
	efConstruct := uint64(128)

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.dims,
			Distance: qdrant.Distance_Cosine,
			HnswConfig: &qdrant.HnswConfigDiff{
				M:           &m,
				EfConstruct: &efConstruct,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", q.collection, err)
	}

	keywordType := qdrant.FieldType_FieldTypeKeyword
	for _, field := range []string{"author_id", "topics"} {
		if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      &keywordType,
		}); err != nil {
			return fmt.Errorf("qdrant: create index on %q: %w", field, err)
		}
	}

	floatType := qdrant.FieldType_FieldTypeFloat
	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "updated_at_unix",
		FieldType:      &floatType,
	}); err != nil {
		return fmt.Errorf("qdrant: create index on updated_at_unix: %w", err)
	}

	q.logger.Info("qdrant: created collection with payload indexes", "collection", q.collection, "dims", q.dims)
	return nil
}

// FindSimilar queries Qdrant for the nearest content embeddings to v.
// Results below minSim are dropped; Qdrant's cosine distance returns
// similarity directly (unlike pgvector's distance operator), so no
// conversion is needed here.
func (q *ContentIndex) FindSimilar(ctx context.Context, v model.Vector, limit int, minSim float64) ([]model.ContentEmbedding, error) {
	query := make([]float32, len(v))
	for i, f := range v {
		query[i] = float32(f)
	}

	fetchLimit := uint64(limit)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(query),
		Limit:          &fetchLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}

	out := make([]model.ContentEmbedding, 0, len(scored))
	for _, sp := range scored {
		if float64(sp.Score) < minSim {
			continue
		}
		contentID := sp.Id.GetUuid()
		if contentID == "" {
			contentID = fmt.Sprintf("%d", sp.Id.GetNum())
		}
		e := model.ContentEmbedding{ContentID: contentID}
		if payload := sp.GetPayload(); payload != nil {
			if authorID, ok := payload["author_id"]; ok {
				e.Metadata.AuthorID = authorID.GetStringValue()
			}
			if topics, ok := payload["topics"]; ok {
				for _, t := range topics.GetListValue().GetValues() {
					e.Metadata.Topics = append(e.Metadata.Topics, t.GetStringValue())
				}
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Upsert inserts or updates content embeddings. Called after every write
// through the Postgres repo so the ANN index stays in sync; see
// CombinedContentEmbeddingRepo in combined.go for the fan-out that keeps
// both stores consistent.
func (q *ContentIndex) Upsert(ctx context.Context, embeddings []model.ContentEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(embeddings))
	for i, e := range embeddings {
		vec := make([]float32, len(e.Vector))
		for j, f := range e.Vector {
			vec[j] = float32(f)
		}
		topics := make([]any, len(e.Metadata.Topics))
		for j, t := range e.Metadata.Topics {
			topics[j] = t
		}
		payload := map[string]any{
			"author_id":       e.Metadata.AuthorID,
			"topics":          topics,
			"updated_at_unix": float64(e.UpdatedAt.Unix()),
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(e.ContentID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(embeddings), err)
	}
	return nil
}

// DeleteByIDs removes specific content embeddings from the index.
func (q *ContentIndex) DeleteByIDs(ctx context.Context, contentIDs []string) error {
	if len(contentIDs) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(contentIDs))
	for i, id := range contentIDs {
		pointIDs[i] = qdrant.NewID(id)
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete %d points: %w", len(contentIDs), err)
	}
	return nil
}

// Healthy returns nil if Qdrant is reachable. Results are cached for 5
// seconds to avoid hammering the health endpoint on every request.
func (q *ContentIndex) Healthy(ctx context.Context) error {
	q.healthMu.Lock()
	defer q.healthMu.Unlock()

	if time.Since(q.lastCheck) < 5*time.Second {
		return q.lastErr
	}

	_, err := q.client.HealthCheck(ctx)
	q.lastCheck = time.Now()
	if err != nil {
		q.lastErr = fmt.Errorf("qdrant: unhealthy: %w", err)
	} else {
		q.lastErr = nil
	}
	return q.lastErr
}

// Close shuts down the gRPC connection.
func (q *ContentIndex) Close() error {
	return q.client.Close()
}
