// Command swipeengine runs the recommendation engine as a standalone HTTP
// service: it wires Postgres (source of truth), an optional Qdrant ANN
// index, an embedding provider, and the engine's pipeline stages, then
// serves getRecommendations and reclusterMoments over HTTP until signaled
// to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/circle-system/swipeengine/internal/candidate"
	"github.com/circle-system/swipeengine/internal/cluster"
	"github.com/circle-system/swipeengine/internal/clustermatch"
	"github.com/circle-system/swipeengine/internal/config"
	"github.com/circle-system/swipeengine/internal/embedding"
	"github.com/circle-system/swipeengine/internal/engine"
	"github.com/circle-system/swipeengine/internal/ingest"
	"github.com/circle-system/swipeengine/internal/ranker"
	"github.com/circle-system/swipeengine/internal/repo"
	"github.com/circle-system/swipeengine/internal/repo/postgres"
	"github.com/circle-system/swipeengine/internal/repo/qdrant"
	"github.com/circle-system/swipeengine/internal/server"
	"github.com/circle-system/swipeengine/internal/telemetry"
	"github.com/circle-system/swipeengine/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "prune" {
		os.Exit(runPrune())
		return
	}
	os.Exit(run0())
}

func run0() int {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logger.With("service", cfg.ServiceName)
	logger.Info("swipeengine starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	userEmbeddings := postgres.NewUserEmbeddingRepo(db)
	pgContentEmbeddings := postgres.NewContentEmbeddingRepo(db)
	clusters := postgres.NewClusterRepo(db)
	interactions := postgres.NewInteractionRepo(db)

	var contentEmbeddings repo.ContentEmbeddingRepo = pgContentEmbeddings
	if cfg.QdrantURL != "" {
		index, err := qdrant.New(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dims:       uint64(cfg.EmbeddingDimensions),
		}, logger)
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}
		defer func() { _ = index.Close() }()

		if err := index.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("qdrant ensure collection: %w", err)
		}

		contentEmbeddings = qdrant.NewCombinedContentEmbeddingRepo(pgContentEmbeddings, index, logger)
		logger.Info("qdrant: enabled", "collection", cfg.QdrantCollection)
	} else {
		logger.Info("qdrant: disabled (no QDRANT_URL)")
	}

	textSvc, visualSvc, transcriptionSvc := newEmbeddingServices(cfg, logger)
	ingestPipeline := ingest.New(contentEmbeddings, textSvc, visualSvc, transcriptionSvc, logger)

	distance, err := clusterDistance(cfg.ClusterDistance)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	clusterer, err := cluster.NewClusterer(cluster.Config{
		Epsilon:   cfg.ClusterEpsilon,
		MinPoints: cfg.ClusterMinPoints,
		Distance:  distance,
		Workers:   cfg.ClusterWorkers,
	})
	if err != nil {
		return fmt.Errorf("clusterer: %w", err)
	}

	matcher := clustermatch.New(clustermatch.Config{
		EmbeddingWeight:   cfg.MatchEmbeddingWeight,
		InterestWeight:    cfg.MatchInterestWeight,
		ContextWeight:     cfg.MatchContextWeight,
		MinMatchThreshold: cfg.MatchMinThreshold,
		MaxClusters:       cfg.MatchMaxClusters,
	}, logger)

	selector := candidate.New(clusters, interactions, candidate.Config{
		TimeWindowHours: cfg.CandidateTimeWindowHours,
		MinClusterScore: cfg.CandidateMinClusterScore,
	}, logger)

	rnk := ranker.New(ranker.Config{
		RelevanceWeight:         cfg.RankRelevanceWeight,
		EngagementWeight:        cfg.RankEngagementWeight,
		NoveltyWeight:           cfg.RankNoveltyWeight,
		DiversityWeight:         cfg.RankDiversityWeight,
		ContextWeight:           cfg.RankContextWeight,
		PeakHoursWeight:         cfg.RankPeakHoursWeight,
		LowEngagementWeight:     cfg.RankLowEngageWeight,
		WeekendWeight:           cfg.RankWeekendWeight,
		MidWeekWeight:           cfg.RankMidWeekWeight,
		WeekStartEndWeight:      cfg.RankWeekStartEndWeight,
		SameLocationWeight:      cfg.RankSameLocationWeight,
		DifferentLocationWeight: cfg.RankDiffLocationWeight,
	}, logger)

	// ClusterMaxPoints caps N for the clusterer's O(N^2) distance matrix, so
	// it also bounds how many embeddings one recluster run loads.
	reclusterBatchSize := cfg.ReclusterBatchSize
	if reclusterBatchSize > cfg.ClusterMaxPoints {
		reclusterBatchSize = cfg.ClusterMaxPoints
	}
	eng := engine.New(userEmbeddings, contentEmbeddings, clusters, interactions,
		clusterer, matcher, selector, rnk,
		engine.Config{
			ReclusterBatchSize: reclusterBatchSize,
			ColdStartSeed:      cfg.ColdStartSeed,
			ColdStartSeedSet:   cfg.ColdStartSeedSet,
		}, logger)

	srv := server.New(server.Config{
		Engine:       eng,
		Ingest:       ingestPipeline,
		Logger:       logger,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Version:      version,
	})

	go reclusterLoop(ctx, eng, logger, cfg.ReclusterInterval)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("swipeengine shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("swipeengine stopped")
	return nil
}

// reclusterLoop periodically triggers reclusterMoments. The engine itself
// coalesces concurrent triggers (spec §4.8), so a trigger that overlaps a
// running pass collapses into a single pending run rather than a pile-up.
func reclusterLoop(ctx context.Context, eng *engine.Engine, logger *slog.Logger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, interval)
			if err := eng.ReclusterMoments(opCtx); err != nil {
				logger.Warn("scheduled recluster failed", "error", err)
			}
			cancel()
		}
	}
}

func clusterDistance(raw string) (cluster.Distance, error) {
	switch raw {
	case "euclidean":
		return cluster.DistanceEuclidean, nil
	case "cosine":
		return cluster.DistanceCosine, nil
	case "manhattan":
		return cluster.DistanceManhattan, nil
	default:
		return "", fmt.Errorf("unknown cluster distance %q", raw)
	}
}

// newEmbeddingServices selects embedding backends based on configuration.
// "ollama" wires a reachable Ollama server for text embeddings; "noop"
// disables embedding generation entirely; "auto" probes Ollama and falls
// back to noop. Visual and transcription backends have no wired provider
// in this deployment (see NoopVisualService and NoopTranscriptionService
// in internal/embedding), so they are
// always noop regardless of cfg.EmbeddingProvider.
func newEmbeddingServices(cfg config.Config, logger *slog.Logger) (repo.TextEmbeddingService, repo.VisualEmbeddingService, repo.TranscriptionService) {
	visualSvc := embedding.NoopVisualService{}
	transcriptionSvc := embedding.NoopTranscriptionService{}

	switch cfg.EmbeddingProvider {
	case "ollama":
		logger.Info("embedding provider: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return embedding.NewOllamaTextService(cfg.OllamaURL, cfg.OllamaModel), visualSvc, transcriptionSvc
	case "noop":
		logger.Info("embedding provider: noop (embedding generation disabled)")
		return embedding.NoopTextService{}, visualSvc, transcriptionSvc
	case "auto":
		fallthrough
	default:
		if ollamaReachable(cfg.OllamaURL) {
			logger.Info("embedding provider: ollama (auto-detected)", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
			return embedding.NewOllamaTextService(cfg.OllamaURL, cfg.OllamaModel), visualSvc, transcriptionSvc
		}
		logger.Warn("no embedding provider reachable, using noop")
		return embedding.NoopTextService{}, visualSvc, transcriptionSvc
	}
}

func ollamaReachable(baseURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runPrune deletes interactions older than the configured retention
// window. Invoked as `swipeengine prune`; never called from the request
// path or internal/engine.
func runPrune() int {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("postgres", "error", err)
		return 1
	}
	defer db.Close()

	interactions := postgres.NewInteractionRepo(db)
	cutoff := time.Now().AddDate(0, 0, -cfg.InteractionRetentionDays)

	deleted, err := interactions.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error("prune failed", "error", err)
		return 1
	}
	logger.Info("prune complete", "deleted", deleted, "cutoff", cutoff)
	return 0
}
