package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/background"
	"github.com/agentdata-cloud/agentdata/internal/cache"
	"github.com/agentdata-cloud/agentdata/internal/config"
	"github.com/agentdata-cloud/agentdata/internal/domain"
	logpkg "github.com/agentdata-cloud/agentdata/internal/logger"
	"github.com/agentdata-cloud/agentdata/internal/metrics"
	"github.com/agentdata-cloud/agentdata/internal/ratelimit"
	"github.com/agentdata-cloud/agentdata/internal/repository/embcache"
	firestorerepo "github.com/agentdata-cloud/agentdata/internal/repository/firestore"
	qdrantrepo "github.com/agentdata-cloud/agentdata/internal/repository/qdrant"
	"github.com/agentdata-cloud/agentdata/internal/retry"
	chiTransport "github.com/agentdata-cloud/agentdata/internal/transport/chi"
	openaiEmb "github.com/agentdata-cloud/agentdata/internal/transport/openai"
	healthuc "github.com/agentdata-cloud/agentdata/internal/usecase/health"
	searchuc "github.com/agentdata-cloud/agentdata/internal/usecase/search"
	vectorizeuc "github.com/agentdata-cloud/agentdata/internal/usecase/vectorize"
	"github.com/agentdata-cloud/agentdata/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting agentdata API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("qdrant_host", cfg.Qdrant.Host),
		zap.String("firestore_project", cfg.Firestore.ProjectID),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	ctx := context.Background()

	// Embedder chain: OpenAI -> Cached. A disabled provider leaves the
	// embedder nil and vectorization fails fast per request.
	embedder, embChecker := buildEmbedder(cfg, logger)

	// Metadata store (Firestore)
	metaStore, err := firestorerepo.New(ctx, firestorerepo.Config{
		ProjectID:  cfg.Firestore.ProjectID,
		Collection: cfg.Firestore.Collection,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create metadata store", zap.Error(err))
	}
	defer func() { _ = metaStore.Close() }()

	// Vector store (Qdrant), embedding queries with the same chain
	vectorStore, err := qdrantrepo.New(qdrantrepo.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		VectorDim:  uint64(cfg.Qdrant.VectorDim),
	}, embedder, logger)
	if err != nil {
		logger.Fatal("Failed to connect to vector store", zap.Error(err))
	}
	defer func() { _ = vectorStore.Close() }()

	if err := vectorStore.EnsureCollection(ctx); err != nil {
		logger.Fatal("Failed to ensure collection", zap.Error(err))
	}
	logger.Info("Connected to vector store", zap.String("collection", cfg.Qdrant.Collection))

	// Rate limiter gates every vector store write; retry policies share it.
	limiter := ratelimit.New(cfg.RateLimit.MinInterval(), cfg.RateLimit.MaxInterval(), logger)
	standardRetry := retry.New(limiter, logger)
	fastRetry := retry.NewFast(limiter, logger)

	runner := background.New(logger)

	vectorizeSvc := vectorizeuc.New(
		vectorStore, metaStore, embedder, standardRetry, runner, cfg.Embedding.Model, logger,
	).
		WithBatchRetrier(fastRetry).
		WithBudgets(budgetsFromConfig(cfg.Vectorize))
	if tagger := buildTagger(cfg, logger); tagger != nil {
		vectorizeSvc.WithTagger(tagger)
	}

	fetcher := searchuc.NewFetcher(metaStore, logger).
		WithLimits(
			cfg.Search.FetchConcurrency,
			cfg.Search.DegradedConcurrency,
			time.Duration(cfg.Search.FetchTimeoutMS)*time.Millisecond,
		).
		WithPrecheck(cfg.Search.ExistencePrecheck)
	searchSvc := searchuc.New(vectorStore, fetcher, logger).
		WithDefaults(cfg.Search.DefaultLimit, cfg.Search.ScoreThreshold, cfg.Search.OverfetchFactor)

	healthSvc := healthuc.New(vectorStore, metaStore, embChecker)

	server := chiTransport.NewServer(vectorizeSvc, searchSvc, healthSvc, vectorStore, logger).
		WithSearchBudget(time.Duration(cfg.Search.TimeoutMS) * time.Millisecond)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Let in-flight status writes land before exiting.
	if err := runner.Drain(shutdownCtx); err != nil {
		logger.Warn("Background writes did not finish", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder chain and its health checker.
func buildEmbedder(cfg config.Config, logger *zap.Logger) (domain.Embedder, healthuc.EmbeddingChecker) {
	if !cfg.Embedding.Enabled {
		logger.Warn("Embedding provider disabled, vectorization will fail fast")
		return nil, nil
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if len(cfg.Cache.Addrs) > 0 {
		kv, err := cache.New(cache.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Warn("Embedding cache unavailable, continuing without it", zap.Error(err))
		} else {
			ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
			embedder = embcache.New(base, kv, cfg.Embedding.Model, ttl, logger)
			logger.Info("Embedding cache enabled", zap.Duration("ttl", ttl))
		}
	}

	return embedder, base
}

// buildTagger creates the auto-tagging enricher when a tag model is set.
func buildTagger(cfg config.Config, logger *zap.Logger) vectorizeuc.Tagger {
	if !cfg.Embedding.Enabled || cfg.Embedding.TagModel == "" {
		return nil
	}
	return openaiEmb.NewTagger(&openaiEmb.Config{
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Logger:  logger,
	}, cfg.Embedding.TagModel)
}

func budgetsFromConfig(vc config.VectorizeConfig) vectorizeuc.Budgets {
	b := vectorizeuc.DefaultBudgets()
	b.EmbedTimeout = time.Duration(vc.EmbedTimeoutMS) * time.Millisecond
	b.TaggingTimeout = time.Duration(vc.TaggingTimeoutMS) * time.Millisecond
	b.DocTimeout = time.Duration(vc.DocTimeoutMS) * time.Millisecond
	b.ChunkTimeout = time.Duration(vc.ChunkTimeoutMS) * time.Millisecond
	b.ChunkSize = vc.ChunkSize
	b.BatchTarget = time.Duration(vc.BatchTargetMS) * time.Millisecond
	b.MaxTags = vc.MaxTags
	b.MaxBatchSize = vc.MaxBatchSize
	b.PreviewLen = vc.PreviewLen
	return b
}
