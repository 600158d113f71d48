// Package main is the HTTP API entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storybible-api/internal/application/analysis"
	"storybible-api/internal/application/story"
	"storybible-api/internal/config"
	"storybible-api/internal/domain/entity"
	"storybible-api/internal/infrastructure/llm"
	"storybible-api/internal/infrastructure/messaging"
	"storybible-api/internal/infrastructure/persistence/postgres"
	"storybible-api/internal/infrastructure/persistence/redis"
	einoobs "storybible-api/internal/observability/eino"
	"storybible-api/internal/interfaces/http/handler"
	"storybible-api/internal/interfaces/http/router"
	"storybible-api/internal/workflow/chain"
	"storybible-api/pkg/logger"
	"storybible-api/pkg/tracer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting api-gateway",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	einoobs.Init()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	if err := pgClient.AutoMigrate(
		&entity.Story{},
		&entity.Chapter{},
		&entity.AnalysisJob{},
		&entity.ChapterAnalysis{},
	); err != nil {
		logger.Fatal(ctx, "failed to migrate schema", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	txMgr := postgres.NewTxManager(pgClient)
	storyRepo := postgres.NewStoryRepository(pgClient)
	chapterRepo := postgres.NewChapterRepository(pgClient)
	jobRepo := postgres.NewJobRepository(pgClient)
	analysisRepo := postgres.NewChapterAnalysisRepository(pgClient)

	cache := redis.NewCache(redisClient)
	limiter := redis.NewRateLimiter(redisClient)
	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))

	factory := llm.NewEinoFactory(cfg)
	provider := factory.DefaultProvider()
	modelName := factory.ModelName(provider)

	analysisSvc := analysis.NewService(
		storyRepo, chapterRepo, jobRepo, analysisRepo, txMgr, producer,
		chain.NewChapterExtractChain(factory),
		chain.NewBibleSynthesizeChain(factory),
		chain.NewDirectAnalyzeChain(factory),
		provider, modelName, cfg.Analysis,
	)
	storySvc := story.NewService(storyRepo, chapterRepo, jobRepo, analysisRepo, txMgr, cache)

	r := router.New(cfg, router.Handlers{
		Health:  handler.NewHealthHandler(pgClient, redisClient),
		Story:   handler.NewStoryHandler(storySvc),
		Analyze: handler.NewAnalyzeHandler(analysisSvc, cache),
	}, limiter)

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
