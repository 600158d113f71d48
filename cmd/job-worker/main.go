// Package main is the analysis worker entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storybible-api/internal/application/analysis"
	"storybible-api/internal/config"
	"storybible-api/internal/infrastructure/llm"
	"storybible-api/internal/infrastructure/messaging"
	"storybible-api/internal/infrastructure/persistence/postgres"
	"storybible-api/internal/infrastructure/persistence/redis"
	einoobs "storybible-api/internal/observability/eino"
	"storybible-api/internal/workflow/chain"
	"storybible-api/pkg/logger"
	"storybible-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	einoobs.Init()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

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
	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))

	factory := llm.NewEinoFactory(cfg)
	provider := factory.DefaultProvider()
	modelName := factory.ModelName(provider)

	svc := analysis.NewService(
		storyRepo, chapterRepo, jobRepo, analysisRepo, txMgr, producer,
		chain.NewChapterExtractChain(factory),
		chain.NewBibleSynthesizeChain(factory),
		chain.NewDirectAnalyzeChain(factory),
		provider, modelName, cfg.Analysis,
	)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamAnalysisJobs,
		Group:         messaging.ConsumerGroupAnalysisWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler(messaging.MessageTypeAnalysisJob, func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.AnalysisJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return svc.Run(msgCtx, &payload)
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go consumer.MonitorDLQ(ctx, 100)

	log := logger.FromContext(ctx)
	log.Info("job-worker started", "consumer", hostnameConsumerName())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
