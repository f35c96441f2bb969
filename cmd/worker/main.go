package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"recruify/internal/ai"
	"recruify/internal/config"
	"recruify/internal/database"
	"recruify/internal/metrics"
	"recruify/internal/notify"
	"recruify/internal/resumetext"
	"recruify/internal/storage"
	"recruify/internal/tasks"
	"recruify/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	if err := resumetext.SetLicenseKey(cfg.AI.UnidocLicenseKey); err != nil {
		log.Fatalf("set pdf license key: %v", err)
	}
	completer, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("init ai completer: %v", err)
	}
	aiService := ai.NewService(completer)

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			tasks.QueueAI:      6,
			tasks.QueueDefault: 4,
		},
	})

	scoreHandler := worker.NewScoreTaskHandler(
		db,
		storageClient,
		aiService,
		notify.NewRedisPublisher(redisClient),
		logger,
		cfg.API.MaxResumeBytes,
	)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeApplicantScore, scoreHandler)

	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr),
		slog.Bool("ai_mock", aiService.Mock()),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
