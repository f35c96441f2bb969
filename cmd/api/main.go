package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"recruify/internal/ai"
	"recruify/internal/api"
	"recruify/internal/auth"
	"recruify/internal/config"
	"recruify/internal/database"
	"recruify/internal/notify"
	"recruify/internal/pipeline"
	"recruify/internal/resumetext"
	"recruify/internal/scan"
	"recruify/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	logger.Info("database ready",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("db", cfg.Database.Name),
	)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	storageClient, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	authService, err := newAuthService(cfg.Auth)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	if err := resumetext.SetLicenseKey(cfg.AI.UnidocLicenseKey); err != nil {
		log.Fatalf("set pdf license key: %v", err)
	}

	completer, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("init ai completer: %v", err)
	}
	aiService := ai.NewService(completer)
	if aiService.Mock() {
		logger.Warn("no ai provider credential configured, serving mock responses")
	}

	notifier := notify.NewRedisPublisher(redisClient)
	pipelineService := pipeline.NewService(db, notifier, logger)

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, api.Dependencies{
		DB:             db,
		Redis:          redisClient,
		Queue:          asynqClient,
		Inspector:      inspector,
		Storage:        storageClient,
		Scanner:        scan.New(cfg.API.ClamdAddr),
		Auth:           authService,
		AI:             aiService,
		Pipeline:       pipelineService,
		Logger:         logger,
		AllowedOrigins: cfg.API.AllowedOrigins(),
		AuthOptions: api.AuthOptions{
			LoginRateLimitPerHour: cfg.Auth.LoginRateLimitPerHour,
			LoginLockThreshold:    cfg.Auth.LoginLockThreshold,
			LoginLockTTL:          cfg.Auth.LoginLockTTL,
			CookieDomain:          cfg.Auth.CookieDomain,
			DemoEnabled:           cfg.Demo.Enabled,
		},
		ApplicantOptions: api.ApplicantOptions{
			MaxResumeBytes: cfg.API.MaxResumeBytes,
			ScoreMaxRetry:  cfg.Worker.MaxRetry,
		},
		AIOptions: api.AIOptions{
			RateLimitPerHour: cfg.AI.RateLimitPerHour,
			RequestTimeout:   time.Duration(cfg.AI.RequestTimeoutSecs) * time.Second,
			MaxResumeBytes:   cfg.API.MaxResumeBytes,
		},
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown api server failed", slog.Any("error", err))
		}
	}()

	logger.Info("api listening", slog.String("addr", server.Addr), slog.Bool("ai_mock", aiService.Mock()))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to start api server: %v", err)
	}
}

func newAuthService(cfg config.AuthConfig) (*auth.AuthService, error) {
	privateKey, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	publicKey, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthService(privateKey, publicKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}
