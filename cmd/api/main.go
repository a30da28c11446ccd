package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sehatline/sehatline/internal/api"
	"github.com/sehatline/sehatline/internal/config"
	"github.com/sehatline/sehatline/internal/conversation"
	"github.com/sehatline/sehatline/internal/database"
	"github.com/sehatline/sehatline/internal/llm"
	"github.com/sehatline/sehatline/internal/middleware"
	inats "github.com/sehatline/sehatline/internal/nats"
	"github.com/sehatline/sehatline/internal/orchestrator"
	"github.com/sehatline/sehatline/internal/ratelimit"
	iredis "github.com/sehatline/sehatline/internal/redis"
	"github.com/sehatline/sehatline/internal/retrieval"
	"github.com/sehatline/sehatline/internal/server"
	"github.com/sehatline/sehatline/internal/speech"
	"github.com/sehatline/sehatline/internal/whatsapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	if cfg.DB.MigrationsPath != "" {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	publisher := inats.NewPublisher(natsClient.JetStream())
	consumerMgr := inats.NewConsumerManager(natsClient.JetStream())

	// Domain services
	store := conversation.NewStore(redisClient, cfg.Limits.ContextTTLSec)
	limiter := ratelimit.NewLimiter(redisClient, cfg.Limits.RateMax, cfg.Limits.RateWindowSec)
	gemini := llm.NewGeminiClient(cfg.LLM, cfg.Limits.TurnTimeout, cfg.Limits.HistoryMax, cfg.Limits.RetrievalTopK)
	retriever := retrieval.NewRetriever(pool, gemini, cfg.Limits.MinRelevance)
	speechClient := speech.NewGoogleClient(cfg.Speech, cfg.Limits.CallTimeout)
	gateway := whatsapp.NewGateway(cfg.WhatsApp)

	orch := orchestrator.New(
		store, limiter, retriever, gemini,
		speechClient, speechClient, gateway, publisher,
		redisClient, consumerMgr, cfg.Limits,
	)
	deliverer := whatsapp.NewDeliverer(gateway, consumerMgr)

	go func() {
		if err := orch.Start(ctx); err != nil {
			slog.Error("orchestrator stopped", "error", err)
		}
	}()
	go func() {
		if err := deliverer.Start(ctx); err != nil {
			slog.Error("deliverer stopped", "error", err)
		}
	}()

	// HTTP surface
	webhookHandler := whatsapp.NewHandler(cfg.WhatsApp.VerifyToken, publisher, gateway)
	ipLimiter := middleware.NewIPRateLimiter(redisClient, cfg.Limits.WebhookRateMax, cfg.Limits.WebhookRateWindowSec)

	router := api.NewRouter(pool, redisClient, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		WebhookRateLimiter: ipLimiter.Middleware,
	}, api.HandlerSet{
		VerifyWebhook:  webhookHandler.Verify,
		ReceiveWebhook: webhookHandler.Receive,
	})

	srv := server.New(cfg.Server, router)
	if err := srv.Start(cancel); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
