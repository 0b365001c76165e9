package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/qpss/knowledge-gateway/internal/assistant"
	"github.com/qpss/knowledge-gateway/internal/chat"
	"github.com/qpss/knowledge-gateway/internal/config"
	"github.com/qpss/knowledge-gateway/internal/search"
	"github.com/qpss/knowledge-gateway/internal/server"
	"github.com/qpss/knowledge-gateway/internal/telemetry"
	"github.com/qpss/knowledge-gateway/internal/topic"
	"github.com/qpss/knowledge-gateway/internal/transcript"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfgPath := os.Getenv("QPSS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("qpss-knowledge-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	client := assistant.NewClient(cfg.OpenAI.APIKey,
		assistant.WithBaseURL(cfg.OpenAI.BaseURL),
		assistant.WithOrganization(cfg.OpenAI.Organization),
		assistant.WithProject(cfg.OpenAI.Project),
	)

	searcher := search.NewClient(search.Config{
		BaseURL:      cfg.OpenAI.BaseURL,
		APIKey:       cfg.OpenAI.APIKey,
		Organization: cfg.OpenAI.Organization,
		Project:      cfg.OpenAI.Project,
		StoreIDs: map[topic.Topic]string{
			topic.Pensions: cfg.Search.PensionsStoreID,
			topic.Health:   cfg.Search.HealthStoreID,
		},
		CacheTTL:    cfg.Search.CacheTTL,
		CacheSize:   cfg.Search.CacheSize,
		MaxAttempts: cfg.Search.MaxAttempts,
		RetryBase:   cfg.Search.RetryBase,
	}, search.WithLogger(logger))

	fulfiller := chat.NewFulfiller(searcher, logger)
	orchestrator := chat.NewOrchestrator(client, fulfiller, cfg.OpenAI.AssistantID,
		cfg.Chat.PollInterval, cfg.Chat.RunDeadline, logger)

	var handlerOpts []chat.HandlerOption

	if cfg.OpenAI.AssistantID != "" && cfg.Sync.Mode == string(assistant.SyncAuto) {
		assistantID := cfg.OpenAI.AssistantID
		ensurer := assistant.NewEnsurer(func(ctx context.Context) error {
			result, err := assistant.EnsureConfiguration(ctx, client, assistantID,
				assistant.DefaultDefinition(), assistant.SyncAuto)
			if err != nil {
				return err
			}
			if result.Updated {
				logger.Info("assistant configuration updated", slog.String("assistant_id", assistantID))
			}
			return nil
		})
		handlerOpts = append(handlerOpts, chat.WithEnsure(ensurer.Ensure))
	}

	if cfg.Chat.TranscriptPath != "" {
		turns, err := transcript.New(cfg.Chat.TranscriptPath)
		if err != nil {
			log.Fatalf("Failed to open transcript store: %v", err)
		}
		defer turns.Close()
		handlerOpts = append(handlerOpts, chat.WithTurnRecorder(turns))
	}

	handler := chat.NewHandler(client, orchestrator, topic.NewStore(),
		cfg.OpenAI.AssistantID, cfg.OpenAI.APIKey, logger, handlerOpts...)

	srv := server.New(cfg.Server.Port, logger)
	srv.Router.Post("/api/chat", handler.HandleChat)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("gateway shutdown complete")
}
