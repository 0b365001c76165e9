// Command syncassistant reconciles the hosted assistant with the
// source-controlled definition and exits. Run it after editing the
// definition when the gateway itself is configured with sync mode manual.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/qpss/knowledge-gateway/internal/assistant"
	"github.com/qpss/knowledge-gateway/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.OpenAI.APIKey == "" {
		log.Fatal("Missing API key configuration")
	}
	if cfg.OpenAI.AssistantID == "" {
		log.Fatal("Missing assistant ID configuration")
	}

	client := assistant.NewClient(cfg.OpenAI.APIKey,
		assistant.WithBaseURL(cfg.OpenAI.BaseURL),
		assistant.WithOrganization(cfg.OpenAI.Organization),
		assistant.WithProject(cfg.OpenAI.Project),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := assistant.EnsureConfiguration(ctx, client, cfg.OpenAI.AssistantID,
		assistant.DefaultDefinition(), assistant.SyncAuto)
	if err != nil {
		logger.Error("sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if result.Updated {
		fmt.Printf("assistant %s updated\n", cfg.OpenAI.AssistantID)
	} else {
		fmt.Printf("assistant %s already in sync\n", cfg.OpenAI.AssistantID)
	}
}
