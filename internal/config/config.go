// Package config loads gateway configuration from an optional YAML file
// overlaid with QPSS_-prefixed environment variables. Nested keys use a
// double underscore in the environment, e.g. QPSS_OPENAI__API_KEY.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server ServerConfig `koanf:"server"`
	OpenAI OpenAIConfig `koanf:"openai"`
	Search SearchConfig `koanf:"search"`
	Chat   ChatConfig   `koanf:"chat"`
	Sync   SyncConfig   `koanf:"sync"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type OpenAIConfig struct {
	APIKey       string `koanf:"api_key"`
	Organization string `koanf:"organization"`
	Project      string `koanf:"project"`
	BaseURL      string `koanf:"base_url"`
	AssistantID  string `koanf:"assistant_id"`
}

type SearchConfig struct {
	PensionsStoreID string        `koanf:"pensions_store_id"`
	HealthStoreID   string        `koanf:"health_store_id"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheSize       int           `koanf:"cache_size"`
	MaxAttempts     int           `koanf:"max_attempts"`
	RetryBase       time.Duration `koanf:"retry_base"`
}

type ChatConfig struct {
	PollInterval   time.Duration `koanf:"poll_interval"`
	RunDeadline    time.Duration `koanf:"run_deadline"`
	TranscriptPath string        `koanf:"transcript_path"`
}

type SyncConfig struct {
	Mode string `koanf:"mode"`
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), then overlays QPSS_-prefixed environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("QPSS_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "QPSS_")), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"server.port":              8080,
		"openai.base_url":          "https://api.openai.com/v1",
		"search.pensions_store_id": "vs_68df753c6f8c819199f785d76313f15a",
		"search.health_store_id":   "vs_68df753edaf0819185c0e8f7c823b02a",
		"search.cache_ttl":         "60s",
		"search.cache_size":        512,
		"search.max_attempts":      3,
		"search.retry_base":        "500ms",
		"chat.poll_interval":       "750ms",
		"chat.run_deadline":        "2m",
		"sync.mode":                "auto",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// The OpenAI dashboard conventions win for the two secrets most
	// deployments already export.
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.OpenAI.AssistantID == "" {
		cfg.OpenAI.AssistantID = os.Getenv("ASSISTANT_ID")
	}

	return &cfg, nil
}
