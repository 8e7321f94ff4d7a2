// Package config loads settings from a JSON file backend with CRUMB_*
// environment overrides. Secrets (API keys, tokens) come from the
// environment only and are never written to disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Vector store backend names.
const (
	VectorBackendSQLite  = "sqlite"
	VectorBackendChromem = "chromem"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Catalog CatalogConfig
	Vector  VectorConfig
	Agent   AgentConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type LLMConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
	APIKey     string
}

type StorageConfig struct {
	DataDir string
}

type CatalogConfig struct {
	Path    string
	FAQPath string
}

type VectorConfig struct {
	Backend string
}

type AgentConfig struct {
	ProductMinScore   float64
	FAQMinScore       float64
	ValidatorMinScore float64
	MaxContextChars   int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		LLM: LLMConfig{
			BaseURL:    "https://openrouter.ai/api/v1",
			ChatModel:  "openai/gpt-4o-mini",
			EmbedModel: "openai/text-embedding-3-small",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Catalog: CatalogConfig{
			Path:    filepath.Join(dataDir, "catalog.json"),
			FAQPath: filepath.Join(dataDir, "faq.json"),
		},
		Vector: VectorConfig{
			Backend: VectorBackendSQLite,
		},
		Agent: AgentConfig{
			ProductMinScore:   0.8,
			FAQMinScore:       0.85,
			ValidatorMinScore: 0.7,
			MaxContextChars:   1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "crumb-data"
		}
	}
	return filepath.Join(dir, "crumb")
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/crumb/config.json, then applies CRUMB_* environment
// overrides. A missing LLM API key is not an error: the agent runs without
// a generative tier in that case.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	switch cfg.Vector.Backend {
	case VectorBackendSQLite, VectorBackendChromem:
	default:
		return Config{}, fmt.Errorf("invalid vector.backend %q: must be %q or %q",
			cfg.Vector.Backend, VectorBackendSQLite, VectorBackendChromem)
	}

	return cfg, nil
}
