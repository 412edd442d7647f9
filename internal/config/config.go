package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL string `json:"server_url"`
	LogLevel  string `json:"log_level"`
	DataDir   string `json:"data_dir"`
	Memory    struct {
		FileName         string `json:"file_name"`
		MaxContextTokens int    `json:"max_context_tokens"`
	} `json:"memory"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
}

func Load(path string) (*Config, error) {
	// A .env beside the binary can carry env overrides in dev setups.
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.ServerURL = "http://localhost:8315"
	cfg.LogLevel = "info"
	cfg.DataDir = filepath.Join(os.Getenv("HOME"), ".gopherchat")
	cfg.Memory.FileName = "MEMORY.md"
	cfg.Memory.MaxContextTokens = 8000

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if url := os.Getenv("GOPHERCHAT_SERVER_URL"); url != "" {
		cfg.ServerURL = url
	}
	if level := os.Getenv("GOPHERCHAT_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if budget := os.Getenv("GOPHERCHAT_MEMORY_TOKENS"); budget != "" {
		if n, err := strconv.Atoi(budget); err == nil && n > 0 {
			cfg.Memory.MaxContextTokens = n
		}
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
