package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gopherchat/internal/api"
	"github.com/user/gopherchat/internal/config"
	"github.com/user/gopherchat/internal/memory"
	"github.com/user/gopherchat/internal/state"
	"github.com/user/gopherchat/internal/stream"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "gopherchat",
	Short:         "Streaming chat client for a gopherchat server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		setupLogging(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath,
		"config",
		filepath.Join(os.Getenv("HOME"), ".gopherchat", "config.json"),
		"config file path")
}

func loadConfig() *config.Config { return cfg }

func setupLogging(logLevel string) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newStreamClient wires the backend, local store, and streaming client
// from config.
func newStreamClient() (*stream.Client, *api.Client, *state.ConversationStore, error) {
	backend := api.New(cfg.ServerURL)
	store := state.NewConversationStore()

	extractor, err := memory.New(cfg.Memory.FileName, cfg.Memory.MaxContextTokens)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create extractor: %w", err)
	}

	client := stream.New(backend, store, stream.WithFactExtractor(extractor))
	return client, backend, store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
