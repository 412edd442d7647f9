package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/gopherchat/internal/telegram"
)

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the Telegram bridge until signaled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is not configured")
		}

		client, _, store, err := newStreamClient()
		if err != nil {
			return err
		}

		adapter, err := telegram.New(cfg.Telegram.Token, client, store)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("telegram bridge started", "server_url", cfg.ServerURL)
		adapter.Start(ctx)
		slog.Info("telegram bridge stopped")
		return nil
	},
}
