package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voice-client/config"
)

var rootCmd = &cobra.Command{
	Use:   "voice-client",
	Short: "Voice assistant client streaming microphone audio to a conversation server",
	Long: `voice-client captures microphone audio, streams it as Opus over a WebSocket
channel to a conversation server and plays the synthesized replies.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the voice session until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return run(ctx, cfg, logger)
	},
}

var checkVersionCmd = &cobra.Command{
	Use:   "check-version",
	Short: "Query the version endpoint once and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.OTA.VersionURL == "" {
			return fmt.Errorf("ota.version_url is not configured")
		}

		id, err := loadIdentity(cfg)
		if err != nil {
			return err
		}

		info, err := newVersionClient(cfg, id).CheckVersion(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking version: %w", err)
		}

		logger.Info("version check",
			"device_id", id.MACAddress,
			"client_id", id.ClientID,
			"firmware", info.FirmwareVersion,
			"websocket_url", info.WebSocketURL,
			"needs_activation", info.NeedsActivation(),
		)
		if info.NeedsActivation() {
			fmt.Fprintf(cmd.OutOrStdout(), "activation required: %s\n", info.ActivationMessage)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "path to config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkVersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, setupLogger(cfg.Log), nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	go app.notifier.Run(ctx)

	if app.control != nil {
		if err := app.control.Start(ctx); err != nil {
			return fmt.Errorf("starting control server: %w", err)
		}
	}

	logger.Info("starting voice client",
		"audio_backend", cfg.Audio.Backend,
		"break_mode", cfg.Wake.BreakMode,
		"wake", cfg.Wake.Enabled,
		"display", cfg.Display.Mode,
	)

	err = app.session.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("session error", "error", err)
		return err
	}

	logger.Info("shutting down")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
