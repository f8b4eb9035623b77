package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fluency/internal/app"
	"fluency/internal/config"
	"fluency/internal/metrics"
	"fluency/internal/protocol"
	httpTransport "fluency/internal/transport/http"
)

//go:embed web/*
var webFS embed.FS

var rootCmd = &cobra.Command{
	Use:   "fluency",
	Short: "Verbal-fluency experiment server",
	Long: `fluency runs timed category-fluency trials in the browser.

Participants type as many words as they can for each category while prime
words are flashed on screen, either on a fixed schedule or after a random
number of responses. Results are exported as JSON or CSV.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, validateCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg := config.Load()

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting fluency experiment server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	proto, err := loadProtocol(cfg.Experiment.ProtocolFile)
	if err != nil {
		return err
	}
	logger.Info("protocol loaded", "file", cfg.Experiment.ProtocolFile, "trials", len(proto.Trials))

	m := metrics.New()

	hub := app.NewSessionHub(proto, app.HubConfig{
		MaxSessions: cfg.Experiment.MaxSessions,
		SessionTTL:  cfg.Experiment.SessionTTL,
	}, app.SessionOptions{Metrics: m}, logger)
	defer hub.Close()

	// Get the web subdirectory from embed FS
	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		return fmt.Errorf("web assets: %w", err)
	}

	server := httpTransport.NewServer(cfg, hub, m, logger, webContent)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

// loadProtocol reads path, or returns the built-in protocol when path is empty
func loadProtocol(path string) (*protocol.Protocol, error) {
	if path == "" {
		return app.DefaultProtocol(), nil
	}
	return protocol.Load(path)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Level),
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, logOpts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
