package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-assistant/internal/api/http"
	"github.com/i474232898/weather-assistant/internal/config"
	"github.com/i474232898/weather-assistant/internal/scheduler"
)

var rootCmd = &cobra.Command{
	Use:          "weather-assistant",
	Short:        "Conversational weather assistant backed by live telemetry and a knowledge store",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		setupLogger(cfg)
		return serve(cmd.Context(), cfg)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Answer one question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		setupLogger(cfg)

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
		defer cancel()
		fmt.Fprintln(cmd.OutOrStdout(), a.orchestrator.Respond(ctx, strings.Join(args, " ")))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, askCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Scheduler that keeps tracked locations warm.
	sched := scheduler.New(cfg.Locations, cfg.FetchInterval, a.orchestrator, a.store)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-assistant",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RequestTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	httpapi.RegisterRoutes(app, a.orchestrator, httpapi.Options{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Metrics:        a.metrics.Handler(),
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "port", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	return nil
}

func setupLogger(cfg *config.AppConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
