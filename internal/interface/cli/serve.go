package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"user-api/internal/infrastructure/telemetry"
	h "user-api/internal/interface/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the HTTP server on APP_PORT. When KAFKA_AUDIT_CONSUMER is set the
user event audit consumer runs alongside it. SIGINT or SIGTERM triggers a
graceful shutdown bounded by APP_SHUTDOWN_TIMEOUT_SECS.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tel, shutdownTelemetry, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			telemetry.Log(shutdownCtx, telemetry.LevelError, "Error during telemetry shutdown", err)
		}
	}()

	a, err := newApplication(ctx, cfg, tel)
	if err != nil {
		telemetry.Log(ctx, telemetry.LevelError, "Failed to start application", err,
			attribute.String("store", cfg.Store.Driver),
		)
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			telemetry.Log(context.Background(), telemetry.LevelWarn, "Error closing clients", err)
		}
	}()

	handler := h.NewHandler(a.users, a.app, tel, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Log(gctx, telemetry.LevelInfo, "Starting server", nil,
			attribute.String("port", cfg.App.Port),
			attribute.String("store", cfg.Store.Driver),
			attribute.Bool("kafka.enabled", cfg.Kafka.Enabled),
		)
		return handler.Start(gctx)
	})
	if a.audit != nil {
		g.Go(func() error {
			return a.audit.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		telemetry.Log(context.Background(), telemetry.LevelInfo, "Shutting down application gracefully", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.App.ShutdownTimeoutSecs)*time.Second)
		defer cancel()
		return handler.Stop(shutdownCtx)
	})

	cmd.Printf("Server started on :%s... Press Ctrl+C to exit.\n", cfg.App.Port)

	if err := g.Wait(); err != nil {
		telemetry.Log(context.Background(), telemetry.LevelError, "Server stopped with error", err)
		return err
	}
	return nil
}
