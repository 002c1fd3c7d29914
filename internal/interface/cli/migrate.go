package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"user-api/internal/infrastructure/config"
	"user-api/internal/infrastructure/postgres"
	pgrepo "user-api/internal/infrastructure/repository/postgres"
	"user-api/internal/infrastructure/telemetry"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the PostgreSQL users table",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required to migrate")
	}

	telemetry.SetupLogging(cfg.Otel)
	return migrate(cmd.Context(), cmd, cfg.Postgres)
}

func migrate(ctx context.Context, cmd *cobra.Command, cfg config.PostgresConfig) error {
	client, err := postgres.NewClient(ctx, cfg, telemetry.NewNoop())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.AutoMigrate(ctx, &pgrepo.UserModel{}); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	cmd.Println("users table is up to date.")
	return nil
}
