package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"user-api/internal/infrastructure/config"
)

// version is set at build time with -ldflags "-X user-api/internal/interface/cli.version=..."
var version = "dev"

// settings collects flag overrides on top of the file and environment
var settings = viper.New()

var rootCmd = &cobra.Command{
	Use:   "user-api",
	Short: "User records HTTP service",
	Long: `Serves create, read, replace, patch, delete, list and birth date
search operations over user records, backed by an in-memory, PostgreSQL or
Redis store.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to a .env style config file (CONFIG_FILE)")
	flags.Int("min-age", 0, "minimum age in whole years required to register (user.min.age)")
	flags.String("store", "", "store driver: memory, postgres or redis (STORE_DRIVER)")

	_ = settings.BindPFlag("CONFIG_FILE", flags.Lookup("config"))
	_ = settings.BindPFlag(config.MinAgeKey, flags.Lookup("min-age"))
	_ = settings.BindPFlag("STORE_DRIVER", flags.Lookup("store"))
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (config.Config, error) {
	return config.Load(settings)
}
