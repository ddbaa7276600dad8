package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abhisek/anamnesis/internal/config"
	"github.com/abhisek/anamnesis/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "anamnesis",
	Short: "Diagnostic training game with AI patients",
	Long: "Anamnesis: interview an AI-simulated patient, name the disease, and get graded " +
		"by an AI attending. Run `anamnesis serve` for the game server and " +
		"`anamnesis play` for the terminal client.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Database path or postgres:// URL (overrides ANAMNESIS_DB)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file with defaults for unset variables")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads configuration from the environment and the --env-file,
// then applies the --db flag on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		if err := store.EnsureDir(p); err != nil {
			return nil, fmt.Errorf("prepare database path: %w", err)
		}
		cfg.DB = p
	}
	return cfg, nil
}

// openStore loads config and opens the database it names.
func openStore(cmd *cobra.Command) (*config.Config, *store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := openStoreWith(cmd.Context(), cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

func openStoreWith(ctx context.Context, dsn string) (*store.Store, error) {
	s, err := store.OpenContext(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// newLogger builds the process logger: JSON by default, a console writer
// in development.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
