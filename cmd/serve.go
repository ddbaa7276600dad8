package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/anamnesis/internal/auth"
	"github.com/abhisek/anamnesis/internal/evaluation"
	"github.com/abhisek/anamnesis/internal/llm"
	"github.com/abhisek/anamnesis/internal/patient"
	"github.com/abhisek/anamnesis/internal/server"
	"github.com/abhisek/anamnesis/internal/session"
	"github.com/abhisek/anamnesis/internal/users"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger := newLogger(cfg, os.Stdout)

		st, err := openStoreWith(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer st.Close()
		logger.Info().Str("dialect", st.Dialect()).Msg("connected to database")

		provider, err := llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), logger)
		if err != nil {
			return fmt.Errorf("oracle: %w", err)
		}
		logger.Info().Str("provider", cfg.LLM.Provider).Msg("oracle configured")

		userOpts := []users.Option{users.WithLogger(logger)}
		if cfg.RedisURL != "" {
			cache, err := users.NewRedisRankCache(ctx, cfg.RedisURL, cfg.CacheTTL)
			if err != nil {
				return fmt.Errorf("leaderboard cache: %w", err)
			}
			defer cache.Close()
			userOpts = append(userOpts, users.WithCache(cache))
			logger.Info().Msg("leaderboard cache enabled")
		}
		accounts := users.New(st.UserRepo(), st.ProfileRepo(), userOpts...)

		issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			return fmt.Errorf("token issuer: %w", err)
		}

		evalCfg := evaluation.DefaultConfig()
		evalCfg.Transcript = evaluation.TranscriptMode(cfg.EvaluationTranscript)

		engineCfg := session.DefaultConfig()
		engineCfg.AllowMessagesAfterFinish = cfg.AllowMessagesAfterFinish
		engineCfg.HistoryTurns = cfg.HistoryTurns
		engineCfg.EvaluationLease = cfg.EvaluationLease

		engine := session.New(session.Deps{
			Chats:     st.ChatRepo(),
			Messages:  st.MessageRepo(),
			Generator: patient.New(provider, patient.DefaultConfig()),
			Evaluator: evaluation.New(provider, evalCfg),
			Oracle:    provider,
			Ranks:     accounts,
			Logger:    logger,
		}, engineCfg)

		corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origin")
		srv := server.New(server.Options{
			Games:       engine,
			Accounts:    accounts,
			Issuer:      issuer,
			DB:          st,
			Logger:      logger,
			CORSOrigins: corsOrigins,
		})
		return srv.Run(ctx, cfg.Addr, shutdownTimeout)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s, %s).\n", st.Dialect(), cfg.DB)
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides ANAMNESIS_ADDR)")
	serveCmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origin; repeatable")
}
