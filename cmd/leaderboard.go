package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/anamnesis/internal/users"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Inspect or rebuild the leaderboard",
}

var leaderboardRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute every user's rank from points",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openAccounts(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := svc.RecomputeRanks(cmd.Context()); err != nil {
			return fmt.Errorf("recompute ranks: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Ranks recomputed.")
		return nil
	},
}

var leaderboardTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the top users",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("limit")
		out := cmd.OutOrStdout()

		svc, closeFn, err := openAccounts(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		entries, err := svc.TopUsers(cmd.Context(), n)
		if err != nil {
			return fmt.Errorf("top users: %w", err)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No users yet.")
			return nil
		}

		fmt.Fprintf(out, "%-5s  %-24s  %8s\n", "Rank", "Username", "Points")
		fmt.Fprintln(out, strings.Repeat("─", 41))
		for _, e := range entries {
			rank := "-"
			if e.Rank != nil {
				rank = fmt.Sprint(*e.Rank)
			}
			fmt.Fprintf(out, "%-5s  %-24s  %8d\n", rank, e.Username, e.Points)
		}
		return nil
	},
}

// openAccounts opens the store and returns a users.Service over it. The
// Redis cache is used when configured, so a recompute from the CLI also
// drops the server's cached snapshots.
func openAccounts(cmd *cobra.Command) (*users.Service, func(), error) {
	cfg, st, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	opts := []users.Option{users.WithLogger(logger)}
	closers := []func() error{st.Close}
	if cfg.RedisURL != "" {
		cache, err := users.NewRedisRankCache(cmd.Context(), cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.Warn().Err(err).Msg("leaderboard cache unavailable")
		} else {
			opts = append(opts, users.WithCache(cache))
			closers = append(closers, cache.Close)
		}
	}

	closeFn := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	return users.New(st.UserRepo(), st.ProfileRepo(), opts...), closeFn, nil
}

func init() {
	leaderboardTopCmd.Flags().IntP("limit", "n", 10, "Number of users to show")

	leaderboardCmd.AddCommand(leaderboardRecomputeCmd)
	leaderboardCmd.AddCommand(leaderboardTopCmd)
}
