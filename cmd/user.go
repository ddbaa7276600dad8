package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username> <email>",
	Short: "Create a user account; the password is read from stdin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && password == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(password, "\r\n")

		svc, closeFn, err := openAccounts(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		u, err := svc.Register(cmd.Context(), args[0], args[1], password)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %q (id %d).\n", u.Username, u.ID)
		return nil
	},
}

func init() {
	userCmd.AddCommand(userCreateCmd)
}
