package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/anamnesis/internal/app"
	"github.com/abhisek/anamnesis/internal/client"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play in the terminal against a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		return app.Run(app.Options{
			Backend: client.New(serverURL),
		})
	},
}

func init() {
	playCmd.Flags().StringP("server", "s", "http://localhost:8080", "Game server base URL")
}
