package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "anamnesis", version)

		verbose, _ := cmd.Flags().GetBool("verbose")
		if !verbose {
			return nil
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return nil
		}
		fmt.Fprintf(out, "  go:       %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision", "vcs.time", "vcs.modified":
				fmt.Fprintf(out, "  %-9s %s\n", s.Key[len("vcs."):]+":", s.Value)
			}
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "Include Go and VCS build details")
}
