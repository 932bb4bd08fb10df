package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/protoscribe/protoscribe/cmd/protoscribe/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
