package commands

import (
	"fmt"

	"github.com/bryanchriswhite/RiverLayout/internal/status"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the riverlayout version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "riverlayout %s\n", status.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
