package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/asp-search/internal/model"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "asp-search %s (%s %s)\n", version, model.Application, model.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
