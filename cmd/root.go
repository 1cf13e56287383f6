package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cadenza",
	Short: "Cadenza is a playback queue and library service for audio players.",
	Run: func(cmd *cobra.Command, args []string) {
		// Running without a subcommand starts the server.
		serverCmd.Run(cmd, args)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
