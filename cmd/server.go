package cmd

import (
	"Cadenza/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Cadenza HTTP server",
	Long:  `Start the HTTP server that exposes the playback queue, library scanner, and playlist APIs plus the websocket state feed.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
