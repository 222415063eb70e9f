package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reactor",
		Short: "Server-driven reactive UI runtime",
		Long: `Reactor hosts fine-grained reactive UIs over websockets.

State lives on the server as signals and memos; the client is a thin
script that applies DOM patches and sends events back. Detached
sessions persist as snapshots and resume on reconnect.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
