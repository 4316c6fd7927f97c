package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mopad",
	Short: "MOPAD - Moderated Organization PAD",
	Long: `MOPAD is a collaborative talk scheduling server for events.

Participants register with a team, propose talks, and sign up as
presenters (nerds) or attendees (noobs) over a WebSocket connection that
mirrors every change to all connected clients in real time. All state
lives in plain JSON files that administrators may edit by hand; sending
SIGUSR1 folds such edits back into the running server.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"MOPAD version %s\nCommit: %s\n",
		Version, Commit,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(adminCmd)
}
