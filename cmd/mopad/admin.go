package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mopad/mopad/pkg/hub"
	"github.com/mopad/mopad/pkg/service"
	"github.com/mopad/mopad/pkg/storage"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative operations on the data directory",
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password NAME TEAM PASSWORD",
	Short: "Reset a user's password and revoke their sessions",
	Long: `Reset a user's password and revoke their sessions.

Operates directly on the data directory. If a server is running on the
same directory, send it SIGUSR1 afterwards so it reloads the files.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")

		store, err := storage.Open(dataDir)
		if err != nil {
			return err
		}

		svc := service.New(store, hub.New(hub.DefaultBuffer))
		id, err := svc.ResetPassword(args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}

		fmt.Printf("Password reset for user %d (%s / %s)\n", id, args[0], args[1])
		return nil
	},
}

func init() {
	resetPasswordCmd.Flags().String("data-dir", "data", "Data directory")
	adminCmd.AddCommand(resetPasswordCmd)
}
