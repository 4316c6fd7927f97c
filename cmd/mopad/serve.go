package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mopad/mopad/pkg/config"
	"github.com/mopad/mopad/pkg/hub"
	"github.com/mopad/mopad/pkg/log"
	"github.com/mopad/mopad/pkg/reconciler"
	"github.com/mopad/mopad/pkg/server"
	"github.com/mopad/mopad/pkg/service"
	"github.com/mopad/mopad/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MOPAD server",
	Long: `Run the MOPAD server.

Loads the JSON collections from the data directory (creating empty ones
on first start), serves the WebSocket API, the calendar export, and the
static frontend, and listens for SIGUSR1 to pick up out-of-band edits to
the data files.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to YAML configuration file")
	serveCmd.Flags().String("listen", "", "Listen address (overrides config)")
	serveCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
	serveCmd.Flags().String("static-dir", "", "Frontend directory (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if staticDir, _ := cmd.Flags().GetString("static-dir"); staticDir != "" {
		cfg.StaticDir = staticDir
	}

	log.Init(log.Config{Level: cfg.Log.Level, JSONOutput: cfg.Log.JSON})
	logger := log.WithComponent("main")

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	logger.Info().Str("data_dir", cfg.DataDir).Msg("collections loaded")

	broadcast := hub.New(cfg.HubBuffer)
	svc := service.New(store, broadcast)
	svc.SetTokenTTL(time.Duration(cfg.TokenTTL))

	recon := reconciler.New(store, broadcast)
	recon.Start()

	srv := server.New(svc, broadcast, cfg.StaticDir)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(cfg.Listen); err != nil {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		recon.Stop()
		return err
	}

	recon.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
