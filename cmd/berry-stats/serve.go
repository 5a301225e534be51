package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/berry-stats/internal/api"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// serveCmd starts the HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the statistics server",
	Long: `Start the berry-stats HTTP server.

Routes:
  GET /allBerryStats  run a fetch and return growth time statistics
  GET /health         liveness
  GET /ready          history store reachability
  GET /runs?limit=N   recent run metadata
  GET /metrics        Prometheus metrics

The server runs until interrupted (Ctrl+C) or receives SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.New(a.orchestrator, api.Config{
		APIURL:        cfg.APIURL,
		Mode:          cfg.Fetch.Mode,
		ContentType:   cfg.Server.ContentType,
		HistogramPath: cfg.Server.HistogramPath,
		RunsLimit:     cfg.History.Limit,
		Store:         a.store,
		Logger:        a.logger,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info().
		Str("addr", srv.Addr).
		Str("mode", cfg.Fetch.Mode).
		Int("workers", cfg.Fetch.Workers).
		Str("history", cfg.History.Backend).
		Msg("Starting berry-stats server")

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Dur("timeout", shutdownTimeout).Msg("Shutdown timed out")
		return nil
	}
	a.logger.Info().Msg("Shutdown complete")
	return nil
}
