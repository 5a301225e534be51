package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/berry-stats/pkg/client"
	"github.com/Sternrassler/berry-stats/pkg/config"
	"github.com/Sternrassler/berry-stats/pkg/fetch"
	"github.com/Sternrassler/berry-stats/pkg/history"
	"github.com/Sternrassler/berry-stats/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds the components shared by serve and fetch.
type app struct {
	cfg          *config.Config
	logger       zerolog.Logger
	client       *client.Client
	orchestrator *fetch.Orchestrator
	store        history.Store
}

// loadConfig reads the --config flag and loads the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config, cmd *cobra.Command) (*app, error) {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	clientCfg := client.DefaultConfig(cfg.Fetch.UserAgent)
	clientCfg.RequestTimeout = cfg.Fetch.Timeout.Duration()
	clientCfg.MaxIdleConnsPerHost = cfg.Fetch.Workers
	clientCfg.Logger = logger

	httpClient, err := client.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	store, err := history.Open(ctx, history.Config{
		Backend:    cfg.History.Backend,
		RedisURL:   cfg.History.RedisURL,
		SQLitePath: cfg.History.SQLitePath,
		MaxEntries: int64(cfg.History.Limit),
	})
	if err != nil {
		_ = httpClient.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		client: httpClient,
		orchestrator: fetch.New(httpClient, fetch.Config{
			Collection: cfg.Collection,
			Workers:    cfg.Fetch.Workers,
			MaxPages:   cfg.Fetch.MaxPages,
			Policy:     fetch.PolicyFromMode,
			Logger:     logger,
		}),
		store: store,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close history store")
	}
	_ = a.client.Close()
}
