package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/aggregate"
	"github.com/i474232898/ims-weather/internal/catalog"
	"github.com/i474232898/ims-weather/internal/collect"
	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/config"
	"github.com/i474232898/ims-weather/internal/forecast"
	"github.com/i474232898/ims-weather/internal/ims"
	"github.com/i474232898/ims-weather/internal/logging"
	"github.com/i474232898/ims-weather/internal/store"
	"github.com/i474232898/ims-weather/internal/update"
	"github.com/i474232898/ims-weather/internal/weather"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// app holds what every command shares, built once the flags are parsed.
type app struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	client *ims.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ims-weather",
		Short:         "Collect, aggregate and publish IMS station observations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.AddCommand(
		a.stationsCmd(),
		a.regionsCmd(),
		a.activityCmd(),
		a.collectCmd(),
		a.updateCmd(),
		a.verifyCmd(),
		a.aggregateCmd(),
		a.forecastCmd(),
		a.plotCmd(),
		a.sanityCmd(),
		a.serveCmd(),
		a.scheduleCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger

	// Shared HTTP client for the Envista API.
	a.client = ims.NewClient(ims.Options{
		BaseURL:    cfg.BaseURL,
		Token:      cfg.APIToken,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return nil
}

func (a *app) syncer() *catalog.Syncer {
	return catalog.NewSyncer(a.client, catalog.SyncerOptions{
		Dir:         a.cfg.DataDir,
		Logger:      a.logger,
		Concurrency: a.cfg.ActivityConcurrency,
		ActiveSince: a.cfg.ActiveSince,
	})
}

func (a *app) collector() *collect.Collector {
	return collect.New(a.client, collect.Options{
		Dir:      a.cfg.DataDir,
		Location: common.Israel,
		Logger:   a.logger,
	})
}

func (a *app) updater() *update.Updater {
	return update.New(a.collector(), a.syncer(), a.logger)
}

func (a *app) aggregator() *aggregate.Aggregator {
	return aggregate.New(a.cfg.DataDir, aggregate.Options{Location: common.Israel, Logger: a.logger})
}

func (a *app) forecaster() *forecast.Forecaster {
	return forecast.New(forecast.Options{
		Dir:        a.cfg.DataDir,
		URL:        a.cfg.ForecastURL,
		HTTPClient: &http.Client{Timeout: a.cfg.HTTPTimeout},
		Logger:     a.logger,
	})
}

// service wires every job; summaries may be nil when nothing serves them.
func (a *app) service(summaries *store.SummaryStore) *weather.Service {
	opts := weather.Options{
		DataDir:    a.cfg.DataDir,
		DocsDir:    a.cfg.DocsDir,
		Updater:    a.updater(),
		Aggregator: a.aggregator(),
		Forecaster: a.forecaster(),
		Logger:     a.logger,
	}
	if summaries != nil {
		opts.Store = summaries
	}
	return weather.NewService(opts)
}
