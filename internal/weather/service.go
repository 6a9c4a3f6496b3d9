// Package weather wires the collection, update, aggregation and forecast jobs
// into the units the CLI and the scheduler run.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/aggregate"
	"github.com/i474232898/ims-weather/internal/collect"
	"github.com/i474232898/ims-weather/internal/forecast"
	"github.com/i474232898/ims-weather/internal/plot"
	"github.com/i474232898/ims-weather/internal/update"
)

// Reloader refreshes a read model after the summaries change.
type Reloader interface {
	Reload(dir string) error
}

// Options configures a Service. Updater and Forecaster may be nil when only
// the offline jobs are run.
type Options struct {
	DataDir    string
	DocsDir    string
	Updater    *update.Updater
	Aggregator *aggregate.Aggregator
	Forecaster *forecast.Forecaster
	Store      Reloader
	Logger     *zap.Logger
}

// Service runs the scheduled jobs.
type Service struct {
	dataDir    string
	docsDir    string
	updater    *update.Updater
	aggregator *aggregate.Aggregator
	forecaster *forecast.Forecaster
	store      Reloader
	logger     *zap.Logger
}

// NewService creates a new Service.
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		dataDir:    opts.DataDir,
		docsDir:    opts.DocsDir,
		updater:    opts.Updater,
		aggregator: opts.Aggregator,
		forecaster: opts.Forecaster,
		store:      opts.Store,
		logger:     opts.Logger.Named("service"),
	}
}

var errNotConfigured = errors.New("job not configured")

// UpdateRain extends the current rain file.
func (s *Service) UpdateRain(ctx context.Context) error {
	if s.updater == nil {
		return fmt.Errorf("update rain: %w", errNotConfigured)
	}
	res, err := s.updater.UpdateRain(ctx)
	if err != nil {
		return fmt.Errorf("update rain: %w", err)
	}
	s.logger.Info("rain updated", zap.String("path", res.Path), zap.Int("stations", res.Stations), zap.Int("values", res.Merged))
	return nil
}

// UpdateTemp extends the current minimum and maximum temperature files. Both
// are attempted even when the first fails.
func (s *Service) UpdateTemp(ctx context.Context) error {
	if s.updater == nil {
		return fmt.Errorf("update temp: %w", errNotConfigured)
	}
	var errs []error
	for _, kind := range []collect.Kind{collect.TempMin, collect.TempMax} {
		res, err := s.updater.UpdateTemp(ctx, string(kind))
		if err != nil {
			errs = append(errs, fmt.Errorf("update %s: %w", kind, err))
			continue
		}
		s.logger.Info("temperature updated", zap.String("path", res.Path), zap.Int("stations", res.Stations), zap.Int("values", res.Merged))
	}
	return errors.Join(errs...)
}

// CollectForecast stores the current city forecast.
func (s *Service) CollectForecast(ctx context.Context) error {
	if s.forecaster == nil {
		return fmt.Errorf("collect forecast: %w", errNotConfigured)
	}
	if _, err := s.forecaster.Collect(ctx); err != nil {
		return fmt.Errorf("collect forecast: %w", err)
	}
	return nil
}

// Aggregate regenerates every summary file and plot and reloads the store.
// Steps are independent; all of them run and their errors are joined.
func (s *Service) Aggregate(ctx context.Context) error {
	if s.aggregator == nil {
		return fmt.Errorf("aggregate: %w", errNotConfigured)
	}
	var errs []error
	step := func(name string, fn func() error) {
		if ctx.Err() != nil {
			return
		}
		if err := fn(); err != nil {
			s.logger.Error("aggregation step failed", zap.String("step", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("regional rain", func() error {
		_, err := s.aggregator.RegionalRain(false)
		return err
	})
	for _, kind := range []aggregate.TempKind{aggregate.Min, aggregate.Max} {
		step("regional temp "+string(kind), func() error {
			_, err := s.aggregator.RegionalTemp(kind)
			return err
		})
	}
	step("station monthly", func() error {
		_, err := s.aggregator.StationMonthly()
		return err
	})
	for _, kind := range []aggregate.SeasonKind{aggregate.SeasonRain, aggregate.SeasonMinTemp, aggregate.SeasonMaxTemp} {
		step("seasons "+string(kind), func() error {
			_, err := s.aggregator.SeasonTotals(kind, "", true)
			return err
		})
	}
	if s.forecaster != nil {
		step("forecast comparison", func() error {
			_, err := s.forecaster.Compare()
			return err
		})
	}
	step("plots", s.Plot)

	if s.store != nil {
		step("reload", func() error { return s.store.Reload(s.dataDir) })
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Plot renders every page into the docs directory.
func (s *Service) Plot() error {
	if err := s.PlotRegional(); err != nil {
		return err
	}
	_, err := s.PlotErrors()
	return err
}

// PlotRegional renders the regional rain and temperature pages.
func (s *Service) PlotRegional() error {
	rain, err := aggregate.LoadRegionalRain(s.dataDir)
	if err != nil {
		return err
	}
	if err := plot.Save(filepath.Join(s.docsDir, plot.RegionalRainFile), func(w io.Writer) error {
		return plot.RegionalRain(rain, w)
	}); err != nil {
		return err
	}

	for kind, file := range map[aggregate.TempKind]string{aggregate.Min: plot.RegionalTempMin, aggregate.Max: plot.RegionalTempMax} {
		rows, err := aggregate.LoadRegionalTemp(s.dataDir, kind)
		if err != nil {
			return err
		}
		if err := plot.Save(filepath.Join(s.docsDir, file), func(w io.Writer) error {
			return plot.RegionalTemp(rows, kind, w)
		}); err != nil {
			return err
		}
	}
	return nil
}

// PlotErrors renders the forecast error page. It reports false without
// writing when there is no comparison yet.
func (s *Service) PlotErrors() (bool, error) {
	cmp, err := forecast.LoadComparison(s.dataDir)
	if err != nil || len(cmp) == 0 {
		return false, err
	}
	err = plot.Save(filepath.Join(s.docsDir, plot.ForecastErrorsFile), func(w io.Writer) error {
		return plot.ForecastErrors(cmp, w)
	})
	return err == nil, err
}
