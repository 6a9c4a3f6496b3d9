// Package update extends the current year's tables with the readings that
// arrived since the last run.
package update

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/catalog"
	"github.com/i474232898/ims-weather/internal/collect"
	"github.com/i474232898/ims-weather/internal/metrics"
	"github.com/i474232898/ims-weather/internal/series"
)

// StationSyncer refreshes the station list before an update.
type StationSyncer interface {
	SyncStations(ctx context.Context) (int, error)
}

// Updater runs the incremental updates.
type Updater struct {
	collector *collect.Collector
	syncer    StationSyncer
	logger    *zap.Logger
}

// New creates an Updater. syncer may be nil to skip the station sync.
func New(collector *collect.Collector, syncer StationSyncer, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{collector: collector, syncer: syncer, logger: logger.Named("update")}
}

// Result summarizes an update run.
type Result struct {
	Path string
	// Created is set when the yearly file did not exist and was collected in full.
	Created  bool
	Stations int
	Merged   int
}

// UpdateRain brings rain_<year>.csv up to now. Only the stations active at
// the last activity refresh are queried, each from the day of its last
// stored value.
func (u *Updater) UpdateRain(ctx context.Context) (Result, error) {
	if u.syncer != nil {
		if _, err := u.syncer.SyncStations(ctx); err != nil {
			return Result{}, err
		}
	}
	return u.update(ctx, collect.Rain, series.MergeOptions{})
}

// UpdateTemp brings temp_min_<year>.csv or temp_max_<year>.csv up to now for
// the TDmin or TDmax monitor. Rows missing inside the table are inserted.
func (u *Updater) UpdateTemp(ctx context.Context, monitor string) (Result, error) {
	kind, err := collect.ParseKind(monitor)
	if err != nil || kind == collect.Rain {
		return Result{}, fmt.Errorf("unsupported temperature monitor %q", monitor)
	}
	return u.update(ctx, kind, series.MergeOptions{InsertMissing: true})
}

func (u *Updater) update(ctx context.Context, kind collect.Kind, opts series.MergeOptions) (Result, error) {
	now := u.collector.Now()
	year := now.Year()
	today := now.Format(series.DateLayout)
	jan1 := fmt.Sprintf("%d-01-01", year)
	path := filepath.Join(u.collector.Dir(), kind.FileName(year))
	res := Result{Path: path}

	log := u.logger.With(zap.String("kind", string(kind)), zap.String("path", path))

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Info("creating yearly file")
		t, err := u.collector.Collect(ctx, collect.Request{Kind: kind, From: jan1, To: today, Output: path})
		if err != nil {
			return res, err
		}
		res.Created = true
		res.Stations = len(t.Columns())
		return res, nil
	}

	table, err := series.Read(path)
	if err != nil {
		return res, err
	}
	stations, err := catalog.LoadStations(u.collector.Dir())
	if err != nil {
		return res, err
	}
	activity, err := catalog.LoadActivity(u.collector.Dir())
	if err != nil {
		return res, err
	}
	ids, err := catalog.StillActive(stations, activity)
	if err != nil {
		return res, err
	}
	idx := catalog.NewIndex(stations, activity)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		st, ok := idx.ByID(id)
		if !ok {
			continue
		}
		if kind != collect.Rain && !st.HasMonitor(kind.Monitor(st.Name)) {
			continue
		}

		start := jan1
		if ts, ok := table.LastValid(st.Name); ok {
			start = series.Date(ts)
		}
		if kind != collect.Rain && start >= today {
			continue
		}

		fresh, err := u.collector.Collect(ctx, collect.Request{
			Kind:     kind,
			Stations: []string{st.Name},
			From:     start,
			To:       today,
			InMemory: true,
		})
		if err != nil {
			return res, err
		}
		n, err := series.Merge(table, fresh, st.Name, opts)
		if err != nil {
			return res, err
		}
		res.Stations++
		res.Merged += n
		metrics.RowsMerged.WithLabelValues(string(kind)).Add(float64(n))
		log.Debug("station updated",
			zap.String("station", st.Name),
			zap.Int("index", i+1),
			zap.Int("total", len(ids)),
			zap.Int("values", n))
	}

	table.Round(1)
	if err := table.Write(path); err != nil {
		return res, err
	}
	log.Info("yearly file updated", zap.Int("stations", res.Stations), zap.Int("values", res.Merged))
	return res, nil
}
