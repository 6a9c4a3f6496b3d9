// Package collect builds the hourly yearly tables from the IMS API.
package collect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/catalog"
	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/ims"
	"github.com/i474232898/ims-weather/internal/metrics"
	"github.com/i474232898/ims-weather/internal/series"
)

// Source fetches the readings of one station channel.
type Source interface {
	Range(ctx context.Context, stationID, channel int, from, to string) ([]ims.Reading, error)
}

// Collector fills hourly tables station by station.
type Collector struct {
	source Source
	dir    string
	clock  clockwork.Clock
	loc    *time.Location
	logger *zap.Logger
}

// Options configures a Collector.
type Options struct {
	Dir      string
	Clock    clockwork.Clock
	Location *time.Location
	Logger   *zap.Logger
}

// New creates a Collector.
func New(source Source, opts Options) *Collector {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = common.Israel
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Collector{
		source: source,
		dir:    opts.Dir,
		clock:  opts.Clock,
		loc:    opts.Location,
		logger: opts.Logger.Named("collect"),
	}
}

// Now returns the current time in station local time.
func (c *Collector) Now() time.Time {
	return c.clock.Now().In(c.loc)
}

// Dir returns the data directory.
func (c *Collector) Dir() string {
	return c.dir
}

// Request describes one collection window.
type Request struct {
	Kind Kind
	// Stations limits the collection; nil means every known station.
	Stations []string
	// From and To are inclusive dates, YYYY-MM-DD.
	From, To string
	// Output overrides the file path.
	Output string
	// InMemory keeps the table out of the data directory.
	InMemory bool
}

// YearRequest returns the request for a full calendar year.
func YearRequest(kind Kind, year int) Request {
	return Request{Kind: kind, From: fmt.Sprintf("%d-01-01", year), To: fmt.Sprintf("%d-12-31", year)}
}

// yearly returns the year of a full calendar year window.
func (r Request) yearly() (int, bool) {
	if len(r.From) != 10 || len(r.To) != 10 || r.From[:4] != r.To[:4] {
		return 0, false
	}
	if r.From[5:] != "01-01" || r.To[5:] != "12-31" {
		return 0, false
	}
	y, err := strconv.Atoi(r.From[:4])
	return y, err == nil
}

// path returns where the table is saved, or "" when it stays in memory.
func (c *Collector) path(r Request) string {
	switch {
	case r.Output != "":
		return r.Output
	case r.InMemory:
		return ""
	}
	if y, ok := r.yearly(); ok {
		return filepath.Join(c.dir, r.Kind.FileName(y))
	}
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s_to_%s.csv", r.Kind, r.From, r.To))
}

// Collect fetches the window for every requested station and returns the
// hourly table. A saved table is resumed: stations it already holds are
// skipped and the file is written after each station.
func (c *Collector) Collect(ctx context.Context, req Request) (*series.Table, error) {
	idx, err := catalog.Load(c.dir)
	if err != nil {
		return nil, err
	}
	return c.collect(ctx, idx, req)
}

func (c *Collector) collect(ctx context.Context, idx *catalog.Index, req Request) (*series.Table, error) {
	hours, err := series.HourVector(req.From, req.To)
	if err != nil {
		return nil, err
	}
	now := c.Now()
	hours = series.ClampTo(hours, now)

	path := c.path(req)
	table, err := c.open(path, hours)
	if err != nil {
		return nil, err
	}

	stations := req.Stations
	if stations == nil {
		stations = idx.Names()
	}
	year, yearly := req.yearly()
	currentYear := req.From[:4] >= strconv.Itoa(now.Year())

	start := c.clock.Now()
	for i, name := range stations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := c.logger.With(zap.String("station", name), zap.Int("index", i+1), zap.Int("total", len(stations)))

		if req.Kind == Rain && yearly && year < 2017 && strings.Contains(name, oneMinute) {
			continue
		}
		if table.Has(name) {
			log.Debug("already collected")
			continue
		}
		st, err := idx.Station(name)
		if err != nil {
			log.Warn("station not in list")
			continue
		}
		channel, err := st.Channel(req.Kind.Monitor(name))
		if err != nil {
			log.Debug("no monitor", zap.String("monitor", req.Kind.Monitor(name)))
			continue
		}
		if act, ok := idx.Activity(name); ok && !currentYear && !act.ActiveIn(req.From, req.To) {
			log.Debug("inactive in window")
			continue
		}

		readings, err := c.source.Range(ctx, st.StationID, channel, req.From, req.To)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			log.Warn("no data", zap.Error(err))
			continue
		}
		if !fill(table, name, req.Kind, readings) {
			continue
		}
		metrics.StationsCollected.WithLabelValues(string(req.Kind)).Inc()
		log.Debug("collected", zap.Duration("elapsed", c.clock.Since(start)))

		if path != "" {
			if err := table.Write(path); err != nil {
				return nil, err
			}
		}
	}
	return table, nil
}

// open resumes a saved table or starts an empty one over hours.
func (c *Collector) open(path string, hours []string) (*series.Table, error) {
	if path != "" {
		t, err := series.Read(path)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	t := series.New(hours)
	if path != "" {
		if err := t.Write(path); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// fill folds readings into a new station column. It adds nothing and returns
// false when no reading survives the filters.
func fill(t *series.Table, station string, kind Kind, readings []ims.Reading) bool {
	type cell struct {
		row int
		v   float64
	}
	var cells []cell
	for _, r := range readings {
		ch, ok := r.First()
		if !ok || !kind.keep(ch.Value) || !ch.OK() {
			continue
		}
		ts, err := series.FloorHour(r.Datetime)
		if err != nil {
			continue
		}
		row, ok := t.Row(ts)
		if !ok {
			continue
		}
		cells = append(cells, cell{row, ch.Value})
	}
	if len(cells) == 0 {
		return false
	}

	t.AddColumn(station)
	vals := t.Column(station)
	for _, c := range cells {
		vals[c.row] = kind.accumulate(vals[c.row], c.v)
	}
	if kind == Rain {
		for i, v := range vals {
			vals[i] = series.RoundTo(v, 1)
		}
	}
	return true
}
