package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/ims-weather/internal/ims"
)

var (
	// ErrDiscontinued is returned when a known station disappeared from the API.
	ErrDiscontinued = errors.New("catalog: discontinued stations")
	// ErrNameChanged is returned when a known station id now has another name.
	ErrNameChanged = errors.New("catalog: station name changed")
)

// API is the part of the IMS client the catalog needs.
type API interface {
	Stations(ctx context.Context) ([]ims.Station, error)
	Regions(ctx context.Context) ([]ims.Region, error)
	Earliest(ctx context.Context, stationID int) (string, error)
	Latest(ctx context.Context, stationID int) (string, error)
}

// Syncer mirrors the API's station metadata into the data directory.
type Syncer struct {
	api    API
	dir    string
	logger *zap.Logger

	concurrency int
	activeSince string
}

// SyncerOptions configures a Syncer.
type SyncerOptions struct {
	Dir    string
	Logger *zap.Logger

	// Concurrency bounds the parallel activity probes.
	Concurrency int
	// ActiveSince: stored latest readings after this datetime are refreshed.
	ActiveSince string
}

// NewSyncer creates a Syncer.
func NewSyncer(api API, opts SyncerOptions) *Syncer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Syncer{
		api:         api,
		dir:         opts.Dir,
		logger:      opts.Logger.Named("catalog"),
		concurrency: opts.Concurrency,
		activeSince: opts.ActiveSince,
	}
}

// SyncStations fetches the station list and rewrites the stations file when
// new stations appeared. It returns the number of new stations.
func (s *Syncer) SyncStations(ctx context.Context) (int, error) {
	fetched, err := s.api.Stations(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch stations: %w", err)
	}
	prev, err := LoadStations(s.dir)
	if err != nil {
		return 0, err
	}

	current := make(map[int]string, len(fetched))
	for _, st := range fetched {
		current[st.StationID] = st.Name
	}

	var gone []string
	for _, p := range prev {
		name, ok := current[p.StationID]
		if !ok {
			gone = append(gone, fmt.Sprintf("%d %s", p.StationID, p.Name))
			continue
		}
		if name != p.Name {
			return 0, fmt.Errorf("%w: id %d from %q to %q", ErrNameChanged, p.StationID, p.Name, name)
		}
	}
	if len(gone) > 0 {
		return 0, fmt.Errorf("%w: %v", ErrDiscontinued, gone)
	}

	added := len(fetched) - len(prev)
	if added <= 0 {
		s.logger.Debug("station list unchanged", zap.Int("stations", len(fetched)))
		return 0, nil
	}
	if err := SaveStations(s.dir, fetched); err != nil {
		return 0, err
	}
	s.logger.Info("station list updated", zap.Int("added", added), zap.Int("stations", len(fetched)))
	return added, nil
}

// SyncRegions fetches the region list and rewrites the regions file when a new
// region id appeared. It returns the number of new regions.
func (s *Syncer) SyncRegions(ctx context.Context) (int, error) {
	fetched, err := s.api.Regions(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch regions: %w", err)
	}
	prev, err := LoadRegions(s.dir)
	if err != nil {
		return 0, err
	}
	known := make(map[int]bool, len(prev))
	for _, r := range prev {
		known[r.RegionID] = true
	}
	added := 0
	for _, r := range fetched {
		if !known[r.RegionID] {
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	if err := SaveRegions(s.dir, fetched); err != nil {
		return 0, err
	}
	s.logger.Info("region list updated", zap.Int("added", added))
	return added, nil
}

// RefreshActivity probes every station's earliest and latest reading and
// writes the activity file once. With fresh set the list is rebuilt from the
// station list; otherwise the stored list is updated and extended. Probe
// failures are logged and leave the stored value in place.
func (s *Syncer) RefreshActivity(ctx context.Context, fresh bool) ([]Activity, error) {
	stations, err := LoadStations(s.dir)
	if err != nil {
		return nil, err
	}

	var rows []Activity
	if !fresh {
		if rows, err = LoadActivity(s.dir); err != nil {
			return nil, err
		}
	}
	pos := make(map[int]int, len(rows))
	for i, r := range rows {
		pos[r.StationID] = i
	}
	for _, st := range stations {
		if _, ok := pos[st.StationID]; !ok {
			pos[st.StationID] = len(rows)
			rows = append(rows, Activity{StationID: st.StationID, Name: st.Name})
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for n, st := range stations {
		n := n
		i := pos[st.StationID]
		id := st.StationID
		g.Go(func() error {
			s.probe(gctx, &rows[i])
			s.logger.Debug("checked activity",
				zap.Int("station", id),
				zap.Int("index", n+1),
				zap.Int("total", len(stations)),
				zap.Duration("elapsed", time.Since(start)))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := SaveActivity(s.dir, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// probe fills a missing earliest and refreshes latest when it is missing or
// later than activeSince.
func (s *Syncer) probe(ctx context.Context, row *Activity) {
	if row.Earliest == "" {
		if ts, err := s.api.Earliest(ctx, row.StationID); err != nil {
			s.logger.Debug("earliest unavailable", zap.Int("station", row.StationID), zap.Error(err))
		} else {
			row.Earliest = ts
		}
	}
	if row.Latest == "" || row.Latest > s.activeSince {
		if ts, err := s.api.Latest(ctx, row.StationID); err != nil {
			s.logger.Warn("failed to get latest", zap.Int("station", row.StationID), zap.Error(err))
		} else {
			row.Latest = ts
		}
	}
}
