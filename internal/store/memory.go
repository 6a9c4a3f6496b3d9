// Package store keeps an in-memory copy of the summary files for the HTTP
// server.
package store

import (
	"errors"
	"sync"

	"github.com/i474232898/ims-weather/internal/aggregate"
	"github.com/i474232898/ims-weather/internal/forecast"
)

var (
	// ErrNotFound is returned when no summary rows match a query.
	ErrNotFound = errors.New("no summary data for query")
)

// SummaryStore is a concurrency-safe in-memory copy of the summary CSVs.
type SummaryStore struct {
	mu sync.RWMutex

	rain       []aggregate.RainMonth
	temp       map[aggregate.TempKind][]aggregate.TempMonth
	monthly    map[string][]aggregate.StationMonth // key: station
	comparison []forecast.Comparison
}

// NewSummaryStore creates an empty store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{
		temp:    make(map[aggregate.TempKind][]aggregate.TempMonth),
		monthly: make(map[string][]aggregate.StationMonth),
	}
}

// Reload replaces the contents with the summary files of dir. Missing files
// load as empty. On error the previous contents are kept.
func (s *SummaryStore) Reload(dir string) error {
	rain, err := aggregate.LoadRegionalRain(dir)
	if err != nil {
		return err
	}
	temp := make(map[aggregate.TempKind][]aggregate.TempMonth, 2)
	for _, kind := range []aggregate.TempKind{aggregate.Min, aggregate.Max} {
		rows, err := aggregate.LoadRegionalTemp(dir, kind)
		if err != nil {
			return err
		}
		temp[kind] = rows
	}
	rows, err := aggregate.LoadStationMonthly(dir)
	if err != nil {
		return err
	}
	monthly := make(map[string][]aggregate.StationMonth)
	for _, r := range rows {
		monthly[r.Station] = append(monthly[r.Station], r)
	}
	comparison, err := forecast.LoadComparison(dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rain, s.temp, s.monthly, s.comparison = rain, temp, monthly, comparison
	return nil
}

// RegionalRain returns the regional rain rows, optionally restricted to one
// region and one winter.
func (s *SummaryStore) RegionalRain(region, winter string) ([]aggregate.RainMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []aggregate.RainMonth
	for _, r := range s.rain {
		if (region == "" || r.Region == region) && (winter == "" || r.Winter == winter) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// RegionalTemp returns the regional temperature rows of a kind, optionally
// restricted to one region and one cycle.
func (s *SummaryStore) RegionalTemp(kind aggregate.TempKind, region, cycle string) ([]aggregate.TempMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []aggregate.TempMonth
	for _, r := range s.temp[kind] {
		if (region == "" || r.Region == region) && (cycle == "" || r.Cycle == cycle) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// StationMonthly returns a station's monthly rows, optionally for one measure.
func (s *SummaryStore) StationMonthly(station, measure string) ([]aggregate.StationMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []aggregate.StationMonth
	for _, r := range s.monthly[station] {
		if measure == "" || r.Measure == measure {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Comparison returns the forecast comparison rows, optionally for one
// location.
func (s *SummaryStore) Comparison(location string) ([]forecast.Comparison, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []forecast.Comparison
	for _, r := range s.comparison {
		if location == "" || r.Location == location {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
