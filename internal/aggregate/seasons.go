package aggregate

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/i474232898/ims-weather/internal/series"
)

// SeasonKind selects a per-season summary.
type SeasonKind string

const (
	SeasonRain    SeasonKind = "rain"
	SeasonMinTemp SeasonKind = "min"
	SeasonMaxTemp SeasonKind = "max"
)

type seasonSpec struct {
	prefix string
	label  string
	file   string
	start  time.Month
	fn     reducer
}

var seasonSpecs = map[SeasonKind]seasonSpec{
	SeasonRain:    {"rain", "winter", "rain_sep_to_aug.csv", time.September, sum},
	SeasonMinTemp: {"temp_min", "winter", "min_temp_sep_to_aug.csv", time.September, minimum},
	SeasonMaxTemp: {"temp_max", "summer", "max_temp_mar_to_feb.csv", time.March, maximum},
}

// ParseSeasonKind validates a season kind.
func ParseSeasonKind(s string) (SeasonKind, error) {
	if _, ok := seasonSpecs[SeasonKind(s)]; !ok {
		return "", fmt.Errorf("unknown season kind %q", s)
	}
	return SeasonKind(s), nil
}

// ErrBadUntil is returned for a cut-off day not formatted MM-DD.
var ErrBadUntil = errors.New("aggregate: until must be MM-DD")

// seasonTable keeps per season the reduced value of each station, NaN where
// the station had no value that season.
func (a *Aggregator) seasonTable(kind SeasonKind, until string) (*series.Table, seasonSpec, error) {
	spec, ok := seasonSpecs[kind]
	if !ok {
		return nil, spec, fmt.Errorf("unknown season kind %q", kind)
	}
	if until != "" {
		if _, err := time.Parse("01-02", until); err != nil {
			return nil, spec, fmt.Errorf("%w: %q", ErrBadUntil, until)
		}
	}
	years, err := a.years(spec.prefix)
	if err != nil {
		return nil, spec, err
	}

	out := series.New(nil)
	var prev *series.Table
	for i, y := range years {
		cur, err := series.Read(a.yearPath(spec.prefix, y))
		if err != nil {
			return nil, spec, err
		}
		if i == 0 {
			prev = cur
			continue
		}
		boundaryPrev := fmt.Sprintf("%d-%02d-01", y-1, spec.start)
		boundaryCur := fmt.Sprintf("%d-%02d-01", y, spec.start)
		combined := series.Concat(
			prev.Filter(func(ts string) bool { return ts >= boundaryPrev }),
			cur.Filter(func(ts string) bool { return ts < boundaryCur }),
		)
		if until != "" {
			cutoff := cutoffFor(until, y-1, spec.start)
			combined = combined.Filter(func(ts string) bool { return ts <= cutoff })
		}

		label := fmt.Sprintf("%d-%d", y-1, y)
		row := out.AppendTime(label)
		for _, col := range combined.Columns() {
			out.Set(row, col, spec.fn(combined.Column(col)))
		}
		prev = cur
	}
	return out, spec, nil
}

// cutoffFor returns the last datetime of the until day inside the season
// starting in firstYear.
func cutoffFor(until string, firstYear int, start time.Month) string {
	y := firstYear
	if m, _ := time.Parse("01-02", until); m.Month() < start {
		y++
	}
	return fmt.Sprintf("%d-%s 23:59", y, until)
}

// SeasonTotals builds the per-season summary of every station: rain totals
// over September to August, the lowest TDmin over the same span or the highest
// TDmax over March to February. A non-empty until (MM-DD) ends every season
// at the end of that day. With save set the table is written to its file.
func (a *Aggregator) SeasonTotals(kind SeasonKind, until string, save bool) (*series.Table, error) {
	t, spec, err := a.seasonTable(kind, until)
	if err != nil {
		return nil, err
	}
	if kind == SeasonRain {
		for _, col := range t.Columns() {
			vals := t.Column(col)
			for i, v := range vals {
				if math.IsNaN(v) {
					vals[i] = 0
				}
			}
		}
	}
	t.Round(1)
	if save {
		if err := t.WriteAs(filepath.Join(a.dir, spec.file), spec.label); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Ratio compares a station's season to date with earlier seasons.
type Ratio struct {
	Station string
	Season  string
	Total   float64
	Median  float64
	Seasons int
	Ratio   float64
}

// SeasonToDateRatio divides the last season's rain up to until by the median
// of the same span in the earlier seasons the station measured.
func (a *Aggregator) SeasonToDateRatio(station, until string) (Ratio, error) {
	r := Ratio{Station: station}
	t, _, err := a.seasonTable(SeasonRain, until)
	if err != nil {
		return r, err
	}
	if t.Len() == 0 || !t.Has(station) {
		return r, fmt.Errorf("no rain seasons for %s", station)
	}
	vals := t.Column(station)
	last := t.Len() - 1
	r.Season = t.Time(last)
	r.Total = vals[last]
	if math.IsNaN(r.Total) {
		return r, fmt.Errorf("no rain for %s in %s", station, r.Season)
	}
	var earlier []float64
	for _, v := range vals[:last] {
		if !math.IsNaN(v) {
			earlier = append(earlier, v)
		}
	}
	if len(earlier) == 0 {
		return r, fmt.Errorf("no earlier seasons for %s", station)
	}
	r.Seasons = len(earlier)
	r.Median = median(earlier)
	r.Ratio = r.Total / r.Median
	return r, nil
}

// Extreme is the station holding a year's lowest or highest temperature.
type Extreme struct {
	Year    int
	Measure string
	Station string
	Value   float64
}

// Extremes returns, per year, the coldest TDmin and the hottest TDmax
// station.
func (a *Aggregator) Extremes() ([]Extreme, error) {
	var out []Extreme
	for _, spec := range []struct {
		prefix, measure string
		fn              reducer
		better          func(x, y float64) bool
	}{
		{"temp_min", MeasureMinTemp, minimum, func(x, y float64) bool { return x < y }},
		{"temp_max", MeasureMaxTemp, maximum, func(x, y float64) bool { return x > y }},
	} {
		years, err := a.years(spec.prefix)
		if err != nil {
			return nil, err
		}
		for _, y := range years {
			t, err := series.Read(a.yearPath(spec.prefix, y))
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			best := Extreme{Year: y, Measure: spec.measure, Value: math.NaN()}
			for _, col := range t.Columns() {
				v := spec.fn(t.Column(col))
				if math.IsNaN(v) {
					continue
				}
				if math.IsNaN(best.Value) || spec.better(v, best.Value) {
					best.Station, best.Value = col, v
				}
			}
			if best.Station != "" {
				out = append(out, best)
			}
		}
	}
	return out, nil
}
