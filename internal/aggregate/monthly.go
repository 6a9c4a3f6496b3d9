package aggregate

import (
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/season"
	"github.com/i474232898/ims-weather/internal/series"
)

// Measures of the station monthly summary.
const (
	MeasureRain    = "Rain"
	MeasureMinTemp = "MinTemp"
	MeasureMaxTemp = "MaxTemp"
)

// StationMonth is one station's monthly rain total or temperature extreme.
type StationMonth struct {
	Station string       `csv:"Station" json:"station"`
	Measure string       `csv:"Measure" json:"measure"`
	Cycle   string       `csv:"Cycle" json:"cycle"`
	Month   int          `csv:"Month" json:"month"`
	Value   series.Value `csv:"Value" json:"value"`
}

// LoadStationMonthly reads the station monthly summary.
func LoadStationMonthly(dir string) ([]StationMonth, error) {
	var rows []StationMonth
	if _, err := common.ReadCSV(filepath.Join(dir, StationMonthlyFile), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// StationMonthly rebuilds station_monthly.csv: per station and cycle month the
// rain total, minimum TDmin and maximum TDmax. Months without values are left
// out.
func (a *Aggregator) StationMonthly() ([]StationMonth, error) {
	measures := []struct {
		prefix, name string
		start        time.Month
		fn           reducer
	}{
		{"rain", MeasureRain, season.Winter, sum},
		{"temp_min", MeasureMinTemp, season.Winter, minimum},
		{"temp_max", MeasureMaxTemp, season.Summer, maximum},
	}

	var out []StationMonth
	for _, m := range measures {
		years, err := a.years(m.prefix)
		if err != nil {
			return nil, err
		}
		for _, y := range years {
			t, err := series.Read(a.yearPath(m.prefix, y))
			if err != nil {
				return nil, err
			}
			for _, g := range monthGroups(t) {
				cycle := season.Cycle(g.year, g.month, m.start)
				for _, col := range t.Columns() {
					v := reduceRows(t.Column(col), g.rows, m.fn)
					if math.IsNaN(v) {
						continue
					}
					out = append(out, StationMonth{
						Station: col,
						Measure: m.name,
						Cycle:   cycle,
						Month:   g.month,
						Value:   series.Value(series.RoundTo(v, 1)),
					})
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		x, y := out[i], out[j]
		switch {
		case x.Station != y.Station:
			return x.Station < y.Station
		case x.Measure != y.Measure:
			return x.Measure < y.Measure
		case x.Cycle != y.Cycle:
			return x.Cycle < y.Cycle
		}
		return x.Month < y.Month
	})
	if err := common.WriteCSV(filepath.Join(a.dir, StationMonthlyFile), &out); err != nil {
		return nil, err
	}
	return out, nil
}
