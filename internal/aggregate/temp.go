package aggregate

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/catalog"
	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/season"
	"github.com/i474232898/ims-weather/internal/series"
)

// TempKind selects the minimum or maximum temperature series.
type TempKind string

const (
	Min TempKind = "min"
	Max TempKind = "max"
)

// ParseTempKind validates a temperature kind.
func ParseTempKind(s string) (TempKind, error) {
	switch TempKind(s) {
	case Min, Max:
		return TempKind(s), nil
	}
	return "", fmt.Errorf("unknown temperature kind %q", s)
}

func (k TempKind) prefix() string { return "temp_" + string(k) }

// Start returns the first month of the kind's cycle.
func (k TempKind) Start() time.Month {
	if k == Max {
		return season.Summer
	}
	return season.Winter
}

func (k TempKind) reduce() reducer {
	if k == Max {
		return maximum
	}
	return minimum
}

// File returns the regional summary file name of the kind.
func (k TempKind) File() string {
	if k == Max {
		return RegionalTempMaxFile
	}
	return RegionalTempMinFile
}

// TempMonth is the regional extreme temperature of one cycle month: the median
// over the region's stations of each station's monthly extreme.
type TempMonth struct {
	Region string       `csv:"Region" json:"region"`
	Cycle  string       `csv:"Cycle" json:"cycle"`
	Month  int          `csv:"Month" json:"month"`
	Temp   series.Value `csv:"Temp" json:"temp"`
}

// LoadRegionalTemp reads a regional temperature summary.
func LoadRegionalTemp(dir string, kind TempKind) ([]TempMonth, error) {
	var rows []TempMonth
	if _, err := common.ReadCSV(filepath.Join(dir, kind.File()), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// RegionalTemp rebuilds regional_temp_<kind>_per_month.csv from every yearly
// temperature file.
func (a *Aggregator) RegionalTemp(kind TempKind) ([]TempMonth, error) {
	regions, err := a.regionMap()
	if err != nil {
		return nil, err
	}
	years, err := a.years(kind.prefix())
	if err != nil {
		return nil, err
	}

	start := kind.Start()
	fn := kind.reduce()
	var out []TempMonth
	for _, y := range years {
		t, err := series.Read(a.yearPath(kind.prefix(), y))
		if err != nil {
			return nil, err
		}
		for _, g := range monthGroups(t) {
			cycle := season.Cycle(g.year, g.month, start)
			values := make(map[string]float64, len(t.Columns()))
			present := false
			for _, col := range t.Columns() {
				v := reduceRows(t.Column(col), g.rows, fn)
				values[col] = v
				if !math.IsNaN(v) {
					present = true
				}
			}
			if !present {
				a.logger.Debug("no values in month", zap.String("cycle", cycle), zap.Int("month", g.month))
				continue
			}
			for _, r := range catalog.Regions {
				var vals []float64
				for _, name := range regions[r.ID] {
					if v, ok := values[name]; ok && !math.IsNaN(v) {
						vals = append(vals, v)
					}
				}
				if len(vals) == 0 {
					continue
				}
				out = append(out, TempMonth{
					Region: r.Name,
					Cycle:  cycle,
					Month:  g.month,
					Temp:   series.Value(series.RoundTo(median(vals), 1)),
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if x.Cycle != y.Cycle {
			return x.Cycle < y.Cycle
		}
		pa, pb := season.Position(x.Month, start), season.Position(y.Month, start)
		if pa != pb {
			return pa < pb
		}
		return x.Region < y.Region
	})
	if err := common.WriteCSV(filepath.Join(a.dir, kind.File()), &out); err != nil {
		return nil, err
	}
	return out, nil
}
