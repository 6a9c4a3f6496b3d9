// Package aggregate turns the hourly yearly tables into the monthly and
// seasonal summaries behind the plots.
package aggregate

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/series"
)

// Output files.
const (
	RegionalRainFile    = "regional_rain_per_month.csv"
	RegionalTempMinFile = "regional_temp_min_per_month.csv"
	RegionalTempMaxFile = "regional_temp_max_per_month.csv"
	StationMonthlyFile  = "station_monthly.csv"
)

// Aggregator reads and writes the summaries in a data directory.
type Aggregator struct {
	dir    string
	clock  clockwork.Clock
	loc    *time.Location
	logger *zap.Logger
}

// Options configures an Aggregator.
type Options struct {
	Clock    clockwork.Clock
	Location *time.Location
	Logger   *zap.Logger
}

// New creates an Aggregator over dir.
func New(dir string, opts Options) *Aggregator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = common.Israel
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Aggregator{dir: dir, clock: opts.Clock, loc: opts.Location, logger: opts.Logger.Named("aggregate")}
}

var yearFile = regexp.MustCompile(`^(rain|temp_min|temp_max)_(\d{4})\.csv$`)

// years lists the years with a yearly file of the given prefix, ascending.
func (a *Aggregator) years(prefix string) ([]int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, e := range entries {
		m := yearFile.FindStringSubmatch(e.Name())
		if m == nil || m[1] != prefix {
			continue
		}
		y, _ := strconv.Atoi(m[2])
		out = append(out, y)
	}
	sort.Ints(out)
	return out, nil
}

func (a *Aggregator) yearPath(prefix string, year int) string {
	return filepath.Join(a.dir, prefix+"_"+strconv.Itoa(year)+".csv")
}

// reducer folds the non-missing values of a column range.
type reducer func(vals []float64) float64

// sum is NaN when no value is present.
func sum(vals []float64) float64 {
	out, n := 0.0, 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			out += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return out
}

func minimum(vals []float64) float64 {
	out := math.NaN()
	for _, v := range vals {
		if !math.IsNaN(v) && (math.IsNaN(out) || v < out) {
			out = v
		}
	}
	return out
}

func maximum(vals []float64) float64 {
	out := math.NaN()
	for _, v := range vals {
		if !math.IsNaN(v) && (math.IsNaN(out) || v > out) {
			out = v
		}
	}
	return out
}

// median of the values; an even count averages the two middle ones.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// group holds the row indices of one calendar month.
type group struct {
	year, month int
	rows        []int
}

// monthGroups splits a table's rows by calendar month, in row order.
func monthGroups(t *series.Table) []group {
	var out []group
	pos := make(map[[2]int]int)
	for i := 0; i < t.Len(); i++ {
		y, m, ok := series.YearMonth(t.Time(i))
		if !ok {
			continue
		}
		k := [2]int{y, m}
		j, seen := pos[k]
		if !seen {
			j = len(out)
			pos[k] = j
			out = append(out, group{year: y, month: m})
		}
		out[j].rows = append(out[j].rows, i)
	}
	return out
}

// reduceRows applies fn to a column restricted to rows.
func reduceRows(col []float64, rows []int, fn reducer) float64 {
	vals := make([]float64, len(rows))
	for i, r := range rows {
		vals[i] = col[r]
	}
	return fn(vals)
}
