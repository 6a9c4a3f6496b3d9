package aggregate

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/catalog"
	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/season"
	"github.com/i474232898/ims-weather/internal/series"
)

// RainMonth is the regional rain of one winter month: the median over the
// region's stations that measured rain that month.
type RainMonth struct {
	Region string       `csv:"Region" json:"region"`
	Winter string       `csv:"Winter" json:"winter"`
	Year   int          `csv:"Year" json:"year"`
	Month  int          `csv:"Month" json:"month"`
	Rain   series.Value `csv:"Rain" json:"rain"`
}

// LoadRegionalRain reads the regional rain summary.
func LoadRegionalRain(dir string) ([]RainMonth, error) {
	var rows []RainMonth
	if _, err := common.ReadCSV(filepath.Join(dir, RegionalRainFile), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// loadWinter joins September to December of the first year with January to
// August of the second. It returns nil when the first year has no file.
func (a *Aggregator) loadWinter(winter string) (*series.Table, error) {
	y1, y2, err := season.Parse(winter)
	if err != nil {
		return nil, err
	}
	first, err := series.Read(a.yearPath("rain", y1))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	second, err := series.Read(a.yearPath("rain", y2))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sepFirst := fmt.Sprintf("%d-09-01", y1)
	sepSecond := fmt.Sprintf("%d-09-01", y2)
	head := first.Filter(func(ts string) bool { return ts >= sepFirst })
	var tail *series.Table
	if second != nil {
		tail = second.Filter(func(ts string) bool { return ts < sepSecond })
	}
	return series.Concat(head, tail), nil
}

// rainMonth computes the regional rows of one month of a winter table. It
// returns nil when the table has no rows in that month.
func rainMonth(t *series.Table, month int, winter string, regions map[int][]string) []RainMonth {
	var rows []int
	for _, g := range monthGroups(t) {
		if g.month == month {
			rows = append(rows, g.rows...)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	year, _ := season.YearOf(winter, month, season.Winter)

	var out []RainMonth
	for _, r := range catalog.Regions {
		var positive []float64
		available := 0
		for _, name := range regions[r.ID] {
			if !t.Has(name) {
				continue
			}
			available++
			if s := reduceRows(t.Column(name), rows, sum); s > 0 {
				positive = append(positive, s)
			}
		}
		if available == 0 {
			continue
		}
		value := 0.0
		if len(positive) > 0 {
			value = median(positive)
		}
		out = append(out, RainMonth{
			Region: r.Name,
			Winter: winter,
			Year:   year,
			Month:  month,
			Rain:   series.Value(series.RoundTo(value, 1)),
		})
	}
	return out
}

func (a *Aggregator) regionMap() (map[int][]string, error) {
	stations, err := catalog.LoadStations(a.dir)
	if err != nil {
		return nil, err
	}
	return catalog.RegionMap(stations), nil
}

// RegionalRain maintains regional_rain_per_month.csv. Normally only the
// previous and the current month are recomputed and replaced when their
// regions or values changed; force recomputes every winter spanned by two
// consecutive yearly files. The file is written only when something changed.
func (a *Aggregator) RegionalRain(force bool) (bool, error) {
	regions, err := a.regionMap()
	if err != nil {
		return false, err
	}
	path := filepath.Join(a.dir, RegionalRainFile)

	var rows []RainMonth
	updated := false
	if force {
		years, err := a.years("rain")
		if err != nil {
			return false, err
		}
		for i := 0; i+1 < len(years); i++ {
			winter := fmt.Sprintf("%d-%d", years[i], years[i+1])
			t, err := a.loadWinter(winter)
			if err != nil {
				return false, err
			}
			if t == nil {
				continue
			}
			for _, m := range season.MonthOrder(season.Winter) {
				rows = append(rows, rainMonth(t, m, winter, regions)...)
			}
			a.logger.Debug("winter recomputed", zap.String("winter", winter))
		}
		updated = true
	} else {
		if rows, err = LoadRegionalRain(a.dir); err != nil {
			return false, err
		}
		now := a.clock.Now().In(a.loc)
		curWinter := season.CycleOf(now, season.Winter)
		curMonth := int(now.Month())
		prevWinter, prevMonth, _ := season.Previous(curWinter, curMonth, season.Winter)

		for _, target := range []struct {
			winter string
			month  int
		}{{prevWinter, prevMonth}, {curWinter, curMonth}} {
			t, err := a.loadWinter(target.winter)
			if err != nil {
				return false, err
			}
			if t == nil {
				a.logger.Info("no data for winter", zap.String("winter", target.winter))
				continue
			}
			fresh := rainMonth(t, target.month, target.winter, regions)
			if len(fresh) == 0 {
				continue
			}
			var changed bool
			rows, changed = replaceMonth(rows, fresh, target.winter, target.month)
			if changed {
				a.logger.Info("month updated", zap.String("winter", target.winter), zap.Int("month", target.month))
				updated = true
			}
		}
	}

	if !updated {
		return false, nil
	}
	sortRainRows(rows)
	if err := common.WriteCSV(path, &rows); err != nil {
		return false, err
	}
	return true, nil
}

// replaceMonth swaps the rows of one winter month for fresh when the region
// count or any value differs.
func replaceMonth(rows, fresh []RainMonth, winter string, month int) ([]RainMonth, bool) {
	var kept, old []RainMonth
	for _, r := range rows {
		if r.Winter == winter && r.Month == month {
			old = append(old, r)
		} else {
			kept = append(kept, r)
		}
	}
	if sameRain(old, fresh) {
		return rows, false
	}
	return append(kept, fresh...), true
}

func sameRain(a, b []RainMonth) bool {
	if len(a) != len(b) {
		return false
	}
	byRegion := func(rows []RainMonth) []RainMonth {
		out := append([]RainMonth(nil), rows...)
		sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
		return out
	}
	a, b = byRegion(a), byRegion(b)
	for i := range a {
		x, y := a[i].Rain.Float(), b[i].Rain.Float()
		if a[i].Region != b[i].Region || (x != y && !(math.IsNaN(x) && math.IsNaN(y))) {
			return false
		}
	}
	return true
}

func sortRainRows(rows []RainMonth) {
	sort.SliceStable(rows, func(i, j int) bool {
		x, y := rows[i], rows[j]
		if x.Winter != y.Winter {
			return x.Winter < y.Winter
		}
		pa, pb := season.Position(x.Month, season.Winter), season.Position(y.Month, season.Winter)
		if pa != pb {
			return pa < pb
		}
		return x.Region < y.Region
	})
}
