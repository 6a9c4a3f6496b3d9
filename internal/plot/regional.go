package plot

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/i474232898/ims-weather/internal/aggregate"
	"github.com/i474232898/ims-weather/internal/season"
)

type cell struct {
	region, cycle string
	month         int
	value         float64
}

// seasonLines draws per region one line per cycle over the cycle's months.
func seasonLines(cells []cell, start time.Month, title, yName string) []components.Charter {
	order := season.MonthOrder(start)
	labels := monthLabels(order)

	byRegion := make(map[string]map[string][]float64)
	var regions []string
	for _, c := range cells {
		cycles, ok := byRegion[c.region]
		if !ok {
			cycles = make(map[string][]float64)
			byRegion[c.region] = cycles
			regions = append(regions, c.region)
		}
		vals, ok := cycles[c.cycle]
		if !ok {
			vals = make([]float64, len(order))
			for i := range vals {
				vals[i] = math.NaN()
			}
			cycles[c.cycle] = vals
		}
		if p := season.Position(c.month, start); p >= 0 && p < len(vals) {
			vals[p] = c.value
		}
	}
	sort.Strings(regions)

	out := make([]components.Charter, 0, len(regions))
	for _, region := range regions {
		line := charts.NewLine()
		line.SetGlobalOptions(
			initOpts(region),
			charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s: %s", title, region)}),
			charts.WithYAxisOpts(opts.YAxis{Name: yName, Type: "value"}),
		)
		line.SetXAxis(labels)

		cycles := byRegion[region]
		names := make([]string, 0, len(cycles))
		for name := range cycles {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			data := make([]opts.LineData, len(order))
			for i, v := range cycles[name] {
				data[i] = lineValue(v)
			}
			line.AddSeries(name, data)
		}
		out = append(out, line)
	}
	return out
}

// RegionalRain renders the monthly regional rain of every winter.
func RegionalRain(rows []aggregate.RainMonth, w io.Writer) error {
	cells := make([]cell, len(rows))
	for i, r := range rows {
		cells[i] = cell{r.Region, r.Winter, r.Month, r.Rain.Float()}
	}
	return newPage(seasonLines(cells, season.Winter, "Monthly rain", "Rain (mm)")...).Render(w)
}

// RegionalTemp renders the monthly regional temperature extremes of every
// cycle.
func RegionalTemp(rows []aggregate.TempMonth, kind aggregate.TempKind, w io.Writer) error {
	cells := make([]cell, len(rows))
	for i, r := range rows {
		cells[i] = cell{r.Region, r.Cycle, r.Month, r.Temp.Float()}
	}
	title := "Monthly minimum temperature"
	if kind == aggregate.Max {
		title = "Monthly maximum temperature"
	}
	return newPage(seasonLines(cells, kind.Start(), title, "Temp (°C)")...).Render(w)
}
