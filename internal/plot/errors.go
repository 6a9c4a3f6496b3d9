package plot

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/i474232898/ims-weather/internal/forecast"
)

type point struct{ x, y float64 }

func isDesert(loc string) bool {
	for _, d := range forecast.Desert {
		if d == loc {
			return true
		}
	}
	return false
}

// pairs returns (actual, predicted) for the rows where both are known.
func pairs(rows []forecast.Comparison, m forecast.Measure, lead int, keep func(loc string) bool) []point {
	var out []point
	for _, c := range rows {
		if !keep(c.Location) {
			continue
		}
		a, p := c.Actual(m), c.Predicted(m, lead)
		if math.IsNaN(a) || math.IsNaN(p) {
			continue
		}
		out = append(out, point{a, p})
	}
	return out
}

func scatterData(pts []point, y func(point) float64) []opts.ScatterData {
	out := make([]opts.ScatterData, len(pts))
	for i, p := range pts {
		out[i] = opts.ScatterData{Value: []float64{p.x, y(p)}, SymbolSize: 4}
	}
	return out
}

func all(string) bool { return true }

func notDesert(loc string) bool { return !isDesert(loc) }

func scatter(title, yName string) *charts.Scatter {
	s := charts.NewScatter()
	s.SetGlobalOptions(
		initOpts(title),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Measured Temp (°C)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, Type: "value"}),
	)
	return s
}

// ForecastErrors renders the forecast accuracy page: per measure the error
// against the measured value, the absolute error spread outside the desert
// and the predicted against the actual value.
func ForecastErrors(rows []forecast.Comparison, w io.Writer) error {
	var errCharts, boxCharts, predCharts []components.Charter
	for _, m := range []forecast.Measure{forecast.Max, forecast.Min} {
		errScatter := scatter(fmt.Sprintf("%s Temp: Error vs Measured", m), "Error (Pred - Actual) (°C)")
		predScatter := scatter(fmt.Sprintf("%s Temp: Predicted vs Actual", m), "Predicted Temp (°C)")

		box := charts.NewBoxPlot()
		box.SetGlobalOptions(
			initOpts(string(m)),
			charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s Temp: Absolute Error (Exc. Desert)", m)}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Abs. Error (°C)", Type: "value"}),
		)
		var boxLabels []string
		var boxData []opts.BoxPlotData

		var desert []point
		for lead := 1; lead <= forecast.MaxLead; lead++ {
			name := fmt.Sprintf("Lead -%d", lead)
			color := charts.WithItemStyleOpts(opts.ItemStyle{Color: leadColors[lead-1]})

			if pts := pairs(rows, m, lead, all); len(pts) > 0 {
				errScatter.AddSeries(name, scatterData(pts, func(p point) float64 { return p.y - p.x }), color)
			}
			if pts := pairs(rows, m, lead, notDesert); len(pts) > 0 {
				predScatter.AddSeries(name, scatterData(pts, func(p point) float64 { return p.y }), color)
				abs := make([]float64, len(pts))
				for i, p := range pts {
					abs[i] = math.Abs(p.y - p.x)
				}
				boxLabels = append(boxLabels, name)
				boxData = append(boxData, opts.BoxPlotData{Name: name, Value: boxStats(abs)})
			}
			desert = append(desert, pairs(rows, m, lead, isDesert)...)
		}
		if len(desert) > 0 {
			predScatter.AddSeries("Desert (Elat/En Gedi)",
				scatterData(desert, func(p point) float64 { return p.y }),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: desertColor}))
		}
		box.SetXAxis(boxLabels).AddSeries("Abs. Error", boxData)

		errCharts = append(errCharts, errScatter)
		boxCharts = append(boxCharts, box)
		predCharts = append(predCharts, predScatter)
	}

	var ordered []components.Charter
	ordered = append(ordered, errCharts...)
	ordered = append(ordered, boxCharts...)
	ordered = append(ordered, predCharts...)
	return newPage(ordered...).Render(w)
}
