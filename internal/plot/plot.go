// Package plot renders the static HTML charts published from DOCS_DIR.
package plot

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/i474232898/ims-weather/internal/common"
)

// Output files under the docs directory.
const (
	ForecastErrorsFile = "forecast_errors.html"
	RegionalRainFile   = "regional_rain.html"
	RegionalTempMin    = "regional_temp_min.html"
	RegionalTempMax    = "regional_temp_max.html"
)

// leadColors follow the plotly defaults of the first published charts.
var leadColors = []string{"#636EFA", "#EF553B", "#00CC96", "#AB63FA"}

const desertColor = "black"

// Save renders into path, replacing it atomically.
func Save(path string, render func(w io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return common.WriteFileAtomic(path, buf.Bytes())
}

func initOpts(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle: title,
		Width:     "600px",
		Height:    "450px",
	})
}

// boxStats returns minimum, lower quartile, median, upper quartile and
// maximum.
func boxStats(vals []float64) []float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	return []float64{
		s[0],
		stat.Quantile(0.25, stat.Empirical, s, nil),
		stat.Quantile(0.5, stat.Empirical, s, nil),
		stat.Quantile(0.75, stat.Empirical, s, nil),
		s[len(s)-1],
	}
}

// monthLabels abbreviates month numbers.
func monthLabels(order []int) []string {
	out := make([]string, len(order))
	for i, m := range order {
		out[i] = time.Month(m).String()[:3]
	}
	return out
}

func lineValue(v float64) opts.LineData {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return opts.LineData{Value: nil}
	}
	return opts.LineData{Value: v}
}

func newPage(chartList ...components.Charter) *components.Page {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(chartList...)
	return page
}
