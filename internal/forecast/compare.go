package forecast

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/series"
)

// MaxLead is the longest lead time compared, in days.
const MaxLead = 4

// Stations maps forecast locations to the station measuring them.
var Stations = map[string]string{
	"Afula":           "AFULA NIR HAEMEQ",
	"Ashdod":          "ASHDOD PORT",
	"Beer Sheva":      "BEER SHEVA BGU",
	"Bet Shean":       "EDEN FARM",
	"Elat":            "ELAT",
	"En Gedi":         "METZOKE DRAGOT",
	"Haifa":           "HAIFA UNIVERSITY",
	"Jerusalem":       "JERUSALEM CENTRE",
	"Lod":             "BET DAGAN",
	"Mizpe Ramon":     "MIZPE RAMON",
	"Nazareth":        "NAZARETH",
	"Qazrin":          "GAMLA",
	"Tel Aviv - Yafo": "TEL AVIV COAST",
	"Tiberias":        "TIBERIAS",
	"Zefat":           "ZEFAT HAR KENAAN",
}

// Desert locations are left out of the absolute error analysis.
var Desert = []string{"Elat", "En Gedi"}

// Comparison is one row of daily_comparison.csv: the measured extremes of a
// location's day and the forecasts issued 1 to 4 days ahead.
type Comparison struct {
	Date      string       `csv:"Date" json:"date"`
	Location  string       `csv:"Location" json:"location"`
	ActualMax series.Value `csv:"Actual_Max" json:"actualMax"`
	ActualMin series.Value `csv:"Actual_Min" json:"actualMin"`
	Max1      series.Value `csv:"max -1" json:"max1"`
	Min1      series.Value `csv:"min -1" json:"min1"`
	Max2      series.Value `csv:"max -2" json:"max2"`
	Min2      series.Value `csv:"min -2" json:"min2"`
	Max3      series.Value `csv:"max -3" json:"max3"`
	Min3      series.Value `csv:"min -3" json:"min3"`
	Max4      series.Value `csv:"max -4" json:"max4"`
	Min4      series.Value `csv:"min -4" json:"min4"`
}

// Measure selects the daily maximum or minimum.
type Measure string

const (
	Max Measure = "Max"
	Min Measure = "Min"
)

// Actual returns the measured value.
func (c Comparison) Actual(m Measure) float64 {
	if m == Max {
		return c.ActualMax.Float()
	}
	return c.ActualMin.Float()
}

// Predicted returns the forecast made lead days ahead, NaN when absent.
func (c Comparison) Predicted(m Measure, lead int) float64 {
	if p := c.slot(m, lead); p != nil {
		return p.Float()
	}
	return math.NaN()
}

func (c *Comparison) slot(m Measure, lead int) *series.Value {
	maxes := [...]*series.Value{&c.Max1, &c.Max2, &c.Max3, &c.Max4}
	mins := [...]*series.Value{&c.Min1, &c.Min2, &c.Min3, &c.Min4}
	if lead < 1 || lead > MaxLead {
		return nil
	}
	if m == Max {
		return maxes[lead-1]
	}
	return mins[lead-1]
}

func emptyComparison(date, loc string) Comparison {
	c := Comparison{Date: date, Location: loc, ActualMax: series.Missing(), ActualMin: series.Missing()}
	for lead := 1; lead <= MaxLead; lead++ {
		*c.slot(Max, lead) = series.Missing()
		*c.slot(Min, lead) = series.Missing()
	}
	return c
}

// LoadComparison reads daily_comparison.csv.
func LoadComparison(dir string) ([]Comparison, error) {
	var rows []Comparison
	if _, err := common.ReadCSV(filepath.Join(dir, ComparisonFile), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type leadPrediction struct {
	date, location, issue string
	lead                  int
	max, min              float64
}

// lead is the day offset of the forecast plus one: 1 for a forecast issued on
// the day itself.
func lead(issue, date string) (int, error) {
	i, err := time.Parse(series.DateLayout, series.Date(issue))
	if err != nil {
		return 0, fmt.Errorf("invalid issue time %q", issue)
	}
	d, err := time.Parse(series.DateLayout, series.Date(date))
	if err != nil {
		return 0, fmt.Errorf("invalid forecast date %q", date)
	}
	return int(d.Sub(i).Hours()/24) + 1, nil
}

// Compare rebuilds daily_comparison.csv from predictions.csv and the yearly
// temperature files. Every forecast date is paired with every location; for
// each lead the earliest issue with a value wins, separately for max and min.
func (f *Forecaster) Compare() ([]Comparison, error) {
	preds, err := LoadPredictions(f.dir)
	if err != nil {
		return nil, err
	}

	var kept []leadPrediction
	for _, p := range preds {
		l, err := lead(p.IssueDateTime, p.Date)
		if err != nil {
			return nil, err
		}
		if l < 1 || l > MaxLead {
			continue
		}
		kept = append(kept, leadPrediction{
			date:     series.Date(p.Date),
			location: p.LocationNameEng,
			issue:    p.IssueDateTime,
			lead:     l,
			max:      parseTemp(p.MaxTemp),
			min:      parseTemp(p.MinTemp),
		})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		x, y := kept[i], kept[j]
		switch {
		case x.date != y.date:
			return x.date < y.date
		case x.location != y.location:
			return x.location < y.location
		case x.lead != y.lead:
			return x.lead < y.lead
		}
		return x.issue < y.issue
	})

	dates, locations := distinct(kept)
	actualMax, err := f.dailyActuals("temp_max", dates, maximum)
	if err != nil {
		return nil, err
	}
	actualMin, err := f.dailyActuals("temp_min", dates, minimum)
	if err != nil {
		return nil, err
	}

	index := make(map[[2]string]int, len(dates)*len(locations))
	out := make([]Comparison, 0, len(dates)*len(locations))
	for _, d := range dates {
		for _, loc := range locations {
			c := emptyComparison(d, loc)
			if st, ok := Stations[loc]; ok {
				c.ActualMax = lookup(actualMax, st, d)
				c.ActualMin = lookup(actualMin, st, d)
			}
			index[[2]string{d, loc}] = len(out)
			out = append(out, c)
		}
	}
	for _, p := range kept {
		c := &out[index[[2]string{p.date, p.location}]]
		if s := c.slot(Max, p.lead); s.IsMissing() && !math.IsNaN(p.max) {
			*s = series.Value(p.max)
		}
		if s := c.slot(Min, p.lead); s.IsMissing() && !math.IsNaN(p.min) {
			*s = series.Value(p.min)
		}
	}

	if err := common.WriteCSV(filepath.Join(f.dir, ComparisonFile), &out); err != nil {
		return nil, err
	}
	f.logger.Info("comparison written", zap.Int("rows", len(out)))
	return out, nil
}

func parseTemp(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func distinct(preds []leadPrediction) (dates, locations []string) {
	seenDate := make(map[string]bool)
	seenLoc := make(map[string]bool)
	for _, p := range preds {
		if !seenDate[p.date] {
			seenDate[p.date] = true
			dates = append(dates, p.date)
		}
		if !seenLoc[p.location] {
			seenLoc[p.location] = true
			locations = append(locations, p.location)
		}
	}
	sort.Strings(dates)
	sort.Strings(locations)
	return dates, locations
}

// daily maps station -> date -> daily extreme.
type daily map[string]map[string]float64

func lookup(d daily, station, date string) series.Value {
	if v, ok := d[station][date]; ok {
		return series.Value(v)
	}
	return series.Missing()
}

func maximum(a, b float64) float64 { return math.Max(a, b) }
func minimum(a, b float64) float64 { return math.Min(a, b) }

// dailyActuals folds the hourly rows of the yearly files covering dates into
// daily extremes.
func (f *Forecaster) dailyActuals(prefix string, dates []string, fold func(a, b float64) float64) (daily, error) {
	years := make(map[string]bool)
	for _, d := range dates {
		if len(d) >= 4 {
			years[d[:4]] = true
		}
	}
	out := make(daily)
	for y := range years {
		path := filepath.Join(f.dir, prefix+"_"+y+".csv")
		t, err := series.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("no measurements for year", zap.String("file", filepath.Base(path)))
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, col := range t.Columns() {
			days := out[col]
			if days == nil {
				days = make(map[string]float64)
				out[col] = days
			}
			for i, v := range t.Column(col) {
				if math.IsNaN(v) {
					continue
				}
				d := series.Date(t.Time(i))
				if cur, ok := days[d]; ok {
					days[d] = fold(cur, v)
				} else {
					days[d] = v
				}
			}
		}
	}
	return out, nil
}
