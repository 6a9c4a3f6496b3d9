package aggregate

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/ims-weather/internal/catalog"
	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/ims"
	"github.com/i474232898/ims-weather/internal/series"
)

const (
	negev   = "נגב"
	gushDan = "גוש דן והשרון"
)

func writeTable(t *testing.T, path, csv string) {
	t.Helper()
	tbl, err := series.Decode(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.Write(path); err != nil {
		t.Fatal(err)
	}
}

func fixture(t *testing.T, now time.Time) (string, *Aggregator) {
	t.Helper()
	dir := t.TempDir()
	stations := []ims.Station{
		{StationID: 1, Name: "S1", RegionID: 12},
		{StationID: 2, Name: "S2", RegionID: 12},
		{StationID: 3, Name: "S3", RegionID: 13},
		{StationID: 4, Name: "HAIFA PORT", RegionID: 11},
	}
	if err := catalog.SaveStations(dir, stations); err != nil {
		t.Fatal(err)
	}
	writeTable(t, filepath.Join(dir, "rain_2023.csv"),
		"datetime,S1,S2\n"+
			"2023-08-31 23:00,50.0,50.0\n"+
			"2023-09-01 00:00,2.0,1.0\n"+
			"2023-09-02 00:00,3.0,\n"+
			"2023-10-01 00:00,,0.0\n")
	writeTable(t, filepath.Join(dir, "rain_2024.csv"),
		"datetime,S1,S2,S3\n"+
			"2024-01-15 00:00,4.0,6.0,\n"+
			"2024-09-05 00:00,10.0,,\n")
	writeTable(t, filepath.Join(dir, "temp_min_2024.csv"),
		"datetime,S1,S2\n"+
			"2024-01-01 00:00,5.0,3.0\n"+
			"2024-01-02 00:00,2.0,\n"+
			"2024-09-01 00:00,,\n")
	writeTable(t, filepath.Join(dir, "temp_max_2024.csv"),
		"datetime,S1,S2\n"+
			"2024-02-01 00:00,20.0,21.0\n"+
			"2024-07-01 00:00,38.5,41.0\n")
	return dir, New(dir, Options{Clock: clockwork.NewFakeClockAt(now)})
}

func TestMedian(t *testing.T) {
	if median([]float64{3, 1, 2}) != 2 || median([]float64{4, 1, 3, 2}) != 2.5 || !math.IsNaN(median(nil)) {
		t.Fatal("unexpected median")
	}
	// even counts of 0.1-step sums land on ties
	if got := series.RoundTo(median([]float64{12.2, 12.3}), 1); got != 12.2 {
		t.Fatalf("expected 12.2, got %v", got)
	}
	if got := series.RoundTo(median([]float64{0.1, 0.4}), 1); got != 0.2 {
		t.Fatalf("expected 0.2, got %v", got)
	}
}

func TestRegionalRainForce(t *testing.T) {
	dir, a := fixture(t, time.Date(2024, 1, 20, 12, 0, 0, 0, common.Israel))
	updated, err := a.RegionalRain(true)
	if err != nil || !updated {
		t.Fatalf("unexpected result %v %v", updated, err)
	}
	rows, err := LoadRegionalRain(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d: %+v", len(rows), rows)
	}
	want := []struct {
		region string
		year   int
		month  int
		rain   float64
	}{
		{gushDan, 2023, 9, 0}, {negev, 2023, 9, 3},
		{gushDan, 2023, 10, 0}, {negev, 2023, 10, 0},
		{gushDan, 2024, 1, 0}, {negev, 2024, 1, 5},
	}
	for i, w := range want {
		r := rows[i]
		if r.Region != w.region || r.Winter != "2023-2024" || r.Year != w.year || r.Month != w.month || r.Rain.Float() != w.rain {
			t.Errorf("row %d = %+v, want %+v", i, r, w)
		}
	}
}

func TestRegionalRainIncremental(t *testing.T) {
	dir, a := fixture(t, time.Date(2024, 1, 20, 12, 0, 0, 0, common.Israel))

	updated, err := a.RegionalRain(false)
	if err != nil || !updated {
		t.Fatalf("first run: %v %v", updated, err)
	}
	rows, _ := LoadRegionalRain(dir)
	if len(rows) != 2 || rows[1].Month != 1 || rows[1].Rain.Float() != 5 {
		t.Fatalf("unexpected rows %+v", rows)
	}

	updated, err = a.RegionalRain(false)
	if err != nil || updated {
		t.Fatalf("second run should not change anything: %v %v", updated, err)
	}

	writeTable(t, filepath.Join(dir, "rain_2024.csv"), "datetime,S1,S2,S3\n2024-01-15 00:00,8.0,6.0,\n")
	updated, err = a.RegionalRain(false)
	if err != nil || !updated {
		t.Fatalf("changed data not picked up: %v %v", updated, err)
	}
	rows, _ = LoadRegionalRain(dir)
	if len(rows) != 2 || rows[1].Rain.Float() != 7 {
		t.Fatalf("unexpected rows after change %+v", rows)
	}
}

func TestRegionalTemp(t *testing.T) {
	dir, a := fixture(t, time.Now())
	rows, err := a.RegionalTemp(Min)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %+v", rows)
	}
	if r := rows[0]; r.Region != negev || r.Cycle != "2023-2024" || r.Month != 1 || r.Temp.Float() != 2.5 {
		t.Fatalf("unexpected row %+v", r)
	}
	if _, err := os.Stat(filepath.Join(dir, RegionalTempMinFile)); err != nil {
		t.Fatal(err)
	}

	rows, err = a.RegionalTemp(Max)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Cycle != "2023-2024" || rows[1].Cycle != "2024-2025" || rows[1].Temp.Float() != 39.8 {
		t.Fatalf("unexpected max rows %+v", rows)
	}
}

func TestStationMonthly(t *testing.T) {
	dir, a := fixture(t, time.Now())
	rows, err := a.StationMonthly()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range rows {
		if r.Value.IsMissing() {
			t.Fatalf("missing value kept: %+v", r)
		}
		if r.Station == "S1" && r.Measure == MeasureRain && r.Cycle == "2023-2024" && r.Month == 9 {
			found = r.Value.Float() == 5
		}
		if r.Station == "S3" {
			t.Fatalf("all-missing station kept: %+v", r)
		}
	}
	if !found {
		t.Fatal("September rain for S1 not found")
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].Station > rows[i].Station {
			t.Fatal("rows not sorted by station")
		}
	}
	stored, err := LoadStationMonthly(dir)
	if err != nil || len(stored) != len(rows) {
		t.Fatalf("stored rows differ: %d %v", len(stored), err)
	}
}

func TestSeasonTotals(t *testing.T) {
	dir, a := fixture(t, time.Now())
	tbl, err := a.SeasonTotals(SeasonRain, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 1 || tbl.Time(0) != "2023-2024" {
		t.Fatalf("unexpected seasons %v", tbl.Times())
	}
	if tbl.Get(0, "S1") != 9 || tbl.Get(0, "S2") != 7 || tbl.Get(0, "S3") != 0 {
		t.Fatalf("unexpected totals %v %v %v", tbl.Get(0, "S1"), tbl.Get(0, "S2"), tbl.Get(0, "S3"))
	}
	b, err := os.ReadFile(filepath.Join(dir, "rain_sep_to_aug.csv"))
	if err != nil || !strings.HasPrefix(string(b), "winter,S1,S2,S3\n2023-2024,9.0,7.0,0.0\n") {
		t.Fatalf("unexpected file %q %v", b, err)
	}

	tbl, err = a.SeasonTotals(SeasonRain, "10-15", false)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Get(0, "S1") != 5 || tbl.Get(0, "S2") != 1 {
		t.Fatalf("unexpected cut totals %v %v", tbl.Get(0, "S1"), tbl.Get(0, "S2"))
	}

	if _, err := a.SeasonTotals(SeasonRain, "15-10", false); err == nil {
		t.Fatal("expected error for bad until")
	}
}

func TestSeasonToDateRatio(t *testing.T) {
	dir, a := fixture(t, time.Now())
	writeTable(t, filepath.Join(dir, "rain_2025.csv"), "datetime,S1\n2025-01-10 00:00,3.0\n2025-02-10 00:00,50.0\n")

	r, err := a.SeasonToDateRatio("S1", "01-31")
	if err != nil {
		t.Fatal(err)
	}
	if r.Season != "2024-2025" || r.Total != 13 || r.Median != 9 || r.Seasons != 1 {
		t.Fatalf("unexpected ratio %+v", r)
	}
	if math.Abs(r.Ratio-13.0/9.0) > 1e-9 {
		t.Fatalf("unexpected ratio value %v", r.Ratio)
	}
	if _, err := a.SeasonToDateRatio("NOPE", ""); err == nil {
		t.Fatal("expected error for unknown station")
	}
}

func TestExtremes(t *testing.T) {
	_, a := fixture(t, time.Now())
	got, err := a.Extremes()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected extremes %+v", got)
	}
	if got[0].Measure != MeasureMinTemp || got[0].Station != "S1" || got[0].Value != 2 {
		t.Fatalf("unexpected coldest %+v", got[0])
	}
	if got[1].Measure != MeasureMaxTemp || got[1].Station != "S2" || got[1].Value != 41 {
		t.Fatalf("unexpected hottest %+v", got[1])
	}
}
