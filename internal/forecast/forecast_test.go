package forecast

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/series"
)

const feedTemplate = `<?xml version="1.0" encoding="ISO-8859-8"?>
<LocationForecasts>
  <Identification>
    <IssueDateTime>ISSUE</IssueDateTime>
  </Identification>
  <Location>
    <LocationMetaData>
      <LocationNameEng>Afula</LocationNameEng>
      <LocationNameHeb>עפולה</LocationNameHeb>
    </LocationMetaData>
    <LocationData>
      <TimeUnitData>
        <Date>2026-02-06</Date>
        <Element><ElementName>Minimum temperature</ElementName><ElementValue>11</ElementValue></Element>
        <Element><ElementName>Maximum temperature</ElementName><ElementValue>19</ElementValue></Element>
        <Element><ElementName>Weather code</ElementName><ElementValue>1250</ElementValue></Element>
        <Element><ElementName>Relative humidity</ElementName><ElementValue>60</ElementValue></Element>
      </TimeUnitData>
      <TimeUnitData>
        <Date>2026-02-07</Date>
        <Element><ElementName>Maximum temperature</ElementName><ElementValue>20</ElementValue></Element>
      </TimeUnitData>
    </LocationData>
  </Location>
</LocationForecasts>`

func feedServer(t *testing.T, issue *atomic.Value) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/5.0") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body := strings.Replace(feedTemplate, "ISSUE", issue.Load().(string), 1)
		enc, err := charmap.ISO8859_8.NewEncoder().String(body)
		if err != nil {
			t.Errorf("encode feed: %v", err)
		}
		_, _ = w.Write([]byte(enc))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	codes := "Code,מזג האוויר,Weather\n1250,בהיר,Clear\n"
	if err := os.WriteFile(filepath.Join(dir, WeatherCodeFile), []byte(codes), 0o644); err != nil {
		t.Fatal(err)
	}
	var issue atomic.Value
	issue.Store("2026-02-06 04:25")
	f := New(Options{Dir: dir, URL: feedServer(t, &issue)})

	res, err := f.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created || res.Rows != 2 || res.Existing {
		t.Fatalf("unexpected result %+v", res)
	}
	path := filepath.Join(dir, PredictionsFile)
	b, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(b), common.BOM()+"IssueDateTime,Date,LocationNameHeb,LocationNameEng,Minimum temperature,Maximum temperature,code,HebrewWeatherCode\n") {
		t.Fatalf("unexpected header %q", b)
	}

	rows, err := LoadPredictions(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := Prediction{
		IssueDateTime: "2026-02-06 04:25", Date: "2026-02-06",
		LocationNameHeb: "עפולה", LocationNameEng: "Afula",
		MinTemp: "11", MaxTemp: "19", Code: "1250", HebrewWeatherCode: "בהיר",
	}
	if len(rows) != 2 || rows[0] != want || rows[1].MinTemp != "" || rows[1].MaxTemp != "20" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	res, err = f.Collect(context.Background())
	if err != nil || !res.Existing || res.Rows != 0 {
		t.Fatalf("repeated issue should be skipped: %+v %v", res, err)
	}
	again, _ := os.ReadFile(path)
	if string(again) != string(b) {
		t.Fatal("file changed for a stored issue")
	}

	issue.Store("2026-02-06 16:25")
	res, err = f.Collect(context.Background())
	if err != nil || res.Created || res.Rows != 2 {
		t.Fatalf("unexpected append result %+v %v", res, err)
	}
	b, _ = os.ReadFile(path)
	if strings.Count(string(b), "IssueDateTime") != 1 {
		t.Fatalf("header repeated on append:\n%s", b)
	}
	if rows, _ = LoadPredictions(dir); len(rows) != 4 || rows[3].IssueDateTime != "2026-02-06 16:25" {
		t.Fatalf("unexpected rows after append %+v", rows)
	}
}

func TestCollectWithoutWeatherCodes(t *testing.T) {
	var issue atomic.Value
	issue.Store("2026-02-06 04:25")
	dir := t.TempDir()
	f := New(Options{Dir: dir, URL: feedServer(t, &issue)})
	if _, err := f.Collect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, _ := LoadPredictions(dir)
	if len(rows) != 2 || rows[0].Code != "1250" || rows[0].HebrewWeatherCode != "" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestCollectRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body := strings.Replace(feedTemplate, "ISSUE", "2026-02-06 04:25", 1)
		enc, _ := charmap.ISO8859_8.NewEncoder().String(body)
		_, _ = w.Write([]byte(enc))
	}))
	defer srv.Close()

	f := New(Options{Dir: t.TempDir(), URL: srv.URL, RetryDelay: time.Millisecond})
	res, err := f.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rows != 2 || calls.Load() != 2 {
		t.Fatalf("expected 2 rows after 2 calls, got %+v after %d", res, calls.Load())
	}
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	preds := []Prediction{
		{IssueDateTime: "2026-02-05 04:00", Date: "2026-02-06", LocationNameEng: "Afula", MaxTemp: "18", MinTemp: "10"},
		{IssueDateTime: "2026-02-06 16:25", Date: "2026-02-06", LocationNameEng: "Afula", MinTemp: "12"},
		{IssueDateTime: "2026-02-06 04:25", Date: "2026-02-06", LocationNameEng: "Afula", MaxTemp: "19", MinTemp: "11"},
		{IssueDateTime: "2026-02-06 16:25", Date: "2026-02-07", LocationNameEng: "Haifa", MaxTemp: "15", MinTemp: "9"},
		{IssueDateTime: "2026-02-01 04:00", Date: "2026-02-06", LocationNameEng: "Afula", MaxTemp: "30", MinTemp: "30"},
	}
	if err := writePredictions(filepath.Join(dir, PredictionsFile), preds); err != nil {
		t.Fatal(err)
	}
	for name, csv := range map[string]string{
		"temp_max_2026.csv": "datetime,AFULA NIR HAEMEQ\n2026-02-06 10:00,17.0\n2026-02-06 13:00,20.5\n2026-02-07 13:00,\n",
		"temp_min_2026.csv": "datetime,AFULA NIR HAEMEQ\n2026-02-06 03:00,9.5\n2026-02-06 05:00,8.0\n",
	} {
		tbl, err := series.Decode(strings.NewReader(csv))
		if err != nil {
			t.Fatal(err)
		}
		if err := tbl.Write(filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}

	f := New(Options{Dir: dir})
	rows, err := f.Compare()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %+v", rows)
	}
	afula := rows[0]
	if afula.Date != "2026-02-06" || afula.Location != "Afula" {
		t.Fatalf("unexpected first row %+v", afula)
	}
	if afula.ActualMax != 20.5 || afula.ActualMin != 8 {
		t.Fatalf("unexpected actuals %v %v", afula.ActualMax, afula.ActualMin)
	}
	if afula.Max1 != 19 || afula.Min1 != 11 || afula.Max2 != 18 || afula.Min2 != 10 {
		t.Fatalf("unexpected predictions %+v", afula)
	}
	if !afula.Max3.IsMissing() || !afula.Min4.IsMissing() {
		t.Fatalf("lead beyond the forecasts should be missing: %+v", afula)
	}

	haifa := rows[3]
	if haifa.Date != "2026-02-07" || haifa.Location != "Haifa" || haifa.Max2 != 15 || !haifa.ActualMax.IsMissing() {
		t.Fatalf("unexpected Haifa row %+v", haifa)
	}
	if r := rows[2]; r.Location != "Afula" || !r.ActualMax.IsMissing() || !r.Max1.IsMissing() {
		t.Fatalf("unexpected empty Afula row %+v", r)
	}

	b, _ := os.ReadFile(filepath.Join(dir, ComparisonFile))
	if !strings.HasPrefix(string(b), "Date,Location,Actual_Max,Actual_Min,max -1,min -1,max -2,min -2,max -3,min -3,max -4,min -4\n") {
		t.Fatalf("unexpected header %q", b)
	}
	stored, err := LoadComparison(dir)
	if err != nil || len(stored) != 4 || stored[0].Max1 != 19 || !stored[0].Max3.IsMissing() {
		t.Fatalf("unexpected stored rows %+v %v", stored, err)
	}
}

func comparisonRow(loc string, actual, lead1, lead2, lead3 float64) Comparison {
	c := emptyComparison("2026-02-06", loc)
	c.ActualMax = series.Value(actual)
	c.Max1 = series.Value(lead1)
	c.Max2 = series.Value(lead2)
	c.Max3 = series.Value(lead3)
	return c
}

func TestPairedStats(t *testing.T) {
	rows := []Comparison{
		comparisonRow("Afula", 20, 20, 21, 21),
		comparisonRow("Afula", 20, 20, 22, 21),
		comparisonRow("Haifa", 20, 20, 23, 21),
		comparisonRow("Elat", 20, 20, 40, 40),
	}
	got := PairedStats(rows, Desert)
	if len(got) != 6 {
		t.Fatalf("expected 6 tests, got %d", len(got))
	}

	lead2 := got[0]
	if lead2.Measure != Max || lead2.Lead != 2 || lead2.N != 3 || !lead2.Enough {
		t.Fatalf("unexpected lead 2 test %+v", lead2)
	}
	if lead2.MeanErr != 2 || lead2.MeanBaseErr != 0 {
		t.Fatalf("unexpected means %+v", lead2)
	}
	if math.Abs(lead2.T-2*math.Sqrt(3)) > 1e-9 || math.Abs(lead2.P-0.0742) > 1e-3 || lead2.Significant {
		t.Fatalf("unexpected t-test %+v", lead2)
	}

	lead3 := got[1]
	if !math.IsInf(lead3.T, 1) || lead3.P != 0 || !lead3.Significant {
		t.Fatalf("constant differences should be significant: %+v", lead3)
	}
	if lead4 := got[2]; lead4.Enough || lead4.N != 0 {
		t.Fatalf("lead 4 has no data: %+v", lead4)
	}
	if minLead2 := got[3]; minLead2.Measure != Min || minLead2.Enough {
		t.Fatalf("unexpected min test %+v", minLead2)
	}
}
