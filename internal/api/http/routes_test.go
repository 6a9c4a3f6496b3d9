package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ims-weather/internal/aggregate"
	"github.com/i474232898/ims-weather/internal/forecast"
	"github.com/i474232898/ims-weather/internal/series"
	"github.com/i474232898/ims-weather/internal/store"
)

type fakeSummaries struct {
	lastKind aggregate.TempKind
	fail     error
}

func (f *fakeSummaries) RegionalRain(region, winter string) ([]aggregate.RainMonth, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if region == "nowhere" {
		return nil, store.ErrNotFound
	}
	return []aggregate.RainMonth{{Region: region, Winter: winter, Year: 2023, Month: 9, Rain: 3}}, nil
}

func (f *fakeSummaries) RegionalTemp(kind aggregate.TempKind, region, cycle string) ([]aggregate.TempMonth, error) {
	f.lastKind = kind
	return []aggregate.TempMonth{{Region: region, Cycle: cycle, Month: 7, Temp: 39.8}}, nil
}

func (f *fakeSummaries) StationMonthly(station, measure string) ([]aggregate.StationMonth, error) {
	return []aggregate.StationMonth{{Station: station, Measure: measure, Cycle: "2023-2024", Month: 9, Value: 5}}, nil
}

func (f *fakeSummaries) Comparison(location string) ([]forecast.Comparison, error) {
	return []forecast.Comparison{{Date: "2026-02-06", Location: location, ActualMax: 20.5, ActualMin: series.Missing()}}, nil
}

func newApp(s Summaries) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, s)
	return app
}

func get(t *testing.T, app *fiber.App, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

// TestQueryValidation verifies the cycle, kind and measure constraints.
func TestQueryValidation(t *testing.T) {
	app := newApp(&fakeSummaries{})

	cases := []struct {
		target string
		status int
	}{
		{"/api/v1/regional/rain?winter=2023-2024", http.StatusOK},
		{"/api/v1/regional/rain", http.StatusOK},
		{"/api/v1/regional/rain?winter=2023-2025", http.StatusBadRequest},
		{"/api/v1/regional/rain?winter=winter", http.StatusBadRequest},
		{"/api/v1/regional/temp/max?cycle=2024-2025", http.StatusOK},
		{"/api/v1/regional/temp/mean", http.StatusBadRequest},
		{"/api/v1/stations/BET%20DAGAN/monthly?measure=Rain", http.StatusOK},
		{"/api/v1/stations/BET%20DAGAN/monthly?measure=Wind", http.StatusBadRequest},
		{"/api/v1/regional/rain?region=nowhere", http.StatusNotFound},
	}
	for _, tc := range cases {
		if resp := get(t, app, tc.target); resp.StatusCode != tc.status {
			t.Errorf("%s: expected status %d, got %d", tc.target, tc.status, resp.StatusCode)
		}
	}
}

func TestRegionalTempPassesKind(t *testing.T) {
	f := &fakeSummaries{}
	resp := get(t, newApp(f), "/api/v1/regional/temp/min?region="+url.QueryEscape("נגב"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if f.lastKind != aggregate.Min {
		t.Fatalf("expected kind min, got %q", f.lastKind)
	}
	var body struct {
		Region string                `json:"region"`
		Months []aggregate.TempMonth `json:"months"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Region != "נגב" || len(body.Months) != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestComparisonMissingValuesAreNull(t *testing.T) {
	resp := get(t, newApp(&fakeSummaries{}), "/api/v1/forecast/comparison?location=Afula")
	var body struct {
		Days []map[string]any `json:"days"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Days) != 1 || body.Days[0]["actualMax"] != 20.5 || body.Days[0]["actualMin"] != nil {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestStoreFailureIsInternalError(t *testing.T) {
	resp := get(t, newApp(&fakeSummaries{fail: errors.New("disk")}), "/api/v1/regional/rain")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.StatusCode)
	}
}
