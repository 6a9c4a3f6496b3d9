package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/i474232898/ims-weather/internal/ims"
)

type fakeAPI struct {
	mu       sync.Mutex
	stations []ims.Station
	regions  []ims.Region
	earliest map[int]string
	latest   map[int]string
	calls    map[string]int
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeAPI) Stations(context.Context) ([]ims.Station, error) { return f.stations, nil }
func (f *fakeAPI) Regions(context.Context) ([]ims.Region, error)   { return f.regions, nil }

func (f *fakeAPI) Earliest(_ context.Context, id int) (string, error) {
	f.count("earliest")
	if ts, ok := f.earliest[id]; ok {
		return ts, nil
	}
	return "", ims.ErrNoData
}

func (f *fakeAPI) Latest(_ context.Context, id int) (string, error) {
	f.count("latest")
	if ts, ok := f.latest[id]; ok {
		return ts, nil
	}
	return "", ims.ErrNoData
}

func testStations() []ims.Station {
	return []ims.Station{
		{StationID: 2, Name: "AVNE ETAN", RegionID: 8, Location: ims.Location{Latitude: 32.817, Longitude: 35.762},
			Monitors: []ims.Monitor{{ChannelID: 1, Name: "Rain", Units: "mm"}}},
		{StationID: 6, Name: "BET ZAYDA", RegionID: 8},
	}
}

func TestStationsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := SaveStations(dir, testStations()); err != nil {
		t.Fatal(err)
	}
	got, err := LoadStations(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got[0], testStations()[0]) {
		t.Fatalf("station mismatch:\n%+v\n%+v", got[0], testStations()[0])
	}
	b, _ := os.ReadFile(filepath.Join(dir, StationsFile))
	if !strings.HasPrefix(string(b), "stationId,name,shortName,stationsTag,location,timebase,active,owner,regionId,monitors\n") {
		t.Fatalf("unexpected header: %s", b)
	}
}

func TestLoadPandasStations(t *testing.T) {
	dir := t.TempDir()
	csv := "stationId,name,shortName,stationsTag,location,timebase,active,owner,regionId,monitors\n" +
		`2,AVNE ETAN,AVNE ET,(None),"{'latitude': 32.817, 'longitude': 35.762}",10,True,ims,8,` +
		`"[{'channelId': 1, 'name': 'Rain', 'alias': None, 'active': True, 'typeId': 1, 'pollutantId': 1, 'units': 'mm', 'description': None}, ` +
		`{'channelId': 7, 'name': 'TDmax', 'alias': None, 'active': False, 'typeId': 1, 'pollutantId': 7, 'units': '°C', 'description': ""station's max""}]"` + "\n"
	if err := os.WriteFile(filepath.Join(dir, StationsFile), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadStations(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 station, got %d", len(got))
	}
	s := got[0]
	if s.Name != "AVNE ETAN" || !s.Active || s.Location.Latitude != 32.817 || s.Location.Longitude != 35.762 {
		t.Fatalf("unexpected station %+v", s)
	}
	if ch, err := s.Channel("TDmax"); err != nil || ch != 7 {
		t.Fatalf("expected TDmax on channel 7, got %d (%v)", ch, err)
	}
	m := s.Monitors[1]
	if m.Active || m.Alias != nil || m.Units != "°C" || m.Description == nil || *m.Description != "station's max" {
		t.Fatalf("unexpected monitor %+v", m)
	}
	if !s.Monitors[0].Active || s.Monitors[0].Description != nil {
		t.Fatalf("unexpected monitor %+v", s.Monitors[0])
	}
}

func TestPythonToJSON(t *testing.T) {
	cases := map[string]string{
		`{'a': None, 'b': True, 'c': False}`: `{"a": null, "b": true, "c": false}`,
		`['it\'s', "say \"hi\""]`:            `["it's", "say \"hi\""]`,
		`["O'Neil", 'x "y" z']`:              `["O'Neil", "x \"y\" z"]`,
		`{'None': -1.5e3}`:                   `{"None": -1.5e3}`,
	}
	for in, want := range cases {
		if got := pythonToJSON(in); got != want {
			t.Errorf("pythonToJSON(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := LoadStations(dir)
	if err != nil || len(st) != 0 {
		t.Fatalf("expected no stations, got %v %v", st, err)
	}
	act, err := LoadActivity(dir)
	if err != nil || len(act) != 0 {
		t.Fatalf("expected no activity, got %v %v", act, err)
	}
}

func TestSyncStations(t *testing.T) {
	dir := t.TempDir()
	api := &fakeAPI{stations: testStations()}
	s := NewSyncer(api, SyncerOptions{Dir: dir})

	added, err := s.SyncStations(context.Background())
	if err != nil || added != 2 {
		t.Fatalf("first sync: added=%d err=%v", added, err)
	}
	added, err = s.SyncStations(context.Background())
	if err != nil || added != 0 {
		t.Fatalf("second sync: added=%d err=%v", added, err)
	}

	api.stations = append(testStations(), ims.Station{StationID: 8, Name: "TAVOR KADOORIE"})
	if added, err = s.SyncStations(context.Background()); err != nil || added != 1 {
		t.Fatalf("third sync: added=%d err=%v", added, err)
	}
	if got, _ := LoadStations(dir); len(got) != 3 {
		t.Fatalf("expected 3 stored stations, got %d", len(got))
	}

	api.stations = testStations()[:1]
	if _, err := s.SyncStations(context.Background()); !errors.Is(err, ErrDiscontinued) {
		t.Fatalf("expected ErrDiscontinued, got %v", err)
	}

	renamed := append(testStations(), ims.Station{StationID: 8, Name: "TAVOR"})
	api.stations = renamed
	if _, err := s.SyncStations(context.Background()); !errors.Is(err, ErrNameChanged) {
		t.Fatalf("expected ErrNameChanged, got %v", err)
	}
}

func TestSyncRegions(t *testing.T) {
	dir := t.TempDir()
	api := &fakeAPI{regions: []ims.Region{{RegionID: 7, Name: "a", Stations: []byte(`[{"stationId":2}]`)}}}
	s := NewSyncer(api, SyncerOptions{Dir: dir})
	if n, err := s.SyncRegions(context.Background()); err != nil || n != 1 {
		t.Fatalf("unexpected result %d %v", n, err)
	}
	if n, err := s.SyncRegions(context.Background()); err != nil || n != 0 {
		t.Fatalf("unexpected result %d %v", n, err)
	}
	got, err := LoadRegions(dir)
	if err != nil || len(got) != 1 || string(got[0].Stations) != `[{"stationId":2}]` {
		t.Fatalf("unexpected regions %+v %v", got, err)
	}
}

func TestRefreshActivity(t *testing.T) {
	dir := t.TempDir()
	if err := SaveStations(dir, testStations()); err != nil {
		t.Fatal(err)
	}
	api := &fakeAPI{
		earliest: map[int]string{2: "1993-01-01T00:00:00+02:00"},
		latest:   map[int]string{2: "2025-10-07T10:00:00+03:00", 6: "2001-05-01T00:00:00+03:00"},
	}
	s := NewSyncer(api, SyncerOptions{Dir: dir, Concurrency: 2, ActiveSince: "2025-01-01T00:00:00"})

	rows, err := s.RefreshActivity(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Earliest != "1993-01-01T00:00:00+02:00" || rows[1].Latest != "2001-05-01T00:00:00+03:00" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if rows[1].Earliest != "" {
		t.Fatalf("failed probe should leave earliest empty, got %q", rows[1].Earliest)
	}

	// Only the station active after ActiveSince gets its latest refreshed and
	// only the empty earliest is probed again.
	api.calls = nil
	api.latest[2] = "2025-10-08T10:00:00+03:00"
	api.latest[6] = "2025-10-08T10:00:00+03:00"
	rows, err = s.RefreshActivity(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if api.calls["latest"] != 1 || api.calls["earliest"] != 1 {
		t.Fatalf("unexpected probe counts %v", api.calls)
	}
	if rows[0].Latest != "2025-10-08T10:00:00+03:00" || rows[1].Latest != "2001-05-01T00:00:00+03:00" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	stored, _ := LoadActivity(dir)
	if !reflect.DeepEqual(stored, rows) {
		t.Fatalf("stored rows differ: %+v", stored)
	}
}

func TestRefreshActivityProbesEmptyLatest(t *testing.T) {
	dir := t.TempDir()
	if err := SaveStations(dir, testStations()); err != nil {
		t.Fatal(err)
	}
	if err := SaveActivity(dir, []Activity{
		{StationID: 2, Name: "AVNE ETAN", Earliest: "1993-01-01T00:00:00+02:00", Latest: "2001-05-01T00:00:00+03:00"},
		{StationID: 6, Name: "BET ZAYDA", Earliest: "1995-01-01T00:00:00+02:00"},
	}); err != nil {
		t.Fatal(err)
	}
	api := &fakeAPI{latest: map[int]string{2: "2025-10-08T10:00:00+03:00", 6: "2025-10-08T10:00:00+03:00"}}
	s := NewSyncer(api, SyncerOptions{Dir: dir, Concurrency: 2, ActiveSince: "2025-01-01T00:00:00"})

	rows, err := s.RefreshActivity(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if api.calls["latest"] != 1 || api.calls["earliest"] != 0 {
		t.Fatalf("unexpected probe counts %v", api.calls)
	}
	if rows[0].Latest != "2001-05-01T00:00:00+03:00" || rows[1].Latest != "2025-10-08T10:00:00+03:00" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestStillActive(t *testing.T) {
	act := []Activity{
		{StationID: 2, Latest: "2025-10-07T10:00:00+03:00"},
		{StationID: 6, Latest: "2001-05-01T00:00:00+03:00"},
	}
	ids, err := StillActive(testStations(), act)
	if err != nil || !reflect.DeepEqual(ids, []int{2}) {
		t.Fatalf("unexpected still active %v %v", ids, err)
	}
	if _, err := StillActive(testStations(), act[:1]); !errors.Is(err, ErrNotInActivity) {
		t.Fatalf("expected ErrNotInActivity, got %v", err)
	}
}

func TestActiveIn(t *testing.T) {
	a := Activity{Earliest: "2010-03-01T00:00:00+02:00", Latest: "2019-06-30T23:50:00+03:00"}
	if !a.ActiveIn("2019-01-01", "2019-12-31") || a.ActiveIn("2020-01-01", "2020-12-31") || a.ActiveIn("2009-01-01", "2009-12-31") {
		t.Fatal("unexpected ActiveIn result")
	}
	if !(Activity{}).ActiveIn("2020-01-01", "2020-12-31") {
		t.Fatal("unknown bounds should not rule out a window")
	}
}

func TestRegionOverrides(t *testing.T) {
	stations := []ims.Station{
		{Name: "HAIFA PORT", RegionID: 11},
		{Name: "HAIFA UNIVERSITY", RegionID: 11},
		{Name: "GILGAL_1m", RegionID: 0},
	}
	if got := RegionStations(stations, 15); !reflect.DeepEqual(got, []string{"HAIFA PORT"}) {
		t.Fatalf("unexpected region 15 stations %v", got)
	}
	if got := RegionStations(stations, 10); !reflect.DeepEqual(got, []string{"GILGAL_1m"}) {
		t.Fatalf("unexpected region 10 stations %v", got)
	}
	if name, ok := RegionName(12); !ok || name != "נגב" {
		t.Fatalf("unexpected region name %q", name)
	}
}
