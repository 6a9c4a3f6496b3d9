package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/ims-weather/internal/catalog"
	"github.com/i474232898/ims-weather/internal/collect"
	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/ims"
	"github.com/i474232898/ims-weather/internal/series"
)

type fakeSource map[int][]ims.Reading

func (f fakeSource) Range(_ context.Context, id, _ int, _, _ string) ([]ims.Reading, error) {
	r, ok := f[id]
	if !ok {
		return nil, ims.ErrNoData
	}
	return r, nil
}

type countingSyncer struct{ calls int }

func (s *countingSyncer) SyncStations(context.Context) (int, error) {
	s.calls++
	return 0, nil
}

func reading(ts string, v float64) ims.Reading {
	return ims.Reading{Datetime: ts, Channels: []ims.ChannelValue{{Value: v, Status: 1, Valid: true}}}
}

func setup(t *testing.T, src fakeSource) (string, *Updater, *countingSyncer) {
	t.Helper()
	dir := t.TempDir()
	stations := []ims.Station{
		{StationID: 1, Name: "A", Monitors: []ims.Monitor{{ChannelID: 1, Name: "Rain"}, {ChannelID: 8, Name: "TDmin"}}},
		{StationID: 2, Name: "OLD", Monitors: []ims.Monitor{{ChannelID: 1, Name: "Rain"}}},
	}
	activity := []catalog.Activity{
		{StationID: 1, Name: "A", Latest: "2025-01-01T23:50:00+02:00"},
		{StationID: 2, Name: "OLD", Latest: "2019-01-01T00:00:00+02:00"},
	}
	if err := catalog.SaveStations(dir, stations); err != nil {
		t.Fatal(err)
	}
	if err := catalog.SaveActivity(dir, activity); err != nil {
		t.Fatal(err)
	}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 2, 3, 30, 0, 0, common.Israel))
	c := collect.New(src, collect.Options{Dir: dir, Clock: clock})
	syncer := &countingSyncer{}
	return dir, New(c, syncer, nil), syncer
}

func day1(t *testing.T) *series.Table {
	t.Helper()
	hours, err := series.HourVector("2025-01-01", "2025-01-01")
	if err != nil {
		t.Fatal(err)
	}
	return series.New(hours)
}

func TestUpdateRainAppendsAndMerges(t *testing.T) {
	dir, u, syncer := setup(t, fakeSource{
		1: {reading("2025-01-01T10:10:00+02:00", 0.4), reading("2025-01-02T01:10:00+02:00", 0.6)},
		2: {reading("2025-01-01T10:10:00+02:00", 9.9)},
	})
	existing := day1(t)
	existing.Set(5, "A", 1.2)
	path := filepath.Join(dir, "rain_2025.csv")
	if err := existing.Write(path); err != nil {
		t.Fatal(err)
	}

	res, err := u.UpdateRain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if syncer.calls != 1 {
		t.Fatal("station list not synced")
	}
	if res.Created || res.Stations != 1 || res.Merged != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	got, err := series.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 28 || got.LastTime() != "2025-01-02 03:00" {
		t.Fatalf("unexpected rows %d ending %s", got.Len(), got.LastTime())
	}
	if got.Get(5, "A") != 1.2 || got.Get(10, "A") != 0.4 || got.Get(25, "A") != 0.6 {
		t.Fatalf("unexpected values %v", got.Column("A"))
	}
	if got.Has("OLD") {
		t.Fatal("inactive station updated")
	}
}

func TestUpdateRainMismatchLeavesFile(t *testing.T) {
	dir, u, _ := setup(t, fakeSource{1: {reading("2025-01-01T10:10:00+02:00", 0.4)}})
	existing := day1(t).Filter(func(ts string) bool { return ts != "2025-01-01 10:00" })
	path := filepath.Join(dir, "rain_2025.csv")
	if err := existing.Write(path); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	if _, err := u.UpdateRain(context.Background()); !errors.Is(err, series.ErrDatetimeMismatch) {
		t.Fatalf("expected ErrDatetimeMismatch, got %v", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatal("file changed after mismatch")
	}
}

func TestUpdateTempInsertsMissingRows(t *testing.T) {
	dir, u, _ := setup(t, fakeSource{1: {reading("2025-01-01T10:10:00+02:00", 4.4)}})
	existing := day1(t).Filter(func(ts string) bool { return ts != "2025-01-01 10:00" })
	path := filepath.Join(dir, "temp_min_2025.csv")
	if err := existing.Write(path); err != nil {
		t.Fatal(err)
	}

	res, err := u.UpdateTemp(context.Background(), "TDmin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Merged != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	got, _ := series.Read(path)
	row, ok := got.Row("2025-01-01 10:00")
	if !ok || got.Get(row, "A") != 4.4 || !got.UniqueTimes() {
		t.Fatalf("row not inserted: %v", got.Times())
	}
	if row != 10 {
		t.Fatalf("inserted row out of order at %d", row)
	}
}

func TestUpdateCreatesMissingFile(t *testing.T) {
	dir, u, _ := setup(t, fakeSource{1: {reading("2025-01-01T10:10:00+02:00", 0.4)}})
	res, err := u.UpdateRain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created {
		t.Fatalf("expected creation, got %+v", res)
	}
	got, err := series.Read(filepath.Join(dir, "rain_2025.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 28 || got.Get(10, "A") != 0.4 {
		t.Fatalf("unexpected created table %d", got.Len())
	}
}

func TestUpdateTempRejectsRain(t *testing.T) {
	_, u, _ := setup(t, fakeSource{})
	if _, err := u.UpdateTemp(context.Background(), "Rain"); err == nil {
		t.Fatal("expected error")
	}
}
