package catalog

import (
	"errors"
	"fmt"

	"github.com/i474232898/ims-weather/internal/ims"
)

// ErrNotInActivity is returned when a station has no activity row.
var ErrNotInActivity = errors.New("catalog: station not in activity list")

// ErrUnknownStation is returned for a station name missing from the list.
var ErrUnknownStation = errors.New("catalog: unknown station")

// day returns the date part of an API datetime.
func day(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}

// StillActive returns the ids of stations whose latest reading falls on the
// newest latest date in the activity list (the day of the last refresh). Every
// station must have an activity row.
func StillActive(stations []ims.Station, activity []Activity) ([]int, error) {
	known := make(map[int]bool, len(activity))
	newest := ""
	for _, a := range activity {
		known[a.StationID] = true
		if d := day(a.Latest); d > newest {
			newest = d
		}
	}

	var missing []int
	for _, s := range stations {
		if !known[s.StationID] {
			missing = append(missing, s.StationID)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotInActivity, missing)
	}

	var ids []int
	for _, a := range activity {
		if a.Latest != "" && day(a.Latest) >= newest {
			ids = append(ids, a.StationID)
		}
	}
	return ids, nil
}

// ActiveIn reports whether readings between from and to (YYYY-MM-DD) may exist.
// Unknown bounds do not rule a window out.
func (a Activity) ActiveIn(from, to string) bool {
	if a.Latest != "" && from > day(a.Latest) {
		return false
	}
	if a.Earliest != "" && to < day(a.Earliest) {
		return false
	}
	return true
}

// Index gives name and id lookups over the station and activity lists.
type Index struct {
	byName   map[string]ims.Station
	byID     map[int]ims.Station
	activity map[string]Activity
	order    []string
}

// NewIndex builds an Index.
func NewIndex(stations []ims.Station, activity []Activity) *Index {
	idx := &Index{
		byName:   make(map[string]ims.Station, len(stations)),
		byID:     make(map[int]ims.Station, len(stations)),
		activity: make(map[string]Activity, len(activity)),
		order:    make([]string, 0, len(stations)),
	}
	for _, s := range stations {
		idx.byName[s.Name] = s
		idx.byID[s.StationID] = s
		idx.order = append(idx.order, s.Name)
	}
	for _, a := range activity {
		idx.activity[a.Name] = a
	}
	return idx
}

// Load reads both lists from dir into an Index.
func Load(dir string) (*Index, error) {
	stations, err := LoadStations(dir)
	if err != nil {
		return nil, err
	}
	activity, err := LoadActivity(dir)
	if err != nil {
		return nil, err
	}
	return NewIndex(stations, activity), nil
}

// Names returns the station names in list order.
func (i *Index) Names() []string {
	out := make([]string, len(i.order))
	copy(out, i.order)
	return out
}

// Station looks a station up by name.
func (i *Index) Station(name string) (ims.Station, error) {
	s, ok := i.byName[name]
	if !ok {
		return ims.Station{}, fmt.Errorf("%w: %s", ErrUnknownStation, name)
	}
	return s, nil
}

// ByID looks a station up by id.
func (i *Index) ByID(id int) (ims.Station, bool) {
	s, ok := i.byID[id]
	return s, ok
}

// Activity returns the activity row of a station.
func (i *Index) Activity(name string) (Activity, bool) {
	a, ok := i.activity[name]
	return a, ok
}
