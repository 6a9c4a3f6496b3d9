// Package catalog keeps the station, region and activity lists mirrored from
// the IMS API in the data directory.
package catalog

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/ims"
)

const (
	StationsFile = "ims_stations.csv"
	RegionsFile  = "ims_regions.csv"
	ActivityFile = "ims_activity.csv"
)

// jsonLocation stores a station location as a JSON cell.
type jsonLocation ims.Location

func (l jsonLocation) MarshalCSV() (string, error) {
	b, err := json.Marshal(ims.Location(l))
	return string(b), err
}

func (l *jsonLocation) UnmarshalCSV(s string) error {
	if s == "" {
		return nil
	}
	return unmarshalCell(s, (*ims.Location)(l))
}

// jsonMonitors stores a station's monitor list as a JSON cell.
type jsonMonitors []ims.Monitor

func (m jsonMonitors) MarshalCSV() (string, error) {
	if m == nil {
		m = jsonMonitors{}
	}
	b, err := json.Marshal([]ims.Monitor(m))
	return string(b), err
}

func (m *jsonMonitors) UnmarshalCSV(s string) error {
	if s == "" {
		return nil
	}
	return unmarshalCell(s, (*[]ims.Monitor)(m))
}

// unmarshalCell decodes a JSON cell. Station files written with pandas hold
// Python literals instead ({'name': 'Rain', 'alias': None}); a cell that is
// not JSON is translated and decoded again.
func unmarshalCell(s string, out any) error {
	err := json.Unmarshal([]byte(s), out)
	if err == nil {
		return nil
	}
	if jerr := json.Unmarshal([]byte(pythonToJSON(s)), out); jerr != nil {
		return err
	}
	return nil
}

var pythonWords = map[string]string{"None": "null", "True": "true", "False": "false", "nan": "null"}

// pythonToJSON rewrites a Python literal of dicts, lists, strings, numbers,
// None and booleans as JSON.
func pythonToJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			i = pythonString(s, i, &b)
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			word := s[i:j]
			if w, ok := pythonWords[word]; ok {
				word = w
			}
			b.WriteString(word)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// pythonString writes the quoted string starting at s[i] as a JSON string and
// returns the index after its closing quote.
func pythonString(s string, i int, b *strings.Builder) int {
	quote := s[i]
	b.WriteByte('"')
	for i++; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			b.WriteByte('"')
			return i + 1
		case c == '\\' && i+1 < len(s):
			i++
			if s[i] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return i
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '-' || c == '+' ||
		'0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// rawJSON is a JSON cell kept verbatim.
type rawJSON json.RawMessage

func (r rawJSON) MarshalCSV() (string, error) {
	if len(r) == 0 {
		return "[]", nil
	}
	return string(r), nil
}

func (r *rawJSON) UnmarshalCSV(s string) error {
	*r = rawJSON(s)
	return nil
}

type stationRow struct {
	StationID   int          `csv:"stationId"`
	Name        string       `csv:"name"`
	ShortName   string       `csv:"shortName"`
	StationsTag string       `csv:"stationsTag"`
	Location    jsonLocation `csv:"location"`
	Timebase    int          `csv:"timebase"`
	Active      bool         `csv:"active"`
	Owner       string       `csv:"owner"`
	RegionID    int          `csv:"regionId"`
	Monitors    jsonMonitors `csv:"monitors"`
}

type regionRow struct {
	RegionID int     `csv:"regionId"`
	Name     string  `csv:"name"`
	Stations rawJSON `csv:"stations"`
}

// Activity is a station's first and last reading time as reported by the API.
// Either may be empty when the API never answered.
type Activity struct {
	StationID int    `csv:"stationId"`
	Name      string `csv:"name"`
	Earliest  string `csv:"earliest"`
	Latest    string `csv:"latest"`
}

// LoadStations reads the station list. A missing file yields no stations.
func LoadStations(dir string) ([]ims.Station, error) {
	var rows []stationRow
	if err := readCSV(filepath.Join(dir, StationsFile), &rows); err != nil {
		return nil, err
	}
	out := make([]ims.Station, len(rows))
	for i, r := range rows {
		out[i] = ims.Station{
			StationID:   r.StationID,
			Name:        r.Name,
			ShortName:   r.ShortName,
			StationsTag: r.StationsTag,
			Location:    ims.Location(r.Location),
			Timebase:    r.Timebase,
			Active:      r.Active,
			Owner:       r.Owner,
			RegionID:    r.RegionID,
			Monitors:    []ims.Monitor(r.Monitors),
		}
	}
	return out, nil
}

// SaveStations replaces the station list.
func SaveStations(dir string, stations []ims.Station) error {
	rows := make([]stationRow, len(stations))
	for i, s := range stations {
		rows[i] = stationRow{
			StationID:   s.StationID,
			Name:        s.Name,
			ShortName:   s.ShortName,
			StationsTag: s.StationsTag,
			Location:    jsonLocation(s.Location),
			Timebase:    s.Timebase,
			Active:      s.Active,
			Owner:       s.Owner,
			RegionID:    s.RegionID,
			Monitors:    jsonMonitors(s.Monitors),
		}
	}
	return writeCSV(filepath.Join(dir, StationsFile), &rows)
}

// LoadRegions reads the region list. A missing file yields no regions.
func LoadRegions(dir string) ([]ims.Region, error) {
	var rows []regionRow
	if err := readCSV(filepath.Join(dir, RegionsFile), &rows); err != nil {
		return nil, err
	}
	out := make([]ims.Region, len(rows))
	for i, r := range rows {
		out[i] = ims.Region{RegionID: r.RegionID, Name: r.Name, Stations: json.RawMessage(r.Stations)}
	}
	return out, nil
}

// SaveRegions replaces the region list.
func SaveRegions(dir string, regions []ims.Region) error {
	rows := make([]regionRow, len(regions))
	for i, r := range regions {
		rows[i] = regionRow{RegionID: r.RegionID, Name: r.Name, Stations: rawJSON(r.Stations)}
	}
	return writeCSV(filepath.Join(dir, RegionsFile), &rows)
}

// LoadActivity reads the activity list. A missing file yields no rows.
func LoadActivity(dir string) ([]Activity, error) {
	var rows []Activity
	if err := readCSV(filepath.Join(dir, ActivityFile), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveActivity replaces the activity list.
func SaveActivity(dir string, rows []Activity) error {
	return writeCSV(filepath.Join(dir, ActivityFile), &rows)
}

func readCSV(path string, out any) error {
	_, err := common.ReadCSV(path, out)
	return err
}

func writeCSV(path string, rows any) error {
	return common.WriteCSV(path, rows)
}
