package catalog

import (
	"sort"

	"github.com/i474232898/ims-weather/internal/ims"
)

// RegionInfo is one of the named forecast regions used by the summaries.
type RegionInfo struct {
	ID   int
	Name string
}

// Regions lists the summary regions by id.
var Regions = []RegionInfo{
	{7, "יהודה ושומרון"},
	{8, "גליל וגולן"},
	{9, "עמקי הצפון"},
	{10, "ים המלח והערבה"},
	{11, "כרמל וחיפה"},
	{12, "נגב"},
	{13, "גוש דן והשרון"},
	{14, "מישור חוף דרומי"},
	{15, "מישור חוף צפוני"},
}

// regionOverrides reassigns stations whose API region id is wrong or missing.
var regionOverrides = map[string]int{
	"EDEN FARM 20080706": 9,
	"HAIFA PORT":         15,
	"ROSH HANIQRA_1m":    15,
	"AFEQ_1m":            15,
	"GILGAL_1m":          10,
	"ASHDOD PORT_1m":     14,
}

// RegionName returns the name of a summary region.
func RegionName(id int) (string, bool) {
	for _, r := range Regions {
		if r.ID == id {
			return r.Name, true
		}
	}
	return "", false
}

// RegionOf returns the station's region id after overrides.
func RegionOf(s ims.Station) int {
	if id, ok := regionOverrides[s.Name]; ok {
		return id
	}
	return s.RegionID
}

// RegionMap groups station names by region id after overrides. Names keep the
// station list order.
func RegionMap(stations []ims.Station) map[int][]string {
	out := make(map[int][]string)
	for _, s := range stations {
		id := RegionOf(s)
		out[id] = append(out[id], s.Name)
	}
	return out
}

// RegionStations lists the station names of one region.
func RegionStations(stations []ims.Station, regionID int) []string {
	return RegionMap(stations)[regionID]
}

// RegionNames returns the summary region names in sort order.
func RegionNames() []string {
	out := make([]string, len(Regions))
	for i, r := range Regions {
		out[i] = r.Name
	}
	sort.Strings(out)
	return out
}
