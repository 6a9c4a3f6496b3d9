package common

import (
	"time"
	_ "time/tzdata"
)

// Israel is the station local time zone. Row datetimes and "today" are wall
// clock times in this zone.
var Israel = mustLoadLocation("Asia/Jerusalem")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Today formats t's date in loc as YYYY-MM-DD.
func Today(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
