package series

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the format of day arguments.
const DateLayout = "2006-01-02"

// HourVector lists every hour from from 00:00 through to 23:00.
func HourVector(from, to string) ([]string, error) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	end, err := time.Parse(DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("to date %s before from date %s", to, from)
	}

	days := int(end.Sub(start).Hours()/24) + 1
	hours := make([]string, 0, days*24)
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		for h := 0; h < 24; h++ {
			hours = append(hours, day.Add(time.Duration(h)*time.Hour).Format(TimeLayout))
		}
	}
	return hours, nil
}

// ClampTo drops the hours after now. The hour vector is wall-clock time, so now
// is formatted in its own location.
func ClampTo(hours []string, now time.Time) []string {
	limit := now.Format(TimeLayout)
	n := len(hours)
	for n > 0 && hours[n-1] > limit {
		n--
	}
	return hours[:n]
}

// FloorHour maps an API datetime such as "2023-10-01T00:50:00+03:00" to its
// hour row "2023-10-01 00:00".
func FloorHour(datetime string) (string, error) {
	if len(datetime) < 16 {
		return "", fmt.Errorf("invalid datetime %q", datetime)
	}
	ts := strings.Replace(datetime[:16], "T", " ", 1)
	return ts[:14] + "00", nil
}

// Date returns the day part of a row datetime or API datetime.
func Date(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}

// YearMonth parses the calendar year and month of a row datetime.
func YearMonth(ts string) (year, month int, ok bool) {
	if len(ts) < 7 || ts[4] != '-' {
		return 0, 0, false
	}
	y, err := strconv.Atoi(ts[:4])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(ts[5:7])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	return y, m, true
}
