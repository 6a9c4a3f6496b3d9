// Package season maps calendar months onto twelve-month cycles labelled
// "YYYY-YYYY". Rain and minimum temperature use winters starting in
// September; maximum temperature uses summers starting in March.
package season

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Winter = time.September
	Summer = time.March
)

// CycleOf returns the cycle containing t.
func CycleOf(t time.Time, start time.Month) string {
	return Cycle(t.Year(), int(t.Month()), start)
}

// Cycle returns the cycle containing the given calendar month.
func Cycle(year, month int, start time.Month) string {
	if month >= int(start) {
		return fmt.Sprintf("%d-%d", year, year+1)
	}
	return fmt.Sprintf("%d-%d", year-1, year)
}

// Parse splits a cycle label into its two years.
func Parse(cycle string) (int, int, error) {
	a, b, ok := strings.Cut(cycle, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid cycle %q", cycle)
	}
	y1, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cycle %q: %w", cycle, err)
	}
	y2, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cycle %q: %w", cycle, err)
	}
	if y2 != y1+1 {
		return 0, 0, fmt.Errorf("invalid cycle %q: years not consecutive", cycle)
	}
	return y1, y2, nil
}

// YearOf returns the calendar year of a cycle month.
func YearOf(cycle string, month int, start time.Month) (int, error) {
	y1, y2, err := Parse(cycle)
	if err != nil {
		return 0, err
	}
	if month >= int(start) {
		return y1, nil
	}
	return y2, nil
}

// MonthOrder lists the months of a cycle in order.
func MonthOrder(start time.Month) []int {
	out := make([]int, 12)
	for i := range out {
		out[i] = (int(start)-1+i)%12 + 1
	}
	return out
}

// Position returns the zero-based place of month inside a cycle.
func Position(month int, start time.Month) int {
	return (month - int(start) + 12) % 12
}

// Previous returns the cycle and month before the given one.
func Previous(cycle string, month int, start time.Month) (string, int, error) {
	y1, _, err := Parse(cycle)
	if err != nil {
		return "", 0, err
	}
	if month == int(start) {
		return fmt.Sprintf("%d-%d", y1-1, y1), (month+10)%12 + 1, nil
	}
	return cycle, (month+10)%12 + 1, nil
}
