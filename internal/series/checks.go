package series

import (
	"fmt"
	"time"
)

// UniqueTimes reports whether no datetime appears twice.
func (t *Table) UniqueTimes() bool {
	return len(t.index) == len(t.times)
}

// UniqueColumns reports whether the source header had no repeated station.
func (t *Table) UniqueColumns() bool {
	return len(t.dupColumns) == 0
}

// DuplicateColumns returns the repeated header names seen when reading.
func (t *Table) DuplicateColumns() []string {
	out := make([]string, len(t.dupColumns))
	copy(out, t.dupColumns)
	return out
}

// Sequential reports whether consecutive rows are separated by a single,
// constant step.
func (t *Table) Sequential() (bool, error) {
	if len(t.times) < 3 {
		return true, nil
	}
	prev, err := time.Parse(TimeLayout, t.times[0])
	if err != nil {
		return false, fmt.Errorf("row 0: %w", err)
	}
	var step time.Duration
	for i := 1; i < len(t.times); i++ {
		cur, err := time.Parse(TimeLayout, t.times[i])
		if err != nil {
			return false, fmt.Errorf("row %d: %w", i, err)
		}
		d := cur.Sub(prev)
		if i == 1 {
			step = d
		} else if d != step {
			return false, nil
		}
		prev = cur
	}
	return step > 0, nil
}

// FullYear reports whether the table starts on Jan 1 00:00 of year and, unless
// the year is still running, ends on Dec 31 23:00.
func (t *Table) FullYear(year int, current bool) bool {
	if len(t.times) == 0 {
		return false
	}
	startOK := t.times[0] == fmt.Sprintf("%d-01-01 00:00", year)
	endOK := current || t.LastTime() == fmt.Sprintf("%d-12-31 23:00", year)
	return startOK && endOK
}
