package series

import (
	"errors"
	"fmt"
	"math"
)

// ErrDatetimeMismatch is returned when a fetched value has no row to land in.
var ErrDatetimeMismatch = errors.New("series: datetime mismatch")

// MergeOptions tunes Merge.
type MergeOptions struct {
	// InsertMissing adds rows for datetimes inside the existing range that dst
	// lacks, then re-sorts. Without it such a datetime is a mismatch.
	InsertMissing bool
}

// Merge folds one station column of src into dst and returns the number of
// values written:
//
//  1. every src row later than dst's last row is appended, in order;
//  2. a src value whose datetime is otherwise absent from dst is inserted
//     (InsertMissing) or rejected with ErrDatetimeMismatch;
//  3. every non-missing src value overwrites the dst cell.
//
// Rows are never duplicated and other station columns are untouched. On error
// dst is left unchanged.
func Merge(dst, src *Table, col string, opts MergeOptions) (int, error) {
	last := dst.LastTime()
	vals := src.Column(col)

	if !opts.InsertMissing && vals != nil {
		for i, v := range vals {
			if math.IsNaN(v) {
				continue
			}
			ts := src.times[i]
			if _, ok := dst.Row(ts); !ok && ts <= last {
				return 0, fmt.Errorf("%w: %s %s not in table", ErrDatetimeMismatch, col, ts)
			}
		}
	}

	for _, ts := range src.times {
		if last == "" || ts > last {
			dst.AppendTime(ts)
		}
	}

	if vals == nil {
		return 0, nil
	}
	dst.AddColumn(col)

	inserted := false
	merged := 0
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		ts := src.times[i]
		row, ok := dst.Row(ts)
		if !ok {
			row = dst.AppendTime(ts)
			inserted = true
		}
		dst.values[col][row] = v
		merged++
	}
	if inserted {
		dst.Sort()
	}
	return merged, nil
}
