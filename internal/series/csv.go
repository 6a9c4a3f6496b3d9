package series

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/i474232898/ims-weather/internal/common"
)

// Read loads a table from a wide CSV file.
func Read(path string) (*Table, error) {
	//nolint:gosec // G304: path built from the configured data directory.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Decode parses a wide CSV stream.
func Decode(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) == 0 || common.StripBOM(header[0]) != DatetimeColumn {
		return nil, fmt.Errorf("invalid CSV header: expected first column %q, got %v", DatetimeColumn, header)
	}

	t := New(nil)
	// position -> column name; duplicates are recorded and their cells dropped
	cols := make([]string, len(header)-1)
	for i, name := range header[1:] {
		if t.Has(name) {
			t.dupColumns = append(t.dupColumns, name)
			continue
		}
		t.AddColumn(name)
		cols[i] = name
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if record[0] == "" {
			return nil, fmt.Errorf("line %d: empty datetime", line)
		}
		i := t.appendTime(record[0])
		for j, cell := range record[1:] {
			if cols[j] == "" || cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, cols[j], err)
			}
			t.values[cols[j]][i] = v
		}
	}
	return t, nil
}

// Write saves the table, replacing the file atomically.
func (t *Table) Write(path string) error {
	return t.WriteAs(path, DatetimeColumn)
}

// WriteAs saves the table with keyHeader naming the first column.
func (t *Table) WriteAs(path, keyHeader string) error {
	var buf bytes.Buffer
	if err := t.EncodeAs(&buf, keyHeader); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return common.WriteFileAtomic(path, buf.Bytes())
}

// Encode writes the table as CSV.
func (t *Table) Encode(w io.Writer) error {
	return t.EncodeAs(w, DatetimeColumn)
}

// EncodeAs writes the table as CSV with keyHeader naming the first column.
func (t *Table) EncodeAs(w io.Writer, keyHeader string) error {
	cw := csv.NewWriter(w)
	record := make([]string, len(t.columns)+1)

	record[0] = keyHeader
	copy(record[1:], t.columns)
	if err := cw.Write(record); err != nil {
		return err
	}

	for i, ts := range t.times {
		record[0] = ts
		for j, col := range t.columns {
			record[j+1] = FormatValue(t.values[col][i])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders a cell: empty for missing, shortest decimal otherwise.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	if v == 0 {
		return "0.0"
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// ParseValue is the inverse of FormatValue.
func ParseValue(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
