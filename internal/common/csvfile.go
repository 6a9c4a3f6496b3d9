package common

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// ReadCSV decodes a fixed-schema CSV file into out, a pointer to a slice of
// tagged structs. A leading BOM is ignored. A missing or empty file leaves out
// untouched and reports found=false.
func ReadCSV(path string, out any) (found bool, err error) {
	//nolint:gosec // G304: path built from the configured data directory.
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b = bytes.TrimPrefix(b, []byte(utf8BOM))
	if len(bytes.TrimSpace(b)) == 0 {
		return false, nil
	}
	if err := gocsv.UnmarshalBytes(b, out); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// WriteCSV encodes rows, a pointer to a slice of tagged structs, replacing the
// file atomically.
func WriteCSV(path string, rows any) error {
	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
