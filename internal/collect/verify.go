package collect

import (
	"context"
	"math"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/catalog"
	"github.com/i474232898/ims-weather/internal/series"
)

// Mismatch is a station whose stored and fresh yearly totals differ.
type Mismatch struct {
	Station string
	Stored  float64
	Fresh   float64
}

// VerifyReport compares a stored yearly rain file with a fresh collection.
type VerifyReport struct {
	Year int
	// MissingStored lists stations the fresh collection has and the file lacks.
	MissingStored []string
	// MissingFresh lists stations the file has and the fresh collection lacks.
	MissingFresh []string
	Mismatches   []Mismatch
}

// OK reports whether both sides agree.
func (r VerifyReport) OK() bool {
	return len(r.MissingStored) == 0 && len(r.MissingFresh) == 0 && len(r.Mismatches) == 0
}

// Verify re-collects a year of rain in memory and compares it with the stored
// file. Totals are compared after rounding to whole millimetres.
func (c *Collector) Verify(ctx context.Context, year int) (VerifyReport, error) {
	report := VerifyReport{Year: year}

	stored, err := series.Read(filepath.Join(c.dir, Rain.FileName(year)))
	if err != nil {
		return report, err
	}
	idx, err := catalog.Load(c.dir)
	if err != nil {
		return report, err
	}

	req := YearRequest(Rain, year)
	req.InMemory = true
	fresh, err := c.collect(ctx, idx, req)
	if err != nil {
		return report, err
	}

	for _, col := range fresh.Columns() {
		if !stored.Has(col) {
			report.MissingStored = append(report.MissingStored, col)
			continue
		}
		a, b := nansum(stored.Column(col)), nansum(fresh.Column(col))
		if math.RoundToEven(a) != math.RoundToEven(b) {
			report.Mismatches = append(report.Mismatches, Mismatch{Station: col, Stored: a, Fresh: b})
		}
	}
	for _, col := range stored.Columns() {
		if !fresh.Has(col) {
			report.MissingFresh = append(report.MissingFresh, col)
		}
	}

	c.logger.Info("verified year",
		zap.Int("year", year),
		zap.Strings("missing_stored", report.MissingStored),
		zap.Strings("missing_fresh", report.MissingFresh),
		zap.Int("mismatches", len(report.Mismatches)))
	return report, nil
}

func nansum(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}
