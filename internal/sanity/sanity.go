// Package sanity checks the stored data files for structural problems.
package sanity

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/catalog"
	"github.com/i474232898/ims-weather/internal/series"
)

// Failure is one failed check.
type Failure struct {
	Check   string
	Subject string
	Detail  string
}

func (f Failure) String() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s: %s", f.Check, f.Subject)
	}
	return fmt.Sprintf("%s: %s (%s)", f.Check, f.Subject, f.Detail)
}

// Report collects the failures of a run.
type Report struct {
	Files    int
	Failures []Failure
}

// OK reports whether every check passed.
func (r *Report) OK() bool { return len(r.Failures) == 0 }

func (r *Report) fail(check, subject, detail string) {
	r.Failures = append(r.Failures, Failure{check, subject, detail})
}

var yearlyFile = regexp.MustCompile(`^(rain|temp_min|temp_max)_(\d{4})\.csv$`)

// Run checks every yearly file of dir and the station files. now decides
// which year may still be incomplete.
func Run(dir string, now time.Time, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sanity")

	paths, err := filepath.Glob(filepath.Join(dir, "*_*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	r := &Report{}
	for _, path := range paths {
		m := yearlyFile.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[2])
		name := filepath.Base(path)
		t, err := series.Read(path)
		if err != nil {
			r.fail("readable", name, err.Error())
			continue
		}
		r.Files++
		logger.Debug("checking file", zap.String("file", name), zap.Int("rows", t.Len()))

		if !t.UniqueTimes() {
			r.fail("unique dates", name, "")
		}
		if ok, err := t.Sequential(); err != nil {
			r.fail("single time step", name, err.Error())
		} else if !ok {
			r.fail("single time step", name, "")
		}
		if !t.FullYear(year, year >= now.Year()) {
			r.fail("full year", name, fmt.Sprintf("%s to %s", first(t), t.LastTime()))
		}
		if !t.UniqueColumns() {
			r.fail("unique stations", name, strings.Join(t.DuplicateColumns(), ", "))
		}
	}

	stations, err := catalog.LoadStations(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(stations))
	for i, s := range stations {
		names[i] = s.Name
	}
	if dup := duplicates(names); len(dup) > 0 {
		r.fail("unique station names", catalog.StationsFile, strings.Join(dup, ", "))
	}

	activity, err := catalog.LoadActivity(dir)
	if err != nil {
		return nil, err
	}
	names = names[:0]
	for _, a := range activity {
		names = append(names, a.Name)
	}
	if dup := duplicates(names); len(dup) > 0 {
		r.fail("unique station names", catalog.ActivityFile, strings.Join(dup, ", "))
	}

	for _, f := range r.Failures {
		logger.Warn("check failed", zap.String("check", f.Check), zap.String("subject", f.Subject), zap.String("detail", f.Detail))
	}
	return r, nil
}

func first(t *series.Table) string {
	if t.Len() == 0 {
		return ""
	}
	return t.Time(0)
}

func duplicates(names []string) []string {
	seen := make(map[string]int, len(names))
	var out []string
	for _, n := range names {
		seen[n]++
		if seen[n] == 2 {
			out = append(out, n)
		}
	}
	return out
}
