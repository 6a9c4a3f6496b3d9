package collect

import (
	"fmt"
	"math"
	"strings"

	"github.com/i474232898/ims-weather/internal/series"
)

// Kind is a collected series.
type Kind string

const (
	Rain    Kind = "rain"
	TempMin Kind = "temp_min"
	TempMax Kind = "temp_max"
)

// Kinds lists every collectable series.
var Kinds = []Kind{Rain, TempMin, TempMax}

// ParseKind accepts a kind name or its monitor name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "rain":
		return Rain, nil
	case "temp_min", "tdmin", "min":
		return TempMin, nil
	case "temp_max", "tdmax", "max":
		return TempMax, nil
	}
	return "", fmt.Errorf("unknown series kind %q", s)
}

// oneMinute marks the stations reporting one-minute rain.
const oneMinute = "_1m"

// Monitor returns the monitor collected for a station.
func (k Kind) Monitor(station string) string {
	switch k {
	case TempMin:
		return "TDmin"
	case TempMax:
		return "TDmax"
	}
	if strings.Contains(station, oneMinute) {
		return "Rain_1_min"
	}
	return "Rain"
}

// Monitors lists every monitor name that can serve the kind.
func (k Kind) Monitors() []string {
	if k == Rain {
		return []string{"Rain", "Rain_1_min"}
	}
	return []string{k.Monitor("")}
}

// FileName returns the yearly file name.
func (k Kind) FileName(year int) string {
	return fmt.Sprintf("%s_%d.csv", k, year)
}

// accumulate folds a reading into an hourly cell.
func (k Kind) accumulate(cell, v float64) float64 {
	if math.IsNaN(cell) {
		if k == Rain {
			return series.RoundTo(v, 1)
		}
		return v
	}
	switch k {
	case TempMin:
		return math.Min(cell, v)
	case TempMax:
		return math.Max(cell, v)
	}
	return cell + series.RoundTo(v, 1)
}

// keep reports whether a reading value contributes to the series.
func (k Kind) keep(v float64) bool {
	if k == Rain {
		return v > 0
	}
	return true
}
