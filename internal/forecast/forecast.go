// Package forecast collects the IMS city forecasts and measures how well they
// predicted the daily temperature extremes.
package forecast

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/ims"
)

// Files under the data directory.
const (
	PredictionsFile = "predictions.csv"
	WeatherCodeFile = "weather_code.csv"
	ComparisonFile  = "daily_comparison.csv"
)

// DefaultURL is the city forecast feed.
const DefaultURL = "https://ims.gov.il/sites/default/files/ims_data/xml_files/isr_cities.xml"

// The feed rejects requests without a browser user agent.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Element names read from each forecast day.
const (
	elementMin  = "Minimum temperature"
	elementMax  = "Maximum temperature"
	elementCode = "Weather code"
)

// ErrNoIssue is returned when the feed lacks an issue time.
var ErrNoIssue = errors.New("forecast: missing IssueDateTime")

// Prediction is one row of predictions.csv.
type Prediction struct {
	IssueDateTime     string `csv:"IssueDateTime"`
	Date              string `csv:"Date"`
	LocationNameHeb   string `csv:"LocationNameHeb"`
	LocationNameEng   string `csv:"LocationNameEng"`
	MinTemp           string `csv:"Minimum temperature"`
	MaxTemp           string `csv:"Maximum temperature"`
	Code              string `csv:"code"`
	HebrewWeatherCode string `csv:"HebrewWeatherCode"`
}

// WeatherCode maps a forecast weather code to its descriptions.
type WeatherCode struct {
	Code    string `csv:"Code"`
	Hebrew  string `csv:"מזג האוויר"`
	English string `csv:"Weather"`
}

type feed struct {
	IssueDateTime string     `xml:"Identification>IssueDateTime"`
	Locations     []location `xml:"Location"`
}

type location struct {
	NameEng string     `xml:"LocationMetaData>LocationNameEng"`
	NameHeb string     `xml:"LocationMetaData>LocationNameHeb"`
	Days    []timeUnit `xml:"LocationData>TimeUnitData"`
}

type timeUnit struct {
	Date     string    `xml:"Date"`
	Elements []element `xml:"Element"`
}

type element struct {
	Name  string `xml:"ElementName"`
	Value string `xml:"ElementValue"`
}

// Options configures a Forecaster.
type Options struct {
	Dir        string
	URL        string
	HTTPClient *http.Client
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Forecaster reads the feed and the forecast files of a data directory.
type Forecaster struct {
	dir     string
	url     string
	client  *http.Client
	backoff ims.BackoffConfig
	logger  *zap.Logger
}

// New creates a Forecaster.
func New(opts Options) *Forecaster {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	backoff := ims.BackoffConfig{
		MaxRetries:      opts.MaxRetries,
		InitialInterval: opts.RetryDelay,
		MaxInterval:     5 * time.Second,
	}
	return &Forecaster{
		dir:     opts.Dir,
		url:     opts.URL,
		client:  opts.HTTPClient,
		backoff: backoff,
		logger:  opts.Logger.Named("forecast"),
	}
}

// CollectResult describes one collection run.
type CollectResult struct {
	IssueDateTime string
	Rows          int
	Created       bool
	// Existing is set when the issue was already stored and nothing was written.
	Existing bool
}

// Collect fetches the current forecast and appends it to predictions.csv
// unless its issue time is already there.
func (f *Forecaster) Collect(ctx context.Context) (CollectResult, error) {
	var res CollectResult
	codes, err := f.weatherCodes()
	if err != nil {
		return res, err
	}
	fd, err := f.fetch(ctx)
	if err != nil {
		return res, err
	}
	res.IssueDateTime = strings.TrimSpace(fd.IssueDateTime)
	if res.IssueDateTime == "" {
		return res, ErrNoIssue
	}

	path := filepath.Join(f.dir, PredictionsFile)
	existing, err := LoadPredictions(f.dir)
	if err != nil {
		return res, err
	}
	for _, p := range existing {
		if p.IssueDateTime == res.IssueDateTime {
			f.logger.Info("forecast already stored", zap.String("issue", res.IssueDateTime))
			res.Existing = true
			return res, nil
		}
	}

	rows := predictions(fd, res.IssueDateTime, codes)
	if len(rows) == 0 {
		f.logger.Warn("no forecast rows", zap.String("issue", res.IssueDateTime))
		return res, nil
	}
	res.Rows = len(rows)
	res.Created = len(existing) == 0
	if res.Created {
		err = writePredictions(path, rows)
	} else {
		err = appendPredictions(path, rows)
	}
	if err != nil {
		return res, err
	}
	f.logger.Info("forecast stored",
		zap.String("issue", res.IssueDateTime),
		zap.Int("rows", res.Rows),
		zap.Bool("created", res.Created))
	return res, nil
}

func (f *Forecaster) fetch(ctx context.Context) (*feed, error) {
	header := http.Header{}
	header.Set("User-Agent", userAgent)
	body, err := ims.Fetch(ctx, f.client, f.url, header, f.backoff)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	return decodeFeed(bytes.NewReader(body))
}

// decodeFeed reads the feed as ISO-8859-8 whatever its declaration says.
func decodeFeed(r io.Reader) (*feed, error) {
	dec := xml.NewDecoder(charmap.ISO8859_8.NewDecoder().Reader(r))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	var fd feed
	if err := dec.Decode(&fd); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	return &fd, nil
}

func predictions(fd *feed, issue string, codes map[string]string) []Prediction {
	var out []Prediction
	for _, loc := range fd.Locations {
		for _, day := range loc.Days {
			p := Prediction{
				IssueDateTime:   issue,
				Date:            strings.TrimSpace(day.Date),
				LocationNameHeb: strings.TrimSpace(loc.NameHeb),
				LocationNameEng: strings.TrimSpace(loc.NameEng),
			}
			for _, e := range day.Elements {
				v := strings.TrimSpace(e.Value)
				switch strings.TrimSpace(e.Name) {
				case elementMin:
					p.MinTemp = v
				case elementMax:
					p.MaxTemp = v
				case elementCode:
					p.Code = v
					p.HebrewWeatherCode = codes[v]
				}
			}
			out = append(out, p)
		}
	}
	return out
}

// weatherCodes loads code -> Hebrew description. A missing file only costs the
// descriptions.
func (f *Forecaster) weatherCodes() (map[string]string, error) {
	var rows []WeatherCode
	found, err := common.ReadCSV(filepath.Join(f.dir, WeatherCodeFile), &rows)
	if err != nil {
		return nil, err
	}
	if !found {
		f.logger.Warn("weather code file not found, descriptions will be empty")
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[strings.TrimSpace(r.Code)] = r.Hebrew
	}
	return out, nil
}

// LoadPredictions reads predictions.csv; a missing file yields no rows.
func LoadPredictions(dir string) ([]Prediction, error) {
	var rows []Prediction
	if _, err := common.ReadCSV(filepath.Join(dir, PredictionsFile), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// writePredictions creates the file with a BOM and a header.
func writePredictions(path string, rows []Prediction) error {
	var buf bytes.Buffer
	buf.WriteString(common.BOM())
	if err := gocsv.Marshal(&rows, &buf); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return common.WriteFileAtomic(path, buf.Bytes())
}

func appendPredictions(path string, rows []Prediction) error {
	var buf bytes.Buffer
	if err := gocsv.MarshalWithoutHeaders(&rows, &buf); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	//nolint:gosec // G304: path built from the configured data directory.
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fh.Write(buf.Bytes()); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}
