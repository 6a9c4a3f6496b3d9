package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type AppConfig struct {
	// APIToken authenticates against the IMS Envista API. Only the jobs that
	// talk to the API need it.
	APIToken    string
	BaseURL     string `validate:"required,url"`
	ForecastURL string `validate:"required,url"`

	DataDir string `validate:"required"`
	DocsDir string `validate:"required"`

	HTTPTimeout time.Duration `validate:"gt=0"`
	MaxRetries  int           `validate:"gte=1"`
	RetryDelay  time.Duration `validate:"gt=0"`

	// ActivityConcurrency bounds the station probes run in parallel during an
	// activity refresh.
	ActivityConcurrency int `validate:"gte=1,lte=32"`

	// ActiveSince: stations whose last-known reading is later than this get
	// their latest reading refreshed.
	ActiveSince string `validate:"required,datetime=2006-01-02T15:04:05"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=console json"`

	Port string `validate:"required,numeric"`

	Schedules Schedules
}

// Schedules holds standard five-field cron expressions for the scheduled jobs.
type Schedules struct {
	Rain      string `validate:"required"`
	Temp      string `validate:"required"`
	Forecast  string `validate:"required"`
	Aggregate string `validate:"required"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &AppConfig{
		BaseURL:     getenvDefault("IMS_BASE_URL", "https://api.ims.gov.il/v1/envista"),
		ForecastURL: getenvDefault("IMS_FORECAST_URL", "https://ims.gov.il/sites/default/files/ims_data/xml_files/isr_cities.xml"),
		DataDir:     getenvDefault("DATA_DIR", "data"),
		DocsDir:     getenvDefault("DOCS_DIR", "docs"),
		MaxRetries:  getenvInt("IMS_MAX_RETRIES", 10),

		ActivityConcurrency: getenvInt("ACTIVITY_CONCURRENCY", 4),
		ActiveSince:         getenvDefault("ACTIVE_SINCE", "2025-01-01T00:00:00"),

		LogLevel:  strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getenvDefault("LOG_FORMAT", "console")),
		Port:      getenvDefault("PORT", "8080"),

		Schedules: Schedules{
			Rain:      getenvDefault("SCHEDULE_RAIN", "5 * * * *"),
			Temp:      getenvDefault("SCHEDULE_TEMP", "10 * * * *"),
			Forecast:  getenvDefault("SCHEDULE_FORECAST", "30 */6 * * *"),
			Aggregate: getenvDefault("SCHEDULE_AGGREGATE", "30 2 * * *"),
		},
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = getenvDuration("IMS_RETRY_DELAY", 100*time.Millisecond); err != nil {
		return nil, err
	}

	token, err := loadToken()
	if err != nil {
		return nil, err
	}
	cfg.APIToken = token

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and that every schedule parses as a
// standard cron expression.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, expr := range map[string]string{
		"SCHEDULE_RAIN":      c.Schedules.Rain,
		"SCHEDULE_TEMP":      c.Schedules.Temp,
		"SCHEDULE_FORECAST":  c.Schedules.Forecast,
		"SCHEDULE_AGGREGATE": c.Schedules.Aggregate,
	} {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, expr, err)
		}
	}
	return nil
}

// loadToken prefers IMS_API_TOKEN and falls back to the token file. A missing
// file yields an empty token.
func loadToken() (string, error) {
	if tok := strings.TrimSpace(os.Getenv("IMS_API_TOKEN")); tok != "" {
		return tok, nil
	}
	path := getenvDefault("IMS_TOKEN_FILE", "token.txt")
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.ReplaceAll(strings.TrimSpace(string(b)), "\n", ""), nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
