// Package config reads runtime settings for the viaticos daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by VIATICOS_STORE_BACKEND.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultSheetID is the spreadsheet the service was originally built against.
const DefaultSheetID = "14hfwRIbXiqDuB7litwEYw9zgMurX9aXW5J1zkUx7ZKA"

// DefaultSheetsBaseURL is the Google Sheets v4 values endpoint.
const DefaultSheetsBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

// Config holds runtime configuration sourced from env vars.
type Config struct {
	HTTPPort   string
	DataDir    string
	Backend    string
	SQLitePath string
	MasterKey  string

	SheetsAPIKey    string
	SheetID         string
	SheetsBaseURL   string
	WebhookURL      string
	SheetsRPS       float64
	SheetsTimeout   time.Duration
	SyncOnStart     bool
	NotificationTTL time.Duration

	CORSOrigins  []string
	APIRateLimit float64
	APIBurst     int

	LogLevel  string
	LogFormat string
}

// LoadDotEnv loads the given .env files (or ./.env) into the process
// environment. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		v, ok := lookup(key)
		if !ok {
			return def
		}
		return fallback(v, def)
	}

	cfg := Config{
		HTTPPort:      get("VIATICOS_HTTP_PORT", "7002"),
		DataDir:       get("VIATICOS_DATA_DIR", "./data"),
		Backend:       strings.ToLower(get("VIATICOS_STORE_BACKEND", BackendJSON)),
		MasterKey:     get("VIATICOS_MASTER_KEY", ""),
		SheetsAPIKey:  get("GOOGLE_SHEETS_API_KEY", ""),
		SheetID:       get("GOOGLE_SHEET_ID", DefaultSheetID),
		SheetsBaseURL: strings.TrimRight(get("GOOGLE_SHEETS_BASE_URL", DefaultSheetsBaseURL), "/"),
		WebhookURL:    get("SHEETS_WEBHOOK_URL", ""),
		CORSOrigins:   parseCSV(get("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:      strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(get("LOG_FORMAT", "text")),
	}
	cfg.SQLitePath = get("VIATICOS_SQLITE_PATH", cfg.DataDir+"/viaticos.db")

	var errs []error
	var err error

	if cfg.SheetsRPS, err = parseFloat(get("SHEETS_REQUESTS_PER_SECOND", "1")); err != nil || cfg.SheetsRPS <= 0 {
		errs = append(errs, fmt.Errorf("SHEETS_REQUESTS_PER_SECOND must be a positive number"))
	}
	if cfg.SheetsTimeout, err = time.ParseDuration(get("SHEETS_TIMEOUT", "15s")); err != nil || cfg.SheetsTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHEETS_TIMEOUT must be a positive duration"))
	}
	if cfg.NotificationTTL, err = time.ParseDuration(get("NOTIFICATION_TTL", "5s")); err != nil || cfg.NotificationTTL < 0 {
		errs = append(errs, fmt.Errorf("NOTIFICATION_TTL must be a non-negative duration"))
	}
	if cfg.SyncOnStart, err = strconv.ParseBool(get("SYNC_ON_START", "true")); err != nil {
		errs = append(errs, fmt.Errorf("SYNC_ON_START must be a boolean"))
	}
	if cfg.APIRateLimit, err = parseFloat(get("API_RATE_LIMIT_RPS", "20")); err != nil || cfg.APIRateLimit <= 0 {
		errs = append(errs, fmt.Errorf("API_RATE_LIMIT_RPS must be a positive number"))
	}
	if cfg.APIBurst, err = strconv.Atoi(get("API_RATE_LIMIT_BURST", "40")); err != nil || cfg.APIBurst <= 0 {
		errs = append(errs, fmt.Errorf("API_RATE_LIMIT_BURST must be a positive integer"))
	}

	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		errs = append(errs, fmt.Errorf("VIATICOS_HTTP_PORT must be numeric, got %q", cfg.HTTPPort))
	}
	switch cfg.Backend {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("VIATICOS_STORE_BACKEND must be %q or %q, got %q", BackendJSON, BackendSQLite, cfg.Backend))
	}
	if cfg.Backend == BackendSQLite && cfg.MasterKey != "" {
		errs = append(errs, errors.New("VIATICOS_MASTER_KEY only applies to the json backend; unset it or use VIATICOS_STORE_BACKEND=json"))
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.HTTPPort)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
