package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the bus pipeline binaries. Each binary
// validates only the sections it uses.
type Config struct {
	Database DatabaseConfig
	Feed     FeedConfig
	Archive  ArchiveConfig
	Schedule ScheduleConfig
	Log      LogConfig
	HTTP     HTTPConfig
}

// DatabaseConfig selects and addresses the store.
type DatabaseConfig struct {
	Driver     string `validate:"oneof=postgres sqlite"`
	URL        string `validate:"required_if=Driver postgres"`
	SQLitePath string `validate:"required_if=Driver sqlite"`
}

// FeedConfig addresses the GTFS-RT vehicle positions endpoint.
type FeedConfig struct {
	VehiclePositionsURL string        `validate:"required,url"`
	APIKey              string        `validate:"required"`
	Timeout             time.Duration `validate:"gt=0"`
}

// ArchiveConfig selects where daily summaries are written.
type ArchiveConfig struct {
	Backend string `validate:"oneof=s3 file"`
	Bucket  string `validate:"required_if=Backend s3"`
	Prefix  string
	Dir     string `validate:"required_if=Backend file"`
	Region  string
}

// ScheduleConfig drives the poller daemon and the daily job.
type ScheduleConfig struct {
	PollInterval  time.Duration `validate:"gt=0"`
	RetentionDays int           `validate:"min=1"`
	// DailyJobAt is HH:MM local time, empty to disable the in-process daily job.
	DailyJobAt string `validate:"omitempty,datetime=15:04"`
	Location   *time.Location
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level slog.Level
	Env   string `validate:"oneof=dev prod"`
}

// HTTPConfig holds listen addresses for the API and metrics servers.
type HTTPConfig struct {
	Port               string `validate:"required,numeric"`
	MetricsAddr        string
	CORSAllowedOrigins []string
}

// Load reads .env (if present) and environment variables with sensible
// defaults. It fails only on values that cannot be parsed.
func Load() (*Config, error) {
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TZ", "America/New_York"))
	if err != nil {
		return nil, fmt.Errorf("invalid TZ: %w", err)
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	pollInterval, err := getEnvDuration("POLL_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}
	feedTimeout, err := getEnvDuration("FEED_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			URL:        databaseURL(),
			SQLitePath: getEnv("SQLITE_DATABASE", "data/mta-buses.db"),
		},
		Feed: FeedConfig{
			VehiclePositionsURL: getEnv("GTFS_VEHICLE_POSITIONS_URL", "https://gtfsrt.prod.obanyc.com/vehiclePositions"),
			APIKey:              os.Getenv("GTFS_API_KEY"),
			Timeout:             feedTimeout,
		},
		Archive: ArchiveConfig{
			Backend: getEnv("ARCHIVE_BACKEND", "s3"),
			Bucket:  os.Getenv("ARCHIVE_BUCKET"),
			Prefix:  os.Getenv("ARCHIVE_PREFIX"),
			Dir:     getEnv("ARCHIVE_DIR", "data/archive"),
			Region:  getEnv("AWS_REGION", "us-east-1"),
		},
		Schedule: ScheduleConfig{
			PollInterval:  pollInterval,
			RetentionDays: getEnvInt("RETENTION_DAYS", 14),
			DailyJobAt:    os.Getenv("DAILY_JOB_AT"),
			Location:      loc,
		},
		Log: LogConfig{
			Level: level,
			Env:   getEnv("APP_ENV", "prod"),
		},
		HTTP: HTTPConfig{
			Port:               getEnv("PORT", "8081"),
			MetricsAddr:        os.Getenv("METRICS_ADDR"),
			CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		},
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks the given config sections, e.g.
// cfg.Validate(cfg.Database, cfg.Feed).
func (c *Config) Validate(sections ...any) error {
	for _, s := range sections {
		if err := validate.Struct(s); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// databaseURL prefers DATABASE_URL, else composes a DSN from PG* variables.
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     getEnv("PGHOST", "127.0.0.1") + ":" + getEnv("PGPORT", "5432"),
		Path:     "/" + db,
		RawQuery: "sslmode=" + getEnv("PGSSLMODE", "disable"),
	}
	user := getEnv("PGUSER", "postgres")
	if pass := os.Getenv("PGPASSWORD"); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("60").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return d, nil
}
