// Package config derives runtime configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Pipeline PipelineConfig
	Auth     AuthConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the connection settings for the catalog store.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MigrationsDir  string
}

// EngineConfig tunes the consolidation engine.
type EngineConfig struct {
	FreshnessWindow     time.Duration
	SimilarityThreshold float64
	VenueRadiusMeters   float64
}

// PipelineConfig tunes the ingestion pipeline loop.
type PipelineConfig struct {
	PollInterval      time.Duration
	ConcurrentSources int
	CandidateWorkers  int
}

// AuthConfig holds JWT settings for the admin API.
type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultMaxConnections = 50
	defaultMigrationsDir  = "migrations"

	defaultFreshnessWindowHours = 168
	defaultSimilarityThreshold  = 0.85
	defaultVenueRadiusMeters    = 50.0

	defaultPollInterval      = 15 * time.Minute
	defaultConcurrentSources = 4
	defaultCandidateWorkers  = 8

	defaultTokenExpiry = 24 * time.Hour

	defaultLogFormat = "json"
)

// Load reads configuration from environment variables, applying defaults
// when values are not provided.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			MaxConnections: defaultMaxConnections,
			MigrationsDir:  getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
		},
		Engine: EngineConfig{
			FreshnessWindow:     defaultFreshnessWindowHours * time.Hour,
			SimilarityThreshold: defaultSimilarityThreshold,
			VenueRadiusMeters:   defaultVenueRadiusMeters,
		},
		Pipeline: PipelineConfig{
			PollInterval:      defaultPollInterval,
			ConcurrentSources: defaultConcurrentSources,
			CandidateWorkers:  defaultCandidateWorkers,
		},
		Auth: AuthConfig{
			JWTSecret:   os.Getenv("JWT_SECRET"),
			TokenExpiry: defaultTokenExpiry,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("DATABASE_MAX_CONNECTIONS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATABASE_MAX_CONNECTIONS: %w", err)
		}
		cfg.Database.MaxConnections = n
	}

	if v := os.Getenv("FRESHNESS_WINDOW_HOURS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FRESHNESS_WINDOW_HOURS: %w", err)
		}
		cfg.Engine.FreshnessWindow = time.Duration(n) * time.Hour
	}

	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return Config{}, fmt.Errorf("invalid SIMILARITY_THRESHOLD: must be in (0, 1]")
		}
		cfg.Engine.SimilarityThreshold = f
	}

	if v := os.Getenv("VENUE_RADIUS_METERS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return Config{}, fmt.Errorf("invalid VENUE_RADIUS_METERS: must be a positive number")
		}
		cfg.Engine.VenueRadiusMeters = f
	}

	if v := os.Getenv("PIPELINE_POLL_INTERVAL_MINUTES"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PIPELINE_POLL_INTERVAL_MINUTES: %w", err)
		}
		cfg.Pipeline.PollInterval = time.Duration(n) * time.Minute
	}

	if v := os.Getenv("PIPELINE_CONCURRENT_SOURCES"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PIPELINE_CONCURRENT_SOURCES: %w", err)
		}
		cfg.Pipeline.ConcurrentSources = n
	}

	if v := os.Getenv("PIPELINE_CANDIDATE_WORKERS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PIPELINE_CANDIDATE_WORKERS: %w", err)
		}
		cfg.Pipeline.CandidateWorkers = n
	}

	if v := os.Getenv("JWT_TOKEN_EXPIRY_HOURS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid JWT_TOKEN_EXPIRY_HOURS: %w", err)
		}
		cfg.Auth.TokenExpiry = time.Duration(n) * time.Hour
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
