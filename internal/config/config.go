// Package config loads server settings from the environment. A .env file
// in the working directory, when present, is loaded first; variables
// already set in the environment win.
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

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every server setting.
type Config struct {
	Port int

	DBDriver    string
	DBPath      string
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	// RedisAddr selects Redis pub/sub for the realtime relay. Empty means
	// an in-process hub.
	RedisAddr string

	// AllowedOrigins are the WebSocket origin patterns accepted by the relay.
	AllowedOrigins []string

	FXBaseURL string
	FXTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	duration := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(get(key, fallback))
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, get(key, fallback)))
		}
		return d
	}

	port, err := strconv.Atoi(get("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: invalid port %q", get("PORT", "8080")))
	}

	cfg := Config{
		Port:        port,
		DBDriver:    strings.ToLower(get("DB_DRIVER", DriverSQLite)),
		DBPath:      get("DB_PATH", "./data/tripshare.db"),
		DatabaseURL: get("DATABASE_URL", ""),
		JWTSecret:   get("JWT_SECRET", ""),
		TokenTTL:    duration("TOKEN_TTL", "24h"),
		RedisAddr:   get("REDIS_ADDR", ""),
		FXBaseURL:   get("FX_BASE_URL", "https://api.frankfurter.app"),
		FXTimeout:   duration("FX_TIMEOUT", "5s"),
		LogLevel:    get("LOG_LEVEL", "info"),
		LogFormat:   get("LOG_FORMAT", "text"),
	}
	for _, origin := range strings.Split(get("ALLOWED_ORIGINS", ""), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DB_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unknown driver %q", cfg.DBDriver))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
