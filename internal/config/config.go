// Package config reads the process environment, after an optional .env file.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultLocalDBPath   = "propertyhub_offline.db"
	DefaultPrefsPath     = "propertyhub_prefs.yaml"
	DefaultHTTPAddr      = ":8080"
	DefaultRemoteTimeout = 15 * time.Second
	DefaultProbeInterval = 10 * time.Second
	DefaultHistoryLimit  = 50
	DefaultLogLevel      = "info"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL not set in environment or .env file")

// Config holds every setting of the application
type Config struct {
	DatabaseURL         string
	LocalDBPath         string
	PrefsPath           string
	Identity            string
	RemoteTimeout       time.Duration
	PaymentHistoryLimit int
	ProbeURL            string
	ProbeInterval       time.Duration
	HTTPAddr            string
	LogLevel            string
}

// LoadDotEnv loads .env into the environment; a missing file is not an error
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load builds a Config from the environment. Invalid numbers fall back to
// their defaults.
func Load() Config {
	return Config{
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LocalDBPath:         getString("LOCAL_DB_PATH", DefaultLocalDBPath),
		PrefsPath:           getString("PREFS_PATH", DefaultPrefsPath),
		Identity:            strings.TrimSpace(os.Getenv("PROPERTYHUB_IDENTITY")),
		RemoteTimeout:       getSeconds("REMOTE_TIMEOUT_SECONDS", DefaultRemoteTimeout),
		PaymentHistoryLimit: getInt("PAYMENT_HISTORY_LIMIT", DefaultHistoryLimit),
		ProbeURL:            strings.TrimSpace(os.Getenv("CONNECTIVITY_PROBE_URL")),
		ProbeInterval:       getSeconds("CONNECTIVITY_INTERVAL_SECONDS", DefaultProbeInterval),
		HTTPAddr:            getString("HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:            getString("LOG_LEVEL", DefaultLogLevel),
	}
}

// Validate reports settings required to reach the remote store
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getSeconds(key string, fallback time.Duration) time.Duration {
	v := getInt(key, 0)
	if v == 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}
