// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/erazemk/najdeno/internal/jobs"
)

// Backends.
const (
	BackendSQLite   = "sqlite"
	BackendFirebase = "firebase"
)

// Media stores.
const (
	MediaSQLite = "sqlite"
	MediaMinIO  = "minio"
)

// Config is the server configuration.
type Config struct {
	DBPath      string
	Addr        string
	AdminEmail  string
	AdminName   string
	LogPath     string
	Backend     string
	PublicURL   string
	RedisURL    string
	MailWebhook string

	// LoginRate is the sustained number of password attempts allowed per
	// email and minute.
	LoginRate     int
	PurgeSchedule string

	Firebase FirebaseConfig
	Media    MediaConfig
}

// FirebaseConfig selects the hosted project.
type FirebaseConfig struct {
	CredentialsPath string
	DatabaseURL     string
	APIKey          string
}

// MediaConfig selects where photos are kept.
type MediaConfig struct {
	Store     string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads the configuration. Values from files are only used for keys the
// environment does not already set.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	return &Config{
		DBPath:        getEnv("NAJDENO_DB", "najdeno.sqlite3"),
		Addr:          getEnv("NAJDENO_ADDR", ":8080"),
		AdminEmail:    getEnv("NAJDENO_ADMIN_EMAIL", "admin@localhost.localdomain"),
		AdminName:     getEnv("NAJDENO_ADMIN_NAME", "Administrator"),
		LogPath:       getEnv("NAJDENO_LOG", ""),
		Backend:       strings.ToLower(getEnv("NAJDENO_BACKEND", BackendSQLite)),
		PublicURL:     strings.TrimRight(getEnv("NAJDENO_PUBLIC_URL", "http://localhost:8080"), "/"),
		RedisURL:      getEnv("REDIS_URL", ""),
		MailWebhook:   getEnv("MAIL_WEBHOOK_URL", ""),
		LoginRate:     getEnvAsInt("NAJDENO_LOGIN_RATE", 10),
		PurgeSchedule: getEnv("NAJDENO_PURGE_SCHEDULE", jobs.DefaultPurgeSchedule),
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			DatabaseURL:     getEnv("FIREBASE_DATABASE_URL", ""),
			APIKey:          getEnv("FIREBASE_API_KEY", ""),
		},
		Media: MediaConfig{
			Store:     strings.ToLower(getEnv("NAJDENO_MEDIA", MediaSQLite)),
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "najdeno"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
	}, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("NAJDENO_DB is required")
	}
	if c.Addr == "" {
		return errors.New("NAJDENO_ADDR is required")
	}
	if !strings.Contains(c.AdminEmail, "@") {
		return fmt.Errorf("NAJDENO_ADMIN_EMAIL %q is not an email address", c.AdminEmail)
	}
	if c.LoginRate <= 0 {
		return errors.New("NAJDENO_LOGIN_RATE must be positive")
	}

	switch c.Backend {
	case BackendSQLite:
	case BackendFirebase:
		if c.Firebase.DatabaseURL == "" {
			return errors.New("FIREBASE_DATABASE_URL is required for the firebase backend")
		}
		if c.Firebase.APIKey == "" {
			return errors.New("FIREBASE_API_KEY is required for the firebase backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendFirebase)
	}

	switch c.Media.Store {
	case MediaSQLite:
	case MediaMinIO:
		if c.Media.Endpoint == "" || c.Media.AccessKey == "" || c.Media.SecretKey == "" {
			return errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for minio media")
		}
	default:
		return fmt.Errorf("unknown media store %q (want %s or %s)", c.Media.Store, MediaSQLite, MediaMinIO)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("invalid integer, using default", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		slog.Warn("invalid boolean, using default", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}
