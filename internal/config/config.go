// Package config loads the application settings.
//
// PRECEDENCE (lowest to highest):
//  1. Built-in defaults
//  2. YAML file (--config flag or CONFIG_FILE)
//  3. Environment variables, including a .env file in the working directory
//
// A missing .env file is fine (production sets real env vars); a missing YAML
// file that was explicitly asked for is an error.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sakif/movieshelf/internal/auth"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverAppwrite = "appwrite"
)

// Config is the full application configuration.
type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Store    StoreConfig    `yaml:"store"`
	Appwrite AppwriteConfig `yaml:"appwrite"`
	TMDB     TMDBConfig     `yaml:"tmdb"`
	Auth     AuthConfig     `yaml:"auth"`

	// CollectionKeyLength is how much of a collection id is stored on its
	// memberships. 0 stores the full id.
	CollectionKeyLength int `yaml:"collection_key_length"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
}

// AppwriteConfig holds the Appwrite connection settings.
type AppwriteConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	ProjectID     string        `yaml:"project_id"`
	APIKey        string        `yaml:"api_key"`
	DatabaseID    string        `yaml:"database_id"`
	CollectionsID string        `yaml:"collections_id"`
	MembershipsID string        `yaml:"memberships_id"`
	Timeout       time.Duration `yaml:"timeout"`
}

// TMDBConfig holds the catalog settings. Without a token or key the server
// runs with no catalog and every view falls back to saved snapshots.
type TMDBConfig struct {
	BaseURL     string        `yaml:"base_url"`
	AccessToken string        `yaml:"access_token"`
	APIKey      string        `yaml:"api_key"`
	Language    string        `yaml:"language"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Enabled reports whether catalog credentials are configured.
func (t TMDBConfig) Enabled() bool {
	return t.AccessToken != "" || t.APIKey != ""
}

// AuthConfig holds the API authentication settings. An empty JWTSecret
// disables authentication.
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Port:      8080,
		LogLevel:  "info",
		LogFormat: "text",
		Store: StoreConfig{
			Driver:      DriverSQLite,
			DatabaseURL: "data/movieshelf.db",
		},
		Appwrite: AppwriteConfig{
			Endpoint:      "https://cloud.appwrite.io/v1",
			CollectionsID: "collections",
			MembershipsID: "memberships",
			Timeout:       10 * time.Second,
		},
		TMDB: TMDBConfig{
			BaseURL:  "https://api.themoviedb.org/3",
			Language: "en-US",
			Timeout:  10 * time.Second,
		},
		CollectionKeyLength: 10,
	}
}

// Load builds the configuration. path names an optional YAML file; when empty
// CONFIG_FILE is consulted.
func Load(path string) (*Config, error) {
	// Ignore the error: .env is optional.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	// Unknown keys are rejected so typos don't pass silently.
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return nil
}

// applyEnv overrides fields from environment variables. Every malformed value
// is reported, not just the first.
func (c *Config) applyEnv() error {
	var errs []error

	envInt("PORT", &c.Port, &errs)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("LOG_FORMAT", &c.LogFormat)

	envString("STORE_DRIVER", &c.Store.Driver)
	envString("DATABASE_URL", &c.Store.DatabaseURL)

	envString("APPWRITE_ENDPOINT", &c.Appwrite.Endpoint)
	envString("APPWRITE_PROJECT_ID", &c.Appwrite.ProjectID)
	envString("APPWRITE_API_KEY", &c.Appwrite.APIKey)
	envString("APPWRITE_DATABASE_ID", &c.Appwrite.DatabaseID)
	envString("APPWRITE_COLLECTIONS_ID", &c.Appwrite.CollectionsID)
	envString("APPWRITE_MEMBERSHIPS_ID", &c.Appwrite.MembershipsID)
	envDuration("APPWRITE_TIMEOUT", &c.Appwrite.Timeout, &errs)

	envString("TMDB_BASE_URL", &c.TMDB.BaseURL)
	envString("TMDB_ACCESS_TOKEN", &c.TMDB.AccessToken)
	envString("TMDB_API_KEY", &c.TMDB.APIKey)
	envString("TMDB_LANGUAGE", &c.TMDB.Language)
	envDuration("TMDB_TIMEOUT", &c.TMDB.Timeout, &errs)

	envInt("COLLECTION_KEY_LENGTH", &c.CollectionKeyLength, &errs)

	envString("JWT_SECRET", &c.Auth.JWTSecret)
	envString("ADMIN_PASSWORD_HASH", &c.Auth.AdminPasswordHash)

	return errors.Join(errs...)
}

// Validate checks the combined configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: port %d out of range", c.Port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.LogFormat))
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("config: DATABASE_URL is required for the sqlite driver"))
		}
	case DriverAppwrite:
		if c.Appwrite.Endpoint == "" || c.Appwrite.ProjectID == "" || c.Appwrite.DatabaseID == "" {
			errs = append(errs, errors.New("config: APPWRITE_ENDPOINT, APPWRITE_PROJECT_ID and APPWRITE_DATABASE_ID are required for the appwrite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store driver %q", c.Store.Driver))
	}

	if c.CollectionKeyLength < 0 {
		errs = append(errs, fmt.Errorf("config: collection key length must not be negative, got %d", c.CollectionKeyLength))
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("config: JWT_SECRET must be at least 16 characters"))
	}
	if c.Auth.AdminPasswordHash != "" && !auth.LooksLikeHash(c.Auth.AdminPasswordHash) {
		errs = append(errs, errors.New("config: ADMIN_PASSWORD_HASH must be a bcrypt hash (see `moviectl hash-password`)"))
	}

	return errors.Join(errs...)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func envDuration(key string, dst *time.Duration, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %q is not a duration", key, v))
		return
	}
	*dst = d
}
