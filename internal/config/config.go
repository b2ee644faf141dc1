package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultDBPath          = "data/game_cache.db"
	defaultDriver          = "sqlite"
	defaultCacheTTLSeconds = 604800 // 7 days
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultRAWGBaseURL     = "https://api.rawg.io/api"
	defaultCatalogTimeout  = 15 * time.Second
	defaultPort            = "8000"
)

// maxTTLSeconds is the longest TTL a time.Duration can hold.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Config holds application configuration.
// It is loaded once at startup and passed by value to each component.
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Catalog CatalogConfig `yaml:"catalog"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// CacheConfig configures the SQLite game cache.
type CacheConfig struct {
	DBPath     string `yaml:"db_path"`
	Driver     string `yaml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// CatalogConfig selects and configures the external game catalog.
type CatalogConfig struct {
	Provider         string        `yaml:"provider"` // "rawg" or "igdb"
	RAWGAPIKey       string        `yaml:"rawg_api_key"`
	RAWGBaseURL      string        `yaml:"rawg_base_url"`
	IGDBClientID     string        `yaml:"igdb_client_id"`
	IGDBClientSecret string        `yaml:"igdb_client_secret"`
	Timeout          time.Duration `yaml:"timeout"`
}

// GeminiConfig configures the suggestion model.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RateLimit caps POST /api/recommend per client IP per minute. 0 disables it.
	RateLimit int `yaml:"rate_limit"`
}

// LoggingConfig mirrors logging.Config so it can live in the YAML file.
type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			DBPath:     defaultDBPath,
			Driver:     defaultDriver,
			TTLSeconds: defaultCacheTTLSeconds,
		},
		Catalog: CatalogConfig{
			Provider:    "rawg",
			RAWGBaseURL: defaultRAWGBaseURL,
			Timeout:     defaultCatalogTimeout,
		},
		Gemini: GeminiConfig{
			Model:   defaultGeminiModel,
			BaseURL: defaultGeminiBaseURL,
		},
		Server: ServerConfig{
			Port:           defaultPort,
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// configPaths returns the list of paths to search for config file.
func configPaths() []string {
	paths := []string{
		".ziyou.yaml",
		".ziyou.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "ziyou", "config.yaml"),
			filepath.Join(home, ".config", "ziyou", "config.yml"),
			filepath.Join(home, ".ziyou.yaml"),
		)
	}

	return paths
}

// Load loads configuration from file or returns defaults.
// Priority: env vars > env ZIYOU_CONFIG file > search paths > defaults.
// A .env file in the working directory is loaded first; variables already
// set in the process environment are not overwritten by it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()

	if envPath := os.Getenv("ZIYOU_CONFIG"); envPath != "" {
		if err := cfg.loadFromFile(envPath); err != nil {
			return nil, err
		}
		if err := cfg.applyEnvOverrides(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadFromFile(path); err != nil {
				return nil, err
			}
			break
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from operator config
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("ZIYOU_DB"); v != "" {
		c.Cache.DBPath = v
	}
	if v := os.Getenv("ZIYOU_DB_DRIVER"); v != "" {
		c.Cache.Driver = v
	}
	if v := os.Getenv("ZIYOU_CACHE_TTL_SECONDS"); v != "" {
		ttl, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ZIYOU_CACHE_TTL_SECONDS %q: %w", v, err)
		}
		c.Cache.TTLSeconds = ttl
	}
	if v := os.Getenv("ZIYOU_CATALOG"); v != "" {
		c.Catalog.Provider = v
	}
	if v := os.Getenv("RAWG_API_KEY"); v != "" {
		c.Catalog.RAWGAPIKey = v
	}
	if v := os.Getenv("IGDB_CLIENT_ID"); v != "" {
		c.Catalog.IGDBClientID = v
	}
	if v := os.Getenv("IGDB_CLIENT_SECRET"); v != "" {
		c.Catalog.IGDBClientSecret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("ZIYOU_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ZIYOU_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ZIYOU_RATE_LIMIT %q: %w", v, err)
		}
		c.Server.RateLimit = n
	}
	if v := os.Getenv("ZIYOU_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ZIYOU_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate reports configuration that would make the service unusable.
func (c *Config) Validate() error {
	switch c.GetDriver() {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server rate_limit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache ttl_seconds must not be negative, got %d", c.Cache.TTLSeconds)
	}
	if int64(c.Cache.TTLSeconds) > maxTTLSeconds {
		return fmt.Errorf("cache ttl_seconds must be at most %d, got %d", maxTTLSeconds, c.Cache.TTLSeconds)
	}
	switch c.GetCatalogProvider() {
	case "rawg":
	case "igdb":
		if c.Catalog.IGDBClientID == "" || c.Catalog.IGDBClientSecret == "" {
			return errors.New("igdb catalog requires igdb_client_id and igdb_client_secret")
		}
	default:
		return fmt.Errorf("unsupported catalog provider %q", c.Catalog.Provider)
	}
	return nil
}

// GetDBPath returns the database path, applying defaults.
func (c *Config) GetDBPath() string {
	if c.Cache.DBPath != "" {
		return c.Cache.DBPath
	}
	return defaultDBPath
}

// GetDriver returns the database/sql driver name for the cache.
func (c *Config) GetDriver() string {
	if c.Cache.Driver != "" {
		return c.Cache.Driver
	}
	return defaultDriver
}

// GetCacheTTL returns the cache entry lifetime.
func (c *Config) GetCacheTTL() time.Duration {
	if c.Cache.TTLSeconds > 0 {
		return time.Duration(c.Cache.TTLSeconds) * time.Second
	}
	return defaultCacheTTLSeconds * time.Second
}

// GetCatalogProvider returns the configured catalog provider name.
func (c *Config) GetCatalogProvider() string {
	if c.Catalog.Provider != "" {
		return c.Catalog.Provider
	}
	return "rawg"
}

// GetCatalogTimeout bounds one full catalog resolution.
func (c *Config) GetCatalogTimeout() time.Duration {
	if c.Catalog.Timeout > 0 {
		return c.Catalog.Timeout
	}
	return defaultCatalogTimeout
}

// GetRAWGBaseURL returns the RAWG API root.
func (c *Config) GetRAWGBaseURL() string {
	if c.Catalog.RAWGBaseURL != "" {
		return c.Catalog.RAWGBaseURL
	}
	return defaultRAWGBaseURL
}

// GetGeminiModel returns the Gemini model name.
func (c *Config) GetGeminiModel() string {
	if c.Gemini.Model != "" {
		return c.Gemini.Model
	}
	return defaultGeminiModel
}

// GetGeminiBaseURL returns the Gemini REST API root.
func (c *Config) GetGeminiBaseURL() string {
	if c.Gemini.BaseURL != "" {
		return c.Gemini.BaseURL
	}
	return defaultGeminiBaseURL
}

// GetPort returns the HTTP listen port.
func (c *Config) GetPort() string {
	if c.Server.Port != "" {
		return c.Server.Port
	}
	return defaultPort
}

// GetAllowedOrigins returns the CORS origin list.
func (c *Config) GetAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) > 0 {
		return c.Server.AllowedOrigins
	}
	return []string{"*"}
}
