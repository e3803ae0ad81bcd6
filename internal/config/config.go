// Package config loads process configuration from the environment, with an
// optional .env file, under the IMONEY prefix.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. IMONEY_STORE_BACKEND.
const Prefix = "IMONEY"

type LogConfig struct {
	Path   string
	Level  string `default:"info" validate:"oneof=debug info warn error"`
	Format string `default:"text" validate:"oneof=text json"`
}

type DaemonConfig struct {
	Socket string
	// Binary is started by the MCP server when no daemon answers on Socket.
	Binary string `default:"imoney-rates"`
}

type StoreConfig struct {
	Backend  string `default:"bolt" validate:"oneof=bolt redis memory"`
	Path     string
	Bucket   string `default:"imoney"`
	RedisURL string `split_words:"true" validate:"required_if=Backend redis"`
	Prefix   string `default:"imoney:"`
}

// ProviderConfig is only needed by the rates daemon; see CheckProvider.
// Rates are always requested against currency.Base.
type ProviderConfig struct {
	APIKey  string        `split_words:"true"`
	URL     string        `default:"https://v6.exchangerate-api.com/v6" validate:"url"`
	Timeout time.Duration `default:"20s" validate:"gt=0"`
}

type CacheConfig struct {
	TTL      time.Duration `default:"30m" validate:"gt=0"`
	Coalesce bool
}

type Config struct {
	Log      LogConfig
	Daemon   DaemonConfig
	Store    StoreConfig
	Provider ProviderConfig
	Cache    CacheConfig
}

// Load reads the first .env file found among envFiles (or ./.env), then
// the environment, fills path defaults and validates the result.
func Load(envFiles ...string) (*Config, error) {
	logger := slog.Default()
	loadDotenv(logger, envFiles)

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyPathDefaults()
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger.Info("config loaded",
		"store_backend", cfg.Store.Backend,
		"store_path", cfg.Store.Path,
		"socket", cfg.Daemon.Socket,
		"provider_url", cfg.Provider.URL,
		"provider_key", maskValue(cfg.Provider.APIKey),
		"cache_ttl", cfg.Cache.TTL,
		"coalesce", cfg.Cache.Coalesce,
	)
	return &cfg, nil
}

// CheckProvider reports a missing or malformed API key. The key becomes a
// path segment of every provider request, so an empty one would turn each
// refresh into a 404.
func (c *Config) CheckProvider() error {
	if err := validator.New().Var(c.Provider.APIKey, "required,alphanum"); err != nil {
		return fmt.Errorf("config: IMONEY_PROVIDER_API_KEY must be set to an alphanumeric key: %w", err)
	}
	return nil
}

func loadDotenv(logger *slog.Logger, paths []string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			logger.Debug("env file not loaded", "path", p, "error", err)
			continue
		}
		logger.Info("loaded env file", "path", p)
		return
	}
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using process environment")
	}
}

func (c *Config) applyPathDefaults() {
	if c.Daemon.Socket == "" {
		c.Daemon.Socket = filepath.Join(CacheDir(), "cache.sock")
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(CacheDir(), "imoney.bbolt")
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(CacheDir(), "imoney.log")
	}
}

// CacheDir is ~/.cache/imoney, or ./.cache/imoney without a home directory.
func CacheDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "imoney")
}

func maskValue(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
