package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ocsbridge/internal/middleware"
	"ocsbridge/internal/models"
)

// DefaultPaths are searched in order when no config file is given.
var DefaultPaths = []string{
	"/etc/ocsbridge/config.yaml",
	"config.yaml",
}

var defaultConfig = models.Config{
	Port:         "8000",
	DBDriver:     "sqlite",
	DBPath:       "ocsbridge.db",
	DBMaxConns:   10,
	MaxBodyBytes: 32 << 20,
	RateLimit:    600,
}

// Load returns the server configuration. Values come from the built-in
// defaults, then the YAML file at path (or the first of DefaultPaths that
// exists), then environment variables.
func Load(path string) (models.Config, error) {
	cfg := defaultConfig

	if path == "" {
		for _, c := range DefaultPaths {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", cfg.DBDriver))
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxConns = getEnvInt("DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.RateLimit = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimit)
	if urls := getEnv("NOTIFY_URLS", ""); urls != "" {
		cfg.NotifyURLs = splitList(urls)
	}
	if proxies := getEnv("TRUSTED_PROXIES", ""); proxies != "" {
		cfg.TrustedProxies = splitList(proxies)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func Validate(cfg models.Config) error {
	switch cfg.DBDriver {
	case "sqlite":
		if cfg.DBPath == "" {
			return fmt.Errorf("db_path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown db_driver %q (want sqlite or postgres)", cfg.DBDriver)
	}
	if cfg.DBMaxConns <= 0 {
		return fmt.Errorf("db_max_conns must be positive, got %d", cfg.DBMaxConns)
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", cfg.MaxBodyBytes)
	}
	if _, err := middleware.ParsePrefixes(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("trusted_proxies: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
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
