package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment knobs read before koanf runs.
const (
	EnvPrefix     = "SPEEDGLOBE_"
	EnvConfigFile = "SPEEDGLOBE_CONFIG"
	EnvDotenvFile = "SPEEDGLOBE_DOTENV"
)

var (
	// ErrInvalidConfig marks a Config that failed Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a source (dotenv, file, env) that could not be read.
	ErrLoadConfig = errors.New("load config failed")
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file (SPEEDGLOBE_DOTENV or ./.env), exported into the process env
//  3. file (YAML) if SPEEDGLOBE_CONFIG is set
//  4. env (prefix SPEEDGLOBE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	// A missing .env is normal; an explicitly requested one must exist.
	if path := os.Getenv(EnvDotenvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("%w: dotenv %s: %v", ErrLoadConfig, path, err)
		}
	} else {
		_ = godotenv.Load(".env")
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// SPEEDGLOBE_RESOLVER_WORKERS -> resolver_workers (flat keys).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	// Decoding into a longer default slice would keep its tail.
	if k.Exists("years") {
		cfg.Years = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	cfg.Years = splitYears(cfg.Years)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitYears accepts both a YAML list and a comma separated env value.
func splitYears(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, y := range strings.Split(item, ",") {
			if y = strings.TrimSpace(y); y != "" {
				out = append(out, y)
			}
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case len(c.Years) == 0:
		return fmt.Errorf("%w: years must not be empty", ErrInvalidConfig)
	case !slices.Contains(c.Years, c.DefaultYear):
		return fmt.Errorf("%w: default_year %q is not in years", ErrInvalidConfig, c.DefaultYear)
	case c.CacheBackend != CacheMemory && c.CacheBackend != CacheRedis:
		return fmt.Errorf("%w: unknown cache_backend %q", ErrInvalidConfig, c.CacheBackend)
	case c.CacheBackend == CacheRedis && c.RedisAddr == "":
		return fmt.Errorf("%w: redis cache requires redis_addr", ErrInvalidConfig)
	case c.CacheKey == "":
		return fmt.Errorf("%w: cache_key must not be empty", ErrInvalidConfig)
	}
	return nil
}
