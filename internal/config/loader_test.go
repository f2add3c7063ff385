package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/speedglobe/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DataFile, convey.ShouldEqual, "data.csv")
			convey.So(cfg.Years, convey.ShouldResemble, config.DefaultYears)
			convey.So(cfg.DefaultYear, convey.ShouldEqual, "2024")
			convey.So(cfg.ResolverWorkers, convey.ShouldEqual, 6)
			convey.So(cfg.CacheBackend, convey.ShouldEqual, config.CacheMemory)
			convey.So(cfg.CacheKey, convey.ShouldEqual, "countryLatLngCache_v1")
			convey.So(cfg.PlayIntervalMS, convey.ShouldEqual, 1200)
			convey.So(cfg.DefaultTopN, convey.ShouldEqual, 12)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then its year slice should not alias the package default", func() {
			cfg.Years[0] = "1999"
			convey.So(config.DefaultYears[0], convey.ShouldEqual, "2017")
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		noDotenv(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Years, convey.ShouldHaveLength, 8)
				convey.So(cfg.ResolverWorkers, convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SPEEDGLOBE_ADDR", ":8080")
			_ = os.Setenv("SPEEDGLOBE_RESOLVER_WORKERS", "12")
			_ = os.Setenv("SPEEDGLOBE_OFFLINE_GEOCODER", "true")
			_ = os.Setenv("SPEEDGLOBE_YEARS", "2022,2023, 2024")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ResolverWorkers, convey.ShouldEqual, 12)
				convey.So(cfg.OfflineGeocoder, convey.ShouldBeTrue)
				convey.So(cfg.Years, convey.ShouldResemble, []string{"2022", "2023", "2024"})
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
years: ["2020", "2021"]
default_year: "2021"
play_interval_ms: 500
cache_backend: redis
redis_addr: "127.0.0.1:6379"
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("SPEEDGLOBE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file and replace the year list", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Years, convey.ShouldResemble, []string{"2020", "2021"})
				convey.So(cfg.DefaultYear, convey.ShouldEqual, "2021")
				convey.So(cfg.PlayIntervalMS, convey.ShouldEqual, 500)
				convey.So(cfg.CacheBackend, convey.ShouldEqual, config.CacheRedis)
				convey.So(cfg.DataFile, convey.ShouldEqual, "data.csv")
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
resolver_workers: 3
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("SPEEDGLOBE_CONFIG", tmpFile)
			_ = os.Setenv("SPEEDGLOBE_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.ResolverWorkers, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When a .env file is requested", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "speedglobe.env")
			convey.So(os.WriteFile(path, []byte("SPEEDGLOBE_DATA_FILE=/tmp/speeds.csv\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("SPEEDGLOBE_DOTENV", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then its variables should be applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DataFile, convey.ShouldEqual, "/tmp/speeds.csv")
			})
		})

		convey.Convey("When a requested .env file is missing", func() {
			_ = os.Setenv("SPEEDGLOBE_DOTENV", "/non/existent/.env")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("SPEEDGLOBE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("SPEEDGLOBE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("SPEEDGLOBE_RESOLVER_WORKERS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given configs violating one constraint each", t, func() {
		cases := map[string]func(c *config.Config){
			"addr must not be empty":      func(c *config.Config) { c.Addr = "" },
			"years must not be empty":     func(c *config.Config) { c.Years = nil },
			"is not in years":             func(c *config.Config) { c.DefaultYear = "1990" },
			"unknown cache_backend":       func(c *config.Config) { c.CacheBackend = "memcached" },
			"redis cache requires":        func(c *config.Config) { c.CacheBackend = config.CacheRedis },
			"cache_key must not be empty": func(c *config.Config) { c.CacheKey = "" },
		}

		for msg, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, msg)
		}
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"SPEEDGLOBE_CONFIG",
		"SPEEDGLOBE_DOTENV",
		"SPEEDGLOBE_ADDR",
		"SPEEDGLOBE_RESOLVER_WORKERS",
		"SPEEDGLOBE_OFFLINE_GEOCODER",
		"SPEEDGLOBE_YEARS",
		"SPEEDGLOBE_DATA_FILE",
	} {
		_ = os.Unsetenv(envVar)
	}
}

// noDotenv runs the test from an empty directory so a developer .env cannot leak in.
func noDotenv(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "speedglobe-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
