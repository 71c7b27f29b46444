package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/matchd/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MATCHD_ADDR", ":8080")
			_ = os.Setenv("MATCHD_CACHE_TTL", "30m")
			_ = os.Setenv("MATCHD_CANDIDATE_POOL_LIMIT", "75")
			_ = os.Setenv("MATCHD_BATCH_SCENES", "business,social")
			_ = os.Setenv("MATCHD_LOG_FORMAT", "json")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.CacheTTL, convey.ShouldEqual, 30*time.Minute)
				convey.So(cfg.CandidatePoolLimit, convey.ShouldEqual, 75)
				convey.So(cfg.BatchScenes, convey.ShouldEqual, "business,social")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
store_driver: sqlite
store_dsn: "file:matchd.db"
cache_backend: redis
redis_addr: "localhost:6379"
cleanup_interval: 15m
regeneration_workers: 4
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MATCHD_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "file:matchd.db")
				convey.So(cfg.CacheBackend, convey.ShouldEqual, config.CacheRedis)
				convey.So(cfg.CleanupInterval, convey.ShouldEqual, 15*time.Minute)
				convey.So(cfg.RegenerationWorkers, convey.ShouldEqual, 4)
				convey.So(cfg.CacheTTL, convey.ShouldEqual, 24*time.Hour)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
batch_size: 50
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MATCHD_CONFIG", tmpFile)
			_ = os.Setenv("MATCHD_ADDR", ":8080") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080") // Overridden by env
				convey.So(cfg.BatchSize, convey.ShouldEqual, 50) // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile("addr: [unclosed")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("MATCHD_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MATCHD_CONFIG", "/non/existent/matchd.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("MATCHD_BATCH_SIZE", "lots")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When loading config that fails validation", func() {
			_ = os.Setenv("MATCHD_STORE_DRIVER", "postgres")
			_ = os.Setenv("MATCHD_BATCH_SIZE", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then every failed rule is reported", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "StoreDSN")
				convey.So(err.Error(), convey.ShouldContainSubstring, "BatchSize")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with YAML file containing empty values", func() {
			yamlContent := `
addr: ""
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("MATCHD_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return validation error for empty addr", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "Addr failed required")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"MATCHD_CONFIG",
		"MATCHD_ADDR",
		"MATCHD_CACHE_TTL",
		"MATCHD_CANDIDATE_POOL_LIMIT",
		"MATCHD_BATCH_SCENES",
		"MATCHD_BATCH_SIZE",
		"MATCHD_LOG_FORMAT",
		"MATCHD_STORE_DRIVER",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "matchd-config-*.yaml")
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
