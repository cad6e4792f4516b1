package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀。
const EnvPrefix = "EXTRACTJOB_"

// Load 从 YAML 文件加载配置，并依次应用默认值与环境变量覆盖。
// file 为空时只使用默认值与环境变量。
func Load(file string) (Config, error) {
	var c Config
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", file, err)
		}
	}
	if err := LoadEnv(&c); err != nil {
		return c, err
	}
	c.WithDefaults()
	return c, c.Validate()
}

// MustLoad 从 YAML 文件加载配置（失败 panic）。
func MustLoad(file string) Config {
	c, err := Load(file)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadEnv 读取当前目录下的 .env（不存在则跳过），再用 EXTRACTJOB_* 覆盖配置。
func LoadEnv(c *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return applyEnv(c, os.LookupEnv)
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("HOST", &c.Host)
	num("PORT", &c.Port)
	num("MAX_CONCURRENT_JOBS", &c.MaxConcurrentJobs)
	dur("JOB_TIMEOUT", &c.JobTimeout)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("RESULTS_DIR", &c.Storage.ResultsDir)
	str("DATA_SOURCE", &c.Storage.DataSource)
	dur("CLEANUP_AFTER", &c.CleanupAfter)
	dur("SWEEP_INTERVAL", &c.SweepInterval)
	dur("HEARTBEAT_INTERVAL", &c.HeartbeatInterval)
	str("API_VERSION", &c.APIVersion)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	return errors.Join(errs...)
}
