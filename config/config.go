package config

import (
	"errors"
	"fmt"
	"time"
)

// Config 组件运行所需的完整配置。
// 功能：承载 HTTP 监听、并发上限、结果存储与清理周期、日志等配置。
type Config struct {
	Host string `yaml:"host"` // 服务监听地址，例如 0.0.0.0
	Port int    `yaml:"port"` // 服务监听端口，例如 8091

	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
	JobTimeout        time.Duration `yaml:"job_timeout"` // 0 表示不限时

	Storage struct {
		Driver     string `yaml:"driver"`      // file | db | memory
		ResultsDir string `yaml:"results_dir"` // driver=file 时的结果目录
		DataSource string `yaml:"data_source"` // driver=db 时的 sqlite 文件路径
	} `yaml:"storage"`

	CleanupAfter      time.Duration `yaml:"cleanup_after"`  // 保留窗口
	SweepInterval     time.Duration `yaml:"sweep_interval"` // 清理周期
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	APIVersion string `yaml:"api_version"`

	Log struct {
		Level  string `yaml:"level"`  // debug/info/warn/error
		Format string `yaml:"format"` // text/json
	} `yaml:"log"`
}

// Default 返回带默认值的配置。
func Default() Config {
	var c Config
	c.WithDefaults()
	return c
}

// WithDefaults 填充未设置的字段。
func (c *Config) WithDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8091
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 5
	}
	if c.JobTimeout < 0 {
		c.JobTimeout = 0
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.ResultsDir == "" {
		c.Storage.ResultsDir = "api_results"
	}
	if c.Storage.DataSource == "" {
		c.Storage.DataSource = "extractjob.db"
	}
	if c.CleanupAfter <= 0 {
		c.CleanupAfter = 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Hour
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = time.Minute
	}
	if c.APIVersion == "" {
		c.APIVersion = "v1"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Addr 返回 host:port。
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// APIPrefix 返回接口前缀，例如 /api/v1。
func (c Config) APIPrefix() string { return "/api/" + c.APIVersion }

// Validate 校验配置取值。
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.MaxConcurrentJobs <= 0 {
		errs = append(errs, errors.New("max_concurrent_jobs must be positive"))
	}
	switch c.Storage.Driver {
	case "file", "db", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.CleanupAfter <= 0 {
		errs = append(errs, errors.New("cleanup_after must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	return errors.Join(errs...)
}
