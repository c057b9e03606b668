// Package config handles YAML configuration loading for the fetch command.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation. EIKON_APP_KEY, EIKON_HOST and EIKON_PORT override the
// proxy settings of the file.
package config

import "time"

// Config is the root configuration of the fetch command.
type Config struct {
	Proxy    ProxyConfig    `yaml:"proxy"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Limits   LimitsConfig   `yaml:"limits"`
	Quota    QuotaConfig    `yaml:"quota"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ProxyConfig locates and authenticates against the data proxy.
type ProxyConfig struct {
	AppKey        string        `yaml:"app_key"`
	Scheme        string        `yaml:"scheme"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"` // 0 = discover
	BasePort      int           `yaml:"base_port"`
	PortCount     int           `yaml:"port_count"`
	Timeout       time.Duration `yaml:"timeout"`
	StatusTimeout time.Duration `yaml:"status_timeout"`
	Handshake     *bool         `yaml:"handshake"`
}

// DispatchConfig holds fan-out settings.
type DispatchConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	LaunchInterval time.Duration `yaml:"launch_interval"`
	MaxAttempts    int           `yaml:"max_attempts"` // 0 = retry transient failures until cancelled
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// LimitsConfig holds the per-call caps.
type LimitsConfig struct {
	DatagridMaxRows          int `yaml:"datagrid_max_rows"`
	DatagridMaxInstruments   int `yaml:"datagrid_max_instruments"`
	TimeSeriesMaxRows        int `yaml:"timeseries_max_rows"`
	TimeSeriesMaxInstruments int `yaml:"timeseries_max_instruments"`
}

// QuotaConfig enables the redis-backed daily quota gate.
type QuotaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	DailyLimit    int           `yaml:"daily_limit"`
	Critical      int           `yaml:"critical"`
	Warning       int           `yaml:"warning"`
	ThrottleDelay time.Duration `yaml:"throttle_delay"`
	FailOpen      bool          `yaml:"fail_open"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// MetricsConfig holds Prometheus metrics settings. Port 0 disables the
// listener.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
