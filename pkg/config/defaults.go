package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultScheme                   = "http"
	DefaultHost                     = "127.0.0.1"
	DefaultBasePort                 = 9000
	DefaultPortCount                = 10
	DefaultTimeout                  = 120 * time.Second
	DefaultStatusTimeout            = 2 * time.Second
	DefaultMaxConcurrency           = 12
	DefaultLaunchInterval           = 250 * time.Millisecond
	DefaultInitialBackoff           = 250 * time.Millisecond
	DefaultMaxBackoff               = 10 * time.Second
	DefaultDatagridMaxRows          = 50000
	DefaultDatagridMaxInstruments   = 7000
	DefaultTimeSeriesMaxRows        = 3000
	DefaultTimeSeriesMaxInstruments = 300
	DefaultRedisAddr                = "localhost:6379"
	DefaultDailyLimit               = 10000
	DefaultQuotaCritical            = 50
	DefaultQuotaWarning             = 500
	DefaultThrottleDelay            = 1 * time.Second
	DefaultLogLevel                 = "info"
	DefaultLogMaxSizeMB             = 20
	DefaultLogMaxBackups            = 5
	DefaultMetricsPath              = "/metrics"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// Proxy defaults
	if c.Proxy.Scheme == "" {
		c.Proxy.Scheme = DefaultScheme
	}
	if c.Proxy.Host == "" {
		c.Proxy.Host = DefaultHost
	}
	if c.Proxy.BasePort == 0 {
		c.Proxy.BasePort = DefaultBasePort
	}
	if c.Proxy.PortCount == 0 {
		c.Proxy.PortCount = DefaultPortCount
	}
	if c.Proxy.Timeout == 0 {
		c.Proxy.Timeout = DefaultTimeout
	}
	if c.Proxy.StatusTimeout == 0 {
		c.Proxy.StatusTimeout = DefaultStatusTimeout
	}
	if c.Proxy.Handshake == nil {
		handshake := true
		c.Proxy.Handshake = &handshake
	}

	// Dispatch defaults
	if c.Dispatch.MaxConcurrency == 0 {
		c.Dispatch.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Dispatch.LaunchInterval == 0 {
		c.Dispatch.LaunchInterval = DefaultLaunchInterval
	}
	if c.Dispatch.InitialBackoff == 0 {
		c.Dispatch.InitialBackoff = DefaultInitialBackoff
	}
	if c.Dispatch.MaxBackoff == 0 {
		c.Dispatch.MaxBackoff = DefaultMaxBackoff
	}

	// Limits defaults
	if c.Limits.DatagridMaxRows == 0 {
		c.Limits.DatagridMaxRows = DefaultDatagridMaxRows
	}
	if c.Limits.DatagridMaxInstruments == 0 {
		c.Limits.DatagridMaxInstruments = DefaultDatagridMaxInstruments
	}
	if c.Limits.TimeSeriesMaxRows == 0 {
		c.Limits.TimeSeriesMaxRows = DefaultTimeSeriesMaxRows
	}
	if c.Limits.TimeSeriesMaxInstruments == 0 {
		c.Limits.TimeSeriesMaxInstruments = DefaultTimeSeriesMaxInstruments
	}

	// Quota defaults
	if c.Quota.RedisAddr == "" {
		c.Quota.RedisAddr = DefaultRedisAddr
	}
	if c.Quota.DailyLimit == 0 {
		c.Quota.DailyLimit = DefaultDailyLimit
	}
	if c.Quota.Critical == 0 {
		c.Quota.Critical = DefaultQuotaCritical
	}
	if c.Quota.Warning == 0 {
		c.Quota.Warning = DefaultQuotaWarning
	}
	if c.Quota.ThrottleDelay == 0 {
		c.Quota.ThrottleDelay = DefaultThrottleDelay
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
