package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Proxy.AppKey == "" {
		return errors.New("proxy.app_key is required (or set EIKON_APP_KEY)")
	}
	if c.Proxy.Scheme != "http" && c.Proxy.Scheme != "https" {
		return fmt.Errorf("proxy.scheme must be http or https (got %q)", c.Proxy.Scheme)
	}
	if c.Proxy.Port < 0 || c.Proxy.Port > 65535 {
		return fmt.Errorf("proxy.port must be 0 or a valid port (got %d)", c.Proxy.Port)
	}
	if c.Proxy.PortCount < 1 {
		return errors.New("proxy.port_count must be >= 1")
	}
	if c.Proxy.BasePort < 1 || c.Proxy.BasePort+c.Proxy.PortCount-1 > 65535 {
		return fmt.Errorf("proxy.base_port range %d+%d is not a valid port range", c.Proxy.BasePort, c.Proxy.PortCount)
	}
	if c.Proxy.Timeout < 0 || c.Proxy.StatusTimeout < 0 {
		return errors.New("proxy timeouts must be >= 0")
	}

	if c.Dispatch.MaxConcurrency < 1 {
		return errors.New("dispatch.max_concurrency must be >= 1")
	}
	if c.Dispatch.LaunchInterval < 0 {
		return errors.New("dispatch.launch_interval must be >= 0")
	}
	if c.Dispatch.MaxAttempts < 0 {
		return errors.New("dispatch.max_attempts must be >= 0")
	}
	if c.Dispatch.MaxBackoff < c.Dispatch.InitialBackoff {
		return errors.New("dispatch.max_backoff must be >= dispatch.initial_backoff")
	}

	if c.Limits.DatagridMaxRows < 1 || c.Limits.DatagridMaxInstruments < 1 {
		return errors.New("limits.datagrid_* must be >= 1")
	}
	if c.Limits.TimeSeriesMaxRows < 1 || c.Limits.TimeSeriesMaxInstruments < 1 {
		return errors.New("limits.timeseries_* must be >= 1")
	}

	if c.Quota.Enabled {
		if c.Quota.RedisAddr == "" {
			return errors.New("quota.redis_addr is required when quota is enabled")
		}
		if c.Quota.DailyLimit < 1 {
			return errors.New("quota.daily_limit must be >= 1")
		}
		if c.Quota.Critical < 0 || c.Quota.Warning < c.Quota.Critical {
			return errors.New("quota thresholds must satisfy 0 <= critical <= warning")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be 0 (disabled) or between 1 and 65535 (got %d)", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with / (got %q)", c.Metrics.Path)
	}

	return nil
}
