package config

import (
	"github.com/Sternrassler/eikon-data-client/pkg/client"
	"github.com/Sternrassler/eikon-data-client/pkg/eikon"
	"github.com/Sternrassler/eikon-data-client/pkg/logging"
	"github.com/Sternrassler/eikon-data-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

// Session returns the session configuration described by c. The quota
// gate is left unset; the caller owns the redis client behind it.
func (c *Config) Session() eikon.Config {
	cfg := eikon.DefaultConfig(c.Proxy.AppKey)

	cfg.Client.Timeout = c.Proxy.Timeout
	cfg.Client.StatusTimeout = c.Proxy.StatusTimeout
	cfg.Endpoint = client.Endpoint{Scheme: c.Proxy.Scheme, Host: c.Proxy.Host, Port: c.Proxy.Port}
	cfg.Resolver.Base = c.Proxy.BasePort
	cfg.Resolver.Count = c.Proxy.PortCount
	if c.Proxy.Handshake != nil {
		cfg.Handshake = *c.Proxy.Handshake
	}

	cfg.Dispatch.MaxConcurrency = c.Dispatch.MaxConcurrency
	cfg.Dispatch.LaunchInterval = c.Dispatch.LaunchInterval
	cfg.Dispatch.Retry.MaxAttempts = c.Dispatch.MaxAttempts
	cfg.Dispatch.Retry.InitialBackoff = c.Dispatch.InitialBackoff
	cfg.Dispatch.Retry.MaxBackoff = c.Dispatch.MaxBackoff

	cfg.DatagridLimits.MaxRows = c.Limits.DatagridMaxRows
	cfg.DatagridLimits.MaxInstruments = c.Limits.DatagridMaxInstruments
	cfg.TimeSeriesLimits.MaxRows = c.Limits.TimeSeriesMaxRows
	cfg.TimeSeriesLimits.MaxCompanies = c.Limits.TimeSeriesMaxInstruments

	return cfg
}

// Logger returns the logger configuration described by c. Output is left
// to logging's default.
func (c *Config) Logger() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	cfg.File = c.Logging.File
	cfg.MaxSizeMB = c.Logging.MaxSizeMB
	cfg.MaxBackups = c.Logging.MaxBackups
	return cfg
}

// RedisOptions returns the connection options of the quota store.
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.Quota.RedisAddr,
		Password: c.Quota.RedisPassword,
		DB:       c.Quota.RedisDB,
	}
}

// Tracker returns the quota tracker configuration described by c.
func (c *Config) Tracker() ratelimit.Config {
	cfg := ratelimit.DefaultConfig()
	cfg.DailyLimit = c.Quota.DailyLimit
	cfg.Thresholds = ratelimit.Thresholds{Critical: c.Quota.Critical, Warning: c.Quota.Warning}
	cfg.ThrottleDelay = c.Quota.ThrottleDelay
	cfg.FailOpen = c.Quota.FailOpen
	return cfg
}
