package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultKeyPrefix namespaces quota counters in redis.
	DefaultKeyPrefix = "eikon:quota"

	// expiryGrace keeps a finished day's counter around briefly so that
	// late readers still see the final usage.
	expiryGrace = time.Hour
)

var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eikon_quota_remaining",
		Help: "Calls remaining in the current daily quota",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eikon_quota_blocks_total",
		Help: "Chunk launches refused because the daily quota is critical",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eikon_quota_throttles_total",
		Help: "Chunk launches delayed because the daily quota is low",
	})
)

// Config holds tracker configuration.
type Config struct {
	// DailyLimit is the number of calls allowed per UTC day.
	DailyLimit int

	Thresholds Thresholds

	// ThrottleDelay is the pause applied to each launch in the warning band.
	ThrottleDelay time.Duration

	// KeyPrefix namespaces the redis counters.
	KeyPrefix string

	// FailOpen admits launches when redis is unreachable.
	FailOpen bool

	// Clock supplies the current day and drives throttling.
	Clock clockwork.Clock
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		DailyLimit:    DefaultDailyLimit,
		Thresholds:    DefaultThresholds(),
		ThrottleDelay: time.Second,
		KeyPrefix:     DefaultKeyPrefix,
		Clock:         clockwork.NewRealClock(),
	}
}

// Tracker counts calls per application key per UTC day in redis.
// It implements fanout.Gate.
type Tracker struct {
	redis   *redis.Client
	keyHash string
	config  Config
	logger  zerolog.Logger
}

// NewTracker creates a quota tracker for appKey. The key itself is never
// written to redis, only a hash of it.
func NewTracker(redisClient *redis.Client, appKey string, cfg Config, logger zerolog.Logger) (*Tracker, error) {
	const op = "ratelimit.NewTracker"
	if redisClient == nil {
		return nil, dataerr.New(dataerr.KindInvalid, op, "redis client is required")
	}
	if appKey == "" {
		return nil, dataerr.New(dataerr.KindAuth, op, "application key is required")
	}
	if cfg.DailyLimit <= 0 {
		return nil, dataerr.New(dataerr.KindInvalid, op, "daily_limit must be > 0 (got %d)", cfg.DailyLimit)
	}
	if cfg.Thresholds.Critical < 0 || cfg.Thresholds.Warning < cfg.Thresholds.Critical {
		return nil, dataerr.New(dataerr.KindInvalid, op, "thresholds must satisfy 0 <= critical <= warning (got %d, %d)",
			cfg.Thresholds.Critical, cfg.Thresholds.Warning)
	}
	if cfg.ThrottleDelay < 0 {
		return nil, dataerr.New(dataerr.KindInvalid, op, "throttle_delay must be >= 0 (got %s)", cfg.ThrottleDelay)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	sum := sha256.Sum256([]byte(appKey))
	return &Tracker{
		redis:   redisClient,
		keyHash: hex.EncodeToString(sum[:8]),
		config:  cfg,
		logger:  logger,
	}, nil
}

// key returns the redis key of the counter for day.
func (t *Tracker) key(day string) string {
	return t.config.KeyPrefix + ":" + t.keyHash + ":" + day
}

// GetState reads today's usage without counting a call.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	const op = "ratelimit.GetState"
	day, resetAt := dayWindow(t.config.Clock.Now())

	used, err := t.redis.Get(ctx, t.key(day)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, dataerr.Wrap(dataerr.KindConnection, op, err, "read quota counter")
	}

	state := &QuotaState{
		Day:     day,
		Used:    used,
		Limit:   t.config.DailyLimit,
		ResetAt: resetAt,
	}
	state.UpdateHealth(t.config.Thresholds)
	quotaRemaining.Set(float64(state.Remaining()))
	return state, nil
}

// Acquire counts one call against today's quota. Below the critical
// threshold the call is given back and a quota error returned; below the
// warning threshold Acquire waits ThrottleDelay before admitting it.
func (t *Tracker) Acquire(ctx context.Context) error {
	const op = "ratelimit.Acquire"
	day, resetAt := dayWindow(t.config.Clock.Now())
	key := t.key(day)

	pipe := t.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, resetAt.Add(expiryGrace))
	if _, err := pipe.Exec(ctx); err != nil {
		if t.config.FailOpen && ctx.Err() == nil {
			t.logger.Warn().Err(err).Msg("Quota store unavailable - admitting call")
			return nil
		}
		return dataerr.Wrap(dataerr.KindConnection, op, err, "record quota usage")
	}

	state := &QuotaState{
		Day:     day,
		Used:    int(incr.Val()),
		Limit:   t.config.DailyLimit,
		ResetAt: resetAt,
	}
	state.UpdateHealth(t.config.Thresholds)
	quotaRemaining.Set(float64(state.Remaining()))

	if state.NeedsCriticalBlock(t.config.Thresholds) {
		// The refused call never reaches the proxy.
		if err := t.redis.Decr(ctx, key).Err(); err != nil {
			t.logger.Warn().Err(err).Str("day", day).Msg("Failed to release refused quota slot")
		}
		quotaBlocksTotal.Inc()

		t.logger.Error().
			Int("remaining", state.Remaining()).
			Int("daily_limit", state.Limit).
			Dur("reset_in", state.TimeUntilReset(t.config.Clock.Now())).
			Msg("Daily quota critical - refusing call")

		return dataerr.New(dataerr.KindQuota, op, "daily quota exhausted: %d of %d calls remaining, resets at %s",
			state.Remaining(), state.Limit, state.ResetAt.Format(time.RFC3339))
	}

	if state.NeedsThrottling(t.config.Thresholds) && t.config.ThrottleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining()).
			Dur("delay", t.config.ThrottleDelay).
			Msg("Daily quota low - throttling call")

		quotaThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return dataerr.Wrap(dataerr.KindConnection, op, ctx.Err(), "throttled call cancelled")
		case <-t.config.Clock.After(t.config.ThrottleDelay):
		}
	}

	return nil
}
