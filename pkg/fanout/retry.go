package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/client"
	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
)

// ErrRetryExhausted is returned when a bounded policy runs out of attempts.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// RetryPolicy is the single retry policy for transient transport failures.
type RetryPolicy struct {
	// MaxAttempts bounds the attempts per chunk, including the first.
	// Zero retries until the call succeeds or the context ends.
	MaxAttempts int

	// InitialBackoff is the wait after the first failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait after each failure.
	BackoffMultiplier float64

	// Jitter spreads each wait by up to ±Jitter of its length.
	Jitter float64
}

// DefaultRetryPolicy retries transient failures forever.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       0,
		InitialBackoff:    250 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

func (p RetryPolicy) validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0 (got %d)", p.MaxAttempts)
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < p.InitialBackoff {
		return fmt.Errorf("backoff range invalid (initial=%s, max=%s)", p.InitialBackoff, p.MaxBackoff)
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1 (got %g)", p.BackoffMultiplier)
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		return fmt.Errorf("jitter must be in [0, 1) (got %g)", p.Jitter)
	}
	return nil
}

// next returns the backoff that follows d.
func (p RetryPolicy) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * p.BackoffMultiplier)
	return min(d, p.MaxBackoff)
}

func (p RetryPolicy) jittered(d time.Duration) time.Duration {
	if p.Jitter == 0 || d == 0 {
		return d
	}
	return time.Duration(float64(d) * (1 - p.Jitter + rand.Float64()*2*p.Jitter))
}

// callWithRetry performs one chunk call, retrying only transient failures.
// It returns the body and the number of attempts made.
func (d *Dispatcher) callWithRetry(ctx context.Context, direction string, index int, payload any) (json.RawMessage, int, error) {
	policy := d.config.Retry
	backoff := policy.InitialBackoff

	for attempt := 1; ; attempt++ {
		body, err := d.caller.Call(ctx, d.endpoint, direction, payload)
		if err == nil {
			if attempt > 1 {
				d.logger.Info().
					Str("direction", direction).
					Int("chunk", index).
					Int("attempt", attempt).
					Msg("Chunk succeeded after retry")
			}
			return body, attempt, nil
		}

		if !client.IsTransient(err) {
			return nil, attempt, err
		}
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			d.logger.Warn().
				Str("direction", direction).
				Int("chunk", index).
				Int("max_attempts", policy.MaxAttempts).
				Msg("Retry attempts exhausted")
			return nil, attempt, dataerr.Wrap(dataerr.KindConnection, "fanout.Dispatch",
				fmt.Errorf("%w: %w", ErrRetryExhausted, err), "chunk %d after %d attempts", index, attempt)
		}

		chunkRetriesTotal.WithLabelValues(direction).Inc()
		wait := policy.jittered(backoff)

		d.logger.Debug().
			Str("direction", direction).
			Int("chunk", index).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying chunk after backoff")

		select {
		case <-ctx.Done():
			return nil, attempt, dataerr.Wrap(dataerr.KindConnection, "fanout.Dispatch", ctx.Err(),
				"chunk %d cancelled during retry backoff", index)
		case <-d.config.Clock.After(wait):
		}

		backoff = policy.next(backoff)
	}
}
