package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/client"
	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/logging"
	"github.com/Sternrassler/eikon-data-client/pkg/wire"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Caller performs one data call. *client.Client implements it.
type Caller interface {
	Call(ctx context.Context, ep client.Endpoint, direction string, payload any) (json.RawMessage, error)
}

// Gate admits chunk launches. Acquire blocks until one more call may be
// launched, or returns an error when none may.
type Gate interface {
	Acquire(ctx context.Context) error
}

// Config holds dispatcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of chunk calls in flight.
	MaxConcurrency int

	// LaunchInterval is the pause between successive launches.
	LaunchInterval time.Duration

	// Retry governs transient transport failures.
	Retry RetryPolicy

	// Clock drives pacing and backoff (default: real clock).
	Clock clockwork.Clock

	// Gate is consulted before every launch. Nil admits everything.
	Gate Gate
}

// DefaultConfig returns the proxy-friendly defaults: 12 calls in flight,
// launched at least 250ms apart.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 12,
		LaunchInterval: 250 * time.Millisecond,
		Retry:          DefaultRetryPolicy(),
		Clock:          clockwork.NewRealClock(),
	}
}

// Dispatcher runs chunk payloads against one resolved endpoint.
type Dispatcher struct {
	caller   Caller
	endpoint client.Endpoint
	config   Config
	logger   zerolog.Logger
}

// New creates a Dispatcher for ep.
func New(caller Caller, ep client.Endpoint, cfg Config) (*Dispatcher, error) {
	const op = "fanout.New"
	if caller == nil {
		return nil, dataerr.New(dataerr.KindInvalid, op, "caller is required")
	}
	if cfg.MaxConcurrency <= 0 {
		return nil, dataerr.New(dataerr.KindInvalid, op, "max_concurrency must be > 0 (got %d)", cfg.MaxConcurrency)
	}
	if cfg.LaunchInterval < 0 {
		return nil, dataerr.New(dataerr.KindInvalid, op, "launch_interval must be >= 0 (got %s)", cfg.LaunchInterval)
	}
	if err := cfg.Retry.validate(); err != nil {
		return nil, dataerr.Wrap(dataerr.KindInvalid, op, err, "retry policy")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Dispatcher{
		caller:   caller,
		endpoint: ep,
		config:   cfg,
		logger:   logging.NewLogger("fanout"),
	}, nil
}

// Endpoint returns the endpoint chunks are sent to.
func (d *Dispatcher) Endpoint() client.Endpoint {
	return d.endpoint
}

type job struct {
	index   int
	payload any
}

// Dispatch sends every payload as one call and returns the responses that
// carry data, in payload order. Empty responses are counted and dropped.
//
// The first terminal failure stops further launches and is returned; calls
// already in flight are left to finish and their results discarded. Dispatch
// returns only after every launched call has completed.
func (d *Dispatcher) Dispatch(ctx context.Context, direction string, payloads []any) ([]*wire.Response, error) {
	const op = "fanout.Dispatch"
	start := d.config.Clock.Now()
	defer func() {
		dispatchDuration.WithLabelValues(direction).Observe(d.config.Clock.Since(start).Seconds())
	}()

	if len(payloads) == 0 {
		return nil, nil
	}

	d.logger.Info().
		Str("direction", direction).
		Int("chunks", len(payloads)).
		Int("max_concurrency", d.config.MaxConcurrency).
		Str("endpoint", d.endpoint.String()).
		Msg("Starting dispatch")

	// gctx ends launching; calls themselves run under ctx so that one
	// chunk's failure never cancels another chunk's call.
	g, gctx := errgroup.WithContext(ctx)

	queue := make(chan job)
	slots := make([]*wire.Response, len(payloads))

	var launched int
	g.Go(func() error {
		defer close(queue)
		n, err := d.launch(gctx, payloads, queue)
		launched = n
		return err
	})

	workers := min(d.config.MaxConcurrency, len(payloads))
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return d.worker(ctx, gctx, direction, queue, slots, i)
		})
	}

	if err := g.Wait(); err != nil {
		d.logger.Warn().
			Err(err).
			Str("direction", direction).
			Str("error_class", string(dataerr.KindOf(err))).
			Msg("Dispatch aborted")
		return nil, err
	}
	if launched < len(payloads) {
		// Only the caller's context stops launching without a chunk error.
		return nil, dataerr.Wrap(dataerr.KindConnection, op, context.Cause(ctx),
			"dispatch cancelled after %d of %d chunks", launched, len(payloads))
	}

	out := make([]*wire.Response, 0, len(slots))
	for i, r := range slots {
		if r == nil {
			return nil, dataerr.Wrap(dataerr.KindConnection, op, context.Cause(ctx),
				"chunk %d of %d has no result", i, len(slots))
		}
		if r.HasData() {
			out = append(out, r)
		}
	}

	d.logger.Info().
		Str("direction", direction).
		Int("chunks", len(payloads)).
		Int("contributing", len(out)).
		Dur("duration", d.config.Clock.Since(start)).
		Msg("Dispatch complete")

	return out, nil
}

// launch feeds the queue in payload order, pausing LaunchInterval between
// launches, and returns how many jobs were handed to workers. It stops as
// soon as gctx ends.
func (d *Dispatcher) launch(gctx context.Context, payloads []any, queue chan<- job) (int, error) {
	for i, p := range payloads {
		if i > 0 && d.config.LaunchInterval > 0 {
			select {
			case <-gctx.Done():
				return i, nil
			case <-d.config.Clock.After(d.config.LaunchInterval):
			}
		}

		if d.config.Gate != nil {
			if err := d.config.Gate.Acquire(gctx); err != nil {
				if gctx.Err() != nil {
					return i, nil
				}
				return i, err
			}
		}

		if gctx.Err() != nil {
			return i, nil
		}
		select {
		case queue <- job{index: i, payload: p}:
		case <-gctx.Done():
			return i, nil
		}
	}
	return len(payloads), nil
}

// worker processes jobs from the queue until it is closed.
func (d *Dispatcher) worker(ctx, gctx context.Context, direction string, queue <-chan job, slots []*wire.Response, workerID int) error {
	processed := 0

	for j := range queue {
		// Another chunk failed or the caller cancelled. A dropped job fails
		// the dispatch.
		if gctx.Err() != nil {
			d.logger.Debug().
				Int("worker_id", workerID).
				Int("chunk", j.index).
				Int("chunks_processed", processed).
				Msg("Worker stopping (dispatch aborted)")
			return dataerr.Wrap(dataerr.KindConnection, "fanout.Dispatch", context.Cause(gctx),
				"chunk %d dropped before launch", j.index)
		}

		resp, err := d.runChunk(ctx, direction, j)
		if err != nil {
			chunksTotal.WithLabelValues(direction, outcomeError).Inc()
			return err
		}
		slots[j.index] = resp
		processed++
	}

	if processed > 0 {
		d.logger.Debug().
			Int("worker_id", workerID).
			Int("chunks_processed", processed).
			Msg("Worker completed")
	}
	return nil
}

// runChunk calls one chunk and classifies its response.
func (d *Dispatcher) runChunk(ctx context.Context, direction string, j job) (resp *wire.Response, err error) {
	const op = "fanout.Dispatch"

	chunksInFlight.Inc()
	defer chunksInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("direction", direction).
				Int("chunk", j.index).
				Interface("panic", r).
				Msg("Chunk worker panicked")
			resp, err = nil, dataerr.New(dataerr.KindThread, op, "chunk %d: worker panic: %v", j.index, r)
		}
	}()

	body, attempts, err := d.callWithRetry(ctx, direction, j.index, j.payload)
	if err != nil {
		var de *dataerr.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dataerr.Wrap(dataerr.KindOf(err), op, err, "chunk %d", j.index)
	}

	resp, err = wire.Decode(body)
	if err != nil {
		return nil, dataerr.Wrap(dataerr.KindConnection, op, err, "chunk %d", j.index)
	}

	if resp.HasData() {
		chunksTotal.WithLabelValues(direction, outcomeData).Inc()
		d.logger.Debug().
			Str("direction", direction).
			Int("chunk", j.index).
			Int("attempt", attempts).
			Str("shape", resp.Shape.String()).
			Msg("Chunk returned data")
		return resp, nil
	}

	chunksTotal.WithLabelValues(direction, outcomeEmpty).Inc()
	event := d.logger.Debug()
	if resp.ErrorMessage != "" {
		event = d.logger.Warn().Str("service_error", resp.ErrorMessage)
	}
	event.
		Str("direction", direction).
		Int("chunk", j.index).
		Int("attempt", attempts).
		Msg("Chunk returned no data")
	return resp, nil
}
