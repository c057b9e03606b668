// Package eikon is the entry point of the data client. A Session connects to
// the local data proxy once and then serves datagrid and time-series
// requests of any size by splitting them into quota-sized calls, running
// those calls concurrently and stitching the results back into one table.
package eikon

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/client"
	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/endpoint"
	"github.com/Sternrassler/eikon-data-client/pkg/fanout"
	"github.com/Sternrassler/eikon-data-client/pkg/logging"
	"github.com/Sternrassler/eikon-data-client/pkg/partition"
	"github.com/Sternrassler/eikon-data-client/pkg/reassemble"
	"github.com/Sternrassler/eikon-data-client/pkg/table"
	"github.com/Sternrassler/eikon-data-client/pkg/wire"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds session configuration.
type Config struct {
	Client client.Config

	// Endpoint is the proxy address. Port 0 means: discover the port with
	// the resolver.
	Endpoint client.Endpoint

	Resolver endpoint.Config

	// Handshake validates the application key right after connecting.
	Handshake bool

	Dispatch         fanout.Config
	DatagridLimits   partition.DatagridLimits
	TimeSeriesLimits partition.TimeSeriesLimits
}

// DefaultConfig returns the configuration for a proxy on 127.0.0.1 whose
// port is discovered on connect.
func DefaultConfig(appKey string) Config {
	return Config{
		Client:           client.DefaultConfig(appKey),
		Endpoint:         client.Endpoint{Scheme: "http", Host: "127.0.0.1"},
		Resolver:         endpoint.DefaultConfig(),
		Handshake:        true,
		Dispatch:         fanout.DefaultConfig(),
		DatagridLimits:   partition.DefaultDatagridLimits(),
		TimeSeriesLimits: partition.DefaultTimeSeriesLimits(),
	}
}

// Options select the result form of one request.
type Options struct {
	// Raw returns the contributing chunk bodies instead of a table.
	Raw bool

	// FieldNames labels datagrid columns with field codes rather than
	// display names.
	FieldNames bool
}

// Result holds exactly one of Table or Raw.
type Result struct {
	Table *table.Table
	Raw   []json.RawMessage
}

// IsRaw reports whether the result carries raw chunk bodies.
func (r *Result) IsRaw() bool {
	return r.Raw != nil
}

// DatagridQuery is one logical datagrid request.
type DatagridQuery struct {
	Instruments []string
	Fields      []partition.Field
	Params      map[string]string
}

// TimeSeriesQuery is one logical time-series request.
type TimeSeriesQuery = partition.TimeSeriesRequest

// Session is a connection to one resolved proxy endpoint.
type Session struct {
	client     *client.Client
	dispatcher *fanout.Dispatcher
	config     Config
	logger     zerolog.Logger
}

// Connect creates the transport, resolves the proxy port if none is set,
// optionally performs the handshake and returns a ready Session.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	const op = "eikon.Connect"
	logger := logging.NewLogger("session")

	c, err := client.New(cfg.Client)
	if err != nil {
		return nil, err
	}

	ep := cfg.Endpoint
	if ep.Host == "" {
		return nil, dataerr.New(dataerr.KindInvalid, op, "endpoint host is required")
	}
	if ep.Port == 0 {
		resolver, err := endpoint.New(c, cfg.Resolver)
		if err != nil {
			return nil, err
		}
		if ep, err = resolver.Resolve(ctx, ep); err != nil {
			return nil, err
		}
	}

	if cfg.Handshake {
		if err := c.Handshake(ctx, ep); err != nil {
			return nil, err
		}
	}

	return newSession(c, ep, cfg, logger)
}

func newSession(c *client.Client, ep client.Endpoint, cfg Config, logger zerolog.Logger) (*Session, error) {
	d, err := fanout.New(c, ep, cfg.Dispatch)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("endpoint", ep.String()).
		Bool("handshake", cfg.Handshake).
		Bool("quota_gate", cfg.Dispatch.Gate != nil).
		Msg("Session connected")

	return &Session{
		client:     c,
		dispatcher: d,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Endpoint returns the proxy endpoint the session talks to.
func (s *Session) Endpoint() client.Endpoint {
	return s.dispatcher.Endpoint()
}

// Status probes the proxy the session is connected to.
func (s *Session) Status(ctx context.Context) error {
	return s.client.Status(ctx, s.Endpoint())
}

func (s *Session) now() time.Time {
	if s.config.Dispatch.Clock != nil {
		return s.config.Dispatch.Clock.Now()
	}
	return time.Now()
}

// Datagrid fetches fields for instruments. Parameters such as SDate, EDate
// and Frq apply to every instrument and determine how many instruments fit
// into one call.
func (s *Session) Datagrid(ctx context.Context, q DatagridQuery, opts Options) (*Result, error) {
	const op = "eikon.Datagrid"
	logger := s.requestLogger(wire.DirectionDatagrid)

	chunks, err := partition.Datagrid(q.Instruments, q.Fields, q.Params, s.config.DatagridLimits, s.now())
	if err != nil {
		return nil, err
	}
	payloads := make([]any, len(chunks))
	for i, c := range chunks {
		payloads[i] = c.Payload()
	}
	logger.Debug().
		Int("instruments", len(q.Instruments)).
		Int("fields", len(q.Fields)).
		Int("chunks", len(chunks)).
		Msg("Datagrid partitioned")

	responses, err := s.dispatcher.Dispatch(ctx, wire.DirectionDatagrid, payloads)
	if err != nil {
		return nil, err
	}

	return s.finish(op, logger, responses, opts, func() (*table.Table, error) {
		return reassemble.Datagrid(responses, reassemble.Options{FieldNames: opts.FieldNames})
	})
}

// TimeSeries fetches interval data for instruments between q.Start and
// q.End. Large requests are split by instrument and by time.
func (s *Session) TimeSeries(ctx context.Context, q TimeSeriesQuery, opts Options) (*Result, error) {
	const op = "eikon.TimeSeries"
	logger := s.requestLogger(wire.DirectionTimeSeries)

	chunks, err := partition.TimeSeries(q, s.config.TimeSeriesLimits)
	if err != nil {
		return nil, err
	}
	payloads := make([]any, len(chunks))
	for i, c := range chunks {
		payloads[i] = c.Payload()
	}
	logger.Debug().
		Int("instruments", len(q.Instruments)).
		Str("interval", string(q.Interval)).
		Int("chunks", len(chunks)).
		Msg("Time series partitioned")

	responses, err := s.dispatcher.Dispatch(ctx, wire.DirectionTimeSeries, payloads)
	if err != nil {
		return nil, err
	}

	return s.finish(op, logger, responses, opts, func() (*table.Table, error) {
		return reassemble.TimeSeries(responses)
	})
}

func (s *Session) requestLogger(direction string) zerolog.Logger {
	return s.logger.With().
		Str("request_id", uuid.NewString()).
		Str("direction", direction).
		Logger()
}

// finish turns the contributing responses into a Result.
func (s *Session) finish(op string, logger zerolog.Logger, responses []*wire.Response, opts Options, build func() (*table.Table, error)) (*Result, error) {
	if len(responses) == 0 {
		logger.Warn().Msg("No chunk returned data")
		return nil, dataerr.New(dataerr.KindNoData, op, "no data returned by any chunk")
	}

	if opts.Raw {
		raw := make([]json.RawMessage, len(responses))
		for i, r := range responses {
			raw[i] = r.Raw
		}
		logger.Info().Int("chunks", len(raw)).Msg("Returning raw chunks")
		return &Result{Raw: raw}, nil
	}

	t, err := build()
	if err != nil {
		logger.Warn().Err(err).Str("error_class", string(dataerr.KindOf(err))).Msg("Reassembly failed")
		return nil, err
	}
	logger.Info().
		Int("chunks", len(responses)).
		Int("rows", t.NumRows()).
		Int("columns", t.NumCols()).
		Msg("Request complete")
	return &Result{Table: t}, nil
}
