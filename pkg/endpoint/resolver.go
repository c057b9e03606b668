// Package endpoint discovers the port the local data proxy listens on.
package endpoint

import (
	"context"
	"fmt"

	"github.com/Sternrassler/eikon-data-client/pkg/client"
	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "eikon_resolve_probes_total",
	Help: "Total port probes by result",
}, []string{"result"})

// ErrNotFound is returned when no candidate port answers the liveness probe.
var ErrNotFound = dataerr.ErrNotFound

// Prober is the liveness check the resolver needs. *client.Client implements it.
type Prober interface {
	Status(ctx context.Context, ep client.Endpoint) error
}

// Config holds the probe range.
type Config struct {
	// Base is the first candidate port.
	Base int

	// Count is the number of consecutive candidates probed.
	Count int
}

// DefaultConfig returns the proxy's documented range, 9000 through 9009.
func DefaultConfig() Config {
	return Config{Base: 9000, Count: 10}
}

// Resolver probes candidate ports in ascending order.
type Resolver struct {
	prober Prober
	config Config
	logger zerolog.Logger
}

// New creates a Resolver.
func New(prober Prober, cfg Config) (*Resolver, error) {
	if prober == nil {
		return nil, dataerr.New(dataerr.KindInvalid, "endpoint.New", "prober is required")
	}
	if cfg.Base <= 0 || cfg.Count <= 0 || cfg.Base+cfg.Count-1 > 65535 {
		return nil, dataerr.New(dataerr.KindInvalid, "endpoint.New",
			"invalid port range (base=%d, count=%d)", cfg.Base, cfg.Count)
	}
	return &Resolver{
		prober: prober,
		config: cfg,
		logger: logging.NewLogger("resolver"),
	}, nil
}

// Resolve returns base with the first port whose liveness probe succeeds.
// base.Port is ignored. Exhausting the range yields ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, base client.Endpoint) (client.Endpoint, error) {
	last := r.config.Base + r.config.Count - 1

	for port := r.config.Base; port <= last; port++ {
		if err := ctx.Err(); err != nil {
			return client.Endpoint{}, dataerr.Wrap(dataerr.KindConnection, "endpoint.Resolve", err,
				"probing stopped at port %d", port)
		}

		ep := base.WithPort(port)
		err := r.prober.Status(ctx, ep)
		if err == nil {
			probesTotal.WithLabelValues("alive").Inc()
			r.logger.Info().Int("port", port).Str("host", ep.Host).Msg("Data proxy found")
			return ep, nil
		}

		probesTotal.WithLabelValues("dead").Inc()
		r.logger.Debug().Int("port", port).Err(err).Msg("Port probe failed")
	}

	if err := ctx.Err(); err != nil {
		return client.Endpoint{}, dataerr.Wrap(dataerr.KindConnection, "endpoint.Resolve", err, "probing cancelled")
	}
	r.logger.Warn().Int("from", r.config.Base).Int("to", last).Msg("No data proxy found")
	return client.Endpoint{}, dataerr.New(dataerr.KindNotFound, "endpoint.Resolve",
		"no live proxy on %s ports %s", base.Host, portRange(r.config.Base, last))
}

func portRange(from, to int) string {
	if from == to {
		return fmt.Sprint(from)
	}
	return fmt.Sprintf("%d-%d", from, to)
}
