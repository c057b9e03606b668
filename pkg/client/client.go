// Package client is the transport to the local data proxy. It issues one HTTP
// exchange per call, injects the application credential and classifies
// failures. It never retries; retry policy belongs to the dispatcher.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/logging"
	"github.com/Sternrassler/eikon-data-client/pkg/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Proxy API paths.
const (
	PathStatus    = "/api/status"
	PathHandshake = "/api/handshake"
	PathData      = "/api/v1/data"
)

// HeaderAppID carries the application credential on every call.
const HeaderAppID = "x-tr-applicationid"

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eikon_requests_total",
		Help: "Total proxy requests by path and status",
	}, []string{"path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eikon_request_duration_seconds",
		Help:    "Proxy request duration in seconds by path",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"path"})

	transportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eikon_transport_errors_total",
		Help: "Total transport errors by class",
	}, []string{"class"})
)

// Endpoint locates the data proxy. It is a plain value; resolving a port
// produces a new Endpoint rather than mutating a shared one.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// WithPort returns a copy of e on another port.
func (e Endpoint) WithPort(port int) Endpoint {
	e.Port = port
	return e
}

// URL returns the absolute URL of path on e.
func (e Endpoint) URL(path string) string {
	scheme := e.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, e.Host, e.Port, path)
}

func (e Endpoint) String() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// Config holds the transport configuration.
type Config struct {
	// AppKey is the application credential sent with every call (REQUIRED).
	AppKey string

	// Timeout bounds a single data call, including reading the body.
	Timeout time.Duration

	// StatusTimeout bounds a liveness probe.
	StatusTimeout time.Duration
}

// DefaultConfig returns a default configuration for appKey.
func DefaultConfig(appKey string) Config {
	return Config{
		AppKey:        appKey,
		Timeout:       120 * time.Second,
		StatusTimeout: 2 * time.Second,
	}
}

// Client performs single exchanges against the data proxy.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new transport client.
func New(cfg Config) (*Client, error) {
	if cfg.AppKey == "" {
		return nil, dataerr.New(dataerr.KindAuth, "client.New", "app key is required")
	}
	if cfg.Timeout <= 0 {
		return nil, dataerr.New(dataerr.KindInvalid, "client.New", "timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = cfg.Timeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logging.NewLogger("transport"),
	}, nil
}

// AppKey returns the credential the client signs calls with.
func (c *Client) AppKey() string {
	return c.config.AppKey
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Call posts one data request for direction and returns the JSON body.
func (c *Client) Call(ctx context.Context, ep Endpoint, direction string, payload any) (json.RawMessage, error) {
	body, err := c.exchange(ctx, ep, http.MethodPost, PathData, wire.NewEnvelope(direction, payload))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, c.fail(&TransportError{
			Class:      ErrorClassDecode,
			StatusCode: http.StatusOK,
			Endpoint:   ep,
			Path:       PathData,
			Message:    "response body is not JSON",
		})
	}
	return json.RawMessage(body), nil
}

// Status performs the liveness probe. Only HTTP 200 counts as alive.
func (c *Client) Status(ctx context.Context, ep Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.StatusTimeout)
	defer cancel()

	_, err := c.exchange(ctx, ep, http.MethodGet, PathStatus, nil)
	return err
}

type handshakeRequest struct {
	AppKey     string `json:"AppKey"`
	AppScope   string `json:"AppScope"`
	APIVersion string `json:"ApiVersion"`
}

// Handshake validates the credential against the proxy. A rejected credential
// surfaces as an error of kind dataerr.KindAuth.
func (c *Client) Handshake(ctx context.Context, ep Endpoint) error {
	_, err := c.exchange(ctx, ep, http.MethodPost, PathHandshake, handshakeRequest{
		AppKey:     c.config.AppKey,
		AppScope:   "trapi",
		APIVersion: "1",
	})
	if err != nil {
		return err
	}
	c.logger.Info().Str("endpoint", ep.String()).Msg("Handshake accepted")
	return nil
}

// exchange performs one request and returns the body of a 2xx response.
// GET requests carry no body; a 200 is required for them.
func (c *Client) exchange(ctx context.Context, ep Endpoint, method, path string, in any) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	var reqBody io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, c.fail(&TransportError{
				Class: ErrorClassRequest, Endpoint: ep, Path: path,
				Message: "encode payload", Err: err,
			})
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, ep.URL(path), reqBody)
	if err != nil {
		return nil, c.fail(&TransportError{
			Class: ErrorClassRequest, Endpoint: ep, Path: path,
			Message: "create request", Err: err,
		})
	}
	req.Header.Set(HeaderAppID, c.config.AppKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("endpoint", ep.String()).
		Str("method", method).
		Str("path", path).
		Msg("Executing proxy request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, c.fail(c.networkError(ctx, ep, path, "send request", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, c.fail(c.networkError(ctx, ep, path, "read response", err))
	}
	requestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if method == http.MethodGet {
		ok = resp.StatusCode == http.StatusOK
	}
	if !ok {
		return nil, c.fail(&TransportError{
			Class:      ErrorClassStatus,
			StatusCode: resp.StatusCode,
			Endpoint:   ep,
			Path:       path,
			Message:    statusMessage(resp.Status, body),
		})
	}
	return body, nil
}

// networkError distinguishes a dropped connection from the caller giving up.
func (c *Client) networkError(ctx context.Context, ep Endpoint, path, msg string, err error) *TransportError {
	class := ErrorClassNetwork
	if ctxErr := ctx.Err(); ctxErr != nil {
		class = ErrorClassCanceled
		if !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
	}
	return &TransportError{Class: class, Endpoint: ep, Path: path, Message: msg, Err: err}
}

func (c *Client) fail(err *TransportError) error {
	transportErrorsTotal.WithLabelValues(string(err.Class)).Inc()

	event := c.logger.Warn()
	if err.Class == ErrorClassNetwork || err.Class == ErrorClassCanceled {
		event = c.logger.Debug()
	}
	event.
		Str("endpoint", err.Endpoint.String()).
		Str("path", err.Path).
		Int("status", err.StatusCode).
		Str("error_class", string(err.Class)).
		Err(err.Err).
		Msg(err.Message)
	return err
}

// statusMessage keeps a short excerpt of an error body for diagnostics.
func statusMessage(status string, body []byte) string {
	const maxExcerpt = 256
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return status
	}
	if len(body) > maxExcerpt {
		body = append(body[:maxExcerpt:maxExcerpt], "..."...)
	}
	return status + ": " + string(body)
}
