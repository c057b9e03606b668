//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/eikon-data-client/internal/testutil"
	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/eikon"
	"github.com/Sternrassler/eikon-data-client/pkg/metrics"
	"github.com/Sternrassler/eikon-data-client/pkg/partition"
	"github.com/Sternrassler/eikon-data-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const appKey = "integration-app-key"

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// sessionConfig targets mock with two instruments per datagrid call and
// millisecond pacing and backoff.
func sessionConfig(mock *testutil.MockProxy) eikon.Config {
	cfg := eikon.DefaultConfig(appKey)
	cfg.Endpoint = mock.Endpoint()
	cfg.Dispatch.LaunchInterval = time.Millisecond
	cfg.Dispatch.Retry.InitialBackoff = time.Millisecond
	cfg.Dispatch.Retry.MaxBackoff = 5 * time.Millisecond
	cfg.DatagridLimits = partition.DatagridLimits{MaxRows: 50000, MaxInstruments: 2}
	return cfg
}

func newTracker(t *testing.T, rc *redis.Client, cfg ratelimit.Config) *ratelimit.Tracker {
	t.Helper()
	tracker, err := ratelimit.NewTracker(rc, appKey, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	return tracker
}

func query(n int) eikon.DatagridQuery {
	inst := []string{"AAPL.O", "XOM", "GME", "MSFT.O", "IBM.N", "KO.N", "PEP.O", "T.N"}
	return eikon.DatagridQuery{
		Instruments: inst[:n],
		Fields:      partition.Fields("TR.CLOSE", "TR.VOLUME"),
		Params:      map[string]string{"SDate": "2024-01-01", "EDate": "2024-03-31", "Frq": "D"},
	}
}

func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockProxy(appKey)
	defer mock.Close()

	tracker := newTracker(t, redisClient, ratelimit.DefaultConfig())
	cfg := sessionConfig(mock)
	cfg.Dispatch.Gate = tracker

	ctx := context.Background()
	session, err := eikon.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	res, err := session.Datagrid(ctx, query(5), eikon.Options{})
	if err != nil {
		t.Fatalf("Datagrid() error = %v", err)
	}

	if res.Table.NumRows() != 5 {
		t.Errorf("NumRows() = %d, want 5", res.Table.NumRows())
	}
	if mock.GetDataCount() != 3 {
		t.Errorf("data calls = %d, want 3", mock.GetDataCount())
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Used != 3 {
		t.Errorf("quota used = %d, want 3", state.Used)
	}
}

func TestQuotaBlock(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockProxy(appKey)
	defer mock.Close()

	qcfg := ratelimit.DefaultConfig()
	qcfg.DailyLimit = 4
	qcfg.Thresholds = ratelimit.Thresholds{Critical: 2, Warning: 2}
	tracker := newTracker(t, redisClient, qcfg)

	cfg := sessionConfig(mock)
	cfg.Dispatch.MaxConcurrency = 1
	cfg.Dispatch.Gate = tracker

	ctx := context.Background()
	session, err := eikon.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	_, err = session.Datagrid(ctx, query(8), eikon.Options{})
	if !errors.Is(err, dataerr.ErrQuota) {
		t.Fatalf("Datagrid() error = %v, want ErrQuota", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Used != 2 {
		t.Errorf("quota used = %d, want 2", state.Used)
	}
	if got := mock.GetDataCount(); got > 2 {
		t.Errorf("data calls = %d, want at most 2", got)
	}
}

func TestRetryDroppedConnections(t *testing.T) {
	mock := testutil.NewMockProxy(appKey)
	defer mock.Close()

	var calls atomic.Int32
	mock.SetDataHandler(func(direction string, payload json.RawMessage) testutil.MockResponse {
		if calls.Add(1) <= 2 {
			return testutil.MockResponse{Drop: true}
		}
		return testutil.EchoData(direction, payload)
	})

	ctx := context.Background()
	session, err := eikon.Connect(ctx, sessionConfig(mock))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	res, err := session.Datagrid(ctx, query(1), eikon.Options{})
	if err != nil {
		t.Fatalf("Datagrid() error = %v", err)
	}
	if res.Table.NumRows() != 1 {
		t.Errorf("NumRows() = %d, want 1", res.Table.NumRows())
	}
	if got := mock.GetDataCount(); got != 3 {
		t.Errorf("data calls = %d, want 3 (two dropped, one answered)", got)
	}
}

func TestNoRetryStatusErrors(t *testing.T) {
	mock := testutil.NewMockProxy(appKey)
	defer mock.Close()

	mock.SetDataHandler(func(string, json.RawMessage) testutil.MockResponse {
		return testutil.MockResponse{StatusCode: 503, Body: `{"ErrorMessage":"backend unavailable"}`}
	})

	ctx := context.Background()
	session, err := eikon.Connect(ctx, sessionConfig(mock))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	_, err = session.Datagrid(ctx, query(1), eikon.Options{})
	if !errors.Is(err, dataerr.ErrConnection) {
		t.Fatalf("Datagrid() error = %v, want ErrConnection", err)
	}
	if got := mock.GetDataCount(); got != 1 {
		t.Errorf("data calls = %d, want 1", got)
	}
}

func TestEndpointResolution(t *testing.T) {
	mock := testutil.NewMockProxy(appKey)
	defer mock.Close()

	cfg := sessionConfig(mock)
	cfg.Resolver.Base = mock.Endpoint().Port
	cfg.Resolver.Count = 1
	cfg.Endpoint.Port = 0

	ctx := context.Background()

	mock.SetDown(true)
	if _, err := eikon.Connect(ctx, cfg); !errors.Is(err, dataerr.ErrNotFound) {
		t.Fatalf("Connect() with proxy down error = %v, want ErrNotFound", err)
	}

	mock.SetDown(false)
	session, err := eikon.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if session.Endpoint().Port != mock.Endpoint().Port {
		t.Errorf("resolved port = %d, want %d", session.Endpoint().Port, mock.Endpoint().Port)
	}
}

func TestMetricsIncremented(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockProxy(appKey)
	defer mock.Close()

	cfg := sessionConfig(mock)
	cfg.Dispatch.Gate = newTracker(t, redisClient, ratelimit.DefaultConfig())

	ctx := context.Background()
	session, err := eikon.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := session.Datagrid(ctx, query(3), eikon.Options{}); err != nil {
		t.Fatalf("Datagrid() error = %v", err)
	}

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Result().Body)
	out := string(body)

	for _, name := range []string{
		`eikon_requests_total{path="/api/v1/data",status="200"}`,
		`eikon_chunks_total{direction="DataGrid_StandardAsync",outcome="data"}`,
		"eikon_dispatch_duration_seconds",
		"eikon_quota_remaining",
	} {
		if !strings.Contains(out, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
