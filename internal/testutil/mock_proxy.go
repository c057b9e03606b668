// Package testutil provides testing utilities for the data client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/client"
	"github.com/Sternrassler/eikon-data-client/pkg/wire"
)

// MockResponse defines the behavior for one mock proxy response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration

	// Drop closes the connection without answering.
	Drop bool
}

// DataHandler answers one data call. payload is the raw W value.
type DataHandler func(direction string, payload json.RawMessage) MockResponse

// MockProxy is a configurable mock of the desktop data proxy.
//
// By default it accepts only its own application key, answers status and
// handshake probes, and echoes every data call with a synthetic result
// covering exactly the requested instruments (see EchoData).
type MockProxy struct {
	server *httptest.Server
	appKey string

	mu          sync.RWMutex
	dataHandler DataHandler
	down        bool

	// Tracking
	StatusCount       int
	HandshakeCount    int
	DataCount         int
	Directions        []string
	Payloads          []json.RawMessage
	LastRequestHeader http.Header
}

// NewMockProxy starts a mock proxy that accepts appKey. An empty appKey
// accepts any key.
func NewMockProxy(appKey string) *MockProxy {
	mock := &MockProxy{
		appKey:      appKey,
		dataHandler: EchoData,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+client.PathStatus, mock.handleStatus)
	mux.HandleFunc("POST "+client.PathHandshake, mock.handleHandshake)
	mux.HandleFunc("POST "+client.PathData, mock.handleData)
	mock.server = httptest.NewServer(mux)
	return mock
}

// URL returns the mock server URL.
func (m *MockProxy) URL() string {
	return m.server.URL
}

// Endpoint returns the mock server as a client endpoint.
func (m *MockProxy) Endpoint() client.Endpoint {
	host, port, err := net.SplitHostPort(m.server.Listener.Addr().String())
	if err != nil {
		panic(fmt.Sprintf("testutil: listener address: %v", err))
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		panic(fmt.Sprintf("testutil: listener port: %v", err))
	}
	return client.Endpoint{Host: host, Port: p}
}

// Close shuts down the mock server.
func (m *MockProxy) Close() {
	m.server.Close()
}

// SetDataHandler replaces the data call handler.
func (m *MockProxy) SetDataHandler(h DataHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataHandler = h
}

// SetDown makes status probes fail with 503 while down is true.
func (m *MockProxy) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// GetDataCount returns the number of data calls received.
func (m *MockProxy) GetDataCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.DataCount
}

// GetStatusCount returns the number of status probes received.
func (m *MockProxy) GetStatusCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.StatusCount
}

// GetHandshakeCount returns the number of handshakes received.
func (m *MockProxy) GetHandshakeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.HandshakeCount
}

// GetDirections returns a copy of the data call directions, in arrival order.
func (m *MockProxy) GetDirections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Directions...)
}

// GetPayloads returns a copy of the W values received, in arrival order.
func (m *MockProxy) GetPayloads() []json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]json.RawMessage, len(m.Payloads))
	copy(out, m.Payloads)
	return out
}

func (m *MockProxy) authorized(r *http.Request) bool {
	return m.appKey == "" || r.Header.Get(client.HeaderAppID) == m.appKey
}

func (m *MockProxy) handleStatus(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.StatusCount++
	m.LastRequestHeader = r.Header.Clone()
	down := m.down
	m.mu.Unlock()

	switch {
	case down:
		http.Error(w, "proxy starting", http.StatusServiceUnavailable)
	case !m.authorized(r):
		http.Error(w, "unknown application id", http.StatusUnauthorized)
	default:
		writeJSON(w, http.StatusOK, `{"statusCode":"ST_PROXY_READY","version":"mock"}`)
	}
}

func (m *MockProxy) handleHandshake(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.HandshakeCount++
	m.LastRequestHeader = r.Header.Clone()
	m.mu.Unlock()

	var req struct {
		AppKey     string
		AppScope   string
		ApiVersion string
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad handshake body", http.StatusBadRequest)
		return
	}
	if m.appKey != "" && req.AppKey != m.appKey {
		http.Error(w, "invalid application key", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, `{"access_token":"mock-token","expires_in":604800,"token_type":"bearer"}`)
}

func (m *MockProxy) handleData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var env struct {
		Entity struct {
			E string          `json:"E"`
			W json.RawMessage `json:"W"`
		} `json:"Entity"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		http.Error(w, "bad envelope", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.DataCount++
	m.LastRequestHeader = r.Header.Clone()
	m.Directions = append(m.Directions, env.Entity.E)
	m.Payloads = append(m.Payloads, env.Entity.W)
	handler := m.dataHandler
	m.mu.Unlock()

	if !m.authorized(r) {
		http.Error(w, "unknown application id", http.StatusUnauthorized)
		return
	}

	resp := handler(env.Entity.E, env.Entity.W)
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if resp.Drop {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// EchoData answers datagrid calls with one row per requested instrument and
// time-series calls with one point per requested instrument. Every cell is
// derived from the request, so callers can check which chunk produced it.
func EchoData(direction string, payload json.RawMessage) MockResponse {
	switch direction {
	case wire.DirectionDatagrid:
		var p wire.DatagridPayload
		if err := json.Unmarshal(payload, &p); err != nil || len(p.Requests) == 0 {
			return MockResponse{StatusCode: http.StatusBadRequest, Body: `{"ErrorMessage":"bad payload"}`}
		}
		fields := make([]string, len(p.Requests[0].Fields))
		for i, f := range p.Requests[0].Fields {
			fields[i] = f.Name
		}
		return MockResponse{Body: DatagridBody(p.Requests[0].Instruments, fields)}

	case wire.DirectionTimeSeries:
		var p wire.TimeSeriesPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return MockResponse{StatusCode: http.StatusBadRequest, Body: `{"ErrorMessage":"bad payload"}`}
		}
		return MockResponse{Body: TimeSeriesBody(p.Rics, p.StartDate)}

	default:
		return MockResponse{Body: `{"ErrorMessage":"unknown direction"}`}
	}
}

// DatagridBody builds a datagrid response with an Instrument column followed
// by one column per field. Cell values are "<instrument>/<field>".
func DatagridBody(instruments, fields []string) string {
	headers := make([]wire.Header, 0, len(fields)+1)
	headers = append(headers, wire.Header{DisplayName: "Instrument"})
	for _, f := range fields {
		headers = append(headers, wire.Header{DisplayName: f, Field: f})
	}

	rows := make([][]string, len(instruments))
	for i, inst := range instruments {
		row := make([]string, 0, len(fields)+1)
		row = append(row, inst)
		for _, f := range fields {
			row = append(row, inst+"/"+f)
		}
		rows[i] = row
	}

	body, _ := json.Marshal(map[string]any{
		"responses": []map[string]any{{
			"headers":        [][]wire.Header{headers},
			"data":           rows,
			"totalRowsCount": len(rows),
		}},
	})
	return string(body)
}

// TimeSeriesBody builds a time-series response with one TIMESTAMP/CLOSE
// point per ric, stamped at start.
func TimeSeriesBody(rics []string, start string) string {
	entries := make([]map[string]any, len(rics))
	for i, ric := range rics {
		entries[i] = map[string]any{
			"ric":        ric,
			"statusCode": "Normal",
			"fields": []wire.TimeSeriesField{
				{Name: "TIMESTAMP", Type: "DateTime"},
				{Name: "CLOSE", Type: "Double"},
			},
			"dataPoints": [][]any{{start, float64(i) + 0.5}},
		}
	}
	body, _ := json.Marshal(map[string]any{"timeseriesData": entries})
	return string(body)
}
