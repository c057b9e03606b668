package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/Sternrassler/eikon-data-client/internal/testutil"
	"github.com/Sternrassler/eikon-data-client/pkg/config"
	"github.com/Sternrassler/eikon-data-client/pkg/eikon"
	"github.com/Sternrassler/eikon-data-client/pkg/table"
)

const cliKey = "cli-test-key"

// setupProxy starts a mock proxy and points the environment at it.
func setupProxy(t *testing.T) (*testutil.MockProxy, string) {
	t.Helper()
	mock := testutil.NewMockProxy(cliKey)
	t.Cleanup(mock.Close)

	ep := mock.Endpoint()
	t.Setenv(config.EnvAppKey, cliKey)
	t.Setenv(config.EnvHost, ep.Host)
	t.Setenv(config.EnvPort, strconv.Itoa(ep.Port))

	path := filepath.Join(t.TempDir(), "eikon.yaml")
	yaml := "dispatch:\n  launch_interval: 1ms\nlogging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return mock, path
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(t *testing.T, o *options)
	}{
		{
			name: "datagrid",
			args: []string{"-instruments", "AAPL.O, XOM", "-fields", "TR.CLOSE,TR.VOLUME", "-param", "SDate=2024-01-01", "-param", "Frq=D", "-format", "csv", "datagrid"},
			check: func(t *testing.T, o *options) {
				if !slices.Equal(o.instruments, []string{"AAPL.O", "XOM"}) {
					t.Errorf("instruments = %v", o.instruments)
				}
				if !slices.Equal(o.fields, []string{"TR.CLOSE", "TR.VOLUME"}) {
					t.Errorf("fields = %v", o.fields)
				}
				if o.params["SDate"] != "2024-01-01" || o.params["Frq"] != "D" {
					t.Errorf("params = %v", o.params)
				}
				if o.format != "csv" {
					t.Errorf("format = %q, want csv", o.format)
				}
			},
		},
		{
			name: "timeseries defaults",
			args: []string{"-instruments", "US10YT=RR", "-start", "-1Y", "timeseries"},
			check: func(t *testing.T, o *options) {
				if o.interval != "daily" || o.end != "0" || o.format != "text" {
					t.Errorf("options = %+v", o)
				}
				if len(o.fields) != 0 {
					t.Errorf("fields = %v, want none", o.fields)
				}
			},
		},
		{name: "no command", args: []string{"-instruments", "A"}, wantErr: "exactly one command"},
		{name: "unknown command", args: []string{"-instruments", "A", "quotes"}, wantErr: "unknown command"},
		{name: "datagrid without fields", args: []string{"-instruments", "A", "datagrid"}, wantErr: "-fields"},
		{name: "timeseries without start", args: []string{"-instruments", "A", "timeseries"}, wantErr: "-start"},
		{name: "no instruments", args: []string{"-fields", "F", "datagrid"}, wantErr: "-instruments"},
		{name: "bad param", args: []string{"-param", "SDate", "datagrid"}, wantErr: "key=value"},
		{name: "bad format", args: []string{"-instruments", "A", "-fields", "F", "-format", "xml", "datagrid"}, wantErr: "-format"},
		{name: "negative rows", args: []string{"-instruments", "A", "-fields", "F", "-rows", "-1", "datagrid"}, wantErr: "-rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseArgs(tt.args, io.Discard)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("parseArgs() error = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs() error = %v", err)
			}
			tt.check(t, o)
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "A", want: []string{"A"}},
		{in: " A , ,B,", want: []string{"A", "B"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriteResult(t *testing.T) {
	tbl, err := table.New(
		table.Column{Name: "Instrument", Type: table.String, Cells: []table.Cell{table.Str("A"), table.Str("B")}},
		table.Column{Name: "CLOSE", Type: table.Float, Cells: []table.Cell{table.Str("1.5"), table.NullCell()}},
	)
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeResult(&buf, &eikon.Result{Table: tbl}, "csv", 0); err != nil {
			t.Fatalf("writeResult() error = %v", err)
		}
		if want := "Instrument,CLOSE\nA,1.5\nB,\n"; buf.String() != want {
			t.Errorf("csv = %q, want %q", buf.String(), want)
		}
	})

	t.Run("text with row limit", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeResult(&buf, &eikon.Result{Table: tbl}, "text", 1); err != nil {
			t.Fatalf("writeResult() error = %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "Instrument") || strings.Contains(out, "B ") {
			t.Errorf("text = %q, want header and first row only", out)
		}
		if !strings.HasSuffix(out, "(2 rows x 2 columns)\n") {
			t.Errorf("text = %q, want size footer", out)
		}
	})

	t.Run("raw", func(t *testing.T) {
		var buf bytes.Buffer
		res := &eikon.Result{Raw: []json.RawMessage{json.RawMessage(`{"responses": []}`), json.RawMessage(`{"responses":[1]}`)}}
		if err := writeResult(&buf, res, "raw", 0); err != nil {
			t.Fatalf("writeResult() error = %v", err)
		}
		if want := "{\"responses\":[]}\n{\"responses\":[1]}\n"; buf.String() != want {
			t.Errorf("raw = %q, want %q", buf.String(), want)
		}
	})
}

func TestRun_Datagrid(t *testing.T) {
	mock, path := setupProxy(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-config", path, "-instruments", "AAPL.O,XOM", "-fields", "TR.CLOSE", "-format", "csv", "datagrid",
	}, &stdout, &stderr)

	if code != exitOK {
		t.Fatalf("run() = %d, want %d (stderr: %s)", code, exitOK, stderr.String())
	}
	want := "Instrument,TR.CLOSE\nAAPL.O,AAPL.O/TR.CLOSE\nXOM,XOM/TR.CLOSE\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
	if mock.GetHandshakeCount() != 1 || mock.GetDataCount() != 1 {
		t.Errorf("handshakes = %d, data calls = %d, want 1 and 1", mock.GetHandshakeCount(), mock.GetDataCount())
	}
}

func TestRun_TimeSeriesRaw(t *testing.T) {
	_, path := setupProxy(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-config", path, "-instruments", "US10YT=RR", "-start", "2024-01-01", "-end", "2024-02-01", "-format", "raw", "timeseries",
	}, &stdout, &stderr)

	if code != exitOK {
		t.Fatalf("run() = %d, want %d (stderr: %s)", code, exitOK, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"timeseriesData"`) || !strings.Contains(stdout.String(), "US10YT=RR") {
		t.Errorf("stdout = %q, want raw time-series body", stdout.String())
	}
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		setup func(t *testing.T, mock *testutil.MockProxy)
		want  int
	}{
		{name: "usage", args: []string{"datagrid"}, want: exitUsage},
		{name: "help", args: []string{"-h"}, want: exitOK},
		{
			name: "no data",
			args: []string{"-instruments", "A", "-fields", "F", "datagrid"},
			setup: func(t *testing.T, mock *testutil.MockProxy) {
				mock.SetDataHandler(func(string, json.RawMessage) testutil.MockResponse {
					return testutil.MockResponse{Body: `{}`}
				})
			},
			want: exitNoData,
		},
		{
			name: "wrong key",
			args: []string{"-instruments", "A", "-fields", "F", "datagrid"},
			setup: func(t *testing.T, mock *testutil.MockProxy) {
				t.Setenv(config.EnvAppKey, "not-the-key")
			},
			want: exitFailure,
		},
		{
			name: "bad date",
			args: []string{"-instruments", "A", "-start", "yesterday", "timeseries"},
			want: exitUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, path := setupProxy(t)
			if tt.setup != nil {
				tt.setup(t, mock)
			}

			var stdout, stderr bytes.Buffer
			args := append([]string{"-config", path}, tt.args...)
			if got := run(context.Background(), args, &stdout, &stderr); got != tt.want {
				t.Errorf("run() = %d, want %d (stderr: %s)", got, tt.want, stderr.String())
			}
		})
	}
}
