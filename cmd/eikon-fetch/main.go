// Command eikon-fetch runs one datagrid or time-series request against the
// local data proxy and prints the result.
//
//	eikon-fetch -config eikon.yaml -instruments AAPL.O,XOM -fields TR.CLOSE \
//	    -param SDate=2024-01-01 -param Frq=D datagrid
//	eikon-fetch -instruments US10YT=RR -interval daily -start -1Y timeseries
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/config"
	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/eikon"
	"github.com/Sternrassler/eikon-data-client/pkg/logging"
	"github.com/Sternrassler/eikon-data-client/pkg/metrics"
	"github.com/Sternrassler/eikon-data-client/pkg/partition"
	"github.com/Sternrassler/eikon-data-client/pkg/ratelimit"
	"github.com/Sternrassler/eikon-data-client/pkg/table"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	cmdDatagrid   = "datagrid"
	cmdTimeSeries = "timeseries"
)

// Exit codes by error kind.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitNoData  = 3
	exitQuota   = 4
)

// options are the parsed command line.
type options struct {
	command     string
	configPath  string
	instruments []string
	fields      []string
	params      map[string]string
	interval    string
	start       string
	end         string
	calendar    string
	corax       string
	format      string
	fieldNames  bool
	rows        int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "eikon-fetch: %v\n", err)
		return exitUsage
	}

	cfg, err := config.LoadAndValidate(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "eikon-fetch: %v\n", err)
		return exitUsage
	}

	logCfg := cfg.Logger()
	logCfg.Output = stderr
	logging.Setup(logCfg)
	defer logging.Close()
	logger := logging.NewLogger("cli")

	if cfg.Metrics.Port > 0 {
		srv := startMetricsServer(cfg.Metrics, logger)
		defer srv.Close()
	}

	sessionCfg := cfg.Session()
	if cfg.Quota.Enabled {
		redisClient := redis.NewClient(cfg.RedisOptions())
		defer redisClient.Close()

		tracker, err := ratelimit.NewTracker(redisClient, cfg.Proxy.AppKey, cfg.Tracker(), logging.NewLogger("quota"))
		if err != nil {
			return fail(stderr, logger, err)
		}
		if state, err := tracker.GetState(ctx); err == nil {
			logger.Info().
				Int("used", state.Used).
				Int("remaining", state.Remaining()).
				Msg("Daily quota state")
		}
		sessionCfg.Dispatch.Gate = tracker
	}

	session, err := eikon.Connect(ctx, sessionCfg)
	if err != nil {
		return fail(stderr, logger, err)
	}

	res, err := execute(ctx, session, opts)
	if err != nil {
		return fail(stderr, logger, err)
	}

	if err := writeResult(stdout, res, opts.format, opts.rows); err != nil {
		fmt.Fprintf(stderr, "eikon-fetch: write output: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// parseArgs parses flags and the trailing command.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{params: map[string]string{}}

	fs := flag.NewFlagSet("eikon-fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: eikon-fetch [flags] %s|%s\n\nflags:\n", cmdDatagrid, cmdTimeSeries)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	instruments := fs.String("instruments", "", "comma-separated instrument codes")
	fields := fs.String("fields", "", "comma-separated field names (timeseries: empty means all)")
	fs.Func("param", "request parameter key=value (repeatable, datagrid only)", func(s string) error {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return fmt.Errorf("want key=value, got %q", s)
		}
		opts.params[k] = v
		return nil
	})
	fs.StringVar(&opts.interval, "interval", string(partition.IntervalDaily), "time-series interval")
	fs.StringVar(&opts.start, "start", "", "time-series start date (ISO date or offset such as -1Y)")
	fs.StringVar(&opts.end, "end", "0", "time-series end date")
	fs.StringVar(&opts.calendar, "calendar", "", "time-series calendar")
	fs.StringVar(&opts.corax, "corax", "", "time-series corporate action adjustment")
	fs.StringVar(&opts.format, "format", "text", "output format: text, csv or raw")
	fs.BoolVar(&opts.fieldNames, "field-names", false, "label datagrid columns with field codes")
	fs.IntVar(&opts.rows, "rows", 0, "max. rows to print (0 = all)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one command, got %d", fs.NArg())
	}
	opts.command = fs.Arg(0)
	opts.instruments = splitList(*instruments)
	opts.fields = splitList(*fields)

	switch opts.command {
	case cmdDatagrid:
		if len(opts.fields) == 0 {
			return nil, errors.New("datagrid needs -fields")
		}
	case cmdTimeSeries:
		if opts.start == "" {
			return nil, errors.New("timeseries needs -start")
		}
	default:
		return nil, fmt.Errorf("unknown command %q", opts.command)
	}
	if len(opts.instruments) == 0 {
		return nil, errors.New("no -instruments given")
	}
	switch opts.format {
	case "text", "csv", "raw":
	default:
		return nil, fmt.Errorf("unknown -format %q", opts.format)
	}
	if opts.rows < 0 {
		return nil, errors.New("-rows must be >= 0")
	}
	return opts, nil
}

// execute runs the request described by opts.
func execute(ctx context.Context, s *eikon.Session, opts *options) (*eikon.Result, error) {
	ro := eikon.Options{Raw: opts.format == "raw", FieldNames: opts.fieldNames}

	if opts.command == cmdDatagrid {
		return s.Datagrid(ctx, eikon.DatagridQuery{
			Instruments: opts.instruments,
			Fields:      partition.Fields(opts.fields...),
			Params:      opts.params,
		}, ro)
	}

	now := time.Now()
	start, err := partition.ParseDate(opts.start, now)
	if err != nil {
		return nil, dataerr.Wrap(dataerr.KindDate, "eikon-fetch", err, "-start")
	}
	end, err := partition.ParseDate(opts.end, now)
	if err != nil {
		return nil, dataerr.Wrap(dataerr.KindDate, "eikon-fetch", err, "-end")
	}
	return s.TimeSeries(ctx, eikon.TimeSeriesQuery{
		Instruments: opts.instruments,
		Fields:      opts.fields,
		Interval:    partition.Interval(opts.interval),
		Start:       start,
		End:         end,
		Calendar:    opts.calendar,
		Corax:       opts.corax,
	}, ro)
}

// writeResult prints a result in the requested format.
func writeResult(w io.Writer, res *eikon.Result, format string, rows int) error {
	if res.IsRaw() {
		enc := json.NewEncoder(w)
		for _, raw := range res.Raw {
			if err := enc.Encode(raw); err != nil {
				return err
			}
		}
		return nil
	}

	p := table.Params{Rows: rows}
	if format == "csv" {
		return res.Table.WriteCSV(w, p)
	}
	p.MaxColWidth = 40
	if err := res.Table.WriteText(w, p); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows x %d columns)\n", res.Table.NumRows(), res.Table.NumCols())
	return err
}

// fail logs err and maps its kind to an exit code.
func fail(stderr io.Writer, logger zerolog.Logger, err error) int {
	kind := dataerr.KindOf(err)
	logger.Error().Err(err).Str("error_class", string(kind)).Msg("Request failed")
	fmt.Fprintf(stderr, "eikon-fetch: %v\n", err)

	switch kind {
	case dataerr.KindNoData, dataerr.KindNoHeaders:
		return exitNoData
	case dataerr.KindQuota:
		return exitQuota
	case dataerr.KindInvalid, dataerr.KindDate:
		return exitUsage
	default:
		return exitFailure
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func startMetricsServer(cfg config.MetricsConfig, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler())
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Msg("Metrics server failed")
		}
	}()
	logger.Info().Int("port", cfg.Port).Str("path", cfg.Path).Msg("Serving metrics")
	return srv
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
