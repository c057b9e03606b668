package partition

import (
	"math"
	"strings"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/wire"
)

// Interval is a time-series sampling interval.
type Interval string

const (
	IntervalTick      Interval = "tick"
	IntervalMinute    Interval = "minute"
	IntervalHour      Interval = "hour"
	IntervalDaily     Interval = "daily"
	IntervalWeekly    Interval = "weekly"
	IntervalMonthly   Interval = "monthly"
	IntervalQuarterly Interval = "quarterly"
	IntervalYearly    Interval = "yearly"
)

// ParseInterval validates an interval name (case-insensitive).
func ParseInterval(s string) (Interval, error) {
	switch i := Interval(strings.ToLower(strings.TrimSpace(s))); i {
	case IntervalTick, IntervalMinute, IntervalHour, IntervalDaily,
		IntervalWeekly, IntervalMonthly, IntervalQuarterly, IntervalYearly:
		return i, nil
	default:
		return "", dataerr.New(dataerr.KindInvalid, "partition.ParseInterval", "unknown interval %q", s)
	}
}

// TimeSeriesLimits holds the time-series caps and the row-estimate tuning
// constants. The constants are empirical, not service limits.
type TimeSeriesLimits struct {
	MaxRows            int
	MaxCompanies       int
	TradingDaysPerYear float64
	DaysPerYear        float64
	IntradayDivisor    float64
}

// DefaultTimeSeriesLimits returns the defaults used against the desktop proxy.
func DefaultTimeSeriesLimits() TimeSeriesLimits {
	return TimeSeriesLimits{
		MaxRows:            3000,
		MaxCompanies:       300,
		TradingDaysPerYear: 252,
		DaysPerYear:        365,
		IntradayDivisor:    2,
	}
}

func (l TimeSeriesLimits) validate(op string) error {
	if l.MaxRows <= 0 || l.MaxCompanies <= 0 {
		return dataerr.New(dataerr.KindInvalid, op,
			"limits must be positive (max_rows=%d, max_companies=%d)", l.MaxRows, l.MaxCompanies)
	}
	if l.DaysPerYear <= 0 || l.IntradayDivisor <= 0 || l.TradingDaysPerYear <= 0 {
		return dataerr.New(dataerr.KindInvalid, op, "row estimate constants must be positive")
	}
	return nil
}

// EstimateRows estimates the rows one instrument yields over span.
func EstimateRows(interval Interval, span time.Duration, l TimeSeriesLimits) float64 {
	days := span.Hours() / 24
	switch interval {
	case IntervalTick, IntervalMinute:
		// No tick estimate exists; minute density is the closest proxy.
		return span.Minutes() / l.IntradayDivisor
	case IntervalHour:
		return span.Hours() / l.IntradayDivisor
	case IntervalDaily:
		return days * l.TradingDaysPerYear / l.DaysPerYear
	case IntervalWeekly:
		return days / 7
	case IntervalMonthly:
		return days * 12 / l.DaysPerYear
	case IntervalQuarterly:
		return days * 4 / l.DaysPerYear
	case IntervalYearly:
		return days / l.DaysPerYear
	default:
		return 0
	}
}

// TimeGroups returns how many sub-intervals the span must be cut into so that
// rowsPerInstrument/groups * instruments stays within maxRows.
func TimeGroups(rowsPerInstrument float64, instruments, maxRows int) int {
	if rowsPerInstrument <= 0 || instruments <= 0 || maxRows <= 0 {
		return 1
	}
	n := int(math.Ceil(rowsPerInstrument * float64(instruments) / float64(maxRows)))
	return max(n, 1)
}

// Span is a time sub-interval. Consecutive spans share their boundary.
type Span struct {
	Start time.Time
	End   time.Time
}

// SplitSpan cuts [start, end] into at most n contiguous spans at whole-second
// boundaries. The last span always ends exactly at end.
func SplitSpan(start, end time.Time, n int) []Span {
	if n < 1 {
		n = 1
	}
	total := end.Sub(start)
	spans := make([]Span, 0, n)
	prev := start
	for i := 1; i <= n; i++ {
		b := end
		if i < n {
			off := time.Duration(float64(total) * float64(i) / float64(n))
			b = start.Add(off).Truncate(time.Second)
		}
		if !b.After(prev) {
			continue
		}
		spans = append(spans, Span{Start: prev, End: b})
		prev = b
	}
	if len(spans) == 0 {
		return []Span{{Start: start, End: end}}
	}
	return spans
}

// TimeSeriesRequest is one logical time-series request.
type TimeSeriesRequest struct {
	Instruments []string
	Fields      []string // empty means all fields ("*")
	Interval    Interval
	Start       time.Time
	End         time.Time
	Calendar    string
	Corax       string
}

// TimeSeriesChunk is one physical time-series call.
type TimeSeriesChunk struct {
	Instruments []string
	Fields      []string
	Interval    Interval
	Span        Span
	Calendar    string
	Corax       string
}

// Payload returns the W value of the call envelope.
func (c TimeSeriesChunk) Payload() wire.TimeSeriesPayload {
	return wire.TimeSeriesPayload{
		Rics:      c.Instruments,
		Fields:    c.Fields,
		Interval:  string(c.Interval),
		StartDate: c.Span.Start.UTC().Format(wire.TimeLayout),
		EndDate:   c.Span.End.UTC().Format(wire.TimeLayout),
		Calendar:  c.Calendar,
		Corax:     c.Corax,
	}
}

// TimeSeries partitions a request into instrument chunks of at most
// MaxCompanies crossed with equal time sub-intervals, instrument-major.
func TimeSeries(req TimeSeriesRequest, limits TimeSeriesLimits) ([]TimeSeriesChunk, error) {
	const op = "partition.TimeSeries"
	if err := limits.validate(op); err != nil {
		return nil, err
	}
	if len(req.Instruments) == 0 {
		return nil, dataerr.New(dataerr.KindInvalid, op, "no instruments")
	}
	interval, err := ParseInterval(string(req.Interval))
	if err != nil {
		return nil, err
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, dataerr.New(dataerr.KindDate, op, "start and end dates are required")
	}
	if req.End.Before(req.Start) {
		return nil, dataerr.New(dataerr.KindDate, op, "end %s is before start %s",
			req.End.Format(wire.TimeLayout), req.Start.Format(wire.TimeLayout))
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = []string{"*"}
	}

	perChunk := min(limits.MaxCompanies, len(req.Instruments))
	rows := EstimateRows(interval, req.End.Sub(req.Start), limits)
	spans := SplitSpan(req.Start, req.End, TimeGroups(rows, perChunk, limits.MaxRows))

	chunks := make([]TimeSeriesChunk, 0, ceilDiv(len(req.Instruments), perChunk)*len(spans))
	for lo := 0; lo < len(req.Instruments); lo += perChunk {
		hi := min(lo+perChunk, len(req.Instruments))
		for _, span := range spans {
			chunks = append(chunks, TimeSeriesChunk{
				Instruments: append([]string(nil), req.Instruments[lo:hi]...),
				Fields:      append([]string(nil), fields...),
				Interval:    interval,
				Span:        span,
				Calendar:    req.Calendar,
				Corax:       req.Corax,
			})
		}
	}
	return chunks, nil
}
