package partition

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
)

func TestParseInterval(t *testing.T) {
	for _, s := range []string{"daily", "Daily", " MINUTE ", "tick", "yearly"} {
		if _, err := ParseInterval(s); err != nil {
			t.Errorf("ParseInterval(%q) error = %v", s, err)
		}
	}
	if _, err := ParseInterval("fortnightly"); !errors.Is(err, dataerr.ErrInvalid) {
		t.Errorf("ParseInterval(fortnightly) error = %v, want ErrInvalid", err)
	}
}

func TestEstimateRows(t *testing.T) {
	l := DefaultTimeSeriesLimits()
	year := 365 * 24 * time.Hour

	tests := []struct {
		interval Interval
		span     time.Duration
		want     float64
	}{
		{interval: IntervalDaily, span: year, want: 252},
		{interval: IntervalWeekly, span: 70 * 24 * time.Hour, want: 10},
		{interval: IntervalMonthly, span: year, want: 12},
		{interval: IntervalQuarterly, span: year, want: 4},
		{interval: IntervalYearly, span: 2 * year, want: 2},
		{interval: IntervalHour, span: 10 * time.Hour, want: 5},
		{interval: IntervalMinute, span: time.Hour, want: 30},
		{interval: IntervalTick, span: time.Hour, want: 30},
		{interval: IntervalDaily, span: 0, want: 0},
	}
	for _, tt := range tests {
		got := EstimateRows(tt.interval, tt.span, l)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EstimateRows(%s, %v) = %v, want %v", tt.interval, tt.span, got, tt.want)
		}
	}
}

func TestTimeGroups(t *testing.T) {
	tests := []struct {
		name        string
		rows        float64
		instruments int
		want        int
	}{
		{name: "fits", rows: 1000, instruments: 3, want: 1},
		{name: "exact", rows: 10, instruments: 300, want: 1},
		{name: "rounds up", rows: 10.5, instruments: 300, want: 2},
		{name: "large", rows: 1000, instruments: 300, want: 100},
		{name: "zero estimate", rows: 0, instruments: 300, want: 1},
		{name: "negative estimate", rows: -5, instruments: 300, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeGroups(tt.rows, tt.instruments, 3000); got != tt.want {
				t.Errorf("TimeGroups() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSplitSpan(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		n    int
		want []time.Duration // span end offsets from start
	}{
		{name: "single", end: start.Add(time.Hour), n: 1, want: []time.Duration{time.Hour}},
		{
			name: "truncated to seconds",
			end:  start.Add(10 * time.Second),
			n:    3,
			want: []time.Duration{3 * time.Second, 6 * time.Second, 10 * time.Second},
		},
		{
			name: "more groups than seconds",
			end:  start.Add(time.Second),
			n:    5,
			want: []time.Duration{time.Second},
		},
		{name: "empty span", end: start, n: 4, want: []time.Duration{0}},
		{name: "non-positive n", end: start.Add(time.Minute), n: 0, want: []time.Duration{time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := SplitSpan(start, tt.end, tt.n)
			if len(spans) != len(tt.want) {
				t.Fatalf("len(spans) = %d, want %d: %v", len(spans), len(tt.want), spans)
			}
			for i, s := range spans {
				if got := s.End.Sub(start); got != tt.want[i] {
					t.Errorf("spans[%d].End = +%v, want +%v", i, got, tt.want[i])
				}
			}
			assertCover(t, spans, start, tt.end)
		})
	}
}

func TestTimeSeries_CoverAndCrossProduct(t *testing.T) {
	start := time.Date(2014, 3, 7, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		instruments int
		interval    Interval
		end         time.Time
	}{
		{name: "daily ten years", instruments: 300, interval: IntervalDaily, end: start.AddDate(10, 0, 0)},
		{name: "daily few instruments", instruments: 2, interval: IntervalDaily, end: start.AddDate(10, 0, 0)},
		{name: "minute one week", instruments: 750, interval: IntervalMinute, end: start.AddDate(0, 0, 7)},
		{name: "hourly odd span", instruments: 301, interval: IntervalHour, end: start.Add(1234567 * time.Second)},
		{name: "monthly", instruments: 40, interval: IntervalMonthly, end: start.AddDate(30, 0, 0)},
		{name: "empty span", instruments: 10, interval: IntervalDaily, end: start},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := DefaultTimeSeriesLimits()
			req := TimeSeriesRequest{
				Instruments: instruments(tt.instruments),
				Fields:      []string{"TIMESTAMP", "CLOSE"},
				Interval:    tt.interval,
				Start:       start,
				End:         tt.end,
			}

			chunks, err := TimeSeries(req, limits)
			if err != nil {
				t.Fatalf("TimeSeries() error = %v", err)
			}

			perChunk := min(limits.MaxCompanies, tt.instruments)
			instrumentChunks := (tt.instruments + perChunk - 1) / perChunk
			if len(chunks)%instrumentChunks != 0 {
				t.Fatalf("len(chunks) = %d is not a multiple of %d instrument chunks", len(chunks), instrumentChunks)
			}
			spansPerGroup := len(chunks) / instrumentChunks

			rows := EstimateRows(tt.interval, tt.end.Sub(start), limits)
			if want := TimeGroups(rows, perChunk, limits.MaxRows); spansPerGroup > want {
				t.Errorf("spans per instrument chunk = %d, want at most %d", spansPerGroup, want)
			}

			for g := 0; g < instrumentChunks; g++ {
				group := chunks[g*spansPerGroup : (g+1)*spansPerGroup]
				spans := make([]Span, len(group))
				for i, c := range group {
					if len(c.Instruments) > limits.MaxCompanies {
						t.Errorf("chunk has %d instruments, cap %d", len(c.Instruments), limits.MaxCompanies)
					}
					if c.Instruments[0] != group[0].Instruments[0] {
						t.Fatalf("chunk %d mixes instrument groups", g*spansPerGroup+i)
					}
					spans[i] = c.Span
				}
				sort.Slice(spans, func(i, j int) bool { return spans[i].Start.Before(spans[j].Start) })
				assertCover(t, spans, start, tt.end)
			}
		})
	}
}

func TestTimeSeries_RowCap(t *testing.T) {
	limits := DefaultTimeSeriesLimits()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	req := TimeSeriesRequest{
		Instruments: instruments(300),
		Interval:    IntervalDaily,
		Start:       start,
		End:         start.AddDate(4, 0, 0),
	}

	chunks, err := TimeSeries(req, limits)
	if err != nil {
		t.Fatalf("TimeSeries() error = %v", err)
	}
	for _, c := range chunks {
		est := EstimateRows(c.Interval, c.Span.End.Sub(c.Span.Start), limits) * float64(len(c.Instruments))
		// Whole-second truncation can push a span a hair past the even split.
		if est > float64(limits.MaxRows)*1.01 {
			t.Errorf("chunk %v estimates %.0f rows, cap %d", c.Span, est, limits.MaxRows)
		}
	}
	if got := chunks[0].Fields; len(got) != 1 || got[0] != "*" {
		t.Errorf("Fields = %v, want [*]", got)
	}
}

func TestTimeSeries_Invalid(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := TimeSeriesRequest{
		Instruments: []string{"AAA"},
		Interval:    IntervalDaily,
		Start:       start,
		End:         start.AddDate(0, 1, 0),
	}

	tests := []struct {
		name    string
		mutate  func(*TimeSeriesRequest)
		limits  TimeSeriesLimits
		wantErr error
	}{
		{name: "no instruments", mutate: func(r *TimeSeriesRequest) { r.Instruments = nil }, wantErr: dataerr.ErrInvalid},
		{name: "bad interval", mutate: func(r *TimeSeriesRequest) { r.Interval = "hourly" }, wantErr: dataerr.ErrInvalid},
		{name: "missing start", mutate: func(r *TimeSeriesRequest) { r.Start = time.Time{} }, wantErr: dataerr.ErrDate},
		{name: "end before start", mutate: func(r *TimeSeriesRequest) { r.End = start.Add(-time.Hour) }, wantErr: dataerr.ErrDate},
		{name: "zero limits", mutate: func(*TimeSeriesRequest) {}, limits: TimeSeriesLimits{}, wantErr: dataerr.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			limits := tt.limits
			if limits == (TimeSeriesLimits{}) && tt.name != "zero limits" {
				limits = DefaultTimeSeriesLimits()
			}
			if _, err := TimeSeries(req, limits); !errors.Is(err, tt.wantErr) {
				t.Errorf("TimeSeries() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeSeriesChunk_Payload(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	chunks, err := TimeSeries(TimeSeriesRequest{
		Instruments: []string{"AAA", "BBB"},
		Fields:      []string{"CLOSE"},
		Interval:    "Daily",
		Start:       start,
		End:         start.AddDate(0, 0, 31),
		Calendar:    "tradingdays",
	}, DefaultTimeSeriesLimits())
	if err != nil {
		t.Fatalf("TimeSeries() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}

	got, err := json.Marshal(chunks[0].Payload())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"rics":["AAA","BBB"],"fields":["CLOSE"],"interval":"daily","startdate":"2024-01-01T00:00:00","enddate":"2024-02-01T00:00:00","calendar":"tradingdays"}`
	if string(got) != want {
		t.Errorf("Payload() =\n%s\nwant\n%s", got, want)
	}
}

func assertCover(t *testing.T, spans []Span, start, end time.Time) {
	t.Helper()
	if len(spans) == 0 {
		t.Fatal("no spans")
	}
	if !spans[0].Start.Equal(start) {
		t.Errorf("first span starts at %v, want %v", spans[0].Start, start)
	}
	if !spans[len(spans)-1].End.Equal(end) {
		t.Errorf("last span ends at %v, want %v", spans[len(spans)-1].End, end)
	}
	for i := 1; i < len(spans); i++ {
		if !spans[i-1].End.Equal(spans[i].Start) {
			t.Errorf("gap or overlap between span %d (%v) and %d (%v)", i-1, spans[i-1].End, i, spans[i].Start)
		}
		if !spans[i].End.After(spans[i].Start) {
			t.Errorf("span %d is empty", i)
		}
	}
}
