// Package partition splits a logical request into physical chunks that respect
// the service's per-call row and instrument caps.
//
// Everything here is a pure function of its inputs. Wall-clock time enters
// only through explicit "now" arguments.
package partition

import (
	"maps"
	"strings"
	"time"

	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/wire"
)

// Datagrid parameter keys that drive the row estimate.
const (
	ParamStartDate = "SDate"
	ParamEndDate   = "EDate"
	ParamFrequency = "Frq"
)

// DatagridLimits are the per-call caps for datagrid requests.
type DatagridLimits struct {
	MaxRows        int
	MaxInstruments int
}

// DefaultDatagridLimits returns the service's documented datagrid caps.
func DefaultDatagridLimits() DatagridLimits {
	return DatagridLimits{
		MaxRows:        50000,
		MaxInstruments: 7000,
	}
}

func (l DatagridLimits) validate(op string) error {
	if l.MaxRows <= 0 || l.MaxInstruments <= 0 {
		return dataerr.New(dataerr.KindInvalid, op,
			"limits must be positive (max_rows=%d, max_instruments=%d)", l.MaxRows, l.MaxInstruments)
	}
	return nil
}

// Frequency codes grouped by the number of rows they yield per year.
var (
	monthlyFrequencies = map[string]bool{
		"m": true, "am": true, "fs": true, "fh": true, "fq": true, "aq": true,
		"q": true, "cm": true, "ch": true, "cs": true, "cq": true,
	}
	yearlyFrequencies = map[string]bool{
		"y": true, "fy": true, "ay": true, "f": true, "cy": true,
	}
)

// RowsPerInstrument estimates how many rows one instrument yields over a span
// of the given number of days at frequency frq. The result is at least 1.
func RowsPerInstrument(frq string, spanDays int) int {
	if spanDays < 0 {
		spanDays = -spanDays
	}
	var rows int
	switch f := strings.ToLower(frq); {
	case monthlyFrequencies[f]:
		rows = ceilDiv(spanDays*12, 365)
	case yearlyFrequencies[f]:
		rows = ceilDiv(spanDays, 365)
	default:
		rows = spanDays
	}
	if rows < 1 {
		return 1
	}
	return rows
}

// GroupSize returns the maximum number of instruments per datagrid chunk.
func GroupSize(params map[string]string, limits DatagridLimits, now time.Time) (int, error) {
	const op = "partition.GroupSize"
	if err := limits.validate(op); err != nil {
		return 0, err
	}

	sdate, hasStart := params[ParamStartDate]
	frq, hasFrq := params[ParamFrequency]
	if !hasStart {
		if hasFrq {
			return 0, dataerr.New(dataerr.KindDate, op,
				"%s is required when %s=%q is given", ParamStartDate, ParamFrequency, frq)
		}
		return limits.MaxInstruments, nil
	}
	if !hasFrq {
		frq = "d"
	}

	start, err := ParseDate(sdate, now)
	if err != nil {
		return 0, dataerr.Wrap(dataerr.KindDate, op, err, "parse %s", ParamStartDate)
	}
	end := now.UTC()
	if edate, ok := params[ParamEndDate]; ok {
		if end, err = ParseDate(edate, now); err != nil {
			return 0, dataerr.Wrap(dataerr.KindDate, op, err, "parse %s", ParamEndDate)
		}
	}

	rows := RowsPerInstrument(frq, days(start, end))
	group := min(limits.MaxRows/rows, limits.MaxInstruments)
	// A single instrument can exceed the row cap on its own; it still needs a chunk.
	return max(group, 1), nil
}

// DatagridChunk is one physical datagrid call. Chunks are built by Datagrid and
// must not be modified afterwards.
type DatagridChunk struct {
	Instruments []string
	Fields      []Field
	Params      map[string]string
}

// Payload returns the W value of the call envelope.
func (c DatagridChunk) Payload() wire.DatagridPayload {
	fields := make([]wire.FieldSpec, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = f.spec()
	}
	return wire.DatagridPayload{Requests: []wire.DatagridRequest{{
		Instruments: c.Instruments,
		Fields:      fields,
		Parameters:  c.Params,
	}}}
}

// Datagrid partitions instruments into contiguous chunks of at most
// GroupSize instruments, each with the full field list and parameters.
func Datagrid(instruments []string, fields []Field, params map[string]string, limits DatagridLimits, now time.Time) ([]DatagridChunk, error) {
	const op = "partition.Datagrid"
	if len(instruments) == 0 {
		return nil, dataerr.New(dataerr.KindInvalid, op, "no instruments")
	}
	if len(fields) == 0 {
		return nil, dataerr.New(dataerr.KindInvalid, op, "no fields")
	}

	size, err := GroupSize(params, limits, now)
	if err != nil {
		return nil, err
	}

	chunks := make([]DatagridChunk, 0, ceilDiv(len(instruments), size))
	for lo := 0; lo < len(instruments); lo += size {
		hi := min(lo+size, len(instruments))
		chunks = append(chunks, DatagridChunk{
			Instruments: append([]string(nil), instruments[lo:hi]...),
			Fields:      append([]Field(nil), fields...),
			Params:      maps.Clone(params),
		})
	}
	return chunks, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
