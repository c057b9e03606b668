package reassemble

import (
	"slices"

	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/logging"
	"github.com/Sternrassler/eikon-data-client/pkg/table"
	"github.com/Sternrassler/eikon-data-client/pkg/wire"
)

// InstrumentColumn names the column that records which instrument a
// time-series row belongs to.
const InstrumentColumn = "Instrument"

// TimeSeries builds one table from time-series responses. Each instrument
// series becomes a table of its own; the tables are then stacked, so series
// with differing field sets are reconciled with null padding.
func TimeSeries(responses []*wire.Response) (*table.Table, error) {
	const op = "reassemble.TimeSeries"
	logger := logging.NewLogger("reassemble")

	if len(responses) == 0 {
		return nil, dataerr.New(dataerr.KindNoData, op, "no chunk returned data")
	}

	var acc *table.Table
	skipped := 0
	for _, resp := range responses {
		if resp == nil || resp.Shape != wire.ShapeTimeSeries {
			continue
		}
		for _, entry := range resp.TimeSeries {
			if !entry.OK() {
				skipped++
				logger.Warn().
					Str("ric", entry.Ric).
					Str("status", entry.StatusCode).
					Str("service_error", entry.ErrorMessage).
					Msg("Skipping series with error status")
				continue
			}
			if len(entry.Fields) == 0 {
				continue
			}

			t, err := seriesTable(entry)
			if err != nil {
				return nil, dataerr.Wrap(dataerr.KindNoDataFrame, op, err, "series %s", entry.Ric)
			}
			if acc == nil {
				acc = t
				continue
			}
			if acc, err = Stack(acc, t); err != nil {
				return nil, err
			}
		}
	}

	if acc == nil {
		return nil, dataerr.New(dataerr.KindNoHeaders, op,
			"no series carried fields among %d responses (%d skipped)", len(responses), skipped)
	}

	logger.Debug().
		Int("responses", len(responses)).
		Int("rows", acc.NumRows()).
		Int("columns", acc.NumCols()).
		Int("skipped", skipped).
		Msg("Time series reassembled")
	return acc, nil
}

// seriesTable columnizes one instrument's series. The instrument column is
// added first unless the service already returned one.
func seriesTable(entry wire.TimeSeriesEntry) (*table.Table, error) {
	rows := len(entry.DataPoints)
	cols := make([]table.Column, 0, len(entry.Fields)+1)

	hasInstrument := slices.ContainsFunc(entry.Fields, func(f wire.TimeSeriesField) bool {
		return cleanString(f.Name) == InstrumentColumn
	})
	if !hasInstrument {
		ric := table.Column{Name: InstrumentColumn, Type: table.String, Cells: make([]table.Cell, rows)}
		for i := range ric.Cells {
			ric.Cells[i] = table.Str(entry.Ric)
		}
		cols = append(cols, ric)
	}

	for j, f := range entry.Fields {
		col := table.Column{
			Name:  cleanString(f.Name),
			Type:  table.ParseDType(f.Type),
			Cells: make([]table.Cell, rows),
		}
		for i, point := range entry.DataPoints {
			if j < len(point) {
				col.Cells[i] = cleanCell(point[j])
			}
		}
		cols = append(cols, col)
	}
	return table.New(cols...)
}
