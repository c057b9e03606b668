// Package reassemble merges the decoded chunk responses of one logical
// request into a single table.
//
// Header discovery is order independent in the sense the service allows: the
// first response that carries headers is authoritative. Row order across
// chunks is unspecified.
package reassemble

import (
	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/logging"
	"github.com/Sternrassler/eikon-data-client/pkg/table"
	"github.com/Sternrassler/eikon-data-client/pkg/wire"
)

// Options tune how headers are named.
type Options struct {
	// FieldNames names columns by field code (e.g. "TR.CLOSE") instead of
	// the service's display name.
	FieldNames bool
}

// Datagrid builds one table from datagrid responses.
func Datagrid(responses []*wire.Response, opts Options) (*table.Table, error) {
	const op = "reassemble.Datagrid"
	logger := logging.NewLogger("reassemble")

	if len(responses) == 0 {
		return nil, dataerr.New(dataerr.KindNoData, op, "no chunk returned data")
	}

	headers := discoverHeaders(responses, opts)
	if len(headers) == 0 {
		return nil, dataerr.New(dataerr.KindNoHeaders, op, "no chunk carried headers among %d responses", len(responses))
	}

	cols := make([]table.Column, len(headers))
	for i, name := range headers {
		cols[i] = table.Column{Name: name, Type: table.String}
	}

	cellErrors := 0
	for _, resp := range responses {
		for _, entry := range resp.Datagrid {
			cellErrors += len(entry.Error)
			for _, row := range entry.Data {
				for i := range cols {
					cell := table.NullCell()
					if i < len(row) {
						cell = cleanCell(row[i])
					}
					cols[i].Cells = append(cols[i].Cells, cell)
				}
			}
		}
	}
	if cellErrors > 0 {
		logger.Warn().Int("cell_errors", cellErrors).Msg("Service reported cell-level errors")
	}

	t, err := table.New(cols...)
	if err != nil {
		return nil, dataerr.Wrap(dataerr.KindNoDataFrame, op, err, "build table")
	}

	logger.Debug().
		Int("responses", len(responses)).
		Int("rows", t.NumRows()).
		Int("columns", t.NumCols()).
		Msg("Datagrid reassembled")
	return t, nil
}

// discoverHeaders returns the header names of the first response that has any.
func discoverHeaders(responses []*wire.Response, opts Options) []string {
	for _, resp := range responses {
		if resp == nil || len(resp.Datagrid) == 0 || len(resp.Datagrid[0].Headers) == 0 {
			continue
		}
		row := resp.Datagrid[0].Headers[0]
		if len(row) == 0 {
			continue
		}
		names := make([]string, len(row))
		for i, h := range row {
			names[i] = h.DisplayName
			if opts.FieldNames && h.Field != "" {
				names[i] = h.Field
			}
			names[i] = cleanString(names[i])
		}
		return names
	}
	return nil
}
