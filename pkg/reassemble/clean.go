package reassemble

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Sternrassler/eikon-data-client/pkg/table"
)

// cleanCell turns one JSON cell into a table cell. Strings lose their
// quoting, other scalars keep their literal text and null stays null.
func cleanCell(raw json.RawMessage) table.Cell {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return table.NullCell()
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return table.Str(cleanString(s))
		}
	}
	return table.Str(cleanString(string(raw)))
}

// cleanString strips quote characters left over from nested encodings.
func cleanString(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}
