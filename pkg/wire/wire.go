// Package wire holds the request envelopes and response shapes spoken by the
// data proxy on /api/v1/data.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Directions select the service-side operation.
const (
	DirectionTimeSeries = "TimeSeries"
	DirectionDatagrid   = "DataGrid_StandardAsync"
)

// TimeLayout is the timestamp format used in time-series payloads.
const TimeLayout = "2006-01-02T15:04:05"

// ErrMalformed is returned by Decode when a body matches neither the empty
// nor a data shape.
var ErrMalformed = errors.New("malformed response")

// Envelope is the body of every data call.
type Envelope struct {
	Entity Entity `json:"Entity"`
}

// Entity names the direction (E) and carries its payload (W).
type Entity struct {
	E string `json:"E"`
	W any    `json:"W"`
}

// NewEnvelope wraps a payload for the given direction.
func NewEnvelope(direction string, payload any) Envelope {
	return Envelope{Entity: Entity{E: direction, W: payload}}
}

// DatagridPayload is the W value of a datagrid call.
type DatagridPayload struct {
	Requests []DatagridRequest `json:"requests"`
}

// DatagridRequest is one instrument/field block of a datagrid call.
type DatagridRequest struct {
	Instruments []string          `json:"instruments"`
	Fields      []FieldSpec       `json:"fields"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// FieldSpec is a field name with optional per-field parameters.
type FieldSpec struct {
	Name       string            `json:"name"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// TimeSeriesPayload is the W value of a time-series call.
type TimeSeriesPayload struct {
	Rics      []string `json:"rics"`
	Fields    []string `json:"fields"`
	Interval  string   `json:"interval"`
	StartDate string   `json:"startdate"`
	EndDate   string   `json:"enddate"`
	Calendar  string   `json:"calendar,omitempty"`
	Corax     string   `json:"corax,omitempty"`
}

// Shape is the response variant, decided once per chunk.
type Shape int

const (
	// ShapeEmpty carries neither data marker. It is a legitimate empty
	// contribution, not an error.
	ShapeEmpty Shape = iota
	ShapeTimeSeries
	ShapeDatagrid
)

func (s Shape) String() string {
	switch s {
	case ShapeTimeSeries:
		return "timeseries"
	case ShapeDatagrid:
		return "datagrid"
	default:
		return "empty"
	}
}

// Response is one decoded chunk result.
type Response struct {
	Shape      Shape
	Raw        json.RawMessage
	TimeSeries []TimeSeriesEntry
	Datagrid   []DatagridEntry

	// ErrorMessage is set when the service answered with an error object
	// instead of data.
	ErrorMessage string
}

// HasData reports whether the response carries a data marker.
func (r *Response) HasData() bool {
	return r != nil && r.Shape != ShapeEmpty
}

// TimeSeriesEntry is the series of one instrument.
type TimeSeriesEntry struct {
	Ric          string              `json:"ric"`
	StatusCode   string              `json:"statusCode"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	Fields       []TimeSeriesField   `json:"fields"`
	DataPoints   [][]json.RawMessage `json:"dataPoints"`
}

// OK reports whether the service flagged the series as usable.
func (e TimeSeriesEntry) OK() bool {
	return e.StatusCode == "" || e.StatusCode == "Normal" || e.StatusCode == "normal"
}

// TimeSeriesField describes one time-series column.
type TimeSeriesField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DatagridEntry is one block of a datagrid response.
type DatagridEntry struct {
	Headers [][]Header          `json:"headers"`
	Data    [][]json.RawMessage `json:"data"`
	Error   []CellError         `json:"error,omitempty"`
}

// Header describes one datagrid column.
type Header struct {
	DisplayName string `json:"displayName"`
	Field       string `json:"field,omitempty"`
}

// CellError is a per-cell failure reported inside a datagrid response.
type CellError struct {
	Code    int    `json:"code"`
	Col     int    `json:"col"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Decode classifies and parses a response body.
func Decode(body []byte) (*Response, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: body is null", ErrMalformed)
	}

	resp := &Response{Raw: json.RawMessage(body)}

	if raw, ok := top["timeseriesData"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &resp.TimeSeries); err != nil {
			return nil, fmt.Errorf("%w: timeseriesData: %v", ErrMalformed, err)
		}
		resp.Shape = ShapeTimeSeries
		return resp, nil
	}

	if raw, ok := top["responses"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &resp.Datagrid); err != nil {
			return nil, fmt.Errorf("%w: responses: %v", ErrMalformed, err)
		}
		resp.Shape = ShapeDatagrid
		return resp, nil
	}

	if raw, ok := top["ErrorMessage"]; ok {
		// Non-string messages are kept verbatim.
		if err := json.Unmarshal(raw, &resp.ErrorMessage); err != nil {
			resp.ErrorMessage = string(raw)
		}
	}
	resp.Shape = ShapeEmpty
	return resp, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
