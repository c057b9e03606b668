package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantShape Shape
		wantErr   bool
	}{
		{
			name:      "time series",
			body:      `{"timeseriesData":[{"ric":"AAA","statusCode":"Normal","fields":[{"name":"TIMESTAMP","type":"DATE"}],"dataPoints":[["2020-01-02"]]}]}`,
			wantShape: ShapeTimeSeries,
		},
		{
			name:      "datagrid",
			body:      `{"responses":[{"headers":[[{"displayName":"Instrument"}]],"data":[["AAA"]]}]}`,
			wantShape: ShapeDatagrid,
		},
		{
			name:      "empty object",
			body:      `{}`,
			wantShape: ShapeEmpty,
		},
		{
			name:      "service error object",
			body:      `{"ErrorCode":400,"ErrorMessage":"Backend error"}`,
			wantShape: ShapeEmpty,
		},
		{
			name:      "null markers count as empty",
			body:      `{"responses":null,"timeseriesData":null}`,
			wantShape: ShapeEmpty,
		},
		{
			name:    "not json",
			body:    `<html>bad gateway</html>`,
			wantErr: true,
		},
		{
			name:    "array body",
			body:    `[1,2,3]`,
			wantErr: true,
		},
		{
			name:    "null body",
			body:    `null`,
			wantErr: true,
		},
		{
			name:    "marker with wrong type",
			body:    `{"responses":"nope"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Decode([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Decode() error = nil, want error")
				}
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("Decode() error = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if resp.Shape != tt.wantShape {
				t.Errorf("Shape = %v, want %v", resp.Shape, tt.wantShape)
			}
			if resp.HasData() != (tt.wantShape != ShapeEmpty) {
				t.Errorf("HasData() = %v for shape %v", resp.HasData(), resp.Shape)
			}
		})
	}
}

func TestDecode_ErrorMessage(t *testing.T) {
	resp, err := Decode([]byte(`{"ErrorCode":500,"ErrorMessage":"Timeout"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.ErrorMessage != "Timeout" {
		t.Errorf("ErrorMessage = %q, want %q", resp.ErrorMessage, "Timeout")
	}
}

func TestEnvelope_Marshal(t *testing.T) {
	env := NewEnvelope(DirectionDatagrid, DatagridPayload{Requests: []DatagridRequest{{
		Instruments: []string{"AAA"},
		Fields:      []FieldSpec{{Name: "TR.CLOSE"}},
	}}})

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"Entity":{"E":"DataGrid_StandardAsync","W":{"requests":[{"instruments":["AAA"],"fields":[{"name":"TR.CLOSE"}]}]}}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestTimeSeriesEntry_OK(t *testing.T) {
	if !(TimeSeriesEntry{StatusCode: "Normal"}).OK() {
		t.Error("Normal status should be OK")
	}
	if (TimeSeriesEntry{StatusCode: "Error"}).OK() {
		t.Error("Error status should not be OK")
	}
}
