package util

import (
	"encoding/json"
	"testing"
)

func TestToFloat(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"float", 7.5, 7.5, true},
		{"int", 12, 12, true},
		{"json number", json.Number("3.25"), 3.25, true},
		{"numeric string", " 42 ", 42, true},
		{"bad string", "n/a", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ToFloat(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDecodeRows(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"bare array", `[{"a":1},{"a":2}]`, 2, false},
		{"wrapped", `{"data":[{"a":1}]}`, 1, false},
		{"wrapped null", `{"data":null}`, 0, false},
		{"empty array", `[]`, 0, false},
		{"trailing", `[] []`, 0, true},
		{"empty body", ``, 0, true},
		{"not rows", `"x"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := DecodeRows([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(rows) != tt.want {
				t.Errorf("len(rows) = %d, want %d", len(rows), tt.want)
			}
		})
	}
}

func TestDecodeRows_KeepsNumbers(t *testing.T) {
	rows, err := DecodeRows([]byte(`[{"pe_suggested_stock_qty": 12}]`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rows[0]["pe_suggested_stock_qty"].(json.Number); !ok {
		t.Errorf("expected json.Number, got %T", rows[0]["pe_suggested_stock_qty"])
	}
}
