package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeRows decodes a JSON array of objects into []map[string]any.
//
// Some backend list endpoints return a bare array and others wrap it as
// {"data": [...]}; both shapes are accepted. Numbers are kept as
// json.Number so identifiers such as part numbers survive intact.
func DecodeRows(b []byte) ([]map[string]any, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty JSON body")
	}

	if b[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := decodeStrict(b, &wrapped); err != nil {
			return nil, err
		}
		if len(wrapped.Data) == 0 || bytes.Equal(wrapped.Data, []byte("null")) {
			return []map[string]any{}, nil
		}
		b = wrapped.Data
	}

	var rows []map[string]any
	if err := decodeStrict(b, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

func decodeStrict(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Ensure there is no trailing non-whitespace content.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("unexpected trailing JSON content")
		}
		return fmt.Errorf("unexpected trailing JSON content: %w", err)
	}
	return nil
}
