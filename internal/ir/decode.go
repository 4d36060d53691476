package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Decode unmarshals JSON into v with numbers kept as json.Number.
// Trailing data after the first value is rejected.
func Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("decode json: unexpected data after top-level value")
	}
	return nil
}

// DecodeValue unmarshals JSON into generic values (map[string]any, []any,
// json.Number, string, bool, nil).
func DecodeValue(data []byte) (any, error) {
	var v any
	if err := Decode(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
