// Package codec is the JSON codec for every frame crossing a context
// boundary (window bus, runtime channel, persisted state).
//
// It uses sonic in its encoding/json compatible configuration so that map
// keys are sorted and HTML is escaped exactly like the standard library.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Raw encodes v as a json.RawMessage. A nil v encodes to nil.
func Raw(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := api.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.RawMessage(data), nil
}

// Convert re-encodes src into dst, used to turn loosely typed data
// (map[string]any) into concrete structs.
func Convert(src any, dst any) error {
	data, err := api.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := api.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// Valid reports whether data is valid JSON.
func Valid(data []byte) bool {
	return api.Valid(data)
}
