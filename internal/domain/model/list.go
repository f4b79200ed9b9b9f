package model

import (
	"bytes"
	"encoding/json"
)

// decodeEach decodes a JSON array one element at a time so a single bad
// record does not hide the rest. null and empty input yield an empty list.
func decodeEach[T any](b []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return []T{}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, err
	}
	return decodeElements[T](raws), nil
}

func decodeElements[T any](raws []json.RawMessage) []T {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
