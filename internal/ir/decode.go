package ir

import (
	"bytes"
	"encoding/json"
)

// DecodeJSON decodes a JSON document into a plain value tree.
// Integral numbers decode as int64, others as float64.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return fromNumbers(v), nil
}

func fromNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = fromNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = fromNumbers(e)
		}
		return x
	}
	return v
}
