package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seed/internal/ir"
)

func TestMarshalPayload_Canonical(t *testing.T) {
	got, err := marshalPayload(ir.Payload{
		Data:      map[string]any{"b": 1, "a": "x"},
		Arguments: []any{2, "y"},
		Store:     ir.State{"ignored": true},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"arguments":[2,"y"],"data":{"a":"x","b":1}}`, got)

	got, err = marshalPayload(ir.Payload{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, got)
}

func TestMarshalPayload_RejectsFunctions(t *testing.T) {
	_, err := marshalPayload(ir.Payload{Data: func() {}})
	assert.Error(t, err)
}

func TestUnmarshalPayload(t *testing.T) {
	p, err := unmarshalPayload(`{"arguments":[1,2.5,"z"],"data":{"big":9007199254740993,"nested":[1]},"message":"boom"}`)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"big": int64(9007199254740993), "nested": []any{int64(1)}}, p.Data)
	assert.Equal(t, []any{int64(1), 2.5, "z"}, p.Arguments)
	assert.Equal(t, "boom", p.Message)

	empty, err := unmarshalPayload("{}")
	require.NoError(t, err)
	assert.Equal(t, ir.Payload{}, empty)

	_, err = unmarshalPayload(`[1]`)
	assert.Error(t, err)

	_, err = unmarshalPayload(`{`)
	assert.Error(t, err)
}

func TestEncodeState_RoundTrip(t *testing.T) {
	in := ir.State{
		"name":  "ada",
		"count": 3,
		"ratio": 0.5,
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"ok": true, "n": -2},
		"none":  nil,
	}

	blob, err := encodeState(in)
	require.NoError(t, err)

	out, err := decodeState(blob)
	require.NoError(t, err)

	assert.Equal(t, ir.State{
		"name":  "ada",
		"count": int64(3),
		"ratio": 0.5,
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"ok": true, "n": int64(-2)},
		"none":  nil,
	}, out)

	wantHash, err := ir.StateHash("m", in)
	require.NoError(t, err)
	gotHash, err := ir.StateHash("m", out)
	require.NoError(t, err)
	assert.Equal(t, wantHash, gotHash, "decoded integers hash like the originals")
}

func TestEncodeState_Deterministic(t *testing.T) {
	a, err := encodeState(ir.State{"x": 1, "y": 2, "z": 3})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := encodeState(ir.State{"z": 3, "y": 2, "x": 1})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}
