package store

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/seed/internal/ir"
)

var (
	stateEncMode cbor.EncMode
	stateDecMode cbor.DecMode

	reflectMapStringAny = reflect.TypeOf(map[string]any(nil))
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	stateEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create state CBOR encoder mode: %v", err))
	}

	// States are plain trees: decode maps as map[string]any and integers as
	// int64 so they compare like values decoded from the JSON journal.
	decOpts := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		IndefLength:    cbor.IndefLengthAllowed,
		DefaultMapType: reflectMapStringAny,
		IntDec:         cbor.IntDecConvertSigned,
	}
	stateDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create state CBOR decoder mode: %v", err))
	}
}

// marshalPayload converts the journal view of a payload to canonical JSON
// TEXT for storage.
func marshalPayload(p ir.Payload) (string, error) {
	data, err := ir.MarshalCanonical(p.View())
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT back into a payload.
// Integral numbers decode as int64, others as float64.
func unmarshalPayload(data string) (ir.Payload, error) {
	var p ir.Payload
	if data == "" || data == "{}" {
		return p, nil
	}
	v, err := ir.DecodeJSON([]byte(data))
	if err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	view, ok := v.(map[string]any)
	if !ok {
		return p, fmt.Errorf("unmarshal payload: want object, got %T", v)
	}
	p.Data = view["data"]
	if args, ok := view["arguments"].([]any); ok {
		p.Arguments = args
	}
	if msg, ok := view["message"].(string); ok {
		p.Message = msg
	}
	return p, nil
}

// encodeState converts a state slice to CBOR.
func encodeState(s ir.State) ([]byte, error) {
	data, err := stateEncMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// decodeState parses CBOR into a state slice.
func decodeState(data []byte) (ir.State, error) {
	var s map[string]any
	if err := stateDecMode.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if s == nil {
		s = ir.State{}
	}
	return s, nil
}
