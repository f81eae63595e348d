package protocol

import (
	"encoding/json"
	"fmt"
)

// UnserializableBodyError is returned when a body value is not bytes, a
// string, or JSON-marshalable.
type UnserializableBodyError struct {
	Value interface{}
	Err   error
}

func (e *UnserializableBodyError) Error() string {
	return fmt.Sprintf("protocol: unserializable body of type %T: %v", e.Value, e.Err)
}

func (e *UnserializableBodyError) Unwrap() error {
	return e.Err
}

// SerializeBody encodes a body value per the wire format's rules: bytes
// pass through unchanged, strings are taken as UTF-8, and everything else
// (maps, slices, numbers, bools, nil, structured types) is rendered as
// canonical JSON. encoding/json already sorts map[string]any keys, which
// is what "canonical" means here; struct field order is whatever the
// struct declares, which is also stable.
func SerializeBody(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, &UnserializableBodyError{Value: v, Err: err}
		}
		return b, nil
	}
}
