package transport

import (
	"encoding/json"
	"fmt"
)

// Codec encodes payload values and branch selector tags for the wire.
// The session core calls it at the transport boundary and never
// inspects the produced bytes.
type Codec interface {
	EncodeValue(v any) ([]byte, error)
	DecodeValue(data []byte) (any, error)

	// EncodeTag and DecodeTag carry a branch selector: 0..n-1 for an
	// n-way choice.
	EncodeTag(i int) ([]byte, error)
	DecodeTag(data []byte) (int, error)
}

// JSONCodec is the bundled Codec: values and tags as JSON.
type JSONCodec struct{}

func (JSONCodec) EncodeValue(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return data, nil
}

func (JSONCodec) DecodeValue(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}

func (JSONCodec) EncodeTag(i int) ([]byte, error) {
	if i < 0 {
		return nil, fmt.Errorf("encode tag: negative branch index %d", i)
	}
	return json.Marshal(i)
}

func (JSONCodec) DecodeTag(data []byte) (int, error) {
	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return 0, fmt.Errorf("decode tag: %w", err)
	}
	if i < 0 {
		return 0, fmt.Errorf("decode tag: negative branch index %d", i)
	}
	return i, nil
}
