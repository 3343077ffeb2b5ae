// Package api defines the wire messages of the tabsplit RPC services. The
// messages are plain Go structs carried over Connect with a JSON codec.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CodecName is the Connect codec name, which selects the application/json
// content type.
const CodecName = "json"

// Codec encodes messages with encoding/json. Unknown fields are rejected so
// that misspelled request fields fail loudly instead of being ignored.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("decode %T: %w", msg, err)
	}
	return nil
}
