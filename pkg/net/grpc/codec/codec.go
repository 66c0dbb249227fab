// Package codec registers a JSON codec with grpc under the "json" content
// subtype. Services in this module exchange plain Go structs instead of
// generated protobuf messages.
package codec

import (
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
)

// Name is the grpc content subtype clients select with grpc.CallContentSubtype
const Name = "json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec marshals grpc messages as JSON
type Codec struct{}

// Marshal encodes v
func (Codec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Errorf("json codec marshal %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes data into v; empty data leaves v at its zero value
func (Codec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Errorf("json codec unmarshal %T: %w", v, err)
	}
	return nil
}

// Name returns the content subtype
func (Codec) Name() string {
	return Name
}
