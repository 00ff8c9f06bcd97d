// Package codec provides the serialization used for persisted records.
package codec

import "github.com/bytedance/sonic"

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes values as JSON via sonic. Records stay self-describing
// so the backing store can be inspected and migrated.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)   { return sonic.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return sonic.Unmarshal(b, v) }

// Default is the codec used by the store helpers.
var Default Codec = JSONCodec{}
