// Package codec turns cached values into bytes and back.
//
// List metadata and entities are usually plain structs, so JSON is the
// default; CBOR and Msgpack trade readability in redis-cli for size.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
