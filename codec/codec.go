// Package codec converts typed values to the text-safe bytes a Provider stores.
//
// Redis values are opaque strings, so any codec here is valid; JSON is the
// default because other services read the same keys.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
