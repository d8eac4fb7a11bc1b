// Package codec encodes and decodes the cells that make up the engine's
// six persistent tables: element IDs, adjacency qualifiers, property
// values, and index rows.
//
// Every encoded property value starts with a one-byte tag identifying its
// Go type. Tag 0 (TagOpaque) marks a value that was serialized with
// encoding/gob and is not safe to match with a server-side regex filter;
// every other tag is a byte-literal encoding that a regex can match
// directly against the stored bytes.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
)

// Tag identifies the Go type an encoded property value holds.
type Tag byte

const (
	// TagOpaque marks a gob-serialized value. Never regex-safe.
	TagOpaque Tag = 0
	TagString Tag = 1
	TagInt64  Tag = 2
	TagFloat64 Tag = 3
	TagBool    Tag = 4
	TagBytes   Tag = 5
)

// ErrUnsupportedType is returned by Serialize for a Go value that has no
// direct tag and must be carried as an opaque gob blob via SerializeOpaque.
var ErrUnsupportedType = fmt.Errorf("codec: unsupported type for direct serialization")

// Serialize encodes a property value into its tagged byte representation.
// Supported direct types are string, int, int32 and int64 (widened to
// int64), float32 and float64 (widened to float64), bool, and []byte. Any
// other type is serialized opaquely with SerializeOpaque.
func Serialize(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return append([]byte{byte(TagString)}, []byte(v)...), nil
	case []byte:
		return append([]byte{byte(TagBytes)}, v...), nil
	case bool:
		b := byte(0)
		if v {
			b = 1
		}
		return []byte{byte(TagBool), b}, nil
	case int:
		return encodeInt64(int64(v)), nil
	case int32:
		return encodeInt64(int64(v)), nil
	case int64:
		return encodeInt64(v), nil
	case float32:
		return encodeFloat64(float64(v)), nil
	case float64:
		return encodeFloat64(v), nil
	default:
		return SerializeOpaque(value)
	}
}

func encodeInt64(v int64) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(TagInt64)
	binary.BigEndian.PutUint64(buf[1:], uint64(v)+1<<63) // order-preserving offset
	return buf
}

func encodeFloat64(v float64) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(TagFloat64)
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v))
	return buf
}

// SerializeOpaque always produces a TagOpaque cell, regardless of the
// value's type, via encoding/gob. Used directly by callers that want to
// force a value out of the regex-matchable fast path (spec.md §4.1).
func SerializeOpaque(value any) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("codec: gob encode: nil value")
	}
	// Encoding through an interface pointer, with the concrete type
	// registered, lets Deserialize decode the value back into an any.
	gob.Register(value)
	var buf bytes.Buffer
	buf.WriteByte(byte(TagOpaque))
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return nil, fmt.Errorf("codec: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a tagged byte slice back into a Go value.
func Deserialize(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("codec: empty value")
	}
	tag := Tag(data[0])
	body := data[1:]
	switch tag {
	case TagString:
		return string(body), nil
	case TagBytes:
		return body, nil
	case TagBool:
		if len(body) != 1 {
			return nil, fmt.Errorf("codec: malformed bool value")
		}
		return body[0] != 0, nil
	case TagInt64:
		if len(body) != 8 {
			return nil, fmt.Errorf("codec: malformed int64 value")
		}
		return int64(binary.BigEndian.Uint64(body) - 1<<63), nil
	case TagFloat64:
		if len(body) != 8 {
			return nil, fmt.Errorf("codec: malformed float64 value")
		}
		return math.Float64frombits(binary.BigEndian.Uint64(body)), nil
	case TagOpaque:
		var v any
		if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&v); err != nil {
			return nil, fmt.Errorf("codec: gob decode: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("codec: unknown tag %d", tag)
	}
}

// IsRegexSafe reports whether an encoded value's tag permits server-side
// regex matching against its raw bytes. Only TagOpaque is unsafe.
func IsRegexSafe(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return Tag(data[0]) != TagOpaque
}
