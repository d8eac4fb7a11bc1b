package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	cases := []struct{ in, want any }{
		{"hello", "hello"},
		{[]byte("raw bytes"), []byte("raw bytes")},
		{true, true},
		{false, false},
		{int64(42), int64(42)},
		{int(7), int64(7)}, // int is widened to int64
		{3.14, 3.14},
	}
	for _, c := range cases {
		encoded, err := Serialize(c.in)
		require.NoError(t, err)
		got, err := Deserialize(encoded)
		require.NoError(t, err)
		require.Equal(t, c.want, got)
	}
}

func TestSerialize_OpaqueFallback(t *testing.T) {
	type custom struct{ A, B int }
	encoded, err := Serialize(custom{A: 1, B: 2})
	require.NoError(t, err)
	require.Equal(t, byte(TagOpaque), encoded[0])

	got, err := Deserialize(encoded)
	require.NoError(t, err)
	require.Equal(t, custom{A: 1, B: 2}, got)
}

func TestIsRegexSafe(t *testing.T) {
	encoded, err := Serialize("alice")
	require.NoError(t, err)
	require.True(t, IsRegexSafe(encoded))

	opaque, err := SerializeOpaque(map[string]int{"x": 1})
	require.NoError(t, err)
	require.False(t, IsRegexSafe(opaque))

	require.False(t, IsRegexSafe(nil))
}

func TestDeserialize_UnknownTag(t *testing.T) {
	_, err := Deserialize([]byte{0xFF, 0x01})
	require.Error(t, err)
}

func TestDeserialize_Empty(t *testing.T) {
	_, err := Deserialize(nil)
	require.Error(t, err)
}

func TestIntOrdering_PreservesComparisonOnEncodedBytes(t *testing.T) {
	// Order-preserving offset encoding must make encoded(-1) < encoded(1)
	// byte-wise, matching Badger's lexicographic key ordering.
	neg, err := Serialize(int64(-1))
	require.NoError(t, err)
	pos, err := Serialize(int64(1))
	require.NoError(t, err)
	require.True(t, string(neg) < string(pos))
}
