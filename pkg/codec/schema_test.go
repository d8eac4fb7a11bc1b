package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateComponent(t *testing.T) {
	require.NoError(t, ValidateComponent("alice"))
	require.NoError(t, ValidateComponent(""))

	err := ValidateComponent("ali\x00ce")
	require.ErrorIs(t, err, ErrInvalidComponent)
}

func TestIndexTableName(t *testing.T) {
	require.Equal(t, "social_index_byName", IndexTableName("social", "byName"))
}

func TestAdjacencyQualifierRoundTrip(t *testing.T) {
	q := AdjacencyQualifier("v2", "e1")
	peer, edge, err := ParseAdjacencyQualifier(q)
	require.NoError(t, err)
	require.Equal(t, "v2", peer)
	require.Equal(t, "e1", edge)
}

func TestParseAdjacencyQualifier_Malformed(t *testing.T) {
	_, _, err := ParseAdjacencyQualifier([]byte("no-separator"))
	require.Error(t, err)
}

func TestAdjacencyValueRoundTrip(t *testing.T) {
	v := AdjacencyValue("knows")
	label, err := ParseAdjacencyValue(v)
	require.NoError(t, err)
	require.Equal(t, "knows", label)
}

func TestParseAdjacencyValue_Malformed(t *testing.T) {
	_, err := ParseAdjacencyValue([]byte("knows"))
	require.Error(t, err)
	_, err = ParseAdjacencyValue(nil)
	require.Error(t, err)
}

func TestEdgeExistenceQualifierRoundTrip(t *testing.T) {
	q := EdgeExistenceQualifier("in1", "out1")
	inV, outV, err := ParseEdgeExistenceQualifier(q)
	require.NoError(t, err)
	require.Equal(t, "in1", inV)
	require.Equal(t, "out1", outV)
}

func TestIndexQualifier(t *testing.T) {
	require.Equal(t, []byte("v1"), IndexQualifier("v1"))
}
