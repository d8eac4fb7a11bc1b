package codec

import (
	"bytes"
	"fmt"
)

// Separator is the literal byte used to join components inside a
// qualifier (adjacency cells, index cells). IDs and labels are validated
// not to contain it at the codec boundary, resolving the "separator
// collision" question in spec.md's Design Notes: rather than trust
// callers to avoid an arbitrary printable character, the separator is a
// byte (0x00) that can never occur in a valid UTF-8 element ID or label.
const Separator = byte(0x00)

// Column families used across the vertex and edge tables.
const (
	FamilyExistence = "L" // existence marker / edge label+endpoints cell
	FamilyIn        = "I" // vertex table: incoming adjacency
	FamilyOut       = "O" // vertex table: outgoing adjacency
)

// Table names. Index tables for named indices are suffixed per-name at
// creation time (see IndexTableName).
const (
	TableVertex      = "vertex"
	TableEdge        = "edge"
	TableVertexIndex = "vertex_index"
	TableEdgeIndex   = "edge_index"
	TableMetadata    = "metadata"
	TableKeyMetadata  = "keymeta"
)

// ExistenceQualifier is the fixed qualifier for a vertex's existence
// cell / an edge's existence+endpoints cell (family L).
const ExistenceQualifier = "E"

// ErrInvalidComponent is returned when an ID, label, or property key
// contains the reserved separator byte.
var ErrInvalidComponent = fmt.Errorf("codec: component contains reserved separator byte")

// ValidateComponent rejects any ID, label, or key containing the
// reserved separator byte. Must be called before any component is
// folded into a row, family, or qualifier.
func ValidateComponent(s string) error {
	if bytes.IndexByte([]byte(s), Separator) >= 0 {
		return ErrInvalidComponent
	}
	return nil
}

// IndexTableName returns the backing table name for a named index,
// e.g. IndexTableName("social", "byName") -> "social_index_byName".
func IndexTableName(graphName, indexName string) string {
	return graphName + "_index_" + indexName
}

// AdjacencyQualifier builds the qualifier for an adjacency cell:
// otherVertexID|edgeID (spec.md §4.1). Joined with Separator, not "|",
// per the separator-collision resolution above.
func AdjacencyQualifier(otherVertexID, edgeID string) []byte {
	buf := make([]byte, 0, len(otherVertexID)+1+len(edgeID))
	buf = append(buf, []byte(otherVertexID)...)
	buf = append(buf, Separator)
	buf = append(buf, []byte(edgeID)...)
	return buf
}

// ParseAdjacencyQualifier splits an adjacency qualifier back into the
// peer vertex ID and the edge ID.
func ParseAdjacencyQualifier(qualifier []byte) (otherVertexID, edgeID string, err error) {
	idx := bytes.IndexByte(qualifier, Separator)
	if idx < 0 {
		return "", "", fmt.Errorf("codec: malformed adjacency qualifier %q", qualifier)
	}
	return string(qualifier[:idx]), string(qualifier[idx+1:]), nil
}

// AdjacencyValue builds the value for an adjacency cell: |edgeLabel.
// The leading separator keeps the value format analogous to the
// qualifier's two-component shape and leaves room for a future second
// component without a layout change.
func AdjacencyValue(edgeLabel string) []byte {
	buf := make([]byte, 0, 1+len(edgeLabel))
	buf = append(buf, Separator)
	buf = append(buf, []byte(edgeLabel)...)
	return buf
}

// ParseAdjacencyValue extracts the edge label from an adjacency cell's
// value.
func ParseAdjacencyValue(value []byte) (edgeLabel string, err error) {
	if len(value) == 0 || value[0] != Separator {
		return "", fmt.Errorf("codec: malformed adjacency value %q", value)
	}
	return string(value[1:]), nil
}

// EdgeExistenceQualifier builds the qualifier for an edge's existence
// cell: inVertexId|outVertexId.
func EdgeExistenceQualifier(inVertexID, outVertexID string) []byte {
	buf := make([]byte, 0, len(inVertexID)+1+len(outVertexID))
	buf = append(buf, []byte(inVertexID)...)
	buf = append(buf, Separator)
	buf = append(buf, []byte(outVertexID)...)
	return buf
}

// ParseEdgeExistenceQualifier splits an edge existence qualifier into
// its endpoints.
func ParseEdgeExistenceQualifier(qualifier []byte) (inVertexID, outVertexID string, err error) {
	idx := bytes.IndexByte(qualifier, Separator)
	if idx < 0 {
		return "", "", fmt.Errorf("codec: malformed edge existence qualifier %q", qualifier)
	}
	return string(qualifier[:idx]), string(qualifier[idx+1:]), nil
}

// IndexQualifier builds the qualifier for an index-table cell, which is
// simply the element ID (the row is the encoded property value, the
// family is the property key).
func IndexQualifier(elementID string) []byte {
	return []byte(elementID)
}

// MetadataRow is unused directly (the metadata/key-metadata tables use
// the index or key name as the row verbatim) but documents the shape:
// row=indexName or row=key, family="Vertex"|"Edge", qualifier=empty.
const (
	MetaFamilyVertex = "Vertex"
	MetaFamilyEdge   = "Edge"
)
