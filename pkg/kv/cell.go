package kv

import "github.com/latticegraph/lattice/pkg/codec"

// Cell is a single (row, family, qualifier) -> (value, timestamp) entry as
// returned by a Scanner or a point lookup.
type Cell struct {
	Row       []byte
	Family    []byte
	Qualifier []byte
	Value     []byte
	Timestamp uint64
}

// VersionedValue is one entry in a versioned read's (timestamp, value)
// sequence.
type VersionedValue struct {
	Timestamp uint64
	Value     []byte
}

// Mutation is a single buffered write, produced by a Writer and consumed by
// MultiWriter.Flush. Timestamp of 0 means "assign the engine's next
// timestamp at flush time"; any other value is an explicit timestamp
// supplied by the caller (spec.md's explicit-timestamp mutation overloads).
type Mutation struct {
	Table     string
	Row       []byte
	Family    []byte
	Qualifier []byte
	Value     []byte
	Timestamp uint64
	Delete    bool
}

// Range selects rows in [Start, End). A nil End means "to the end of the
// table"; a nil Start means "from the beginning of the table".
type Range struct {
	Start []byte
	End   []byte
}

// RowRange returns the single-row range covering exactly the given row.
func RowRange(row []byte) Range {
	return Range{Start: row, End: rowUpperBound(row)}
}

// PrefixRange returns the range covering every row with the given prefix.
func PrefixRange(prefix []byte) Range {
	return Range{Start: prefix, End: prefixUpperBound(prefix)}
}

// FullRange returns the range covering an entire table.
func FullRange() Range {
	return Range{}
}

// rowUpperBound returns the smallest key strictly greater than every key
// that has row as its exact row component (i.e. row immediately followed by
// anything), by appending a byte one greater than the row/family separator.
func rowUpperBound(row []byte) []byte {
	return prefixUpperBound(append(append([]byte{}, row...), codec.Separator))
}

// prefixUpperBound returns the smallest byte string that is strictly
// greater than every string with the given prefix, or nil if prefix is all
// 0xFF bytes (meaning "no upper bound").
func prefixUpperBound(prefix []byte) []byte {
	out := append([]byte{}, prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
