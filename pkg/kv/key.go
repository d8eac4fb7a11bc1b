package kv

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/latticegraph/lattice/pkg/codec"
)

// Physical keys lay the logical (table, row, family, qualifier) tuple out
// as:
//
//	tableID(2 bytes BE) || row || 0x00 || family || 0x00 || qualifier
//
// Row and family are validated (codec.ValidateComponent) never to contain
// the separator byte, so the first two 0x00 bytes after the table ID
// unambiguously mark the row/family and family/qualifier boundaries even
// though the qualifier itself may contain further separator bytes (e.g. an
// adjacency qualifier's otherVertexID|edgeID packing).

func tableIDBytes(id uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, id)
	return b
}

// encodeKey builds the full physical key for a cell.
func encodeKey(tableID uint16, row, family, qualifier []byte) []byte {
	buf := make([]byte, 0, 2+len(row)+1+len(family)+1+len(qualifier))
	buf = append(buf, tableIDBytes(tableID)...)
	buf = append(buf, row...)
	buf = append(buf, codec.Separator)
	buf = append(buf, family...)
	buf = append(buf, codec.Separator)
	buf = append(buf, qualifier...)
	return buf
}

// rowPrefix returns the physical-key prefix matching every cell in the
// given row, any family or qualifier.
func rowPrefix(tableID uint16, row []byte) []byte {
	buf := make([]byte, 0, 2+len(row)+1)
	buf = append(buf, tableIDBytes(tableID)...)
	buf = append(buf, row...)
	buf = append(buf, codec.Separator)
	return buf
}

// familyPrefix returns the physical-key prefix matching every cell in the
// given (row, family), any qualifier.
func familyPrefix(tableID uint16, row, family []byte) []byte {
	buf := make([]byte, 0, 2+len(row)+1+len(family)+1)
	buf = append(buf, tableIDBytes(tableID)...)
	buf = append(buf, row...)
	buf = append(buf, codec.Separator)
	buf = append(buf, family...)
	buf = append(buf, codec.Separator)
	return buf
}

// tablePrefix returns the physical-key prefix matching every cell in the
// table, regardless of row.
func tablePrefix(tableID uint16) []byte {
	return tableIDBytes(tableID)
}

// rangeToPhysical translates a logical row Range into physical-key bounds
// within a table.
func rangeToPhysical(tableID uint16, r Range) (start, end []byte) {
	prefix := tableIDBytes(tableID)
	start = append(append([]byte{}, prefix...), r.Start...)
	if r.End == nil {
		end = prefixUpperBound(prefix)
		return
	}
	end = append(append([]byte{}, prefix...), r.End...)
	return
}

// decodeKey splits a physical key back into its logical components. It
// assumes the key was produced by encodeKey for the given tableID.
func decodeKey(tableID uint16, key []byte) (row, family, qualifier []byte, err error) {
	prefix := tableIDBytes(tableID)
	if !bytes.HasPrefix(key, prefix) {
		return nil, nil, nil, fmt.Errorf("kv: key does not belong to table %d", tableID)
	}
	rest := key[len(prefix):]
	i := bytes.IndexByte(rest, codec.Separator)
	if i < 0 {
		return nil, nil, nil, fmt.Errorf("kv: malformed physical key %q: missing row separator", key)
	}
	row = rest[:i]
	rest = rest[i+1:]
	j := bytes.IndexByte(rest, codec.Separator)
	if j < 0 {
		return nil, nil, nil, fmt.Errorf("kv: malformed physical key %q: missing family separator", key)
	}
	family = rest[:j]
	qualifier = rest[j+1:]
	return row, family, qualifier, nil
}
