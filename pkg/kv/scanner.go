package kv

import (
	"bytes"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/latticegraph/lattice/pkg/codec"
)

// Scanner iterates the cells of one table's row range in sorted key order,
// optionally restricted to a family/column and filtered by timestamp, row
// regex, and value regex (spec.md §4.2/§5's scan operation). A Scanner must
// be driven through Each, which opens and closes its own transaction and
// iterator on every call so a caller can never forget to release them.
type Scanner struct {
	table *Table

	rng    Range
	family []byte // nil = no family restriction
	column []byte // nil = no exact-qualifier restriction (only meaningful with family set)

	filter ScanFilter
}

// WithRange restricts the scan to r instead of the whole table.
func (s *Scanner) WithRange(r Range) *Scanner {
	s.rng = r
	return s
}

// WithFamily restricts the scan to a single column family.
func (s *Scanner) WithFamily(family string) *Scanner {
	s.family = []byte(family)
	s.column = nil
	return s
}

// WithColumn restricts the scan to a single exact (family, qualifier).
func (s *Scanner) WithColumn(family, qualifier string) *Scanner {
	s.family = []byte(family)
	s.column = []byte(qualifier)
	return s
}

// WithFilter attaches timestamp/row-regex/value-regex filters.
func (s *Scanner) WithFilter(f ScanFilter) *Scanner {
	s.filter = f
	return s
}

// Each visits every cell the scanner selects, in sorted (row, family,
// qualifier) order, newest-visible-version-per-cell, calling fn for each.
// fn returning false, or a non-nil error from fn, stops iteration early.
// The transaction and iterator opened internally are always released
// before Each returns, on every code path.
func (s *Scanner) Each(fn func(Cell) (bool, error)) error {
	if err := s.table.engine.checkOpen(); err != nil {
		return err
	}

	tsFilter := TimestampFilter{}
	if s.filter.Timestamp != nil {
		tsFilter = *s.filter.Timestamp
	}
	readTS := s.table.engine.currentTimestamp()
	if tsFilter.End != nil {
		readTS = *tsFilter.End
	}

	start, end := rangeToPhysical(s.table.id, s.rng)

	txn := s.table.engine.db.NewTransactionAt(readTS, false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.AllVersions = tsFilter.Start != nil
	opts.Prefix = tablePrefix(s.table.id)
	it := txn.NewIterator(opts)
	defer it.Close()

	var lastKey []byte
	for it.Seek(start); it.Valid(); it.Next() {
		item := it.Item()
		key := item.Key()
		if end != nil && bytes.Compare(key, end) >= 0 {
			break
		}

		if opts.AllVersions {
			// Within one physical key's version run, only the first
			// (newest <= readTS) entry is a candidate; once a key
			// repeats with an older version we've already decided it.
			if lastKey != nil && bytes.Equal(key, lastKey) {
				continue
			}
			lastKey = append(lastKey[:0], key...)
			if item.Version() < *tsFilter.Start {
				continue
			}
		}
		if item.IsDeletedOrExpired() {
			continue
		}

		row, family, qualifier, err := decodeKey(s.table.id, item.KeyCopy(nil))
		if err != nil {
			return err
		}
		if s.family != nil && !bytes.Equal(family, s.family) {
			continue
		}
		if s.column != nil && !bytes.Equal(qualifier, s.column) {
			continue
		}
		if s.filter.Row != nil && !s.filter.Row.Pattern.Match(row) {
			continue
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("kv: scan: %w", err)
		}
		if s.filter.Value != nil {
			if (!s.filter.Value.Untagged && !codec.IsRegexSafe(val)) || !s.filter.Value.Pattern.Match(val) {
				continue
			}
		}

		cont, err := fn(Cell{Row: row, Family: family, Qualifier: qualifier, Value: val, Timestamp: item.Version()})
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

// Collect runs Each and accumulates every selected cell into a slice. Only
// suitable for ranges known to be small (index lookups, single-row scans);
// large scans should use Each directly to avoid buffering the whole result.
func (s *Scanner) Collect() ([]Cell, error) {
	var out []Cell
	err := s.Each(func(c Cell) (bool, error) {
		out = append(out, c)
		return true, nil
	})
	return out, err
}
