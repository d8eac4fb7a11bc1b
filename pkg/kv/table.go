package kv

import (
	"bytes"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Table is a handle to one logical table within an Engine. All of a
// table's physical keys share the same 2-byte table-ID prefix; nothing
// about a Table's methods reveals that to callers above pkg/kv.
type Table struct {
	engine *Engine
	name   string
	id     uint16
}

// Name returns the table's logical name.
func (t *Table) Name() string { return t.name }

// Get returns the latest visible value for a single cell. Returns
// ErrNotFound if the cell was never written or its latest write was a
// delete tombstone.
func (t *Table) Get(row, family, qualifier []byte) (*Cell, error) {
	if err := t.engine.checkOpen(); err != nil {
		return nil, err
	}
	key := encodeKey(t.id, row, family, qualifier)
	txn := t.engine.db.NewTransactionAt(t.engine.currentTimestamp(), false)
	defer txn.Discard()

	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("kv: get: %w", err)
	}
	return &Cell{Row: row, Family: family, Qualifier: qualifier, Value: val, Timestamp: item.Version()}, nil
}

// GetVersioned returns the newest version of a cell visible within filter's
// timestamp window, gated on the cell's current (latest, unfiltered) state:
// if the cell is absent at the latest timestamp — never written, or deleted
// since — GetVersioned returns ErrNotFound for every window, including one
// that ends before the deletion. This realizes the documented
// tombstone-suppression behavior (a later delete erases visibility of
// earlier point-in-time reads, not just the present) rather than Badger's
// native per-timestamp MVCC view.
func (t *Table) GetVersioned(row, family, qualifier []byte, filter TimestampFilter) (*VersionedValue, error) {
	if err := t.engine.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := t.Get(row, family, qualifier); err != nil {
		return nil, err
	}

	readTS := t.engine.currentTimestamp()
	if filter.End != nil {
		readTS = *filter.End
	}
	key := encodeKey(t.id, row, family, qualifier)

	txn := t.engine.db.NewTransactionAt(readTS, false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.AllVersions = true
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(key); it.ValidForPrefix(key); it.Next() {
		item := it.Item()
		if !bytes.Equal(item.Key(), key) {
			continue
		}
		if filter.Start != nil && item.Version() < *filter.Start {
			return nil, ErrNotFound
		}
		if item.IsDeletedOrExpired() {
			return nil, ErrNotFound
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("kv: get versioned: %w", err)
		}
		return &VersionedValue{Timestamp: item.Version(), Value: val}, nil
	}
	return nil, ErrNotFound
}

// GetVersionedAll returns every version of a cell within filter's window,
// newest first, gated the same way GetVersioned is.
func (t *Table) GetVersionedAll(row, family, qualifier []byte, filter TimestampFilter) ([]VersionedValue, error) {
	if err := t.engine.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := t.Get(row, family, qualifier); err != nil {
		return nil, err
	}

	readTS := t.engine.currentTimestamp()
	if filter.End != nil {
		readTS = *filter.End
	}
	key := encodeKey(t.id, row, family, qualifier)

	txn := t.engine.db.NewTransactionAt(readTS, false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.AllVersions = true
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []VersionedValue
	for it.Seek(key); it.ValidForPrefix(key); it.Next() {
		item := it.Item()
		if !bytes.Equal(item.Key(), key) {
			continue
		}
		if item.IsDeletedOrExpired() {
			break
		}
		if filter.Start != nil && item.Version() < *filter.Start {
			break
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("kv: get versioned all: %w", err)
		}
		out = append(out, VersionedValue{Timestamp: item.Version(), Value: val})
	}
	return out, nil
}

// Scanner returns a new Scanner over this table, defaulting to the full
// table range with no filters.
func (t *Table) Scanner() *Scanner {
	return &Scanner{table: t, rng: FullRange()}
}

// BatchScanner returns a new BatchScanner over this table that fans work
// out across up to threads goroutines.
func (t *Table) BatchScanner(threads int) *BatchScanner {
	if threads < 1 {
		threads = 1
	}
	return &BatchScanner{table: t, threads: threads}
}

// Writer returns a new single-table buffered Writer.
func (t *Table) Writer() *Writer {
	return &Writer{table: t}
}

// BatchDeleter returns a new range-delete helper. threads is stored
// (clamped to at least 1) but DeleteRange scans and deletes on the calling
// goroutine.
func (t *Table) BatchDeleter(threads int) *BatchDeleter {
	if threads < 1 {
		threads = 1
	}
	return &BatchDeleter{table: t, threads: threads}
}
