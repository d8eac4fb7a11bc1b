// Package kv adapts a single BadgerDB instance, opened in managed-transaction
// mode, into a small set of independent, prefix-isolated logical tables with
// explicit per-write timestamps. It is the store-adapter layer spec.md §4.2
// describes: callers above it never see Badger's key/value API directly,
// only tables, scanners, writers, and a monotonic timestamp oracle.
package kv

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
)

// catalogTableID is reserved for the table-name -> table-ID registry and
// the persisted timestamp watermark; it is never handed out to callers.
const catalogTableID uint16 = 0

var (
	catalogRowNextID = []byte("_next_table_id")
	catalogRowTS      = []byte("_ts_watermark")
	catalogFamily     = []byte("t")
	catalogQualifier  = []byte("v")
)

// Options configures Engine.Open.
type Options struct {
	// Dir is the on-disk directory Badger will use. Ignored if InMemory.
	Dir string
	// InMemory opens Badger with no on-disk footprint, for tests and the
	// ephemeral config profile (spec.md §6.4's storage.mode=memory).
	InMemory bool
	// SyncWrites mirrors badger.Options.SyncWrites: fsync every commit.
	SyncWrites bool
	// NumVersionsToKeep mirrors badger.Options.NumVersionsToKeep. Must be
	// large enough that time-travel reads against old timestamps are not
	// compacted away before they are needed; 0 means "use Badger's
	// default" (1, i.e. no history), which disables time travel.
	NumVersionsToKeep int
}

// Engine owns one managed BadgerDB and the table-name registry layered over
// it. All reads and writes from every Table obtained through this Engine
// share the same physical database and the same timestamp oracle.
type Engine struct {
	db *badger.DB

	mu     sync.RWMutex
	tables map[string]uint16
	nextID uint16

	commitMu sync.Mutex
	tsClock  atomic.Uint64

	closed atomic.Bool
}

// Open opens (creating if necessary) the managed BadgerDB at opts.Dir and
// loads the table catalog.
func Open(opts Options) (*Engine, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites)
	if opts.NumVersionsToKeep > 0 {
		bopts = bopts.WithNumVersionsToKeep(opts.NumVersionsToKeep)
	}

	db, err := badger.OpenManaged(bopts)
	if err != nil {
		return nil, fmt.Errorf("kv: open badger: %w", err)
	}

	e := &Engine{
		db:     db,
		tables: make(map[string]uint16),
		nextID: catalogTableID + 1,
	}
	if err := e.loadCatalog(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadCatalog() error {
	txn := e.db.NewTransactionAt(e.currentTimestamp(), false)
	defer txn.Discard()

	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	prefix := tablePrefix(catalogTableID)
	var maxTS uint64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		if item.IsDeletedOrExpired() {
			continue
		}
		row, family, _, err := decodeKey(catalogTableID, item.KeyCopy(nil))
		if err != nil {
			return err
		}
		if string(family) != string(catalogFamily) {
			continue
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("kv: read catalog entry: %w", err)
		}
		switch string(row) {
		case string(catalogRowNextID):
			if len(val) == 2 {
				e.nextID = binary.BigEndian.Uint16(val)
			} else {
				log.Printf("kv: loadCatalog: ignoring malformed next-table-id entry (%d bytes, want 2)", len(val))
			}
		case string(catalogRowTS):
			if len(val) == 8 {
				maxTS = binary.BigEndian.Uint64(val)
			} else {
				log.Printf("kv: loadCatalog: ignoring malformed ts-watermark entry (%d bytes, want 8)", len(val))
			}
		default:
			if len(val) == 2 {
				e.tables[string(row)] = binary.BigEndian.Uint16(val)
			} else {
				log.Printf("kv: loadCatalog: ignoring malformed table entry %q (%d bytes, want 2)", row, len(val))
			}
		}
	}
	e.tsClock.Store(maxTS)
	return nil
}

// nextTimestamp allocates and returns the next strictly increasing
// timestamp. Callers must hold commitMu until the corresponding CommitAt
// call returns, so the watermark and the committed data never diverge.
func (e *Engine) nextTimestamp() uint64 {
	return e.tsClock.Add(1)
}

// observeTimestamp advances the clock to at least ts, for explicit-timestamp
// mutations that specify a value ahead of the current watermark.
func (e *Engine) observeTimestamp(ts uint64) {
	for {
		cur := e.tsClock.Load()
		if ts <= cur {
			return
		}
		if e.tsClock.CompareAndSwap(cur, ts) {
			return
		}
	}
}

// currentTimestamp returns the latest timestamp known to have been
// committed, for unbounded "read latest" operations.
func (e *Engine) currentTimestamp() uint64 {
	ts := e.tsClock.Load()
	if ts == 0 {
		return 1
	}
	return ts
}

// Close closes the underlying BadgerDB. The table catalog needs no flush
// here: CreateTable and DropTable persist it as they go.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.db.Close()
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return ErrClosed
	}
	return nil
}

// CreateTable registers a new logical table and returns a handle to it. It
// is idempotent-unsafe by design: creating an existing name returns
// ErrTableExists, mirroring real table-provisioning APIs (spec.md §4.2's
// table_ops.create).
func (e *Engine) CreateTable(name string) (*Table, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables[name]; ok {
		return nil, ErrTableExists
	}
	if e.nextID == 0 { // wrapped past 65535
		return nil, ErrTooManyTables
	}
	id := e.nextID
	e.nextID++
	e.tables[name] = id

	if err := e.persistCatalogLocked(); err != nil {
		delete(e.tables, name)
		e.nextID--
		return nil, err
	}
	return &Table{engine: e, name: name, id: id}, nil
}

// Table returns a handle to an existing logical table.
func (e *Engine) Table(name string) (*Table, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return &Table{engine: e, name: name, id: id}, nil
}

// EnsureTable returns a handle to name, creating it first if necessary.
func (e *Engine) EnsureTable(name string) (*Table, error) {
	t, err := e.Table(name)
	if err == nil {
		return t, nil
	}
	if err != ErrTableNotFound {
		return nil, err
	}
	t, err = e.CreateTable(name)
	if err == ErrTableExists {
		// lost a race with a concurrent creator; retry the lookup.
		return e.Table(name)
	}
	return t, err
}

// DropTable deletes every cell belonging to a logical table and removes it
// from the catalog (spec.md §4.2's table_ops.delete).
func (e *Engine) DropTable(ctx context.Context, name string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.mu.Lock()
	id, ok := e.tables[name]
	if !ok {
		e.mu.Unlock()
		return ErrTableNotFound
	}
	delete(e.tables, name)
	err := e.persistCatalogLocked()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	d := (&Table{engine: e, name: name, id: id}).BatchDeleter(1)
	return d.DeleteRange(ctx, FullRange(), 0)
}

// ListTables returns every registered logical table name.
func (e *Engine) ListTables() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	return names
}

// commitMutations applies muts to the physical database. Badger assigns one
// version to every entry in a managed transaction at CommitAt time, so
// mutations are grouped by their effective timestamp first: every
// Timestamp==0 mutation shares one auto-assigned "now" commit, and each
// distinct explicit Timestamp gets its own commit at that exact version.
// Mutations that share a group commit atomically together; a mix of
// explicit timestamps across groups does not get cross-group atomicity,
// since by definition they are independent backdated history writes rather
// than a single logical "now". tables maps each mutation's Table name to
// its handle, resolved by the caller (Writer.Flush or MultiWriter.Flush).
func (e *Engine) commitMutations(muts []Mutation, tables map[string]*Table) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if len(muts) == 0 {
		return nil
	}

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	commitTS := e.nextTimestamp()
	groups := make(map[uint64][]Mutation)
	for _, m := range muts {
		ts := commitTS
		if m.Timestamp != 0 {
			e.observeTimestamp(m.Timestamp)
			ts = m.Timestamp
		}
		groups[ts] = append(groups[ts], m)
	}

	for ts, group := range groups {
		if err := e.commitGroupAt(ts, group, tables); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) commitGroupAt(ts uint64, group []Mutation, tables map[string]*Table) error {
	txn := e.db.NewTransactionAt(ts, true)
	defer txn.Discard()

	// Carry the ts watermark along in the same commit, so a restart's
	// catalog load picks up at least as high a timestamp as any data
	// already committed under it.
	watermarkKey := encodeKey(catalogTableID, catalogRowTS, catalogFamily, catalogQualifier)
	watermarkVal := make([]byte, 8)
	binary.BigEndian.PutUint64(watermarkVal, e.tsClock.Load())
	if err := txn.SetEntry(badger.NewEntry(watermarkKey, watermarkVal)); err != nil {
		return fmt.Errorf("kv: commit: %w", err)
	}

	for _, m := range group {
		tbl, ok := tables[m.Table]
		if !ok {
			return fmt.Errorf("kv: commit: unresolved table %q", m.Table)
		}
		key := encodeKey(tbl.id, m.Row, m.Family, m.Qualifier)

		var err error
		if m.Delete {
			err = txn.Delete(key)
		} else {
			err = txn.SetEntry(badger.NewEntry(key, m.Value))
		}
		if err == badger.ErrTxnTooBig {
			log.Printf("kv: commit at ts=%d exceeded one transaction, splitting into multiple commits at the same timestamp", ts)
			if cerr := txn.CommitAt(ts, nil); cerr != nil {
				return fmt.Errorf("kv: commit (split): %w", cerr)
			}
			txn = e.db.NewTransactionAt(ts, true)
			if m.Delete {
				err = txn.Delete(key)
			} else {
				err = txn.SetEntry(badger.NewEntry(key, m.Value))
			}
		}
		if err != nil {
			return fmt.Errorf("kv: buffer mutation: %w", err)
		}
	}

	if err := txn.CommitAt(ts, nil); err != nil {
		return fmt.Errorf("kv: commit: %w", err)
	}
	return nil
}

// persistCatalogLocked writes the current table registry and next-ID
// counter. Callers must hold e.mu.
func (e *Engine) persistCatalogLocked() error {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	ts := e.nextTimestamp()
	txn := e.db.NewTransactionAt(ts, true)
	defer txn.Discard()

	for name, id := range e.tables {
		key := encodeKey(catalogTableID, []byte(name), catalogFamily, catalogQualifier)
		if err := txn.SetEntry(badger.NewEntry(key, tableIDBytes(id))); err != nil {
			return fmt.Errorf("kv: persist catalog entry %q: %w", name, err)
		}
	}
	nextIDKey := encodeKey(catalogTableID, catalogRowNextID, catalogFamily, catalogQualifier)
	if err := txn.SetEntry(badger.NewEntry(nextIDKey, tableIDBytes(e.nextID))); err != nil {
		return fmt.Errorf("kv: persist catalog counter: %w", err)
	}
	if err := txn.CommitAt(ts, nil); err != nil {
		return fmt.Errorf("kv: commit catalog: %w", err)
	}
	return nil
}
