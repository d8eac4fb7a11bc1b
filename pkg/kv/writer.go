package kv

import "sync"

// Writer buffers mutations for a single table until Flush commits them.
// Safe for concurrent use; mutations are applied in the order Put/Delete
// was called, though the underlying store makes no ordering guarantee
// between mutations to different cells within one commit.
type Writer struct {
	table *Table

	mu      sync.Mutex
	pending []Mutation
}

// Put buffers a write. ts of 0 requests an auto-assigned timestamp at flush
// time; any other value is an explicit timestamp the caller supplies
// (spec.md's explicit-timestamp mutation overloads).
func (w *Writer) Put(row, family, qualifier, value []byte, ts uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, Mutation{
		Table: w.table.name, Row: row, Family: family, Qualifier: qualifier,
		Value: value, Timestamp: ts,
	})
}

// Delete buffers a tombstone for a single cell.
func (w *Writer) Delete(row, family, qualifier []byte, ts uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, Mutation{
		Table: w.table.name, Row: row, Family: family, Qualifier: qualifier,
		Timestamp: ts, Delete: true,
	})
}

// Pending returns a snapshot of the currently buffered mutations without
// clearing them.
func (w *Writer) Pending() []Mutation {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Mutation, len(w.pending))
	copy(out, w.pending)
	return out
}

// Clear discards every buffered mutation without committing them.
func (w *Writer) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = nil
}

// Flush commits every buffered mutation to this table alone (one managed
// transaction per distinct timestamp; see Engine.commitMutations) and
// clears the buffer on success. Mutations stay buffered if the commit
// fails, so the caller may retry or Clear. The buffer stays locked for the
// whole commit, so a concurrent Put waits for it rather than being dropped.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	muts := make([]Mutation, len(w.pending))
	copy(muts, w.pending)

	if len(muts) == 0 {
		return nil
	}
	if err := w.table.engine.commitMutations(muts, map[string]*Table{w.table.name: w.table}); err != nil {
		return err
	}
	w.pending = nil
	return nil
}
