package graph

import (
	"context"
	"fmt"
	"log"

	"github.com/latticegraph/lattice/pkg/codec"
	"github.com/latticegraph/lattice/pkg/kv"
)

// Index is a named secondary mapping (property_key, property_value) ->
// set<element_id>, populated and queried explicitly by the caller (spec.md
// §3/§4.5: "named indices are maintained explicitly by the caller via the
// index API and are not updated automatically on set_property").
type Index struct {
	graph *Graph
	kind  Kind
	name  string
	table *kv.Table
}

// Name returns the index's name.
func (idx *Index) Name() string { return idx.name }

// Kind returns the element kind this index covers.
func (idx *Index) Kind() Kind { return idx.kind }

// Put registers elementID under (key, value) in the index.
func (idx *Index) Put(key string, value any, elementID string, ts uint64) error {
	if key == "" {
		return ErrEmptyKey
	}
	if elementID == "" {
		return ErrNullId
	}
	if err := codec.ValidateComponent(key); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	encoded, err := codec.Serialize(value)
	if err != nil {
		return fmt.Errorf("%w: serialize index value: %v", ErrStore, err)
	}
	w, err := idx.graph.mw.Table(idx.table.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	w.Put(encoded, []byte(key), codec.IndexQualifier(elementID), nil, ts)
	return idx.graph.flushIfAuto()
}

// Get returns every element ID registered under (key, value).
func (idx *Index) Get(key string, value any) ([]string, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	encoded, err := codec.Serialize(value)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize index value: %v", ErrStore, err)
	}
	cells, err := idx.table.Scanner().WithRange(kv.RowRange(encoded)).WithFamily(key).Collect()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	ids := make([]string, 0, len(cells))
	for _, c := range cells {
		ids = append(ids, string(c.Qualifier))
	}
	return ids, nil
}

// Remove unregisters elementID from (key, value).
func (idx *Index) Remove(key string, value any, elementID string, ts uint64) error {
	if key == "" {
		return ErrEmptyKey
	}
	encoded, err := codec.Serialize(value)
	if err != nil {
		return fmt.Errorf("%w: serialize index value: %v", ErrStore, err)
	}
	w, err := idx.graph.mw.Table(idx.table.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	w.Delete(encoded, []byte(key), codec.IndexQualifier(elementID), ts)
	return idx.graph.flushIfAuto()
}

// CreateIndex registers a new named index for kind, provisioning its
// backing table (spec.md §4.4 create_index). Returns ErrIndexAlreadyExists
// if name is already registered for the same kind, ErrIndexClassMismatch if
// it is registered for the other kind, and ErrIndexingDisabled if
// Options.IndexableGraphDisabled is set.
func (g *Graph) CreateIndex(kind Kind, name string) (*Index, error) {
	if g.opts.IndexableGraphDisabled {
		return nil, ErrIndexingDisabled
	}
	if name == "" {
		return nil, ErrEmptyKey
	}

	g.mu.Lock()
	if existingKind, ok := g.namedIndices[name]; ok {
		g.mu.Unlock()
		if existingKind != kind {
			return nil, ErrIndexClassMismatch
		}
		return nil, ErrIndexAlreadyExists
	}
	g.namedIndices[name] = kind
	g.mu.Unlock()

	tableName := codec.IndexTableName(g.opts.GraphName, name)
	table, err := g.engine.EnsureTable(tableName)
	if err != nil {
		g.mu.Lock()
		delete(g.namedIndices, name)
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	w, err := g.mw.Table(g.metadataTable.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	w.Put([]byte(name), []byte(g.metaFamily(kind)), nil, nil, 0)
	if err := g.Flush(); err != nil {
		return nil, err
	}

	return &Index{graph: g, kind: kind, name: name, table: table}, nil
}

// GetIndex returns the named index, or ErrNotFound if it has not been
// created.
func (g *Graph) GetIndex(name string) (*Index, error) {
	g.mu.RLock()
	kind, ok := g.namedIndices[name]
	g.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	table, err := g.engine.Table(codec.IndexTableName(g.opts.GraphName, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return &Index{graph: g, kind: kind, name: name, table: table}, nil
}

// GetIndices returns every currently registered named index.
func (g *Graph) GetIndices() ([]*Index, error) {
	g.mu.RLock()
	names := make([]string, 0, len(g.namedIndices))
	kinds := make([]Kind, 0, len(g.namedIndices))
	for name, kind := range g.namedIndices {
		names = append(names, name)
		kinds = append(kinds, kind)
	}
	g.mu.RUnlock()

	indices := make([]*Index, 0, len(names))
	for i, name := range names {
		table, err := g.engine.Table(codec.IndexTableName(g.opts.GraphName, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		indices = append(indices, &Index{graph: g, kind: kinds[i], name: name, table: table})
	}
	return indices, nil
}

// DropIndex deletes a named index's metadata row and its backing table
// entirely (spec.md §4.4 drop_index).
func (g *Graph) DropIndex(name string) error {
	g.mu.Lock()
	kind, ok := g.namedIndices[name]
	if !ok {
		g.mu.Unlock()
		return ErrNotFound
	}
	delete(g.namedIndices, name)
	g.mu.Unlock()

	w, err := g.mw.Table(g.metadataTable.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	w.Delete([]byte(name), []byte(g.metaFamily(kind)), nil, 0)
	if err := g.Flush(); err != nil {
		return err
	}

	return g.engine.DropTable(context.Background(), codec.IndexTableName(g.opts.GraphName, name))
}

// CreateKeyIndex registers key as auto-maintained for kind and re-indexes
// every existing element carrying it (spec.md §4.4 create_key_index).
func (g *Graph) CreateKeyIndex(key string, kind Kind, ts uint64) error {
	if g.opts.IndexableGraphDisabled {
		return ErrIndexingDisabled
	}
	if key == "" {
		return ErrEmptyKey
	}

	g.mu.Lock()
	if g.keyIndices[kind][key] {
		g.mu.Unlock()
		return nil
	}
	g.keyIndices[kind][key] = true
	g.mu.Unlock()

	w, err := g.mw.Table(g.keyMetaTable.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	w.Put([]byte(key), []byte(g.metaFamily(kind)), nil, nil, 0)
	if err := g.Flush(); err != nil {
		return err
	}

	idxW, err := g.mw.Table(g.indexTable(kind).Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	err = g.baseTable(kind).BatchScanner(g.opts.QueryThreads).WithFamily(key).Each([]kv.Range{kv.FullRange()}, func(c kv.Cell) (bool, error) {
		idxW.Put(c.Value, []byte(key), codec.IndexQualifier(string(c.Row)), nil, ts)
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("%w: re-index %s: %v", ErrStore, key, err)
	}

	return g.Flush()
}

// DropKeyIndex unregisters key for kind and deletes every cell it
// contributed to the kind's index table (spec.md §4.4 drop_key_index).
func (g *Graph) DropKeyIndex(key string, kind Kind) error {
	if key == "" {
		return ErrEmptyKey
	}

	g.mu.Lock()
	if !g.keyIndices[kind][key] {
		g.mu.Unlock()
		return nil
	}
	delete(g.keyIndices[kind], key)
	g.mu.Unlock()

	w, err := g.mw.Table(g.keyMetaTable.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	w.Delete([]byte(key), []byte(g.metaFamily(kind)), nil, 0)
	if err := g.Flush(); err != nil {
		return err
	}

	deleter := g.indexTable(kind).BatchDeleter(g.opts.WriteThreads).WithFamily(key)
	return deleter.DeleteRange(context.Background(), kv.FullRange(), 0)
}

// GetIndexedKeys returns every property key currently auto-maintained for
// kind.
func (g *Graph) GetIndexedKeys(kind Kind) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]string, 0, len(g.keyIndices[kind]))
	for k := range g.keyIndices[kind] {
		keys = append(keys, k)
	}
	return keys, nil
}

// sweepNamedIndices clears every named index of kind of any reference to
// elementID (spec.md §4.5: "per-index range-delete with a row-regex
// predicate matching qualifiers ending in the element ID"). Index-table
// qualifiers are always the bare element ID (see codec.IndexQualifier), so
// an exact qualifier match is equivalent to that suffix predicate; the scan
// is driven directly rather than through BatchDeleter since BatchDeleter's
// regex filter matches rows (encoded property values), not qualifiers.
func (g *Graph) sweepNamedIndices(kind Kind, elementID string) error {
	g.mu.RLock()
	var tableNames []string
	for name, k := range g.namedIndices {
		if k == kind {
			tableNames = append(tableNames, codec.IndexTableName(g.opts.GraphName, name))
		}
	}
	g.mu.RUnlock()

	for _, name := range tableNames {
		table, err := g.engine.Table(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		w := table.Writer()
		var swept int
		err = table.Scanner().Each(func(c kv.Cell) (bool, error) {
			if string(c.Qualifier) == elementID {
				w.Delete(c.Row, c.Family, c.Qualifier, 0)
				swept++
			}
			return true, nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		if swept > 0 {
			log.Printf("graph: swept %d stale reference(s) to %s from named index %q", swept, elementID, name)
		}
	}
	return nil
}
