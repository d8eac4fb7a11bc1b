package graph

import (
	"context"
	"fmt"

	"github.com/latticegraph/lattice/pkg/codec"
	"github.com/latticegraph/lattice/pkg/kv"
)

// reserved property keys: SetProperty rejects both, RemoveProperty rejects
// only "label", per spec.md §4.4 ("not id, not label").
const (
	reservedKeyID    = "id"
	reservedKeyLabel = "label"
)

// validateSetPropertyKey enforces the full reserved-key rule spec.md §4.4
// states for set_property. get_property/remove_property intentionally
// apply a narrower check (see their own call sites) since the spec only
// documents the full validation for the write path.
func validateSetPropertyKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if key == reservedKeyID || key == reservedKeyLabel {
		return ErrReservedKey
	}
	return nil
}

// SetProperty writes a property value on kind/id, maintaining the key
// index if key is currently key-indexed (spec.md §4.4 set_property).
func (g *Graph) SetProperty(ctx context.Context, kind Kind, id, key string, value any, ts uint64) error {
	if id == "" {
		return ErrNullId
	}
	if err := validateSetPropertyKey(key); err != nil {
		return err
	}
	if value == nil {
		return ErrNullProperty
	}
	if err := codec.ValidateComponent(key); err != nil {
		return fmt.Errorf("graph: %w", err)
	}

	encoded, err := codec.Serialize(value)
	if err != nil {
		return fmt.Errorf("%w: serialize property: %v", ErrStore, err)
	}

	table := g.baseTable(kind)
	w, err := g.mw.Table(table.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if g.isKeyIndexed(kind, key) {
		if old, err := table.Get([]byte(id), []byte(key), nil); err == nil {
			idxW, err := g.mw.Table(g.indexTable(kind).Name())
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStore, err)
			}
			idxW.Delete(old.Value, []byte(key), codec.IndexQualifier(id), ts)
		} else if err != kv.ErrNotFound {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}

		idxW, err := g.mw.Table(g.indexTable(kind).Name())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		idxW.Put(encoded, []byte(key), codec.IndexQualifier(id), nil, ts)
	}

	w.Put([]byte(id), []byte(key), nil, encoded, ts)

	if err := g.flushIfAuto(); err != nil {
		return err
	}

	// Property set does not invalidate the element's cache entry; it
	// caches the new property binding itself, whether or not the element
	// is cached (spec.md §4.3 coherence rules).
	g.propCache.Put(propCacheKey(kind, id, key), encoded, []string{key})
	return nil
}

// GetProperty reads a property value on kind/id, honoring ctx's timestamp
// filter if present.
func (g *Graph) GetProperty(ctx context.Context, kind Kind, id, key string) (any, error) {
	if id == "" {
		return nil, ErrNullId
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	if _, ok := timestampFilterFrom(ctx); !ok {
		if encoded, ok := g.propCache.Get(propCacheKey(kind, id, key)); ok {
			return codec.Deserialize(encoded)
		}
	}

	cell, err := g.getCell(ctx, g.baseTable(kind), []byte(id), []byte(key), nil)
	if err == kv.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	value, err := codec.Deserialize(cell.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: decode property: %v", ErrStore, err)
	}
	g.propCache.Put(propCacheKey(kind, id, key), cell.Value, []string{key})
	return value, nil
}

// GetVersionedProperty returns every version of a property within the
// timestamp filter attached to ctx, newest first (spec.md §4.4
// get_versioned_property). ctx must carry a filter (see
// WithTimestampFilter); ErrInvalidFilter is returned otherwise.
func (g *Graph) GetVersionedProperty(ctx context.Context, kind Kind, id, key string) ([]VersionedValue, error) {
	if id == "" {
		return nil, ErrNullId
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	f, ok := timestampFilterFrom(ctx)
	if !ok {
		return nil, ErrInvalidFilter
	}

	versions, err := g.baseTable(kind).GetVersionedAll([]byte(id), []byte(key), nil, f.toKV())
	if err == kv.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	out := make([]VersionedValue, 0, len(versions))
	for _, v := range versions {
		decoded, err := codec.Deserialize(v.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: decode versioned property: %v", ErrStore, err)
		}
		out = append(out, VersionedValue{Timestamp: v.Timestamp, Value: decoded})
	}
	return out, nil
}

// VersionedValue is one (timestamp, decoded value) pair returned by
// GetVersionedProperty.
type VersionedValue struct {
	Timestamp uint64
	Value     any
}

// RemoveProperty deletes a property value on kind/id and its key-index
// cell if registered, returning the decoded old value.
func (g *Graph) RemoveProperty(kind Kind, id, key string) (any, error) {
	if id == "" {
		return nil, ErrNullId
	}
	if key == reservedKeyLabel {
		return nil, ErrReservedKey
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	table := g.baseTable(kind)
	cell, err := table.Get([]byte(id), []byte(key), nil)
	if err == kv.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	w, err := g.mw.Table(table.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	w.Delete([]byte(id), []byte(key), nil, 0)

	if g.isKeyIndexed(kind, key) {
		idxW, err := g.mw.Table(g.indexTable(kind).Name())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		idxW.Delete(cell.Value, []byte(key), codec.IndexQualifier(id), 0)
	}

	if err := g.flushIfAuto(); err != nil {
		return nil, err
	}
	g.propCache.Invalidate(propCacheKey(kind, id, key))

	return codec.Deserialize(cell.Value)
}

// GetPropertyKeys returns every property key currently set on kind/id.
func (g *Graph) GetPropertyKeys(kind Kind, id string) ([]string, error) {
	if id == "" {
		return nil, ErrNullId
	}
	var keys []string
	err := g.baseTable(kind).Scanner().WithRange(kv.RowRange([]byte(id))).Each(func(c kv.Cell) (bool, error) {
		family := string(c.Family)
		if family == codec.FamilyExistence || family == codec.FamilyIn || family == codec.FamilyOut {
			return true, nil
		}
		keys = append(keys, family)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return keys, nil
}
