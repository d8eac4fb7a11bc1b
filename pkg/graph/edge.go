package graph

import (
	"context"
	"fmt"

	"github.com/latticegraph/lattice/pkg/codec"
	"github.com/latticegraph/lattice/pkg/kv"
)

// AddEdge creates a new edge from outV to inV. No endpoint existence check
// is performed (spec.md §1 Non-goals: "global existence checking on edge
// insertion"). If id is empty a fresh random ID is generated.
func (g *Graph) AddEdge(id, outV, inV, label string, ts uint64) (*Edge, error) {
	if label == "" {
		return nil, ErrNullLabel
	}
	if id == "" {
		id = newID()
	}
	for _, component := range []string{id, outV, inV, label} {
		if err := codec.ValidateComponent(component); err != nil {
			return nil, fmt.Errorf("graph: %w", err)
		}
	}

	encodedLabel, err := codec.Serialize(label)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize label: %v", ErrStore, err)
	}

	edgeW, err := g.mw.Table(g.edgeTable.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	vertexW, err := g.mw.Table(g.vertexTable.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	edgeW.Put([]byte(id), []byte(codec.FamilyExistence), codec.EdgeExistenceQualifier(inV, outV), encodedLabel, ts)
	vertexW.Put([]byte(inV), []byte(codec.FamilyIn), codec.AdjacencyQualifier(outV, id), codec.AdjacencyValue(label), ts)
	vertexW.Put([]byte(outV), []byte(codec.FamilyOut), codec.AdjacencyQualifier(inV, id), codec.AdjacencyValue(label), ts)

	if err := g.flushIfAuto(); err != nil {
		return nil, err
	}

	e := Edge{ID: id, Label: label, InV: inV, OutV: outV}
	g.edgeCache.Put(id, e, nil)
	return &e, nil
}

// GetEdge returns the edge identified by id, honoring ctx's timestamp
// filter if present.
func (g *Graph) GetEdge(ctx context.Context, id string) (*Edge, error) {
	if id == "" {
		return nil, ErrNullId
	}
	if _, ok := timestampFilterFrom(ctx); !ok {
		if e, ok := g.edgeCache.Get(id); ok {
			return &e, nil
		}
	}

	// The existence cell's qualifier encodes the endpoints and isn't known
	// in advance, so it must be located by scanning the row rather than a
	// direct Get by exact key.
	var cell *kv.Cell
	filter, hasFilter := timestampFilterFrom(ctx)
	scanner := g.edgeTable.Scanner().WithRange(kv.RowRange([]byte(id))).WithFamily(codec.FamilyExistence)
	if hasFilter {
		kvFilter := filter.toKV()
		scanner = scanner.WithFilter(kv.ScanFilter{Timestamp: &kvFilter})
	}
	err := scanner.Each(func(c kv.Cell) (bool, error) {
		found := c
		cell = &found
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if cell == nil {
		return nil, ErrNotFound
	}

	inV, outV, err := codec.ParseEdgeExistenceQualifier(cell.Qualifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	label, err := codec.Deserialize(cell.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: decode label: %v", ErrStore, err)
	}
	labelStr, _ := label.(string)

	e := Edge{ID: id, Label: labelStr, InV: inV, OutV: outV}
	g.edgeCache.Put(id, e, nil)
	return &e, nil
}

// RemoveEdge deletes an edge, its two adjacency cells, and sweeps named
// and key index references (spec.md §4.4 remove_edge). Per spec.md §9
// Open Question #2, the timestamp handling for the index-delete branch is
// implemented identically to RemoveVertex's, not the inverted conditional
// flagged as a likely source bug.
func (g *Graph) RemoveEdge(id string, ts uint64) error {
	if id == "" {
		return ErrNullId
	}

	cells, err := g.edgeTable.Scanner().WithRange(kv.RowRange([]byte(id))).Collect()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if len(cells) == 0 {
		return ErrNotFound
	}

	var inV, outV string
	var existenceFound bool
	for _, c := range cells {
		if string(c.Family) == codec.FamilyExistence {
			inV, outV, err = codec.ParseEdgeExistenceQualifier(c.Qualifier)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStore, err)
			}
			existenceFound = true
			break
		}
	}
	if !existenceFound {
		return ErrNotFound
	}

	g.edgeCache.Invalidate(id)
	if err := g.sweepNamedIndices(EdgeKind, id); err != nil {
		return err
	}

	edgeW, err := g.mw.Table(g.edgeTable.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	vertexW, err := g.mw.Table(g.vertexTable.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	idxW, err := g.mw.Table(g.edgeIndexTable.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	for _, c := range cells {
		switch string(c.Family) {
		case codec.FamilyExistence:
			edgeW.Delete([]byte(id), c.Family, c.Qualifier, ts)
		default:
			key := string(c.Family)
			if g.isKeyIndexed(EdgeKind, key) {
				idxW.Delete(c.Value, []byte(key), codec.IndexQualifier(id), ts)
			}
			edgeW.Delete([]byte(id), c.Family, c.Qualifier, ts)
		}
	}

	vertexW.Delete([]byte(inV), []byte(codec.FamilyIn), codec.AdjacencyQualifier(outV, id), ts)
	vertexW.Delete([]byte(outV), []byte(codec.FamilyOut), codec.AdjacencyQualifier(inV, id), ts)

	if err := g.Flush(); err != nil {
		return err
	}

	return g.edgeTable.BatchDeleter(1).DeleteRange(context.Background(), kv.RowRange([]byte(id)), ts)
}
