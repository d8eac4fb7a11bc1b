package graph

import (
	"context"
	"fmt"

	"github.com/latticegraph/lattice/pkg/codec"
	"github.com/latticegraph/lattice/pkg/kv"
)

// AddVertex creates a new vertex. If id is empty a fresh random ID is
// generated. With existence checks enabled (the default), adding a
// duplicate ID fails with ErrDuplicateId; with them disabled, the new
// existence cell simply overwrites whatever was there (last write wins).
func (g *Graph) AddVertex(id string, ts uint64) (*Vertex, error) {
	if id == "" {
		id = newID()
	}
	if err := codec.ValidateComponent(id); err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}

	if !g.opts.SkipExistenceChecks {
		_, err := g.vertexTable.Get([]byte(id), []byte(codec.FamilyExistence), []byte(codec.ExistenceQualifier))
		if err == nil {
			return nil, ErrDuplicateId
		}
		if err != kv.ErrNotFound {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
	}

	w, err := g.mw.Table(g.vertexTable.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	w.Put([]byte(id), []byte(codec.FamilyExistence), []byte(codec.ExistenceQualifier), nil, ts)

	if err := g.flushIfAuto(); err != nil {
		return nil, err
	}

	v := Vertex{ID: id}
	g.vertexCache.Put(id, v, nil)
	return &v, nil
}

// GetVertex returns the vertex identified by id. With existence checks
// disabled, no store round trip is made: a lazy handle is returned
// unconditionally (spec.md §4.4 get_vertex).
func (g *Graph) GetVertex(ctx context.Context, id string) (*Vertex, error) {
	if id == "" {
		return nil, ErrNullId
	}
	if v, ok := g.vertexCache.Get(id); ok {
		return &v, nil
	}
	if g.opts.SkipExistenceChecks {
		v := Vertex{ID: id}
		return &v, nil
	}

	_, err := g.getCell(ctx, g.vertexTable, []byte(id), []byte(codec.FamilyExistence), []byte(codec.ExistenceQualifier))
	if err == kv.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	v := Vertex{ID: id}
	g.vertexCache.Put(id, v, nil)
	return &v, nil
}

// RemoveVertex deletes a vertex, cascading to every incident edge and
// sweeping named-index references (spec.md §4.4 remove_vertex / §4.5).
// With Options.LegacyIndexSweep set, key-index cells belonging to the
// cascade-removed edges are left behind, restoring the documented legacy
// asymmetry (spec.md §9 Open Question #1); by default they are swept.
func (g *Graph) RemoveVertex(id string, ts uint64) error {
	if id == "" {
		return ErrNullId
	}

	if _, err := g.vertexTable.Get([]byte(id), []byte(codec.FamilyExistence), []byte(codec.ExistenceQualifier)); err != nil {
		if err == kv.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	g.vertexCache.Invalidate(id)
	if err := g.sweepNamedIndices(VertexKind, id); err != nil {
		return err
	}

	cells, err := g.vertexTable.Scanner().WithRange(kv.RowRange([]byte(id))).Collect()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	vertexW, err := g.mw.Table(g.vertexTable.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	vertexIdxW, err := g.mw.Table(g.vertexIndexTable.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	var edgeIDs []string
	for _, c := range cells {
		family := string(c.Family)
		switch family {
		case codec.FamilyIn, codec.FamilyOut:
			otherVertexID, edgeID, perr := codec.ParseAdjacencyQualifier(c.Qualifier)
			if perr != nil {
				return fmt.Errorf("%w: %v", ErrStore, perr)
			}
			edgeIDs = append(edgeIDs, edgeID)

			// The peer's inverted adjacency cell uses the opposite
			// family: our IN cell corresponds to the peer's OUT cell
			// (pointing back at us) and vice versa.
			peerFamily := codec.FamilyOut
			if family == codec.FamilyOut {
				peerFamily = codec.FamilyIn
			}
			vertexW.Delete([]byte(otherVertexID), []byte(peerFamily), codec.AdjacencyQualifier(id, edgeID), ts)

			if !g.opts.LegacyIndexSweep {
				if err := g.sweepCascadedEdgeKeyIndex(edgeID, ts); err != nil {
					return err
				}
			}
		case codec.FamilyExistence:
			// existence marker itself; removed by the final row delete.
		default:
			// property cell: stage an index-table delete.
			key := family
			if g.isKeyIndexed(VertexKind, key) {
				vertexIdxW.Delete(c.Value, []byte(key), codec.IndexQualifier(id), ts)
			}
		}
	}

	if err := g.Flush(); err != nil {
		return err
	}

	if len(edgeIDs) > 0 {
		edgeDeleter := g.edgeTable.BatchDeleter(g.opts.WriteThreads)
		for _, eid := range edgeIDs {
			g.edgeCache.Invalidate(eid)
			if err := edgeDeleter.DeleteRange(context.Background(), kv.RowRange([]byte(eid)), ts); err != nil {
				return fmt.Errorf("%w: %v", ErrStore, err)
			}
		}
	}

	vertexDeleter := g.vertexTable.BatchDeleter(1)
	if err := vertexDeleter.DeleteRange(context.Background(), kv.RowRange([]byte(id)), ts); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

// sweepCascadedEdgeKeyIndex removes the key-index cells belonging to an
// edge that is about to be cascade-deleted as part of a vertex removal.
// This is the fix side of spec.md §9 Open Question #1: the original
// behavior leaves these cells dangling.
func (g *Graph) sweepCascadedEdgeKeyIndex(edgeID string, ts uint64) error {
	edgeCells, err := g.edgeTable.Scanner().WithRange(kv.RowRange([]byte(edgeID))).Collect()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	idxW, err := g.mw.Table(g.edgeIndexTable.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	for _, c := range edgeCells {
		if string(c.Family) == codec.FamilyExistence {
			continue
		}
		key := string(c.Family)
		if g.isKeyIndexed(EdgeKind, key) {
			idxW.Delete(c.Value, []byte(key), codec.IndexQualifier(edgeID), ts)
		}
	}
	return nil
}
