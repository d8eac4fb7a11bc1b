package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/latticegraph/lattice/pkg/codec"
	"github.com/latticegraph/lattice/pkg/kv"
)

// GetVertices returns every vertex currently in the graph (spec.md §4.4
// get_vertices()).
func (g *Graph) GetVertices(ctx context.Context) ([]*Vertex, error) {
	var out []*Vertex
	s := g.vertexTable.Scanner().WithFamily(codec.FamilyExistence)
	if f, ok := timestampFilterFrom(ctx); ok {
		kvFilter := f.toKV()
		s = s.WithFilter(kv.ScanFilter{Timestamp: &kvFilter})
	}
	err := s.Each(func(c kv.Cell) (bool, error) {
		v := Vertex{ID: string(c.Row)}
		out = append(out, &v)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return out, nil
}

// GetEdges returns every edge currently in the graph (spec.md §4.4
// get_edges()).
func (g *Graph) GetEdges(ctx context.Context) ([]*Edge, error) {
	var out []*Edge
	s := g.edgeTable.Scanner().WithFamily(codec.FamilyExistence)
	if f, ok := timestampFilterFrom(ctx); ok {
		kvFilter := f.toKV()
		s = s.WithFilter(kv.ScanFilter{Timestamp: &kvFilter})
	}
	err := s.Each(func(c kv.Cell) (bool, error) {
		inV, outV, perr := codec.ParseEdgeExistenceQualifier(c.Qualifier)
		if perr != nil {
			return false, perr
		}
		label, derr := codec.Deserialize(c.Value)
		if derr != nil {
			return false, derr
		}
		labelStr, _ := label.(string)
		out = append(out, &Edge{ID: string(c.Row), Label: labelStr, InV: inV, OutV: outV})
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return out, nil
}

// idsByProperty resolves the element IDs carrying key=value on kind,
// implementing spec.md §4.4's get_vertices(key,value)/get_edges(key,value)
// lookup: the key-index fast path when key is indexed, otherwise a
// value-regex batch-scan restricted to regex-safe tags, otherwise
// ErrUnsupportedFilter.
func (g *Graph) idsByProperty(kind Kind, key string, value any) ([]string, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	encoded, err := codec.Serialize(value)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize property: %v", ErrStore, err)
	}

	if g.isKeyIndexed(kind, key) {
		cells, err := g.indexTable(kind).Scanner().WithRange(kv.RowRange(encoded)).WithFamily(key).Collect()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		ids := make([]string, 0, len(cells))
		for _, c := range cells {
			ids = append(ids, string(c.Qualifier))
		}
		return ids, nil
	}

	if !codec.IsRegexSafe(encoded) {
		return nil, ErrUnsupportedFilter
	}
	// QuoteMeta turns the encoded value's bytes into an exact-literal
	// pattern, anchored so that longer values sharing the prefix do not match.
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(string(encoded)) + "$")

	var ids []string
	err = g.baseTable(kind).BatchScanner(g.opts.QueryThreads).WithFamily(key).
		WithFilter(kv.ScanFilter{Value: &kv.ValueRegexFilter{Pattern: pattern}}).
		Each([]kv.Range{kv.FullRange()}, func(c kv.Cell) (bool, error) {
			ids = append(ids, string(c.Row))
			return true, nil
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return ids, nil
}

// GetVerticesByProperty returns every vertex with key=value (spec.md §4.4
// get_vertices(key, value)).
func (g *Graph) GetVerticesByProperty(ctx context.Context, key string, value any) ([]*Vertex, error) {
	ids, err := g.idsByProperty(VertexKind, key, value)
	if err != nil {
		return nil, err
	}
	out := make([]*Vertex, 0, len(ids))
	for _, id := range ids {
		v, err := g.GetVertex(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetEdgesByProperty returns every edge with key=value (spec.md §4.4
// get_edges(key, value)).
func (g *Graph) GetEdgesByProperty(ctx context.Context, key string, value any) ([]*Edge, error) {
	ids, err := g.idsByProperty(EdgeKind, key, value)
	if err != nil {
		return nil, err
	}
	out := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		e, err := g.GetEdge(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// adjacencyFamilies returns the column families to scan on the vertex row
// for dir.
func adjacencyFamilies(dir Direction) []string {
	switch dir {
	case Out:
		return []string{codec.FamilyOut}
	case In:
		return []string{codec.FamilyIn}
	default:
		return []string{codec.FamilyIn, codec.FamilyOut}
	}
}

// adjacencyLabelFilter builds the server-side row-value regex filter spec.md
// §4.4 prescribes for label-restricted adjacency traversal: an adjacency
// cell's value is exactly Separator+edgeLabel (codec.AdjacencyValue), so a
// single anchored alternation over the requested labels, each escaped with
// regexp.QuoteMeta the same way idsByProperty escapes an encoded property
// value, matches the cell without ever decoding it first. Returns nil when
// labels is empty (no label restriction, so no filter to attach).
func adjacencyLabelFilter(labels []string) *regexp.Regexp {
	if len(labels) == 0 {
		return nil
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = regexp.QuoteMeta(l)
	}
	pattern := "^" + regexp.QuoteMeta(string(codec.Separator)) + "(?:" + strings.Join(parts, "|") + ")$"
	return regexp.MustCompile(pattern)
}

// GetAdjacentEdges returns every edge incident to vertexID in the requested
// direction, optionally restricted to labels, reconstructed directly from
// adjacency cells without a per-edge round trip (spec.md §4.4
// get_edges(vertex_id, direction, labels...)).
func (g *Graph) GetAdjacentEdges(ctx context.Context, vertexID string, dir Direction, labels ...string) ([]*Edge, error) {
	if vertexID == "" {
		return nil, ErrNullId
	}
	var out []*Edge
	labelFilter := adjacencyLabelFilter(labels)
	for _, family := range adjacencyFamilies(dir) {
		s := g.vertexTable.Scanner().WithRange(kv.RowRange([]byte(vertexID))).WithFamily(family)
		var filter kv.ScanFilter
		if f, ok := timestampFilterFrom(ctx); ok {
			kvFilter := f.toKV()
			filter.Timestamp = &kvFilter
		}
		if labelFilter != nil {
			filter.Value = &kv.ValueRegexFilter{Pattern: labelFilter, Untagged: true}
		}
		s = s.WithFilter(filter)
		err := s.Each(func(c kv.Cell) (bool, error) {
			otherID, edgeID, perr := codec.ParseAdjacencyQualifier(c.Qualifier)
			if perr != nil {
				return false, perr
			}
			label, perr := codec.ParseAdjacencyValue(c.Value)
			if perr != nil {
				return false, perr
			}
			e := &Edge{ID: edgeID, Label: label}
			if family == codec.FamilyOut {
				e.OutV, e.InV = vertexID, otherID
			} else {
				e.OutV, e.InV = otherID, vertexID
			}
			out = append(out, e)
			return true, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
	}
	return out, nil
}

// GetAdjacentVertices returns every vertex adjacent to vertexID in the
// requested direction via an edge with one of labels (or any label, if
// labels is empty), per spec.md §4.4 get_vertices(vertex_id, direction,
// labels...).
func (g *Graph) GetAdjacentVertices(ctx context.Context, vertexID string, dir Direction, labels ...string) ([]*Vertex, error) {
	if vertexID == "" {
		return nil, ErrNullId
	}
	seen := make(map[string]bool)
	var out []*Vertex
	labelFilter := adjacencyLabelFilter(labels)
	for _, family := range adjacencyFamilies(dir) {
		s := g.vertexTable.Scanner().WithRange(kv.RowRange([]byte(vertexID))).WithFamily(family)
		var filter kv.ScanFilter
		if f, ok := timestampFilterFrom(ctx); ok {
			kvFilter := f.toKV()
			filter.Timestamp = &kvFilter
		}
		if labelFilter != nil {
			filter.Value = &kv.ValueRegexFilter{Pattern: labelFilter, Untagged: true}
		}
		s = s.WithFilter(filter)
		err := s.Each(func(c kv.Cell) (bool, error) {
			otherID, _, perr := codec.ParseAdjacencyQualifier(c.Qualifier)
			if perr != nil {
				return false, perr
			}
			if seen[otherID] {
				return true, nil
			}
			seen[otherID] = true
			v, err := g.GetVertex(ctx, otherID)
			if err != nil {
				return false, err
			}
			out = append(out, v)
			return true, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
	}
	return out, nil
}
