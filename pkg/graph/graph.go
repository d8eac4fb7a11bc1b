package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/latticegraph/lattice/pkg/cache"
	"github.com/latticegraph/lattice/pkg/codec"
	"github.com/latticegraph/lattice/pkg/kv"
)

// Options configures a Graph. Every field corresponds to one of the
// recognized options in spec.md §6.4; pkg/config.Config maps onto this at
// startup (see cmd/latticegraph).
type Options struct {
	// GraphName prefixes this graph's named index tables
	// (<GraphName>_index_<indexName>).
	GraphName string

	// AutoFlush flushes the multi-writer after every public write
	// operation instead of leaving mutations buffered until an explicit
	// Flush call.
	AutoFlush bool

	// SkipExistenceChecks disables the duplicate-ID scan in AddVertex and
	// makes GetVertex return a lazy handle without a store round trip.
	// GetEdge does not read it: it always reads the edge row and returns
	// ErrNotFound for a missing edge.
	SkipExistenceChecks bool

	// AutoIndex treats every property key as key-indexed for the
	// duration of its writes and reads, without requiring
	// CreateKeyIndex to have been called.
	AutoIndex bool

	// IndexableGraphDisabled rejects CreateIndex/CreateKeyIndex entirely.
	IndexableGraphDisabled bool

	// CacheCapacity is the LRU max capacity per kind (0 disables caches).
	CacheCapacity int
	// VertexCacheTTL / EdgeCacheTTL are the default per-kind cache TTLs.
	VertexCacheTTL time.Duration
	EdgeCacheTTL   time.Duration
	// PropertyCacheTTL overrides the kind TTL for specific property keys
	// (cache.NeverCache excludes elements carrying that key altogether).
	PropertyCacheTTL map[string]time.Duration

	// PreloadProperties is stored on the Graph but no operation reads it:
	// element loads fetch only the existence cell, and properties are read
	// on demand by GetProperty.
	PreloadProperties []string
	// PreloadEdgeLabels is stored on the Graph but no operation reads it;
	// adjacency reads are restricted only by the labels passed to them.
	PreloadEdgeLabels []string

	// LegacyIndexSweep restores the documented legacy asymmetry where
	// key-index cells of cascade-removed edges are not swept during
	// vertex removal (spec.md §9 Open Question #1; default false = fixed
	// behavior, sweep them).
	LegacyIndexSweep bool

	// BestEffort is stored on the Graph but no operation reads it; store
	// failures are always surfaced as errors wrapping ErrStore.
	BestEffort bool

	// QueryThreads bounds batch-scanner fan-out. WriteThreads is passed to
	// kv.Table.BatchDeleter, whose DeleteRange runs on the calling
	// goroutine regardless of it.
	QueryThreads int
	WriteThreads int
}

func (o Options) withDefaults() Options {
	if o.GraphName == "" {
		o.GraphName = "graph"
	}
	if o.QueryThreads <= 0 {
		o.QueryThreads = 4
	}
	if o.WriteThreads <= 0 {
		o.WriteThreads = 4
	}
	return o
}

// Graph is the orchestrator described in spec.md §2/§4.4. One Graph owns
// the six base tables, the named/key index registries, a persistent
// multi-writer, and the two element caches. All public operations are
// safe for concurrent use from multiple goroutines, per spec.md §5.
type Graph struct {
	opts   Options
	engine *kv.Engine

	vertexTable      *kv.Table
	edgeTable        *kv.Table
	vertexIndexTable *kv.Table
	edgeIndexTable   *kv.Table
	metadataTable    *kv.Table
	keyMetaTable     *kv.Table

	mw *kv.MultiWriter

	vertexCache *cache.Cache[Vertex]
	edgeCache   *cache.Cache[Edge]
	// propCache holds pre-decoded (kind, id, key) -> encoded property value
	// bindings, the "bag of pre-decoded property bindings" spec.md §4.3
	// describes living on a cached element; kept as its own cache so the
	// per-property TTL override applies independent of the owning
	// element's own cache entry.
	propCache *cache.Cache[[]byte]

	mu           sync.RWMutex
	namedIndices map[string]Kind          // indexName -> kind
	keyIndices   map[Kind]map[string]bool // kind -> key -> registered
}

// New opens (creating if necessary) the six base tables on engine and
// loads the named/key index registries, returning a ready-to-use Graph.
func New(engine *kv.Engine, opts Options) (*Graph, error) {
	opts = opts.withDefaults()

	g := &Graph{
		opts:         opts,
		engine:       engine,
		namedIndices: make(map[string]Kind),
		keyIndices:   map[Kind]map[string]bool{VertexKind: {}, EdgeKind: {}},
	}

	var err error
	if g.vertexTable, err = engine.EnsureTable(codec.TableVertex); err != nil {
		return nil, fmt.Errorf("graph: open vertex table: %w", err)
	}
	if g.edgeTable, err = engine.EnsureTable(codec.TableEdge); err != nil {
		return nil, fmt.Errorf("graph: open edge table: %w", err)
	}
	if g.vertexIndexTable, err = engine.EnsureTable(codec.TableVertexIndex); err != nil {
		return nil, fmt.Errorf("graph: open vertex index table: %w", err)
	}
	if g.edgeIndexTable, err = engine.EnsureTable(codec.TableEdgeIndex); err != nil {
		return nil, fmt.Errorf("graph: open edge index table: %w", err)
	}
	if g.metadataTable, err = engine.EnsureTable(codec.TableMetadata); err != nil {
		return nil, fmt.Errorf("graph: open metadata table: %w", err)
	}
	if g.keyMetaTable, err = engine.EnsureTable(codec.TableKeyMetadata); err != nil {
		return nil, fmt.Errorf("graph: open key-metadata table: %w", err)
	}

	g.mw = engine.MultiWriter()

	vertexPropTTL := map[string]time.Duration{}
	edgePropTTL := map[string]time.Duration{}
	for k, v := range opts.PropertyCacheTTL {
		vertexPropTTL[k] = v
		edgePropTTL[k] = v
	}
	g.vertexCache = cache.New[Vertex](cache.Config{Capacity: opts.CacheCapacity, DefaultTTL: opts.VertexCacheTTL, PropertyTTL: vertexPropTTL})
	g.edgeCache = cache.New[Edge](cache.Config{Capacity: opts.CacheCapacity, DefaultTTL: opts.EdgeCacheTTL, PropertyTTL: edgePropTTL})
	g.propCache = cache.New[[]byte](cache.Config{Capacity: opts.CacheCapacity, DefaultTTL: 0, PropertyTTL: opts.PropertyCacheTTL})

	if err := g.loadIndexRegistries(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) loadIndexRegistries() error {
	cells, err := g.metadataTable.Scanner().Collect()
	if err != nil {
		return fmt.Errorf("graph: load named indices: %w", err)
	}
	g.mu.Lock()
	for _, c := range cells {
		kind := VertexKind
		if string(c.Family) == codec.MetaFamilyEdge {
			kind = EdgeKind
		}
		g.namedIndices[string(c.Row)] = kind
	}
	g.mu.Unlock()

	cells, err = g.keyMetaTable.Scanner().Collect()
	if err != nil {
		return fmt.Errorf("graph: load key indices: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range cells {
		kind := VertexKind
		if string(c.Family) == codec.MetaFamilyEdge {
			kind = EdgeKind
		}
		g.keyIndices[kind][string(c.Row)] = true
	}
	return nil
}

// baseTable returns the primary element table for kind.
func (g *Graph) baseTable(kind Kind) *kv.Table {
	if kind == VertexKind {
		return g.vertexTable
	}
	return g.edgeTable
}

// indexTable returns the key-index-backed secondary table for kind.
func (g *Graph) indexTable(kind Kind) *kv.Table {
	if kind == VertexKind {
		return g.vertexIndexTable
	}
	return g.edgeIndexTable
}

func (g *Graph) metaFamily(kind Kind) string {
	if kind == VertexKind {
		return codec.MetaFamilyVertex
	}
	return codec.MetaFamilyEdge
}

// isKeyIndexed reports whether key is currently key-indexed for kind,
// either explicitly registered or via AutoIndex.
func (g *Graph) isKeyIndexed(kind Kind, key string) bool {
	if g.opts.AutoIndex {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.keyIndices[kind][key]
}

func (g *Graph) flushIfAuto() error {
	if !g.opts.AutoFlush {
		return nil
	}
	return g.Flush()
}

// Flush commits every mutation buffered in the graph's multi-writer.
func (g *Graph) Flush() error {
	if err := g.mw.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrStore, err)
	}
	return nil
}

// Shutdown flushes any pending mutations and wipes both element caches;
// the multi-writer stays usable. The underlying kv.Engine is not closed — callers
// that opened it are responsible for closing it.
func (g *Graph) Shutdown() error {
	err := g.Flush()
	g.vertexCache.Clear()
	g.edgeCache.Clear()
	return err
}

// Clear removes every vertex, edge, index cell, and cached element,
// leaving the graph empty but its tables and registries intact.
func (g *Graph) Clear() error {
	g.mw.Clear()

	for _, t := range []*kv.Table{g.vertexTable, g.edgeTable, g.vertexIndexTable, g.edgeIndexTable} {
		if err := t.BatchDeleter(g.opts.WriteThreads).DeleteRange(context.Background(), kv.FullRange(), 0); err != nil {
			return fmt.Errorf("%w: clear %s: %v", ErrStore, t.Name(), err)
		}
	}
	g.vertexCache.Clear()
	g.edgeCache.Clear()
	g.propCache.Clear()
	return nil
}

// getCell fetches a single cell, honoring a timestamp filter attached to
// ctx (if any) via versioned reads instead of a plain latest-value get.
func (g *Graph) getCell(ctx context.Context, table *kv.Table, row, family, qualifier []byte) (*kv.Cell, error) {
	if f, ok := timestampFilterFrom(ctx); ok {
		vv, err := table.GetVersioned(row, family, qualifier, f.toKV())
		if err != nil {
			return nil, err
		}
		return &kv.Cell{Row: row, Family: family, Qualifier: qualifier, Value: vv.Value, Timestamp: vv.Timestamp}, nil
	}
	return table.Get(row, family, qualifier)
}

// propCacheKey builds the composite key under which a single property
// binding is cached, independent of whether its owning element is cached.
func propCacheKey(kind Kind, id, key string) string {
	return kind.String() + "\x00" + id + "\x00" + key
}

// IsEmpty reports whether the graph currently has zero vertices.
func (g *Graph) IsEmpty() (bool, error) {
	empty := true
	err := g.vertexTable.Scanner().WithFamily(codec.FamilyExistence).Each(func(kv.Cell) (bool, error) {
		empty = false
		return false, nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: is_empty: %v", ErrStore, err)
	}
	return empty, nil
}
