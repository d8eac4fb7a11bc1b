package kv

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanner_WithFamily(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("name"), []byte("alice"), 0)
	w.Put([]byte("v1"), []byte("Other"), []byte("x"), []byte("y"), 0)
	w.Put([]byte("v2"), []byte("Vertex"), []byte("name"), []byte("bob"), 0)
	require.NoError(t, w.Flush())

	cells, err := tbl.Scanner().WithFamily("Vertex").Collect()
	require.NoError(t, err)
	require.Len(t, cells, 2)
}

func TestScanner_WithColumn(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("name"), []byte("alice"), 0)
	w.Put([]byte("v1"), []byte("Vertex"), []byte("city"), []byte("nyc"), 0)
	require.NoError(t, w.Flush())

	cells, err := tbl.Scanner().WithColumn("Vertex", "name").Collect()
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, []byte("alice"), cells[0].Value)
}

func TestScanner_WithRange(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("a"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("b"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("c"), []byte("Vertex"), []byte("E"), nil, 0)
	require.NoError(t, w.Flush())

	cells, err := tbl.Scanner().WithRange(Range{Start: []byte("b")}).Collect()
	require.NoError(t, err)
	require.Len(t, cells, 2)
}

func TestScanner_RowRegexFilter(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("user:1"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("group:1"), []byte("Vertex"), []byte("E"), nil, 0)
	require.NoError(t, w.Flush())

	re := regexp.MustCompile("^user:")
	cells, err := tbl.Scanner().WithFilter(ScanFilter{Row: &RowRegexFilter{Pattern: re}}).Collect()
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, []byte("user:1"), cells[0].Row)
}

func TestScanner_ValueRegexFilter_SkipsOpaqueValues(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	// TagString (0x01) prefixed value, regex-safe.
	w.Put([]byte("v1"), []byte("Vertex"), []byte("name"), append([]byte{1}, []byte("alice")...), 0)
	// TagOpaque (0x00) prefixed value, never regex-safe.
	w.Put([]byte("v2"), []byte("Vertex"), []byte("name"), append([]byte{0}, []byte("alice")...), 0)
	require.NoError(t, w.Flush())

	re := regexp.MustCompile("alice")
	cells, err := tbl.Scanner().WithFilter(ScanFilter{Value: &ValueRegexFilter{Pattern: re}}).Collect()
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, []byte("v1"), cells[0].Row)
}

func TestScanner_Each_StopsEarly(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("a"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("b"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("c"), []byte("Vertex"), []byte("E"), nil, 0)
	require.NoError(t, w.Flush())

	var seen int
	err = tbl.Scanner().Each(func(c Cell) (bool, error) {
		seen++
		return false, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, seen)
}

func TestBatchScanner_CoversAllRanges(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("a"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("b"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("c"), []byte("Vertex"), []byte("E"), nil, 0)
	require.NoError(t, w.Flush())

	ranges := []Range{
		RowRange([]byte("a")),
		RowRange([]byte("b")),
		RowRange([]byte("c")),
	}

	var mu sync.Mutex
	var seen []string
	err = tbl.BatchScanner(4).Each(ranges, func(c Cell) (bool, error) {
		mu.Lock()
		seen = append(seen, string(c.Row))
		mu.Unlock()
		return true, nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestBatchDeleter_DeleteRange(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("v2"), []byte("Vertex"), []byte("E"), nil, 0)
	require.NoError(t, w.Flush())

	require.NoError(t, tbl.BatchDeleter(1).DeleteRange(context.Background(), FullRange(), 0))

	cells, err := tbl.Scanner().Collect()
	require.NoError(t, err)
	require.Empty(t, cells)
}

func TestBatchDeleter_WithFamilyRestrictsDeletion(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("v1"), []byte("Other"), []byte("x"), nil, 0)
	require.NoError(t, w.Flush())

	require.NoError(t, tbl.BatchDeleter(1).WithFamily("Vertex").DeleteRange(context.Background(), FullRange(), 0))

	cells, err := tbl.Scanner().Collect()
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, []byte("Other"), cells[0].Family)
}

func TestBatchDeleter_WithRowFilter(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("user:1"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Put([]byte("group:1"), []byte("Vertex"), []byte("E"), nil, 0)
	require.NoError(t, w.Flush())

	d, err := tbl.BatchDeleter(1).WithRowFilter("^user:")
	require.NoError(t, err)
	require.NoError(t, d.DeleteRange(context.Background(), FullRange(), 0))

	cells, err := tbl.Scanner().Collect()
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, []byte("group:1"), cells[0].Row)
}

func TestGetVersionedAll_ReturnsHistoryNewestFirst(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("score"), []byte("1"), 10)
	require.NoError(t, w.Flush())
	w.Put([]byte("v1"), []byte("Vertex"), []byte("score"), []byte("2"), 20)
	require.NoError(t, w.Flush())

	versions, err := tbl.GetVersionedAll([]byte("v1"), []byte("Vertex"), []byte("score"), TimestampFilter{})
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, []byte("2"), versions[0].Value)
	require.Equal(t, []byte("1"), versions[1].Value)
}

func TestGetVersioned_TombstoneSuppressesAllHistory(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("score"), []byte("1"), 10)
	require.NoError(t, w.Flush())
	w.Delete([]byte("v1"), []byte("Vertex"), []byte("score"), 20)
	require.NoError(t, w.Flush())

	start := uint64(0)
	end := uint64(15)
	_, err = tbl.GetVersioned([]byte("v1"), []byte("Vertex"), []byte("score"), TimestampFilter{Start: &start, End: &end})
	require.ErrorIs(t, err, ErrNotFound, "a later delete must suppress visibility of earlier point-in-time reads too")
}

func TestGetVersioned_NeverWrittenIsNotFound(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	_, err = tbl.GetVersioned([]byte("v1"), []byte("Vertex"), []byte("score"), TimestampFilter{})
	require.ErrorIs(t, err, ErrNotFound)
}
