package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestCreateTable_DuplicateRejected(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateTable("vertex")
	require.NoError(t, err)

	_, err = e.CreateTable("vertex")
	require.ErrorIs(t, err, ErrTableExists)
}

func TestTable_NotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Table("missing")
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestEnsureTable_CreatesOnce(t *testing.T) {
	e := newTestEngine(t)
	t1, err := e.EnsureTable("vertex")
	require.NoError(t, err)
	t2, err := e.EnsureTable("vertex")
	require.NoError(t, err)
	require.Equal(t, t1.Name(), t2.Name())
}

func TestListTables(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateTable("vertex")
	require.NoError(t, err)
	_, err = e.CreateTable("edge")
	require.NoError(t, err)

	names := e.ListTables()
	require.ElementsMatch(t, []string{"vertex", "edge"}, names)
}

func TestDropTable_DeletesCellsAndRegistry(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("E"), nil, 0)
	require.NoError(t, w.Flush())

	require.NoError(t, e.DropTable(context.Background(), "vertex"))

	_, err = e.Table("vertex")
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestClose_RejectsFurtherOperations(t *testing.T) {
	e, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	_, err = e.CreateTable("vertex")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.CreateTable("edge")
	require.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	require.NoError(t, e.Close())
}

func TestTableGet_RoundTrip(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("name"), []byte("alice"), 0)
	require.NoError(t, w.Flush())

	cell, err := tbl.Get([]byte("v1"), []byte("Vertex"), []byte("name"))
	require.NoError(t, err)
	require.Equal(t, []byte("alice"), cell.Value)
}

func TestTableGet_NotFound(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	_, err = tbl.Get([]byte("v1"), []byte("Vertex"), []byte("name"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_TombstonesCell(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("name"), []byte("alice"), 0)
	require.NoError(t, w.Flush())

	w.Delete([]byte("v1"), []byte("Vertex"), []byte("name"), 0)
	require.NoError(t, w.Flush())

	_, err = tbl.Get([]byte("v1"), []byte("Vertex"), []byte("name"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMultiWriter_CommitsAcrossTables(t *testing.T) {
	e := newTestEngine(t)
	vTable, err := e.CreateTable("vertex")
	require.NoError(t, err)
	iTable, err := e.CreateTable("vertex_index")
	require.NoError(t, err)

	mw := e.MultiWriter()
	vw, err := mw.Table(vTable.Name())
	require.NoError(t, err)
	iw, err := mw.Table(iTable.Name())
	require.NoError(t, err)

	vw.Put([]byte("v1"), []byte("Vertex"), []byte("E"), nil, 0)
	iw.Put([]byte("nyc"), []byte("city"), []byte("v1"), nil, 0)
	require.NoError(t, mw.Flush())

	_, err = vTable.Get([]byte("v1"), []byte("Vertex"), []byte("E"))
	require.NoError(t, err)
	_, err = iTable.Get([]byte("nyc"), []byte("city"), []byte("v1"))
	require.NoError(t, err)
}

func TestWriter_ClearDiscardsPending(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("E"), nil, 0)
	w.Clear()
	require.NoError(t, w.Flush())

	_, err = tbl.Get([]byte("v1"), []byte("Vertex"), []byte("E"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExplicitTimestamp_IsHonoredAndObserved(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("vertex")
	require.NoError(t, err)

	w := tbl.Writer()
	w.Put([]byte("v1"), []byte("Vertex"), []byte("E"), nil, 1000)
	require.NoError(t, w.Flush())

	cell, err := tbl.Get([]byte("v1"), []byte("Vertex"), []byte("E"))
	require.NoError(t, err)
	require.Equal(t, uint64(1000), cell.Timestamp)
}
