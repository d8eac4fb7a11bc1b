package kv

import "errors"

// Sentinel errors returned by the store adapter. Callers in pkg/graph
// wrap these with fmt.Errorf("%w: ...") rather than inventing their own
// error types, following the teacher's style (pkg/nornicdb/db.go,
// pkg/server/server.go).
var (
	// ErrNotFound is returned when a point lookup or versioned lookup
	// finds no visible cell.
	ErrNotFound = errors.New("kv: cell not found")

	// ErrTableNotFound is returned by Engine.Table for an unregistered
	// table name.
	ErrTableNotFound = errors.New("kv: table not found")

	// ErrTableExists is returned by Engine.CreateTable for a name that
	// is already registered.
	ErrTableExists = errors.New("kv: table already exists")

	// ErrClosed is returned by any operation on a closed Engine.
	ErrClosed = errors.New("kv: engine is closed")

	// ErrTooManyTables is returned once the 16-bit table ID space is
	// exhausted (65535 tables, not counting the reserved catalog table).
	ErrTooManyTables = errors.New("kv: table ID space exhausted")
)
