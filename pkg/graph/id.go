package graph

import "github.com/google/uuid"

// newID generates a fresh random 128-bit identifier as a canonical string,
// used whenever AddVertex/AddEdge is called without a caller-supplied ID
// (spec.md §3).
func newID() string {
	return uuid.New().String()
}
