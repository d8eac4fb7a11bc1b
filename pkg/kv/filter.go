package kv

import "regexp"

// TimestampFilter restricts a scan or versioned read to cells whose
// timestamp falls in [Start, End]. A nil bound is open on that side; at
// least one of Start/End must be set for the filter to do anything (the
// zero value matches everything).
type TimestampFilter struct {
	Start *uint64
	End   *uint64
}

// IsZero reports whether the filter has no bounds set.
func (f TimestampFilter) IsZero() bool {
	return f.Start == nil && f.End == nil
}

// RowRegexFilter restricts a scan to rows whose bytes match Pattern.
type RowRegexFilter struct {
	Pattern *regexp.Regexp
}

// ValueRegexFilter restricts a scan to cells whose value matches Pattern.
// Cells holding an opaque (gob) value never match and are silently
// skipped, per spec.md §4.1's regex-safety rule — the Scanner checks
// codec.IsRegexSafe before the pattern is even evaluated.
type ValueRegexFilter struct {
	Pattern *regexp.Regexp
	// Untagged marks cell values that are not tag-prefixed property values
	// (e.g. adjacency cells, whose first byte is codec.Separator); they are
	// matched as-is, without the opaque-tag skip.
	Untagged bool
}

// ScanFilter bundles the filters a Scanner may apply to the cells it visits.
// A nil field means "no restriction of that kind".
type ScanFilter struct {
	Timestamp *TimestampFilter
	Row       *RowRegexFilter
	Value     *ValueRegexFilter
}
