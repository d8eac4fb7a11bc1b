package graph

import (
	"context"

	"github.com/latticegraph/lattice/pkg/kv"
)

// TimestampFilter is the per-caller time-travel window described in
// spec.md §4.4 ("Time-travel filter (per-caller)"). At least one of
// Start/End must be set; when both are set, Start must be <= End. Both
// bounds are inclusive.
type TimestampFilter struct {
	Start *uint64
	End   *uint64
}

// Validate checks the filter against spec.md §4.4's contract, returning
// ErrInvalidFilter on violation.
func (f TimestampFilter) Validate() error {
	if f.Start == nil && f.End == nil {
		return ErrInvalidFilter
	}
	if f.Start != nil && f.End != nil && *f.Start > *f.End {
		return ErrInvalidFilter
	}
	return nil
}

func (f TimestampFilter) toKV() kv.TimestampFilter {
	return kv.TimestampFilter{Start: f.Start, End: f.End}
}

type timestampFilterKey struct{}

// WithTimestampFilter attaches a validated time-travel filter to ctx. The
// Design Notes §9 "thread-scoped filter state" is modeled primarily this
// way — as an explicit context value threaded through scan-opening calls —
// rather than as implicit per-goroutine state, per the Design Notes'
// stated preference for an explicit scan context.
func WithTimestampFilter(ctx context.Context, start, end *uint64) (context.Context, error) {
	f := TimestampFilter{Start: start, End: end}
	if err := f.Validate(); err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, timestampFilterKey{}, f), nil
}

// timestampFilterFrom extracts the filter attached to ctx, if any.
func timestampFilterFrom(ctx context.Context) (TimestampFilter, bool) {
	f, ok := ctx.Value(timestampFilterKey{}).(TimestampFilter)
	return f, ok
}

// Session retains one goroutine's timestamp-filter slot, for call sites
// that want the enable_timestamp_filter/disable_timestamp_filter ergonomics
// of spec.md §6.2 instead of threading a context explicitly. It is kept
// only for API compatibility with that interface, per Design Notes §9;
// new call sites should prefer WithTimestampFilter directly.
type Session struct {
	ctx context.Context
}

// NewSession returns a Session with no active timestamp filter.
func NewSession(ctx context.Context) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Session{ctx: ctx}
}

// EnableTimestampFilter installs a time-travel window for every subsequent
// call made through this Session.
func (s *Session) EnableTimestampFilter(start, end *uint64) error {
	ctx, err := WithTimestampFilter(s.ctx, start, end)
	if err != nil {
		return err
	}
	s.ctx = ctx
	return nil
}

// DisableTimestampFilter removes any active time-travel window.
func (s *Session) DisableTimestampFilter() {
	s.ctx = context.WithValue(s.ctx, timestampFilterKey{}, nil)
}

// Context returns the session's current context, for passing to Graph
// methods.
func (s *Session) Context() context.Context { return s.ctx }
