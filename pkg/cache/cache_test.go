package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := New[string](Config{Capacity: 10, DefaultTTL: time.Minute})
	c.Put("a", "alpha", nil)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "alpha", v)
	require.Equal(t, 1, c.Len())
}

func TestCache_ZeroCapacityDisablesCaching(t *testing.T) {
	c := New[string](Config{Capacity: 0, DefaultTTL: time.Minute})
	c.Put("a", "alpha", nil)

	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestCache_Invalidate(t *testing.T) {
	c := New[string](Config{Capacity: 10, DefaultTTL: time.Minute})
	c.Put("a", "alpha", nil)
	c.Invalidate("a")

	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := New[string](Config{Capacity: 10, DefaultTTL: time.Minute})
	c.Put("a", "alpha", nil)
	c.Put("b", "beta", nil)
	c.Clear()

	require.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestCache_PropertyTTL_NeverCache(t *testing.T) {
	c := New[string](Config{
		Capacity:    10,
		DefaultTTL:  time.Minute,
		PropertyTTL: map[string]time.Duration{"secret": NeverCache},
	})
	c.Put("a", "alpha", []string{"secret"})

	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestCache_PropertyTTL_ShortestWins(t *testing.T) {
	c := New[string](Config{
		Capacity:   10,
		DefaultTTL: time.Hour,
		PropertyTTL: map[string]time.Duration{
			"fast": 10 * time.Millisecond,
			"slow": 2 * time.Hour,
		},
	})
	c.Put("a", "alpha", []string{"slow", "fast"})

	_, ok := c.Get("a")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get("a")
	require.False(t, ok, "entry should have expired under the shorter of the two property TTLs")
}

func TestCache_FlatStructValueIsIsolatedFromLaterMutation(t *testing.T) {
	type flat struct{ Name string }
	c := New[flat](Config{Capacity: 10, DefaultTTL: time.Minute})

	v := flat{Name: "alice"}
	c.Put("a", v, nil)
	v.Name = "mutated-after-put"

	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "alice", got.Name, "a flat struct copies by value on Put, so mutating the caller's local afterward must not reach the cache")
}

func TestCache_ReferenceFieldAliasesAcrossGetAndPut(t *testing.T) {
	// Cache performs no explicit deep copy (see the package doc): a T that
	// holds a slice aliases the same backing array the caller still has a
	// reference to.
	type withSlice struct{ Tags []string }
	c := New[withSlice](Config{Capacity: 10, DefaultTTL: time.Minute})

	v := withSlice{Tags: []string{"a"}}
	c.Put("x", v, nil)

	got, ok := c.Get("x")
	require.True(t, ok)
	got.Tags[0] = "mutated"

	again, ok := c.Get("x")
	require.True(t, ok)
	require.Equal(t, "mutated", again.Tags[0], "no deep copy is performed, so mutating a slice obtained from Get is visible on the next Get")
}

func TestCache_PutOverwritesTTLBucket(t *testing.T) {
	c := New[string](Config{
		Capacity:   10,
		DefaultTTL: time.Hour,
		PropertyTTL: map[string]time.Duration{
			"fast": 10 * time.Millisecond,
		},
	})
	c.Put("a", "alpha", []string{"fast"})
	// Re-Put without the fast-expiring key: should move back to DefaultTTL.
	c.Put("a", "alpha2", nil)

	time.Sleep(50 * time.Millisecond)
	v, ok := c.Get("a")
	require.True(t, ok, "entry should no longer be bound to the fast TTL bucket")
	require.Equal(t, "alpha2", v)
}
