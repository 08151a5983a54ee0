// Package valueguard implements the single-access token described in
// SPEC_FULL.md §4.2: a guard that ties a decoded object view's lifetime to
// the exclusion of further guards from the same owner, so that a window
// eviction triggered by a later lookup can never invalidate a view a caller
// still holds.
//
// This mirrors the ref-counted exclusivity pattern in
// gsfa/store/filecache.FileCache (an entry's refs gate when the underlying
// *os.File is actually closed), generalized here from "defer close until
// refcount hits zero" to "reject a new guard until the outstanding one is
// released," since only one borrower is allowed at a time rather than many.
package valueguard

import (
	"sync/atomic"

	"github.com/netdata/journal-engine/jferrors"
)

// Owner serializes guard creation for one logical caller (a reader or
// iterator). It is not safe for concurrent use from multiple goroutines,
// matching the single-threaded-per-handle concurrency model in SPEC_FULL §5.
type Owner struct {
	inUse atomic.Bool
}

// Guard holds a decoded value of type T and releases the owner's exclusivity
// flag when Release is called. Guards do not support copying; callers must
// not retain a Guard's Value after Release.
type Guard[T any] struct {
	owner *Owner
	value T
}

// Acquire creates a guard for value on behalf of owner. It fails with a
// jferrors.KindConcurrency error if a previously acquired guard on the same
// owner has not yet been released.
func Acquire[T any](owner *Owner, value T) (*Guard[T], error) {
	if !owner.inUse.CompareAndSwap(false, true) {
		return nil, jferrors.New(jferrors.KindConcurrency, "valueguard.Acquire", "previous object is still in use")
	}
	return &Guard[T]{owner: owner, value: value}, nil
}

// Value returns the guarded value.
func (g *Guard[T]) Value() T {
	return g.value
}

// Release clears the owner's exclusivity flag, allowing a subsequent
// Acquire. Release is idempotent; calling it twice is a no-op on the second
// call.
func (g *Guard[T]) Release() {
	if g == nil || g.owner == nil {
		return
	}
	g.owner.inUse.Store(false)
	g.owner = nil
}

// InUse reports whether owner currently has an outstanding guard.
func (o *Owner) InUse() bool {
	return o.inUse.Load()
}
