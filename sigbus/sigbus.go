// Package sigbus implements the process-wide SIGBUS-safety primitive
// described in SPEC_FULL.md §5 and exercised by §8 scenario 6: a truncated
// or rotated file under an mmap region must fail the current read
// deterministically rather than aborting the process.
//
// Go has no portable way to remap a zero page over a faulting address from
// pure Go signal handling (the "fresh read-only zero page" idiom is a
// C/Rust-level technique requiring raw sigaction access). The idiomatic Go
// translation, used here, is runtime/debug.SetPanicOnFault: it converts a
// hardware memory fault during mmap'd access into a regular recoverable
// panic for the calling goroutine instead of crashing the process. Protect
// wraps one mmap-backed read with this mechanism and reports a fault as a
// jferrors.KindConcurrency error rather than a process abort, matching the
// "aborts the query only" propagation rule in SPEC_FULL §7.
//
// Installation is one-shot and process-wide in intent (idempotent: later
// calls are no-ops), following the sync.Once idiom used throughout the
// teacher (e.g. closeOnce sync.Once in store/index/index.go), even though
// mechanically SetPanicOnFault must still be armed per call in Protect.
package sigbus

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/metrics"
)

var (
	installOnce sync.Once
	installed   atomic.Bool
	fired       atomic.Bool
)

// Install marks the process as SIGBUS-aware. It is safe to call repeatedly;
// only the first call has any effect.
func Install() {
	installOnce.Do(func() {
		installed.Store(true)
	})
}

// Installed reports whether Install has been called.
func Installed() bool { return installed.Load() }

// Fired reports whether any Protect call has observed a memory fault since
// the process started. Callers may consult this to abandon a query whose
// correctness depends on a consistent mmap view.
func Fired() bool { return fired.Load() }

// Protect runs fn with fault protection armed for the calling goroutine: if
// fn's execution triggers a hardware memory fault (e.g. reading a truncated
// mmap region), Protect recovers it, sets Fired, and returns a
// jferrors.KindConcurrency error instead of letting the process crash.
func Protect(fn func() error) (err error) {
	debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(false)
	defer func() {
		if r := recover(); r != nil {
			fired.Store(true)
			metrics.SigbusFiredTotal.WithLabelValues("protect").Inc()
			if rerr, ok := r.(error); ok {
				err = jferrors.Wrap(jferrors.KindConcurrency, "sigbus.Protect", rerr)
				return
			}
			err = jferrors.New(jferrors.KindConcurrency, "sigbus.Protect", "memory fault during protected read")
		}
	}()
	return fn()
}
