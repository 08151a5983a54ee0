// Package windowmgr implements the bounded memory-mapped window cache
// described in SPEC_FULL.md §4.1: a fixed cap on live mmap windows over one
// file, LRU eviction, and an "active window" that is checked first and
// preserved from eviction while another candidate exists.
//
// The eviction policy is adapted directly from
// gsfa/store/filecache.FileCache: an intrusive container/list plus a
// map[key]*list.Element, most-recently-used moved to the front, least-
// recently-used evicted from the back over capacity, and a reference count
// that defers the underlying unmap until the last borrower releases its
// window. FileCache caches *os.File handles; this generalizes the same
// structure to caching mmap'd byte-range windows.
package windowmgr

import (
	"container/list"
	"os"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sys/unix"

	"github.com/netdata/journal-engine/jferrors"
)

var log = logging.Logger("journal/windowmgr")

// DefaultChunkSize is a multiple of the common 4 KiB page size, large
// enough to amortize mmap syscalls without mapping whole multi-gigabyte
// files at once.
const DefaultChunkSize = 8 * 1024 * 1024

// Window is a page-aligned view of a byte range of the underlying file.
type Window struct {
	start int64
	data  []byte
	refs  int
}

// Start is the window's absolute byte offset into the file.
func (w *Window) Start() int64 { return w.start }

// End is the exclusive end offset of the window.
func (w *Window) End() int64 { return w.start + int64(len(w.data)) }

// Bytes returns the window's backing slice. The slice is only valid while
// the caller holds a reference obtained from Manager.Acquire.
func (w *Window) Bytes() []byte { return w.data }

func (w *Window) contains(position, size int64) bool {
	return position >= w.start && position+size <= w.End()
}

func (w *Window) containsPoint(position int64) bool {
	return position >= w.start && position < w.End()
}

// Manager owns the set of live windows over one open file.
type Manager struct {
	file       *os.File
	writable   bool
	chunkSize  int64
	maxWindows int
	fileSize   int64

	mu      sync.Mutex
	windows map[int64]*list.Element
	ll      *list.List
	active  *Window
	removed map[*Window]int
}

type listEntry struct {
	window *Window
}

// New constructs a Manager over file. writable selects PROT_READ|PROT_WRITE
// mappings (for the journal writer); read-only callers pass false.
// chunkSize must be a positive multiple of the OS page size; maxWindows
// must be at least 1.
func New(file *os.File, writable bool, chunkSize int64, maxWindows int) (*Manager, error) {
	if chunkSize <= 0 || chunkSize%int64(os.Getpagesize()) != 0 {
		return nil, jferrors.New(jferrors.KindFormat, "windowmgr.New", "chunk size must be a positive multiple of the page size")
	}
	if maxWindows < 1 {
		return nil, jferrors.New(jferrors.KindFormat, "windowmgr.New", "maxWindows must be at least 1")
	}
	fi, err := file.Stat()
	if err != nil {
		return nil, jferrors.Wrap(jferrors.KindIO, "windowmgr.New", err)
	}
	return &Manager{
		file:       file,
		writable:   writable,
		chunkSize:  chunkSize,
		maxWindows: maxWindows,
		fileSize:   fi.Size(),
		windows:    make(map[int64]*list.Element),
		ll:         list.New(),
	}, nil
}

// Refresh updates the manager's notion of the file's size, needed after the
// writer extends the file with new objects.
func (m *Manager) Refresh() error {
	fi, err := m.file.Stat()
	if err != nil {
		return jferrors.Wrap(jferrors.KindIO, "windowmgr.Refresh", err)
	}
	m.mu.Lock()
	m.fileSize = fi.Size()
	m.mu.Unlock()
	return nil
}

func (m *Manager) alignDown(v int64) int64 {
	return v - (v % m.chunkSize)
}

func (m *Manager) alignUp(v int64) int64 {
	rem := v % m.chunkSize
	if rem == 0 {
		return v
	}
	return v + (m.chunkSize - rem)
}

// Acquire returns a window covering [position, position+size). Strategy:
// direct hit on the active window, indirect hit growing an existing window
// that covers position but not the whole range, or a miss that creates a
// new window (evicting the LRU non-active window if at capacity).
func (m *Manager) Acquire(position, size int64) (*Window, error) {
	if position < 0 || size <= 0 {
		return nil, jferrors.New(jferrors.KindFormat, "windowmgr.Acquire", "invalid range")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.contains(position, size) {
		m.active.refs++
		m.touch(m.active)
		return m.active, nil
	}

	if elem, ok := m.windows[m.alignDown(position)]; ok {
		w := elem.Value.(*listEntry).window
		if w.contains(position, size) {
			w.refs++
			m.ll.MoveToFront(elem)
			m.active = w
			return w, nil
		}
	}

	for _, elem := range m.windows {
		w := elem.Value.(*listEntry).window
		if w.containsPoint(position) && !w.contains(position, size) {
			newEnd := m.alignUp(position + size)
			if newEnd > m.fileSize {
				newEnd = m.fileSize
			}
			grown, err := m.mapRange(w.start, newEnd)
			if err != nil {
				return nil, err
			}
			m.removeWindowLocked(elem)
			m.insertLocked(grown)
			return m.finishAcquire(grown), nil
		}
	}

	start := m.alignDown(position)
	end := m.alignUp(position + size)
	if end > m.fileSize {
		end = m.fileSize
	}
	w, err := m.mapRange(start, end)
	if err != nil {
		return nil, err
	}
	if elem, ok := m.windows[start]; ok {
		m.removeWindowLocked(elem)
	}
	if m.ll.Len() >= m.maxWindows {
		m.evictOneLocked()
	}
	m.insertLocked(w)
	return m.finishAcquire(w), nil
}

func (m *Manager) finishAcquire(w *Window) *Window {
	w.refs++
	m.active = w
	return w
}

func (m *Manager) touch(w *Window) {
	if elem, ok := m.windows[w.start]; ok {
		m.ll.MoveToFront(elem)
	}
}

func (m *Manager) insertLocked(w *Window) {
	elem := m.ll.PushFront(&listEntry{window: w})
	m.windows[w.start] = elem
}

func (m *Manager) mapRange(start, end int64) (*Window, error) {
	length := end - start
	if length <= 0 {
		return nil, jferrors.New(jferrors.KindFormat, "windowmgr.mapRange", "empty range")
	}
	prot := unix.PROT_READ
	if m.writable {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(m.file.Fd()), start, int(length), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, jferrors.Wrap(jferrors.KindIO, "windowmgr.mapRange", err)
	}
	return &Window{start: start, data: data}, nil
}

// evictOneLocked removes the least-recently-used non-active window. If
// every window is active (only possible with maxWindows==1 and an active
// window present) it evicts the back element regardless.
func (m *Manager) evictOneLocked() {
	for elem := m.ll.Back(); elem != nil; elem = elem.Prev() {
		w := elem.Value.(*listEntry).window
		if w == m.active && m.ll.Len() > 1 {
			continue
		}
		m.removeWindowLocked(elem)
		return
	}
}

func (m *Manager) removeWindowLocked(elem *list.Element) {
	w := elem.Value.(*listEntry).window
	m.ll.Remove(elem)
	delete(m.windows, w.start)
	if w == m.active {
		m.active = nil
	}
	if w.refs == 0 {
		if err := unix.Munmap(w.data); err != nil {
			log.Warnw("munmap failed", "start", w.start, "err", err)
		}
		return
	}
	if m.removed == nil {
		m.removed = make(map[*Window]int)
	}
	m.removed[w] = w.refs
}

// Release returns a window borrowed via Acquire. Once the last outstanding
// reference on an evicted window is released, its mapping is unmapped.
func (m *Manager) Release(w *Window) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if refs, ok := m.removed[w]; ok {
		if refs <= 1 {
			delete(m.removed, w)
			if err := unix.Munmap(w.data); err != nil {
				log.Warnw("munmap failed", "start", w.start, "err", err)
			}
			return
		}
		m.removed[w] = refs - 1
		return
	}
	if w.refs > 0 {
		w.refs--
	}
}

// Close unmaps every live window. The manager must not be used afterward.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, elem := range m.windows {
		w := elem.Value.(*listEntry).window
		if err := unix.Munmap(w.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.windows = make(map[int64]*list.Element)
	m.ll = list.New()
	m.active = nil
	if firstErr != nil {
		return jferrors.Wrap(jferrors.KindIO, "windowmgr.Close", firstErr)
	}
	return nil
}

// Len reports how many windows are currently live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}
