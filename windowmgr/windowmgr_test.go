package windowmgr

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T, pages int) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "window-*.bin")
	require.NoError(t, err)
	pageSize := os.Getpagesize()
	buf := make([]byte, pages*pageSize)
	for i := range buf {
		buf[i] = byte(i)
	}
	_, err = f.Write(buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestAcquireDirectHit(t *testing.T) {
	f := newTestFile(t, 4)
	chunk := int64(os.Getpagesize())
	m, err := New(f, false, chunk, 2)
	require.NoError(t, err)
	defer m.Close()

	w1, err := m.Acquire(0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(0), w1.Start())

	w2, err := m.Acquire(5, 5)
	require.NoError(t, err)
	require.Same(t, w1, w2)
	m.Release(w2)
	m.Release(w1)
}

func TestAcquireEvictsLRUNotActive(t *testing.T) {
	f := newTestFile(t, 8)
	chunk := int64(os.Getpagesize())
	m, err := New(f, false, chunk, 2)
	require.NoError(t, err)
	defer m.Close()

	w1, err := m.Acquire(0, 1)
	require.NoError(t, err)
	m.Release(w1)

	w2, err := m.Acquire(chunk, 1)
	require.NoError(t, err)
	m.Release(w2)
	require.Equal(t, 2, m.Len())

	// Third distinct window forces eviction; w1 (LRU) should go, not the
	// active w2.
	w3, err := m.Acquire(chunk*5, 1)
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())
	m.Release(w3)

	_, stillCached := m.windows[0]
	require.False(t, stillCached)
}

func TestAcquireIndirectHitGrowsWindow(t *testing.T) {
	f := newTestFile(t, 8)
	chunk := int64(os.Getpagesize())
	m, err := New(f, false, chunk, 4)
	require.NoError(t, err)
	defer m.Close()

	w1, err := m.Acquire(0, 1)
	require.NoError(t, err)
	m.Release(w1)

	w2, err := m.Acquire(0, chunk*2)
	require.NoError(t, err)
	require.GreaterOrEqual(t, w2.End()-w2.Start(), chunk*2)
	m.Release(w2)
}

func TestReleaseAfterEvictionUnmapsOnZeroRefs(t *testing.T) {
	f := newTestFile(t, 8)
	chunk := int64(os.Getpagesize())
	m, err := New(f, false, chunk, 1)
	require.NoError(t, err)
	defer m.Close()

	w1, err := m.Acquire(0, 1)
	require.NoError(t, err)

	// Forces eviction of w1 while still held.
	w2, err := m.Acquire(chunk*3, 1)
	require.NoError(t, err)
	require.Contains(t, m.removed, w1, "w1 is evicted but its unmap is deferred while held")

	m.Release(w1)
	require.NotContains(t, m.removed, w1, "releasing the last reference unmaps w1")
	m.Release(w2)
}
