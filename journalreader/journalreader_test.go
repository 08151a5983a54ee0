package journalreader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-engine/journalfile"
	"github.com/netdata/journal-engine/journalwriter"
)

func newTestFile(t *testing.T) (*journalfile.File, *journalwriter.Writer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.journal")
	f, err := journalfile.Create(path, journalfile.WithBucketCounts(16, 8))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, journalwriter.New(f)
}

func TestCursorForwardScanVisitsAllEntries(t *testing.T) {
	f, w := newTestFile(t)
	for i := 0; i < 4; i++ {
		require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a")}, uint64(100+i)))
	}

	c, err := NewCursor(f, Head(), nil)
	require.NoError(t, err)

	var offsets []uint64
	for {
		off, ok, err := c.Step(journalfile.Forward)
		require.NoError(t, err)
		if !ok {
			break
		}
		offsets = append(offsets, off)
	}
	require.Len(t, offsets, 4)
}

func TestCursorBackwardScanFromTail(t *testing.T) {
	f, w := newTestFile(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a")}, uint64(100+i)))
	}

	c, err := NewCursor(f, Tail(), nil)
	require.NoError(t, err)

	count := 0
	for {
		_, ok, err := c.Step(journalfile.Backward)
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 3, count)
}

func TestFilterMatchSelectsOnlyMatchingEntries(t *testing.T) {
	f, w := newTestFile(t)
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a"), []byte("PRIORITY=1")}, 1))
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=b"), []byte("PRIORITY=2")}, 2))
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a"), []byte("PRIORITY=3")}, 3))

	b := NewBuilder(f)
	require.NoError(t, b.AddMatch([]byte("UNIT=a")))
	filter, err := b.Build()
	require.NoError(t, err)

	c, err := NewCursor(f, Head(), filter)
	require.NoError(t, err)

	var realtimes []uint64
	for {
		off, ok, err := c.Step(journalfile.Forward)
		require.NoError(t, err)
		if !ok {
			break
		}
		objs, err := f.EntryDataObjects(off)
		require.NoError(t, err)
		_ = objs
		realtimes = append(realtimes, off)
	}
	require.Len(t, realtimes, 2)
}

func TestFilterConjunctionIntersectsFields(t *testing.T) {
	f, w := newTestFile(t)
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a"), []byte("PRIORITY=1")}, 1))
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a"), []byte("PRIORITY=2")}, 2))
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=b"), []byte("PRIORITY=1")}, 3))

	b := NewBuilder(f)
	require.NoError(t, b.AddMatch([]byte("UNIT=a")))
	require.NoError(t, b.AddMatch([]byte("PRIORITY=1")))
	filter, err := b.Build()
	require.NoError(t, err)

	c, err := NewCursor(f, Head(), filter)
	require.NoError(t, err)

	off, ok, err := c.Step(journalfile.Forward)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok2, err := c.Step(journalfile.Forward)
	require.NoError(t, err)
	require.False(t, ok2)
	_ = off
}

func TestFilterMissingPayloadMatchesNothing(t *testing.T) {
	f, w := newTestFile(t)
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a")}, 1))

	b := NewBuilder(f)
	require.NoError(t, b.AddMatch([]byte("UNIT=nonexistent")))
	filter, err := b.Build()
	require.NoError(t, err)

	c, err := NewCursor(f, Head(), filter)
	require.NoError(t, err)

	_, ok, err := c.Step(journalfile.Forward)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCursorRealtimeSeeksNearestEntry(t *testing.T) {
	f, w := newTestFile(t)
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a")}, 100))
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a")}, 200))
	require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a")}, 300))

	c, err := NewCursor(f, Realtime(150), nil)
	require.NoError(t, err)

	off, ok := c.Current()
	require.True(t, ok)

	objs, err := f.EntryDataObjects(off)
	require.NoError(t, err)
	require.NotEmpty(t, objs)
}
