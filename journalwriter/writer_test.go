package journalwriter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-engine/journalfile"
	"github.com/netdata/journal-engine/journalobj"
)

func newTestFile(t *testing.T) *journalfile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.journal")
	f, err := journalfile.Create(path, journalfile.WithBucketCounts(16, 8))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestAppendDeduplicatesPayload(t *testing.T) {
	f := newTestFile(t)
	w := New(f)

	require.NoError(t, w.Append([]Field{[]byte("MESSAGE=hello"), []byte("PRIORITY=1")}, 100))
	require.NoError(t, w.Append([]Field{[]byte("MESSAGE=hello"), []byte("PRIORITY=2")}, 200))
	require.NoError(t, w.Append([]Field{[]byte("MESSAGE=hello"), []byte("PRIORITY=3")}, 300))

	require.EqualValues(t, 3, f.Header().NEntries)
	require.EqualValues(t, 4, f.Header().NData) // MESSAGE=hello shared + 3 distinct PRIORITY values

	offset1, err := f.FindDataOffsetByPayload([]byte("MESSAGE=hello"))
	require.NoError(t, err)
	offset2, err := f.FindDataOffsetByPayload([]byte("MESSAGE=hello"))
	require.NoError(t, err)
	require.Equal(t, offset1, offset2)
}

func TestAppendSeqnumMonotonic(t *testing.T) {
	f := newTestFile(t)
	w := New(f)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Append([]Field{[]byte("UNIT=a")}, uint64(100*(i+1))))
	}
	require.EqualValues(t, 5, f.Header().TailEntrySeqnum)
	require.EqualValues(t, 1, f.Header().HeadEntrySeqnum)
}

func TestAppendRejectsEmptyEntry(t *testing.T) {
	f := newTestFile(t)
	w := New(f)
	require.Error(t, w.Append(nil, 1))
}

func TestEntryArrayPacksIntoOneNodeUntilFull(t *testing.T) {
	f := newTestFile(t)
	w := New(f)

	for i := 0; i < entryArrayCapacity; i++ {
		require.NoError(t, w.Append([]Field{[]byte("UNIT=a")}, uint64(i+1)))
	}
	require.EqualValues(t, 1, f.Header().NEntryArrays, "all entries should pack into the single preallocated node")

	head := f.Header().EntryArrayHeadOff
	buf, err := f.ReadObject(head)
	require.NoError(t, err)
	node, err := journalobj.DecodeOffsetArray(buf)
	require.NoError(t, err)
	require.Len(t, node.Items, entryArrayCapacity)
	require.True(t, node.Full())

	// One more entry must overflow into a second node.
	require.NoError(t, w.Append([]Field{[]byte("UNIT=a")}, uint64(entryArrayCapacity+1)))
	require.EqualValues(t, 2, f.Header().NEntryArrays)
}

func TestFieldChainReachesAllData(t *testing.T) {
	f := newTestFile(t)
	w := New(f)

	require.NoError(t, w.Append([]Field{[]byte("UNIT=a"), []byte("PRIORITY=1")}, 1))
	require.NoError(t, w.Append([]Field{[]byte("UNIT=b"), []byte("PRIORITY=2")}, 2))

	var unitValues []string
	err := f.FieldDataObjects([]byte("UNIT"), func(d *journalobj.DataObject) bool {
		unitValues = append(unitValues, string(d.Payload))
		return true
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"UNIT=a", "UNIT=b"}, unitValues)
}
