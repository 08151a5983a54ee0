package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-engine/journalfile"
)

func TestTimeRangeOverlaps(t *testing.T) {
	r := TimeRange{Kind: RangeBounded, Start: 100, End: 200}
	require.True(t, r.Overlaps(150, 250))
	require.True(t, r.Overlaps(50, 150))
	require.False(t, r.Overlaps(201, 300))
	require.False(t, r.Overlaps(0, 99))

	unknown := TimeRange{Kind: RangeUnknown}
	require.False(t, unknown.Overlaps(0, 1<<62))
}

func TestFindFilesInRangeUsesSetTimeRange(t *testing.T) {
	reg := New()
	reg.SetTimeRange("/a.journal", TimeRange{Kind: RangeBounded, Start: 10, End: 20})
	reg.SetTimeRange("/b.journal", TimeRange{Kind: RangeBounded, Start: 100, End: 200})

	found := reg.FindFilesInRange(15, 150)
	var paths []string
	for _, fi := range found {
		paths = append(paths, fi.Path)
	}
	require.ElementsMatch(t, []string{"/a.journal", "/b.journal"}, paths)
}

func TestIsJournalFileNamingConvention(t *testing.T) {
	require.True(t, isJournalFile("myhost@00112233445566778899aabbccddeeff-0000000000000001-0000000000000002.journal"))
	require.True(t, isJournalFile("myhost@00112233445566778899aabbccddeeff-0000000000000001-0000000000000002.journal~"))
	require.False(t, isJournalFile("notes.txt"))
}

func TestWatchDirectoryDetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	reg := New()
	require.NoError(t, reg.WatchDirectory(dir))
	defer reg.Close()

	events := reg.Subscribe()

	path := filepath.Join(dir, "myhost@00112233445566778899aabbccddeeff-0000000000000001-0000000000000064.journal")
	f, err := journalfile.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case ev := <-events:
		require.Equal(t, EventInsert, ev.Kind)
		require.Equal(t, path, ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for insert event")
	}
}

func TestDeriveTimeRangeUnknownForEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.journal")
	f, err := journalfile.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tr := deriveTimeRange(path)
	require.Equal(t, RangeUnknown, tr.Kind)

	require.NoError(t, os.Remove(path))
}
