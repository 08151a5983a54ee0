package journallog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-engine/journalwriter"
)

func TestOpenCreatesActiveFileWhenDirEmpty(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "myhost")
	require.NoError(t, err)
	defer l.Close()

	require.Len(t, l.Files(), 1)
}

func TestWriteEntryAppendsToActiveFile(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "myhost")
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.WriteEntry([]journalwriter.Field{[]byte("MESSAGE=hi")}, 100))
	require.NoError(t, l.WriteEntry([]journalwriter.Field{[]byte("MESSAGE=bye")}, 200))

	require.EqualValues(t, 2, l.active.file.Header().NEntries)
}

func TestRotationOnMaxEntries(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "myhost", WithRotationPolicy(RotationPolicy{MaxEntries: 2}))
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.WriteEntry([]journalwriter.Field{[]byte("UNIT=a")}, uint64(100+i)))
	}

	// 5 entries at 2-per-file triggers rotation after the file reaches 2
	// entries, so the chain should have grown past the single initial file.
	require.Greater(t, len(l.Files()), 1)
}

func TestRetentionDeletesOldestByMaxFiles(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "myhost",
		WithRotationPolicy(RotationPolicy{MaxEntries: 1}),
		WithRetentionPolicy(RetentionPolicy{MaxFiles: 2}),
	)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 6; i++ {
		require.NoError(t, l.WriteEntry([]journalwriter.Field{[]byte("UNIT=a")}, uint64(100+i)))
	}

	require.LessOrEqual(t, len(l.Files()), 2)
}

func TestFormatAndParseFilenameRoundTrip(t *testing.T) {
	var seqnumID [16]byte
	for i := range seqnumID {
		seqnumID[i] = byte(i)
	}
	name := FormatFilename("myhost", seqnumID, 42, 1234567890, true)

	pf, err := parseFilename(name)
	require.NoError(t, err)
	require.Equal(t, "myhost", pf.source)
	require.Equal(t, seqnumID, pf.seqnumID)
	require.EqualValues(t, 42, pf.headSeqnum)
	require.EqualValues(t, 1234567890, pf.headRealtime)
	require.True(t, pf.archived)
}
