package journalindex

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/journalfile"
	"github.com/netdata/journal-engine/journalwriter"
)

func newTestFile(t *testing.T) *journalfile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.journal")
	f, err := journalfile.Create(path, journalfile.WithBucketCounts(16, 8))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	w := journalwriter.New(f)
	base := uint64(1_700_000_000) * 1_000_000
	entries := []struct {
		unit string
		sec  uint64
	}{
		{"a.service", 0},
		{"a.service", 1},
		{"b.service", 2},
		{"b.service", 3700}, // lands in the next hourly bucket
	}
	for _, e := range entries {
		fields := []journalwriter.Field{[]byte("UNIT=" + e.unit), []byte("PRIORITY=6")}
		require.NoError(t, w.Append(fields, base+e.sec*1_000_000))
	}
	return f
}

func TestBuildIndexesFacetsAndHistogram(t *testing.T) {
	f := newTestFile(t)

	idx, err := Build(f)
	require.NoError(t, err)
	require.True(t, idx.Complete)
	require.EqualValues(t, 4, idx.EntryCount)

	aBitmap, ok := idx.Facets[FacetKey{Field: "UNIT", Value: "a.service"}]
	require.True(t, ok)
	require.EqualValues(t, 2, aBitmap.GetCardinality())

	bBitmap, ok := idx.Facets[FacetKey{Field: "UNIT", Value: "b.service"}]
	require.True(t, ok)
	require.EqualValues(t, 2, bBitmap.GetCardinality())

	priorityBitmap, ok := idx.Facets[FacetKey{Field: "PRIORITY", Value: "6"}]
	require.True(t, ok)
	require.EqualValues(t, 4, priorityBitmap.GetCardinality())

	require.Len(t, idx.Histogram.Buckets, 2)
}

func TestBuildDropsFieldExceedingCardinalityCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.journal")
	f, err := journalfile.Create(path, journalfile.WithBucketCounts(16, 8))
	require.NoError(t, err)
	defer f.Close()

	w := journalwriter.New(f)
	for i := 0; i < 5; i++ {
		fields := []journalwriter.Field{[]byte("MESSAGE_ID=" + string(rune('a'+i)))}
		require.NoError(t, w.Append(fields, uint64(1000+i)))
	}

	idx, err := Build(f,
		WithLimits(Limits{MaxValuesPerField: 2, MaxPayloadBytes: 4096}),
		WithFacetFields("MESSAGE_ID"))
	require.NoError(t, err)
	require.True(t, idx.DroppedFields["MESSAGE_ID"])
}

func TestBuildOnlyIndexesConfiguredFacetFields(t *testing.T) {
	f := newTestFile(t)

	idx, err := Build(f, WithFacetFields("UNIT"))
	require.NoError(t, err)

	_, ok := idx.Facets[FacetKey{Field: "UNIT", Value: "a.service"}]
	require.True(t, ok)
	_, ok = idx.Facets[FacetKey{Field: "PRIORITY", Value: "6"}]
	require.False(t, ok, "PRIORITY was not in the requested facet set")
}

func TestBuildUsesTimestampFieldWhenConfigured(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.journal")
	f, err := journalfile.Create(path, journalfile.WithBucketCounts(16, 8))
	require.NoError(t, err)
	defer f.Close()

	w := journalwriter.New(f)
	base := uint64(1_700_000_000) * 1_000_000
	// SOURCE_REALTIME lands one bucket earlier than the entry's own Realtime.
	require.NoError(t, w.Append([]journalwriter.Field{
		[]byte("UNIT=a"),
		[]byte("SOURCE_REALTIME_TIMESTAMP=" + strconv.FormatUint(base-7200*1_000_000, 10)),
	}, base))

	idx, err := Build(f, WithTimestampField("SOURCE_REALTIME_TIMESTAMP"), WithFacetFields("UNIT"))
	require.NoError(t, err)
	require.Equal(t, "SOURCE_REALTIME_TIMESTAMP", idx.TimestampField)
	require.Len(t, idx.Histogram.Buckets, 1)
	require.Equal(t, (base-7200*1_000_000)/1_000_000/3600*3600, idx.Histogram.Buckets[0].StartSec)
}

func TestBuildStopsEarlyOnExpiredBudget(t *testing.T) {
	f := newTestFile(t)

	idx, err := Build(f, WithBudget(time.Nanosecond))
	require.NoError(t, err)
	require.False(t, idx.Complete)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := newTestFile(t)
	idx, err := Build(f)
	require.NoError(t, err)

	require.NoError(t, Save(idx))

	loaded, err := Load(idx.FilePath)
	require.NoError(t, err)
	require.Equal(t, idx.EntryCount, loaded.EntryCount)
	require.Equal(t, idx.SchemaVersion, loaded.SchemaVersion)

	bm, ok := loaded.Facets[FacetKey{Field: "UNIT", Value: "a.service"}]
	require.True(t, ok)
	require.EqualValues(t, 2, bm.GetCardinality())
}

func TestLoadMissingSidecarReturnsLookupError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.journal"))
	require.Error(t, err)
	require.ErrorIs(t, err, jferrors.ErrLookup)
}

func TestCacheGetPromotesDiskHitToMemory(t *testing.T) {
	f := newTestFile(t)
	idx, err := Build(f)
	require.NoError(t, err)
	require.NoError(t, Save(idx))

	c := NewCache()
	key := NewCacheKey(idx.FilePath, idx.FacetFields, idx.TimestampField)
	got, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, idx.EntryCount, got.EntryCount)

	got2, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, idx.EntryCount, got2.EntryCount)

	hits, misses := c.Stats()
	require.EqualValues(t, 2, hits)
	require.Zero(t, misses)
}

func TestCacheGetMissesOnDifferentFacetSet(t *testing.T) {
	f := newTestFile(t)
	idx, err := Build(f, WithFacetFields("UNIT"))
	require.NoError(t, err)

	c := NewCache()
	require.NoError(t, c.Put(idx))

	sameKey := NewCacheKey(idx.FilePath, []string{"UNIT"}, "")
	got, ok := c.Get(sameKey)
	require.True(t, ok)
	require.Equal(t, idx.EntryCount, got.EntryCount)

	otherKey := NewCacheKey(idx.FilePath, []string{"PRIORITY"}, "")
	_, ok = c.Get(otherKey)
	require.False(t, ok, "a different facet set must not reuse another build's cache entry")
}

func TestCacheEvictDropsMemoryEntryRegardlessOfSidecar(t *testing.T) {
	f := newTestFile(t)
	idx, err := Build(f, WithFacetFields("UNIT"))
	require.NoError(t, err)

	c := NewCache()
	require.NoError(t, c.Put(idx))
	c.Evict(f.Path())

	// The in-memory entry is gone, but the sidecar Put wrote is untouched and
	// still matches this key, so Get falls through to a disk hit rather than
	// a miss.
	_, ok := c.Get(NewCacheKey(f.Path(), []string{"UNIT"}, ""))
	require.True(t, ok, "Evict only clears memory, the on-disk sidecar survives")

	hits, misses := c.Stats()
	require.EqualValues(t, 1, hits)
	require.Zero(t, misses)
}

func TestCacheGetMissWhenNothingCachedOrPersisted(t *testing.T) {
	c := NewCache()
	key := NewCacheKey(filepath.Join(t.TempDir(), "missing.journal"), DefaultFacetFields, "")
	_, ok := c.Get(key)
	require.False(t, ok)
}

func TestBuildBatchIndexesAllFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, "t"+string(rune('0'+i))+".journal")
		f, err := journalfile.Create(path, journalfile.WithBucketCounts(16, 8))
		require.NoError(t, err)
		w := journalwriter.New(f)
		require.NoError(t, w.Append([]journalwriter.Field{[]byte("UNIT=a")}, 1000))
		require.NoError(t, f.Close())
		paths = append(paths, path)
	}

	cache := NewCache()
	result, err := BuildBatch(context.Background(), paths, cache, WithConcurrency(2))
	require.NoError(t, err)
	require.Empty(t, result.Unfinished)

	for _, p := range paths {
		_, ok := cache.Get(NewCacheKey(p, DefaultFacetFields, ""))
		require.True(t, ok)
	}
}

func TestBuildBatchReportsUnfinishedWhenBudgetExpires(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, "u"+string(rune('0'+i))+".journal")
		f, err := journalfile.Create(path, journalfile.WithBucketCounts(16, 8))
		require.NoError(t, err)
		require.NoError(t, f.Close())
		paths = append(paths, path)
	}

	result, err := BuildBatch(context.Background(), paths, nil, WithBatchBudget(time.Nanosecond))
	require.NoError(t, err)
	require.NotEmpty(t, result.Unfinished)
}
