package journalindex

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/require"
)

func bitmapOf(values ...uint32) *roaring.Bitmap {
	bm := roaring.NewBitmap()
	for _, v := range values {
		bm.Add(v)
	}
	return bm
}

func TestIntersectIsAssociative(t *testing.T) {
	a := bitmapOf(1, 2, 3, 4)
	b := bitmapOf(2, 3, 4, 5)
	c := bitmapOf(3, 4, 5, 6)

	left := Intersect(Intersect(a, b), c)
	right := Intersect(a, Intersect(b, c))
	require.True(t, left.Equals(right))
	require.True(t, left.Equals(bitmapOf(3, 4)))
}

func TestIntersectIsIdempotent(t *testing.T) {
	a := bitmapOf(1, 2, 3)
	require.True(t, Intersect(a, a).Equals(a))
}

func TestUnionWithEmptyIsIdentity(t *testing.T) {
	a := bitmapOf(1, 2, 3)
	require.True(t, Union(a, roaring.NewBitmap()).Equals(a))
}

func TestUnionIsAssociative(t *testing.T) {
	a := bitmapOf(1, 2)
	b := bitmapOf(2, 3)
	c := bitmapOf(4)

	left := Union(Union(a, b), c)
	right := Union(a, Union(b, c))
	require.True(t, left.Equals(right))
	require.True(t, left.Equals(bitmapOf(1, 2, 3, 4)))
}

func TestFacetMissingPairReturnsEmptyBitmap(t *testing.T) {
	idx := &FileIndex{Facets: map[FacetKey]*roaring.Bitmap{}}
	bm := idx.Facet("UNIT", "missing.service")
	require.NotNil(t, bm)
	require.Zero(t, bm.GetCardinality())
}

func TestBuildIntersectAcrossFacetsNarrowsResult(t *testing.T) {
	f := newTestFile(t)
	idx, err := Build(f)
	require.NoError(t, err)

	units := idx.Facet("UNIT", "a.service")
	prio := idx.Facet("PRIORITY", "6")

	both := Intersect(units, prio)
	require.True(t, both.Equals(units), "every entry in this fixture has PRIORITY=6")
}

func TestPartitionPointFindsFirstTrue(t *testing.T) {
	got := PartitionPoint(0, 10, func(i uint32) bool { return i >= 6 })
	require.EqualValues(t, 6, got)
}

func TestPartitionPointAllFalseReturnsHi(t *testing.T) {
	got := PartitionPoint(0, 10, func(i uint32) bool { return false })
	require.EqualValues(t, 10, got)
}

func TestPartitionPointAllTrueReturnsLo(t *testing.T) {
	got := PartitionPoint(0, 10, func(i uint32) bool { return true })
	require.EqualValues(t, 0, got)
}

func TestRangeIntersectRestrictsToBounds(t *testing.T) {
	bm := bitmapOf(1, 5, 10, 15, 20)
	got := RangeIntersect(bm, 5, 16)
	require.True(t, got.Equals(bitmapOf(5, 10, 15)))
}

func TestRangeIntersectEmptyRange(t *testing.T) {
	bm := bitmapOf(1, 2, 3)
	got := RangeIntersect(bm, 5, 5)
	require.Zero(t, got.GetCardinality())
}
