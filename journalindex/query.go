package journalindex

import (
	"github.com/RoaringBitmap/roaring"
)

// Union returns the bitwise union of bitmaps, the entry indices matching at
// least one of them. Union() with no arguments returns the empty bitmap, the
// identity element for A∪∅==A.
func Union(bitmaps ...*roaring.Bitmap) *roaring.Bitmap {
	return roaring.FastOr(bitmaps...)
}

// Intersect returns the bitwise intersection of bitmaps, the entry indices
// matching all of them. Intersect() with no arguments returns the empty
// bitmap.
func Intersect(bitmaps ...*roaring.Bitmap) *roaring.Bitmap {
	if len(bitmaps) == 0 {
		return roaring.NewBitmap()
	}
	out := bitmaps[0].Clone()
	for _, bm := range bitmaps[1:] {
		out.And(bm)
	}
	return out
}

// Facet looks up the bitmap for one (field, value) pair, returning an empty
// bitmap rather than nil when the pair was never indexed, so callers can
// feed the result straight into Union/Intersect without a nil check.
func (idx *FileIndex) Facet(field, value string) *roaring.Bitmap {
	if bm, ok := idx.Facets[FacetKey{Field: field, Value: value}]; ok {
		return bm
	}
	return roaring.NewBitmap()
}

// PartitionPoint returns the smallest entry index in [lo, hi] at which a
// monotone predicate (false below the point, true at and above it) first
// holds, or hi if pred never holds over [lo, hi). This mirrors the
// file-offset partition-point helpers journalreader uses to binary-search a
// monotone predicate, generalized to bitmap-index space so range queries
// over EntryCount don't need a linear scan.
func PartitionPoint(lo, hi uint32, pred func(entryIndex uint32) bool) uint32 {
	for lo < hi {
		mid := lo + (hi-lo)/2
		if pred(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// RangeIntersect returns the subset of bm whose entry indices fall within
// [lo, hi), found by advancing an iterator to lo and collecting set bits
// until hi.
func RangeIntersect(bm *roaring.Bitmap, lo, hi uint32) *roaring.Bitmap {
	if lo >= hi {
		return roaring.NewBitmap()
	}
	out := roaring.NewBitmap()
	it := bm.Iterator()
	it.AdvanceIfNeeded(lo)
	for it.HasNext() {
		v := it.Next()
		if v >= hi {
			break
		}
		out.Add(v)
	}
	return out
}
