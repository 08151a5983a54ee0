package journalobj

import (
	"encoding/binary"
	"unsafe"

	"github.com/netdata/journal-engine/jferrors"
)

const offsetArrayFixedSize = 16 // next-array-offset (8) + item count (8)

// OffsetArray is one node of the linked list of fixed-capacity offset
// arrays used for the file's entry list and for each data object's
// per-entry list (SPEC_FULL §3). Capacity is the node's on-disk footprint
// in item slots, fixed at allocation; Items holds only the slots actually
// in use (len(Items) <= Capacity). Keeping the footprint fixed regardless
// of how many items are currently populated is what lets a node be packed
// in place via journalfile.File.WriteObjectAt, which requires a rewrite's
// encoded size to match the original exactly.
type OffsetArray struct {
	Header          ObjectHeader
	NextArrayOffset uint64
	Capacity        int
	Items           []uint64
}

// NewOffsetArray allocates an empty node with room for capacity items.
func NewOffsetArray(capacity int) *OffsetArray {
	return &OffsetArray{
		Header:   ObjectHeader{Type: TypeEntryArray},
		Capacity: capacity,
		Items:    make([]uint64, 0, capacity),
	}
}

// Full reports whether the node has no remaining slots for TryAppend.
func (a *OffsetArray) Full() bool { return len(a.Items) >= a.Capacity }

// TryAppend appends v to the node if it has room, reporting whether it did.
// A new array node should only be allocated once TryAppend reports false.
func (a *OffsetArray) TryAppend(v uint64) bool {
	if a.Full() {
		return false
	}
	a.Items = append(a.Items, v)
	return true
}

// Encode serializes the node. The item region is always Capacity slots
// wide regardless of how many are populated, so a node's encoded size
// never changes as items are packed into it - only when it is full and a
// new node is linked after it does the chain grow.
func (a *OffsetArray) Encode() []byte {
	capacity := a.Capacity
	if capacity < len(a.Items) {
		capacity = len(a.Items)
	}
	total := Align8(ObjectHeaderSize + offsetArrayFixedSize + 8*uint64(capacity))
	buf := make([]byte, total)
	a.Header.Size = total
	EncodeObjectHeader(buf, a.Header)
	le := binary.LittleEndian
	le.PutUint64(buf[ObjectHeaderSize:ObjectHeaderSize+8], a.NextArrayOffset)
	le.PutUint64(buf[ObjectHeaderSize+8:ObjectHeaderSize+16], uint64(len(a.Items)))
	itemsStart := ObjectHeaderSize + offsetArrayFixedSize
	for i, v := range a.Items {
		le.PutUint64(buf[itemsStart+8*i:itemsStart+8*i+8], v)
	}
	return buf
}

// DecodeOffsetArray validates and parses an entry-array object from buf.
// The item payload is reinterpreted in bulk via unsafe.Slice, the same
// zero-copy technique bucketteer/read.go uses to view its bucket-offset
// table as a []uint64 without per-element decoding.
func DecodeOffsetArray(buf []byte) (*OffsetArray, error) {
	oh, err := DecodeObjectHeader(buf, TypeEntryArray)
	if err != nil {
		return nil, err
	}
	if oh.Size < ObjectHeaderSize+offsetArrayFixedSize {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeOffsetArray", "truncated offset array")
	}
	next := binary.LittleEndian.Uint64(buf[ObjectHeaderSize : ObjectHeaderSize+8])
	if !ValidOffset(next) {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeOffsetArray", "misaligned next-array offset")
	}
	count := binary.LittleEndian.Uint64(buf[ObjectHeaderSize+8 : ObjectHeaderSize+16])

	itemsStart := ObjectHeaderSize + offsetArrayFixedSize
	slotBytes := oh.Size - uint64(itemsStart)
	if slotBytes%8 != 0 {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeOffsetArray", "item array misaligned")
	}
	capacity := int(slotBytes / 8)
	if count > uint64(capacity) {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeOffsetArray", "item count exceeds capacity")
	}
	n := int(count)

	var items []uint64
	if n > 0 {
		if isLittleEndianPlatform() {
			raw := buf[itemsStart : itemsStart+8*n]
			items = append([]uint64(nil), unsafe.Slice((*uint64)(unsafe.Pointer(&raw[0])), n)...)
		} else {
			items = make([]uint64, n)
			le := binary.LittleEndian
			for i := 0; i < n; i++ {
				items[i] = le.Uint64(buf[itemsStart+8*i : itemsStart+8*i+8])
			}
		}
	}

	for _, v := range items {
		if !ValidOffset(v) {
			return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeOffsetArray", "misaligned item offset")
		}
	}

	return &OffsetArray{Header: oh, NextArrayOffset: next, Capacity: capacity, Items: items}, nil
}

func isLittleEndianPlatform() bool {
	var x uint16 = 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}

// PartitionPoint returns the smallest index i in [0, n) such that
// predicate(i) is true, assuming predicate is false for indices below that
// point and true at and above it (a monotone predicate). It returns n if no
// such index exists. This is the offset-array analogue of
// compactindex36/query.go's searchEytzinger generic binary search,
// generalized from "find equal key" to "find partition point."
func PartitionPoint(n int, predicate func(i int) bool) int {
	lo, hi := 0, n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if predicate(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// SearchEytzinger performs a binary search for x over a sorted slice of
// uint64 using a caller-supplied getter, mirroring
// compactindex36/query.go's searchEytzinger(min, max, x, getter) shape
// exactly (there specialized to on-disk entries; here to in-memory offset
// arrays).
func SearchEytzinger(min, max int, x uint64, getter func(i int) uint64) (int, bool) {
	for min < max {
		mid := min + (max-min)/2
		v := getter(mid)
		switch {
		case v == x:
			return mid, true
		case v < x:
			min = mid + 1
		default:
			max = mid
		}
	}
	return min, false
}
