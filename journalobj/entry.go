package journalobj

import (
	"encoding/binary"

	"github.com/netdata/journal-engine/jferrors"
)

const entryFixedSize = 48 // seqnum + realtime + monotonic + boot id(16) + xor hash

// compactItemSize and fullItemSize are the two on-disk encodings of an
// entry's item list, selected by the file's compact incompatible flag.
const (
	compactItemSize = 4  // truncated 32-bit object offset
	fullItemSize    = 16 // 64-bit object offset + 64-bit data hash
)

// EntryItem references one data object belonging to an entry.
type EntryItem struct {
	ObjectOffset uint64
	Hash         uint64 // only meaningful in full (non-compact) mode
}

// EntryObject is one log record: a timestamp triple, a boot id, an xor hash
// of its items' data hashes, and the ordered list of data objects it
// references.
type EntryObject struct {
	Header     ObjectHeader
	Seqnum     uint64
	Realtime   uint64
	Monotonic  uint64
	BootID     [16]byte
	XorHash    uint64
	Items      []EntryItem
}

func itemSize(compact bool) uint64 {
	if compact {
		return compactItemSize
	}
	return fullItemSize
}

// EncodeEntryObject serializes an entry object. arenaOffset is required in
// compact mode to validate that every item offset fits in 32 bits relative
// to the arena.
func EncodeEntryObject(e EntryObject, compact bool, arenaOffset uint64) ([]byte, error) {
	isz := itemSize(compact)
	total := Align8(ObjectHeaderSize + entryFixedSize + isz*uint64(len(e.Items)))
	buf := make([]byte, total)
	e.Header.Size = ObjectHeaderSize + entryFixedSize + isz*uint64(len(e.Items))
	e.Header.Type = TypeEntry
	EncodeObjectHeader(buf, e.Header)
	le := binary.LittleEndian
	o := ObjectHeaderSize
	le.PutUint64(buf[o:o+8], e.Seqnum)
	le.PutUint64(buf[o+8:o+16], e.Realtime)
	le.PutUint64(buf[o+16:o+24], e.Monotonic)
	copy(buf[o+24:o+40], e.BootID[:])
	le.PutUint64(buf[o+40:o+48], e.XorHash)

	itemsStart := o + entryFixedSize
	for i, item := range e.Items {
		base := itemsStart + int(isz)*i
		if compact {
			if item.ObjectOffset < arenaOffset || item.ObjectOffset-arenaOffset > 0xFFFFFFFF {
				return nil, jferrors.New(jferrors.KindFormat, "journalobj.EncodeEntryObject", "offset does not fit in compact item")
			}
			le.PutUint32(buf[base:base+4], uint32(item.ObjectOffset-arenaOffset))
		} else {
			le.PutUint64(buf[base:base+8], item.ObjectOffset)
			le.PutUint64(buf[base+8:base+16], item.Hash)
		}
	}
	return buf, nil
}

// DecodeEntryObject validates and parses an entry object. arenaOffset
// reconstructs full offsets from compact mode's truncated 32-bit form.
func DecodeEntryObject(buf []byte, compact bool, arenaOffset uint64) (*EntryObject, error) {
	oh, err := DecodeObjectHeader(buf, TypeEntry)
	if err != nil {
		return nil, err
	}
	if oh.Size < ObjectHeaderSize+entryFixedSize {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeEntryObject", "truncated entry object")
	}
	le := binary.LittleEndian
	o := ObjectHeaderSize
	e := &EntryObject{
		Header:    oh,
		Seqnum:    le.Uint64(buf[o : o+8]),
		Realtime:  le.Uint64(buf[o+8 : o+16]),
		Monotonic: le.Uint64(buf[o+16 : o+24]),
		XorHash:   le.Uint64(buf[o+40 : o+48]),
	}
	copy(e.BootID[:], buf[o+24:o+40])

	isz := itemSize(compact)
	itemsStart := uint64(o) + entryFixedSize
	itemsBytes := oh.Size - itemsStart
	if itemsBytes%isz != 0 {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeEntryObject", "item array not a multiple of item size")
	}
	n := itemsBytes / isz
	e.Items = make([]EntryItem, n)
	for i := uint64(0); i < n; i++ {
		base := itemsStart + isz*i
		if compact {
			off := le.Uint32(buf[base : base+4])
			e.Items[i] = EntryItem{ObjectOffset: arenaOffset + uint64(off)}
		} else {
			e.Items[i] = EntryItem{
				ObjectOffset: le.Uint64(buf[base : base+8]),
				Hash:         le.Uint64(buf[base+8 : base+16]),
			}
		}
		if !ValidOffset(e.Items[i].ObjectOffset) {
			return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeEntryObject", "misaligned item offset")
		}
	}
	return e, nil
}

// XorOfHashes computes the XOR of a set of data-object hashes, used to
// validate an entry's XorHash field per SPEC_FULL §8.
func XorOfHashes(hashes []uint64) uint64 {
	var x uint64
	for _, h := range hashes {
		x ^= h
	}
	return x
}
