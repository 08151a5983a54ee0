// Package journalobj implements the typed object-model views over the
// journal's binary layout described in SPEC_FULL.md §3 and §4.3: the file
// header, the generic object header, and the five object kinds (data,
// field, entry, hash table, offset array/entry-array), each validated
// against its declared type, size, and inner-offset alignment before any
// field is read.
//
// Binary parsing follows the discipline compactindex36/query.go and
// bucketteer/read.go use for their own fixed-layout formats: explicit
// magic/version checks up front, then direct little-endian decoding. Scalar
// header and object fields are decoded with encoding/binary because they
// mix field widths; the offset-array payload (a uniform run of uint64s) is
// reinterpreted in bulk with unsafe.Slice, the same zero-copy technique
// bucketteer/read.go uses for its bucket-offset table.
package journalobj

import (
	"encoding/binary"

	"github.com/netdata/journal-engine/jferrors"
)

// Magic is the fixed 8-byte prefix of every journal file, matching the
// on-disk systemd journal format this engine is wire-compatible with.
var Magic = [8]byte{'L', 'P', 'K', 'S', 'H', 'H', 'R', 'H'}

// IncompatibleFlags enumerates the bits in Header.IncompatibleFlags that
// this implementation understands.
type IncompatibleFlags uint32

const (
	IncompatCompressedXZ  IncompatibleFlags = 1 << 0
	IncompatCompressedLZ4 IncompatibleFlags = 1 << 1
	IncompatKeyedHash     IncompatibleFlags = 1 << 2
	IncompatCompact       IncompatibleFlags = 1 << 3
)

// HeaderSize is the fixed, 8-aligned size of the on-disk header.
const HeaderSize = 256

// Header is the decoded form of the fixed file header.
type Header struct {
	FileID             [16]byte
	MachineID          [16]byte
	BootID             [16]byte
	SeqnumID           [16]byte
	CompatibleFlags    uint32
	IncompatibleFlags  uint32
	ArenaOffset        uint64
	ArenaSize          uint64
	DataHashTableOff   uint64
	DataHashTableLen   uint64
	FieldHashTableOff  uint64
	FieldHashTableLen  uint64
	TailObjectOffset   uint64
	EntryArrayHeadOff  uint64
	EntryArrayTailOff  uint64
	NEntries           uint64
	NData              uint64
	NFields            uint64
	NTags              uint64
	NEntryArrays       uint64
	HeadEntrySeqnum    uint64
	TailEntrySeqnum    uint64
	HeadEntryRealtime  uint64
	TailEntryRealtime  uint64
	HeadEntryMonotonic uint64
}

// Keyed reports whether the file uses keyed (SipHash) payload hashing.
func (h *Header) Keyed() bool {
	return IncompatibleFlags(h.IncompatibleFlags)&IncompatKeyedHash != 0
}

// Compact reports whether the file stores entry items in compact
// (32-bit-offset) form.
func (h *Header) Compact() bool {
	return IncompatibleFlags(h.IncompatibleFlags)&IncompatCompact != 0
}

// EncodeHeader serializes h into a HeaderSize-length buffer.
func EncodeHeader(h *Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], Magic[:])
	copy(buf[8:24], h.FileID[:])
	copy(buf[24:40], h.MachineID[:])
	copy(buf[40:56], h.BootID[:])
	copy(buf[56:72], h.SeqnumID[:])
	le := binary.LittleEndian
	le.PutUint32(buf[72:76], h.CompatibleFlags)
	le.PutUint32(buf[76:80], h.IncompatibleFlags)
	le.PutUint64(buf[80:88], h.ArenaOffset)
	le.PutUint64(buf[88:96], h.ArenaSize)
	le.PutUint64(buf[96:104], h.DataHashTableOff)
	le.PutUint64(buf[104:112], h.DataHashTableLen)
	le.PutUint64(buf[112:120], h.FieldHashTableOff)
	le.PutUint64(buf[120:128], h.FieldHashTableLen)
	le.PutUint64(buf[128:136], h.TailObjectOffset)
	le.PutUint64(buf[136:144], h.EntryArrayHeadOff)
	le.PutUint64(buf[144:152], h.EntryArrayTailOff)
	le.PutUint64(buf[152:160], h.NEntries)
	le.PutUint64(buf[160:168], h.NData)
	le.PutUint64(buf[168:176], h.NFields)
	le.PutUint64(buf[176:184], h.NTags)
	le.PutUint64(buf[184:192], h.NEntryArrays)
	le.PutUint64(buf[192:200], h.HeadEntrySeqnum)
	le.PutUint64(buf[200:208], h.TailEntrySeqnum)
	le.PutUint64(buf[208:216], h.HeadEntryRealtime)
	le.PutUint64(buf[216:224], h.TailEntryRealtime)
	le.PutUint64(buf[224:232], h.HeadEntryMonotonic)
	return buf
}

// DecodeHeader validates and parses a HeaderSize-length buffer.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeHeader", "short header")
	}
	if string(buf[0:8]) != string(Magic[:]) {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeHeader", "bad magic")
	}
	le := binary.LittleEndian
	h := &Header{}
	copy(h.FileID[:], buf[8:24])
	copy(h.MachineID[:], buf[24:40])
	copy(h.BootID[:], buf[40:56])
	copy(h.SeqnumID[:], buf[56:72])
	h.CompatibleFlags = le.Uint32(buf[72:76])
	h.IncompatibleFlags = le.Uint32(buf[76:80])
	h.ArenaOffset = le.Uint64(buf[80:88])
	h.ArenaSize = le.Uint64(buf[88:96])
	h.DataHashTableOff = le.Uint64(buf[96:104])
	h.DataHashTableLen = le.Uint64(buf[104:112])
	h.FieldHashTableOff = le.Uint64(buf[112:120])
	h.FieldHashTableLen = le.Uint64(buf[120:128])
	h.TailObjectOffset = le.Uint64(buf[128:136])
	h.EntryArrayHeadOff = le.Uint64(buf[136:144])
	h.EntryArrayTailOff = le.Uint64(buf[144:152])
	h.NEntries = le.Uint64(buf[152:160])
	h.NData = le.Uint64(buf[160:168])
	h.NFields = le.Uint64(buf[168:176])
	h.NTags = le.Uint64(buf[176:184])
	h.NEntryArrays = le.Uint64(buf[184:192])
	h.HeadEntrySeqnum = le.Uint64(buf[192:200])
	h.TailEntrySeqnum = le.Uint64(buf[200:208])
	h.HeadEntryRealtime = le.Uint64(buf[208:216])
	h.TailEntryRealtime = le.Uint64(buf[216:224])
	h.HeadEntryMonotonic = le.Uint64(buf[224:232])

	if err := ValidateHeader(h); err != nil {
		return nil, err
	}
	return h, nil
}

// ValidateHeader checks that every offset the header declares is 0 or
// 8-aligned and lies within the arena: at or after ArenaOffset, and before
// ArenaOffset+ArenaSize. TailObjectOffset is the one exception, since it
// names the next write position rather than an existing object, and so may
// legitimately sit exactly at the arena's end.
func ValidateHeader(h *Header) error {
	arenaEnd := h.ArenaOffset + h.ArenaSize

	checks := []uint64{h.DataHashTableOff, h.FieldHashTableOff, h.EntryArrayHeadOff, h.EntryArrayTailOff}
	for _, off := range checks {
		if off == 0 {
			continue
		}
		if off%8 != 0 {
			return jferrors.New(jferrors.KindFormat, "journalobj.ValidateHeader", "misaligned offset")
		}
		if off < h.ArenaOffset {
			return jferrors.New(jferrors.KindFormat, "journalobj.ValidateHeader", "offset before arena")
		}
		if off >= arenaEnd {
			return jferrors.New(jferrors.KindFormat, "journalobj.ValidateHeader", "offset beyond arena")
		}
	}

	if off := h.TailObjectOffset; off != 0 {
		if off%8 != 0 {
			return jferrors.New(jferrors.KindFormat, "journalobj.ValidateHeader", "misaligned offset")
		}
		if off < h.ArenaOffset {
			return jferrors.New(jferrors.KindFormat, "journalobj.ValidateHeader", "offset before arena")
		}
		if off > arenaEnd {
			return jferrors.New(jferrors.KindFormat, "journalobj.ValidateHeader", "offset beyond arena")
		}
	}
	return nil
}
