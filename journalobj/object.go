package journalobj

import (
	"encoding/binary"

	"github.com/netdata/journal-engine/jferrors"
)

// Type tags a journal object.
type Type uint8

const (
	TypeUnused          Type = 0
	TypeData            Type = 1
	TypeField           Type = 2
	TypeEntry           Type = 3
	TypeDataHashTable   Type = 4
	TypeFieldHashTable  Type = 5
	TypeEntryArray      Type = 6
	TypeTag             Type = 7
)

func (t Type) String() string {
	switch t {
	case TypeData:
		return "data"
	case TypeField:
		return "field"
	case TypeEntry:
		return "entry"
	case TypeDataHashTable:
		return "data-hash-table"
	case TypeFieldHashTable:
		return "field-hash-table"
	case TypeEntryArray:
		return "entry-array"
	case TypeTag:
		return "tag"
	default:
		return "unused"
	}
}

// Flag bits an object header may carry; currently only compression method
// for data objects.
type Flag uint8

const (
	FlagCompressedNone Flag = 0
	FlagCompressedXZ   Flag = 1
	FlagCompressedLZ4  Flag = 2
)

// ObjectHeaderSize is the fixed 16-byte prefix of every object.
const ObjectHeaderSize = 16

// ObjectHeader is the generic, 8-aligned prefix shared by every object.
type ObjectHeader struct {
	Type Type
	Flag Flag
	Size uint64 // total size including this header
}

// EncodeObjectHeader writes h into the first ObjectHeaderSize bytes of buf.
func EncodeObjectHeader(buf []byte, h ObjectHeader) {
	buf[0] = byte(h.Type)
	buf[1] = byte(h.Flag)
	binary.LittleEndian.PutUint64(buf[8:16], h.Size)
}

// DecodeObjectHeader parses and validates the object header at the start of
// buf against an expected type (or TypeUnused to accept any type).
func DecodeObjectHeader(buf []byte, expect Type) (ObjectHeader, error) {
	if len(buf) < ObjectHeaderSize {
		return ObjectHeader{}, jferrors.New(jferrors.KindFormat, "journalobj.DecodeObjectHeader", "short buffer")
	}
	h := ObjectHeader{
		Type: Type(buf[0]),
		Flag: Flag(buf[1]),
		Size: binary.LittleEndian.Uint64(buf[8:16]),
	}
	if h.Size < ObjectHeaderSize {
		return ObjectHeader{}, jferrors.New(jferrors.KindFormat, "journalobj.DecodeObjectHeader", "size smaller than header")
	}
	if int(h.Size) > len(buf) {
		return ObjectHeader{}, jferrors.New(jferrors.KindFormat, "journalobj.DecodeObjectHeader", "size exceeds buffer")
	}
	if expect != TypeUnused && h.Type != expect {
		return ObjectHeader{}, jferrors.New(jferrors.KindFormat, "journalobj.DecodeObjectHeader", "unexpected object type")
	}
	return h, nil
}

// Align8 rounds v up to the next multiple of 8.
func Align8(v uint64) uint64 {
	return (v + 7) &^ 7
}

// ValidOffset reports whether off is either 0 ("none") or 8-aligned.
func ValidOffset(off uint64) bool {
	return off == 0 || off%8 == 0
}
