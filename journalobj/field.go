package journalobj

import (
	"encoding/binary"

	"github.com/netdata/journal-engine/jferrors"
)

const fieldFixedSize = 24

// FieldObject indexes every data object sharing one field name.
type FieldObject struct {
	Header         ObjectHeader
	Hash           uint64
	NextHashOffset uint64
	HeadDataOffset uint64
	Name           []byte
}

// EncodeFieldObject serializes a field object including its name payload.
func EncodeFieldObject(f FieldObject) []byte {
	total := Align8(ObjectHeaderSize + fieldFixedSize + uint64(len(f.Name)))
	buf := make([]byte, total)
	f.Header.Size = ObjectHeaderSize + fieldFixedSize + uint64(len(f.Name))
	f.Header.Type = TypeField
	EncodeObjectHeader(buf, f.Header)
	le := binary.LittleEndian
	o := ObjectHeaderSize
	le.PutUint64(buf[o:o+8], f.Hash)
	le.PutUint64(buf[o+8:o+16], f.NextHashOffset)
	le.PutUint64(buf[o+16:o+24], f.HeadDataOffset)
	copy(buf[o+fieldFixedSize:], f.Name)
	return buf
}

// DecodeFieldObject validates and parses a field object from buf.
func DecodeFieldObject(buf []byte) (*FieldObject, error) {
	oh, err := DecodeObjectHeader(buf, TypeField)
	if err != nil {
		return nil, err
	}
	if oh.Size < ObjectHeaderSize+fieldFixedSize {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeFieldObject", "truncated field object")
	}
	le := binary.LittleEndian
	o := ObjectHeaderSize
	f := &FieldObject{
		Header:         oh,
		Hash:           le.Uint64(buf[o : o+8]),
		NextHashOffset: le.Uint64(buf[o+8 : o+16]),
		HeadDataOffset: le.Uint64(buf[o+16 : o+24]),
	}
	for _, off := range []uint64{f.NextHashOffset, f.HeadDataOffset} {
		if !ValidOffset(off) {
			return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeFieldObject", "misaligned inner offset")
		}
	}
	f.Name = append([]byte(nil), buf[o+fieldFixedSize:oh.Size]...)
	return f, nil
}
