package journalobj

import (
	"bytes"
	"encoding/binary"

	"github.com/netdata/journal-engine/jferrors"
)

// dataFixedSize is the size of a DataObject's fields after the generic
// object header and before the variable-length payload.
const dataFixedSize = 48

// DataObject is the decoded view of a data object: object header, payload
// hash, intra-bucket chain pointer, field-chain link, the head of the
// per-object entry offset-array, the count of entries referencing it, and
// the raw "FIELD=VALUE" payload.
type DataObject struct {
	Header          ObjectHeader
	Hash            uint64
	NextHashOffset  uint64
	NextFieldOffset uint64
	TailEntryOffset uint64
	EntryArrayHead  uint64
	NumEntries      uint64
	Payload         []byte
}

// EncodeDataObject serializes a data object including its payload, 8-aligned
// to a whole number of bytes.
func EncodeDataObject(d DataObject) []byte {
	total := Align8(ObjectHeaderSize + dataFixedSize + uint64(len(d.Payload)))
	buf := make([]byte, total)
	d.Header.Size = ObjectHeaderSize + dataFixedSize + uint64(len(d.Payload))
	d.Header.Type = TypeData
	EncodeObjectHeader(buf, d.Header)
	le := binary.LittleEndian
	o := ObjectHeaderSize
	le.PutUint64(buf[o:o+8], d.Hash)
	le.PutUint64(buf[o+8:o+16], d.NextHashOffset)
	le.PutUint64(buf[o+16:o+24], d.NextFieldOffset)
	le.PutUint64(buf[o+24:o+32], d.TailEntryOffset)
	le.PutUint64(buf[o+32:o+40], d.EntryArrayHead)
	le.PutUint64(buf[o+40:o+48], d.NumEntries)
	copy(buf[o+dataFixedSize:], d.Payload)
	return buf
}

// DecodeDataObject validates and parses a data object from buf (sized to at
// least the object's declared size).
func DecodeDataObject(buf []byte) (*DataObject, error) {
	oh, err := DecodeObjectHeader(buf, TypeData)
	if err != nil {
		return nil, err
	}
	if oh.Size < ObjectHeaderSize+dataFixedSize {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeDataObject", "truncated data object")
	}
	le := binary.LittleEndian
	o := ObjectHeaderSize
	d := &DataObject{
		Header:          oh,
		Hash:            le.Uint64(buf[o : o+8]),
		NextHashOffset:  le.Uint64(buf[o+8 : o+16]),
		NextFieldOffset: le.Uint64(buf[o+16 : o+24]),
		TailEntryOffset: le.Uint64(buf[o+24 : o+32]),
		EntryArrayHead:  le.Uint64(buf[o+32 : o+40]),
		NumEntries:      le.Uint64(buf[o+40 : o+48]),
	}
	for _, off := range []uint64{d.NextHashOffset, d.NextFieldOffset, d.TailEntryOffset, d.EntryArrayHead} {
		if !ValidOffset(off) {
			return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeDataObject", "misaligned inner offset")
		}
	}
	payloadEnd := oh.Size
	d.Payload = append([]byte(nil), buf[o+dataFixedSize:payloadEnd]...)
	return d, nil
}

// FieldName returns the FIELD portion of a "FIELD=VALUE" payload.
func (d *DataObject) FieldName() []byte {
	idx := bytes.IndexByte(d.Payload, '=')
	if idx < 0 {
		return d.Payload
	}
	return d.Payload[:idx]
}
