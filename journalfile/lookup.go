package journalfile

import (
	"bytes"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/jhash"
	"github.com/netdata/journal-engine/journalobj"
	"github.com/netdata/journal-engine/valueguard"
)

// EntryRef returns a guarded view of the entry object at offset.
func (f *File) EntryRef(offset uint64) (*valueguard.Guard[*journalobj.EntryObject], error) {
	buf, err := f.readObject(offset)
	if err != nil {
		return nil, err
	}
	e, err := journalobj.DecodeEntryObject(buf, f.Compact(), f.ArenaOffset())
	if err != nil {
		return nil, err
	}
	return valueguard.Acquire(f.Owner(), e)
}

// DataRef returns a guarded view of the data object at offset.
func (f *File) DataRef(offset uint64) (*valueguard.Guard[*journalobj.DataObject], error) {
	buf, err := f.readObject(offset)
	if err != nil {
		return nil, err
	}
	d, err := journalobj.DecodeDataObject(buf)
	if err != nil {
		return nil, err
	}
	return valueguard.Acquire(f.Owner(), d)
}

// FieldRef returns a guarded view of the field object at offset.
func (f *File) FieldRef(offset uint64) (*valueguard.Guard[*journalobj.FieldObject], error) {
	buf, err := f.readObject(offset)
	if err != nil {
		return nil, err
	}
	ff, err := journalobj.DecodeFieldObject(buf)
	if err != nil {
		return nil, err
	}
	return valueguard.Acquire(f.Owner(), ff)
}

// dataHashTable and fieldHashTable read the two hash-table objects from the
// offsets the file header points at directly. The header stores each
// table's full encoded length (object header included), so these are plain
// object reads rather than arena lookups by chain offset.
func (f *File) dataHashTable() (*journalobj.HashTable, error) {
	buf, err := f.readBytes(f.header.DataHashTableOff, f.header.DataHashTableLen)
	if err != nil {
		return nil, err
	}
	return journalobj.DecodeHashTable(buf)
}

func (f *File) fieldHashTable() (*journalobj.HashTable, error) {
	buf, err := f.readBytes(f.header.FieldHashTableOff, f.header.FieldHashTableLen)
	if err != nil {
		return nil, err
	}
	return journalobj.DecodeHashTable(buf)
}

// FindDataOffsetByPayload hashes payload, walks the corresponding data-hash
// bucket chain, and returns the offset of the data object whose payload is
// byte-identical. Returns a jferrors.KindLookup error on miss.
func (f *File) FindDataOffsetByPayload(payload []byte) (uint64, error) {
	hash := jhash.Sum(payload, f.Keyed(), f.fileID)
	ht, err := f.dataHashTable()
	if err != nil {
		return 0, err
	}
	bucket := journalobj.BucketIndex(hash, ht.BucketCount)
	head, _, err := ht.Bucket(bucket)
	if err != nil {
		return 0, err
	}
	offset := head
	for offset != 0 {
		buf, err := f.readObject(offset)
		if err != nil {
			return 0, err
		}
		d, err := journalobj.DecodeDataObject(buf)
		if err != nil {
			return 0, err
		}
		if d.Hash == hash && bytes.Equal(d.Payload, payload) {
			return offset, nil
		}
		offset = d.NextHashOffset
	}
	return 0, jferrors.New(jferrors.KindLookup, "journalfile.FindDataOffsetByPayload", "missing object from hash table")
}

// findFieldOffset hashes name and walks the field-hash bucket chain,
// returning the matching field object's offset.
func (f *File) findFieldOffset(name []byte) (uint64, error) {
	hash := jhash.Sum(name, f.Keyed(), f.fileID)
	ht, err := f.fieldHashTable()
	if err != nil {
		return 0, err
	}
	bucket := journalobj.BucketIndex(hash, ht.BucketCount)
	head, _, err := ht.Bucket(bucket)
	if err != nil {
		return 0, err
	}
	offset := head
	for offset != 0 {
		buf, err := f.readObject(offset)
		if err != nil {
			return 0, err
		}
		ff, err := journalobj.DecodeFieldObject(buf)
		if err != nil {
			return 0, err
		}
		if ff.Hash == hash && bytes.Equal(ff.Name, name) {
			return offset, nil
		}
		offset = ff.NextHashOffset
	}
	return 0, jferrors.New(jferrors.KindLookup, "journalfile.findFieldOffset", "missing field from hash table")
}

// EntryList returns a cursor over the file's top-level entry-array chain.
func (f *File) EntryList() *OffsetArrayCursor {
	return newOffsetArrayCursor(f, f.header.EntryArrayHeadOff)
}

// EntryDataObjects returns, in item order, the decoded data objects
// referenced by the entry at entryOffset. The objects are not wrapped in
// value guards.
func (f *File) EntryDataObjects(entryOffset uint64) ([]*journalobj.DataObject, error) {
	buf, err := f.readObject(entryOffset)
	if err != nil {
		return nil, err
	}
	e, err := journalobj.DecodeEntryObject(buf, f.Compact(), f.ArenaOffset())
	if err != nil {
		return nil, err
	}
	out := make([]*journalobj.DataObject, 0, len(e.Items))
	for _, item := range e.Items {
		dbuf, err := f.readObject(item.ObjectOffset)
		if err != nil {
			return nil, err
		}
		d, err := journalobj.DecodeDataObject(dbuf)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Fields iterates every field object across every bucket of the field-hash
// table, in bucket order.
func (f *File) Fields(yield func(*journalobj.FieldObject) bool) error {
	ht, err := f.fieldHashTable()
	if err != nil {
		return err
	}
	for b := uint64(0); b < ht.BucketCount; b++ {
		head, _, err := ht.Bucket(b)
		if err != nil {
			return err
		}
		offset := head
		for offset != 0 {
			buf, err := f.readObject(offset)
			if err != nil {
				return err
			}
			ff, err := journalobj.DecodeFieldObject(buf)
			if err != nil {
				return err
			}
			if !yield(ff) {
				return nil
			}
			offset = ff.NextHashOffset
		}
	}
	return nil
}

// FieldDataObjects iterates every data object whose payload's field prefix
// matches name, following the field's HeadDataOffset chain.
func (f *File) FieldDataObjects(name []byte, yield func(*journalobj.DataObject) bool) error {
	fieldOffset, err := f.findFieldOffset(name)
	if err != nil {
		return err
	}
	buf, err := f.readObject(fieldOffset)
	if err != nil {
		return err
	}
	ff, err := journalobj.DecodeFieldObject(buf)
	if err != nil {
		return err
	}
	offset := ff.HeadDataOffset
	for offset != 0 {
		dbuf, err := f.readObject(offset)
		if err != nil {
			return err
		}
		d, err := journalobj.DecodeDataObject(dbuf)
		if err != nil {
			return err
		}
		if !yield(d) {
			return nil
		}
		offset = d.NextFieldOffset
	}
	return nil
}

// DataObjectDirectedPartitionPoint finds, among the entries referencing the
// data object at dataOffset (in the order of its own per-object offset
// array), the entry offset closest to needle in the given direction, using
// the monotone predicate "entryOffset >= needle": forward returns the
// smallest satisfying offset, backward returns the largest offset that does
// not satisfy it (i.e. the largest offset strictly below needle). This
// mirrors the Eytzinger-style partition-point search in
// compactindex36/query.go, generalized to pick either side of the split.
func (f *File) DataObjectDirectedPartitionPoint(dataOffset uint64, needle uint64, direction Direction) (uint64, bool, error) {
	buf, err := f.readObject(dataOffset)
	if err != nil {
		return 0, false, err
	}
	d, err := journalobj.DecodeDataObject(buf)
	if err != nil {
		return 0, false, err
	}

	var all []uint64
	offset := d.EntryArrayHead
	for offset != 0 {
		abuf, err := f.readObject(offset)
		if err != nil {
			return 0, false, err
		}
		arr, err := journalobj.DecodeOffsetArray(abuf)
		if err != nil {
			return 0, false, err
		}
		all = append(all, arr.Items...)
		offset = arr.NextArrayOffset
	}

	idx := journalobj.PartitionPoint(len(all), func(i int) bool { return all[i] >= needle })

	if direction == Forward {
		if idx >= len(all) {
			return 0, false, nil
		}
		return all[idx], true, nil
	}
	if idx == 0 {
		return 0, false, nil
	}
	return all[idx-1], true, nil
}
