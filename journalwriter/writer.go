// Package journalwriter implements the append algorithm described in
// SPEC_FULL.md §4.5: per-entry payload deduplication via the data-hash
// table, field-chain maintenance, and a top-level entry-array chain, all
// under the crash-safety invariant that the bucket/field/array chains never
// point at an object that has not yet been fully written and synced.
//
// The buffered-append, pending-pool bookkeeping this package's algorithm is
// modeled on mirrors store/primary/gsfaprimary/gsfaprimary.go's append path
// (dedup pool plus header tail tracking) and store/index/index.go's
// bucket/chain linking order, adapted from primary-storage records to
// journal data/field/entry objects.
package journalwriter

import (
	"sort"

	logging "github.com/ipfs/go-log/v2"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/jhash"
	"github.com/netdata/journal-engine/journalfile"
	"github.com/netdata/journal-engine/journalobj"
)

var log = logging.Logger("journal/journalwriter")

// entryArrayCapacity bounds how many offsets are packed into one
// entry-array node before a new node is linked after it.
const entryArrayCapacity = 64

// Writer appends entries to one journalfile.File. It is not safe for
// concurrent use from multiple goroutines without external synchronization
// beyond the file's own Lock/Unlock (SPEC_FULL §5: single-writer per file).
type Writer struct {
	file *journalfile.File
}

// New wraps file for appending.
func New(file *journalfile.File) *Writer {
	return &Writer{file: file}
}

// Field is one FIELD=VALUE payload to append as part of a single entry.
type Field = []byte

// Append writes one entry whose fields are the given payloads
// ("FIELD=VALUE" byte slices), at the given realtime timestamp (in
// microseconds). Payloads are deduplicated against existing data objects in
// the file; new field and data objects are created as needed.
func (w *Writer) Append(payloads []Field, realtimeUsec uint64) error {
	f := w.file
	f.Lock()
	defer f.Unlock()

	if len(payloads) == 0 {
		return jferrors.New(jferrors.KindFormat, "journalwriter.Append", "entry has no fields")
	}

	items := make([]journalobj.EntryItem, 0, len(payloads))
	hashes := make([]uint64, 0, len(payloads))
	for _, payload := range payloads {
		offset, hash, err := w.dedupOrCreateData(payload)
		if err != nil {
			return err
		}
		items = append(items, journalobj.EntryItem{ObjectOffset: offset, Hash: hash})
		hashes = append(hashes, hash)
	}

	seqnum := f.Header().TailEntrySeqnum + 1
	entry := journalobj.EntryObject{
		Seqnum:    seqnum,
		Realtime:  realtimeUsec,
		Monotonic: realtimeUsec,
		BootID:    f.Header().BootID,
		XorHash:   journalobj.XorOfHashes(hashes),
		Items:     items,
	}
	buf, err := journalobj.EncodeEntryObject(entry, f.Compact(), f.ArenaOffset())
	if err != nil {
		return err
	}
	entryOffset, err := f.AppendRaw(buf)
	if err != nil {
		return err
	}

	if err := w.appendToTopLevelEntryList(entryOffset); err != nil {
		return err
	}
	for _, item := range items {
		if err := w.appendToDataEntryList(item.ObjectOffset, entryOffset); err != nil {
			return err
		}
	}

	f.RecordEntryAppended(seqnum, realtimeUsec, realtimeUsec)
	if err := f.FlushHeader(); err != nil {
		return err
	}
	log.Debugw("appended entry", "seqnum", seqnum, "fields", len(payloads))
	return nil
}

// AppendSorted is a convenience that sorts payloads by field name before
// appending, matching the ordering filters assume when fusing same-key
// matches (SPEC_FULL §4.6).
func (w *Writer) AppendSorted(payloads []Field, realtimeUsec uint64) error {
	sorted := append([]Field(nil), payloads...)
	sort.Slice(sorted, func(i, j int) bool { return string(sorted[i]) < string(sorted[j]) })
	return w.Append(sorted, realtimeUsec)
}

func (w *Writer) dedupOrCreateData(payload []byte) (uint64, uint64, error) {
	f := w.file
	hash := jhash.Sum(payload, f.Keyed(), f.FileID())

	if offset, err := f.FindDataOffsetByPayload(payload); err == nil {
		return offset, hash, nil
	} else if kind, ok := jferrors.KindOf(err); !ok || kind != jferrors.KindLookup {
		return 0, 0, err
	}

	d := journalobj.DataObject{Hash: hash, Payload: payload}
	buf := journalobj.EncodeDataObject(d)
	offset, err := f.AppendRaw(buf)
	if err != nil {
		return 0, 0, err
	}
	f.RecordDataAppended()

	if err := w.linkDataHashBucket(hash, offset); err != nil {
		return 0, 0, err
	}
	if err := w.linkField(d.FieldName(), offset); err != nil {
		return 0, 0, err
	}
	return offset, hash, nil
}

func (w *Writer) linkDataHashBucket(hash, offset uint64) error {
	f := w.file
	ht, err := f.DataHashTable()
	if err != nil {
		return err
	}
	bucket := journalobj.BucketIndex(hash, ht.BucketCount)
	head, tail, err := ht.Bucket(bucket)
	if err != nil {
		return err
	}
	if head == 0 {
		if err := ht.SetBucket(bucket, offset, offset); err != nil {
			return err
		}
		return f.WriteDataHashTable(ht)
	}

	tailBuf, err := f.ReadObject(tail)
	if err != nil {
		return err
	}
	tailObj, err := journalobj.DecodeDataObject(tailBuf)
	if err != nil {
		return err
	}
	tailObj.NextHashOffset = offset
	if err := f.WriteObjectAt(tail, journalobj.EncodeDataObject(*tailObj)); err != nil {
		return err
	}
	if err := ht.SetBucket(bucket, head, offset); err != nil {
		return err
	}
	return f.WriteDataHashTable(ht)
}

func (w *Writer) linkField(name []byte, dataOffset uint64) error {
	f := w.file
	hash := jhash.Sum(name, f.Keyed(), f.FileID())
	ht, err := f.FieldHashTable()
	if err != nil {
		return err
	}
	bucket := journalobj.BucketIndex(hash, ht.BucketCount)
	head, tail, err := ht.Bucket(bucket)
	if err != nil {
		return err
	}

	fieldOffset, found, err := w.findFieldInBucket(head, hash, name)
	if err != nil {
		return err
	}
	if !found {
		field := journalobj.FieldObject{Hash: hash, Name: name, HeadDataOffset: dataOffset}
		buf := journalobj.EncodeFieldObject(field)
		fieldOffset, err = f.AppendRaw(buf)
		if err != nil {
			return err
		}
		f.RecordFieldAppended()
		if head == 0 {
			if err := ht.SetBucket(bucket, fieldOffset, fieldOffset); err != nil {
				return err
			}
		} else {
			tailBuf, err := f.ReadObject(tail)
			if err != nil {
				return err
			}
			tailField, err := journalobj.DecodeFieldObject(tailBuf)
			if err != nil {
				return err
			}
			tailField.NextHashOffset = fieldOffset
			if err := f.WriteObjectAt(tail, journalobj.EncodeFieldObject(*tailField)); err != nil {
				return err
			}
			if err := ht.SetBucket(bucket, head, fieldOffset); err != nil {
				return err
			}
		}
		return f.WriteFieldHashTable(ht)
	}

	return w.appendDataToFieldChain(fieldOffset, dataOffset)
}

func (w *Writer) findFieldInBucket(head, hash uint64, name []byte) (uint64, bool, error) {
	f := w.file
	offset := head
	for offset != 0 {
		buf, err := f.ReadObject(offset)
		if err != nil {
			return 0, false, err
		}
		field, err := journalobj.DecodeFieldObject(buf)
		if err != nil {
			return 0, false, err
		}
		if field.Hash == hash && string(field.Name) == string(name) {
			return offset, true, nil
		}
		offset = field.NextHashOffset
	}
	return 0, false, nil
}

// appendDataToFieldChain walks an existing field's data chain (linked via
// each data object's NextFieldOffset) to its tail and links dataOffset
// after it, or sets the field's HeadDataOffset directly if the chain is
// empty.
func (w *Writer) appendDataToFieldChain(fieldOffset, dataOffset uint64) error {
	f := w.file
	buf, err := f.ReadObject(fieldOffset)
	if err != nil {
		return err
	}
	field, err := journalobj.DecodeFieldObject(buf)
	if err != nil {
		return err
	}
	if field.HeadDataOffset == 0 {
		field.HeadDataOffset = dataOffset
		return f.WriteObjectAt(fieldOffset, journalobj.EncodeFieldObject(*field))
	}

	offset := field.HeadDataOffset
	for {
		dbuf, err := f.ReadObject(offset)
		if err != nil {
			return err
		}
		d, err := journalobj.DecodeDataObject(dbuf)
		if err != nil {
			return err
		}
		if d.NextFieldOffset == 0 {
			d.NextFieldOffset = dataOffset
			return f.WriteObjectAt(offset, journalobj.EncodeDataObject(*d))
		}
		offset = d.NextFieldOffset
	}
}

// tryPackTail reads the array node at tailOffset and appends entryOffset to
// it in place if it still has room for entryArrayCapacity items, reporting
// whether it did. A node is only full once entryArrayCapacity items have
// been packed into it; only then does the caller allocate a new node
// (spec.md's "only when full" instruction for entry-array growth).
func (w *Writer) tryPackTail(tailOffset, entryOffset uint64) (bool, error) {
	f := w.file
	buf, err := f.ReadObject(tailOffset)
	if err != nil {
		return false, err
	}
	tail, err := journalobj.DecodeOffsetArray(buf)
	if err != nil {
		return false, err
	}
	if !tail.TryAppend(entryOffset) {
		return false, nil
	}
	if err := f.WriteObjectAt(tailOffset, tail.Encode()); err != nil {
		return false, err
	}
	return true, nil
}

// linkNextArray rewrites the node at prevOffset so it points at nextOffset,
// used once prevOffset's node is full and a new node has been appended
// after it.
func (w *Writer) linkNextArray(prevOffset, nextOffset uint64) error {
	f := w.file
	buf, err := f.ReadObject(prevOffset)
	if err != nil {
		return err
	}
	prev, err := journalobj.DecodeOffsetArray(buf)
	if err != nil {
		return err
	}
	prev.NextArrayOffset = nextOffset
	return f.WriteObjectAt(prevOffset, prev.Encode())
}

func (w *Writer) appendToTopLevelEntryList(entryOffset uint64) error {
	f := w.file
	prevTail := f.Header().EntryArrayTailOff
	if prevTail != 0 {
		packed, err := w.tryPackTail(prevTail, entryOffset)
		if err != nil {
			return err
		}
		if packed {
			return nil
		}
	}

	node := journalobj.NewOffsetArray(entryArrayCapacity)
	node.TryAppend(entryOffset)
	nodeOffset, err := f.AppendRaw(node.Encode())
	if err != nil {
		return err
	}
	f.RecordEntryArrayAppended()

	if prevTail != 0 {
		if err := w.linkNextArray(prevTail, nodeOffset); err != nil {
			return err
		}
	}
	f.SetEntryArrayBounds(nodeOffset, nodeOffset)
	return nil
}

// appendToDataEntryList appends entryOffset to the per-data-object entry
// list rooted at that data object's EntryArrayHead, walking to the tail
// node (an O(entries-for-this-value) walk, acceptable for the scale this
// engine targets), packing into it in place while it has room and linking
// a freshly written node after it only once it is full.
func (w *Writer) appendToDataEntryList(dataOffset, entryOffset uint64) error {
	f := w.file
	dbuf, err := f.ReadObject(dataOffset)
	if err != nil {
		return err
	}
	d, err := journalobj.DecodeDataObject(dbuf)
	if err != nil {
		return err
	}

	if d.EntryArrayHead != 0 {
		tailOffset, err := w.tailArrayOffset(d.EntryArrayHead)
		if err != nil {
			return err
		}
		packed, err := w.tryPackTail(tailOffset, entryOffset)
		if err != nil {
			return err
		}
		if !packed {
			node := journalobj.NewOffsetArray(entryArrayCapacity)
			node.TryAppend(entryOffset)
			nodeOffset, err := f.AppendRaw(node.Encode())
			if err != nil {
				return err
			}
			if err := w.linkNextArray(tailOffset, nodeOffset); err != nil {
				return err
			}
		}
	} else {
		node := journalobj.NewOffsetArray(entryArrayCapacity)
		node.TryAppend(entryOffset)
		nodeOffset, err := f.AppendRaw(node.Encode())
		if err != nil {
			return err
		}
		d.EntryArrayHead = nodeOffset
	}

	d.TailEntryOffset = entryOffset
	d.NumEntries++
	return f.WriteObjectAt(dataOffset, journalobj.EncodeDataObject(*d))
}

// tailArrayOffset walks an entry-array chain from head to its tail node.
func (w *Writer) tailArrayOffset(head uint64) (uint64, error) {
	f := w.file
	offset := head
	for {
		buf, err := f.ReadObject(offset)
		if err != nil {
			return 0, err
		}
		node, err := journalobj.DecodeOffsetArray(buf)
		if err != nil {
			return 0, err
		}
		if node.NextArrayOffset == 0 {
			return offset, nil
		}
		offset = node.NextArrayOffset
	}
}
