package journalfile

import (
	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/jhash"
	"github.com/netdata/journal-engine/journalobj"
)

// These methods expose the raw I/O and header-mutation primitives
// journalwriter needs to implement append/dedup/chain-linking policy, while
// keeping that policy out of journalfile itself (SPEC_FULL §4.4 vs §4.5).

// Lock acquires the file's single-writer mutex. journalwriter holds it for
// the duration of one append; rotation and retention are serialized by the
// journallog directory lock instead.
func (f *File) Lock() { f.mu.Lock() }

// Unlock releases the mutex acquired by Lock.
func (f *File) Unlock() { f.mu.Unlock() }

// FileID returns the file's identifier, used as the SipHash key in keyed
// mode.
func (f *File) FileID() jhash.FileID { return f.fileID }

// TailObjectOffset is the offset at which the next appended object should
// be written.
func (f *File) TailObjectOffset() uint64 { return f.header.TailObjectOffset }

// AppendRaw writes buf (an already-encoded, 8-aligned object) at the
// current tail, fsyncs it, and advances the tail offset. Per the crash-
// safety invariant in SPEC_FULL §4.5/§9, the caller must fsync and obtain
// the returned offset before linking the object into any hash-table bucket
// or field chain.
func (f *File) AppendRaw(buf []byte) (uint64, error) {
	offset := f.header.TailObjectOffset
	if _, err := f.osFile.WriteAt(buf, int64(offset)); err != nil {
		return 0, jferrors.Wrap(jferrors.KindIO, "journalfile.AppendRaw", err)
	}
	if err := f.osFile.Sync(); err != nil {
		return 0, jferrors.Wrap(jferrors.KindIO, "journalfile.AppendRaw", err)
	}
	f.header.TailObjectOffset = offset + uint64(len(buf))
	f.header.ArenaSize = f.header.TailObjectOffset - f.header.ArenaOffset
	if err := f.wm.Refresh(); err != nil {
		return 0, err
	}
	return offset, nil
}

// WriteObjectAt overwrites an existing object's bytes in place (used to
// rewrite a data/field object's link fields after allocating a new
// successor). len(buf) must not change the object's declared size.
func (f *File) WriteObjectAt(offset uint64, buf []byte) error {
	if _, err := f.osFile.WriteAt(buf, int64(offset)); err != nil {
		return jferrors.Wrap(jferrors.KindIO, "journalfile.WriteObjectAt", err)
	}
	if err := f.osFile.Sync(); err != nil {
		return jferrors.Wrap(jferrors.KindIO, "journalfile.WriteObjectAt", err)
	}
	return f.wm.Refresh()
}

// ReadObject returns the raw encoded bytes of the object at offset.
func (f *File) ReadObject(offset uint64) ([]byte, error) {
	return f.readObject(offset)
}

// DataHashTable returns the current data-hash table.
func (f *File) DataHashTable() (*journalobj.HashTable, error) {
	return f.dataHashTable()
}

// FieldHashTable returns the current field-hash table.
func (f *File) FieldHashTable() (*journalobj.HashTable, error) {
	return f.fieldHashTable()
}

// WriteDataHashTable persists an updated data-hash table back to its fixed
// slot; the bucket count (and therefore encoded size) must be unchanged.
func (f *File) WriteDataHashTable(ht *journalobj.HashTable) error {
	buf := ht.Encode()
	if uint64(len(buf)) != f.header.DataHashTableLen {
		return jferrors.New(jferrors.KindFormat, "journalfile.WriteDataHashTable", "bucket count changed")
	}
	return f.WriteObjectAt(f.header.DataHashTableOff, buf)
}

// WriteFieldHashTable persists an updated field-hash table back to its
// fixed slot.
func (f *File) WriteFieldHashTable(ht *journalobj.HashTable) error {
	buf := ht.Encode()
	if uint64(len(buf)) != f.header.FieldHashTableLen {
		return jferrors.New(jferrors.KindFormat, "journalfile.WriteFieldHashTable", "bucket count changed")
	}
	return f.WriteObjectAt(f.header.FieldHashTableOff, buf)
}

// SetEntryArrayBounds updates the header's head/tail pointers into the
// top-level entry-array chain.
func (f *File) SetEntryArrayBounds(head, tail uint64) {
	if f.header.EntryArrayHeadOff == 0 {
		f.header.EntryArrayHeadOff = head
	}
	f.header.EntryArrayTailOff = tail
}

// RecordEntryAppended updates the header's entry counters and timestamp
// bounds after a new entry has been durably linked.
func (f *File) RecordEntryAppended(seqnum, realtime, monotonic uint64) {
	if f.header.NEntries == 0 {
		f.header.HeadEntrySeqnum = seqnum
		f.header.HeadEntryRealtime = realtime
		f.header.HeadEntryMonotonic = monotonic
	}
	f.header.TailEntrySeqnum = seqnum
	f.header.TailEntryRealtime = realtime
	f.header.NEntries++
}

// RecordDataAppended increments the data-object counter.
func (f *File) RecordDataAppended() { f.header.NData++ }

// RecordFieldAppended increments the field-object counter.
func (f *File) RecordFieldAppended() { f.header.NFields++ }

// RecordEntryArrayAppended increments the entry-array node counter.
func (f *File) RecordEntryArrayAppended() { f.header.NEntryArrays++ }

// FlushHeader persists the in-memory header to disk and fsyncs it. This is
// always the last step of an append, after every object it references has
// already been written and synced (SPEC_FULL §4.5).
func (f *File) FlushHeader() error {
	buf := journalobj.EncodeHeader(f.header)
	if _, err := f.osFile.WriteAt(buf, 0); err != nil {
		return jferrors.Wrap(jferrors.KindIO, "journalfile.FlushHeader", err)
	}
	if err := f.osFile.Sync(); err != nil {
		return jferrors.Wrap(jferrors.KindIO, "journalfile.FlushHeader", err)
	}
	return nil
}

// Size returns the file's current on-disk size in bytes.
func (f *File) Size() (int64, error) {
	fi, err := f.osFile.Stat()
	if err != nil {
		return 0, jferrors.Wrap(jferrors.KindIO, "journalfile.Size", err)
	}
	return fi.Size(), nil
}
