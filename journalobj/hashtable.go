package journalobj

import (
	"encoding/binary"

	"github.com/netdata/journal-engine/jferrors"
)

// hashBucketSize is the size of one bucket entry: head and tail offsets of
// its object chain.
const hashBucketSize = 16

// HashTable is a fixed-bucket-count array of singly-linked object chains,
// addressed by in-file offsets rather than pointers so the on-disk layout
// has no cycles and matches the wire format (SPEC_FULL §4.3, §9).
type HashTable struct {
	Header      ObjectHeader
	BucketCount uint64
	buf         []byte // raw bucket array, hashBucketSize*BucketCount bytes
}

// NewHashTable allocates an empty (zeroed) hash table object with the given
// bucket count.
func NewHashTable(typ Type, bucketCount uint64) *HashTable {
	return &HashTable{
		Header:      ObjectHeader{Type: typ},
		BucketCount: bucketCount,
		buf:         make([]byte, hashBucketSize*bucketCount),
	}
}

// Encode serializes the hash table object.
func (ht *HashTable) Encode() []byte {
	total := Align8(ObjectHeaderSize + uint64(len(ht.buf)))
	out := make([]byte, total)
	ht.Header.Size = total
	EncodeObjectHeader(out, ht.Header)
	copy(out[ObjectHeaderSize:], ht.buf)
	return out
}

// DecodeHashTable validates and parses a hash table object, whose type must
// be TypeDataHashTable or TypeFieldHashTable.
func DecodeHashTable(buf []byte) (*HashTable, error) {
	oh, err := DecodeObjectHeader(buf, TypeUnused)
	if err != nil {
		return nil, err
	}
	if oh.Type != TypeDataHashTable && oh.Type != TypeFieldHashTable {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeHashTable", "not a hash table object")
	}
	body := oh.Size - ObjectHeaderSize
	if body%hashBucketSize != 0 {
		return nil, jferrors.New(jferrors.KindFormat, "journalobj.DecodeHashTable", "bucket array misaligned")
	}
	ht := &HashTable{
		Header:      oh,
		BucketCount: body / hashBucketSize,
		buf:         append([]byte(nil), buf[ObjectHeaderSize:oh.Size]...),
	}
	return ht, nil
}

// Bucket returns the head/tail offsets of the chain at index i.
func (ht *HashTable) Bucket(i uint64) (head, tail uint64, err error) {
	if i >= ht.BucketCount {
		return 0, 0, jferrors.New(jferrors.KindLookup, "journalobj.HashTable.Bucket", "bucket index out of range")
	}
	o := i * hashBucketSize
	le := binary.LittleEndian
	return le.Uint64(ht.buf[o : o+8]), le.Uint64(ht.buf[o+8 : o+16]), nil
}

// SetBucket writes new head/tail offsets for bucket i.
func (ht *HashTable) SetBucket(i uint64, head, tail uint64) error {
	if i >= ht.BucketCount {
		return jferrors.New(jferrors.KindLookup, "journalobj.HashTable.SetBucket", "bucket index out of range")
	}
	o := i * hashBucketSize
	le := binary.LittleEndian
	le.PutUint64(ht.buf[o:o+8], head)
	le.PutUint64(ht.buf[o+8:o+16], tail)
	return nil
}

// BucketIndex reduces a payload hash to a bucket index.
func BucketIndex(hash uint64, bucketCount uint64) uint64 {
	if bucketCount == 0 {
		return 0
	}
	return hash % bucketCount
}
