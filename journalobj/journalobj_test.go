package journalobj

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := &Header{
		IncompatibleFlags: uint32(IncompatKeyedHash | IncompatCompact),
		ArenaOffset:       HeaderSize,
		ArenaSize:         1024,
		DataHashTableOff:  HeaderSize,
		TailObjectOffset:  HeaderSize,
		NEntries:          3,
	}
	for i := range h.FileID {
		h.FileID[i] = byte(i)
	}
	buf := EncodeHeader(h)
	require.Len(t, buf, HeaderSize)

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h.FileID, got.FileID)
	require.True(t, got.Keyed())
	require.True(t, got.Compact())
	require.Equal(t, uint64(3), got.NEntries)
}

func TestDecodeHeaderBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	copy(buf, []byte("BADMAGIC"))
	_, err := DecodeHeader(buf)
	require.Error(t, err)
}

func TestDataObjectRoundTrip(t *testing.T) {
	d := DataObject{
		Hash:           0xdeadbeef,
		NextHashOffset: 0,
		EntryArrayHead: 0,
		Payload:        []byte("MESSAGE=hello"),
	}
	buf := EncodeDataObject(d)
	got, err := DecodeDataObject(buf)
	require.NoError(t, err)
	require.Equal(t, d.Hash, got.Hash)
	require.Equal(t, []byte("MESSAGE=hello"), got.Payload)
	require.Equal(t, []byte("MESSAGE"), got.FieldName())
}

func TestFieldObjectRoundTrip(t *testing.T) {
	f := FieldObject{Hash: 123, Name: []byte("PRIORITY")}
	buf := EncodeFieldObject(f)
	got, err := DecodeFieldObject(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(123), got.Hash)
	require.Equal(t, []byte("PRIORITY"), got.Name)
}

func TestEntryObjectRoundTripFull(t *testing.T) {
	e := EntryObject{
		Seqnum:   1,
		Realtime: 1000,
		Items: []EntryItem{
			{ObjectOffset: 256, Hash: 1},
			{ObjectOffset: 320, Hash: 2},
		},
	}
	e.XorHash = XorOfHashes([]uint64{1, 2})
	buf, err := EncodeEntryObject(e, false, 256)
	require.NoError(t, err)
	got, err := DecodeEntryObject(buf, false, 256)
	require.NoError(t, err)
	require.Equal(t, e.Seqnum, got.Seqnum)
	require.Equal(t, e.Items, got.Items)
	require.Equal(t, e.XorHash, got.XorHash)
}

func TestEntryObjectRoundTripCompact(t *testing.T) {
	arena := uint64(256)
	e := EntryObject{
		Seqnum: 1,
		Items: []EntryItem{
			{ObjectOffset: arena + 64},
			{ObjectOffset: arena + 128},
		},
	}
	buf, err := EncodeEntryObject(e, true, arena)
	require.NoError(t, err)
	got, err := DecodeEntryObject(buf, true, arena)
	require.NoError(t, err)
	require.Equal(t, arena+64, got.Items[0].ObjectOffset)
	require.Equal(t, arena+128, got.Items[1].ObjectOffset)
}

func TestHashTableBuckets(t *testing.T) {
	ht := NewHashTable(TypeDataHashTable, 16)
	require.NoError(t, ht.SetBucket(3, 256, 512))
	head, tail, err := ht.Bucket(3)
	require.NoError(t, err)
	require.Equal(t, uint64(256), head)
	require.Equal(t, uint64(512), tail)

	buf := ht.Encode()
	got, err := DecodeHashTable(buf)
	require.NoError(t, err)
	head, tail, err = got.Bucket(3)
	require.NoError(t, err)
	require.Equal(t, uint64(256), head)
	require.Equal(t, uint64(512), tail)
}

func TestBucketIndex(t *testing.T) {
	require.Equal(t, uint64(5), BucketIndex(101, 16))
}

func TestOffsetArrayRoundTrip(t *testing.T) {
	a := NewOffsetArray(4)
	a.Items = append(a.Items, 256, 320, 384)
	a.NextArrayOffset = 1024
	buf := a.Encode()
	got, err := DecodeOffsetArray(buf)
	require.NoError(t, err)
	require.Equal(t, []uint64{256, 320, 384}, got.Items)
	require.Equal(t, uint64(1024), got.NextArrayOffset)
}

func TestPartitionPoint(t *testing.T) {
	values := []int{1, 1, 2, 2, 2, 3, 5}
	idx := PartitionPoint(len(values), func(i int) bool { return values[i] >= 2 })
	require.Equal(t, 2, idx)

	idx = PartitionPoint(len(values), func(i int) bool { return values[i] >= 100 })
	require.Equal(t, len(values), idx)
}

func TestSearchEytzinger(t *testing.T) {
	values := []uint64{10, 20, 30, 40, 50}
	getter := func(i int) uint64 { return values[i] }

	idx, ok := SearchEytzinger(0, len(values), 30, getter)
	require.True(t, ok)
	require.Equal(t, 2, idx)

	_, ok = SearchEytzinger(0, len(values), 25, getter)
	require.False(t, ok)
}
