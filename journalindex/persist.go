package journalindex

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring"

	"github.com/netdata/journal-engine/jferrors"
)

// sidecarSuffix and bitmapSuffix name the two files a FileIndex persists as,
// following the JSON-sidecar-plus-payload split used by the teacher's own
// header/body persistence for primary storage shards.
const (
	sidecarSuffix = ".jidx.json"
	bitmapSuffix  = ".jidx.bitmaps"
)

// sidecar is the JSON-serializable metadata half of a persisted FileIndex;
// the facet bitmaps themselves are written separately in binary, since
// roaring bitmaps do not round-trip through JSON.
type sidecar struct {
	FilePath       string
	SchemaVersion  uint32
	FacetFields    []string
	TimestampField string
	DroppedFields  map[string]bool
	Histogram      Histogram
	EntryCount     uint32
	Complete       bool
	FacetCount     int
}

func sidecarPath(journalPath string) string { return journalPath + sidecarSuffix }
func bitmapPath(journalPath string) string  { return journalPath + bitmapSuffix }

// Save writes idx to two sidecar files next to the journal file it indexes:
// a JSON metadata file and a binary bitmap payload file.
func Save(idx *FileIndex) error {
	meta := sidecar{
		FilePath:       idx.FilePath,
		SchemaVersion:  idx.SchemaVersion,
		FacetFields:    idx.FacetFields,
		TimestampField: idx.TimestampField,
		DroppedFields:  idx.DroppedFields,
		Histogram:      idx.Histogram,
		EntryCount:     idx.EntryCount,
		Complete:       idx.Complete,
		FacetCount:     len(idx.Facets),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return jferrors.Wrap(jferrors.KindFormat, "journalindex.Save", err)
	}
	if err := os.WriteFile(sidecarPath(idx.FilePath), raw, 0o666); err != nil {
		return jferrors.Wrap(jferrors.KindIO, "journalindex.Save", err)
	}

	var buf bytes.Buffer
	for key, bm := range idx.Facets {
		bmBytes, err := bm.ToBytes()
		if err != nil {
			return jferrors.Wrap(jferrors.KindFormat, "journalindex.Save", err)
		}
		writeLP(&buf, []byte(key.Field))
		writeLP(&buf, []byte(key.Value))
		writeLP(&buf, bmBytes)
	}
	if err := os.WriteFile(bitmapPath(idx.FilePath), buf.Bytes(), 0o666); err != nil {
		return jferrors.Wrap(jferrors.KindIO, "journalindex.Save", err)
	}
	return nil
}

// Load reads back a FileIndex previously written by Save. It returns
// jferrors.KindLookup if no sidecar exists, and jferrors.KindFormat if the
// sidecar's schema version does not match the current SchemaVersion: a
// mismatched sidecar is treated as absent rather than trusted.
func Load(journalPath string) (*FileIndex, error) {
	rawMeta, err := os.ReadFile(sidecarPath(journalPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jferrors.New(jferrors.KindLookup, "journalindex.Load", "no cached index")
		}
		return nil, jferrors.Wrap(jferrors.KindIO, "journalindex.Load", err)
	}
	var meta sidecar
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return nil, jferrors.Wrap(jferrors.KindFormat, "journalindex.Load", err)
	}
	if meta.SchemaVersion != SchemaVersion {
		return nil, jferrors.New(jferrors.KindFormat, "journalindex.Load", "stale index schema version")
	}

	rawBitmaps, err := os.ReadFile(bitmapPath(journalPath))
	if err != nil {
		return nil, jferrors.Wrap(jferrors.KindIO, "journalindex.Load", err)
	}
	facets := make(map[FacetKey]*roaring.Bitmap, meta.FacetCount)
	r := bytes.NewReader(rawBitmaps)
	for r.Len() > 0 {
		field, err := readLP(r)
		if err != nil {
			return nil, jferrors.Wrap(jferrors.KindFormat, "journalindex.Load", err)
		}
		value, err := readLP(r)
		if err != nil {
			return nil, jferrors.Wrap(jferrors.KindFormat, "journalindex.Load", err)
		}
		bmBytes, err := readLP(r)
		if err != nil {
			return nil, jferrors.Wrap(jferrors.KindFormat, "journalindex.Load", err)
		}
		bm := roaring.NewBitmap()
		if _, err := bm.ReadFrom(bytes.NewReader(bmBytes)); err != nil {
			return nil, jferrors.Wrap(jferrors.KindFormat, "journalindex.Load", err)
		}
		facets[FacetKey{Field: string(field), Value: string(value)}] = bm
	}

	return &FileIndex{
		FilePath:       meta.FilePath,
		SchemaVersion:  meta.SchemaVersion,
		FacetFields:    meta.FacetFields,
		TimestampField: meta.TimestampField,
		Facets:         facets,
		DroppedFields:  meta.DroppedFields,
		Histogram:      meta.Histogram,
		EntryCount:     meta.EntryCount,
		Complete:       meta.Complete,
	}, nil
}

func writeLP(buf *bytes.Buffer, data []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

func readLP(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
