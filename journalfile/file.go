// Package journalfile opens or creates a single journal file, owns its
// window manager, and exposes the object lookup, hash-table search,
// offset-array walk, and field-chain iteration operations named in
// SPEC_FULL.md §4.4.
//
// The open/create branching follows store/index/index.go's Open (validate
// an existing header, or initialize a fresh one) and compactindex36/
// query.go's DB.Open/Lookup/GetBucket shape for the read surface.
package journalfile

import (
	"os"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/jhash"
	"github.com/netdata/journal-engine/journalobj"
	"github.com/netdata/journal-engine/sigbus"
	"github.com/netdata/journal-engine/valueguard"
	"github.com/netdata/journal-engine/windowmgr"
)

var log = logging.Logger("journal/journalfile")

// Options configure creation of a new journal file.
type Options struct {
	Keyed           bool
	Compact         bool
	DataBuckets     uint64
	FieldBuckets    uint64
	WindowChunkSize int64
	MaxWindows      int
	SeqnumID        *[16]byte
}

func defaultOptions() Options {
	return Options{
		Keyed:           true,
		Compact:         true,
		DataBuckets:     2048,
		FieldBuckets:    128,
		WindowChunkSize: windowmgr.DefaultChunkSize,
		MaxWindows:      64,
	}
}

// Option mutates Options; follows the functional-options shape in
// gsfa/store/option.go.
type Option func(*Options)

func WithBucketCounts(data, field uint64) Option {
	return func(o *Options) { o.DataBuckets, o.FieldBuckets = data, field }
}

func WithWindow(chunkSize int64, maxWindows int) Option {
	return func(o *Options) { o.WindowChunkSize, o.MaxWindows = chunkSize, maxWindows }
}

func WithUnkeyedHash() Option {
	return func(o *Options) { o.Keyed = false }
}

func WithFullEntryItems() Option {
	return func(o *Options) { o.Compact = false }
}

// WithSeqnumID pins the file's seqnum-domain identifier (used to group
// rotated files sharing one monotonic seqnum space) instead of generating a
// random one.
func WithSeqnumID(id [16]byte) Option {
	return func(o *Options) { o.SeqnumID = &id }
}

// File is one open journal file plus its derived window manager and
// read/write mutex discipline. Per SPEC_FULL §5, a File is accessed by a
// single reader or writer at a time; it does not itself synchronize
// concurrent callers beyond the guard exclusivity in Owner.
type File struct {
	path   string
	osFile *os.File
	wm     *windowmgr.Manager
	header *journalobj.Header
	fileID jhash.FileID

	mu    sync.Mutex // guards Header mutation during writes
	owner valueguard.Owner
}

// Path returns the file's path on disk.
func (f *File) Path() string { return f.path }

// Header returns the current in-memory header. Callers must not mutate it;
// use the journalwriter package to append entries.
func (f *File) Header() *journalobj.Header { return f.header }

// Keyed reports whether the file hashes payloads with SipHash.
func (f *File) Keyed() bool { return f.header.Keyed() }

// Compact reports whether the file stores entry items in 32-bit form.
func (f *File) Compact() bool { return f.header.Compact() }

// ArenaOffset is the byte offset where the object arena begins.
func (f *File) ArenaOffset() uint64 { return f.header.ArenaOffset }

// Owner exposes the file's single-access guard owner, shared across all
// readers/iterators derived from this File per SPEC_FULL §4.2/§5.
func (f *File) Owner() *valueguard.Owner { return &f.owner }

// Open opens an existing journal file at path, validating its header.
func Open(path string) (*File, error) {
	osFile, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, jferrors.Wrap(jferrors.KindIO, "journalfile.Open", err)
	}
	hdrBuf := make([]byte, journalobj.HeaderSize)
	if _, err := osFile.ReadAt(hdrBuf, 0); err != nil {
		osFile.Close()
		return nil, jferrors.Wrap(jferrors.KindIO, "journalfile.Open", err)
	}
	hdr, err := journalobj.DecodeHeader(hdrBuf)
	if err != nil {
		osFile.Close()
		return nil, err
	}
	wm, err := windowmgr.New(osFile, true, windowmgr.DefaultChunkSize, 64)
	if err != nil {
		osFile.Close()
		return nil, err
	}
	f := &File{path: path, osFile: osFile, wm: wm, header: hdr}
	copy(f.fileID[:], hdr.FileID[:])
	log.Infow("opened journal file", "path", path, "entries", hdr.NEntries)
	return f, nil
}

// Create initializes a brand-new journal file at path.
func Create(path string, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}

	osFile, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, jferrors.Wrap(jferrors.KindIO, "journalfile.Create", err)
	}

	hdr := &journalobj.Header{
		ArenaOffset: journalobj.Align8(journalobj.HeaderSize),
	}
	if o.Keyed {
		hdr.IncompatibleFlags |= uint32(journalobj.IncompatKeyedHash)
	}
	if o.Compact {
		hdr.IncompatibleFlags |= uint32(journalobj.IncompatCompact)
	}
	if _, err := readRandom(hdr.FileID[:]); err != nil {
		osFile.Close()
		return nil, err
	}
	if o.SeqnumID != nil {
		hdr.SeqnumID = *o.SeqnumID
	} else if _, err := readRandom(hdr.SeqnumID[:]); err != nil {
		osFile.Close()
		return nil, err
	}

	dataHT := journalobj.NewHashTable(journalobj.TypeDataHashTable, o.DataBuckets)
	fieldHT := journalobj.NewHashTable(journalobj.TypeFieldHashTable, o.FieldBuckets)
	dataBuf := dataHT.Encode()
	fieldBuf := fieldHT.Encode()

	hdr.DataHashTableOff = hdr.ArenaOffset
	hdr.DataHashTableLen = uint64(len(dataBuf))
	hdr.FieldHashTableOff = hdr.DataHashTableOff + hdr.DataHashTableLen
	hdr.FieldHashTableLen = uint64(len(fieldBuf))
	hdr.ArenaSize = hdr.DataHashTableLen + hdr.FieldHashTableLen
	hdr.TailObjectOffset = hdr.FieldHashTableOff + hdr.FieldHashTableLen

	if _, err := osFile.WriteAt(journalobj.EncodeHeader(hdr), 0); err != nil {
		osFile.Close()
		return nil, jferrors.Wrap(jferrors.KindIO, "journalfile.Create", err)
	}
	if _, err := osFile.WriteAt(dataBuf, int64(hdr.DataHashTableOff)); err != nil {
		osFile.Close()
		return nil, jferrors.Wrap(jferrors.KindIO, "journalfile.Create", err)
	}
	if _, err := osFile.WriteAt(fieldBuf, int64(hdr.FieldHashTableOff)); err != nil {
		osFile.Close()
		return nil, jferrors.Wrap(jferrors.KindIO, "journalfile.Create", err)
	}
	if err := osFile.Sync(); err != nil {
		osFile.Close()
		return nil, jferrors.Wrap(jferrors.KindIO, "journalfile.Create", err)
	}

	wm, err := windowmgr.New(osFile, true, o.WindowChunkSize, o.MaxWindows)
	if err != nil {
		osFile.Close()
		return nil, err
	}
	f := &File{path: path, osFile: osFile, wm: wm, header: hdr}
	copy(f.fileID[:], hdr.FileID[:])
	log.Infow("created journal file", "path", path, "keyed", o.Keyed, "compact", o.Compact)
	return f, nil
}

// Close releases the file's window manager and underlying descriptor.
func (f *File) Close() error {
	wmErr := f.wm.Close()
	osErr := f.osFile.Close()
	if wmErr != nil {
		return wmErr
	}
	if osErr != nil {
		return jferrors.Wrap(jferrors.KindIO, "journalfile.Close", osErr)
	}
	return nil
}

// readBytes copies size bytes starting at offset out of the mmap'd window
// cache. The copy is intentional: per SPEC_FULL.md §9 this implementation
// decodes into owned Go memory rather than holding unsafe pointers into an
// mmap region across a guard's lifetime.
func (f *File) readBytes(offset uint64, size uint64) ([]byte, error) {
	w, err := f.wm.Acquire(int64(offset), int64(size))
	if err != nil {
		return nil, err
	}
	defer f.wm.Release(w)
	rel := int64(offset) - w.Start()
	if rel < 0 || rel+int64(size) > int64(len(w.Bytes())) {
		return nil, jferrors.New(jferrors.KindFormat, "journalfile.readBytes", "range outside window")
	}
	out := make([]byte, size)
	// The copy below touches the mmap'd window directly; a file truncated
	// or rotated out from under us surfaces here as a hardware fault, not a
	// Go error, so it runs under sigbus.Protect rather than a bare copy.
	err = sigbus.Protect(func() error {
		copy(out, w.Bytes()[rel:rel+int64(size)])
		return nil
	})
	if err != nil {
		return nil, jferrors.WrapDetails(jferrors.KindConcurrency, "journalfile.readBytes", "mmap fault", err)
	}
	return out, nil
}

// objectSize peeks the object header at offset to learn its declared size.
func (f *File) objectSize(offset uint64) (uint64, error) {
	hdr, err := f.readBytes(offset, journalobj.ObjectHeaderSize)
	if err != nil {
		return 0, err
	}
	oh, err := journalobj.DecodeObjectHeader(hdr, journalobj.TypeUnused)
	if err != nil {
		return 0, err
	}
	return oh.Size, nil
}

func (f *File) readObject(offset uint64) ([]byte, error) {
	size, err := f.objectSize(offset)
	if err != nil {
		return nil, err
	}
	return f.readBytes(offset, size)
}

func readRandom(buf []byte) (int, error) {
	urandom, err := os.Open("/dev/urandom")
	if err != nil {
		return 0, jferrors.Wrap(jferrors.KindIO, "journalfile.readRandom", err)
	}
	defer urandom.Close()
	return urandom.Read(buf)
}
