// Package journalindex builds compact per-file indexes over journal
// entries: roaring bitmaps keyed by (field, value) and time-bucket
// histograms, with cardinality/size caps, a hybrid memory+disk cache, and a
// bounded worker pool for batch indexing, per SPEC_FULL.md §4.9.
package journalindex

import (
	"github.com/RoaringBitmap/roaring"
)

// FacetKey identifies one observed (field, value) pair in a file's index.
type FacetKey struct {
	Field string
	Value string
}

// BucketState tracks the one-way Partial -> Complete promotion described in
// SPEC_FULL §9's second open question: a histogram bucket starts Partial
// (built under a time budget that expired before the bucket's full span was
// covered) and is promoted to Complete once a later build covers it fully.
// It never reverts.
type BucketState int

const (
	BucketPartial BucketState = iota
	BucketComplete
)

// HistogramBucket is one [StartSec, EndSec) span of entry counts.
type HistogramBucket struct {
	StartSec uint64
	EndSec   uint64
	Count    uint64
	PerField map[string]map[string]uint64 // field -> value -> count, optional
	State    BucketState
}

// Histogram is a sequence of fixed-duration buckets aligned to
// BucketDuration, covering the file's indexed entries.
type Histogram struct {
	BucketDurationSec uint64
	Buckets           []HistogramBucket
}

// FileIndex is the built index for one journal file, keyed conceptually by
// (file identity, facet set, timestamp field, schema version) per
// SPEC_FULL.md §4.9 — FacetFields and TimestampField record the inputs a
// particular build was made with, so a cache can tell two indexes of the
// same file apart when they were built for different facet sets.
type FileIndex struct {
	FilePath       string
	SchemaVersion  uint32
	FacetFields    []string // facet field names this index was built over
	TimestampField string   // "" means the entry's own Realtime was used
	Facets         map[FacetKey]*roaring.Bitmap
	DroppedFields  map[string]bool // fields that exceeded the cardinality cap
	Histogram      Histogram
	EntryCount     uint32
	Complete       bool // false if the build stopped early on a time budget
}

// DefaultFacetFields is the bounded default set of fields indexed when Build
// is not given an explicit facet set, chosen to match the journal fields
// that filter expressions and query tooling actually select on.
var DefaultFacetFields = []string{
	"UNIT",
	"PRIORITY",
	"SYSLOG_IDENTIFIER",
	"_SYSTEMD_UNIT",
	"_HOSTNAME",
	"_TRANSPORT",
	"_PID",
	"_COMM",
}

// Limits bounds per-field memory use while building an index.
type Limits struct {
	MaxValuesPerField int
	MaxPayloadBytes   int
}

func defaultLimits() Limits {
	return Limits{MaxValuesPerField: 10000, MaxPayloadBytes: 4096}
}

// SchemaVersion is bumped whenever the on-disk index layout changes
// incompatibly; cache entries and sidecars with a different version are
// discarded rather than trusted.
const SchemaVersion = 1
