package journalindex

import (
	"bytes"
	"strconv"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/jftimeout"
	"github.com/netdata/journal-engine/journalfile"
	"github.com/netdata/journal-engine/journalobj"
)

const defaultBucketDurationSec = 3600

// BuildOptions configures Build.
type BuildOptions struct {
	Limits         Limits
	BucketSeconds  uint64
	Budget         time.Duration // zero means unlimited
	FacetFields    []string      // fields to index as (field,value) bitmaps
	TimestampField string        // "" means bucket by the entry's own Realtime
}

func defaultBuildOptions() BuildOptions {
	return BuildOptions{
		Limits:        defaultLimits(),
		BucketSeconds: defaultBucketDurationSec,
		FacetFields:   DefaultFacetFields,
	}
}

// Option configures a Build call.
type Option func(*BuildOptions)

func WithLimits(l Limits) Option { return func(o *BuildOptions) { o.Limits = l } }

func WithBucketSeconds(s uint64) Option {
	return func(o *BuildOptions) {
		if s > 0 {
			o.BucketSeconds = s
		}
	}
}

func WithBudget(d time.Duration) Option { return func(o *BuildOptions) { o.Budget = d } }

// WithFacetFields overrides the bounded default set of fields indexed as
// (field,value) bitmaps (SPEC_FULL.md §4.9's "set of facet field names").
// Passing no fields indexes nothing, an explicit caller choice.
func WithFacetFields(fields ...string) Option {
	return func(o *BuildOptions) { o.FacetFields = fields }
}

// WithTimestampField selects a source-timestamp field to bucket entries by
// instead of the entry's own Realtime (SPEC_FULL.md §4.9's "optional
// source-timestamp field name"). The field's payload value is parsed as a
// decimal microsecond timestamp; an entry missing the field, or carrying an
// unparseable value, falls back to its own Realtime.
func WithTimestampField(field string) Option {
	return func(o *BuildOptions) { o.TimestampField = field }
}

// Build scans file's entries in ascending order and produces a FileIndex. If
// a non-zero budget is given and expires before the scan completes, Build
// returns the index built so far with Complete set to false and the
// trailing histogram bucket marked BucketPartial, rather than erroring:
// a partial index is still useful for the buckets it did finish.
func Build(file *journalfile.File, opts ...Option) (*FileIndex, error) {
	cfg := defaultBuildOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	facetSet := make(map[string]struct{}, len(cfg.FacetFields))
	for _, f := range cfg.FacetFields {
		facetSet[f] = struct{}{}
	}

	idx := &FileIndex{
		FilePath:       file.Path(),
		SchemaVersion:  SchemaVersion,
		FacetFields:    cfg.FacetFields,
		TimestampField: cfg.TimestampField,
		Facets:         make(map[FacetKey]*roaring.Bitmap),
		DroppedFields:  make(map[string]bool),
		Histogram:      Histogram{BucketDurationSec: cfg.BucketSeconds},
		Complete:       true,
	}
	fieldValues := make(map[string]map[string]struct{})

	var to *jftimeout.Timeout
	if cfg.Budget > 0 {
		to = jftimeout.New(cfg.Budget)
	}

	list := file.EntryList()
	var entryIndex uint32
	for {
		if to != nil && to.Expired() {
			idx.Complete = false
			markTrailingPartial(&idx.Histogram)
			break
		}
		offset, ok, err := list.Next()
		if err != nil {
			return nil, jferrors.Wrap(jferrors.KindIO, "journalindex.Build", err)
		}
		if !ok {
			break
		}

		buf, err := file.ReadObject(offset)
		if err != nil {
			return nil, jferrors.Wrap(jferrors.KindIO, "journalindex.Build", err)
		}
		entry, err := journalobj.DecodeEntryObject(buf, file.Compact(), file.ArenaOffset())
		if err != nil {
			return nil, jferrors.Wrap(jferrors.KindFormat, "journalindex.Build", err)
		}

		dataObjs, err := file.EntryDataObjects(offset)
		if err != nil {
			return nil, jferrors.Wrap(jferrors.KindIO, "journalindex.Build", err)
		}
		for _, d := range dataObjs {
			idx.indexPayload(d.Payload, entryIndex, cfg.Limits, facetSet, fieldValues)
		}

		idx.recordHistogram(resolveTimestamp(entry.Realtime, cfg.TimestampField, dataObjs), cfg.BucketSeconds)
		idx.EntryCount++
		entryIndex++
	}

	return idx, nil
}

func (idx *FileIndex) indexPayload(payload []byte, entryIndex uint32, limits Limits, facetSet map[string]struct{}, fieldValues map[string]map[string]struct{}) {
	if len(payload) > limits.MaxPayloadBytes {
		return
	}
	sep := bytes.IndexByte(payload, '=')
	if sep < 0 {
		return
	}
	field := string(payload[:sep])
	if _, wanted := facetSet[field]; !wanted {
		return
	}
	value := string(payload[sep+1:])

	if idx.DroppedFields[field] {
		return
	}
	values, ok := fieldValues[field]
	if !ok {
		values = make(map[string]struct{})
		fieldValues[field] = values
	}
	if _, seen := values[value]; !seen {
		if len(values) >= limits.MaxValuesPerField {
			idx.DroppedFields[field] = true
			for v := range values {
				delete(idx.Facets, FacetKey{Field: field, Value: v})
			}
			return
		}
		values[value] = struct{}{}
	}

	key := FacetKey{Field: field, Value: value}
	bm, ok := idx.Facets[key]
	if !ok {
		bm = roaring.NewBitmap()
		idx.Facets[key] = bm
	}
	bm.Add(entryIndex)
}

// resolveTimestamp returns the microsecond timestamp an entry should be
// bucketed under: the named timestampField's payload value if one is
// configured, present, and parseable, otherwise the entry's own Realtime.
func resolveTimestamp(realtimeUsec uint64, timestampField string, dataObjs []*journalobj.DataObject) uint64 {
	if timestampField == "" {
		return realtimeUsec
	}
	prefix := timestampField + "="
	for _, d := range dataObjs {
		if !bytes.HasPrefix(d.Payload, []byte(prefix)) {
			continue
		}
		v, err := strconv.ParseUint(string(d.Payload[len(prefix):]), 10, 64)
		if err != nil {
			return realtimeUsec
		}
		return v
	}
	return realtimeUsec
}

func (idx *FileIndex) recordHistogram(timestampUsec, bucketSeconds uint64) {
	sec := timestampUsec / 1_000_000
	start := (sec / bucketSeconds) * bucketSeconds

	h := &idx.Histogram
	if n := len(h.Buckets); n == 0 || h.Buckets[n-1].StartSec != start {
		h.Buckets = append(h.Buckets, HistogramBucket{
			StartSec: start,
			EndSec:   start + bucketSeconds,
			State:    BucketComplete,
		})
	}
	last := &h.Buckets[len(h.Buckets)-1]
	last.Count++
}

func markTrailingPartial(h *Histogram) {
	if n := len(h.Buckets); n > 0 {
		h.Buckets[n-1].State = BucketPartial
	}
}
