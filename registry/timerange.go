package registry

import "time"

// RangeKind discriminates how well a file's time range is known, per
// SPEC_FULL.md §4.8.
type RangeKind int

const (
	// RangeUnknown means the file has not yet been indexed or read.
	RangeUnknown RangeKind = iota
	// RangeActive means the file may still receive appended entries; End is
	// a lower bound, not a hard upper bound.
	RangeActive
	// RangeBounded means the file is archived and its range is final.
	RangeBounded
)

// TimeRange is a file's realtime span as known to the Registry.
type TimeRange struct {
	Kind      RangeKind
	Start     uint64 // realtime microseconds, valid when Kind != RangeUnknown
	End       uint64 // realtime microseconds, valid when Kind != RangeUnknown
	IndexedAt time.Time
}

// Overlaps reports whether the range intersects [start, end] (inclusive),
// treating Unknown ranges as never matching.
func (r TimeRange) Overlaps(start, end uint64) bool {
	if r.Kind == RangeUnknown {
		return false
	}
	return r.Start <= end && start <= r.End
}
