package journalreader

import (
	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/journalfile"
	"github.com/netdata/journal-engine/journalobj"
)

// LocationKind discriminates a Cursor's starting point.
type LocationKind int

const (
	LocationHead LocationKind = iota
	LocationTail
	LocationRealtime
	LocationEntry
	LocationAnchor
)

// Location pins a Cursor to a starting point before the first Step.
type Location struct {
	Kind         LocationKind
	RealtimeUsec uint64 // valid when Kind == LocationRealtime
	EntryOffset  uint64 // valid when Kind == LocationEntry or LocationAnchor
	Seqnum       uint64 // valid when Kind == LocationAnchor
	XorHash      uint64 // valid when Kind == LocationAnchor
}

// Head returns a Location anchored before the first entry.
func Head() Location { return Location{Kind: LocationHead} }

// Tail returns a Location anchored after the last entry.
func Tail() Location { return Location{Kind: LocationTail} }

// Realtime returns a Location seeking the entry nearest usec.
func Realtime(usec uint64) Location { return Location{Kind: LocationRealtime, RealtimeUsec: usec} }

// Entry returns a Location pinned to a known entry offset.
func Entry(offset uint64) Location { return Location{Kind: LocationEntry, EntryOffset: offset} }

// Anchor returns a Location pinned to the entry at offset. The seqnum and
// XOR hash are stored in the Location but not checked against that entry.
func Anchor(offset, seqnum, xorHash uint64) Location {
	return Location{Kind: LocationAnchor, EntryOffset: offset, Seqnum: seqnum, XorHash: xorHash}
}

// Cursor navigates entries in one journal file, either unfiltered (walking
// the file's top-level entry-array chain) or through a compiled Filter, per
// SPEC_FULL.md §4.6.
type Cursor struct {
	file   *journalfile.File
	filter *Filter

	list    *journalfile.OffsetArrayCursor // used when filter == nil
	current uint64                         // current entry offset; 0 means unpositioned
	have    bool
}

// NewCursor creates a Cursor over file at the given starting location. If
// filter is non-nil, Step resolves positions through it instead of walking
// the raw entry-array chain.
func NewCursor(file *journalfile.File, start Location, filter *Filter) (*Cursor, error) {
	c := &Cursor{file: file, filter: filter}
	if filter == nil {
		c.list = file.EntryList()
	}

	switch start.Kind {
	case LocationHead:
		// c.list already starts positioned before the first element.
		return c, nil
	case LocationTail:
		if c.list != nil {
			if err := c.list.SeekTail(); err != nil {
				return nil, err
			}
		} else {
			c.have = false
		}
		return c, nil
	case LocationEntry, LocationAnchor:
		c.current, c.have = start.EntryOffset, true
		return c, nil
	case LocationRealtime:
		offset, ok, err := c.seekRealtime(start.RealtimeUsec)
		if err != nil {
			return nil, err
		}
		c.current, c.have = offset, ok
		return c, nil
	default:
		return nil, jferrors.New(jferrors.KindFormat, "journalreader.NewCursor", "unknown location kind")
	}
}

// seekRealtime performs a partition-point search over the top-level
// entry-array chain for the first entry whose realtime is not less than
// target, per SPEC_FULL §4.6's "partition-point search over entries by
// realtime < target".
func (c *Cursor) seekRealtime(target uint64) (uint64, bool, error) {
	list := c.file.EntryList()
	return list.PartitionPoint(func(entryOffset uint64) bool {
		buf, err := c.file.ReadObject(entryOffset)
		if err != nil {
			return false
		}
		e, err := journalobj.DecodeEntryObject(buf, c.file.Compact(), c.file.ArenaOffset())
		if err != nil {
			return false
		}
		return e.Realtime >= target
	})
}

// Step advances the cursor one entry in the given direction and returns the
// new current entry offset, or (0, false, nil) when no further entry exists.
func (c *Cursor) Step(direction journalfile.Direction) (uint64, bool, error) {
	if c.filter != nil {
		return c.stepFiltered(direction)
	}
	return c.stepUnfiltered(direction)
}

func (c *Cursor) stepFiltered(direction journalfile.Direction) (uint64, bool, error) {
	var needle uint64
	if !c.have {
		if direction == journalfile.Forward {
			needle = 0
		} else {
			needle = ^uint64(0)
		}
	} else if direction == journalfile.Forward {
		needle = c.current + 1
	} else {
		if c.current == 0 {
			c.have = false
			return 0, false, nil
		}
		needle = c.current - 1
	}

	offset, ok, err := c.filter.lookup(c.file, needle, direction)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	c.current, c.have = offset, true
	return offset, true, nil
}

func (c *Cursor) stepUnfiltered(direction journalfile.Direction) (uint64, bool, error) {
	if direction == journalfile.Forward {
		offset, ok, err := c.list.Next()
		if err != nil || !ok {
			return 0, ok, err
		}
		c.current, c.have = offset, true
		return offset, true, nil
	}
	offset, ok, err := c.list.Prev()
	if err != nil || !ok {
		return 0, ok, err
	}
	c.current, c.have = offset, true
	return offset, true, nil
}

// Current returns the entry offset the cursor is positioned at, if any.
func (c *Cursor) Current() (uint64, bool) { return c.current, c.have }

// EntryDataObjects returns the data objects referenced by the cursor's
// current entry.
func (c *Cursor) EntryDataObjects() ([]*journalobj.DataObject, error) {
	if !c.have {
		return nil, jferrors.New(jferrors.KindLookup, "journalreader.Cursor.EntryDataObjects", "cursor not positioned")
	}
	return c.file.EntryDataObjects(c.current)
}
