package journalfile

import (
	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/journalobj"
)

// OffsetArrayCursor walks a linked list of offset-array nodes (the file's
// top-level entry list, or one data object's per-entry list) forward and
// backward, per SPEC_FULL §3's "Offset Array" description.
type OffsetArrayCursor struct {
	file     *File
	headOff  uint64
	nodes    []*journalobj.OffsetArray // loaded lazily, in chain order
	nodeOffs []uint64
	pos      int // absolute index into the concatenation of all nodes' Items
	loaded   bool
}

func newOffsetArrayCursor(f *File, headOff uint64) *OffsetArrayCursor {
	return &OffsetArrayCursor{file: f, headOff: headOff, pos: -1}
}

func (c *OffsetArrayCursor) ensureLoaded() error {
	if c.loaded {
		return nil
	}
	offset := c.headOff
	for offset != 0 {
		buf, err := c.file.readObject(offset)
		if err != nil {
			return err
		}
		arr, err := journalobj.DecodeOffsetArray(buf)
		if err != nil {
			return err
		}
		c.nodes = append(c.nodes, arr)
		c.nodeOffs = append(c.nodeOffs, offset)
		offset = arr.NextArrayOffset
	}
	c.loaded = true
	return nil
}

func (c *OffsetArrayCursor) total() int {
	n := 0
	for _, node := range c.nodes {
		n += len(node.Items)
	}
	return n
}

func (c *OffsetArrayCursor) at(i int) uint64 {
	for _, node := range c.nodes {
		if i < len(node.Items) {
			return node.Items[i]
		}
		i -= len(node.Items)
	}
	return 0
}

// Next advances the cursor forward and returns the next entry offset, or
// (0, false, nil) when exhausted.
func (c *OffsetArrayCursor) Next() (uint64, bool, error) {
	if err := c.ensureLoaded(); err != nil {
		return 0, false, err
	}
	if c.pos+1 >= c.total() {
		return 0, false, nil
	}
	c.pos++
	return c.at(c.pos), true, nil
}

// Prev moves the cursor backward and returns the previous entry offset, or
// (0, false, nil) when at the start.
func (c *OffsetArrayCursor) Prev() (uint64, bool, error) {
	if err := c.ensureLoaded(); err != nil {
		return 0, false, err
	}
	if c.pos <= 0 {
		c.pos = -1
		return 0, false, nil
	}
	c.pos--
	return c.at(c.pos), true, nil
}

// SeekHead resets the cursor to just before the first element.
func (c *OffsetArrayCursor) SeekHead() { c.pos = -1 }

// SeekTail positions the cursor just after the last element.
func (c *OffsetArrayCursor) SeekTail() error {
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	c.pos = c.total()
	return nil
}

// Len returns the total number of entries across the whole chain.
func (c *OffsetArrayCursor) Len() (int, error) {
	if err := c.ensureLoaded(); err != nil {
		return 0, err
	}
	return c.total(), nil
}

// PartitionPoint returns the first offset in the chain for which predicate
// is true, using journalobj.PartitionPoint's monotone binary search.
func (c *OffsetArrayCursor) PartitionPoint(predicate func(entryOffset uint64) bool) (uint64, bool, error) {
	if err := c.ensureLoaded(); err != nil {
		return 0, false, err
	}
	n := c.total()
	idx := journalobj.PartitionPoint(n, func(i int) bool { return predicate(c.at(i)) })
	if idx >= n {
		return 0, false, nil
	}
	return c.at(idx), true, nil
}

// ErrEmptyList is returned by callers that require a non-empty chain; kept
// as a shared sentinel so reader code can branch on jferrors.KindLookup.
var ErrEmptyList = jferrors.New(jferrors.KindLookup, "journalfile.OffsetArrayCursor", "empty offset-array list")
