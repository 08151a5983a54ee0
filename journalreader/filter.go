// Package journalreader implements the Cursor and filter expression tree
// described in SPEC_FULL.md §4.6: a uniform lookup(file, needle, direction)
// interface over Match/Conjunction/Disjunction nodes, and a Cursor that
// steps across entries either via a filter or by walking the file's
// top-level entry-array chain directly.
//
// The filter-node interface follows the teacher's small-interface style
// (e.g. store/primary/primary.go's PrimaryStorage); the partition-point
// search each Match performs is the offset-array analogue of
// compactindex36/query.go's searchEytzinger generic binary search.
package journalreader

import (
	"bytes"
	"sort"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/journalfile"
)

// sentinelMissing marks a Match built from a payload that does not exist in
// the file; it can never be produced by a real object offset (offsets are
// 8-aligned and far smaller than this value in any realistic file).
const sentinelMissing = ^uint64(0)

// node is the shared filter-expression interface: given a needle offset and
// a direction, find the nearest matching entry offset.
type node interface {
	lookup(file *journalfile.File, needle uint64, dir journalfile.Direction) (uint64, bool, error)
}

// Match resolves to every entry referencing one specific data object.
type Match struct {
	DataOffset uint64
}

func (m *Match) lookup(file *journalfile.File, needle uint64, dir journalfile.Direction) (uint64, bool, error) {
	if m.DataOffset == sentinelMissing {
		return 0, false, nil
	}
	return file.DataObjectDirectedPartitionPoint(m.DataOffset, needle, dir)
}

// Conjunction requires every child to agree on the same entry offset,
// iterating to a fixpoint starting from the needle.
type Conjunction struct {
	Children []node
}

const maxFixpointIterations = 100000

func (c *Conjunction) lookup(file *journalfile.File, needle uint64, dir journalfile.Direction) (uint64, bool, error) {
	if len(c.Children) == 0 {
		return 0, false, nil
	}
	cur := needle
	for iter := 0; iter < maxFixpointIterations; iter++ {
		var extreme uint64
		first := true
		agree := true
		for _, ch := range c.Children {
			off, ok, err := ch.lookup(file, cur, dir)
			if err != nil {
				return 0, false, err
			}
			if !ok {
				return 0, false, nil
			}
			if first {
				extreme, first = off, false
				continue
			}
			if off != extreme {
				agree = false
			}
			if dir == journalfile.Forward {
				if off > extreme {
					extreme = off
				}
			} else if off < extreme {
				extreme = off
			}
		}
		if agree {
			return extreme, true, nil
		}
		if dir == journalfile.Backward {
			extreme++
		}
		cur = extreme
	}
	return 0, false, jferrors.New(jferrors.KindFilter, "Conjunction.lookup", "fixpoint did not converge")
}

// Disjunction resolves to the nearest match across any child.
type Disjunction struct {
	Children []node
}

func (d *Disjunction) lookup(file *journalfile.File, needle uint64, dir journalfile.Direction) (uint64, bool, error) {
	var best uint64
	found := false
	for _, ch := range d.Children {
		off, ok, err := ch.lookup(file, needle, dir)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}
		if !found {
			best, found = off, true
			continue
		}
		if dir == journalfile.Forward {
			if off < best {
				best = off
			}
		} else if off > best {
			best = off
		}
	}
	return best, found, nil
}

// Operator selects how distinct field-key groups combine in a Builder.
type Operator int

const (
	OpConjunction Operator = iota
	OpDisjunction
)

// Builder accumulates add_match calls into a filter tree per SPEC_FULL
// §4.6: matches are grouped by field key, consecutive same-key matches fuse
// into a Disjunction, and groups combine under the current operator.
// Matches are grouped in call order and are not sorted by field key: two
// same-key matches separated by a match on another key form two groups.
type Builder struct {
	file     *journalfile.File
	operator Operator

	groups         []node
	currentKey     []byte
	currentMatches []node
}

// NewBuilder creates a filter builder resolving payloads against file.
func NewBuilder(file *journalfile.File) *Builder {
	return &Builder{file: file, operator: OpConjunction}
}

func fieldKey(payload []byte) []byte {
	idx := bytes.IndexByte(payload, '=')
	if idx < 0 {
		return payload
	}
	return payload[:idx]
}

// AddMatch resolves one "FIELD=VALUE" payload and adds it to the current
// field-key group. A payload absent from the file becomes a Match that
// matches nothing, per SPEC_FULL §4.6.
func (b *Builder) AddMatch(payload []byte) error {
	key := fieldKey(payload)
	offset, err := b.file.FindDataOffsetByPayload(payload)
	var m node
	if err != nil {
		if kind, ok := jferrors.KindOf(err); ok && kind == jferrors.KindLookup {
			m = &Match{DataOffset: sentinelMissing}
		} else {
			return err
		}
	} else {
		m = &Match{DataOffset: offset}
	}

	if b.currentKey != nil && bytes.Equal(b.currentKey, key) {
		b.currentMatches = append(b.currentMatches, m)
		return nil
	}
	b.closeGroup()
	b.currentKey = append([]byte(nil), key...)
	b.currentMatches = []node{m}
	return nil
}

// AddConjunction switches the operator combining groups to AND. It may be
// called at any point before Build.
func (b *Builder) AddConjunction() { b.operator = OpConjunction }

// AddDisjunction switches the operator combining groups to OR.
func (b *Builder) AddDisjunction() { b.operator = OpDisjunction }

func (b *Builder) closeGroup() {
	if len(b.currentMatches) == 0 {
		return
	}
	if len(b.currentMatches) == 1 {
		b.groups = append(b.groups, b.currentMatches[0])
	} else {
		b.groups = append(b.groups, &Disjunction{Children: append([]node(nil), b.currentMatches...)})
	}
	b.currentKey = nil
	b.currentMatches = nil
}

// Build finalizes the accumulated groups into a filter tree. Build fails if
// no matches were ever added.
func (b *Builder) Build() (*Filter, error) {
	b.closeGroup()
	if len(b.groups) == 0 {
		return nil, jferrors.New(jferrors.KindFilter, "Builder.Build", "empty filter")
	}
	var root node
	if len(b.groups) == 1 {
		root = b.groups[0]
	} else if b.operator == OpConjunction {
		root = &Conjunction{Children: b.groups}
	} else {
		root = &Disjunction{Children: b.groups}
	}
	return &Filter{root: root}, nil
}

// Filter wraps a resolved filter tree for use by a Cursor.
type Filter struct {
	root node
}

func (f *Filter) lookup(file *journalfile.File, needle uint64, dir journalfile.Direction) (uint64, bool, error) {
	return f.root.lookup(file, needle, dir)
}

// sortedFieldKeys returns a copy of payloads ordered by field key. It is
// unexported and Builder does not call it.
func sortedFieldKeys(payloads [][]byte) [][]byte {
	out := append([][]byte(nil), payloads...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(fieldKey(out[i]), fieldKey(out[j])) < 0 })
	return out
}
