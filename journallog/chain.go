package journallog

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/journalfile"
)

// fileEntry is one file in a Log's Chain. file is non-nil only for the
// active (currently open for writing) entry.
type fileEntry struct {
	path         string
	seqnumID     [16]byte
	headSeqnum   uint64
	headRealtime uint64
	archived     bool
	size         int64
	file         *journalfile.File
}

// scanChain reads dir, parses every filename belonging to source, and
// returns the entries ordered by head-seqnum ascending, per SPEC_FULL §4.7
// ("build a Chain ordered by head-seqnum") and §8's no-two-share-a-
// head-seqnum invariant (duplicates are rejected).
func scanChain(dir, source string) ([]*fileEntry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, jferrors.Wrap(jferrors.KindIO, "journallog.scanChain", err)
	}

	var chain []*fileEntry
	seen := map[uint64]bool{}
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		pf, err := parseFilename(d.Name())
		if err != nil {
			continue // not a journal file belonging to any source
		}
		if pf.source != source {
			continue
		}
		if seen[pf.headSeqnum] {
			return nil, jferrors.New(jferrors.KindFormat, "journallog.scanChain", "duplicate head-seqnum in chain")
		}
		seen[pf.headSeqnum] = true

		path := filepath.Join(dir, d.Name())
		fi, err := d.Info()
		if err != nil {
			return nil, jferrors.Wrap(jferrors.KindIO, "journallog.scanChain", err)
		}
		chain = append(chain, &fileEntry{
			path:         path,
			seqnumID:     pf.seqnumID,
			headSeqnum:   pf.headSeqnum,
			headRealtime: pf.headRealtime,
			archived:     pf.archived,
			size:         fi.Size(),
		})
	}

	sort.Slice(chain, func(i, j int) bool { return chain[i].headSeqnum < chain[j].headSeqnum })
	return chain, nil
}

func totalSize(chain []*fileEntry) int64 {
	var total int64
	for _, e := range chain {
		total += e.size
	}
	return total
}
