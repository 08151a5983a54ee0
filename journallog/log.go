package journallog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/journalfile"
	"github.com/netdata/journal-engine/journalwriter"
	"github.com/netdata/journal-engine/metrics"
)

var log = logging.Logger("journal/journallog")

// Log owns a directory of journal files for one machine/source and applies
// rotation and retention policy over them (SPEC_FULL §4.7).
type Log struct {
	dir    string
	source string
	cfg    config

	mu     sync.Mutex
	chain  []*fileEntry
	active *fileEntry
}

// Open scans dir for files belonging to source, builds the Chain, and opens
// or creates the active file.
func Open(dir, source string, opts ...Option) (*Log, error) {
	cfg := defaultConfig()
	for _, apply := range opts {
		apply(&cfg)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, jferrors.Wrap(jferrors.KindIO, "journallog.Open", err)
	}

	chain, err := scanChain(dir, source)
	if err != nil {
		return nil, err
	}

	l := &Log{dir: dir, source: source, cfg: cfg, chain: chain}

	if n := len(chain); n > 0 && !chain[n-1].archived {
		active := chain[n-1]
		f, err := journalfile.Open(active.path)
		if err != nil {
			return nil, err
		}
		active.file = f
		l.active = active
	} else {
		if err := l.createActive(0, 0, [16]byte{}); err != nil {
			return nil, err
		}
	}

	if err := l.enforceRetentionLocked(); err != nil {
		log.Warnw("retention failed on open", "err", err)
	}

	log.Infow("opened journal log", "dir", dir, "source", source, "files", len(l.chain))
	return l, nil
}

func (l *Log) createActive(headSeqnum, headRealtime uint64, seqnumID [16]byte) error {
	path := filepath.Join(l.dir, FormatFilename(l.source, seqnumID, headSeqnum, headRealtime, false))
	opts := []journalfile.Option{
		journalfile.WithBucketCounts(l.cfg.buckets.data, l.cfg.buckets.field),
	}
	if !l.cfg.keyed {
		opts = append(opts, journalfile.WithUnkeyedHash())
	}
	if !l.cfg.compact {
		opts = append(opts, journalfile.WithFullEntryItems())
	}
	if seqnumID != ([16]byte{}) {
		opts = append(opts, journalfile.WithSeqnumID(seqnumID))
	}

	f, err := journalfile.Create(path, opts...)
	if err != nil {
		return err
	}
	entry := &fileEntry{
		path:         path,
		seqnumID:     f.Header().SeqnumID,
		headSeqnum:   headSeqnum,
		headRealtime: headRealtime,
		file:         f,
	}
	l.chain = append(l.chain, entry)
	l.active = entry
	return nil
}

// WriteEntry appends one entry to the active file, rotating first if any
// configured rotation limit is exceeded.
func (l *Log) WriteEntry(payloads []journalwriter.Field, realtimeUsec uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if trigger := l.rotationTriggerLocked(); trigger != "" {
		if err := l.rotateLocked(realtimeUsec); err != nil {
			return err
		}
		metrics.RotationsTotal.WithLabelValues(trigger).Inc()
	}

	w := journalwriter.New(l.active.file)
	if err := w.Append(payloads, realtimeUsec); err != nil {
		return err
	}

	size, err := l.active.file.Size()
	if err != nil {
		return err
	}
	l.active.size = size

	if err := l.enforceRetentionLocked(); err != nil {
		log.Warnw("retention failed after write", "err", err)
	}
	return nil
}

// rotationTriggerLocked returns the name of the first exceeded rotation
// threshold, or "" if none has been exceeded.
func (l *Log) rotationTriggerLocked() string {
	hdr := l.active.file.Header()
	if l.cfg.rotation.MaxFileSize > 0 {
		if size, err := l.active.file.Size(); err == nil && size >= l.cfg.rotation.MaxFileSize {
			return "size"
		}
	}
	if l.cfg.rotation.MaxEntries > 0 && hdr.NEntries >= l.cfg.rotation.MaxEntries {
		return "entries"
	}
	if l.cfg.rotation.MaxDuration > 0 && hdr.NEntries > 0 {
		spanUsec := hdr.TailEntryRealtime - hdr.HeadEntryRealtime
		if time.Duration(spanUsec)*time.Microsecond >= l.cfg.rotation.MaxDuration {
			return "duration"
		}
	}
	return ""
}

// rotateLocked closes the active file, archives its filename, and creates a
// fresh active file whose filename carries the current tail seqnum+1 and
// realtimeUsec, per SPEC_FULL §4.7.
func (l *Log) rotateLocked(realtimeUsec uint64) error {
	old := l.active
	hdr := old.file.Header()
	nextSeqnum := hdr.TailEntrySeqnum + 1
	seqnumID := hdr.SeqnumID

	if err := old.file.Close(); err != nil {
		return err
	}
	archivedPath := old.path + archiveSuffix
	if err := os.Rename(old.path, archivedPath); err != nil {
		return jferrors.Wrap(jferrors.KindIO, "journallog.rotateLocked", err)
	}
	old.path = archivedPath
	old.archived = true
	old.file = nil

	log.Infow("rotated journal file", "archived", archivedPath, "nextSeqnum", nextSeqnum)
	return l.createActive(nextSeqnum, realtimeUsec, seqnumID)
}

// enforceRetentionLocked deletes the oldest files until every configured
// retention limit is satisfied, per SPEC_FULL §4.7. Unlink failures are
// logged and aggregated but do not stop the sweep (best-effort).
func (l *Log) enforceRetentionLocked() error {
	var errs error
	for {
		policy := l.retentionViolatedLocked()
		if policy == "" {
			break
		}
		victim := l.oldestDeletableLocked()
		if victim < 0 {
			break
		}
		entry := l.chain[victim]
		if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
			log.Warnw("retention unlink failed", "path", entry.path, "err", err)
			errs = multierr.Append(errs, jferrors.Wrap(jferrors.KindIO, "journallog.enforceRetentionLocked", err))
			// Best-effort: drop it from the chain anyway so retention makes
			// progress even if the filesystem entry could not be removed.
		}
		l.chain = append(l.chain[:victim], l.chain[victim+1:]...)
		metrics.RetentionDeletionsTotal.WithLabelValues(policy).Inc()
	}
	return errs
}

// retentionViolatedLocked returns the name of the first exceeded retention
// threshold, or "" if none has been exceeded.
func (l *Log) retentionViolatedLocked() string {
	r := l.cfg.retention
	if r.MaxFiles > 0 && len(l.chain) > r.MaxFiles {
		return "max_files"
	}
	if r.MaxTotalSize > 0 && totalSize(l.chain) > r.MaxTotalSize {
		return "max_total_size"
	}
	if r.MaxAge > 0 && len(l.chain) > 0 {
		cutoff := uint64(time.Now().Add(-r.MaxAge).UnixMicro())
		if l.chain[0].headRealtime != 0 && l.chain[0].headRealtime < cutoff {
			return "max_age"
		}
	}
	return ""
}

// oldestDeletableLocked returns the index of the oldest non-active file, or
// -1 if only the active file remains (which is never deleted by retention).
func (l *Log) oldestDeletableLocked() int {
	for i, e := range l.chain {
		if e != l.active {
			return i
		}
	}
	return -1
}

// Close closes the active file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == nil || l.active.file == nil {
		return nil
	}
	return l.active.file.Close()
}

// Files returns the current chain's file paths, oldest first.
func (l *Log) Files() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.chain))
	for i, e := range l.chain {
		out[i] = e.path
	}
	return out
}
