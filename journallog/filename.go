// Package journallog owns a directory of journal files for one
// machine/source and applies rotation and retention policy over them, per
// SPEC_FULL.md §4.7.
//
// The GC-goroutine/select-loop shape and best-effort continue-on-error
// discipline are grounded on gsfa/store/primary/gsfaprimary/gc.go; the
// policy-threshold configuration is grounded on gsfa/store/option.go's
// functional-options pattern.
package journallog

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"

	"github.com/netdata/journal-engine/jferrors"
)

const fileSuffix = ".journal"
const archiveSuffix = "~"

var filenamePattern = regexp.MustCompile(`^(.+)@([0-9a-fA-F]{32})-([0-9a-fA-F]{16})-([0-9a-fA-F]{16})\.journal(~?)$`)

// FormatFilename builds a filename following the
// "<source>@<seqnum-id-hex32>-<head-seqnum-hex16>-<head-realtime-hex16>.journal[~]"
// convention described in SPEC_FULL §6.
func FormatFilename(source string, seqnumID [16]byte, headSeqnum, headRealtime uint64, archived bool) string {
	name := fmt.Sprintf("%s@%s-%016x-%016x%s", source, hex.EncodeToString(seqnumID[:]), headSeqnum, headRealtime, fileSuffix)
	if archived {
		name += archiveSuffix
	}
	return name
}

// parsedFilename is the decoded form of one journal filename.
type parsedFilename struct {
	source       string
	seqnumID     [16]byte
	headSeqnum   uint64
	headRealtime uint64
	archived     bool
}

// parseFilename decodes a journal filename per the SPEC_FULL §6 convention.
func parseFilename(name string) (*parsedFilename, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, jferrors.New(jferrors.KindFormat, "journallog.parseFilename", "invalid filename: "+name)
	}
	seqnumIDBytes, err := hex.DecodeString(m[2])
	if err != nil {
		return nil, jferrors.Wrap(jferrors.KindFormat, "journallog.parseFilename", err)
	}
	headSeqnum, err := strconv.ParseUint(m[3], 16, 64)
	if err != nil {
		return nil, jferrors.Wrap(jferrors.KindFormat, "journallog.parseFilename", err)
	}
	headRealtime, err := strconv.ParseUint(m[4], 16, 64)
	if err != nil {
		return nil, jferrors.Wrap(jferrors.KindFormat, "journallog.parseFilename", err)
	}
	pf := &parsedFilename{
		source:       m[1],
		headSeqnum:   headSeqnum,
		headRealtime: headRealtime,
		archived:     m[5] == archiveSuffix,
	}
	copy(pf.seqnumID[:], seqnumIDBytes)
	return pf, nil
}
