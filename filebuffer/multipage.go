package filebuffer

import (
	"fmt"

	"chunkstore/chunkerr"
	"chunkstore/pagefile"
)

// pageVersion is one (epoch, physical page) entry in a MultiPage's
// history. Versions are kept as a single ordered sequence of
// (epoch, Page) pairs rather than parallel epochs[]/page_versions[]
// vectors; the contract is unchanged.
type pageVersion struct {
	epoch int32
	page  pagefile.Page
}

// MultiPage is the version history of one logical page: a strictly
// increasing sequence of epochs, each paired with the physical page that
// was current as of that epoch.
type MultiPage struct {
	versions []pageVersion
}

// Current returns the most recent physical page version. Panics if the
// MultiPage has no versions — callers must only call this on a
// MultiPage that invariant 1 (size_==0 iff multi_pages empty) guarantees
// is non-empty.
func (mp *MultiPage) Current() pagefile.Page {
	return mp.versions[len(mp.versions)-1].page
}

// CurrentEpoch returns the epoch of the most recent version.
func (mp *MultiPage) CurrentEpoch() int32 {
	return mp.versions[len(mp.versions)-1].epoch
}

// Empty reports whether this MultiPage has no recorded version.
func (mp *MultiPage) Empty() bool {
	return len(mp.versions) == 0
}

// Append records a new version. Epoch must be strictly greater than the
// current epoch, maintaining invariant 3.
func (mp *MultiPage) Append(epoch int32, p pagefile.Page) {
	mp.versions = append(mp.versions, pageVersion{epoch: epoch, page: p})
}

// RollbackToEpoch truncates the version list to the last entry with
// epoch <= target, the abstract recovery mechanism the design calls out
// (§4.4 "State machine"). It is an error if every version postdates
// target and at least one version exists.
func (mp *MultiPage) RollbackToEpoch(target int32) error {
	if len(mp.versions) == 0 {
		return nil
	}
	keep := -1
	for i, v := range mp.versions {
		if v.epoch <= target {
			keep = i
		} else {
			break
		}
	}
	if keep < 0 {
		return fmt.Errorf("%w: no page version at or before epoch %d", chunkerr.ErrCorruptChunk, target)
	}
	mp.versions = mp.versions[:keep+1]
	return nil
}
