// Package filebuffer implements FileBuffer: a single chunk presented as a
// byte-addressable stream backed by pages with per-page version history
// keyed by epoch.
//
// Grounded on heapfile_manager/{page_header,slots,page_io}.go's
// binary.LittleEndian field-packing style and bplustree's
// {disk_pager,buffer_pool}.go pager-over-pages pattern.
package filebuffer

import (
	"fmt"
	"sync"

	"chunkstore/chunkerr"
	"chunkstore/encoder"
	"chunkstore/filemgr"
	"chunkstore/pagefile"
)

// SQLTypeInfo is the small set of type fields a metadata page records
// about its chunk's logical type, in the order WriteMetadata lays them
// out on the metadata page.
type SQLTypeInfo struct {
	Type        int32
	SubType     int32
	Dimension   int32
	Scale       int32
	NotNull     int32
	Compression int32
	CompParam   int32
	Size        int32
}

// FileBuffer is one chunk's byte stream over a sequence of pages, each
// with its own version history.
type FileBuffer struct {
	mgr *filemgr.FileMgr

	chunkKey           []int32
	pageSize           int
	reservedHeaderSize int
	pageDataSize       int

	mu            sync.Mutex
	multiPages    []*MultiPage
	metadataPages *MultiPage
	size          int64

	sqlType SQLTypeInfo
	enc     encoder.Encoder

	isDirty    bool
	isAppended bool
	isUpdated  bool
}

// New creates an empty FileBuffer for chunkKey; no pages are allocated
// until the first Reserve, Write, or Append.
func New(mgr *filemgr.FileMgr, chunkKey []int32, pageSize int) *FileBuffer {
	hs := computeHeaderSize(len(chunkKey))
	return &FileBuffer{
		mgr:                mgr,
		chunkKey:           append([]int32(nil), chunkKey...),
		pageSize:           pageSize,
		reservedHeaderSize: hs,
		pageDataSize:       pageSize - hs,
		metadataPages:      &MultiPage{},
	}
}

// ChunkKey returns the chunk's identifying key.
func (fb *FileBuffer) ChunkKey() []int32 { return fb.chunkKey }

// Size returns the total number of logical bytes currently valid.
func (fb *FileBuffer) Size() int64 {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.size
}

// PageDataSize returns the usable payload bytes per page.
func (fb *FileBuffer) PageDataSize() int { return fb.pageDataSize }

// IsDirty, IsAppended, IsUpdated report the buffer's write-tracking
// flags.
func (fb *FileBuffer) IsDirty() bool    { fb.mu.Lock(); defer fb.mu.Unlock(); return fb.isDirty }
func (fb *FileBuffer) IsAppended() bool { fb.mu.Lock(); defer fb.mu.Unlock(); return fb.isAppended }
func (fb *FileBuffer) IsUpdated() bool  { fb.mu.Lock(); defer fb.mu.Unlock(); return fb.isUpdated }

// SetSQLType records the logical type fields persisted in the metadata
// page.
func (fb *FileBuffer) SetSQLType(t SQLTypeInfo) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.sqlType = t
}

// SQLType returns the buffer's recorded logical type fields.
func (fb *FileBuffer) SQLType() SQLTypeInfo {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.sqlType
}

// SetEncoder attaches an encoder to this chunk.
func (fb *FileBuffer) SetEncoder(enc encoder.Encoder) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.enc = enc
}

// Encoder returns the chunk's attached encoder, or nil.
func (fb *FileBuffer) Encoder() encoder.Encoder {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.enc
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// allocateLogicalPage requests a fresh physical page at the current
// epoch and appends it as the newest (only) version of the next logical
// page. Caller must hold fb.mu.
func (fb *FileBuffer) allocateLogicalPage() error {
	p, err := fb.mgr.RequestFreePage(fb.pageSize, false)
	if err != nil {
		return err
	}
	epoch := fb.mgr.Epoch()
	mp := &MultiPage{}
	mp.Append(epoch, p)
	fb.multiPages = append(fb.multiPages, mp)
	return fb.writePageHeader(len(fb.multiPages)-1, p, epoch)
}

// writePageHeader rewrites the reserved header region of a chunk page.
// pageID is the page's index in multiPages; metadata page headers are
// written by WriteMetadata, not here.
func (fb *FileBuffer) writePageHeader(pageID int, p pagefile.Page, epoch int32) error {
	fi, err := fb.mgr.GetFileInfo(p.FileID)
	if err != nil {
		return err
	}
	hdr := make([]byte, fb.reservedHeaderSize)
	writeHeader(hdr, fb.reservedHeaderSize, fb.chunkKey, int32(pageID), epoch)
	byteOffset := int64(p.PageNum) * int64(fb.pageSize)
	if _, err := fi.Write(byteOffset, fb.reservedHeaderSize, hdr); err != nil {
		return err
	}
	fb.mgr.Cache().Invalidate(p.FileID, p.PageNum)
	return nil
}

// writePagePayload writes data into page p's payload starting at pageOff
// and invalidates any cached copy.
func (fb *FileBuffer) writePagePayload(p pagefile.Page, pageOff int, data []byte) error {
	fi, err := fb.mgr.GetFileInfo(p.FileID)
	if err != nil {
		return err
	}
	byteOffset := int64(p.PageNum)*int64(fb.pageSize) + int64(fb.reservedHeaderSize) + int64(pageOff)
	if _, err := fi.Write(byteOffset, len(data), data); err != nil {
		return err
	}
	fb.mgr.Cache().Invalidate(p.FileID, p.PageNum)
	return nil
}

// Reserve ensures at least ceil(numBytes/pageDataSize) logical pages
// exist. It does not change Size.
func (fb *FileBuffer) Reserve(numBytes int64) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	want := int(ceilDiv(numBytes, int64(fb.pageDataSize)))
	for len(fb.multiPages) < want {
		if err := fb.allocateLogicalPage(); err != nil {
			return err
		}
	}
	return nil
}

// Append writes n bytes at offset Size, growing the chunk.
func (fb *FileBuffer) Append(src []byte, n int) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	remaining := n
	srcOff := 0
	pos := fb.size
	for remaining > 0 {
		pageIdx := int(pos / int64(fb.pageDataSize))
		pageOff := int(pos % int64(fb.pageDataSize))
		if pageIdx >= len(fb.multiPages) {
			if err := fb.allocateLogicalPage(); err != nil {
				return err
			}
		}
		p := fb.multiPages[pageIdx].Current()
		writeLen := fb.pageDataSize - pageOff
		if writeLen > remaining {
			writeLen = remaining
		}
		if err := fb.writePagePayload(p, pageOff, src[srcOff:srcOff+writeLen]); err != nil {
			return err
		}
		pos += int64(writeLen)
		srcOff += writeLen
		remaining -= writeLen
	}
	fb.size += int64(n)
	fb.isDirty = true
	fb.isAppended = true
	return nil
}

// copyOnWrite allocates a fresh physical page at epoch, copies the old
// page's full payload into it, records it as the new current version of
// mp, and rewrites that logical page's header.
func (fb *FileBuffer) copyOnWrite(mp *MultiPage, pageIdx int, epoch int32) error {
	oldPage := mp.Current()
	newPage, err := fb.mgr.RequestFreePage(fb.pageSize, false)
	if err != nil {
		return err
	}

	oldFI, err := fb.mgr.GetFileInfo(oldPage.FileID)
	if err != nil {
		return err
	}
	buf := make([]byte, fb.pageDataSize)
	oldByteOffset := int64(oldPage.PageNum)*int64(fb.pageSize) + int64(fb.reservedHeaderSize)
	if _, err := oldFI.Read(oldByteOffset, fb.pageDataSize, buf); err != nil {
		return err
	}

	if err := fb.writePagePayload(newPage, 0, buf); err != nil {
		return err
	}
	mp.Append(epoch, newPage)
	return fb.writePageHeader(pageIdx, newPage, epoch)
}

// Write overwrites n bytes at byteOffset with copy-on-write per page
// when the current page version predates the current epoch.
func (fb *FileBuffer) Write(src []byte, n int, byteOffset int64) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.isDirty = true
	if byteOffset < fb.size {
		fb.isUpdated = true
	}
	extends := byteOffset+int64(n) > fb.size
	curEpoch := fb.mgr.Epoch()

	startPage := int(byteOffset / int64(fb.pageDataSize))
	neededPages := startPage + 1
	if extends {
		endPage := int(ceilDiv(byteOffset+int64(n), int64(fb.pageDataSize)))
		if endPage > neededPages {
			neededPages = endPage
		}
	}
	for len(fb.multiPages) < neededPages {
		if err := fb.allocateLogicalPage(); err != nil {
			return err
		}
	}

	remaining := n
	srcOff := 0
	pos := byteOffset
	for remaining > 0 {
		pageIdx := int(pos / int64(fb.pageDataSize))
		pageOff := int(pos % int64(fb.pageDataSize))
		writeLen := fb.pageDataSize - pageOff
		if writeLen > remaining {
			writeLen = remaining
		}

		mp := fb.multiPages[pageIdx]
		if mp.CurrentEpoch() < curEpoch {
			if err := fb.copyOnWrite(mp, pageIdx, curEpoch); err != nil {
				return err
			}
		}
		p := mp.Current()
		if err := fb.writePagePayload(p, pageOff, src[srcOff:srcOff+writeLen]); err != nil {
			return err
		}

		pos += int64(writeLen)
		srcOff += writeLen
		remaining -= writeLen
	}

	if extends {
		fb.isAppended = true
		fb.size = byteOffset + int64(n)
		p0 := fb.multiPages[0].Current()
		if err := fb.writePageHeader(0, p0, fb.multiPages[0].CurrentEpoch()); err != nil {
			return err
		}
	}
	return nil
}

// FreePages returns every physical page in every MultiPage to its owning
// FileInfo's free list and clears the chunk.
func (fb *FileBuffer) FreePages() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	free := func(mp *MultiPage) error {
		for _, v := range mp.versions {
			fi, err := fb.mgr.GetFileInfo(v.page.FileID)
			if err != nil {
				return err
			}
			fi.FreePage(v.page.PageNum)
		}
		return nil
	}
	for _, mp := range fb.multiPages {
		if err := free(mp); err != nil {
			return err
		}
	}
	if err := free(fb.metadataPages); err != nil {
		return err
	}
	fb.multiPages = nil
	fb.metadataPages = &MultiPage{}
	fb.size = 0
	return nil
}

// RollbackToEpoch truncates every logical page's version history (data
// and metadata) to its last version at or before target.
func (fb *FileBuffer) RollbackToEpoch(target int32) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, mp := range fb.multiPages {
		if err := mp.RollbackToEpoch(target); err != nil {
			return err
		}
	}
	return fb.metadataPages.RollbackToEpoch(target)
}

// HeaderRecord is one page-header record as found on disk during
// startup reconstruction, in page-number-then-epoch order.
type HeaderRecord struct {
	PageID int32
	Epoch  int32
	Page   pagefile.Page
}

// Reconstruct rebuilds a FileBuffer from header records recovered from
// disk. Records with PageID == -1 populate metadataPages; records with
// ascending PageID starting at 0 populate multiPages. A gap in page ids
// is fatal.
func Reconstruct(mgr *filemgr.FileMgr, chunkKey []int32, records []HeaderRecord) (*FileBuffer, error) {
	fb := &FileBuffer{
		mgr:                mgr,
		chunkKey:           append([]int32(nil), chunkKey...),
		reservedHeaderSize: computeHeaderSize(len(chunkKey)),
		metadataPages:      &MultiPage{},
	}

	metadataRead := false
	for _, rec := range records {
		if rec.PageID == -1 {
			fb.metadataPages.Append(rec.Epoch, rec.Page)
			continue
		}
		switch {
		case int(rec.PageID) == len(fb.multiPages):
			fb.multiPages = append(fb.multiPages, &MultiPage{})
		case int(rec.PageID) > len(fb.multiPages):
			return nil, fmt.Errorf("%w: page id gap at %d (have %d pages)", chunkerr.ErrCorruptChunk, rec.PageID, len(fb.multiPages))
		}
		fb.multiPages[rec.PageID].Append(rec.Epoch, rec.Page)

		if !metadataRead {
			if !fb.metadataPages.Empty() {
				if err := fb.ReadMetadata(fb.metadataPages.Current()); err != nil {
					return nil, err
				}
			}
			metadataRead = true
		}
	}
	return fb, nil
}
