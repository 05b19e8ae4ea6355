// Package pagefile implements FileInfo: a single fixed-page-size file on
// disk together with its free-page list. It owns the raw os.File handle
// and the byte-range read/write primitives that everything above it
// (FileMgr, FileBuffer) is built on.
//
// Grounded on storage_engine/disk_manager's FileDescriptor (open handle,
// ReadAt/WriteAt, NextPageID bookkeeping) and heapfile_manager/page_io.go's
// raw page I/O style.
package pagefile

import (
	"fmt"
	"os"
	"sync"

	"chunkstore/chunkerr"
)

// FileInfo is one page file divided into uniform pages.
type FileInfo struct {
	fileID   int32
	pageSize int
	path     string

	mu        sync.Mutex
	file      *os.File
	numPages  uint32
	freePages []uint32
}

// Open opens (creating if necessary) the backing file for fileID at path,
// with the given uniform page size. Any existing pages found on disk
// (by file size) are registered as allocated; none are implicitly freed.
func Open(fileID int32, pageSize int, path string) (*FileInfo, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pagefile: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagefile: stat %s: %w", path, err)
	}
	numPages := uint32(stat.Size() / int64(pageSize))
	return &FileInfo{
		fileID:   fileID,
		pageSize: pageSize,
		path:     path,
		file:     f,
		numPages: numPages,
	}, nil
}

// FileID returns the file's identifier within its owning FileMgr.
func (fi *FileInfo) FileID() int32 { return fi.fileID }

// PageSize returns the uniform page size of this file.
func (fi *FileInfo) PageSize() int { return fi.pageSize }

// Read performs a random-access read of n bytes at byteOffset into dst.
// Operations on disjoint byte ranges are safe to call concurrently; the
// caller guarantees no two writers target the same range at once.
func (fi *FileInfo) Read(byteOffset int64, n int, dst []byte) (int, error) {
	got, err := fi.file.ReadAt(dst[:n], byteOffset)
	if err != nil {
		return got, fmt.Errorf("pagefile: read %s at %d: %w", fi.path, byteOffset, err)
	}
	if got != n {
		return got, fmt.Errorf("%w: read %d of %d bytes at offset %d in %s", chunkerr.ErrShortIO, got, n, byteOffset, fi.path)
	}
	return got, nil
}

// Write performs a random-access write of n bytes at byteOffset from src.
func (fi *FileInfo) Write(byteOffset int64, n int, src []byte) (int, error) {
	wrote, err := fi.file.WriteAt(src[:n], byteOffset)
	if err != nil {
		return wrote, fmt.Errorf("pagefile: write %s at %d: %w", fi.path, byteOffset, err)
	}
	if wrote != n {
		return wrote, fmt.Errorf("%w: wrote %d of %d bytes at offset %d in %s", chunkerr.ErrShortIO, wrote, n, byteOffset, fi.path)
	}
	return wrote, nil
}

// FreePage marks pageNum as reusable; a later AllocatePage may return it.
func (fi *FileInfo) FreePage(pageNum uint32) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.freePages = append(fi.freePages, pageNum)
}

// AllocatePage pops a page from the free list. ok is false if the free
// list is currently empty, in which case the caller (FileMgr) must grow
// the file via Grow.
func (fi *FileInfo) AllocatePage() (pageNum uint32, ok bool) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	if len(fi.freePages) == 0 {
		return 0, false
	}
	last := len(fi.freePages) - 1
	pageNum = fi.freePages[last]
	fi.freePages = fi.freePages[:last]
	return pageNum, true
}

// Grow extends the file by numPages uniform pages and returns the page
// number of the first newly created page. The new pages are zero-filled
// on disk.
func (fi *FileInfo) Grow(numPages uint32) (firstNew uint32, err error) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	firstNew = fi.numPages
	newSize := int64(fi.numPages+numPages) * int64(fi.pageSize)
	if err := fi.file.Truncate(newSize); err != nil {
		return 0, fmt.Errorf("%w: grow %s to %d bytes: %v", chunkerr.ErrStorageExhausted, fi.path, newSize, err)
	}
	fi.numPages += numPages
	// every page past the first is immediately free; the first is handed
	// to the caller that triggered the growth.
	for p := firstNew + 1; p < fi.numPages; p++ {
		fi.freePages = append(fi.freePages, p)
	}
	return firstNew, nil
}

// NumPages returns the total number of physical pages ever allocated in
// this file (free or not).
func (fi *FileInfo) NumPages() uint32 {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.numPages
}

// NumFreePages returns how many pages are currently on the free list.
func (fi *FileInfo) NumFreePages() int {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return len(fi.freePages)
}

// Close closes the underlying file handle after syncing.
func (fi *FileInfo) Close() error {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	if fi.file == nil {
		return nil
	}
	if err := fi.file.Sync(); err != nil {
		return fmt.Errorf("pagefile: sync %s: %w", fi.path, err)
	}
	err := fi.file.Close()
	fi.file = nil
	return err
}
