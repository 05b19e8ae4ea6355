// Package filemgr implements FileMgr: the owner of every FileInfo backing
// a database's chunk storage, the monotonic commit epoch, and the reader
// thread pool size used by FileBuffer's parallel reads.
//
// Grounded on storage_engine/disk_manager's DiskManager (many files keyed
// by id, page allocation, growth-on-demand) and storage_engine/bufferpool
// (the role now played by PageCache).
package filemgr

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"chunkstore/chunkerr"
	"chunkstore/pagefile"
)

// MetadataPageSize is the fixed page size used for every chunk's
// metadata pages, independent of the chunk's own data page size.
const MetadataPageSize = 4096

// StorageConfig configures a FileMgr. It is constructed explicitly by the
// caller and passed to NewFileMgr — this repository has no config-file
// loader in scope, so callers build StorageConfig the same way the
// teacher's NewBufferPool/NewCatalogManager take explicit constructor
// arguments rather than reading environment variables.
type StorageConfig struct {
	// Dir is the directory backing all page files.
	Dir string
	// ReaderThreads bounds how many worker tasks a single FileBuffer.Read
	// may fan out across. Defaults to 4 if zero.
	ReaderThreads int
	// GrowPages is how many pages a file grows by when its free list is
	// exhausted. Defaults to 64 if zero.
	GrowPages uint32
	// MaxFileBytes caps how large a single backing file is allowed to
	// grow before FileMgr opens a new file for the same page size.
	// Zero means unlimited.
	MaxFileBytes int64
	// MaxTotalBytes caps the total bytes FileMgr will allocate across all
	// files of a given page size. Exceeding it is ErrStorageExhausted.
	// Zero means unlimited.
	MaxTotalBytes int64
	// CacheBytes sizes the ristretto-backed hot-page cache. Zero disables
	// caching.
	CacheBytes int64
	// Verbose enables teacher-style "[FileMgr] ..." trace lines.
	Verbose bool
}

func (cfg *StorageConfig) applyDefaults() {
	if cfg.ReaderThreads == 0 {
		cfg.ReaderThreads = 4
	}
	if cfg.GrowPages == 0 {
		cfg.GrowPages = 64
	}
}

// FileMgr owns the set of FileInfos, the epoch counter, and the reader
// thread pool size.
type FileMgr struct {
	cfg StorageConfig

	mu           sync.Mutex
	files        map[int32]*pagefile.FileInfo
	activeBySize map[int]int32
	nextFileID   int32
	epoch        int32

	cache *PageCache
}

// NewFileMgr creates a FileMgr rooted at cfg.Dir, creating the directory
// if necessary.
func NewFileMgr(cfg StorageConfig) (*FileMgr, error) {
	cfg.applyDefaults()
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("filemgr: create dir %s: %w", cfg.Dir, err)
	}
	cache, err := newPageCache(cfg.CacheBytes)
	if err != nil {
		return nil, fmt.Errorf("filemgr: init page cache: %w", err)
	}
	return &FileMgr{
		cfg:          cfg,
		files:        make(map[int32]*pagefile.FileInfo),
		activeBySize: make(map[int]int32),
		nextFileID:   1,
		cache:        cache,
	}, nil
}

// Epoch returns the current commit epoch. It is read-only during any
// single I/O call; a commit that bumps the epoch must quiesce writers
// (enforced by the caller, not by FileMgr).
func (m *FileMgr) Epoch() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// BumpEpoch advances the epoch by one, as a commit would, and returns the
// new value.
func (m *FileMgr) BumpEpoch() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	return m.epoch
}

// NumReaderThreads returns the configured reader-thread pool size.
func (m *FileMgr) NumReaderThreads() int {
	return m.cfg.ReaderThreads
}

// Cache returns the page cache backing reads through this FileMgr.
func (m *FileMgr) Cache() *PageCache {
	return m.cache
}

// GetFileInfo returns the FileInfo for fileID.
func (m *FileMgr) GetFileInfo(fileID int32) (*pagefile.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fi, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("filemgr: unknown file id %d", fileID)
	}
	return fi, nil
}

// RequestFreePage returns a free page of the requested size. Metadata
// pages are always MetadataPageSize bytes regardless of pageSize passed
// in when isMetadata is true.
func (m *FileMgr) RequestFreePage(pageSize int, isMetadata bool) (pagefile.Page, error) {
	if isMetadata {
		pageSize = MetadataPageSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fi, err := m.activeFileLocked(pageSize)
	if err != nil {
		return pagefile.Page{}, err
	}

	if pn, ok := fi.AllocatePage(); ok {
		return pagefile.Page{FileID: fi.FileID(), PageNum: pn}, nil
	}

	if m.cfg.MaxFileBytes > 0 {
		projected := int64(fi.NumPages()+m.cfg.GrowPages) * int64(pageSize)
		if projected > m.cfg.MaxFileBytes {
			newFI, err := m.openNewFileLocked(pageSize)
			if err != nil {
				return pagefile.Page{}, err
			}
			fi = newFI
			if pn, ok := fi.AllocatePage(); ok {
				return pagefile.Page{FileID: fi.FileID(), PageNum: pn}, nil
			}
		}
	}

	if err := m.checkTotalBudgetLocked(pageSize); err != nil {
		return pagefile.Page{}, err
	}

	first, err := fi.Grow(m.cfg.GrowPages)
	if err != nil {
		return pagefile.Page{}, err
	}
	return pagefile.Page{FileID: fi.FileID(), PageNum: first}, nil
}

func (m *FileMgr) activeFileLocked(pageSize int) (*pagefile.FileInfo, error) {
	if fileID, ok := m.activeBySize[pageSize]; ok {
		return m.files[fileID], nil
	}
	return m.openNewFileLocked(pageSize)
}

func (m *FileMgr) openNewFileLocked(pageSize int) (*pagefile.FileInfo, error) {
	fileID := m.nextFileID
	m.nextFileID++
	path := filepath.Join(m.cfg.Dir, fmt.Sprintf("chunk_%d_%d.page", pageSize, fileID))
	fi, err := pagefile.Open(fileID, pageSize, path)
	if err != nil {
		return nil, err
	}
	m.files[fileID] = fi
	m.activeBySize[pageSize] = fileID
	if m.cfg.Verbose {
		fmt.Printf("[FileMgr] opened file id=%d page_size=%d path=%s\n", fileID, pageSize, path)
	}
	return fi, nil
}

func (m *FileMgr) checkTotalBudgetLocked(pageSize int) error {
	if m.cfg.MaxTotalBytes <= 0 {
		return nil
	}
	var total int64
	for _, fi := range m.files {
		if fi.PageSize() == pageSize {
			total += int64(fi.NumPages()) * int64(pageSize)
		}
	}
	need := int64(m.cfg.GrowPages) * int64(pageSize)
	if total+need > m.cfg.MaxTotalBytes {
		return fmt.Errorf("%w: need %s more page-size-%d storage but cap is %s (already using %s)",
			chunkerr.ErrStorageExhausted, humanize.Bytes(uint64(need)), pageSize,
			humanize.Bytes(uint64(m.cfg.MaxTotalBytes)), humanize.Bytes(uint64(total)))
	}
	return nil
}

// Stats summarizes current allocation across all owned files.
type Stats struct {
	NumFiles   int
	TotalPages uint32
	FreePages  int
}

// Stats returns a snapshot of current page allocation.
func (m *FileMgr) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{NumFiles: len(m.files)}
	for _, fi := range m.files {
		s.TotalPages += fi.NumPages()
		s.FreePages += fi.NumFreePages()
	}
	return s
}

// String renders Stats as file and page counts for diagnostics; it does
// not report byte totals.
func (s Stats) String() string {
	return fmt.Sprintf("%d files, %d pages allocated, %d free", s.NumFiles, s.TotalPages, s.FreePages)
}

// Close flushes and closes every owned file and releases the page cache.
func (m *FileMgr) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, fi := range m.files {
		if err := fi.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.cache.Close()
	return firstErr
}
