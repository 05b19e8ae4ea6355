package filebuffer

import (
	"fmt"
	"sync"

	"chunkstore/chunkerr"
	"chunkstore/filemgr"
	"chunkstore/pagefile"
)

// MemoryLevel identifies the destination memory space of a Read. Only
// CPU is supported; anything else is fatal per the spec.
type MemoryLevel int

const (
	CPU MemoryLevel = iota
	GPU
)

// readPlanEntry is one logical page's contribution to a Read call: a
// contiguous destination range filled from a sub-range of one physical
// page's full payload.
type readPlanEntry struct {
	fileID    int32
	pageNum   uint32
	pageOff   int
	length    int
	dstOffset int
}

// Read reads n bytes at byteOffset into dst. Only CPU is a supported
// destination. The work is partitioned across up to NumReaderThreads
// worker tasks, each owning a contiguous slice of destination memory and
// a contiguous range of logical pages; all tasks run in parallel and are
// joined before Read returns, per the worker-pool pattern in the design
// notes (sync.WaitGroup, no per-call thread creation beyond the pool).
// Each task consults the FileMgr's page cache before issuing a
// FileInfo.Read, and populates it on miss.
func (fb *FileBuffer) Read(dst []byte, n int, byteOffset int64, level MemoryLevel, deviceID int) error {
	if level != CPU {
		return fmt.Errorf("%w: memory level %d (device %d)", chunkerr.ErrUnsupportedBufferType, level, deviceID)
	}

	fb.mu.Lock()
	startPage := int(byteOffset / int64(fb.pageDataSize))
	startOffset := int(byteOffset % int64(fb.pageDataSize))
	pagesToRead := int(ceilDiv(int64(startOffset+n), int64(fb.pageDataSize)))
	if startPage+pagesToRead > len(fb.multiPages) {
		fb.mu.Unlock()
		return fmt.Errorf("%w: read of %d bytes at offset %d spans past chunk end", chunkerr.ErrShortIO, n, byteOffset)
	}
	pages := make([]pagefile.Page, pagesToRead)
	for i := 0; i < pagesToRead; i++ {
		pages[i] = fb.multiPages[startPage+i].Current()
	}
	pageDataSize := fb.pageDataSize
	headerSize := fb.reservedHeaderSize
	pageSize := fb.pageSize
	mgr := fb.mgr
	fb.mu.Unlock()

	entries := make([]readPlanEntry, pagesToRead)
	dstPos := 0
	remaining := n
	for i, p := range pages {
		off := 0
		if i == 0 {
			off = startOffset
		}
		length := pageDataSize - off
		if length > remaining {
			length = remaining
		}
		entries[i] = readPlanEntry{
			fileID:    p.FileID,
			pageNum:   p.PageNum,
			pageOff:   off,
			length:    length,
			dstOffset: dstPos,
		}
		dstPos += length
		remaining -= length
	}

	numTasks := mgr.NumReaderThreads()
	if numTasks > pagesToRead {
		numTasks = pagesToRead
	}
	if numTasks < 1 {
		numTasks = 1
	}

	base := pagesToRead / numTasks
	rem := pagesToRead % numTasks

	var wg sync.WaitGroup
	errs := make([]error, numTasks)
	var totalRead int
	var totalMu sync.Mutex

	idx := 0
	for t := 0; t < numTasks; t++ {
		count := base
		if t < rem {
			count++
		}
		if count == 0 {
			continue
		}
		task := entries[idx : idx+count]
		idx += count

		wg.Add(1)
		go func(t int, task []readPlanEntry) {
			defer wg.Done()
			for _, e := range task {
				payload, err := fb.readPagePayload(mgr, e.fileID, e.pageNum, pageSize, headerSize, pageDataSize)
				if err != nil {
					errs[t] = err
					return
				}
				copied := copy(dst[e.dstOffset:e.dstOffset+e.length], payload[e.pageOff:e.pageOff+e.length])
				totalMu.Lock()
				totalRead += copied
				totalMu.Unlock()
			}
		}(t, task)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	if totalRead != n {
		return fmt.Errorf("%w: read %d of %d bytes at offset %d", chunkerr.ErrShortIO, totalRead, n, byteOffset)
	}
	return nil
}

// readPagePayload returns the full page_data_size payload of one
// physical page, consulting the page cache before falling back to
// FileInfo.Read and populating the cache on miss.
func (fb *FileBuffer) readPagePayload(mgr *filemgr.FileMgr, fileID int32, pageNum uint32, pageSize, headerSize, pageDataSize int) ([]byte, error) {
	cache := mgr.Cache()
	if payload, ok := cache.Get(fileID, pageNum); ok && len(payload) == pageDataSize {
		return payload, nil
	}
	fi, err := mgr.GetFileInfo(fileID)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, pageDataSize)
	byteOffset := int64(pageNum)*int64(pageSize) + int64(headerSize)
	if _, err := fi.Read(byteOffset, pageDataSize, buf); err != nil {
		return nil, err
	}
	cache.Set(fileID, pageNum, buf)
	return buf, nil
}
