package filebuffer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"chunkstore/chunkerr"
	"chunkstore/encoder"
	"chunkstore/filemgr"
	"chunkstore/pagefile"
)

// numMetadataVersion is the fixed metadata layout version tag written to
// every metadata page; a mismatch on read is fatal.
const numMetadataVersion int32 = 1

// sliceWriter adapts a fixed byte slice to io.Writer, for encoders that
// serialize via binary.Write against a generic writer.
type sliceWriter struct {
	buf []byte
	off int
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	n := copy(w.buf[w.off:], p)
	w.off += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// WriteMetadata serializes page_size, valid size, sql type fields, and
// (if present) the encoder's own metadata into a fresh 4096-byte
// metadata page at the given epoch, and records it as the newest version
// of metadataPages. Per the supplemented rollback/chaining behavior in
// SPEC_FULL.md §5, this always allocates a new page rather than
// overwriting the previous metadata page in place.
func (fb *FileBuffer) WriteMetadata(epoch int32) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	p, err := fb.mgr.RequestFreePage(filemgr.MetadataPageSize, true)
	if err != nil {
		return err
	}

	buf := make([]byte, filemgr.MetadataPageSize)
	writeHeader(buf, fb.reservedHeaderSize, fb.chunkKey, -1, epoch)

	payload := buf[fb.reservedHeaderSize:]
	binary.LittleEndian.PutUint64(payload[0:8], uint64(fb.pageSize))
	binary.LittleEndian.PutUint64(payload[8:16], uint64(fb.size))

	off := 16
	putI32 := func(v int32) {
		binary.LittleEndian.PutUint32(payload[off:off+4], uint32(v))
		off += 4
	}
	putI32(numMetadataVersion)
	hasEncoder := int32(0)
	if fb.enc != nil {
		hasEncoder = 1
	}
	putI32(hasEncoder)
	putI32(fb.sqlType.Type)
	putI32(fb.sqlType.SubType)
	putI32(fb.sqlType.Dimension)
	putI32(fb.sqlType.Scale)
	putI32(fb.sqlType.NotNull)
	putI32(fb.sqlType.Compression)
	putI32(fb.sqlType.CompParam)
	putI32(fb.sqlType.Size)

	if fb.enc != nil {
		w := &sliceWriter{buf: payload, off: off}
		if err := fb.enc.WriteMetadata(w); err != nil {
			return err
		}
	}

	fi, err := fb.mgr.GetFileInfo(p.FileID)
	if err != nil {
		return err
	}
	byteOffset := int64(p.PageNum) * int64(filemgr.MetadataPageSize)
	if _, err := fi.Write(byteOffset, filemgr.MetadataPageSize, buf); err != nil {
		return err
	}

	fb.metadataPages.Append(epoch, p)
	return nil
}

// ReadMetadata parses a metadata page's payload and applies it to this
// FileBuffer: page_size, valid size, sql type fields, and (if
// has_encoder) a freshly constructed encoder initialized from its
// trailing metadata.
func (fb *FileBuffer) ReadMetadata(p pagefile.Page) error {
	fi, err := fb.mgr.GetFileInfo(p.FileID)
	if err != nil {
		return err
	}
	buf := make([]byte, filemgr.MetadataPageSize)
	byteOffset := int64(p.PageNum) * int64(filemgr.MetadataPageSize)
	if _, err := fi.Read(byteOffset, filemgr.MetadataPageSize, buf); err != nil {
		return err
	}

	headerSize, _, pageID, _ := readHeader(buf, len(fb.chunkKey))
	if pageID != -1 {
		return fmt.Errorf("%w: expected metadata page, got page_id=%d", chunkerr.ErrCorruptChunk, pageID)
	}

	payload := buf[headerSize:]
	fb.pageSize = int(binary.LittleEndian.Uint64(payload[0:8]))
	fb.size = int64(binary.LittleEndian.Uint64(payload[8:16]))
	fb.pageDataSize = fb.pageSize - fb.reservedHeaderSize

	off := 16
	getI32 := func() int32 {
		v := int32(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
		return v
	}
	version := getI32()
	if version != numMetadataVersion {
		return fmt.Errorf("%w: metadata version mismatch: got %d, want %d", chunkerr.ErrCorruptChunk, version, numMetadataVersion)
	}
	hasEncoder := getI32()
	fb.sqlType.Type = getI32()
	fb.sqlType.SubType = getI32()
	fb.sqlType.Dimension = getI32()
	fb.sqlType.Scale = getI32()
	fb.sqlType.NotNull = getI32()
	fb.sqlType.Compression = getI32()
	fb.sqlType.CompParam = getI32()
	fb.sqlType.Size = getI32()

	if hasEncoder != 0 {
		enc := encoder.NewDateDaysEncoder()
		if err := enc.ReadMetadata(bytes.NewReader(payload[off:])); err != nil {
			return err
		}
		fb.enc = enc
	}
	return nil
}
