package filebuffer

import "encoding/binary"

// computeHeaderSize returns the smallest multiple of 32 bytes that can
// hold {header_size, chunk_key[0..k-1], page_id, epoch} as 32-bit
// signed integers: (k+3)*4 bytes, rounded up.
func computeHeaderSize(keyLen int) int {
	raw := (keyLen + 3) * 4
	return ((raw + 31) / 32) * 32
}

// writeHeader serializes {header_size, chunk_key..., page_id, epoch}
// into the first headerSize bytes of buf.
func writeHeader(buf []byte, headerSize int, chunkKey []int32, pageID int32, epoch int32) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(headerSize))
	off := 4
	for _, k := range chunkKey {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(k))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(pageID))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(epoch))
}

// readHeader parses a header with a chunk key of length keyLen out of
// buf, returning the declared header size, the chunk key, the page id
// (-1 for metadata pages), and the epoch.
func readHeader(buf []byte, keyLen int) (headerSize int, chunkKey []int32, pageID int32, epoch int32) {
	headerSize = int(binary.LittleEndian.Uint32(buf[0:4]))
	chunkKey = make([]int32, keyLen)
	off := 4
	for i := 0; i < keyLen; i++ {
		chunkKey[i] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	pageID = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	epoch = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	return
}
