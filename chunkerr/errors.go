// Package chunkerr holds the sentinel errors shared across the chunk
// storage layer and the result-set reduction engine.
package chunkerr

import "errors"

var (
	// ErrCorruptChunk is returned when page-header reconstruction finds a
	// discontinuity, a bad version tag, or any other state that should
	// never occur short of on-disk corruption.
	ErrCorruptChunk = errors.New("chunkstore: corrupt chunk")

	// ErrShortIO is returned when a read or write transferred fewer bytes
	// than the caller asked for.
	ErrShortIO = errors.New("chunkstore: short read or write")

	// ErrUnsupportedBufferType is returned when a caller asks FileBuffer
	// to read into anything other than CPU memory.
	ErrUnsupportedBufferType = errors.New("chunkstore: unsupported buffer type")

	// ErrStorageExhausted is returned when the backing store cannot
	// satisfy a free-page request and cannot be grown further.
	ErrStorageExhausted = errors.New("chunkstore: storage exhausted")

	// ErrOverflow is returned by an encoder when an input value falls
	// outside its representable range. It propagates to the loader; it
	// is not a fatal buffer-layer error.
	ErrOverflow = errors.New("chunkstore: value out of representable range")
)
