// Package encoder implements the per-chunk value encoders that transcode
// logical values to stored bytes while tracking chunk statistics. The
// date-in-days encoder (T=int64 seconds, V=int32 days) is the concrete
// case built here; other (logical_type, stored_width) pairs would be
// added as additional concrete types behind the same Encoder interface,
// per the template-parameterization note in the design.
//
// Grounded on types/page.go and types/table.go's fixed-width typed field
// style and query_executor/type_conv.go's typed-conversion helper idiom.
package encoder

import "io"

// ChunkMetadata mirrors the fixed on-disk metadata layout: num_elems,
// data_min, data_max, has_nulls, with T-width min/max.
type ChunkMetadata struct {
	NumElems uint64
	DataMin  int64
	DataMax  int64
	HasNulls bool
}

// Sink is the subset of FileBuffer that an Encoder needs in order to
// deposit transcoded bytes: Append for offset==-1 writes, Write for
// offset>=0 overwrites. Defined here (not in filebuffer) so that
// filebuffer can depend on encoder without encoder depending back on
// filebuffer.
type Sink interface {
	Append(src []byte, n int) error
	Write(src []byte, n int, byteOffset int64) error
}

// Encoder is the contract every concrete (logical_type, stored_width)
// encoder implements.
type Encoder interface {
	// AppendData transcodes n logical (seconds-since-epoch) values and
	// deposits the stored bytes through sink, per the offset==-1
	// (append) / offset>=0 (overwrite) rule in FileBuffer's contract.
	// offset, when >= 0, is an element index, not a byte offset. When
	// replicating is true, src holds a single value broadcast n times.
	AppendData(sink Sink, src []int64, n int, replicating bool, offset int64) (ChunkMetadata, error)

	// GetMetadata returns the encoder's current statistics.
	GetMetadata() ChunkMetadata

	// ReduceStats folds another chunk's statistics into this one:
	// element-wise min/max of ranges, OR of has_nulls.
	ReduceStats(other ChunkMetadata)

	// CopyMetadata assigns all four stats fields from other, overwriting.
	CopyMetadata(other ChunkMetadata)

	// ResetChunkStats overwrites stats if any field differs from
	// newStats, and reports whether a change occurred.
	ResetChunkStats(newStats ChunkMetadata) bool

	// WriteMetadata/ReadMetadata (de)serialize just the encoder's own
	// trailing fields, in the fixed order: num_elems, data_min, data_max,
	// has_nulls.
	WriteMetadata(w io.Writer) error
	ReadMetadata(r io.Reader) error
}
