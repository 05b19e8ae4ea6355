package encoder

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"chunkstore/chunkerr"
)

const (
	secondsPerDay = 86400

	// nullSeconds is T::MIN, the sentinel null value in the logical
	// (seconds) domain.
	nullSeconds int64 = math.MinInt64

	// nullDay is V::MIN, the sentinel null value in the stored (days)
	// domain. It is never produced from a non-null input: the overflow
	// validator below rejects any input day that would collide with it.
	nullDay int32 = math.MinInt32

	minStoredDay int64 = math.MinInt32 + 1
	maxStoredDay int64 = math.MaxInt32
)

// DateDaysEncoder transcodes seconds-since-epoch (int64) to a signed day
// count (int32), validating range and maintaining min/max/has-null
// statistics over the round-tripped (day-truncated) seconds.
type DateDaysEncoder struct {
	mu sync.Mutex

	numElems uint64
	dataMin  int64
	dataMax  int64
	hasNulls bool
	rangeSet bool
}

// NewDateDaysEncoder returns an encoder with empty statistics.
func NewDateDaysEncoder() *DateDaysEncoder {
	return &DateDaysEncoder{}
}

// floorDiv computes floor(a/b) for b > 0, matching the "integer flooring
// toward negative infinity" the spec requires (Go's / truncates toward
// zero, which differs from floor for mixed-sign operands).
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func daysFromSeconds(sec int64) (int32, error) {
	days := floorDiv(sec, secondsPerDay)
	if days < minStoredDay || days > maxStoredDay {
		return 0, fmt.Errorf("%w: %d seconds is outside the representable day range", chunkerr.ErrOverflow, sec)
	}
	return int32(days), nil
}

func secondsFromDays(d int32) int64 {
	return int64(d) * secondsPerDay
}

func encodeInt32LE(vals []int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(v))
	}
	return buf
}

// observe folds a non-null round-tripped seconds value into the running
// min/max. Must be called with the lock held.
func (e *DateDaysEncoder) observe(roundTripped int64) {
	if !e.rangeSet {
		e.dataMin = roundTripped
		e.dataMax = roundTripped
		e.rangeSet = true
		return
	}
	if roundTripped < e.dataMin {
		e.dataMin = roundTripped
	}
	if roundTripped > e.dataMax {
		e.dataMax = roundTripped
	}
}

// AppendData implements Encoder.AppendData.
func (e *DateDaysEncoder) AppendData(sink Sink, src []int64, n int, replicating bool, offset int64) (ChunkMetadata, error) {
	if replicating && offset >= 0 {
		return ChunkMetadata{}, fmt.Errorf("chunkstore: replicating append is not supported at a fixed offset")
	}

	e.mu.Lock()
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		var sec int64
		if replicating {
			sec = src[0]
		} else {
			sec = src[i]
		}
		if sec == nullSeconds {
			out[i] = nullDay
			e.hasNulls = true
			continue
		}
		days, err := daysFromSeconds(sec)
		if err != nil {
			e.mu.Unlock()
			return ChunkMetadata{}, err
		}
		out[i] = days
		e.observe(secondsFromDays(days))
	}
	e.mu.Unlock()

	buf := encodeInt32LE(out)
	if offset < 0 {
		if err := sink.Append(buf, len(buf)); err != nil {
			return ChunkMetadata{}, err
		}
		e.mu.Lock()
		e.numElems += uint64(n)
		e.mu.Unlock()
	} else {
		byteOffset := offset * 4
		if err := sink.Write(buf, len(buf), byteOffset); err != nil {
			return ChunkMetadata{}, err
		}
		e.mu.Lock()
		e.numElems = uint64(offset) + uint64(n)
		e.mu.Unlock()
	}

	return e.GetMetadata(), nil
}

// GetMetadata implements Encoder.GetMetadata.
func (e *DateDaysEncoder) GetMetadata() ChunkMetadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ChunkMetadata{
		NumElems: e.numElems,
		DataMin:  e.dataMin,
		DataMax:  e.dataMax,
		HasNulls: e.hasNulls,
	}
}

// ReduceStats implements Encoder.ReduceStats.
func (e *DateDaysEncoder) ReduceStats(other ChunkMetadata) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.rangeSet {
		e.dataMin = other.DataMin
		e.dataMax = other.DataMax
		e.rangeSet = true
	} else {
		if other.DataMin < e.dataMin {
			e.dataMin = other.DataMin
		}
		if other.DataMax > e.dataMax {
			e.dataMax = other.DataMax
		}
	}
	e.hasNulls = e.hasNulls || other.HasNulls
}

// CopyMetadata implements Encoder.CopyMetadata.
func (e *DateDaysEncoder) CopyMetadata(other ChunkMetadata) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.numElems = other.NumElems
	e.dataMin = other.DataMin
	e.dataMax = other.DataMax
	e.hasNulls = other.HasNulls
	e.rangeSet = true
}

// ResetChunkStats implements Encoder.ResetChunkStats.
func (e *DateDaysEncoder) ResetChunkStats(newStats ChunkMetadata) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := e.numElems != newStats.NumElems ||
		e.dataMin != newStats.DataMin ||
		e.dataMax != newStats.DataMax ||
		e.hasNulls != newStats.HasNulls
	if changed {
		e.numElems = newStats.NumElems
		e.dataMin = newStats.DataMin
		e.dataMax = newStats.DataMax
		e.hasNulls = newStats.HasNulls
		e.rangeSet = true
	}
	return changed
}

// WriteMetadata implements Encoder.WriteMetadata: num_elems(u64),
// data_min(i64), data_max(i64), has_nulls(u8), little-endian.
func (e *DateDaysEncoder) WriteMetadata(w io.Writer) error {
	md := e.GetMetadata()
	var buf [25]byte
	binary.LittleEndian.PutUint64(buf[0:8], md.NumElems)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(md.DataMin))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(md.DataMax))
	if md.HasNulls {
		buf[24] = 1
	}
	_, err := w.Write(buf[:])
	return err
}

// ReadMetadata implements Encoder.ReadMetadata.
func (e *DateDaysEncoder) ReadMetadata(r io.Reader) error {
	var buf [25]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fmt.Errorf("%w: reading encoder metadata: %v", chunkerr.ErrCorruptChunk, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.numElems = binary.LittleEndian.Uint64(buf[0:8])
	e.dataMin = int64(binary.LittleEndian.Uint64(buf[8:16]))
	e.dataMax = int64(binary.LittleEndian.Uint64(buf[16:24]))
	e.hasNulls = buf[24] != 0
	e.rangeSet = true
	return nil
}
