package encoder

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSink collects bytes written via Append/Write so the test can decode
// the stored int32 days back out without needing a real FileBuffer.
type fakeSink struct {
	buf []byte
}

func (s *fakeSink) Append(src []byte, n int) error {
	s.buf = append(s.buf, src[:n]...)
	return nil
}

func (s *fakeSink) Write(src []byte, n int, byteOffset int64) error {
	end := byteOffset + int64(n)
	if int64(len(s.buf)) < end {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[byteOffset:end], src[:n])
	return nil
}

func (s *fakeSink) days() []int32 {
	out := make([]int32, len(s.buf)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(s.buf[i*4 : i*4+4]))
	}
	return out
}

func TestDateDaysEncoderRoundTrip(t *testing.T) {
	enc := NewDateDaysEncoder()
	sink := &fakeSink{}
	src := []int64{0, 86399, 86400, -1, math.MinInt64}

	md, err := enc.AppendData(sink, src, len(src), false, -1)
	require.NoError(t, err)

	require.Equal(t, []int32{0, 0, 1, -1, math.MinInt32}, sink.days())
	require.True(t, md.HasNulls)
	require.Equal(t, int64(-86400), md.DataMin)
	require.Equal(t, int64(86400), md.DataMax)
	require.Equal(t, uint64(5), md.NumElems)
}

func TestDateDaysEncoderOverflowRejected(t *testing.T) {
	enc := NewDateDaysEncoder()
	sink := &fakeSink{}
	// one day past int32 max days overflows the representable range.
	overflow := (maxStoredDay + 1) * secondsPerDay
	_, err := enc.AppendData(sink, []int64{overflow}, 1, false, -1)
	require.Error(t, err)
}

func TestDateDaysEncoderReplicating(t *testing.T) {
	enc := NewDateDaysEncoder()
	sink := &fakeSink{}
	md, err := enc.AppendData(sink, []int64{172800}, 3, true, -1)
	require.NoError(t, err)
	require.Equal(t, []int32{2, 2, 2}, sink.days())
	require.Equal(t, int64(172800), md.DataMin)
	require.Equal(t, int64(172800), md.DataMax)
}

func TestDateDaysEncoderOverwriteAtOffset(t *testing.T) {
	enc := NewDateDaysEncoder()
	sink := &fakeSink{}
	_, err := enc.AppendData(sink, []int64{0, 86400, 172800}, 3, false, -1)
	require.NoError(t, err)

	md, err := enc.AppendData(sink, []int64{259200}, 1, false, 1)
	require.NoError(t, err)
	require.Equal(t, []int32{0, 3, 2}, sink.days())
	require.Equal(t, uint64(2), md.NumElems)
}

func TestDateDaysEncoderMetadataRoundTrip(t *testing.T) {
	enc := NewDateDaysEncoder()
	sink := &fakeSink{}
	_, err := enc.AppendData(sink, []int64{0, 86400}, 2, false, -1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, enc.WriteMetadata(&buf))

	loaded := NewDateDaysEncoder()
	require.NoError(t, loaded.ReadMetadata(&buf))
	require.Equal(t, enc.GetMetadata(), loaded.GetMetadata())
}

func TestDateDaysEncoderReduceAndResetStats(t *testing.T) {
	a := NewDateDaysEncoder()
	a.CopyMetadata(ChunkMetadata{NumElems: 10, DataMin: -100, DataMax: 100, HasNulls: false})
	a.ReduceStats(ChunkMetadata{NumElems: 5, DataMin: -200, DataMax: 50, HasNulls: true})

	md := a.GetMetadata()
	require.Equal(t, int64(-200), md.DataMin)
	require.Equal(t, int64(100), md.DataMax)
	require.True(t, md.HasNulls)

	changed := a.ResetChunkStats(md)
	require.False(t, changed)

	changed = a.ResetChunkStats(ChunkMetadata{NumElems: 1})
	require.True(t, changed)
}
