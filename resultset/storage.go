package resultset

import (
	"encoding/binary"
	"math"
)

// ResultSetStorage is a raw buffer interpreted through a
// QueryMemoryDescriptor's layout: row-major or column-major, perfect
// hash or baseline hash, keyed or keyless. It provides directed access
// to individual entries by ordinal index; the buffer itself is produced
// by a query kernel (out of scope here) or, for testing and reduction,
// by the typed setters below.
type ResultSetStorage struct {
	desc *QueryMemoryDescriptor
	buf  []byte
}

// Allocate builds a zero-initialized ResultSetStorage sized for desc,
// with key slots set to EmptyKey64 and, for keyed (non-keyless)
// layouts, value slots set to the 0xdeadbeef debug sentinel. Keyless
// layouts have no key slot to mark occupancy, so their value slots are
// left at Go's zero value, which doubles as the "no group here" marker
// a keyless query kernel would write during its own initialization.
func Allocate(desc *QueryMemoryDescriptor) *ResultSetStorage {
	s := &ResultSetStorage{
		desc: desc,
		buf:  make([]byte, storageSize(desc)),
	}
	s.initializeSentinels()
	return s
}

func storageSize(d *QueryMemoryDescriptor) int64 {
	entries := d.EntryCount()
	if !d.OutputColumnar {
		return entries * int64(d.RowStride())
	}
	var total int64
	for i, w := range d.GroupColWidths {
		total += entries * int64(w)
		if i < len(d.KeyColumnPadBytes) {
			total += int64(d.KeyColumnPadBytes[i])
		}
	}
	for _, w := range d.AggColWidths {
		total += entries * int64(w.Compact)
	}
	return total
}

func (s *ResultSetStorage) initializeSentinels() {
	if s.desc.KeylessHash {
		return
	}
	entries := int(s.desc.EntryCount())
	for e := 0; e < entries; e++ {
		for k := range s.desc.GroupColWidths {
			s.SetKey(e, k, EmptyKey64)
		}
	}
	for e := 0; e < entries; e++ {
		for slot := 0; slot < s.desc.ExpandedSlotCount(); slot++ {
			s.SetSlotInt(e, slot, deadbeefSentinel)
		}
	}
}

func (d *QueryMemoryDescriptor) rowMajorKeyOffset(entry, keyCol int) int64 {
	base := int64(entry) * int64(d.RowStride())
	for i := 0; i < keyCol; i++ {
		base += int64(d.GroupColWidths[i])
	}
	return base
}

func (d *QueryMemoryDescriptor) rowMajorSlotOffset(entry, slot int) int64 {
	base := int64(entry) * int64(d.RowStride())
	for _, w := range d.GroupColWidths {
		base += int64(w)
	}
	for i := 0; i < slot; i++ {
		base += int64(d.AggColWidths[i].Actual)
	}
	return base
}

func (d *QueryMemoryDescriptor) colMajorKeyColumnStart(keyCol int) int64 {
	entries := d.EntryCount()
	var off int64
	for i := 0; i < keyCol; i++ {
		off += entries * int64(d.GroupColWidths[i])
		if i < len(d.KeyColumnPadBytes) {
			off += int64(d.KeyColumnPadBytes[i])
		}
	}
	return off
}

func (d *QueryMemoryDescriptor) colMajorKeyOffset(entry, keyCol int) int64 {
	return d.colMajorKeyColumnStart(keyCol) + int64(entry)*int64(d.GroupColWidths[keyCol])
}

func (d *QueryMemoryDescriptor) colMajorSlotColumnStart(slot int) int64 {
	entries := d.EntryCount()
	var off int64
	for i := range d.GroupColWidths {
		off += entries * int64(d.GroupColWidths[i])
		if i < len(d.KeyColumnPadBytes) {
			off += int64(d.KeyColumnPadBytes[i])
		}
	}
	for i := 0; i < slot; i++ {
		off += entries * int64(d.AggColWidths[i].Compact)
	}
	return off
}

func (d *QueryMemoryDescriptor) colMajorSlotOffset(entry, slot int) int64 {
	return d.colMajorSlotColumnStart(slot) + int64(entry)*int64(d.AggColWidths[slot].Compact)
}

func (s *ResultSetStorage) keyOffset(entry, keyCol int) int64 {
	if s.desc.OutputColumnar {
		return s.desc.colMajorKeyOffset(entry, keyCol)
	}
	return s.desc.rowMajorKeyOffset(entry, keyCol)
}

func (s *ResultSetStorage) slotOffset(entry, slot int) int64 {
	if s.desc.OutputColumnar {
		return s.desc.colMajorSlotOffset(entry, slot)
	}
	return s.desc.rowMajorSlotOffset(entry, slot)
}

// SetKey writes an 8- or 4-byte key value for keyCol at entry.
func (s *ResultSetStorage) SetKey(entry, keyCol int, key uint64) {
	off := s.keyOffset(entry, keyCol)
	switch w := s.desc.GroupColWidths[keyCol]; w {
	case 8:
		binary.LittleEndian.PutUint64(s.buf[off:off+8], key)
	case 4:
		binary.LittleEndian.PutUint32(s.buf[off:off+4], uint32(key))
	default:
		panic("resultset: unsupported key width")
	}
}

// Key reads the key value for keyCol at entry.
func (s *ResultSetStorage) Key(entry, keyCol int) uint64 {
	off := s.keyOffset(entry, keyCol)
	switch w := s.desc.GroupColWidths[keyCol]; w {
	case 8:
		return binary.LittleEndian.Uint64(s.buf[off : off+8])
	case 4:
		return uint64(binary.LittleEndian.Uint32(s.buf[off : off+4]))
	default:
		panic("resultset: unsupported key width")
	}
}

// SetSlotInt writes slot at entry as a signed integer, truncated to the
// slot's configured width.
func (s *ResultSetStorage) SetSlotInt(entry, slot int, v int64) {
	off := s.slotOffset(entry, slot)
	switch w := s.desc.SlotWidth(slot); w {
	case 8:
		binary.LittleEndian.PutUint64(s.buf[off:off+8], uint64(v))
	case 4:
		binary.LittleEndian.PutUint32(s.buf[off:off+4], uint32(v))
	default:
		panic("resultset: unsupported slot width")
	}
}

// SlotInt reads slot at entry as a signed, sign-extended integer.
func (s *ResultSetStorage) SlotInt(entry, slot int) int64 {
	off := s.slotOffset(entry, slot)
	switch w := s.desc.SlotWidth(slot); w {
	case 8:
		return int64(binary.LittleEndian.Uint64(s.buf[off : off+8]))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(s.buf[off : off+4])))
	default:
		panic("resultset: unsupported slot width")
	}
}

// SetSlotFloat writes slot at entry as a 32- or 64-bit float.
func (s *ResultSetStorage) SetSlotFloat(entry, slot int, v float64) {
	off := s.slotOffset(entry, slot)
	switch w := s.desc.SlotWidth(slot); w {
	case 8:
		binary.LittleEndian.PutUint64(s.buf[off:off+8], math.Float64bits(v))
	case 4:
		binary.LittleEndian.PutUint32(s.buf[off:off+4], math.Float32bits(float32(v)))
	default:
		panic("resultset: unsupported slot width")
	}
}

// SlotFloat reads slot at entry as a 32- or 64-bit float.
func (s *ResultSetStorage) SlotFloat(entry, slot int) float64 {
	off := s.slotOffset(entry, slot)
	switch w := s.desc.SlotWidth(slot); w {
	case 8:
		return math.Float64frombits(binary.LittleEndian.Uint64(s.buf[off : off+8]))
	case 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(s.buf[off : off+4])))
	default:
		panic("resultset: unsupported slot width")
	}
}

// IsOccupied reports whether entry holds a real row: for keyed layouts,
// its first key column differs from EmptyKey64; for keyless layouts,
// any of its value slots is nonzero.
func (s *ResultSetStorage) IsOccupied(entry int) bool {
	if s.desc.KeylessHash {
		for slot := 0; slot < s.desc.ExpandedSlotCount(); slot++ {
			if s.SlotInt(entry, slot) != 0 {
				return true
			}
		}
		return false
	}
	return s.Key(entry, 0) != EmptyKey64
}

// Descriptor returns the layout this storage was allocated for.
func (s *ResultSetStorage) Descriptor() *QueryMemoryDescriptor { return s.desc }
