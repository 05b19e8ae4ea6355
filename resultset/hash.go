package resultset

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// HashKey computes the baseline open-addressing hash shared by the
// storage's own probe path and the reducer's probe path, so that the
// two walk the same probe sequence for a given key and entry count.
func HashKey(key uint64, entryCount int64) int64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	h := xxhash.Sum64(buf[:])
	return int64(h % uint64(entryCount))
}

// ProbeInsert finds key's entry under linear probing from
// HashKey(key, EntryCount()): an existing entry already holding key, or
// the first empty entry encountered, which it claims by writing key
// into it. ok is false only if the table is full.
func (s *ResultSetStorage) ProbeInsert(key uint64) (entry int, ok bool) {
	entries := int(s.desc.EntryCount())
	start := int(HashKey(key, int64(entries)))
	for i := 0; i < entries; i++ {
		e := (start + i) % entries
		switch cur := s.Key(e, 0); {
		case cur == key:
			return e, true
		case cur == EmptyKey64:
			s.SetKey(e, 0, key)
			return e, true
		}
	}
	return 0, false
}

// ProbeFind locates an existing entry for key without inserting.
func (s *ResultSetStorage) ProbeFind(key uint64) (entry int, found bool) {
	entries := int(s.desc.EntryCount())
	start := int(HashKey(key, int64(entries)))
	for i := 0; i < entries; i++ {
		e := (start + i) % entries
		switch cur := s.Key(e, 0); {
		case cur == key:
			return e, true
		case cur == EmptyKey64:
			return 0, false
		}
	}
	return 0, false
}
