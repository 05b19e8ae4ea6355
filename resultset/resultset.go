package resultset

import (
	"math"
	"sort"
)

// Dictionary resolves a dictionary-encoded string id to its text, for
// targets typed SQLDictString.
type Dictionary interface {
	GetOrAddTransient(id int64) string
}

// ResultSet pairs a QueryMemoryDescriptor with the storage that backs
// it and a cursor for sequential row materialization.
type ResultSet struct {
	desc    *QueryMemoryDescriptor
	storage *ResultSetStorage
	dict    Dictionary
	cursor  int
}

// NewResultSet creates an empty ResultSet over desc. Call
// AllocateStorage (or attach a storage directly via SetStorage) before
// reading rows.
func NewResultSet(desc *QueryMemoryDescriptor, dict Dictionary) *ResultSet {
	return &ResultSet{desc: desc, dict: dict}
}

// AllocateStorage allocates and attaches a fresh ResultSetStorage sized
// for this result set's descriptor.
func (rs *ResultSet) AllocateStorage() *ResultSetStorage {
	rs.storage = Allocate(rs.desc)
	return rs.storage
}

// Storage returns the attached storage, or nil if none has been
// allocated or attached yet.
func (rs *ResultSet) Storage() *ResultSetStorage { return rs.storage }

// SetStorage attaches a storage built elsewhere (e.g. by
// Reconstruct-style loading) to this result set.
func (rs *ResultSet) SetStorage(s *ResultSetStorage) { rs.storage = s }

// Descriptor returns this result set's layout descriptor.
func (rs *ResultSet) Descriptor() *QueryMemoryDescriptor { return rs.desc }

// Dict returns the dictionary used to translate SQLDictString targets.
func (rs *ResultSet) Dict() Dictionary { return rs.dict }

// RowCount returns the number of occupied entries.
func (rs *ResultSet) RowCount() int {
	n := 0
	entries := int(rs.desc.EntryCount())
	for e := 0; e < entries; e++ {
		if rs.storage.IsOccupied(e) {
			n++
		}
	}
	return n
}

// Value is one materialized target column's extracted value.
type Value struct {
	Int     int64
	Float   float64
	Str     string
	IsFloat bool
}

// Row is one materialized logical row: its group-by key (zero/ignored
// for keyless layouts) and its per-target extracted values.
type Row struct {
	Key    uint64
	Values []Value
}

// Reset rewinds the row cursor to the beginning.
func (rs *ResultSet) Reset() { rs.cursor = 0 }

// GetNextRow advances the cursor to the next occupied entry and
// materializes it, translating dictionary ids to strings when
// translateStrings is set. decimalToDouble is accepted for interface
// symmetry with the wider type system; this scope has no decimal type,
// so it has no observable effect yet.
func (rs *ResultSet) GetNextRow(translateStrings, decimalToDouble bool) (*Row, bool) {
	entries := int(rs.desc.EntryCount())
	for rs.cursor < entries {
		e := rs.cursor
		rs.cursor++
		if !rs.storage.IsOccupied(e) {
			continue
		}
		return rs.materializeRow(e, translateStrings), true
	}
	return nil, false
}

func (rs *ResultSet) materializeRow(entry int, translateStrings bool) *Row {
	row := &Row{Values: make([]Value, len(rs.desc.Targets))}
	if !rs.desc.KeylessHash {
		row.Key = rs.storage.Key(entry, 0)
	} else {
		row.Key = uint64(rs.desc.MinVal) + uint64(entry)
	}

	for ti, t := range rs.desc.Targets {
		start, _ := rs.desc.SlotRange(ti)
		switch {
		case t.IsAgg && t.AggKind == AggAvg:
			row.Values[ti] = rs.materializeAvg(entry, start, t)
		case t.SQLType == SQLDictString:
			id := rs.storage.SlotInt(entry, start)
			if translateStrings && rs.dict != nil {
				row.Values[ti] = Value{Str: rs.dict.GetOrAddTransient(id)}
			} else {
				row.Values[ti] = Value{Int: id}
			}
		case IsFloatType(t.SQLType):
			row.Values[ti] = Value{Float: rs.storage.SlotFloat(entry, start), IsFloat: true}
		default:
			row.Values[ti] = Value{Int: rs.storage.SlotInt(entry, start)}
		}
	}
	return row
}

func (rs *ResultSet) materializeAvg(entry, start int, t TargetInfo) Value {
	cnt := rs.storage.SlotInt(entry, start+1)
	var sum float64
	if IsFloatType(t.AggArgType) {
		sum = rs.storage.SlotFloat(entry, start)
	} else {
		sum = float64(rs.storage.SlotInt(entry, start))
	}
	if cnt == 0 {
		return Value{Float: math.NaN(), IsFloat: true}
	}
	return Value{Float: sum / float64(cnt), IsFloat: true}
}

// SortDirection and NullsOrder configure OrderEntry comparisons.
type SortDirection int

const (
	Asc SortDirection = iota
	Desc
)

type NullsOrder int

const (
	NullsFirst NullsOrder = iota
	NullsLast
)

// OrderEntry is one ORDER BY clause: the target to sort by, its
// direction, and where nulls fall.
type OrderEntry struct {
	TargetIdx int
	Direction SortDirection
	Nulls     NullsOrder
}

// Sort materializes every occupied row, stably orders them by order,
// and truncates to topN rows (topN<=0 means no limit).
func (rs *ResultSet) Sort(order []OrderEntry, topN int) []*Row {
	rs.Reset()
	var rows []*Row
	for {
		r, ok := rs.GetNextRow(true, true)
		if !ok {
			break
		}
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, oe := range order {
			cmp := compareValues(rows[i].Values[oe.TargetIdx], rows[j].Values[oe.TargetIdx], oe.Nulls)
			if cmp == 0 {
				continue
			}
			if oe.Direction == Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	if topN > 0 && topN < len(rows) {
		rows = rows[:topN]
	}
	return rows
}

func isNullValue(v Value) bool {
	return v.IsFloat && math.IsNaN(v.Float)
}

func compareValues(a, b Value, nulls NullsOrder) int {
	aNull, bNull := isNullValue(a), isNullValue(b)
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		if nulls == NullsFirst {
			return -1
		}
		return 1
	case bNull:
		if nulls == NullsFirst {
			return 1
		}
		return -1
	}
	if a.IsFloat || b.IsFloat {
		af, bf := a.Float, b.Float
		if !a.IsFloat {
			af = float64(a.Int)
		}
		if !b.IsFloat {
			bf = float64(b.Int)
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a.Int < b.Int:
		return -1
	case a.Int > b.Int:
		return 1
	default:
		return 0
	}
}
