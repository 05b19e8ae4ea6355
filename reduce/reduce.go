// Package reduce merges pairs of equally-shaped ResultSets, the way a
// fragment of query execution distributed across multiple storage
// devices or threads is combined back into one answer. Grounded on
// other_examples/SnellerInc-sneller__aggregate.go's aggregate-kind
// combine rules; the teacher has no analogue of result-set reduction.
package reduce

import (
	"errors"
	"fmt"
	"math"

	"chunkstore/resultset"
)

var errNoResultSets = errors.New("reduce: no result sets to reduce")

// Reduce folds sets left to right with pairwise Reduce, returning a
// single merged ResultSet. Reducing one set is a no-op: it is returned
// unchanged, consistent with reduction's identity property.
func Reduce(sets []*resultset.ResultSet) (*resultset.ResultSet, error) {
	if len(sets) == 0 {
		return nil, errNoResultSets
	}
	acc := sets[0]
	var err error
	for _, rs := range sets[1:] {
		acc, err = ReducePair(acc, rs)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// ReducePair merges a and b, which must share a descriptor, into a
// freshly allocated ResultSet. The destination is always a new buffer
// rather than a mutated input: a was the natural in-place choice for
// perfect-hash layouts, but a fresh buffer is correct for every layout
// and keeps the inputs readable afterward, which matters for testing
// commutativity and associativity against the same inputs repeatedly.
func ReducePair(a, b *resultset.ResultSet) (*resultset.ResultSet, error) {
	desc := a.Descriptor()
	dest := resultset.NewResultSet(desc, a.Dict())
	destStorage := dest.AllocateStorage()

	if desc.HashType == resultset.MultiCol {
		if err := reduceBaseline(destStorage, a.Storage(), desc); err != nil {
			return nil, err
		}
		if err := reduceBaseline(destStorage, b.Storage(), desc); err != nil {
			return nil, err
		}
		return dest, nil
	}
	reducePerfect(destStorage, a.Storage(), b.Storage(), desc)
	return dest, nil
}

// reducePerfect handles OneColKnownRange and MultiColPerfectHash (and
// keyless) layouts, where a source entry's destination is always the
// same ordinal index: no probing is needed, so every entry touched by
// either input is known up front.
func reducePerfect(dest, a, b *resultset.ResultSetStorage, desc *resultset.QueryMemoryDescriptor) {
	entries := int(desc.EntryCount())
	for e := 0; e < entries; e++ {
		occA := a.IsOccupied(e)
		occB := b.IsOccupied(e)
		if !occA && !occB {
			continue
		}
		seedEntryIdentity(dest, desc, e)
		if !desc.KeylessHash {
			switch {
			case occA:
				dest.SetKey(e, 0, a.Key(e, 0))
			case occB:
				dest.SetKey(e, 0, b.Key(e, 0))
			}
		}
		if occA {
			combineEntry(dest, a, e, e, desc)
		}
		if occB {
			combineEntry(dest, b, e, e, desc)
		}
	}
}

// reduceBaseline merges src's occupied entries into dest under open
// addressing: each occupied key is probed into dest, seeded with its
// aggregation identity the first time that destination entry is ever
// claimed, then combined.
func reduceBaseline(dest, src *resultset.ResultSetStorage, desc *resultset.QueryMemoryDescriptor) error {
	entries := int(desc.EntryCount())
	for e := 0; e < entries; e++ {
		if !src.IsOccupied(e) {
			continue
		}
		key := src.Key(e, 0)
		de, existed := dest.ProbeFind(key)
		if !existed {
			var ok bool
			de, ok = dest.ProbeInsert(key)
			if !ok {
				return fmt.Errorf("reduce: baseline hash table full at entry %d", e)
			}
			seedEntryIdentity(dest, desc, de)
		}
		combineEntry(dest, src, de, e, desc)
	}
	return nil
}

type slotValue struct {
	isFloat bool
	i       int64
	f       float64
}

func loadSlot(s *resultset.ResultSetStorage, entry, slot int, t resultset.TargetInfo) slotValue {
	if resultset.IsFloatType(t.SQLType) {
		return slotValue{isFloat: true, f: s.SlotFloat(entry, slot)}
	}
	return slotValue{i: s.SlotInt(entry, slot)}
}

func storeSlot(s *resultset.ResultSetStorage, entry, slot int, v slotValue) {
	if v.isFloat {
		s.SetSlotFloat(entry, slot, v.f)
		return
	}
	s.SetSlotInt(entry, slot, v.i)
}

func minSlot(a, b slotValue) slotValue {
	if a.isFloat {
		if b.f < a.f {
			return b
		}
		return a
	}
	if b.i < a.i {
		return b
	}
	return a
}

func maxSlot(a, b slotValue) slotValue {
	if a.isFloat {
		if b.f > a.f {
			return b
		}
		return a
	}
	if b.i > a.i {
		return b
	}
	return a
}

func addSlot(a, b slotValue) slotValue {
	if a.isFloat {
		return slotValue{isFloat: true, f: a.f + b.f}
	}
	return slotValue{i: a.i + b.i}
}

func isNullSlotValue(v slotValue, width int) bool {
	if v.isFloat {
		return math.IsNaN(v.f)
	}
	if width == 4 {
		return v.i == math.MinInt32
	}
	return v.i == math.MinInt64
}

func loadAvg(s *resultset.ResultSetStorage, entry, start int, t resultset.TargetInfo) (sum, cnt float64) {
	if resultset.IsFloatType(t.AggArgType) {
		return s.SlotFloat(entry, start), float64(s.SlotInt(entry, start+1))
	}
	return float64(s.SlotInt(entry, start)), float64(s.SlotInt(entry, start+1))
}

func storeAvg(s *resultset.ResultSetStorage, entry, start int, t resultset.TargetInfo, sum, cnt float64) {
	if resultset.IsFloatType(t.AggArgType) {
		s.SetSlotFloat(entry, start, sum)
	} else {
		s.SetSlotInt(entry, start, int64(sum))
	}
	s.SetSlotInt(entry, start+1, int64(cnt))
}

// combineEntry folds src's entry srcEntry into dest's entry destEntry,
// target by target, according to each target's aggregation kind.
// Non-aggregate (group-by passthrough) targets are left alone: the key
// already carries that information.
func combineEntry(dest, src *resultset.ResultSetStorage, destEntry, srcEntry int, desc *resultset.QueryMemoryDescriptor) {
	for ti, t := range desc.Targets {
		if !t.IsAgg {
			continue
		}
		start, _ := desc.SlotRange(ti)
		if t.AggKind == resultset.AggAvg {
			sumD, cntD := loadAvg(dest, destEntry, start, t)
			sumS, cntS := loadAvg(src, srcEntry, start, t)
			if t.SkipNullVal && cntS == 0 {
				continue
			}
			storeAvg(dest, destEntry, start, t, sumD+sumS, cntD+cntS)
			continue
		}

		width := desc.SlotWidth(start)
		srcVal := loadSlot(src, srcEntry, start, t)
		if t.SkipNullVal && isNullSlotValue(srcVal, width) {
			continue
		}
		dstVal := loadSlot(dest, destEntry, start, t)
		var combined slotValue
		switch t.AggKind {
		case resultset.AggMin:
			combined = minSlot(dstVal, srcVal)
		case resultset.AggMax:
			combined = maxSlot(dstVal, srcVal)
		default: // AggSum, AggCount
			combined = addSlot(dstVal, srcVal)
		}
		storeSlot(dest, destEntry, start, combined)
	}
}
