package reduce

import (
	"math"

	"chunkstore/resultset"
)

type identityKind int

const (
	identityZero identityKind = iota
	identityMax
	identityMin
)

// seedEntryIdentity overwrites entry's value slots with each target's
// aggregation identity: the maximum representable value for MIN, the
// minimum for MAX, zero for SUM/COUNT/AVG. Combining any source value
// with its identity via the same op yields that source value unchanged,
// which is what lets the merge loop treat "first touch" and "already
// present" uniformly.
func seedEntryIdentity(s *resultset.ResultSetStorage, desc *resultset.QueryMemoryDescriptor, entry int) {
	for ti, t := range desc.Targets {
		if !t.IsAgg {
			continue
		}
		start, _ := desc.SlotRange(ti)
		if t.AggKind == resultset.AggAvg {
			s.SetSlotInt(entry, start, 0)
			s.SetSlotInt(entry, start+1, 0)
			continue
		}
		width := desc.SlotWidth(start)
		switch t.AggKind {
		case resultset.AggMin:
			setIdentitySlot(s, entry, start, width, t, identityMax)
		case resultset.AggMax:
			setIdentitySlot(s, entry, start, width, t, identityMin)
		default: // AggSum, AggCount
			setIdentitySlot(s, entry, start, width, t, identityZero)
		}
	}
}

// setIdentitySlot writes the identity value for kind into slot, sized to
// width: a slot narrower than 8 bytes must get the narrower sentinel, or
// SetSlotInt/SetSlotFloat's truncation to that width would turn
// math.MaxInt64/math.MinInt64 into -1/0 (or the float64 extremes into
// +Inf/-Inf, which works, but isn't the same clean identity).
func setIdentitySlot(s *resultset.ResultSetStorage, entry, slot, width int, t resultset.TargetInfo, kind identityKind) {
	if resultset.IsFloatType(t.SQLType) {
		var v float64
		switch {
		case kind == identityMax && width == 4:
			v = math.MaxFloat32
		case kind == identityMax:
			v = math.MaxFloat64
		case kind == identityMin && width == 4:
			v = -math.MaxFloat32
		case kind == identityMin:
			v = -math.MaxFloat64
		}
		s.SetSlotFloat(entry, slot, v)
		return
	}
	var v int64
	switch {
	case kind == identityMax && width == 4:
		v = math.MaxInt32
	case kind == identityMax:
		v = math.MaxInt64
	case kind == identityMin && width == 4:
		v = math.MinInt32
	case kind == identityMin:
		v = math.MinInt64
	}
	s.SetSlotInt(entry, slot, v)
}
