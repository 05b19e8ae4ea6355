// Package resultset implements the hash-keyed result-set layout:
// QueryMemoryDescriptor and TargetInfo describe the physical layout;
// ResultSetStorage interprets a raw buffer through that layout;
// ResultSet iterates logical rows and extracts typed values.
//
// Grounded on other_examples/SnellerInc-sneller__aggregate.go's
// AggregateOp enumeration and per-slot data sizing, and
// other_examples/cloudimpl-ByteDB__types.go's page/type constant layout
// conventions.
package resultset

// HashType selects which of the three result-set hash layouts a
// QueryMemoryDescriptor describes.
type HashType int

const (
	// OneColKnownRange is a perfect hash over a single known value range.
	OneColKnownRange HashType = iota
	// MultiColPerfectHash is a perfect hash over a composite key whose
	// entry count is known up front (MaxVal, not a min/max range).
	MultiColPerfectHash
	// MultiCol is the baseline, open-addressed hash used when no perfect
	// hash exists.
	MultiCol
)

// AggKind enumerates the five aggregation kinds in scope.
type AggKind int

const (
	AggMin AggKind = iota
	AggMax
	AggSum
	AggCount
	AggAvg
)

// SQLTypeKind distinguishes the handful of logical types a target slot
// or key column may hold.
type SQLTypeKind int

const (
	SQLInteger SQLTypeKind = iota
	SQLFloat
	SQLDouble
	SQLDictString
)

// IsFloatType reports whether t is stored as a floating-point slot.
func IsFloatType(t SQLTypeKind) bool {
	return t == SQLFloat || t == SQLDouble
}

// TargetInfo describes one logical output column.
type TargetInfo struct {
	IsAgg       bool
	AggKind     AggKind
	SQLType     SQLTypeKind
	AggArgType  SQLTypeKind
	SkipNullVal bool
	IsDistinct  bool
}

// AggColWidth is the pair of byte widths a target slot may need: Actual
// is the width used in row-major entry strides, Compact is the width
// used for column-major column runs.
type AggColWidth struct {
	Actual  int
	Compact int
}

// EmptyKey64 is the sentinel marking an unoccupied keyed entry (8-byte
// key columns).
const EmptyKey64 uint64 = 0x8000000000000000

// deadbeefSentinel is the uninitialized-value debug marker written into
// value slots of keyed (non-keyless) layouts at allocation time.
const deadbeefSentinel int64 = 0xdeadbeef

// QueryMemoryDescriptor is pure data describing the physical layout of a
// result set.
type QueryMemoryDescriptor struct {
	HashType HashType

	// MinVal/MaxVal: for OneColKnownRange, the key value range; for
	// MultiColPerfectHash, MaxVal alone is the entry count.
	MinVal, MaxVal int64
	// EntryCountOverride is the hash table capacity for MultiCol
	// (baseline) layouts, which have no meaningful value range.
	EntryCountOverride int64

	OutputColumnar bool
	KeylessHash    bool
	IdxTargetAsKey int32

	GroupColWidths    []int
	KeyColumnPadBytes []int
	AggColWidths      []AggColWidth

	HasNulls bool

	// Targets is one entry per logical output column; kAVG expands to
	// two consecutive slots (sum, count) in the physical layout.
	Targets []TargetInfo
}

// EntryCount returns the number of logical entries the layout holds.
func (d *QueryMemoryDescriptor) EntryCount() int64 {
	switch d.HashType {
	case OneColKnownRange:
		return d.MaxVal - d.MinVal + 1
	case MultiColPerfectHash:
		return d.MaxVal
	default:
		return d.EntryCountOverride
	}
}

// ExpandedSlotCount returns the number of physical value slots after
// expanding kAVG targets into two consecutive slots.
func (d *QueryMemoryDescriptor) ExpandedSlotCount() int {
	n := 0
	for _, t := range d.Targets {
		if t.IsAgg && t.AggKind == AggAvg {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// SlotRange returns the [start, end) physical slot range target
// targetIdx occupies in the expanded layout.
func (d *QueryMemoryDescriptor) SlotRange(targetIdx int) (start, end int) {
	start = 0
	for i := 0; i < targetIdx; i++ {
		if d.Targets[i].IsAgg && d.Targets[i].AggKind == AggAvg {
			start += 2
		} else {
			start++
		}
	}
	end = start + 1
	if d.Targets[targetIdx].IsAgg && d.Targets[targetIdx].AggKind == AggAvg {
		end = start + 2
	}
	return
}

// RowStride returns the row-major entry stride in bytes: the sum of key
// column widths plus the sum of expanded target slots' actual widths.
func (d *QueryMemoryDescriptor) RowStride() int {
	s := 0
	for _, w := range d.GroupColWidths {
		s += w
	}
	for _, w := range d.AggColWidths {
		s += w.Actual
	}
	return s
}

// SlotWidth returns the byte width used to store physical slot idx,
// which depends on the layout: Actual for row-major, Compact for
// column-major.
func (d *QueryMemoryDescriptor) SlotWidth(idx int) int {
	if d.OutputColumnar {
		return d.AggColWidths[idx].Compact
	}
	return d.AggColWidths[idx].Actual
}
