package reduce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chunkstore/resultset"
)

// perfectDesc builds a single-key-column, row-major perfect hash
// descriptor over [0, entries) with MIN, MAX, SUM, COUNT and AVG
// targets, matching spec scenario 4/5's shape.
func perfectDesc(entries int64) *resultset.QueryMemoryDescriptor {
	return &resultset.QueryMemoryDescriptor{
		HashType:       resultset.OneColKnownRange,
		MinVal:         0,
		MaxVal:         entries - 1,
		GroupColWidths: []int{8},
		AggColWidths: []resultset.AggColWidth{
			{Actual: 8, Compact: 8}, // MIN
			{Actual: 8, Compact: 8}, // MAX
			{Actual: 8, Compact: 8}, // SUM
			{Actual: 8, Compact: 8}, // COUNT
			{Actual: 8, Compact: 8}, // AVG sum
			{Actual: 8, Compact: 8}, // AVG count
		},
		Targets: []resultset.TargetInfo{
			{IsAgg: true, AggKind: resultset.AggMin, SQLType: resultset.SQLInteger},
			{IsAgg: true, AggKind: resultset.AggMax, SQLType: resultset.SQLInteger},
			{IsAgg: true, AggKind: resultset.AggSum, SQLType: resultset.SQLInteger},
			{IsAgg: true, AggKind: resultset.AggCount, SQLType: resultset.SQLInteger},
			{IsAgg: true, AggKind: resultset.AggAvg, SQLType: resultset.SQLDouble, AggArgType: resultset.SQLInteger},
		},
	}
}

func fillFullOverlap(rs *resultset.ResultSet, entries int64) {
	s := rs.AllocateStorage()
	for i := int64(0); i < entries; i++ {
		s.SetKey(int(i), 0, uint64(i))
		s.SetSlotInt(int(i), 0, i) // min
		s.SetSlotInt(int(i), 1, i) // max
		s.SetSlotInt(int(i), 2, i) // sum
		s.SetSlotInt(int(i), 3, i) // count
		s.SetSlotInt(int(i), 4, i) // avg sum
		s.SetSlotInt(int(i), 5, 1) // avg count
	}
}

func TestReducePairFullOverlapPerfectHash(t *testing.T) {
	desc := perfectDesc(100)
	a := resultset.NewResultSet(desc, nil)
	fillFullOverlap(a, 100)
	b := resultset.NewResultSet(desc, nil)
	fillFullOverlap(b, 100)

	merged, err := ReducePair(a, b)
	require.NoError(t, err)
	require.Equal(t, 100, merged.RowCount())

	ms := merged.Storage()
	for i := int64(0); i < 100; i++ {
		e := int(i)
		require.Equal(t, i, ms.SlotInt(e, 0), "min at %d", i)
		require.Equal(t, i, ms.SlotInt(e, 1), "max at %d", i)
		require.Equal(t, 2*i, ms.SlotInt(e, 2), "sum at %d", i)
		require.Equal(t, 2*i, ms.SlotInt(e, 3), "count at %d", i)
		require.Equal(t, 2*i, ms.SlotInt(e, 4), "avg sum at %d", i)
		require.Equal(t, int64(2), ms.SlotInt(e, 5), "avg count at %d", i)
	}

	merged.Reset()
	row, ok := merged.GetNextRow(true, true)
	require.True(t, ok)
	require.InDelta(t, 0.0, row.Values[4].Float, 1e-9)
}

func TestReducePairDisjointPerfectHash(t *testing.T) {
	desc := perfectDesc(100)
	a := resultset.NewResultSet(desc, nil)
	sa := a.AllocateStorage()
	b := resultset.NewResultSet(desc, nil)
	sb := b.AllocateStorage()

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			sa.SetKey(i, 0, uint64(i))
			for slot := 0; slot < 4; slot++ {
				sa.SetSlotInt(i, slot, 10)
			}
			sa.SetSlotInt(i, 4, 10)
			sa.SetSlotInt(i, 5, 1)
		} else {
			sb.SetKey(i, 0, uint64(i))
			for slot := 0; slot < 4; slot++ {
				sb.SetSlotInt(i, slot, 20)
			}
			sb.SetSlotInt(i, 4, 20)
			sb.SetSlotInt(i, 5, 1)
		}
	}

	merged, err := ReducePair(a, b)
	require.NoError(t, err)
	require.Equal(t, 100, merged.RowCount())

	ms := merged.Storage()
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			require.Equal(t, int64(10), ms.SlotInt(i, 2))
		} else {
			require.Equal(t, int64(20), ms.SlotInt(i, 2))
		}
	}
}

// narrowMinMaxDesc builds a perfect-hash descriptor with 4-byte MIN/MAX
// slots, the layout that exposed the identity-seeding truncation bug:
// seeding with the unnarrowed int64 extremes truncates to -1 (MIN) and
// 0 (MAX) once written through a 4-byte SetSlotInt, which then clamps
// every real value on the wrong side.
func narrowMinMaxDesc(entries int64) *resultset.QueryMemoryDescriptor {
	return &resultset.QueryMemoryDescriptor{
		HashType:       resultset.OneColKnownRange,
		MinVal:         0,
		MaxVal:         entries - 1,
		GroupColWidths: []int{8},
		AggColWidths: []resultset.AggColWidth{
			{Actual: 4, Compact: 4}, // MIN
			{Actual: 4, Compact: 4}, // MAX
		},
		Targets: []resultset.TargetInfo{
			{IsAgg: true, AggKind: resultset.AggMin, SQLType: resultset.SQLInteger},
			{IsAgg: true, AggKind: resultset.AggMax, SQLType: resultset.SQLInteger},
		},
	}
}

func TestReducePairMinMaxNarrowSlotWidth(t *testing.T) {
	desc := narrowMinMaxDesc(2)
	a := resultset.NewResultSet(desc, nil)
	sa := a.AllocateStorage()
	b := resultset.NewResultSet(desc, nil)
	sb := b.AllocateStorage()

	// Entry 0 only exists in a, with an all-positive value: if MIN's
	// identity were truncated to -1, min(-1, 5) would wrongly stay -1.
	sa.SetKey(0, 0, 0)
	sa.SetSlotInt(0, 0, 5)
	sa.SetSlotInt(0, 1, 5)

	// Entry 1 only exists in b, with a negative value: if MAX's identity
	// were truncated to 0, max(0, -5) would wrongly stay 0.
	sb.SetKey(1, 0, 1)
	sb.SetSlotInt(1, 0, -5)
	sb.SetSlotInt(1, 1, -5)

	merged, err := ReducePair(a, b)
	require.NoError(t, err)
	require.Equal(t, 2, merged.RowCount())

	ms := merged.Storage()
	require.Equal(t, int64(5), ms.SlotInt(0, 0), "min of entry seeded only in a")
	require.Equal(t, int64(5), ms.SlotInt(0, 1), "max of entry seeded only in a")
	require.Equal(t, int64(-5), ms.SlotInt(1, 0), "min of entry seeded only in b")
	require.Equal(t, int64(-5), ms.SlotInt(1, 1), "max of entry seeded only in b")
}

func baselineDesc() *resultset.QueryMemoryDescriptor {
	return &resultset.QueryMemoryDescriptor{
		HashType:           resultset.MultiCol,
		EntryCountOverride: 32,
		GroupColWidths:     []int{8},
		AggColWidths:       []resultset.AggColWidth{{Actual: 8, Compact: 8}},
		Targets:            []resultset.TargetInfo{{IsAgg: true, AggKind: resultset.AggSum, SQLType: resultset.SQLInteger}},
	}
}

func TestReducePairBaselineHashPartialOverlap(t *testing.T) {
	desc := baselineDesc()
	a := resultset.NewResultSet(desc, nil)
	sa := a.AllocateStorage()
	b := resultset.NewResultSet(desc, nil)
	sb := b.AllocateStorage()

	aKeys := []uint64{1, 2, 3, 4, 5}
	for _, k := range aKeys {
		e, ok := sa.ProbeInsert(k)
		require.True(t, ok)
		sa.SetSlotInt(e, 0, 7)
	}
	bKeys := []uint64{4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18}
	for _, k := range bKeys {
		e, ok := sb.ProbeInsert(k)
		require.True(t, ok)
		sb.SetSlotInt(e, 0, 3)
	}

	merged, err := ReducePair(a, b)
	require.NoError(t, err)
	require.Equal(t, 18, merged.RowCount())

	ms := merged.Storage()
	overlap := map[uint64]bool{4: true, 5: true}
	allKeys := append(append([]uint64{}, aKeys...), bKeys...)
	seen := map[uint64]bool{}
	for _, k := range allKeys {
		if seen[k] {
			continue
		}
		seen[k] = true
		e, found := ms.ProbeFind(k)
		require.True(t, found, "key %d missing", k)
		if overlap[k] {
			require.Equal(t, int64(10), ms.SlotInt(e, 0), "key %d", k)
		} else {
			isA := k <= 5
			if isA {
				require.Equal(t, int64(7), ms.SlotInt(e, 0), "key %d", k)
			} else {
				require.Equal(t, int64(3), ms.SlotInt(e, 0), "key %d", k)
			}
		}
	}
}

func TestReduceIsAssociativeAndCommutative(t *testing.T) {
	desc := perfectDesc(10)
	mk := func(seed int64) *resultset.ResultSet {
		rs := resultset.NewResultSet(desc, nil)
		s := rs.AllocateStorage()
		for i := int64(0); i < 10; i++ {
			s.SetKey(int(i), 0, uint64(i))
			s.SetSlotInt(int(i), 2, seed+i) // sum
			s.SetSlotInt(int(i), 3, 1)
		}
		return rs
	}
	a, b, c := mk(1), mk(2), mk(3)

	ab, err := ReducePair(a, b)
	require.NoError(t, err)
	abc1, err := ReducePair(ab, c)
	require.NoError(t, err)

	bc, err := ReducePair(b, c)
	require.NoError(t, err)
	abc2, err := ReducePair(a, bc)
	require.NoError(t, err)

	ba, err := ReducePair(b, a)
	require.NoError(t, err)
	bac, err := ReducePair(ba, c)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		want := abc1.Storage().SlotInt(i, 2)
		require.Equal(t, want, abc2.Storage().SlotInt(i, 2), "associativity at %d", i)
		require.Equal(t, want, bac.Storage().SlotInt(i, 2), "commutativity at %d", i)
	}
}

func TestReduceSingleSetIsIdentity(t *testing.T) {
	desc := perfectDesc(5)
	rs := resultset.NewResultSet(desc, nil)
	fillFullOverlap(rs, 5)

	out, err := Reduce([]*resultset.ResultSet{rs})
	require.NoError(t, err)
	require.Same(t, rs, out)
}

func TestReduceNoSetsErrors(t *testing.T) {
	_, err := Reduce(nil)
	require.Error(t, err)
}
