package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/arena"
	"github.com/martinsk/mskql/internal/value"
)

func TestBlockColumnsShareRowCount(t *testing.T) {
	b := New([]value.Type{value.Int, value.Text})
	b.Count = 3
	for _, c := range b.Cols {
		c.Count = b.Count
	}
	b.Cols[0].Set(0, value.NewInt(1))
	b.Cols[0].Set(1, value.NewInt(2))
	b.Cols[0].Set(2, value.NewInt(3))
	b.Cols[1].Set(0, value.NewText("a"))
	b.Cols[1].Set(1, value.NewText("b"))
	b.Cols[1].Set(2, value.NewText("c"))

	for _, c := range b.Cols {
		assert.Equal(t, b.Count, c.Count, "every column block must share the row block's row count")
	}
}

func TestBlockGetRoundTripsNulls(t *testing.T) {
	b := New([]value.Type{value.Int})
	b.Count = 2
	b.Cols[0].Count = b.Count
	b.Cols[0].Set(0, value.NewInt(42))
	b.Cols[0].Set(1, value.Null(value.Int))

	assert.False(t, b.Cols[0].Get(0).IsNull())
	assert.Equal(t, int64(42), b.Cols[0].Get(0).Int64())
	assert.True(t, b.Cols[0].Get(1).IsNull())
}

func TestSelectionVectorShrinksActiveSetWithoutCopyingColumns(t *testing.T) {
	a := arena.New(0)
	b := New([]value.Type{value.Int})
	b.Count = 4
	b.Cols[0].Count = b.Count
	for i := uint16(0); i < 4; i++ {
		b.Cols[0].Set(i, value.NewInt(int32(i)))
	}

	sel := AllocSelection(a, 4)
	sel = append(sel, 0, 2)
	b.Sel = sel
	b.SelCount = uint16(len(sel))

	require.Equal(t, uint16(2), b.ActiveCount())
	var seen []int64
	for i := uint16(0); i < b.ActiveCount(); i++ {
		seen = append(seen, b.Cols[0].Get(b.RowIdx(i)).Int64())
	}
	assert.Equal(t, []int64{0, 2}, seen)

	// the underlying column storage is untouched by the selection.
	assert.Equal(t, int64(1), b.Cols[0].Get(1).Int64())
}

func TestSelectionVectorEmptyTraversesNoRows(t *testing.T) {
	a := arena.New(0)
	b := New([]value.Type{value.Int})
	b.Count = 4
	b.Sel = AllocSelection(a, 4)
	b.SelCount = 0

	assert.Equal(t, uint16(0), b.ActiveCount())
}

func TestSelectionVectorFullTraversesAllRows(t *testing.T) {
	a := arena.New(0)
	b := New([]value.Type{value.Int})
	b.Count = Capacity
	sel := AllocSelection(a, Capacity)
	for i := uint16(0); i < Capacity; i++ {
		sel = append(sel, uint32(i))
	}
	b.Sel = sel
	b.SelCount = uint16(len(sel))

	assert.EqualValues(t, Capacity, b.ActiveCount())
	for i := uint16(0); i < b.ActiveCount(); i++ {
		assert.Equal(t, i, b.RowIdx(i))
	}
}

func TestBlockResetClearsSelectionAndCounts(t *testing.T) {
	b := New([]value.Type{value.Int})
	b.Count = 2
	b.Sel = []uint32{0}
	b.SelCount = 1

	b.Reset()

	assert.Equal(t, uint16(0), b.Count)
	assert.Nil(t, b.Sel)
	assert.Equal(t, uint16(0), b.SelCount)
	assert.Equal(t, uint16(0), b.Cols[0].Count)
}
