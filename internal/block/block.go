// Package block implements the columnar row-block representation used by
// every executor operator, and the arena-resident hash table backing
// joins, GROUP BY, and DISTINCT. Grounded on original_source/src/block.h.
package block

import (
	"github.com/martinsk/mskql/internal/arena"
	"github.com/martinsk/mskql/internal/value"
)

// Capacity is the fixed row count of one block. A Column stores Capacity
// full value.Value structs plus a Capacity-long null array, not a packed
// 8-byte-per-row array.
const Capacity = 1024

// Column is a contiguous typed array for one column of a Block. New
// allocates Columns on the Go heap, not from an arena.
type Column struct {
	Type  value.Type
	Count uint16
	Nulls [Capacity]bool
	Vals  [Capacity]value.Value
}

// Set writes v at row i, respecting its Null flag.
func (c *Column) Set(i uint16, v value.Value) {
	c.Nulls[i] = v.IsNull()
	c.Vals[i] = v
}

// Get reads the value at row i.
func (c *Column) Get(i uint16) value.Value {
	if c.Nulls[i] {
		return value.Null(c.Type)
	}
	return c.Vals[i]
}

// Block is a horizontal slice of a relation: a fixed set of Columns plus
// an optional selection vector. When Sel is non-nil only the indices in
// Sel[:SelCount] are "active" — this lets a predicate filter without
// copying column data.
type Block struct {
	Cols     []*Column
	Count    uint16
	Sel      []uint32
	SelCount uint16
}

// New allocates a Block with ncols empty Columns of the given types.
func New(colTypes []value.Type) *Block {
	cols := make([]*Column, len(colTypes))
	for i, t := range colTypes {
		cols[i] = &Column{Type: t}
	}
	return &Block{Cols: cols}
}

// Reset clears row content for reuse without releasing the Columns
// slice itself; arena-backed selection vectors are simply dropped.
func (b *Block) Reset() {
	b.Count = 0
	for _, c := range b.Cols {
		c.Count = 0
	}
	b.Sel = nil
	b.SelCount = 0
}

// ActiveCount returns the effective row count, honoring the selection
// vector when present.
func (b *Block) ActiveCount() uint16 {
	if b.Sel != nil {
		return b.SelCount
	}
	return b.Count
}

// RowIdx returns the underlying column-array index for logical position i,
// honoring the selection vector when present.
func (b *Block) RowIdx(i uint16) uint16 {
	if b.Sel != nil {
		return uint16(b.Sel[i])
	}
	return i
}

// AllocSelection bump-allocates a uint32 selection vector of capacity n
// from a, for a predicate evaluation pass over this block.
func AllocSelection(a *arena.Arena, n int) []uint32 {
	return arena.AllocUint32(a, n)[:0]
}
