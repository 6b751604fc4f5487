// Package schema holds the live database schema: tables, columns,
// constraints, and the enum-type registry, addressed by stable integer
// ids so foreign keys survive schema mutation without pointer aliasing
// (spec §9, "Cyclic references in schema metadata").
package schema

import (
	"sort"
	"sync"

	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/value"
)

// FKAction is the referential action taken when a referenced row is
// updated or deleted, ported from original_source/src/column.h.
type FKAction uint8

const (
	FKNoAction FKAction = iota
	FKRestrict
	FKCascade
	FKSetNull
	FKSetDefault
)

// ColumnID and TableID are stable handles: indexes into the owning
// Database's slices, not pointers, so FK targets remain valid across
// ALTER/DROP and cascades can walk the graph by id.
type ColumnID int
type TableID int

// ForeignKey references another table's column by stable id, with the
// action to take on UPDATE/DELETE of the referenced row.
type ForeignKey struct {
	RefTable  TableID
	RefColumn ColumnID
	OnDelete  FKAction
	OnUpdate  FKAction
}

// Column describes one table column.
type Column struct {
	ID         ColumnID
	Name       string
	Type       value.Type
	NotNull    bool
	Unique     bool
	PrimaryKey bool
	Default    string // raw default expression text, evaluated by the executor
	AutoIncr   bool
	EnumName   string // set when Type == value.Enum
	Check      string   // display text for the CHECK constraint, or ""
	CheckExpr  ast.Expr // evaluable form of Check, evaluated per row on INSERT/UPDATE
	FK         *ForeignKey
}

// Table is a user table or a catalog mirror table.
type Table struct {
	ID        TableID
	Name      string
	Columns   []Column
	IsCatalog bool

	mu       sync.Mutex
	rows     [][]value.Value
	nextAuto map[ColumnID]int64
}

// ColumnByName returns the column with the given name, or ok=false.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Rows returns a snapshot copy of the table's current rows.
func (t *Table) Rows() [][]value.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]value.Value, len(t.rows))
	copy(out, t.rows)
	return out
}

// RowCount returns the current row count.
func (t *Table) RowCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// AppendRow adds a row under the table's own lock (the caller must still
// hold the database write lock for cross-table consistency); returns the
// new row's position for undo bookkeeping.
func (t *Table) AppendRow(row []value.Value) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, row)
	return len(t.rows) - 1
}

// SetRow overwrites the row at pos (used by UPDATE and by undo replay).
func (t *Table) SetRow(pos int, row []value.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[pos] = row
}

// DeleteRow removes the row at pos, preserving order (used by DELETE and
// by undo replay of an INSERT).
func (t *Table) DeleteRow(pos int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows[:pos], t.rows[pos+1:]...)
}

// InsertRowAt reinserts a row at a specific position, used only by undo
// replay of a DELETE so ordinal row positions referenced elsewhere in the
// same undo log stay consistent.
func (t *Table) InsertRowAt(pos int, row []value.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pos >= len(t.rows) {
		t.rows = append(t.rows, row)
		return
	}
	t.rows = append(t.rows, nil)
	copy(t.rows[pos+1:], t.rows[pos:])
	t.rows[pos] = row
}

// NextAutoIncrement returns the next value for an auto-increment column,
// advancing the counter. Must be called under the database write lock.
func (t *Table) NextAutoIncrement(col ColumnID) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nextAuto == nil {
		t.nextAuto = make(map[ColumnID]int64)
	}
	t.nextAuto[col]++
	return t.nextAuto[col]
}

// EnumType is a user-defined enumeration: an ordered label list, addressed
// by ordinal in row storage.
type EnumType struct {
	Name   string
	Labels []string
}

// Ordinal returns the 0-based index of label, or ok=false.
func (e *EnumType) Ordinal(label string) (int32, bool) {
	for i, l := range e.Labels {
		if l == label {
			return int32(i), true
		}
	}
	return 0, false
}

// Label returns the label at ordinal, or "" if out of range.
func (e *EnumType) Label(ordinal int32) string {
	if ordinal < 0 || int(ordinal) >= len(e.Labels) {
		return ""
	}
	return e.Labels[ordinal]
}

// Database is the root schema object: an ordered table list, the enum
// registry, and the single write lock guarding all schema and row
// mutation (spec §3, §4.5). Database does not own per-session
// transaction state.
type Database struct {
	Name string

	WriteLock sync.RWMutex

	mu         sync.Mutex
	tables     []*Table
	tablesByID map[TableID]*Table
	byName     map[string]TableID
	enums      map[string]*EnumType
	nextTabID  TableID
	generation uint64 // bumped on every DDL, reported by Generation
}

// New creates an empty database named name.
func New(name string) *Database {
	return &Database{
		Name:       name,
		tablesByID: make(map[TableID]*Table),
		byName:     make(map[string]TableID),
		enums:      make(map[string]*EnumType),
	}
}

// CreateTable registers a new table, assigning it a stable id. Caller
// must hold WriteLock.
func (d *Database) CreateTable(name string, cols []Column, isCatalog bool) *Table {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextTabID
	d.nextTabID++
	for i := range cols {
		cols[i].ID = ColumnID(i)
	}
	t := &Table{ID: id, Name: name, Columns: cols, IsCatalog: isCatalog}
	d.tables = append(d.tables, t)
	d.tablesByID[id] = t
	d.byName[name] = id
	d.generation++
	return t
}

// DropTable removes a table by name. Caller must hold WriteLock.
func (d *Database) DropTable(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byName[name]
	if !ok {
		return false
	}
	delete(d.byName, name)
	delete(d.tablesByID, id)
	for i, t := range d.tables {
		if t.ID == id {
			d.tables = append(d.tables[:i], d.tables[i+1:]...)
			break
		}
	}
	d.generation++
	return true
}

// TableByName looks up a live (non-dropped) table.
func (d *Database) TableByName(name string) (*Table, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return d.tablesByID[id], true
}

// TableByID looks up a table by its stable id, for FK resolution.
func (d *Database) TableByID(id TableID) (*Table, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tablesByID[id]
	return t, ok
}

// Tables returns all live user tables (catalog mirrors excluded) ordered
// by creation order, per §4.3's "catalog tables never appear in their own
// listings" invariant.
func (d *Database) Tables() []*Table {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Table, 0, len(d.tables))
	for _, t := range d.tables {
		if !t.IsCatalog {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllTables returns every table including catalog mirrors.
func (d *Database) AllTables() []*Table {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Table, len(d.tables))
	copy(out, d.tables)
	return out
}

// Generation returns the schema generation counter, bumped on every DDL.
// The admin schema dump reports it; nothing else reads it.
func (d *Database) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// DefineEnum registers an enum type. Caller must hold WriteLock.
func (d *Database) DefineEnum(name string, labels []string) *EnumType {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := &EnumType{Name: name, Labels: labels}
	d.enums[name] = e
	d.generation++
	return e
}

// EnumByName looks up a registered enum type.
func (d *Database) EnumByName(name string) (*EnumType, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.enums[name]
	return e, ok
}

// Enums returns all registered enum types.
func (d *Database) Enums() []*EnumType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*EnumType, 0, len(d.enums))
	for _, e := range d.enums {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
