// Package txn implements the per-session transaction state machine (spec
// §4.5): Idle/InTransaction/Failed, an undo log replayed in reverse on
// ROLLBACK or abrupt teardown, and the ReadyForQuery status byte mapping.
package txn

import (
	"fmt"

	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/value"
)

// State is one of the three per-session transaction states.
type State uint8

const (
	Idle State = iota
	InTransaction
	Failed
)

// StatusByte returns the ReadyForQuery status byte for s ('I'/'T'/'E'),
// per invariant I3.
func (s State) StatusByte() byte {
	switch s {
	case InTransaction:
		return 'T'
	case Failed:
		return 'E'
	default:
		return 'I'
	}
}

// undoKind tags one entry in the undo log.
type undoKind uint8

const (
	undoInsert undoKind = iota
	undoUpdate
	undoDelete
	undoCreateTable
	undoDropTable
)

type undoEntry struct {
	kind     undoKind
	table    *schema.Table
	pos      int
	before   []value.Value // row image before the mutation (Update/Delete)
	createdT *schema.Table // table created by this op, for undoCreateTable
	db       *schema.Database
	tabName  string
	dropCols []schema.Column
}

// Manager is one session's transaction state and undo log. It is not
// safe for concurrent use — a session is single-threaded per §5.
type Manager struct {
	state State
	log   []undoEntry
}

// New returns a fresh Manager in the Idle state.
func New() *Manager { return &Manager{state: Idle} }

// State returns the current transaction state.
func (m *Manager) State() State { return m.state }

// Begin transitions Idle -> InTransaction, starting a new undo log. It is
// an error to BEGIN while already InTransaction or Failed; callers should
// check State() first.
func (m *Manager) Begin() error {
	if m.state != Idle {
		return fmt.Errorf("BEGIN issued while transaction already active")
	}
	m.state = InTransaction
	m.log = m.log[:0]
	return nil
}

// EnsureImplicit starts an implicit single-statement transaction when the
// session is Idle, so RecordX calls always have a log to append to; it
// is a no-op otherwise.
func (m *Manager) EnsureImplicit() {
	if m.state == Idle {
		m.log = m.log[:0]
	}
}

// MarkFailed transitions InTransaction -> Failed on a DML/DDL error. A
// failure during an implicit (Idle) statement instead rolls back
// immediately since there is no explicit transaction to keep Failed.
func (m *Manager) MarkFailed(wasExplicit bool) {
	if wasExplicit {
		m.state = Failed
	} else {
		m.applyUndo()
		m.state = Idle
	}
}

// RecordInsert appends an undo entry reversing an INSERT at pos.
func (m *Manager) RecordInsert(t *schema.Table, pos int) {
	m.log = append(m.log, undoEntry{kind: undoInsert, table: t, pos: pos})
}

// RecordUpdate appends an undo entry reversing an UPDATE, capturing the
// pre-image row.
func (m *Manager) RecordUpdate(t *schema.Table, pos int, before []value.Value) {
	m.log = append(m.log, undoEntry{kind: undoUpdate, table: t, pos: pos, before: before})
}

// RecordDelete appends an undo entry reversing a DELETE, capturing the
// pre-image row so it can be reinserted.
func (m *Manager) RecordDelete(t *schema.Table, pos int, before []value.Value) {
	m.log = append(m.log, undoEntry{kind: undoDelete, table: t, pos: pos, before: before})
}

// RecordCreateTable appends an undo entry reversing a CREATE TABLE.
func (m *Manager) RecordCreateTable(db *schema.Database, t *schema.Table) {
	m.log = append(m.log, undoEntry{kind: undoCreateTable, db: db, createdT: t, tabName: t.Name})
}

// RecordDropTable appends an undo entry reversing a DROP TABLE, capturing
// enough of the table's shape to recreate it with the same rows.
func (m *Manager) RecordDropTable(db *schema.Database, t *schema.Table) {
	cols := make([]schema.Column, len(t.Columns))
	copy(cols, t.Columns)
	m.log = append(m.log, undoEntry{kind: undoDropTable, db: db, tabName: t.Name, dropCols: cols, createdT: t})
}

// Commit transitions InTransaction/Failed -> Idle, discarding the log on
// a clean InTransaction commit and applying undo (aborting) if the
// transaction was Failed.
func (m *Manager) Commit() {
	if m.state == Failed {
		m.applyUndo()
	}
	m.log = m.log[:0]
	m.state = Idle
}

// Rollback transitions InTransaction/Failed -> Idle, applying the undo
// log in reverse order.
func (m *Manager) Rollback() {
	m.applyUndo()
	m.state = Idle
}

// Teardown applies pending undo on session termination, whatever the
// current state — invariant I2: abrupt disconnect looks like ROLLBACK.
func (m *Manager) Teardown() {
	m.applyUndo()
	m.state = Idle
}

func (m *Manager) applyUndo() {
	for i := len(m.log) - 1; i >= 0; i-- {
		e := m.log[i]
		switch e.kind {
		case undoInsert:
			e.table.DeleteRow(e.pos)
		case undoUpdate:
			e.table.SetRow(e.pos, e.before)
		case undoDelete:
			e.table.InsertRowAt(e.pos, e.before)
		case undoCreateTable:
			e.db.DropTable(e.tabName)
		case undoDropTable:
			recreated := e.db.CreateTable(e.tabName, e.dropCols, false)
			for _, row := range e.createdT.Rows() {
				recreated.AppendRow(row)
			}
		}
	}
	m.log = m.log[:0]
}
