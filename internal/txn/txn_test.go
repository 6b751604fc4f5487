package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/value"
)

func TestStatusByteReflectsState(t *testing.T) {
	m := New()
	assert.Equal(t, byte('I'), m.State().StatusByte())

	require.NoError(t, m.Begin())
	assert.Equal(t, byte('T'), m.State().StatusByte())

	m.MarkFailed(true)
	assert.Equal(t, byte('E'), m.State().StatusByte())
}

func TestBeginRejectsNestedTransaction(t *testing.T) {
	m := New()
	require.NoError(t, m.Begin())
	assert.Error(t, m.Begin())
}

func TestRollbackInIdleStateIsNoop(t *testing.T) {
	m := New()
	m.Rollback()
	assert.Equal(t, Idle, m.State())
}

func TestImplicitFailureRollsBackWithoutExplicitBegin(t *testing.T) {
	db := schema.New("test")
	tbl := db.CreateTable("widgets", []schema.Column{{Name: "id", Type: value.Int}}, false)

	m := New()
	m.EnsureImplicit()
	pos := tbl.AppendRow([]value.Value{value.NewInt(int32(1))})
	m.RecordInsert(tbl, pos)

	// An implicit (non-explicit) statement failure undoes the insert
	// immediately and returns to Idle, rather than entering Failed.
	m.MarkFailed(false)

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, 0, tbl.RowCount())
}

func TestExplicitTransactionUndoOnRollback(t *testing.T) {
	db := schema.New("test")
	tbl := db.CreateTable("widgets", []schema.Column{{Name: "id", Type: value.Int}}, false)

	m := New()
	require.NoError(t, m.Begin())
	pos := tbl.AppendRow([]value.Value{value.NewInt(int32(1))})
	m.RecordInsert(tbl, pos)

	m.Rollback()

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, 0, tbl.RowCount())
}
