package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/txn"
)

func newCheckConstraintEngine(t *testing.T) *Engine {
	t.Helper()
	db := schema.New("test")
	eng := New(db)

	create := &ast.CreateTable{
		Name: "accounts",
		Columns: []ast.ColumnDef{
			{Name: "id", TypeName: "INT", PrimaryKey: true},
			{Name: "balance", TypeName: "INT", Check: &ast.BinaryExpr{
				Op:   ">=",
				Left: &ast.ColumnRef{Column: "balance"},
				Right: &ast.Literal{Kind: "int", Text: "0"},
			}},
		},
	}
	_, err := eng.CreateTable(create, txn.New())
	require.NoError(t, err)
	return eng
}

func TestInsertRejectsRowViolatingCheckConstraint(t *testing.T) {
	eng := newCheckConstraintEngine(t)

	insert := &ast.Insert{
		Table:   "accounts",
		Columns: []string{"id", "balance"},
		Rows: [][]ast.Expr{
			{&ast.Literal{Kind: "int", Text: "1"}, &ast.Literal{Kind: "int", Text: "-5"}},
		},
	}
	_, err := eng.Insert(insert, txn.New(), nil)
	require.Error(t, err)
}

func TestInsertAcceptsRowSatisfyingCheckConstraint(t *testing.T) {
	eng := newCheckConstraintEngine(t)

	insert := &ast.Insert{
		Table:   "accounts",
		Columns: []string{"id", "balance"},
		Rows: [][]ast.Expr{
			{&ast.Literal{Kind: "int", Text: "1"}, &ast.Literal{Kind: "int", Text: "50"}},
		},
	}
	_, err := eng.Insert(insert, txn.New(), nil)
	require.NoError(t, err)

	tbl, ok := eng.DB.TableByName("accounts")
	require.True(t, ok)
	assert.Equal(t, 1, len(tbl.Rows()))
}

func TestUpdateRejectsRowViolatingCheckConstraint(t *testing.T) {
	eng := newCheckConstraintEngine(t)
	insert := &ast.Insert{
		Table:   "accounts",
		Columns: []string{"id", "balance"},
		Rows: [][]ast.Expr{
			{&ast.Literal{Kind: "int", Text: "1"}, &ast.Literal{Kind: "int", Text: "50"}},
		},
	}
	_, err := eng.Insert(insert, txn.New(), nil)
	require.NoError(t, err)

	update := &ast.Update{
		Table: "accounts",
		Set: []ast.Assignment{
			{Column: "balance", Value: &ast.Literal{Kind: "int", Text: "-1"}},
		},
	}
	_, err = eng.Update(update, txn.New(), nil)
	require.Error(t, err)
}

func TestCheckConstraintDisplayTextAppearsInCatalog(t *testing.T) {
	eng := newCheckConstraintEngine(t)
	tbl, ok := eng.DB.TableByName("accounts")
	require.True(t, ok)
	col, ok := tbl.ColumnByName("balance")
	require.True(t, ok)
	assert.Equal(t, "(balance >= 0)", col.Check)
	assert.NotNil(t, col.CheckExpr)
}
