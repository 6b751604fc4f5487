package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/martinsk/mskql/internal/ast"
)

func TestCountParamsInsert(t *testing.T) {
	stmt := &ast.Insert{
		Table:   "widgets",
		Columns: []string{"id", "name"},
		Rows: [][]ast.Expr{
			{&ast.Literal{Kind: "param", Num: 1}, &ast.Literal{Kind: "param", Num: 2}},
		},
	}
	assert.Equal(t, 2, countParams(stmt))
}

func TestCountParamsSelectWhereAndHaving(t *testing.T) {
	stmt := &ast.Select{
		Items: []ast.SelectItem{{Expr: &ast.ColumnRef{Column: "id"}}},
		From:  "widgets",
		Where: &ast.BinaryExpr{
			Op:    "=",
			Left:  &ast.ColumnRef{Column: "id"},
			Right: &ast.Literal{Kind: "param", Num: 1},
		},
		Having: &ast.BinaryExpr{
			Op:    ">",
			Left:  &ast.FuncCall{Name: "COUNT", Star: true},
			Right: &ast.Literal{Kind: "param", Num: 3},
		},
	}
	assert.Equal(t, 3, countParams(stmt))
}

func TestCountParamsNoParams(t *testing.T) {
	stmt := &ast.Delete{Table: "widgets"}
	assert.Equal(t, 0, countParams(stmt))
}
