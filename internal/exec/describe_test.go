package exec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/value"
)

func newTestEngine() (*Engine, *schema.Database) {
	db := schema.New("test")
	db.CreateTable("widgets", []schema.Column{
		{Name: "id", Type: value.Int, PrimaryKey: true},
		{Name: "name", Type: value.Text},
	}, false)
	return New(db), db
}

func TestDescribeSelectColumns(t *testing.T) {
	eng, _ := newTestEngine()

	sel := &ast.Select{
		Items: []ast.SelectItem{
			{Expr: &ast.ColumnRef{Column: "id"}},
			{Expr: &ast.ColumnRef{Column: "name"}, Alias: "widget_name"},
		},
		From: "widgets",
	}

	cols, err := eng.DescribeSelect(sel)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	require.Equal(t, "id", cols[0].Name)
	require.Equal(t, value.Int, cols[0].Type)
	require.Equal(t, "widget_name", cols[1].Name)
	require.Equal(t, value.Text, cols[1].Type)
}

func TestDescribeSelectStarExpansion(t *testing.T) {
	eng, _ := newTestEngine()

	sel := &ast.Select{
		Items: []ast.SelectItem{{Expr: &ast.Star{}}},
		From:  "widgets",
	}

	cols, err := eng.DescribeSelect(sel)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	require.Equal(t, "id", cols[0].Name)
	require.Equal(t, "name", cols[1].Name)
}

func TestDescribeSelectUnknownTable(t *testing.T) {
	eng, _ := newTestEngine()

	sel := &ast.Select{
		Items: []ast.SelectItem{{Expr: &ast.Star{}}},
		From:  "does_not_exist",
	}

	_, err := eng.DescribeSelect(sel)
	require.Error(t, err)
}
