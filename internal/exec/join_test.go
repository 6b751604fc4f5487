package exec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/arena"
	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/value"
)

func newJoinTestEngine() *Engine {
	db := schema.New("test")
	customers := db.CreateTable("customers", []schema.Column{
		{Name: "id", Type: value.Int, PrimaryKey: true},
		{Name: "name", Type: value.Text},
	}, false)
	customers.AppendRow([]value.Value{value.NewInt(1), value.NewText("ana")})
	customers.AppendRow([]value.Value{value.NewInt(2), value.NewText("bo")})
	customers.AppendRow([]value.Value{value.NewInt(3), value.NewText("cy")})

	orders := db.CreateTable("orders", []schema.Column{
		{Name: "id", Type: value.Int, PrimaryKey: true},
		{Name: "customer_id", Type: value.Int},
	}, false)
	orders.AppendRow([]value.Value{value.NewInt(10), value.NewInt(1)})
	orders.AppendRow([]value.Value{value.NewInt(11), value.NewInt(1)})
	orders.AppendRow([]value.Value{value.NewInt(12), value.NewInt(2)})

	return New(db)
}

func equiJoinOn(leftAlias, rightAlias string) ast.Expr {
	return &ast.BinaryExpr{
		Op:   "=",
		Left: &ast.ColumnRef{Table: leftAlias, Column: "id"},
		Right: &ast.ColumnRef{
			Table:  rightAlias,
			Column: "customer_id",
		},
	}
}

func TestInnerJoinHashBuildsOnRightAndProbesWithLeft(t *testing.T) {
	eng := newJoinTestEngine()
	a := arena.New(0)

	sel := &ast.Select{
		Items: []ast.SelectItem{{Expr: &ast.Star{}}},
		From:  "customers",
		Joins: []ast.JoinClause{
			{Kind: ast.JoinInner, Table: "orders", Alias: "orders", On: equiJoinOn("customers", "orders")},
		},
	}
	res, err := eng.Select(sel, a, nil)
	require.NoError(t, err)
	require.Equal(t, 3, len(res.Rows)) // ana x2 orders, bo x1 order
}

func TestLeftJoinPreservesUnmatchedLeftRows(t *testing.T) {
	eng := newJoinTestEngine()
	a := arena.New(0)

	sel := &ast.Select{
		Items: []ast.SelectItem{{Expr: &ast.Star{}}},
		From:  "customers",
		Joins: []ast.JoinClause{
			{Kind: ast.JoinLeft, Table: "orders", Alias: "orders", On: equiJoinOn("customers", "orders")},
		},
	}
	res, err := eng.Select(sel, a, nil)
	require.NoError(t, err)
	// ana (2 orders) + bo (1 order) + cy (no orders, NULL-padded) == 4
	require.Equal(t, 4, len(res.Rows))
}

func TestRightJoinHashesLeftAndProbesWithRight(t *testing.T) {
	eng := newJoinTestEngine()
	a := arena.New(0)

	sel := &ast.Select{
		Items: []ast.SelectItem{{Expr: &ast.Star{}}},
		From:  "customers",
		Joins: []ast.JoinClause{
			{Kind: ast.JoinRight, Table: "orders", Alias: "orders", On: equiJoinOn("customers", "orders")},
		},
	}
	res, err := eng.Select(sel, a, nil)
	require.NoError(t, err)
	require.Equal(t, 3, len(res.Rows))
}

func TestSemiJoinEmitsEachLeftRowAtMostOnce(t *testing.T) {
	eng := newJoinTestEngine()
	a := arena.New(0)

	sel := &ast.Select{
		Items: []ast.SelectItem{{Expr: &ast.ColumnRef{Table: "customers", Column: "name"}}},
		From:  "customers",
		Joins: []ast.JoinClause{
			{Kind: ast.JoinSemi, Table: "orders", Alias: "orders", On: equiJoinOn("customers", "orders")},
		},
	}
	res, err := eng.Select(sel, a, nil)
	require.NoError(t, err)
	require.Equal(t, 2, len(res.Rows)) // ana, bo — each once despite ana having 2 orders
}

func TestJoinWithNonEquiConditionFallsBackToNestedLoop(t *testing.T) {
	eng := newJoinTestEngine()
	a := arena.New(0)

	sel := &ast.Select{
		Items: []ast.SelectItem{{Expr: &ast.Star{}}},
		From:  "customers",
		Joins: []ast.JoinClause{
			{Kind: ast.JoinInner, Table: "orders", Alias: "orders", On: &ast.BinaryExpr{
				Op:    ">",
				Left:  &ast.ColumnRef{Table: "orders", Column: "customer_id"},
				Right: &ast.Literal{Kind: "int", Text: "0"},
			}},
		},
	}
	res, err := eng.Select(sel, a, nil)
	require.NoError(t, err)
	require.Equal(t, 9, len(res.Rows)) // cross product: 3 customers x 3 orders
}
