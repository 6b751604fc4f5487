package exec

import (
	"sort"
	"strings"

	"github.com/martinsk/mskql/internal/arena"
	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/block"
	"github.com/martinsk/mskql/internal/value"
)

// accumulator holds one aggregate's running state for one group.
type accumulator struct {
	kind      string
	count     int64
	sum       float64
	sumIsInt  bool
	sumInt    int64
	min, max  value.Value
	haveMM    bool
	strParts  []string
}

func newAccumulator(kind string) *accumulator {
	return &accumulator{kind: strings.ToUpper(kind), sumIsInt: true}
}

func (a *accumulator) add(v value.Value, isStar bool) {
	if a.kind == "COUNT" {
		if isStar || !v.IsNull() {
			a.count++
		}
		return
	}
	if v.IsNull() {
		return
	}
	a.count++
	switch a.kind {
	case "SUM", "AVG":
		if isFloaty(v.Type) {
			a.sumIsInt = false
			a.sum += v.Float64()
		} else if a.sumIsInt {
			a.sumInt += v.Int64()
			a.sum += float64(v.Int64())
		} else {
			a.sum += float64(v.Int64())
		}
	case "MIN":
		if !a.haveMM || v.Compare(a.min) < 0 {
			a.min = v
			a.haveMM = true
		}
	case "MAX":
		if !a.haveMM || v.Compare(a.max) > 0 {
			a.max = v
			a.haveMM = true
		}
	case "STRING_AGG":
		a.strParts = append(a.strParts, v.Text())
	}
}

func (a *accumulator) result() value.Value {
	switch a.kind {
	case "COUNT":
		return value.NewBigInt(a.count)
	case "SUM":
		if a.count == 0 {
			return value.Null(value.Float)
		}
		if a.sumIsInt {
			return value.NewBigInt(a.sumInt)
		}
		return value.NewFloat(a.sum)
	case "AVG":
		if a.count == 0 {
			return value.Null(value.Float)
		}
		return value.NewFloat(a.sum / float64(a.count))
	case "MIN":
		if !a.haveMM {
			return value.Null(value.Text)
		}
		return a.min
	case "MAX":
		if !a.haveMM {
			return value.Null(value.Text)
		}
		return a.max
	case "STRING_AGG":
		return value.NewText(strings.Join(a.strParts, ","))
	default:
		return value.Null(value.Text)
	}
}

// groupState is one GROUP BY bucket: the grouping key's representative
// row (for non-aggregate select items referencing grouping columns) plus
// one accumulator per aggregate select item.
type groupState struct {
	keyVals []value.Value
	sample  *rowEnv
	accs    []*accumulator
}

// executeGroup implements Group/aggregate evaluation (spec §4.4): builds
// an arena-resident hash table keyed by the grouping tuple, with one
// accumulator per aggregate; a query with no GROUP BY but an aggregate
// select item still emits exactly one row over an empty/non-empty input.
func (eng *Engine) executeGroup(sel *ast.Select, rows []materialRow, a *arena.Arena, params []value.Value) (*Result, error) {
	aggItems := collectAggregates(sel.Items)

	ht := block.NewHashTable(a, len(rows)+1)
	var groups []*groupState
	keys := make([][]value.Value, 0, len(rows))

	for _, r := range rows {
		env := r.env(params)
		keyVals := make([]value.Value, len(sel.GroupBy))
		for i, ge := range sel.GroupBy {
			v, err := eval(ge, env)
			if err != nil {
				return nil, err
			}
			keyVals[i] = v
		}

		var gs *groupState
		ht.Lookup(keyVals, func(i uint32) []value.Value { return keys[i] }, func(entry uint32) bool {
			gs = groups[entry]
			return false
		})
		if gs == nil {
			gs = &groupState{keyVals: keyVals, sample: env}
			for _, fc := range aggItems {
				gs.accs = append(gs.accs, newAccumulator(fc.Name))
			}
			entry := uint32(len(groups))
			groups = append(groups, gs)
			keys = append(keys, keyVals)
			ht.Insert(keyVals, entry, func(i uint32) []value.Value { return keys[i] })
		}
		for i, fc := range aggItems {
			if fc.Star {
				gs.accs[i].add(value.Value{}, true)
				continue
			}
			var v value.Value
			var err error
			if len(fc.Args) > 0 {
				v, err = eval(fc.Args[0], env)
				if err != nil {
					return nil, err
				}
			}
			gs.accs[i].add(v, false)
		}
	}

	if len(groups) == 0 && len(sel.GroupBy) == 0 {
		gs := &groupState{sample: &rowEnv{}}
		for _, fc := range aggItems {
			gs.accs = append(gs.accs, newAccumulator(fc.Name))
		}
		groups = append(groups, gs)
	}

	var sampleEnv *rowEnv
	if len(groups) > 0 {
		sampleEnv = groups[0].sample
	} else {
		sampleEnv = &rowEnv{}
	}
	cols := make([]ResultColumn, len(sel.Items))
	for i, it := range sel.Items {
		name := it.Alias
		if name == "" {
			name = exprDisplayName(it.Expr)
		}
		cols[i] = ResultColumn{Name: name, Type: inferType(it.Expr, sampleEnv)}
	}

	var outRows [][]value.Value
	for _, gs := range groups {
		groupEnv := &rowEnv{scopes: gs.sample.scopes, params: params}
		aggVals := make(map[*ast.FuncCall]value.Value, len(aggItems))
		for i, fc := range aggItems {
			aggVals[fc] = gs.accs[i].result()
		}
		row := make([]value.Value, len(sel.Items))
		for i, it := range sel.Items {
			v, err := evalWithAggregates(it.Expr, groupEnv, aggVals)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		if sel.Having != nil {
			hv, err := evalWithAggregates(sel.Having, groupEnv, aggVals)
			if err != nil {
				return nil, err
			}
			if hv.IsNull() || !hv.Bool() {
				continue
			}
		}
		outRows = append(outRows, row)
	}

	if len(sel.OrderBy) > 0 {
		sortGroupRows(outRows, sel.OrderBy, groups, aggItems, params)
	}
	outRows = applyLimitOffset(outRows, sel.Limit, sel.Offset)

	return &Result{Kind: KindRows, Columns: cols, Rows: outRows, Tag: tagFor("SELECT", len(outRows))}, nil
}

func collectAggregates(items []ast.SelectItem) []*ast.FuncCall {
	var out []*ast.FuncCall
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.FuncCall:
			if isAggregateName(n.Name) {
				out = append(out, n)
				return
			}
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *ast.UnaryExpr:
			walk(n.X)
		case *ast.CaseExpr:
			for _, w := range n.Whens {
				walk(w.Cond)
				walk(w.Then)
			}
			if n.Else != nil {
				walk(n.Else)
			}
		}
	}
	for _, it := range items {
		walk(it.Expr)
	}
	return out
}

// evalWithAggregates evaluates e substituting pre-computed aggregate
// results for any FuncCall node present in aggVals.
func evalWithAggregates(e ast.Expr, env *rowEnv, aggVals map[*ast.FuncCall]value.Value) (value.Value, error) {
	if fc, ok := e.(*ast.FuncCall); ok {
		if v, ok := aggVals[fc]; ok {
			return v, nil
		}
	}
	switch n := e.(type) {
	case *ast.BinaryExpr:
		l, err := evalWithAggregates(n.Left, env, aggVals)
		if err != nil {
			return value.Value{}, err
		}
		r, err := evalWithAggregates(n.Right, env, aggVals)
		if err != nil {
			return value.Value{}, err
		}
		synthetic := &ast.BinaryExpr{Op: n.Op, Left: litOf(l), Right: litOf(r)}
		return eval(synthetic, env)
	case *ast.UnaryExpr:
		x, err := evalWithAggregates(n.X, env, aggVals)
		if err != nil {
			return value.Value{}, err
		}
		return eval(&ast.UnaryExpr{Op: n.Op, X: litOf(x)}, env)
	default:
		return eval(e, env)
	}
}

// litOf wraps an already-evaluated Value as a pass-through expression
// node so evalWithAggregates can recombine partial aggregate results
// through the ordinary scalar evaluator.
func litOf(v value.Value) ast.Expr { return &valueLit{v} }

type valueLit struct{ v value.Value }

func (*valueLit) expr() {}

func sortGroupRows(rows [][]value.Value, order []ast.OrderItem, groups []*groupState, aggItems []*ast.FuncCall, params []value.Value) {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	keys := make([][]value.Value, len(rows))
	for i := range rows {
		groupEnv := &rowEnv{scopes: groups[i].sample.scopes, params: params}
		aggVals := make(map[*ast.FuncCall]value.Value, len(aggItems))
		for j, fc := range aggItems {
			aggVals[fc] = groups[i].accs[j].result()
		}
		k := make([]value.Value, len(order))
		for j, oi := range order {
			v, _ := evalWithAggregates(oi.Expr, groupEnv, aggVals)
			k[j] = v
		}
		keys[i] = k
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		for i := range ka {
			if ka[i].IsNull() || kb[i].IsNull() {
				if ka[i].IsNull() == kb[i].IsNull() {
					continue
				}
				return kb[i].IsNull()
			}
			c := ka[i].Compare(kb[i])
			if c == 0 {
				continue
			}
			if order[i].Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	tmp := make([][]value.Value, len(rows))
	for i, id := range idx {
		tmp[i] = rows[id]
	}
	copy(rows, tmp)
}
