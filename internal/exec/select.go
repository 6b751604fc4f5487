package exec

import (
	"sort"
	"strings"

	"github.com/martinsk/mskql/internal/arena"
	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/block"
	"github.com/martinsk/mskql/internal/catalog"
	"github.com/martinsk/mskql/internal/errs"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/value"
)

// materialRow is one fully-resolved row of scopes flowing through the
// SELECT pipeline; blocks of up to block.Capacity rows are grouped for
// batch predicate evaluation but the pipeline itself streams rows
// between stages in insertion order, as scan/project/join/group/sort
// operate over the session arena's row blocks.
type materialRow struct {
	scopes []scope
}

func (r materialRow) env(params []value.Value) *rowEnv {
	return &rowEnv{scopes: r.scopes, params: params}
}

// Select executes a SELECT statement, per spec §4.4's Scan/Project/
// Join/Group/Sort/Distinct pipeline.
func (eng *Engine) Select(sel *ast.Select, a *arena.Arena, params []value.Value) (*Result, error) {
	if sel.From != "" && catalog.IsMirrorName(catalog.ResolveName(sel.From)) {
		eng.DB.WriteLock.Lock()
		catalog.Rebuild(eng.DB)
		eng.DB.WriteLock.Unlock()
	}

	rows, err := eng.scanFrom(sel, a)
	if err != nil {
		return nil, err
	}

	if sel.Where != nil {
		rows, err = filterRows(rows, sel.Where, params, a)
		if err != nil {
			return nil, err
		}
	}

	hasAgg := len(sel.GroupBy) > 0 || selectHasAggregate(sel.Items)
	if hasAgg {
		return eng.executeGroup(sel, rows, a, params)
	}

	cols, projected, err := projectRows(rows, sel.Items, params, a)
	if err != nil {
		return nil, err
	}

	if sel.Distinct {
		projected = distinctRows(projected, a)
	}

	if len(sel.OrderBy) > 0 {
		if err := sortRows(projected, cols, sel.OrderBy, rows, params); err != nil {
			return nil, err
		}
	}

	projected = applyLimitOffset(projected, sel.Limit, sel.Offset)

	return &Result{
		Kind:    KindRows,
		Columns: cols,
		Rows:    projected,
		Tag:     tagFor("SELECT", len(projected)),
	}, nil
}

func tagFor(verb string, n int) string {
	return verb + " " + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func tableScope(t *schema.Table, alias string) scope {
	cols := make([]ResultColumn, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ResultColumn{Name: c.Name, Type: c.Type}
	}
	if alias == "" {
		alias = t.Name
	}
	return scope{alias: alias, cols: cols}
}

func (eng *Engine) scanFrom(sel *ast.Select, a *arena.Arena) ([]materialRow, error) {
	if sel.From == "" {
		return []materialRow{{}}, nil
	}
	baseName := catalog.ResolveName(sel.From)
	t, ok := eng.DB.TableByName(baseName)
	if !ok {
		return nil, errs.New(errs.KindUndefinedObject, "relation %q does not exist", sel.From)
	}
	baseScopeTmpl := tableScope(t, sel.FromAlias)

	rows := make([]materialRow, 0, t.RowCount())
	for _, r := range t.Rows() {
		s := baseScopeTmpl
		s.vals = r
		rows = append(rows, materialRow{scopes: []scope{s}})
	}

	for _, jc := range sel.Joins {
		var err error
		rows, err = eng.applyJoin(rows, jc, a)
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// nullLeftTemplate builds NULL-valued scopes shaped like the left side,
// for RIGHT/FULL OUTER JOIN rows with no matching left row.
func nullLeftTemplate(left []materialRow) []scope {
	if len(left) == 0 {
		return nil
	}
	tmpl := left[0].scopes
	out := make([]scope, len(tmpl))
	for i, s := range tmpl {
		out[i] = scope{alias: s.alias, cols: s.cols, vals: nullValues(s.cols)}
	}
	return out
}

func nullValues(cols []ResultColumn) []value.Value {
	vals := make([]value.Value, len(cols))
	for i, c := range cols {
		vals[i] = value.Null(c.Type)
	}
	return vals
}

// evalBoolTri evaluates a predicate to a Go bool under three-valued
// logic: only TRUE counts, both FALSE and UNKNOWN are treated as "no
// match" — the WHERE-clause and join-condition contract from §4.2.
func evalBoolTri(e ast.Expr, env *rowEnv) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := eval(e, env)
	if err != nil {
		return false, err
	}
	return !v.IsNull() && v.Bool(), nil
}

// filterRows applies a predicate over rows in block.Capacity-sized row
// blocks: each chunk's flattened columns are loaded into a block.Block,
// the predicate is evaluated per row, and matches are recorded in the
// block's selection vector before being read back out. This is Scan's
// Apply-a-predicate step from §4.2/§4.4: a selection vector shrinks the
// active set without copying column data.
func filterRows(rows []materialRow, pred ast.Expr, params []value.Value, a *arena.Arena) ([]materialRow, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	colTypes := blockColumnTypes(rows[0])
	out := rows[:0]
	for start := 0; start < len(rows); start += block.Capacity {
		end := start + block.Capacity
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		blk := block.New(colTypes)
		blk.Count = uint16(len(chunk))
		for _, c := range blk.Cols {
			c.Count = blk.Count
		}
		for i, r := range chunk {
			_, vals := r.env(nil).allColumns("")
			for ci, v := range vals {
				blk.Cols[ci].Set(uint16(i), v)
			}
		}

		sel := block.AllocSelection(a, len(chunk))
		for i, r := range chunk {
			ok, err := evalBoolTri(pred, r.env(params))
			if err != nil {
				return nil, err
			}
			if ok {
				sel = append(sel, uint32(i))
			}
		}
		blk.Sel = sel
		blk.SelCount = uint16(len(sel))

		for i := uint16(0); i < blk.ActiveCount(); i++ {
			out = append(out, chunk[blk.RowIdx(i)])
		}
	}
	return out, nil
}

// blockColumnTypes derives the flattened column types for r's scopes, for
// constructing a block.Block that mirrors a materialRow's shape.
func blockColumnTypes(r materialRow) []value.Type {
	cols, _ := r.env(nil).allColumns("")
	types := make([]value.Type, len(cols))
	for i, c := range cols {
		types[i] = c.Type
	}
	return types
}

func selectHasAggregate(items []ast.SelectItem) bool {
	for _, it := range items {
		if exprHasAggregate(it.Expr) {
			return true
		}
	}
	return false
}

func exprHasAggregate(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.FuncCall:
		if isAggregateName(n.Name) {
			return true
		}
		for _, a := range n.Args {
			if exprHasAggregate(a) {
				return true
			}
		}
	case *ast.BinaryExpr:
		return exprHasAggregate(n.Left) || exprHasAggregate(n.Right)
	case *ast.UnaryExpr:
		return exprHasAggregate(n.X)
	case *ast.CaseExpr:
		for _, w := range n.Whens {
			if exprHasAggregate(w.Cond) || exprHasAggregate(w.Then) {
				return true
			}
		}
		if n.Else != nil {
			return exprHasAggregate(n.Else)
		}
	}
	return false
}

func isAggregateName(name string) bool {
	switch strings.ToUpper(name) {
	case "COUNT", "SUM", "AVG", "MIN", "MAX", "STRING_AGG":
		return true
	}
	return false
}

// projectRows produces the projected output a row block at a time: each
// block.Capacity-sized chunk of source rows is evaluated into a fresh
// block.Block shaped like the output columns (Project's "new row blocks
// whose columns are the evaluated expressions"), then read back out into
// the flat [][]value.Value shape the downstream group/sort/distinct/wire
// stages expect.
func projectRows(rows []materialRow, items []ast.SelectItem, params []value.Value, a *arena.Arena) ([]ResultColumn, [][]value.Value, error) {
	cols, err := projectColumns(rows, items)
	if err != nil {
		return nil, nil, err
	}
	colTypes := make([]value.Type, len(cols))
	for i, c := range cols {
		colTypes[i] = c.Type
	}

	out := make([][]value.Value, 0, len(rows))
	for start := 0; start < len(rows); start += block.Capacity {
		end := start + block.Capacity
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		blk := block.New(colTypes)
		blk.Count = uint16(len(chunk))
		for _, c := range blk.Cols {
			c.Count = blk.Count
		}
		for i, r := range chunk {
			vals, err := projectOne(items, r.env(params))
			if err != nil {
				return nil, nil, err
			}
			for ci, v := range vals {
				blk.Cols[ci].Set(uint16(i), v)
			}
		}

		for i := uint16(0); i < blk.Count; i++ {
			row := make([]value.Value, len(blk.Cols))
			for ci, c := range blk.Cols {
				row[ci] = c.Get(i)
			}
			out = append(out, row)
		}
	}
	return cols, out, nil
}

func projectColumns(rows []materialRow, items []ast.SelectItem) ([]ResultColumn, error) {
	var sampleEnv *rowEnv
	if len(rows) > 0 {
		sampleEnv = rows[0].env(nil)
	} else {
		sampleEnv = &rowEnv{}
	}
	var cols []ResultColumn
	for _, it := range items {
		switch n := it.Expr.(type) {
		case *ast.Star:
			c, _ := sampleEnv.allColumns(n.Table)
			cols = append(cols, c...)
		default:
			name := it.Alias
			if name == "" {
				name = exprDisplayName(it.Expr)
			}
			cols = append(cols, ResultColumn{Name: name, Type: inferType(it.Expr, sampleEnv)})
		}
	}
	return cols, nil
}

// resolveScopeColumnType looks up col's declared schema type among
// sampleEnv's scopes, for RowDescription/Describe accuracy on bare column
// references.
func resolveScopeColumnType(table, col string, env *rowEnv) (value.Type, bool) {
	for _, s := range env.scopes {
		if table != "" && !strings.EqualFold(s.alias, table) {
			continue
		}
		for _, c := range s.cols {
			if strings.EqualFold(c.Name, col) {
				return c.Type, true
			}
		}
	}
	return value.Text, false
}

func exprDisplayName(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.ColumnRef:
		return n.Column
	case *ast.FuncCall:
		return strings.ToLower(n.Name)
	default:
		return "?column?"
	}
}

func inferType(e ast.Expr, env *rowEnv) value.Type {
	switch n := e.(type) {
	case *ast.ColumnRef:
		if t, ok := resolveScopeColumnType(n.Table, n.Column, env); ok {
			return t
		}
		return value.Text
	case *ast.FuncCall:
		switch strings.ToUpper(n.Name) {
		case "COUNT":
			return value.BigInt
		case "SUM", "AVG":
			return value.Float
		default:
			return value.Text
		}
	default:
		return value.Text
	}
}

func projectOne(items []ast.SelectItem, env *rowEnv) ([]value.Value, error) {
	var out []value.Value
	for _, it := range items {
		if star, ok := it.Expr.(*ast.Star); ok {
			_, vals := env.allColumns(star.Table)
			out = append(out, vals...)
			continue
		}
		v, err := eval(it.Expr, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func distinctRows(rows [][]value.Value, a *arena.Arena) [][]value.Value {
	ht := block.NewHashTable(a, len(rows))
	keys := make([][]value.Value, 0, len(rows))
	var out [][]value.Value
	for _, r := range rows {
		found := false
		ht.Lookup(r, func(i uint32) []value.Value { return keys[i] }, func(uint32) bool {
			found = true
			return false
		})
		if !found {
			entry := uint32(len(keys))
			keys = append(keys, r)
			ht.Insert(r, entry, func(i uint32) []value.Value { return keys[i] })
			out = append(out, r)
		}
	}
	return out
}

func sortRows(rows [][]value.Value, cols []ResultColumn, order []ast.OrderItem, srcRows []materialRow, params []value.Value) error {
	// Each ORDER BY key is evaluated against the source row at the same
	// index (its full scope set). Output column aliases and ordinal
	// positions are not resolved.
	type key struct {
		vals []value.Value
		desc []bool
		null []string
	}
	n := len(rows)
	keys := make([]key, n)
	for i := range rows {
		k := key{}
		var env *rowEnv
		if i < len(srcRows) {
			env = srcRows[i].env(params)
		} else {
			env = &rowEnv{}
		}
		for _, oi := range order {
			v, err := eval(oi.Expr, env)
			if err != nil {
				return err
			}
			k.vals = append(k.vals, v)
			k.desc = append(k.desc, oi.Desc)
			k.null = append(k.null, oi.Nulls)
		}
		keys[i] = k
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		for i := range ka.vals {
			va, vb := ka.vals[i], kb.vals[i]
			if va.IsNull() || vb.IsNull() {
				if va.IsNull() && vb.IsNull() {
					continue
				}
				nullsFirst := !ka.desc[i]
				if ka.null[i] == "first" {
					nullsFirst = true
				} else if ka.null[i] == "last" {
					nullsFirst = false
				} else if ka.desc[i] {
					nullsFirst = true
				} else {
					nullsFirst = false
				}
				if va.IsNull() {
					return nullsFirst
				}
				return !nullsFirst
			}
			c := va.Compare(vb)
			if c == 0 {
				continue
			}
			if ka.desc[i] {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	tmp := make([][]value.Value, n)
	for i, id := range idx {
		tmp[i] = rows[id]
	}
	copy(rows, tmp)
	return nil
}

func applyLimitOffset(rows [][]value.Value, limit, offset *int64) [][]value.Value {
	start := 0
	if offset != nil && *offset > 0 {
		start = int(*offset)
		if start > len(rows) {
			start = len(rows)
		}
	}
	rows = rows[start:]
	if limit != nil && *limit >= 0 && int(*limit) < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}
