package exec

import (
	"strings"

	"github.com/martinsk/mskql/internal/arena"
	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/block"
	"github.com/martinsk/mskql/internal/catalog"
	"github.com/martinsk/mskql/internal/errs"
	"github.com/martinsk/mskql/internal/value"
)

// applyJoin implements Join(left, right, equi-keys, join-kind): build a hash
// table over one side and probe it with the other. LEFT/SEMI/ANTI hash the
// right side, RIGHT hashes the left side, and INNER/FULL hash whichever side
// has fewer rows. The join condition is split
// into equi-key pairs plus a residual predicate; when no equi-key can be
// extracted (e.g. a purely range/inequality condition), it falls back to a
// nested-loop scan, which stays correct for any condition shape.
func (eng *Engine) applyJoin(left []materialRow, jc ast.JoinClause, a *arena.Arena) ([]materialRow, error) {
	rt, ok := eng.DB.TableByName(catalog.ResolveName(jc.Table))
	if !ok {
		return nil, errs.New(errs.KindUndefinedObject, "relation %q does not exist", jc.Table)
	}
	rightScopeTmpl := tableScope(rt, jc.Alias)
	rightRows := rt.Rows()
	rightNullRow := scope{alias: rightScopeTmpl.alias, cols: rightScopeTmpl.cols, vals: nullValues(rightScopeTmpl.cols)}

	leftKeys, rightKeys, residual := splitJoinCondition(jc.On, rightScopeTmpl.alias)
	if len(leftKeys) == 0 {
		return nestedLoopJoin(left, jc, rightScopeTmpl, rightRows, rightNullRow)
	}

	evalLeftKey := func(li int) ([]value.Value, error) {
		env := left[li].env(nil)
		out := make([]value.Value, len(leftKeys))
		for i, ke := range leftKeys {
			v, err := eval(ke, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	evalRightKey := func(ri int) ([]value.Value, error) {
		rs := rightScopeTmpl
		rs.vals = rightRows[ri]
		env := &rowEnv{scopes: []scope{rs}}
		out := make([]value.Value, len(rightKeys))
		for i, ke := range rightKeys {
			v, err := eval(ke, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	combine := func(li, ri int) materialRow {
		rs := rightScopeTmpl
		rs.vals = rightRows[ri]
		return materialRow{scopes: append(append([]scope{}, left[li].scopes...), rs)}
	}
	checkResidual := func(row materialRow) (bool, error) {
		if residual == nil {
			return true, nil
		}
		return evalBoolTri(residual, row.env(nil))
	}

	// RIGHT OUTER must preserve the right side, so it hashes left and
	// probes right; LEFT/SEMI/ANTI hash right and probe left. INNER and
	// FULL OUTER hash whichever side has fewer rows (FULL OUTER needs both
	// sides' unmatched rows regardless of which side is hashed).
	hashRight := jc.Kind != ast.JoinRight
	if (jc.Kind == ast.JoinFull || jc.Kind == ast.JoinInner) && len(rightRows) > len(left) {
		hashRight = false
	}

	matchedLeft := make([]bool, len(left))
	matchedRightAny := make([]bool, len(rightRows))
	var out []materialRow

	if hashRight {
		ht := block.NewHashTable(a, len(rightRows)+1)
		rkeys := make([][]value.Value, len(rightRows))
		for ri := range rightRows {
			k, err := evalRightKey(ri)
			if err != nil {
				return nil, err
			}
			rkeys[ri] = k
			ht.Insert(k, uint32(ri), func(i uint32) []value.Value { return rkeys[i] })
		}

		for li := range left {
			lk, err := evalLeftKey(li)
			if err != nil {
				return nil, err
			}
			anyMatch := false
			semiEmitted := false
			var visitErr error
			ht.Lookup(lk, func(i uint32) []value.Value { return rkeys[i] }, func(entry uint32) bool {
				ri := int(entry)
				combined := combine(li, ri)
				ok, err := checkResidual(combined)
				if err != nil {
					visitErr = err
					return false
				}
				if !ok {
					return true
				}
				anyMatch = true
				matchedRightAny[ri] = true
				switch jc.Kind {
				case ast.JoinSemi:
					if !semiEmitted {
						out = append(out, left[li])
						semiEmitted = true
					}
				case ast.JoinAnti:
					// unmatched-left emission happens below
				default:
					out = append(out, combined)
				}
				return true
			})
			if visitErr != nil {
				return nil, visitErr
			}
			matchedLeft[li] = anyMatch
			if !anyMatch {
				switch jc.Kind {
				case ast.JoinLeft, ast.JoinFull:
					out = append(out, materialRow{scopes: append(append([]scope{}, left[li].scopes...), rightNullRow)})
				case ast.JoinAnti:
					out = append(out, left[li])
				}
			}
		}

		if jc.Kind == ast.JoinFull {
			leftColsTmpl := nullLeftTemplate(left)
			for ri, rrow := range rightRows {
				if matchedRightAny[ri] {
					continue
				}
				rs := rightScopeTmpl
				rs.vals = rrow
				out = append(out, materialRow{scopes: append(append([]scope{}, leftColsTmpl...), rs)})
			}
		}
		return out, nil
	}

	ht := block.NewHashTable(a, len(left)+1)
	lkeys := make([][]value.Value, len(left))
	for li := range left {
		k, err := evalLeftKey(li)
		if err != nil {
			return nil, err
		}
		lkeys[li] = k
		ht.Insert(k, uint32(li), func(i uint32) []value.Value { return lkeys[i] })
	}

	leftColsTmpl := nullLeftTemplate(left)
	for ri, rrow := range rightRows {
		rk, err := evalRightKey(ri)
		if err != nil {
			return nil, err
		}
		anyMatch := false
		var visitErr error
		ht.Lookup(rk, func(i uint32) []value.Value { return lkeys[i] }, func(entry uint32) bool {
			li := int(entry)
			combined := combine(li, ri)
			ok, err := checkResidual(combined)
			if err != nil {
				visitErr = err
				return false
			}
			if !ok {
				return true
			}
			anyMatch = true
			matchedLeft[li] = true
			out = append(out, combined)
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		matchedRightAny[ri] = anyMatch
		if !anyMatch && (jc.Kind == ast.JoinRight || jc.Kind == ast.JoinFull) {
			rs := rightScopeTmpl
			rs.vals = rrow
			out = append(out, materialRow{scopes: append(append([]scope{}, leftColsTmpl...), rs)})
		}
	}

	if jc.Kind == ast.JoinFull {
		for li := range left {
			if matchedLeft[li] {
				continue
			}
			out = append(out, materialRow{scopes: append(append([]scope{}, left[li].scopes...), rightNullRow)})
		}
	}
	return out, nil
}

// nestedLoopJoin evaluates jc.On against every (left, right) candidate pair.
// It is the fallback for join conditions splitJoinCondition cannot reduce to
// an equi-key (range predicates, disjunctions across the join boundary, ...).
func nestedLoopJoin(left []materialRow, jc ast.JoinClause, rightScopeTmpl scope, rightRows [][]value.Value, rightNullRow scope) ([]materialRow, error) {
	var out []materialRow
	matchedRightAny := make([]bool, len(rightRows))

	for _, lrow := range left {
		anyMatch := false
		semiEmitted := false
		for ri, rrow := range rightRows {
			rs := rightScopeTmpl
			rs.vals = rrow
			combined := materialRow{scopes: append(append([]scope{}, lrow.scopes...), rs)}
			ok, err := evalBoolTri(jc.On, combined.env(nil))
			if err != nil {
				return nil, err
			}
			if ok {
				anyMatch = true
				matchedRightAny[ri] = true
				switch jc.Kind {
				case ast.JoinSemi:
					if !semiEmitted {
						out = append(out, lrow)
						semiEmitted = true
					}
				case ast.JoinAnti:
					// unmatched-left emission happens below
				default:
					out = append(out, combined)
				}
			}
		}
		if !anyMatch {
			switch jc.Kind {
			case ast.JoinLeft, ast.JoinFull:
				out = append(out, materialRow{scopes: append(append([]scope{}, lrow.scopes...), rightNullRow)})
			case ast.JoinAnti:
				out = append(out, lrow)
			}
		}
	}

	if jc.Kind == ast.JoinRight || jc.Kind == ast.JoinFull {
		leftColsTmpl := nullLeftTemplate(left)
		for ri, rrow := range rightRows {
			if matchedRightAny[ri] {
				continue
			}
			rs := rightScopeTmpl
			rs.vals = rrow
			out = append(out, materialRow{scopes: append(append([]scope{}, leftColsTmpl...), rs)})
		}
	}
	return out, nil
}

// splitJoinCondition decomposes a join's ON clause into equi-key pairs (one
// expression per side, evaluated against the left row and the right row
// respectively) plus a residual predicate for whatever doesn't reduce to a
// clean equi-key. Only top-level AND conjuncts are considered; an equality
// conjunct becomes a key pair when exactly one side references rightAlias
// and the other side doesn't reference it at all. Everything else — the
// join has no AND-decomposable equality, an OR, a range comparison — folds
// into the residual, so the result is always safe to evaluate even when no
// keys are found.
func splitJoinCondition(on ast.Expr, rightAlias string) (leftKeys, rightKeys []ast.Expr, residual ast.Expr) {
	for _, conj := range andConjuncts(on) {
		be, ok := conj.(*ast.BinaryExpr)
		if !ok || be.Op != "=" {
			residual = andExpr(residual, conj)
			continue
		}
		leftRefsRight := referencesAlias(be.Left, rightAlias)
		rightRefsRight := referencesAlias(be.Right, rightAlias)
		switch {
		case rightRefsRight && !leftRefsRight:
			leftKeys = append(leftKeys, be.Left)
			rightKeys = append(rightKeys, be.Right)
		case leftRefsRight && !rightRefsRight:
			leftKeys = append(leftKeys, be.Right)
			rightKeys = append(rightKeys, be.Left)
		default:
			residual = andExpr(residual, conj)
		}
	}
	return leftKeys, rightKeys, residual
}

// andConjuncts flattens a top-level chain of AND expressions into its leaves.
func andConjuncts(e ast.Expr) []ast.Expr {
	if e == nil {
		return nil
	}
	be, ok := e.(*ast.BinaryExpr)
	if !ok || be.Op != "and" {
		return []ast.Expr{e}
	}
	return append(andConjuncts(be.Left), andConjuncts(be.Right)...)
}

func andExpr(a, b ast.Expr) ast.Expr {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &ast.BinaryExpr{Op: "and", Left: a, Right: b}
}

// referencesAlias reports whether e contains a ColumnRef qualified to alias,
// or an unqualified ColumnRef (conservatively assumed to possibly resolve to
// alias, since splitJoinCondition only has the alias name to go on).
func referencesAlias(e ast.Expr, alias string) bool {
	switch n := e.(type) {
	case *ast.ColumnRef:
		return n.Table == "" || strings.EqualFold(n.Table, alias)
	case *ast.UnaryExpr:
		return referencesAlias(n.X, alias)
	case *ast.BinaryExpr:
		return referencesAlias(n.Left, alias) || referencesAlias(n.Right, alias)
	case *ast.FuncCall:
		for _, arg := range n.Args {
			if referencesAlias(arg, alias) {
				return true
			}
		}
		return false
	case *ast.CaseExpr:
		if n.Operand != nil && referencesAlias(n.Operand, alias) {
			return true
		}
		for _, w := range n.Whens {
			if referencesAlias(w.Cond, alias) || referencesAlias(w.Then, alias) {
				return true
			}
		}
		if n.Else != nil {
			return referencesAlias(n.Else, alias)
		}
		return false
	default:
		return false
	}
}
