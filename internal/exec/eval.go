package exec

import (
	"strconv"
	"strings"

	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/errs"
	"github.com/martinsk/mskql/internal/value"
)

// scope is one named relation (a table or its alias) contributing columns
// to the row currently being evaluated.
type scope struct {
	alias string
	cols  []ResultColumn
	vals  []value.Value
}

// rowEnv resolves ColumnRef/Star lookups against the relations active for
// the row under evaluation — a base table, or the left+right sides of a
// join.
type rowEnv struct {
	scopes []scope
	params []value.Value
}

func (e *rowEnv) resolve(table, col string) (value.Value, error) {
	for _, s := range e.scopes {
		if table != "" && !strings.EqualFold(s.alias, table) {
			continue
		}
		for i, c := range s.cols {
			if strings.EqualFold(c.Name, col) {
				return s.vals[i], nil
			}
		}
	}
	return value.Value{}, errs.New(errs.KindUndefinedObject, "column %q does not exist", col)
}

// allColumns flattens every scope's columns/values in scope order, for
// `SELECT *` and `table.*`.
func (e *rowEnv) allColumns(onlyTable string) ([]ResultColumn, []value.Value) {
	var cols []ResultColumn
	var vals []value.Value
	for _, s := range e.scopes {
		if onlyTable != "" && !strings.EqualFold(s.alias, onlyTable) {
			continue
		}
		cols = append(cols, s.cols...)
		vals = append(vals, s.vals...)
	}
	return cols, vals
}

// eval evaluates an expression to a scalar Value. Booleans use value.Bool
// with Null=true representing SQL's UNKNOWN truth value.
func eval(e ast.Expr, env *rowEnv) (value.Value, error) {
	switch n := e.(type) {
	case *valueLit:
		return n.v, nil
	case *ast.Literal:
		return evalLiteral(n, env)
	case *ast.ColumnRef:
		return env.resolve(n.Table, n.Column)
	case *ast.Star:
		return value.Value{}, errs.New(errs.KindFeatureNotSupported, "* is only valid in a select list")
	case *ast.UnaryExpr:
		return evalUnary(n, env)
	case *ast.BinaryExpr:
		return evalBinary(n, env)
	case *ast.FuncCall:
		return value.Value{}, errs.New(errs.KindFeatureNotSupported, "aggregate/function %s is not valid in this context", n.Name)
	case *ast.CaseExpr:
		return evalCase(n, env)
	default:
		return value.Value{}, errs.New(errs.KindFeatureNotSupported, "unsupported expression")
	}
}

func evalLiteral(n *ast.Literal, env *rowEnv) (value.Value, error) {
	switch n.Kind {
	case "int":
		iv, err := strconv.ParseInt(n.Text, 10, 64)
		if err != nil {
			return value.Value{}, errs.New(errs.KindSyntax, "invalid integer literal %q", n.Text)
		}
		return value.NewBigInt(iv), nil
	case "float":
		fv, err := strconv.ParseFloat(n.Text, 64)
		if err != nil {
			return value.Value{}, errs.New(errs.KindSyntax, "invalid numeric literal %q", n.Text)
		}
		return value.NewFloat(fv), nil
	case "string":
		return value.NewText(n.Text), nil
	case "bool":
		return value.NewBool(n.Bool), nil
	case "null":
		return value.Null(value.Text), nil
	case "param":
		if n.Num < 1 || n.Num > len(env.params) {
			return value.Value{}, errs.New(errs.KindProtocolViolation, "parameter $%d has no bound value", n.Num)
		}
		return env.params[n.Num-1], nil
	default:
		return value.Value{}, errs.New(errs.KindInternalAssertion, "unknown literal kind %q", n.Kind)
	}
}

func evalUnary(n *ast.UnaryExpr, env *rowEnv) (value.Value, error) {
	x, err := eval(n.X, env)
	if err != nil {
		return value.Value{}, err
	}
	switch n.Op {
	case "isnull":
		return value.NewBool(x.IsNull()), nil
	case "isnotnull":
		return value.NewBool(!x.IsNull()), nil
	case "not":
		if x.IsNull() {
			return value.Null(value.Bool), nil
		}
		return value.NewBool(!x.Bool()), nil
	case "-":
		if x.IsNull() {
			return x, nil
		}
		switch x.Type {
		case value.Float, value.Numeric:
			return value.NewFloat(-x.Float64()), nil
		default:
			return value.NewBigInt(-x.Int64()), nil
		}
	default:
		return value.Value{}, errs.New(errs.KindInternalAssertion, "unknown unary op %q", n.Op)
	}
}

func isNumeric(t value.Type) bool {
	switch t {
	case value.SmallInt, value.Int, value.BigInt, value.Float, value.Numeric:
		return true
	default:
		return false
	}
}

func isFloaty(t value.Type) bool { return t == value.Float || t == value.Numeric }

func evalBinary(n *ast.BinaryExpr, env *rowEnv) (value.Value, error) {
	switch n.Op {
	case "and":
		return evalAnd(n, env)
	case "or":
		return evalOr(n, env)
	}

	l, err := eval(n.Left, env)
	if err != nil {
		return value.Value{}, err
	}
	r, err := eval(n.Right, env)
	if err != nil {
		return value.Value{}, err
	}

	switch n.Op {
	case "+", "-", "*", "/", "%":
		return evalArith(n.Op, l, r)
	case "=", "<>", "<", "<=", ">", ">=":
		return evalCompare(n.Op, l, r)
	case "like":
		return evalLike(l, r)
	default:
		return value.Value{}, errs.New(errs.KindInternalAssertion, "unknown binary op %q", n.Op)
	}
}

// evalAnd implements SQL's three-valued AND without evaluating Right when
// Left is already FALSE.
func evalAnd(n *ast.BinaryExpr, env *rowEnv) (value.Value, error) {
	l, err := eval(n.Left, env)
	if err != nil {
		return value.Value{}, err
	}
	if !l.IsNull() && !l.Bool() {
		return value.NewBool(false), nil
	}
	r, err := eval(n.Right, env)
	if err != nil {
		return value.Value{}, err
	}
	if !r.IsNull() && !r.Bool() {
		return value.NewBool(false), nil
	}
	if l.IsNull() || r.IsNull() {
		return value.Null(value.Bool), nil
	}
	return value.NewBool(true), nil
}

func evalOr(n *ast.BinaryExpr, env *rowEnv) (value.Value, error) {
	l, err := eval(n.Left, env)
	if err != nil {
		return value.Value{}, err
	}
	if !l.IsNull() && l.Bool() {
		return value.NewBool(true), nil
	}
	r, err := eval(n.Right, env)
	if err != nil {
		return value.Value{}, err
	}
	if !r.IsNull() && r.Bool() {
		return value.NewBool(true), nil
	}
	if l.IsNull() || r.IsNull() {
		return value.Null(value.Bool), nil
	}
	return value.NewBool(false), nil
}

func evalArith(op string, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		if isFloaty(l.Type) || isFloaty(r.Type) {
			return value.Null(value.Float), nil
		}
		return value.Null(value.BigInt), nil
	}
	if !isNumeric(l.Type) || !isNumeric(r.Type) {
		return value.Value{}, errs.New(errs.KindTypeMismatch, "operator %s is not defined for non-numeric operands", op)
	}
	if isFloaty(l.Type) || isFloaty(r.Type) {
		a, b := numAsFloat(l), numAsFloat(r)
		switch op {
		case "+":
			return value.NewFloat(a + b), nil
		case "-":
			return value.NewFloat(a - b), nil
		case "*":
			return value.NewFloat(a * b), nil
		case "/":
			if b == 0 {
				return value.Value{}, errs.New(errs.KindTypeMismatch, "division by zero")
			}
			return value.NewFloat(a / b), nil
		case "%":
			if b == 0 {
				return value.Value{}, errs.New(errs.KindTypeMismatch, "division by zero")
			}
			return value.NewFloat(float64(int64(a) % int64(b))), nil
		}
	}
	a, b := l.Int64(), r.Int64()
	switch op {
	case "+":
		return value.NewBigInt(a + b), nil
	case "-":
		return value.NewBigInt(a - b), nil
	case "*":
		return value.NewBigInt(a * b), nil
	case "/":
		if b == 0 {
			return value.Value{}, errs.New(errs.KindTypeMismatch, "division by zero")
		}
		return value.NewBigInt(a / b), nil
	case "%":
		if b == 0 {
			return value.Value{}, errs.New(errs.KindTypeMismatch, "division by zero")
		}
		return value.NewBigInt(a % b), nil
	}
	return value.Value{}, errs.New(errs.KindInternalAssertion, "unreachable arith op %q", op)
}

func numAsFloat(v value.Value) float64 {
	if isFloaty(v.Type) {
		return v.Float64()
	}
	return float64(v.Int64())
}

func evalCompare(op string, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.Null(value.Bool), nil
	}
	if l.Type == value.Text && isNumeric(r.Type) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(l.Text()), 64); err == nil {
			l = value.NewFloat(f)
		}
	} else if r.Type == value.Text && isNumeric(l.Type) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(r.Text()), 64); err == nil {
			r = value.NewFloat(f)
		}
	}
	var cmp int
	switch {
	case l.Type == value.Text || r.Type == value.Text:
		cmp = strings.Compare(textOf(l), textOf(r))
	case isNumeric(l.Type) && isNumeric(r.Type):
		a, b := numAsFloat(l), numAsFloat(r)
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		default:
			cmp = 0
		}
	default:
		cmp = l.Compare(r)
	}
	var res bool
	switch op {
	case "=":
		res = cmp == 0
	case "<>":
		res = cmp != 0
	case "<":
		res = cmp < 0
	case "<=":
		res = cmp <= 0
	case ">":
		res = cmp > 0
	case ">=":
		res = cmp >= 0
	}
	return value.NewBool(res), nil
}

func textOf(v value.Value) string {
	if v.Type == value.Text {
		return v.Text()
	}
	return ""
}

func evalLike(l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.Null(value.Bool), nil
	}
	pattern := likeToRegexPattern(r.Text())
	matched := matchLike(l.Text(), pattern)
	return value.NewBool(matched), nil
}

// likeToRegexPattern returns p unchanged; matchLike implements % and _
// matching on it directly without building a regexp, like a simple glob
// matcher.
func likeToRegexPattern(p string) string { return p }

func matchLike(s, pattern string) bool {
	return matchLikeRunes([]rune(s), []rune(pattern))
}

func matchLikeRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if matchLikeRunes(s, p[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if matchLikeRunes(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return matchLikeRunes(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return matchLikeRunes(s[1:], p[1:])
	}
}

func evalCase(n *ast.CaseExpr, env *rowEnv) (value.Value, error) {
	for _, w := range n.Whens {
		var match bool
		if n.Operand != nil {
			opVal, err := eval(n.Operand, env)
			if err != nil {
				return value.Value{}, err
			}
			condVal, err := eval(w.Cond, env)
			if err != nil {
				return value.Value{}, err
			}
			if !opVal.IsNull() && !condVal.IsNull() {
				match = opVal.Equal(condVal)
			}
		} else {
			condVal, err := eval(w.Cond, env)
			if err != nil {
				return value.Value{}, err
			}
			match = !condVal.IsNull() && condVal.Bool()
		}
		if match {
			return eval(w.Then, env)
		}
	}
	if n.Else != nil {
		return eval(n.Else, env)
	}
	return value.Null(value.Text), nil
}
