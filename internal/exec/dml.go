package exec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/errs"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/txn"
	"github.com/martinsk/mskql/internal/value"
)

// textAsInt/textAsFloat parse a bound parameter's text representation
// (every Bind parameter arrives as text, per spec §4.6) into the numeric
// form coerce needs. A malformed literal coerces to zero rather than
// failing the statement — callers validate shape via column constraints.
func textAsInt(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func textAsFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// Insert implements INSERT INTO ... VALUES (...), checking NOT NULL,
// UNIQUE, CHECK, and FOREIGN KEY constraints before mutating storage.
func (eng *Engine) Insert(stmt *ast.Insert, tx *txn.Manager, params []value.Value) (*Result, error) {
	eng.DB.WriteLock.Lock()
	defer eng.DB.WriteLock.Unlock()

	t, ok := eng.DB.TableByName(stmt.Table)
	if !ok {
		return nil, errs.New(errs.KindUndefinedObject, "relation %q does not exist", stmt.Table)
	}

	colOrder := stmt.Columns
	if len(colOrder) == 0 {
		for _, c := range t.Columns {
			colOrder = append(colOrder, c.Name)
		}
	}
	posOf := make(map[string]int, len(colOrder))
	for i, name := range colOrder {
		posOf[name] = i
	}

	n := 0
	env := &rowEnv{params: params}
	for _, rowExprs := range stmt.Rows {
		row := make([]value.Value, len(t.Columns))
		for ci, c := range t.Columns {
			if pos, ok := posOf[c.Name]; ok {
				v, err := eval(rowExprs[pos], env)
				if err != nil {
					return nil, err
				}
				row[ci] = coerce(v, c.Type)
			} else if c.AutoIncr {
				row[ci] = value.NewBigInt(t.NextAutoIncrement(c.ID))
			} else if c.Default != "" {
				row[ci] = value.NewText(c.Default)
			} else {
				row[ci] = value.Null(c.Type)
			}
		}
		if err := eng.checkRowConstraints(t, row, -1); err != nil {
			return nil, err
		}
		pos := t.AppendRow(row)
		tx.RecordInsert(t, pos)
		n++
	}
	return &Result{Kind: KindCommand, Tag: "INSERT 0 " + itoa(n)}, nil
}

// coerce adapts a literal's evaluated type (literals default to BigInt/
// Float/Text) to the column's declared type, since the parser cannot
// know column types while building literal expressions.
func coerce(v value.Value, target value.Type) value.Value {
	if v.IsNull() {
		return value.Null(target)
	}
	if v.Type == target {
		return v
	}
	switch target {
	case value.SmallInt:
		return value.NewSmallInt(int16(numAsInt(v)))
	case value.Int:
		return value.NewInt(int32(numAsInt(v)))
	case value.BigInt:
		return value.NewBigInt(numAsInt(v))
	case value.Float, value.Numeric:
		if v.Type == value.Text {
			return value.NewFloat(textAsFloat(v.Text()))
		}
		return value.NewFloat(numAsFloat(v))
	case value.Bool:
		if v.Type == value.Text {
			return value.NewBool(v.Text() == "t" || v.Text() == "true")
		}
		return value.NewBool(v.Int64() != 0)
	case value.Date:
		if v.Type == value.Text {
			return value.NewDate(value.DateFromStr(v.Text()))
		}
	case value.Timestamp, value.TimestampTZ:
		if v.Type == value.Text {
			usec := value.TimestampFromStr(v.Text())
			if target == value.TimestampTZ {
				return value.NewTimestampTZ(usec)
			}
			return value.NewTimestamp(usec)
		}
	case value.Time:
		if v.Type == value.Text {
			return value.NewTime(value.TimeFromStr(v.Text()))
		}
	case value.Interval:
		if v.Type == value.Text {
			return value.NewInterval(value.IntervalFromStr(v.Text()))
		}
	case value.Enum:
		if v.Type == value.Text {
			return v // ordinal resolution happens in checkRowConstraints with enum context
		}
	}
	return v
}

func numAsInt(v value.Value) int64 {
	if v.Type == value.Text {
		return textAsInt(v.Text())
	}
	if isFloaty(v.Type) {
		return int64(v.Float64())
	}
	return v.Int64()
}

// checkRowConstraints validates NOT NULL, CHECK, UNIQUE, and FOREIGN KEY
// constraints for row, excluding the row at selfPos (its own position, for
// UPDATE re-validation) from uniqueness comparisons.
func (eng *Engine) checkRowConstraints(t *schema.Table, row []value.Value, selfPos int) error {
	existing := t.Rows()
	rowScope := tableScope(t, "")
	rowScope.vals = row
	rowEnvForCheck := &rowEnv{scopes: []scope{rowScope}}
	for ci, c := range t.Columns {
		if c.NotNull && row[ci].IsNull() {
			return errs.New(errs.KindConstraintViolation, "null value in column %q violates not-null constraint", c.Name).WithDetail("relation %s", t.Name)
		}
		if c.CheckExpr != nil {
			v, err := eval(c.CheckExpr, rowEnvForCheck)
			if err != nil {
				return err
			}
			// A CHECK constraint is violated only when its expression
			// evaluates to FALSE; NULL (UNKNOWN) passes, per SQL CHECK
			// semantics.
			if !v.IsNull() && !v.Bool() {
				return errs.New(errs.KindConstraintViolation, "new row for relation %q violates check constraint %q", t.Name, fmt.Sprintf("%s_%s_check", t.Name, c.Name))
			}
		}
		if c.Unique || c.PrimaryKey {
			for pos, er := range existing {
				if pos == selfPos {
					continue
				}
				if !er[ci].IsNull() && !row[ci].IsNull() && er[ci].Equal(row[ci]) {
					return errs.New(errs.KindConstraintViolation, "duplicate key value violates unique constraint").WithDetail("relation %s, column %s", t.Name, c.Name)
				}
			}
		}
		if c.FK != nil && !row[ci].IsNull() {
			reft, ok := eng.DB.TableByID(c.FK.RefTable)
			if !ok {
				return errs.New(errs.KindUndefinedObject, "referenced table for FK on %q no longer exists", c.Name)
			}
			found := false
			for _, rr := range reft.Rows() {
				if int(c.FK.RefColumn) < len(rr) && rr[c.FK.RefColumn].Equal(row[ci]) {
					found = true
					break
				}
			}
			if !found {
				return errs.New(errs.KindConstraintViolation, "insert or update on table %q violates foreign key constraint", t.Name).WithDetail("key (%s) not present in referenced table", c.Name)
			}
		}
	}
	return nil
}

// Update implements UPDATE, materializing affected row ids, snapshotting
// them into the transaction undo log, then rewriting. Rows in other
// tables that reference an updated key are left unchanged: no ON UPDATE
// action (cascade, set null, set default, restrict) is applied.
func (eng *Engine) Update(stmt *ast.Update, tx *txn.Manager, params []value.Value) (*Result, error) {
	eng.DB.WriteLock.Lock()
	defer eng.DB.WriteLock.Unlock()

	t, ok := eng.DB.TableByName(stmt.Table)
	if !ok {
		return nil, errs.New(errs.KindUndefinedObject, "relation %q does not exist", stmt.Table)
	}

	rows := t.Rows()
	tmpl := tableScope(t, "")
	n := 0
	for pos, r := range rows {
		tmpl.vals = r
		env := &rowEnv{scopes: []scope{tmpl}, params: params}
		ok, err := evalBoolTri(stmt.Where, env)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		newRow := append([]value.Value{}, r...)
		for _, asn := range stmt.Set {
			col, found := t.ColumnByName(asn.Column)
			if !found {
				return nil, errs.New(errs.KindUndefinedObject, "column %q does not exist", asn.Column)
			}
			v, err := eval(asn.Value, env)
			if err != nil {
				return nil, err
			}
			newRow[col.ID] = coerce(v, col.Type)
		}
		if err := eng.checkRowConstraints(t, newRow, pos); err != nil {
			return nil, err
		}
		tx.RecordUpdate(t, pos, append([]value.Value{}, r...))
		t.SetRow(pos, newRow)
		n++
	}
	return &Result{Kind: KindCommand, Tag: "UPDATE " + itoa(n)}, nil
}

// Delete implements DELETE FROM ... WHERE, applying FK actions to
// referencing tables with a per-statement visited set to break cascade
// cycles (spec §9).
func (eng *Engine) Delete(stmt *ast.Delete, tx *txn.Manager, params []value.Value) (*Result, error) {
	eng.DB.WriteLock.Lock()
	defer eng.DB.WriteLock.Unlock()

	t, ok := eng.DB.TableByName(stmt.Table)
	if !ok {
		return nil, errs.New(errs.KindUndefinedObject, "relation %q does not exist", stmt.Table)
	}

	visited := map[string]bool{}
	n, err := eng.deleteFrom(t, stmt.Where, params, tx, visited)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindCommand, Tag: "DELETE " + itoa(n)}, nil
}

func (eng *Engine) deleteFrom(t *schema.Table, where ast.Expr, params []value.Value, tx *txn.Manager, visited map[string]bool) (int, error) {
	rows := t.Rows()
	tmpl := tableScope(t, "")
	n := 0
	// delete from the tail so earlier positions remain valid as we go
	for pos := len(rows) - 1; pos >= 0; pos-- {
		r := rows[pos]
		tmpl.vals = r
		env := &rowEnv{scopes: []scope{tmpl}, params: params}
		match, err := evalBoolTri(where, env)
		if err != nil {
			return n, err
		}
		if !match {
			continue
		}
		if err := eng.applyFKActionsForDeletedRow(t, r, tx, visited); err != nil {
			return n, err
		}
		tx.RecordDelete(t, pos, append([]value.Value{}, r...))
		t.DeleteRow(pos)
		n++
	}
	return n, nil
}

// applyFKActionsForDeletedRow walks every table referencing t and applies
// the configured ON DELETE action for rows that point at the row being
// deleted, guarding against FK cycles with visited.
func (eng *Engine) applyFKActionsForDeletedRow(t *schema.Table, deletedRow []value.Value, tx *txn.Manager, visited map[string]bool) error {
	visitKey := t.Name
	if visited[visitKey] {
		return nil
	}
	visited[visitKey] = true

	for _, other := range eng.DB.Tables() {
		for _, c := range other.Columns {
			if c.FK == nil || c.FK.RefTable != t.ID {
				continue
			}
			refVal := deletedRow[c.FK.RefColumn]
			rows := other.Rows()
			for pos := len(rows) - 1; pos >= 0; pos-- {
				rr := rows[pos]
				if rr[c.ID].IsNull() || !rr[c.ID].Equal(refVal) {
					continue
				}
				switch c.FK.OnDelete {
				case schema.FKCascade:
					if err := eng.applyFKActionsForDeletedRow(other, rr, tx, visited); err != nil {
						return err
					}
					tx.RecordDelete(other, pos, append([]value.Value{}, rr...))
					other.DeleteRow(pos)
				case schema.FKSetNull:
					before := append([]value.Value{}, rr...)
					newRow := append([]value.Value{}, rr...)
					newRow[c.ID] = value.Null(c.Type)
					tx.RecordUpdate(other, pos, before)
					other.SetRow(pos, newRow)
				case schema.FKSetDefault:
					before := append([]value.Value{}, rr...)
					newRow := append([]value.Value{}, rr...)
					if c.Default != "" {
						newRow[c.ID] = value.NewText(c.Default)
					} else {
						newRow[c.ID] = value.Null(c.Type)
					}
					tx.RecordUpdate(other, pos, before)
					other.SetRow(pos, newRow)
				case schema.FKRestrict, schema.FKNoAction:
					return errs.New(errs.KindConstraintViolation, "update or delete on table %q violates foreign key constraint on table %q", t.Name, other.Name)
				}
			}
		}
	}
	return nil
}
