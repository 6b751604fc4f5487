package exec

import (
	"fmt"
	"strings"

	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/errs"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/txn"
	"github.com/martinsk/mskql/internal/value"
)

var typeNameMap = map[string]value.Type{
	"SMALLINT": value.SmallInt, "INT2": value.SmallInt,
	"INT": value.Int, "INTEGER": value.Int, "INT4": value.Int,
	"BIGINT": value.BigInt, "INT8": value.BigInt,
	"FLOAT": value.Float, "FLOAT8": value.Float, "DOUBLE": value.Float, "REAL": value.Float,
	"TEXT": value.Text, "VARCHAR": value.Text, "CHAR": value.Text, "STRING": value.Text,
	"BOOL": value.Bool, "BOOLEAN": value.Bool,
	"DATE": value.Date,
	"TIME": value.Time,
	"TIMESTAMP": value.Timestamp,
	"TIMESTAMPTZ": value.TimestampTZ,
	"INTERVAL": value.Interval,
	"UUID": value.UUID,
	"NUMERIC": value.Numeric, "DECIMAL": value.Numeric,
}

// resolveColumnType maps a column type name, first checking the built-in
// table then the database's registered enum types.
func resolveColumnType(db *schema.Database, typeName string) (value.Type, string, error) {
	if t, ok := typeNameMap[strings.ToUpper(typeName)]; ok {
		return t, "", nil
	}
	if _, ok := db.EnumByName(typeName); ok {
		return value.Enum, typeName, nil
	}
	return 0, "", errs.New(errs.KindUndefinedObject, "unknown type %q", typeName)
}

func fkAction(s string) schema.FKAction {
	switch s {
	case "cascade":
		return schema.FKCascade
	case "set null":
		return schema.FKSetNull
	case "set default":
		return schema.FKSetDefault
	case "restrict":
		return schema.FKRestrict
	default:
		return schema.FKNoAction
	}
}

// CreateTable implements CREATE TABLE, resolving column types and FK
// references against already-defined tables.
func (eng *Engine) CreateTable(stmt *ast.CreateTable, tx *txn.Manager) (*Result, error) {
	eng.DB.WriteLock.Lock()
	defer eng.DB.WriteLock.Unlock()

	if _, exists := eng.DB.TableByName(stmt.Name); exists {
		return nil, errs.New(errs.KindConstraintViolation, "relation %q already exists", stmt.Name)
	}

	cols := make([]schema.Column, len(stmt.Columns))
	for i, cd := range stmt.Columns {
		t, enumName, err := resolveColumnType(eng.DB, cd.TypeName)
		if err != nil {
			return nil, err
		}
		col := schema.Column{
			Name: cd.Name, Type: t, NotNull: cd.NotNull, Unique: cd.Unique,
			PrimaryKey: cd.PrimaryKey, AutoIncr: cd.AutoIncr, EnumName: enumName,
		}
		if cd.Default != nil {
			if lit, ok := cd.Default.(*ast.Literal); ok {
				col.Default = lit.Text
			}
		}
		if cd.Check != nil {
			col.CheckExpr = cd.Check
			col.Check = renderCheckSQL(cd.Check)
		}
		if cd.References != nil {
			reft, ok := eng.DB.TableByName(cd.References.Table)
			if !ok {
				return nil, errs.New(errs.KindUndefinedObject, "referenced relation %q does not exist", cd.References.Table)
			}
			refColName := cd.References.Column
			var refColID schema.ColumnID
			if refColName == "" {
				refColID = 0
			} else {
				rc, ok := reft.ColumnByName(refColName)
				if !ok {
					return nil, errs.New(errs.KindUndefinedObject, "referenced column %q does not exist", refColName)
				}
				refColID = rc.ID
			}
			col.FK = &schema.ForeignKey{
				RefTable: reft.ID, RefColumn: refColID,
				OnDelete: fkAction(cd.References.OnDelete),
				OnUpdate: fkAction(cd.References.OnUpdate),
			}
		}
		cols[i] = col
	}

	t := eng.DB.CreateTable(stmt.Name, cols, false)
	tx.RecordCreateTable(eng.DB, t)
	return &Result{Kind: KindCommand, Tag: "CREATE TABLE"}, nil
}

// renderCheckSQL renders e back to SQL text for pg_constraint/pg_get_
// constraintdef-style catalog display. It only needs to be readable, not
// byte-identical to the original CREATE TABLE text — CheckExpr is what
// actually gets evaluated.
func renderCheckSQL(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Literal:
		switch n.Kind {
		case "string":
			return "'" + n.Text + "'"
		case "null":
			return "NULL"
		case "bool":
			if n.Bool {
				return "true"
			}
			return "false"
		default:
			return n.Text
		}
	case *ast.ColumnRef:
		if n.Table != "" {
			return n.Table + "." + n.Column
		}
		return n.Column
	case *ast.UnaryExpr:
		switch n.Op {
		case "isnull":
			return renderCheckSQL(n.X) + " IS NULL"
		case "isnotnull":
			return renderCheckSQL(n.X) + " IS NOT NULL"
		default:
			return n.Op + renderCheckSQL(n.X)
		}
	case *ast.BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", renderCheckSQL(n.Left), strings.ToUpper(n.Op), renderCheckSQL(n.Right))
	case *ast.FuncCall:
		if n.Star {
			return n.Name + "(*)"
		}
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = renderCheckSQL(a)
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")"
	default:
		return "?column?"
	}
}

// CreateType implements CREATE TYPE ... AS ENUM.
func (eng *Engine) CreateType(stmt *ast.CreateType, tx *txn.Manager) (*Result, error) {
	eng.DB.WriteLock.Lock()
	defer eng.DB.WriteLock.Unlock()
	if _, exists := eng.DB.EnumByName(stmt.Name); exists {
		return nil, errs.New(errs.KindConstraintViolation, "type %q already exists", stmt.Name)
	}
	eng.DB.DefineEnum(stmt.Name, stmt.Labels)
	return &Result{Kind: KindCommand, Tag: "CREATE TYPE"}, nil
}

// DropTable implements DROP TABLE [IF EXISTS].
func (eng *Engine) DropTable(stmt *ast.DropTable, tx *txn.Manager) (*Result, error) {
	eng.DB.WriteLock.Lock()
	defer eng.DB.WriteLock.Unlock()

	t, ok := eng.DB.TableByName(stmt.Name)
	if !ok {
		if stmt.IfExists {
			return &Result{Kind: KindCommand, Tag: "DROP TABLE"}, nil
		}
		return nil, errs.New(errs.KindUndefinedObject, "relation %q does not exist", stmt.Name)
	}
	tx.RecordDropTable(eng.DB, t)
	eng.DB.DropTable(stmt.Name)
	return &Result{Kind: KindCommand, Tag: "DROP TABLE"}, nil
}
