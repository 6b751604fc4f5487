package exec

import (
	"github.com/martinsk/mskql/internal/arena"
	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/errs"
	"github.com/martinsk/mskql/internal/txn"
	"github.com/martinsk/mskql/internal/value"
)

// Execute dispatches one parsed statement to its operation. BEGIN/COMMIT/
// ROLLBACK are handled by the caller (the wire session owns the txn.Manager
// transition rules in spec §4.5); Execute is never called with those node
// types.
func (eng *Engine) Execute(stmt ast.Statement, tx *txn.Manager, a *arena.Arena, params []value.Value) (*Result, error) {
	switch n := stmt.(type) {
	case *ast.CreateTable:
		return eng.CreateTable(n, tx)
	case *ast.CreateType:
		return eng.CreateType(n, tx)
	case *ast.DropTable:
		return eng.DropTable(n, tx)
	case *ast.Insert:
		return eng.Insert(n, tx, params)
	case *ast.Update:
		return eng.Update(n, tx, params)
	case *ast.Delete:
		return eng.Delete(n, tx, params)
	case *ast.Select:
		return eng.Select(n, a, params)
	default:
		return nil, errs.New(errs.KindFeatureNotSupported, "unsupported statement type")
	}
}

// IsTransactionControl reports whether stmt is BEGIN/COMMIT/ROLLBACK,
// which the wire session handles directly against txn.Manager rather
// than routing through Execute.
func IsTransactionControl(stmt ast.Statement) bool {
	switch stmt.(type) {
	case *ast.Begin, *ast.Commit, *ast.Rollback:
		return true
	}
	return false
}
