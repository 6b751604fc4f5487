package wire

import (
	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/errs"
	"github.com/martinsk/mskql/internal/exec"
	"github.com/martinsk/mskql/internal/parser"
	"github.com/martinsk/mskql/internal/txn"
	"github.com/martinsk/mskql/internal/value"
)

// handleParse implements `P`: compile the query text once, independent
// of any bound parameter values, and keep it under stmt.name until a
// matching Close (or session end).
func (s *Session) handleParse(m *pgproto3.Parse) error {
	if s.skipUntilSync {
		return nil
	}
	stmts, err := parser.ParseStatements(m.Query)
	if err != nil {
		return s.enterErrorState(err)
	}
	if len(stmts) > 1 {
		return s.enterErrorState(errs.New(errs.KindFeatureNotSupported, "a prepared statement may contain only one SQL command"))
	}
	var stmt ast.Statement
	if len(stmts) == 1 {
		stmt = stmts[0]
	}

	paramOIDs := m.ParameterOIDs
	if paramOIDs == nil {
		paramOIDs = make([]uint32, countParams(stmt))
	}

	var resultCols []exec.ResultColumn
	if sel, ok := stmt.(*ast.Select); ok {
		resultCols, err = s.engine.DescribeSelect(sel)
		if err != nil {
			return s.enterErrorState(err)
		}
	}

	s.statements[m.Name] = &preparedStatement{
		name:       m.Name,
		query:      m.Query,
		stmt:       stmt,
		paramOIDs:  paramOIDs,
		resultCols: resultCols,
	}
	s.backend.Send(&pgproto3.ParseComplete{})
	return nil
}

// countParams finds the highest $n ordinal referenced anywhere in stmt,
// for statements Parsed without explicit client-supplied parameter OIDs.
func countParams(stmt ast.Statement) int {
	max := 0
	var walkExpr func(ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch n := e.(type) {
		case nil:
			return
		case *ast.Literal:
			if n.Kind == "param" && n.Num > max {
				max = n.Num
			}
		case *ast.UnaryExpr:
			walkExpr(n.X)
		case *ast.BinaryExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.FuncCall:
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.CaseExpr:
			walkExpr(n.Operand)
			for _, w := range n.Whens {
				walkExpr(w.Cond)
				walkExpr(w.Then)
			}
			walkExpr(n.Else)
		}
	}

	switch n := stmt.(type) {
	case *ast.Insert:
		for _, row := range n.Rows {
			for _, e := range row {
				walkExpr(e)
			}
		}
	case *ast.Update:
		for _, a := range n.Set {
			walkExpr(a.Value)
		}
		walkExpr(n.Where)
	case *ast.Delete:
		walkExpr(n.Where)
	case *ast.Select:
		for _, it := range n.Items {
			walkExpr(it.Expr)
		}
		walkExpr(n.Where)
		walkExpr(n.Having)
		for _, jc := range n.Joins {
			walkExpr(jc.On)
		}
		for _, g := range n.GroupBy {
			walkExpr(g)
		}
	}
	return max
}

// handleBind implements `B`: decode bound parameters (always text format
// in this engine — binary result/parameter formats are not implemented)
// and create a named portal ready for Describe/Execute.
func (s *Session) handleBind(m *pgproto3.Bind) error {
	if s.skipUntilSync {
		return nil
	}
	stmt, ok := s.statements[m.PreparedStatement]
	if !ok {
		return s.enterErrorState(errs.New(errs.KindUndefinedObject, "prepared statement %q does not exist", m.PreparedStatement))
	}

	params := make([]value.Value, len(m.Parameters))
	for i, raw := range m.Parameters {
		if raw == nil {
			params[i] = value.Null(value.Text)
			continue
		}
		params[i] = value.NewText(string(raw))
	}

	s.portals[m.DestinationPortal] = &portal{
		name:       m.DestinationPortal,
		stmt:       stmt,
		params:     params,
		resultFmts: m.ResultFormatCodes,
	}
	s.backend.Send(&pgproto3.BindComplete{})
	return nil
}

// handleDescribe implements `D` for both object types: 'S' describes a
// prepared statement (ParameterDescription + RowDescription/NoData),
// 'P' describes a bound portal (RowDescription/NoData only).
func (s *Session) handleDescribe(m *pgproto3.Describe) error {
	if s.skipUntilSync {
		return nil
	}
	switch m.ObjectType {
	case 'S':
		stmt, ok := s.statements[m.Name]
		if !ok {
			return s.enterErrorState(errs.New(errs.KindUndefinedObject, "prepared statement %q does not exist", m.Name))
		}
		s.backend.Send(&pgproto3.ParameterDescription{ParameterOIDs: stmt.paramOIDs})
		s.sendDescribeRows(stmt.resultCols)
	case 'P':
		p, ok := s.portals[m.Name]
		if !ok {
			return s.enterErrorState(errs.New(errs.KindUndefinedObject, "portal %q does not exist", m.Name))
		}
		s.sendDescribeRows(p.stmt.resultCols)
	}
	return nil
}

func (s *Session) sendDescribeRows(cols []exec.ResultColumn) {
	if cols == nil {
		s.backend.Send(&pgproto3.NoData{})
		return
	}
	s.backend.Send(rowDescriptionFor(cols))
}

// handleExecute implements `E`: run the portal's statement (once, on its
// first Execute) and stream rows, honoring MaxRows by suspending the
// portal instead of exhausting it.
func (s *Session) handleExecute(m *pgproto3.Execute) error {
	if s.skipUntilSync {
		return nil
	}
	p, ok := s.portals[m.Portal]
	if !ok {
		return s.enterErrorState(errs.New(errs.KindUndefinedObject, "portal %q does not exist", m.Portal))
	}

	if !p.executed {
		if err := s.runPortal(p); err != nil {
			return s.enterErrorState(err)
		}
		p.executed = true
	}

	if p.result == nil {
		return nil
	}

	switch p.result.Kind {
	case exec.KindEmpty:
		s.backend.Send(&pgproto3.EmptyQueryResponse{})
		return nil
	case exec.KindCommand:
		s.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte(p.result.Tag)})
		return nil
	}

	max := int(m.MaxRows)
	sent := 0
	for p.cursor < len(p.result.Rows) {
		if max > 0 && sent >= max {
			s.backend.Send(&pgproto3.PortalSuspended{})
			return nil
		}
		s.backend.Send(dataRowFor(p.result.Rows[p.cursor]))
		p.cursor++
		sent++
	}
	s.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte(p.result.Tag)})
	return nil
}

// runPortal executes a portal's statement exactly once, against the
// session's transaction and arena, mirroring execSimpleStatement's txn
// bookkeeping for the extended protocol.
func (s *Session) runPortal(p *portal) error {
	switch n := p.stmt.stmt.(type) {
	case *ast.Begin:
		if s.tx.State() != txn.Idle {
			return errs.New(errs.KindInvalidTxnState, "BEGIN issued while a transaction is already in progress")
		}
		if err := s.tx.Begin(); err != nil {
			return err
		}
		p.result = &exec.Result{Kind: exec.KindCommand, Tag: "BEGIN"}
		return nil
	case *ast.Commit:
		s.tx.Commit()
		p.result = &exec.Result{Kind: exec.KindCommand, Tag: "COMMIT"}
		return nil
	case *ast.Rollback:
		s.tx.Rollback()
		p.result = &exec.Result{Kind: exec.KindCommand, Tag: "ROLLBACK"}
		return nil
	case *ast.Listen:
		if err := s.doListen(n.Channel); err != nil {
			return err
		}
		p.result = &exec.Result{Kind: exec.KindCommand, Tag: "LISTEN"}
		return nil
	case *ast.Notify:
		s.doNotify(n.Channel, n.Payload)
		p.result = &exec.Result{Kind: exec.KindCommand, Tag: "NOTIFY"}
		return nil
	}

	if p.stmt.stmt == nil {
		p.result = &exec.Result{Kind: exec.KindEmpty}
		return nil
	}

	if s.tx.State() == txn.Failed {
		return errs.New(errs.KindInvalidTxnState, "current transaction is aborted, commands ignored until end of transaction block")
	}
	wasExplicit := s.tx.State() == txn.InTransaction
	s.tx.EnsureImplicit()

	result, err := s.engine.Execute(p.stmt.stmt, s.tx, s.arena, p.params)
	if err != nil {
		s.tx.MarkFailed(wasExplicit)
		return err
	}
	s.notifySchemaChangeIfDDL(p.stmt.stmt)
	p.result = result
	return nil
}

// handleClose implements `C`: drop a prepared statement or portal. Per
// the protocol this always succeeds, even for an unknown name.
func (s *Session) handleClose(m *pgproto3.Close) error {
	if s.skipUntilSync {
		return nil
	}
	switch m.ObjectType {
	case 'S':
		delete(s.statements, m.Name)
	case 'P':
		delete(s.portals, m.Name)
	}
	s.backend.Send(&pgproto3.CloseComplete{})
	return nil
}

// flushOnly implements `H`: deliver whatever has been queued so far
// without a ReadyForQuery.
func (s *Session) flushOnly() error {
	return s.backend.Flush()
}

// handleSync implements `S`: end the extended-query message flow, clear
// error-skip state, and report the transaction status.
func (s *Session) handleSync() error {
	s.skipUntilSync = false
	s.arena.Reset()
	s.drainNotifications()
	s.backend.Send(&pgproto3.ReadyForQuery{TxStatus: s.tx.State().StatusByte()})
	return s.backend.Flush()
}

// enterErrorState sends the ErrorResponse and arms skip-until-Sync: every
// extended-protocol message up to and including the next Sync is ignored
// per the wire protocol's error recovery contract, rather than tearing
// down the connection.
func (s *Session) enterErrorState(err error) error {
	s.sendError(err)
	s.skipUntilSync = true
	return s.backend.Flush()
}
