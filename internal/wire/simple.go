package wire

import (
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/errs"
	"github.com/martinsk/mskql/internal/exec"
	"github.com/martinsk/mskql/internal/parser"
	"github.com/martinsk/mskql/internal/txn"
)

// handleSimpleQuery implements the `Q` sub-protocol (spec §4.6): parse
// the batch, execute each statement to completion, and always finish
// with ReadyForQuery reflecting the post-batch transaction state.
func (s *Session) handleSimpleQuery(sql string) error {
	if strings.TrimSpace(sql) == "" {
		s.backend.Send(&pgproto3.EmptyQueryResponse{})
		return s.finishReadyForQuery()
	}

	stmts, err := parser.ParseStatements(sql)
	if err != nil {
		s.sendError(err)
		return s.finishReadyForQuery()
	}

	for _, stmt := range stmts {
		if err := s.execSimpleStatement(stmt); err != nil {
			s.sendError(err)
			break
		}
	}
	s.arena.Reset()
	s.drainNotifications()
	return s.finishReadyForQuery()
}

func (s *Session) execSimpleStatement(stmt ast.Statement) error {
	switch n := stmt.(type) {
	case *ast.Begin:
		if s.tx.State() != txn.Idle {
			return errs.New(errs.KindInvalidTxnState, "BEGIN issued while a transaction is already in progress")
		}
		if err := s.tx.Begin(); err != nil {
			return err
		}
		s.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("BEGIN")})
		return nil
	case *ast.Commit:
		s.tx.Commit()
		s.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("COMMIT")})
		return nil
	case *ast.Rollback:
		s.tx.Rollback()
		s.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("ROLLBACK")})
		return nil
	case *ast.Listen:
		if err := s.doListen(n.Channel); err != nil {
			return err
		}
		s.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("LISTEN")})
		return nil
	case *ast.Notify:
		s.doNotify(n.Channel, n.Payload)
		s.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("NOTIFY")})
		return nil
	}

	if s.tx.State() == txn.Failed {
		return errs.New(errs.KindInvalidTxnState, "current transaction is aborted, commands ignored until end of transaction block")
	}
	wasExplicit := s.tx.State() == txn.InTransaction
	s.tx.EnsureImplicit()

	result, err := s.engine.Execute(stmt, s.tx, s.arena, nil)
	if err != nil {
		s.tx.MarkFailed(wasExplicit)
		return err
	}
	s.notifySchemaChangeIfDDL(stmt)
	s.sendResult(result)
	return nil
}

// doListen subscribes this session to channel, replacing any existing
// subscription with the same name.
func (s *Session) doListen(channel string) error {
	if s.bus == nil {
		return errs.New(errs.KindFeatureNotSupported, "LISTEN/NOTIFY is unavailable: notify bus disabled")
	}
	s.listenMu.Lock()
	if unsub, ok := s.listens[channel]; ok {
		unsub()
		delete(s.listens, channel)
	}
	s.listenMu.Unlock()

	msgs, unsubscribe, err := s.bus.Subscribe(channel)
	if err != nil {
		return errs.Wrap(errs.KindInternalAssertion, err, "LISTEN %s", channel)
	}
	go func() {
		for payload := range msgs {
			s.onNotification(channel, payload)
		}
	}()
	s.listenMu.Lock()
	s.listens[channel] = unsubscribe
	s.listenMu.Unlock()
	return nil
}

func (s *Session) doNotify(channel, payload string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(channel, payload)
}

func (s *Session) notifySchemaChangeIfDDL(stmt ast.Statement) {
	if s.bus == nil {
		return
	}
	switch n := stmt.(type) {
	case *ast.CreateTable:
		s.bus.PublishSchemaChange(n.Name)
	case *ast.DropTable:
		s.bus.PublishSchemaChange(n.Name)
	case *ast.CreateType:
		s.bus.PublishSchemaChange(n.Name)
	}
}

// sendResult renders a completed exec.Result as the message sequence a
// client expects: RowDescription + DataRow* + CommandComplete for rows,
// or a bare CommandComplete for DDL/DML, or EmptyQueryResponse.
func (s *Session) sendResult(result *exec.Result) {
	switch result.Kind {
	case exec.KindRows:
		s.backend.Send(rowDescriptionFor(result.Columns))
		for _, row := range result.Rows {
			s.backend.Send(dataRowFor(row))
		}
		s.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte(result.Tag)})
	case exec.KindCommand:
		s.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte(result.Tag)})
	case exec.KindEmpty:
		s.backend.Send(&pgproto3.EmptyQueryResponse{})
	}
}

func (s *Session) finishReadyForQuery() error {
	s.backend.Send(&pgproto3.ReadyForQuery{TxStatus: s.tx.State().StatusByte()})
	return s.backend.Flush()
}
