// Package wire implements the PostgreSQL frontend/backend wire protocol
// session (spec §4.6), built on jackc/pgx/v5's pgproto3 message codec
// rather than hand-rolled framing.
package wire

import (
	"fmt"
	"net"
	"sync"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/rs/zerolog"

	"github.com/martinsk/mskql/internal/arena"
	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/exec"
	"github.com/martinsk/mskql/internal/notify"
	"github.com/martinsk/mskql/internal/obs"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/txn"
	"github.com/martinsk/mskql/internal/value"
)

// MaxFrameLength is the default cap on a declared message length (spec
// §4.6): frames larger than this drop the connection without reading
// the body.
const MaxFrameLength = 256 * 1024 * 1024

// preparedStatement is a Parse'd statement, keyed by name ("" = unnamed).
type preparedStatement struct {
	name       string
	query      string
	stmt       ast.Statement
	paramOIDs  []uint32
	resultCols []exec.ResultColumn
}

// portal is a Bind'd, executable instance of a preparedStatement.
type portal struct {
	name        string
	stmt        *preparedStatement
	params      []value.Value
	resultFmts  []int16
	result      *exec.Result // computed lazily on first Execute
	cursor      int          // next row index to send
	executed    bool
}

// Session is one client connection's wire-protocol state machine.
type Session struct {
	conn       net.Conn
	backend    *pgproto3.Backend
	frameGuard *frameLimitReader
	log        zerolog.Logger

	engine *exec.Engine
	tx     *txn.Manager
	arena  *arena.Arena
	bus    *notify.Bus

	statements map[string]*preparedStatement
	portals    map[string]*portal

	listenMu  sync.Mutex
	listens   map[string]func()
	pending   []pgproto3.NotificationResponse

	skipUntilSync bool
	processID     uint32
	secretKey     uint32
}

// New creates a Session over conn, bound to the shared database engine
// and notify bus. bus may be nil, in which case LISTEN fails with
// FeatureNotSupported and NOTIFY succeeds without delivering anything.
// maxFrameLength caps
// a message's declared length (spec §4.6); <= 0 uses MaxFrameLength.
func New(conn net.Conn, db *schema.Database, bus *notify.Bus, processID uint32, maxFrameLength int) *Session {
	if maxFrameLength <= 0 {
		maxFrameLength = MaxFrameLength
	}
	guard := newFrameLimitReader(conn, maxFrameLength)
	return &Session{
		conn:       conn,
		backend:    pgproto3.NewBackend(guard, conn),
		frameGuard: guard,
		log:        obs.Session(fmt.Sprintf("%d", processID), conn.RemoteAddr().String()),
		engine:     exec.New(db),
		tx:         txn.New(),
		arena:      arena.New(0),
		bus:        bus,
		statements: make(map[string]*preparedStatement),
		portals:    make(map[string]*portal),
		listens:    make(map[string]func()),
		processID:  processID,
		secretKey:  processID ^ 0x5a5a5a5a,
	}
}

// Run drives the session until the connection closes or Terminate is
// received. Teardown always applies pending undo, per invariant I2.
func (s *Session) Run() {
	defer s.teardown()

	if err := s.handleStartup(); err != nil {
		s.log.Info().Err(err).Msg("startup failed, dropping connection")
		return
	}
	s.frameGuard.EnableLimit()

	for {
		msg, err := s.backend.Receive()
		if err != nil {
			s.log.Debug().Err(err).Msg("session read ended")
			return
		}
		if err := s.dispatch(msg); err != nil {
			s.log.Debug().Err(err).Msg("session terminated by dispatch error")
			return
		}
	}
}

func (s *Session) teardown() {
	s.tx.Teardown()
	s.arena.Reset()
	s.listenMu.Lock()
	for _, unsub := range s.listens {
		unsub()
	}
	s.listenMu.Unlock()
	_ = s.conn.Close()
}

// onNotification buffers a delivered NOTIFY for this session; it runs on
// the goroutine doListen starts for each subscription, never the
// session's own, so it only touches the mutex-guarded pending queue.
func (s *Session) onNotification(channel, payload string) {
	s.listenMu.Lock()
	s.pending = append(s.pending, pgproto3.NotificationResponse{
		PID:     s.processID,
		Channel: channel,
		Payload: payload,
	})
	s.listenMu.Unlock()
}

// drainNotifications sends any NOTIFY messages queued for this session's
// LISTENs. Delivery happens at the next natural response boundary
// (ReadyForQuery) rather than pushed instantly to an idle connection —
// this engine does not wake a blocked Receive() for pending notifies.
func (s *Session) drainNotifications() {
	s.listenMu.Lock()
	pending := s.pending
	s.pending = nil
	s.listenMu.Unlock()
	for i := range pending {
		s.backend.Send(&pending[i])
	}
}

func (s *Session) dispatch(msg pgproto3.FrontendMessage) error {
	switch m := msg.(type) {
	case *pgproto3.Query:
		return s.handleSimpleQuery(m.String)
	case *pgproto3.Parse:
		return s.handleParse(m)
	case *pgproto3.Bind:
		return s.handleBind(m)
	case *pgproto3.Describe:
		return s.handleDescribe(m)
	case *pgproto3.Execute:
		return s.handleExecute(m)
	case *pgproto3.Close:
		return s.handleClose(m)
	case *pgproto3.Flush:
		return s.flushOnly()
	case *pgproto3.Sync:
		return s.handleSync()
	case *pgproto3.Terminate:
		return fmt.Errorf("client terminated session")
	case *pgproto3.CopyData, *pgproto3.CopyDone, *pgproto3.CopyFail:
		return s.enterErrorState(fmt.Errorf("COPY is not supported"))
	default:
		return s.enterErrorState(fmt.Errorf("unsupported frontend message %T", msg))
	}
}
