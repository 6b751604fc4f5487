// Package server runs the PostgreSQL-wire accept loop (spec §4.7): one
// goroutine per accepted connection, coordinated under an errgroup.
// Sessions do not observe cancellation: each ends when its connection
// closes.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/martinsk/mskql/internal/config"
	"github.com/martinsk/mskql/internal/metrics"
	"github.com/martinsk/mskql/internal/notify"
	"github.com/martinsk/mskql/internal/obs"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/wire"
)

// Server owns the wire-protocol TCP listener and the sessions accepted
// on it.
type Server struct {
	cfg config.ServerConfig
	db  *schema.Database
	bus *notify.Bus

	nextPID atomic.Uint32

	mu       sync.Mutex
	sessions map[uint32]*wire.Session
	ln       net.Listener
	ready    chan struct{}
}

// New builds a Server bound to db and bus. bus may be nil (LISTEN/NOTIFY
// disabled).
func New(cfg config.ServerConfig, db *schema.Database, bus *notify.Bus) *Server {
	return &Server{
		cfg:      cfg,
		db:       db,
		bus:      bus,
		sessions: make(map[uint32]*wire.Session),
		ready:    make(chan struct{}),
	}
}

// Addr blocks until the listener has bound, then returns its actual
// address. Useful in tests that bind cfg.Port == 0 for an ephemeral
// port.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.ln.Addr()
}

// SessionCount reports the number of currently accepted connections, for
// the admin surface's /debug/sessions endpoint.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run accepts connections until ctx is canceled or the listener fails.
// Every accepted session runs under the same errgroup. On cancellation
// Run closes the listener and does not return until every session
// goroutine has returned, which happens only as their connections close.
// On any other Accept error Run returns that error at once, without
// waiting for sessions in flight.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.ListenAddr(), err)
	}
	s.ln = ln
	close(s.ready)
	log := obs.Component("server")
	log.Info().Str("addr", s.cfg.ListenAddr()).Msg("wire protocol listener started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-gctx.Done():
				return g.Wait()
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}
		pid := s.nextPID.Add(1)
		g.Go(func() error {
			s.serve(conn, pid)
			return nil
		})
	}
}

// serve runs one connection's session to completion, rate-limiting
// inbound reads so a client flooding tiny frames can't
// starve every other session's fair share of CPU.
func (s *Server) serve(conn net.Conn, processID uint32) {
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	limiter := rate.NewLimiter(rate.Limit(s.cfg.MsgRatePerSec), s.cfg.MsgRatePerSec)
	rc := &rateLimitedConn{Conn: conn, limiter: limiter}

	sess := wire.New(rc, s.db, s.bus, processID, s.cfg.MaxFrameLength)

	s.mu.Lock()
	s.sessions[processID] = sess
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, processID)
		s.mu.Unlock()
	}()

	sess.Run()
}
