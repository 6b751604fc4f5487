// Package admin implements the secondary HTTP/WS admin surface (spec
// §4.9 Domain Stack, GLOSSARY "Admin surface"): health, debug dumps, and
// a live session-event feed, entirely separate from the wire listener.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/martinsk/mskql/internal/adminauth"
	"github.com/martinsk/mskql/internal/config"
	"github.com/martinsk/mskql/internal/metrics"
	"github.com/martinsk/mskql/internal/schema"
)

// SessionLister reports the live session count, satisfied by
// *server.Server without admin importing the server package's accept
// loop.
type SessionLister interface {
	SessionCount() int
}

// Server is the admin HTTP/WS surface.
type Server struct {
	router *gin.Engine
	http   *http.Server
	hub    *Hub
	addr   string
	log    zerolog.Logger
}

// NewServer wires routes against db's live schema and sessions' live
// session count. tokens may be nil to disable bearer-token auth
// entirely (local development).
func NewServer(cfg config.AdminConfig, db *schema.Database, sessions SessionLister, tokens *adminauth.Source, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	hub := newHub()
	go hub.run()

	s := &Server{
		router: router,
		hub:    hub,
		addr:   cfg.ListenAddr(),
		log:    log.With().Str("component", "admin").Logger(),
	}
	s.setupRoutes(db, sessions, tokens)
	return s
}

func (s *Server) setupRoutes(db *schema.Database, sessions SessionLister, tokens *adminauth.Source) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessions.SessionCount()})
	})

	debug := s.router.Group("/debug", authMiddleware(tokens))
	{
		debug.GET("/sessions", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"active_sessions": sessions.SessionCount()})
		})
		debug.GET("/schema.yaml", func(c *gin.Context) {
			handleSchemaYAML(c, db)
		})
	}

	s.router.GET("/ws", func(c *gin.Context) {
		serveWS(s.hub, c.Writer, c.Request)
	})

	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// authMiddleware enforces a bearer token on /debug/* when tokens is
// non-nil; a nil Source means admin auth is disabled (no vault.address
// and no MSKQL_ADMIN_TOKEN configured).
func authMiddleware(tokens *adminauth.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.Next()
			return
		}
		want, err := tokens.Token(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin auth unavailable"})
			return
		}
		got := c.GetHeader("Authorization")
		if got != "Bearer "+want {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Broadcast pushes a live event to every connected admin WebSocket
// client. No wire-session code calls it, so the /ws feed carries only
// events passed to Broadcast explicitly.
func (s *Server) Broadcast(msgType MessageType, data interface{}) {
	if err := s.hub.Broadcast(msgType, data); err != nil {
		s.log.Warn().Err(err).Msg("failed to broadcast admin event")
	}
}

// Run serves the admin surface until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("admin surface started")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin: listen and serve: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
