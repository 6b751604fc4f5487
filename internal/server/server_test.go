package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/catalog"
	"github.com/martinsk/mskql/internal/config"
	"github.com/martinsk/mskql/internal/schema"
)

func TestSessionCountTracksActiveConnections(t *testing.T) {
	db := schema.New("test")
	catalog.Rebuild(db)

	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0, MsgRatePerSec: 1000}, db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Equal(t, 0, srv.SessionCount())

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.SessionCount() == 1
	}, time.Second, 10*time.Millisecond)
}
