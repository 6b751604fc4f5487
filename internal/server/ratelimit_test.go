package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimitedConnThrottlesReads(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	limiter := rate.NewLimiter(rate.Limit(2), 1)
	rc := &rateLimitedConn{Conn: srv, limiter: limiter}

	go func() {
		client.Write([]byte("a"))
		client.Write([]byte("b"))
	}()

	buf := make([]byte, 1)
	n, err := rc.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	start := time.Now()
	_, err = rc.Read(buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond,
		"second read within the same burst window should wait for a fresh token")
}
