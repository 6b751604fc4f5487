package server

import (
	"context"
	"net"

	"golang.org/x/time/rate"
)

// rateLimitedConn throttles inbound reads so a connection sending a
// flood of tiny frames can't monopolize the accept loop's goroutines.
// Each Read call costs one token. The session's frame-length guard reads
// each 5-byte message header one byte per Read, so one frontend message
// costs at least five tokens plus one or more for its body; MsgRatePerSec
// therefore bounds reads per second, not messages per second.
type rateLimitedConn struct {
	net.Conn
	limiter *rate.Limiter
}

func (c *rateLimitedConn) Read(b []byte) (int, error) {
	if err := c.limiter.Wait(context.Background()); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}
