package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// errFrameTooLarge is returned from frameLimitReader once a message's
// declared length is seen to exceed the configured cap. The body is never
// requested from the underlying reader, satisfying spec §4.6's "drop the
// connection without reading the body".
var errFrameTooLarge = errors.New("wire: declared message length exceeds max frame length")

// frameLimitReader sits between the raw connection and pgproto3.Backend,
// inspecting the 4-byte length field every Postgres message opens with
// (after the 1-byte type tag) and refusing to read past it when the
// declared length exceeds maxLen. pgproto3.Backend has no hook for this,
// so the check is done by tracking message boundaries as bytes flow
// through Read.
//
// The startup phase (SSLRequest/StartupMessage) uses a different framing
// (no leading type byte) and is small and fixed-shape by construction, so
// the reader passes those bytes through untouched until EnableLimit is
// called once the regular dispatch loop begins.
type frameLimitReader struct {
	r      io.Reader
	maxLen int
	active bool

	hdr      [5]byte
	hdrN     int
	inBody   bool
	bodyLeft int
	violated bool
}

func newFrameLimitReader(r io.Reader, maxLen int) *frameLimitReader {
	return &frameLimitReader{r: r, maxLen: maxLen}
}

// EnableLimit switches the reader into length-checking mode. Call once
// the startup handshake has completed and the session is about to read
// its first type-tagged frontend message.
func (r *frameLimitReader) EnableLimit() {
	r.active = true
	r.hdrN = 0
	r.inBody = false
}

func (r *frameLimitReader) Read(p []byte) (int, error) {
	if r.violated {
		return 0, errFrameTooLarge
	}
	if len(p) == 0 {
		return 0, nil
	}
	if !r.active {
		return r.r.Read(p)
	}
	if !r.inBody {
		return r.readHeaderByte(p)
	}
	return r.readBody(p)
}

// readHeaderByte reads exactly one header byte per call so it can inspect
// the declared length the instant the 5th byte arrives, before any body
// byte is requested from the underlying reader.
func (r *frameLimitReader) readHeaderByte(p []byte) (int, error) {
	n, err := r.r.Read(p[:1])
	if n == 0 {
		return 0, err
	}
	r.hdr[r.hdrN] = p[0]
	r.hdrN++
	if r.hdrN == 5 {
		declared := int(binary.BigEndian.Uint32(r.hdr[1:5]))
		if r.maxLen > 0 && declared > r.maxLen {
			r.violated = true
			return 1, errFrameTooLarge
		}
		r.bodyLeft = declared - 4
		r.inBody = r.bodyLeft > 0
		r.hdrN = 0
		if r.bodyLeft == 0 {
			r.inBody = false
		}
	}
	return 1, err
}

func (r *frameLimitReader) readBody(p []byte) (int, error) {
	toRead := len(p)
	if toRead > r.bodyLeft {
		toRead = r.bodyLeft
	}
	n, err := r.r.Read(p[:toRead])
	r.bodyLeft -= n
	if r.bodyLeft <= 0 {
		r.inBody = false
	}
	return n, err
}
