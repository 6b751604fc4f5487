package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeMessage(typ byte, declaredLen uint32, body []byte) []byte {
	buf := make([]byte, 0, 5+len(body))
	buf = append(buf, typ)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], declaredLen)
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, body...)
	return buf
}

func TestFrameLimitReaderPassesSmallMessagesThrough(t *testing.T) {
	body := []byte("SELECT 1")
	msg := encodeMessage('Q', uint32(4+len(body)), body)

	r := newFrameLimitReader(bytes.NewReader(msg), 256*1024*1024)
	r.EnableLimit()

	out := make([]byte, len(msg))
	_, err := io.ReadFull(r, out)
	require.NoError(t, err)
	assert.Equal(t, msg, out)
}

func TestFrameLimitReaderRejectsOversizedDeclaredLengthWithoutReadingBody(t *testing.T) {
	const maxLen = 256 * 1024 * 1024
	const declared = 0x40000000 // exceeds the 256 MiB cap

	// No body bytes are supplied at all: if the reader tried to read the
	// body, it would block/EOF on this reader rather than reject eagerly.
	msg := encodeMessage('Q', declared, nil)

	r := newFrameLimitReader(bytes.NewReader(msg), maxLen)
	r.EnableLimit()

	// Ask for more than the 5-byte header so a forgiving io.ReadFull
	// (which ignores a trailing error once exactly the requested byte
	// count has arrived) can't mask the rejection.
	out := make([]byte, 16)
	_, err := io.ReadFull(r, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFrameTooLarge)

	// the connection is considered broken — further reads keep failing,
	// never silently recovering into body bytes.
	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, errFrameTooLarge)
}

func TestFrameLimitReaderInactiveDuringStartupPassesThrough(t *testing.T) {
	raw := []byte{0, 0, 0, 8, 4, 210, 22, 47}
	r := newFrameLimitReader(bytes.NewReader(raw), 16)

	out := make([]byte, len(raw))
	n, err := io.ReadFull(r, out)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, raw, out)
}
