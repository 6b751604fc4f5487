package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/errs"
	"github.com/martinsk/mskql/internal/schema"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	db := schema.New("test")
	return New(server, db, nil, 1, 0)
}

func TestDoListenWithoutBusFails(t *testing.T) {
	s := newTestSession(t)

	err := s.doListen("some_channel")
	require.Error(t, err)

	ee := errs.AsEngineError(err)
	require.NotNil(t, ee)
	assert.Equal(t, errs.KindFeatureNotSupported, ee.Kind)
}

func TestDoNotifyWithoutBusIsNoop(t *testing.T) {
	s := newTestSession(t)
	// Must not panic when the notify bus is disabled.
	s.doNotify("some_channel", "payload")
}
