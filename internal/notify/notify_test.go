package notify

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus, err := Start(zerolog.Nop())
	require.NoError(t, err)
	defer bus.Shutdown()

	msgs, unsubscribe, err := bus.Subscribe("events")
	require.NoError(t, err)
	defer unsubscribe()

	bus.Publish("events", "payload-1")

	select {
	case got := <-msgs:
		require.Equal(t, "payload-1", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestPublishSchemaChange(t *testing.T) {
	bus, err := Start(zerolog.Nop())
	require.NoError(t, err)
	defer bus.Shutdown()

	msgs, unsubscribe, err := bus.Subscribe(SchemaChangeChannel)
	require.NoError(t, err)
	defer unsubscribe()

	bus.PublishSchemaChange("widgets")

	select {
	case got := <-msgs:
		require.Equal(t, "widgets", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for schema change notification")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus, err := Start(zerolog.Nop())
	require.NoError(t, err)
	defer bus.Shutdown()

	msgs, unsubscribe, err := bus.Subscribe("events")
	require.NoError(t, err)
	unsubscribe()

	bus.Publish("events", "should-not-arrive")

	select {
	case _, ok := <-msgs:
		require.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(500 * time.Millisecond):
		t.Fatal("unsubscribed channel neither closed nor drained")
	}
}
