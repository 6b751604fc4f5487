// Package notify implements the engine's LISTEN/NOTIFY channel (spec
// §4.10 Supplemented Features) on top of an in-process NATS server, so
// catalog-change notifications and user NOTIFY payloads fan out the same
// way a multi-process deployment's pub/sub would, without an external
// broker. No session-lifecycle events are published on it.
package notify

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// SchemaChangeChannel is the reserved channel auto-notified on every
// catalog-mutating DDL statement (CREATE/DROP TABLE, CREATE TYPE).
const SchemaChangeChannel = "mskql_schema_change"

// Bus is the embedded pub/sub backing LISTEN/NOTIFY. Publish is wrapped
// in a circuit breaker so a wedged NATS core degrades query execution to
// a no-op NOTIFY instead of blocking the statement that triggered it.
type Bus struct {
	ns   *natsserver.Server
	nc   *nats.Conn
	cb   *gobreaker.CircuitBreaker
	log  zerolog.Logger
}

// Start boots an embedded, loopback-only NATS server and connects an
// internal client to it.
func Start(log zerolog.Logger) (*Bus, error) {
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1, // random free port; this bus is never reached externally
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
	}
	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to start embedded NATS: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(4 * time.Second) {
		return nil, fmt.Errorf("notify: embedded NATS did not become ready")
	}

	nc, err := nats.Connect(ns.ClientURL(), nats.Name("mskql"))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("notify: failed to connect internal client: %w", err)
	}

	cbSettings := gobreaker.Settings{
		Name:        "notify-publish",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}

	return &Bus{
		ns:  ns,
		nc:  nc,
		cb:  gobreaker.NewCircuitBreaker(cbSettings),
		log: log.With().Str("component", "notify").Logger(),
	}, nil
}

// Publish implements NOTIFY channel, 'payload'. A broken circuit silently
// drops the notification rather than failing the statement that issued
// it — LISTEN/NOTIFY is best-effort, not part of the transaction.
func (b *Bus) Publish(channel, payload string) {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.nc.Publish(channel, []byte(payload))
	})
	if err != nil {
		b.log.Warn().Err(err).Str("channel", channel).Msg("notify publish suppressed")
	}
}

// PublishSchemaChange notifies SchemaChangeChannel with the mutated
// table's name, for any session LISTENing on catalog invalidation.
func (b *Bus) PublishSchemaChange(tableName string) {
	b.Publish(SchemaChangeChannel, tableName)
}

// Subscribe implements LISTEN channel for one session: msgs delivers the
// payload of every NOTIFY on channel until unsubscribe is called.
func (b *Bus) Subscribe(channel string) (msgs <-chan string, unsubscribe func(), err error) {
	out := make(chan string, 64)
	sub, err := b.nc.Subscribe(channel, func(m *nats.Msg) {
		select {
		case out <- string(m.Data):
		default:
			// Slow listener: drop rather than block the publisher.
		}
	})
	if err != nil {
		close(out)
		return nil, nil, fmt.Errorf("notify: subscribe %q: %w", channel, err)
	}
	return out, func() { _ = sub.Unsubscribe(); close(out) }, nil
}

// Shutdown drains the internal client and stops the embedded server.
func (b *Bus) Shutdown() {
	b.nc.Close()
	b.ns.Shutdown()
}
