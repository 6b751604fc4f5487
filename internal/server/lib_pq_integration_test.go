package server_test

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/catalog"
	"github.com/martinsk/mskql/internal/config"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/server"
)

func addrHost(t *testing.T, addr string) string {
	t.Helper()
	host, _, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	return host
}

func addrPort(t *testing.T, addr string) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

// startTestServer boots a wire listener on an ephemeral port and returns
// its dial address, tearing down on test cleanup.
func startTestServer(t *testing.T) string {
	t.Helper()

	db := schema.New("conformance")
	catalog.Rebuild(db)

	cfg := config.ServerConfig{
		Host:          "127.0.0.1",
		Port:          0,
		MsgRatePerSec: 1000,
	}
	srv := server.New(cfg, db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	addr := srv.Addr()
	return addr.String()
}

// TestLibPQRoundTrip drives the wire listener with database/sql and the
// real lib/pq driver, exercising the Simple Query protocol end to end
// the way an unmodified Postgres client would.
func TestLibPQRoundTrip(t *testing.T) {
	addr := startTestServer(t)

	dsn := fmt.Sprintf("host=%s port=%d user=conformance dbname=conformance sslmode=disable",
		addrHost(t, addr), addrPort(t, addr))

	dbConn, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer dbConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, dbConn.PingContext(ctx))

	_, err = dbConn.ExecContext(ctx, "CREATE TABLE widgets (id INT, name TEXT)")
	require.NoError(t, err)

	_, err = dbConn.ExecContext(ctx, "INSERT INTO widgets (id, name) VALUES (1, 'left'), (2, 'right')")
	require.NoError(t, err)

	rows, err := dbConn.QueryContext(ctx, "SELECT id, name FROM widgets ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var id int
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		got = append(got, fmt.Sprintf("%d:%s", id, name))
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"1:left", "2:right"}, got)
}

// TestLibPQPreparedStatement exercises the Extended Query protocol via
// lib/pq's prepared-statement path (Parse/Bind/Execute under the hood).
func TestLibPQPreparedStatement(t *testing.T) {
	addr := startTestServer(t)

	dsn := fmt.Sprintf("host=%s port=%d user=conformance dbname=conformance sslmode=disable",
		addrHost(t, addr), addrPort(t, addr))

	dbConn, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer dbConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = dbConn.ExecContext(ctx, "CREATE TABLE widgets (id INT, name TEXT)")
	require.NoError(t, err)

	stmt, err := dbConn.PrepareContext(ctx, "INSERT INTO widgets (id, name) VALUES ($1, $2)")
	require.NoError(t, err)
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, 7, "seven")
	require.NoError(t, err)

	var name string
	row := dbConn.QueryRowContext(ctx, "SELECT name FROM widgets WHERE id = $1", 7)
	require.NoError(t, row.Scan(&name))
	require.Equal(t, "seven", name)
}
