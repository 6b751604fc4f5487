package server_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	_ "github.com/lib/pq"
)

// TestPSQLCrossImplementationConformance drives the wire listener with a
// real psql binary running inside a container on the host network,
// rather than any Go client — true cross-implementation wire
// compatibility, as opposed to the lib/pq tests above which only prove
// this Go module's own client library is happy.
func TestPSQLCrossImplementationConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-driven conformance test in -short mode")
	}

	addr := startTestServer(t)
	host := addrHost(t, addr)
	port := addrPort(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image: "postgres:16-alpine",
		Cmd:   []string{"sleep", "infinity"},
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.NetworkMode = "host"
		},
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn := fmt.Sprintf("postgresql://conformance@%s:%d/conformance?sslmode=disable", host, port)

	exitCode, reader, err := ctr.Exec(ctx, []string{
		"psql", dsn, "-c",
		"CREATE TABLE widgets (id INT, name TEXT); " +
			"INSERT INTO widgets (id, name) VALUES (1, 'left'); " +
			"SELECT id, name FROM widgets;",
	})
	require.NoError(t, err)

	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	t.Logf("psql output:\n%s", out)
	require.Equal(t, 0, exitCode, "psql exited non-zero against the wire listener")
	require.Contains(t, string(out), "left")
}
