package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/ast"
)

func TestParseListen(t *testing.T) {
	stmts, err := ParseStatements("LISTEN my_channel")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	l, ok := stmts[0].(*ast.Listen)
	require.True(t, ok, "expected *ast.Listen, got %T", stmts[0])
	require.Equal(t, "my_channel", l.Channel)
}

func TestParseNotifyWithPayload(t *testing.T) {
	stmts, err := ParseStatements("NOTIFY my_channel, 'hello world'")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	n, ok := stmts[0].(*ast.Notify)
	require.True(t, ok, "expected *ast.Notify, got %T", stmts[0])
	require.Equal(t, "my_channel", n.Channel)
	require.Equal(t, "hello world", n.Payload)
}

func TestParseNotifyWithoutPayload(t *testing.T) {
	stmts, err := ParseStatements("NOTIFY my_channel")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	n, ok := stmts[0].(*ast.Notify)
	require.True(t, ok, "expected *ast.Notify, got %T", stmts[0])
	require.Equal(t, "my_channel", n.Channel)
	require.Equal(t, "", n.Payload)
}
