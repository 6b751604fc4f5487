package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSQLSTATEClass(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"42601", ClassSyntax},         // syntax error
		{"42P01", ClassUndefinedObject}, // undefined table — 42P prefix must win over bare 42
		{"23505", ClassConstraint},      // unique violation
		{"25P02", ClassTxnState},
		{"0A000", ClassFeature},
		{"08006", ClassProtocol},
		{"53100", ClassResource},
		{"XX000", ClassInternal},
		{"99999", ClassOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeSQLSTATEClass(c.code), "code %q", c.code)
	}
}
