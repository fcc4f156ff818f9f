// Package testutil provides session helpers and assertions for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/emlua-dev/emlua/domain/entities"
	"github.com/emlua-dev/emlua/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// OpenSession opens a session that is closed when the test ends.
func OpenSession(t *testing.T, opts ...host.Option) *host.Session {
	t.Helper()
	s, err := host.Open(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if !s.Closed() {
			_ = s.Close()
		}
	})
	return s
}

// MustRun runs source and fails the test on error.
func MustRun(t *testing.T, s *host.Session, source string) {
	t.Helper()
	require.NoError(t, s.RunText(context.Background(), source))
	AssertStackBalanced(t, s)
}

// AssertGlobal asserts that the global name holds want.
func AssertGlobal(t *testing.T, s *host.Session, name string, want entities.Value) {
	t.Helper()
	got, err := s.ReadGlobal(name)
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "global %s: want %s, got %s", name, want, got)
}

// AssertStackBalanced asserts that nothing is left on the exchange stack.
func AssertStackBalanced(t *testing.T, s *host.Session, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, 0, s.StackDepth(), msgAndArgs...)
}
