package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestStore opens a snapshot database in t.TempDir(), closed by
// t.Cleanup().
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
