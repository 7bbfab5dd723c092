package sqlitestore

import (
	"path/filepath"
	"testing"

	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T, limit int) store.Store {
		s, err := Open(filepath.Join(t.TempDir(), "aviator.db"), limit)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "aviator.db")
	s, err := Open(path, 50)
	require.NoError(t, err)
	require.NoError(t, s.Set(t.Context(), "a", "1"))
	require.NoError(t, s.Close())

	s, err = Open(path, 50)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(t.Context(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)
}
