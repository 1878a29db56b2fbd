package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_MissingFileIsZeroState(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "state.yaml"))
	st, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

func TestFile_UpdateRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	f := NewFile(path)
	synced := time.Date(2016, 5, 18, 17, 0, 0, 0, time.UTC)

	require.NoError(t, f.Update(ctx, func(s *State) {
		s.Digest = "abc"
		s.DataTimestamp = "2016-05-18T00:00:00Z"
		s.LastSync = synced
		s.BootstrapDone = true
	}))

	st, err := NewFile(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", st.Digest)
	assert.True(t, st.BootstrapDone)
	assert.True(t, synced.Equal(st.LastSync))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not linger")
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("digest: [unterminated"), 0o644))

	_, err := NewFile(path).Load(context.Background())
	assert.Error(t, err)
}

func TestState_Invalidate(t *testing.T) {
	st := State{Digest: "d", DataTimestamp: "ts", BootstrapDone: true, Account: "alice"}
	st.Invalidate()
	assert.Equal(t, State{BootstrapDone: true, Account: "alice"}, st)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(State{Account: "alice"})
	require.NoError(t, m.Update(ctx, func(s *State) { s.Digest = "x" }))

	st, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{Account: "alice", Digest: "x"}, st)
}
