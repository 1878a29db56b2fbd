package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanRequester chan struct{}

func (c chanRequester) RequestSync() {
	select {
	case c <- struct{}{}:
	default:
	}
}

func TestWatcher_RequestsSyncOnDocumentChange(t *testing.T) {
	dir := t.TempDir()
	req := make(chanRequester, 1)
	w := NewWatcher(dir, req, nil)
	w.settle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "update.json"), []byte(`{}`), 0o644))

	select {
	case <-req:
	case <-time.After(5 * time.Second):
		t.Fatal("no sync requested")
	}

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "absent"), make(chanRequester, 1), nil)
	err := w.Run(context.Background())
	assert.Error(t, err)
}
