package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/treffen/confsync/internal/feed"
)

// Requester receives sync requests.
type Requester interface {
	RequestSync()
}

// Watcher requests a sync whenever a document in a feed directory is
// created, written, removed or renamed. Bursts of events within the settle
// delay collapse into one request.
type Watcher struct {
	dir    string
	target Requester
	settle time.Duration
	logger *slog.Logger
}

// NewWatcher returns a watcher over dir. A nil logger discards output.
func NewWatcher(dir string, target Requester, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{dir: dir, target: target, settle: 200 * time.Millisecond, logger: logger}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch feed directory %s: %w", w.dir, err)
	}
	w.logger.Info("watching feed directory", "dir", w.dir)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("feed file changed", "path", event.Name, "op", event.Op.String())
			settle = time.After(w.settle)

		case <-settle:
			settle = nil
			w.target.RequestSync()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if !feed.IsDocumentName(name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
