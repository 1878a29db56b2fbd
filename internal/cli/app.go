package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/treffen/confsync/internal/conference"
	"github.com/treffen/confsync/internal/feed"
	"github.com/treffen/confsync/internal/schedule"
	"github.com/treffen/confsync/internal/settings"
	"github.com/treffen/confsync/internal/store"
	"github.com/treffen/confsync/internal/syncer"
)

// app is the wired client: store, state, reconciliation and sync.
type app struct {
	store  *store.Store
	opened store.OpenResult
	state  *settings.File
	data   *conference.DataHandler
	syncer *syncer.Syncer
}

// openApp opens the database and wires the client around it. A schema
// upgrade that invalidated the stored data clears the persisted digest so
// the next sync applies in full.
func (o *RootOptions) openApp(ctx context.Context) (*app, error) {
	cfg := o.Config
	st, opened, err := store.Open(ctx, cfg.Database, store.Options{Driver: cfg.Driver, Logger: o.Logger})
	if err != nil {
		return nil, err
	}

	state := settings.NewFile(cfg.State)
	data := conference.New(st, state, conference.Options{Logger: o.Logger})

	sy := syncer.New(newFetcher(cfg.Feed, o), data, st, state, syncer.Options{Logger: o.Logger, Interval: cfg.Interval})
	if err := o.loadBase(ctx, state, sy); err != nil {
		st.Close()
		return nil, err
	}

	if opened.DataInvalidated {
		if err := sy.Invalidate(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}

	o.Logger.Debug("store ready",
		"path", cfg.Database, "driver", st.Driver(), "version", opened.Version,
		"created", opened.Created, "upgraded", opened.Upgraded)
	return &app{store: st, opened: opened, state: state, data: data, syncer: sy}, nil
}

// loadBase puts the recorded bootstrap document beneath every sync. A
// document that can no longer be read is logged and skipped.
func (o *RootOptions) loadBase(ctx context.Context, state settings.Store, sy *syncer.Syncer) error {
	st, err := state.Load(ctx)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	if st.BootstrapPath == "" {
		return nil
	}
	f, err := feed.LoadBootstrap(st.BootstrapPath)
	if err != nil {
		o.Logger.Warn("bootstrap document unavailable, syncing the feed alone",
			"path", st.BootstrapPath, "error", err)
		return nil
	}
	sy.SetBase(conference.Document{Name: f.Name, Data: f.Data, Bootstrap: true})
	return nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) schedule(o *RootOptions) *schedule.Helper {
	return schedule.NewHelper(a.store, a.state, o.Logger)
}

// newFetcher picks an HTTP fetcher for URLs and a directory fetcher
// otherwise. Without a feed every fetch fails, which only matters to
// commands that sync.
func newFetcher(source string, o *RootOptions) feed.Fetcher {
	switch {
	case source == "":
		return missingFeed{}
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return feed.NewHTTPFetcher(source, feed.HTTPOptions{Logger: o.Logger})
	default:
		return feed.NewDirFetcher(source)
	}
}

type missingFeed struct{}

func (missingFeed) Fetch(context.Context) (feed.Snapshot, error) {
	return feed.Snapshot{}, fmt.Errorf("no feed configured: set --%s or %s_FEED", keyFeed, EnvPrefix)
}
