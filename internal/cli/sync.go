package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/treffen/confsync/internal/conference"
	"github.com/treffen/confsync/internal/feed"
	"github.com/treffen/confsync/internal/settings"
	"github.com/treffen/confsync/internal/syncer"
)

// OpenReport describes the database after open.
type OpenReport struct {
	Path            string `json:"path"`
	Driver          string `json:"driver"`
	FromVersion     int    `json:"from_version"`
	Version         int    `json:"version"`
	Created         bool   `json:"created"`
	Upgraded        bool   `json:"upgraded"`
	Recreated       bool   `json:"recreated"`
	DataInvalidated bool   `json:"data_invalidated"`
}

func (r OpenReport) String() string {
	switch {
	case r.Created:
		return fmt.Sprintf("created %s at schema version %d", r.Path, r.Version)
	case r.Recreated:
		return fmt.Sprintf("recreated %s at schema version %d (was %d); conference data invalidated", r.Path, r.Version, r.FromVersion)
	case r.Upgraded:
		return fmt.Sprintf("upgraded %s from schema version %d to %d; conference data invalidated", r.Path, r.FromVersion, r.Version)
	default:
		return fmt.Sprintf("%s is at schema version %d", r.Path, r.Version)
	}
}

// NewOpenCommand creates the open command.
func NewOpenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Create or upgrade the local database",
		Long: `Open the local database, creating it or bringing its schema to the current
version. An upgrade invalidates the stored conference data so the next sync
applies the feed in full.

Example:
  confsync open --db ./confsync.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer a.Close()

			return opts.formatter(cmd).Success(OpenReport{
				Path:            opts.Config.Database,
				Driver:          a.store.Driver(),
				FromVersion:     a.opened.FromVersion,
				Version:         a.opened.Version,
				Created:         a.opened.Created,
				Upgraded:        a.opened.Upgraded,
				Recreated:       a.opened.Recreated,
				DataInvalidated: a.opened.DataInvalidated,
			})
		},
	}
}

// SyncReport describes one sync or apply.
type SyncReport struct {
	Outcome   string   `json:"outcome"`
	CycleID   string   `json:"cycle_id,omitempty"`
	Digest    string   `json:"digest,omitempty"`
	Mutations int      `json:"mutations,omitempty"`
	Rows      int      `json:"rows,omitempty"`
	Sections  []string `json:"sections,omitempty"`
	Skipped   []string `json:"skipped,omitempty"`
}

func (r SyncReport) String() string {
	s := "sync " + r.Outcome
	if r.Rows > 0 {
		s += fmt.Sprintf(": %d rows in %v", r.Rows, r.Sections)
	}
	if len(r.Skipped) > 0 {
		s += fmt.Sprintf(" (skipped %v)", r.Skipped)
	}
	return s
}

// NewBootstrapCommand creates the bootstrap command.
func NewBootstrapCommand(opts *RootOptions) *cobra.Command {
	var timestamp string

	cmd := &cobra.Command{
		Use:   "bootstrap <file>",
		Short: "Apply the bundled conference document once",
		Long: `Apply a bundled conference document (plain JSON or zstd-compressed) on first
run. Bootstrap is recorded as done even when the document cannot be applied;
the next sync repairs whatever it could not provide.

Example:
  confsync bootstrap ./bootstrap.json.zst`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := feed.LoadBootstrap(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read bootstrap document", err)
			}

			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer a.Close()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to resolve bootstrap path", err)
			}
			before, err := a.state.Load(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read state", err)
			}

			doc := conference.Document{Name: file.Name, Data: file.Data}
			if err := a.syncer.Bootstrap(cmd.Context(), doc, timestamp); err != nil {
				return WrapExitError(ExitFailure, "bootstrap failed", err)
			}
			if !before.BootstrapDone {
				err := a.state.Update(cmd.Context(), func(st *settings.State) { st.BootstrapPath = path })
				if err != nil {
					return WrapExitError(ExitFailure, "failed to record bootstrap document", err)
				}
			}
			return opts.formatter(cmd).Success("bootstrap done")
		},
	}

	cmd.Flags().StringVar(&timestamp, "data-timestamp", "", "version stamp of the bundled data")
	return cmd
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch the feed and reconcile it once",
		Long: `Fetch the configured feed and reconcile it into the local database. Nothing
is written when the feed matches the applied data.

Example:
  confsync sync --feed https://conf.example.com/feed/manifest.json
  confsync sync --feed ./feed --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer a.Close()

			outcome, err := a.syncer.Sync(cmd.Context())
			if err != nil {
				_ = opts.formatter(cmd).Error(ErrorCode(err), err.Error(), nil)
				return WrapExitError(ExitFailure, "sync failed", err)
			}
			return opts.formatter(cmd).Success(SyncReport{Outcome: outcome.String()})
		},
	}
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(opts *RootOptions) *cobra.Command {
	var timestamp string

	cmd := &cobra.Command{
		Use:   "apply <file>...",
		Short: "Reconcile local documents into the database",
		Long: `Reconcile conference documents given on the command line, lowest priority
first, without fetching a feed. Later documents win on conflicting ids.

Example:
  confsync apply base.json overrides.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := make([]conference.Document, 0, len(args))
			for _, path := range args {
				f, err := feed.LoadBootstrap(path)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read document", err)
				}
				docs = append(docs, conference.Document{Name: f.Name, Data: f.Data})
			}

			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer a.Close()

			res, err := a.data.Apply(cmd.Context(), docs, timestamp)
			if err != nil {
				_ = opts.formatter(cmd).Error(ErrorCode(err), err.Error(), nil)
				return WrapExitError(ExitFailure, "apply failed", err)
			}
			report := SyncReport{
				Outcome:   syncer.OutcomeUnchanged.String(),
				CycleID:   res.CycleID,
				Digest:    res.Digest,
				Mutations: res.Mutations,
				Rows:      res.Rows,
				Sections:  res.Sections,
				Skipped:   res.Skipped,
			}
			if res.Changed {
				report.Outcome = syncer.OutcomeApplied.String()
				if _, err := a.store.UpdateSearchIndex(cmd.Context()); err != nil {
					return WrapExitError(ExitFailure, "failed to update search index", err)
				}
			}
			return opts.formatter(cmd).Success(report)
		},
	}

	cmd.Flags().StringVar(&timestamp, "data-timestamp", "", "version stamp recorded with the applied data")
	return cmd
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the database in sync until interrupted",
		Long: `Run the background syncer: sync once at start, then on every interval tick
and, for a feed directory, whenever a document in it changes.

Example:
  confsync watch --feed ./feed
  confsync watch --feed https://conf.example.com/feed/manifest.json --interval 15m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().Duration(keyInterval, 0, "periodic sync interval (0 disables)")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *RootOptions) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			opts.Logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := opts.openApp(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.syncer.Run(gctx) })

	if dir := opts.Config.Feed; dir != "" && isDir(dir) {
		w := syncer.NewWatcher(dir, a.syncer, opts.Logger)
		g.Go(func() error { return w.Run(gctx) })
	}

	a.syncer.RequestSync()
	fmt.Fprintln(cmd.OutOrStdout(), "Watching feed. Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "watch failed", err)
	}
	opts.Logger.Info("watch stopped")
	return nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
