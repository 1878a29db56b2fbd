package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands. Flag values are the
// lowest-priority source; Config holds the resolved settings after the
// environment and config file are merged in.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	Config Config
	Logger *slog.Logger

	logCloser io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the confsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Logger: slog.New(slog.DiscardHandler)}

	cmd := &cobra.Command{
		Use:   "confsync",
		Short: "confsync - conference data sync",
		Long: `Keeps a local conference database in step with a published feed.

The feed is a set of JSON documents (rooms, tags, speakers, sessions, videos,
cards, announcements, map) reconciled atomically into SQLite. The CLI drives
bootstrap, manual and background sync, schedule queries, account sign-in and
the vendor export extractor that produces the feed.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			if !isValidFormat(opts.Config.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Config.Format, ValidFormats))
			}
			opts.Logger, opts.logCloser = newLogger(opts.Config, cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default ./confsync.yaml)")
	pf.String(keyDatabase, "confsync.db", "path to the SQLite database")
	pf.String(keyState, "confsync-state.yaml", "path to the client state file")
	pf.String(keyDriver, "", "database/sql driver (sqlite3|sqlite)")
	pf.String(keyFeed, "", "feed manifest URL or feed directory")
	pf.String(keyLogFile, "", "write logs to a rotating file instead of stderr")

	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewBootstrapCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewStarCommand(opts))
	cmd.AddCommand(NewSigninCommand(opts))
	cmd.AddCommand(NewExtractCommand(opts))
	cmd.AddCommand(NewServeFeedCommand(opts))

	return cmd
}

// formatter returns an OutputFormatter writing to cmd's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Config.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Config.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
