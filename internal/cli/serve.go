package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/treffen/confsync/internal/feedserver"
)

// NewServeFeedCommand creates the serve-feed command.
func NewServeFeedCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-feed <dir>",
		Short: "Publish a directory of conference documents over HTTP",
		Long: `Serve a manifest and the documents of a directory. The manifest is rebuilt
on every request, so documents written by extract are published at once.

Routes:
  GET /manifest.json
  GET /data/{name}
  GET /healthz

Example:
  confsync serve-feed --addr :8080 ./feed
  confsync sync --feed http://localhost:8080/manifest.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isDir(args[0]) {
				return NewExitError(ExitCommandError, fmt.Sprintf("not a directory: %s", args[0]))
			}
			return serveFeed(cmd, opts, addr, args[0])
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func serveFeed(cmd *cobra.Command, opts *RootOptions, addr, dir string) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           feedserver.New(dir, opts.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		opts.Logger.Info("serving feed", "addr", addr, "dir", dir)
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s. Press Ctrl-C to stop.\n", dir, addr)

	select {
	case err := <-errCh:
		return WrapExitError(ExitCommandError, "feed server failed", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "feed server shutdown", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "feed server failed", err)
	}
	opts.Logger.Info("feed server stopped")
	return nil
}
