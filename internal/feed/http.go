package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// HTTPOptions configures an HTTPFetcher. Zero values pick the defaults.
type HTTPOptions struct {
	Client *http.Client

	// Timeout bounds the whole fetch. Defaults to 30 seconds.
	Timeout time.Duration

	// Concurrency bounds parallel data file downloads. Defaults to 4.
	Concurrency int

	Logger *slog.Logger
}

// HTTPFetcher downloads a manifest and then its data files concurrently.
type HTTPFetcher struct {
	manifestURL string
	client      *http.Client
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewHTTPFetcher returns a fetcher for the manifest at manifestURL. Data
// file names resolve relative to the manifest URL.
func NewHTTPFetcher(manifestURL string, opts HTTPOptions) *HTTPFetcher {
	f := &HTTPFetcher{
		manifestURL: manifestURL,
		client:      opts.Client,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
	if f.client == nil {
		f.client = http.DefaultClient
	}
	if f.timeout <= 0 {
		f.timeout = 30 * time.Second
	}
	if f.concurrency <= 0 {
		f.concurrency = 4
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	base, err := url.Parse(f.manifestURL)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch manifest: %w", err)
	}
	data, err := f.get(ctx, base.String())
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return Snapshot{}, err
	}

	files := make([]File, len(m.DataFiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, name := range m.DataFiles {
		g.Go(func() error {
			ref, err := url.Parse(name)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", name, err)
			}
			body, err := f.get(gctx, base.ResolveReference(ref).String())
			if err != nil {
				return fmt.Errorf("fetch %s: %w", name, err)
			}
			plain, body, err := maybeDecompress(name, body)
			if err != nil {
				return err
			}
			files[i] = File{Name: plain, Data: body, Bootstrap: IsBootstrapName(plain)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	f.logger.Debug("fetched feed", "version", m.Version, "files", len(files))
	return Snapshot{Version: m.Version, Files: files}, nil
}

func (f *HTTPFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
