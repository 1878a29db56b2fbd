// Package feedserver publishes a directory of conference documents, usually
// the extractor's output, as an HTTP feed that feed.HTTPFetcher consumes.
package feedserver

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"github.com/treffen/confsync/internal/feed"
	"github.com/treffen/confsync/internal/ir"
)

// DataPrefix is the path data files are served under.
const DataPrefix = "data/"

// Server serves the manifest and data files of one directory. The
// directory is read on every request, so files dropped into it are
// published without a restart.
type Server struct {
	dir    string
	logger *slog.Logger
}

// New returns the feed router for dir. A nil logger discards output.
func New(dir string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{dir: dir, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/"+feed.ManifestName, s.manifest)
	r.Get("/"+DataPrefix+"{name}", s.data)
	return r
}

// Manifest builds the manifest for the directory's current contents. The
// version changes whenever a file is added, removed or edited.
func (s *Server) Manifest() (feed.Manifest, error) {
	names, err := feed.ListDocuments(s.dir)
	if err != nil {
		return feed.Manifest{}, err
	}

	var stamp bytes.Buffer
	m := feed.Manifest{Format: feed.ManifestFormat, DataFiles: make([]string, 0, len(names))}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return feed.Manifest{}, fmt.Errorf("manifest: %w", err)
		}
		fmt.Fprintf(&stamp, "%s\x00%s\n", name, ir.FileHash(data))
		m.DataFiles = append(m.DataFiles, DataPrefix+name)
	}
	m.Version = ir.FileHash(stamp.Bytes())[:16]
	return m, nil
}

func (s *Server) manifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.Manifest()
	if err != nil {
		s.logger.Error("failed to build manifest", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(m); err != nil {
		s.logger.Warn("failed to write manifest", "error", err)
	}
}

func (s *Server) data(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !feed.IsDocumentName(name) || name == feed.ManifestName ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("failed to open data file", "name", name, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if strings.HasSuffix(name, feed.CompressedExt) {
		w.Header().Set("Content-Type", "application/zstd")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
	s.logger.Debug("served data file", "name", name, "request_id", chimw.GetReqID(r.Context()))
}
