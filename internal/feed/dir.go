package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// DirFetcher reads a feed from a local directory. With a manifest.json the
// manifest decides which files are read and in what order. Without one,
// every *.json and *.json.zst file is read in name order, bootstrap*
// files first.
type DirFetcher struct {
	dir string
}

// NewDirFetcher returns a fetcher over dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{dir: dir}
}

// Dir returns the watched directory.
func (f *DirFetcher) Dir() string { return f.dir }

func (f *DirFetcher) Fetch(ctx context.Context) (Snapshot, error) {
	names, version, err := f.listing()
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Version: version}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, err
		}
		data, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			return Snapshot{}, fmt.Errorf("fetch %s: %w", name, err)
		}
		plain, data, err := maybeDecompress(name, data)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Files = append(snap.Files, File{Name: plain, Data: data, Bootstrap: IsBootstrapName(plain)})
	}
	return snap, nil
}

func (f *DirFetcher) listing() ([]string, string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, ManifestName))
	switch {
	case err == nil:
		m, err := ParseManifest(data)
		if err != nil {
			return nil, "", err
		}
		return m.DataFiles, m.Version, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, "", fmt.Errorf("read manifest: %w", err)
	}

	names, err := ListDocuments(f.dir)
	if err != nil {
		return nil, "", err
	}
	return names, "", nil
}

// ListDocuments returns the document files in dir in feed order: bootstrap*
// files first, then the rest by name. The manifest itself is skipped.
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list feed dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == ManifestName || !IsDocumentName(name) {
			continue
		}
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		ab, bb := IsBootstrapName(a), IsBootstrapName(b)
		switch {
		case ab && !bb:
			return -1
		case bb && !ab:
			return 1
		}
		return strings.Compare(a, b)
	})
	return names, nil
}

// IsDocumentName reports whether name looks like a conference document.
func IsDocumentName(name string) bool {
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json"+CompressedExt)
}

// IsBootstrapName reports whether a feed file holds the bootstrap document.
func IsBootstrapName(name string) bool {
	return strings.HasPrefix(path.Base(name), "bootstrap")
}
