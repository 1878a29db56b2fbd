// Package feed fetches conference documents: from an HTTP feed described by
// a manifest, from a local directory, or from a bundled bootstrap file.
// Fetchers own retries and timeouts; the reconciliation core only sees
// documents already fetched.
package feed

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// ManifestFormat is the only manifest format understood.
const ManifestFormat = "confsync-json-v1"

// ManifestName is the manifest file name in a feed directory.
const ManifestName = "manifest.json"

// Manifest lists the data files of a feed, lowest priority first.
type Manifest struct {
	Format    string   `json:"format"`
	Version   string   `json:"version,omitempty"`
	DataFiles []string `json:"data_files"`
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Format != ManifestFormat {
		return Manifest{}, fmt.Errorf("parse manifest: unsupported format %q", m.Format)
	}
	for _, name := range m.DataFiles {
		if name == "" || strings.Contains(name, "..") {
			return Manifest{}, fmt.Errorf("parse manifest: invalid data file %q", name)
		}
	}
	return m, nil
}

// File is one fetched document.
type File struct {
	Name string
	Data []byte

	// Bootstrap marks the bundled document. A feed file counts as one when
	// its name starts with "bootstrap".
	Bootstrap bool
}

// Snapshot is the result of one fetch.
type Snapshot struct {
	// Version is the feed's version stamp, empty when the feed has none.
	Version string

	// Files are ordered lowest priority first.
	Files []File
}

// Fetcher retrieves the current feed.
type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}
