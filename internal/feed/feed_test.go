package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`{"format": "confsync-json-v1", "version": "7", "data_files": ["a.json", "b.json"]}`))
	require.NoError(t, err)
	assert.Equal(t, "7", m.Version)
	assert.Equal(t, []string{"a.json", "b.json"}, m.DataFiles)

	for _, bad := range []string{
		`{"format": "other", "data_files": []}`,
		`{"format": "confsync-json-v1", "data_files": ["../etc/passwd"]}`,
		`{"format": "confsync-json-v1", "data_files": [""]}`,
		`not json`,
	} {
		_, err := ParseManifest([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	src := []byte(`{"rooms": []}`)
	out, err := Decompress(Compress(src))
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestLoadBootstrap(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`{"rooms": [{"id": "r1"}]}`)
	writeFile(t, dir, "bootstrap.json", doc)
	writeFile(t, dir, "bootstrap.json.zst", Compress(doc))

	plain, err := LoadBootstrap(filepath.Join(dir, "bootstrap.json"))
	require.NoError(t, err)
	assert.Equal(t, File{Name: "bootstrap.json", Data: doc, Bootstrap: true}, plain)

	packed, err := LoadBootstrap(filepath.Join(dir, "bootstrap.json.zst"))
	require.NoError(t, err)
	assert.Equal(t, File{Name: "bootstrap.json", Data: doc, Bootstrap: true}, packed)

	_, err = LoadBootstrap(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestDirFetcher_WithoutManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b-update.json", []byte(`{"b": []}`))
	writeFile(t, dir, "a-update.json.zst", Compress([]byte(`{"a": []}`)))
	writeFile(t, dir, "bootstrap.json", []byte(`{}`))
	writeFile(t, dir, "notes.txt", []byte("ignored"))

	snap, err := NewDirFetcher(dir).Fetch(context.Background())
	require.NoError(t, err)

	var names []string
	for _, f := range snap.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"bootstrap.json", "a-update.json", "b-update.json"}, names)
	assert.Equal(t, []byte(`{"a": []}`), snap.Files[1].Data)
	assert.True(t, snap.Files[0].Bootstrap)
	assert.False(t, snap.Files[1].Bootstrap)
}

func TestIsBootstrapName(t *testing.T) {
	assert.True(t, IsBootstrapName("bootstrap.json"))
	assert.True(t, IsBootstrapName("data/bootstrap-2016.json"))
	assert.False(t, IsBootstrapName("session_data.json"))
	assert.False(t, IsBootstrapName("data/after-bootstrap.json"))
}

func TestDirFetcher_ManifestOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, []byte(`{"format": "confsync-json-v1", "version": "v3", "data_files": ["z.json", "a.json"]}`))
	writeFile(t, dir, "z.json", []byte(`{}`))
	writeFile(t, dir, "a.json", []byte(`{}`))
	writeFile(t, dir, "unlisted.json", []byte(`{}`))

	snap, err := NewDirFetcher(dir).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v3", snap.Version)
	require.Len(t, snap.Files, 2)
	assert.Equal(t, "z.json", snap.Files[0].Name)
	assert.Equal(t, "a.json", snap.Files[1].Name)
}

func TestHTTPFetcher(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/feed/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"format": "confsync-json-v1", "version": "42", "data_files": ["one.json", "two.json.zst"]}`)
	})
	mux.HandleFunc("/feed/one.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"rooms": []}`)
	})
	mux.HandleFunc("/feed/two.json.zst", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(Compress([]byte(`{"tags": []}`)))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	snap, err := NewHTTPFetcher(srv.URL+"/feed/manifest.json", HTTPOptions{}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", snap.Version)
	assert.Equal(t, []File{
		{Name: "one.json", Data: []byte(`{"rooms": []}`)},
		{Name: "two.json", Data: []byte(`{"tags": []}`)},
	}, snap.Files)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPFetcher_DataFileFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"format": "confsync-json-v1", "data_files": ["gone.json"]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL+"/manifest.json", HTTPOptions{}).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
