package feedserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treffen/confsync/internal/feed"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestManifestListsDocuments(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"sessions.json":  `{"sessions":[]}`,
		"bootstrap.json": `{"rooms":[]}`,
		"notes.txt":      "ignored",
	})
	srv := httptest.NewServer(New(dir, nil))
	defer srv.Close()

	resp, body := get(t, srv, "/manifest.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	m, err := feed.ParseManifest(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"data/bootstrap.json", "data/sessions.json"}, m.DataFiles)
	assert.Len(t, m.Version, 16)
}

func TestManifestVersionTracksContent(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.json": `{}`})
	s := &Server{dir: dir}

	before, err := s.Manifest()
	require.NoError(t, err)
	again, err := s.Manifest()
	require.NoError(t, err)
	assert.Equal(t, before.Version, again.Version)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"rooms":[]}`), 0o644))
	after, err := s.Manifest()
	require.NoError(t, err)
	assert.NotEqual(t, before.Version, after.Version)
}

func TestDataFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.json": `{"rooms":[]}`, "secret.txt": "x"})
	srv := httptest.NewServer(New(dir, nil))
	defer srv.Close()

	resp, body := get(t, srv, "/data/a.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"rooms":[]}`, string(body))

	for _, path := range []string{"/data/secret.txt", "/data/missing.json", "/data/manifest.json"} {
		resp, _ := get(t, srv, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(New(t.TempDir(), nil))
	defer srv.Close()

	resp, body := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestServedFeedRoundTripsThroughFetcher(t *testing.T) {
	compressed := feed.Compress([]byte(`{"sessions":[]}`))

	dir := writeFiles(t, map[string]string{"bootstrap.json": `{"rooms":[{"id":"r1"}]}`})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.json.zst"), compressed, 0o644))

	srv := httptest.NewServer(New(dir, nil))
	defer srv.Close()

	snap, err := feed.NewHTTPFetcher(srv.URL+"/manifest.json", feed.HTTPOptions{}).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Files, 2)
	assert.Equal(t, "data/bootstrap.json", snap.Files[0].Name)
	assert.Equal(t, "data/sessions.json", snap.Files[1].Name)
	assert.JSONEq(t, `{"sessions":[]}`, string(snap.Files[1].Data))
	assert.NotEmpty(t, snap.Version)

	var m feed.Manifest
	_, body := get(t, srv, "/manifest.json")
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, snap.Version, m.Version)
}
