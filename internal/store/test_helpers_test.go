package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/treffen/confsync/internal/model"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, _, err := Open(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createStoreAtVersion builds a database whose schema stops at version and
// returns its path. The handle is closed before returning.
func createStoreAtVersion(t *testing.T, version int) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")

	db := openRawDB(t, path)
	defer db.Close()

	s := &Store{db: db, logger: slog.New(slog.DiscardHandler)}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	reached, err := s.replay(ctx, tx, schemaSteps[:version], 0)
	if err != nil {
		t.Fatalf("replay to %d: %v", version, err)
	}
	if reached != version {
		t.Fatalf("replay reached %d, want %d", reached, version)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return path
}

func openRawDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverCGO, path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := applyPragmas(context.Background(), db); err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatalf("tableExists(%s): %v", name, err)
	}
	return n == 1
}

func mustCount(t *testing.T, s *Store, table string) int {
	t.Helper()
	n, err := s.Count(context.Background(), table)
	if err != nil {
		t.Fatalf("Count(%s): %v", table, err)
	}
	return n
}

// sessionMutation builds an upsert for a minimal session row.
func sessionMutation(id, room string, start, end int64, tags ...string) Mutation {
	v := Values{
		"updated":                 int64(1),
		"session_start":           start,
		"session_end":             end,
		"session_title":           "Session " + id,
		"session_tags":            JoinTags(tags),
		"session_import_hashcode": "hash-" + id,
	}
	if room != "" {
		v["room_id"] = room
	}
	return Mutation{Entity: EntitySession, Op: OpUpsert, Key: id, Values: v}
}

// seedConference writes room r1, tags, speaker p1 and the given sessions,
// each joined to every tag and to p1.
func seedConference(t *testing.T, s *Store, tags []string, sessions ...string) {
	t.Helper()
	batch := Batch{
		{Entity: EntityRoom, Op: OpInsert, Key: "r1", Values: Values{"room_name": "Stage 1"}},
		{Entity: EntitySpeaker, Op: OpUpsert, Key: "p1", Values: Values{
			"updated": int64(1), "speaker_name": "Ada", "speaker_import_hashcode": "hp1"}},
	}
	for i, tag := range tags {
		batch = append(batch, Mutation{Entity: EntityTag, Op: OpInsert, Key: tag, Values: Values{
			"tag_category": string(model.CategoryOf(tag)), "tag_name": tag,
			"tag_order_in_category": int64(i), "tag_color": "", "tag_abstract": ""}})
	}
	for i, id := range sessions {
		start := int64(1000 * (i + 1))
		batch = append(batch, sessionMutation(id, "r1", start, start+500, tags...))
		for _, tag := range tags {
			batch = append(batch, Mutation{Entity: EntitySessionTag, Op: OpInsert, Key: id, Values: Values{"tag_id": tag}})
		}
		batch = append(batch, Mutation{Entity: EntitySessionSpeaker, Op: OpInsert, Key: id, Values: Values{"speaker_id": "p1"}})
	}
	if _, err := s.ApplyBatch(context.Background(), batch); err != nil {
		t.Fatalf("seed: %v", err)
	}
}
