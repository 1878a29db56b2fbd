package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treffen/confsync/internal/model"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.db")

	s, res, err := Open(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if !res.Created {
		t.Error("expected Created on an empty database")
	}
	if res.Upgraded || res.DataInvalidated {
		t.Errorf("unexpected result flags: %+v", res)
	}
	if res.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", res.Version, CurrentVersion)
	}
	if err := s.verifyPragma("user_version", fmt.Sprint(CurrentVersion)); err != nil {
		t.Error(err)
	}
}

func TestOpen_ReopenIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, _, err := Open(ctx, path, Options{})
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s.Close()

	s, res, err := Open(ctx, path, Options{})
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s.Close()

	if res.Created || res.Upgraded || res.Recreated || res.DataInvalidated {
		t.Errorf("reopen at current version changed the schema: %+v", res)
	}
}

func TestOpen_PureGoDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purego.db")

	s, res, err := Open(context.Background(), path, Options{Driver: DriverPureGo})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, DriverPureGo, s.Driver())
	assert.True(t, res.Created)
	require.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db returned error: %v", err)
	}
}

func TestOpen_UpgradeFromEveryVersionKeepsUserData(t *testing.T) {
	ctx := context.Background()

	for v := VersionBase; v < CurrentVersion; v++ {
		t.Run(fmt.Sprintf("from_%d", v), func(t *testing.T) {
			path := createStoreAtVersion(t, v)

			db := openRawDB(t, path)
			_, err := db.Exec(`INSERT INTO rooms (room_id, room_name) VALUES ('r1', 'Stage 1')`)
			require.NoError(t, err)
			_, err = db.Exec(`INSERT INTO sessions (updated, session_id, room_id, session_start, session_end)
				VALUES (1, 's1', 'r1', 1000, 2000)`)
			require.NoError(t, err)
			_, err = db.Exec(`INSERT INTO myschedule (session_id, account_name, in_schedule) VALUES ('s1', 'alice', 1)`)
			require.NoError(t, err)
			if v >= VersionFeedbackSubmitted {
				_, err = db.Exec(`INSERT INTO myfeedbacksubmitted (session_id, account_name) VALUES ('s1', 'alice')`)
				require.NoError(t, err)
			}
			require.NoError(t, db.Close())

			s, res, err := Open(ctx, path, Options{})
			require.NoError(t, err)
			defer s.Close()

			assert.Equal(t, v, res.FromVersion)
			assert.True(t, res.Upgraded)
			assert.True(t, res.DataInvalidated)
			assert.False(t, res.Recreated)

			sched, err := s.MySchedule(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, sched, 1)
			assert.Equal(t, "s1", sched[0].SessionID)

			if v >= VersionFeedbackSubmitted {
				assert.Equal(t, 1, mustCount(t, s, TableMyFeedbackSubmitted))
			}
			require.NoError(t, s.verifyPragma("user_version", fmt.Sprint(CurrentVersion)))
		})
	}
}

func TestOpen_ReservationsSurviveBlockKindUpgrade(t *testing.T) {
	ctx := context.Background()
	path := createStoreAtVersion(t, VersionReservations)

	db := openRawDB(t, path)
	_, err := db.Exec(`INSERT INTO sessions (updated, session_id, session_start, session_end) VALUES (1, 's1', 1, 2)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO myreservations (session_id, account_name, reservation_status, timestamp)
		VALUES ('s1', 'alice', 2, 77)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, _, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Reservations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, model.ReservationWaitlisted, res[0].Status)
	assert.Equal(t, int64(77), res[0].Timestamp)
}

func TestOpen_UnknownVersionRecreates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "future.db")

	db := openRawDB(t, path)
	_, err := db.Exec(`CREATE TABLE sessions (session_id TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sessions VALUES ('stale')`)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA user_version = 999`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, res, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, res.Recreated)
	assert.True(t, res.DataInvalidated)
	assert.Equal(t, 999, res.FromVersion)
	assert.Equal(t, 0, mustCount(t, s, TableSessions))
	assert.Equal(t, 0, mustCount(t, s, TableMyReservations))
}

func TestOpen_UnversionedLegacyDatabaseRecreates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	db := openRawDB(t, path)
	_, err := db.Exec(`CREATE TABLE tracks (track_id TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE blocks (block_id TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, res, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, res.Recreated)
	assert.True(t, res.DataInvalidated)
	assert.False(t, tableExists(t, s.DB(), "tracks"))
	assert.True(t, tableExists(t, s.DB(), TableMyReservations))
}

func TestOpen_DropsDeprecatedTables(t *testing.T) {
	ctx := context.Background()
	path := createStoreAtVersion(t, VersionSpeakerLinks)

	db := openRawDB(t, path)
	for _, table := range []string{"tracks", "sessions_tracks", "partners", "mapmarkers"} {
		_, err := db.Exec("CREATE TABLE " + table + " (x TEXT)")
		require.NoError(t, err)
	}
	_, err := db.Exec(`CREATE TRIGGER sessions_tracks_delete AFTER DELETE ON sessions
		BEGIN DELETE FROM sessions_tracks WHERE x = old.session_id; END`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, res, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, res.Recreated)
	for _, table := range []string{"tracks", "sessions_tracks", "partners", "mapmarkers"} {
		assert.False(t, tableExists(t, s.DB(), table), table)
	}
	var triggers int
	require.NoError(t, s.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger'`).Scan(&triggers))
	assert.Zero(t, triggers)
}

func TestMigrate_FailingStepRollsBack(t *testing.T) {
	ctx := context.Background()
	path := createStoreAtVersion(t, VersionBase)

	db := openRawDB(t, path)
	defer db.Close()
	s := &Store{db: db, logger: slog.New(slog.DiscardHandler)}

	boom := errors.New("boom")
	steps := append([]Step{}, schemaSteps[0])
	steps = append(steps,
		Step{VersionBase, 2, "creates a table", execAll(`CREATE TABLE scratch (x TEXT)`)},
		Step{2, 3, "fails", func(context.Context, *sql.Tx) error { return boom }},
	)

	_, err := s.migrate(ctx, steps)
	require.Error(t, err)
	assert.True(t, IsMigrationError(err))
	assert.ErrorIs(t, err, boom)

	var me *MigrationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeStepFailed, me.Code)
	assert.Equal(t, 2, me.From)
	assert.Equal(t, 3, me.To)

	assert.False(t, tableExists(t, db, "scratch"))
	v, err := userVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, VersionBase, v)
}

func TestMigrate_GapInChainFallsBackToRecreate(t *testing.T) {
	ctx := context.Background()
	path := createStoreAtVersion(t, VersionBase)

	db := openRawDB(t, path)
	defer db.Close()
	_, err := db.Exec(`INSERT INTO rooms (room_id) VALUES ('r1')`)
	require.NoError(t, err)

	s := &Store{db: db, logger: slog.New(slog.DiscardHandler)}
	steps := []Step{
		schemaSteps[0],
		{VersionBase + 1, VersionBase + 2, "unreachable", execAll(`SELECT 1`)},
	}

	res, err := s.migrate(ctx, steps)
	require.NoError(t, err)
	assert.True(t, res.Recreated)
	assert.Equal(t, VersionBase+2, res.Version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM rooms`).Scan(&n))
	assert.Zero(t, n)
}
