// Package store provides the SQLite-backed local conference database.
//
// The store holds two kinds of rows:
//   - Conference data (rooms, tags, speakers, sessions, videos, cards,
//     blocks, announcements, map overlays) replaced on every sync cycle
//   - User-scoped rows (myschedule, myreservations, myfeedbacksubmitted,
//     myviewedvideos, feedback) partitioned by account name and changed only
//     by user actions or the account transition
//
// # Schema
//
// The schema version lives in PRAGMA user_version. Creating a store replays
// every migration step from version 0. Opening an older store replays the
// steps from its version. A store whose version cannot be walked to
// CurrentVersion is dropped and recreated, and OpenResult reports that
// data was invalidated.
//
// # Mutations
//
// Conference data changes arrive as a Batch of typed Mutation records
// applied in one transaction by ApplyBatch. Deleting a session removes its
// dependent rows in application code within the same transaction; there are
// no cascade triggers.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity, deferred inside batches
package store
