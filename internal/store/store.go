package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names registered with database/sql.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// Options configures Open.
type Options struct {
	// Driver selects the database/sql driver. Defaults to DriverCGO.
	Driver string
	Logger *slog.Logger
}

// Store is the local conference database.
// SQLite allows a single writer, so the pool holds one connection and every
// mutation batch runs in one transaction on it.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open creates or opens the database at path and brings its schema to
// CurrentVersion.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// A migration failure is returned as *MigrationError and no Store is
// returned; the on-disk schema is left as it was before the call.
func Open(ctx context.Context, path string, opts Options) (*Store, OpenResult, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverCGO
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, OpenResult{}, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, OpenResult{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, OpenResult{}, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db, driver: driver, logger: logger}

	result, err := s.migrate(ctx, schemaSteps)
	if err != nil {
		db.Close()
		return nil, OpenResult{}, err
	}

	return s, result, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Prefer Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver reports the database/sql driver in use.
func (s *Store) Driver() string {
	return s.driver
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
