package store

import (
	"context"
	"database/sql"
	"fmt"
)

// OpenResult describes what Open did to the schema.
type OpenResult struct {
	FromVersion int
	Version     int

	// Created is set when the database was empty and the schema was built.
	Created bool

	// Upgraded is set when an existing schema was brought forward.
	Upgraded bool

	// Recreated is set when the upgrade chain could not reach
	// CurrentVersion and every table was dropped and rebuilt.
	Recreated bool

	// DataInvalidated tells callers that cached conference data no longer
	// matches the store and a full sync must be requested. Any upgrade sets
	// it, not only the destructive fallback.
	DataInvalidated bool
}

// migrate runs the whole open-time schema work in one transaction.
func (s *Store) migrate(ctx context.Context, steps []Step) (OpenResult, error) {
	target := steps[len(steps)-1].To

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return OpenResult{}, &MigrationError{Code: ErrCodeTx, Err: err}
	}
	defer tx.Rollback()

	// Dropping parent tables during the fallback would otherwise trip
	// immediate foreign key checks.
	if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
		return OpenResult{}, &MigrationError{Code: ErrCodeTx, Err: err}
	}

	from, err := userVersion(ctx, tx)
	if err != nil {
		return OpenResult{}, &MigrationError{Code: ErrCodeVersionIO, Err: err}
	}
	empty, err := isEmpty(ctx, tx)
	if err != nil {
		return OpenResult{}, &MigrationError{Code: ErrCodeVersionIO, Err: err}
	}

	result := OpenResult{FromVersion: from, Version: target}

	switch {
	case from == 0 && empty:
		s.logger.Info("creating schema", "version", target)
		if _, err := s.replay(ctx, tx, steps, 0); err != nil {
			return OpenResult{}, err
		}
		result.Created = true

	case from == target:
		return result, nil

	default:
		s.logger.Info("upgrading schema", "from", from, "to", target)
		version := from
		// Version 0 with tables present predates versioning and has no chain.
		if from != 0 {
			if version, err = s.replay(ctx, tx, steps, from); err != nil {
				return OpenResult{}, err
			}
		}
		s.logger.Debug("after upgrade chain", "version", version)

		if err := dropDeprecated(ctx, tx); err != nil {
			return OpenResult{}, &MigrationError{Code: ErrCodeStepFailed, From: from, To: version, Err: err}
		}

		if version != target {
			s.logger.Warn("upgrade unsuccessful, destroying old data", "version", version, "target", target)
			if err := dropEverything(ctx, tx); err != nil {
				return OpenResult{}, &MigrationError{Code: ErrCodeFallbackFailed, Err: err}
			}
			if _, err := s.replay(ctx, tx, steps, 0); err != nil {
				return OpenResult{}, &MigrationError{Code: ErrCodeFallbackFailed, Err: err}
			}
			result.Recreated = true
		}
		result.Upgraded = true
		result.DataInvalidated = true
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
		return OpenResult{}, &MigrationError{Code: ErrCodeVersionIO, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return OpenResult{}, &MigrationError{Code: ErrCodeTx, Err: err}
	}
	return result, nil
}

// replay applies every step whose From matches the running version, in
// order, and returns the version reached.
func (s *Store) replay(ctx context.Context, tx *sql.Tx, steps []Step, from int) (int, error) {
	version := from
	for _, step := range steps {
		if step.From != version {
			continue
		}
		s.logger.Debug("applying schema step", "from", step.From, "to", step.To, "step", step.Description)
		if err := step.Apply(ctx, tx); err != nil {
			return version, &MigrationError{Code: ErrCodeStepFailed, From: step.From, To: step.To, Err: err}
		}
		version = step.To
	}
	return version, nil
}

func userVersion(ctx context.Context, q querier) (int, error) {
	var v int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return v, nil
}

func isEmpty(ctx context.Context, q querier) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count tables: %w", err)
	}
	return n == 0, nil
}

func dropDeprecated(ctx context.Context, tx *sql.Tx) error {
	for _, trigger := range deprecatedTriggers {
		if _, err := tx.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+trigger); err != nil {
			return fmt.Errorf("drop deprecated trigger %s: %w", trigger, err)
		}
	}
	for _, table := range deprecatedTables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop deprecated table %s: %w", table, err)
		}
	}
	return nil
}

// dropEverything removes every trigger, view and table, whatever version
// created them.
func dropEverything(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT type, name FROM sqlite_master
		WHERE type IN ('trigger', 'view', 'table') AND name NOT LIKE 'sqlite_%'
		ORDER BY CASE type WHEN 'trigger' THEN 0 WHEN 'view' THEN 1 ELSE 2 END, name
	`)
	if err != nil {
		return fmt.Errorf("list schema objects: %w", err)
	}

	type object struct{ kind, name string }
	var objects []object
	for rows.Next() {
		var o object
		if err := rows.Scan(&o.kind, &o.name); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema object: %w", err)
		}
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, o := range objects {
		stmt := fmt.Sprintf("DROP %s IF EXISTS %q", o.kind, o.name)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop %s %s: %w", o.kind, o.name, err)
		}
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
