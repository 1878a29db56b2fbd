package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// MigrationErrorCode categorizes schema errors.
type MigrationErrorCode string

const (
	// ErrCodeStepFailed indicates a migration step returned an error.
	ErrCodeStepFailed MigrationErrorCode = "STEP_FAILED"

	// ErrCodeFallbackFailed indicates the drop-and-recreate path failed.
	ErrCodeFallbackFailed MigrationErrorCode = "FALLBACK_FAILED"

	// ErrCodeVersionIO indicates user_version could not be read or written.
	ErrCodeVersionIO MigrationErrorCode = "VERSION_IO"

	// ErrCodeTx indicates the migration transaction could not begin or commit.
	ErrCodeTx MigrationErrorCode = "TX"
)

// MigrationError is fatal to Open. The transaction is rolled back, so the
// database keeps whatever schema it had before.
type MigrationError struct {
	Code MigrationErrorCode

	// From and To identify the failing step, when there is one.
	From int
	To   int

	Err error
}

func (e *MigrationError) Error() string {
	if e.Code == ErrCodeStepFailed {
		return fmt.Sprintf("%s: migrate %d -> %d: %v", e.Code, e.From, e.To, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// IsMigrationError reports whether err wraps a *MigrationError.
func IsMigrationError(err error) bool {
	var me *MigrationError
	return errors.As(err, &me)
}

// BatchError reports the mutation that made ApplyBatch fail.
type BatchError struct {
	Index    int
	Mutation Mutation
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("apply batch: mutation %d (%s %s %q): %v",
		e.Index, e.Mutation.Op, e.Mutation.Entity, e.Mutation.Key, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
