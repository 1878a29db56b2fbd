package conference

import (
	"errors"
	"fmt"
)

// ApplyErrorCode categorizes reconciliation failures.
type ApplyErrorCode string

const (
	// ErrCodeNoDocuments indicates Apply was called without documents.
	ErrCodeNoDocuments ApplyErrorCode = "NO_DOCUMENTS"

	// ErrCodeParse indicates the bootstrap or sole document failed to parse.
	ErrCodeParse ApplyErrorCode = "PARSE"

	// ErrCodeNoUsableData indicates every document failed to parse.
	ErrCodeNoUsableData ApplyErrorCode = "NO_USABLE_DATA"

	// ErrCodeEmit indicates the mutation batch could not be built.
	ErrCodeEmit ApplyErrorCode = "EMIT"

	// ErrCodeApply indicates the store rejected the batch. Nothing was
	// committed.
	ErrCodeApply ApplyErrorCode = "APPLY"

	// ErrCodeState indicates the persisted digest could not be read or
	// written.
	ErrCodeState ApplyErrorCode = "STATE"

	// ErrCodeCanceled indicates the cycle was canceled. If the batch was
	// already committed its digest is not persisted.
	ErrCodeCanceled ApplyErrorCode = "CANCELED"
)

// ApplyError reports why a reconciliation cycle did not complete. The store
// keeps the state it had before the cycle unless Code is ErrCodeCanceled or
// ErrCodeState after the batch committed.
type ApplyError struct {
	Code     ApplyErrorCode
	CycleID  string
	Document string
	Err      error
}

func (e *ApplyError) Error() string {
	if e.Document != "" {
		return fmt.Sprintf("%s: cycle %s: document %s: %v", e.Code, e.CycleID, e.Document, e.Err)
	}
	return fmt.Sprintf("%s: cycle %s: %v", e.Code, e.CycleID, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is a fatal document parse failure.
func IsParseError(err error) bool {
	return hasCode(err, ErrCodeParse)
}

// IsCanceled reports whether err is a canceled cycle.
func IsCanceled(err error) bool {
	return hasCode(err, ErrCodeCanceled)
}

func hasCode(err error, code ApplyErrorCode) bool {
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
