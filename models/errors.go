package models

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for records that do not exist.
var ErrNotFound = errors.New("resource not found")

// InvalidStateError reports an operation attempted from a processing status
// that does not permit it.
type InvalidStateError struct {
	Operation string
	Status    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("operation %q is not valid from status %q", e.Operation, e.Status)
}

// ConflictError reports a second process/reprocess request for a document
// that already has a run in flight.
type ConflictError struct {
	DocumentID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %s already has a processing run in flight", e.DocumentID)
}

// ValidationError reports malformed correction or mapping input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InsufficientDataError reports an estimate requested for a product with no
// price history.
type InsufficientDataError struct {
	ProductName string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("no pricing data available for product %q", e.ProductName)
}

// UnsupportedFormatError reports a file format the extraction adapter cannot
// handle.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.Format)
}

// ExtractionError wraps a failure from the external extraction stage. It is
// recorded on the document rather than propagated past the state machine.
type ExtractionError struct {
	Stage string // extracting or mapping
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
