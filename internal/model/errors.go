package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy. Callers match with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrDivisionUndefined    = errors.New("division undefined")
	ErrMissingReference     = errors.New("missing reference")
	ErrDegeneratePopulation = errors.New("degenerate population")
)

// Stage names the engine step that produced an AccountError.
type Stage string

const (
	StageIngest    Stage = "ingest"
	StageNormalize Stage = "normalize"
	StageScore     Stage = "score"
	StageClassify  Stage = "classify"
	StageCoverage  Stage = "coverage"
	StageLeakage   Stage = "leakage"
)

// AccountError ties a failure to the account and field that caused it.
type AccountError struct {
	CustomerID string
	Stage      Stage
	Field      string
	Err        error
}

func (e *AccountError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "account %s: %s", e.CustomerID, e.Stage)
	if e.Field != "" {
		fmt.Fprintf(&b, " [%s]", e.Field)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *AccountError) Unwrap() error {
	return e.Err
}

// NewAccountError wraps err with account context.
func NewAccountError(customerID string, stage Stage, field string, err error) *AccountError {
	return &AccountError{CustomerID: customerID, Stage: stage, Field: field, Err: err}
}

// BatchError collects every account failure in a run.
type BatchError struct {
	Failures []*AccountError
}

func (e *BatchError) Error() string {
	if len(e.Failures) == 1 {
		return "batch failed: " + e.Failures[0].Error()
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("batch failed: %d accounts: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual failures to errors.Is/As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}

// FieldError names the input field behind a failure. Component functions
// return it so the engine can report the field without knowing the stage
// internals.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// InvalidField returns a FieldError wrapping ErrInvalidInput.
func InvalidField(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Err: fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)}
}

// FieldOf returns the field recorded on err, or "".
func FieldOf(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}
