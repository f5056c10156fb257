package types

import "fmt"

// ErrorCode classifies a failure for the error-handling taxonomy in
// SPEC_FULL.md §7. Each constructor below wraps a cause with a code so
// callers can branch with errors.As without string matching.
type ErrorCode string

const (
	// CodeIO covers filesystem, lock, and tempfile failures.
	CodeIO ErrorCode = "io_error"

	// CodeParse covers YAML/JSON/JSONL decode failures.
	CodeParse ErrorCode = "parse_error"

	// CodeSchema covers invariant violations detected after parsing.
	CodeSchema ErrorCode = "schema_error"

	// CodeToolUnavailable covers a missing history-indexer binary.
	CodeToolUnavailable ErrorCode = "tool_unavailable"

	// CodeToolFailure covers a non-zero exit, timeout, or buffer overflow
	// from the history-indexer binary.
	CodeToolFailure ErrorCode = "tool_failure"

	// CodeOracleFailure covers a failed or malformed extraction call.
	CodeOracleFailure ErrorCode = "oracle_failure"

	// CodeValidation covers bad user input to a command.
	CodeValidation ErrorCode = "validation_failure"

	// CodeConfig covers config load/merge/validation failures.
	CodeConfig ErrorCode = "config_error"
)

// TaxonomyError is a typed error carrying the SPEC_FULL.md §7 code plus an
// optional underlying cause. It implements errors.Unwrap so
// errors.Is/errors.As keep working against the wrapped cause.
type TaxonomyError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *TaxonomyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TaxonomyError) Unwrap() error {
	return e.Cause
}

// newTaxonomyError is the shared constructor behind the Err* helpers below.
func newTaxonomyError(code ErrorCode, message string, cause error) *TaxonomyError {
	return &TaxonomyError{Code: code, Message: message, Cause: cause}
}

// ErrIO wraps a filesystem/lock/tempfile failure.
func ErrIO(message string, cause error) *TaxonomyError {
	return newTaxonomyError(CodeIO, message, cause)
}

// ErrParse wraps a YAML/JSON/JSONL decode failure.
func ErrParse(message string, cause error) *TaxonomyError {
	return newTaxonomyError(CodeParse, message, cause)
}

// ErrSchema wraps a post-parse invariant violation.
func ErrSchema(message string, cause error) *TaxonomyError {
	return newTaxonomyError(CodeSchema, message, cause)
}

// ErrToolUnavailable wraps a missing-binary condition. Always recoverable:
// callers degrade to playbook-only per SPEC_FULL.md §7.
func ErrToolUnavailable(message string, cause error) *TaxonomyError {
	return newTaxonomyError(CodeToolUnavailable, message, cause)
}

// ErrToolFailure wraps a non-zero exit, timeout, or buffer overflow.
func ErrToolFailure(message string, cause error) *TaxonomyError {
	return newTaxonomyError(CodeToolFailure, message, cause)
}

// ErrOracleFailure wraps a failed or malformed extraction call. Never
// fatal to the reflection loop; callers return deltas gathered so far.
func ErrOracleFailure(message string, cause error) *TaxonomyError {
	return newTaxonomyError(CodeOracleFailure, message, cause)
}

// ErrValidation wraps bad user-facing input.
func ErrValidation(message string, cause error) *TaxonomyError {
	return newTaxonomyError(CodeValidation, message, cause)
}

// ErrConfig wraps a config merge/validation failure.
func ErrConfig(message string, cause error) *TaxonomyError {
	return newTaxonomyError(CodeConfig, message, cause)
}

// Sentinel errors for common, specific conditions that callers match
// directly with errors.Is rather than inspecting a TaxonomyError code.
var (
	// ErrPlaybookNotFound indicates no playbook file exists at the given path.
	ErrPlaybookNotFound = fmt.Errorf("playbook not found")

	// ErrBulletNotFound indicates a referenced bullet id does not exist.
	ErrBulletNotFound = fmt.Errorf("bullet not found")

	// ErrEmptyID indicates an id field required for a lookup was empty.
	ErrEmptyID = fmt.Errorf("id must not be empty")

	// ErrLockTimeout indicates lock acquisition exceeded its retry budget.
	ErrLockTimeout = fmt.Errorf("lock acquisition timed out")
)
