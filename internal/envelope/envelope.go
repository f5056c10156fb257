// Package envelope defines the JSON command envelope every cass-memory CLI
// command emits in --json mode, so programmatic callers get a stable,
// parseable response shape regardless of which command ran (spec.md §6).
package envelope

import (
	"encoding/json"
	"time"

	"github.com/cass-memory/cass-memory/internal/types"
)

// ErrorCode is the envelope-level error classification, distinct from
// internal/types.ErrorCode: these are the caller-facing codes a JSON
// consumer branches on, not the internal error taxonomy.
type ErrorCode string

const (
	CodeMissingRequired ErrorCode = "MISSING_REQUIRED"
	CodeInvalidInput    ErrorCode = "INVALID_INPUT"
	CodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

// ExitValidationFailure is the process exit code for a validation-failure
// envelope, per spec.md §6.
const ExitValidationFailure = 2

// Error is the envelope's error payload.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// Envelope is the top-level JSON response shape for every command.
type Envelope struct {
	Success   bool      `json:"success"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *Error    `json:"error,omitempty"`
	Metadata  any       `json:"metadata,omitempty"`
}

// Ok builds a success envelope.
func Ok(command string, data any) Envelope {
	return Envelope{Success: true, Command: command, Timestamp: time.Now().UTC(), Data: data}
}

// Fail builds a failure envelope from a caller-facing code and message.
func Fail(command string, code ErrorCode, message string, details any) Envelope {
	return Envelope{
		Success:   false,
		Command:   command,
		Timestamp: time.Now().UTC(),
		Error:     &Error{Code: code, Message: message, Details: details},
	}
}

// FromTaxonomyError maps an internal/types.TaxonomyError onto the envelope
// error codes, falling back to CodeInternalError for anything that isn't
// plainly a validation problem.
func FromTaxonomyError(command string, err error) Envelope {
	var taxErr *types.TaxonomyError
	if e, ok := err.(*types.TaxonomyError); ok {
		taxErr = e
	}
	if taxErr == nil {
		return Fail(command, CodeInternalError, err.Error(), nil)
	}
	switch taxErr.Code {
	case types.CodeValidation:
		return Fail(command, CodeInvalidInput, taxErr.Message, nil)
	default:
		return Fail(command, CodeInternalError, taxErr.Error(), nil)
	}
}

// Marshal renders e as indented JSON, matching the CLI's human-readable
// --json output convention.
func Marshal(e Envelope) ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}
