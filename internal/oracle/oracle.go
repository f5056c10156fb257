// Package oracle abstracts the LLM extraction call the reflection loop and
// validation gate use to turn free-text session transcripts into structured
// data, so neither depends on a specific model provider (spec.md §4.4, §9
// and SPEC_FULL.md §4.11).
package oracle

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cass-memory/cass-memory/internal/types"
)

// ErrOracleUnavailable is returned by NullExtractor for every call, and by
// FromConfig when no usable provider is configured.
var ErrOracleUnavailable = errors.New("oracle: no extraction provider configured")

// ExtractRequest is one call to the oracle: a JSON schema describing the
// desired shape and the prompt to extract it from.
type ExtractRequest struct {
	Schema json.RawMessage
	Prompt string
}

// ExtractResult is the oracle's response: either a schema-conforming
// object, or an error describing why extraction failed.
type ExtractResult struct {
	Object json.RawMessage
}

// Extractor is the seam between the reflection/validation packages and
// whatever actually talks to a model. Grounded in the teacher's
// StorageInterface-style dependency seam (internal/pool.go), generalized
// from storage to model calls.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error)
}

// NullExtractor always fails with ErrOracleUnavailable. It is the default
// when no provider is configured, so every caller's oracle-failure path
// (SPEC_FULL.md §4.11: "never fatal to the reflection loop") is exercised
// even in environments with no model access at all.
type NullExtractor struct{}

func (NullExtractor) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	return nil, types.ErrOracleFailure("extraction unavailable", ErrOracleUnavailable)
}

// StaticExtractor is a test double that returns a pre-programmed sequence
// of results, one per call, and ErrOracleUnavailable once exhausted. Used
// by reflection-loop and validation-gate tests that need deterministic
// oracle behavior without a real model.
type StaticExtractor struct {
	Results []ExtractResult
	Errors  []error
	calls   int
}

func (s *StaticExtractor) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	i := s.calls
	s.calls++
	if i < len(s.Errors) && s.Errors[i] != nil {
		return nil, s.Errors[i]
	}
	if i >= len(s.Results) {
		return nil, types.ErrOracleFailure("extraction unavailable", ErrOracleUnavailable)
	}
	r := s.Results[i]
	return &r, nil
}

// Calls reports how many times Extract has been invoked.
func (s *StaticExtractor) Calls() int {
	return s.calls
}

// FromConfig resolves the configured provider to an Extractor. Only "none"
// (or an empty provider) is currently wireable without a live model
// credential, so this always resolves to NullExtractor; the seam exists so
// a future real provider plugs in without touching callers.
func FromConfig(provider, model, apiKey string) Extractor {
	return NullExtractor{}
}
