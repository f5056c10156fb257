// Package validate implements the validation gate a proposed playbook
// bullet must pass before promotion out of draft state: an evidence-count
// heuristic over external history search hits, and a verdict-normalization
// step for oracle-backed review (spec.md §4.5).
package validate

import (
	"context"
	"strings"

	"github.com/cass-memory/cass-memory/internal/history"
)

// stopwords are filtered out of extracted keywords; short and common words
// carry no discriminating signal for evidence matching.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "into": {}, "when": {}, "then": {}, "than": {}, "have": {},
	"has": {}, "was": {}, "were": {}, "are": {}, "you": {}, "your": {},
	"not": {}, "but": {}, "all": {}, "can": {}, "use": {}, "used": {},
}

// failureMarkers and successMarkers are the literal marker sets from
// spec.md §4.5. The "fixed-width" exclusion prevents the substring "fixed"
// in "fixed-width"-style technical terms from being mistaken for success.
var failureMarkers = []string{"failed", "crashed", "doesn't work", "error"}
var successMarkers = []string{"fixed", "solved", "resolved", "works", "working"}

// ExtractKeywords lowercases content, splits on non-letter/digit runs, and
// keeps tokens of length >= 3 that aren't stopwords.
func ExtractKeywords(content string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		word := cur.String()
		cur.Reset()
		if len(word) < 3 {
			return
		}
		if _, stop := stopwords[word]; stop {
			return
		}
		out = append(out, word)
	}
	for _, r := range strings.ToLower(content) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

// HistoryTool is the narrow seam EvidenceCountGate needs from the external
// history adapter: a query that never hard-fails the caller.
type HistoryTool interface {
	SafeSearch(ctx context.Context, query string, opts history.Options) ([]history.Hit, error)
}

// EvidenceResult is evidenceCountGate's decision (spec.md §4.5).
type EvidenceResult struct {
	Passed         bool
	SuggestedState string
	SessionCount   int
	FailureCount   int
	SuccessCount   int
	Reason         string
}

// maxEvidenceHits bounds how many hits are pulled per gate check.
const maxEvidenceHits = 20

// EvidenceCountGate verifies a proposed rule's content against recorded
// history: it queries tool for hits matching the content's keyword
// conjunction, counts unique sessions by source_path, and classifies each
// session as contributing success or failure signal based on its snippets
// (spec.md §4.5).
func EvidenceCountGate(ctx context.Context, content string, tool HistoryTool) EvidenceResult {
	keywords := ExtractKeywords(content)
	if len(keywords) == 0 {
		return EvidenceResult{Passed: true, SuggestedState: "draft", Reason: "No meaningful keywords"}
	}

	query := strings.Join(keywords, " ")
	hits, _ := tool.SafeSearch(ctx, query, history.Options{Limit: maxEvidenceHits})

	bySession := map[string][]history.Hit{}
	var order []string
	for _, h := range hits {
		if _, ok := bySession[h.SourcePath]; !ok {
			order = append(order, h.SourcePath)
		}
		bySession[h.SourcePath] = append(bySession[h.SourcePath], h)
	}

	failureCount, successCount := 0, 0
	for _, path := range order {
		hasFailure, hasSuccess := false, false
		for _, h := range bySession[path] {
			text := strings.ToLower(h.Snippet)
			if containsAny(text, failureMarkers) {
				hasFailure = true
			}
			if containsSuccessMarker(text) {
				hasSuccess = true
			}
		}
		if hasFailure {
			failureCount++
		}
		if hasSuccess {
			successCount++
		}
	}

	result := EvidenceResult{
		SessionCount: len(order),
		FailureCount: failureCount,
		SuccessCount: successCount,
	}

	switch {
	case failureCount >= 2:
		result.Passed = false
		result.Reason = "Strong failure signal"
	case successCount >= 5:
		result.Passed = true
		result.SuggestedState = "active"
		result.Reason = "Auto-accepting"
	default:
		result.Passed = true
		result.SuggestedState = "draft"
		result.Reason = "ambiguous"
	}
	return result
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// containsSuccessMarker matches successMarkers but excludes "fixed-width"
// and similar compound technical terms from counting "fixed" as a success.
func containsSuccessMarker(text string) bool {
	sanitized := strings.ReplaceAll(text, "fixed-width", "")
	return containsAny(sanitized, successMarkers)
}

// Verdict is the normalized form of an oracle's free-form review output.
type Verdict string

const (
	VerdictValid             Verdict = "valid"
	VerdictAcceptWithCaution Verdict = "accept_with_caution"
	VerdictInvalid           Verdict = "invalid"
)

// NormalizeValidatorVerdict maps an oracle's raw verdict string and
// confidence onto the three-way Verdict scale: ACCEPT -> valid unchanged,
// REFINE -> accept_with_caution with confidence discounted, REJECT ->
// invalid with confidence preserved unchanged (spec.md §4.5).
func NormalizeValidatorVerdict(raw string, confidence float64) (Verdict, float64) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ACCEPT":
		return VerdictValid, confidence
	case "REFINE":
		return VerdictAcceptWithCaution, confidence * 0.8
	case "REJECT":
		return VerdictInvalid, confidence
	default:
		return VerdictInvalid, confidence
	}
}
