// Package reflect drives the reflection loop: it renders the current
// playbook and diary state into an oracle-digestible prompt, asks the
// oracle for proposed deltas, and iterates until the oracle stops
// proposing anything new (spec.md §4.4).
package reflect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cass-memory/cass-memory/internal/oracle"
	"github.com/cass-memory/cass-memory/internal/types"
)

// maxDeltas caps total deltas accepted from a single reflection run,
// regardless of how many iterations produced them.
const maxDeltas = 20

// maxHistorySnippets is the most history-search results folded into a
// reflection prompt.
const maxHistorySnippets = 5

// snippetTruncateLen is the character limit for one history snippet before
// an ellipsis is appended.
const snippetTruncateLen = 200

// maturityGlyph gives each maturity tier a single-character marker for the
// compact playbook rendering fed to the oracle.
func maturityGlyph(m types.Maturity) string {
	switch m {
	case types.MaturityProven:
		return "★"
	case types.MaturityEstablished:
		return "●"
	case types.MaturityDeprecated:
		return "✗"
	default:
		return "○"
	}
}

// FormatPlaybook renders bullets compactly, grouped by category, each
// annotated with its maturity glyph and helpful/harmful counts. This is
// the representation handed to the oracle, not a user-facing report.
func FormatPlaybook(pb *types.Playbook) string {
	byCategory := map[string][]types.PlaybookBullet{}
	var categories []string
	for _, b := range pb.Bullets {
		if b.Deprecated {
			continue
		}
		if _, ok := byCategory[b.Category]; !ok {
			categories = append(categories, b.Category)
		}
		byCategory[b.Category] = append(byCategory[b.Category], b)
	}

	var sb strings.Builder
	for _, cat := range categories {
		label := cat
		if label == "" {
			label = "uncategorized"
		}
		fmt.Fprintf(&sb, "## %s\n", label)
		for _, b := range byCategory[cat] {
			fmt.Fprintf(&sb, "%s [%s] (%s) %d+/%d- %s\n",
				maturityGlyph(b.Maturity), b.ID, b.Kind, b.HelpfulCount, b.HarmfulCount, b.Content)
		}
	}
	return sb.String()
}

// FormatDiary renders an overview line plus a section per diary entry.
func FormatDiary(entries []types.DiaryEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Sessions (%d)\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&sb, "### %s (%s, %s)\n", e.ID, e.Status, e.Timestamp.Format(time.RFC3339))
		for _, a := range e.Accomplishments {
			fmt.Fprintf(&sb, "- did: %s\n", a)
		}
		for _, c := range e.Challenges {
			fmt.Fprintf(&sb, "- challenge: %s\n", c)
		}
		for _, k := range e.KeyLearnings {
			fmt.Fprintf(&sb, "- learned: %s\n", k)
		}
	}
	return sb.String()
}

// FormatHistorySnippets truncates and numbers up to maxHistorySnippets raw
// history search results for inclusion in a reflection prompt.
func FormatHistorySnippets(snippets []string) string {
	if len(snippets) > maxHistorySnippets {
		snippets = snippets[:maxHistorySnippets]
	}
	var sb strings.Builder
	for i, s := range snippets {
		if len(s) > snippetTruncateLen {
			s = s[:snippetTruncateLen] + "..."
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}
	return sb.String()
}

// deltaSchema is the JSON schema handed to the oracle describing the
// expected extraction shape: an array of PlaybookDelta-like objects.
var deltaSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "deltas": {"type": "array", "items": {"type": "object"}}
  },
  "required": ["deltas"]
}`)

type deltaBatch struct {
	Deltas []types.PlaybookDelta `json:"deltas"`
}

// Run iterates the reflection loop up to maxIterations times, asking
// extractor for new deltas against the current playbook/diary/history
// state each round, and stops early when an iteration proposes nothing new
// or the maxDeltas cap is hit. An oracle failure at any iteration ends the
// loop without discarding deltas already collected (spec.md §4.4, §7:
// "never fatal").
func Run(ctx context.Context, extractor oracle.Extractor, pb *types.Playbook, diary []types.DiaryEntry, historySnippets []string, maxIterations int) types.ReflectionResult {
	result := types.ReflectionResult{}
	seen := map[string]struct{}{}

	playbookText := FormatPlaybook(pb)
	diaryText := FormatDiary(diary)
	historyText := FormatHistorySnippets(historySnippets)

	for iter := 0; iter < maxIterations; iter++ {
		prompt := buildPrompt(playbookText, diaryText, historyText, result.Deltas)
		res, err := extractor.Extract(ctx, oracle.ExtractRequest{Schema: deltaSchema, Prompt: prompt})
		if err != nil {
			result.OracleError = err
			break
		}

		var batch deltaBatch
		if err := json.Unmarshal(res.Object, &batch); err != nil {
			result.OracleError = err
			break
		}

		newCount := 0
		for _, d := range batch.Deltas {
			key := types.DeltaHash(d)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result.Deltas = append(result.Deltas, d)
			newCount++
			if len(result.Deltas) >= maxDeltas {
				result.Truncated = true
				result.Iterations = iter + 1
				return result
			}
		}

		result.Iterations = iter + 1
		if newCount == 0 {
			break
		}
	}

	return result
}

func buildPrompt(playbookText, diaryText, historyText string, deltasSoFar []types.PlaybookDelta) string {
	var sb strings.Builder
	sb.WriteString("Current playbook:\n")
	sb.WriteString(playbookText)
	sb.WriteString("\nRecent sessions:\n")
	sb.WriteString(diaryText)
	if historyText != "" {
		sb.WriteString("\nRelated history:\n")
		sb.WriteString(historyText)
	}
	if len(deltasSoFar) > 0 {
		fmt.Fprintf(&sb, "\nAlready proposed %d deltas this run; propose only new ones.\n", len(deltasSoFar))
	}
	return sb.String()
}
