// Package safety enforces trauma entries: regex patterns banning specific
// commands after a past incident, checked before a CLI caller executes
// anything (spec.md §4.8).
//
// Threat model: a trauma entry exists because a human explicitly told the
// agent "never do X again" after X caused real damage. The guard's job is
// narrow — match a command against that exact banned pattern — not general
// command safety analysis. It fails open: a read or regex error must never
// block a command the user could otherwise run, only a recognized match
// does.
package safety

import (
	"regexp"

	"github.com/cass-memory/cass-memory/internal/types"
)

// Decision is the result of checking a command against the trauma list.
type Decision struct {
	Denied  bool
	Reason  string
	Pattern string
	EntryID string
}

// Check evaluates command against the union of global and repo-scoped
// active trauma entries. Healed or inactive entries never deny. A
// malformed pattern is skipped rather than failing the whole check
// (fail-open, matching spec.md §4.8 and §7's error-handling taxonomy).
func Check(command string, entries []types.TraumaEntry) Decision {
	for _, e := range entries {
		if e.Status != types.TraumaActive {
			continue
		}
		re, err := regexp.Compile("(?i)" + e.Pattern)
		if err != nil {
			continue
		}
		if re.MatchString(command) {
			return Decision{
				Denied:  true,
				Reason:  reasonFor(e),
				Pattern: e.Pattern,
				EntryID: e.ID,
			}
		}
	}
	return Decision{}
}

func reasonFor(e types.TraumaEntry) string {
	if e.TriggerEvent.HumanMessage != "" {
		return e.TriggerEvent.HumanMessage
	}
	return "command matches a banned pattern from a prior " + string(e.Severity) + " incident"
}

// Merge unions global and repo trauma entries, matching the playbook merge
// convention: both tiers' active bans apply, repo entries are listed after
// global for stable iteration order, and duplicate ids prefer the repo
// entry.
func Merge(global, repo []types.TraumaEntry) []types.TraumaEntry {
	byID := make(map[string]types.TraumaEntry, len(global)+len(repo))
	var order []string
	for _, e := range global {
		if _, ok := byID[e.ID]; !ok {
			order = append(order, e.ID)
		}
		byID[e.ID] = e
	}
	for _, e := range repo {
		if _, ok := byID[e.ID]; !ok {
			order = append(order, e.ID)
		}
		byID[e.ID] = e
	}
	merged := make([]types.TraumaEntry, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	return merged
}
