// Package context assembles a ranked context bundle for a given task
// description: the most relevant playbook bullets, anti-patterns, and
// history snippets, weighted by effective score and keyword overlap
// (spec.md §4.9).
package context

import (
	"strings"
	"time"

	"github.com/cass-memory/cass-memory/internal/scoring"
	"github.com/cass-memory/cass-memory/internal/types"
	"github.com/cass-memory/cass-memory/internal/validate"
)

// categoryBoost is added to a bullet's ranking score when the task text
// mentions its category directly, on top of keyword overlap.
const categoryBoost = 0.5

// Bundle is the assembled context handed back to a caller (CLI command or
// JSON envelope).
type Bundle struct {
	Task               string   `json:"task"`
	RelevantBullets    []types.PlaybookBullet `json:"relevantBullets"`
	AntiPatterns       []types.PlaybookBullet `json:"antiPatterns"`
	HistorySnippets    []string `json:"historySnippets"`
	DeprecatedWarnings []string `json:"deprecatedWarnings"`
	SuggestedQueries   []string `json:"suggestedQueries"`
}

// Params bundles the assembler's tunables.
type Params struct {
	Scoring         scoring.Params
	MaxBullets      int
	MaxHistory      int
	SnippetMaxLen   int
}

// HistorySearcher is the minimal seam Assemble needs from internal/history,
// kept narrow so this package doesn't import exec/subprocess concerns.
type HistorySearcher interface {
	SafeSearch(query string, limit int) ([]string, error)
}

// Assemble builds a Bundle for task against a merged playbook. If
// playbook is nil (e.g. the caller caught a schema error loading it), the
// assembler degrades silently to an empty-bullets result rather than
// propagating (spec.md §9 OQ3).
func Assemble(task string, playbook *types.Playbook, history HistorySearcher, now time.Time, p Params) Bundle {
	bundle := Bundle{Task: task}
	if playbook == nil {
		return bundle
	}

	keywords := validate.ExtractKeywords(task)
	keywordSet := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		keywordSet[kw] = struct{}{}
	}

	var positives, negatives []scoredBullet

	for _, b := range playbook.Bullets {
		if b.Deprecated {
			if overlapScore(b, keywordSet) > 0 {
				bundle.DeprecatedWarnings = append(bundle.DeprecatedWarnings, b.Content)
			}
			continue
		}
		overlap := overlapScore(b, keywordSet)
		if overlap == 0 {
			continue
		}
		rank := overlap + scoring.EffectiveScore(&b, now, p.Scoring)
		if containsCategory(task, b.Category) {
			rank += categoryBoost
		}
		s := scoredBullet{bullet: b, score: rank}
		if b.IsNegative {
			negatives = append(negatives, s)
		} else {
			positives = append(positives, s)
		}
	}

	sortByScoreDesc(positives)
	sortByScoreDesc(negatives)

	maxBullets := p.MaxBullets
	if maxBullets <= 0 {
		maxBullets = 10
	}
	for i, s := range positives {
		if i >= maxBullets {
			break
		}
		bundle.RelevantBullets = append(bundle.RelevantBullets, s.bullet)
	}
	for _, s := range negatives {
		bundle.AntiPatterns = append(bundle.AntiPatterns, s.bullet)
	}

	bundle.SuggestedQueries = suggestQueries(keywords)

	if history != nil {
		maxHistory := p.MaxHistory
		if maxHistory <= 0 {
			maxHistory = 10
		}
		snippetMax := p.SnippetMaxLen
		if snippetMax <= 0 {
			snippetMax = 200
		}
		if hits, err := history.SafeSearch(task, maxHistory); err == nil {
			for _, h := range hits {
				if len(h) > snippetMax {
					h = h[:snippetMax] + "..."
				}
				bundle.HistorySnippets = append(bundle.HistorySnippets, h)
			}
		}
	}

	return bundle
}

func overlapScore(b types.PlaybookBullet, keywordSet map[string]struct{}) float64 {
	if len(keywordSet) == 0 {
		return 0
	}
	contentWords := validate.ExtractKeywords(b.Content)
	hits := 0
	for _, w := range contentWords {
		if _, ok := keywordSet[w]; ok {
			hits++
		}
	}
	for _, tag := range b.Tags {
		if _, ok := keywordSet[types.ToLowerASCII(tag)]; ok {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return float64(hits)
}

func containsCategory(task, category string) bool {
	if category == "" {
		return false
	}
	return strings.Contains(strings.ToLower(task), strings.ToLower(category))
}

// scoredBullet pairs a bullet with its computed ranking score.
type scoredBullet struct {
	bullet types.PlaybookBullet
	score  float64
}

func sortByScoreDesc(items []scoredBullet) {
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && items[j-1].score < items[j].score {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
}

// suggestQueries proposes follow-up history searches from the task's own
// keywords, so a caller with no results can try narrower terms.
func suggestQueries(keywords []string) []string {
	if len(keywords) <= 1 {
		return nil
	}
	return keywords
}
