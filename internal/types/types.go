// Package types defines the data model for the cass-memory knowledge
// curation engine: playbooks, bullets, diary entries, deltas, trauma
// entries, outcomes, and the processed-session log.
package types

import (
	"sort"
	"strings"
	"time"
)

// Scope identifies which playbook tier a bullet belongs to.
type Scope string

const (
	// ScopeGlobal bullets apply across all repositories.
	ScopeGlobal Scope = "global"

	// ScopeWorkspace bullets apply only within a qualifying workspace.
	ScopeWorkspace Scope = "workspace"
)

// BulletState is the lifecycle state of a bullet.
type BulletState string

const (
	StateDraft   BulletState = "draft"
	StateActive  BulletState = "active"
	StateRetired BulletState = "retired"
)

// Maturity is the coarse confidence tier of a bullet.
type Maturity string

const (
	MaturityCandidate   Maturity = "candidate"
	MaturityEstablished Maturity = "established"
	MaturityProven      Maturity = "proven"
	MaturityDeprecated  Maturity = "deprecated"
)

// Kind classifies what shape of rule a bullet expresses. The taxonomy is
// free-form per SPEC_FULL.md — these are the conventional values the
// reflection and curation pipelines recognize, not a closed enum.
const (
	KindWorkflowRule = "workflow_rule"
	KindStackPattern = "stack_pattern"
	KindAntiPattern  = "anti_pattern"
)

// FeedbackType distinguishes helpful from harmful feedback events.
type FeedbackType string

const (
	FeedbackHelpful FeedbackType = "helpful"
	FeedbackHarmful FeedbackType = "harmful"
)

// FeedbackEvent is a single timestamped feedback signal against a bullet.
type FeedbackEvent struct {
	Type        FeedbackType `json:"type" yaml:"type"`
	Timestamp   time.Time    `json:"timestamp" yaml:"timestamp"`
	SessionPath string       `json:"sessionPath,omitempty" yaml:"session_path,omitempty"`
}

// PlaybookBullet is a single atomic rule, either a workflow rule/stack
// pattern or (when IsNegative) an anti-pattern.
type PlaybookBullet struct {
	ID      string `json:"id" yaml:"id"`
	Content string `json:"content" yaml:"content"`
	Category string `json:"category" yaml:"category"`
	Kind    string `json:"kind" yaml:"kind"`
	IsNegative bool `json:"isNegative,omitempty" yaml:"is_negative,omitempty"`

	Scope     Scope  `json:"scope" yaml:"scope"`
	Workspace string `json:"workspace,omitempty" yaml:"workspace,omitempty"`

	State    BulletState `json:"state" yaml:"state"`
	Maturity Maturity    `json:"maturity" yaml:"maturity"`

	HelpfulCount int `json:"helpfulCount" yaml:"helpful_count"`
	HarmfulCount int `json:"harmfulCount" yaml:"harmful_count"`

	FeedbackEvents []FeedbackEvent `json:"feedbackEvents,omitempty" yaml:"feedback_events,omitempty"`

	ConfidenceDecayHalfLifeDays float64 `json:"confidenceDecayHalfLifeDays" yaml:"confidence_decay_half_life_days"`

	CreatedAt    time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" yaml:"updated_at"`
	DeprecatedAt *time.Time `json:"deprecatedAt,omitempty" yaml:"deprecated_at,omitempty"`

	SourceSessions []string `json:"sourceSessions,omitempty" yaml:"source_sessions,omitempty"`
	SourceAgents   []string `json:"sourceAgents,omitempty" yaml:"source_agents,omitempty"`
	Tags           []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	Pinned     bool `json:"pinned,omitempty" yaml:"pinned,omitempty"`
	Deprecated bool `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`

	DeprecationReason string `json:"deprecationReason,omitempty" yaml:"deprecation_reason,omitempty"`
	ReplacedBy        string `json:"replacedBy,omitempty" yaml:"replaced_by,omitempty"`
}

// CaseFoldedContent returns Content lowercased, for duplicate-detection
// comparisons (invariant 5 in SPEC_FULL.md §3).
func (b PlaybookBullet) CaseFoldedContent() string {
	return toLowerASCII(b.Content)
}

// DeprecatedPattern records a retired content pattern and its replacement.
type DeprecatedPattern struct {
	Pattern     string    `json:"pattern" yaml:"pattern"`
	Replacement string    `json:"replacement" yaml:"replacement"`
	Reason      string    `json:"reason" yaml:"reason"`
	DeprecatedAt time.Time `json:"deprecatedAt" yaml:"deprecated_at"`
}

// PlaybookMetadata carries whole-playbook bookkeeping fields.
type PlaybookMetadata struct {
	SchemaVersion    int       `json:"schemaVersion" yaml:"schema_version"`
	Version          int       `json:"version" yaml:"version"`
	CreatedAt        time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" yaml:"updated_at"`
	TotalReflections int       `json:"totalReflections" yaml:"total_reflections"`
	LastReflection   time.Time `json:"lastReflection,omitempty" yaml:"last_reflection,omitempty"`
}

// Playbook is the curated collection of rules and anti-patterns.
type Playbook struct {
	Metadata           PlaybookMetadata    `json:"metadata" yaml:"metadata"`
	Bullets            []PlaybookBullet    `json:"bullets" yaml:"bullets"`
	DeprecatedPatterns []DeprecatedPattern `json:"deprecatedPatterns,omitempty" yaml:"deprecated_patterns,omitempty"`
}

// FindBullet returns a pointer into p.Bullets matching id, or nil.
func (p *Playbook) FindBullet(id string) *PlaybookBullet {
	for i := range p.Bullets {
		if p.Bullets[i].ID == id {
			return &p.Bullets[i]
		}
	}
	return nil
}

// SessionStatus is the outcome classification of a diary entry.
type SessionStatus string

const (
	StatusSuccess SessionStatus = "success"
	StatusFailure SessionStatus = "failure"
	StatusMixed   SessionStatus = "mixed"
)

// DiaryEntry is a structured summary of one coding session.
type DiaryEntry struct {
	ID             string        `json:"id"`
	SessionPath    string        `json:"sessionPath"`
	Timestamp      time.Time     `json:"timestamp"`
	Agent          string        `json:"agent"`
	Workspace      string        `json:"workspace"`
	Status         SessionStatus `json:"status"`
	Accomplishments []string     `json:"accomplishments,omitempty"`
	Decisions       []string     `json:"decisions,omitempty"`
	Challenges      []string     `json:"challenges,omitempty"`
	Preferences     []string     `json:"preferences,omitempty"`
	KeyLearnings    []string     `json:"keyLearnings,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
	SearchAnchors   []string     `json:"searchAnchors,omitempty"`
	RelatedSessions []string     `json:"relatedSessions,omitempty"`
}

// DeltaType tags the PlaybookDelta variant.
type DeltaType string

const (
	DeltaAdd       DeltaType = "add"
	DeltaReplace   DeltaType = "replace"
	DeltaMerge     DeltaType = "merge"
	DeltaDeprecate DeltaType = "deprecate"
	DeltaHelpful   DeltaType = "helpful"
	DeltaHarmful   DeltaType = "harmful"
)

// NewBullet is the payload of an "add" delta: a proposed bullet before it
// has been assigned an id, counters, or lifecycle state.
type NewBullet struct {
	Content    string `json:"content"`
	Category   string `json:"category"`
	Scope      Scope  `json:"scope"`
	Kind       string `json:"kind"`
	IsNegative bool   `json:"isNegative,omitempty"`
}

// PlaybookDelta is a tagged union of the six proposed-mutation shapes in
// SPEC_FULL.md §3. Exactly one payload field is populated, selected by Type.
type PlaybookDelta struct {
	Type DeltaType `json:"type"`

	// add
	Bullet        *NewBullet `json:"bullet,omitempty"`
	SourceSession string     `json:"sourceSession,omitempty"`
	Reason        string     `json:"reason,omitempty"`

	// replace
	BulletID   string `json:"bulletId,omitempty"`
	NewContent string `json:"newContent,omitempty"`

	// merge
	BulletIDs     []string `json:"bulletIds,omitempty"`
	MergedContent string   `json:"mergedContent,omitempty"`
	Category      string   `json:"category,omitempty"`

	// deprecate
	ReplacedBy string `json:"replacedBy,omitempty"`
}

// DeltaHash computes the structural dedup key for a delta, exactly per
// spec.md §4.4: "add" hashes on lowercased content alone, "replace" on
// bulletId+newContent, "merge" on the sorted bulletId set, and the three
// feedback-style deltas on type+bulletId alone — deliberately ignoring
// fields like Category, Reason, and SourceSession so that e.g. two
// "harmful" deltas against the same bullet from different sessions collapse
// to one. Both internal/reflect and internal/curate call this so within-run
// and cross-batch dedup agree.
func DeltaHash(d PlaybookDelta) string {
	switch d.Type {
	case DeltaAdd:
		content := ""
		if d.Bullet != nil {
			content = ToLowerASCII(d.Bullet.Content)
		}
		return "add:" + content
	case DeltaReplace:
		return "replace:" + d.BulletID + ":" + d.NewContent
	case DeltaMerge:
		ids := append([]string(nil), d.BulletIDs...)
		sort.Strings(ids)
		return "merge:" + strings.Join(ids, ",")
	case DeltaDeprecate:
		return string(d.Type) + ":" + d.BulletID
	case DeltaHelpful, DeltaHarmful:
		return string(d.Type) + ":" + d.BulletID
	default:
		return string(d.Type) + ":" + d.BulletID
	}
}

// TraumaSeverity classifies how bad the triggering incident was.
type TraumaSeverity string

const (
	SeverityCritical TraumaSeverity = "CRITICAL"
	SeverityFatal    TraumaSeverity = "FATAL"
)

// TraumaStatus tracks whether a trauma entry is still enforced.
type TraumaStatus string

const (
	TraumaActive TraumaStatus = "active"
	TraumaHealed TraumaStatus = "healed"
)

// TriggerEvent records the incident that created a trauma entry.
type TriggerEvent struct {
	SessionPath  string    `json:"session_path"`
	Timestamp    time.Time `json:"timestamp"`
	HumanMessage string    `json:"human_message"`
}

// TraumaEntry is a regex pattern marking a command the safety guard must
// block, recorded after the user explicitly bans it.
type TraumaEntry struct {
	ID           string         `json:"id"`
	Severity     TraumaSeverity `json:"severity"`
	Pattern      string         `json:"pattern"`
	Scope        Scope          `json:"scope"`
	Status       TraumaStatus   `json:"status"`
	TriggerEvent TriggerEvent   `json:"trigger_event"`
	CreatedAt    time.Time      `json:"created_at"`
}

// OutcomeStatus classifies how a whole session went.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
	OutcomeMixed   OutcomeStatus = "mixed"
	OutcomePartial OutcomeStatus = "partial"
)

// OutcomeRecord is an append-only record of how a session went and which
// rules were in play.
type OutcomeRecord struct {
	SessionID  string        `json:"sessionId"`
	Outcome    OutcomeStatus `json:"outcome"`
	RulesUsed  []string      `json:"rulesUsed,omitempty"`
	DurationSec *float64     `json:"durationSec,omitempty"`
	ErrorCount  *int         `json:"errorCount,omitempty"`
	HadRetries  *bool        `json:"hadRetries,omitempty"`
	Sentiment   string       `json:"sentiment,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	RecordedAt  time.Time    `json:"recordedAt"`
	Path        string       `json:"path,omitempty"`
}

// ProcessedSession is one append-only entry in the processed-session log.
type ProcessedSession struct {
	SessionPath     string    `json:"sessionPath"`
	ProcessedAt     time.Time `json:"processedAt"`
	DiaryID         string    `json:"diaryId"`
	DeltasGenerated int       `json:"deltasGenerated"`
}

// CurationResult is the return shape of curate(): the mutated playbook plus
// bookkeeping about what happened to the incoming deltas.
type CurationResult struct {
	Playbook   Playbook
	Applied    int
	Skipped    int
	Inversions []PlaybookBullet
}

// ReflectionResult is the return shape of the reflection loop.
type ReflectionResult struct {
	Deltas     []PlaybookDelta
	Iterations int
	Truncated  bool
	OracleError error
}

// KnowledgeType categorizes a candidate knowledge snippet mined from a raw
// session transcript, before it becomes a playbook delta.
type KnowledgeType string

const (
	// KnowledgeTypeDecision is an architectural choice with rationale.
	KnowledgeTypeDecision KnowledgeType = "decision"

	// KnowledgeTypeSolution is a working fix for a problem.
	KnowledgeTypeSolution KnowledgeType = "solution"

	// KnowledgeTypeLearning is an insight gained from experience.
	KnowledgeTypeLearning KnowledgeType = "learning"

	// KnowledgeTypeFailure is what didn't work and why.
	KnowledgeTypeFailure KnowledgeType = "failure"

	// KnowledgeTypeReference is a pointer to a useful resource.
	KnowledgeTypeReference KnowledgeType = "reference"
)

// Tier is the quality tier a mined knowledge candidate is assigned to before
// it's written as a diary entry, per the composite scoring rubric.
type Tier string

const (
	TierGold    Tier = "gold"
	TierSilver  Tier = "silver"
	TierBronze  Tier = "bronze"
	TierDiscard Tier = "discard"
)

// ToolCall is one tool invocation or result extracted from a transcript line.
type ToolCall struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input,omitempty"`
	Output string         `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// TranscriptMessage is a single message parsed from a coding-agent session
// transcript (JSONL), used by the history export/search pipeline to pull
// plain-text content out of raw agent session logs.
type TranscriptMessage struct {
	Type         string     `json:"type"`
	Role         string     `json:"role,omitempty"`
	Content      string     `json:"content,omitempty"`
	Tools        []ToolCall `json:"tools,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	SessionID    string     `json:"sessionId,omitempty"`
	MessageIndex int        `json:"messageIndex,omitempty"`
}

// toLowerASCII is a small allocation-free-ish ASCII lowercaser so the hot
// dedup/invariant paths don't pull in strings.ToLower's unicode tables for
// every comparison. Non-ASCII bytes pass through unchanged.
func toLowerASCII(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}

// ToLowerASCII exposes the lowercasing helper for use by other packages
// (dedup hashing, keyword matching) that need the identical fold rule.
func ToLowerASCII(s string) string {
	return toLowerASCII(s)
}
