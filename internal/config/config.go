// Package config loads cass-memory configuration from (highest to lowest
// priority): explicit overrides, environment variables, the repository
// overlay (<repo>/.cass/config.{json,yaml}, JSON wins when both exist),
// the global config (~/.cass-memory/config.json), and built-in defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cass-memory/cass-memory/internal/types"
)

// SanitizationConfig controls secret-scrubbing behavior (SPEC_FULL.md §6).
type SanitizationConfig struct {
	Enabled       bool     `json:"enabled" yaml:"enabled"`
	ExtraPatterns []string `json:"extraPatterns,omitempty" yaml:"extra_patterns,omitempty"`
	AuditLog      bool     `json:"auditLog,omitempty" yaml:"audit_log,omitempty"`
	AuditLevel    string   `json:"auditLevel,omitempty" yaml:"audit_level,omitempty"`
}

// CrossAgentConfig controls the cross-agent hook consent state. The hook
// script itself is out of scope; this config is the persisted consent
// record it reads.
type CrossAgentConfig struct {
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	ConsentGiven bool     `json:"consentGiven,omitempty" yaml:"consent_given,omitempty"`
	ConsentDate  string   `json:"consentDate,omitempty" yaml:"consent_date,omitempty"`
	Agents       []string `json:"agents,omitempty" yaml:"agents,omitempty"`
	AuditLog     bool     `json:"auditLog,omitempty" yaml:"audit_log,omitempty"`
}

// ScoringConfig holds the scoring-engine tunables from SPEC_FULL.md §6,
// duplicated at top level for convenience (DecayHalfLifeDays,
// HarmfulMultiplier) and nested here (MinFeedbackForActive etc.) to match
// the spec's dotted key names.
type ScoringConfig struct {
	DecayHalfLifeDays        float64 `json:"decayHalfLifeDays" yaml:"decay_half_life_days"`
	HarmfulMultiplier        float64 `json:"harmfulMultiplier" yaml:"harmful_multiplier"`
	MinFeedbackForActive     int     `json:"minFeedbackForActive" yaml:"min_feedback_for_active"`
	MinHelpfulForProven      float64 `json:"minHelpfulForProven" yaml:"min_helpful_for_proven"`
	MaxHarmfulRatioForProven float64 `json:"maxHarmfulRatioForProven" yaml:"max_harmful_ratio_for_proven"`
}

// BudgetConfig is an open-ended set of cost/budget tunables; the spec names
// it only as `budget:{…}` without enumerating keys.
type BudgetConfig struct {
	MaxUSDPerReflection float64 `json:"maxUsdPerReflection,omitempty" yaml:"max_usd_per_reflection,omitempty"`
}

// Config holds all cass-memory configuration (SPEC_FULL.md §6).
type Config struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string `json:"apiKey,omitempty" yaml:"api_key,omitempty"`
	CassPath string `json:"cassPath,omitempty" yaml:"cass_path,omitempty"`
	Home     string `json:"home,omitempty" yaml:"home,omitempty"`
	Cwd      string `json:"cwd,omitempty" yaml:"cwd,omitempty"`

	MaxBulletsInContext        int     `json:"maxBulletsInContext" yaml:"max_bullets_in_context"`
	MaxHistoryInContext        int     `json:"maxHistoryInContext" yaml:"max_history_in_context"`
	SessionLookbackDays        int     `json:"sessionLookbackDays" yaml:"session_lookback_days"`
	PruneHarmfulThreshold      float64 `json:"pruneHarmfulThreshold" yaml:"prune_harmful_threshold"`
	DecayHalfLifeDays          float64 `json:"decayHalfLifeDays" yaml:"decay_half_life_days"`
	MaturityPromotionThreshold float64 `json:"maturityPromotionThreshold" yaml:"maturity_promotion_threshold"`
	MaturityProvenThreshold    float64 `json:"maturityProvenThreshold" yaml:"maturity_proven_threshold"`
	HarmfulMultiplier          float64 `json:"harmfulMultiplier" yaml:"harmful_multiplier"`
	MaxReflectorIterations     int     `json:"maxReflectorIterations" yaml:"max_reflector_iterations"`

	JSONOutput bool `json:"jsonOutput,omitempty" yaml:"json_output,omitempty"`
	Verbose    bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	Sanitization SanitizationConfig `json:"sanitization" yaml:"sanitization"`
	CrossAgent   CrossAgentConfig   `json:"crossAgent" yaml:"cross_agent"`
	Scoring      ScoringConfig      `json:"scoring" yaml:"scoring"`
	Budget       BudgetConfig       `json:"budget" yaml:"budget"`
}

// GlobalHome is the default global data directory name.
const GlobalHome = ".cass-memory"

// Default returns the built-in configuration defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return &Config{
		CassPath: "cass",
		Home:     filepath.Join(home, GlobalHome),
		Cwd:      cwd,

		MaxBulletsInContext:       10,
		MaxHistoryInContext:       10,
		SessionLookbackDays:       30,
		PruneHarmfulThreshold:     3,
		DecayHalfLifeDays:         90,
		MaturityPromotionThreshold: 3,
		MaturityProvenThreshold:    10,
		HarmfulMultiplier:         4,
		MaxReflectorIterations:    3,

		Sanitization: SanitizationConfig{Enabled: true},
		Scoring: ScoringConfig{
			DecayHalfLifeDays:        90,
			HarmfulMultiplier:        4,
			MinFeedbackForActive:     1,
			MinHelpfulForProven:      10,
			MaxHarmfulRatioForProven: 0.1,
		},
	}
}

// GlobalConfigPath returns ~/.cass-memory/config.json (or the HOME-relative
// equivalent if the Home field was customized).
func GlobalConfigPath(home string) string {
	return filepath.Join(home, "config.json")
}

// RepoConfigPaths returns the JSON and YAML candidate paths under
// <repo>/.cass/. JSON wins when both exist (spec.md §4.2).
func RepoConfigPaths(repoCassDir string) (jsonPath, yamlPath string) {
	return filepath.Join(repoCassDir, "config.json"), filepath.Join(repoCassDir, "config.yaml")
}

// Load resolves the full precedence chain and returns the merged config.
// overrides, when non-nil, wins over every other source (e.g. CLI flags).
func Load(repoCassDir string, overrides *Config) (*Config, error) {
	cfg := Default()

	if home := strings.TrimSpace(os.Getenv("HOME")); home != "" {
		cfg.Home = filepath.Join(home, GlobalHome)
	}

	if global, err := loadJSONFile(GlobalConfigPath(cfg.Home)); err != nil {
		return nil, types.ErrConfig("load global config", err)
	} else if global != nil {
		mergeInto(cfg, global)
	}

	if repoCassDir != "" {
		jsonPath, yamlPath := RepoConfigPaths(repoCassDir)
		repoCfg, err := loadJSONFile(jsonPath)
		if err != nil {
			return nil, types.ErrConfig("load repo config", err)
		}
		if repoCfg == nil {
			repoCfg, err = loadYAMLFile(yamlPath)
			if err != nil {
				return nil, types.ErrConfig("load repo config", err)
			}
		}
		if repoCfg != nil {
			discardSensitiveFields(repoCfg)
			mergeInto(cfg, repoCfg)
		}
	}

	applyEnv(cfg)

	if overrides != nil {
		mergeInto(cfg, overrides)
	}

	return cfg, nil
}

// discardSensitiveFields clears the fields a repo overlay must never set,
// per invariant 4: "Repo-scoped playbooks may not override security-
// sensitive config paths; those are silently discarded during merge."
func discardSensitiveFields(c *Config) {
	c.CassPath = ""
	c.Home = ""
	c.Cwd = ""
}

func loadJSONFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadYAMLFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv applies the three documented environment variables.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CASS_PATH")); v != "" {
		cfg.CassPath = v
	}
	if v := os.Getenv("CASS_MEMORY_VERBOSE"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Verbose = true
	}
	// CASS_MEMORY_LLM=none is read directly by internal/oracle; nothing to
	// mirror into Config since it selects an implementation, not a value.
}

// mergeInto overlays non-zero fields of src onto dst, src taking precedence.
// Numeric zero and empty string are treated as "not set" throughout, matching
// the teacher's merge() idiom in internal/config.
func mergeInto(dst, src *Config) {
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.CassPath != "" {
		dst.CassPath = src.CassPath
	}
	if src.Home != "" {
		dst.Home = src.Home
	}
	if src.Cwd != "" {
		dst.Cwd = src.Cwd
	}
	if src.MaxBulletsInContext != 0 {
		dst.MaxBulletsInContext = src.MaxBulletsInContext
	}
	if src.MaxHistoryInContext != 0 {
		dst.MaxHistoryInContext = src.MaxHistoryInContext
	}
	if src.SessionLookbackDays != 0 {
		dst.SessionLookbackDays = src.SessionLookbackDays
	}
	if src.PruneHarmfulThreshold != 0 {
		dst.PruneHarmfulThreshold = src.PruneHarmfulThreshold
	}
	if src.DecayHalfLifeDays != 0 {
		dst.DecayHalfLifeDays = src.DecayHalfLifeDays
		dst.Scoring.DecayHalfLifeDays = src.DecayHalfLifeDays
	}
	if src.MaturityPromotionThreshold != 0 {
		dst.MaturityPromotionThreshold = src.MaturityPromotionThreshold
	}
	if src.MaturityProvenThreshold != 0 {
		dst.MaturityProvenThreshold = src.MaturityProvenThreshold
	}
	if src.HarmfulMultiplier != 0 {
		dst.HarmfulMultiplier = src.HarmfulMultiplier
		dst.Scoring.HarmfulMultiplier = src.HarmfulMultiplier
	}
	if src.MaxReflectorIterations != 0 {
		dst.MaxReflectorIterations = src.MaxReflectorIterations
	}
	if src.JSONOutput {
		dst.JSONOutput = true
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.Sanitization.Enabled {
		dst.Sanitization.Enabled = true
	}
	if len(src.Sanitization.ExtraPatterns) > 0 {
		dst.Sanitization.ExtraPatterns = src.Sanitization.ExtraPatterns
	}
	if src.Sanitization.AuditLog {
		dst.Sanitization.AuditLog = true
	}
	if src.Sanitization.AuditLevel != "" {
		dst.Sanitization.AuditLevel = src.Sanitization.AuditLevel
	}
	if src.CrossAgent.Enabled {
		dst.CrossAgent.Enabled = true
	}
	if src.CrossAgent.ConsentGiven {
		dst.CrossAgent.ConsentGiven = true
	}
	if src.CrossAgent.ConsentDate != "" {
		dst.CrossAgent.ConsentDate = src.CrossAgent.ConsentDate
	}
	if len(src.CrossAgent.Agents) > 0 {
		dst.CrossAgent.Agents = src.CrossAgent.Agents
	}
	if src.Scoring.MinFeedbackForActive != 0 {
		dst.Scoring.MinFeedbackForActive = src.Scoring.MinFeedbackForActive
	}
	if src.Scoring.MinHelpfulForProven != 0 {
		dst.Scoring.MinHelpfulForProven = src.Scoring.MinHelpfulForProven
	}
	if src.Scoring.MaxHarmfulRatioForProven != 0 {
		dst.Scoring.MaxHarmfulRatioForProven = src.Scoring.MaxHarmfulRatioForProven
	}
	if src.Budget.MaxUSDPerReflection != 0 {
		dst.Budget.MaxUSDPerReflection = src.Budget.MaxUSDPerReflection
	}
}

// EnvBool parses a boolean-ish environment variable the way applyEnv does,
// exported for callers (e.g. the oracle package) that read other env vars
// with the same "1 or true" convention.
func EnvBool(value string) bool {
	if value == "" {
		return false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return strings.EqualFold(value, "true")
}
