package main

import (
	"os"
	"path/filepath"

	"github.com/cass-memory/cass-memory/internal/config"
	"github.com/cass-memory/cass-memory/internal/oracle"
	"github.com/cass-memory/cass-memory/internal/scoring"
	"github.com/cass-memory/cass-memory/internal/storage"
)

// repoCassDir returns the repo-scoped .cass directory rooted at the
// current working directory, or "" if cwd can't be determined.
func repoCassDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".cass")
}

// loadConfig resolves the full precedence chain for this invocation.
func loadConfig() (*config.Config, error) {
	overrides := &config.Config{JSONOutput: jsonOutput, Verbose: verbose}
	repoDir := cfgFile
	if repoDir == "" {
		repoDir = repoCassDir()
	}
	return config.Load(repoDir, overrides)
}

// globalStore returns the Store rooted at the resolved global home.
func globalStore(cfg *config.Config) *storage.Store {
	return storage.New(cfg.Home)
}

// repoStore returns the Store rooted at the resolved repo .cass directory,
// or nil if this invocation isn't running inside a repo overlay.
func repoStore(cfg *config.Config) *storage.Store {
	repoDir := cfgFile
	if repoDir == "" {
		repoDir = repoCassDir()
	}
	if repoDir == "" {
		return nil
	}
	return storage.New(repoDir)
}

// scoringParams derives scoring.Params from the resolved config.
func scoringParams(cfg *config.Config) scoring.Params {
	return scoring.Params{
		DecayHalfLifeDays:          cfg.DecayHalfLifeDays,
		HarmfulMultiplier:          cfg.HarmfulMultiplier,
		MaturityPromotionThreshold: cfg.MaturityPromotionThreshold,
		MaturityProvenThreshold:    cfg.MaturityProvenThreshold,
		MaxHarmfulRatioForProven:   cfg.Scoring.MaxHarmfulRatioForProven,
	}
}

// extractorFor resolves the configured oracle for this invocation.
func extractorFor(cfg *config.Config) oracle.Extractor {
	return oracle.FromConfig(cfg.Provider, cfg.Model, cfg.APIKey)
}
