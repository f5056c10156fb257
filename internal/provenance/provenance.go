// Package provenance tracks the lineage of mined knowledge candidates back
// to the raw session transcripts they came from, so a bullet's origin can
// still be traced after curation folds it into the playbook.
package provenance

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record represents a single provenance entry.
// It links an artifact to its source.
type Record struct {
	// ID is the unique record identifier.
	ID string `json:"id"`

	// ArtifactPath is the file that was produced.
	ArtifactPath string `json:"artifact_path"`

	// ArtifactType classifies the output (session, index, etc).
	ArtifactType string `json:"artifact_type"`

	// SourcePath is the input file.
	SourcePath string `json:"source_path"`

	// SourceType classifies the input (transcript).
	SourceType string `json:"source_type"`

	// SessionID links to the conversation.
	SessionID string `json:"session_id,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// Metadata holds additional provenance data.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Graph manages provenance records and enables querying.
type Graph struct {
	// Path is the location of the provenance JSONL file.
	Path string

	// Records are loaded records for querying.
	Records []Record
}

// NewGraph creates a graph from a provenance file.
func NewGraph(path string) (*Graph, error) {
	g := &Graph{Path: path}
	if err := g.load(); err != nil {
		return nil, err
	}
	return g, nil
}

// load reads all records from the provenance file.
func (g *Graph) load() error {
	f, err := os.Open(g.Path)
	if os.IsNotExist(err) {
		g.Records = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("open provenance file: %w", err)
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // read-only, errors non-critical
	}()

	g.Records = nil
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue // Skip malformed lines
		}
		g.Records = append(g.Records, record)
	}

	return scanner.Err()
}

// Append records a new provenance entry and persists it to the JSONL file,
// creating the file (and its parent directory) if necessary.
func (g *Graph) Append(record Record) error {
	if err := os.MkdirAll(filepath.Dir(g.Path), 0o755); err != nil {
		return fmt.Errorf("create provenance dir: %w", err)
	}

	f, err := os.OpenFile(g.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open provenance file: %w", err)
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // append-only, best-effort close
	}()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal provenance record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}

	g.Records = append(g.Records, record)
	return nil
}

// TraceResult contains the provenance chain for an artifact.
type TraceResult struct {
	// Artifact is the path being traced.
	Artifact string `json:"artifact"`

	// Chain is the provenance path from artifact to source.
	Chain []Record `json:"chain"`

	// Sources are the original transcript sources.
	Sources []string `json:"sources"`
}

// Trace finds the provenance chain for an artifact.
func (g *Graph) Trace(artifactPath string) (*TraceResult, error) {
	result := &TraceResult{
		Artifact: artifactPath,
		Chain:    make([]Record, 0),
		Sources:  make([]string, 0),
	}

	// Normalize path for matching
	absPath, err := filepath.Abs(artifactPath)
	if err != nil {
		absPath = artifactPath
	}

	// Find records matching this artifact
	for _, record := range g.Records {
		recordAbs, _ := filepath.Abs(record.ArtifactPath)
		if recordAbs == absPath || record.ArtifactPath == artifactPath {
			result.Chain = append(result.Chain, record)

			// Track sources
			if record.SourceType == "transcript" {
				result.Sources = append(result.Sources, record.SourcePath)
			}
		}
	}

	if len(result.Chain) == 0 {
		// Try matching by filename only
		baseName := filepath.Base(artifactPath)
		for _, record := range g.Records {
			if filepath.Base(record.ArtifactPath) == baseName {
				result.Chain = append(result.Chain, record)
				if record.SourceType == "transcript" {
					result.Sources = append(result.Sources, record.SourcePath)
				}
			}
		}
	}

	return result, nil
}

// FindBySession finds all provenance records for a session ID.
func (g *Graph) FindBySession(sessionID string) []Record {
	var results []Record
	for _, record := range g.Records {
		if record.SessionID == sessionID {
			results = append(results, record)
		}
	}
	return results
}

// FindBySource finds all artifacts derived from a source.
func (g *Graph) FindBySource(sourcePath string) []Record {
	var results []Record
	absSource, _ := filepath.Abs(sourcePath)

	for _, record := range g.Records {
		recordSource, _ := filepath.Abs(record.SourcePath)
		if recordSource == absSource || record.SourcePath == sourcePath {
			results = append(results, record)
		}
	}
	return results
}

// Stats returns statistics about the provenance graph.
type Stats struct {
	TotalRecords   int            `json:"total_records"`
	ArtifactTypes  map[string]int `json:"artifact_types"`
	SourceTypes    map[string]int `json:"source_types"`
	UniqueSessions int            `json:"unique_sessions"`
}

// GetStats returns statistics about the graph.
func (g *Graph) GetStats() *Stats {
	stats := &Stats{
		TotalRecords:  len(g.Records),
		ArtifactTypes: make(map[string]int),
		SourceTypes:   make(map[string]int),
	}

	sessions := make(map[string]bool)
	for _, record := range g.Records {
		stats.ArtifactTypes[record.ArtifactType]++
		stats.SourceTypes[record.SourceType]++
		if record.SessionID != "" {
			sessions[record.SessionID] = true
		}
	}

	stats.UniqueSessions = len(sessions)
	return stats
}
