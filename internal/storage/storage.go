// Package storage persists playbooks, diary entries, outcome records, the
// processed-session log, and trauma entries to the local filesystem, and
// merges the global and repo-scoped playbook tiers (spec.md §4.2).
package storage

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cass-memory/cass-memory/internal/lock"
	"github.com/cass-memory/cass-memory/internal/types"
)

const (
	// PlaybookFile is the YAML playbook filename within a cass-memory home.
	PlaybookFile = "playbook.yaml"

	// DiaryDir holds one JSON file per diary entry, named <id>.json.
	DiaryDir = "diary"

	// OutcomesFile is the append-only JSONL outcome record log.
	OutcomesFile = "outcomes.jsonl"

	// ProcessedLogFile is the append-only JSONL processed-session log.
	ProcessedLogFile = "processed.jsonl"

	// TraumaFile is the JSON array of trauma entries.
	TraumaFile = "trauma.json"

	// CurrentSchemaVersion is written into new playbooks' metadata.
	CurrentSchemaVersion = 1
)

// Store reads and writes the on-disk cass-memory state rooted at a single
// home directory (either the global home or a repo's .cass directory).
type Store struct {
	Dir string
	mu  sync.Mutex
}

// New returns a Store rooted at dir. dir is created lazily on first write.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name)
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return types.ErrIO("create store directory", err)
	}
	return nil
}

// LoadPlaybook reads this store's playbook.yaml. A missing file returns an
// empty, freshly-initialized playbook rather than an error, matching the
// teacher's ListSessions "no index yet" convention.
func (s *Store) LoadPlaybook() (*types.Playbook, error) {
	data, err := os.ReadFile(s.path(PlaybookFile))
	if os.IsNotExist(err) {
		now := time.Now().UTC()
		return &types.Playbook{
			Metadata: types.PlaybookMetadata{
				SchemaVersion: CurrentSchemaVersion,
				Version:       1,
				CreatedAt:     now,
				UpdatedAt:     now,
			},
		}, nil
	}
	if err != nil {
		return nil, types.ErrIO("read playbook", err)
	}

	normalized := normalizeKeysToSnake(data)

	var pb types.Playbook
	if err := yaml.Unmarshal(normalized, &pb); err != nil {
		return nil, types.ErrParse("parse playbook", err)
	}
	return &pb, nil
}

// SavePlaybook writes the playbook atomically under this store's lock.
// Callers that derived pb from an earlier LoadPlaybook held outside the
// lock should use MutatePlaybook instead, so the write isn't racing a
// concurrent writer's update (spec.md §4.2, §5: "lock, read fresh, mutate,
// write, release").
func (s *Store) SavePlaybook(pb *types.Playbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	target := s.path(PlaybookFile)
	return lock.WithLock(target, "save-playbook", func() error {
		pb.Metadata.UpdatedAt = time.Now().UTC()
		return atomicWrite(target, func(w io.Writer) error {
			enc := yaml.NewEncoder(w)
			defer enc.Close()
			return enc.Encode(pb)
		})
	})
}

// MutatePlaybook reloads the on-disk playbook from inside the sidecar lock,
// applies mutate to it, and atomically writes the result back before
// releasing the lock. This is the concurrency-safe path for any caller that
// needs to read-modify-write the playbook: two processes racing through
// reflect or feedback each see the other's already-persisted bullets
// instead of overwriting them (spec.md §8 scenario 6: "no losses").
func (s *Store) MutatePlaybook(mutate func(*types.Playbook) error) (*types.Playbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	target := s.path(PlaybookFile)
	var result *types.Playbook
	err := lock.WithLock(target, "mutate-playbook", func() error {
		pb, err := s.LoadPlaybook()
		if err != nil {
			return err
		}
		if err := mutate(pb); err != nil {
			return err
		}
		pb.Metadata.UpdatedAt = time.Now().UTC()
		if err := atomicWrite(target, func(w io.Writer) error {
			enc := yaml.NewEncoder(w)
			defer enc.Close()
			return enc.Encode(pb)
		}); err != nil {
			return err
		}
		result = pb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MergedPlaybook loads the global store and a repo store and merges them
// per spec.md §4.2: bullets are the union keyed by id, with repo bullets
// overriding global bullets sharing an id; deprecated patterns are
// concatenated; metadata.updatedAt is the max of the two.
func MergedPlaybook(global, repo *Store) (*types.Playbook, error) {
	globalPB, err := global.LoadPlaybook()
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return globalPB, nil
	}
	repoPB, err := repo.LoadPlaybook()
	if err != nil {
		return nil, err
	}

	merged := &types.Playbook{Metadata: globalPB.Metadata}
	if repoPB.Metadata.UpdatedAt.After(merged.Metadata.UpdatedAt) {
		merged.Metadata.UpdatedAt = repoPB.Metadata.UpdatedAt
	}
	merged.Metadata.TotalReflections = globalPB.Metadata.TotalReflections + repoPB.Metadata.TotalReflections

	byID := make(map[string]types.PlaybookBullet, len(globalPB.Bullets)+len(repoPB.Bullets))
	order := make([]string, 0, len(globalPB.Bullets)+len(repoPB.Bullets))
	for _, b := range globalPB.Bullets {
		if _, ok := byID[b.ID]; !ok {
			order = append(order, b.ID)
		}
		byID[b.ID] = b
	}
	for _, b := range repoPB.Bullets {
		if _, ok := byID[b.ID]; !ok {
			order = append(order, b.ID)
		}
		byID[b.ID] = b // repo overrides global on id collision
	}
	for _, id := range order {
		merged.Bullets = append(merged.Bullets, byID[id])
	}

	merged.DeprecatedPatterns = append(append([]types.DeprecatedPattern{}, globalPB.DeprecatedPatterns...), repoPB.DeprecatedPatterns...)

	return merged, nil
}

// SaveDiaryEntry writes one diary entry to <home>/diary/<id>.json.
func (s *Store) SaveDiaryEntry(entry *types.DiaryEntry) error {
	if entry.ID == "" {
		return types.ErrValidation("diary entry id required", nil)
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	target := filepath.Join(s.Dir, DiaryDir, entry.ID+".json")
	return atomicWrite(target, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	})
}

// LoadDiaryEntry reads a single diary entry by id.
func (s *Store) LoadDiaryEntry(id string) (*types.DiaryEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, DiaryDir, id+".json"))
	if os.IsNotExist(err) {
		return nil, types.ErrBulletNotFound
	}
	if err != nil {
		return nil, types.ErrIO("read diary entry", err)
	}
	var entry types.DiaryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, types.ErrParse("parse diary entry", err)
	}
	return &entry, nil
}

// ListDiaryEntries reads every entry under the diary directory, tolerating
// unreadable individual files by skipping them.
func (s *Store) ListDiaryEntries() ([]types.DiaryEntry, error) {
	dirPath := filepath.Join(s.Dir, DiaryDir)
	files, err := os.ReadDir(dirPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.ErrIO("list diary entries", err)
	}

	var entries []types.DiaryEntry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dirPath, f.Name()))
		if err != nil {
			continue
		}
		var entry types.DiaryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// AppendOutcome appends one outcome record to outcomes.jsonl.
func (s *Store) AppendOutcome(rec *types.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	return appendJSONL(s.path(OutcomesFile), rec)
}

// ListOutcomes reads every well-formed line of outcomes.jsonl, skipping
// malformed lines rather than failing the whole read.
func (s *Store) ListOutcomes() ([]types.OutcomeRecord, error) {
	var out []types.OutcomeRecord
	err := readJSONL(s.path(OutcomesFile), func(line []byte) {
		var rec types.OutcomeRecord
		if json.Unmarshal(line, &rec) == nil {
			out = append(out, rec)
		}
	})
	return out, err
}

// AppendProcessed marks a session as processed in processed.jsonl.
func (s *Store) AppendProcessed(rec *types.ProcessedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	return appendJSONL(s.path(ProcessedLogFile), rec)
}

// IsProcessed reports whether sessionPath already appears in the
// processed-session log, so reflection never re-processes a session.
func (s *Store) IsProcessed(sessionPath string) (bool, error) {
	found := false
	err := readJSONL(s.path(ProcessedLogFile), func(line []byte) {
		var rec types.ProcessedSession
		if json.Unmarshal(line, &rec) == nil && rec.SessionPath == sessionPath {
			found = true
		}
	})
	return found, err
}

// LoadTrauma reads trauma.json, returning an empty slice if absent.
func (s *Store) LoadTrauma() ([]types.TraumaEntry, error) {
	data, err := os.ReadFile(s.path(TraumaFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.ErrIO("read trauma file", err)
	}
	var entries []types.TraumaEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, types.ErrParse("parse trauma file", err)
	}
	return entries, nil
}

// SaveTrauma writes the full trauma entry list atomically.
func (s *Store) SaveTrauma(entries []types.TraumaEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	target := s.path(TraumaFile)
	return lock.WithLock(target, "save-trauma", func() error {
		return atomicWrite(target, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		})
	})
}

// atomicWrite writes to a temp file in the target's directory and renames
// atomically, matching the teacher's FileStorage.atomicWrite in
// internal/storage/file.go.
func atomicWrite(path string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return types.ErrIO("create directory", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return types.ErrIO("create temp file", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeFunc(tmpFile); err != nil {
		_ = tmpFile.Close()
		return types.ErrIO("write content", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return types.ErrIO("sync file", err)
	}
	if err := tmpFile.Close(); err != nil {
		return types.ErrIO("close temp file", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return types.ErrIO("chmod temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return types.ErrIO("rename to final", err)
	}

	success = true
	return nil
}

// appendJSONL appends one JSON-encoded line to path, matching the teacher's
// appendJSONL in internal/storage/file.go.
func appendJSONL(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return types.ErrIO("create directory", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return types.ErrIO("marshal json", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return types.ErrIO("open file", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return types.ErrIO("write line", err)
	}
	return f.Sync()
}

// readJSONL scans path line by line, invoking fn with each raw line.
// Malformed lines are the caller's concern (fn should ignore unmarshal
// errors), but a missing file is not an error at all.
func readJSONL(path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.ErrIO("open file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		fn(cp)
	}
	return scanner.Err()
}
