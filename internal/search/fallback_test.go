package search

import (
	"path/filepath"
	"testing"
)

func TestSearchDir_BuildsAndSearchesInOneCall(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), `{"content":"fixed the flaky retry logic in upload worker"}`)
	writeFile(t, filepath.Join(dir, "b.json"), `{"content":"renamed variables for clarity"}`)

	results, err := SearchDir(dir, "retry worker", 5)
	if err != nil {
		t.Fatalf("SearchDir() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if filepath.Base(results[0].Path) != "a.json" {
		t.Errorf("expected a.json, got %s", results[0].Path)
	}
}

func TestSearchDir_NoMatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), `{"content":"renamed variables"}`)

	results, err := SearchDir(dir, "nonexistent-term-xyz", 5)
	if err != nil {
		t.Fatalf("SearchDir() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
