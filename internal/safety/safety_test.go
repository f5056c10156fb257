package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cass-memory/cass-memory/internal/types"
)

func TestCheck_DeniesOnMatchingActivePattern(t *testing.T) {
	entries := []types.TraumaEntry{
		{ID: "t1", Pattern: `rm -rf /`, Status: types.TraumaActive, Severity: types.SeverityFatal},
	}
	d := Check("rm -rf / --no-preserve-root", entries)
	assert.True(t, d.Denied)
	assert.Equal(t, "t1", d.EntryID)
}

func TestCheck_IgnoresHealedEntries(t *testing.T) {
	entries := []types.TraumaEntry{
		{ID: "t1", Pattern: `rm -rf /`, Status: types.TraumaHealed},
	}
	d := Check("rm -rf /", entries)
	assert.False(t, d.Denied)
}

func TestCheck_SkipsMalformedPatternFailsOpen(t *testing.T) {
	entries := []types.TraumaEntry{
		{ID: "t1", Pattern: `(unclosed`, Status: types.TraumaActive},
	}
	d := Check("anything", entries)
	assert.False(t, d.Denied)
}

func TestCheck_NoMatchAllowsCommand(t *testing.T) {
	entries := []types.TraumaEntry{{ID: "t1", Pattern: `drop database`, Status: types.TraumaActive}}
	d := Check("ls -la", entries)
	assert.False(t, d.Denied)
}

func TestMerge_RepoOverridesGlobalByID(t *testing.T) {
	global := []types.TraumaEntry{{ID: "shared", Pattern: "a"}, {ID: "g-only", Pattern: "b"}}
	repo := []types.TraumaEntry{{ID: "shared", Pattern: "c"}, {ID: "r-only", Pattern: "d"}}
	merged := Merge(global, repo)
	require := map[string]string{}
	for _, e := range merged {
		require[e.ID] = e.Pattern
	}
	assert.Equal(t, "c", require["shared"])
	assert.Equal(t, "b", require["g-only"])
	assert.Equal(t, "d", require["r-only"])
}
