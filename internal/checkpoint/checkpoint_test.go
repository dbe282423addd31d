package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rec := &Record{
		JobID:     "backfill",
		Direction: "reverse",
		Cursor: Cursor{
			AnchorDate:  "2025-06-02",
			LastEndDate: "2025-06-01",
		},
		Stats: map[string]int{"papers": 142, "skipped": 3},
	}
	require.NoError(t, store.Save(rec))

	loaded, ok, err := store.Load("backfill")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, SchemaVersion, loaded.SchemaVersion)
	assert.Equal(t, "backfill", loaded.JobID)
	assert.Equal(t, "reverse", loaded.Direction)
	assert.Equal(t, "2025-06-01", loaded.Cursor.LastEndDate)
	assert.Equal(t, 142, loaded.Stats["papers"])
	assert.False(t, loaded.LastSavedAt.IsZero())
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rec, ok, err := store.Load("nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestLoadRejectsUnknownSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "old.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version":99,"job_id":"old"}`), 0644))

	_, _, err = store.Load("old")
	assert.Error(t, err)
}

func TestClearIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(&Record{JobID: "s2"}))
	require.NoError(t, store.Clear("s2"))

	_, ok, err := store.Load("s2")
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing again must succeed.
	require.NoError(t, store.Clear("s2"))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(&Record{JobID: "openalex"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(&Record{JobID: "backfill"}))
	require.NoError(t, store.Save(&Record{JobID: "enrich-s2"}))

	jobs, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"backfill", "enrich-s2"}, jobs)
}
