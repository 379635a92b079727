package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/taskbot/internal/tasks"
)

func TestFileStoreMissingAndEmptyFile(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "data", "tasks.json"))
	require.NoError(t, err)

	doc, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)

	require.NoError(t, os.WriteFile(fs.Path(), []byte("  \n"), 0o644))
	doc, err = fs.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestFileStoreCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = fs.Load(context.Background())
	assert.Error(t, err)
}

func TestFileStoreSaveAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	store, err := tasks.Open(ctx, fs)
	require.NoError(t, err)
	due, err := tasks.ParseDate("2025-01-15")
	require.NoError(t, err)
	require.NoError(t, store.AddTask(ctx, 12345, "Report", "Work", due))
	require.NoError(t, store.SetFrequency(ctx, 12345, tasks.FrequencyTwoDays))
	sent := time.Date(2025, 1, 10, 9, 0, 0, 987654321, time.UTC)
	require.NoError(t, store.SetLastReminder(ctx, 12345, sent))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")

	reopened, err := tasks.Open(ctx, fs)
	require.NoError(t, err)
	rec, ok := reopened.Record(12345)
	require.True(t, ok)
	assert.Equal(t, []tasks.Task{{Name: "Report", Category: "Work", DueDate: due}}, rec.Tasks)
	assert.Equal(t, []string{"Work"}, rec.Categories.Sorted())
	assert.Equal(t, tasks.FrequencyTwoDays, rec.Frequency)
	assert.True(t, sent.Equal(rec.LastReminder))
}

func TestFileStoreReadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	legacy := `{"12345": {"tasks": [{"name": "Report", "category": "Work", "due_date": "2025-01-15"}],
		"categories": ["Work"], "reminder_frequency": "1week", "last_reminder": "2025-01-03T09:00:00.000001"}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	doc, err := fs.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, doc, int64(12345))
	assert.Equal(t, tasks.FrequencyWeekly, doc[12345].Frequency)
	assert.Len(t, doc[12345].Tasks, 1)
}
