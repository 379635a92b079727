package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationFilesAndCount(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_add_index.up.sql",
		"000001_create_task_store.up.sql",
		"000001_create_task_store.down.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.up.sql"), 0o755))

	files := listMigrationFiles(dir)
	assert.Equal(t, []string{"000001_create_task_store.up.sql", "000002_add_index.up.sql"}, files)

	assert.Equal(t, 2, countApplied(files, 0, 2))
	assert.Equal(t, 1, countApplied(files, 1, 2))
	assert.Equal(t, 0, countApplied(files, 2, 2))
}

func TestConfigURLs(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "pw", Name: "tasks"}
	assert.Equal(t, "postgres://bot:pw@db:5432/tasks?sslmode=disable", cfg.URL())
	assert.Equal(t, "user=bot password=pw host=db port=5432 dbname=tasks sslmode=disable", cfg.DSN())

	abs, err := resolveMigrationsDir("/srv/migrations")
	require.NoError(t, err)
	assert.Equal(t, "/srv/migrations", abs)
}
