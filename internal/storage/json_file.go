package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/m3rciful/taskbot/internal/tasks"
)

// DefaultPath is used when storage.path is empty.
const DefaultPath = "tasks.json"

// FileStore keeps the task document in a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a file backend rooted at path, creating its directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Name identifies the backend in logs.
func (f *FileStore) Name() string { return "file" }

// Path returns the backing file location.
func (f *FileStore) Path() string { return f.path }

// Load reads the document. A missing or empty file yields an empty document.
func (f *FileStore) Load(context.Context) (tasks.Document, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return tasks.Document{}, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return tasks.Document{}, nil
	}

	var doc tasks.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if doc == nil {
		doc = tasks.Document{}
	}
	return doc, nil
}

// Save rewrites the whole file. The document is written to a temp file in
// the same directory and renamed over the target.
func (f *FileStore) Save(_ context.Context, doc tasks.Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}
