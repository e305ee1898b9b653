package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore keeps the state as a JSON document on disk.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the state file. A missing, truncated or otherwise unparseable
// file yields an empty state and no error.
func (f *FileStore) Load(_ context.Context) (*DaemonState, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no state file found, starting fresh", "path", f.Path)
		return New(), nil
	}
	if err != nil {
		slog.Error("read state file, starting fresh", "path", f.Path, "err", err)
		return New(), nil
	}
	var st DaemonState
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Error("corrupt state file, starting fresh", "path", f.Path, "err", err)
		return New(), nil
	}
	return st.normalize(), nil
}

// Save writes the state to a temp file in the same directory and renames it
// over Path, so readers never see a partial document.
func (f *FileStore) Save(_ context.Context, st *DaemonState) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }

// Decode parses a persisted document, defaulting missing fields. Used by the
// database stores, which keep the same document in a single row.
func Decode(data []byte) (*DaemonState, error) {
	var st DaemonState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return st.normalize(), nil
}
