package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// File is a Memory store that rewrites a JSON snapshot on every commit.
type File struct {
	*Memory
	path string
}

type fileSnapshot struct {
	Pools     map[common.Address]*poolState `json:"pools"`
	UpdatedAt string                        `json:"updated_at"`
}

// OpenFile loads the snapshot at path, if any, and returns a store that keeps
// it current.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	var snap fileSnapshot
	if _, err := ReadJSONFile(path, &snap); err != nil {
		return nil, err
	}

	mem := NewMemory()
	mem.load(snap.Pools)
	f := &File{Memory: mem, path: path}
	mem.persist = f.write
	return f, nil
}

func (f *File) write(pools map[common.Address]*poolState) error {
	return WriteJSONFile(f.path, fileSnapshot{
		Pools:     pools,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// ReadJSONFile decodes path into v. A missing file is not an error and
// reports false.
func ReadJSONFile(path string, v interface{}) (bool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if stat.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// WriteJSONFile replaces path with the JSON encoding of v via a temp file and
// rename.
func WriteJSONFile(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
