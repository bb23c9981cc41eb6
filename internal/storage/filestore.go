package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type FileStore struct {
	Path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load() (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	processed := make(map[string]int64)
	bs, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return processed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read offsets: %w", err)
	}
	if len(bs) == 0 {
		return processed, nil
	}
	if err := json.Unmarshal(bs, &processed); err != nil {
		return nil, fmt.Errorf("decode offsets: %w", err)
	}
	return processed, nil
}

// Save пишет во временный файл и переименовывает его поверх основного.
func (f *FileStore) Save(data map[string]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	bs, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode offsets: %w", err)
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create offsets dir: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		return fmt.Errorf("write offsets: %w", err)
	}
	// Удаляем старый файл, чтобы Rename не ошибся (актуально для Windows)
	_ = os.Remove(f.Path)
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("rename offsets: %w", err)
	}
	return nil
}
