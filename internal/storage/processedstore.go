package storage

import (
	"fmt"

	"TrinoEventPump/internal/config"
)

// ProcessedStore хранит смещения прочитанных файлов событий: путь -> байт.
type ProcessedStore interface {
	Load() (map[string]int64, error)
	Save(data map[string]int64) error
}

// New выбирает хранилище по cfg.ProcessedStorage.
func New(cfg *config.Config) (ProcessedStore, error) {
	switch cfg.ProcessedStorage {
	case "file":
		return NewFileStore(cfg.ProcessedFile), nil
	case "redis":
		return NewRedisStore(&cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown processed storage %q", cfg.ProcessedStorage)
	}
}
