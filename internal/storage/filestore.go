package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// processedDoc — содержимое файла состояния
type processedDoc struct {
	UpdatedAt time.Time        `json:"updatedAt"`
	Dumps     map[string]int64 `json:"dumps"`
}

// FileStore хранит отметки об обработанных дампах в JSON-файле.
// Запись идёт во временный файл рядом и заменяет старый через Rename.
type FileStore struct {
	Path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, now: time.Now}
}

// Load возвращает пустую карту, если файла ещё нет
func (f *FileStore) Load() (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bs, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return make(map[string]int64), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	var doc processedDoc
	if err := json.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	if doc.Dumps == nil {
		doc.Dumps = make(map[string]int64)
	}
	return doc.Dumps, nil
}

// Save перезаписывает файл целиком
func (f *FileStore) Save(data map[string]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	bs, err := json.MarshalIndent(processedDoc{UpdatedAt: f.now().UTC(), Dumps: data}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", f.Path, err)
	}
	// после успешного Rename файла уже нет, Remove вернёт ошибку, её не смотрим
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(bs); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace %s: %w", f.Path, err)
	}
	return nil
}
