package license

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"licenseadmin/internal/config"
	"licenseadmin/pkg/contracts/domain"
)

// HistoryStore is the local log of generated licenses, kept as a JSON
// array on disk. It is a convenience record; the authority stays the
// source of truth.
type HistoryStore struct {
	path string
	mu   sync.Mutex
}

// NewHistoryStore returns a store backed by the file at path.
func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{path: path}
}

// Path returns the backing file path.
func (h *HistoryStore) Path() string {
	return h.path
}

// List returns all records, oldest first. A missing file is an empty history.
func (h *HistoryStore) List() ([]domain.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load()
}

// Append adds rec to the end of the history.
func (h *HistoryStore) Append(rec domain.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.load()
	if err != nil {
		return err
	}
	records = append(records, rec)
	return h.save(records)
}

func (h *HistoryStore) load() ([]domain.HistoryRecord, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.HistoryRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(data) == 0 {
		return []domain.HistoryRecord{}, nil
	}

	var records []domain.HistoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("history file %s is corrupt: %w", h.path, err)
	}
	return records, nil
}

func (h *HistoryStore) save(records []domain.HistoryRecord) error {
	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, config.DataDirMode); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Chmod(config.HistoryFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}

	if err := os.Rename(tmpName, h.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
