package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"leadgen/models"
)

// FileStore persists the lead collection as a JSON array at a fixed path,
// rewritten wholesale on every save. An absent, empty or corrupt file is
// treated as an empty collection so the service stays available.
type FileStore struct {
	Path   string
	Logger *log.Logger

	mu sync.Mutex
}

func NewFileStore(path string, logger *log.Logger) *FileStore {
	return &FileStore{Path: path, Logger: logger}
}

func (fs *FileStore) LoadAll() ([]models.Lead, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Lead{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []models.Lead{}, nil
	}

	var leads []models.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		fs.Logger.Printf("Corrupt leads file at %s, treating as empty: %v", fs.Path, err)
		return []models.Lead{}, nil
	}
	return leads, nil
}

func (fs *FileStore) SaveAll(leads []models.Lead) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if leads == nil {
		leads = []models.Lead{}
	}
	data, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fs.Path), 0o755); err != nil {
		return err
	}

	// Write-then-rename so a crash mid-save never leaves a truncated feed.
	tmp := fs.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fs.Path)
}
