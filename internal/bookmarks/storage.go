// Package bookmarks stores alias → path bookmarks and implements the
// "<name> bookmark ..." command family.
package bookmarks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/normanking/zira/internal/logging"
)

const (
	fileMode        = 0o600
	dirMode         = 0o700
	tempFilePattern = "._bookmarks_tmp_*.json"
	backupStamp     = "2006-01-02T15-04-05"
)

// Storage persists bookmarks as a JSON object on disk.
type Storage struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
	log  *logging.Logger
}

// NewStorage prepares path for reading and writing. The parent directory is
// created with owner-only permissions.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("bookmark file path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve bookmark path: %w", err)
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create bookmark directory: %w", err)
	}
	if err := os.Chmod(dir, dirMode); err != nil {
		return nil, fmt.Errorf("restrict bookmark directory: %w", err)
	}

	return &Storage{
		path: abs,
		now:  time.Now,
		log:  logging.Global().WithComponent("Bookmarks"),
	}, nil
}

// Path returns the absolute bookmark file path.
func (s *Storage) Path() string {
	return s.path
}

// Load returns all bookmarks. A missing file is empty. A file that is not
// valid JSON is moved aside to "<path>.<timestamp>.bak" and loading starts over.
func (s *Storage) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the stored bookmarks.
func (s *Storage) Save(bookmarks map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(bookmarks)
}

// Update loads the bookmarks, applies fn and saves the result while holding
// the lock. Nothing is written when fn returns an error.
func (s *Storage) Update(fn func(bookmarks map[string]string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookmarks, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(bookmarks); err != nil {
		return err
	}
	return s.save(bookmarks)
}

func (s *Storage) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bookmarks: %w", err)
	}

	bookmarks := map[string]string{}
	if err := json.Unmarshal(data, &bookmarks); err != nil {
		backup := fmt.Sprintf("%s.%s.bak", s.path, s.now().Format(backupStamp))
		s.log.Warn("could not decode %s, renaming to %s and starting empty", s.path, backup)
		if err := os.Rename(s.path, backup); err != nil {
			s.log.Error("failed to back up corrupt bookmarks: %v", err)
		} else {
			_ = os.Chmod(backup, fileMode)
		}
		return map[string]string{}, nil
	}
	return bookmarks, nil
}

func (s *Storage) save(bookmarks map[string]string) error {
	data, err := json.MarshalIndent(bookmarks, "", "    ")
	if err != nil {
		return fmt.Errorf("encode bookmarks: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace bookmarks: %w", err)
	}
	cleanup = false

	if err := os.Chmod(s.path, fileMode); err != nil {
		s.log.Warn("could not set permissions on %s: %v", s.path, err)
	}
	return nil
}
