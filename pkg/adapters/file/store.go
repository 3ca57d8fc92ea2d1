package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aretw0/tourguide/pkg/domain"
)

var validTabID = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Store implements ports.SessionStore using the local filesystem.
// It stores one JSON record per tab in a configured directory.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".tourguide/sessions".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".tourguide", "sessions")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(tabID string) (string, error) {
	if tabID == "" {
		return "", fmt.Errorf("tabID cannot be empty")
	}
	if !validTabID.MatchString(tabID) || tabID == "." || tabID == ".." {
		return "", fmt.Errorf("invalid tabID: %q", tabID)
	}
	return filepath.Join(s.BasePath, tabID+".json"), nil
}

// Save persists the session record atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, tabID string, session *domain.Session) error {
	destPath, err := s.path(tabID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	data, err := domain.MarshalSession(session)
	if err != nil {
		return err
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+tabID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing session file for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to session file: %w", err)
	}
	return nil
}

// Load retrieves the session record of a tab.
func (s *Store) Load(ctx context.Context, tabID string) (*domain.Session, error) {
	filePath, err := s.path(tabID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	return domain.UnmarshalSession(data)
}

// Delete removes the session file.
func (s *Store) Delete(ctx context.Context, tabID string) error {
	filePath, err := s.path(tabID)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// List returns the tabs with a stored session.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var tabs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		tabs = append(tabs, name[:len(name)-len(".json")])
	}
	return tabs, nil
}
