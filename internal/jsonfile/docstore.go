package jsonfile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/onlygantt/ganttd/internal/domain/document"
)

// DocumentStore implements document.Store on a directory of
// <department>.json files with single-generation .bak backups.
type DocumentStore struct {
	dir       string
	enableBak bool
	logger    *slog.Logger
}

// NewDocumentStore creates the backing directory if needed.
func NewDocumentStore(dir string, enableBak bool, logger *slog.Logger) (*DocumentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating document dir: %w", err)
	}
	return &DocumentStore{dir: dir, enableBak: enableBak, logger: logger}, nil
}

// Read loads a department document, distinguishing a missing file from one
// that is present but unparseable.
func (s *DocumentStore) Read(department string) (*document.Document, error) {
	path, err := s.path(department)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, document.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("corrupt department document",
			"department", department, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %s", document.ErrCorruptData, department)
	}
	return &doc, nil
}

// Write persists the document atomically, keeping the previous version in
// the .bak file when backups are enabled.
func (s *DocumentStore) Write(department string, doc *document.Document) error {
	path, err := s.path(department)
	if err != nil {
		return err
	}
	return writeJSONAtomic(path, doc, s.enableBak)
}

// Exists reports whether a department document is present.
func (s *DocumentStore) Exists(department string) (bool, error) {
	path, err := s.path(department)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns the department names with a live document file.
func (s *DocumentStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading document dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isDocumentFile(name) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	return names, nil
}

// Delete removes the document and its backup.
func (s *DocumentStore) Delete(department string) error {
	path, err := s.path(department)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return document.ErrNotFound
		}
		return fmt.Errorf("removing %s: %w", path, err)
	}
	if err := os.Remove(path + ".bak"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing backup: %w", err)
	}
	return nil
}

func (s *DocumentStore) path(department string) (string, error) {
	name, err := document.NormalizeName(department)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name+".json"), nil
}

func isDocumentFile(name string) bool {
	return strings.HasSuffix(name, ".json") &&
		!strings.HasSuffix(name, ".bak") &&
		!strings.HasSuffix(name, ".tmp")
}
