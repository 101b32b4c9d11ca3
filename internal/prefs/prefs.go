// Package prefs persists the offline mode flag and last sync time across
// restarts, per authenticated identity, in a small YAML file.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Flags are the cross-session values for one identity
type Flags struct {
	OfflineMode bool       `yaml:"offline_mode"`
	LastSync    *time.Time `yaml:"last_sync,omitempty"`
}

type document struct {
	Identities map[string]Flags `yaml:"identities"`
}

// FileStore keeps Flags for every identity in one YAML document
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path; the file is created on first save
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the flags saved for identity, or zero Flags when there are none
func (s *FileStore) Load(identity string) (Flags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return Flags{}, err
	}
	return doc.Identities[identity], nil
}

// Save replaces the flags for identity
func (s *FileStore) Save(identity string, flags Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if flags.LastSync != nil {
		utc := flags.LastSync.UTC()
		flags.LastSync = &utc
	}
	doc.Identities[identity] = flags
	return s.write(doc)
}

// Clear removes the flags for identity
func (s *FileStore) Clear(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc.Identities[identity]; !ok {
		return nil
	}
	delete(doc.Identities, identity)
	return s.write(doc)
}

func (s *FileStore) read() (document, error) {
	doc := document{Identities: map[string]Flags{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse preferences %s: %w", s.path, err)
	}
	if doc.Identities == nil {
		doc.Identities = map[string]Flags{}
	}
	return doc, nil
}

func (s *FileStore) write(doc document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create preferences directory: %w", err)
		}
	}

	// write then rename so a crash never leaves a truncated file
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}
