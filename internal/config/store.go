package config

import (
	"os"
	"sync"

	"devdash/internal/models"
	"devdash/internal/ports"
)

// Store holds the current project configuration and swaps it on Reload.
type Store struct {
	path string

	mu      sync.RWMutex
	file    *File
	reloads []func(*File)
}

// NewStore loads path. A missing file yields an empty configuration so the
// dashboard can start before one is written.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	f, err := LoadProjects(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		f = &File{}
	}
	s.file = f
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Projects() []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Project(nil), s.file.Projects...)
}

func (s *Store) Project(id string) (models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.Project(id)
}

func (s *Store) Lookup(projectID, processName string) (models.Project, models.ProcessSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.Lookup(projectID, processName)
}

func (s *Store) PortRanges() map[string]ports.Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.Ranges()
}

// OnReload registers fn to run after every successful reload.
func (s *Store) OnReload(fn func(*File)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads = append(s.reloads, fn)
}

// Reload re-reads the file. On error the previous configuration stays.
func (s *Store) Reload() error {
	f, err := LoadProjects(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.file = f
	callbacks := append([]func(*File){}, s.reloads...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(f)
	}
	return nil
}
