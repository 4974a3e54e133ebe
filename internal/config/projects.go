package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"devdash/internal/models"
	"devdash/internal/ports"
)

var ErrEntryNotFound = errors.New("config entry not found")

// File is the project configuration document. JSON documents parse too.
type File struct {
	Version    string            `yaml:"version" json:"version"`
	ScanPaths  []string          `yaml:"scanPaths" json:"scanPaths"`
	PortRanges map[string][2]int `yaml:"portRanges" json:"portRanges"`
	Projects   []models.Project  `yaml:"projects" json:"projects"`
}

// LoadProjects reads and validates the project configuration at path.
func LoadProjects(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProjects(data)
}

func ParseProjects(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse project config: %w", err)
	}

	for i, dir := range f.ScanPaths {
		f.ScanPaths[i] = expandHome(dir)
	}

	seen := make(map[string]bool, len(f.Projects))
	for i := range f.Projects {
		p := &f.Projects[i]
		if p.ID == "" {
			return nil, fmt.Errorf("project %d: missing id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("project %s: duplicate id", p.ID)
		}
		seen[p.ID] = true
		if p.Name == "" {
			p.Name = p.ID
		}
		p.Path = expandHome(p.Path)

		names := make(map[string]bool, len(p.Processes))
		for _, proc := range p.Processes {
			if proc.Name == "" || proc.Command == "" {
				return nil, fmt.Errorf("project %s: process needs a name and a command", p.ID)
			}
			if names[proc.Name] {
				return nil, fmt.Errorf("project %s: duplicate process %s", p.ID, proc.Name)
			}
			names[proc.Name] = true
		}
	}

	for category, r := range f.PortRanges {
		if r[0] <= 0 || r[1] > 65535 || r[0] > r[1] {
			return nil, fmt.Errorf("port range %s: invalid bounds %d-%d", category, r[0], r[1])
		}
	}
	return &f, nil
}

// Ranges returns the configured port ranges layered over the defaults.
func (f *File) Ranges() map[string]ports.Range {
	ranges := ports.DefaultRanges()
	for category, r := range f.PortRanges {
		ranges[category] = ports.Range{Start: r[0], End: r[1]}
	}
	return ranges
}

func (f *File) Project(id string) (models.Project, error) {
	for _, p := range f.Projects {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Project{}, fmt.Errorf("%w: project %s", ErrEntryNotFound, id)
}

// Lookup finds a process definition together with its project.
func (f *File) Lookup(projectID, processName string) (models.Project, models.ProcessSpec, error) {
	project, err := f.Project(projectID)
	if err != nil {
		return models.Project{}, models.ProcessSpec{}, err
	}
	for _, spec := range project.Processes {
		if spec.Name == processName {
			return project, spec, nil
		}
	}
	return models.Project{}, models.ProcessSpec{}, fmt.Errorf("%w: process %s in project %s", ErrEntryNotFound, processName, projectID)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
