package models

// ProcessSpec is a process definition inside a project.
type ProcessSpec struct {
	Name      string            `yaml:"name" json:"name"`
	Command   string            `yaml:"command" json:"command"`
	Port      int               `yaml:"port" json:"port"`
	PortArg   string            `yaml:"portArg,omitempty" json:"portArg,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	DependsOn []string          `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
}

// Project groups the processes that run out of one working tree.
type Project struct {
	ID        string        `yaml:"id" json:"id"`
	Name      string        `yaml:"name" json:"name"`
	Path      string        `yaml:"path" json:"path"`
	Type      string        `yaml:"type" json:"type"`
	Processes []ProcessSpec `yaml:"processes" json:"processes"`
}
