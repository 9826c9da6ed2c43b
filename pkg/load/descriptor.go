// Package load orchestrates loading a fleet of IOCs: it interprets startup
// scripts in parallel with bounded concurrency, caches results by content
// hash, and merges the per-IOC outcomes into one cross-IOC view.
package load

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Descriptor names one IOC and how to load it. Batches of descriptors are
// usually kept in a YAML file, one document holding a list.
type Descriptor struct {
	// Name identifies the IOC; it becomes the Owner of every record the
	// IOC loads. Defaults to the script path when empty.
	Name string `yaml:"name"`
	// Script is the startup script path.
	Script string `yaml:"script"`
	// Macros are comma-separated pairs seeding the shell macro context.
	Macros string `yaml:"macros,omitempty"`
	// WorkingDirectory is the initial simulated working directory,
	// defaulting to the script's directory.
	WorkingDirectory string `yaml:"cwd,omitempty"`
	// StandinDirectories rewrites absolute path prefixes before file
	// access.
	StandinDirectories map[string]string `yaml:"standin_dirs,omitempty"`
}

// ReadDescriptors reads a YAML list of IOC descriptors.
func ReadDescriptors(path string) ([]*Descriptor, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var descs []*Descriptor
	if err := yaml.Unmarshal(blob, &descs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, d := range descs {
		if d.Script == "" {
			return nil, fmt.Errorf("%s: descriptor %q has no script", path, d.Name)
		}
		if d.Name == "" {
			d.Name = d.Script
		}
	}
	return descs, nil
}
