// Package manifest loads sylt.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Filename is the manifest file name looked for in project roots.
const Filename = "sylt.toml"

// Manifest is a parsed sylt.toml.
type Manifest struct {
	Project Project `toml:"project"`
	Build   Build   `toml:"build"`

	// Dir is the directory the manifest was loaded from.
	Dir string `toml:"-"`
}

// Project identifies the program.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// Build configures the compile pipeline.
type Build struct {
	Typecheck *bool  `toml:"typecheck"`
	CacheDir  string `toml:"cache_dir"`
}

// Load reads a manifest from an explicit path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m.Dir = filepath.Dir(abs)

	if m.Project.Entry == "" {
		m.Project.Entry = "main.sy"
	}
	if m.Build.CacheDir == "" {
		m.Build.CacheDir = ".sylt-cache"
	}
	return &m, nil
}

// FindAndLoad walks up from startDir looking for a sylt.toml.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		candidate := filepath.Join(dir, Filename)
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("no %s found in %s or any parent directory", Filename, startDir)
		}
		dir = parent
	}
}

// EntryPath returns the entry file resolved against the manifest's
// directory.
func (m *Manifest) EntryPath() string {
	if filepath.IsAbs(m.Project.Entry) {
		return m.Project.Entry
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

// CachePath returns the cache directory resolved against the
// manifest's directory.
func (m *Manifest) CachePath() string {
	if filepath.IsAbs(m.Build.CacheDir) {
		return m.Build.CacheDir
	}
	return filepath.Join(m.Dir, m.Build.CacheDir)
}

// TypecheckEnabled reports whether the pipeline should typecheck
// before running. Defaults to true.
func (m *Manifest) TypecheckEnabled() bool {
	if m.Build.Typecheck == nil {
		return true
	}
	return *m.Build.Typecheck
}
