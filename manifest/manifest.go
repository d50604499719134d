// Package manifest handles lotus.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the project file looked up by Load and FindAndLoad.
const FileName = "lotus.toml"

// Manifest represents a lotus.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Source       Source                `toml:"source"`
	Build        Build                 `toml:"build"`
	Dependencies map[string]Dependency `toml:"dependencies"`

	// Dir is the directory containing the lotus.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Package string `toml:"package"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// Build configures the emitted module.
type Build struct {
	Output      string `toml:"output"`
	SymbolMap   string `toml:"symbol-map"`
	MemoryPages int    `toml:"memory-pages"`
}

// Dependency is a project whose sources are compiled alongside this one.
type Dependency struct {
	Path    string `toml:"path"`
	Package string `toml:"package"`
}

// Load parses a lotus.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Build.Output == "" {
		m.Build.Output = "out.wat"
	}
	if m.Build.MemoryPages <= 0 {
		m.Build.MemoryPages = 1
	}
	if m.Project.Package != "" && !ValidPackageName(m.Project.Package) {
		return nil, fmt.Errorf("%s: invalid package name %q", path, m.Project.Package)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a lotus.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// PackageName is the package every source file of the project belongs to:
// the configured one, or one derived from the project name.
func (m *Manifest) PackageName() string {
	if m.Project.Package != "" {
		return m.Project.Package
	}
	return ToPackageName(m.Project.Name)
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// OutputPath returns the absolute path of the emitted module.
func (m *Manifest) OutputPath() string {
	return m.path(m.Build.Output)
}

// SymbolMapPath returns the absolute path of the symbol map, or "" when
// none is configured.
func (m *Manifest) SymbolMapPath() string {
	if m.Build.SymbolMap == "" {
		return ""
	}
	return m.path(m.Build.SymbolMap)
}

func (m *Manifest) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
