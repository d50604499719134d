package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrCycle is returned when dependencies depend on each other.
var ErrCycle = errors.New("dependency cycle")

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Package   string    // package its sources belong to
	Manifest  *Manifest // the dependency's own manifest (may be nil)
}

// SourceDirPaths returns the source directories of the dependency: the
// ones its manifest configures, or its src directory.
func (d ResolvedDep) SourceDirPaths() []string {
	if d.Manifest != nil {
		return d.Manifest.SourceDirPaths()
	}
	return []string{filepath.Join(d.LocalPath, "src")}
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve resolves all dependencies and returns them in load order
// (topologically sorted: dependencies before dependents, then by name).
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	resolved := make(map[string]*ResolvedDep)
	visiting := make(map[string]bool)
	return r.resolveAll(r.manifest, resolved, visiting)
}

// resolveAll resolves the dependencies of m recursively.
func (r *Resolver) resolveAll(m *Manifest, resolved map[string]*ResolvedDep, visiting map[string]bool) ([]ResolvedDep, error) {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		if visiting[name] {
			return nil, fmt.Errorf("%w through %s", ErrCycle, name)
		}
		if _, ok := resolved[name]; ok {
			continue
		}

		rd, err := resolveOne(m, name, m.Dependencies[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}

		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			visiting[name] = true
			transitive, err := r.resolveAll(rd.Manifest, resolved, visiting)
			delete(visiting, name)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}

		resolved[name] = rd
		order = append(order, *rd)
	}
	return order, nil
}

// resolvePackage determines the package of a dependency:
//  1. Consumer override (dep.Package from TOML)
//  2. Producer manifest (depManifest.Project.Package)
//  3. Fallback derived from the dependency name
func resolvePackage(name string, dep Dependency, depManifest *Manifest) (string, error) {
	var pkg string
	switch {
	case dep.Package != "":
		pkg = dep.Package
	case depManifest != nil && depManifest.Project.Package != "":
		pkg = depManifest.Project.Package
	default:
		pkg = ToPackageName(name)
	}

	if !ValidPackageName(pkg) {
		return "", fmt.Errorf("dependency %q resolves to invalid package name %q", name, pkg)
	}
	if IsReservedPackage(pkg) {
		return "", fmt.Errorf("dependency %q resolves to reserved package %q; add package = \"...\" override in [dependencies]", name, pkg)
	}
	return pkg, nil
}

// resolveOne resolves a single dependency declared by m.
func resolveOne(m *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path == "" {
		return nil, fmt.Errorf("dependency %q has no path specified", name)
	}
	localPath := dep.Path
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(m.Dir, localPath)
	}
	localPath, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
	}
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
	}

	var depManifest *Manifest
	if _, err := os.Stat(filepath.Join(localPath, FileName)); err == nil {
		if depManifest, err = Load(localPath); err != nil {
			return nil, err
		}
	}

	pkg, err := resolvePackage(name, dep, depManifest)
	if err != nil {
		return nil, err
	}
	return &ResolvedDep{
		Name:      name,
		LocalPath: localPath,
		Package:   pkg,
		Manifest:  depManifest,
	}, nil
}
