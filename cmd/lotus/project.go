package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/lotus/manifest"
	"github.com/chazu/lotus/pipeline"
)

// project is a loaded manifest with its dependencies resolved.
type project struct {
	manifest *manifest.Manifest
	deps     []manifest.ResolvedDep
}

// loadProject finds the manifest governing dir and resolves its
// dependencies.
func loadProject(dir string) (*project, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("no %s found in %s or its parents", manifest.FileName, dir)
	}
	deps, err := manifest.NewResolver(m).Resolve()
	if err != nil {
		return nil, err
	}
	log.Debugf("project %s: package %s, %d dependencies", m.Project.Name, m.PackageName(), len(deps))
	return &project{manifest: m, deps: deps}, nil
}

// session loads the sources of every dependency, in resolution order, and
// then the project's own.
func (p *project) session() (*pipeline.Session, error) {
	s := pipeline.New(nil)
	for _, d := range p.deps {
		for _, dir := range d.SourceDirPaths() {
			if err := p.load(s, dir, d.Package); err != nil {
				s.Close()
				return nil, err
			}
		}
	}
	for _, dir := range p.manifest.SourceDirPaths() {
		if err := p.load(s, dir, p.manifest.PackageName()); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// load adds the sources under dir. Files are named relative to the
// project directory.
func (p *project) load(s *pipeline.Session, dir, pkg string) error {
	label, err := filepath.Rel(p.manifest.Dir, dir)
	if err != nil {
		label = dir
	}
	return s.LoadTree(os.DirFS(dir), filepath.ToSlash(label), pkg)
}

// checkEntry verifies that the configured entry point is one of the
// exported functions of the project package.
func (p *project) checkEntry(s *pipeline.Session) error {
	entry := p.manifest.Source.Entry
	if entry == "" {
		return nil
	}
	for _, id := range s.Check().Entries {
		f := s.Registry.Func(id)
		if f.Name == entry && f.Loc.Package == p.manifest.PackageName() {
			return nil
		}
	}
	return fmt.Errorf("entry %q is not an exported function of package %s", entry, p.manifest.PackageName())
}
