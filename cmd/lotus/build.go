package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/emit"
	"github.com/chazu/lotus/pipeline"
	"github.com/chazu/lotus/server"
)

// handleBuildCommand processes the `lotus build` subcommand.
// Usage:
//
//	lotus build                    # output named in lotus.toml
//	lotus build -o game.wat        # custom output
//	lotus build -symbols game.lsym # also write the symbol map
func handleBuildCommand(dir string, args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	output := fs.String("o", "", "Output path for the module text")
	symbols := fs.String("symbols", "", "Output path for the CBOR symbol map")
	pages := fs.Int("pages", 0, "Initial linear memory pages")
	fs.Parse(args)

	p, err := loadProject(dir)
	if err != nil {
		fatalf("%v", err)
	}
	m := p.manifest

	outPath := m.OutputPath()
	if *output != "" {
		outPath = *output
	}
	symPath := m.SymbolMapPath()
	if *symbols != "" {
		symPath = *symbols
	}
	opts := emit.Options{MemoryPages: m.Build.MemoryPages}
	if *pages > 0 {
		opts.MemoryPages = *pages
	}

	s, err := p.session()
	if err != nil {
		fatalf("%v", err)
	}
	defer s.Close()

	mod, err := s.Build(opts)
	var derr *diag.Error
	if errors.As(err, &derr) {
		fmt.Fprint(os.Stderr, pipeline.Report(derr.Diagnostics))
		s.Close()
		os.Exit(1)
	}
	if err != nil {
		fatalf("%v", err)
	}
	if err := p.checkEntry(s); err != nil {
		fatalf("%v", err)
	}

	if err := writeFile(outPath, []byte(mod.String())); err != nil {
		fatalf("%v", err)
	}
	log.Infof("wrote %s", outPath)

	if symPath != "" {
		data, err := mod.Symbols.Marshal()
		if err != nil {
			fatalf("encoding symbol map: %v", err)
		}
		if err := writeFile(symPath, data); err != nil {
			fatalf("%v", err)
		}
		log.Infof("wrote %s (%d functions)", symPath, len(mod.Symbols.Funcs))
	}
}

// handleCheckCommand processes the `lotus check` subcommand: every
// diagnostic is printed and the exit status reports whether any was found.
// Functions nothing refers to are logged as warnings.
func handleCheckCommand(dir string, args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.Parse(args)

	p, err := loadProject(dir)
	if err != nil {
		fatalf("%v", err)
	}
	s, err := p.session()
	if err != nil {
		fatalf("%v", err)
	}
	defer s.Close()

	s.Check()
	if s.Failed() {
		fmt.Fprint(os.Stderr, pipeline.Report(s.Diagnostics.Sorted()))
		s.Close()
		os.Exit(1)
	}
	if err := p.checkEntry(s); err != nil {
		fatalf("%v", err)
	}
	for _, f := range s.Unused() {
		log.Warningf("%s: function %s is never used", f.Loc.Pos, f.Name)
	}
	log.Infof("%d file(s) checked", len(s.Files()))
}

// handleLSPCommand serves the language server on stdio. Files are
// assigned to packages by the nearest manifest when one exists.
func handleLSPCommand(dir string) {
	pkg := server.DirPackage
	if p, err := loadProject(dir); err == nil {
		pkg = packageOf(p)
	} else {
		log.Infof("no project: %s", err.Error())
	}

	commands := server.NewCommands(server.NewFileCache(), pkg)
	if err := server.NewLSP(commands).Run(); err != nil {
		fatalf("language server: %v", err)
	}
}

// packageOf maps files under a source directory of the project or one of
// its dependencies to that package.
func packageOf(p *project) server.PackageFunc {
	roots := make(map[string]string)
	for _, d := range p.deps {
		for _, dir := range d.SourceDirPaths() {
			roots[dir] = d.Package
		}
	}
	for _, dir := range p.manifest.SourceDirPaths() {
		roots[dir] = p.manifest.PackageName()
	}
	return func(path string) string {
		abs, err := filepath.Abs(path)
		if err != nil {
			return server.DirPackage(path)
		}
		for d := filepath.Dir(abs); ; d = filepath.Dir(d) {
			if pkg, ok := roots[d]; ok {
				return pkg
			}
			if d == filepath.Dir(d) {
				return server.DirPackage(path)
			}
		}
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
