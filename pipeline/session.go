// Package pipeline runs one compilation: it owns every table the compiler
// builds, feeds source files through parsing, semantic analysis and
// emission, and tears the tables down again.
//
// A Session is single threaded. Callers that serve concurrent requests,
// like the language server, give each request its own session.
package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-set/v3"
	"github.com/tliron/commonlog"

	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/emit"
	"github.com/chazu/lotus/compiler/instance"
	"github.com/chazu/lotus/compiler/sema"
)

// SourceExt is the extension of Lotus source files.
const SourceExt = ".lt"

var log = commonlog.GetLogger("lotus.pipeline")

// ErrChecked is returned when sources are added after the session ran its
// semantic passes.
var ErrChecked = errors.New("session already checked")

// Session is one compilation.
type Session struct {
	ID          uuid.UUID
	Registry    *blueprint.Registry
	Diagnostics *diag.List

	fsys    fs.FS
	files   []*compiler.File
	sources map[string]string
	parsed  bool // no parse errors so far
	result  *sema.Result
	gen     *instance.Generator
}

// New creates a session that loads files from fsys. fsys may be nil when
// every source is added with AddSource.
func New(fsys fs.FS) *Session {
	diags := &diag.List{}
	s := &Session{
		ID:          uuid.New(),
		Registry:    blueprint.New(diags),
		Diagnostics: diags,
		fsys:        fsys,
		sources:     make(map[string]string),
		parsed:      true,
	}
	log.Debugf("session %s: opened", s.ID)
	return s
}

// AddSource parses src as file path of package pkg. Parse errors are
// recorded as diagnostics; the file is kept so later passes still see the
// declarations that did parse.
func (s *Session) AddSource(filePath, pkg, src string) (*compiler.File, error) {
	if s.result != nil {
		return nil, ErrChecked
	}
	f, errs := compiler.ParseFile(filePath, pkg, src)
	if len(errs) > 0 {
		s.parsed = false
		s.Diagnostics.Append(errs...)
	}
	s.files = append(s.files, f)
	s.sources[filePath] = src
	return f, nil
}

// LoadFile reads and parses one file from the session's file system.
func (s *Session) LoadFile(filePath, pkg string) error {
	if s.fsys == nil {
		return fmt.Errorf("load %s: session has no file system", filePath)
	}
	data, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return fmt.Errorf("load %s: %w", filePath, err)
	}
	_, err = s.AddSource(filePath, pkg, string(data))
	return err
}

// LoadDir loads every source file under dir, in lexical path order.
func (s *Session) LoadDir(dir, pkg string) error {
	if s.fsys == nil {
		return fmt.Errorf("load %s: session has no file system", dir)
	}
	return s.load(s.fsys, dir, "", pkg)
}

// LoadTree loads every source file of fsys. Files are named by their path
// in fsys joined to prefix, so diagnostics can point outside the session's
// own file system.
func (s *Session) LoadTree(fsys fs.FS, prefix, pkg string) error {
	return s.load(fsys, ".", prefix, pkg)
}

func (s *Session) load(fsys fs.FS, dir, prefix, pkg string) error {
	var paths []string
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && path.Ext(p) == SourceExt {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", path.Join(prefix, dir), err)
	}
	sort.Strings(paths)
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("load %s: %w", path.Join(prefix, p), err)
		}
		if _, err := s.AddSource(path.Join(prefix, p), pkg, string(data)); err != nil {
			return err
		}
	}
	log.Debugf("session %s: loaded %d file(s) from %s", s.ID, len(paths), path.Join(prefix, dir))
	return nil
}

// Files returns the parsed files in the order they were added.
func (s *Session) Files() []*compiler.File {
	return s.files
}

// Source returns the text a file was parsed from.
func (s *Session) Source(filePath string) (string, bool) {
	src, ok := s.sources[filePath]
	return src, ok
}

// Check runs the declaration and body passes once. Later calls return the
// first result. After a parse error the passes are skipped and the result
// is empty, so only the parse diagnostics are reported.
func (s *Session) Check() *sema.Result {
	if s.result == nil {
		if !s.parsed {
			s.result = &sema.Result{Reachable: set.New[int](0)}
			log.Debugf("session %s: parse errors, semantic passes skipped", s.ID)
			return s.result
		}
		s.result = sema.Check(s.Registry, s.Diagnostics, s.files)
		log.Debugf("session %s: checked %d file(s), %d diagnostic(s)", s.ID, len(s.files), s.Diagnostics.Len())
	}
	return s.result
}

// Unused returns the free functions declared in source that no body refers
// to and that are not exported, in declaration order.
func (s *Session) Unused() []*blueprint.FunctionBlueprint {
	res := s.Check()
	var out []*blueprint.FunctionBlueprint
	for _, f := range s.Registry.Funcs {
		if f.Loc.Internal || f.Exported || f.Autogenerated || f.Closure != nil {
			continue
		}
		if f.Owner != blueprint.None || f.Interface != blueprint.None {
			continue
		}
		if !res.Reachable.Contains(f.ID) {
			out = append(out, f)
		}
	}
	return out
}

// Failed reports whether any diagnostic was recorded.
func (s *Session) Failed() bool {
	return !s.Diagnostics.Empty()
}

// Build checks the sources and, when no diagnostic was recorded, emits the
// module. A failed check returns a *diag.Error.
func (s *Session) Build(opts emit.Options) (*emit.Module, error) {
	if !s.parsed {
		return nil, &diag.Error{Diagnostics: s.Diagnostics.Sorted()}
	}
	res := s.Check()
	if s.Failed() {
		return nil, &diag.Error{Diagnostics: s.Diagnostics.Sorted()}
	}
	s.gen = instance.New(s.Registry)
	m, err := emit.New(s.Registry, s.gen, opts).Emit(res.Entries)
	if err != nil {
		log.Errorf("session %s: emit: %s", s.ID, err.Error())
		return nil, fmt.Errorf("emit: %w", err)
	}
	log.Infof("session %s: emitted %d function(s), table of %d", s.ID, len(s.gen.Funcs()), len(s.gen.Table()))
	return m, nil
}

// Close drops every table the session built.
func (s *Session) Close() {
	if s.gen != nil {
		s.gen.Clear()
	}
	s.Registry.Clear()
	s.Diagnostics.Reset()
	s.files = nil
	clear(s.sources)
	s.result = nil
	log.Debugf("session %s: closed", s.ID)
}

// Report renders diagnostics one per line, as "file:line:col: kind: msg".
func Report(ds []diag.Diagnostic) string {
	var b strings.Builder
	for _, d := range ds {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}
