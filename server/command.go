package server

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/symbols"
	"github.com/chazu/lotus/manifest"
	"github.com/chazu/lotus/pipeline"
)

var log = commonlog.GetLogger("lotus.server")

// Kind selects what a Request asks for.
type Kind string

const (
	KindDiagnostics Kind = "diagnostics"
	KindCompletion  Kind = "completion"
	KindHover       Kind = "hover"
)

// Request is one editor command. Offset is a byte offset into the file.
// When Content is set it replaces the cached text of Path before the
// command runs.
type Request struct {
	Kind    Kind
	Path    string
	Offset  int
	Content *string
}

// Response is the answer to a Request, one item per line. Diagnostics
// carries the structured form of the diagnostics lines.
type Response struct {
	Lines       []string
	Diagnostics []diag.Diagnostic
}

// PackageFunc names the package a source file belongs to.
type PackageFunc func(path string) string

// DirPackage derives the package from the name of the file's directory.
func DirPackage(path string) string {
	pkg := manifest.ToPackageName(filepath.Base(filepath.Dir(path)))
	if pkg == "" {
		return "main"
	}
	return pkg
}

// Commands answers editor requests. Each request compiles the package of
// the requested file in a fresh session on the worker goroutine.
type Commands struct {
	Cache   *FileCache
	Package PackageFunc

	worker *Worker
}

// NewCommands creates a command handler over cache. A nil pkg uses
// DirPackage.
func NewCommands(cache *FileCache, pkg PackageFunc) *Commands {
	if pkg == nil {
		pkg = DirPackage
	}
	return &Commands{
		Cache:   cache,
		Package: pkg,
		worker:  NewWorker(),
	}
}

// Handle runs one request.
func (c *Commands) Handle(req Request) (Response, error) {
	c.Cache.Patch(req.Path, req.Content)
	v, err := c.worker.Do(func() any {
		resp, err := c.run(req)
		if err != nil {
			return err
		}
		return resp
	})
	if err != nil {
		return Response{}, err
	}
	if err, ok := v.(error); ok {
		return Response{}, err
	}
	return v.(Response), nil
}

// Stop shuts down the worker.
func (c *Commands) Stop() {
	c.worker.Stop()
}

func (c *Commands) run(req Request) (Response, error) {
	src, err := c.Cache.Get(req.Path)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", req.Kind, err)
	}

	s := pipeline.New(nil)
	defer s.Close()
	pkg := c.Package(req.Path)
	for _, p := range c.Cache.Siblings(req.Path) {
		text, err := c.Cache.Get(p)
		if err != nil {
			log.Warningf("skipping %s: %s", p, err.Error())
			continue
		}
		s.AddSource(filepath.Clean(p), pkg, text)
	}
	s.Check()
	log.Debugf("session %s: %s %s@%d", s.ID, req.Kind, req.Path, req.Offset)

	from := symbols.Location{
		Pos:     diag.Pos{File: filepath.Clean(req.Path), Offset: req.Offset},
		Package: pkg,
	}
	switch req.Kind {
	case KindDiagnostics:
		ds := s.Diagnostics.InFile(from.Pos.File)
		resp := Response{Diagnostics: ds}
		for _, d := range ds {
			resp.Lines = append(resp.Lines, d.String())
		}
		return resp, nil
	case KindCompletion:
		return Response{Lines: complete(s.Registry, from, prefixAt(src, req.Offset))}, nil
	case KindHover:
		return Response{Lines: hover(s.Registry, from, wordAt(src, req.Offset))}, nil
	}
	return Response{}, fmt.Errorf("unknown request kind %q", req.Kind)
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

var keywords = []string{
	"break", "class", "continue", "dyn", "else", "enum", "export", "false",
	"fn", "if", "interface", "let", "match", "new", "pub", "return", "self",
	"static", "sys", "true", "type", "while",
}

// complete returns the keywords and visible declarations starting with
// prefix, sorted and without duplicates.
func complete(reg *blueprint.Registry, from symbols.Location, prefix string) []string {
	if prefix == "" {
		return nil
	}
	seen := make(map[string]bool)
	add := func(name string) {
		if strings.HasPrefix(name, prefix) && !strings.HasPrefix(name, "__") {
			seen[name] = true
		}
	}
	for _, kw := range keywords {
		add(kw)
	}
	for _, e := range reg.TypeSymbols.Visible(from) {
		add(e.Name)
	}
	for _, e := range reg.FuncSymbols.Visible(from) {
		add(e.Name)
	}
	for _, e := range reg.InterfaceSymbols.Visible(from) {
		add(e.Name)
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Hover
// ---------------------------------------------------------------------------

// hover describes the declaration named word as seen from from. Methods
// are searched when no top-level declaration matches.
func hover(reg *blueprint.Registry, from symbols.Location, word string) []string {
	if word == "" {
		return nil
	}
	if e, ok := reg.TypeSymbols.Lookup(word, from); ok {
		return describeType(reg, reg.Type(e.Value))
	}
	if e, ok := reg.InterfaceSymbols.Lookup(word, from); ok {
		return describeInterface(reg, reg.Interface(e.Value))
	}
	if e, ok := reg.FuncSymbols.Lookup(word, from); ok {
		return []string{describeFunc(reg, reg.Func(e.Value))}
	}

	var lines []string
	for _, e := range reg.TypeSymbols.Visible(from) {
		t := reg.Type(e.Value)
		for _, id := range t.Order {
			f := reg.Func(id)
			if f.Name == word && symbols.Visible(f.Vis, f.Loc, from) {
				lines = append(lines, t.Name+"."+describeFunc(reg, f))
			}
		}
	}
	return lines
}

func describeType(reg *blueprint.Registry, t *blueprint.TypeBlueprint) []string {
	var b strings.Builder
	b.WriteString(t.Category.String())
	b.WriteByte(' ')
	b.WriteString(t.Name)
	writeGenerics(&b, t.Generics)
	if t.Parent.IsActual() {
		b.WriteString(" : ")
		b.WriteString(reg.Format(t.Parent))
	}
	lines := []string{b.String()}

	for _, f := range t.Fields {
		if f.Owner == t.ID {
			lines = append(lines, "  "+f.Name+": "+reg.Format(f.Type))
		}
	}
	for _, v := range t.Variants {
		lines = append(lines, "  "+v)
	}
	for _, id := range t.Order {
		if f := reg.Func(id); !f.Autogenerated {
			lines = append(lines, "  "+describeFunc(reg, f))
		}
	}
	return lines
}

func describeInterface(reg *blueprint.Registry, iface *blueprint.InterfaceBlueprint) []string {
	lines := []string{"interface " + iface.Name}
	for _, name := range iface.AssocNames {
		lines = append(lines, "  type "+name)
	}
	for _, id := range iface.Order {
		lines = append(lines, "  "+describeFunc(reg, reg.Func(id)))
	}
	return lines
}

// describeFunc renders a function header, e.g. "dyn fn area() -> float".
func describeFunc(reg *blueprint.Registry, f *blueprint.FunctionBlueprint) string {
	var b strings.Builder
	switch {
	case f.Static:
		b.WriteString("static ")
	case f.Dynamic:
		b.WriteString("dyn ")
	}
	b.WriteString("fn ")
	b.WriteString(f.Name)
	writeGenerics(&b, f.Generics)
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(reg.Format(p.Type))
	}
	b.WriteByte(')')
	if !f.Return.IsVoid() {
		b.WriteString(" -> ")
		b.WriteString(reg.Format(f.Return))
	}
	return b.String()
}

func writeGenerics(b *strings.Builder, gs []blueprint.GenericParam) {
	if len(gs) == 0 {
		return
	}
	b.WriteByte('<')
	for i, g := range gs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(g.Name)
	}
	b.WriteByte('>')
}

// ---------------------------------------------------------------------------
// Text helpers
// ---------------------------------------------------------------------------

func isIdent(ch byte) bool {
	return ch == '_' || 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || '0' <= ch && ch <= '9'
}

// prefixAt returns the identifier fragment that ends at offset.
func prefixAt(text string, offset int) string {
	offset = min(max(offset, 0), len(text))
	start := offset
	for start > 0 && isIdent(text[start-1]) {
		start--
	}
	return text[start:offset]
}

// wordAt returns the whole identifier around offset.
func wordAt(text string, offset int) string {
	offset = min(max(offset, 0), len(text))
	end := offset
	for end < len(text) && isIdent(text[end]) {
		end++
	}
	return prefixAt(text, offset) + text[offset:end]
}
