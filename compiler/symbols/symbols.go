// Package symbols implements the name→declaration table used for types,
// functions and interfaces. Every entry carries a content-derived id and a
// visibility; lookups are filtered by where the request comes from.
package symbols

import (
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/hash"
)

// Visibility controls which locations may see a symbol.
type Visibility int

const (
	Private Visibility = iota // same file
	Public                    // same package
	Export                    // any package
	System                    // compiler-internal call sites only
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Export:
		return "export"
	case System:
		return "system"
	}
	return "private"
}

// Location identifies where a declaration lives or where a lookup is made.
type Location struct {
	Pos     diag.Pos
	Package string

	// Internal marks compiler-synthesized code and the prelude. Only
	// internal locations can see System symbols.
	Internal bool
}

// Entry is one declared symbol.
type Entry[T any] struct {
	ID    hash.ID
	Name  string
	Vis   Visibility
	Loc   Location
	Value T
}

// VisibleFrom reports whether the entry may be referenced from loc.
func (e *Entry[T]) VisibleFrom(from Location) bool {
	return Visible(e.Vis, e.Loc, from)
}

// Visible reports whether a declaration with visibility vis written at decl
// may be referenced from from. Members of types use it directly since they
// are not indexed.
func Visible(vis Visibility, decl, from Location) bool {
	switch vis {
	case Private:
		return from.Internal || from.Pos.File == decl.Pos.File
	case Public:
		return from.Internal || from.Package == decl.Package
	case Export:
		return true
	case System:
		return from.Internal
	}
	return false
}

// Index is a symbol table for one kind of declaration.
type Index[T any] struct {
	kind   string // "type", "function", "interface"; used in messages
	diags  *diag.List
	order  []*Entry[T]
	byID   map[hash.ID]*Entry[T]
	byName map[string][]*Entry[T]
}

// New creates an index reporting into diags.
func New[T any](kind string, diags *diag.List) *Index[T] {
	return &Index[T]{
		kind:   kind,
		diags:  diags,
		byID:   make(map[hash.ID]*Entry[T]),
		byName: make(map[string][]*Entry[T]),
	}
}

// Insert declares a symbol. The id is derived from the declaration's file,
// byte offset and marker; marker tells apart synthesized declarations that
// share a source location.
//
// Duplicates are reported here and the new entry is rejected: the same name
// twice in one package, or two exported declarations with the same name.
func (ix *Index[T]) Insert(name string, vis Visibility, loc Location, marker string, value T) (*Entry[T], bool) {
	id := hash.Symbol(loc.Pos.File, loc.Pos.Offset, marker)
	if prev, ok := ix.byID[id]; ok {
		ix.diags.Add(diag.Generic, loc.Pos, "%s `%s` redeclares `%s` at the same location", ix.kind, name, prev.Name)
		return nil, false
	}

	for _, prev := range ix.byName[name] {
		switch {
		case prev.Loc.Package == loc.Package:
			ix.diags.Add(diag.Generic, loc.Pos, "duplicate %s `%s` (previously declared at %s)", ix.kind, name, prev.Loc.Pos)
			return nil, false
		case prev.Vis == Export && vis == Export:
			ix.diags.Add(diag.Generic, loc.Pos, "ambiguous %s `%s`: also exported by package %s", ix.kind, name, prev.Loc.Package)
			return nil, false
		}
	}

	e := &Entry[T]{ID: id, Name: name, Vis: vis, Loc: loc, Value: value}
	ix.order = append(ix.order, e)
	ix.byID[id] = e
	ix.byName[name] = append(ix.byName[name], e)
	return e, true
}

// Lookup returns the first entry named name, in insertion order, that is
// visible from the requesting location. Lookup never reports.
func (ix *Index[T]) Lookup(name string, from Location) (*Entry[T], bool) {
	for _, e := range ix.byName[name] {
		if e.VisibleFrom(from) {
			return e, true
		}
	}
	return nil, false
}

// Hidden reports whether name exists but is not visible from loc. Used to
// give a better message than "undefined".
func (ix *Index[T]) Hidden(name string, from Location) bool {
	_, visible := ix.Lookup(name, from)
	return !visible && len(ix.byName[name]) > 0
}

// Get returns the entry with the given id.
func (ix *Index[T]) Get(id hash.ID) (*Entry[T], bool) {
	e, ok := ix.byID[id]
	return e, ok
}

// Visible returns every entry visible from loc, in insertion order.
func (ix *Index[T]) Visible(from Location) []*Entry[T] {
	var out []*Entry[T]
	for _, e := range ix.order {
		if e.VisibleFrom(from) {
			out = append(out, e)
		}
	}
	return out
}

// All returns every entry in insertion order.
func (ix *Index[T]) All() []*Entry[T] {
	return ix.order
}

// Len returns the number of entries.
func (ix *Index[T]) Len() int {
	return len(ix.order)
}

// Clear drops every entry.
func (ix *Index[T]) Clear() {
	ix.order = nil
	ix.byID = make(map[hash.ID]*Entry[T])
	ix.byName = make(map[string][]*Entry[T])
}
