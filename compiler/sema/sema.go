// Package sema turns parsed files into blueprints and IR.
//
// Declarations go through ordered passes so every name is known before any
// signature refers to it: types and interfaces are named first, then parents
// are linked, then fields and methods are resolved root type first, and
// only then are function bodies lowered to IR. Every failed check records a
// diagnostic and continues with types.Undefined.
package sema

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"

	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/symbols"
	"github.com/chazu/lotus/compiler/types"
)

// ---------------------------------------------------------------------------
// Checker: owns one semantic run
// ---------------------------------------------------------------------------

// Checker analyzes a set of files into a Registry.
type Checker struct {
	reg   *blueprint.Registry
	diags *diag.List

	types  []typeDecl
	ifaces []ifaceDecl
	funcs  []funcDecl

	// bodies queued for the body pass, in declaration order
	bodies []funcDecl

	// checks that need every method declared first
	deferred []func()
	declaring bool

	nextVar     int
	nextClosure int
}

type typeDecl struct {
	file *compiler.File
	decl *compiler.TypeDecl
	bp   *blueprint.TypeBlueprint
}

type ifaceDecl struct {
	file *compiler.File
	decl *compiler.InterfaceDecl
	bp   *blueprint.InterfaceBlueprint
}

type funcDecl struct {
	file  *compiler.File
	decl  *compiler.FnDecl
	fn    *blueprint.FunctionBlueprint
	scope typeScope
}

// Result lists what the body pass produced.
type Result struct {
	// Entries are the exported free functions, the roots of emission.
	Entries []int

	// Reachable holds every function referenced from a body, seeded with
	// the entries.
	Reachable *set.Set[int]
}

// New creates a checker that declares into reg and reports into diags.
func New(reg *blueprint.Registry, diags *diag.List) *Checker {
	return &Checker{reg: reg, diags: diags}
}

// Check runs every pass over files.
func Check(reg *blueprint.Registry, diags *diag.List, files []*compiler.File) *Result {
	return New(reg, diags).Check(files)
}

// Check runs every pass over files.
func (c *Checker) Check(files []*compiler.File) *Result {
	c.declaring = true
	c.declareNames(files)
	c.declareInterfaces()
	c.declareParents()
	c.declareAssocs()
	c.declareFuncs()
	c.declareMembers()
	c.declaring = false
	for _, check := range c.deferred {
		check()
	}
	c.deferred = nil

	res := &Result{Reachable: set.New[int](len(c.bodies))}
	for _, fd := range c.bodies {
		c.buildBody(fd, res)
	}
	for _, fd := range c.funcs {
		if fd.fn.Exported {
			res.Entries = append(res.Entries, fd.fn.ID)
			res.Reachable.Insert(fd.fn.ID)
		}
	}
	return res
}

func (c *Checker) errorf(kind diag.Kind, pos diag.Pos, format string, args ...any) {
	c.diags.Add(kind, pos, format, args...)
}

func (c *Checker) newVar(name string, t types.Type, param int) *ir.Var {
	c.nextVar++
	return &ir.Var{ID: c.nextVar, Name: name, Type: t, Param: param}
}

func (c *Checker) format(t types.Type) string {
	return c.reg.Format(t)
}

func location(file *compiler.File, n compiler.Node) symbols.Location {
	return symbols.Location{Pos: n.Span().Start.In(file.Path), Package: file.Package}
}

func visibility(v compiler.Visibility) symbols.Visibility {
	switch v {
	case compiler.VisPublic:
		return symbols.Public
	case compiler.VisExport:
		return symbols.Export
	case compiler.VisSystem:
		return symbols.System
	}
	return symbols.Private
}

func category(c compiler.Category) blueprint.Category {
	switch c {
	case compiler.CategoryClass:
		return blueprint.CategoryClass
	case compiler.CategoryEnum:
		return blueprint.CategoryEnum
	}
	return blueprint.CategoryType
}

// ---------------------------------------------------------------------------
// Type references
// ---------------------------------------------------------------------------

// typeScope says what names mean inside a declaration: the generic
// parameters of the enclosing type and function, Self, and where lookups
// come from.
type typeScope struct {
	file  *compiler.File
	loc   symbols.Location
	owner int // enclosing type, None outside types
	iface int // enclosing interface, None outside interfaces
	fn    int // function whose generic parameters are in scope, None if none
}

func (c *Checker) scopeFor(file *compiler.File, n compiler.Node) typeScope {
	return typeScope{file: file, loc: location(file, n), owner: blueprint.None, iface: blueprint.None, fn: blueprint.None}
}

func (s typeScope) pos(n compiler.Node) diag.Pos {
	return n.Span().Start.In(s.file.Path)
}

// resolveType turns a written type into a Type. A nil reference is void.
func (c *Checker) resolveType(ref *compiler.TypeRef, sc typeScope) types.Type {
	if ref == nil {
		return types.Void
	}
	if ref.Func {
		args := make([]types.Type, len(ref.Params))
		for i, p := range ref.Params {
			args[i] = c.resolveType(p, sc)
		}
		return types.Function(args, c.resolveType(ref.Return, sc))
	}

	t := c.resolveNamed(ref, sc)
	if ref.Assoc == "" || t.IsUndefined() {
		return t
	}
	return c.resolveAssoc(t, ref.Assoc, sc.pos(ref))
}

func (c *Checker) resolveNamed(ref *compiler.TypeRef, sc typeScope) types.Type {
	pos := sc.pos(ref)
	if ref.Name == "Self" {
		switch {
		case sc.iface != blueprint.None:
			return types.This(sc.iface)
		case sc.owner != blueprint.None:
			return c.reg.Types[sc.owner].SelfType()
		}
		c.errorf(diag.UndefinedSymbol, pos, "`Self` is only valid inside a type or interface")
		return types.Undefined
	}
	if ref.Name == "void" && len(ref.Args) == 0 {
		return types.Void
	}

	if len(ref.Args) == 0 {
		if f := c.reg.Func(sc.fn); f != nil {
			for i, g := range f.Generics {
				if g.Name == ref.Name {
					return types.FuncParam(f.ID, i)
				}
			}
		}
		if t := c.reg.Type(sc.owner); t != nil {
			for i, g := range t.Generics {
				if g.Name == ref.Name {
					return types.TypeParam(t.ID, i)
				}
			}
		}
	}

	entry, ok := c.reg.TypeSymbols.Lookup(ref.Name, sc.loc)
	if !ok {
		if c.reg.TypeSymbols.Hidden(ref.Name, sc.loc) {
			c.errorf(diag.UndefinedSymbol, pos, "type `%s` is not visible here", ref.Name)
		} else {
			c.errorf(diag.UndefinedSymbol, pos, "undefined type `%s`", ref.Name)
		}
		return types.Undefined
	}
	bp := c.reg.Types[entry.Value]
	if len(ref.Args) != len(bp.Generics) {
		c.errorf(diag.Generic, pos, "type `%s` expects %d type argument(s), got %d", bp.Name, len(bp.Generics), len(ref.Args))
		return types.Undefined
	}
	args := make([]types.Type, len(ref.Args))
	for i, a := range ref.Args {
		args[i] = c.resolveType(a, sc)
	}
	t := types.Actual(bp.ID, args...)
	c.checkBounds(bp.Generics, args, pos, bp.Name)
	return t
}

func (c *Checker) resolveAssoc(root types.Type, name string, pos diag.Pos) types.Type {
	switch root.Kind {
	case types.KindActual:
		v, ok := c.reg.AssociatedType(root, name)
		if !ok {
			c.errorf(diag.UndefinedSymbol, pos, "%s has no associated type `%s`", c.format(root), name)
			return types.Undefined
		}
		return v
	case types.KindThis:
		if i := c.reg.Interface(root.ID); i != nil {
			for _, a := range i.AssocNames {
				if a == name {
					return types.Associated(root, name)
				}
			}
		}
	case types.KindTypeParam, types.KindFuncParam:
		for _, iid := range c.reg.Bounds(root) {
			for _, a := range c.reg.Interfaces[iid].AssocNames {
				if a == name {
					return types.Associated(root, name)
				}
			}
		}
	}
	c.errorf(diag.UndefinedSymbol, pos, "%s has no associated type `%s`", c.format(root), name)
	return types.Undefined
}

// checkBounds verifies args against the interface bounds of params. While
// declarations are still being processed the check waits until every
// method is known.
func (c *Checker) checkBounds(params []blueprint.GenericParam, args []types.Type, pos diag.Pos, what string) bool {
	check := func() bool {
		ok := true
		for i, p := range params {
			if i >= len(args) {
				break
			}
			for _, iid := range p.Bounds {
				if why, sat := c.reg.Satisfies(args[i], iid); !sat {
					c.errorf(diag.InterfaceMismatch, pos, "%s does not satisfy `%s` required by `%s`: %s",
						c.format(args[i]), c.reg.Interfaces[iid].Name, what, why)
					ok = false
				}
			}
		}
		return ok
	}
	if c.declaring {
		c.deferred = append(c.deferred, func() { check() })
		return true
	}
	return check()
}

// resolveBounds maps written bounds to interface ids.
func (c *Checker) resolveBounds(g *compiler.GenericParam, sc typeScope) []int {
	var out []int
	for _, b := range g.Bounds {
		entry, ok := c.reg.InterfaceSymbols.Lookup(b.Name, sc.loc)
		if !ok {
			c.errorf(diag.UndefinedSymbol, sc.pos(b), "undefined interface `%s`", b.Name)
			continue
		}
		out = append(out, entry.Value)
	}
	return out
}

func genericNames(gs []*compiler.GenericParam) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Name
	}
	return out
}

func (c *Checker) internal(pos diag.Pos, err error) {
	c.errorf(diag.Generic, pos, "internal error: %v", err)
}

func closureName(n int) string {
	return fmt.Sprintf("closure#%d", n)
}
