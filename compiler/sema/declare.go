package sema

import (
	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/types"
)

// ---------------------------------------------------------------------------
// Pass (a): names
// ---------------------------------------------------------------------------

func (c *Checker) declareNames(files []*compiler.File) {
	for _, file := range files {
		for _, d := range file.Decls {
			switch decl := d.(type) {
			case *compiler.TypeDecl:
				assocs := make([]string, len(decl.Assocs))
				for i, a := range decl.Assocs {
					assocs[i] = a.Name
				}
				bp, _ := c.reg.DeclareType(decl.Name, visibility(decl.Vis), location(file, decl),
					category(decl.Category), genericNames(decl.Generics), assocs)
				c.types = append(c.types, typeDecl{file: file, decl: decl, bp: bp})

			case *compiler.InterfaceDecl:
				assocs := make([]string, len(decl.Assocs))
				for i, a := range decl.Assocs {
					assocs[i] = a.Name
				}
				bp, _ := c.reg.DeclareInterface(decl.Name, visibility(decl.Vis), location(file, decl), assocs)
				c.ifaces = append(c.ifaces, ifaceDecl{file: file, decl: decl, bp: bp})

			case *compiler.FnDecl:
				c.funcs = append(c.funcs, funcDecl{file: file, decl: decl})
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Interface signatures and generic bounds
// ---------------------------------------------------------------------------

func (c *Checker) declareInterfaces() {
	for _, td := range c.types {
		sc := c.typeScope(td)
		for i, g := range td.decl.Generics {
			td.bp.Generics[i].Bounds = c.resolveBounds(g, sc)
		}
		if td.bp.Category == blueprint.CategoryEnum && len(td.decl.Generics) > 0 {
			c.errorf(diag.Generic, sc.pos(td.decl), "enum `%s` cannot have generic parameters", td.bp.Name)
		}
	}

	for _, id := range c.ifaces {
		sc := c.scopeFor(id.file, id.decl)
		sc.iface = id.bp.ID
		for _, m := range id.decl.Methods {
			f := c.reg.NewFunc(&blueprint.FunctionBlueprint{
				Name:   m.Name,
				Vis:    id.bp.Vis,
				Loc:    location(id.file, m),
				Static: m.Static,
			})
			msc := sc
			msc.fn = f.ID
			c.signature(f, m, msc)
			c.reg.AddRequirement(id.bp.ID, f)
		}
		for _, a := range id.decl.Assocs {
			if a.Value != nil {
				c.errorf(diag.Generic, sc.pos(a), "associated type `%s` in interface `%s` cannot have a value", a.Name, id.bp.Name)
			}
		}
	}
}

func (c *Checker) typeScope(td typeDecl) typeScope {
	sc := c.scopeFor(td.file, td.decl)
	sc.owner = td.bp.ID
	return sc
}

// signature resolves generics, parameters and return of f from decl. f must
// already be in the arena so its generic parameters can name it.
func (c *Checker) signature(f *blueprint.FunctionBlueprint, decl *compiler.FnDecl, sc typeScope) {
	f.Generics = make([]blueprint.GenericParam, len(decl.Generics))
	for i, g := range decl.Generics {
		f.Generics[i] = blueprint.GenericParam{Name: g.Name, Index: i}
	}
	for i, g := range decl.Generics {
		f.Generics[i].Bounds = c.resolveBounds(g, sc)
	}
	f.Params = make([]blueprint.Param, len(decl.Params))
	for i, p := range decl.Params {
		f.Params[i] = blueprint.Param{Name: p.Name, Type: c.resolveType(p.Type, sc)}
	}
	f.Return = c.resolveType(decl.Return, sc)
}

// ---------------------------------------------------------------------------
// Pass (b): parents
// ---------------------------------------------------------------------------

func (c *Checker) declareParents() {
	for _, td := range c.types {
		if td.decl.Parent == nil {
			continue
		}
		sc := c.typeScope(td)
		parent := c.resolveType(td.decl.Parent, sc)
		c.reg.SetParent(td.bp.ID, parent, sc.pos(td.decl.Parent))
	}
	c.reg.LinkAncestors()
}

func (c *Checker) declareAssocs() {
	for _, td := range c.types {
		sc := c.typeScope(td)
		for _, a := range td.decl.Assocs {
			if a.Value == nil {
				c.errorf(diag.Generic, sc.pos(a), "associated type `%s` in `%s` needs a value", a.Name, td.bp.Name)
				continue
			}
			c.reg.SetAssoc(td.bp.ID, a.Name, c.resolveType(a.Value, sc))
		}
	}
}

// ---------------------------------------------------------------------------
// Free function signatures
// ---------------------------------------------------------------------------

func (c *Checker) declareFuncs() {
	for i, fd := range c.funcs {
		f := c.reg.NewFunc(&blueprint.FunctionBlueprint{
			Name:      fd.decl.Name,
			Vis:       visibility(fd.decl.Vis),
			Loc:       location(fd.file, fd.decl),
			Owner:     blueprint.None,
			Interface: blueprint.None,
			Exported:  fd.decl.Vis == compiler.VisExport,
		})
		sc := c.scopeFor(fd.file, fd.decl)
		sc.fn = f.ID
		c.signature(f, fd.decl, sc)
		c.reg.DeclareFunc(f)
		if f.Exported && len(f.Generics) > 0 {
			c.errorf(diag.Generic, sc.pos(fd.decl), "exported function `%s` cannot have generic parameters", f.Name)
			f.Exported = false
		}

		fd.fn = f
		fd.scope = sc
		c.funcs[i] = fd
		if fd.decl.Body != nil {
			c.bodies = append(c.bodies, fd)
		}
	}
}

// ---------------------------------------------------------------------------
// Pass (c): fields, variants, methods, events
// ---------------------------------------------------------------------------

func (c *Checker) declareMembers() {
	byID := make(map[int]typeDecl, len(c.types))
	for _, td := range c.types {
		byID[td.bp.ID] = td
	}
	for _, id := range c.reg.RootFirst() {
		td, ok := byID[id]
		if !ok {
			continue
		}
		c.declareType(td)
	}
}

func (c *Checker) declareType(td typeDecl) {
	id := td.bp.ID
	sc := c.typeScope(td)
	c.reg.Inherit(id)

	for _, f := range td.decl.Fields {
		if td.bp.Category == blueprint.CategoryEnum {
			c.errorf(diag.Generic, sc.pos(f), "enum `%s` cannot declare fields", td.bp.Name)
			continue
		}
		c.reg.AddField(id, f.Name, c.resolveType(f.Type, sc), sc.pos(f))
	}
	for _, v := range td.decl.Variants {
		c.reg.AddVariant(id, v.Name, sc.pos(v))
	}

	for _, m := range td.decl.Methods {
		pos := sc.pos(m)
		f := c.reg.NewFunc(&blueprint.FunctionBlueprint{
			Name:     m.Name,
			Vis:      visibility(m.Vis),
			Loc:      location(td.file, m),
			Static:   m.Static,
			Dynamic:  m.Dyn,
			Abstract: m.Body == nil,
		})
		msc := sc
		msc.fn = f.ID
		c.signature(f, m, msc)

		if f.Dynamic && td.bp.Category == blueprint.CategoryEnum {
			c.errorf(diag.Generic, pos, "enum `%s` cannot declare dynamic method `%s`", td.bp.Name, f.Name)
			f.Dynamic = false
		}
		if f.Name == blueprint.RetainName && (len(f.Params) > 0 || !f.Return.IsVoid() || f.Static) {
			c.errorf(diag.Generic, pos, "`%s` must be an instance method without parameters or result", blueprint.RetainName)
		}
		added := c.reg.AddMethod(id, f)

		if m.Body != nil {
			c.bodies = append(c.bodies, funcDecl{file: td.file, decl: m, fn: f, scope: msc})
		}
		if m.Event != nil && added {
			c.declareEvent(id, f, m.Event, msc)
		}
	}
	c.reg.AddRetain(id)
}

func (c *Checker) declareEvent(id int, f *blueprint.FunctionBlueprint, attr *compiler.EventAttr, sc typeScope) {
	pos := sc.pos(attr)
	q, err := blueprint.ParseQualifier(attr.Qualifier)
	if err != nil {
		c.errorf(diag.Generic, pos, "%v", err)
		return
	}
	event := c.resolveType(attr.Event, sc)
	if event.IsUndefined() {
		return
	}
	if len(f.Params) != 1 || !event.IsAssignableTo(c.reg, f.Params[0].Type) {
		c.errorf(diag.TypeMismatch, pos, "event callback `%s` must take a single %s parameter", f.Name, c.format(event))
		return
	}
	c.reg.RegisterEvent(id, event, q, attr.Priority, f.ID, pos)
}

// contextThis is the owner type as seen from inside its own methods; Void
// for free functions.
func (c *Checker) contextThis(sc typeScope) types.Type {
	if t := c.reg.Type(sc.owner); t != nil {
		return t.SelfType()
	}
	return types.Void
}

// contextArgs are the generic parameters of the function in scope, passed
// through unchanged.
func (c *Checker) contextArgs(sc typeScope) []types.Type {
	f := c.reg.Func(sc.fn)
	if f == nil || len(f.Generics) == 0 {
		return nil
	}
	args := make([]types.Type, len(f.Generics))
	for i := range f.Generics {
		args[i] = types.FuncParam(f.ID, i)
	}
	return args
}
