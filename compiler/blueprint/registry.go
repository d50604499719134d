package blueprint

import (
	"sort"

	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/symbols"
	"github.com/chazu/lotus/compiler/types"
)

// Registry is the arena of blueprints and the symbol indexes that name
// them. It implements types.Env.
type Registry struct {
	Types      []*TypeBlueprint
	Funcs      []*FunctionBlueprint
	Interfaces []*InterfaceBlueprint

	TypeSymbols      *symbols.Index[int]
	FuncSymbols      *symbols.Index[int]
	InterfaceSymbols *symbols.Index[int]

	Builtin Builtins

	diags    *diag.List
	eventSeq int
}

var _ types.Env = (*Registry)(nil)

// New creates a registry with the built-in prelude seeded.
func New(diags *diag.List) *Registry {
	r := &Registry{
		TypeSymbols:      symbols.New[int]("type", diags),
		FuncSymbols:      symbols.New[int]("function", diags),
		InterfaceSymbols: symbols.New[int]("interface", diags),
		diags:            diags,
	}
	r.seedBuiltins()
	return r
}

// Type returns the type blueprint with the given id.
func (r *Registry) Type(id int) *TypeBlueprint {
	if id < 0 || id >= len(r.Types) {
		return nil
	}
	return r.Types[id]
}

// Func returns the function blueprint with the given id.
func (r *Registry) Func(id int) *FunctionBlueprint {
	if id < 0 || id >= len(r.Funcs) {
		return nil
	}
	return r.Funcs[id]
}

// Interface returns the interface blueprint with the given id.
func (r *Registry) Interface(id int) *InterfaceBlueprint {
	if id < 0 || id >= len(r.Interfaces) {
		return nil
	}
	return r.Interfaces[id]
}

func generics(names []string) []GenericParam {
	out := make([]GenericParam, len(names))
	for i, n := range names {
		out[i] = GenericParam{Name: n, Index: i}
	}
	return out
}

// DeclareType registers a type declaration (pass a): name, generic
// parameter names and associated type slots. The blueprint is created even
// when the name is a duplicate so its body can still be checked.
func (r *Registry) DeclareType(name string, vis symbols.Visibility, loc symbols.Location, cat Category, genericNames, assocNames []string) (*TypeBlueprint, bool) {
	t := &TypeBlueprint{
		ID:         len(r.Types),
		Name:       name,
		Vis:        vis,
		Loc:        loc,
		Category:   cat,
		Generics:   generics(genericNames),
		AssocNames: assocNames,
		Assoc:      make(map[string]types.Type, len(assocNames)),
		Parent:     types.Void,
		Methods:    make(map[string]int),
		Statics:    make(map[string]int),
		Retain:     None,
	}
	for _, a := range assocNames {
		t.Assoc[a] = types.Undefined
	}
	r.Types = append(r.Types, t)
	_, ok := r.TypeSymbols.Insert(name, vis, loc, "", t.ID)
	return t, ok
}

// DeclareInterface registers an interface.
func (r *Registry) DeclareInterface(name string, vis symbols.Visibility, loc symbols.Location, assocNames []string) (*InterfaceBlueprint, bool) {
	i := &InterfaceBlueprint{
		ID:         len(r.Interfaces),
		Name:       name,
		Vis:        vis,
		Loc:        loc,
		AssocNames: assocNames,
		Methods:    make(map[string]int),
	}
	r.Interfaces = append(r.Interfaces, i)
	_, ok := r.InterfaceSymbols.Insert(name, vis, loc, "", i.ID)
	return i, ok
}

// NewFunc adds a function to the arena without naming it. Used for
// methods, closures and synthesized functions. Adding a function that is
// already in the arena is a no-op, so signatures can be resolved against
// the final id before the function is declared.
func (r *Registry) NewFunc(f *FunctionBlueprint) *FunctionBlueprint {
	if f.ID >= 0 && f.ID < len(r.Funcs) && r.Funcs[f.ID] == f {
		return f
	}
	f.ID = len(r.Funcs)
	f.DispatchIndex = None
	f.Declarer = None
	r.Funcs = append(r.Funcs, f)
	return f
}

// DeclareFunc adds a free function and names it.
func (r *Registry) DeclareFunc(f *FunctionBlueprint) (*FunctionBlueprint, bool) {
	f.Owner = None
	f.Interface = None
	r.NewFunc(f)
	_, ok := r.FuncSymbols.Insert(f.Name, f.Vis, f.Loc, "", f.ID)
	return f, ok
}

// DeclareSynthetic adds a compiler-generated free function (a closure or a
// retain companion) under a system-visible symbol. marker tells it apart
// from the user declaration at the same location.
func (r *Registry) DeclareSynthetic(f *FunctionBlueprint, marker string) *FunctionBlueprint {
	f.Owner = None
	f.Interface = None
	f.Vis = symbols.System
	f.Loc.Internal = true
	r.NewFunc(f)
	r.FuncSymbols.Insert(f.Name, f.Vis, f.Loc, marker, f.ID)
	return f
}

// AddRequirement adds a method signature to an interface.
func (r *Registry) AddRequirement(iface int, f *FunctionBlueprint) bool {
	i := r.Interfaces[iface]
	f.Owner = None
	f.Interface = iface
	r.NewFunc(f)
	if _, dup := i.Methods[f.Name]; dup {
		r.diags.Add(diag.Generic, f.Loc.Pos, "duplicate method `%s` in interface `%s`", f.Name, i.Name)
		return false
	}
	i.Methods[f.Name] = f.ID
	i.Order = append(i.Order, f.ID)
	return true
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

// Chain returns id followed by its ancestors, nearest first.
func (r *Registry) Chain(id int) []int {
	out := []int{id}
	t := r.Type(id)
	for i := len(t.Ancestors) - 1; i >= 0; i-- {
		out = append(out, t.Ancestors[i])
	}
	return out
}

// FindMethod finds an instance (static=false) or static method by name on
// type id or its nearest ancestor declaring it.
func (r *Registry) FindMethod(id int, name string, static bool) (*FunctionBlueprint, bool) {
	if r.Type(id) == nil {
		return nil, false
	}
	for _, tid := range r.Chain(id) {
		t := r.Types[tid]
		table := t.Methods
		if static {
			table = t.Statics
		}
		if fid, ok := table[name]; ok {
			return r.Funcs[fid], true
		}
	}
	return nil, false
}

// FindField finds a field by name in the full layout of type id.
func (r *Registry) FindField(id int, name string) (*Field, bool) {
	t := r.Type(id)
	if t == nil {
		return nil, false
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// VariantIndex returns the number of an enum variant.
func (r *Registry) VariantIndex(id int, name string) (int, bool) {
	t := r.Type(id)
	if t == nil {
		return 0, false
	}
	for i, v := range t.Variants {
		if v == name {
			return i, true
		}
	}
	return 0, false
}

// Erased reports whether values of type id carry no data at all: a plain
// type with no fields and no dynamic methods.
func (r *Registry) Erased(id int) bool {
	t := r.Type(id)
	return t != nil && !t.Builtin && t.Category == CategoryType && len(t.Fields) == 0 && t.DispatchCount == 0
}

// HasRetain reports whether values of t need a retain call when they are
// duplicated into a new owner. It reports true for types that are still
// generic, since their instantiation decides.
func (r *Registry) HasRetain(t types.Type) bool {
	switch t.Kind {
	case types.KindActual:
		bp := r.Type(t.ID)
		return bp != nil && bp.Retain != None
	case types.KindFunction:
		return true
	case types.KindVoid, types.KindUndefined:
		return false
	}
	return t.IsGeneric()
}

// Bounds returns the interfaces a generic parameter is bound by.
func (r *Registry) Bounds(t types.Type) []int {
	switch t.Kind {
	case types.KindTypeParam:
		if bp := r.Type(t.ID); bp != nil && t.Index < len(bp.Generics) {
			return bp.Generics[t.Index].Bounds
		}
	case types.KindFuncParam:
		if fn := r.Func(t.ID); fn != nil && t.Index < len(fn.Generics) {
			return fn.Generics[t.Index].Bounds
		}
	}
	return nil
}

// DispatchTable returns, for each dispatch index of type id, the function
// that implements it: the nearest override wins.
func (r *Registry) DispatchTable(id int) []int {
	t := r.Type(id)
	slots := make([]int, t.DispatchCount)
	for i := range slots {
		slots[i] = None
	}
	chain := append(append([]int{}, t.Ancestors...), id)
	for _, tid := range chain {
		for _, fid := range r.Types[tid].Dynamic {
			f := r.Funcs[fid]
			if f.DispatchIndex >= 0 && f.DispatchIndex < len(slots) {
				slots[f.DispatchIndex] = fid
			}
		}
	}
	return slots
}

// RootFirst returns the user type ids ordered so every type comes after its
// ancestors, keeping declaration order otherwise.
func (r *Registry) RootFirst() []int {
	ids := make([]int, 0, len(r.Types))
	for _, t := range r.Types {
		if !t.Builtin {
			ids = append(ids, t.ID)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return len(r.Types[ids[i]].Ancestors) < len(r.Types[ids[j]].Ancestors)
	})
	return ids
}

// ---------------------------------------------------------------------------
// types.Env
// ---------------------------------------------------------------------------

// Parent implements types.Env.
func (r *Registry) Parent(t types.Type) (types.Type, bool) {
	bp := r.Type(t.ID)
	if t.Kind != types.KindActual || bp == nil || bp.Parent.Kind != types.KindActual {
		return types.Type{}, false
	}
	return bp.Parent.ReplaceParameters(r, t, nil), true
}

// AssociatedType implements types.Env.
func (r *Registry) AssociatedType(t types.Type, name string) (types.Type, bool) {
	for _, a := range types.Ancestors(r, t) {
		bp := r.Type(a.ID)
		if bp == nil {
			continue
		}
		if v, ok := bp.Assoc[name]; ok {
			if v.IsUndefined() {
				return types.Undefined, false
			}
			return v.ReplaceParameters(r, a, nil), true
		}
	}
	return types.Undefined, false
}

// TypeName implements types.Env.
func (r *Registry) TypeName(id int) string {
	if t := r.Type(id); t != nil {
		return t.Name
	}
	return "?"
}

// TypeParamName implements types.Env.
func (r *Registry) TypeParamName(owner, index int) string {
	if t := r.Type(owner); t != nil && index < len(t.Generics) {
		return t.Generics[index].Name
	}
	return "?"
}

// FuncParamName implements types.Env.
func (r *Registry) FuncParamName(owner, index int) string {
	if f := r.Func(owner); f != nil && index < len(f.Generics) {
		return f.Generics[index].Name
	}
	return "?"
}

// Format renders t with blueprint names.
func (r *Registry) Format(t types.Type) string {
	return t.Format(r)
}

// ---------------------------------------------------------------------------
// Teardown
// ---------------------------------------------------------------------------

// Clear drops every blueprint and symbol. Closure capture sets and bodies
// are released explicitly so nothing keeps IR variables alive.
func (r *Registry) Clear() {
	for _, f := range r.Funcs {
		if f.Closure != nil {
			f.Closure.Captures = nil
			f.Closure.Keys = nil
			f.Closure.Order = nil
			f.Closure = nil
		}
		f.Body = nil
	}
	for _, t := range r.Types {
		t.Events = nil
		t.Fields = nil
	}
	r.Types = nil
	r.Funcs = nil
	r.Interfaces = nil
	r.TypeSymbols.Clear()
	r.FuncSymbols.Clear()
	r.InterfaceSymbols.Clear()
}
