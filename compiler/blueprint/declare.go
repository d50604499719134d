package blueprint

import (
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/symbols"
	"github.com/chazu/lotus/compiler/types"
)

// RetainName is the autogenerated method that applies a type's retain
// semantics to a value.
const RetainName = "__retain"

// ---------------------------------------------------------------------------
// Pass (b): parents and ancestor chains
// ---------------------------------------------------------------------------

// SetParent records the parent of type id. The parent must be an actual
// user type of the same category and must not close a cycle; on failure
// the parent is left Undefined and false is returned.
func (r *Registry) SetParent(id int, parent types.Type, pos diag.Pos) bool {
	t := r.Types[id]
	if parent.IsUndefined() {
		t.Parent = types.Undefined
		return false
	}
	if parent.Kind != types.KindActual {
		r.diags.Add(diag.Generic, pos, "`%s` cannot extend %s", t.Name, r.Format(parent))
		t.Parent = types.Undefined
		return false
	}
	p := r.Types[parent.ID]
	if p.Builtin {
		r.diags.Add(diag.Generic, pos, "`%s` cannot extend built-in type `%s`", t.Name, p.Name)
		t.Parent = types.Undefined
		return false
	}
	if p.Category != t.Category {
		r.diags.Add(diag.Generic, pos, "%s `%s` cannot extend %s `%s`", t.Category, t.Name, p.Category, p.Name)
		t.Parent = types.Undefined
		return false
	}

	// Walk the parent's chain as far as it is known; reaching id closes a
	// cycle.
	cur := p
	for steps := 0; cur != nil && steps <= len(r.Types); steps++ {
		if cur.ID == id {
			r.diags.Add(diag.Generic, pos, "circular ancestor chain: `%s` extends itself through `%s`", t.Name, p.Name)
			t.Parent = types.Undefined
			return false
		}
		if cur.Parent.Kind != types.KindActual {
			break
		}
		cur = r.Types[cur.Parent.ID]
	}

	t.Parent = parent
	return true
}

// LinkAncestors computes every type's ancestor chain, root-first. Run once
// after every SetParent.
func (r *Registry) LinkAncestors() {
	for _, t := range r.Types {
		var chain []int
		cur := t
		for steps := 0; cur.Parent.Kind == types.KindActual && steps <= len(r.Types); steps++ {
			cur = r.Types[cur.Parent.ID]
			chain = append(chain, cur.ID)
		}
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}
		t.Ancestors = chain
	}
}

// SetAssoc fixes the value of an associated type declared on type id.
func (r *Registry) SetAssoc(id int, name string, value types.Type) {
	r.Types[id].Assoc[name] = value
}

// ---------------------------------------------------------------------------
// Pass (c): layout and methods
// ---------------------------------------------------------------------------

// Inherit starts the layout of type id with its parent's: fields, enum
// variants and dispatch slots. The parent must already be complete, which
// RootFirst ordering guarantees.
func (r *Registry) Inherit(id int) {
	t := r.Types[id]
	if t.inherited {
		return
	}
	t.inherited = true
	if t.Parent.Kind != types.KindActual {
		return
	}
	p := r.Types[t.Parent.ID]
	t.Fields = append([]*Field(nil), p.Fields...)
	t.Variants = append([]string(nil), p.Variants...)
	t.DispatchCount = p.DispatchCount
}

// AddField appends a field after every inherited and earlier field.
func (r *Registry) AddField(id int, name string, typ types.Type, pos diag.Pos) (*Field, bool) {
	r.Inherit(id)
	t := r.Types[id]
	for _, f := range t.Fields {
		if f.Name == name {
			if f.Owner == id {
				r.diags.Add(diag.Generic, pos, "duplicate field `%s` in `%s`", name, t.Name)
			} else {
				r.diags.Add(diag.Generic, pos, "field `%s` already declared by ancestor `%s`", name, r.Types[f.Owner].Name)
			}
			return nil, false
		}
	}
	f := &Field{Name: name, Owner: id, Type: typ, Slot: len(t.Fields), Pos: pos}
	t.Fields = append(t.Fields, f)
	return f, true
}

// AddVariant appends an enum variant, numbered after the parent's.
func (r *Registry) AddVariant(id int, name string, pos diag.Pos) (int, bool) {
	r.Inherit(id)
	t := r.Types[id]
	for _, v := range t.Variants {
		if v == name {
			r.diags.Add(diag.Generic, pos, "duplicate variant `%s` in `%s`", name, t.Name)
			return 0, false
		}
	}
	t.Variants = append(t.Variants, name)
	return len(t.Variants) - 1, true
}

// AddMethod adds f to type id and applies the override rules:
//
//   - a name may be declared once per type (an autogenerated copy is
//     replaced);
//   - redeclaring an ancestor's dynamic method requires the same signature
//     and reuses its dispatch index;
//   - redeclaring an ancestor's non-dynamic method is an error unless that
//     copy is autogenerated, in which case it is superseded;
//   - a method that is dynamic for the first time gets the next dispatch
//     index of the hierarchy.
func (r *Registry) AddMethod(id int, f *FunctionBlueprint) bool {
	r.Inherit(id)
	t := r.Types[id]
	f.Owner = id
	f.Interface = None
	r.NewFunc(f)

	table := t.Methods
	if f.Static {
		table = t.Statics
	}
	if f.Static && f.Dynamic {
		r.diags.Add(diag.Generic, f.Loc.Pos, "method `%s` cannot be both static and dynamic", f.Name)
		f.Dynamic = false
	}
	if f.Dynamic && len(f.Generics) > 0 {
		r.diags.Add(diag.Generic, f.Loc.Pos, "dynamic method `%s` cannot have generic parameters", f.Name)
		f.Dynamic = false
	}

	if prev, ok := table[f.Name]; ok {
		if !r.Funcs[prev].Autogenerated {
			r.diags.Add(diag.Generic, f.Loc.Pos, "duplicate method `%s` in `%s`", f.Name, t.Name)
			return false
		}
		r.removeMethod(t, prev)
	}

	if anc, ok := r.inherited(t, f.Name, f.Static); ok {
		switch {
		case anc.Dynamic:
			view, _ := types.AsAncestor(r, t.SelfType(), anc.Owner)
			want := anc.Signature().ReplaceParameters(r, view, nil)
			if !f.Signature().Equal(want) {
				r.diags.Add(diag.TypeMismatch, f.Loc.Pos,
					"`%s.%s` overrides a dynamic method of `%s` with a different signature: got %s, want %s",
					t.Name, f.Name, r.Types[anc.Owner].Name, r.Format(f.Signature()), r.Format(want))
				return false
			}
			f.Dynamic = true
			f.DispatchIndex = anc.DispatchIndex
			f.Declarer = anc.Declarer
		case anc.Autogenerated:
			// superseded
		default:
			r.diags.Add(diag.Generic, f.Loc.Pos,
				"`%s` cannot redeclare `%s`: it is not dynamic in ancestor `%s`",
				t.Name, f.Name, r.Types[anc.Owner].Name)
			return false
		}
	}

	if f.Dynamic && f.DispatchIndex == None {
		f.DispatchIndex = t.DispatchCount
		f.Declarer = id
		t.DispatchCount++
	}
	if f.Dynamic {
		t.Dynamic = append(t.Dynamic, f.ID)
	}
	table[f.Name] = f.ID
	t.Order = append(t.Order, f.ID)
	return true
}

func (r *Registry) removeMethod(t *TypeBlueprint, fid int) {
	for i, id := range t.Order {
		if id == fid {
			t.Order = append(t.Order[:i:i], t.Order[i+1:]...)
			break
		}
	}
	for i, id := range t.Dynamic {
		if id == fid {
			t.Dynamic = append(t.Dynamic[:i:i], t.Dynamic[i+1:]...)
			break
		}
	}
	if t.Retain == fid {
		t.Retain = None
	}
}

// inherited finds the nearest ancestor declaration of name.
func (r *Registry) inherited(t *TypeBlueprint, name string, static bool) (*FunctionBlueprint, bool) {
	if t.Parent.Kind != types.KindActual {
		return nil, false
	}
	return r.FindMethod(t.Parent.ID, name, static)
}

// AddRetain gives type id its system-visible __retain method unless the
// type declares one itself or carries no data. The autogenerated body
// bumps the object's reference count.
func (r *Registry) AddRetain(id int) {
	t := r.Types[id]
	if t.Category == CategoryEnum || r.Erased(id) || (t.Builtin && t.Storage != StoragePointer) {
		return
	}
	if fid, ok := t.Methods[RetainName]; ok {
		t.Retain = fid
		return
	}
	if anc, ok := r.inherited(t, RetainName, false); ok && !anc.Autogenerated {
		t.Retain = anc.ID
		return
	}

	loc := t.Loc
	loc.Internal = true
	self := &ir.Var{Name: "self", Type: t.SelfType(), Param: 0}
	f := &FunctionBlueprint{
		Name:          RetainName,
		Vis:           symbols.System,
		Loc:           loc,
		Return:        types.Void,
		Autogenerated: true,
		Body: ir.Of(types.Void,
			&ir.LocalGet{Var: self},
			&ir.Raw{Text: "call $lotus_retain"},
		),
	}
	if r.AddMethod(id, f) {
		t.Retain = f.ID
	}
}
