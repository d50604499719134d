package types

// Env supplies what the type model needs to know about blueprints.
type Env interface {
	// Parent returns the direct ancestor of the actual type t, with t's
	// arguments substituted into it.
	Parent(t Type) (Type, bool)

	// AssociatedType returns the value of t::name for an actual type t,
	// already substituted through t's arguments.
	AssociatedType(t Type, name string) (Type, bool)

	TypeName(id int) string
	TypeParamName(owner, index int) string
	FuncParamName(owner, index int) string
}

// maxChain bounds ancestor walks. Circular chains are rejected when they are
// declared; this only keeps a broken registry from hanging the compiler.
const maxChain = 256

// Ancestors returns t followed by its ancestors, nearest first.
func Ancestors(env Env, t Type) []Type {
	out := []Type{t}
	cur := t
	for i := 0; i < maxChain && cur.Kind == KindActual; i++ {
		p, ok := env.Parent(cur)
		if !ok {
			break
		}
		out = append(out, p)
		cur = p
	}
	return out
}

// AsAncestor walks t's ancestor chain and returns the entry whose blueprint
// is id.
func AsAncestor(env Env, t Type, id int) (Type, bool) {
	cur := t
	for i := 0; i < maxChain && cur.Kind == KindActual; i++ {
		if cur.ID == id {
			return cur, true
		}
		p, ok := env.Parent(cur)
		if !ok {
			break
		}
		cur = p
	}
	return Type{}, false
}

// IsAssignableTo reports whether a value of type t can be stored where
// target is expected.
//
// Undefined is assignable both ways. An actual type is assignable to any
// ancestor (including itself) whose arguments are pairwise equal: arguments
// are invariant because fields can be written through the target type.
// Function types are contravariant in their arguments and covariant in
// their return. Everything else requires equality.
func (t Type) IsAssignableTo(env Env, target Type) bool {
	if t.Kind == KindUndefined || target.Kind == KindUndefined {
		return true
	}
	switch {
	case t.Kind == KindActual && target.Kind == KindActual:
		anc, ok := AsAncestor(env, t, target.ID)
		if !ok {
			return false
		}
		return equalListLenient(anc.Args, target.Args)

	case t.Kind == KindFunction && target.Kind == KindFunction:
		if len(t.Args) != len(target.Args) {
			return false
		}
		for i := range t.Args {
			if !target.Args[i].IsAssignableTo(env, t.Args[i]) {
				return false
			}
		}
		return t.Return().IsAssignableTo(env, target.Return())
	}
	return t.Equal(target)
}

// equalListLenient is pairwise equality where Undefined matches anything.
func equalListLenient(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ContainsUndefined() || b[i].ContainsUndefined() {
			continue
		}
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// CommonType returns a type both t and o are assignable to: the more general
// of the two if one is assignable to the other, otherwise the nearest
// ancestor of t that o is assignable to. It reports false when there is
// none.
func (t Type) CommonType(env Env, o Type) (Type, bool) {
	if t.Kind == KindUndefined {
		return o, true
	}
	if o.Kind == KindUndefined {
		return t, true
	}
	if o.IsAssignableTo(env, t) {
		return t, true
	}
	if t.IsAssignableTo(env, o) {
		return o, true
	}
	if t.Kind == KindActual {
		for _, a := range Ancestors(env, t)[1:] {
			if o.IsAssignableTo(env, a) {
				return a, true
			}
		}
	}
	return Undefined, false
}

// ReplaceParameters substitutes, throughout t, every type parameter by the
// matching argument of this (or of this's ancestor that owns the
// parameter), every function parameter by fnArgs, and Self by this.
// Associated types whose root becomes actual are collapsed through env.
//
// A Void this leaves type parameters and Self in place.
func (t Type) ReplaceParameters(env Env, this Type, fnArgs []Type) Type {
	switch t.Kind {
	case KindTypeParam:
		if this.Kind != KindActual {
			return t
		}
		owner, ok := AsAncestor(env, this, t.ID)
		if !ok || t.Index >= len(owner.Args) {
			return t
		}
		return owner.Args[t.Index]

	case KindFuncParam:
		if t.Index < len(fnArgs) {
			return fnArgs[t.Index]
		}
		return t

	case KindThis:
		if this.Kind == KindVoid {
			return t
		}
		return this

	case KindActual:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.ReplaceParameters(env, this, fnArgs)
		}
		return Actual(t.ID, args...)

	case KindFunction:
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.ReplaceParameters(env, this, fnArgs)
		}
		return Function(args, t.Return().ReplaceParameters(env, this, fnArgs))

	case KindAssociated:
		root := t.Root().ReplaceParameters(env, this, fnArgs)
		if root.Kind == KindActual {
			if v, ok := env.AssociatedType(root, t.Name); ok {
				return v
			}
			return Undefined
		}
		return Associated(root, t.Name)
	}
	return t
}

// Bindings collects inferred generic arguments of one function.
type Bindings struct {
	Func  int
	Types []Type
	Set   []bool
}

// NewBindings creates empty bindings for a function with n generic
// parameters.
func NewBindings(fn, n int) *Bindings {
	return &Bindings{Func: fn, Types: make([]Type, n), Set: make([]bool, n)}
}

// Complete reports whether every parameter was inferred.
func (b *Bindings) Complete() bool {
	for _, s := range b.Set {
		if !s {
			return false
		}
	}
	return true
}

// Bind fixes parameter i explicitly (turbofish syntax).
func (b *Bindings) Bind(i int, t Type) {
	b.Types[i] = t
	b.Set[i] = true
}

// Infer unifies the declared parameter type param with the argument type
// arg, recording bindings for the function parameters of b.Func. It
// reports false on a conflict.
func Infer(env Env, param, arg Type, b *Bindings) bool {
	if arg.Kind == KindUndefined {
		return true
	}
	switch param.Kind {
	case KindFuncParam:
		if param.ID != b.Func || param.Index >= len(b.Types) {
			return true
		}
		if !b.Set[param.Index] {
			b.Bind(param.Index, arg)
			return true
		}
		common, ok := b.Types[param.Index].CommonType(env, arg)
		if !ok {
			return false
		}
		b.Types[param.Index] = common
		return true

	case KindActual:
		if arg.Kind != KindActual {
			return true
		}
		anc, ok := AsAncestor(env, arg, param.ID)
		if !ok || len(anc.Args) != len(param.Args) {
			return true
		}
		for i := range param.Args {
			if !Infer(env, param.Args[i], anc.Args[i], b) {
				return false
			}
		}
		return true

	case KindFunction:
		if arg.Kind != KindFunction || len(arg.Args) != len(param.Args) {
			return true
		}
		for i := range param.Args {
			if !Infer(env, param.Args[i], arg.Args[i], b) {
				return false
			}
		}
		return Infer(env, param.Return(), arg.Return(), b)
	}
	return true
}
