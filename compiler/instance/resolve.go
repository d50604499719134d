package instance

import (
	"fmt"

	"github.com/chazu/lotus/compiler/types"
)

// Context is the owner view and generic arguments of one function
// instance. Every type in the IR of its body is resolved against it.
type Context struct {
	This types.Type
	Args []types.Type
}

// Resolve substitutes ctx into t and checks that the result is concrete.
// Void stays void.
func (g *Generator) Resolve(ctx Context, t types.Type) (types.Type, error) {
	r := t.ReplaceParameters(g.reg, ctx.This, ctx.Args)
	if !concrete(r) {
		return types.Undefined, fmt.Errorf("%w: %s", ErrNotConcrete, g.reg.Format(r))
	}
	return r, nil
}

// ResolveAll resolves every type of ts.
func (g *Generator) ResolveAll(ctx Context, ts []types.Type) ([]types.Type, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	out := make([]types.Type, len(ts))
	for i, t := range ts {
		r, err := g.Resolve(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// ResolveType resolves t in ctx and returns its instance.
func (g *Generator) ResolveType(ctx Context, t types.Type) (*TypeInstance, error) {
	r, err := g.Resolve(ctx, t)
	if err != nil {
		return nil, err
	}
	return g.Type(r)
}

// concrete reports whether t mentions no parameter, Self or unresolved
// associated type.
func concrete(t types.Type) bool {
	switch t.Kind {
	case types.KindVoid:
		return true
	case types.KindActual:
		for _, a := range t.Args {
			if !concrete(a) {
				return false
			}
		}
		return true
	case types.KindFunction:
		for _, a := range t.Args {
			if !concrete(a) {
				return false
			}
		}
		return concrete(t.Return())
	}
	return false
}

// depth is how deeply type arguments nest inside t.
func depth(t types.Type) int {
	d := 0
	for _, a := range t.Args {
		d = max(d, depth(a))
	}
	if t.Kind == types.KindFunction {
		d = max(d, depth(t.Return()))
	}
	if len(t.Args) > 0 || t.Kind == types.KindFunction {
		d++
	}
	return d
}
