package blueprint

import (
	"fmt"
	"slices"

	"github.com/chazu/lotus/compiler/types"
)

// Satisfies checks t against interface iface structurally: every
// associated type must be defined and every required method present with
// the same signature once Self is replaced by t. On failure the returned
// string says what is missing.
func (r *Registry) Satisfies(t types.Type, iface int) (string, bool) {
	i := r.Interface(iface)
	if i == nil || t.IsUndefined() {
		return "", true
	}

	switch t.Kind {
	case types.KindTypeParam, types.KindFuncParam:
		if slices.Contains(r.Bounds(t), iface) {
			return "", true
		}
		return fmt.Sprintf("%s is not bound by `%s`", r.Format(t), i.Name), false
	case types.KindActual:
	default:
		return fmt.Sprintf("%s cannot implement an interface", r.Format(t)), false
	}

	for _, name := range i.AssocNames {
		if _, ok := r.AssociatedType(t, name); !ok {
			return fmt.Sprintf("%s does not define associated type `%s`", r.Format(t), name), false
		}
	}
	for _, fid := range i.Order {
		req := r.Funcs[fid]
		impl, ok := r.FindMethod(t.ID, req.Name, req.Static)
		if !ok {
			kind := "method"
			if req.Static {
				kind = "static method"
			}
			return fmt.Sprintf("%s has no %s `%s`", r.Format(t), kind, req.Name), false
		}
		if len(impl.Generics) != len(req.Generics) {
			return fmt.Sprintf("%s.%s takes %d type parameter(s), want %d", r.Format(t), req.Name, len(impl.Generics), len(req.Generics)), false
		}
		// the implementation's own parameters are compared as the requirement's
		reqArgs := make([]types.Type, len(req.Generics))
		for i := range reqArgs {
			reqArgs[i] = types.FuncParam(req.ID, i)
		}
		want := req.Signature().ReplaceParameters(r, t, nil)
		view, _ := types.AsAncestor(r, t, impl.Owner)
		have := impl.Signature().ReplaceParameters(r, view, reqArgs)
		if !have.Equal(want) {
			return fmt.Sprintf("%s.%s has signature %s, want %s", r.Format(t), req.Name, r.Format(have), r.Format(want)), false
		}
	}
	return "", true
}

// FindRequirement looks a method up in the interfaces bounding a generic
// parameter.
func (r *Registry) FindRequirement(t types.Type, name string, static bool) (*FunctionBlueprint, bool) {
	for _, iid := range r.Bounds(t) {
		if fid, ok := r.Interfaces[iid].Methods[name]; ok {
			if f := r.Funcs[fid]; f.Static == static {
				return f, true
			}
		}
	}
	return nil, false
}
