package sema

import (
	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/symbols"
	"github.com/chazu/lotus/compiler/types"
)

// call dispatches on the shape of the callee: a closure variable, a free
// function, a method of a receiver, a static method, or any expression of
// function type.
func (b *builder) call(n *compiler.CallExpr) *ir.Seq {
	reg := b.c.reg
	switch callee := n.Callee.(type) {
	case *compiler.Ident:
		if ref, ok := b.lookup(callee.Name); ok {
			return b.callValue(b.read(ref), n)
		}
		entry, ok := reg.FuncSymbols.Lookup(callee.Name, b.sc.loc)
		if !ok {
			if reg.FuncSymbols.Hidden(callee.Name, b.sc.loc) {
				b.errorf(diag.UndefinedSymbol, callee, "function `%s` is not visible here", callee.Name)
			} else {
				b.errorf(diag.UndefinedSymbol, callee, "undefined function `%s`", callee.Name)
			}
			b.args(n.Args)
			return ir.Failed()
		}
		f := reg.Funcs[entry.Value]
		return b.invoke(f, nil, types.Void, n)

	case *compiler.FieldExpr:
		recv := b.expr(callee.Receiver, true)
		return b.method(recv, callee, n)

	case *compiler.StaticExpr:
		t := b.c.resolveType(callee.Type, b.sc)
		return b.static(t, callee, n)
	}
	return b.callValue(b.expr(n.Callee, true), n)
}

func (b *builder) args(es []compiler.Expr) []*ir.Seq {
	out := make([]*ir.Seq, len(es))
	for i, e := range es {
		out[i] = b.expr(e, true)
	}
	return out
}

// method lowers recv.name(args).
func (b *builder) method(recv *ir.Seq, callee *compiler.FieldExpr, n *compiler.CallExpr) *ir.Seq {
	reg := b.c.reg
	rt := recv.Type
	switch rt.Kind {
	case types.KindUndefined:
		b.args(n.Args)
		return ir.Failed()

	case types.KindActual:
		f, ok := reg.FindMethod(rt.ID, callee.Name, false)
		if !ok {
			if fld, ok := reg.FindField(rt.ID, callee.Name); ok {
				if ft := fld.Type.ReplaceParameters(reg, rt, nil); ft.IsFunction() {
					recv.Emit(&ir.FieldGet{Owner: rt, Field: fld.Slot, Type: ft})
					recv.Type = ft
					return b.callValue(recv, n)
				}
			}
			if _, ok := reg.FindMethod(rt.ID, callee.Name, true); ok {
				b.errorf(diag.Generic, callee, "`%s` is a static method of %s; call it as `%s::%s`",
					callee.Name, b.c.format(rt), reg.Types[rt.ID].Name, callee.Name)
			} else {
				b.errorf(diag.UndefinedSymbol, callee, "%s has no method `%s`", b.c.format(rt), callee.Name)
			}
			b.args(n.Args)
			return ir.Failed()
		}
		if !b.visible(f, callee) {
			b.args(n.Args)
			return ir.Failed()
		}
		view, _ := types.AsAncestor(reg, rt, f.Owner)
		if f.Dynamic {
			return b.virtual(f, recv, view, n)
		}
		return b.invoke(f, recv, view, n)

	case types.KindTypeParam, types.KindFuncParam:
		f, ok := reg.FindRequirement(rt, callee.Name, false)
		if !ok {
			b.errorf(diag.UndefinedSymbol, callee, "%s has no method `%s` in its bounds", b.c.format(rt), callee.Name)
			b.args(n.Args)
			return ir.Failed()
		}
		return b.invoke(f, recv, rt, n)
	}
	b.errorf(diag.UndefinedSymbol, callee, "%s has no method `%s`", b.c.format(rt), callee.Name)
	b.args(n.Args)
	return ir.Failed()
}

// static lowers Type::name(args).
func (b *builder) static(t types.Type, callee *compiler.StaticExpr, n *compiler.CallExpr) *ir.Seq {
	reg := b.c.reg
	switch t.Kind {
	case types.KindUndefined:
		b.args(n.Args)
		return ir.Failed()

	case types.KindActual:
		f, ok := reg.FindMethod(t.ID, callee.Name, true)
		if !ok {
			_, variant := reg.VariantIndex(t.ID, callee.Name)
			_, instance := reg.FindMethod(t.ID, callee.Name, false)
			switch {
			case variant:
				b.errorf(diag.Generic, callee, "`%s::%s` is a variant, not a function", b.c.format(t), callee.Name)
			case instance:
				b.errorf(diag.Generic, callee, "`%s` is an instance method of %s", callee.Name, b.c.format(t))
			default:
				b.errorf(diag.UndefinedSymbol, callee, "%s has no static method `%s`", b.c.format(t), callee.Name)
			}
			b.args(n.Args)
			return ir.Failed()
		}
		if !b.visible(f, callee) {
			b.args(n.Args)
			return ir.Failed()
		}
		view, _ := types.AsAncestor(reg, t, f.Owner)
		return b.invoke(f, nil, view, n)

	case types.KindTypeParam, types.KindFuncParam:
		f, ok := reg.FindRequirement(t, callee.Name, true)
		if !ok {
			b.errorf(diag.UndefinedSymbol, callee, "%s has no static method `%s` in its bounds", b.c.format(t), callee.Name)
			b.args(n.Args)
			return ir.Failed()
		}
		return b.invoke(f, nil, t, n)
	}
	b.errorf(diag.UndefinedSymbol, callee, "%s has no static method `%s`", b.c.format(t), callee.Name)
	b.args(n.Args)
	return ir.Failed()
}

func (b *builder) visible(f *blueprint.FunctionBlueprint, n compiler.Node) bool {
	if symbols.Visible(f.Vis, f.Loc, b.sc.loc) {
		return true
	}
	b.errorf(diag.UndefinedSymbol, n, "method `%s` of `%s` is not visible here", f.Name, b.c.reg.Types[f.Owner].Name)
	return false
}

// bound is a checked call: the callee's generic arguments, its parameter
// types and return type as seen from the call site, and the lowered
// arguments.
type bound struct {
	fnArgs []types.Type
	ret    types.Type
	args   []*ir.Seq
}

// bindCall checks the arguments of a call to f through view, inferring the
// generic arguments the call does not spell out.
func (b *builder) bindCall(f *blueprint.FunctionBlueprint, view types.Type, n *compiler.CallExpr) (bound, bool) {
	reg := b.c.reg
	args := b.args(n.Args)
	if len(args) != len(f.Params) {
		b.errorf(diag.Generic, n, "`%s` expects %d argument(s), got %d", f.Name, len(f.Params), len(args))
		return bound{}, false
	}

	var fnArgs []types.Type
	switch {
	case len(n.TypeArgs) > 0:
		if len(n.TypeArgs) != len(f.Generics) {
			b.errorf(diag.Generic, n, "`%s` expects %d type argument(s), got %d", f.Name, len(f.Generics), len(n.TypeArgs))
			return bound{}, false
		}
		fnArgs = make([]types.Type, len(n.TypeArgs))
		for i, ref := range n.TypeArgs {
			fnArgs[i] = b.c.resolveType(ref, b.sc)
		}
	case len(f.Generics) > 0:
		bindings := types.NewBindings(f.ID, len(f.Generics))
		for i, p := range f.Params {
			param := p.Type.ReplaceParameters(reg, view, nil)
			if !types.Infer(reg, param, args[i].Type, bindings) {
				b.errorf(diag.TypeMismatch, n.Args[i], "conflicting types for a type argument of `%s`: %s", f.Name, b.c.format(args[i].Type))
				return bound{}, false
			}
		}
		if !bindings.Complete() {
			for i, set := range bindings.Set {
				if !set {
					b.errorf(diag.Generic, n, "cannot infer type argument `%s` of `%s`; pass it with `::<...>`", f.Generics[i].Name, f.Name)
					break
				}
			}
			return bound{}, false
		}
		fnArgs = bindings.Types
	}
	if !b.c.checkBounds(f.Generics, fnArgs, b.pos(n), f.Name) {
		return bound{}, false
	}

	ok := true
	for i, p := range f.Params {
		want := p.Type.ReplaceParameters(reg, view, fnArgs)
		if !b.expectAssignable(args[i].Type, want, n.Args[i]) {
			ok = false
		}
	}
	return bound{fnArgs: fnArgs, ret: f.Return.ReplaceParameters(reg, view, fnArgs), args: args}, ok
}

// invoke lowers a statically bound call. For an interface requirement the
// receiver is also kept in a temporary so the emitter can dispatch through
// its vtable once the concrete implementation turns out to be dynamic.
func (b *builder) invoke(f *blueprint.FunctionBlueprint, recv *ir.Seq, view types.Type, n *compiler.CallExpr) *ir.Seq {
	bd, ok := b.bindCall(f, view, n)
	if !ok {
		return ir.Failed()
	}
	b.reach(f.ID)

	seq := ir.Empty()
	call := &ir.Call{Func: f.ID, This: view, Args: bd.fnArgs}
	if recv != nil {
		seq.Append(recv)
		if f.Interface != blueprint.None {
			tmp := b.temp("recv", view)
			seq.Declare(tmp)
			seq.Emit(&ir.LocalTee{Var: tmp})
			call.Receiver = tmp
		}
	}
	for _, a := range bd.args {
		seq.Append(a)
	}
	seq.Emit(call)
	seq.Type = bd.ret
	return seq
}

// virtual lowers a call of a dynamic method through the receiver's vtable:
//
//	<recv> local.tee tmp
//	<args>
//	local.get tmp vtable.base const idx +
//	call_indirect fn(recv, args) -> ret
func (b *builder) virtual(f *blueprint.FunctionBlueprint, recv *ir.Seq, view types.Type, n *compiler.CallExpr) *ir.Seq {
	bd, ok := b.bindCall(f, view, n)
	if !ok {
		return ir.Failed()
	}
	b.reach(f.ID)

	tmp := b.temp("recv", view)
	seq := recv
	seq.Declare(tmp)
	seq.Emit(&ir.LocalTee{Var: tmp})
	params := []types.Type{view}
	for i, a := range bd.args {
		params = append(params, f.Params[i].Type.ReplaceParameters(b.c.reg, view, nil))
		seq.Append(a)
	}
	seq.Emit(
		&ir.LocalGet{Var: tmp},
		&ir.VTableBase{},
		&ir.ConstInt{Value: int64(f.DispatchIndex)},
		&ir.Binary{Op: "+", Type: types.Actual(b.c.reg.Builtin.Int)},
		&ir.CallIndirect{Sig: types.Function(params, bd.ret)},
	)
	seq.Type = bd.ret
	return seq
}

// callValue calls a closure record:
//
//	<callee> local.set tmp
//	local.get tmp closure.env
//	<args>
//	local.get tmp closure.func
//	call_indirect (env, args) -> ret
func (b *builder) callValue(callee *ir.Seq, n *compiler.CallExpr) *ir.Seq {
	ft := callee.Type
	args := b.args(n.Args)
	if ft.IsUndefined() {
		return ir.Failed()
	}
	if !ft.IsFunction() {
		b.errorf(diag.TypeMismatch, n.Callee, "%s is not callable", b.c.format(ft))
		return ir.Failed()
	}
	if len(n.TypeArgs) > 0 {
		b.errorf(diag.Generic, n, "closures cannot take type arguments")
		return ir.Failed()
	}
	if len(args) != len(ft.Args) {
		b.errorf(diag.Generic, n, "closure expects %d argument(s), got %d", len(ft.Args), len(args))
		return ir.Failed()
	}
	ok := true
	for i, a := range args {
		if !b.expectAssignable(a.Type, ft.Args[i], n.Args[i]) {
			ok = false
		}
	}
	if !ok {
		return ir.Failed()
	}

	tmp := b.temp("fn", ft)
	seq := callee
	seq.Declare(tmp)
	seq.Emit(&ir.LocalSet{Var: tmp}, &ir.LocalGet{Var: tmp}, &ir.ClosureEnv{})
	for _, a := range args {
		seq.Append(a)
	}
	seq.Emit(&ir.LocalGet{Var: tmp}, &ir.ClosureFunc{}, &ir.CallIndirect{Sig: ft, Env: true})
	seq.Type = ft.Return()
	return seq
}
