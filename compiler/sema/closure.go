package sema

import (
	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/symbols"
	"github.com/chazu/lotus/compiler/types"
)

// closure synthesizes a function for an anonymous function literal and
// lowers its creation:
//
//	env.alloc n local.set env
//	local.get env <captured value> env.store k    ; per capture
//	local.get env call closure#n.retain           ; when a capture retains
//	local.get env closure.new
//
// Captured variables are copied into the environment when the closure is
// created. Nested closures capture through every closure in between.
func (b *builder) closure(n *compiler.ClosureExpr) *ir.Seq {
	c := b.c
	reg := c.reg
	c.nextClosure++
	name := closureName(c.nextClosure)
	loc := b.sc.loc
	loc.Pos = b.pos(n)

	params := make([]blueprint.Param, len(n.Params))
	for i, p := range n.Params {
		params[i] = blueprint.Param{Name: p.Name, Type: c.resolveType(p.Type, b.sc)}
	}
	fn := reg.DeclareSynthetic(&blueprint.FunctionBlueprint{
		Name:    name,
		Loc:     loc,
		Params:  params,
		Return:  c.resolveType(n.Return, b.sc),
		Env:     true,
		Closure: blueprint.NewClosure(b.fn.ID),
	}, name)
	b.reach(fn.ID)

	child := c.newBuilder(fn, b.sc, b, b.res)
	for i, p := range fn.Params {
		child.bind(p.Name, c.newVar(p.Name, p.Type, i+1))
	}
	fn.Body = child.functionBody(n.Body, n)

	retain, retains := b.retainCompanion(fn, name, loc)

	env := b.temp("env", types.Actual(reg.Builtin.Int))
	seq := ir.Of(types.Void, &ir.EnvAlloc{Size: len(fn.Closure.Order)}, &ir.LocalSet{Var: env})
	seq.Declare(env)
	for k, v := range fn.Closure.Order {
		seq.Emit(&ir.LocalGet{Var: env})
		seq.Append(b.readOwn(v))
		seq.Emit(&ir.EnvStore{Key: k, Type: v.Type})
	}
	this, args := c.contextThis(b.sc), c.contextArgs(b.sc)
	if retains {
		seq.Emit(
			&ir.LocalGet{Var: env},
			&ir.Call{Func: retain, This: this, Args: args},
		)
	}
	seq.Emit(
		&ir.LocalGet{Var: env},
		&ir.ClosureNew{Func: fn.ID, Retain: retain, This: this, Args: args},
	)
	seq.Type = fn.Signature()
	return seq
}

// retainCompanion synthesizes the function that retains every captured
// value of closure fn that has retain semantics. Every closure gets one;
// it reports whether the body does anything.
func (b *builder) retainCompanion(fn *blueprint.FunctionBlueprint, name string, loc symbols.Location) (int, bool) {
	reg := b.c.reg
	body := ir.Empty()
	for k, v := range fn.Closure.Order {
		if !reg.HasRetain(v.Type) {
			continue
		}
		body.Emit(&ir.EnvGet{Key: k, Type: v.Type}, &ir.Retain{Type: v.Type})
	}

	companion := reg.DeclareSynthetic(&blueprint.FunctionBlueprint{
		Name:   name + ".retain",
		Loc:    loc,
		Return: types.Void,
		Env:    true,
		Body:   body,
	}, name+".retain")
	fn.Closure.Retain = companion.ID
	b.reach(companion.ID)
	return companion.ID, len(body.Instrs) > 0
}
