package sema

import (
	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/types"
)

// ifExpr lowers a conditional. With an else branch:
//
//	block (result T)
//	  block
//	    <cond> ! br_if 0
//	    <then> br 1
//	  end
//	  <else>
//	end
//
// Without one the if is a statement and must not be used as a value.
func (b *builder) ifExpr(n *compiler.IfExpr, used bool) *ir.Seq {
	d := b.depth
	defer func() { b.depth = d }()

	if n.Else == nil {
		b.depth = d + 1
		cond := b.condition(n.Cond)
		then := b.block(n.Then, false)
		if used {
			what := "a value"
			if !b.ret.IsVoid() {
				what = b.c.format(b.ret)
			}
			b.errorf(diag.TypeMismatch, n, "missing `else`: an `if` without `else` cannot produce %s", what)
			return ir.Failed()
		}
		b.discard(then)
		cond.Emit(&ir.Unary{Op: "!", Type: cond.Type}, &ir.JumpIf{Depth: 0})
		return nest(types.Void, cond, then)
	}

	b.depth = d + 2
	cond := b.condition(n.Cond)
	then := b.block(n.Then, used)
	b.depth = d + 1
	els := b.expr(n.Else, used)

	result := types.Void
	if used {
		var ok bool
		result, ok = b.merge(n, []*ir.Seq{then, els})
		if !ok {
			gather(cond, then, els)
			return ir.Failed()
		}
	} else {
		b.discard(then)
		b.discard(els)
	}

	diverges := then.Diverges && els.Diverges
	cond.Emit(&ir.Unary{Op: "!", Type: cond.Type}, &ir.JumpIf{Depth: 0})
	then.Emit(&ir.Jump{Depth: 1})
	inner := nest(types.Void, cond, then)
	out := nest(result, inner, els)
	out.Diverges = diverges
	return out
}

// merge finds the type shared by branches that produce a value. Branches
// that never complete do not take part; when none completes the result is
// the enclosing function's return type.
func (b *builder) merge(n compiler.Node, branches []*ir.Seq) (types.Type, bool) {
	result := types.Undefined
	seen := false
	for _, br := range branches {
		if br.Diverges {
			continue
		}
		if !seen {
			result, seen = br.Type, true
			continue
		}
		common, ok := result.CommonType(b.c.reg, br.Type)
		if !ok {
			b.errorf(diag.TypeMismatch, n, "branches have incompatible types %s and %s", b.c.format(result), b.c.format(br.Type))
			return types.Undefined, false
		}
		result = common
	}
	if !seen {
		return b.ret, true
	}
	return result, true
}

// match lowers
//
//	block (result T)
//	  <value> local.set tmp
//	  block                       ; one per arm
//	    local.get tmp <pattern> != br_if 0
//	    <body> br 1
//	  end
//	  <default body> | unreachable
//	end
func (b *builder) match(n *compiler.MatchExpr, used bool) *ir.Seq {
	d := b.depth
	defer func() { b.depth = d }()

	b.depth = d + 1
	value := b.expr(n.Value, true)
	vt := value.Type
	valid := vt.IsUndefined() || b.matchable(vt)
	if !valid {
		b.errorf(diag.TypeMismatch, n.Value, "cannot match on %s", b.c.format(vt))
	}

	tmp := b.temp("match", vt)
	head := value
	head.Declare(tmp)
	head.Emit(&ir.LocalSet{Var: tmp})

	var arms, bodies []*ir.Seq
	var fallback *ir.Seq
	for _, arm := range n.Arms {
		if fallback != nil {
			b.errorf(diag.Generic, arm.Body, "unreachable arm after `_`")
		}
		if arm.Pattern == nil {
			b.depth = d + 1
			fallback = b.expr(arm.Body, used)
			bodies = append(bodies, fallback)
			continue
		}

		b.depth = d + 2
		pat := b.pattern(arm.Pattern, vt)
		body := b.expr(arm.Body, used)
		bodies = append(bodies, body)

		test := ir.Of(types.Void, &ir.LocalGet{Var: tmp})
		test.Append(pat)
		test.Emit(&ir.Binary{Op: "!=", Type: vt}, &ir.JumpIf{Depth: 0})
		arms = append(arms, test, body)
	}
	b.depth = d + 1

	result := types.Void
	if used {
		var ok bool
		if result, ok = b.merge(n, bodies); !ok {
			valid = false
		}
	} else {
		for _, body := range bodies {
			b.discard(body)
		}
	}
	if !valid || vt.IsUndefined() {
		return ir.Failed()
	}

	parts := []*ir.Seq{head}
	for i := 0; i < len(arms); i += 2 {
		arms[i+1].Emit(&ir.Jump{Depth: 1})
		parts = append(parts, nest(types.Void, arms[i], arms[i+1]))
	}
	diverges := true
	for _, body := range bodies {
		diverges = diverges && body.Diverges
	}
	if fallback != nil {
		parts = append(parts, fallback)
	} else {
		parts = append(parts, ir.Of(types.Void, &ir.Unreachable{}))
		if len(bodies) == 0 {
			diverges = true
		}
	}
	out := nest(result, parts...)
	out.Diverges = diverges
	return out
}

// matchable reports whether values of t can be compared against constant
// patterns.
func (b *builder) matchable(t types.Type) bool {
	reg := b.c.reg
	if reg.IsBuiltinValue(t) || t.Is(reg.Builtin.String) {
		return true
	}
	bp := reg.Type(t.ID)
	return t.Kind == types.KindActual && bp != nil && bp.Category == blueprint.CategoryEnum
}

// pattern lowers a match pattern: a literal or an enum variant.
func (b *builder) pattern(e compiler.Expr, vt types.Type) *ir.Seq {
	switch p := e.(type) {
	case *compiler.IntLiteral, *compiler.FloatLiteral, *compiler.StringLiteral, *compiler.BoolLiteral, *compiler.StaticExpr:
	case *compiler.UnaryExpr:
		if _, ok := p.Operand.(*compiler.IntLiteral); !ok || p.Op != "-" {
			if _, ok := p.Operand.(*compiler.FloatLiteral); !ok || p.Op != "-" {
				b.errorf(diag.Generic, e, "match patterns must be literals or enum variants")
				return ir.Failed()
			}
		}
	default:
		b.errorf(diag.Generic, e, "match patterns must be literals or enum variants")
		return ir.Failed()
	}
	seq := b.expr(e, true)
	if !seq.Type.IsAssignableTo(b.c.reg, vt) && !vt.IsAssignableTo(b.c.reg, seq.Type) {
		b.errorf(diag.TypeMismatch, e, "pattern of type %s cannot match %s", b.c.format(seq.Type), b.c.format(vt))
		seq.Type = types.Undefined
	}
	return seq
}
