package sema

import (
	"strings"

	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/types"
)

// assign lowers `target = value` and the compound forms. A compound
// assignment computes `<old> op value` with the read of the old value left
// as a placeholder, then splices in a read that reuses the target's
// already evaluated receiver and index:
//
//	local:  <old> <value> op local.set v
//	env:    env.addr <old> <value> op env.store k
//	field:  <recv> local.tee r  local.get r field.get  <value> op field.set
//	index:  <arr> local.tee a <idx> local.tee i  local.get a local.get i array.get  <value> op array.set
func (b *builder) assign(s *compiler.AssignStmt) *ir.Seq {
	switch t := s.Target.(type) {
	case *compiler.Ident:
		ref, ok := b.lookup(t.Name)
		if !ok {
			b.expr(s.Value, true)
			b.errorf(diag.UndefinedSymbol, t, "undefined variable `%s`", t.Name)
			return ir.Failed()
		}
		if t.Name == "self" {
			break
		}
		return b.assignVar(ref, s)
	case *compiler.SelfExpr:
	case *compiler.FieldExpr:
		return b.assignField(t, s)
	case *compiler.IndexExpr:
		return b.assignIndex(t, s)
	default:
		b.expr(s.Value, true)
		b.errorf(diag.Generic, s.Target, "cannot assign to this expression")
		return ir.Failed()
	}
	b.expr(s.Value, true)
	b.errorf(diag.Generic, s.Target, "cannot assign to `self`")
	return ir.Failed()
}

// operand lowers the right-hand side for a target of type target. For a
// compound assignment the result begins with placeholder old.
func (b *builder) operand(s *compiler.AssignStmt, target types.Type) (seq *ir.Seq, old int, ok bool) {
	value := b.expr(s.Value, true)
	if s.Op == "=" {
		if target.IsUndefined() || value.Type.IsUndefined() {
			return value, 0, false
		}
		return value, 0, b.expectAssignable(value.Type, target, s.Value)
	}

	op := strings.TrimSuffix(s.Op, "=")
	result, ok := b.arith(op, target, value.Type, s)
	if !ok {
		return value, 0, false
	}
	if !b.expectAssignable(result, target, s) {
		return value, 0, false
	}
	old = b.placeholder()
	seq = ir.Of(result, &ir.Placeholder{ID: old})
	seq.Append(value)
	seq.Emit(&ir.Binary{Op: op, Type: target})
	return seq, old, true
}

func (b *builder) assignVar(ref varRef, s *compiler.AssignStmt) *ir.Seq {
	value, old, ok := b.operand(s, ref.v.Type)
	if !ok {
		return ir.Failed()
	}
	if old != 0 {
		b.fill(value, old, b.read(ref), s)
	}
	if !ref.env {
		value.Emit(&ir.LocalSet{Var: ref.v})
		value.Type = types.Void
		return value
	}
	seq := ir.Of(types.Void, &ir.EnvAddr{})
	seq.Append(value)
	seq.Emit(&ir.EnvStore{Key: ref.key, Type: ref.v.Type})
	seq.Type = types.Void
	return seq
}

func (b *builder) assignField(t *compiler.FieldExpr, s *compiler.AssignStmt) *ir.Seq {
	recv := b.expr(t.Receiver, true)
	rt := recv.Type
	f, ft, ok := b.lookupField(rt, t.Name, t)
	if !ok {
		b.expr(s.Value, true)
		return ir.Failed()
	}
	value, old, ok := b.operand(s, ft)
	if !ok {
		return ir.Failed()
	}
	if old != 0 {
		tmp := b.temp("recv", rt)
		recv.Declare(tmp)
		recv.Emit(&ir.LocalTee{Var: tmp})
		b.fill(value, old, ir.Of(ft, &ir.LocalGet{Var: tmp}, &ir.FieldGet{Owner: rt, Field: f.Slot, Type: ft}), s)
	}
	recv.Append(value)
	recv.Emit(&ir.FieldSet{Owner: rt, Field: f.Slot, Type: ft})
	recv.Type = types.Void
	return recv
}

func (b *builder) assignIndex(t *compiler.IndexExpr, s *compiler.AssignStmt) *ir.Seq {
	arr := b.expr(t.Receiver, true)
	idx := b.indexOperand(t.Index)
	elem, ok := b.elemType(arr.Type, t.Receiver)
	if !ok {
		b.expr(s.Value, true)
		return ir.Failed()
	}
	value, old, ok := b.operand(s, elem)
	if !ok {
		return ir.Failed()
	}
	if old != 0 {
		a := b.temp("arr", arr.Type)
		i := b.temp("idx", idx.Type)
		arr.Declare(a)
		arr.Emit(&ir.LocalTee{Var: a})
		idx.Declare(i)
		idx.Emit(&ir.LocalTee{Var: i})
		b.fill(value, old, ir.Of(elem, &ir.LocalGet{Var: a}, &ir.LocalGet{Var: i}, &ir.ArrayGet{Elem: elem}), s)
	}
	arr.Append(idx)
	arr.Append(value)
	arr.Emit(&ir.ArraySet{Elem: elem})
	arr.Type = types.Void
	return arr
}
