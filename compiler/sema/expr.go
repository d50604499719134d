package sema

import (
	"math"

	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/types"
)

// expr lowers one expression. used tells block-like expressions whether
// their value is consumed; everything else always produces its value.
func (b *builder) expr(e compiler.Expr, used bool) *ir.Seq {
	reg := b.c.reg
	switch n := e.(type) {
	case *compiler.IntLiteral:
		if n.Value > math.MaxInt32 || n.Value < math.MinInt32 {
			b.errorf(diag.Generic, n, "integer literal %d does not fit in 32 bits", n.Value)
			return ir.Failed()
		}
		return ir.Of(types.Actual(reg.Builtin.Int), &ir.ConstInt{Value: n.Value})
	case *compiler.FloatLiteral:
		return ir.Of(types.Actual(reg.Builtin.Float), &ir.ConstFloat{Value: n.Value})
	case *compiler.StringLiteral:
		return ir.Of(types.Actual(reg.Builtin.String), &ir.ConstString{Value: n.Value})
	case *compiler.BoolLiteral:
		v := int64(0)
		if n.Value {
			v = 1
		}
		return ir.Of(types.Actual(reg.Builtin.Bool), &ir.ConstInt{Value: v})

	case *compiler.Ident:
		return b.ident(n)
	case *compiler.SelfExpr:
		ref, ok := b.lookup("self")
		if !ok {
			b.errorf(diag.UndefinedSymbol, n, "`self` is only valid inside instance methods")
			return ir.Failed()
		}
		return b.read(ref)

	case *compiler.FieldExpr:
		return b.field(n)
	case *compiler.StaticExpr:
		return b.variant(n)
	case *compiler.CallExpr:
		return b.call(n)
	case *compiler.BinaryExpr:
		return b.binary(n)
	case *compiler.UnaryExpr:
		return b.unary(n)
	case *compiler.NewExpr:
		return b.newExpr(n)
	case *compiler.ArrayExpr:
		return b.array(n)
	case *compiler.IndexExpr:
		return b.index(n)
	case *compiler.ClosureExpr:
		return b.closure(n)
	case *compiler.IfExpr:
		return b.ifExpr(n, used)
	case *compiler.MatchExpr:
		return b.match(n, used)
	case *compiler.Block:
		return b.block(n, used)
	}
	b.errorf(diag.Generic, e, "unsupported expression %T", e)
	return ir.Failed()
}

func (b *builder) ident(n *compiler.Ident) *ir.Seq {
	if ref, ok := b.lookup(n.Name); ok {
		return b.read(ref)
	}
	if _, ok := b.c.reg.FuncSymbols.Lookup(n.Name, b.sc.loc); ok {
		b.errorf(diag.Generic, n, "function `%s` cannot be used as a value; wrap it in a closure", n.Name)
		return ir.Failed()
	}
	b.errorf(diag.UndefinedSymbol, n, "undefined variable `%s`", n.Name)
	return ir.Failed()
}

// field lowers `receiver.name` as a read.
func (b *builder) field(n *compiler.FieldExpr) *ir.Seq {
	recv := b.expr(n.Receiver, true)
	f, t, ok := b.lookupField(recv.Type, n.Name, n)
	if !ok {
		return ir.Failed()
	}
	recv.Emit(&ir.FieldGet{Owner: recv.Type, Field: f.Slot, Type: t})
	recv.Type = t
	return recv
}

// lookupField finds field name on values of type recv and returns its type
// as seen through recv.
func (b *builder) lookupField(recv types.Type, name string, n compiler.Node) (*blueprint.Field, types.Type, bool) {
	reg := b.c.reg
	if recv.IsUndefined() {
		return nil, types.Undefined, false
	}
	if recv.Kind == types.KindActual {
		if f, ok := reg.FindField(recv.ID, name); ok {
			return f, f.Type.ReplaceParameters(reg, recv, nil), true
		}
		if _, ok := reg.FindMethod(recv.ID, name, false); ok {
			b.errorf(diag.Generic, n, "method `%s` of %s must be called", name, b.c.format(recv))
			return nil, types.Undefined, false
		}
	}
	b.errorf(diag.UndefinedSymbol, n, "%s has no field `%s`", b.c.format(recv), name)
	return nil, types.Undefined, false
}

// variant lowers `Enum::Variant` to its number.
func (b *builder) variant(n *compiler.StaticExpr) *ir.Seq {
	t := b.c.resolveType(n.Type, b.sc)
	if t.IsUndefined() {
		return ir.Failed()
	}
	if t.Kind == types.KindActual {
		if idx, ok := b.c.reg.VariantIndex(t.ID, n.Name); ok {
			return ir.Of(t, &ir.ConstInt{Value: int64(idx)})
		}
		if _, ok := b.c.reg.FindMethod(t.ID, n.Name, true); ok {
			b.errorf(diag.Generic, n, "static method `%s::%s` must be called", b.c.format(t), n.Name)
			return ir.Failed()
		}
	}
	b.errorf(diag.UndefinedSymbol, n, "%s has no variant `%s`", b.c.format(t), n.Name)
	return ir.Failed()
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// arith checks an arithmetic or comparison operator and returns the type
// it produces. Undefined operands produce Undefined without a report.
func (b *builder) arith(op string, lt, rt types.Type, n compiler.Node) (types.Type, bool) {
	reg := b.c.reg
	if lt.IsUndefined() || rt.IsUndefined() {
		return types.Undefined, false
	}
	boolT := types.Actual(reg.Builtin.Bool)
	switch op {
	case "+", "-", "*", "/", "%":
		switch {
		case !lt.Equal(rt):
		case reg.Numeric(lt) && (op != "%" || lt.Is(reg.Builtin.Int)):
			return lt, true
		case op == "+" && lt.Is(reg.Builtin.String):
			return lt, true
		}
	case "<", "<=", ">", ">=":
		if lt.Equal(rt) && reg.Numeric(lt) {
			return boolT, true
		}
	case "==", "!=":
		if common, ok := lt.CommonType(reg, rt); ok && !common.IsVoid() && !common.IsFunction() {
			return boolT, true
		}
	}
	b.errorf(diag.TypeMismatch, n, "operator `%s` cannot be applied to %s and %s", op, b.c.format(lt), b.c.format(rt))
	return types.Undefined, false
}

func (b *builder) binary(n *compiler.BinaryExpr) *ir.Seq {
	if n.Op == "&&" || n.Op == "||" {
		return b.logical(n)
	}
	left := b.expr(n.Left, true)
	right := b.expr(n.Right, true)
	lt, rt := left.Type, right.Type
	result, ok := b.arith(n.Op, lt, rt, n)
	left.Append(right)
	if !ok {
		left.Type = types.Undefined
		return left
	}
	operand := lt
	if n.Op == "==" || n.Op == "!=" {
		operand, _ = lt.CommonType(b.c.reg, rt)
	}
	left.Emit(&ir.Binary{Op: n.Op, Type: operand})
	left.Type = result
	return left
}

// logical lowers && and || without evaluating the right side when the
// left decides:
//
//	block (result bool)
//	  const 0 (1 for ||)
//	  <left> [!] br_if 0
//	  drop
//	  <right>
//	end
func (b *builder) logical(n *compiler.BinaryExpr) *ir.Seq {
	boolT := types.Actual(b.c.reg.Builtin.Bool)
	b.depth++
	left := b.condition(n.Left)
	right := b.condition(n.Right)
	b.depth--

	short := int64(0)
	if n.Op == "||" {
		short = 1
	}
	head := ir.Of(boolT, &ir.ConstInt{Value: short})
	head.Append(left)
	if n.Op == "&&" {
		head.Emit(&ir.Unary{Op: "!", Type: boolT})
	}
	head.Emit(&ir.JumpIf{Depth: 0}, &ir.Drop{Type: boolT})
	return nest(boolT, head, right)
}

func (b *builder) unary(n *compiler.UnaryExpr) *ir.Seq {
	reg := b.c.reg
	seq := b.expr(n.Operand, true)
	t := seq.Type
	if t.IsUndefined() {
		return seq
	}
	switch {
	case n.Op == "-" && reg.Numeric(t):
	case n.Op == "!" && t.Is(reg.Builtin.Bool):
	default:
		b.errorf(diag.TypeMismatch, n, "operator `%s` cannot be applied to %s", n.Op, b.c.format(t))
		seq.Type = types.Undefined
		return seq
	}
	seq.Emit(&ir.Unary{Op: n.Op, Type: t})
	return seq
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

func (b *builder) newExpr(n *compiler.NewExpr) *ir.Seq {
	reg := b.c.reg
	t := b.c.resolveType(n.Type, b.sc)
	if t.IsUndefined() {
		for _, init := range n.Inits {
			b.expr(init.Value, true)
		}
		return ir.Failed()
	}
	bp := reg.Type(t.ID)
	if t.Kind != types.KindActual || bp.Builtin || bp.Category == blueprint.CategoryEnum {
		b.errorf(diag.Generic, n, "cannot instantiate %s with `new`", b.c.format(t))
		return ir.Failed()
	}
	for _, fid := range reg.DispatchTable(bp.ID) {
		if f := reg.Func(fid); f == nil || f.Abstract {
			name := "?"
			if f != nil {
				name = f.Name
			}
			b.errorf(diag.Generic, n, "cannot instantiate `%s`: dynamic method `%s` has no body", bp.Name, name)
			return ir.Failed()
		}
	}

	obj := b.temp("new", t)
	seq := ir.Of(t, &ir.Alloc{Type: t}, &ir.LocalSet{Var: obj})
	seq.Declare(obj)
	seen := make(map[string]bool, len(n.Inits))
	for _, init := range n.Inits {
		value := b.expr(init.Value, true)
		if seen[init.Name] {
			b.errorf(diag.Generic, init.Value, "field `%s` initialized twice", init.Name)
			continue
		}
		seen[init.Name] = true
		f, ft, ok := b.lookupField(t, init.Name, init.Value)
		if !ok {
			continue
		}
		b.expectAssignable(value.Type, ft, init.Value)
		seq.Emit(&ir.LocalGet{Var: obj})
		seq.Append(value)
		seq.Emit(&ir.FieldSet{Owner: t, Field: f.Slot, Type: ft})
	}
	for _, f := range bp.Fields {
		if !seen[f.Name] {
			b.errorf(diag.Generic, n, "missing field `%s` in `new %s`", f.Name, b.c.format(t))
		}
	}
	seq.Emit(&ir.LocalGet{Var: obj})
	seq.Type = t
	return seq
}

func (b *builder) array(n *compiler.ArrayExpr) *ir.Seq {
	reg := b.c.reg
	if len(n.Elements) == 0 {
		b.errorf(diag.Generic, n, "cannot infer the element type of an empty array")
		return ir.Failed()
	}
	elems := make([]*ir.Seq, len(n.Elements))
	elem := types.Undefined
	failed := false
	for i, e := range n.Elements {
		elems[i] = b.expr(e, true)
		common, ok := elem.CommonType(reg, elems[i].Type)
		if !ok {
			b.errorf(diag.TypeMismatch, e, "array element of type %s does not match %s", b.c.format(elems[i].Type), b.c.format(elem))
			failed = true
			continue
		}
		elem = common
	}
	if failed || elem.IsUndefined() {
		return ir.Failed()
	}
	if elem.IsVoid() {
		b.errorf(diag.TypeMismatch, n, "array elements cannot be void")
		return ir.Failed()
	}

	arrT := reg.ArrayOf(elem)
	arr := b.temp("array", arrT)
	seq := ir.Of(arrT, &ir.ArrayNew{Elem: elem, Len: len(elems)}, &ir.LocalSet{Var: arr})
	seq.Declare(arr)
	for i, e := range elems {
		seq.Emit(&ir.LocalGet{Var: arr}, &ir.ConstInt{Value: int64(i)})
		seq.Append(e)
		seq.Emit(&ir.ArraySet{Elem: elem})
	}
	seq.Emit(&ir.LocalGet{Var: arr})
	seq.Type = arrT
	return seq
}

// elemType returns T for Array<T>.
func (b *builder) elemType(t types.Type, n compiler.Node) (types.Type, bool) {
	if t.IsUndefined() {
		return types.Undefined, false
	}
	if !t.Is(b.c.reg.Builtin.Array) || len(t.Args) != 1 {
		b.errorf(diag.TypeMismatch, n, "cannot index %s", b.c.format(t))
		return types.Undefined, false
	}
	return t.Args[0], true
}

func (b *builder) indexOperand(e compiler.Expr) *ir.Seq {
	idx := b.expr(e, true)
	b.expectAssignable(idx.Type, types.Actual(b.c.reg.Builtin.Int), e)
	return idx
}

func (b *builder) index(n *compiler.IndexExpr) *ir.Seq {
	seq := b.expr(n.Receiver, true)
	idx := b.indexOperand(n.Index)
	elem, ok := b.elemType(seq.Type, n.Receiver)
	seq.Append(idx)
	if !ok {
		seq.Type = types.Undefined
		return seq
	}
	seq.Emit(&ir.ArrayGet{Elem: elem})
	seq.Type = elem
	return seq
}
