package emit

import (
	"fmt"
	"strconv"

	"github.com/chazu/lotus/compiler/instance"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/types"
)

// fnEmitter writes the body of one function instance.
type fnEmitter struct {
	*Emitter
	fi  *instance.FuncInstance
	ctx instance.Context
	w   *writer

	locals map[int]instance.Repr
}

func (e *Emitter) function(fi *instance.FuncInstance) error {
	f := fi.Blueprint
	if f.Body == nil {
		return fmt.Errorf("%s has no body", f.Name)
	}
	fe := &fnEmitter{
		Emitter: e,
		fi:      fi,
		ctx:     fi.Context(),
		w:       &writer{depth: e.body.depth + 1},
		locals:  make(map[int]instance.Repr),
	}

	head := "(func " + fi.Name
	for _, p := range fi.Params {
		head += fmt.Sprintf(" (param $p%d %s)", p.Index, p.Repr)
	}
	if fi.Result != instance.ReprNone {
		head += " (result " + fi.Result.String() + ")"
	}

	vars, err := fe.declareLocals(f.Body)
	if err != nil {
		return err
	}
	for _, v := range vars {
		fe.w.line("(local $v%d %s)", v.ID, fe.locals[v.ID])
	}
	if err := fe.instrs(f.Body.Instrs); err != nil {
		return err
	}

	e.body.line("%s", head)
	e.body.b.WriteString(fe.w.String())
	e.body.line(")")
	return nil
}

// declareLocals collects every local the body touches, in first-use order,
// and resolves its representation. Erased locals are left out.
func (fe *fnEmitter) declareLocals(body *ir.Seq) ([]*ir.Var, error) {
	var out []*ir.Var
	seen := make(map[int]bool)
	var err error
	add := func(v *ir.Var) {
		if v == nil || v.Param >= 0 || seen[v.ID] || err != nil {
			return
		}
		seen[v.ID] = true
		var r instance.Repr
		if r, err = fe.repr(v.Type); err != nil {
			err = fmt.Errorf("local %s: %w", v.Name, err)
			return
		}
		if r != instance.ReprNone {
			fe.locals[v.ID] = r
			out = append(out, v)
		}
	}
	for _, v := range body.Vars {
		add(v)
	}
	ir.Walk(body.Instrs, func(in ir.Instr) {
		switch n := in.(type) {
		case *ir.LocalGet:
			add(n.Var)
		case *ir.LocalSet:
			add(n.Var)
		case *ir.LocalTee:
			add(n.Var)
		case *ir.Call:
			add(n.Receiver)
		}
	})
	return out, err
}

func (fe *fnEmitter) repr(t types.Type) (instance.Repr, error) {
	r, err := fe.gen.Resolve(fe.ctx, t)
	if err != nil {
		return instance.ReprNone, err
	}
	return fe.gen.ReprOf(r)
}

// local returns the target name of v, or "" when v is erased.
func (fe *fnEmitter) local(v *ir.Var) (string, error) {
	if v.Param >= 0 {
		for _, p := range fe.fi.Params {
			if p.Index == v.Param {
				return "$p" + strconv.Itoa(v.Param), nil
			}
		}
		return "", nil
	}
	if _, ok := fe.locals[v.ID]; ok {
		return "$v" + strconv.Itoa(v.ID), nil
	}
	r, err := fe.repr(v.Type)
	if err != nil || r == instance.ReprNone {
		return "", err
	}
	return "", fmt.Errorf("local %s was never declared", v)
}

func (fe *fnEmitter) instrs(instrs []ir.Instr) error {
	for _, in := range instrs {
		if err := fe.instr(in); err != nil {
			return err
		}
	}
	return nil
}

func (fe *fnEmitter) instr(in ir.Instr) error {
	w := fe.w
	switch n := in.(type) {
	case *ir.ConstInt:
		w.line("i32.const %d", int32(n.Value))
	case *ir.ConstFloat:
		w.line("f32.const %s", strconv.FormatFloat(n.Value, 'g', -1, 32))
	case *ir.ConstString:
		w.line("i32.const %d", fe.data.intern(n.Value))

	case *ir.LocalGet:
		return fe.localOp("local.get", n.Var)
	case *ir.LocalSet:
		return fe.localOp("local.set", n.Var)
	case *ir.LocalTee:
		return fe.localOp("local.tee", n.Var)

	case *ir.EnvGet:
		r, err := fe.repr(n.Type)
		if err != nil || r == instance.ReprNone {
			return err
		}
		w.line("local.get $p0")
		w.line("%s.load offset=%d", r, n.Key*instance.SlotSize)
	case *ir.EnvAddr:
		w.line("local.get $p0")
	case *ir.EnvStore:
		return fe.store(n.Type, n.Key*instance.SlotSize)
	case *ir.EnvAlloc:
		w.line("i32.const %d", n.Size*instance.SlotSize)
		w.line("call $lotus_alloc")

	case *ir.ClosureNew:
		return fe.closureNew(n)
	case *ir.ClosureEnv:
		w.line("i32.load offset=%d", instance.ClosureEnvOffset)
	case *ir.ClosureFunc:
		w.line("i32.load offset=%d", instance.ClosureFuncOffset)

	case *ir.FieldGet:
		f, err := fe.field(n.Owner, n.Field)
		if err != nil {
			return err
		}
		if f.Offset < 0 {
			w.line("drop")
			return nil
		}
		w.line("%s.load offset=%d", f.Repr, f.Offset)
	case *ir.FieldSet:
		f, err := fe.field(n.Owner, n.Field)
		if err != nil {
			return err
		}
		if f.Offset < 0 {
			w.line("drop")
			return nil
		}
		w.line("%s.store offset=%d", f.Repr, f.Offset)
	case *ir.Alloc:
		ti, err := fe.gen.ResolveType(fe.ctx, n.Type)
		if err != nil || ti.Erased() {
			return err
		}
		base, err := fe.allocate(ti)
		if err != nil {
			return err
		}
		w.line("i32.const %d", ti.Size)
		w.line("i32.const %d", base)
		w.line("call $lotus_new")
	case *ir.VTableBase:
		w.line("i32.load offset=%d", instance.VTableOffset)

	case *ir.ArrayNew:
		if _, err := fe.gen.ResolveType(fe.ctx, fe.reg.ArrayOf(n.Elem)); err != nil {
			return err
		}
		w.line("i32.const %d", n.Len)
		w.line("call $lotus_array_new")
	case *ir.ArrayGet:
		r, err := fe.repr(n.Elem)
		if err != nil {
			return err
		}
		w.line("call $lotus_elem")
		if r == instance.ReprNone {
			w.line("drop")
		} else {
			w.line("%s.load", r)
		}
	case *ir.ArraySet:
		r, err := fe.repr(n.Elem)
		if err != nil {
			return err
		}
		if r == instance.ReprNone {
			w.line("call $lotus_elem")
			w.line("drop")
		} else {
			w.line("call $lotus_array_set_%s", r)
		}
	case *ir.Retain:
		return fe.retain(n.Type)

	case *ir.Call:
		return fe.call(n)
	case *ir.CallIndirect:
		t, err := fe.gen.ResolveType(fe.ctx, n.Sig)
		if err != nil {
			return err
		}
		params := t.Params
		if n.Env {
			params = append([]instance.Repr{instance.ReprI32}, params...)
		}
		w.line("call_indirect (type %s)", fe.signature(params, t.Result))
	case *ir.FuncRef:
		fi, err := fe.instance(n.Func, n.This, n.Args)
		if err != nil {
			return err
		}
		w.line("i32.const %d", fe.gen.TableIndex(fi))

	case *ir.Binary:
		return fe.binary(n)
	case *ir.Unary:
		return fe.unary(n)

	case *ir.Block:
		r, err := fe.repr(n.Result)
		if err != nil {
			return err
		}
		if r == instance.ReprNone {
			w.line("block")
		} else {
			w.line("block (result %s)", r)
		}
		w.indent()
		if err := fe.instrs(n.Body); err != nil {
			return err
		}
		w.dedent()
		w.line("end")
	case *ir.Loop:
		w.line("loop")
		w.indent()
		if err := fe.instrs(n.Body); err != nil {
			return err
		}
		w.dedent()
		w.line("end")
	case *ir.Jump:
		w.line("br %d", n.Depth)
	case *ir.JumpIf:
		w.line("br_if %d", n.Depth)
	case *ir.Return:
		w.line("return")
	case *ir.Drop:
		r, err := fe.repr(n.Type)
		if err != nil {
			return err
		}
		if r != instance.ReprNone {
			w.line("drop")
		}
	case *ir.Unreachable:
		w.line("unreachable")
	case *ir.Raw:
		w.line("%s", n.Text)
	case *ir.Placeholder:
		return fmt.Errorf("%w: placeholder %d was never filled", ir.ErrPlaceholder, n.ID)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, in)
	}
	return nil
}

func (fe *fnEmitter) localOp(op string, v *ir.Var) error {
	name, err := fe.local(v)
	if err != nil {
		return err
	}
	if name != "" {
		fe.w.line("%s %s", op, name)
	}
	return nil
}

// store pops an address and a value of type t and writes the value at
// offset. Erased values leave only the address to drop.
func (fe *fnEmitter) store(t types.Type, offset int) error {
	r, err := fe.repr(t)
	if err != nil {
		return err
	}
	if r == instance.ReprNone {
		fe.w.line("drop")
		return nil
	}
	fe.w.line("%s.store offset=%d", r, offset)
	return nil
}

func (fe *fnEmitter) field(owner types.Type, slot int) (instance.Field, error) {
	ti, err := fe.gen.ResolveType(fe.ctx, owner)
	if err != nil {
		return instance.Field{}, err
	}
	if slot < 0 || slot >= len(ti.Fields) {
		return instance.Field{}, fmt.Errorf("%s has no field %d", ti.Name, slot)
	}
	return ti.Fields[slot], nil
}

// instance resolves a function reference of the body against the
// instance's context.
func (fe *fnEmitter) instance(id int, this types.Type, args []types.Type) (*instance.FuncInstance, error) {
	f := fe.reg.Func(id)
	if f == nil {
		return nil, fmt.Errorf("unknown function %d", id)
	}
	t, err := fe.gen.Resolve(fe.ctx, this)
	if err != nil {
		return nil, err
	}
	as, err := fe.gen.ResolveAll(fe.ctx, args)
	if err != nil {
		return nil, err
	}
	return fe.gen.Func(f, t, as)
}

func (fe *fnEmitter) closureNew(n *ir.ClosureNew) error {
	fi, err := fe.instance(n.Func, n.This, n.Args)
	if err != nil {
		return err
	}
	ri, err := fe.instance(n.Retain, n.This, n.Args)
	if err != nil {
		return err
	}
	fe.w.line("i32.const %d", fe.gen.TableIndex(fi))
	fe.w.line("i32.const %d", fe.gen.TableIndex(ri))
	fe.w.line("call $lotus_closure_new")
	return nil
}

// retain applies the retain semantics of t to the value on the stack.
func (fe *fnEmitter) retain(t types.Type) error {
	r, err := fe.gen.Resolve(fe.ctx, t)
	if err != nil {
		return err
	}
	if r.IsFunction() {
		fe.w.line("call $lotus_retain_closure")
		return nil
	}
	fi, err := fe.gen.RetainFunc(r)
	if err != nil {
		return err
	}
	if fi != nil {
		fe.w.line("call %s", fi.Name)
		return nil
	}
	if rep, err := fe.gen.ReprOf(r); err != nil || rep == instance.ReprNone {
		return err
	}
	fe.w.line("drop")
	return nil
}

func (fe *fnEmitter) call(c *ir.Call) error {
	target, err := fe.gen.Callee(fe.ctx, c)
	if err != nil {
		return err
	}
	if !target.Virtual {
		fe.w.line("call %s", target.Func.Name)
		return nil
	}
	if c.Receiver == nil {
		return fmt.Errorf("virtual call of slot %d without a receiver", target.Index)
	}
	recv, err := fe.local(c.Receiver)
	if err != nil {
		return err
	}
	fe.w.line("local.get %s", recv)
	fe.w.line("i32.load offset=%d", instance.VTableOffset)
	fe.w.line("i32.const %d", target.Index)
	fe.w.line("i32.add")
	fe.w.line("call_indirect (type %s)", fe.signature(target.Sig.Params, target.Sig.Result))
	return nil
}

var (
	intOps = map[string]string{
		"+": "i32.add", "-": "i32.sub", "*": "i32.mul", "/": "i32.div_s", "%": "i32.rem_s",
		"==": "i32.eq", "!=": "i32.ne", "<": "i32.lt_s", "<=": "i32.le_s", ">": "i32.gt_s", ">=": "i32.ge_s",
	}
	floatOps = map[string]string{
		"+": "f32.add", "-": "f32.sub", "*": "f32.mul", "/": "f32.div",
		"==": "f32.eq", "!=": "f32.ne", "<": "f32.lt", "<=": "f32.le", ">": "f32.gt", ">=": "f32.ge",
	}
)

// stringOps compare and join strings by content.
var stringOps = map[string][]string{
	"+":  {"call $lotus_string_concat"},
	"==": {"call $lotus_string_eq"},
	"!=": {"call $lotus_string_eq", "i32.eqz"},
}

func (fe *fnEmitter) binary(n *ir.Binary) error {
	if n.Type.Is(fe.reg.Builtin.String) {
		ops, ok := stringOps[n.Op]
		if !ok {
			return fmt.Errorf("%w: operator %s on string", ErrUnsupported, n.Op)
		}
		for _, op := range ops {
			fe.w.line("%s", op)
		}
		return nil
	}
	r, err := fe.repr(n.Type)
	if err != nil {
		return err
	}
	var op string
	var ok bool
	switch r {
	case instance.ReprI32:
		op, ok = intOps[n.Op]
	case instance.ReprF32:
		op, ok = floatOps[n.Op]
	case instance.ReprNone:
		// Values of erased types are all equal.
		switch n.Op {
		case "==":
			op, ok = "i32.const 1", true
		case "!=":
			op, ok = "i32.const 0", true
		}
	}
	if !ok {
		return fmt.Errorf("%w: operator %s on %s", ErrUnsupported, n.Op, fe.reg.Format(n.Type))
	}
	fe.w.line("%s", op)
	return nil
}

func (fe *fnEmitter) unary(n *ir.Unary) error {
	r, err := fe.repr(n.Type)
	if err != nil {
		return err
	}
	switch {
	case n.Op == "!":
		fe.w.line("i32.eqz")
	case n.Op == "-" && r == instance.ReprF32:
		fe.w.line("f32.neg")
	case n.Op == "-" && r == instance.ReprI32:
		fe.w.line("i32.const -1")
		fe.w.line("i32.mul")
	default:
		return fmt.Errorf("%w: unary %s on %s", ErrUnsupported, n.Op, fe.reg.Format(n.Type))
	}
	return nil
}
