package sema

import (
	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/types"
)

// builder lowers the body of one function. Closures get their own builder
// whose parent is the enclosing one.
type builder struct {
	c      *Checker
	res    *Result
	fn     *blueprint.FunctionBlueprint
	sc     typeScope
	ret    types.Type
	parent *builder

	scopes []map[string]*ir.Var
	owned  map[*ir.Var]bool

	// depth counts the Blocks and Loops enclosing the instruction being
	// built; loops records the depth of each enclosing while's outer block.
	depth int
	loops []int

	nextPlaceholder int
}

func (c *Checker) newBuilder(fn *blueprint.FunctionBlueprint, sc typeScope, parent *builder, res *Result) *builder {
	return &builder{
		c:      c,
		res:    res,
		fn:     fn,
		sc:     sc,
		ret:    fn.Return,
		parent: parent,
		scopes: []map[string]*ir.Var{{}},
		owned:  make(map[*ir.Var]bool),
	}
}

func (c *Checker) buildBody(fd funcDecl, res *Result) {
	b := c.newBuilder(fd.fn, fd.scope, nil, res)
	base := 0
	if fd.fn.IsMethod() {
		b.bind("self", c.newVar("self", c.contextThis(fd.scope), 0))
		base = 1
	}
	for i, p := range fd.fn.Params {
		b.bind(p.Name, c.newVar(p.Name, p.Type, base+i))
	}
	fd.fn.Body = b.functionBody(fd.decl.Body, fd.decl)
}

// functionBody lowers the outermost block of a function or closure and
// checks that a non-void function produces its value on every path.
func (b *builder) functionBody(blk *compiler.Block, decl compiler.Node) *ir.Seq {
	used := !b.ret.IsVoid()
	body := b.block(blk, used)

	if used && !body.Diverges {
		switch {
		case body.Type.IsUndefined():
		case body.Type.IsVoid():
			b.errorf(diag.TypeMismatch, blk, "missing return: `%s` must return %s", b.fn.Name, b.c.format(b.ret))
		default:
			b.expectAssignable(body.Type, b.ret, tailOf(blk))
		}
	}
	if !used {
		b.discard(body)
	}
	if ids := body.Placeholders(); len(ids) > 0 {
		b.errorf(diag.Generic, decl, "internal error: %d unfilled placeholder(s) in `%s`", len(ids), b.fn.Name)
	}
	body.Type = b.ret
	return body
}

func tailOf(blk *compiler.Block) compiler.Node {
	if blk.Tail != nil {
		return blk.Tail
	}
	return blk
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func (b *builder) pos(n compiler.Node) diag.Pos {
	return b.sc.pos(n)
}

func (b *builder) errorf(kind diag.Kind, n compiler.Node, format string, args ...any) {
	b.c.errorf(kind, b.pos(n), format, args...)
}

// expectAssignable reports when from cannot be stored where to is
// expected. Undefined on either side passes silently.
func (b *builder) expectAssignable(from, to types.Type, n compiler.Node) bool {
	if from.IsAssignableTo(b.c.reg, to) {
		return true
	}
	b.errorf(diag.TypeMismatch, n, "expected %s, got %s", b.c.format(to), b.c.format(from))
	return false
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func (b *builder) push() {
	b.scopes = append(b.scopes, map[string]*ir.Var{})
}

func (b *builder) pop() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

func (b *builder) bind(name string, v *ir.Var) {
	b.scopes[len(b.scopes)-1][name] = v
	b.owned[v] = true
}

// varRef is a resolved variable: a local of this function, or a slot of
// the running closure's environment.
type varRef struct {
	v   *ir.Var
	key int
	env bool
}

// lookup resolves name lexically. A variable of an enclosing function is
// captured by this closure and every closure in between.
func (b *builder) lookup(name string) (varRef, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if v, ok := b.scopes[i][name]; ok {
			return varRef{v: v}, true
		}
	}
	if b.parent == nil || b.fn.Closure == nil {
		return varRef{}, false
	}
	outer, ok := b.parent.lookup(name)
	if !ok {
		return varRef{}, false
	}
	return varRef{v: outer.v, key: b.fn.Closure.Capture(outer.v), env: true}, true
}

// read pushes the current value of a resolved variable.
func (b *builder) read(ref varRef) *ir.Seq {
	if ref.env {
		return ir.Of(ref.v.Type, &ir.EnvGet{Key: ref.key, Type: ref.v.Type})
	}
	return ir.Of(ref.v.Type, &ir.LocalGet{Var: ref.v})
}

// readOwn reads v from this function's point of view: a local when it was
// declared here, otherwise the slot it was captured into.
func (b *builder) readOwn(v *ir.Var) *ir.Seq {
	if b.owned[v] {
		return b.read(varRef{v: v})
	}
	key, _ := b.fn.Closure.Key(v)
	return b.read(varRef{v: v, key: key, env: true})
}

func (b *builder) temp(name string, t types.Type) *ir.Var {
	v := b.c.newVar(name, t, -1)
	b.owned[v] = true
	return v
}

func (b *builder) placeholder() int {
	b.nextPlaceholder++
	return b.nextPlaceholder
}

func (b *builder) fill(seq *ir.Seq, id int, with *ir.Seq, n compiler.Node) {
	if err := seq.Fill(id, with); err != nil {
		b.c.internal(b.pos(n), err)
	}
}

// discard drops the value s leaves on the stack, if any.
func (b *builder) discard(s *ir.Seq) {
	if !s.Type.IsVoid() && !s.Type.IsUndefined() {
		s.Emit(&ir.Drop{Type: s.Type})
	}
	s.Type = types.Void
}

// gather moves the instructions and locals of parts into one list.
func gather(parts ...*ir.Seq) ([]ir.Instr, []*ir.Var) {
	var instrs []ir.Instr
	var vars []*ir.Var
	for _, p := range parts {
		instrs = append(instrs, p.Instrs...)
		vars = append(vars, p.Vars...)
		p.Instrs, p.Vars = nil, nil
	}
	return instrs, vars
}

// nest wraps parts in one Block leaving result.
func nest(result types.Type, parts ...*ir.Seq) *ir.Seq {
	body, vars := gather(parts...)
	return &ir.Seq{Instrs: []ir.Instr{&ir.Block{Body: body, Result: result}}, Vars: vars, Type: result}
}

func (b *builder) reach(fn int) {
	b.res.Reachable.Insert(fn)
}

// ---------------------------------------------------------------------------
// Blocks and statements
// ---------------------------------------------------------------------------

// block lowers `{ stmts; tail }`. When used is false the tail value is
// left for the caller to discard.
func (b *builder) block(blk *compiler.Block, used bool) *ir.Seq {
	b.push()
	defer b.pop()

	seq := ir.Empty()
	for _, st := range blk.Stmts {
		seq.Append(b.stmt(st))
	}
	if blk.Tail != nil {
		seq.Append(b.expr(blk.Tail, used))
	} else {
		seq.Type = types.Void
	}
	return seq
}

func (b *builder) stmt(st compiler.Stmt) *ir.Seq {
	switch s := st.(type) {
	case *compiler.LetStmt:
		return b.let(s)
	case *compiler.AssignStmt:
		return b.assign(s)
	case *compiler.ReturnStmt:
		return b.returnStmt(s)
	case *compiler.WhileStmt:
		return b.while(s)
	case *compiler.BreakStmt:
		return b.jump(s, 0)
	case *compiler.ContinueStmt:
		return b.jump(s, 1)
	case *compiler.ExprStmt:
		seq := b.expr(s.Expr, false)
		b.discard(seq)
		return seq
	}
	b.errorf(diag.Generic, st, "unsupported statement %T", st)
	return ir.Failed()
}

func (b *builder) let(s *compiler.LetStmt) *ir.Seq {
	value := b.expr(s.Value, true)
	t := value.Type
	if s.Type != nil {
		t = b.c.resolveType(s.Type, b.sc)
		if !value.Diverges {
			b.expectAssignable(value.Type, t, s.Value)
		}
	} else if t.IsVoid() && !value.Diverges {
		b.errorf(diag.TypeMismatch, s.Value, "cannot bind `%s` to a value of type void", s.Name)
		t = types.Undefined
	}

	v := b.c.newVar(s.Name, t, -1)
	value.Declare(v)
	value.Emit(&ir.LocalSet{Var: v})
	value.Type = types.Void
	b.bind(s.Name, v)
	return value
}

func (b *builder) returnStmt(s *compiler.ReturnStmt) *ir.Seq {
	seq := ir.Empty()
	switch {
	case s.Value == nil:
		if !b.ret.IsVoid() && !b.ret.IsUndefined() {
			b.errorf(diag.TypeMismatch, s, "missing return value: `%s` must return %s", b.fn.Name, b.c.format(b.ret))
		}
	case b.ret.IsVoid():
		seq = b.expr(s.Value, true)
		if !seq.Type.IsUndefined() {
			b.errorf(diag.TypeMismatch, s.Value, "`%s` does not return a value", b.fn.Name)
		}
		b.discard(seq)
	default:
		seq = b.expr(s.Value, true)
		if !seq.Diverges {
			b.expectAssignable(seq.Type, b.ret, s.Value)
		}
	}
	seq.Emit(&ir.Return{})
	seq.Type = types.Void
	seq.Diverges = true
	return seq
}

// while lowers to
//
//	block
//	  loop
//	    <cond> !  br_if 1
//	    <body>
//	    br 0
//	  end
//	end
func (b *builder) while(s *compiler.WhileStmt) *ir.Seq {
	d := b.depth
	b.depth = d + 2
	cond := b.condition(s.Cond)
	cond.Emit(&ir.Unary{Op: "!", Type: cond.Type}, &ir.JumpIf{Depth: 1})

	b.loops = append(b.loops, d)
	body := b.block(s.Body, false)
	b.discard(body)
	body.Emit(&ir.Jump{Depth: 0})
	b.loops = b.loops[:len(b.loops)-1]
	b.depth = d

	instrs, vars := gather(cond, body)
	loop := &ir.Seq{Instrs: []ir.Instr{&ir.Loop{Body: instrs}}, Vars: vars, Type: types.Void}
	return nest(types.Void, loop)
}

// jump lowers break (offset 0) and continue (offset 1) relative to the
// innermost while.
func (b *builder) jump(n compiler.Stmt, offset int) *ir.Seq {
	if len(b.loops) == 0 {
		word := "break"
		if offset == 1 {
			word = "continue"
		}
		b.errorf(diag.Generic, n, "`%s` outside of a loop", word)
		return ir.Failed()
	}
	level := b.loops[len(b.loops)-1] + offset
	seq := ir.Of(types.Void, &ir.Jump{Depth: b.depth - 1 - level})
	seq.Diverges = true
	return seq
}

// condition lowers an expression that must be a bool.
func (b *builder) condition(e compiler.Expr) *ir.Seq {
	seq := b.expr(e, true)
	boolT := types.Actual(b.c.reg.Builtin.Bool)
	if !seq.Type.IsUndefined() && !seq.Type.Equal(boolT) {
		b.errorf(diag.TypeMismatch, e, "condition must be bool, got %s", b.c.format(seq.Type))
	}
	seq.Type = boolT
	return seq
}
