package ir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/lotus/compiler/types"
)

// Seq is the IR value of an expression, statement or body: instructions,
// the locals they declare and the static type of what they leave on the
// stack.
//
// A Seq is owned by whoever built it until it is appended into a parent;
// Append moves the contents and leaves the source empty.
type Seq struct {
	Instrs []Instr
	Vars   []*Var
	Type   types.Type

	// Diverges is set when control never falls off the end (return,
	// unreachable, or branches that all diverge).
	Diverges bool
}

// New returns an empty sequence of type t.
func New(t types.Type) *Seq {
	return &Seq{Type: t}
}

// Empty returns an empty void sequence.
func Empty() *Seq {
	return &Seq{Type: types.Void}
}

// Failed returns the empty Undefined-typed sequence substituted after a
// diagnostic.
func Failed() *Seq {
	return &Seq{Type: types.Undefined}
}

// Of builds a sequence of type t from instructions.
func Of(t types.Type, instrs ...Instr) *Seq {
	return &Seq{Instrs: instrs, Type: t}
}

// Emit appends instructions without changing the result type.
func (s *Seq) Emit(instrs ...Instr) *Seq {
	s.Instrs = append(s.Instrs, instrs...)
	return s
}

// Declare records a local declared by this sequence.
func (s *Seq) Declare(v *Var) {
	s.Vars = append(s.Vars, v)
}

// Append moves o's instructions and locals after s's. The result type
// becomes o's. o is left empty.
func (s *Seq) Append(o *Seq) *Seq {
	s.Instrs = append(s.Instrs, o.Instrs...)
	s.Vars = append(s.Vars, o.Vars...)
	s.Type = o.Type
	s.Diverges = s.Diverges || o.Diverges
	o.Instrs = nil
	o.Vars = nil
	return s
}

// Wrap moves s's instructions into a single Block leaving s's type.
func (s *Seq) Wrap() *Seq {
	block := &Block{Body: s.Instrs, Result: s.Type}
	s.Instrs = []Instr{block}
	return s
}

// ErrPlaceholder is returned by Fill when a placeholder is not present
// exactly once.
var ErrPlaceholder = errors.New("placeholder misuse")

// Fill replaces placeholder id with the contents of with, which is left
// empty. The placeholder must occur exactly once in s.
func (s *Seq) Fill(id int, with *Seq) error {
	n := countPlaceholder(s.Instrs, id)
	if n != 1 {
		return fmt.Errorf("%w: placeholder %d found %d times", ErrPlaceholder, id, n)
	}
	s.Instrs = fill(s.Instrs, id, with.Instrs)
	s.Vars = append(s.Vars, with.Vars...)
	with.Instrs = nil
	with.Vars = nil
	return nil
}

func countPlaceholder(instrs []Instr, id int) int {
	n := 0
	Walk(instrs, func(in Instr) {
		if p, ok := in.(*Placeholder); ok && p.ID == id {
			n++
		}
	})
	return n
}

func fill(instrs []Instr, id int, with []Instr) []Instr {
	for i, in := range instrs {
		switch n := in.(type) {
		case *Placeholder:
			if n.ID == id {
				out := make([]Instr, 0, len(instrs)+len(with))
				out = append(out, instrs[:i]...)
				out = append(out, with...)
				return append(out, instrs[i+1:]...)
			}
		case *Block:
			n.Body = fill(n.Body, id, with)
		case *Loop:
			n.Body = fill(n.Body, id, with)
		}
	}
	return instrs
}

// Placeholders returns the ids of placeholders still present.
func (s *Seq) Placeholders() []int {
	var ids []int
	Walk(s.Instrs, func(in Instr) {
		if p, ok := in.(*Placeholder); ok {
			ids = append(ids, p.ID)
		}
	})
	return ids
}

// Walk calls fn for every instruction, descending into blocks and loops.
func Walk(instrs []Instr, fn func(Instr)) {
	for _, in := range instrs {
		fn(in)
		switch n := in.(type) {
		case *Block:
			Walk(n.Body, fn)
		case *Loop:
			Walk(n.Body, fn)
		}
	}
}

// Count returns how many instructions satisfy pred.
func Count(instrs []Instr, pred func(Instr) bool) int {
	n := 0
	Walk(instrs, func(in Instr) {
		if pred(in) {
			n++
		}
	})
	return n
}

// Dump renders instructions one per line, for tests and debugging.
func Dump(instrs []Instr) string {
	var b strings.Builder
	dump(&b, instrs, 0)
	return b.String()
}

func dump(b *strings.Builder, instrs []Instr, indent int) {
	pad := strings.Repeat("  ", indent)
	for _, in := range instrs {
		b.WriteString(pad)
		switch n := in.(type) {
		case *ConstInt:
			fmt.Fprintf(b, "const.int %d\n", n.Value)
		case *ConstFloat:
			fmt.Fprintf(b, "const.float %g\n", n.Value)
		case *ConstString:
			fmt.Fprintf(b, "const.string %q\n", n.Value)
		case *LocalGet:
			fmt.Fprintf(b, "local.get %s\n", n.Var)
		case *LocalSet:
			fmt.Fprintf(b, "local.set %s\n", n.Var)
		case *LocalTee:
			fmt.Fprintf(b, "local.tee %s\n", n.Var)
		case *EnvGet:
			fmt.Fprintf(b, "env.get %d\n", n.Key)
		case *EnvAddr:
			b.WriteString("env.addr\n")
		case *EnvStore:
			fmt.Fprintf(b, "env.store %d\n", n.Key)
		case *EnvAlloc:
			fmt.Fprintf(b, "env.alloc %d\n", n.Size)
		case *ClosureNew:
			fmt.Fprintf(b, "closure.new f%d f%d\n", n.Func, n.Retain)
		case *ClosureEnv:
			b.WriteString("closure.env\n")
		case *ClosureFunc:
			b.WriteString("closure.func\n")
		case *FieldGet:
			fmt.Fprintf(b, "field.get %d\n", n.Field)
		case *FieldSet:
			fmt.Fprintf(b, "field.set %d\n", n.Field)
		case *Alloc:
			fmt.Fprintf(b, "alloc %s\n", n.Type)
		case *VTableBase:
			b.WriteString("vtable.base\n")
		case *ArrayNew:
			fmt.Fprintf(b, "array.new %d\n", n.Len)
		case *ArrayGet:
			b.WriteString("array.get\n")
		case *ArraySet:
			b.WriteString("array.set\n")
		case *Retain:
			fmt.Fprintf(b, "retain %s\n", n.Type)
		case *Call:
			fmt.Fprintf(b, "call f%d %s\n", n.Func, n.This)
		case *CallIndirect:
			fmt.Fprintf(b, "call_indirect %s\n", n.Sig)
		case *FuncRef:
			fmt.Fprintf(b, "func.ref f%d\n", n.Func)
		case *Binary:
			fmt.Fprintf(b, "binary %s\n", n.Op)
		case *Unary:
			fmt.Fprintf(b, "unary %s\n", n.Op)
		case *Block:
			fmt.Fprintf(b, "block %s\n", n.Result)
			dump(b, n.Body, indent+1)
			b.WriteString(pad + "end\n")
		case *Loop:
			b.WriteString("loop\n")
			dump(b, n.Body, indent+1)
			b.WriteString(pad + "end\n")
		case *Jump:
			fmt.Fprintf(b, "jump %d\n", n.Depth)
		case *JumpIf:
			fmt.Fprintf(b, "jump_if %d\n", n.Depth)
		case *Return:
			b.WriteString("return\n")
		case *Drop:
			b.WriteString("drop\n")
		case *Unreachable:
			b.WriteString("unreachable\n")
		case *Raw:
			fmt.Fprintf(b, "raw %q\n", n.Text)
		case *Placeholder:
			fmt.Fprintf(b, "placeholder %d\n", n.ID)
		default:
			fmt.Fprintf(b, "%T\n", in)
		}
	}
}
