// Package ir is the stack-machine instruction form produced for every
// expression and function body. Instructions still mention possibly generic
// types and blueprint ids; the emitter resolves them against a concrete
// instantiation.
//
// Control flow is structured: Jump and JumpIf name how many enclosing
// Block/Loop boundaries to leave, never a label.
package ir

import (
	"fmt"

	"github.com/chazu/lotus/compiler/types"
)

// Instr is one IR operation.
type Instr interface {
	instr() // marker method
}

// Var is a parameter or local of one function.
type Var struct {
	ID    int
	Name  string
	Type  types.Type
	Param int // parameter index, -1 for locals
}

func (v *Var) String() string {
	if v.Param >= 0 {
		return fmt.Sprintf("%s(p%d)", v.Name, v.Param)
	}
	return fmt.Sprintf("%s(v%d)", v.Name, v.ID)
}

// ---------------------------------------------------------------------------
// Constants and locals
// ---------------------------------------------------------------------------

type ConstInt struct{ Value int64 }
type ConstFloat struct{ Value float64 }

// ConstString pushes the address of an interned, length-prefixed string.
type ConstString struct{ Value string }

type LocalGet struct{ Var *Var }
type LocalSet struct{ Var *Var }

// LocalTee stores the top of the stack and leaves it in place.
type LocalTee struct{ Var *Var }

// EnvGet reads a captured variable out of the running closure's
// environment by its stable key.
type EnvGet struct {
	Key  int
	Type types.Type
}

// EnvAddr pushes the address of the running closure's environment.
type EnvAddr struct{}

// EnvStore pops a value and the environment address below it and writes
// the value into slot Key.
type EnvStore struct {
	Key  int
	Type types.Type
}

// EnvAlloc allocates an environment of Size slots and pushes its address.
type EnvAlloc struct{ Size int }

// ClosureNew pops an environment address and pushes a closure record
// pairing it with the function-table slots of closure Func and its retain
// companion Retain. This and Args are the instantiation context the
// closure was created in.
type ClosureNew struct {
	Func   int
	Retain int
	This   types.Type
	Args   []types.Type
}

// ClosureEnv pops a closure record and pushes its environment address.
type ClosureEnv struct{}

// ClosureFunc pops a closure record and pushes its function-table index.
type ClosureFunc struct{}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// FieldGet pops a receiver of static type Owner and pushes field number
// Field of Owner's blueprint.
type FieldGet struct {
	Owner types.Type
	Field int
	Type  types.Type
}

// FieldSet pops a receiver and a value and stores the value.
type FieldSet struct {
	Owner types.Type
	Field int
	Type  types.Type
}

// Alloc allocates an instance of Type, writes its header and pushes the
// address.
type Alloc struct{ Type types.Type }

// VTableBase pops an object address and pushes the first function-table slot
// of its dynamic type's dispatch block.
type VTableBase struct{}

// ArrayNew allocates an array of Len elements and pushes its address.
type ArrayNew struct {
	Elem types.Type
	Len  int
}

// ArrayGet pops an array and an index and pushes the element.
type ArrayGet struct{ Elem types.Type }

// ArraySet pops an array, an index and a value.
type ArraySet struct{ Elem types.Type }

// Retain applies Type's retain semantics to the value on top of the stack
// and consumes it. Types without retain semantics just drop it.
type Retain struct{ Type types.Type }

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// Call is a static call of function blueprint Func. This is the owner type
// the method is called through (Void for free functions) and Args the
// function's own type arguments; either may still be generic.
//
// When Func is an interface method the callee is found by name on the
// resolved This. If that method is dynamic the call goes through the
// vtable of the receiver saved in Receiver.
type Call struct {
	Func     int
	This     types.Type
	Args     []types.Type
	Receiver *Var
}

// CallIndirect pops a function-table index and calls it with signature Sig.
// Env adds a leading environment parameter, as closures take.
type CallIndirect struct {
	Sig types.Type
	Env bool
}

// FuncRef pushes the function-table index of a function instance.
type FuncRef struct {
	Func int
	This types.Type
	Args []types.Type
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// Binary applies Op to two operands of type Type. Comparisons push a bool.
type Binary struct {
	Op   string
	Type types.Type
}

// Unary applies Op ("-" or "!") to one operand of type Type.
type Unary struct {
	Op   string
	Type types.Type
}

// ---------------------------------------------------------------------------
// Control
// ---------------------------------------------------------------------------

// Block is a structured block. Result is the type it leaves on the stack.
type Block struct {
	Body   []Instr
	Result types.Type
}

// Loop is a structured loop; a Jump to it restarts the body.
type Loop struct {
	Body []Instr
}

// Jump leaves Depth enclosing blocks (0 = innermost).
type Jump struct{ Depth int }

// JumpIf pops a bool and jumps when it is true.
type JumpIf struct{ Depth int }

type Return struct{}

// Drop discards a value of type Type.
type Drop struct{ Type types.Type }

type Unreachable struct{}

// Raw is target text passed through unchanged. Used for built-in bodies.
type Raw struct{ Text string }

// Placeholder marks where code computed elsewhere is spliced in by
// Seq.Fill. It must be filled exactly once.
type Placeholder struct{ ID int }

func (*ConstInt) instr()     {}
func (*ConstFloat) instr()   {}
func (*ConstString) instr()  {}
func (*LocalGet) instr()     {}
func (*LocalSet) instr()     {}
func (*LocalTee) instr()     {}
func (*EnvGet) instr()       {}
func (*EnvAddr) instr()      {}
func (*EnvStore) instr()     {}
func (*EnvAlloc) instr()     {}
func (*ClosureNew) instr()   {}
func (*ClosureEnv) instr()   {}
func (*ClosureFunc) instr()  {}
func (*FieldGet) instr()     {}
func (*FieldSet) instr()     {}
func (*Alloc) instr()        {}
func (*VTableBase) instr()   {}
func (*ArrayNew) instr()     {}
func (*ArrayGet) instr()     {}
func (*ArraySet) instr()     {}
func (*Retain) instr()       {}
func (*Call) instr()         {}
func (*CallIndirect) instr() {}
func (*FuncRef) instr()      {}
func (*Binary) instr()       {}
func (*Unary) instr()        {}
func (*Block) instr()        {}
func (*Loop) instr()         {}
func (*Jump) instr()         {}
func (*JumpIf) instr()       {}
func (*Return) instr()       {}
func (*Drop) instr()         {}
func (*Unreachable) instr()  {}
func (*Raw) instr()          {}
func (*Placeholder) instr()  {}
