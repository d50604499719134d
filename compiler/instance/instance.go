// Package instance is the monomorphization layer: every concrete
// realization of a type or function blueprint becomes exactly one instance,
// content-addressed by the blueprint id and the ids of its argument
// instances.
//
// Instances carry what the emitter needs to know about a concrete type or
// function: value representation, field offsets, allocation size, the
// function-table block of its vtable, parameter and result kinds and a
// unique emitted name.
package instance

import (
	"errors"
	"strings"

	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/hash"
	"github.com/chazu/lotus/compiler/types"
)

// Object layout, in bytes.
const (
	HeaderSize     = 8 // vtable base @0, reference count @4
	VTableOffset   = 0
	RefCountOffset = 4
	SlotSize       = 4

	ArrayLengthOffset = 8
	ArrayDataOffset   = 12

	// Closure records: function-table index, environment, retain index.
	ClosureFuncOffset   = 0
	ClosureEnvOffset    = 4
	ClosureRetainOffset = 8
	ClosureSize         = 12
)

// MaxDepth bounds how deeply type arguments may nest. Recursive generic
// code that builds ever larger types stops here instead of generating
// instances forever.
const MaxDepth = 24

var (
	ErrNotConcrete = errors.New("type is not concrete")
	ErrTooDeep     = errors.New("instantiation nested too deeply")
	ErrAbstract    = errors.New("abstract method has no body")
	ErrNoMethod    = errors.New("no implementation")
)

// Repr is how a value is represented on the target stack.
type Repr uint8

const (
	ReprNone Repr = iota // erased: no value at all
	ReprI32
	ReprF32
)

func (r Repr) String() string {
	switch r {
	case ReprI32:
		return "i32"
	case ReprF32:
		return "f32"
	}
	return ""
}

// Field is one slot of a type instance's layout. Erased fields keep their
// slot number but have no offset.
type Field struct {
	Name   string
	Type   *TypeInstance
	Repr   Repr
	Offset int // -1 when erased
}

// TypeInstance is a concrete type: a type blueprint applied to concrete
// arguments, or a concrete function type.
type TypeInstance struct {
	ID        hash.ID
	Name      string
	Type      types.Type
	Blueprint *blueprint.TypeBlueprint // nil for function types
	Args      []*TypeInstance
	Repr      Repr

	Fields []Field
	Size   int // allocation size including the header

	// VTableBase is the first function-table slot of this type's dispatch
	// block, -1 until the block is reserved or when there is none.
	VTableBase int
	VTable     []*FuncInstance
	vtable     bool

	// Function types only: the kinds of the declared parameters and result.
	Params []Repr
	Result Repr
}

// Erased reports whether values of the type carry no data.
func (t *TypeInstance) Erased() bool {
	return t.Repr == ReprNone
}

// Param is one target-level parameter of a function instance. Index is the
// parameter number in the IR, which names the target parameter.
type Param struct {
	Index int
	Repr  Repr
}

// FuncInstance is a function blueprint instantiated for a concrete owner
// type and concrete generic arguments.
type FuncInstance struct {
	ID        hash.ID
	Name      string
	Blueprint *blueprint.FunctionBlueprint
	This      types.Type    // concrete owner view, Void for free functions
	Owner     *TypeInstance // nil for free functions
	Args      []types.Type

	Params []Param
	Result Repr

	tableIndex int
}

// Context is the substitution every IR type of the instance's body is
// resolved against.
func (f *FuncInstance) Context() Context {
	return Context{This: f.This, Args: f.Args}
}

// Signature returns the target-level parameter and result kinds.
func (f *FuncInstance) Signature() ([]Repr, Repr) {
	out := make([]Repr, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Repr
	}
	return out, f.Result
}

// SigKey names a target signature, e.g. "i32_f32__i32". Equal keys mean
// interchangeable call_indirect types.
func SigKey(params []Repr, result Repr) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('_')
		}
		b.WriteString(p.String())
	}
	b.WriteString("__")
	b.WriteString(result.String())
	return b.String()
}

// name builds a target identifier from a source name and an instance id.
func name(base string, id hash.ID) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteByte('_')
	b.WriteString(id.Short())
	return b.String()
}
