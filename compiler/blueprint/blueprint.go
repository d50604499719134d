// Package blueprint holds the declaration-level descriptors of every type,
// function and interface, in one arena addressed by integer ids.
//
// Blueprints never point at each other: parents, owners, closures and their
// retain companions are all stored as ids, and the Registry that owns the
// arena is the only thing that tears it down.
package blueprint

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/symbols"
	"github.com/chazu/lotus/compiler/types"
)

// None is the id used where a blueprint reference is absent.
const None = -1

// Category is the declared kind of a type.
type Category int

const (
	CategoryType Category = iota
	CategoryClass
	CategoryEnum
)

func (c Category) String() string {
	switch c {
	case CategoryClass:
		return "class"
	case CategoryEnum:
		return "enum"
	}
	return "type"
}

// Storage is how values of a built-in type are represented. User types are
// always StoragePointer; whether they are erased is decided by Erased.
type Storage uint8

const (
	StoragePointer Storage = iota
	StorageI32
	StorageF32
)

// GenericParam is one generic parameter with its interface bounds.
type GenericParam struct {
	Name   string
	Index  int
	Bounds []int // interface ids
}

// Field is one field in a type's layout. Slot is its position in the full
// layout, ancestors first, and never changes once assigned.
type Field struct {
	Name  string
	Owner int // declaring type
	Type  types.Type
	Slot  int
	Pos   diag.Pos
}

// TypeBlueprint describes one type, class or enum declaration.
type TypeBlueprint struct {
	ID       int
	Name     string
	Vis      symbols.Visibility
	Loc      symbols.Location
	Category Category
	Generics []GenericParam

	AssocNames []string
	Assoc      map[string]types.Type

	// Parent is Void for roots and Undefined when it could not be resolved
	// or would close a cycle.
	Parent    types.Type
	Ancestors []int // root-first, excluding this type

	Fields   []*Field
	Variants []string

	Methods map[string]int // instance methods declared here
	Statics map[string]int // static methods declared here
	Order   []int          // every method declared here, in declaration order

	Dynamic       []int // methods declared here that own a dispatch index
	DispatchCount int   // dispatch slots including ancestors

	Events []*Callback
	Retain int // __retain method, None when the type has no retain effect

	Builtin bool
	Storage Storage

	inherited bool
}

// SelfType is the type as seen inside its own declaration: the blueprint
// applied to its own parameters.
func (t *TypeBlueprint) SelfType() types.Type {
	args := make([]types.Type, len(t.Generics))
	for i := range t.Generics {
		args[i] = types.TypeParam(t.ID, i)
	}
	return types.Actual(t.ID, args...)
}

// Param is a declared function parameter.
type Param struct {
	Name string
	Type types.Type
}

// FunctionBlueprint describes a free function, method, interface
// requirement, closure or synthesized function.
type FunctionBlueprint struct {
	ID       int
	Name     string
	Vis      symbols.Visibility
	Loc      symbols.Location
	Generics []GenericParam
	Params   []Param
	Return   types.Type

	Owner     int // type id for methods, None otherwise
	Interface int // interface id for requirements, None otherwise

	Static        bool
	Dynamic       bool
	Env           bool // takes a closure environment as parameter 0
	Abstract      bool
	Autogenerated bool
	Exported      bool

	Declarer      int // type that first declared this dynamic method
	DispatchIndex int // None unless Dynamic

	Closure *Closure

	// Body is the unresolved IR. Built-ins carry Raw instructions.
	Body *ir.Seq
}

// IsMethod reports whether the function takes a receiver.
func (f *FunctionBlueprint) IsMethod() bool {
	return (f.Owner != None || f.Interface != None) && !f.Static
}

// Signature returns the function type of the declared parameters and
// return, without the receiver.
func (f *FunctionBlueprint) Signature() types.Type {
	args := make([]types.Type, len(f.Params))
	for i, p := range f.Params {
		args[i] = p.Type
	}
	return types.Function(args, f.Return)
}

// Closure is the metadata of a synthesized anonymous function.
type Closure struct {
	Parent int // enclosing function

	// Captures is the set of outer variables referenced in the body. Keys
	// assigns each a stable slot in the environment, in first-reference
	// order.
	Captures *set.Set[*ir.Var]
	Keys     map[*ir.Var]int
	Order    []*ir.Var

	Retain int // companion retain function, None until synthesized
}

// Key returns the environment slot of captured variable v.
func (c *Closure) Key(v *ir.Var) (int, bool) {
	k, ok := c.Keys[v]
	return k, ok
}

// NewClosure creates empty closure metadata.
func NewClosure(parent int) *Closure {
	return &Closure{
		Parent:   parent,
		Captures: set.New[*ir.Var](4),
		Keys:     make(map[*ir.Var]int),
		Retain:   None,
	}
}

// Capture records a reference to v and returns its key. The first
// reference assigns the key.
func (c *Closure) Capture(v *ir.Var) int {
	if c.Captures.Insert(v) {
		c.Keys[v] = len(c.Order)
		c.Order = append(c.Order, v)
	}
	return c.Keys[v]
}

// Captured reports whether v is already captured.
func (c *Closure) Captured(v *ir.Var) bool {
	return c.Captures.Contains(v)
}

// InterfaceBlueprint describes an interface: associated type requirements
// and method signatures.
type InterfaceBlueprint struct {
	ID         int
	Name       string
	Vis        symbols.Visibility
	Loc        symbols.Location
	AssocNames []string
	Methods    map[string]int
	Order      []int
}
