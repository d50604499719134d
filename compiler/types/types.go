// Package types is the Lotus type model: a structurally compared value with
// one variant per kind of type, plus assignability, common-type, parameter
// substitution and inference.
//
// Types refer to blueprints by their integer arena id. Everything that needs
// to know about blueprints (ancestors, associated types, names) goes through
// the Env interface, which the blueprint registry implements.
package types

import (
	"fmt"
	"strings"
)

// Kind selects the variant of a Type.
type Kind uint8

const (
	KindVoid Kind = iota
	KindUndefined
	KindActual     // a blueprint applied to arguments
	KindTypeParam  // the Index-th generic parameter of type blueprint ID
	KindFuncParam  // the Index-th generic parameter of function blueprint ID
	KindAssociated // Root::Name
	KindThis       // the implementing type inside interface ID
	KindFunction   // fn(Args) -> Ret
)

var kindNames = [...]string{
	KindVoid:       "void",
	KindUndefined:  "undefined",
	KindActual:     "actual",
	KindTypeParam:  "type parameter",
	KindFuncParam:  "function parameter",
	KindAssociated: "associated",
	KindThis:       "this",
	KindFunction:   "function",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is a value. Compare with Equal, never with ==.
type Type struct {
	Kind  Kind
	ID    int    // blueprint id (Actual, TypeParam, This) or function id (FuncParam)
	Index int    // parameter index
	Name  string // associated type name
	Args  []Type // Actual arguments, Function argument types
	Elem  *Type  // Associated root, Function return type
}

var (
	// Void is the type of statements and of functions returning nothing.
	Void = Type{Kind: KindVoid}

	// Undefined marks a failed check. It is assignable to and from every
	// type so a single mistake is reported once.
	Undefined = Type{Kind: KindUndefined}
)

// Actual builds blueprint id applied to args.
func Actual(id int, args ...Type) Type {
	return Type{Kind: KindActual, ID: id, Args: args}
}

// TypeParam builds the index-th generic parameter of a type blueprint.
func TypeParam(owner, index int) Type {
	return Type{Kind: KindTypeParam, ID: owner, Index: index}
}

// FuncParam builds the index-th generic parameter of a function blueprint.
func FuncParam(owner, index int) Type {
	return Type{Kind: KindFuncParam, ID: owner, Index: index}
}

// Associated builds root::name.
func Associated(root Type, name string) Type {
	return Type{Kind: KindAssociated, Name: name, Elem: &root}
}

// This builds the implementing type of interface owner.
func This(owner int) Type {
	return Type{Kind: KindThis, ID: owner}
}

// Function builds fn(args) -> ret.
func Function(args []Type, ret Type) Type {
	return Type{Kind: KindFunction, Args: args, Elem: &ret}
}

func (t Type) IsVoid() bool      { return t.Kind == KindVoid }
func (t Type) IsUndefined() bool { return t.Kind == KindUndefined }
func (t Type) IsActual() bool    { return t.Kind == KindActual }
func (t Type) IsFunction() bool  { return t.Kind == KindFunction }

// Root returns the root of an associated type.
func (t Type) Root() Type {
	if t.Elem == nil {
		return Undefined
	}
	return *t.Elem
}

// Return returns the return type of a function type.
func (t Type) Return() Type {
	if t.Elem == nil {
		return Void
	}
	return *t.Elem
}

// Is reports whether t is the non-generic actual type of blueprint id.
func (t Type) Is(id int) bool {
	return t.Kind == KindActual && t.ID == id
}

// Equal is structural equality.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindVoid, KindUndefined:
		return true
	case KindActual:
		return t.ID == o.ID && equalList(t.Args, o.Args)
	case KindTypeParam, KindFuncParam:
		return t.ID == o.ID && t.Index == o.Index
	case KindThis:
		return t.ID == o.ID
	case KindAssociated:
		return t.Name == o.Name && t.Root().Equal(o.Root())
	case KindFunction:
		return equalList(t.Args, o.Args) && t.Return().Equal(o.Return())
	}
	return false
}

func equalList(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// IsGeneric reports whether t mentions any parameter, Self or unresolved
// associated type, i.e. whether it needs an instantiation context before it
// can be resolved.
func (t Type) IsGeneric() bool {
	switch t.Kind {
	case KindTypeParam, KindFuncParam, KindThis, KindAssociated:
		return true
	case KindActual, KindFunction:
		for _, a := range t.Args {
			if a.IsGeneric() {
				return true
			}
		}
		if t.Kind == KindFunction {
			return t.Return().IsGeneric()
		}
	}
	return false
}

// ContainsUndefined reports whether an error marker appears anywhere in t.
func (t Type) ContainsUndefined() bool {
	switch t.Kind {
	case KindUndefined:
		return true
	case KindActual, KindFunction:
		for _, a := range t.Args {
			if a.ContainsUndefined() {
				return true
			}
		}
		if t.Kind == KindFunction {
			return t.Return().ContainsUndefined()
		}
	case KindAssociated:
		return t.Root().ContainsUndefined()
	}
	return false
}

// String renders t without names. Use Format for diagnostics.
func (t Type) String() string {
	return t.Format(nil)
}

// Format renders t for humans, using env for names when it is not nil.
func (t Type) Format(env Env) string {
	var b strings.Builder
	t.format(&b, env)
	return b.String()
}

func (t Type) format(b *strings.Builder, env Env) {
	switch t.Kind {
	case KindVoid:
		b.WriteString("void")
	case KindUndefined:
		b.WriteString("?")
	case KindActual:
		if env != nil {
			b.WriteString(env.TypeName(t.ID))
		} else {
			fmt.Fprintf(b, "#%d", t.ID)
		}
		formatArgs(b, env, t.Args)
	case KindTypeParam:
		if env != nil {
			b.WriteString(env.TypeParamName(t.ID, t.Index))
		} else {
			fmt.Fprintf(b, "T%d.%d", t.ID, t.Index)
		}
	case KindFuncParam:
		if env != nil {
			b.WriteString(env.FuncParamName(t.ID, t.Index))
		} else {
			fmt.Fprintf(b, "F%d.%d", t.ID, t.Index)
		}
	case KindThis:
		b.WriteString("Self")
	case KindAssociated:
		t.Root().format(b, env)
		b.WriteString("::")
		b.WriteString(t.Name)
	case KindFunction:
		b.WriteString("fn(")
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.format(b, env)
		}
		b.WriteString(")")
		if ret := t.Return(); !ret.IsVoid() {
			b.WriteString(" -> ")
			ret.format(b, env)
		}
	}
}

func formatArgs(b *strings.Builder, env Env, args []Type) {
	if len(args) == 0 {
		return
	}
	b.WriteString("<")
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.format(b, env)
	}
	b.WriteString(">")
}
