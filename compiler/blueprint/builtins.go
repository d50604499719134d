package blueprint

import (
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/symbols"
	"github.com/chazu/lotus/compiler/types"
)

const (
	PreludeFile    = "<prelude>"
	PreludePackage = "lotus"
)

// Builtins holds the ids of the prelude types.
type Builtins struct {
	Int    int
	Float  int
	Bool   int
	String int
	Array  int
}

// PreludeLocation is where built-in declarations live.
func PreludeLocation(offset int) symbols.Location {
	return symbols.Location{
		Pos:      diag.Pos{File: PreludeFile, Offset: offset},
		Package:  PreludePackage,
		Internal: true,
	}
}

// Raw bodies read parameters by the emitter's naming: $p0 is the receiver
// of a method or the first argument of a free function.
func raw(ret types.Type, lines ...string) *ir.Seq {
	s := ir.New(ret)
	for _, l := range lines {
		s.Emit(&ir.Raw{Text: l})
	}
	return s
}

func (r *Registry) seedBuiltins() {
	offset := 0
	declare := func(name string, storage Storage, generics ...string) int {
		t, _ := r.DeclareType(name, symbols.Export, PreludeLocation(offset), CategoryType, generics, nil)
		t.Builtin = true
		t.Storage = storage
		offset++
		return t.ID
	}
	b := &r.Builtin
	b.Int = declare("int", StorageI32)
	b.Float = declare("float", StorageF32)
	b.Bool = declare("bool", StorageI32)
	b.String = declare("string", StorageI32)
	b.Array = declare("Array", StoragePointer, "T")

	intT := types.Actual(b.Int)
	floatT := types.Actual(b.Float)
	stringT := types.Actual(b.String)

	method := func(owner int, name string, ret types.Type, body *ir.Seq) {
		r.AddMethod(owner, &FunctionBlueprint{
			Name:   name,
			Vis:    symbols.Export,
			Loc:    PreludeLocation(offset),
			Return: ret,
			Body:   body,
		})
		offset++
	}
	method(b.Int, "to_float", floatT, raw(floatT, "local.get $p0", "f32.convert_i32_s"))
	method(b.Float, "to_int", intT, raw(intT, "local.get $p0", "i32.trunc_f32_s"))
	method(b.Float, "sqrt", floatT, raw(floatT, "local.get $p0", "f32.sqrt"))
	method(b.String, "len", intT, raw(intT, "local.get $p0", "i32.load"))
	method(b.Array, "len", intT, raw(intT, "local.get $p0", "i32.load offset=8"))
	r.AddRetain(b.Array)

	host := func(name string, arg types.Type, imported string) {
		r.DeclareFunc(&FunctionBlueprint{
			Name:   name,
			Vis:    symbols.Export,
			Loc:    PreludeLocation(offset),
			Params: []Param{{Name: "value", Type: arg}},
			Return: types.Void,
			Body:   raw(types.Void, "local.get $p0", "call $"+imported),
		})
		offset++
	}
	host("print_int", intT, "log_int")
	host("print_float", floatT, "log_float")
	host("print", stringT, "log_string")
}

// IsBuiltinValue reports whether t is int, float or bool.
func (r *Registry) IsBuiltinValue(t types.Type) bool {
	return t.Is(r.Builtin.Int) || t.Is(r.Builtin.Float) || t.Is(r.Builtin.Bool)
}

// Numeric reports whether t supports arithmetic.
func (r *Registry) Numeric(t types.Type) bool {
	return t.Is(r.Builtin.Int) || t.Is(r.Builtin.Float)
}

// ArrayOf builds Array<elem>.
func (r *Registry) ArrayOf(elem types.Type) types.Type {
	return types.Actual(r.Builtin.Array, elem)
}
