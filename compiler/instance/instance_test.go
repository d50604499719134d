package instance

import (
	"errors"
	"testing"

	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/sema"
	"github.com/chazu/lotus/compiler/types"
)

func build(t *testing.T, src string) (*blueprint.Registry, *Generator) {
	t.Helper()
	diags := &diag.List{}
	reg := blueprint.New(diags)
	f, errs := compiler.ParseFile("test.lt", "main", src)
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}
	sema.Check(reg, diags, []*compiler.File{f})
	if !diags.Empty() {
		t.Fatalf("diagnostics: %v", diags.Items())
	}
	return reg, New(reg)
}

func typeNamed(t *testing.T, reg *blueprint.Registry, name string) *blueprint.TypeBlueprint {
	t.Helper()
	for _, bp := range reg.Types {
		if bp.Name == name {
			return bp
		}
	}
	t.Fatalf("no type %q", name)
	return nil
}

func funcNamed(t *testing.T, reg *blueprint.Registry, name string) *blueprint.FunctionBlueprint {
	t.Helper()
	for _, f := range reg.Funcs {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no function %q", name)
	return nil
}

func mustType(t *testing.T, g *Generator, typ types.Type) *TypeInstance {
	t.Helper()
	ti, err := g.Type(typ)
	if err != nil {
		t.Fatalf("Type(%s): %v", typ, err)
	}
	return ti
}

func TestGenericTypeInstantiatedOncePerArgument(t *testing.T) {
	reg, g := build(t, `type Box<T> { value: T; }`)
	box := typeNamed(t, reg, "Box")
	intT, floatT := types.Actual(reg.Builtin.Int), types.Actual(reg.Builtin.Float)

	boxInt := mustType(t, g, types.Actual(box.ID, intT))
	boxFloat := mustType(t, g, types.Actual(box.ID, floatT))
	if again := mustType(t, g, types.Actual(box.ID, intT)); again != boxInt {
		t.Error("Box<int> instantiated twice")
	}

	n := 0
	for _, ti := range g.Types() {
		if ti.Blueprint == box {
			n++
		}
	}
	if n != 2 {
		t.Errorf("Box instances = %d, want 2", n)
	}
	if boxInt.ID == boxFloat.ID || boxInt.Name == boxFloat.Name {
		t.Errorf("Box<int> and Box<float> share an identity")
	}
	if boxInt.Fields[0].Repr != ReprI32 || boxFloat.Fields[0].Repr != ReprF32 {
		t.Errorf("field kinds = %s, %s; want i32, f32", boxInt.Fields[0].Repr, boxFloat.Fields[0].Repr)
	}
	if boxInt.Fields[0].Offset != HeaderSize || boxInt.Size != HeaderSize+SlotSize {
		t.Errorf("layout = offset %d size %d", boxInt.Fields[0].Offset, boxInt.Size)
	}
}

func TestSelfReferentialType(t *testing.T) {
	reg, g := build(t, `class Node { next: Node; value: int; }`)
	node := mustType(t, g, typeNamed(t, reg, "Node").SelfType())
	if node.Fields[0].Type != node {
		t.Errorf("next field type = %s, want the instance itself", node.Fields[0].Type.Name)
	}
	if node.Fields[1].Offset != HeaderSize+SlotSize {
		t.Errorf("value offset = %d", node.Fields[1].Offset)
	}
}

func TestErasedFieldsHaveNoOffset(t *testing.T) {
	reg, g := build(t, `
type Marker {}
class Holder { m: Marker; n: int; }`)
	marker := mustType(t, g, typeNamed(t, reg, "Marker").SelfType())
	if !marker.Erased() {
		t.Fatalf("Marker repr = %s, want erased", marker.Repr)
	}
	holder := mustType(t, g, typeNamed(t, reg, "Holder").SelfType())
	if holder.Fields[0].Offset != -1 {
		t.Errorf("erased field offset = %d, want -1", holder.Fields[0].Offset)
	}
	if holder.Fields[1].Offset != HeaderSize || holder.Size != HeaderSize+SlotSize {
		t.Errorf("n offset = %d size = %d", holder.Fields[1].Offset, holder.Size)
	}
}

func TestAncestorFieldsComeFirst(t *testing.T) {
	reg, g := build(t, `
class A { x: int; }
class B : A { y: float; }`)
	b := mustType(t, g, typeNamed(t, reg, "B").SelfType())
	if len(b.Fields) != 2 || b.Fields[0].Name != "x" || b.Fields[1].Name != "y" {
		t.Fatalf("fields = %+v", b.Fields)
	}
	if b.Fields[0].Offset != 8 || b.Fields[1].Offset != 12 || b.Fields[1].Repr != ReprF32 {
		t.Errorf("layout = %+v", b.Fields)
	}
}

func TestNestingDepthGuard(t *testing.T) {
	reg, g := build(t, `type Box<T> { value: T; }`)
	box := typeNamed(t, reg, "Box")
	nested := types.Actual(reg.Builtin.Int)
	for i := 0; i <= MaxDepth; i++ {
		nested = types.Actual(box.ID, nested)
	}
	if _, err := g.Type(nested); !errors.Is(err, ErrTooDeep) {
		t.Errorf("err = %v, want ErrTooDeep", err)
	}
}

func TestNonConcreteTypeRejected(t *testing.T) {
	reg, g := build(t, `type Box<T> { value: T; }`)
	if _, err := g.Type(typeNamed(t, reg, "Box").SelfType()); !errors.Is(err, ErrNotConcrete) {
		t.Errorf("err = %v, want ErrNotConcrete", err)
	}
}

func TestVTableBlocks(t *testing.T) {
	reg, g := build(t, `
class Animal { dyn fn speak() -> string }
class Dog : Animal { dyn fn speak() -> string { "woof" } }
class Cat : Animal { dyn fn speak() -> string { "meow" } }`)

	dog := mustType(t, g, typeNamed(t, reg, "Dog").SelfType())
	cat := mustType(t, g, typeNamed(t, reg, "Cat").SelfType())
	if base, err := g.VTable(dog); err != nil || base != 0 {
		t.Fatalf("Dog vtable = %d, %v; want 0", base, err)
	}
	if base, err := g.VTable(cat); err != nil || base != 1 {
		t.Fatalf("Cat vtable = %d, %v; want 1", base, err)
	}
	if base, _ := g.VTable(dog); base != 0 {
		t.Errorf("vtable moved to %d", base)
	}
	if dog.VTable[0].Blueprint.Owner != dog.Blueprint.ID {
		t.Errorf("Dog slot 0 implemented by %s", dog.VTable[0].Name)
	}
	if len(g.Table()) != 2 {
		t.Errorf("table = %d slots, want 2", len(g.Table()))
	}

	animal := mustType(t, g, typeNamed(t, reg, "Animal").SelfType())
	if _, err := g.VTable(animal); !errors.Is(err, ErrAbstract) {
		t.Errorf("Animal vtable err = %v, want ErrAbstract", err)
	}
}

func TestFunctionInstancesMemoizedAndQueued(t *testing.T) {
	reg, g := build(t, `fn id<T>(x: T) -> T { x }`)
	id := funcNamed(t, reg, "id")
	intT, floatT := types.Actual(reg.Builtin.Int), types.Actual(reg.Builtin.Float)

	a, err := g.Func(id, types.Void, []types.Type{intT})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := g.Func(id, types.Void, []types.Type{floatT})
	if again, _ := g.Func(id, types.Void, []types.Type{intT}); again != a {
		t.Error("id<int> instantiated twice")
	}
	if a == b || a.Name == b.Name {
		t.Error("id<int> and id<float> share an instance")
	}
	if len(a.Params) != 1 || a.Params[0].Repr != ReprI32 || a.Result != ReprI32 {
		t.Errorf("id<int> signature = %+v -> %s", a.Params, a.Result)
	}
	if b.Params[0].Repr != ReprF32 || b.Result != ReprF32 {
		t.Errorf("id<float> signature = %+v -> %s", b.Params, b.Result)
	}

	var order []*FuncInstance
	for fi, ok := g.Next(); ok; fi, ok = g.Next() {
		order = append(order, fi)
	}
	if len(order) != 2 || order[0] != a || order[1] != b {
		t.Errorf("queue = %v, want [id<int> id<float>]", order)
	}
}

func TestErasedReceiverHasNoParameter(t *testing.T) {
	reg, g := build(t, `type Unit { fn get(n: int) -> int { n } }`)
	unit := typeNamed(t, reg, "Unit")
	fi, err := g.Func(funcNamed(t, reg, "get"), unit.SelfType(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(fi.Params) != 1 || fi.Params[0].Index != 1 {
		t.Errorf("params = %+v, want only p1", fi.Params)
	}
}

func TestClosureTakesEnvironment(t *testing.T) {
	reg, g := build(t, `
fn f() -> int {
	let x = 1;
	let g = fn(y: float) -> int { x };
	g(2.0)
}`)
	fi, err := g.Func(funcNamed(t, reg, "closure#1"), types.Void, nil)
	if err != nil {
		t.Fatal(err)
	}
	params, result := fi.Signature()
	if SigKey(params, result) != "i32_f32__i32" {
		t.Errorf("signature = %s, want i32_f32__i32", SigKey(params, result))
	}
	slot := g.TableIndex(fi)
	if g.TableIndex(fi) != slot || !g.HasTableIndex(fi) {
		t.Errorf("table slot not stable")
	}
}

func findCall(t *testing.T, f *blueprint.FunctionBlueprint) *ir.Call {
	t.Helper()
	var call *ir.Call
	ir.Walk(f.Body.Instrs, func(in ir.Instr) {
		if c, ok := in.(*ir.Call); ok && call == nil {
			call = c
		}
	})
	if call == nil {
		t.Fatalf("no call in %s", f.Name)
	}
	return call
}

func TestCalleeThroughInterfaceBound(t *testing.T) {
	reg, g := build(t, `
interface Show { fn show() -> string; }
type Label {
	text: string;
	fn show() -> string { self.text }
}
class Base { dyn fn show() -> string { "base" } }
fn render<T: Show>(x: T) -> string { x.show() }`)

	call := findCall(t, funcNamed(t, reg, "render"))
	label := typeNamed(t, reg, "Label").SelfType()
	target, err := g.Callee(Context{This: types.Void, Args: []types.Type{label}}, call)
	if err != nil {
		t.Fatal(err)
	}
	if target.Virtual || target.Func.Blueprint.Owner != label.ID {
		t.Errorf("Label target = %+v, want a static call of Label.show", target)
	}

	base := typeNamed(t, reg, "Base").SelfType()
	target, err = g.Callee(Context{This: types.Void, Args: []types.Type{base}}, call)
	if err != nil {
		t.Fatal(err)
	}
	if !target.Virtual || target.Index != 0 {
		t.Fatalf("Base target = %+v, want virtual slot 0", target)
	}
	if key := SigKey(target.Sig.Params, target.Sig.Result); key != "i32__i32" {
		t.Errorf("slot signature = %s, want i32__i32", key)
	}
}

func TestRetainFunc(t *testing.T) {
	reg, g := build(t, `class Holder { n: int; }`)
	fi, err := g.RetainFunc(typeNamed(t, reg, "Holder").SelfType())
	if err != nil || fi == nil {
		t.Fatalf("Holder retain = %v, %v", fi, err)
	}
	if fi.Blueprint.Name != blueprint.RetainName {
		t.Errorf("retain = %s", fi.Blueprint.Name)
	}
	if fi, _ := g.RetainFunc(types.Actual(reg.Builtin.Int)); fi != nil {
		t.Errorf("int has retain %s", fi.Name)
	}
}

func TestEventBindings(t *testing.T) {
	reg, g := build(t, `
class Tick { n: int; }
class Base {
	@on(Tick, after)
	fn late(t: Tick) {}
}
class Clock : Base {
	@on(Tick, before)
	fn early(t: Tick) {}
}`)
	clock := mustType(t, g, typeNamed(t, reg, "Clock").SelfType())
	bindings, err := g.Events(clock)
	if err != nil {
		t.Fatal(err)
	}
	if len(bindings) != 1 || len(bindings[0].Callbacks) != 2 {
		t.Fatalf("bindings = %+v", bindings)
	}
	if got := bindings[0].Callbacks[0].Blueprint.Name; got != "early" {
		t.Errorf("first callback = %s, want early", got)
	}
}
