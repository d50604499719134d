package sema

import (
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/ir"
)

type source struct {
	path, pkg, text string
}

func checkSources(t *testing.T, srcs ...source) (*blueprint.Registry, *Result, *diag.List) {
	t.Helper()
	diags := &diag.List{}
	reg := blueprint.New(diags)
	var files []*compiler.File
	for _, s := range srcs {
		f, errs := compiler.ParseFile(s.path, s.pkg, s.text)
		if len(errs) > 0 {
			t.Fatalf("parse %s: %v", s.path, errs)
		}
		files = append(files, f)
	}
	res := Check(reg, diags, files)
	return reg, res, diags
}

func check(t *testing.T, srcs ...string) (*blueprint.Registry, *Result, *diag.List) {
	t.Helper()
	var out []source
	for i, s := range srcs {
		out = append(out, source{path: fmt.Sprintf("f%d.lt", i), pkg: "main", text: s})
	}
	return checkSources(t, out...)
}

func expectClean(t *testing.T, diags *diag.List) {
	t.Helper()
	for _, d := range diags.Items() {
		t.Errorf("unexpected diagnostic: %s", d)
	}
}

func expectOne(t *testing.T, diags *diag.List, want string) diag.Diagnostic {
	t.Helper()
	if diags.Len() != 1 {
		t.Fatalf("diagnostics = %v, want exactly one containing %q", diags.Items(), want)
	}
	d := diags.Items()[0]
	if !strings.Contains(d.Message, want) {
		t.Errorf("diagnostic = %q, want it to contain %q", d.Message, want)
	}
	return d
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

func count[T ir.Instr](f *blueprint.FunctionBlueprint) int {
	return ir.Count(f.Body.Instrs, func(in ir.Instr) bool {
		_, ok := in.(T)
		return ok
	})
}

func collect[T ir.Instr](f *blueprint.FunctionBlueprint) []T {
	var out []T
	ir.Walk(f.Body.Instrs, func(in ir.Instr) {
		if v, ok := in.(T); ok {
			out = append(out, v)
		}
	})
	return out
}

func TestVirtualCallThroughAncestor(t *testing.T) {
	reg, res, diags := check(t, `
class Animal { dyn fn speak() -> string }
class Dog : Animal { dyn fn speak() -> string { return "woof" } }
export fn main() -> string {
	let a: Animal = new Dog {};
	a.speak()
}`)
	expectClean(t, diags)

	main := funcNamed(t, reg, "main")
	if n := count[*ir.VTableBase](main); n != 1 {
		t.Errorf("vtable lookups = %d, want 1", n)
	}
	calls := collect[*ir.CallIndirect](main)
	if len(calls) != 1 || calls[0].Env {
		t.Fatalf("indirect calls = %v, want one without environment", calls)
	}
	speak, _ := reg.FindMethod(calls[0].Sig.Args[0].ID, "speak", false)
	if !res.Reachable.Contains(speak.ID) {
		t.Errorf("speak f%d not reachable", speak.ID)
	}
	if len(res.Entries) != 1 || res.Entries[0] != main.ID {
		t.Errorf("entries = %v, want [%d]", res.Entries, main.ID)
	}
}

func TestIfWithoutElseAsValue(t *testing.T) {
	_, _, diags := check(t, `fn f(c: bool) -> int { if c { return 1 } }`)
	expectOne(t, diags, "missing `else`")

	reg, _, diags := check(t, `fn f(c: bool) -> int { if c { return 1 } else { return 0 } }`)
	expectClean(t, diags)
	f := funcNamed(t, reg, "f")
	if !f.Body.Type.Is(reg.Builtin.Int) {
		t.Errorf("body type = %s, want int", reg.Format(f.Body.Type))
	}
}

func TestIfBranchesMerge(t *testing.T) {
	reg, _, diags := check(t, `fn f(c: bool) -> int { let x = if c { 1 } else { 2 }; x }`)
	expectClean(t, diags)
	if n := count[*ir.Block](funcNamed(t, reg, "f")); n != 2 {
		t.Errorf("blocks = %d, want 2", n)
	}

	_, _, diags = check(t, `fn f(c: bool) -> int { if c { 1 } else { "one" } }`)
	expectOne(t, diags, "incompatible types")
}

func TestClosureWithoutRetainEffect(t *testing.T) {
	reg, _, diags := check(t, `
fn f() -> int {
	let x = 1;
	let g = fn() -> int { x };
	g()
}`)
	expectClean(t, diags)

	cl := funcNamed(t, reg, "closure#1")
	if !cl.Env || cl.Closure == nil {
		t.Fatalf("closure = %+v, want an environment", cl)
	}
	if len(cl.Closure.Order) != 1 || cl.Closure.Order[0].Name != "x" {
		t.Errorf("captures = %v, want [x]", cl.Closure.Order)
	}
	companion := reg.Funcs[cl.Closure.Retain]
	if companion.Name != "closure#1.retain" {
		t.Errorf("retain companion = %q", companion.Name)
	}
	if n := count[*ir.Retain](companion); n != 0 {
		t.Errorf("retains = %d, want 0 for an int capture", n)
	}
	f := funcNamed(t, reg, "f")
	for _, c := range collect[*ir.Call](f) {
		if c.Func == companion.ID {
			t.Errorf("empty retain companion is called")
		}
	}
	if calls := collect[*ir.CallIndirect](f); len(calls) != 1 || !calls[0].Env {
		t.Errorf("closure calls = %v, want one with environment", calls)
	}
}

func TestClosureRetainsCapturedArray(t *testing.T) {
	reg, _, diags := check(t, `
fn f() -> int {
	let xs = [1, 2];
	let g = fn() -> int { xs.len() };
	g()
}`)
	expectClean(t, diags)

	cl := funcNamed(t, reg, "closure#1")
	companion := reg.Funcs[cl.Closure.Retain]
	retains := collect[*ir.Retain](companion)
	if len(retains) != 1 {
		t.Fatalf("retains = %d, want 1", len(retains))
	}
	if !retains[0].Type.Is(reg.Builtin.Array) {
		t.Errorf("retained %s, want an array", reg.Format(retains[0].Type))
	}
	called := false
	for _, c := range collect[*ir.Call](funcNamed(t, reg, "f")) {
		called = called || c.Func == companion.ID
	}
	if !called {
		t.Errorf("retain companion not called at creation")
	}
}

func TestNestedClosureCapturesThroughParent(t *testing.T) {
	reg, _, diags := check(t, `
fn f() -> int {
	let x = 1;
	let g = fn() -> int {
		let h = fn() -> int { x };
		h()
	};
	g()
}`)
	expectClean(t, diags)

	outer := funcNamed(t, reg, "closure#1")
	inner := funcNamed(t, reg, "closure#2")
	if len(outer.Closure.Order) != 1 || len(inner.Closure.Order) != 1 {
		t.Fatalf("captures: outer %v inner %v", outer.Closure.Order, inner.Closure.Order)
	}
	if outer.Closure.Order[0] != inner.Closure.Order[0] {
		t.Errorf("closures captured different variables")
	}
	if n := count[*ir.EnvGet](outer); n != 1 {
		t.Errorf("outer env reads = %d, want 1 (to fill the inner environment)", n)
	}
}

func TestCapturedAssignmentStaysLocal(t *testing.T) {
	reg, _, diags := check(t, `
fn f() -> int {
	let x = 1;
	let g = fn() { x = 2; };
	g();
	x
}`)
	expectClean(t, diags)
	cl := funcNamed(t, reg, "closure#1")
	if n := count[*ir.EnvStore](cl); n != 1 {
		t.Errorf("env stores = %d, want 1", n)
	}
	if n := count[*ir.EnvAddr](cl); n != 1 {
		t.Errorf("env addr = %d, want 1", n)
	}
}

func TestCompoundIndexAssignment(t *testing.T) {
	reg, _, diags := check(t, `
fn f() {
	let a = [1, 2];
	a[0] += 5;
}`)
	expectClean(t, diags)

	f := funcNamed(t, reg, "f")
	if ids := f.Body.Placeholders(); len(ids) != 0 {
		t.Errorf("placeholders left: %v", ids)
	}
	if n := count[*ir.ArrayGet](f); n != 1 {
		t.Errorf("array reads = %d, want 1", n)
	}
	if n := count[*ir.ArraySet](f); n != 3 {
		t.Errorf("array writes = %d, want 3", n)
	}
	if n := count[*ir.LocalTee](f); n != 2 {
		t.Errorf("tees = %d, want 2", n)
	}
}

func TestAssignToSelfRejected(t *testing.T) {
	_, _, diags := check(t, `
class Counter {
	n: int;
	fn reset() { self = new Counter { n: 0 }; }
}`)
	expectOne(t, diags, "cannot assign to `self`")
}

func TestUndefinedDoesNotCascade(t *testing.T) {
	_, _, diags := check(t, `fn f() -> int { let y = missing; y + 1 }`)
	d := expectOne(t, diags, "undefined variable `missing`")
	if d.Kind != diag.UndefinedSymbol {
		t.Errorf("kind = %s, want undefined symbol", d.Kind)
	}
}

func TestMissingReturn(t *testing.T) {
	_, _, diags := check(t, `fn f() -> int { let x = 1; }`)
	expectOne(t, diags, "missing return")
}

func TestFunctionVisibility(t *testing.T) {
	_, _, diags := checkSources(t,
		source{"a.lt", "a", `
fn helper() -> int { 1 }
pub fn shared() -> int { 2 }`},
		source{"b.lt", "a", `
fn one() -> int { helper() }
fn two() -> int { shared() }`},
		source{"c.lt", "b", `fn three() -> int { shared() }`},
	)
	if diags.Len() != 2 {
		t.Fatalf("diagnostics = %v, want 2", diags.Items())
	}
	for _, d := range diags.Items() {
		if !strings.Contains(d.Message, "not visible") {
			t.Errorf("diagnostic = %q, want a visibility error", d.Message)
		}
	}
}

func TestGenericInference(t *testing.T) {
	reg, res, diags := check(t, `
fn id<T>(x: T) -> T { x }
export fn main() -> int { id(3) }`)
	expectClean(t, diags)

	id := funcNamed(t, reg, "id")
	calls := collect[*ir.Call](funcNamed(t, reg, "main"))
	if len(calls) != 1 || calls[0].Func != id.ID {
		t.Fatalf("calls = %v, want one call of id", calls)
	}
	if len(calls[0].Args) != 1 || !calls[0].Args[0].Is(reg.Builtin.Int) {
		t.Errorf("type arguments = %v, want [int]", calls[0].Args)
	}
	if !res.Reachable.Contains(id.ID) {
		t.Errorf("id not reachable")
	}
}

func TestUninferableTypeArgument(t *testing.T) {
	_, _, diags := check(t, `
fn zero<T>() -> int { 0 }
fn f() -> int { zero() }`)
	expectOne(t, diags, "cannot infer type argument `T`")

	_, _, diags = check(t, `
fn zero<T>() -> int { 0 }
fn f() -> int { zero::<float>() }`)
	expectClean(t, diags)
}

func TestInterfaceBoundCall(t *testing.T) {
	const decls = `
interface Show { fn show() -> string; }
type Label {
	text: string;
	fn show() -> string { self.text }
}
fn render<T: Show>(x: T) -> string { x.show() }
`
	reg, _, diags := check(t, decls+`export fn main() -> string { render(new Label { text: "hi" }) }`)
	expectClean(t, diags)
	calls := collect[*ir.Call](funcNamed(t, reg, "render"))
	if len(calls) != 1 || calls[0].Receiver == nil {
		t.Fatalf("calls = %v, want one requirement call keeping its receiver", calls)
	}

	_, _, diags = check(t, decls+`fn f() -> string { render(3) }`)
	d := expectOne(t, diags, "does not satisfy `Show`")
	if d.Kind != diag.InterfaceMismatch {
		t.Errorf("kind = %s, want interface mismatch", d.Kind)
	}
}

func TestStaticCallAndVariants(t *testing.T) {
	reg, _, diags := check(t, `
enum Color { Red, Green }
class Point {
	x: int;
	static fn origin() -> Point { new Point { x: 0 } }
}
fn f(c: Color) -> int {
	let p = Point::origin();
	match c { Color::Red => p.x, _ => 1 }
}`)
	expectClean(t, diags)
	origin, _ := reg.FindMethod(funcNamed(t, reg, "origin").Owner, "origin", true)
	calls := collect[*ir.Call](funcNamed(t, reg, "f"))
	if len(calls) != 1 || calls[0].Func != origin.ID || calls[0].Receiver != nil {
		t.Errorf("calls = %v, want Point::origin", calls)
	}

	_, _, diags = check(t, `
enum Color { Red }
fn f() -> int { Color::Red() }`)
	expectOne(t, diags, "is a variant")
}

func TestMissingFieldsInNew(t *testing.T) {
	_, _, diags := check(t, `
class Point { x: int; y: int; }
fn f() -> Point { new Point { x: 1 } }`)
	expectOne(t, diags, "missing field `y`")
}

func TestAbstractTypeNotInstantiable(t *testing.T) {
	_, _, diags := check(t, `
class Shape { dyn fn area() -> float }
fn f() -> Shape { new Shape {} }`)
	expectOne(t, diags, "has no body")
}

func TestLoopJumpDepths(t *testing.T) {
	reg, _, diags := check(t, `
fn f(c: bool) {
	while true {
		if c { break; }
		continue;
	}
}`)
	expectClean(t, diags)

	f := funcNamed(t, reg, "f")
	var depths []int
	for _, j := range collect[*ir.Jump](f) {
		depths = append(depths, j.Depth)
	}
	if fmt.Sprint(depths) != "[2 0 0]" {
		t.Errorf("jump depths = %v, want [2 0 0]", depths)
	}
	var conds []int
	for _, j := range collect[*ir.JumpIf](f) {
		conds = append(conds, j.Depth)
	}
	if fmt.Sprint(conds) != "[1 0]" {
		t.Errorf("jump_if depths = %v, want [1 0]", conds)
	}

	_, _, diags = check(t, `fn g() { break; }`)
	expectOne(t, diags, "outside of a loop")
}

func TestEventCallbackSignature(t *testing.T) {
	reg, _, diags := check(t, `
class Tick { n: int; }
class Clock {
	@on(Tick, before, 3)
	fn onTick(t: Tick) {}
}`)
	expectClean(t, diags)
	clock := reg.Types[funcNamed(t, reg, "onTick").Owner]
	if len(clock.Events) != 1 || clock.Events[0].Priority != 3 {
		t.Errorf("events = %v, want one with priority 3", clock.Events)
	}

	_, _, diags = check(t, `
class Tick { n: int; }
class Clock {
	@on(Tick)
	fn onTick(t: int) {}
}`)
	expectOne(t, diags, "must take a single Tick parameter")
}

func TestExportedGenericRejected(t *testing.T) {
	_, _, diags := check(t, `export fn id<T>(x: T) -> T { x }`)
	expectOne(t, diags, "cannot have generic parameters")
}
