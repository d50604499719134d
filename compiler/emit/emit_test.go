package emit

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/lotus/compiler"
	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/sema"
)

func compile(t *testing.T, src string) *Module {
	t.Helper()
	diags := &diag.List{}
	reg := blueprint.New(diags)
	f, errs := compiler.ParseFile("test.lt", "main", src)
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}
	res := sema.Check(reg, diags, []*compiler.File{f})
	if !diags.Empty() {
		t.Fatalf("diagnostics: %v", diags.Items())
	}
	m, err := Emit(reg, res.Entries, Options{})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return m
}

func expectContains(t *testing.T, text string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(text, p) {
			t.Errorf("module does not contain %q:\n%s", p, text)
		}
	}
}

func TestModuleShape(t *testing.T) {
	m := compile(t, `export fn main() -> int { 1 + 2 }`)
	expectContains(t, m.Text,
		"(module\n",
		`(import "env" "log_int" (func $log_int (param i32)))`,
		`(memory (export "memory") 1)`,
		"(func $lotus_alloc",
		"(type $sig_i32__ (func (param i32)))",
		`(export "main" (func $main_`,
		"i32.add",
	)
	if strings.LastIndex(m.Text, "(import") > strings.Index(m.Text, "\n  (func ") {
		t.Error("imports must precede function definitions")
	}
}

func TestGenericInstancesHaveTheirOwnLayout(t *testing.T) {
	m := compile(t, `
type Box<T> { value: T; }
fn get<T>(b: Box<T>) -> T { b.value }
export fn main() -> float {
	let a = new Box<int> { value: 1 };
	let b = new Box<float> { value: 2.0 };
	get(b) + get(a).to_float()
}`)
	if n := strings.Count(m.Text, "(func $get_"); n != 2 {
		t.Errorf("get instances = %d, want 2", n)
	}
	expectContains(t, m.Text, "i32.load offset=8", "f32.load offset=8", "f32.store offset=8")

	boxes := 0
	for _, ts := range m.Symbols.Types {
		if strings.HasPrefix(ts.Name, "$Box_") {
			boxes++
			if ts.Size != 12 {
				t.Errorf("%s size = %d, want 12", ts.Name, ts.Size)
			}
		}
	}
	if boxes != 2 {
		t.Errorf("Box instances = %d, want 2", boxes)
	}
}

func TestInstanceEmittedOnce(t *testing.T) {
	m := compile(t, `
fn id<T>(x: T) -> T { x }
export fn main() -> int { id(1) + id(2) }`)
	if n := strings.Count(m.Text, "(func $id_"); n != 1 {
		t.Errorf("id instances = %d, want 1", n)
	}
}

const animals = `
class Animal { dyn fn speak() -> string }
class Dog : Animal { dyn fn speak() -> string { return "woof" } }
export fn main() -> string {
	let a: Animal = new Dog {};
	a.speak()
}`

func TestVirtualCallThroughTable(t *testing.T) {
	m := compile(t, animals)
	expectContains(t, m.Text,
		"(type $sig_i32__i32 (func (param i32) (result i32)))",
		"call_indirect (type $sig_i32__i32)",
		"(elem (i32.const 0) $Dog.speak_",
		`"\04\00\00\00woof"`,
		"call $lotus_new",
	)
	if m.Symbols.Table != 1 {
		t.Errorf("table size = %d, want 1", m.Symbols.Table)
	}
}

func TestDeterministicOutput(t *testing.T) {
	a, b := compile(t, animals), compile(t, animals)
	if a.Text != b.Text {
		t.Fatal("module text differs between runs")
	}
	ab, err := a.Symbols.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	bb, _ := b.Symbols.Marshal()
	if !bytes.Equal(ab, bb) {
		t.Error("symbol maps differ between runs")
	}
	back, err := UnmarshalSymbolMap(ab)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Exports) != 1 || back.Exports[0].Name != "main" {
		t.Errorf("exports = %+v", back.Exports)
	}
}

func TestClosureRecords(t *testing.T) {
	m := compile(t, `
export fn main() -> int {
	let x = 1;
	let g = fn(y: int) -> int { x + y };
	g(2)
}`)
	expectContains(t, m.Text,
		"call $lotus_closure_new",
		"call_indirect (type $sig_i32_i32__i32)",
		"(func $closure_1_",
		"(func $closure_1.retain_",
	)
	if m.Symbols.Table != 2 {
		t.Errorf("table size = %d, want closure and companion", m.Symbols.Table)
	}
}

func TestStringsInterned(t *testing.T) {
	m := compile(t, `
export fn main() {
	print("hi");
	print("hi");
	print("yo");
}`)
	if n := strings.Count(m.Text, "(data "); n != 2 {
		t.Errorf("data segments = %d, want 2", n)
	}
	expectContains(t, m.Text, `(data (i32.const 16) "\02\00\00\00hi")`, "call $log_string")
}

func TestErasedReceiverDropped(t *testing.T) {
	m := compile(t, `
type Unit { fn get(n: int) -> int { n } }
export fn main() -> int {
	let u = new Unit {};
	u.get(3)
}`)
	expectContains(t, m.Text, "(param $p1 i32) (result i32)")
	if strings.Contains(m.Text, "(param $p0") {
		t.Error("erased receiver became a parameter")
	}
}

func TestEventSlots(t *testing.T) {
	m := compile(t, `
class Tick { n: int; }
class Clock {
	n: int;
	@on(Tick, after)
	fn late(t: Tick) {}
	@on(Tick, before)
	fn early(t: Tick) {}
}
export fn main() -> int {
	let c = new Clock { n: 0 };
	c.n
}`)
	if len(m.Symbols.Events) != 1 {
		t.Fatalf("events = %+v, want one binding", m.Symbols.Events)
	}
	ev := m.Symbols.Events[0]
	if len(ev.Slots) != 2 {
		t.Fatalf("slots = %v, want 2", ev.Slots)
	}
	var first string
	for _, f := range m.Symbols.Funcs {
		if f.Slot == ev.Slots[0] {
			first = f.Source
		}
	}
	if first != "Clock.early" {
		t.Errorf("first callback = %q, want Clock.early", first)
	}
}

func TestNoEntry(t *testing.T) {
	reg := blueprint.New(&diag.List{})
	if _, err := Emit(reg, nil, Options{}); !errors.Is(err, ErrNoEntry) {
		t.Errorf("err = %v, want ErrNoEntry", err)
	}
}

// funcText returns the text of the first function whose name starts with
// name, up to the next top-level form.
func funcText(t *testing.T, text, name string) string {
	t.Helper()
	start := strings.Index(text, "(func $"+name)
	if start < 0 {
		t.Fatalf("no function %s in:\n%s", name, text)
	}
	rest := text[start:]
	if end := strings.Index(rest, "\n  ("); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func TestStringConcatCallsRuntime(t *testing.T) {
	m := compile(t, `export fn main() -> string { "ab" + "cd" }`)
	body := funcText(t, m.Text, "main_")
	expectContains(t, body, "call $lotus_string_concat")
	if strings.Contains(body, "i32.add") {
		t.Errorf("string + compiled to integer addition:\n%s", body)
	}
	expectContains(t, m.Text, "(func $lotus_string_concat (param $a i32) (param $b i32) (result i32)")
}

func TestStringEqualityComparesContents(t *testing.T) {
	m := compile(t, `
export fn same(a: string) -> bool { a == "x" }
export fn differ(a: string) -> bool { a != "x" }
export fn code(s: string) -> int { match s { "a" => 1, _ => 0 } }`)

	same := funcText(t, m.Text, "same_")
	expectContains(t, same, "call $lotus_string_eq")
	if strings.Contains(same, "i32.eq\n") {
		t.Errorf("string == compared addresses:\n%s", same)
	}
	expectContains(t, funcText(t, m.Text, "differ_"), "call $lotus_string_eq\n", "i32.eqz")
	expectContains(t, funcText(t, m.Text, "code_"), "call $lotus_string_eq")
}
