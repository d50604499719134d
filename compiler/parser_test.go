package compiler

import (
	"testing"

	"github.com/chazu/lotus/compiler/diag"
)

func parseExpr(t *testing.T, input string) Expr {
	t.Helper()
	p := NewParser("test.lt", input)
	expr := p.ParseExpression()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse %q: errors: %v", input, p.Errors())
	}
	return expr
}

func parseFile(t *testing.T, input string) *File {
	t.Helper()
	f, errs := ParseFile("test.lt", "main", input)
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return f
}

func TestParserLiterals(t *testing.T) {
	tests := []struct {
		input string
		check func(Expr) bool
		desc  string
	}{
		{"42", func(e Expr) bool { return e.(*IntLiteral).Value == 42 }, "integer"},
		{"0x10", func(e Expr) bool { return e.(*IntLiteral).Value == 16 }, "hex integer"},
		{"3.14", func(e Expr) bool { return e.(*FloatLiteral).Value == 3.14 }, "float"},
		{`"hello"`, func(e Expr) bool { return e.(*StringLiteral).Value == "hello" }, "string"},
		{"true", func(e Expr) bool { return e.(*BoolLiteral).Value }, "true"},
		{"false", func(e Expr) bool { return !e.(*BoolLiteral).Value }, "false"},
		{"self", func(e Expr) bool { _, ok := e.(*SelfExpr); return ok }, "self"},
	}

	for _, tc := range tests {
		expr := parseExpr(t, tc.input)
		if !tc.check(expr) {
			t.Errorf("%s: check failed for %q", tc.desc, tc.input)
		}
	}
}

func TestParserPrecedence(t *testing.T) {
	expr := parseExpr(t, "1 + 2 * 3 == 7 && !done")
	and, ok := expr.(*BinaryExpr)
	if !ok || and.Op != "&&" {
		t.Fatalf("top = %T, want && BinaryExpr", expr)
	}
	eq, ok := and.Left.(*BinaryExpr)
	if !ok || eq.Op != "==" {
		t.Fatalf("left of && = %#v, want ==", and.Left)
	}
	add, ok := eq.Left.(*BinaryExpr)
	if !ok || add.Op != "+" {
		t.Fatalf("left of == = %#v, want +", eq.Left)
	}
	if mul, ok := add.Right.(*BinaryExpr); !ok || mul.Op != "*" {
		t.Errorf("right of + = %#v, want *", add.Right)
	}
	if not, ok := and.Right.(*UnaryExpr); !ok || not.Op != "!" {
		t.Errorf("right of && = %#v, want !", and.Right)
	}
}

func TestParserLeftAssociative(t *testing.T) {
	expr := parseExpr(t, "10 - 3 - 2")
	outer := expr.(*BinaryExpr)
	inner, ok := outer.Left.(*BinaryExpr)
	if !ok {
		t.Fatalf("left = %T, want BinaryExpr", outer.Left)
	}
	if inner.Left.(*IntLiteral).Value != 10 || outer.Right.(*IntLiteral).Value != 2 {
		t.Errorf("wrong grouping for 10 - 3 - 2")
	}
}

func TestParserPostfix(t *testing.T) {
	expr := parseExpr(t, "a.b.c(1, 2)[0]")
	idx, ok := expr.(*IndexExpr)
	if !ok {
		t.Fatalf("top = %T, want IndexExpr", expr)
	}
	call, ok := idx.Receiver.(*CallExpr)
	if !ok {
		t.Fatalf("receiver = %T, want CallExpr", idx.Receiver)
	}
	if len(call.Args) != 2 {
		t.Errorf("args = %d, want 2", len(call.Args))
	}
	field, ok := call.Callee.(*FieldExpr)
	if !ok || field.Name != "c" {
		t.Fatalf("callee = %#v, want .c", call.Callee)
	}
	if inner, ok := field.Receiver.(*FieldExpr); !ok || inner.Name != "b" {
		t.Errorf("receiver = %#v, want .b", field.Receiver)
	}
}

func TestParserStaticAndTurbofish(t *testing.T) {
	expr := parseExpr(t, "Color::Red")
	st, ok := expr.(*StaticExpr)
	if !ok || st.Type.Name != "Color" || st.Name != "Red" {
		t.Fatalf("got %#v, want Color::Red", expr)
	}

	expr = parseExpr(t, "Box<int>::make(1)")
	call := expr.(*CallExpr)
	st, ok = call.Callee.(*StaticExpr)
	if !ok || st.Type.Name != "Box" || len(st.Type.Args) != 1 || st.Type.Args[0].Name != "int" {
		t.Fatalf("callee = %#v, want Box<int>::make", call.Callee)
	}

	expr = parseExpr(t, "identity::<float>(2.0)")
	call = expr.(*CallExpr)
	if len(call.TypeArgs) != 1 || call.TypeArgs[0].Name != "float" {
		t.Errorf("type args = %v, want [float]", call.TypeArgs)
	}
	if id, ok := call.Callee.(*Ident); !ok || id.Name != "identity" {
		t.Errorf("callee = %#v, want identity", call.Callee)
	}
}

func TestParserLowercaseLessThanIsComparison(t *testing.T) {
	expr := parseExpr(t, "a < b")
	if bin, ok := expr.(*BinaryExpr); !ok || bin.Op != "<" {
		t.Errorf("got %#v, want comparison", expr)
	}
}

func TestParserNewAndArray(t *testing.T) {
	expr := parseExpr(t, "new Box<int> { value: 1, next: [1, 2, 3] }")
	ne, ok := expr.(*NewExpr)
	if !ok {
		t.Fatalf("got %T, want NewExpr", expr)
	}
	if FormatTypeRef(ne.Type) != "Box<int>" {
		t.Errorf("type = %s, want Box<int>", FormatTypeRef(ne.Type))
	}
	if len(ne.Inits) != 2 || ne.Inits[0].Name != "value" || ne.Inits[1].Name != "next" {
		t.Fatalf("inits = %v", ne.Inits)
	}
	if arr, ok := ne.Inits[1].Value.(*ArrayExpr); !ok || len(arr.Elements) != 3 {
		t.Errorf("next = %#v, want 3-element array", ne.Inits[1].Value)
	}
}

func TestParserClosure(t *testing.T) {
	expr := parseExpr(t, "fn(y: int) -> int { x + y }")
	cl, ok := expr.(*ClosureExpr)
	if !ok {
		t.Fatalf("got %T, want ClosureExpr", expr)
	}
	if len(cl.Params) != 1 || cl.Params[0].Name != "y" {
		t.Errorf("params = %v", cl.Params)
	}
	if cl.Return == nil || cl.Return.Name != "int" {
		t.Errorf("return = %v, want int", cl.Return)
	}
	if _, ok := cl.Body.Tail.(*BinaryExpr); !ok {
		t.Errorf("tail = %T, want BinaryExpr", cl.Body.Tail)
	}
}

func TestParserIfElseChain(t *testing.T) {
	expr := parseExpr(t, "if a { 1 } else if b { 2 } else { 3 }")
	ie, ok := expr.(*IfExpr)
	if !ok {
		t.Fatalf("got %T, want IfExpr", expr)
	}
	nested, ok := ie.Else.(*IfExpr)
	if !ok {
		t.Fatalf("else = %T, want IfExpr", ie.Else)
	}
	if _, ok := nested.Else.(*Block); !ok {
		t.Errorf("final else = %T, want Block", nested.Else)
	}
}

func TestParserMatch(t *testing.T) {
	expr := parseExpr(t, `match c { Color::Red => 1, Color::Green => 2, _ => 0 }`)
	me, ok := expr.(*MatchExpr)
	if !ok {
		t.Fatalf("got %T, want MatchExpr", expr)
	}
	if len(me.Arms) != 3 {
		t.Fatalf("arms = %d, want 3", len(me.Arms))
	}
	if me.Arms[2].Pattern != nil {
		t.Errorf("wildcard pattern = %#v, want nil", me.Arms[2].Pattern)
	}
}

func TestParserFunctionDecl(t *testing.T) {
	f := parseFile(t, `
export fn main() -> int {
	let x: int = 1;
	x += 2;
	while x < 10 { x = x * 2; }
	if x > 3 { return x }
	return 0;
}`)
	if len(f.Decls) != 1 {
		t.Fatalf("decls = %d, want 1", len(f.Decls))
	}
	fn, ok := f.Decls[0].(*FnDecl)
	if !ok {
		t.Fatalf("decl = %T, want FnDecl", f.Decls[0])
	}
	if fn.Vis != VisExport || fn.Name != "main" || fn.Return.Name != "int" {
		t.Errorf("fn = %s %s -> %v", fn.Vis, fn.Name, fn.Return)
	}
	if f.Package != "main" {
		t.Errorf("package = %q, want main", f.Package)
	}

	stmts := fn.Body.Stmts
	if len(stmts) != 5 {
		t.Fatalf("stmts = %d, want 5", len(stmts))
	}
	if _, ok := stmts[0].(*LetStmt); !ok {
		t.Errorf("stmt[0] = %T, want LetStmt", stmts[0])
	}
	if as, ok := stmts[1].(*AssignStmt); !ok || as.Op != "+=" {
		t.Errorf("stmt[1] = %#v, want += AssignStmt", stmts[1])
	}
	if _, ok := stmts[2].(*WhileStmt); !ok {
		t.Errorf("stmt[2] = %T, want WhileStmt", stmts[2])
	}
	if es, ok := stmts[3].(*ExprStmt); !ok {
		t.Errorf("stmt[3] = %T, want ExprStmt", stmts[3])
	} else if _, ok := es.Expr.(*IfExpr); !ok {
		t.Errorf("stmt[3] expr = %T, want IfExpr", es.Expr)
	}
	if _, ok := stmts[4].(*ReturnStmt); !ok {
		t.Errorf("stmt[4] = %T, want ReturnStmt", stmts[4])
	}
}

func TestParserIfAsTail(t *testing.T) {
	f := parseFile(t, `fn f(c: bool) -> int { if c { return 1 } }`)
	fn := f.Decls[0].(*FnDecl)
	if _, ok := fn.Body.Tail.(*IfExpr); !ok {
		t.Errorf("tail = %T, want IfExpr", fn.Body.Tail)
	}
}

func TestParserClassDecl(t *testing.T) {
	f := parseFile(t, `
pub class Dog : Animal {
	name: string;
	legs: int;
	dyn fn speak() -> string { return "woof" }
	static fn make(name: string) -> Dog { new Dog { name: name, legs: 4 } }
	@on(Tick, before, 5)
	fn tick() {}
}`)
	td, ok := f.Decls[0].(*TypeDecl)
	if !ok {
		t.Fatalf("decl = %T, want TypeDecl", f.Decls[0])
	}
	if td.Category != CategoryClass || td.Vis != VisPublic || td.Parent.Name != "Animal" {
		t.Errorf("decl = %s %s : %v", td.Vis, td.Category, td.Parent)
	}
	if len(td.Fields) != 2 || td.Fields[1].Name != "legs" {
		t.Errorf("fields = %v", td.Fields)
	}
	if len(td.Methods) != 3 {
		t.Fatalf("methods = %d, want 3", len(td.Methods))
	}
	if !td.Methods[0].Dyn || !td.Methods[1].Static {
		t.Errorf("modifiers lost: dyn=%v static=%v", td.Methods[0].Dyn, td.Methods[1].Static)
	}
	ev := td.Methods[2].Event
	if ev == nil || ev.Event.Name != "Tick" || ev.Qualifier != "before" || ev.Priority != 5 {
		t.Errorf("event = %#v", ev)
	}
}

func TestParserAbstractDynMethod(t *testing.T) {
	f := parseFile(t, `class Animal { dyn fn speak() -> string }`)
	td := f.Decls[0].(*TypeDecl)
	if len(td.Methods) != 1 || td.Methods[0].Body != nil {
		t.Errorf("methods = %v, want one abstract method", td.Methods)
	}
}

func TestParserGenericsAndAssoc(t *testing.T) {
	f := parseFile(t, `
interface Container {
	type Item;
	fn get() -> Self::Item;
	static fn empty() -> Self;
}
type Box<T: Show + Eq> {
	type Item = T;
	value: T;
	fn get() -> T { self.value }
}
enum Color { Red, Green, Blue }`)
	if len(f.Decls) != 3 {
		t.Fatalf("decls = %d, want 3", len(f.Decls))
	}
	iface := f.Decls[0].(*InterfaceDecl)
	if len(iface.Assocs) != 1 || len(iface.Methods) != 2 || !iface.Methods[1].Static {
		t.Errorf("interface = %+v", iface)
	}
	if got := FormatTypeRef(iface.Methods[0].Return); got != "Self::Item" {
		t.Errorf("return = %s, want Self::Item", got)
	}

	box := f.Decls[1].(*TypeDecl)
	if len(box.Generics) != 1 || len(box.Generics[0].Bounds) != 2 {
		t.Errorf("generics = %+v", box.Generics)
	}
	if len(box.Assocs) != 1 || box.Assocs[0].Value.Name != "T" {
		t.Errorf("assocs = %+v", box.Assocs)
	}

	color := f.Decls[2].(*TypeDecl)
	if color.Category != CategoryEnum || len(color.Variants) != 3 {
		t.Errorf("enum = %+v", color)
	}
}

func TestParserFunctionTypeRef(t *testing.T) {
	f := parseFile(t, `fn apply(f: fn(int, int) -> bool, x: int) {}`)
	fn := f.Decls[0].(*FnDecl)
	if got := FormatTypeRef(fn.Params[0].Type); got != "fn(int, int) -> bool" {
		t.Errorf("param type = %s", got)
	}
	if fn.Return != nil {
		t.Errorf("return = %v, want nil (void)", fn.Return)
	}
}

func TestParserErrorsAreDiagnostics(t *testing.T) {
	_, errs := ParseFile("bad.lt", "main", "fn f() { let = 1; }\nfn g() {}")
	if len(errs) == 0 {
		t.Fatal("expected errors")
	}
	if errs[0].Kind != diag.UnexpectedToken {
		t.Errorf("kind = %v, want unexpected token", errs[0].Kind)
	}
	if errs[0].Pos.File != "bad.lt" || errs[0].Pos.Line != 1 {
		t.Errorf("pos = %v, want bad.lt:1", errs[0].Pos)
	}
}

func TestParserInvalidCharacter(t *testing.T) {
	_, errs := ParseFile("bad.lt", "main", "fn f() { let x = 1 $ 2; }")
	found := false
	for _, e := range errs {
		if e.Kind == diag.InvalidCharacter {
			found = true
		}
	}
	if !found {
		t.Errorf("errors = %v, want an invalid character diagnostic", errs)
	}
}

func TestParserRecoversAtNextDecl(t *testing.T) {
	f, errs := ParseFile("bad.lt", "main", "class A { x int; }\nfn ok() {}")
	if len(errs) == 0 {
		t.Fatal("expected errors")
	}
	var names []string
	for _, d := range f.Decls {
		names = append(names, d.DeclName())
	}
	found := false
	for _, n := range names {
		if n == "ok" {
			found = true
		}
	}
	if !found {
		t.Errorf("decls = %v, want ok to survive recovery", names)
	}
}

func TestParserSpans(t *testing.T) {
	src := "fn f() {}\nfn g() {}"
	f := parseFile(t, src)
	g := f.Decls[1]
	if g.Span().Start.Line != 2 || g.Span().Start.Offset != 10 {
		t.Errorf("g starts at %+v, want line 2 offset 10", g.Span().Start)
	}
	if !f.Decls[0].Span().Contains(3) {
		t.Errorf("span of f should contain offset 3")
	}
}
