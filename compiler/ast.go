package compiler

import "github.com/chazu/lotus/compiler/diag"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for Lotus
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// In attaches a file path, producing a diagnostic position.
func (p Position) In(file string) diag.Pos {
	return diag.Pos{File: file, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether offset falls inside the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset <= s.End.Offset
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Visibility controls which call sites may see a declaration.
type Visibility int

const (
	VisPrivate Visibility = iota // same file
	VisPublic                    // same package
	VisExport                    // any package
	VisSystem                    // compiler-internal call sites only
)

func (v Visibility) String() string {
	switch v {
	case VisPublic:
		return "pub"
	case VisExport:
		return "export"
	case VisSystem:
		return "sys"
	}
	return "private"
}

// Category is the declared kind of a type declaration.
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

// ---------------------------------------------------------------------------
// Type references
// ---------------------------------------------------------------------------

// TypeRef is a written type: `Name`, `Name<A, B>`, `T::Item`, `Self`, or
// `fn(A, B) -> R`.
type TypeRef struct {
	SpanVal Span
	Name    string
	Args    []*TypeRef
	Assoc   string // associated type name after `::`

	Func   bool
	Params []*TypeRef
	Return *TypeRef // nil means void
}

func (n *TypeRef) Span() Span { return n.SpanVal }
func (n *TypeRef) node()      {}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// Decl is the interface for top-level declarations.
type Decl interface {
	Node
	decl() // marker method
	DeclName() string
}

// GenericParam is `T: Bound + Other`.
type GenericParam struct {
	SpanVal Span
	Name    string
	Bounds  []*TypeRef
}

func (n *GenericParam) Span() Span { return n.SpanVal }
func (n *GenericParam) node()      {}

// FieldDecl is `name: Type;`.
type FieldDecl struct {
	SpanVal Span
	Name    string
	Type    *TypeRef
}

func (n *FieldDecl) Span() Span { return n.SpanVal }
func (n *FieldDecl) node()      {}

// AssocDecl is `type Item = T;` in a type, or `type Item;` in an interface.
type AssocDecl struct {
	SpanVal Span
	Name    string
	Value   *TypeRef
}

func (n *AssocDecl) Span() Span { return n.SpanVal }
func (n *AssocDecl) node()      {}

// Variant is an enum variant.
type Variant struct {
	SpanVal Span
	Name    string
}

func (n *Variant) Span() Span { return n.SpanVal }
func (n *Variant) node()      {}

// EventAttr is `@on(Event, before, 10)` attached to a method.
type EventAttr struct {
	SpanVal   Span
	Event     *TypeRef
	Qualifier string
	Priority  int
}

func (n *EventAttr) Span() Span { return n.SpanVal }
func (n *EventAttr) node()      {}

// Param is a function parameter.
type Param struct {
	SpanVal Span
	Name    string
	Type    *TypeRef
}

func (n *Param) Span() Span { return n.SpanVal }
func (n *Param) node()      {}

// FnDecl is a free function, a method, or an interface requirement
// (Body == nil).
type FnDecl struct {
	SpanVal  Span
	Vis      Visibility
	Name     string
	Static   bool
	Dyn      bool
	Generics []*GenericParam
	Params   []*Param
	Return   *TypeRef // nil means void
	Body     *Block
	Event    *EventAttr
}

func (n *FnDecl) Span() Span      { return n.SpanVal }
func (n *FnDecl) node()           {}
func (n *FnDecl) decl()           {}
func (n *FnDecl) DeclName() string { return n.Name }

// TypeDecl is a `type`, `class` or `enum` declaration.
type TypeDecl struct {
	SpanVal  Span
	Vis      Visibility
	Category Category
	Name     string
	Generics []*GenericParam
	Parent   *TypeRef
	Fields   []*FieldDecl
	Assocs   []*AssocDecl
	Variants []*Variant
	Methods  []*FnDecl
}

func (n *TypeDecl) Span() Span      { return n.SpanVal }
func (n *TypeDecl) node()           {}
func (n *TypeDecl) decl()           {}
func (n *TypeDecl) DeclName() string { return n.Name }

// InterfaceDecl is an `interface` declaration.
type InterfaceDecl struct {
	SpanVal Span
	Vis     Visibility
	Name    string
	Assocs  []*AssocDecl
	Methods []*FnDecl
}

func (n *InterfaceDecl) Span() Span      { return n.SpanVal }
func (n *InterfaceDecl) node()           {}
func (n *InterfaceDecl) decl()           {}
func (n *InterfaceDecl) DeclName() string { return n.Name }

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// LetStmt is `let name: Type = value;`.
type LetStmt struct {
	SpanVal Span
	Name    string
	Type    *TypeRef
	Value   Expr
}

func (n *LetStmt) Span() Span { return n.SpanVal }
func (n *LetStmt) node()      {}
func (n *LetStmt) stmt()      {}

// AssignStmt is `target = value;` or a compound form such as `+=`.
type AssignStmt struct {
	SpanVal Span
	Target  Expr
	Op      string // "=", "+=", "-=", "*=", "/=", "%="
	Value   Expr
}

func (n *AssignStmt) Span() Span { return n.SpanVal }
func (n *AssignStmt) node()      {}
func (n *AssignStmt) stmt()      {}

// ReturnStmt is `return value;`.
type ReturnStmt struct {
	SpanVal Span
	Value   Expr // nil for a bare return
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// WhileStmt is `while cond { body }`.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    *Block
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// BreakStmt exits the innermost loop.
type BreakStmt struct {
	SpanVal Span
}

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

// ContinueStmt restarts the innermost loop.
type ContinueStmt struct {
	SpanVal Span
}

func (n *ContinueStmt) Span() Span { return n.SpanVal }
func (n *ContinueStmt) node()      {}
func (n *ContinueStmt) stmt()      {}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Block is `{ stmts; tail }`. Tail is the value of the block, if any.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
	Tail    Expr
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) expr()      {}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *FloatLiteral) Span() Span { return n.SpanVal }
func (n *FloatLiteral) node()      {}
func (n *FloatLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents `true` or `false`.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// Ident is a variable or function reference.
type Ident struct {
	SpanVal Span
	Name    string
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// SelfExpr is the `self` receiver.
type SelfExpr struct {
	SpanVal Span
}

func (n *SelfExpr) Span() Span { return n.SpanVal }
func (n *SelfExpr) node()      {}
func (n *SelfExpr) expr()      {}

// FieldExpr is `receiver.name`.
type FieldExpr struct {
	SpanVal  Span
	Receiver Expr
	Name     string
}

func (n *FieldExpr) Span() Span { return n.SpanVal }
func (n *FieldExpr) node()      {}
func (n *FieldExpr) expr()      {}

// StaticExpr is `Type::name`: a static method or an enum variant.
type StaticExpr struct {
	SpanVal Span
	Type    *TypeRef
	Name    string
}

func (n *StaticExpr) Span() Span { return n.SpanVal }
func (n *StaticExpr) node()      {}
func (n *StaticExpr) expr()      {}

// CallExpr is `callee(args)` with optional explicit `::<T>` type arguments.
type CallExpr struct {
	SpanVal  Span
	Callee   Expr
	TypeArgs []*TypeRef
	Args     []Expr
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// BinaryExpr is `left op right`.
type BinaryExpr struct {
	SpanVal Span
	Op      string
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// UnaryExpr is `-x` or `!x`.
type UnaryExpr struct {
	SpanVal Span
	Op      string
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// FieldInit is `name: value` inside a `new` expression.
type FieldInit struct {
	SpanVal Span
	Name    string
	Value   Expr
}

// NewExpr is `new Type { name: value, ... }`.
type NewExpr struct {
	SpanVal Span
	Type    *TypeRef
	Inits   []*FieldInit
}

func (n *NewExpr) Span() Span { return n.SpanVal }
func (n *NewExpr) node()      {}
func (n *NewExpr) expr()      {}

// ArrayExpr is `[a, b, c]`.
type ArrayExpr struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayExpr) Span() Span { return n.SpanVal }
func (n *ArrayExpr) node()      {}
func (n *ArrayExpr) expr()      {}

// IndexExpr is `receiver[index]`.
type IndexExpr struct {
	SpanVal  Span
	Receiver Expr
	Index    Expr
}

func (n *IndexExpr) Span() Span { return n.SpanVal }
func (n *IndexExpr) node()      {}
func (n *IndexExpr) expr()      {}

// ClosureExpr is an anonymous function literal `fn(a: int) -> int { ... }`.
type ClosureExpr struct {
	SpanVal Span
	Params  []*Param
	Return  *TypeRef
	Body    *Block
}

func (n *ClosureExpr) Span() Span { return n.SpanVal }
func (n *ClosureExpr) node()      {}
func (n *ClosureExpr) expr()      {}

// IfExpr is `if cond { } else { }`. Else is nil, a *Block or an *IfExpr.
type IfExpr struct {
	SpanVal Span
	Cond    Expr
	Then    *Block
	Else    Expr
}

func (n *IfExpr) Span() Span { return n.SpanVal }
func (n *IfExpr) node()      {}
func (n *IfExpr) expr()      {}

// MatchArm is `pattern => body`. Pattern is nil for the `_` arm.
type MatchArm struct {
	SpanVal Span
	Pattern Expr
	Body    Expr
}

// MatchExpr is `match value { arms }`.
type MatchExpr struct {
	SpanVal Span
	Value   Expr
	Arms    []*MatchArm
}

func (n *MatchExpr) Span() Span { return n.SpanVal }
func (n *MatchExpr) node()      {}
func (n *MatchExpr) expr()      {}

// ---------------------------------------------------------------------------
// Top-level structure
// ---------------------------------------------------------------------------

// File represents a parsed source file.
type File struct {
	SpanVal Span
	Path    string
	Package string
	Decls   []Decl
}

func (n *File) Span() Span { return n.SpanVal }
func (n *File) node()      {}

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}
