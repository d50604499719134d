package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/chazu/lotus/compiler/diag"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for Lotus syntax
// ---------------------------------------------------------------------------

// Parser parses Lotus source code into an AST.
type Parser struct {
	lexer     *Lexer
	path      string
	curToken  Token
	peekToken Token
	prevEnd   Position
	errors    []diag.Diagnostic
}

// NewParser creates a new parser for the given input. path is only used
// for diagnostics.
func NewParser(path, input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
		path:  path,
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// ParseFile parses a whole source file belonging to pkg.
func ParseFile(path, pkg, input string) (*File, []diag.Diagnostic) {
	p := NewParser(path, input)
	f := p.ParseFile()
	f.Package = pkg
	return f, p.Errors()
}

// nextToken advances to the next token. Lexer errors are recorded here so
// every TokenError reaches the diagnostics exactly once.
func (p *Parser) nextToken() {
	if p.curToken.Type != TokenEOF || p.curToken.Literal != "" || p.curToken.Pos.Line != 0 {
		p.prevEnd = p.curToken.Pos
		p.prevEnd.Offset += len(p.curToken.Literal)
		p.prevEnd.Column += len(p.curToken.Literal)
	}
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.curToken.Type == TokenError {
		p.errors = append(p.errors, diag.Diagnostic{
			Kind:    diag.InvalidCharacter,
			Pos:     p.curToken.Pos.In(p.path),
			Message: p.curToken.Literal,
		})
		p.curToken = p.peekToken
		p.peekToken = p.lexer.NextToken()
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// curOp reports whether the current token is the operator op.
func (p *Parser) curOp(op string) bool {
	return p.curToken.Type == TokenOperator && p.curToken.Literal == op
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.describe(p.curToken))
	return false
}

func (p *Parser) expectOp(op string) bool {
	if p.curOp(op) {
		p.nextToken()
		return true
	}
	p.errorf("expected `%s`, got %s", op, p.describe(p.curToken))
	return false
}

func (p *Parser) describe(t Token) string {
	switch t.Type {
	case TokenEOF:
		return "end of file"
	case TokenIdentifier, TokenInteger, TokenFloat:
		return fmt.Sprintf("`%s`", t.Literal)
	case TokenString:
		return "string literal"
	}
	return fmt.Sprintf("`%s`", t.Literal)
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, diag.Diagnostic{
		Kind:    diag.UnexpectedToken,
		Pos:     p.curToken.Pos.In(p.path),
		Message: fmt.Sprintf(format, args...),
	})
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []diag.Diagnostic {
	return p.errors
}

func (p *Parser) span(start Position) Span {
	return MakeSpan(start, p.prevEnd)
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseFile parses declarations until EOF.
func (p *Parser) ParseFile() *File {
	start := p.curToken.Pos
	f := &File{Path: p.path}
	for !p.curTokenIs(TokenEOF) {
		before := len(p.errors)
		decl := p.parseDecl()
		if decl != nil {
			f.Decls = append(f.Decls, decl)
		}
		if len(p.errors) > before {
			p.synchronize()
		}
	}
	f.SpanVal = p.span(start)
	return f
}

// synchronize skips to the next token that can start a declaration at
// brace depth zero.
func (p *Parser) synchronize() {
	depth := 0
	for !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenLBrace:
			depth++
		case TokenRBrace:
			depth--
			if depth <= 0 {
				p.nextToken()
				if depth == 0 || p.startsDecl() {
					return
				}
				depth = 0
				continue
			}
		case TokenFn, TokenType_, TokenClass, TokenEnum, TokenInterface, TokenPub, TokenExport, TokenSys:
			if depth <= 0 {
				return
			}
		}
		p.nextToken()
	}
}

func (p *Parser) startsDecl() bool {
	switch p.curToken.Type {
	case TokenFn, TokenType_, TokenClass, TokenEnum, TokenInterface, TokenPub, TokenExport, TokenSys, TokenEOF:
		return true
	}
	return false
}

func (p *Parser) parseVisibility() Visibility {
	switch p.curToken.Type {
	case TokenPub:
		p.nextToken()
		return VisPublic
	case TokenExport:
		p.nextToken()
		return VisExport
	case TokenSys:
		p.nextToken()
		return VisSystem
	}
	return VisPrivate
}

func (p *Parser) parseDecl() Decl {
	start := p.curToken.Pos
	vis := p.parseVisibility()

	switch p.curToken.Type {
	case TokenFn:
		fn := p.parseFn(start, vis)
		if fn != nil && fn.Body == nil {
			p.errors = append(p.errors, diag.Diagnostic{
				Kind:    diag.UnexpectedToken,
				Pos:     fn.SpanVal.Start.In(p.path),
				Message: fmt.Sprintf("function `%s` has no body", fn.Name),
			})
		}
		return fn
	case TokenType_, TokenClass, TokenEnum:
		return p.parseTypeDecl(start, vis)
	case TokenInterface:
		return p.parseInterface(start, vis)
	}
	p.errorf("expected declaration, got %s", p.describe(p.curToken))
	p.nextToken()
	return nil
}

func (p *Parser) parseIdent() (string, bool) {
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected identifier, got %s", p.describe(p.curToken))
		return "", false
	}
	name := p.curToken.Literal
	p.nextToken()
	return name, true
}

// parseGenerics parses `<T: A + B, U>` if present.
func (p *Parser) parseGenerics() []*GenericParam {
	if !p.curOp("<") {
		return nil
	}
	p.nextToken()
	var params []*GenericParam
	for !p.curOp(">") && !p.curTokenIs(TokenEOF) {
		start := p.curToken.Pos
		name, ok := p.parseIdent()
		if !ok {
			return params
		}
		gp := &GenericParam{Name: name}
		if p.curTokenIs(TokenColon) {
			p.nextToken()
			for {
				gp.Bounds = append(gp.Bounds, p.parseTypeRef())
				if !p.curOp("+") {
					break
				}
				p.nextToken()
			}
		}
		gp.SpanVal = p.span(start)
		params = append(params, gp)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expectOp(">")
	return params
}

// parseTypeRef parses a written type.
func (p *Parser) parseTypeRef() *TypeRef {
	start := p.curToken.Pos

	if p.curTokenIs(TokenFn) {
		p.nextToken()
		ref := &TypeRef{Func: true}
		p.expect(TokenLParen)
		for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
			ref.Params = append(ref.Params, p.parseTypeRef())
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
		p.expect(TokenRParen)
		if p.curTokenIs(TokenArrow) {
			p.nextToken()
			ref.Return = p.parseTypeRef()
		}
		ref.SpanVal = p.span(start)
		return ref
	}

	ref := &TypeRef{}
	if p.curTokenIs(TokenSelf) || (p.curTokenIs(TokenIdentifier) && p.curToken.Literal == "Self") {
		ref.Name = "Self"
		p.nextToken()
	} else {
		name, ok := p.parseIdent()
		if !ok {
			ref.SpanVal = p.span(start)
			return ref
		}
		ref.Name = name
	}
	if p.curOp("<") {
		ref.Args = p.parseTypeArgs()
	}
	if p.curTokenIs(TokenColonColon) && p.peekTokenIs(TokenIdentifier) && isTypeName(p.peekToken.Literal) {
		p.nextToken()
		ref.Assoc = p.curToken.Literal
		p.nextToken()
	}
	ref.SpanVal = p.span(start)
	return ref
}

func (p *Parser) parseTypeArgs() []*TypeRef {
	p.expectOp("<")
	var args []*TypeRef
	for !p.curOp(">") && !p.curTokenIs(TokenEOF) {
		args = append(args, p.parseTypeRef())
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expectOp(">")
	return args
}

// isTypeName reports whether an identifier names a type by convention
// (capitalized).
func isTypeName(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

// parseFn parses `fn name<G>(params) -> R { body }`. The body is optional;
// callers decide whether a missing body is an error.
func (p *Parser) parseFn(start Position, vis Visibility) *FnDecl {
	p.expect(TokenFn)
	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	fn := &FnDecl{Vis: vis, Name: name}
	fn.Generics = p.parseGenerics()
	fn.Params = p.parseParams()
	if p.curTokenIs(TokenArrow) {
		p.nextToken()
		fn.Return = p.parseTypeRef()
	}
	switch {
	case p.curTokenIs(TokenLBrace):
		fn.Body = p.parseBlock()
	case p.curTokenIs(TokenSemicolon):
		p.nextToken()
	}
	fn.SpanVal = p.span(start)
	return fn
}

func (p *Parser) parseParams() []*Param {
	var params []*Param
	if !p.expect(TokenLParen) {
		return nil
	}
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		start := p.curToken.Pos
		name, ok := p.parseIdent()
		if !ok {
			break
		}
		p.expect(TokenColon)
		typ := p.parseTypeRef()
		params = append(params, &Param{SpanVal: p.span(start), Name: name, Type: typ})
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen)
	return params
}

func (p *Parser) parseTypeDecl(start Position, vis Visibility) *TypeDecl {
	td := &TypeDecl{Vis: vis}
	switch p.curToken.Type {
	case TokenClass:
		td.Category = CategoryClass
	case TokenEnum:
		td.Category = CategoryEnum
	default:
		td.Category = CategoryType
	}
	p.nextToken()

	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	td.Name = name
	td.Generics = p.parseGenerics()
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		td.Parent = p.parseTypeRef()
	}
	if !p.expect(TokenLBrace) {
		return nil
	}

	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		before := p.curToken
		p.parseMember(td)
		if p.curToken == before {
			// No progress: skip the offending token.
			p.nextToken()
		}
	}
	p.expect(TokenRBrace)
	td.SpanVal = p.span(start)
	return td
}

func (p *Parser) parseMember(td *TypeDecl) {
	start := p.curToken.Pos

	if p.curTokenIs(TokenType_) {
		td.Assocs = append(td.Assocs, p.parseAssoc())
		return
	}

	var event *EventAttr
	if p.curTokenIs(TokenAt) {
		event = p.parseEventAttr()
		start = p.curToken.Pos
	}

	vis := p.parseVisibility()
	static, dyn := false, false
	switch {
	case p.curTokenIs(TokenStatic):
		static = true
		p.nextToken()
	case p.curTokenIs(TokenDyn):
		dyn = true
		p.nextToken()
	}

	if p.curTokenIs(TokenFn) {
		fn := p.parseFn(start, vis)
		if fn == nil {
			return
		}
		fn.Static = static
		fn.Dyn = dyn
		fn.Event = event
		if fn.Body == nil && !dyn {
			p.errors = append(p.errors, diag.Diagnostic{
				Kind:    diag.UnexpectedToken,
				Pos:     fn.SpanVal.Start.In(p.path),
				Message: fmt.Sprintf("method `%s` has no body (only `dyn` methods may be abstract)", fn.Name),
			})
		}
		td.Methods = append(td.Methods, fn)
		return
	}
	if event != nil || static || dyn {
		p.errorf("expected `fn` after method modifiers, got %s", p.describe(p.curToken))
		return
	}

	name, ok := p.parseIdent()
	if !ok {
		return
	}
	if td.Category == CategoryEnum && !p.curTokenIs(TokenColon) {
		td.Variants = append(td.Variants, &Variant{SpanVal: p.span(start), Name: name})
		if p.curTokenIs(TokenComma) || p.curTokenIs(TokenSemicolon) {
			p.nextToken()
		}
		return
	}
	p.expect(TokenColon)
	typ := p.parseTypeRef()
	p.expect(TokenSemicolon)
	td.Fields = append(td.Fields, &FieldDecl{SpanVal: p.span(start), Name: name, Type: typ})
}

func (p *Parser) parseAssoc() *AssocDecl {
	start := p.curToken.Pos
	p.expect(TokenType_)
	name, _ := p.parseIdent()
	ad := &AssocDecl{Name: name}
	if p.curTokenIs(TokenAssign) && p.curToken.Literal == "=" {
		p.nextToken()
		ad.Value = p.parseTypeRef()
	}
	p.expect(TokenSemicolon)
	ad.SpanVal = p.span(start)
	return ad
}

// parseEventAttr parses `@on(Event, qualifier[, priority])`.
func (p *Parser) parseEventAttr() *EventAttr {
	start := p.curToken.Pos
	p.expect(TokenAt)
	if !p.curTokenIs(TokenIdentifier) || p.curToken.Literal != "on" {
		p.errorf("unknown attribute %s", p.describe(p.curToken))
	}
	p.nextToken()
	attr := &EventAttr{Qualifier: "hook"}
	p.expect(TokenLParen)
	attr.Event = p.parseTypeRef()
	if p.curTokenIs(TokenComma) {
		p.nextToken()
		q, _ := p.parseIdent()
		switch q {
		case "before", "after", "hook":
			attr.Qualifier = q
		default:
			p.errorf("unknown event qualifier `%s` (want before, after or hook)", q)
		}
	}
	if p.curTokenIs(TokenComma) {
		p.nextToken()
		neg := false
		if p.curOp("-") {
			neg = true
			p.nextToken()
		}
		if p.curTokenIs(TokenInteger) {
			n, _ := strconv.Atoi(p.curToken.Literal)
			if neg {
				n = -n
			}
			attr.Priority = n
			p.nextToken()
		} else {
			p.errorf("expected priority, got %s", p.describe(p.curToken))
		}
	}
	p.expect(TokenRParen)
	attr.SpanVal = p.span(start)
	return attr
}

func (p *Parser) parseInterface(start Position, vis Visibility) *InterfaceDecl {
	p.expect(TokenInterface)
	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	id := &InterfaceDecl{Vis: vis, Name: name}
	if !p.expect(TokenLBrace) {
		return nil
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		mstart := p.curToken.Pos
		switch {
		case p.curTokenIs(TokenType_):
			id.Assocs = append(id.Assocs, p.parseAssoc())
		case p.curTokenIs(TokenStatic) || p.curTokenIs(TokenFn):
			static := p.curTokenIs(TokenStatic)
			if static {
				p.nextToken()
			}
			fn := p.parseFn(mstart, VisExport)
			if fn == nil {
				p.nextToken()
				continue
			}
			fn.Static = static
			if fn.Body != nil {
				p.errors = append(p.errors, diag.Diagnostic{
					Kind:    diag.UnexpectedToken,
					Pos:     fn.SpanVal.Start.In(p.path),
					Message: fmt.Sprintf("interface method `%s` cannot have a body", fn.Name),
				})
			}
			id.Methods = append(id.Methods, fn)
		default:
			p.errorf("expected `type` or `fn` in interface, got %s", p.describe(p.curToken))
			p.nextToken()
		}
	}
	p.expect(TokenRBrace)
	id.SpanVal = p.span(start)
	return id
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseBlock parses `{ stmts [tail] }`.
func (p *Parser) parseBlock() *Block {
	start := p.curToken.Pos
	b := &Block{}
	if !p.expect(TokenLBrace) {
		b.SpanVal = p.span(start)
		return b
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		before := p.curToken
		stmt, tail := p.parseStatement()
		if tail != nil {
			b.Tail = tail
			break
		}
		if stmt != nil {
			b.Stmts = append(b.Stmts, stmt)
		}
		if p.curToken == before {
			p.nextToken()
		}
	}
	p.expect(TokenRBrace)
	b.SpanVal = p.span(start)
	return b
}

// parseStatement returns either a statement or, when an expression is
// directly followed by `}`, the block's tail expression.
func (p *Parser) parseStatement() (Stmt, Expr) {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenLet:
		p.nextToken()
		name, _ := p.parseIdent()
		let := &LetStmt{Name: name}
		if p.curTokenIs(TokenColon) {
			p.nextToken()
			let.Type = p.parseTypeRef()
		}
		if p.curTokenIs(TokenAssign) && p.curToken.Literal == "=" {
			p.nextToken()
		} else {
			p.errorf("expected `=`, got %s", p.describe(p.curToken))
		}
		let.Value = p.ParseExpression()
		p.expect(TokenSemicolon)
		let.SpanVal = p.span(start)
		return let, nil

	case TokenReturn:
		p.nextToken()
		ret := &ReturnStmt{}
		if !p.curTokenIs(TokenSemicolon) && !p.curTokenIs(TokenRBrace) {
			ret.Value = p.ParseExpression()
		}
		p.endSimpleStatement()
		ret.SpanVal = p.span(start)
		return ret, nil

	case TokenWhile:
		p.nextToken()
		cond := p.ParseExpression()
		body := p.parseBlock()
		return &WhileStmt{SpanVal: p.span(start), Cond: cond, Body: body}, nil

	case TokenBreak:
		p.nextToken()
		p.endSimpleStatement()
		return &BreakStmt{SpanVal: p.span(start)}, nil

	case TokenContinue:
		p.nextToken()
		p.endSimpleStatement()
		return &ContinueStmt{SpanVal: p.span(start)}, nil
	}

	expr := p.ParseExpression()
	if p.curTokenIs(TokenAssign) {
		op := p.curToken.Literal
		p.nextToken()
		value := p.ParseExpression()
		p.expect(TokenSemicolon)
		return &AssignStmt{SpanVal: p.span(start), Target: expr, Op: op, Value: value}, nil
	}
	switch {
	case p.curTokenIs(TokenSemicolon):
		p.nextToken()
		return &ExprStmt{SpanVal: p.span(start), Expr: expr}, nil
	case p.curTokenIs(TokenRBrace):
		return nil, expr
	case isBlockLike(expr):
		return &ExprStmt{SpanVal: p.span(start), Expr: expr}, nil
	}
	p.errorf("expected `;`, got %s", p.describe(p.curToken))
	return &ExprStmt{SpanVal: p.span(start), Expr: expr}, nil
}

// endSimpleStatement consumes the `;` after return/break/continue. It may be
// omitted before a closing brace.
func (p *Parser) endSimpleStatement() {
	if p.curTokenIs(TokenRBrace) {
		return
	}
	p.expect(TokenSemicolon)
}

func isBlockLike(e Expr) bool {
	switch e.(type) {
	case *IfExpr, *MatchExpr, *Block:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// binaryPrecedence maps operators to binding power; higher binds tighter.
var binaryPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseBinary(1)
}

func (p *Parser) parseBinary(minPrec int) Expr {
	start := p.curToken.Pos
	left := p.parseUnary()
	for p.curTokenIs(TokenOperator) {
		op := p.curToken.Literal
		prec, ok := binaryPrecedence[op]
		if !ok || prec < minPrec {
			break
		}
		p.nextToken()
		right := p.parseBinary(prec + 1)
		left = &BinaryExpr{SpanVal: p.span(start), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	start := p.curToken.Pos
	if p.curOp("-") || p.curOp("!") {
		op := p.curToken.Literal
		p.nextToken()
		operand := p.parseUnary()
		return &UnaryExpr{SpanVal: p.span(start), Op: op, Operand: operand}
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(expr Expr) Expr {
	start := expr.Span().Start
	for {
		switch {
		case p.curTokenIs(TokenDot):
			p.nextToken()
			name, ok := p.parseIdent()
			if !ok {
				return expr
			}
			expr = &FieldExpr{SpanVal: p.span(start), Receiver: expr, Name: name}

		case p.curTokenIs(TokenLParen):
			args := p.parseArgs()
			expr = &CallExpr{SpanVal: p.span(start), Callee: expr, Args: args}

		case p.curTokenIs(TokenColonColon) && p.peekToken.Type == TokenOperator && p.peekToken.Literal == "<":
			p.nextToken()
			typeArgs := p.parseTypeArgs()
			if !p.curTokenIs(TokenLParen) {
				p.errorf("expected `(` after type arguments, got %s", p.describe(p.curToken))
				return expr
			}
			args := p.parseArgs()
			expr = &CallExpr{SpanVal: p.span(start), Callee: expr, TypeArgs: typeArgs, Args: args}

		case p.curTokenIs(TokenLBracket):
			p.nextToken()
			index := p.ParseExpression()
			p.expect(TokenRBracket)
			expr = &IndexExpr{SpanVal: p.span(start), Receiver: expr, Index: index}

		default:
			return expr
		}
	}
}

func (p *Parser) parseArgs() []Expr {
	p.expect(TokenLParen)
	var args []Expr
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		args = append(args, p.ParseExpression())
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen)
	return args
}

func (p *Parser) parsePrimary() Expr {
	start := p.curToken.Pos
	tok := p.curToken

	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		v, err := strconv.ParseInt(tok.Literal, 0, 64)
		if err != nil {
			p.errors = append(p.errors, diag.Diagnostic{
				Kind: diag.UnexpectedToken, Pos: tok.Pos.In(p.path),
				Message: fmt.Sprintf("invalid integer literal `%s`", tok.Literal),
			})
		}
		return &IntLiteral{SpanVal: p.span(start), Value: v}

	case TokenFloat:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errors = append(p.errors, diag.Diagnostic{
				Kind: diag.UnexpectedToken, Pos: tok.Pos.In(p.path),
				Message: fmt.Sprintf("invalid float literal `%s`", tok.Literal),
			})
		}
		return &FloatLiteral{SpanVal: p.span(start), Value: v}

	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: p.span(start), Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: p.span(start), Value: tok.Type == TokenTrue}

	case TokenSelf:
		p.nextToken()
		return &SelfExpr{SpanVal: p.span(start)}

	case TokenIdentifier:
		return p.parseNameExpr()

	case TokenLParen:
		p.nextToken()
		inner := p.ParseExpression()
		p.expect(TokenRParen)
		return inner

	case TokenLBracket:
		p.nextToken()
		arr := &ArrayExpr{}
		for !p.curTokenIs(TokenRBracket) && !p.curTokenIs(TokenEOF) {
			arr.Elements = append(arr.Elements, p.ParseExpression())
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
		p.expect(TokenRBracket)
		arr.SpanVal = p.span(start)
		return arr

	case TokenLBrace:
		return p.parseBlock()

	case TokenNew:
		return p.parseNew()

	case TokenFn:
		p.nextToken()
		cl := &ClosureExpr{}
		cl.Params = p.parseParams()
		if p.curTokenIs(TokenArrow) {
			p.nextToken()
			cl.Return = p.parseTypeRef()
		}
		cl.Body = p.parseBlock()
		cl.SpanVal = p.span(start)
		return cl

	case TokenIf:
		return p.parseIf()

	case TokenMatch:
		return p.parseMatch()
	}

	p.errorf("expected expression, got %s", p.describe(tok))
	if !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	return &Ident{SpanVal: p.span(start)}
}

// parseNameExpr parses an identifier, `Type::name` or `Type<Args>::name`.
func (p *Parser) parseNameExpr() Expr {
	start := p.curToken.Pos
	name := p.curToken.Literal

	if isTypeName(name) && p.peekToken.Type == TokenOperator && p.peekToken.Literal == "<" {
		ref := p.parseTypeRef()
		if !p.curTokenIs(TokenColonColon) {
			p.errorf("expected `::` after generic type, got %s", p.describe(p.curToken))
			return &Ident{SpanVal: p.span(start), Name: name}
		}
		p.nextToken()
		member, _ := p.parseIdent()
		return &StaticExpr{SpanVal: p.span(start), Type: ref, Name: member}
	}

	p.nextToken()
	if p.curTokenIs(TokenColonColon) && p.peekTokenIs(TokenIdentifier) {
		ref := &TypeRef{SpanVal: p.span(start), Name: name}
		p.nextToken()
		member := p.curToken.Literal
		p.nextToken()
		return &StaticExpr{SpanVal: p.span(start), Type: ref, Name: member}
	}
	return &Ident{SpanVal: p.span(start), Name: name}
}

func (p *Parser) parseNew() Expr {
	start := p.curToken.Pos
	p.expect(TokenNew)
	ne := &NewExpr{Type: p.parseTypeRef()}
	if p.expect(TokenLBrace) {
		for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
			istart := p.curToken.Pos
			name, ok := p.parseIdent()
			if !ok {
				break
			}
			p.expect(TokenColon)
			value := p.ParseExpression()
			ne.Inits = append(ne.Inits, &FieldInit{SpanVal: p.span(istart), Name: name, Value: value})
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
		p.expect(TokenRBrace)
	}
	ne.SpanVal = p.span(start)
	return ne
}

func (p *Parser) parseIf() Expr {
	start := p.curToken.Pos
	p.expect(TokenIf)
	ie := &IfExpr{Cond: p.ParseExpression()}
	ie.Then = p.parseBlock()
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			ie.Else = p.parseIf()
		} else {
			ie.Else = p.parseBlock()
		}
	}
	ie.SpanVal = p.span(start)
	return ie
}

func (p *Parser) parseMatch() Expr {
	start := p.curToken.Pos
	p.expect(TokenMatch)
	me := &MatchExpr{Value: p.ParseExpression()}
	if !p.expect(TokenLBrace) {
		me.SpanVal = p.span(start)
		return me
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		astart := p.curToken.Pos
		arm := &MatchArm{}
		if p.curTokenIs(TokenIdentifier) && p.curToken.Literal == "_" {
			p.nextToken()
		} else {
			arm.Pattern = p.ParseExpression()
		}
		p.expect(TokenFatArrow)
		arm.Body = p.ParseExpression()
		arm.SpanVal = p.span(astart)
		me.Arms = append(me.Arms, arm)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRBrace)
	me.SpanVal = p.span(start)
	return me
}

// FormatTypeRef renders a type reference as written.
func FormatTypeRef(t *TypeRef) string {
	if t == nil {
		return "void"
	}
	if t.Func {
		parts := make([]string, len(t.Params))
		for i, a := range t.Params {
			parts[i] = FormatTypeRef(a)
		}
		s := "fn(" + strings.Join(parts, ", ") + ")"
		if t.Return != nil {
			s += " -> " + FormatTypeRef(t.Return)
		}
		return s
	}
	s := t.Name
	if len(t.Args) > 0 {
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = FormatTypeRef(a)
		}
		s += "<" + strings.Join(parts, ", ") + ">"
	}
	if t.Assoc != "" {
		s += "::" + t.Assoc
	}
	return s
}
