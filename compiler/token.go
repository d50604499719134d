package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Lotus lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42, 0xFF
	TokenFloat      // 3.14, 1.5e10
	TokenString     // "hello"
	TokenIdentifier // foo, Bar

	// Operators
	TokenOperator // + - * / % == != < <= > >= && || !
	TokenAssign   // = += -= *= /= %=
	TokenArrow    // ->
	TokenFatArrow // =>

	// Delimiters
	TokenLParen     // (
	TokenRParen     // )
	TokenLBracket   // [
	TokenRBracket   // ]
	TokenLBrace     // {
	TokenRBrace     // }
	TokenComma      // ,
	TokenSemicolon  // ;
	TokenColon      // :
	TokenColonColon // ::
	TokenDot        // .
	TokenAt         // @

	// Reserved words
	TokenFn
	TokenLet
	TokenReturn
	TokenIf
	TokenElse
	TokenWhile
	TokenBreak
	TokenContinue
	TokenMatch
	TokenNew
	TokenSelf
	TokenTrue
	TokenFalse
	TokenType_
	TokenClass
	TokenEnum
	TokenInterface
	TokenStatic
	TokenDyn
	TokenPub
	TokenExport
	TokenSys
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenOperator:   "OPERATOR",
	TokenAssign:     "ASSIGN",
	TokenArrow:      "->",
	TokenFatArrow:   "=>",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenSemicolon:  ";",
	TokenColon:      ":",
	TokenColonColon: "::",
	TokenDot:        ".",
	TokenAt:         "@",
	TokenFn:         "fn",
	TokenLet:        "let",
	TokenReturn:     "return",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenBreak:      "break",
	TokenContinue:   "continue",
	TokenMatch:      "match",
	TokenNew:        "new",
	TokenSelf:       "self",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenType_:      "type",
	TokenClass:      "class",
	TokenEnum:       "enum",
	TokenInterface:  "interface",
	TokenStatic:     "static",
	TokenDyn:        "dyn",
	TokenPub:        "pub",
	TokenExport:     "export",
	TokenSys:        "sys",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"fn":        TokenFn,
	"let":       TokenLet,
	"return":    TokenReturn,
	"if":        TokenIf,
	"else":      TokenElse,
	"while":     TokenWhile,
	"break":     TokenBreak,
	"continue":  TokenContinue,
	"match":     TokenMatch,
	"new":       TokenNew,
	"self":      TokenSelf,
	"true":      TokenTrue,
	"false":     TokenFalse,
	"type":      TokenType_,
	"class":     TokenClass,
	"enum":      TokenEnum,
	"interface": TokenInterface,
	"static":    TokenStatic,
	"dyn":       TokenDyn,
	"pub":       TokenPub,
	"export":    TokenExport,
	"sys":       TokenSys,
}
