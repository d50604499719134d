// Package diag holds the ordered list of compile diagnostics.
//
// Diagnostics are values, not Go errors: a failed semantic check records one
// and processing continues with a placeholder (see types.Undefined).
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a diagnostic.
type Kind int

const (
	Generic Kind = iota
	TypeMismatch
	InterfaceMismatch
	UndefinedSymbol
	UnexpectedToken
	InvalidCharacter
)

var kindNames = map[Kind]string{
	Generic:           "error",
	TypeMismatch:      "type mismatch",
	InterfaceMismatch: "interface mismatch",
	UndefinedSymbol:   "undefined symbol",
	UnexpectedToken:   "unexpected token",
	InvalidCharacter:  "invalid character",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pos is a source location.
type Pos struct {
	File   string
	Offset int // byte offset
	Line   int // 1-based
	Column int // 1-based
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Diagnostic is a single compile error.
type Diagnostic struct {
	Kind    Kind
	Pos     Pos
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Kind, d.Message)
}

// List accumulates diagnostics in report order.
type List struct {
	items []Diagnostic
}

// Add records a diagnostic.
func (l *List) Add(kind Kind, pos Pos, format string, args ...any) {
	l.items = append(l.items, Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Append records already built diagnostics.
func (l *List) Append(ds ...Diagnostic) {
	l.items = append(l.items, ds...)
}

// Len returns the number of diagnostics.
func (l *List) Len() int {
	return len(l.items)
}

// Empty reports whether nothing was recorded.
func (l *List) Empty() bool {
	return len(l.items) == 0
}

// Items returns the diagnostics in report order.
func (l *List) Items() []Diagnostic {
	return l.items
}

// InFile returns the diagnostics reported against file.
func (l *List) InFile(file string) []Diagnostic {
	var out []Diagnostic
	for _, d := range l.items {
		if d.Pos.File == file {
			out = append(out, d)
		}
	}
	return out
}

// Sorted returns a copy ordered by file, then offset. Report order is kept
// for diagnostics at the same position.
func (l *List) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pos.File != out[j].Pos.File {
			return out[i].Pos.File < out[j].Pos.File
		}
		return out[i].Pos.Offset < out[j].Pos.Offset
	})
	return out
}

// Reset drops every diagnostic.
func (l *List) Reset() {
	l.items = nil
}

// Error is a Go error wrapping a non-empty diagnostic list, returned by
// entry points that must fail when compilation did.
type Error struct {
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
