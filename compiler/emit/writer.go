package emit

import (
	"fmt"
	"strings"
)

// writer is an indenting line writer for module text.
type writer struct {
	b     strings.Builder
	depth int
}

func (w *writer) line(format string, args ...any) {
	for range w.depth {
		w.b.WriteString("  ")
	}
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *writer) indent() { w.depth++ }
func (w *writer) dedent() { w.depth-- }

func (w *writer) String() string { return w.b.String() }

// dataStart is the first address used for string data. Address 0 stays
// unused so a zero pointer never names a live object.
const dataStart = 16

// dataSegment interns string constants into one data segment. Each string is
// stored as a 4-byte little-endian length followed by its bytes, padded to
// a 4-byte boundary.
type dataSegment struct {
	addrs map[string]int
	order []string
	end   int
}

func newDataSegment() *dataSegment {
	return &dataSegment{addrs: make(map[string]int), end: dataStart}
}

func (d *dataSegment) intern(s string) int {
	if a, ok := d.addrs[s]; ok {
		return a
	}
	a := d.end
	d.addrs[s] = a
	d.order = append(d.order, s)
	d.end = align(a+4+len(s), 4)
	return a
}

func align(n, to int) int {
	return (n + to - 1) / to * to
}

// write emits one data form per interned string.
func (d *dataSegment) write(w *writer) {
	for _, s := range d.order {
		n := len(s)
		prefix := []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
		w.line("(data (i32.const %d) \"%s%s\")", d.addrs[s], escape(string(prefix)), escape(s))
	}
}

// escape renders bytes as a WebAssembly text string body.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "\\%02x", c)
		}
	}
	return b.String()
}
