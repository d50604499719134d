package server

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeSource writes a source file into dir and returns its path.
func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newCommands(t *testing.T) *Commands {
	t.Helper()
	c := NewCommands(NewFileCache(), func(string) string { return "app" })
	t.Cleanup(c.Stop)
	return c
}

func TestDiagnosticsUseContentOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "main.lt", `export fn main() -> int { 1 }`)
	c := newCommands(t)

	resp, err := c.Handle(Request{Kind: KindDiagnostics, Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Lines) != 0 {
		t.Fatalf("diagnostics on disk text = %v, want none", resp.Lines)
	}

	broken := `export fn main() -> int { missing }`
	resp, err = c.Handle(Request{Kind: KindDiagnostics, Path: path, Content: &broken})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Lines) != 1 || !strings.Contains(resp.Lines[0], "undefined symbol") {
		t.Fatalf("diagnostics = %v, want one undefined symbol", resp.Lines)
	}
	if !strings.HasPrefix(resp.Lines[0], path+":1:") {
		t.Errorf("line = %q, want it to start with the file position", resp.Lines[0])
	}
	if len(resp.Diagnostics) != 1 {
		t.Errorf("structured diagnostics = %d, want 1", len(resp.Diagnostics))
	}

	// The override stays until it is dropped.
	resp, _ = c.Handle(Request{Kind: KindDiagnostics, Path: path})
	if len(resp.Lines) != 1 {
		t.Errorf("override lost: %v", resp.Lines)
	}
	c.Cache.Delete(path)
	resp, _ = c.Handle(Request{Kind: KindDiagnostics, Path: path})
	if len(resp.Lines) != 0 {
		t.Errorf("after Delete diagnostics = %v, want none", resp.Lines)
	}
}

func TestDiagnosticsSeeSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "shapes.lt", `pub class Square { side: float; }`)
	path := writeSource(t, dir, "main.lt", `
export fn main() -> float {
	let s: Square = new Square { side: 2.0 };
	s.side
}`)
	c := newCommands(t)

	resp, err := c.Handle(Request{Kind: KindDiagnostics, Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Lines) != 0 {
		t.Errorf("diagnostics = %v, want none", resp.Lines)
	}
}

func TestCompletion(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib.lt", `
pub fn compute() -> int { 1 }
pub class Counter { n: int; }
fn hidden() -> int { 2 }`)
	src := `export fn main() -> int { co }`
	path := writeSource(t, dir, "main.lt", src)
	c := newCommands(t)

	resp, err := c.Handle(Request{Kind: KindCompletion, Path: path, Offset: strings.Index(src, "co }") + 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"compute", "continue"}
	if strings.Join(resp.Lines, ",") != strings.Join(want, ",") {
		t.Errorf("completion = %v, want %v", resp.Lines, want)
	}

	resp, _ = c.Handle(Request{Kind: KindCompletion, Path: path, Offset: strings.Index(src, "{") + 1})
	if len(resp.Lines) != 0 {
		t.Errorf("completion without prefix = %v, want none", resp.Lines)
	}
}

func TestCompletionHidesOtherFilesPrivates(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib.lt", `fn helper() -> int { 2 }`)
	src := `fn here() -> int { he }`
	path := writeSource(t, dir, "main.lt", src)
	c := newCommands(t)

	resp, err := c.Handle(Request{Kind: KindCompletion, Path: path, Offset: strings.Index(src, "he }") + 2})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(resp.Lines, ",") != "here" {
		t.Errorf("completion = %v, want [here]", resp.Lines)
	}
}

func TestHover(t *testing.T) {
	dir := t.TempDir()
	src := `
pub class Shape { dyn fn area() -> float { 0.0 } }
pub class Square : Shape {
	side: float;
	dyn fn area() -> float { self.side * self.side }
}
fn scale<T>(x: T, by: float) -> T { x }
interface Measured { fn area() -> float; }`
	path := writeSource(t, dir, "shapes.lt", src)
	c := newCommands(t)

	tests := []struct {
		word string
		want []string
	}{
		{"Square", []string{
			"class Square : Shape",
			"  side: float",
			"  dyn fn area() -> float",
		}},
		{"scale", []string{"fn scale<T>(x: T, by: float) -> T"}},
		{"Measured", []string{"interface Measured", "  fn area() -> float"}},
		{"area", []string{"Shape.dyn fn area() -> float", "Square.dyn fn area() -> float"}},
		{"side", nil},
	}
	for _, tc := range tests {
		offset := strings.Index(src, tc.word) + 1
		resp, err := c.Handle(Request{Kind: KindHover, Path: path, Offset: offset})
		if err != nil {
			t.Fatalf("hover %s: %v", tc.word, err)
		}
		if strings.Join(resp.Lines, "\n") != strings.Join(tc.want, "\n") {
			t.Errorf("hover %s = %q, want %q", tc.word, resp.Lines, tc.want)
		}
	}
}

func TestUnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "main.lt", `fn f() -> int { 1 }`)
	c := newCommands(t)
	if _, err := c.Handle(Request{Kind: "rename", Path: path}); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}

func TestMissingFile(t *testing.T) {
	c := newCommands(t)
	_, err := c.Handle(Request{Kind: KindDiagnostics, Path: filepath.Join(t.TempDir(), "gone.lt")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestDirPackage(t *testing.T) {
	tests := map[string]string{
		"/src/app/main.lt":  "app",
		"/src/my-game/a.lt": "my_game",
		"/src/3d/shapes.lt": "p3d",
		"main.lt":           "main",
	}
	for path, want := range tests {
		if got := DirPackage(path); got != want {
			t.Errorf("DirPackage(%q) = %q, want %q", path, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Text helpers
// ---------------------------------------------------------------------------

func TestPrefixAndWordAt(t *testing.T) {
	text := "let total = count_up(x)"
	tests := []struct {
		offset int
		prefix string
		word   string
	}{
		{offset: 0, prefix: "", word: "let"},
		{offset: 7, prefix: "tot", word: "total"},
		{offset: 9, prefix: "total", word: "total"},
		{offset: 15, prefix: "cou", word: "count_up"},
		{offset: 10, prefix: "", word: ""},
		{offset: 99, prefix: "", word: ""},
	}
	for _, tc := range tests {
		if got := prefixAt(text, tc.offset); got != tc.prefix {
			t.Errorf("prefixAt(%d) = %q, want %q", tc.offset, got, tc.prefix)
		}
		if got := wordAt(text, tc.offset); got != tc.word {
			t.Errorf("wordAt(%d) = %q, want %q", tc.offset, got, tc.word)
		}
	}
}
