package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/lotus/compiler/emit"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func testProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"app/lotus.toml": `
[project]
name = "app"

[source]
entry = "main"

[dependencies]
core = { path = "../core" }
`,
		"app/src/main.lt": `export fn main() -> int { twice(21) }`,
		"core/lotus.toml": `
[project]
name = "core"
`,
		"core/src/math.lt": `export fn twice(n: int) -> int { n * 2 }`,
	})
	return filepath.Join(root, "app")
}

func TestProjectSessionLoadsDependenciesFirst(t *testing.T) {
	p, err := loadProject(testProject(t))
	if err != nil {
		t.Fatal(err)
	}
	s, err := p.session()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	files := s.Files()
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if files[0].Path != "../core/src/math.lt" || files[0].Package != "core" {
		t.Errorf("first file = %s (%s), want core's math.lt", files[0].Path, files[0].Package)
	}
	if files[1].Path != "src/main.lt" || files[1].Package != "app" {
		t.Errorf("second file = %s (%s), want src/main.lt", files[1].Path, files[1].Package)
	}

	mod, err := s.Build(emit.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(mod.Text, `(export "main"`) {
		t.Error("module does not export main")
	}
	if err := p.checkEntry(s); err != nil {
		t.Error(err)
	}
}

func TestCheckEntryMissing(t *testing.T) {
	dir := testProject(t)
	p, err := loadProject(dir)
	if err != nil {
		t.Fatal(err)
	}
	p.manifest.Source.Entry = "start"
	s, err := p.session()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := p.checkEntry(s); err == nil {
		t.Error("expected an error for a missing entry point")
	}
}

func TestLoadProjectWithoutManifest(t *testing.T) {
	if _, err := loadProject(t.TempDir()); err == nil {
		t.Error("expected an error without lotus.toml")
	}
}

func TestPackageOf(t *testing.T) {
	dir := testProject(t)
	p, err := loadProject(dir)
	if err != nil {
		t.Fatal(err)
	}
	pkg := packageOf(p)

	tests := map[string]string{
		filepath.Join(dir, "src", "main.lt"):               "app",
		filepath.Join(dir, "src", "nested", "deep.lt"):     "app",
		filepath.Join(dir, "..", "core", "src", "math.lt"): "core",
		filepath.Join(t.TempDir(), "loose", "scratch.lt"):  "loose",
	}
	for path, want := range tests {
		if got := pkg(path); got != want {
			t.Errorf("package of %s = %q, want %q", path, got, want)
		}
	}
}

func TestWriteFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build", "out", "app.wat")
	if err := writeFile(path, []byte("(module)")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "(module)" {
		t.Errorf("read back %q, %v", data, err)
	}
}
