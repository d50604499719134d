package server

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestFileCacheOverridesDisk(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "a.lt", "disk")
	c := NewFileCache()

	if got, err := c.Get(path); err != nil || got != "disk" {
		t.Fatalf("Get = %q, %v; want disk text", got, err)
	}
	c.Put(path, "buffer")
	if got, _ := c.Get(path); got != "buffer" {
		t.Errorf("Get after Put = %q, want buffer", got)
	}
	c.Patch(path, nil)
	if got, _ := c.Get(path); got != "buffer" {
		t.Errorf("nil Patch changed the text to %q", got)
	}
	edited := "edited"
	c.Patch(path, &edited)
	if got, _ := c.Get(path); got != "edited" {
		t.Errorf("Get after Patch = %q, want edited", got)
	}
	c.Delete(path)
	if got, _ := c.Get(path); got != "disk" {
		t.Errorf("Get after Delete = %q, want disk", got)
	}
}

func TestFileCacheSiblings(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.lt", "")
	writeSource(t, dir, "notes.txt", "")
	c := NewFileCache()
	c.Put(filepath.Join(dir, "unsaved.lt"), "")
	c.Put(filepath.Join(t.TempDir(), "elsewhere.lt"), "")

	got := c.Siblings(a)
	want := []string{a, filepath.Join(dir, "unsaved.lt")}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Siblings = %v, want %v", got, want)
	}

	// A file that exists nowhere still names itself.
	ghost := filepath.Join(t.TempDir(), "ghost.lt")
	if got := c.Siblings(ghost); len(got) != 1 || got[0] != ghost {
		t.Errorf("Siblings(ghost) = %v", got)
	}
}
