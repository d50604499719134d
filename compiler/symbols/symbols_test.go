package symbols

import (
	"testing"

	"github.com/chazu/lotus/compiler/diag"
)

func loc(file, pkg string, offset int) Location {
	return Location{Pos: diag.Pos{File: file, Offset: offset, Line: 1, Column: offset + 1}, Package: pkg}
}

func TestInsertAndLookup(t *testing.T) {
	var diags diag.List
	ix := New[int]("type", &diags)

	e, ok := ix.Insert("Point", Public, loc("a.lt", "geo", 0), "", 7)
	if !ok {
		t.Fatalf("insert failed: %v", diags.Items())
	}
	if e.ID.IsZero() {
		t.Error("id should be content-derived, got zero")
	}

	got, ok := ix.Lookup("Point", loc("b.lt", "geo", 5))
	if !ok || got.Value != 7 {
		t.Errorf("Lookup = %v, %v; want value 7", got, ok)
	}
	if byID, ok := ix.Get(e.ID); !ok || byID != e {
		t.Errorf("Get(%s) = %v, want inserted entry", e.ID.Short(), byID)
	}
}

func TestIDIsLocationDerived(t *testing.T) {
	var diags diag.List
	a := New[int]("type", &diags)
	b := New[int]("type", &diags)

	e1, _ := a.Insert("X", Public, loc("a.lt", "p", 10), "", 0)
	e2, _ := b.Insert("Renamed", Export, loc("a.lt", "p", 10), "", 0)
	if e1.ID != e2.ID {
		t.Error("same file and offset should give the same id")
	}

	e3, ok := a.Insert("X#1", System, loc("a.lt", "p", 10), "closure#1", 0)
	if !ok {
		t.Fatalf("marker should disambiguate: %v", diags.Items())
	}
	if e3.ID == e1.ID {
		t.Error("marker did not change the id")
	}
}

func TestVisibility(t *testing.T) {
	var diags diag.List
	ix := New[string]("function", &diags)
	ix.Insert("priv", Private, loc("a.lt", "p", 0), "", "priv")
	ix.Insert("pub", Public, loc("a.lt", "p", 10), "", "pub")
	ix.Insert("exp", Export, loc("a.lt", "p", 20), "", "exp")
	ix.Insert("sys", System, loc("a.lt", "p", 30), "", "sys")

	sameFile := loc("a.lt", "p", 100)
	samePkg := loc("b.lt", "p", 0)
	otherPkg := loc("c.lt", "q", 0)
	internal := Location{Pos: diag.Pos{File: "<prelude>"}, Package: "lotus", Internal: true}

	tests := []struct {
		name string
		from Location
		want bool
	}{
		{"priv", sameFile, true},
		{"priv", samePkg, false},
		{"pub", samePkg, true},
		{"pub", otherPkg, false},
		{"exp", otherPkg, true},
		{"sys", sameFile, false},
		{"sys", otherPkg, false},
		{"sys", internal, true},
		{"priv", internal, true},
	}
	for _, tc := range tests {
		_, got := ix.Lookup(tc.name, tc.from)
		if got != tc.want {
			t.Errorf("Lookup(%s from %s/%s) = %v, want %v", tc.name, tc.from.Package, tc.from.Pos.File, got, tc.want)
		}
	}

	if !ix.Hidden("pub", otherPkg) {
		t.Error("Hidden(pub from other package) = false, want true")
	}
	if ix.Hidden("nothing", otherPkg) {
		t.Error("Hidden(undeclared) = true, want false")
	}
}

func TestLookupReturnsFirstVisible(t *testing.T) {
	var diags diag.List
	ix := New[string]("type", &diags)
	ix.Insert("T", Private, loc("a.lt", "p", 0), "", "a-private")
	ix.Insert("T", Export, loc("x.lt", "q", 0), "", "q-export")

	got, _ := ix.Lookup("T", loc("a.lt", "p", 50))
	if got.Value != "a-private" {
		t.Errorf("from a.lt got %s, want a-private", got.Value)
	}
	got, _ = ix.Lookup("T", loc("z.lt", "r", 0))
	if got.Value != "q-export" {
		t.Errorf("from r got %s, want q-export", got.Value)
	}
	if diags.Len() != 0 {
		t.Errorf("unexpected diagnostics: %v", diags.Items())
	}
}

func TestDuplicatesReportedAtInsertion(t *testing.T) {
	var diags diag.List
	ix := New[int]("type", &diags)

	ix.Insert("A", Public, loc("a.lt", "p", 0), "", 1)
	if _, ok := ix.Insert("A", Private, loc("b.lt", "p", 0), "", 2); ok {
		t.Error("same name in same package should be rejected")
	}
	if diags.Len() != 1 {
		t.Fatalf("diagnostics = %d, want 1", diags.Len())
	}

	ix.Insert("B", Export, loc("a.lt", "p", 5), "", 1)
	if _, ok := ix.Insert("B", Export, loc("c.lt", "q", 0), "", 2); ok {
		t.Error("two exports of one name should be rejected")
	}
	if diags.Len() != 2 {
		t.Fatalf("diagnostics = %d, want 2", diags.Len())
	}

	// Lookups never report.
	ix.Lookup("A", loc("z.lt", "z", 0))
	ix.Lookup("missing", loc("z.lt", "z", 0))
	if diags.Len() != 2 {
		t.Errorf("lookup reported: %v", diags.Items())
	}
}

func TestVisibleAndClear(t *testing.T) {
	var diags diag.List
	ix := New[int]("type", &diags)
	ix.Insert("A", Export, loc("a.lt", "p", 0), "", 1)
	ix.Insert("B", Private, loc("a.lt", "p", 5), "", 2)
	ix.Insert("C", Export, loc("a.lt", "p", 9), "", 3)

	vis := ix.Visible(loc("x.lt", "q", 0))
	if len(vis) != 2 || vis[0].Name != "A" || vis[1].Name != "C" {
		t.Errorf("Visible = %v, want [A C]", vis)
	}

	ix.Clear()
	if ix.Len() != 0 {
		t.Errorf("Len after Clear = %d", ix.Len())
	}
	if _, ok := ix.Lookup("A", loc("a.lt", "p", 0)); ok {
		t.Error("lookup succeeded after Clear")
	}
}
