package pool

import "testing"

func TestAddPreservesInsertionOrder(t *testing.T) {
	p := New()

	if err := p.Add(Resource{Path: "b.txt", Content: []byte("b")}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := p.Add(Resource{Path: "a.txt", Content: []byte("a")}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries := p.Entries()
	if len(entries) != 2 || entries[0].Path != "b.txt" || entries[1].Path != "a.txt" {
		t.Fatalf("expected insertion order [b.txt a.txt], got %v", entries)
	}
}

func TestAddRejectsDuplicatePath(t *testing.T) {
	p := New()

	if err := p.Add(Resource{Path: "a.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := p.Add(Resource{Path: "a.txt"}); err == nil {
		t.Fatal("expected a conflict adding a duplicate path")
	}
}

func TestAddOrReplacePreservesPosition(t *testing.T) {
	p := New()

	_ = p.Add(Resource{Path: "a.txt", Content: []byte("1")})
	_ = p.Add(Resource{Path: "b.txt", Content: []byte("2")})

	if err := p.AddOrReplace(Resource{Path: "a.txt", Content: []byte("3")}); err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}

	entries := p.Entries()
	if entries[0].Path != "a.txt" || string(entries[0].Content) != "3" {
		t.Fatalf("expected a.txt replaced in place, got %v", entries)
	}

	if entries[1].Path != "b.txt" {
		t.Fatalf("expected b.txt still second, got %v", entries)
	}
}

func TestForgetHidesWithoutReordering(t *testing.T) {
	p := New()

	_ = p.Add(Resource{Path: "a.txt"})
	_ = p.Add(Resource{Path: "b.txt"})

	if err := p.Forget("a.txt"); err != nil {
		t.Fatalf("Forget: %v", err)
	}

	entries := p.Entries()
	if len(entries) != 1 || entries[0].Path != "b.txt" {
		t.Fatalf("expected only b.txt to remain, got %v", entries)
	}
}

func TestWritesRejectedAfterFreeze(t *testing.T) {
	p := New()
	_ = p.Add(Resource{Path: "a.txt"})
	p.Freeze()

	if err := p.Add(Resource{Path: "b.txt"}); err == nil {
		t.Fatal("expected Add to fail after Freeze")
	}

	if err := p.AddOrReplace(Resource{Path: "a.txt"}); err == nil {
		t.Fatal("expected AddOrReplace to fail after Freeze")
	}

	if err := p.Forget("a.txt"); err == nil {
		t.Fatal("expected Forget to fail after Freeze")
	}
}

func TestModuleView(t *testing.T) {
	p := New()
	_ = p.Add(Resource{Path: "a.txt", ModuleName: "m1"})
	_ = p.Add(Resource{Path: "b.txt", ModuleName: "m2"})
	_ = p.Add(Resource{Path: "c.txt", ModuleName: "m1"})

	view := p.ModuleView("m1")
	if len(view) != 2 || view[0].Path != "a.txt" || view[1].Path != "c.txt" {
		t.Fatalf("unexpected module view: %v", view)
	}
}

func TestClassifyPathMatchesKnownShapes(t *testing.T) {
	cases := map[string]ResourceType{
		"com/example/a/Main.class": ClassResource,
		"module-info":              ModuleInfoResource,
		"app.config":               ConfigResource,
		"lib/libfoo.so":            NativeLibResource,
		"lib/foo.dll":              NativeLibResource,
		"app/bin/orizon":           NativeCmdResource,
		"orizon.exe":               NativeCmdResource,
		"README":                   OtherResource,
	}

	for path, want := range cases {
		if got := ClassifyPath(path); got != want {
			t.Errorf("ClassifyPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestSnapshotIsIndependentAndFrozen(t *testing.T) {
	p := New()
	_ = p.Add(Resource{Path: "a.txt", Content: []byte("1")})

	snap := p.Snapshot()

	_ = p.Add(Resource{Path: "b.txt"})

	if len(snap.Entries()) != 1 {
		t.Fatalf("expected snapshot to be unaffected by later writes, got %v", snap.Entries())
	}

	if err := snap.Add(Resource{Path: "c.txt"}); err == nil {
		t.Fatal("expected a snapshot to be frozen")
	}
}
