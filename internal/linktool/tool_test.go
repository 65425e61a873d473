package linktool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/orizon-lang/orizon/internal/link/image"
	"github.com/orizon-lang/orizon/internal/moduledesc"
)

func writeExplodedModule(t *testing.T, root, name string, requires []string, packages []string) {
	t.Helper()

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	b := moduledesc.NewBuilder(name).Packages(packages...)

	for _, r := range requires {
		b = b.AddRequires(moduledesc.Requires{Name: r})
	}

	d, err := b.Build()
	if err != nil {
		t.Fatalf("build %s: %v", name, err)
	}

	data, err := moduledesc.Encode(d)
	if err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "module-info"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, pkg := range packages {
		pkgDir := filepath.Join(dir, filepath.FromSlash(pkg))
		if err := os.MkdirAll(pkgDir, 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(filepath.Join(pkgDir, "Main.class"), []byte("stub-"+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestToolLinkProducesReadableImage(t *testing.T) {
	root := t.TempDir()

	writeExplodedModule(t, root, "com.example.a", []string{"com.example.b"}, []string{"com.example.a"})
	writeExplodedModule(t, root, "com.example.b", nil, []string{"com.example.b"})

	tool := NewTool(Config{
		SearchPaths: []string{root},
		Roots:       []string{"com.example.a"},
	})

	res, err := tool.Link(context.Background())
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	if _, ok := res.Resolution.Selected["com.example.b"]; !ok {
		t.Fatalf("expected com.example.b to be selected: %v", res.Resolution.SortedNames())
	}

	img, err := image.Read(res.Image)
	if err != nil {
		t.Fatalf("Read image: %v", err)
	}

	if len(img.Resources) == 0 {
		t.Fatal("expected at least one resource in the image")
	}

	found := false

	for _, r := range img.Resources {
		if r.ModuleName == "com.example.a" {
			found = true
		}
	}

	if !found {
		t.Fatal("expected a resource owned by com.example.a in the image")
	}

	if _, ok := img.ModulePackages["com.example.b"]; !ok {
		t.Fatalf("expected com.example.b in module package list: %v", img.ModulePackages)
	}
}

func TestToolLinkMissingRootFails(t *testing.T) {
	root := t.TempDir()

	tool := NewTool(Config{
		SearchPaths: []string{root},
		Roots:       []string{"missing.module"},
	})

	if _, err := tool.Link(context.Background()); err == nil {
		t.Fatal("expected an error for an unresolvable root")
	}
}
