package layer

import (
	"errors"
	"testing"

	"github.com/orizon-lang/orizon/internal/linkerr"
	"github.com/orizon-lang/orizon/internal/moduledesc"
	"github.com/orizon-lang/orizon/internal/resolve"
)

func mustBuild(t *testing.T, b *moduledesc.Builder) *moduledesc.ModuleDescriptor {
	t.Helper()

	d, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	return d
}

func resolutionOf(modules map[string]*moduledesc.ModuleDescriptor, reads map[string]map[string]bool) *resolve.Resolution {
	return &resolve.Resolution{
		Selected:  modules,
		Reads:     reads,
		Providers: map[string][]string{},
	}
}

func TestEmptyLayerIsSingletonAndEmpty(t *testing.T) {
	e := Empty()

	if _, ok := e.FindModule("anything"); ok {
		t.Fatal("expected the empty layer to contain no modules")
	}

	if e.Parent() != nil {
		t.Fatal("expected the empty layer to have no parent")
	}

	if Empty() != e {
		t.Fatal("expected Empty() to always return the same singleton")
	}
}

func TestLayerAssemblyAndLookup(t *testing.T) {
	a := mustBuild(t, moduledesc.NewBuilder("a").Packages("a.pkg").AddExports("a.pkg"))
	b := mustBuild(t, moduledesc.NewBuilder("b").Packages("b.pkg"))

	res := resolutionOf(
		map[string]*moduledesc.ModuleDescriptor{"a": a, "b": b},
		map[string]map[string]bool{"a": {"b": true}, "b": {}},
	)

	boot, err := NewLoader("boot", nil)
	if err != nil {
		t.Fatalf("NewLoader boot: %v", err)
	}

	app, err := NewLoader("application", boot)
	if err != nil {
		t.Fatalf("NewLoader application: %v", err)
	}

	loaderFor := func(name string) (*Loader, error) {
		if name == "a" {
			return app, nil
		}

		return boot, nil
	}

	lay, err := New(res, nil, loaderFor)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if d, ok := lay.FindModule("a"); !ok || d != a {
		t.Fatalf("expected to find module a, got %v %v", d, ok)
	}

	if ld, ok := lay.FindLoader("b"); !ok || ld != boot {
		t.Fatalf("expected module b bound to boot loader, got %v %v", ld, ok)
	}

	if !lay.ExportsTo("a", "a.pkg", "anyone") {
		t.Fatal("expected an unqualified export to be visible to any reader")
	}

	if !lay.CanRead("a", "b") {
		t.Fatal("expected a to read b per the supplied readability graph")
	}
}

func TestLayerDuplicatePackageInSameLoaderIsFatal(t *testing.T) {
	a := mustBuild(t, moduledesc.NewBuilder("a").Packages("shared"))
	b := mustBuild(t, moduledesc.NewBuilder("b").Packages("shared"))

	res := resolutionOf(
		map[string]*moduledesc.ModuleDescriptor{"a": a, "b": b},
		map[string]map[string]bool{"a": {}, "b": {}},
	)

	boot, err := NewLoader("boot", nil)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	loaderFor := func(name string) (*Loader, error) { return boot, nil }

	_, err = New(res, nil, loaderFor)
	if err == nil {
		t.Fatal("expected a duplicate-package-in-loader error")
	}

	var dup *linkerr.DuplicatePackageInLoader
	if !errors.As(err, &dup) {
		t.Fatalf("expected *linkerr.DuplicatePackageInLoader, got %T: %v", err, err)
	}
}

func TestLayerQualifiedExportDroppedOutsideLayer(t *testing.T) {
	a := mustBuild(t, moduledesc.NewBuilder("a").Packages("a.pkg").AddExports("a.pkg", "b", "ghost"))
	b := mustBuild(t, moduledesc.NewBuilder("b").Packages("b.pkg"))

	res := resolutionOf(
		map[string]*moduledesc.ModuleDescriptor{"a": a, "b": b},
		map[string]map[string]bool{"a": {}, "b": {"a": true}},
	)

	boot, err := NewLoader("boot", nil)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	loaderFor := func(name string) (*Loader, error) { return boot, nil }

	lay, err := New(res, nil, loaderFor)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !lay.ExportsTo("a", "a.pkg", "b") {
		t.Fatal("expected the export to be visible to b, a qualified target present in the layer")
	}

	if lay.ExportsTo("a", "a.pkg", "ghost") {
		t.Fatal("expected the export to 'ghost' to be silently dropped: ghost is not in this layer")
	}
}

func TestLayerParentFallback(t *testing.T) {
	p := mustBuild(t, moduledesc.NewBuilder("p").Packages("p.pkg"))

	parentRes := resolutionOf(
		map[string]*moduledesc.ModuleDescriptor{"p": p},
		map[string]map[string]bool{"p": {}},
	)

	boot, err := NewLoader("boot", nil)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	parentLayer, err := New(parentRes, nil, func(string) (*Loader, error) { return boot, nil })
	if err != nil {
		t.Fatalf("New parent: %v", err)
	}

	c := mustBuild(t, moduledesc.NewBuilder("c").Packages("c.pkg"))

	childRes := resolutionOf(
		map[string]*moduledesc.ModuleDescriptor{"c": c},
		map[string]map[string]bool{"c": {}},
	)

	app, err := NewLoader("application", boot)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	childLayer, err := New(childRes, parentLayer, func(string) (*Loader, error) { return app, nil })
	if err != nil {
		t.Fatalf("New child: %v", err)
	}

	if _, ok := childLayer.FindModule("p"); !ok {
		t.Fatal("expected the child layer to find p through its parent")
	}

	all := childLayer.AllModules()
	if len(all) != 2 {
		t.Fatalf("expected AllModules to include both layers' modules, got %d", len(all))
	}
}

func TestNewLoaderRejectsCyclicParentChain(t *testing.T) {
	boot, err := NewLoader("boot", nil)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	app, err := NewLoader("application", boot)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	if _, err := NewLoader("boot", app); err == nil {
		t.Fatal("expected an error constructing a loader whose ancestry already contains its own name")
	}
}
