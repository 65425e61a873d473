package resolve

import (
	"errors"
	"sort"
	"testing"

	"github.com/orizon-lang/orizon/internal/finder"
	"github.com/orizon-lang/orizon/internal/linkerr"
	"github.com/orizon-lang/orizon/internal/moduledesc"
)

// memFinder is an in-memory ReferenceFinder backing the resolver tests,
// standing in for a real *finder.Finder over a filesystem root.
type memFinder struct {
	refs map[string]*finder.ModuleReference
}

func newMemFinder(descs ...*moduledesc.ModuleDescriptor) *memFinder {
	m := &memFinder{refs: make(map[string]*finder.ModuleReference, len(descs))}

	for _, d := range descs {
		m.refs[d.Name] = &finder.ModuleReference{Descriptor: d, Location: "mem:" + d.Name}
	}

	return m
}

func (m *memFinder) Find(name string) (*finder.ModuleReference, error) {
	return m.refs[name], nil
}

func (m *memFinder) FindAll() ([]*finder.ModuleReference, error) {
	names := make([]string, 0, len(m.refs))
	for n := range m.refs {
		names = append(names, n)
	}

	sort.Strings(names)

	out := make([]*finder.ModuleReference, 0, len(names))
	for _, n := range names {
		out = append(out, m.refs[n])
	}

	return out, nil
}

type requireSpec struct {
	name       string
	transitive bool
}

func buildModule(t *testing.T, name string, requires []requireSpec, configure func(b *moduledesc.Builder)) *moduledesc.ModuleDescriptor {
	t.Helper()

	b := moduledesc.NewBuilder(name)

	for _, r := range requires {
		mod := moduledesc.RequiresModifier(0)
		if r.transitive {
			mod = moduledesc.Transitive
		}

		b.AddRequires(moduledesc.Requires{Name: r.name, Modifiers: mod})
	}

	if configure != nil {
		configure(b)
	}

	d, err := b.Build()
	if err != nil {
		t.Fatalf("build module %s: %v", name, err)
	}

	return d
}

func baseModule(t *testing.T) *moduledesc.ModuleDescriptor {
	t.Helper()

	d, err := moduledesc.NewBuilder(moduledesc.BaseModule).Build()
	if err != nil {
		t.Fatalf("build base module: %v", err)
	}

	return d
}

func TestResolveThreeModuleChainNonTransitive(t *testing.T) {
	base := baseModule(t)
	c := buildModule(t, "c", nil, nil)
	b := buildModule(t, "b", []requireSpec{{name: "c"}}, nil)
	a := buildModule(t, "a", []requireSpec{{name: "b"}}, nil)

	f := newMemFinder(base, c, b, a)

	res, err := Resolve(f, nil, nil, []string{"a"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	for _, name := range []string{"a", "b", "c", moduledesc.BaseModule} {
		if _, ok := res.Selected[name]; !ok {
			t.Fatalf("expected %s in selected, got %v", name, res.SortedNames())
		}
	}

	if !res.Reads["a"]["b"] {
		t.Fatal("expected a to read b directly")
	}

	if res.Reads["a"]["c"] {
		t.Fatal("expected a NOT to read c: b's requires c is not transitive")
	}

	if !res.Reads["b"]["c"] {
		t.Fatal("expected b to read c directly")
	}
}

func TestResolveTransitiveRequiresReexport(t *testing.T) {
	base := baseModule(t)
	c := buildModule(t, "c", nil, nil)
	b := buildModule(t, "b", []requireSpec{{name: "c", transitive: true}}, nil)
	a := buildModule(t, "a", []requireSpec{{name: "b"}}, nil)

	f := newMemFinder(base, c, b, a)

	res, err := Resolve(f, nil, nil, []string{"a"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !res.Reads["a"]["c"] {
		t.Fatal("expected a to read c transitively through b's transitive requires")
	}
}

func TestResolveCycleDetected(t *testing.T) {
	base := baseModule(t)
	a := buildModule(t, "a", []requireSpec{{name: "b"}}, nil)
	b := buildModule(t, "b", []requireSpec{{name: "a"}}, nil)

	f := newMemFinder(base, a, b)

	_, err := Resolve(f, nil, nil, []string{"a"})
	if err == nil {
		t.Fatal("expected a cycle error")
	}

	var cycleErr *linkerr.Cycle
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *linkerr.Cycle, got %T: %v", err, err)
	}
}

func TestResolveSplitPackageDetected(t *testing.T) {
	base := baseModule(t)

	a := buildModule(t, "a", nil, func(b *moduledesc.Builder) {
		b.Packages("shared.pkg")
		b.AddExports("shared.pkg")
	})

	conflict := buildModule(t, "conflict", nil, func(b *moduledesc.Builder) {
		b.Packages("shared.pkg")
		b.AddExports("shared.pkg")
	})

	root := buildModule(t, "root", []requireSpec{{name: "a"}, {name: "conflict"}}, nil)

	f := newMemFinder(base, a, conflict, root)

	_, err := Resolve(f, nil, nil, []string{"root"})
	if err == nil {
		t.Fatal("expected a split package error")
	}

	var split *linkerr.SplitPackage
	if !errors.As(err, &split) {
		t.Fatalf("expected *linkerr.SplitPackage, got %T: %v", err, err)
	}
}

// TestResolveConcealedSharedPackageNameNotSplit confirms that two modules
// which happen to share a package name, but never both export it to a
// common reader, do not conflict (spec.md §4.3.2 scopes the split-package
// check to "modules [a consumer] reads that export p to it", not every
// selected module's raw package list).
func TestResolveConcealedSharedPackageNameNotSplit(t *testing.T) {
	base := baseModule(t)

	// a's copy of shared.pkg is concealed (never exported), so it never
	// becomes visible to root even though root reads a.
	a := buildModule(t, "a", nil, func(b *moduledesc.Builder) {
		b.Packages("shared.pkg")
	})

	// unrelated does export shared.pkg, but root never reads unrelated,
	// so the two modules never collide for any common reader.
	unrelated := buildModule(t, "unrelated", nil, func(b *moduledesc.Builder) {
		b.Packages("shared.pkg")
		b.AddExports("shared.pkg")
	})

	root := buildModule(t, "root", []requireSpec{{name: "a"}}, nil)

	f := newMemFinder(base, a, unrelated, root)

	res, err := Resolve(f, nil, nil, []string{"root"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if _, ok := res.Selected["a"]; !ok {
		t.Fatalf("expected a to be selected, got %v", res.SortedNames())
	}
}

func TestResolveModuleNotFound(t *testing.T) {
	base := baseModule(t)
	a := buildModule(t, "a", []requireSpec{{name: "missing"}}, nil)

	f := newMemFinder(base, a)

	_, err := Resolve(f, nil, nil, []string{"a"})
	if err == nil {
		t.Fatal("expected a module-not-found error")
	}

	var notFound *linkerr.ModuleNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *linkerr.ModuleNotFound, got %T: %v", err, err)
	}

	if notFound.Name != "missing" || notFound.RequiredBy != "a" {
		t.Fatalf("unexpected ModuleNotFound: %+v", notFound)
	}
}

func TestBindServiceBinding(t *testing.T) {
	base := baseModule(t)

	impl := buildModule(t, "impl", nil, func(b *moduledesc.Builder) {
		b.Packages("impl")
		b.AddProvides("svc.Greeter", "impl.GreeterImpl")
	})

	core := buildModule(t, "core", nil, func(b *moduledesc.Builder) {
		b.AddUses("svc.Greeter")
	})

	f := newMemFinder(base, impl, core)

	res, err := Resolve(f, nil, nil, []string{"core"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if _, ok := res.Selected["impl"]; ok {
		t.Fatal("impl should not be selected before binding")
	}

	res, err = Bind(res, f, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	if _, ok := res.Selected["impl"]; !ok {
		t.Fatalf("expected impl to be pulled in by service binding, got %v", res.SortedNames())
	}

	providers := res.Providers["svc.Greeter"]
	if len(providers) != 1 || providers[0] != "impl" {
		t.Fatalf("expected impl to be recorded as the provider of svc.Greeter, got %v", providers)
	}
}

func TestResolveAutomaticModuleReadsEverything(t *testing.T) {
	base := baseModule(t)
	c := buildModule(t, "c", nil, nil)

	autoB, err := moduledesc.NewBuilder("b").Modifiers(moduledesc.Automatic).Build()
	if err != nil {
		t.Fatalf("build automatic module: %v", err)
	}

	a := buildModule(t, "a", []requireSpec{{name: "b"}, {name: "c"}}, nil)

	f := newMemFinder(base, c, autoB, a)

	res, err := Resolve(f, nil, nil, []string{"a"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !res.Reads["b"]["c"] {
		t.Fatal("expected automatic module b to read c, like every other module")
	}

	if !res.Reads["b"]["a"] {
		t.Fatal("expected automatic module b to read a too (reads everything)")
	}
}
