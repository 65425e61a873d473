package layer

import (
	"sort"

	"github.com/orizon-lang/orizon/internal/linkerr"
	"github.com/orizon-lang/orizon/internal/moduledesc"
	"github.com/orizon-lang/orizon/internal/resolve"
)

// LoaderFor maps a selected module name to the loader it should be
// defined against (spec.md §4.4's `loaderFor(moduleName) -> LoaderHandle`
// parameter).
type LoaderFor func(moduleName string) (*Loader, error)

// Layer is an assembled module configuration: a fixed set of modules, each
// bound to a loader, with visibility (exports) and readability recorded.
// Layers chain to a parent the way class loaders chain to a parent loader.
type Layer struct {
	parent   *Layer
	modules  map[string]*moduledesc.ModuleDescriptor
	loaderOf map[string]*Loader
	reads    map[string]map[string]bool
	// exportedTo maps "module\x00package" to the set of reader module
	// names it is visible to; a nil set means unqualified (visible to
	// every reader that reads module).
	exportedTo map[string]map[string]bool
}

var empty = &Layer{
	modules:    map[string]*moduledesc.ModuleDescriptor{},
	loaderOf:   map[string]*Loader{},
	reads:      map[string]map[string]bool{},
	exportedTo: map[string]map[string]bool{},
}

// Empty returns the distinguished empty layer: no configuration, no
// modules, no parent (spec.md §4.4 last paragraph).
func Empty() *Layer { return empty }

func exportKey(module, pkg string) string { return module + "\x00" + pkg }

// New assembles a Layer from a Resolution (spec.md §4.4 steps 1-5).
func New(res *resolve.Resolution, parent *Layer, loaderFor LoaderFor) (*Layer, error) {
	if parent == nil {
		parent = Empty()
	}

	names := res.SortedNames()

	loaderOf := make(map[string]*Loader, len(names))

	for _, name := range names {
		l, err := loaderFor(name)
		if err != nil {
			return nil, err
		}

		loaderOf[name] = l
	}

	// Step 1: pre-check that every loader's modules own disjoint packages.
	claimed := make(map[string]map[string]string) // loader name -> package -> module

	for _, name := range names {
		d := res.Selected[name]
		l := loaderOf[name]

		owners, ok := claimed[l.Name()]
		if !ok {
			owners = make(map[string]string)
			claimed[l.Name()] = owners
		}

		pkgs := make([]string, 0, len(d.Packages))
		for p := range d.Packages {
			pkgs = append(pkgs, p)
		}

		sort.Strings(pkgs)

		for _, pkg := range pkgs {
			if existing, dup := owners[pkg]; dup && existing != name {
				return nil, &linkerr.DuplicatePackageInLoader{Package: pkg, Loader: l.Name(), A: existing, B: name}
			}

			owners[pkg] = name
		}
	}

	// Step 2: define each module against its loader and publish its
	// package list.
	for _, name := range names {
		d := res.Selected[name]
		l := loaderOf[name]

		pkgs := make([]string, 0, len(d.Packages))
		for p := range d.Packages {
			pkgs = append(pkgs, p)
		}

		sort.Strings(pkgs)

		if err := l.RegisterModule(name, pkgs); err != nil {
			return nil, err
		}
	}

	lay := &Layer{
		parent:     parent,
		modules:    res.Selected,
		loaderOf:   loaderOf,
		reads:      res.Reads,
		exportedTo: make(map[string]map[string]bool),
	}

	// Step 4: register exports, silently dropping qualified targets
	// outside this layer plus its parents.
	for _, name := range names {
		d := res.Selected[name]

		exportNames := make([]string, 0, len(d.Exports))
		for p := range d.Exports {
			exportNames = append(exportNames, p)
		}

		sort.Strings(exportNames)

		for _, pkg := range exportNames {
			e := d.Exports[pkg]

			if !e.Qualified() {
				lay.exportedTo[exportKey(name, pkg)] = nil
				continue
			}

			targets := make(map[string]bool, len(e.Targets))

			reachable := make([]string, 0, len(e.Targets))
			for t := range e.Targets {
				reachable = append(reachable, t)
			}

			sort.Strings(reachable)

			for _, t := range reachable {
				if lay.hasModule(t) {
					targets[t] = true
				}
			}

			lay.exportedTo[exportKey(name, pkg)] = targets
		}
	}

	// Step 5: register service providers with each loader.
	for _, name := range names {
		d := res.Selected[name]

		services := make([]string, 0, len(d.Provides))
		for s := range d.Provides {
			services = append(services, s)
		}

		sort.Strings(services)

		for _, svc := range services {
			loaderOf[name].RegisterService(svc, name)
		}
	}

	return lay, nil
}

// hasModule reports whether name is selected in this layer or any parent.
func (l *Layer) hasModule(name string) bool {
	_, ok := l.FindModule(name)
	return ok
}

// FindModule searches this layer then its parents (spec.md §4.4 step 6).
func (l *Layer) FindModule(name string) (*moduledesc.ModuleDescriptor, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if d, ok := cur.modules[name]; ok {
			return d, true
		}
	}

	return nil, false
}

// FindLoader searches this layer then its parents for name's loader.
func (l *Layer) FindLoader(name string) (*Loader, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if ld, ok := cur.loaderOf[name]; ok {
			return ld, true
		}
	}

	return nil, false
}

// AllModules returns every module selected in this layer and its
// ancestors, satisfying resolve.ParentLayer so a child Resolution can be
// seeded against this Layer.
func (l *Layer) AllModules() []*moduledesc.ModuleDescriptor {
	seen := make(map[string]bool)

	var out []*moduledesc.ModuleDescriptor

	for cur := l; cur != nil; cur = cur.parent {
		names := make([]string, 0, len(cur.modules))
		for n := range cur.modules {
			names = append(names, n)
		}

		sort.Strings(names)

		for _, n := range names {
			if seen[n] {
				continue
			}

			seen[n] = true

			out = append(out, cur.modules[n])
		}
	}

	return out
}

// ExportsTo reports whether reader can see pkg as exported by owner,
// given that reader reads owner (spec.md §4.4 step 4).
func (l *Layer) ExportsTo(owner, pkg, reader string) bool {
	targets, ok := l.exportedTo[exportKey(owner, pkg)]
	if !ok {
		return false
	}

	if targets == nil {
		return true
	}

	return targets[reader]
}

// CanRead reports whether reader reads target in this layer's readability
// graph.
func (l *Layer) CanRead(reader, target string) bool {
	set, ok := l.reads[reader]
	if !ok {
		return false
	}

	return set[target]
}

// Parent returns the layer this one was assembled against, or nil for the
// empty layer. A layer assembled with a nil parent returns the empty layer.
func (l *Layer) Parent() *Layer {
	if l == empty {
		return nil
	}

	return l.parent
}
