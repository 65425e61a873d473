// Package resolve implements the Resolver and Service Binder (spec.md
// §4.3, §4.3.1, §4.3.2, §4.7): given a before-finder, an optional parent
// layer, an after-finder, and a list of root module names, it computes the
// closure of required modules, checks it for cycles, split packages, and
// hash mismatches, builds the readability graph, and (on request) extends
// the closure with service providers.
//
// Grounded on internal/packagemanager/resolver.go's backtracking resolver
// shape (deterministic sorted-worklist iteration, typed ConflictError/
// CycleError) and internal/modules/modules.go's DependencyGraph (DFS cycle
// detection and Kahn's-algorithm topological sort, ported into
// internal/graph; only the cycle check is used here). The service-binding fixpoint loop is grounded on
// internal/packagemanager/manager.go's ResolveAndFetch queue-of-batches
// expansion.
package resolve

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/orizon-lang/orizon/internal/finder"
	"github.com/orizon-lang/orizon/internal/graph"
	"github.com/orizon-lang/orizon/internal/linkerr"
	"github.com/orizon-lang/orizon/internal/linklog"
	"github.com/orizon-lang/orizon/internal/moduledesc"
)

// ReferenceFinder is the subset of *finder.Finder the resolver needs;
// declared here so the resolver depends on a shape, not a concrete type.
type ReferenceFinder interface {
	Find(name string) (*finder.ModuleReference, error)
	FindAll() ([]*finder.ModuleReference, error)
}

// ParentLayer is the subset of an already-assembled layer (internal/layer)
// the resolver consults when seeding a child configuration: a module
// already readable through the parent is not re-resolved into this one.
type ParentLayer interface {
	FindModule(name string) (*moduledesc.ModuleDescriptor, bool)
	AllModules() []*moduledesc.ModuleDescriptor
}

// Resolution is the result of a successful resolve, and the input to Bind.
type Resolution struct {
	Selected   map[string]*moduledesc.ModuleDescriptor
	References map[string]*finder.ModuleReference
	Reads      map[string]map[string]bool
	Providers  map[string][]string
	Parent     ParentLayer
	Roots      []string
}

// SortedNames returns the selected module names in sorted order.
func (r *Resolution) SortedNames() []string {
	names := make([]string, 0, len(r.Selected))
	for n := range r.Selected {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Option configures a resolve or bind call.
type Option func(*options)

type options struct {
	logger *linklog.Logger
}

// WithLogger attaches a logger to a resolve or bind call. Resolve and Bind
// accept the option but write nothing to the logger.
func WithLogger(l *linklog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts ...Option) *options {
	o := &options{logger: linklog.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// closure is the shared expansion engine behind both Resolve (seeded from
// roots) and Bind (seeded from discovered service providers): a worklist
// of module names whose direct requires still need to be looked up.
type closure struct {
	before, after ReferenceFinder
	parent        ParentLayer
	selected      map[string]*moduledesc.ModuleDescriptor
	references    map[string]*finder.ModuleReference
	queue         []string
}

// lookup resolves name through before, then the parent layer, then after,
// first-found-wins (spec.md §4.3 step 2).
func (c *closure) lookup(name string) (desc *moduledesc.ModuleDescriptor, ref *finder.ModuleReference, inParent bool, err error) {
	if c.before != nil {
		ref, err = c.before.Find(name)
		if err != nil {
			return nil, nil, false, err
		}

		if ref != nil {
			return ref.Descriptor, ref, false, nil
		}
	}

	if c.parent != nil {
		if d, ok := c.parent.FindModule(name); ok {
			return d, nil, true, nil
		}
	}

	if c.after != nil {
		ref, err = c.after.Find(name)
		if err != nil {
			return nil, nil, false, err
		}

		if ref != nil {
			return ref.Descriptor, ref, false, nil
		}
	}

	return nil, nil, false, nil
}

// resolveName admits name into the closure's selected set, or confirms it
// is already available (directly selected, or readable through the parent
// layer, in which case there is nothing further to do).
func (c *closure) resolveName(name, requiredBy string) error {
	if _, ok := c.selected[name]; ok {
		return nil
	}

	desc, ref, inParent, err := c.lookup(name)
	if err != nil {
		return err
	}

	if desc == nil {
		return &linkerr.ModuleNotFound{Name: name, RequiredBy: requiredBy}
	}

	if inParent {
		return nil
	}

	c.selected[name] = desc
	c.references[name] = ref
	c.queue = append(c.queue, name)

	return nil
}

// drain processes the worklist until empty, resolving every queued
// module's direct requires (spec.md §4.3 step 2's BFS closure expansion).
func (c *closure) drain() error {
	for len(c.queue) > 0 {
		name := c.queue[0]
		c.queue = c.queue[1:]

		desc := c.selected[name]
		for _, reqName := range desc.RequiresNames() {
			if err := c.resolveName(reqName, name); err != nil {
				return err
			}
		}
	}

	return nil
}

// Resolve computes the module closure reachable from roots (spec.md §4.3).
func Resolve(before ReferenceFinder, parent ParentLayer, after ReferenceFinder, roots []string, opts ...Option) (*Resolution, error) {
	newOptions(opts...) // validated for option shape; logger currently unused on this path

	c := &closure{
		before:     before,
		after:      after,
		parent:     parent,
		selected:   make(map[string]*moduledesc.ModuleDescriptor),
		references: make(map[string]*finder.ModuleReference),
	}

	sortedRoots := append([]string(nil), roots...)
	sort.Strings(sortedRoots)

	for _, root := range sortedRoots {
		if err := c.resolveName(root, ""); err != nil {
			return nil, err
		}
	}

	if err := c.drain(); err != nil {
		return nil, err
	}

	if err := checkCycles(c.selected); err != nil {
		return nil, err
	}

	if err := checkHashes(c.selected, c.references); err != nil {
		return nil, err
	}

	reads := buildReads(c.selected, parent)

	if err := checkSplitPackages(c.selected, reads, parent); err != nil {
		return nil, err
	}

	return &Resolution{
		Selected:   c.selected,
		References: c.references,
		Reads:      reads,
		Providers:  make(map[string][]string),
		Parent:     parent,
		Roots:      append([]string(nil), roots...),
	}, nil
}

// checkCycles runs the requires-only DFS over the selected set (spec.md
// §4.3.2): edges leaving the selected set, such as the implicit BaseModule
// requires satisfied through a parent layer, are not followed, since a
// cycle can only occur among modules this resolution itself selected.
func checkCycles(selected map[string]*moduledesc.ModuleDescriptor) error {
	names := make([]string, 0, len(selected))
	for n := range selected {
		names = append(names, n)
	}

	edges := func(n string) []string {
		d, ok := selected[n]
		if !ok {
			return nil
		}

		out := make([]string, 0, len(d.Requires))

		for _, reqName := range d.RequiresNames() {
			if _, ok := selected[reqName]; ok {
				out = append(out, reqName)
			}
		}

		return out
	}

	if c := graph.DetectCycle(names, edges); c != nil {
		return &linkerr.Cycle{Path: c.Path}
	}

	return nil
}

// checkHashes recomputes each recorded dependency hash and compares it
// against the one its descriptor was compiled against (spec.md §4.3 step
// 4). A dependency satisfied by the parent layer carries no reference in
// this resolution and is assumed already verified there.
func checkHashes(selected map[string]*moduledesc.ModuleDescriptor, references map[string]*finder.ModuleReference) error {
	names := make([]string, 0, len(selected))
	for n := range selected {
		names = append(names, n)
	}

	sort.Strings(names)

	for _, name := range names {
		d := selected[name]
		if d.Hashes == nil {
			continue
		}

		depNames := make([]string, 0, len(d.Hashes.Hashes))
		for dep := range d.Hashes.Hashes {
			depNames = append(depNames, dep)
		}

		sort.Strings(depNames)

		for _, dep := range depNames {
			ref, ok := references[dep]
			if !ok || ref.Hash == nil {
				continue
			}

			expected := d.Hashes.Hashes[dep]

			actual, err := ref.Hash(d.Hashes.Algorithm)
			if err != nil {
				return fmt.Errorf("resolve: hashing %s for %s: %w", dep, name, err)
			}

			if !bytes.Equal(actual, expected) {
				return &linkerr.HashMismatch{
					Dependency: dep,
					Expected:   fmt.Sprintf("%x", expected),
					Actual:     fmt.Sprintf("%x", actual),
				}
			}
		}
	}

	return nil
}

// checkSplitPackages enforces that each consumer has at most one supplier
// for a given package among the modules it reads that export that package
// to it (spec.md §4.3.2): two modules sharing a package name is only a
// conflict if some reader can actually see both of them supplying it,
// mirroring the export-visibility check internal/layer.Layer.ExportsTo
// applies at assembly time. A concealed (non-exported) package, or a
// package exported but not reachable by a common reader, never conflicts.
func checkSplitPackages(selected map[string]*moduledesc.ModuleDescriptor, reads map[string]map[string]bool, parent ParentLayer) error {
	lookup := moduleLookup(selected, parent)

	consumers := make([]string, 0, len(selected))
	for n := range selected {
		consumers = append(consumers, n)
	}

	sort.Strings(consumers)

	for _, consumer := range consumers {
		suppliers := make([]string, 0, len(reads[consumer]))
		for s := range reads[consumer] {
			suppliers = append(suppliers, s)
		}

		sort.Strings(suppliers)

		owner := make(map[string]string)

		for _, supplier := range suppliers {
			d, ok := lookup(supplier)
			if !ok {
				continue
			}

			pkgs := make([]string, 0, len(d.Exports))
			for p := range d.Exports {
				pkgs = append(pkgs, p)
			}

			sort.Strings(pkgs)

			for _, pkg := range pkgs {
				if !d.ExportsTo(pkg, consumer) {
					continue
				}

				if existing, dup := owner[pkg]; dup && existing != supplier {
					return &linkerr.SplitPackage{Package: pkg, A: existing, B: supplier}
				}

				owner[pkg] = supplier
			}
		}
	}

	return nil
}
