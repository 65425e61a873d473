package resolve

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/orizon/internal/finder"
	"github.com/orizon-lang/orizon/internal/moduledesc"
)

// Bind extends a Resolution with service binding (spec.md §4.3.1 "Service
// binding", §4.7): every module reachable so far that uses a service gets
// the service's providers pulled into the closure, and any provider that
// is itself newly added gets its own requires resolved and is in turn
// scanned for further uses, until the set stops growing.
//
// before and after are consulted (in that order) to build the provider
// catalog that backs uses-resolution; both are scanned concurrently via
// errgroup since neither scan depends on the other.
func Bind(res *Resolution, before, after ReferenceFinder, opts ...Option) (*Resolution, error) {
	newOptions(opts...)

	catalog, err := buildCatalog(before, after)
	if err != nil {
		return nil, err
	}

	c := &closure{
		before:     before,
		after:      after,
		parent:     res.Parent,
		selected:   res.Selected,
		references: res.References,
	}

	providers := make(map[string][]string)
	scanned := make(map[string]bool)

	toScan := make([]string, 0, len(res.Selected))
	for name := range res.Selected {
		toScan = append(toScan, name)
	}

	if res.Parent != nil {
		for _, d := range res.Parent.AllModules() {
			toScan = append(toScan, d.Name)
		}
	}

	sort.Strings(toScan)

	descriptorOf := func(name string) (*moduledesc.ModuleDescriptor, bool) {
		if d, ok := res.Selected[name]; ok {
			return d, true
		}

		if res.Parent != nil {
			if d, ok := res.Parent.FindModule(name); ok {
				return d, true
			}
		}

		return nil, false
	}

	for {
		serviceIndex := buildServiceIndex(res.Selected, res.Parent, catalog)

		grew := false

		for len(toScan) > 0 {
			name := toScan[0]
			toScan = toScan[1:]

			if scanned[name] {
				continue
			}

			scanned[name] = true

			d, ok := descriptorOf(name)
			if !ok {
				continue
			}

			services := make([]string, 0, len(d.Uses))
			for svc := range d.Uses {
				services = append(services, svc)
			}

			sort.Strings(services)

			for _, svc := range services {
				provNames := serviceIndex[svc]

				for _, pname := range provNames {
					providers[svc] = appendUnique(providers[svc], pname)

					if _, ok := res.Selected[pname]; ok {
						continue
					}

					if res.Parent != nil {
						if _, ok := res.Parent.FindModule(pname); ok {
							continue
						}
					}

					if err := c.resolveName(pname, "service:"+svc); err != nil {
						return nil, err
					}

					grew = true
				}
			}
		}

		if err := c.drain(); err != nil {
			return nil, err
		}

		for name := range res.Selected {
			if !scanned[name] {
				toScan = append(toScan, name)
				grew = true
			}
		}

		sort.Strings(toScan)

		if !grew && len(toScan) == 0 {
			break
		}
	}

	if err := checkCycles(res.Selected); err != nil {
		return nil, err
	}

	if err := checkHashes(res.Selected, res.References); err != nil {
		return nil, err
	}

	reads := buildReads(res.Selected, res.Parent)

	if err := checkSplitPackages(res.Selected, reads, res.Parent); err != nil {
		return nil, err
	}

	for svc := range providers {
		sort.Strings(providers[svc])
	}

	res.Reads = reads
	res.Providers = providers

	return res, nil
}

// buildCatalog scans before and after concurrently into a single
// name-indexed catalog, before winning name collisions (spec.md §4.3
// step 2's lookup order, extended to the full module universe service
// binding may draw new providers from).
func buildCatalog(before, after ReferenceFinder) (map[string]*finder.ModuleReference, error) {
	var beforeRefs, afterRefs []*finder.ModuleReference

	var g errgroup.Group

	if before != nil {
		g.Go(func() error {
			refs, err := before.FindAll()
			if err != nil {
				return err
			}

			beforeRefs = refs

			return nil
		})
	}

	if after != nil {
		g.Go(func() error {
			refs, err := after.FindAll()
			if err != nil {
				return err
			}

			afterRefs = refs

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog := make(map[string]*finder.ModuleReference, len(beforeRefs)+len(afterRefs))

	for _, ref := range afterRefs {
		catalog[ref.Descriptor.Name] = ref
	}

	for _, ref := range beforeRefs {
		catalog[ref.Descriptor.Name] = ref
	}

	return catalog, nil
}

// buildServiceIndex maps every service name to its known provider module
// names, drawn from the already-selected set, the parent layer, and the
// discovery catalog.
func buildServiceIndex(selected map[string]*moduledesc.ModuleDescriptor, parent ParentLayer, catalog map[string]*finder.ModuleReference) map[string][]string {
	index := make(map[string][]string)

	add := func(d *moduledesc.ModuleDescriptor) {
		for svc := range d.Provides {
			index[svc] = appendUnique(index[svc], d.Name)
		}
	}

	names := make([]string, 0, len(selected))
	for n := range selected {
		names = append(names, n)
	}

	sort.Strings(names)

	for _, n := range names {
		add(selected[n])
	}

	if parent != nil {
		for _, d := range parent.AllModules() {
			add(d)
		}
	}

	catalogNames := make([]string, 0, len(catalog))
	for n := range catalog {
		catalogNames = append(catalogNames, n)
	}

	sort.Strings(catalogNames)

	for _, n := range catalogNames {
		add(catalog[n].Descriptor)
	}

	return index
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}

	return append(list, v)
}
