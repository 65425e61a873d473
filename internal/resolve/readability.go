package resolve

import "github.com/orizon-lang/orizon/internal/moduledesc"

// moduleLookup returns a function resolving a module name to its
// descriptor, consulting selected first and then the parent layer;
// shared between buildReads and checkSplitPackages so both walk the same
// notion of "every module visible to this resolution".
func moduleLookup(selected map[string]*moduledesc.ModuleDescriptor, parent ParentLayer) func(name string) (*moduledesc.ModuleDescriptor, bool) {
	return func(name string) (*moduledesc.ModuleDescriptor, bool) {
		if d, ok := selected[name]; ok {
			return d, true
		}

		if parent != nil {
			if d, ok := parent.FindModule(name); ok {
				return d, true
			}
		}

		return nil, false
	}
}

// buildReads constructs the readability graph (spec.md §4.3.1): every
// selected module starts out reading exactly its own direct requires, then
// the graph is propagated to a fixpoint by following TRANSITIVE requires
// edges through already-read modules, and finally AUTOMATIC modules are
// special-cased: an automatic module reads everything, and anything that
// reads an automatic module inherits that same everything.
func buildReads(selected map[string]*moduledesc.ModuleDescriptor, parent ParentLayer) map[string]map[string]bool {
	allNames := make(map[string]bool, len(selected))
	for n := range selected {
		allNames[n] = true
	}

	if parent != nil {
		for _, d := range parent.AllModules() {
			allNames[d.Name] = true
		}
	}

	descriptorOf := moduleLookup(selected, parent)

	reads := make(map[string]map[string]bool, len(selected))

	for name, d := range selected {
		set := make(map[string]bool)

		if d.IsAutomatic() {
			for n := range allNames {
				if n != name {
					set[n] = true
				}
			}
		} else {
			for reqName := range d.Requires {
				set[reqName] = true
			}
		}

		reads[name] = set
	}

	for changed := true; changed; {
		changed = false

		for name, set := range reads {
			for r := range set {
				rd, ok := descriptorOf(r)
				if !ok {
					continue
				}

				if rd.IsAutomatic() {
					for n := range allNames {
						if n != name && !set[n] {
							set[n] = true
							changed = true
						}
					}

					continue
				}

				for _, req := range rd.Requires {
					if !req.Modifiers.Has(moduledesc.Transitive) {
						continue
					}

					if !set[req.Name] {
						set[req.Name] = true
						changed = true
					}
				}
			}
		}
	}

	return reads
}
