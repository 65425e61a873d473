package moduledesc

import (
	"fmt"

	"github.com/orizon-lang/orizon/internal/modversion"
)

// Builder constructs a ModuleDescriptor while enforcing the invariants of
// spec §3: unique requires names, no self-requires, exported/opened
// packages are a subset of declared packages, every provider class's
// package is declared, an AUTOMATIC module declares nothing beyond its
// name and version, and every non-BaseModule module gets an implicit
// `requires mandated BaseModule`.
type Builder struct {
	name      string
	version   *modversion.Version
	modifiers Modifier

	requires map[string]Requires
	exports  map[string]Exports
	opens    map[string]Opens
	uses     map[string]bool
	provides map[string]Provides
	packages map[string]bool

	mainClass string
	os        string
	arch      string
	osVersion string

	err error
}

// NewBuilder starts a descriptor builder for the given module name.
func NewBuilder(name string) *Builder {
	b := &Builder{
		name:     name,
		requires: make(map[string]Requires),
		exports:  make(map[string]Exports),
		opens:    make(map[string]Opens),
		uses:     make(map[string]bool),
		provides: make(map[string]Provides),
		packages: make(map[string]bool),
	}

	if err := ValidateModuleName(name); err != nil {
		b.fail(err)
	}

	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Modifiers sets the module-level modifiers.
func (b *Builder) Modifiers(m Modifier) *Builder {
	b.modifiers = m
	return b
}

// Version sets the module's own version.
func (b *Builder) Version(v modversion.Version) *Builder {
	b.version = &v
	return b
}

// Packages declares the module's concealed+exported package set.
func (b *Builder) Packages(pkgs ...string) *Builder {
	for _, p := range pkgs {
		if err := ValidatePackageName(p); err != nil {
			b.fail(err)
			continue
		}

		b.packages[p] = true
	}

	return b
}

// MainClass sets the optional entry-point class.
func (b *Builder) MainClass(class string) *Builder {
	b.mainClass = class
	return b
}

// Platform sets the optional OS/arch/version restriction.
func (b *Builder) Platform(os, arch, osVersion string) *Builder {
	b.os, b.arch, b.osVersion = os, arch, osVersion
	return b
}

// AddRequires declares a dependency edge.
func (b *Builder) AddRequires(r Requires) *Builder {
	if err := ValidateModuleName(r.Name); err != nil {
		b.fail(err)
		return b
	}

	if r.Name == b.name {
		b.fail(selfRequiresError(b.name))
		return b
	}

	if _, dup := b.requires[r.Name]; dup {
		b.fail(fmt.Errorf("module %s: duplicate requires %s", b.name, r.Name))
		return b
	}

	b.requires[r.Name] = r

	return b
}

func selfRequiresError(name string) error {
	return fmt.Errorf("module %s may not require itself", name)
}

// AddExports declares an export; targets is nil/empty for unqualified.
func (b *Builder) AddExports(pkg string, targets ...string) *Builder {
	if err := ValidatePackageName(pkg); err != nil {
		b.fail(err)
		return b
	}

	if _, dup := b.exports[pkg]; dup {
		b.fail(fmt.Errorf("module %s: duplicate exports %s", b.name, pkg))
		return b
	}

	b.exports[pkg] = Exports{Package: pkg, Targets: toSet(targets)}

	return b
}

// AddOpens declares an open; targets is nil/empty for unqualified.
func (b *Builder) AddOpens(pkg string, targets ...string) *Builder {
	if err := ValidatePackageName(pkg); err != nil {
		b.fail(err)
		return b
	}

	if _, dup := b.opens[pkg]; dup {
		b.fail(fmt.Errorf("module %s: duplicate opens %s", b.name, pkg))
		return b
	}

	b.opens[pkg] = Opens{Package: pkg, Targets: toSet(targets)}

	return b
}

// AddUses declares a service dependency.
func (b *Builder) AddUses(service string) *Builder {
	if err := ValidateServiceName(service); err != nil {
		b.fail(err)
		return b
	}

	b.uses[service] = true

	return b
}

// AddProvides declares a service implementation; providers must be
// non-empty.
func (b *Builder) AddProvides(service string, providers ...string) *Builder {
	if err := ValidateServiceName(service); err != nil {
		b.fail(err)
		return b
	}

	if len(providers) == 0 {
		b.fail(fmt.Errorf("module %s: provides %s has no providers", b.name, service))
		return b
	}

	for _, p := range providers {
		if err := ValidateServiceName(p); err != nil {
			b.fail(err)
			return b
		}
	}

	if existing, dup := b.provides[service]; dup {
		existing.Providers = append(existing.Providers, providers...)
		b.provides[service] = existing
	} else {
		cp := append([]string(nil), providers...)
		b.provides[service] = Provides{Service: service, Providers: cp}
	}

	return b
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}

	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}

	return m
}

// Build validates all invariants and produces the immutable descriptor.
func (b *Builder) Build() (*ModuleDescriptor, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.modifiers.Has(Automatic) {
		if len(b.requires) > 0 || len(b.exports) > 0 || len(b.opens) > 0 || len(b.uses) > 0 || len(b.provides) > 0 {
			return nil, fmt.Errorf("module %s: automatic module may declare only its name and version", b.name)
		}
	}

	for pkg := range b.exports {
		if !b.packages[pkg] {
			return nil, fmt.Errorf("module %s: exported package %s is not in packages", b.name, pkg)
		}
	}

	for pkg := range b.opens {
		if !b.packages[pkg] {
			return nil, fmt.Errorf("module %s: opened package %s is not in packages", b.name, pkg)
		}
	}

	for _, p := range b.provides {
		for _, provider := range p.Providers {
			pkg := packageOf(provider)
			if !b.packages[pkg] {
				return nil, fmt.Errorf("module %s: provider %s's package %s is not in packages", b.name, provider, pkg)
			}
		}
	}

	requires := b.requires
	if b.name != BaseModule {
		if _, has := requires[BaseModule]; !has {
			requires = cloneRequires(requires)
			requires[BaseModule] = Requires{Name: BaseModule, Modifiers: ReqMandated}
		}
	}

	return &ModuleDescriptor{
		Name:      b.name,
		Version:   b.version,
		Modifiers: b.modifiers,
		Requires:  requires,
		Exports:   b.exports,
		Opens:     b.opens,
		Uses:      b.uses,
		Provides:  b.provides,
		Packages:  b.packages,
		MainClass: b.mainClass,
		OS:        b.os,
		Arch:      b.arch,
		OSVersion: b.osVersion,
	}, nil
}

func cloneRequires(in map[string]Requires) map[string]Requires {
	out := make(map[string]Requires, len(in)+1)
	for k, v := range in {
		out[k] = v
	}

	return out
}

// packageOf returns the package portion of a fully-qualified class name
// (everything before the last '.').
func packageOf(class string) string {
	last := -1

	for i := len(class) - 1; i >= 0; i-- {
		if class[i] == '.' {
			last = i
			break
		}
	}

	if last < 0 {
		return ""
	}

	return class[:last]
}
