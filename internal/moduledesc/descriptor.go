// Package moduledesc implements the module system's Descriptor Model
// (spec §3) and the binary Descriptor Decoder (spec §4.1, §6): immutable
// value types for a parsed module declaration, a validating builder, and a
// decoder/encoder pair for the fixed, constant-pool-indexed binary format.
//
// Value types follow the teacher's internal/modules.Module style (plain
// structs, no behaviour beyond accessors) but replace its single mutable
// "Module" record with the spec's closed set of immutable pieces, per
// spec §9's instruction to model Modifier/RequiresModifier/ExportsModifier
// as closed enums rather than reflection-discovered hierarchies.
package moduledesc

import (
	"sort"

	"github.com/orizon-lang/orizon/internal/linkerr"
	"github.com/orizon-lang/orizon/internal/modversion"
)

// BaseModule is the platform's foundational module: every other module
// acquires an implicit `requires mandated BaseModule`, and it is the only
// module exempt from that rule.
const BaseModule = "java.base"

// Modifier is a module-level modifier (spec §3).
type Modifier uint8

const (
	Open Modifier = 1 << iota
	Automatic
	ModSynthetic
	ModMandated
)

// Has reports whether m includes the flag f.
func (m Modifier) Has(f Modifier) bool { return m&f != 0 }

// RequiresModifier is a per-requires modifier (spec §3).
type RequiresModifier uint8

const (
	Transitive RequiresModifier = 1 << iota
	Static
	ReqSynthetic
	ReqMandated
)

// Has reports whether m includes the flag f.
func (m RequiresModifier) Has(f RequiresModifier) bool { return m&f != 0 }

// Requires is one dependency edge declared by a module.
type Requires struct {
	Name string
	// CompiledVersion is the version of Name this module was compiled
	// against, if recorded.
	CompiledVersion *modversion.Version
	// CompiledVersionConstraint is an optional, secondary semver-style
	// range check layered on top of CompiledVersion (see
	// internal/modversion.Constraint); it is not part of the core
	// resolution algorithm.
	CompiledVersionConstraint string
	Modifiers                 RequiresModifier
}

// Exports is a package export, optionally qualified to a set of reader
// module names; an empty/nil Targets means unqualified (visible to every
// reader).
type Exports struct {
	Package string
	Targets map[string]bool
}

// Qualified reports whether the export is restricted to specific readers.
func (e Exports) Qualified() bool { return len(e.Targets) > 0 }

// Opens is a package open declaration; same shape as Exports (spec §3:
// "Opens (same shape)").
type Opens struct {
	Package string
	Targets map[string]bool
}

// Qualified reports whether the open is restricted to specific readers.
func (o Opens) Qualified() bool { return len(o.Targets) > 0 }

// Provides binds a service name to its ordered, non-empty list of
// provider class names.
type Provides struct {
	Service   string
	Providers []string
}

// ModuleDescriptor is the immutable, decoded (or builder-constructed)
// description of a module's metadata (spec §3).
type ModuleDescriptor struct {
	Name      string
	Version   *modversion.Version
	Modifiers Modifier

	Requires map[string]Requires // keyed by Requires.Name
	Exports  map[string]Exports  // keyed by Exports.Package
	Opens    map[string]Opens    // keyed by Opens.Package
	Uses     map[string]bool     // service type names
	Provides map[string]Provides // keyed by Provides.Service

	Packages map[string]bool

	MainClass string
	OS        string
	Arch      string
	OSVersion string

	// Hashes records the expected content hash of each dependency this
	// descriptor was compiled against, if the binary carried a Hashes
	// attribute. The resolver recomputes and compares these (spec §4.3
	// step 4); it is nil when the descriptor carries no such record.
	Hashes *HashTable
}

// IsAutomatic reports whether this descriptor was derived synthetically
// from an archive lacking explicit module metadata (spec glossary).
func (d *ModuleDescriptor) IsAutomatic() bool { return d.Modifiers.Has(Automatic) }

// RequiresNames returns the sorted set of names this module requires.
func (d *ModuleDescriptor) RequiresNames() []string {
	names := make([]string, 0, len(d.Requires))
	for n := range d.Requires {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// ExportsTo reports whether pkg is exported to reader, given that reader
// reads this module. An unqualified export is visible to every reader.
func (d *ModuleDescriptor) ExportsTo(pkg, reader string) bool {
	e, ok := d.Exports[pkg]
	if !ok {
		return false
	}

	if !e.Qualified() {
		return true
	}

	return e.Targets[reader]
}

// OpensTo reports whether pkg is opened to reader, given that reader reads
// this module.
func (d *ModuleDescriptor) OpensTo(pkg, reader string) bool {
	o, ok := d.Opens[pkg]
	if !ok {
		return false
	}

	if !o.Qualified() {
		return true
	}

	return o.Targets[reader]
}

// validateIdentifier enforces the name rules common to module, package,
// and service names: non-empty, no leading/trailing '.', no empty
// component between dots, and only letters, digits, '_', '$', '.' as
// constituents — following the sanitisation discipline of the teacher's
// internal/packagemanager/input_validation.go.
func validateIdentifier(kind, name string) error {
	if name == "" {
		return &linkerr.IllegalName{Kind: kind, Value: name}
	}

	if name[0] == '.' || name[len(name)-1] == '.' {
		return &linkerr.IllegalName{Kind: kind, Value: name}
	}

	prevDot := false

	for _, r := range name {
		switch {
		case r == '.':
			if prevDot {
				return &linkerr.IllegalName{Kind: kind, Value: name}
			}

			prevDot = true
		case r == '_' || r == '$':
			prevDot = false
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			prevDot = false
		default:
			return &linkerr.IllegalName{Kind: kind, Value: name}
		}
	}

	return nil
}

// ValidateModuleName validates a module name against the identifier rules.
func ValidateModuleName(name string) error { return validateIdentifier("module", name) }

// ValidatePackageName validates a package name against the identifier
// rules.
func ValidatePackageName(name string) error { return validateIdentifier("package", name) }

// ValidateServiceName validates a service or provider class name against
// the identifier rules.
func ValidateServiceName(name string) error { return validateIdentifier("service", name) }
