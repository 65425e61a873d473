package moduledesc

import (
	"fmt"

	"github.com/orizon-lang/orizon/internal/modversion"
)

const (
	attrModule            = "Module"
	attrConcealedPackages = "ConcealedPackages"
	attrVersion           = "Version"
	attrMainClass         = "MainClass"
	attrHashes            = "Hashes"
)

// rawAttribute is one decoded (name, payload) attribute-table entry,
// before the payload itself has been interpreted.
type rawAttribute struct {
	name    string
	payload []byte
}

// readAttributes reads the attribute table (spec §4.1 step 4 / §6),
// resolving each attribute's name against the constant pool so duplicate
// detection and dispatch can happen by name rather than by raw index.
func readAttributes(r *reader, pool []cpEntry, count int) ([]rawAttribute, error) {
	attrs := make([]rawAttribute, 0, count)
	seen := make(map[string]bool, count)

	for i := 0; i < count; i++ {
		nameIdx, err := r.u16()
		if err != nil {
			return nil, err
		}

		length, err := r.u32()
		if err != nil {
			return nil, err
		}

		payload, err := r.bytes(int(length))
		if err != nil {
			return nil, err
		}

		name, err := utf8At(pool, nameIdx)
		if err != nil {
			return nil, err
		}

		if isKnownAttribute(name) {
			if seen[name] {
				return nil, invalid(fmt.Sprintf("duplicate %s attribute", name))
			}

			seen[name] = true
		}

		attrs = append(attrs, rawAttribute{name: name, payload: payload})
	}

	return attrs, nil
}

func isKnownAttribute(name string) bool {
	switch name {
	case attrModule, attrConcealedPackages, attrVersion, attrMainClass, attrHashes:
		return true
	default:
		return false
	}
}

func findAttribute(attrs []rawAttribute, name string) (rawAttribute, bool) {
	for _, a := range attrs {
		if a.name == name {
			return a, true
		}
	}

	return rawAttribute{}, false
}

// HashTable maps a dependency module name to its recorded hash bytes,
// decoded from a Hashes attribute (spec §4.3 step 4).
type HashTable struct {
	Algorithm string
	Hashes    map[string][]byte
}

// buildFromAttributes interprets the recognized attributes into a
// ModuleDescriptor, consulting finder only when ConcealedPackages is
// absent (spec §4.1 step 5).
func buildFromAttributes(name string, pool []cpEntry, attrs []rawAttribute, finder PackageFinder) (*ModuleDescriptor, error) {
	b := NewBuilder(name)

	var packages map[string]bool

	if cp, ok := findAttribute(attrs, attrConcealedPackages); ok {
		pkgs, err := decodeConcealedPackages(pool, cp.payload)
		if err != nil {
			return nil, err
		}

		packages = pkgs
	} else if finder != nil {
		pkgs, err := finder()
		if err != nil {
			return nil, fmt.Errorf("package finder: %w", err)
		}

		packages = pkgs
	}

	modAttr, hasModule := findAttribute(attrs, attrModule)

	var (
		flags          uint16
		requiresOut    []Requires
		exportsOut     []Exports
		opensOut       []Opens
		usesOut        []string
		providesOut    []Provides
		moduleDeclared bool
	)

	if hasModule {
		moduleDeclared = true

		decoded, err := decodeModuleAttribute(pool, modAttr.payload)
		if err != nil {
			return nil, err
		}

		flags = decoded.flags
		requiresOut = decoded.requires
		exportsOut = decoded.exports
		opensOut = decoded.opens
		usesOut = decoded.uses
		providesOut = decoded.provides
	}

	b.Modifiers(Modifier(flags))

	allPackages := make(map[string]bool, len(packages))
	for p := range packages {
		allPackages[p] = true
	}

	for _, e := range exportsOut {
		allPackages[e.Package] = true
	}

	for _, o := range opensOut {
		allPackages[o.Package] = true
	}

	pkgList := make([]string, 0, len(allPackages))
	for p := range allPackages {
		pkgList = append(pkgList, p)
	}

	b.Packages(pkgList...)

	if moduleDeclared {
		for _, r := range requiresOut {
			b.AddRequires(r)
		}

		for _, e := range exportsOut {
			b.AddExports(e.Package, targetList(e.Targets)...)
		}

		for _, o := range opensOut {
			b.AddOpens(o.Package, targetList(o.Targets)...)
		}

		for _, u := range usesOut {
			b.AddUses(u)
		}

		for _, p := range providesOut {
			b.AddProvides(p.Service, p.Providers...)
		}
	}

	if va, ok := findAttribute(attrs, attrVersion); ok {
		vs, err := decodeVersionAttribute(pool, va.payload)
		if err != nil {
			return nil, err
		}

		v, err := modversion.Parse(vs)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}

		b.Version(v)
	}

	if ma, ok := findAttribute(attrs, attrMainClass); ok {
		mc, err := decodeMainClassAttribute(pool, ma.payload)
		if err != nil {
			return nil, err
		}

		b.MainClass(mc)
	}

	d, err := b.Build()
	if err != nil {
		return nil, err
	}

	if ha, ok := findAttribute(attrs, attrHashes); ok {
		ht, err := decodeHashesAttribute(pool, ha.payload)
		if err != nil {
			return nil, err
		}

		d.Hashes = ht
	}

	return d, nil
}

func decodeHashesAttribute(pool []cpEntry, payload []byte) (*HashTable, error) {
	r := &reader{data: payload}

	algIdx, err := r.u16()
	if err != nil {
		return nil, err
	}

	alg, err := utf8At(pool, algIdx)
	if err != nil {
		return nil, err
	}

	count, err := r.u16()
	if err != nil {
		return nil, err
	}

	ht := &HashTable{Algorithm: alg, Hashes: make(map[string][]byte, count)}

	for i := 0; i < int(count); i++ {
		nameIdx, err := r.u16()
		if err != nil {
			return nil, err
		}

		length, err := r.u16()
		if err != nil {
			return nil, err
		}

		b, err := r.bytes(int(length))
		if err != nil {
			return nil, err
		}

		name, err := moduleNameAt(pool, nameIdx)
		if err != nil {
			return nil, err
		}

		cp := make([]byte, len(b))
		copy(cp, b)
		ht.Hashes[name] = cp
	}

	return ht, nil
}

func targetList(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}

	return out
}

func decodeConcealedPackages(pool []cpEntry, payload []byte) (map[string]bool, error) {
	r := &reader{data: payload}

	count, err := r.u16()
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, count)

	for i := 0; i < int(count); i++ {
		idx, err := r.u16()
		if err != nil {
			return nil, err
		}

		pkg, err := packageNameAt(pool, idx)
		if err != nil {
			return nil, err
		}

		out[pkg] = true
	}

	return out, nil
}

func decodeVersionAttribute(pool []cpEntry, payload []byte) (string, error) {
	r := &reader{data: payload}

	idx, err := r.u16()
	if err != nil {
		return "", err
	}

	return utf8At(pool, idx)
}

func decodeMainClassAttribute(pool []cpEntry, payload []byte) (string, error) {
	r := &reader{data: payload}

	idx, err := r.u16()
	if err != nil {
		return "", err
	}

	return classNameAt(pool, idx)
}

type decodedModule struct {
	flags    uint16
	requires []Requires
	exports  []Exports
	opens    []Opens
	uses     []string
	provides []Provides
}

func decodeModuleAttribute(pool []cpEntry, payload []byte) (decodedModule, error) {
	r := &reader{data: payload}

	var out decodedModule

	// name_index and own-version index are present in the encoding for
	// symmetry with a real module-info structure, but the module's own
	// name comes from this_class and its version from the Version
	// attribute; both fields are read here only to advance the cursor
	// correctly.
	if _, err := r.u16(); err != nil { // name_index
		return out, err
	}

	flags, err := r.u16()
	if err != nil {
		return out, err
	}

	out.flags = flags

	if _, err := r.u16(); err != nil { // version_index (0 = none)
		return out, err
	}

	reqCount, err := r.u16()
	if err != nil {
		return out, err
	}

	for i := 0; i < int(reqCount); i++ {
		nameIdx, err := r.u16()
		if err != nil {
			return out, err
		}

		reqFlags, err := r.u16()
		if err != nil {
			return out, err
		}

		versionIdx, err := r.u16()
		if err != nil {
			return out, err
		}

		name, err := moduleNameAt(pool, nameIdx)
		if err != nil {
			return out, err
		}

		req := Requires{Name: name, Modifiers: RequiresModifier(reqFlags)}

		if versionIdx != 0 {
			vs, err := utf8At(pool, versionIdx)
			if err != nil {
				return out, err
			}

			v, err := modversion.Parse(vs)
			if err != nil {
				return out, fmt.Errorf("requires %s: %w", name, err)
			}

			req.CompiledVersion = &v
		}

		out.requires = append(out.requires, req)
	}

	exports, err := decodeExportsLike(r, pool)
	if err != nil {
		return out, err
	}

	for _, e := range exports {
		out.exports = append(out.exports, Exports{Package: e.pkg, Targets: e.targets})
	}

	opens, err := decodeExportsLike(r, pool)
	if err != nil {
		return out, err
	}

	for _, o := range opens {
		out.opens = append(out.opens, Opens{Package: o.pkg, Targets: o.targets})
	}

	usesCount, err := r.u16()
	if err != nil {
		return out, err
	}

	for i := 0; i < int(usesCount); i++ {
		idx, err := r.u16()
		if err != nil {
			return out, err
		}

		name, err := classNameAt(pool, idx)
		if err != nil {
			return out, err
		}

		out.uses = append(out.uses, name)
	}

	providesCount, err := r.u16()
	if err != nil {
		return out, err
	}

	for i := 0; i < int(providesCount); i++ {
		idx, err := r.u16()
		if err != nil {
			return out, err
		}

		service, err := classNameAt(pool, idx)
		if err != nil {
			return out, err
		}

		withCount, err := r.u16()
		if err != nil {
			return out, err
		}

		if withCount == 0 {
			return out, invalid(fmt.Sprintf("provides %s has no providers", service))
		}

		var providers []string

		for j := 0; j < int(withCount); j++ {
			pidx, err := r.u16()
			if err != nil {
				return out, err
			}

			pname, err := classNameAt(pool, pidx)
			if err != nil {
				return out, err
			}

			providers = append(providers, pname)
		}

		out.provides = append(out.provides, Provides{Service: service, Providers: providers})
	}

	return out, nil
}

type exportsLikeEntry struct {
	pkg     string
	targets map[string]bool
}

// decodeExportsLike reads an exports-or-opens sub-table: count, then for
// each entry a package index, a flags field (reserved, unused today), a
// to_count, and that many module-name indices.
func decodeExportsLike(r *reader, pool []cpEntry) ([]exportsLikeEntry, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}

	out := make([]exportsLikeEntry, 0, count)

	for i := 0; i < int(count); i++ {
		pkgIdx, err := r.u16()
		if err != nil {
			return nil, err
		}

		if _, err := r.u16(); err != nil { // flags, reserved
			return nil, err
		}

		toCount, err := r.u16()
		if err != nil {
			return nil, err
		}

		pkg, err := packageNameAt(pool, pkgIdx)
		if err != nil {
			return nil, err
		}

		var targets map[string]bool

		if toCount > 0 {
			targets = make(map[string]bool, toCount)

			for j := 0; j < int(toCount); j++ {
				idx, err := r.u16()
				if err != nil {
					return nil, err
				}

				name, err := moduleNameAt(pool, idx)
				if err != nil {
					return nil, err
				}

				targets[name] = true
			}
		}

		out = append(out, exportsLikeEntry{pkg: pkg, targets: targets})
	}

	return out, nil
}
