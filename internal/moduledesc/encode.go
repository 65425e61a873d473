package moduledesc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/orizon-lang/orizon/internal/modversion"
)

// cpBuilder accumulates a deduplicated constant pool while encoding,
// mirroring the tag set the decoder understands.
type cpBuilder struct {
	entries []cpEntry
	utf8idx map[string]uint16
	// class/module/package indices are keyed by the name they point to,
	// since each is just a thin wrapper around a UTF8 entry.
	classIdx  map[string]uint16
	moduleIdx map[string]uint16
	pkgIdx    map[string]uint16
}

func newCPBuilder() *cpBuilder {
	return &cpBuilder{
		entries:   []cpEntry{{}}, // index 0 unused
		utf8idx:   make(map[string]uint16),
		classIdx:  make(map[string]uint16),
		moduleIdx: make(map[string]uint16),
		pkgIdx:    make(map[string]uint16),
	}
}

func (c *cpBuilder) utf8(s string) uint16 {
	if idx, ok := c.utf8idx[s]; ok {
		return idx
	}

	c.entries = append(c.entries, cpEntry{tag: tagUTF8, utf8: s})
	idx := uint16(len(c.entries) - 1)
	c.utf8idx[s] = idx

	return idx
}

func (c *cpBuilder) class(name string) uint16 {
	if idx, ok := c.classIdx[name]; ok {
		return idx
	}

	nameRef := c.utf8(name)
	c.entries = append(c.entries, cpEntry{tag: tagClass, ref1: nameRef})
	idx := uint16(len(c.entries) - 1)
	c.classIdx[name] = idx

	return idx
}

func (c *cpBuilder) module(name string) uint16 {
	if idx, ok := c.moduleIdx[name]; ok {
		return idx
	}

	nameRef := c.utf8(name)
	c.entries = append(c.entries, cpEntry{tag: tagModule, ref1: nameRef})
	idx := uint16(len(c.entries) - 1)
	c.moduleIdx[name] = idx

	return idx
}

func (c *cpBuilder) pkg(name string) uint16 {
	if idx, ok := c.pkgIdx[name]; ok {
		return idx
	}

	nameRef := c.utf8(name)
	c.entries = append(c.entries, cpEntry{tag: tagPackage, ref1: nameRef})
	idx := uint16(len(c.entries) - 1)
	c.pkgIdx[name] = idx

	return idx
}

// writer is the encode-side counterpart of reader: an append-only byte
// buffer with the same fixed-width primitives.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u16(v uint16) { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u32(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) raw(b []byte) { w.buf.Write(b) }

// isCanonicalImplicitBase reports whether r is exactly the implicit
// `requires mandated BaseModule` edge the builder injects on every
// non-base module, with nothing else recorded against it.
func isCanonicalImplicitBase(r Requires) bool {
	return r.Name == BaseModule && r.Modifiers == ReqMandated &&
		r.CompiledVersion == nil && r.CompiledVersionConstraint == ""
}

// Encode serializes d back into the binary format Decode parses. It is
// used by this package's round-trip tests and by the finder and linktool
// tests to write descriptor fixtures. The implicit `requires mandated BaseModule` edge is never
// written explicitly — Decode always reconstructs it via the same builder
// invariant that created it.
func Encode(d *ModuleDescriptor) ([]byte, error) {
	cp := newCPBuilder()

	thisClassName := d.Name + "/module-info"
	thisClassIdx := cp.class(thisClassName)

	var moduleAttr []byte

	if needsModuleAttribute(d) {
		payload, err := encodeModuleAttribute(cp, d)
		if err != nil {
			return nil, err
		}

		moduleAttr = payload
	}

	var attrs [][2]interface{} // (name, payload)

	if moduleAttr != nil {
		attrs = append(attrs, [2]interface{}{attrModule, moduleAttr})
	}

	if len(d.Packages) > 0 {
		attrs = append(attrs, [2]interface{}{attrConcealedPackages, encodeConcealedPackages(cp, d.Packages)})
	}

	if d.Version != nil {
		attrs = append(attrs, [2]interface{}{attrVersion, encodeVersionAttribute(cp, *d.Version)})
	}

	if d.MainClass != "" {
		attrs = append(attrs, [2]interface{}{attrMainClass, encodeMainClassAttribute(cp, d.MainClass)})
	}

	if d.Hashes != nil {
		attrs = append(attrs, [2]interface{}{attrHashes, encodeHashesAttribute(cp, *d.Hashes)})
	}

	out := &writer{}
	out.u32(Magic)
	out.u16(0) // minor
	out.u16(MinMajorVersion)

	// Constant pool, emitted after everything above has interned its
	// strings, so cp.entries is now final.
	out.u16(uint16(len(cp.entries)))

	for i := 1; i < len(cp.entries); i++ {
		e := cp.entries[i]

		switch e.tag {
		case tagUTF8:
			out.u8(tagUTF8)
			out.u16(uint16(len(e.utf8)))
			out.raw([]byte(e.utf8))
		case tagClass, tagModule, tagPackage:
			out.u8(e.tag)
			out.u16(e.ref1)
		default:
			return nil, fmt.Errorf("encode: unsupported constant pool tag %d", e.tag)
		}
	}

	out.u16(accModule)
	out.u16(thisClassIdx)
	out.u16(0) // super_class
	out.u16(0) // interfaces
	out.u16(0) // fields
	out.u16(0) // methods

	out.u16(uint16(len(attrs)))

	for _, a := range attrs {
		nameIdx := cp.utf8(a[0].(string))
		payload := a[1].([]byte)
		out.u16(nameIdx)
		out.u32(uint32(len(payload)))
		out.raw(payload)
	}

	return out.buf.Bytes(), nil
}

func needsModuleAttribute(d *ModuleDescriptor) bool {
	if d.Modifiers != 0 {
		return true
	}

	for _, r := range d.Requires {
		if !isCanonicalImplicitBase(r) {
			return true
		}
	}

	return len(d.Exports) > 0 || len(d.Opens) > 0 || len(d.Uses) > 0 || len(d.Provides) > 0
}

func encodeModuleAttribute(cp *cpBuilder, d *ModuleDescriptor) ([]byte, error) {
	w := &writer{}
	w.u16(cp.module(d.Name))
	w.u16(uint16(d.Modifiers))
	w.u16(0) // version_index: version lives in the Version attribute

	var explicitRequires []Requires

	for _, r := range d.Requires {
		if !isCanonicalImplicitBase(r) {
			explicitRequires = append(explicitRequires, r)
		}
	}

	sort.Slice(explicitRequires, func(i, j int) bool { return explicitRequires[i].Name < explicitRequires[j].Name })

	w.u16(uint16(len(explicitRequires)))

	for _, r := range explicitRequires {
		w.u16(cp.module(r.Name))
		w.u16(uint16(r.Modifiers))

		if r.CompiledVersion != nil {
			w.u16(cp.utf8(r.CompiledVersion.String()))
		} else {
			w.u16(0)
		}
	}

	encodeExportsLike(w, cp, exportsToGeneric(d.Exports))
	encodeExportsLike(w, cp, opensToGeneric(d.Opens))

	uses := make([]string, 0, len(d.Uses))
	for u := range d.Uses {
		uses = append(uses, u)
	}

	sort.Strings(uses)

	w.u16(uint16(len(uses)))

	for _, u := range uses {
		w.u16(cp.class(u))
	}

	provides := make([]Provides, 0, len(d.Provides))
	for _, p := range d.Provides {
		provides = append(provides, p)
	}

	sort.Slice(provides, func(i, j int) bool { return provides[i].Service < provides[j].Service })

	w.u16(uint16(len(provides)))

	for _, p := range provides {
		w.u16(cp.class(p.Service))
		w.u16(uint16(len(p.Providers)))

		for _, prov := range p.Providers {
			w.u16(cp.class(prov))
		}
	}

	return w.buf.Bytes(), nil
}

func exportsToGeneric(in map[string]Exports) []exportsLikeEntry {
	out := make([]exportsLikeEntry, 0, len(in))
	for _, e := range in {
		out = append(out, exportsLikeEntry{pkg: e.Package, targets: e.Targets})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].pkg < out[j].pkg })

	return out
}

func opensToGeneric(in map[string]Opens) []exportsLikeEntry {
	out := make([]exportsLikeEntry, 0, len(in))
	for _, o := range in {
		out = append(out, exportsLikeEntry{pkg: o.Package, targets: o.Targets})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].pkg < out[j].pkg })

	return out
}

func encodeExportsLike(w *writer, cp *cpBuilder, entries []exportsLikeEntry) {
	w.u16(uint16(len(entries)))

	for _, e := range entries {
		w.u16(cp.pkg(e.pkg))
		w.u16(0) // flags, reserved

		targets := make([]string, 0, len(e.targets))
		for t := range e.targets {
			targets = append(targets, t)
		}

		sort.Strings(targets)

		w.u16(uint16(len(targets)))

		for _, t := range targets {
			w.u16(cp.module(t))
		}
	}
}

func encodeConcealedPackages(cp *cpBuilder, packages map[string]bool) []byte {
	names := make([]string, 0, len(packages))
	for p := range packages {
		names = append(names, p)
	}

	sort.Strings(names)

	w := &writer{}
	w.u16(uint16(len(names)))

	for _, p := range names {
		w.u16(cp.pkg(p))
	}

	return w.buf.Bytes()
}

func encodeVersionAttribute(cp *cpBuilder, v modversion.Version) []byte {
	w := &writer{}
	w.u16(cp.utf8(v.String()))

	return w.buf.Bytes()
}

func encodeMainClassAttribute(cp *cpBuilder, mainClass string) []byte {
	w := &writer{}
	w.u16(cp.class(mainClass))

	return w.buf.Bytes()
}

func encodeHashesAttribute(cp *cpBuilder, ht HashTable) []byte {
	names := make([]string, 0, len(ht.Hashes))
	for n := range ht.Hashes {
		names = append(names, n)
	}

	sort.Strings(names)

	w := &writer{}
	w.u16(cp.utf8(ht.Algorithm))
	w.u16(uint16(len(names)))

	for _, n := range names {
		w.u16(cp.module(n))
		w.u16(uint16(len(ht.Hashes[n])))
		w.raw(ht.Hashes[n])
	}

	return w.buf.Bytes()
}
