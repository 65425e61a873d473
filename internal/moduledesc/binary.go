package moduledesc

import (
	"encoding/binary"

	"github.com/orizon-lang/orizon/internal/linkerr"
)

// Magic is the fixed sentinel at the start of every binary module
// descriptor (spec §6).
const Magic uint32 = 0x4F52495A // "ORIZ"

// MinMajorVersion is the lowest accepted major version of the binary
// descriptor format.
const MinMajorVersion uint16 = 1

// accModule is the access-flag bit that must be the only flag present on
// a descriptor's pseudo-class.
const accModule uint16 = 0x8000

// Constant pool tags. Most of these (everything but utf8 and class) carry
// no meaning for a module descriptor today, but the decoder must still
// skip them correctly — including the two-slot Long/Double tags — per
// spec §4.1 step 2.
const (
	tagUTF8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// cpEntry is one constant-pool slot. Slots occupied by the second half of
// a Long/Double entry have tag 0 and must never be dereferenced.
type cpEntry struct {
	tag      byte
	utf8     string
	ref1     uint16
	ref2     uint16
	refN     []uint16
	u8       uint8
	isSecond bool
}

// reader is a bounds-checked cursor over the descriptor bytes.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.data) {
		return 0, truncated()
	}

	v := r.data[r.pos]
	r.pos++

	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, truncated()
	}

	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2

	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, truncated()
	}

	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4

	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, truncated()
	}

	v := r.data[r.pos : r.pos+n]
	r.pos += n

	return v, nil
}

func (r *reader) skip(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return truncated()
	}

	r.pos += n

	return nil
}

func truncated() error {
	return &linkerr.InvalidDescriptor{Reason: "truncated input"}
}

func invalid(reason string) error {
	return &linkerr.InvalidDescriptor{Reason: reason}
}

// PackageFinder supplies the set of packages a descriptor conceals when
// the binary omits its ConcealedPackages attribute (spec §4.1 step 5).
type PackageFinder func() (map[string]bool, error)

// Decode parses a binary module descriptor (spec §6). finder may be nil.
func Decode(data []byte, finder PackageFinder) (*ModuleDescriptor, error) {
	r := &reader{data: data}

	magic, err := r.u32()
	if err != nil {
		return nil, err
	}

	if magic != Magic {
		return nil, invalid("bad magic")
	}

	if _, err := r.u16(); err != nil { // minor
		return nil, err
	}

	major, err := r.u16()
	if err != nil {
		return nil, err
	}

	if major < MinMajorVersion {
		return nil, invalid("major version below threshold")
	}

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	accessFlags, err := r.u16()
	if err != nil {
		return nil, err
	}

	if accessFlags != accModule {
		return nil, invalid("access flags do not indicate a module")
	}

	thisClass, err := r.u16()
	if err != nil {
		return nil, err
	}

	name, err := moduleNameFromThisClass(pool, thisClass)
	if err != nil {
		return nil, err
	}

	superClass, err := r.u16()
	if err != nil {
		return nil, err
	}

	if superClass != 0 {
		return nil, invalid("super_class must be zero")
	}

	for _, label := range []string{"interfaces", "fields", "methods"} {
		count, err := r.u16()
		if err != nil {
			return nil, err
		}

		if count != 0 {
			return nil, invalid(label + " count must be zero")
		}
	}

	attrCount, err := r.u16()
	if err != nil {
		return nil, err
	}

	attrs, err := readAttributes(r, pool, int(attrCount))
	if err != nil {
		return nil, err
	}

	return buildFromAttributes(name, pool, attrs, finder)
}

func readConstantPool(r *reader) ([]cpEntry, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}

	pool := make([]cpEntry, count) // index 0 unused; len(pool) == count

	for i := 1; i < int(count); i++ {
		if pool[i].isSecond {
			continue
		}

		tag, err := r.u8()
		if err != nil {
			return nil, err
		}

		e := cpEntry{tag: tag}

		switch tag {
		case tagUTF8:
			length, err := r.u16()
			if err != nil {
				return nil, err
			}

			b, err := r.bytes(int(length))
			if err != nil {
				return nil, err
			}

			e.utf8 = string(b)
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			ref, err := r.u16()
			if err != nil {
				return nil, err
			}

			e.ref1 = ref
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			a, err := r.u16()
			if err != nil {
				return nil, err
			}

			b, err := r.u16()
			if err != nil {
				return nil, err
			}

			e.ref1, e.ref2 = a, b
		case tagInteger, tagFloat:
			if err := r.skip(4); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			if err := r.skip(8); err != nil {
				return nil, err
			}

			if i+1 < int(count) {
				pool[i+1].isSecond = true
			}
		case tagMethodHandle:
			kind, err := r.u8()
			if err != nil {
				return nil, err
			}

			ref, err := r.u16()
			if err != nil {
				return nil, err
			}

			e.u8, e.ref1 = kind, ref
		default:
			return nil, invalid("unknown constant pool tag")
		}

		pool[i] = e
	}

	return pool, nil
}

func utf8At(pool []cpEntry, idx uint16) (string, error) {
	if int(idx) <= 0 || int(idx) >= len(pool) {
		return "", invalid("constant pool index out of range")
	}

	e := pool[idx]
	if e.tag != tagUTF8 {
		return "", invalid("expected UTF8 constant pool entry")
	}

	return e.utf8, nil
}

func classNameAt(pool []cpEntry, idx uint16) (string, error) {
	if int(idx) <= 0 || int(idx) >= len(pool) {
		return "", invalid("constant pool index out of range")
	}

	e := pool[idx]
	if e.tag != tagClass {
		return "", invalid("expected Class constant pool entry")
	}

	return utf8At(pool, e.ref1)
}

func moduleNameAt(pool []cpEntry, idx uint16) (string, error) {
	if int(idx) <= 0 || int(idx) >= len(pool) {
		return "", invalid("constant pool index out of range")
	}

	e := pool[idx]
	if e.tag != tagModule {
		return "", invalid("expected Module constant pool entry")
	}

	return utf8At(pool, e.ref1)
}

func packageNameAt(pool []cpEntry, idx uint16) (string, error) {
	if int(idx) <= 0 || int(idx) >= len(pool) {
		return "", invalid("constant pool index out of range")
	}

	e := pool[idx]
	if e.tag != tagPackage {
		return "", invalid("expected Package constant pool entry")
	}

	return utf8At(pool, e.ref1)
}

func moduleNameFromThisClass(pool []cpEntry, idx uint16) (string, error) {
	full, err := classNameAt(pool, idx)
	if err != nil {
		return "", err
	}

	const suffix = "/module-info"

	if len(full) <= len(suffix) || full[len(full)-len(suffix):] != suffix {
		return "", invalid("this_class must be <name>/module-info")
	}

	return full[:len(full)-len(suffix)], nil
}
