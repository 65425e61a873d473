package image

import (
	"encoding/binary"
	"fmt"

	"github.com/orizon-lang/orizon/internal/link/pool"
)

// Read decodes an image binary written by a Writer, auto-detecting the
// byte order it was written in (spec.md §4.6's endianness tag is
// self-describing: Magic reads correctly in exactly one of the two byte
// orders).
func Read(data []byte) (*Image, error) {
	order, err := detectOrder(data)
	if err != nil {
		return nil, err
	}

	if len(data) < headerSize {
		return nil, fmt.Errorf("image: truncated header")
	}

	r := &reader{data: data, order: order}

	r.pos = 4 // past magic
	if _, err := r.u16(); err != nil {
		return nil, err
	}

	if _, err := r.u8(); err != nil { // endianness tag, already used to detect order
		return nil, err
	}

	if _, err := r.u8(); err != nil { // reserved
		return nil, err
	}

	stringOff, err := r.u32()
	if err != nil {
		return nil, err
	}

	stringSize, err := r.u32()
	if err != nil {
		return nil, err
	}

	locOff, err := r.u32()
	if err != nil {
		return nil, err
	}

	locCount, err := r.u32()
	if err != nil {
		return nil, err
	}

	contentOff, err := r.u32()
	if err != nil {
		return nil, err
	}

	_, err = r.u32() // content size, unused beyond bounds
	if err != nil {
		return nil, err
	}

	pkgOff, err := r.u32()
	if err != nil {
		return nil, err
	}

	pkgSize, err := r.u32()
	if err != nil {
		return nil, err
	}

	if int(stringOff)+int(stringSize) > len(data) {
		return nil, fmt.Errorf("image: string table out of bounds")
	}

	strings := data[stringOff : stringOff+stringSize]

	readString := func(off uint32) (string, error) {
		if int(off)+2 > len(strings) {
			return "", fmt.Errorf("image: string ref out of bounds")
		}

		length := order.Uint16(strings[off : off+2])
		start := int(off) + 2

		if start+int(length) > len(strings) {
			return "", fmt.Errorf("image: string ref out of bounds")
		}

		return string(strings[start : start+int(length)]), nil
	}

	r.pos = int(locOff)

	resources := make([]Resource, 0, locCount)

	for i := uint32(0); i < locCount; i++ {
		moduleRef, err := r.u32()
		if err != nil {
			return nil, err
		}

		parentRef, err := r.u32()
		if err != nil {
			return nil, err
		}

		baseRef, err := r.u32()
		if err != nil {
			return nil, err
		}

		extRef, err := r.u32()
		if err != nil {
			return nil, err
		}

		contentOffset, err := r.u32()
		if err != nil {
			return nil, err
		}

		contentSize, err := r.u32()
		if err != nil {
			return nil, err
		}

		uncompressedSize, err := r.u32()
		if err != nil {
			return nil, err
		}

		compressorID, err := r.u8()
		if err != nil {
			return nil, err
		}

		typeTag, err := r.u8()
		if err != nil {
			return nil, err
		}

		moduleName, err := readString(moduleRef)
		if err != nil {
			return nil, err
		}

		parent, err := readString(parentRef)
		if err != nil {
			return nil, err
		}

		base, err := readString(baseRef)
		if err != nil {
			return nil, err
		}

		ext, err := readString(extRef)
		if err != nil {
			return nil, err
		}

		absContentStart := int(contentOff) + int(contentOffset)
		if absContentStart+int(contentSize) > len(data) {
			return nil, fmt.Errorf("image: content out of bounds")
		}

		content := make([]byte, contentSize)
		copy(content, data[absContentStart:absContentStart+int(contentSize)])

		path := base + ext
		if parent != "" {
			path = parent + "/" + path
		}

		resources = append(resources, Resource{
			Path:             path,
			ModuleName:       moduleName,
			Content:          content,
			Type:             pool.ResourceType(typeTag),
			UncompressedSize: uncompressedSize,
			CompressorID:     compressorID,
		})
	}

	if int(pkgOff)+int(pkgSize) > len(data) {
		return nil, fmt.Errorf("image: package list out of bounds")
	}

	r.pos = int(pkgOff)

	moduleCount, err := r.u32()
	if err != nil {
		return nil, err
	}

	modulePackages := make(map[string][]string, moduleCount)

	for i := uint32(0); i < moduleCount; i++ {
		moduleRef, err := r.u32()
		if err != nil {
			return nil, err
		}

		count, err := r.u32()
		if err != nil {
			return nil, err
		}

		moduleName, err := readString(moduleRef)
		if err != nil {
			return nil, err
		}

		pkgs := make([]string, 0, count)

		for j := uint32(0); j < count; j++ {
			ref, err := r.u32()
			if err != nil {
				return nil, err
			}

			pkg, err := readString(ref)
			if err != nil {
				return nil, err
			}

			pkgs = append(pkgs, pkg)
		}

		modulePackages[moduleName] = pkgs
	}

	return &Image{Resources: resources, ModulePackages: modulePackages}, nil
}

func detectOrder(data []byte) (binary.ByteOrder, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("image: truncated magic")
	}

	if binary.LittleEndian.Uint32(data[:4]) == Magic {
		return binary.LittleEndian, nil
	}

	if binary.BigEndian.Uint32(data[:4]) == Magic {
		return binary.BigEndian, nil
	}

	return nil, fmt.Errorf("image: bad magic")
}

// reader is a small cursor over data, mirroring internal/moduledesc's
// reader but addressed by absolute position rather than a running offset
// alone, since the image format's sections are randomly seekable.
type reader struct {
	data  []byte
	order binary.ByteOrder
	pos   int
}

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("image: truncated read at %d", r.pos)
	}

	v := r.data[r.pos]
	r.pos++

	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("image: truncated read at %d", r.pos)
	}

	v := r.order.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2

	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("image: truncated read at %d", r.pos)
	}

	v := r.order.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4

	return v, nil
}
