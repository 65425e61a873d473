package image

import (
	"bytes"
	"encoding/binary"
	"path"
	"sort"
	"strings"

	"github.com/orizon-lang/orizon/internal/link/pool"
)

// stringTable is a deduplicated, length-prefixed UTF-8 blob addressed by
// byte offset; offset 0 is always the empty string, so "no value" is
// represented as a ref of 0 rather than a separate sentinel.
type stringTable struct {
	order   binary.ByteOrder
	buf     bytes.Buffer
	offsets map[string]uint32
}

func newStringTable(order binary.ByteOrder) *stringTable {
	st := &stringTable{order: order, offsets: make(map[string]uint32)}
	st.intern("")

	return st
}

func (st *stringTable) intern(s string) uint32 {
	if off, ok := st.offsets[s]; ok {
		return off
	}

	off := uint32(st.buf.Len())

	binary.Write(&st.buf, st.order, uint16(len(s))) //nolint:errcheck // bytes.Buffer never errors
	st.buf.WriteString(s)

	st.offsets[s] = off

	return off
}

// Writer writes images in a fixed byte order (spec.md §4.6: "byte order is
// a writer option, fixed per image").
type Writer struct {
	order binary.ByteOrder
}

// NewWriter creates a Writer using order for every multi-byte field.
func NewWriter(order binary.ByteOrder) *Writer {
	return &Writer{order: order}
}

type locRecord struct {
	moduleRef, parentRef, baseRef, extRef uint32
	contentOffset, contentSize            uint32
	uncompressedSize                      uint32
	compressorID                          uint8
	typeTag                               uint8
}

// Write serializes p's live entries (in pool order — already the output
// order per spec.md §4.6's three ordering rules, since the pool records
// insertion order and any sorter plugin has already reordered it) plus
// modulePackages, a module name -> sorted package list map, into a single
// image binary.
func (w *Writer) Write(p *pool.Pool, modulePackages map[string][]string) ([]byte, error) {
	st := newStringTable(w.order)

	entries := p.Entries()
	locs := make([]locRecord, 0, len(entries))

	var content bytes.Buffer

	for _, r := range entries {
		dir := path.Dir(r.Path)
		if dir == "." {
			dir = ""
		}

		base := path.Base(r.Path)
		ext := ""

		if idx := strings.LastIndex(base, "."); idx > 0 {
			ext = base[idx:]
			base = base[:idx]
		}

		uncompressedSize := r.UncompressedSize
		if r.CompressorID == pool.NoCompressor {
			uncompressedSize = uint32(len(r.Content))
		}

		rec := locRecord{
			moduleRef:        st.intern(r.ModuleName),
			parentRef:        st.intern(dir),
			baseRef:          st.intern(base),
			extRef:           st.intern(ext),
			contentOffset:    uint32(content.Len()),
			contentSize:      uint32(len(r.Content)),
			uncompressedSize: uncompressedSize,
			compressorID:     r.CompressorID,
			typeTag:          uint8(r.Type),
		}

		content.Write(r.Content)
		locs = append(locs, rec)
	}

	var locBuf bytes.Buffer

	for _, l := range locs {
		binary.Write(&locBuf, w.order, l.moduleRef)        //nolint:errcheck
		binary.Write(&locBuf, w.order, l.parentRef)        //nolint:errcheck
		binary.Write(&locBuf, w.order, l.baseRef)          //nolint:errcheck
		binary.Write(&locBuf, w.order, l.extRef)           //nolint:errcheck
		binary.Write(&locBuf, w.order, l.contentOffset)    //nolint:errcheck
		binary.Write(&locBuf, w.order, l.contentSize)      //nolint:errcheck
		binary.Write(&locBuf, w.order, l.uncompressedSize) //nolint:errcheck
		binary.Write(&locBuf, w.order, l.compressorID)     //nolint:errcheck
		binary.Write(&locBuf, w.order, l.typeTag)          //nolint:errcheck
	}

	moduleNames := make([]string, 0, len(modulePackages))
	for mn := range modulePackages {
		moduleNames = append(moduleNames, mn)
	}

	sort.Strings(moduleNames)

	var pkgBuf bytes.Buffer

	binary.Write(&pkgBuf, w.order, uint32(len(moduleNames))) //nolint:errcheck

	for _, mn := range moduleNames {
		pkgs := append([]string(nil), modulePackages[mn]...)
		sort.Strings(pkgs)

		binary.Write(&pkgBuf, w.order, st.intern(mn))     //nolint:errcheck
		binary.Write(&pkgBuf, w.order, uint32(len(pkgs))) //nolint:errcheck

		for _, pk := range pkgs {
			binary.Write(&pkgBuf, w.order, st.intern(pk)) //nolint:errcheck
		}
	}

	stringBytes := st.buf.Bytes()

	stringOff := uint32(headerSize)
	locOff := stringOff + uint32(len(stringBytes))
	contentOff := locOff + uint32(locBuf.Len())
	pkgOff := contentOff + uint32(content.Len())

	var out bytes.Buffer

	binary.Write(&out, w.order, Magic)   //nolint:errcheck
	binary.Write(&out, w.order, Version) //nolint:errcheck

	endianTag := uint8(0)
	if w.order == binary.BigEndian {
		endianTag = 1
	}

	binary.Write(&out, w.order, endianTag)                //nolint:errcheck
	binary.Write(&out, w.order, uint8(0))                 //nolint:errcheck // reserved
	binary.Write(&out, w.order, stringOff)                //nolint:errcheck
	binary.Write(&out, w.order, uint32(len(stringBytes))) //nolint:errcheck
	binary.Write(&out, w.order, locOff)                   //nolint:errcheck
	binary.Write(&out, w.order, uint32(len(locs)))        //nolint:errcheck
	binary.Write(&out, w.order, contentOff)               //nolint:errcheck
	binary.Write(&out, w.order, uint32(content.Len()))    //nolint:errcheck
	binary.Write(&out, w.order, pkgOff)                   //nolint:errcheck
	binary.Write(&out, w.order, uint32(pkgBuf.Len()))     //nolint:errcheck

	out.Write(stringBytes)
	out.Write(locBuf.Bytes())
	out.Write(content.Bytes())
	out.Write(pkgBuf.Bytes())

	return out.Bytes(), nil
}
