// Package image implements the Image Writer (spec.md §4.6): it consumes a
// frozen Resource Pool and a per-module package list and writes (or reads
// back) a single indexed binary — a fixed header, a deduplicated string
// table, a location table, a content blob, and a per-module package-list
// section.
//
// New binary format, following the same fixed-header/offset-table
// discipline as internal/moduledesc's decoder, in reverse: there is no
// teacher analogue for an indexed image format.
package image

import "github.com/orizon-lang/orizon/internal/link/pool"

const (
	// Magic identifies an image binary. Distinct from moduledesc's module
	// descriptor magic: the two formats are unrelated on purpose.
	Magic uint32 = 0x4F52494D // "ORIM"

	Version uint16 = 1

	headerSize = 4 + 2 + 1 + 1 + 4*8
)

// Resource is one decoded location-table entry paired with its content.
// Content is exactly what the writer stored: if CompressorID is not
// pool.NoCompressor, Content is compressed and UncompressedSize records
// its original length.
type Resource struct {
	Path             string
	ModuleName       string
	Content          []byte
	Type             pool.ResourceType
	UncompressedSize uint32
	CompressorID     uint8
}

// Image is the fully decoded contents of an image binary.
type Image struct {
	Resources      []Resource
	ModulePackages map[string][]string
}
