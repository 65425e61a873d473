// Package pool implements the Resource Pool (spec.md §4.5): an
// insertion-ordered, path-keyed store of resource bytes that the Plugin
// Pipeline reads from and writes to at each stage, and that the Image
// Writer consumes once frozen.
//
// Grounded on internal/build/cache.go's Cache/Artifact (ordered,
// path-keyed content store with freeze-after-write discipline).
package pool

import (
	"strings"
	"sync"

	"github.com/orizon-lang/orizon/internal/linkerr"
)

// ResourceType tags the kind of content a Resource carries (spec.md §3).
type ResourceType int

const (
	// OtherResource is the default/unrecognized tag.
	OtherResource ResourceType = iota
	ClassResource
	ConfigResource
	NativeCmdResource
	NativeLibResource
	ModuleInfoResource
)

// String renders a ResourceType the way it appears in spec.md §3's tag
// set, for logging and image-inspection output.
func (t ResourceType) String() string {
	switch t {
	case ClassResource:
		return "CLASS"
	case ConfigResource:
		return "CONFIG"
	case NativeCmdResource:
		return "NATIVE_CMD"
	case NativeLibResource:
		return "NATIVE_LIB"
	case ModuleInfoResource:
		return "MODULE_INFO"
	default:
		return "OTHER"
	}
}

// ClassifyPath infers a ResourceType from a pool path's extension,
// grounded on the same suffix-driven classification IsConfigResource
// already uses for CONFIG.
func ClassifyPath(path string) ResourceType {
	base := path

	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}

	switch {
	case base == "module-info":
		return ModuleInfoResource
	case strings.HasSuffix(base, ".class"):
		return ClassResource
	case IsConfigResource(path):
		return ConfigResource
	case strings.HasSuffix(base, ".dll") || strings.HasSuffix(base, ".so") || strings.HasSuffix(base, ".dylib"):
		return NativeLibResource
	case strings.HasSuffix(base, ".exe") || strings.Contains(path, "/bin/"):
		return NativeCmdResource
	default:
		return OtherResource
	}
}

// Resource is one entry in the pool.
type Resource struct {
	Path       string
	ModuleName string
	Content    []byte
	Type       ResourceType

	// UncompressedSize and CompressorID record what a Compressor plugin
	// did to Content, so the Image Writer can describe the stored bytes
	// accurately instead of assuming they are stored verbatim.
	// UncompressedSize is 0 and CompressorID is NoCompressor when Content
	// has not been compressed.
	UncompressedSize uint32
	CompressorID     uint8
}

// Compressor IDs recorded alongside a compressed Resource's content, read
// back by the Image Writer/Reader (spec.md §4.6).
const (
	NoCompressor   uint8 = 0
	GzipCompressor uint8 = 1
)

// Pool is an insertion-ordered, path-keyed resource store.
type Pool struct {
	mu        sync.Mutex
	order     []string
	entries   map[string]Resource
	forgotten map[string]bool
	frozen    bool
}

// New creates an empty, mutable Pool.
func New() *Pool {
	return &Pool{
		entries:   make(map[string]Resource),
		forgotten: make(map[string]bool),
	}
}

// Add inserts r at the end of the insertion order. It fails if the pool is
// frozen or a resource already exists at r.Path.
func (p *Pool) Add(r Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return &linkerr.ResourceConflict{Path: r.Path}
	}

	if _, exists := p.entries[r.Path]; exists {
		return &linkerr.ResourceConflict{Path: r.Path}
	}

	p.order = append(p.order, r.Path)
	p.entries[r.Path] = r
	delete(p.forgotten, r.Path)

	return nil
}

// AddOrReplace inserts r, or overwrites the content of an existing entry
// at r.Path in place without disturbing its position in the insertion
// order.
func (p *Pool) AddOrReplace(r Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return &linkerr.ResourceConflict{Path: r.Path}
	}

	if _, exists := p.entries[r.Path]; !exists {
		p.order = append(p.order, r.Path)
	}

	p.entries[r.Path] = r
	delete(p.forgotten, r.Path)

	return nil
}

// Forget marks path as removed from the output without disturbing the
// recorded insertion order (spec.md §4.6's "minus anything in the
// forget-set").
func (p *Pool) Forget(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return &linkerr.ResourceConflict{Path: path}
	}

	p.forgotten[path] = true

	return nil
}

// Entries returns every live (non-forgotten) resource in insertion order.
func (p *Pool) Entries() []Resource {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Resource, 0, len(p.order))

	for _, path := range p.order {
		if p.forgotten[path] {
			continue
		}

		out = append(out, p.entries[path])
	}

	return out
}

// ModuleView returns the live resources belonging to moduleName, in
// insertion order.
func (p *Pool) ModuleView(moduleName string) []Resource {
	all := p.Entries()

	out := make([]Resource, 0, len(all))

	for _, r := range all {
		if r.ModuleName == moduleName {
			out = append(out, r)
		}
	}

	return out
}

// Freeze rejects any further writes. Freezing is idempotent.
func (p *Pool) Freeze() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frozen = true
}

// Frozen reports whether the pool has been frozen.
func (p *Pool) Frozen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.frozen
}

// Snapshot returns a frozen, independent copy of the pool's current live
// entries: the immutable input each pipeline stage's plugin reads (spec.md
// §4.5: "input is an immutable resource pool snapshot").
func (p *Pool) Snapshot() *Pool {
	entries := p.Entries()

	snap := New()
	for _, r := range entries {
		_ = snap.Add(r)
	}

	snap.Freeze()

	return snap
}
