// Package finder implements the Artifact Finder (spec.md §4.2): given a
// sequence of search roots, it locates modules packaged as .jmod archives,
// .jar application archives, or exploded module directories, and yields
// ModuleReference values.
//
// Grounded on internal/packagemanager/fileregistry.go's lazy-scan-then-cache
// shape (scan once per root, keep an in-memory index) and
// internal/packagemanager/local.go's manifest-or-synthesize fallback for
// archives lacking an explicit descriptor.
package finder

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/orizon-lang/orizon/internal/linkerr"
	"github.com/orizon-lang/orizon/internal/linklog"
	"github.com/orizon-lang/orizon/internal/moduledesc"
)

// HashFunc computes the content hash of a module under the named
// algorithm ("sha256", "blake2b"), streaming the artifact's bytes through
// the chosen digest on demand (spec.md §3: "optional content-hash
// supplier").
type HashFunc func(algorithm string) ([]byte, error)

// ModuleReference pairs a decoded descriptor with where it was found and,
// optionally, how to hash it (spec.md §3 glossary).
type ModuleReference struct {
	Descriptor *moduledesc.ModuleDescriptor
	Location   string
	Hash       HashFunc
}

// Option configures a Finder.
type Option func(*Finder)

// WithLogger attaches a logger used for scan-warning records (spec.md §7:
// "the finder recovers from unreadable entries during a scan").
func WithLogger(l *linklog.Logger) Option {
	return func(f *Finder) { f.logger = l }
}

// Finder scans a fixed, ordered sequence of search roots.
type Finder struct {
	roots   []string
	logger  *linklog.Logger
	mu      sync.Mutex
	scanned []bool
	global  map[string]*ModuleReference
}

// New creates a Finder over roots, scanned in the given order.
func New(roots []string, opts ...Option) *Finder {
	f := &Finder{
		roots:   append([]string(nil), roots...),
		scanned: make([]bool, len(roots)),
		global:  make(map[string]*ModuleReference),
		logger:  linklog.Discard(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Find scans roots in order, caching each as it goes, until name is found
// or the roots are exhausted. A nil, nil result means not found.
func (f *Finder) Find(name string) (*ModuleReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ref, ok := f.global[name]; ok {
		return ref, nil
	}

	for i := range f.roots {
		if f.scanned[i] {
			continue
		}

		if err := f.scanRootLocked(i); err != nil {
			return nil, err
		}

		if ref, ok := f.global[name]; ok {
			return ref, nil
		}
	}

	return nil, nil
}

// FindAll forces a full scan of every root and returns every admitted
// module, sorted by name for determinism.
func (f *Finder) FindAll() ([]*ModuleReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.roots {
		if f.scanned[i] {
			continue
		}

		if err := f.scanRootLocked(i); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(f.global))
	for n := range f.global {
		names = append(names, n)
	}

	sort.Strings(names)

	out := make([]*ModuleReference, 0, len(names))
	for _, n := range names {
		out = append(out, f.global[n])
	}

	return out, nil
}

// scanRootLocked enumerates root i once, merging its admitted modules into
// the global index: a name already present from an earlier root silently
// shadows this root's candidate; a name appearing twice within this same
// root is fatal.
func (f *Finder) scanRootLocked(i int) error {
	root := f.roots[i]

	local, err := scanRoot(root, f.logger)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(local))
	for n := range local {
		names = append(names, n)
	}

	sort.Strings(names)

	for _, n := range names {
		if _, shadowed := f.global[n]; shadowed {
			continue
		}

		f.global[n] = local[n]
	}

	f.scanned[i] = true

	return nil
}

func scanRoot(root string, logger *linklog.Logger) (map[string]*ModuleReference, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &linkerr.IoError{Path: root, Cause: err}
	}

	local := make(map[string]*ModuleReference)

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())

		ref, skip, err := scanEntry(path, entry, logger)
		if err != nil {
			logger.Warnf("finder: skipping unreadable entry %s: %v", path, err)
			continue
		}

		if skip {
			continue
		}

		if existing, dup := local[ref.Descriptor.Name]; dup {
			return nil, &linkerr.DuplicateModuleInRoot{
				Name: ref.Descriptor.Name,
				Root: root,
				A:    existing.Location,
				B:    ref.Location,
			}
		}

		local[ref.Descriptor.Name] = ref
	}

	return local, nil
}

func scanEntry(path string, entry os.DirEntry, logger *linklog.Logger) (ref *ModuleReference, skip bool, err error) {
	switch {
	case entry.IsDir():
		return scanExplodedDir(path)
	case strings.HasSuffix(entry.Name(), ".jmod"):
		return scanPackagedArchive(path)
	case strings.HasSuffix(entry.Name(), ".jar"):
		return scanApplicationArchive(path, logger)
	default:
		return nil, true, nil
	}
}

// scanExplodedDir admits path as a module only if it directly contains a
// module-info file; any other directory is silently skipped (it is not a
// module candidate).
func scanExplodedDir(path string) (*ModuleReference, bool, error) {
	infoPath := filepath.Join(path, "module-info")

	data, err := os.ReadFile(infoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, true, nil
		}

		return nil, false, &linkerr.IoError{Path: infoPath, Cause: err}
	}

	finder := func() (map[string]bool, error) { return packagesUnderDir(path) }

	desc, err := moduledesc.Decode(data, finder)
	if err != nil {
		return nil, false, err
	}

	return &ModuleReference{Descriptor: desc, Location: path, Hash: explodedDirHash(path)}, false, nil
}

func packagesUnderDir(root string) (map[string]bool, error) {
	out := make(map[string]bool)

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || d.Name() == "module-info" {
			return nil
		}

		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		out[strings.ReplaceAll(rel, string(filepath.Separator), ".")] = true

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// scanPackagedArchive reads a .jmod: classes/module-info plus classes/*.class
// entries for the package set (spec.md §4.2).
func scanPackagedArchive(path string) (*ModuleReference, bool, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, false, &linkerr.IoError{Path: path, Cause: err}
	}
	defer zr.Close()

	var (
		infoData []byte
		packages = make(map[string]bool)
	)

	for _, f := range zr.File {
		switch {
		case f.Name == "classes/module-info":
			infoData, err = readZipFile(f)
			if err != nil {
				return nil, false, &linkerr.IoError{Path: path, Cause: err}
			}
		case strings.HasPrefix(f.Name, "classes/") && strings.HasSuffix(f.Name, ".class"):
			if pkg := packageOfClassEntry(strings.TrimPrefix(f.Name, "classes/")); pkg != "" {
				packages[pkg] = true
			}
		}
	}

	if infoData == nil {
		return nil, false, &linkerr.IoError{Path: path, Cause: fmt.Errorf("missing classes/module-info")}
	}

	desc, err := moduledesc.Decode(infoData, func() (map[string]bool, error) { return packages, nil })
	if err != nil {
		return nil, false, err
	}

	return &ModuleReference{Descriptor: desc, Location: path, Hash: archiveFileHash(path)}, false, nil
}

// scanApplicationArchive reads a .jar. If it carries module-info it is
// treated exactly like a packaged archive; otherwise a synthetic automatic
// module is derived (spec.md §4.2 paragraph 3).
func scanApplicationArchive(path string, logger *linklog.Logger) (*ModuleReference, bool, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, false, &linkerr.IoError{Path: path, Cause: err}
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == "module-info" || f.Name == "classes/module-info" {
			infoData, err := readZipFile(f)
			if err != nil {
				return nil, false, &linkerr.IoError{Path: path, Cause: err}
			}

			packages := classPackagesInArchive(zr.File)

			desc, err := moduledesc.Decode(infoData, func() (map[string]bool, error) { return packages, nil })
			if err != nil {
				return nil, false, err
			}

			return &ModuleReference{Descriptor: desc, Location: path, Hash: archiveFileHash(path)}, false, nil
		}
	}

	desc, err := deriveAutomaticModule(path, zr.File, logger)
	if err != nil {
		return nil, false, err
	}

	return &ModuleReference{Descriptor: desc, Location: path, Hash: archiveFileHash(path)}, false, nil
}

func classPackagesInArchive(files []*zip.File) map[string]bool {
	out := make(map[string]bool)

	for _, f := range files {
		name := strings.TrimPrefix(f.Name, "classes/")
		if pkg := packageOfClassEntry(name); pkg != "" {
			out[pkg] = true
		}
	}

	return out
}

func packageOfClassEntry(name string) string {
	if !strings.HasSuffix(name, ".class") {
		return ""
	}

	dir := filepath.Dir(name)
	if dir == "." {
		return ""
	}

	return strings.ReplaceAll(dir, "/", ".")
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := make([]byte, f.UncompressedSize64)

	if _, err := io.ReadFull(rc, buf); err != nil {
		return nil, err
	}

	return buf, nil
}
