// Package linktool ties the Resolver, Service Binder, Layer Assembly,
// Resource Pool, Plugin Pipeline, and Image Writer into one end-to-end
// operation (spec.md §2's "Tool Surface" component): resolve roots against
// a set of search paths, bind services, assemble a layer, build a resource
// pool from each selected module's packaged content, run it through a
// plugin pipeline, and write the result out as a single image binary.
//
// Grounded on internal/packagemanager/manager.go's Manager, which performs
// the analogous resolve-then-fetch orchestration for the package manager's
// own domain. The core components (internal/resolve, internal/layer,
// internal/link/...) read no environment variables and take no CLI
// concerns; that lives here and in cmd/orizon-link, per spec.md §6.
package linktool

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/orizon-lang/orizon/internal/finder"
	"github.com/orizon-lang/orizon/internal/layer"
	"github.com/orizon-lang/orizon/internal/link/image"
	"github.com/orizon-lang/orizon/internal/link/plugin"
	"github.com/orizon-lang/orizon/internal/link/pool"
	"github.com/orizon-lang/orizon/internal/linklog"
	"github.com/orizon-lang/orizon/internal/resolve"
)

// Config describes one link operation. Zero-value fields take the defaults
// documented per field.
type Config struct {
	// SearchPaths lists directories scanned for modules, in order.
	SearchPaths []string

	// Roots lists the module names resolution starts from.
	Roots []string

	// Parent, if non-nil, is consulted before SearchPaths for any name
	// already readable through an existing configuration.
	Parent *layer.Layer

	// Plugins runs, in pipeline order, over the assembled resource pool.
	Plugins []plugin.Plugin

	// Concurrency records the per-resource plugin worker fan-out width
	// (spec.md §5). The Tool itself does not read it: plugins that use
	// ParallelApply carry their own bound, given when they are built
	// (plugin.NewParallelCompressor), and ParallelApply treats a
	// non-positive bound as 1.
	Concurrency int64

	// ByteOrder selects the written image's endianness. Defaults to
	// binary.LittleEndian.
	ByteOrder binary.ByteOrder

	// Logger receives resolve/bind/finder diagnostics. Defaults to a
	// discarding logger.
	Logger *linklog.Logger
}

// Tool runs link operations against a fixed Config.
type Tool struct {
	cfg Config
}

// NewTool builds a Tool, filling in Config defaults.
func NewTool(cfg Config) *Tool {
	if cfg.ByteOrder == nil {
		cfg.ByteOrder = binary.LittleEndian
	}

	if cfg.Logger == nil {
		cfg.Logger = linklog.Discard()
	}

	return &Tool{cfg: cfg}
}

// Result is the output of a successful Link call.
type Result struct {
	Resolution *resolve.Resolution
	Layer      *layer.Layer
	Image      []byte
}

// Link runs the full resolve -> bind -> assemble -> pool -> plugin ->
// write pipeline described in spec.md §4.3-§4.6.
func (t *Tool) Link(ctx context.Context) (*Result, error) {
	f := finder.New(t.cfg.SearchPaths, finder.WithLogger(t.cfg.Logger))

	var parent resolve.ParentLayer
	if t.cfg.Parent != nil {
		parent = t.cfg.Parent
	}

	res, err := resolve.Resolve(nil, parent, f, t.cfg.Roots, resolve.WithLogger(t.cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("linktool: resolve: %w", err)
	}

	res, err = resolve.Bind(res, f, nil, resolve.WithLogger(t.cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("linktool: bind: %w", err)
	}

	loaders := make(map[string]*layer.Loader)

	bootLoader, err := layer.NewLoader("boot", nil)
	if err != nil {
		return nil, fmt.Errorf("linktool: boot loader: %w", err)
	}

	loaderFor := func(moduleName string) (*layer.Loader, error) {
		if l, ok := loaders[moduleName]; ok {
			return l, nil
		}

		loaders[moduleName] = bootLoader

		return bootLoader, nil
	}

	lay, err := layer.New(res, t.cfg.Parent, loaderFor)
	if err != nil {
		return nil, fmt.Errorf("linktool: assemble layer: %w", err)
	}

	p, modulePackages, err := buildPool(res)
	if err != nil {
		return nil, fmt.Errorf("linktool: build pool: %w", err)
	}

	p.Freeze()

	linked, err := plugin.Run(t.cfg.Plugins, p)
	if err != nil {
		return nil, fmt.Errorf("linktool: plugin pipeline: %w", err)
	}

	w := image.NewWriter(t.cfg.ByteOrder)

	data, err := w.Write(linked, modulePackages)
	if err != nil {
		return nil, fmt.Errorf("linktool: write image: %w", err)
	}

	return &Result{Resolution: res, Layer: lay, Image: data}, nil
}

// buildPool reads every selected module's packaged content (an exploded
// directory or a .jmod/.jar archive, per internal/finder's two location
// shapes) into a Resource Pool, each resource addressed by
// "<module>/<relative path>".
func buildPool(res *resolve.Resolution) (*pool.Pool, map[string][]string, error) {
	p := pool.New()
	modulePackages := make(map[string][]string, len(res.Selected))

	names := res.SortedNames()

	for _, name := range names {
		d := res.Selected[name]

		pkgs := make([]string, 0, len(d.Packages))
		for pk := range d.Packages {
			pkgs = append(pkgs, pk)
		}

		sort.Strings(pkgs)
		modulePackages[name] = pkgs

		ref := res.References[name]
		if ref == nil {
			// Resolved through the parent layer: its content already lives
			// in the parent's image, nothing to add here.
			continue
		}

		entries, err := readLocation(ref.Location)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s (%s): %w", name, ref.Location, err)
		}

		for path, content := range entries {
			typ := pool.ClassifyPath(path)

			if typ == pool.ConfigResource {
				normalized, err := pool.NormalizeConfigText(content)
				if err != nil {
					return nil, nil, fmt.Errorf("normalizing config resource %s/%s: %w", name, path, err)
				}

				content = normalized
			}

			if err := p.Add(pool.Resource{Path: name + "/" + path, ModuleName: name, Content: content, Type: typ}); err != nil {
				return nil, nil, err
			}
		}
	}

	return p, modulePackages, nil
}

// readLocation reads every file under an exploded module directory, or
// every entry of a .jmod/.jar archive, keyed by its path relative to the
// module root (spec.md's archive container is treated as an entry-indexed
// container yielding named byte blobs; see spec.md §1 Out of scope).
func readLocation(location string) (map[string][]byte, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return readExplodedDir(location)
	}

	return readArchive(location)
}

func readExplodedDir(root string) (map[string][]byte, error) {
	out := make(map[string][]byte)

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || d.Name() == "module-info" {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		out[filepath.ToSlash(rel)] = data

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func readArchive(path string) (map[string][]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make(map[string][]byte, len(zr.File))

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}

		data, err := io.ReadAll(rc)
		rc.Close()

		if err != nil {
			return nil, err
		}

		out[strings.TrimPrefix(f.Name, "classes/")] = data
	}

	return out, nil
}
