package plugin

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/orizon-lang/orizon/internal/link/pool"
)

// NewExcludeFilter builds a FILTER-category plugin dropping any resource
// whose path matches one of patterns (spec.md §4.5's exclude-resources /
// exclude-files glob lists).
func NewExcludeFilter(name string, patterns []string) Plugin {
	cat := Filter

	return Plugin{
		Name:     name,
		Category: &cat,
		Config:   map[string]string{"exclude-resources": strings.Join(patterns, ",")},
		Apply: func(input *pool.Pool, config map[string]string) (*pool.Pool, error) {
			globs := splitNonEmpty(config["exclude-resources"])

			out := pool.New()

			for _, r := range input.Entries() {
				excluded := false

				for _, g := range globs {
					if ok, _ := filepath.Match(g, r.Path); ok {
						excluded = true
						break
					}
				}

				if excluded {
					continue
				}

				if err := out.Add(r); err != nil {
					return nil, err
				}
			}

			return out, nil
		},
	}
}

// NewSorter builds a SORTER-category plugin that moves resources matching
// an explicit key prefix to the front, in the order the prefixes are
// given, preserving relative order otherwise (spec.md §4.6 ordering rule 3:
// "explicit keys beating implicit order").
func NewSorter(prefixes []string) Plugin {
	cat := Sorter

	return Plugin{
		Name:     "sort-resources",
		Category: &cat,
		Config:   map[string]string{"sort-resources": strings.Join(prefixes, ",")},
		Apply: func(input *pool.Pool, config map[string]string) (*pool.Pool, error) {
			keys := splitNonEmpty(config["sort-resources"])
			entries := input.Entries()

			rank := func(path string) int {
				for i, k := range keys {
					if strings.HasPrefix(path, k) {
						return i
					}
				}

				return len(keys)
			}

			sort.SliceStable(entries, func(i, j int) bool {
				return rank(entries[i].Path) < rank(entries[j].Path)
			})

			out := pool.New()
			for _, r := range entries {
				if err := out.Add(r); err != nil {
					return nil, err
				}
			}

			return out, nil
		},
	}
}

// NewCopyFiles builds a TRANSFORMER-category plugin that adds extra files
// verbatim (spec.md §4.5's copy-files option); source content is supplied
// by read, keeping the plugin itself free of filesystem access.
func NewCopyFiles(sources []string, read func(path string) ([]byte, error)) Plugin {
	cat := Transformer

	return Plugin{
		Name:     "copy-files",
		Category: &cat,
		Config:   map[string]string{"copy-files": strings.Join(sources, ",")},
		Apply: func(input *pool.Pool, config map[string]string) (*pool.Pool, error) {
			out := pool.New()
			for _, r := range input.Entries() {
				if err := out.Add(r); err != nil {
					return nil, err
				}
			}

			for _, src := range splitNonEmpty(config["copy-files"]) {
				data, err := read(src)
				if err != nil {
					return nil, err
				}

				if err := out.Add(pool.Resource{Path: src, Content: data}); err != nil {
					return nil, err
				}
			}

			return out, nil
		},
	}
}

// NewStripDebug builds a TRANSFORMER-category plugin that drops debug
// attributes from class resources (spec.md §4.5's strip-debug option).
// This format carries no real bytecode debug attributes to parse, so the
// stand-in convention is a "debug/" path segment; unlike a blanket path
// filter, it only ever acts on resources tagged pool.ClassResource, so a
// CONFIG or OTHER resource that happens to live under a "debug/" path is
// left alone.
func NewStripDebug() Plugin {
	cat := Transformer

	return Plugin{
		Name:     "strip-debug",
		Category: &cat,
		Apply: func(input *pool.Pool, _ map[string]string) (*pool.Pool, error) {
			out := pool.New()

			for _, r := range input.Entries() {
				if r.Type == pool.ClassResource && strings.Contains(r.Path, "debug/") {
					continue
				}

				if err := out.Add(r); err != nil {
					return nil, err
				}
			}

			return out, nil
		},
	}
}

// NewCompressor builds a COMPRESSOR-category plugin gzip-compressing
// resources whose path matches filter, at the given level (spec.md §4.5's
// compress/compress-level/compress-filter options). A nil filter compresses
// everything.
func NewCompressor(level int, filter *regexp.Regexp) Plugin {
	cat := Compressor

	gzLevel := gzip.DefaultCompression

	switch level {
	case 0:
		gzLevel = gzip.NoCompression
	case 1:
		gzLevel = gzip.DefaultCompression
	case 2:
		gzLevel = gzip.BestCompression
	}

	return Plugin{
		Name:     "compress",
		Category: &cat,
		Apply: func(input *pool.Pool, _ map[string]string) (*pool.Pool, error) {
			out := pool.New()

			for _, r := range input.Entries() {
				if filter != nil && !filter.MatchString(r.Path) {
					if err := out.Add(r); err != nil {
						return nil, err
					}

					continue
				}

				compressed, err := gzipBytes(r.Content, gzLevel)
				if err != nil {
					return nil, err
				}

				r.UncompressedSize = uint32(len(r.Content))
				r.CompressorID = pool.GzipCompressor
				r.Content = compressed

				if err := out.Add(r); err != nil {
					return nil, err
				}
			}

			return out, nil
		},
	}
}

// NewParallelCompressor is NewCompressor's behavior run through
// ParallelApply, bounded by concurrency in-flight goroutines — the shape
// the Tool Surface uses, since gzip compression of unrelated resources is
// embarrassingly parallel (spec.md §5's "plugins may process resources
// concurrently where the transform is independent per resource").
func NewParallelCompressor(level int, filter *regexp.Regexp, concurrency int64) Plugin {
	cat := Compressor

	gzLevel := gzip.DefaultCompression

	switch level {
	case 0:
		gzLevel = gzip.NoCompression
	case 1:
		gzLevel = gzip.DefaultCompression
	case 2:
		gzLevel = gzip.BestCompression
	}

	return Plugin{
		Name:     "compress",
		Category: &cat,
		Apply: func(input *pool.Pool, _ map[string]string) (*pool.Pool, error) {
			return ParallelApply(context.Background(), input, concurrency, func(r pool.Resource) (pool.Resource, error) {
				if filter != nil && !filter.MatchString(r.Path) {
					return r, nil
				}

				compressed, err := gzipBytes(r.Content, gzLevel)
				if err != nil {
					return pool.Resource{}, err
				}

				r.UncompressedSize = uint32(len(r.Content))
				r.CompressorID = pool.GzipCompressor
				r.Content = compressed

				return r, nil
			})
		},
	}
}

func gzipBytes(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer

	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// gunzipBytes reverses gzipBytes; this package's tests use it to re-inflate
// a COMPRESSOR's output.
func gunzipBytes(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
