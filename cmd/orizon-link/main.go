// Command orizon-link is the Tool Surface (spec.md §2, §6): it resolves a
// set of root modules against one or more search paths, links the result
// through an optional plugin pipeline, and writes an image binary.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/orizon-lang/orizon/internal/link/plugin"
	"github.com/orizon-lang/orizon/internal/linklog"
	"github.com/orizon-lang/orizon/internal/linktool"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "link":
		handleLink(rest)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `orizon-link - module-graph resolver and linker

Usage: orizon-link <command> [options]

Commands:
  link     Resolve roots and write an image
  help     Show this help

Options for link:
  -path <dir>            Search path root; may be repeated
  -root <module>         Root module name; may be repeated
  -out <file>            Output image path (default: out.oimg)
  -exclude <glob>        Exclude matching resource paths; may be repeated
  -strip-debug           Drop class resources under "debug/"
  -compress <0|1|2>      Gzip resources (none/default/best)
  -compress-filter <re>  Only compress resources matching this regexp
  -big-endian            Write the image in big-endian byte order
  -watch                 Re-link whenever a search path changes on disk

Environment:
  ORIZON_MAX_CONCURRENCY  Bounds per-resource plugin worker fan-out
`)
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func handleLink(args []string) {
	fs := flag.NewFlagSet("link", flag.ExitOnError)

	var (
		paths         stringList
		roots         stringList
		excludes      stringList
		out           string
		stripDebug    bool
		compress      int
		compressRegex string
		bigEndian     bool
		watch         bool
	)

	fs.Var(&paths, "path", "search path root; may be repeated")
	fs.Var(&roots, "root", "root module name; may be repeated")
	fs.Var(&excludes, "exclude", "exclude matching resource paths; may be repeated")
	fs.StringVar(&out, "out", "out.oimg", "output image path")
	fs.BoolVar(&stripDebug, "strip-debug", false, "drop class resources under debug/")
	fs.IntVar(&compress, "compress", -1, "gzip level (0, 1, or 2); omit to skip compression")
	fs.StringVar(&compressRegex, "compress-filter", "", "only compress resources matching this regexp")
	fs.BoolVar(&bigEndian, "big-endian", false, "write the image in big-endian byte order")
	fs.BoolVar(&watch, "watch", false, "re-link whenever a search path changes on disk")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one -path is required")
		os.Exit(1)
	}

	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one -root is required")
		os.Exit(1)
	}

	concurrency := ioConcurrency()

	plugins, err := buildPlugins(excludes, stripDebug, compress, compressRegex, int64(concurrency))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	order := binary.ByteOrder(binary.LittleEndian)
	if bigEndian {
		order = binary.BigEndian
	}

	tool := linktool.NewTool(linktool.Config{
		SearchPaths: paths,
		Roots:       roots,
		Plugins:     plugins,
		Concurrency: int64(concurrency),
		ByteOrder:   order,
		Logger:      linklog.New("orizon-link"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !watch {
		res, err := tool.Link(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: link failed: %v\n", err)
			os.Exit(1)
		}

		if err := writeImage(out, res.Image); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Linked %d modules into %s (%d bytes)\n", len(res.Resolution.Selected), out, len(res.Image))

		return
	}

	fmt.Printf("Watching %s for changes (Ctrl-C to stop)\n", strings.Join(paths, ", "))

	err = tool.Watch(ctx, func(res *linktool.Result, linkErr error) {
		if linkErr != nil {
			fmt.Fprintf(os.Stderr, "Error: relink failed: %v\n", linkErr)
			return
		}

		if err := writeImage(out, res.Image); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}

		fmt.Printf("Relinked %d modules into %s (%d bytes)\n", len(res.Resolution.Selected), out, len(res.Image))
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: watch failed: %v\n", err)
		os.Exit(1)
	}
}

func buildPlugins(excludes []string, stripDebug bool, compress int, compressRegex string, concurrency int64) ([]plugin.Plugin, error) {
	var plugins []plugin.Plugin

	if len(excludes) > 0 {
		plugins = append(plugins, plugin.NewExcludeFilter("exclude-resources", excludes))
	}

	if stripDebug {
		plugins = append(plugins, plugin.NewStripDebug())
	}

	if compress >= 0 {
		var filter *regexp.Regexp

		if compressRegex != "" {
			re, err := regexp.Compile(compressRegex)
			if err != nil {
				return nil, fmt.Errorf("invalid -compress-filter: %w", err)
			}

			filter = re
		}

		plugins = append(plugins, plugin.NewParallelCompressor(compress, filter, concurrency))
	}

	return plugins, nil
}

func writeImage(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing image %s: %w", path, err)
	}

	return nil
}

// ioConcurrency returns the plugin pipeline's worker-pool width. It reads
// ORIZON_MAX_CONCURRENCY if set, otherwise uses GOMAXPROCS*8 (mirroring
// internal/packagemanager/manager.go's ioConcurrency()). The core link
// packages never read this themselves; the knob is read once here, at
// Tool Surface construction (spec.md §6).
func ioConcurrency() int {
	if v := os.Getenv("ORIZON_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > 1024 {
				return 1024
			}

			return n
		}
	}

	c := runtime.GOMAXPROCS(0) * 8
	if c < 4 {
		c = 4
	}

	if c > 1024 {
		c = 1024
	}

	return c
}
