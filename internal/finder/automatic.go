package finder

import (
	"archive/zip"
	"bufio"
	"bytes"
	"path/filepath"
	"strings"

	"golang.org/x/mod/module"

	"github.com/orizon-lang/orizon/internal/linklog"
	"github.com/orizon-lang/orizon/internal/moduledesc"
	"github.com/orizon-lang/orizon/internal/modversion"
)

// deriveAutomaticModule builds a synthetic descriptor for a .jar lacking
// module-info (spec.md §4.2 paragraph 3): name from the filename (stripped
// of a trailing version suffix and sanitised), version from that suffix if
// present, packages from *.class entry paths, provides from
// META-INF/services/*, and mainClass from the manifest.
func deriveAutomaticModule(path string, files []*zip.File, logger *linklog.Logger) (*moduledesc.ModuleDescriptor, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rawName, rawVersion := splitTrailingVersion(base)
	name := sanitizeAutomaticName(rawName)

	// Legacy jar names routinely fail a reverse-DNS-style module path
	// check; this is advisory only, so a failure never blocks the
	// derivation, just gets a warning record (spec.md §7).
	if err := module.CheckPath(automaticModulePath(name)); err != nil {
		logger.Warnf("finder: derived automatic module name %q for %s is not path-shaped: %v", name, path, err)
	}

	b := moduledesc.NewBuilder(name).Modifiers(moduledesc.Automatic)

	if rawVersion != "" {
		if v, err := modversion.Parse(rawVersion); err == nil {
			b.Version(v)
		}
	}

	packages := classPackagesInArchive(files)

	pkgList := make([]string, 0, len(packages))
	for p := range packages {
		pkgList = append(pkgList, p)
	}

	b.Packages(pkgList...)

	d, err := b.Build()
	if err != nil {
		return nil, err
	}

	if mainClass := readManifestMainClass(files); mainClass != "" {
		d.MainClass = mainClass
	}

	if provides := readServiceProviders(files); len(provides) > 0 {
		d.Provides = provides
	}

	return d, nil
}

func automaticModulePath(name string) string {
	return "automatic/" + strings.ReplaceAll(name, ".", "/")
}

// splitTrailingVersion splits a filename stem like "commons-io-2.11.0" into
// ("commons-io", "2.11.0"). The split point is the last '-' immediately
// followed by a digit.
func splitTrailingVersion(base string) (name, version string) {
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] != '-' {
			continue
		}

		rest := base[i+1:]
		if rest == "" || rest[0] < '0' || rest[0] > '9' {
			continue
		}

		return base[:i], rest
	}

	return base, ""
}

// sanitizeAutomaticName replaces every non-alphanumeric rune with '.',
// collapses runs of '.', and trims leading/trailing '.' (spec.md §4.2).
func sanitizeAutomaticName(raw string) string {
	var b strings.Builder

	prevDot := false

	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDot = false
		default:
			if !prevDot {
				b.WriteByte('.')
				prevDot = true
			}
		}
	}

	return strings.Trim(b.String(), ".")
}

func readManifestMainClass(files []*zip.File) string {
	for _, f := range files {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}

		data, err := readZipFile(f)
		if err != nil {
			return ""
		}

		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := scanner.Text()

			const prefix = "Main-Class:"
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(line, prefix))
			}
		}

		return ""
	}

	return ""
}

func readServiceProviders(files []*zip.File) map[string]moduledesc.Provides {
	const dir = "META-INF/services/"

	out := make(map[string]moduledesc.Provides)

	for _, f := range files {
		if !strings.HasPrefix(f.Name, dir) || f.Name == dir {
			continue
		}

		service := strings.TrimPrefix(f.Name, dir)
		if strings.Contains(service, "/") {
			continue
		}

		data, err := readZipFile(f)
		if err != nil {
			continue
		}

		var providers []string

		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			providers = append(providers, line)
		}

		if len(providers) > 0 {
			out[service] = moduledesc.Provides{Service: service, Providers: providers}
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
