// Package linkerr defines the typed error taxonomy produced by the module
// resolver and linker. Every public core operation returns one of these
// values (wrapped with fmt.Errorf("...: %w", ...) at call sites) instead of
// panicking or relying on exceptions for control flow.
package linkerr

import "fmt"

// InvalidDescriptor reports a malformed or truncated binary module
// descriptor.
type InvalidDescriptor struct {
	Reason string
}

func (e *InvalidDescriptor) Error() string {
	return fmt.Sprintf("invalid module descriptor: %s", e.Reason)
}

// ModuleNotFound reports a requires or root name that no finder could
// resolve.
type ModuleNotFound struct {
	Name       string
	RequiredBy string // empty when the name was itself a root
}

func (e *ModuleNotFound) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("module not found: %s", e.Name)
	}

	return fmt.Sprintf("module not found: %s (required by %s)", e.Name, e.RequiredBy)
}

// Cycle reports a back edge found during the requires-only DFS, naming the
// cycle in the order it was encountered.
type Cycle struct {
	Path []string
}

func (e *Cycle) Error() string {
	s := ""
	for i, m := range e.Path {
		if i > 0 {
			s += " -> "
		}

		s += m
	}

	return fmt.Sprintf("cycle detected: %s", s)
}

// SplitPackage reports that two modules supply the same package to a
// common reader.
type SplitPackage struct {
	Package string
	A, B    string
}

func (e *SplitPackage) Error() string {
	return fmt.Sprintf("package %s is supplied by both %s and %s", e.Package, e.A, e.B)
}

// DuplicatePackageInLoader reports that two modules assigned to the same
// loader contain overlapping packages.
type DuplicatePackageInLoader struct {
	Package, Loader, A, B string
}

func (e *DuplicatePackageInLoader) Error() string {
	return fmt.Sprintf("package %s in loader %s is defined by both %s and %s", e.Package, e.Loader, e.A, e.B)
}

// DuplicateModuleInRoot reports that a finder saw two module candidates of
// the same name within a single search root.
type DuplicateModuleInRoot struct {
	Name, Root string
	A, B       string // locations of the two candidates
}

func (e *DuplicateModuleInRoot) Error() string {
	return fmt.Sprintf("duplicate module %s in root %s (%s and %s)", e.Name, e.Root, e.A, e.B)
}

// HashMismatch reports that a recorded dependency hash did not match the
// hash recomputed from the dependency's reference.
type HashMismatch struct {
	Dependency, Expected, Actual string
}

func (e *HashMismatch) Error() string {
	return fmt.Sprintf("hash mismatch for %s: expected %s, got %s", e.Dependency, e.Expected, e.Actual)
}

// IllegalName reports an identifier that failed the name rules for its
// kind (module, package, service, class).
type IllegalName struct {
	Kind, Value string
}

func (e *IllegalName) Error() string {
	return fmt.Sprintf("illegal %s name: %q", e.Kind, e.Value)
}

// IoError wraps a filesystem or archive I/O failure with the path that
// triggered it.
type IoError struct {
	Path  string
	Cause error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error at %s: %v", e.Path, e.Cause)
}

func (e *IoError) Unwrap() error { return e.Cause }

// PluginError wraps a failure raised by a named plugin during the link
// pipeline.
type PluginError struct {
	Plugin string
	Cause  error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s failed: %v", e.Plugin, e.Cause)
}

func (e *PluginError) Unwrap() error { return e.Cause }

// ResourceConflict reports that two writers produced the same resource
// path in the output pool.
type ResourceConflict struct {
	Path string
}

func (e *ResourceConflict) Error() string {
	return fmt.Sprintf("resource conflict at %s", e.Path)
}
