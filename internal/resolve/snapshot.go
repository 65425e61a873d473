package resolve

import (
	"encoding/json"
	"io"
	"sort"
)

// SnapshotModule is one module's entry in a Snapshot.
type SnapshotModule struct {
	Name      string   `json:"name"`
	Version   string   `json:"version,omitempty"`
	Automatic bool     `json:"automatic,omitempty"`
	Requires  []string `json:"requires,omitempty"`
	Location  string   `json:"location,omitempty"`
}

// Snapshot is a deterministic, sorted rendering of a Resolution suitable
// for a lockfile-style record of what a resolve run selected.
type Snapshot struct {
	Modules []SnapshotModule `json:"modules"`
}

// Snapshot renders r as a deterministic Snapshot (spec.md §9 supplemented
// feature: a resolver lockfile, grounded on the package manager's own
// sorted-JSON lockfile format).
func (r *Resolution) Snapshot() Snapshot {
	names := r.SortedNames()

	modules := make([]SnapshotModule, 0, len(names))

	for _, name := range names {
		d := r.Selected[name]

		sm := SnapshotModule{
			Name:      name,
			Automatic: d.IsAutomatic(),
			Requires:  d.RequiresNames(),
		}

		if d.Version != nil {
			sm.Version = d.Version.String()
		}

		if ref, ok := r.References[name]; ok {
			sm.Location = ref.Location
		}

		modules = append(modules, sm)
	}

	return Snapshot{Modules: modules}
}

// WriteJSON writes the snapshot as indented JSON.
func (s Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(s)
}

// Stats summarizes a Resolution's shape, mirroring the package manager's
// Statistics/GetStatistics pair.
type Stats struct {
	ModuleCount       int
	AutomaticCount    int
	RequiresEdgeCount int
	ProviderCount     int
}

// Stats computes summary counters over r.
func (r *Resolution) Stats() Stats {
	var s Stats

	s.ModuleCount = len(r.Selected)

	for _, d := range r.Selected {
		if d.IsAutomatic() {
			s.AutomaticCount++
		}

		s.RequiresEdgeCount += len(d.Requires)
	}

	providers := make(map[string]bool)

	for _, names := range r.Providers {
		sort.Strings(names)

		for _, n := range names {
			providers[n] = true
		}
	}

	s.ProviderCount = len(providers)

	return s
}
