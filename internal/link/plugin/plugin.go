// Package plugin implements the Plugin Pipeline (spec.md §4.5): an
// ordered sequence of transforms over a Resource Pool, bucketed into the
// five fixed categories (SORTER, FILTER, TRANSFORMER, COMPRESSOR,
// VERIFIER) and run in that order, each stage seeing the previous stage's
// frozen snapshot and producing a fresh mutable pool.
//
// Grounded on internal/build/plan.go's Target/weight/deps shape for
// ordering and internal/packagemanager/manager.go's ioConcurrency()-bounded
// errgroup fan-out, here backing a semaphore-bounded per-resource worker
// pool for plugins that transform resources independently.
package plugin

import (
	"context"
	"sort"

	"golang.org/x/sync/semaphore"

	"github.com/orizon-lang/orizon/internal/linkerr"
	"github.com/orizon-lang/orizon/internal/link/pool"
)

// Category is one of the pipeline's five fixed, ordered buckets.
type Category int

const (
	Sorter Category = iota
	Filter
	Transformer
	Compressor
	Verifier
)

var categoryOrder = []Category{Sorter, Filter, Transformer, Compressor, Verifier}

func (c Category) String() string {
	switch c {
	case Sorter:
		return "SORTER"
	case Filter:
		return "FILTER"
	case Transformer:
		return "TRANSFORMER"
	case Compressor:
		return "COMPRESSOR"
	case Verifier:
		return "VERIFIER"
	default:
		return "UNKNOWN"
	}
}

// Apply is the plugin's transform: input is an immutable snapshot of the
// previous stage's pool, config is the plugin's recognised option set
// (spec.md §4.5's enumerated table), and the returned pool is fresh and
// mutable.
type Apply func(input *pool.Pool, config map[string]string) (*pool.Pool, error)

// Plugin is one pipeline stage.
type Plugin struct {
	Name string
	// Category is nil for an uncategorized plugin, which runs after every
	// categorized one, in declaration order among itself and its peers.
	Category *Category
	// Order breaks ties within a single category bucket (spec.md §4.5:
	// "within a bucket order is option-declared").
	Order  int
	Apply  Apply
	Config map[string]string
}

func categoryRank(p Plugin) int {
	if p.Category == nil {
		return len(categoryOrder)
	}

	for i, c := range categoryOrder {
		if c == *p.Category {
			return i
		}
	}

	return len(categoryOrder)
}

// order sorts plugins into bucket order, honoring Order within a bucket
// and declaration order as the final tiebreak.
func order(plugins []Plugin) []Plugin {
	indexed := make([]int, len(plugins))
	for i := range indexed {
		indexed[i] = i
	}

	sort.SliceStable(indexed, func(i, j int) bool {
		a, b := plugins[indexed[i]], plugins[indexed[j]]

		ra, rb := categoryRank(a), categoryRank(b)
		if ra != rb {
			return ra < rb
		}

		return a.Order < b.Order
	})

	out := make([]Plugin, len(plugins))
	for i, idx := range indexed {
		out[i] = plugins[idx]
	}

	return out
}

// Run executes the pipeline in category order (spec.md §4.5). A plugin
// error is fatal and no partial image results: the caller receives the
// error and must discard initial.
func Run(plugins []Plugin, initial *pool.Pool) (*pool.Pool, error) {
	current := initial.Snapshot()

	for _, p := range order(plugins) {
		out, err := p.Apply(current, p.Config)
		if err != nil {
			return nil, &linkerr.PluginError{Plugin: p.Name, Cause: err}
		}

		current = out.Snapshot()
	}

	return current, nil
}

// ParallelApply runs fn over every resource in input concurrently, bounded
// by concurrency in-flight at once, and collects the results into a fresh
// pool — the shape a COMPRESSOR or TRANSFORMER plugin uses when each
// resource can be transformed independently.
func ParallelApply(ctx context.Context, input *pool.Pool, concurrency int64, fn func(pool.Resource) (pool.Resource, error)) (*pool.Pool, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	entries := input.Entries()
	results := make([]pool.Resource, len(entries))

	sem := semaphore.NewWeighted(concurrency)

	errs := make(chan error, len(entries))

	for i, r := range entries {
		i, r := i, r

		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}

		go func() {
			defer sem.Release(1)

			out, err := fn(r)
			if err != nil {
				errs <- err
				return
			}

			results[i] = out
			errs <- nil
		}()
	}

	for range entries {
		if err := <-errs; err != nil {
			return nil, err
		}
	}

	out := pool.New()
	for _, r := range results {
		if err := out.Add(r); err != nil {
			return nil, err
		}
	}

	return out, nil
}
