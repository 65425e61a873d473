package plugin

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/orizon-lang/orizon/internal/link/pool"
)

func samplePool(t *testing.T) *pool.Pool {
	t.Helper()

	p := pool.New()
	_ = p.Add(pool.Resource{Path: "a.txt", Content: []byte("hello")})
	_ = p.Add(pool.Resource{Path: "debug/a.sym", Content: []byte("dbg")})
	_ = p.Add(pool.Resource{Path: "debug/Foo.class", Content: []byte("classbytes"), Type: pool.ClassResource})
	_ = p.Add(pool.Resource{Path: "b.txt", Content: []byte("world")})

	return p
}

func TestRunOrdersByCategory(t *testing.T) {
	var seen []string

	record := func(name string, cat Category) Plugin {
		c := cat
		return Plugin{
			Name:     name,
			Category: &c,
			Apply: func(input *pool.Pool, _ map[string]string) (*pool.Pool, error) {
				seen = append(seen, name)
				return input.Snapshot(), nil
			},
		}
	}

	plugins := []Plugin{
		record("v", Verifier),
		record("c", Compressor),
		record("s", Sorter),
		record("f", Filter),
		record("t", Transformer),
	}

	if _, err := Run(plugins, samplePool(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"s", "f", "t", "c", "v"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}

	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected category order %v, got %v", want, seen)
		}
	}
}

func TestRunStopsOnFirstError(t *testing.T) {
	cat := Filter
	failing := Plugin{
		Name:     "boom",
		Category: &cat,
		Apply: func(*pool.Pool, map[string]string) (*pool.Pool, error) {
			return nil, errors.New("kaboom")
		},
	}

	laterRan := false
	laterCat := Verifier
	later := Plugin{
		Name:     "later",
		Category: &laterCat,
		Apply: func(input *pool.Pool, _ map[string]string) (*pool.Pool, error) {
			laterRan = true
			return input.Snapshot(), nil
		},
	}

	_, err := Run([]Plugin{failing, later}, samplePool(t))
	if err == nil {
		t.Fatal("expected Run to propagate the plugin's error")
	}

	if laterRan {
		t.Fatal("expected Run to stop before the stage after the failing one")
	}
}

func TestExcludeFilterDropsMatchingPaths(t *testing.T) {
	p := NewExcludeFilter("exclude", []string{"debug/*"})

	out, err := p.Apply(samplePool(t), p.Config)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, r := range out.Entries() {
		if r.Path == "debug/a.sym" {
			t.Fatal("expected debug/a.sym to be excluded")
		}
	}

	if len(out.Entries()) != 2 {
		t.Fatalf("expected 2 surviving resources, got %d", len(out.Entries()))
	}
}

func TestStripDebugDropsClassResourcesOnly(t *testing.T) {
	p := NewStripDebug()

	out, err := p.Apply(samplePool(t), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	foundSym := false

	for _, r := range out.Entries() {
		if r.Path == "debug/Foo.class" {
			t.Fatal("expected debug/Foo.class (a CLASS resource) to be stripped")
		}

		if r.Path == "debug/a.sym" {
			foundSym = true
		}
	}

	if !foundSym {
		t.Fatal("expected debug/a.sym (not a CLASS resource) to survive strip-debug")
	}
}

func TestSorterMovesExplicitPrefixFirst(t *testing.T) {
	p := NewSorter([]string{"b."})

	out, err := p.Apply(samplePool(t), p.Config)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	entries := out.Entries()
	if entries[0].Path != "b.txt" {
		t.Fatalf("expected b.txt sorted first, got %v", entries)
	}
}

func TestCompressorRoundTrips(t *testing.T) {
	p := NewCompressor(2, nil)

	out, err := p.Apply(samplePool(t), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, r := range out.Entries() {
		if r.Path != "a.txt" {
			continue
		}

		if r.CompressorID != pool.GzipCompressor {
			t.Fatalf("expected CompressorID %d, got %d", pool.GzipCompressor, r.CompressorID)
		}

		if r.UncompressedSize != uint32(len("hello")) {
			t.Fatalf("expected UncompressedSize %d, got %d", len("hello"), r.UncompressedSize)
		}

		plain, err := gunzipBytes(r.Content)
		if err != nil {
			t.Fatalf("gunzipBytes: %v", err)
		}

		if string(plain) != "hello" {
			t.Fatalf("expected round-tripped content %q, got %q", "hello", plain)
		}
	}
}

func TestParallelCompressorRoundTrips(t *testing.T) {
	p := NewParallelCompressor(2, nil, 2)

	out, err := p.Apply(samplePool(t), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(out.Entries()) != len(samplePool(t).Entries()) {
		t.Fatalf("expected entry count preserved, got %d", len(out.Entries()))
	}

	for _, r := range out.Entries() {
		if r.Path != "a.txt" {
			continue
		}

		plain, err := gunzipBytes(r.Content)
		if err != nil {
			t.Fatalf("gunzipBytes: %v", err)
		}

		if string(plain) != "hello" {
			t.Fatalf("expected round-tripped content %q, got %q", "hello", plain)
		}
	}
}

func TestDigestVerifierAddsDigestResources(t *testing.T) {
	p := NewDigestVerifier("sha256")

	out, err := p.Apply(samplePool(t), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	found := false

	for _, r := range out.Entries() {
		if r.Path == "a.txt.sha256" {
			found = true
		}
	}

	if !found {
		t.Fatal("expected a.txt.sha256 digest resource to be added")
	}
}

func TestParallelApplyBoundsConcurrency(t *testing.T) {
	p := samplePool(t)

	var inFlight, maxInFlight atomic.Int64

	out, err := ParallelApply(context.Background(), p, 2, func(r pool.Resource) (pool.Resource, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)

		for m := maxInFlight.Load(); n > m && !maxInFlight.CompareAndSwap(m, n); m = maxInFlight.Load() {
		}

		r.Content = append([]byte("x-"), r.Content...)
		return r, nil
	})
	if err != nil {
		t.Fatalf("ParallelApply: %v", err)
	}

	if got := maxInFlight.Load(); got > 2 {
		t.Fatalf("expected at most 2 calls in flight, saw %d", got)
	}

	if len(out.Entries()) != len(p.Entries()) {
		t.Fatalf("expected %d entries, got %d", len(p.Entries()), len(out.Entries()))
	}

	for _, r := range out.Entries() {
		if len(r.Content) < 2 || string(r.Content[:2]) != "x-" {
			t.Fatalf("expected transformed content for %s, got %q", r.Path, r.Content)
		}
	}
}
