package graph

import "testing"

func TestDetectCycleNone(t *testing.T) {
	edges := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {},
	}
	e := func(n string) []string { return edges[n] }

	if c := DetectCycle([]string{"a", "b", "c"}, e); c != nil {
		t.Fatalf("unexpected cycle: %v", c)
	}
}

func TestDetectCycleFound(t *testing.T) {
	edges := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	e := func(n string) []string { return edges[n] }

	c := DetectCycle([]string{"a", "b"}, e)
	if c == nil {
		t.Fatal("expected cycle")
	}

	if len(c.Path) < 2 {
		t.Fatalf("expected at least 2 nodes in cycle, got %v", c.Path)
	}
}

func TestTopoSortDependencyOrder(t *testing.T) {
	// a requires b requires c: dependency order should place c, then b, then a.
	edges := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {},
	}
	e := func(n string) []string { return edges[n] }

	order, err := TopoSort([]string{"a", "b", "c"}, e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}

	if pos["c"] > pos["b"] || pos["b"] > pos["a"] {
		t.Fatalf("expected c before b before a, got %v", order)
	}
}

func TestTopoSortCycleError(t *testing.T) {
	edges := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	e := func(n string) []string { return edges[n] }

	if _, err := TopoSort([]string{"a", "b"}, e); err == nil {
		t.Fatal("expected error for cyclic graph")
	}
}
