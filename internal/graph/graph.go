// Package graph provides the general-purpose cycle detection and
// topological sort used by the resolver's requires-only cycle check.
//
// It is generalized over any node identified by a comparable string key
// and an adjacency function, since the teacher's original
// DependencyGraph.DetectCycles/TopologicalSort pair was hard-wired to a
// single ModulePath-keyed map.
package graph

import "sort"

// Edges returns the outgoing neighbor keys for a given node key.
type Edges func(node string) []string

// CycleError names a cycle found during DetectCycle, in the order
// encountered (first element repeated at the end).
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	s := ""
	for i, n := range e.Path {
		if i > 0 {
			s += " -> "
		}

		s += n
	}

	return "cycle: " + s
}

// DetectCycle runs a DFS with a current-path recursion set over nodes,
// using edges to expand each node. It returns the first cycle found, or
// nil if the graph restricted to nodes is acyclic. Nodes are visited in
// sorted order for determinism.
func DetectCycle(nodes []string, edges Edges) *CycleError {
	sorted := append([]string(nil), nodes...)
	sort.Strings(sorted)

	visited := make(map[string]bool, len(sorted))
	onStack := make(map[string]bool, len(sorted))

	var path []string

	var visit func(string) *CycleError

	visit = func(n string) *CycleError {
		visited[n] = true
		onStack[n] = true
		path = append(path, n)

		neighbors := append([]string(nil), edges(n)...)
		sort.Strings(neighbors)

		for _, m := range neighbors {
			if onStack[m] {
				cycleStart := -1

				for i, p := range path {
					if p == m {
						cycleStart = i
						break
					}
				}

				cycle := append([]string(nil), path[cycleStart:]...)
				cycle = append(cycle, m)

				return &CycleError{Path: cycle}
			}

			if !visited[m] {
				if c := visit(m); c != nil {
					return c
				}
			}
		}

		path = path[:len(path)-1]
		onStack[n] = false

		return nil
	}

	for _, n := range sorted {
		if !visited[n] {
			if c := visit(n); c != nil {
				return c
			}
		}
	}

	return nil
}

// TopoSort returns nodes in dependency order (a node after everything it
// points to via edges) using Kahn's algorithm. It returns an error if the
// induced subgraph has a cycle. Ties are broken by sorted key for
// determinism.
func TopoSort(nodes []string, edges Edges) ([]string, error) {
	if c := DetectCycle(nodes, edges); c != nil {
		return nil, c
	}

	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n] = 0
	}

	for _, n := range nodes {
		for _, m := range edges(n) {
			inDegree[m]++
		}
	}

	var queue []string

	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	sort.Strings(queue)

	var result []string

	for len(queue) > 0 {
		sort.Strings(queue)
		cur := queue[0]
		queue = queue[1:]
		result = append(result, cur)

		for _, m := range edges(cur) {
			inDegree[m]--
			if inDegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	if len(result) != len(nodes) {
		return nil, &CycleError{Path: nodes}
	}

	reversed := make([]string, len(result))
	for i, n := range result {
		reversed[len(result)-1-i] = n
	}

	return reversed, nil
}
