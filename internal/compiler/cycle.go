package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// ListCycle is a chain of lists whose parents lead back to the start.
type ListCycle struct {
	Context string   `json:"context"`
	Path    []string `json:"path"` // ["a", "b", "a"]
}

func (c ListCycle) String() string {
	return fmt.Sprintf("%s: %s", c.Context, strings.Join(c.Path, " → "))
}

// FindListCycles reports every cycle in the parent links of each context's
// lists. A seed with cycles cannot be applied: a list can only be created
// inside a parent that already exists.
func FindListCycles(seed *Seed) []ListCycle {
	var cycles []ListCycle
	for _, ctx := range seed.Contexts {
		graph := buildParentGraph(ctx.Lists)
		for _, scc := range tarjanSCC(graph) {
			if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
				cycles = append(cycles, ListCycle{
					Context: ctx.Name,
					Path:    reconstructCyclePath(scc, graph),
				})
			}
		}
	}
	return cycles
}

// parentGraph maps a list name to the lists it must be created after.
type parentGraph map[string][]string

func buildParentGraph(lists []ListSpec) parentGraph {
	graph := make(parentGraph, len(lists))
	for _, l := range lists {
		if graph[l.Name] == nil {
			graph[l.Name] = []string{}
		}
		if l.Parent != "" {
			graph[l.Name] = append(graph[l.Name], l.Parent)
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph parentGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in name order so results are stable.
func tarjanSCC(graph parentGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath walks the SCC from its first member back to itself.
func reconstructCyclePath(scc []string, graph parentGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}

// creationOrder returns the lists of ctx with every parent ahead of its
// children, keeping source order otherwise. It assumes no cycles.
func creationOrder(lists []ListSpec) []ListSpec {
	byName := make(map[string]ListSpec, len(lists))
	for _, l := range lists {
		byName[l.Name] = l
	}
	done := make(map[string]bool, len(lists))
	out := make([]ListSpec, 0, len(lists))
	var visit func(l ListSpec)
	visit = func(l ListSpec) {
		if done[l.Name] {
			return
		}
		done[l.Name] = true
		if p, ok := byName[l.Parent]; ok {
			visit(p)
		}
		out = append(out, l)
	}
	for _, l := range lists {
		visit(l)
	}
	return out
}
