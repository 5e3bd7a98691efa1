// Package dag provides the directed graph used to order class hierarchies.
// It supports cycle detection, parent-first ordering and ancestor/descendant queries.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Node is a vertex carrying a value of type T.
type Node[T any] struct {
	// ID is the unique identifier (class name)
	ID   string
	Data T
}

// Graph is a directed graph; an edge runs from a base to a derived vertex.
type Graph[T any] struct {
	nodes    map[string]*Node[T]
	children map[string][]string // base -> derived
	parents  map[string][]string // derived -> bases
}

// NewGraph creates a new empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:    make(map[string]*Node[T]),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a node, replacing the data of an existing one.
func (g *Graph[T]) AddNode(id string, data T) {
	if n, exists := g.nodes[id]; exists {
		n.Data = data
		return
	}
	g.nodes[id] = &Node[T]{ID: id, Data: data}
}

// AddEdge adds an edge from parent to child.
func (g *Graph[T]) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !contains(g.children[parentID], childID) {
		g.children[parentID] = append(g.children[parentID], childID)
	}
	if !contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Node returns a node by ID.
func (g *Graph[T]) Node(id string) (*Node[T], bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the direct parents of a node.
func (g *Graph[T]) Parents(id string) []string { return g.parents[id] }

// Children returns the direct children of a node, sorted.
func (g *Graph[T]) Children(id string) []string {
	out := append([]string(nil), g.children[id]...)
	sort.Strings(out)
	return out
}

// Len returns the number of nodes.
func (g *Graph[T]) Len() int { return len(g.nodes) }

// HasCycle reports whether the graph contains a cycle, along with the cycle path.
func (g *Graph[T]) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	from := make(map[string]string)

	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, child := range g.children[id] {
			if !visited[child] {
				from[child] = id
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				cycle = []string{child}
				for cur := id; cur != child; cur = from[cur] {
					cycle = append([]string{cur}, cycle...)
				}
				cycle = append([]string{child}, cycle...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] && dfs(id) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns nodes with every parent before its children.
// Ties are broken by ID so the order is deterministic.
func (g *Graph[T]) TopologicalSort() ([]*Node[T], error) {
	if hasCycle, cycle := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %s", strings.Join(cycle, " -> "))
	}

	visited := make(map[string]bool)
	result := make([]*Node[T], 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, p := range g.parents[id] {
			visit(p)
		}
		result = append(result, g.nodes[id])
	}

	for _, id := range g.sortedIDs() {
		visit(id)
	}
	return result, nil
}

// Descendants returns every node reachable from id, sorted.
func (g *Graph[T]) Descendants(id string) []string {
	seen := make(map[string]bool)

	var walk func(string)
	walk = func(cur string) {
		for _, c := range g.children[cur] {
			if !seen[c] {
				seen[c] = true
				walk(c)
			}
		}
	}
	walk(id)

	return sortedKeys(seen)
}

// Ancestors returns every node id is reachable from, sorted.
func (g *Graph[T]) Ancestors(id string) []string {
	seen := make(map[string]bool)

	var walk func(string)
	walk = func(cur string) {
		for _, p := range g.parents[cur] {
			if !seen[p] {
				seen[p] = true
				walk(p)
			}
		}
	}
	walk(id)

	return sortedKeys(seen)
}

// Roots returns nodes with no parents.
func (g *Graph[T]) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

func (g *Graph[T]) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
