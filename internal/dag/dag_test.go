package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hierarchy(t *testing.T) *Graph[int] {
	t.Helper()

	g := NewGraph[int]()
	for i, id := range []string{"GrtObject", "db.DatabaseObject", "db.Table", "db.View", "db.Column"} {
		g.AddNode(id, i)
	}
	require.NoError(t, g.AddEdge("GrtObject", "db.DatabaseObject"))
	require.NoError(t, g.AddEdge("db.DatabaseObject", "db.Table"))
	require.NoError(t, g.AddEdge("db.DatabaseObject", "db.View"))
	require.NoError(t, g.AddEdge("GrtObject", "db.Column"))
	return g
}

func TestGraph_AddEdge_Errors(t *testing.T) {
	g := NewGraph[string]()
	g.AddNode("a", "A")

	tests := []struct {
		name   string
		parent string
		child  string
	}{
		{"missing child", "a", "nonexistent"},
		{"missing parent", "nonexistent", "a"},
		{"self loop", "a", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, g.AddEdge(tt.parent, tt.child))
		})
	}
}

func TestGraph_AddNode_ReplacesData(t *testing.T) {
	g := NewGraph[string]()
	g.AddNode("a", "first")
	g.AddNode("a", "second")

	n, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, "second", n.Data)
	assert.Equal(t, 1, g.Len())
}

func TestGraph_DuplicateEdges(t *testing.T) {
	g := NewGraph[int]()
	g.AddNode("a", 0)
	g.AddNode("b", 0)
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "b"))

	assert.Equal(t, []string{"b"}, g.Children("a"))
	assert.Equal(t, []string{"a"}, g.Parents("b"))
}

func TestGraph_TopologicalSort_ParentsFirst(t *testing.T) {
	g := hierarchy(t)

	nodes, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, nodes, 5)

	pos := make(map[string]int)
	for i, n := range nodes {
		pos[n.ID] = i
	}
	assert.Less(t, pos["GrtObject"], pos["db.DatabaseObject"])
	assert.Less(t, pos["db.DatabaseObject"], pos["db.Table"])
	assert.Less(t, pos["db.DatabaseObject"], pos["db.View"])
	assert.Less(t, pos["GrtObject"], pos["db.Column"])
}

func TestGraph_HasCycle(t *testing.T) {
	g := hierarchy(t)
	has, _ := g.HasCycle()
	assert.False(t, has)

	g.AddNode("x", 0)
	g.AddNode("y", 0)
	require.NoError(t, g.AddEdge("x", "y"))
	require.NoError(t, g.AddEdge("y", "x"))

	has, path := g.HasCycle()
	assert.True(t, has)
	assert.Contains(t, path, "x")
	assert.Contains(t, path, "y")

	_, err := g.TopologicalSort()
	assert.ErrorContains(t, err, "cycle detected")
}

func TestGraph_AncestorsAndDescendants(t *testing.T) {
	g := hierarchy(t)

	assert.Equal(t, []string{"GrtObject", "db.DatabaseObject"}, g.Ancestors("db.Table"))
	assert.Equal(t, []string{"db.Column", "db.DatabaseObject", "db.Table", "db.View"}, g.Descendants("GrtObject"))
	assert.Empty(t, g.Descendants("db.Column"))
	assert.Equal(t, []string{"db.Table", "db.View"}, g.Children("db.DatabaseObject"))
}

func TestGraph_Roots(t *testing.T) {
	g := hierarchy(t)
	g.AddNode("app.Plugin", 0)

	assert.Equal(t, []string{"GrtObject", "app.Plugin"}, g.Roots())
}
