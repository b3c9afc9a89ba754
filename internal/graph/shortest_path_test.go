package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clique-labs/graphproxy/internal/cypher"
)

func TestReconstructPathOrdersSourceToDestination(t *testing.T) {
	src := cypher.NewInner([]string{"Person"}, []cypher.Property{{Key: "name", Value: "src"}})
	mid := cypher.NewInner([]string{"Person"}, []cypher.Property{{Key: "name", Value: "mid"}})
	dst := cypher.NewInner([]string{"Person"}, []cypher.Property{{Key: "name", Value: "dst"}})

	visited := map[string]hop{
		"src": {inner: src, prev: ""},
		"mid": {inner: mid, prev: "src"},
		"dst": {inner: dst, prev: "mid"},
	}

	path := reconstructPath(visited, "dst")
	assert.Len(t, path, 3)

	name := func(in cypher.Inner) string {
		v, _ := in.Get("name")
		return v
	}
	assert.Equal(t, []string{"src", "mid", "dst"}, []string{name(path[0]), name(path[1]), name(path[2])})
}

func TestReconstructPathSingleNodeWhenSourceIsDestination(t *testing.T) {
	src := cypher.NewInner([]string{"Person"}, []cypher.Property{{Key: "name", Value: "src"}})
	visited := map[string]hop{"src": {inner: src, prev: ""}}

	path := reconstructPath(visited, "src")
	require := assert.New(t)
	require.Len(path, 1)
	name, _ := path[0].Get("name")
	require.Equal("src", name)
}

func TestReconstructPathEmptyWhenDestinationUnvisited(t *testing.T) {
	visited := map[string]hop{}
	path := reconstructPath(visited, "unknown")
	assert.Empty(t, path)
}
