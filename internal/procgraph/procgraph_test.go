package procgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelatedReturnsAdjacencyEntries(t *testing.T) {
	g := New(map[string][]string{"1.013133": {"1.013134", "1.013135"}})
	assert.Equal(t, []string{"1.013134", "1.013135"}, g.Related("1.013133"))
}

func TestRelatedReturnsNilForUnknownProcedure(t *testing.T) {
	g := New(map[string][]string{"1.013133": {"1.013134"}})
	assert.Nil(t, g.Related("unknown"))
}

func TestNilGraphIsNilSafe(t *testing.T) {
	var g *Graph
	assert.Nil(t, g.Related("anything"))
	assert.Equal(t, 0, g.Len())
}

func TestNewHandlesNilAdjacency(t *testing.T) {
	g := New(nil)
	assert.Equal(t, 0, g.Len())
	assert.Nil(t, g.Related("x"))
}
