package graphdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphFixture wires a graph manager over an in-memory file
func graphFixture(t *testing.T) *GraphManager {
	t.Helper()
	sm, _ := newTestStorage(t, 4096)
	bp, err := NewBufferPool(sm, 16)
	require.NoError(t, err)
	return NewGraphManager(bp, NewIndexManager(), NewRecordManager(bp, 4096))
}

func TestGraphAddAndGetNode(t *testing.T) {
	gm := graphFixture(t)

	id, err := gm.AddNode(Node{
		Labels:     []string{"Person"},
		Properties: []Property{{Key: "name", Value: StringValue("Alice")}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	node, err := gm.GetNode(id)
	require.NoError(t, err)
	assert.True(t, node.Active)
	assert.Equal(t, []string{"Person"}, node.Labels)
	assert.Equal(t, []Property{{Key: "name", Value: StringValue("Alice")}}, node.Properties)
}

func TestGraphMonotonicIDs(t *testing.T) {
	gm := graphFixture(t)

	for want := int64(1); want <= 3; want++ {
		id, err := gm.AddNode(Node{Labels: []string{"Person"}})
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	// Edge counter is independent of the node counter
	for want := int64(1); want <= 2; want++ {
		id, err := gm.AddEdge(Edge{Type: "KNOWS", Source: 1, Target: 2})
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestGraphAddEdgeRequiresType(t *testing.T) {
	gm := graphFixture(t)
	_, err := gm.AddEdge(Edge{Source: 1, Target: 2})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGraphGetMissing(t *testing.T) {
	gm := graphFixture(t)
	_, err := gm.GetNode(99)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = gm.GetEdge(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGraphUpdateNodeMergesProperties(t *testing.T) {
	gm := graphFixture(t)
	id, err := gm.AddNode(Node{
		Labels: []string{"Person"},
		Properties: []Property{
			{Key: "name", Value: StringValue("Alice")},
			{Key: "age", Value: IntValue(30)},
		},
	})
	require.NoError(t, err)

	require.NoError(t, gm.UpdateNode(id, []Property{{Key: "age", Value: IntValue(31)}}))

	node, err := gm.GetNode(id)
	require.NoError(t, err)
	assert.Equal(t, []Property{
		{Key: "name", Value: StringValue("Alice")},
		{Key: "age", Value: IntValue(31)},
	}, node.Properties)
}

func TestGraphUpdateAppendsNewKeys(t *testing.T) {
	gm := graphFixture(t)
	id, err := gm.AddNode(Node{
		Labels:     []string{"Person"},
		Properties: []Property{{Key: "name", Value: StringValue("Alice")}},
	})
	require.NoError(t, err)

	require.NoError(t, gm.UpdateNode(id, []Property{{Key: "city", Value: StringValue("Berlin")}}))

	node, err := gm.GetNode(id)
	require.NoError(t, err)
	assert.Equal(t, []Property{
		{Key: "name", Value: StringValue("Alice")},
		{Key: "city", Value: StringValue("Berlin")},
	}, node.Properties)
}

func TestGraphUpdateWritesNewPage(t *testing.T) {
	gm := graphFixture(t)
	id, err := gm.AddNode(Node{Labels: []string{"Person"}})
	require.NoError(t, err)

	before, err := gm.indexManager.SearchNode(id)
	require.NoError(t, err)

	require.NoError(t, gm.UpdateNode(id, []Property{{Key: "age", Value: IntValue(1)}}))

	after, err := gm.indexManager.SearchNode(id)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestGraphDeleteNode(t *testing.T) {
	gm := graphFixture(t)
	id, err := gm.AddNode(Node{Labels: []string{"Person"}})
	require.NoError(t, err)

	require.NoError(t, gm.DeleteNode(id))

	_, err = gm.GetNode(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, gm.indexManager.NodesWithLabel("Person"))
	assert.ErrorIs(t, gm.DeleteNode(id), ErrNotFound)
}

func TestGraphDeleteNodeKeepsEdges(t *testing.T) {
	gm := graphFixture(t)
	a, err := gm.AddNode(Node{Labels: []string{"Person"}})
	require.NoError(t, err)
	b, err := gm.AddNode(Node{Labels: []string{"Person"}})
	require.NoError(t, err)
	edgeID, err := gm.AddEdge(Edge{Type: "KNOWS", Source: a, Target: b})
	require.NoError(t, err)

	require.NoError(t, gm.DeleteNode(a))

	// Edge visibility is independent of its endpoints
	edge, err := gm.GetEdge(edgeID)
	require.NoError(t, err)
	assert.Equal(t, a, edge.Source)
}

func TestGraphDeleteEdge(t *testing.T) {
	gm := graphFixture(t)
	id, err := gm.AddEdge(Edge{Type: "KNOWS", Source: 1, Target: 2})
	require.NoError(t, err)

	require.NoError(t, gm.DeleteEdge(id))
	_, err = gm.GetEdge(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGraphLabelSoundness(t *testing.T) {
	gm := graphFixture(t)
	a, err := gm.AddNode(Node{Labels: []string{"Person"}})
	require.NoError(t, err)
	b, err := gm.AddNode(Node{Labels: []string{"Person", "Admin"}})
	require.NoError(t, err)

	assert.Equal(t, []int64{a, b}, gm.indexManager.NodesWithLabel("Person"))
	assert.Equal(t, []int64{b}, gm.indexManager.NodesWithLabel("Admin"))

	for _, id := range gm.indexManager.NodesWithLabel("Person") {
		node, err := gm.GetNode(id)
		require.NoError(t, err)
		assert.True(t, node.Active)
		assert.Contains(t, node.Labels, "Person")
	}
}

func TestGraphCounts(t *testing.T) {
	gm := graphFixture(t)
	_, err := gm.AddNode(Node{Labels: []string{"Person"}})
	require.NoError(t, err)
	_, err = gm.AddNode(Node{Labels: []string{"Person"}})
	require.NoError(t, err)
	edgeID, err := gm.AddEdge(Edge{Type: "KNOWS", Source: 1, Target: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, gm.CountNodes())
	assert.Equal(t, 1, gm.CountEdges())

	require.NoError(t, gm.DeleteEdge(edgeID))
	assert.Equal(t, 0, gm.CountEdges())
}

func TestGraphEdgesOrderedByID(t *testing.T) {
	gm := graphFixture(t)
	for i := 0; i < 3; i++ {
		_, err := gm.AddEdge(Edge{Type: "KNOWS", Source: 1, Target: 2})
		require.NoError(t, err)
	}

	edges, err := gm.Edges()
	require.NoError(t, err)
	require.Len(t, edges, 3)
	for i, edge := range edges {
		assert.Equal(t, int64(i+1), edge.ID)
	}
}
