package graphdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeNodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{
			name: "full node",
			node: Node{
				ID:     7,
				Labels: []string{"Person", "Admin"},
				Properties: []Property{
					{Key: "name", Value: StringValue("Alice")},
					{Key: "age", Value: IntValue(30)},
					{Key: "active", Value: BoolValue(true)},
				},
				Active: true,
			},
		},
		{
			name: "empty labels and properties",
			node: Node{ID: 1, Active: true},
		},
		{
			name: "inactive node",
			node: Node{ID: 2, Labels: []string{"Ghost"}, Active: false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Serialize(tt.node)
			require.NoError(t, err)
			require.Equal(t, byte(1), data[0])

			var got Node
			require.NoError(t, Deserialize(data, &got))
			assert.Equal(t, tt.node, got)
		})
	}
}

func TestSerializeEdgeRoundTrip(t *testing.T) {
	edge := Edge{
		ID:     3,
		Type:   "KNOWS",
		Source: 1,
		Target: 2,
		Properties: []Property{
			{Key: "since", Value: IntValue(2020)},
			{Key: "weight", Value: StringValue("strong")},
			{Key: "mutual", Value: BoolValue(false)},
		},
		Active: true,
	}
	data, err := Serialize(edge)
	require.NoError(t, err)

	var got Edge
	require.NoError(t, Deserialize(data, &got))
	assert.Equal(t, edge, got)
}

func TestSerializeSelfLoopEdge(t *testing.T) {
	edge := Edge{ID: 1, Type: "LINKS", Source: 5, Target: 5, Active: true}
	data, err := Serialize(edge)
	require.NoError(t, err)

	var got Edge
	require.NoError(t, Deserialize(data, &got))
	assert.Equal(t, edge, got)
}

func TestSerializeRejectsUnsupportedType(t *testing.T) {
	_, err := Serialize("not a record")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDeserializeRejectsUnknownVersion(t *testing.T) {
	data, err := Serialize(Node{ID: 1, Active: true})
	require.NoError(t, err)
	data[0] = 9

	var got Node
	err = Deserialize(data, &got)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDeserializeRejectsTruncation(t *testing.T) {
	node := Node{
		ID:     1,
		Labels: []string{"Person"},
		Properties: []Property{
			{Key: "name", Value: StringValue("Alice")},
		},
		Active: true,
	}
	data, err := Serialize(node)
	require.NoError(t, err)

	// Every prefix of the record must fail, never panic or succeed
	for cut := 0; cut < len(data); cut++ {
		var got Node
		err := Deserialize(data[:cut], &got)
		assert.ErrorIs(t, err, ErrMalformed, "truncated at %d", cut)
	}
}

func TestDeserializeRejectsOverlongLength(t *testing.T) {
	data, err := Serialize(Node{ID: 1, Labels: []string{"Person"}, Active: true})
	require.NoError(t, err)

	// Corrupt the label length field (follows version, id, active, labelCount)
	data[14] = 0xFF
	data[15] = 0xFF

	var got Node
	err = Deserialize(data, &got)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDeserializeEmptyBuffer(t *testing.T) {
	var got Node
	assert.ErrorIs(t, Deserialize(nil, &got), ErrMalformed)
}

func TestValueEquality(t *testing.T) {
	assert.True(t, IntValue(5).Equal(IntValue(5)))
	assert.False(t, IntValue(5).Equal(IntValue(6)))
	assert.False(t, IntValue(1).Equal(BoolValue(true)))
	assert.True(t, StringValue("a").Equal(StringValue("a")))
	assert.False(t, StringValue("a").Equal(StringValue("b")))
	assert.True(t, BoolValue(false).Equal(BoolValue(false)))
	assert.False(t, BoolValue(false).Equal(BoolValue(true)))
}
