package graphdb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordFixture builds a record manager over an in-memory file
func recordFixture(t *testing.T, pageSize int) *RecordManager {
	t.Helper()
	sm, _ := newTestStorage(t, pageSize)
	bp, err := NewBufferPool(sm, 4)
	require.NoError(t, err)
	return NewRecordManager(bp, pageSize)
}

func TestRecordWriteRead(t *testing.T) {
	rm := recordFixture(t, 4096)
	node := Node{
		Labels:     []string{"Person"},
		Properties: []Property{{Key: "name", Value: StringValue("Alice")}},
		Active:     true,
	}

	pageID, err := rm.WriteRecord(node)
	require.NoError(t, err)
	assert.Equal(t, 1, pageID)

	var got Node
	require.NoError(t, rm.ReadRecord(pageID, &got))
	assert.Equal(t, node, got)
}

func TestRecordEveryWriteAllocates(t *testing.T) {
	rm := recordFixture(t, 4096)
	node := Node{ID: 1, Active: true}

	first, err := rm.WriteRecord(node)
	require.NoError(t, err)
	second, err := rm.WriteRecord(node)
	require.NoError(t, err)

	assert.Equal(t, first+1, second)
}

func TestRecordExactPageSizeFits(t *testing.T) {
	node := Node{
		ID:         1,
		Labels:     []string{"Person"},
		Properties: []Property{{Key: "bio", Value: StringValue(strings.Repeat("x", 20))}},
		Active:     true,
	}
	data, err := Serialize(node)
	require.NoError(t, err)

	rm := recordFixture(t, len(data))
	pageID, err := rm.WriteRecord(node)
	require.NoError(t, err)

	var got Node
	require.NoError(t, rm.ReadRecord(pageID, &got))
	assert.Equal(t, node, got)
}

func TestRecordTooLargeForPage(t *testing.T) {
	node := Node{
		ID:         1,
		Labels:     []string{"Person"},
		Properties: []Property{{Key: "bio", Value: StringValue(strings.Repeat("x", 20))}},
		Active:     true,
	}
	data, err := Serialize(node)
	require.NoError(t, err)

	rm := recordFixture(t, len(data)-1)
	_, err = rm.WriteRecord(node)
	assert.ErrorIs(t, err, ErrRecordTooLarge)
}
