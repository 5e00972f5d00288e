package graphdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// poolFixture returns a pool of the given capacity over storage with n
// allocated record pages
func poolFixture(t *testing.T, capacity, pages int) (*BufferPool, *StorageManager) {
	t.Helper()
	sm, _ := newTestStorage(t, 64)
	for i := 0; i < pages; i++ {
		_, err := sm.AllocatePage()
		require.NoError(t, err)
	}
	bp, err := NewBufferPool(sm, capacity)
	require.NoError(t, err)
	return bp, sm
}

func TestBufferPoolRejectsZeroCapacity(t *testing.T) {
	sm, _ := newTestStorage(t, 64)
	_, err := NewBufferPool(sm, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBufferPoolCachesReads(t *testing.T) {
	bp, _ := poolFixture(t, 4, 2)

	data, err := bp.GetPage(1)
	require.NoError(t, err)
	assert.Len(t, data, 64)
	assert.Equal(t, 1, bp.Len())

	again, err := bp.GetPage(1)
	require.NoError(t, err)
	assert.Equal(t, data, again)
	assert.Equal(t, 1, bp.Len())
}

func TestBufferPoolEvictsLRU(t *testing.T) {
	bp, _ := poolFixture(t, 2, 3)

	_, err := bp.GetPage(1)
	require.NoError(t, err)
	_, err = bp.GetPage(2)
	require.NoError(t, err)

	// Touch 1 so 2 becomes the LRU entry
	_, err = bp.GetPage(1)
	require.NoError(t, err)

	_, err = bp.GetPage(3)
	require.NoError(t, err)

	assert.Equal(t, 2, bp.Len())
	assert.Contains(t, bp.pages, 1)
	assert.Contains(t, bp.pages, 3)
	assert.NotContains(t, bp.pages, 2)
}

func TestBufferPoolWriteThrough(t *testing.T) {
	bp, sm := poolFixture(t, 2, 1)

	payload := make([]byte, 64)
	copy(payload, "written")
	require.NoError(t, bp.WritePage(1, payload))

	// Storage sees the write immediately
	onDisk, err := sm.ReadPage(1)
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)

	// The cache serves the same bytes
	cached, err := bp.GetPage(1)
	require.NoError(t, err)
	assert.Equal(t, payload, cached)
}

func TestBufferPoolWriteEvictsAtCapacity(t *testing.T) {
	bp, _ := poolFixture(t, 1, 2)

	_, err := bp.GetPage(1)
	require.NoError(t, err)

	payload := make([]byte, 64)
	require.NoError(t, bp.WritePage(2, payload))

	assert.Equal(t, 1, bp.Len())
	assert.Contains(t, bp.pages, 2)
	assert.NotContains(t, bp.pages, 1)
}

func TestBufferPoolSingleSlot(t *testing.T) {
	bp, _ := poolFixture(t, 1, 3)

	for _, id := range []int{1, 2, 3, 2, 1} {
		data, err := bp.GetPage(id)
		require.NoError(t, err)
		assert.Len(t, data, 64)
		assert.Equal(t, 1, bp.Len())
	}
}

func TestBufferPoolClose(t *testing.T) {
	bp, _ := poolFixture(t, 2, 2)
	_, err := bp.GetPage(1)
	require.NoError(t, err)
	require.NoError(t, bp.Close())
	assert.Equal(t, 0, bp.Len())
}
