package graphdb

import (
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageInitializesHeader(t *testing.T) {
	sm, fs := newTestStorage(t, 4096)
	assert.Equal(t, 1, sm.NumPages())
	require.NoError(t, sm.Close())

	data, err := afero.ReadFile(fs, "test.db")
	require.NoError(t, err)
	require.Len(t, data, 4096)
	assert.Equal(t, []byte("GDB\000"), data[0:4])
	assert.Equal(t, uint32(4096), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[8:12]))
}

func TestStorageReopenDerivesPageCount(t *testing.T) {
	fs := afero.NewMemMapFs()
	sm, err := NewStorageManager(fs, "test.db", 4096)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := sm.AllocatePage()
		require.NoError(t, err)
	}
	require.NoError(t, sm.Close())

	sm, err = NewStorageManager(fs, "test.db", 4096)
	require.NoError(t, err)
	assert.Equal(t, 4, sm.NumPages())
	require.NoError(t, sm.Close())
}

func TestStorageRejectsMisalignedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "test.db", make([]byte, 100), 0666))

	_, err := NewStorageManager(fs, "test.db", 4096)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStorageRejectsBadMagic(t *testing.T) {
	fs := afero.NewMemMapFs()
	junk := make([]byte, 4096)
	copy(junk, "NOPE")
	require.NoError(t, afero.WriteFile(fs, "test.db", junk, 0666))

	_, err := NewStorageManager(fs, "test.db", 4096)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestStorageRejectsPageSizeMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	sm, err := NewStorageManager(fs, "test.db", 4096)
	require.NoError(t, err)
	require.NoError(t, sm.Close())

	_, err = NewStorageManager(fs, "test.db", 8192)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStorageReadWriteBounds(t *testing.T) {
	sm, _ := newTestStorage(t, 4096)
	defer sm.Close()

	_, err := sm.ReadPage(-1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = sm.ReadPage(1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = sm.WritePage(0, make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	err = sm.WritePage(5, make([]byte, 4096))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStorageAllocatePersistsPageCount(t *testing.T) {
	sm, fs := newTestStorage(t, 4096)
	pageID, err := sm.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, 1, pageID)
	assert.Equal(t, 2, sm.NumPages())

	payload := make([]byte, 4096)
	copy(payload, "hello")
	require.NoError(t, sm.WritePage(pageID, payload))

	got, err := sm.ReadPage(pageID)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NoError(t, sm.Close())

	data, err := afero.ReadFile(fs, "test.db")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[8:12]))
}
