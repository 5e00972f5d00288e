package graphdb

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.ErrorLevel)
	os.Exit(m.Run())
}

// newTestStorage builds a StorageManager over an in-memory filesystem
func newTestStorage(t *testing.T, pageSize int) (*StorageManager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	sm, err := NewStorageManager(fs, "test.db", pageSize)
	require.NoError(t, err)
	return sm, fs
}

// newTestDB opens an engine over an in-memory filesystem
func newTestDB(t *testing.T) *GraphDB {
	t.Helper()
	db, err := Open(afero.NewMemMapFs(), "test.db", 4096, 100)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
