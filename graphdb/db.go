package graphdb

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// GraphDB is the embeddable database engine. It is single-writer and not
// safe for concurrent use; embedders must serialize calls externally.
type GraphDB struct {
	storage        *StorageManager
	bufferPool     *BufferPool
	indexMgr       *IndexManager
	recordMgr      *RecordManager
	graph          *GraphManager
	txnMgr         *TransactionManager
	wal            *WALManager
	executor       *Executor
	bufferCapacity int
}

// Open initializes an engine over the given file, creating it if absent. On
// an existing file the in-memory indexes are rebuilt by scanning every
// record page, so IDs and reachability survive a reopen.
func Open(fs afero.Fs, filename string, pageSize, bufferCapacity int) (*GraphDB, error) {
	storage, err := NewStorageManager(fs, filename, pageSize)
	if err != nil {
		return nil, err
	}

	bufferPool, err := NewBufferPool(storage, bufferCapacity)
	if err != nil {
		storage.Close()
		return nil, err
	}
	indexMgr := NewIndexManager()
	recordMgr := NewRecordManager(bufferPool, pageSize)
	wal := NewWALManager()
	graph := NewGraphManager(bufferPool, indexMgr, recordMgr)
	txnMgr := NewTransactionManager(wal)
	executor := NewExecutor(graph, txnMgr)

	if storage.NumPages() > 1 {
		if err := graph.Rebuild(); err != nil {
			storage.Close()
			return nil, fmt.Errorf("failed to rebuild indexes: %w", err)
		}
	}

	return &GraphDB{
		storage:        storage,
		bufferPool:     bufferPool,
		indexMgr:       indexMgr,
		recordMgr:      recordMgr,
		wal:            wal,
		graph:          graph,
		txnMgr:         txnMgr,
		executor:       executor,
		bufferCapacity: bufferCapacity,
	}, nil
}

// ExecuteQuery runs one query inside one transaction. On failure the
// transaction is aborted but operations already applied are retained; there
// is no rollback.
func (db *GraphDB) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	tokens, err := NewTokenizer(query).Tokenize()
	if err != nil {
		return nil, err
	}
	ast, err := NewParser(tokens).Parse()
	if err != nil {
		return nil, err
	}

	txnID := db.txnMgr.BeginTransaction()
	results, err := db.executor.Execute(txnID, ast)
	if err != nil {
		if abortErr := db.txnMgr.AbortTransaction(txnID); abortErr != nil {
			logrus.WithError(abortErr).WithField("txn_id", txnID).Error("Failed to abort transaction")
		}
		return nil, err
	}

	if err := db.txnMgr.CommitTransaction(txnID); err != nil {
		return nil, err
	}
	return results, nil
}

// Labels returns all labels with at least one live node, sorted
func (db *GraphDB) Labels() []string {
	return db.indexMgr.Labels()
}

// CountNodes returns the number of live nodes
func (db *GraphDB) CountNodes() int {
	return db.graph.CountNodes()
}

// CountEdges returns the number of live edges
func (db *GraphDB) CountEdges() int {
	return db.graph.CountEdges()
}

// Edges returns all live edges ordered by ID
func (db *GraphDB) Edges() ([]Edge, error) {
	return db.graph.Edges()
}

// PageSize returns the page size the file was opened with
func (db *GraphDB) PageSize() int {
	return db.storage.PageSize()
}

// BufferCapacity returns the buffer pool capacity in pages
func (db *GraphDB) BufferCapacity() int {
	return db.bufferCapacity
}

// Close shuts down the engine, flushing the file. Must be called exactly
// once per successful Open.
func (db *GraphDB) Close() error {
	if err := db.wal.Close(); err != nil {
		return err
	}
	if err := db.bufferPool.Close(); err != nil {
		return err
	}
	return db.storage.Close()
}
