package graphdb

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// OperationType defines the kinds of logged operations
type OperationType int

const (
	OpAddNode OperationType = iota
	OpAddEdge
	OpUpdateNode
	OpUpdateEdge
	OpDeleteNode
	OpDeleteEdge
)

// TransactionOperation records one applied mutation. For updates, Properties
// carries the patch.
type TransactionOperation struct {
	Type       OperationType
	NodeID     int64
	EdgeID     int64
	Properties []Property
}

// walEntry is one encoded frame of the log
type walEntry struct {
	txnID int64
	data  []byte
}

// WALManager keeps an in-memory redo log of applied operations. Each entry is
// msgpack-encoded on append, so the frames could be spilled to a durable log
// unchanged. The log observes outcomes: operations are applied to the graph
// before they are logged, and commit discards the transaction's frames.
type WALManager struct {
	entries []walEntry
}

// NewWALManager initializes a new WALManager
func NewWALManager() *WALManager {
	log := logrus.WithField("component", "WALManager")
	log.Info("Initializing WALManager (in-memory)")
	return &WALManager{}
}

// LogOperation encodes and appends an operation for a transaction
func (wm *WALManager) LogOperation(txnID int64, op TransactionOperation) error {
	log := logrus.WithFields(logrus.Fields{
		"component": "WALManager",
		"txn_id":    txnID,
		"op_type":   op.Type,
		"node_id":   op.NodeID,
		"edge_id":   op.EdgeID,
	})
	data, err := msgpack.Marshal(op)
	if err != nil {
		log.WithError(err).Error("Failed to encode operation")
		return fmt.Errorf("failed to encode operation: %w", err)
	}
	wm.entries = append(wm.entries, walEntry{txnID: txnID, data: data})
	log.Debug("Operation logged in memory")
	return nil
}

// Commit drops all frames belonging to a transaction
func (wm *WALManager) Commit(txnID int64) error {
	log := logrus.WithFields(logrus.Fields{
		"component": "WALManager",
		"txn_id":    txnID,
	})
	wm.discard(txnID)
	log.Debug("Transaction frames cleared")
	return nil
}

// Discard removes a transaction's frames without committing. Used when a
// query fails mid-transaction; the applied operations themselves are not
// undone.
func (wm *WALManager) Discard(txnID int64) {
	wm.discard(txnID)
	logrus.WithFields(logrus.Fields{
		"component": "WALManager",
		"txn_id":    txnID,
	}).Debug("Transaction frames discarded")
}

func (wm *WALManager) discard(txnID int64) {
	kept := wm.entries[:0]
	for _, e := range wm.entries {
		if e.txnID != txnID {
			kept = append(kept, e)
		}
	}
	wm.entries = kept
}

// Operations decodes the logged frames for a transaction, in append order
func (wm *WALManager) Operations(txnID int64) ([]TransactionOperation, error) {
	var ops []TransactionOperation
	for _, e := range wm.entries {
		if e.txnID != txnID {
			continue
		}
		var op TransactionOperation
		if err := msgpack.Unmarshal(e.data, &op); err != nil {
			return nil, fmt.Errorf("failed to decode operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Len returns the number of frames currently in the log
func (wm *WALManager) Len() int {
	return len(wm.entries)
}

// Close drops the log
func (wm *WALManager) Close() error {
	log := logrus.WithField("component", "WALManager")
	wm.entries = nil
	log.Info("WALManager closed")
	return nil
}
