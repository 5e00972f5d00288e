package graphdb

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// TransactionManager assigns transaction IDs and tracks the operations
// recorded under each open transaction
type TransactionManager struct {
	nextTxnID  int64
	operations map[int64][]TransactionOperation
	wal        *WALManager
}

// NewTransactionManager initializes a new TransactionManager
func NewTransactionManager(wal *WALManager) *TransactionManager {
	log := logrus.WithField("component", "TransactionManager")
	log.Info("Initializing TransactionManager")
	return &TransactionManager{
		nextTxnID:  1,
		operations: make(map[int64][]TransactionOperation),
		wal:        wal,
	}
}

// BeginTransaction starts a new transaction and returns its ID
func (tm *TransactionManager) BeginTransaction() int64 {
	txnID := tm.nextTxnID
	tm.nextTxnID++
	tm.operations[txnID] = []TransactionOperation{}
	logrus.WithField("txn_id", txnID).Info("Transaction started")
	return txnID
}

// RecordOperation logs an applied operation for a transaction
func (tm *TransactionManager) RecordOperation(txnID int64, op TransactionOperation) error {
	log := logrus.WithFields(logrus.Fields{
		"txn_id":  txnID,
		"op_type": op.Type,
	})
	if _, exists := tm.operations[txnID]; !exists {
		log.Error("Transaction not found")
		return fmt.Errorf("%w: transaction %d", ErrUnknownTxn, txnID)
	}
	tm.operations[txnID] = append(tm.operations[txnID], op)
	if err := tm.wal.LogOperation(txnID, op); err != nil {
		log.WithError(err).Error("Failed to log operation to WAL")
		return fmt.Errorf("failed to log operation to WAL: %w", err)
	}
	log.Debug("Operation recorded")
	return nil
}

// CommitTransaction commits a transaction, clearing its log entries
func (tm *TransactionManager) CommitTransaction(txnID int64) error {
	log := logrus.WithField("txn_id", txnID)
	if _, exists := tm.operations[txnID]; !exists {
		log.Error("Transaction not found for commit")
		return fmt.Errorf("%w: transaction %d", ErrUnknownTxn, txnID)
	}
	if err := tm.wal.Commit(txnID); err != nil {
		log.WithError(err).Error("Failed to commit WAL")
		return fmt.Errorf("failed to commit WAL: %w", err)
	}
	delete(tm.operations, txnID)
	log.Info("Transaction committed")
	return nil
}

// AbortTransaction drops a failed transaction's bookkeeping. Operations
// already applied to the graph stay applied; there is no rollback path.
func (tm *TransactionManager) AbortTransaction(txnID int64) error {
	log := logrus.WithField("txn_id", txnID)
	if _, exists := tm.operations[txnID]; !exists {
		log.Error("Transaction not found for abort")
		return fmt.Errorf("%w: transaction %d", ErrUnknownTxn, txnID)
	}
	tm.wal.Discard(txnID)
	delete(tm.operations, txnID)
	log.Warn("Transaction aborted; applied operations retained")
	return nil
}
