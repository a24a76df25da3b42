package ports

import (
	"context"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionRepository persists charged transactions
type TransactionRepository interface {
	// Create inserts the transaction with its details and sets ID on both
	Create(ctx context.Context, tx DBTX, txn *domain.Transaction) error
}

// BatchRepository resolves and updates settlement batches.
// Inside a transaction, FindOrCreateOpen locks the returned batch row until commit.
type BatchRepository interface {
	// FindOrCreateOpen returns the open batch named key.Name whose window contains
	// key.TransactionTime, creating it when none exists. created reports a new batch.
	FindOrCreateOpen(ctx context.Context, tx DBTX, key domain.BatchKey) (batch *domain.Batch, created bool, err error)
	// AddToControlAmount atomically adds amount and returns the totals around the update
	AddToControlAmount(ctx context.Context, tx DBTX, batchID int64, amount decimal.Decimal) (before, after decimal.Decimal, err error)
}

// AttributeRepository stores extended attribute values for transactions
type AttributeRepository interface {
	SaveTransactionAttributes(ctx context.Context, tx DBTX, transactionID int64, values map[string]string) error
}

// HistoryRepository stores audit entries
type HistoryRepository interface {
	SaveChanges(ctx context.Context, tx DBTX, entityType string, entityID int64, changes domain.HistoryChangeList) error
}
