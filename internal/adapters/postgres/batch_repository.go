package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// BatchRepository finds, opens and totals settlement batches
type BatchRepository struct {
	db      ports.DBTX
	newGUID func() uuid.UUID
}

var _ ports.BatchRepository = (*BatchRepository)(nil)

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db ports.DBTX) *BatchRepository {
	return &BatchRepository{db: db, newGUID: uuid.New}
}

const batchColumns = `id, guid, name, status, batch_start_date_time, batch_end_date_time, control_amount`

const selectOpenBatchForUpdate = `
SELECT ` + batchColumns + `
FROM batches
WHERE name = $1
  AND status = 'open'
  AND batch_start_date_time <= $2
  AND batch_end_date_time > $2
ORDER BY id
LIMIT 1
FOR UPDATE`

// The partial unique index makes concurrent creators converge on one row
const insertOpenBatch = `
INSERT INTO batches (guid, name, status, batch_start_date_time, batch_end_date_time, control_amount)
VALUES ($1, $2, 'open', $3, $4, 0)
ON CONFLICT (name, batch_start_date_time) WHERE status = 'open' DO NOTHING
RETURNING ` + batchColumns

const addToControlAmount = `
UPDATE batches
SET control_amount = control_amount + $2
WHERE id = $1
RETURNING control_amount - $2, control_amount`

// FindOrCreateOpen locks the open batch for key, inserting it first when missing.
// When a concurrent insert wins the race the winner's row is selected and locked instead.
func (r *BatchRepository) FindOrCreateOpen(ctx context.Context, tx ports.DBTX, key domain.BatchKey) (*domain.Batch, bool, error) {
	q := executor(r.db, tx)
	at := key.TransactionTime.UTC()

	batch, err := scanBatch(q.QueryRow(ctx, selectOpenBatchForUpdate, key.Name, at))
	if err == nil {
		return batch, false, nil
	}
	if !isNoRows(err) {
		return nil, false, fmt.Errorf("select open batch %q: %w", key.Name, err)
	}

	fresh := domain.NewOpenBatch(key, r.newGUID())
	batch, err = scanBatch(q.QueryRow(ctx, insertOpenBatch,
		pgUUID(fresh.GUID), fresh.Name, fresh.BatchStartDateTime, fresh.BatchEndDateTime,
	))
	if err == nil {
		return batch, true, nil
	}
	if !isNoRows(err) {
		return nil, false, fmt.Errorf("insert open batch %q: %w", key.Name, err)
	}

	batch, err = scanBatch(q.QueryRow(ctx, selectOpenBatchForUpdate, key.Name, at))
	if err != nil {
		return nil, false, fmt.Errorf("select open batch %q after conflict: %w", key.Name, err)
	}
	return batch, false, nil
}

// AddToControlAmount increments the control amount in a single statement
func (r *BatchRepository) AddToControlAmount(ctx context.Context, tx ports.DBTX, batchID int64, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	delta, err := numeric(amount)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	var before, after pgtype.Numeric
	if err := executor(r.db, tx).QueryRow(ctx, addToControlAmount, batchID, delta).Scan(&before, &after); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("add to control amount of batch %d: %w", batchID, err)
	}

	b, err := pgNumericToDecimal(before)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	a, err := pgNumericToDecimal(after)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return b, a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*domain.Batch, error) {
	var (
		b       domain.Batch
		guid    pgtype.UUID
		status  string
		control pgtype.Numeric
	)
	if err := row.Scan(&b.ID, &guid, &b.Name, &status, &b.BatchStartDateTime, &b.BatchEndDateTime, &control); err != nil {
		return nil, err
	}
	amount, err := pgNumericToDecimal(control)
	if err != nil {
		return nil, err
	}
	b.GUID = uuid.UUID(guid.Bytes)
	b.Status = domain.BatchStatus(status)
	b.ControlAmount = amount
	b.BatchStartDateTime = b.BatchStartDateTime.UTC()
	b.BatchEndDateTime = b.BatchEndDateTime.UTC()
	return &b, nil
}
