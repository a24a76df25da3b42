package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
)

// AttributeRepository stores extended transaction attributes
type AttributeRepository struct {
	db ports.DBTX
}

var _ ports.AttributeRepository = (*AttributeRepository)(nil)

func NewAttributeRepository(db ports.DBTX) *AttributeRepository {
	return &AttributeRepository{db: db}
}

const upsertAttributeValue = `
INSERT INTO transaction_attribute_values (transaction_id, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (transaction_id, key) DO UPDATE SET value = EXCLUDED.value`

// SaveTransactionAttributes upserts each value; keys are written in sorted order
func (r *AttributeRepository) SaveTransactionAttributes(ctx context.Context, tx ports.DBTX, transactionID int64, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := executor(r.db, tx)
	for _, k := range keys {
		if _, err := q.Exec(ctx, upsertAttributeValue, transactionID, k, values[k]); err != nil {
			return fmt.Errorf("save attribute %s for transaction %d: %w", k, transactionID, err)
		}
	}
	return nil
}

// HistoryRepository appends audit entries
type HistoryRepository struct {
	db ports.DBTX
}

var _ ports.HistoryRepository = (*HistoryRepository)(nil)

func NewHistoryRepository(db ports.DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const insertHistory = `
INSERT INTO history (entity_type, entity_id, verb, change_type, caption, old_value, new_value)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (r *HistoryRepository) SaveChanges(ctx context.Context, tx ports.DBTX, entityType string, entityID int64, changes domain.HistoryChangeList) error {
	q := executor(r.db, tx)
	for _, c := range changes {
		_, err := q.Exec(ctx, insertHistory,
			entityType, entityID, string(c.Verb), string(c.ChangeType), c.Caption, c.OldValue, c.NewValue,
		)
		if err != nil {
			return fmt.Errorf("save history %q for %s %d: %w", c.Caption, entityType, entityID, err)
		}
	}
	return nil
}
