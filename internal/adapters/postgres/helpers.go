package postgres

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// executor picks the transaction when one is given and the pool otherwise
func executor(pool ports.DBTX, tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return pool
}

// isNoRows reports a lookup that found nothing
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// nullInt8 stores zero as NULL
func nullInt8(v int64) pgtype.Int8 {
	if v == 0 {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: v, Valid: true}
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// numeric converts a decimal to pgtype.Numeric
func numeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return n, fmt.Errorf("convert %s to numeric: %w", d, err)
	}
	return n, nil
}

// pgNumericToDecimal converts pgtype.Numeric to decimal.Decimal
func pgNumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	var dec decimal.Decimal
	str, err := n.MarshalJSON()
	if err != nil {
		return dec, fmt.Errorf("marshal numeric: %w", err)
	}
	// Remove quotes from JSON string
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	return decimal.NewFromString(string(str))
}

// definedValueColumns scans a LEFT JOINed defined_values row
type definedValueColumns struct {
	ID     pgtype.Int8
	GUID   pgtype.UUID
	Type   pgtype.Text
	Value  pgtype.Text
	Suffix pgtype.Text
}

func (c *definedValueColumns) targets() []any {
	return []any{&c.ID, &c.GUID, &c.Type, &c.Value, &c.Suffix}
}

// value returns nil when the join found no row
func (c *definedValueColumns) value() *domain.DefinedValue {
	if !c.ID.Valid {
		return nil
	}
	return &domain.DefinedValue{
		ID:              c.ID.Int64,
		GUID:            uuid.UUID(c.GUID.Bytes),
		Type:            domain.DefinedValueType(c.Type.String),
		Value:           c.Value.String,
		BatchNameSuffix: c.Suffix.String,
	}
}

func definedValueID(v *domain.DefinedValue) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{Valid: false}
	}
	return nullInt8(v.ID)
}
