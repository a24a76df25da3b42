package postgres

import (
	"context"
	"fmt"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
)

// TransactionRepository writes charged transactions and their details
type TransactionRepository struct {
	db ports.DBTX
}

var _ ports.TransactionRepository = (*TransactionRepository)(nil)

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db ports.DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const insertTransaction = `
INSERT INTO transactions (
    guid, transaction_code, authorized_person_alias_id, show_as_anonymous,
    transaction_date_time, gateway_id, transaction_type_value_id, source_type_value_id,
    batch_id, summary, status, status_message,
    currency_type_value_id, credit_card_type_value_id, account_number_masked,
    gateway_person_identifier, expiration_month, expiration_year
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING id`

const insertTransactionDetail = `
INSERT INTO transaction_details (transaction_id, account_id, amount)
VALUES ($1, $2, $3)
RETURNING id`

// Create inserts the transaction and each detail. Call it inside a transaction so
// the details never exist without their parent.
func (r *TransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *domain.Transaction) error {
	q := executor(r.db, tx)
	pd := txn.PaymentDetail

	err := q.QueryRow(ctx, insertTransaction,
		pgUUID(txn.GUID),
		txn.TransactionCode,
		txn.AuthorizedPersonAliasID,
		txn.ShowAsAnonymous,
		txn.TransactionDateTime.UTC(),
		txn.GatewayID,
		txn.TransactionTypeValueID,
		txn.SourceTypeValueID,
		txn.BatchID,
		txn.Summary,
		string(txn.Status),
		txn.StatusMessage,
		definedValueID(pd.CurrencyType),
		definedValueID(pd.CreditCardType),
		pd.AccountNumberMasked,
		pd.GatewayPersonIdentifier,
		int32(pd.ExpirationMonth),
		int32(pd.ExpirationYear),
	).Scan(&txn.ID)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", txn.TransactionCode, err)
	}

	for i := range txn.Details {
		d := &txn.Details[i]
		amount, err := numeric(d.Amount)
		if err != nil {
			return err
		}
		d.TransactionID = txn.ID
		if err := q.QueryRow(ctx, insertTransactionDetail, txn.ID, d.AccountID, amount).Scan(&d.ID); err != nil {
			return fmt.Errorf("insert transaction detail for account %d: %w", d.AccountID, err)
		}
	}

	return nil
}
