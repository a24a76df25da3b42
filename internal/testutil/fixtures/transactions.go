package fixtures

import (
	"time"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionBuilder provides fluent API for building gateway results and seeded history.
type TransactionBuilder struct {
	transaction *domain.Transaction
}

// NewTransaction creates an approved gateway transaction with the given gateway code.
func NewTransaction(code string) *TransactionBuilder {
	return &TransactionBuilder{
		transaction: &domain.Transaction{
			TransactionCode: code,
			Status:          domain.TransactionStatusSuccess,
		},
	}
}

func (b *TransactionBuilder) WithAuthorizedAlias(aliasID int64) *TransactionBuilder {
	b.transaction.AuthorizedPersonAliasID = aliasID
	return b
}

func (b *TransactionBuilder) At(t time.Time) *TransactionBuilder {
	b.transaction.TransactionDateTime = t
	return b
}

func (b *TransactionBuilder) WithAttribute(key, value string) *TransactionBuilder {
	b.transaction.SetAttribute(key, value)
	return b
}

// WithGatewayDetail sets a breakdown the gateway itself reported.
func (b *TransactionBuilder) WithGatewayDetail(accountID int64, amount decimal.Decimal) *TransactionBuilder {
	b.transaction.Details = append(b.transaction.Details, domain.TransactionDetail{
		AccountID: accountID,
		Amount:    amount,
	})
	return b
}

func (b *TransactionBuilder) Build() *domain.Transaction {
	t := *b.transaction
	if b.transaction.Attributes != nil {
		t.Attributes = make(map[string]string, len(b.transaction.Attributes))
		for k, v := range b.transaction.Attributes {
			t.Attributes[k] = v
		}
	}
	t.Details = append([]domain.TransactionDetail(nil), b.transaction.Details...)
	return &t
}
