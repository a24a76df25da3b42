package fixtures

import (
	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/internal/domain"
)

// ChargeRequestBuilder provides fluent API for building charge requests.
type ChargeRequestBuilder struct {
	req domain.ChargeRequest
}

// NewChargeRequest creates a request for the payer alias against the gateway.
func NewChargeRequest(payerAliasID, gatewayID int64) *ChargeRequestBuilder {
	return &ChargeRequestBuilder{
		req: domain.ChargeRequest{
			PayerAliasID: payerAliasID,
			GatewayID:    gatewayID,
		},
	}
}

// WithItem appends a line item; amount is a decimal literal such as "25.00".
func (b *ChargeRequestBuilder) WithItem(accountID int64, amount string) *ChargeRequestBuilder {
	b.req.LineItems = append(b.req.LineItems, domain.LineItem{
		AccountID: accountID,
		Amount:    Dollars(amount),
	})
	return b
}

func (b *ChargeRequestBuilder) WithSavedPaymentMethod(id int64) *ChargeRequestBuilder {
	b.req.SavedPaymentMethodID = Int64Ptr(id)
	return b
}

func (b *ChargeRequestBuilder) WithTransactionType(guid uuid.UUID) *ChargeRequestBuilder {
	b.req.TransactionTypeGUID = UUIDPtr(guid)
	return b
}

func (b *ChargeRequestBuilder) WithBatchNamePrefix(prefix string) *ChargeRequestBuilder {
	b.req.BatchNamePrefix = prefix
	return b
}

func (b *ChargeRequestBuilder) WithMemo(memo string) *ChargeRequestBuilder {
	b.req.Memo = memo
	return b
}

func (b *ChargeRequestBuilder) Anonymous() *ChargeRequestBuilder {
	b.req.ShowAsAnonymous = true
	return b
}

func (b *ChargeRequestBuilder) SkipDuplicateGuard() *ChargeRequestBuilder {
	b.req.SkipDuplicateGuard = true
	return b
}

func (b *ChargeRequestBuilder) Build() domain.ChargeRequest {
	return b.req.Clone()
}
