package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the gateway-reported outcome stored with the transaction
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusPending TransactionStatus = "pending"
)

// TransactionDetail allocates part of a transaction to one account
type TransactionDetail struct {
	Amount        decimal.Decimal `json:"amount"`
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	AccountID     int64           `json:"account_id"`
}

// Transaction is the ledger record of money moved by a gateway
type Transaction struct {
	TransactionDateTime     time.Time           `json:"transaction_date_time"`
	Attributes              map[string]string   `json:"attributes,omitempty"`
	TransactionCode         string              `json:"transaction_code"` // gateway reference
	Summary                 string              `json:"summary,omitempty"`
	Status                  TransactionStatus   `json:"status,omitempty"`
	StatusMessage           string              `json:"status_message,omitempty"`
	Details                 []TransactionDetail `json:"details"`
	PaymentDetail           PaymentDetail       `json:"payment_detail"`
	ID                      int64               `json:"id"`
	AuthorizedPersonAliasID int64               `json:"authorized_person_alias_id"`
	GatewayID               int64               `json:"gateway_id"`
	TransactionTypeValueID  int64               `json:"transaction_type_value_id"`
	SourceTypeValueID       int64               `json:"source_type_value_id"`
	BatchID                 int64               `json:"batch_id"`
	GUID                    uuid.UUID           `json:"guid"`
	ShowAsAnonymous         bool                `json:"show_as_anonymous"`
}

// TotalAmount sums the transaction's details
func (t *Transaction) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, d := range t.Details {
		total = total.Add(d.Amount)
	}
	return total
}

// SetAttribute records an extended attribute value
func (t *Transaction) SetAttribute(key, value string) {
	if t.Attributes == nil {
		t.Attributes = make(map[string]string)
	}
	t.Attributes[key] = value
}
