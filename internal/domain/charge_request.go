package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem allocates part of a charge to one financial account
type LineItem struct {
	Amount    decimal.Decimal `json:"amount"`
	AccountID int64           `json:"account_id"`
}

// ChargeRequest describes one automated charge against a payer's saved payment method.
// Optional fields left nil or empty fall back to the processor's configured defaults.
type ChargeRequest struct {
	TransactionTypeGUID  *uuid.UUID `json:"transaction_type_guid,omitempty"`
	SourceTypeGUID       *uuid.UUID `json:"source_type_guid,omitempty"`
	SavedPaymentMethodID *int64     `json:"saved_payment_method_id,omitempty"`
	BatchNamePrefix      string     `json:"batch_name_prefix,omitempty"`
	Memo                 string     `json:"memo,omitempty"`
	LineItems            []LineItem `json:"line_items"`
	PayerAliasID         int64      `json:"payer_alias_id"`
	GatewayID            int64      `json:"gateway_id"`
	ShowAsAnonymous      bool       `json:"show_as_anonymous"`
	SkipDuplicateGuard   bool       `json:"skip_duplicate_guard"`
}

// TotalAmount sums every line item
func (r ChargeRequest) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.LineItems {
		total = total.Add(item.Amount)
	}
	return total
}

// AccountIDs returns the distinct account ids in first-seen order
func (r ChargeRequest) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(r.LineItems))
	ids := make([]int64, 0, len(r.LineItems))
	for _, item := range r.LineItems {
		if _, ok := seen[item.AccountID]; ok {
			continue
		}
		seen[item.AccountID] = struct{}{}
		ids = append(ids, item.AccountID)
	}
	return ids
}

// Clone returns a copy that shares no mutable state with r
func (r ChargeRequest) Clone() ChargeRequest {
	out := r
	out.LineItems = append([]LineItem(nil), r.LineItems...)
	if r.SavedPaymentMethodID != nil {
		id := *r.SavedPaymentMethodID
		out.SavedPaymentMethodID = &id
	}
	if r.TransactionTypeGUID != nil {
		g := *r.TransactionTypeGUID
		out.TransactionTypeGUID = &g
	}
	if r.SourceTypeGUID != nil {
		g := *r.SourceTypeGUID
		out.SourceTypeGUID = &g
	}
	return out
}
