package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentDetail describes the instrument behind a charge (NEVER full card/account numbers)
type PaymentDetail struct {
	CurrencyType            *DefinedValue `json:"currency_type,omitempty"`
	CreditCardType          *DefinedValue `json:"credit_card_type,omitempty"`
	AccountNumberMasked     string        `json:"account_number_masked,omitempty"`
	GatewayPersonIdentifier string        `json:"gateway_person_identifier,omitempty"`
	ExpirationMonth         int           `json:"expiration_month,omitempty"`
	ExpirationYear          int           `json:"expiration_year,omitempty"`
}

// SavedPaymentMethod is a tokenized payment method stored for a person
type SavedPaymentMethod struct {
	CreatedAt       time.Time     `json:"created_at"`
	Name            string        `json:"name"`
	ReferenceNumber string        `json:"reference_number"` // gateway token
	TransactionCode string        `json:"transaction_code"` // code of the transaction that produced the token
	PaymentDetail   PaymentDetail `json:"payment_detail"`
	ID              int64         `json:"id"`
	PersonID        int64         `json:"person_id"`
	IsDefault       bool          `json:"is_default"`
}

// GetDisplayName returns a human-readable display name for the payment method
func (pm *SavedPaymentMethod) GetDisplayName() string {
	brand := "Account"
	if pm.PaymentDetail.CreditCardType != nil {
		brand = pm.PaymentDetail.CreditCardType.Value
	} else if pm.PaymentDetail.CurrencyType != nil {
		brand = pm.PaymentDetail.CurrencyType.Value
	}
	if pm.PaymentDetail.AccountNumberMasked == "" {
		return brand
	}
	return brand + " " + pm.PaymentDetail.AccountNumberMasked
}

// ReferencePayment builds the info a gateway needs to charge this method again.
// Returns nil when the method carries nothing a gateway could charge against.
func (pm *SavedPaymentMethod) ReferencePayment() *ReferencePaymentInfo {
	if pm.ReferenceNumber == "" && pm.PaymentDetail.GatewayPersonIdentifier == "" {
		return nil
	}
	return &ReferencePaymentInfo{
		ReferenceNumber: pm.ReferenceNumber,
		TransactionCode: pm.TransactionCode,
		PaymentDetail:   pm.PaymentDetail,
	}
}

// ReferencePaymentInfo is what a gateway receives to charge a stored payment method.
// Amount and contact fields are filled in immediately before the charge.
type ReferencePaymentInfo struct {
	Amount          decimal.Decimal `json:"amount"`
	ReferenceNumber string          `json:"reference_number"`
	TransactionCode string          `json:"transaction_code,omitempty"`
	Email           string          `json:"email,omitempty"`
	FirstName       string          `json:"first_name,omitempty"`
	LastName        string          `json:"last_name,omitempty"`
	Comment1        string          `json:"comment1,omitempty"`
	PaymentDetail   PaymentDetail   `json:"payment_detail"`
}
