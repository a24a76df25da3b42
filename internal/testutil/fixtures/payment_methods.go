package fixtures

import (
	"strconv"
	"time"

	"github.com/kevin07696/automated-charge/internal/domain"
)

// SavedPaymentMethodBuilder provides fluent API for building test saved payment methods.
type SavedPaymentMethodBuilder struct {
	method *domain.SavedPaymentMethod
}

// NewSavedCard creates a saved Visa card owned by personID.
func NewSavedCard(id, personID int64) *SavedPaymentMethodBuilder {
	return &SavedPaymentMethodBuilder{
		method: &domain.SavedPaymentMethod{
			ID:              id,
			PersonID:        personID,
			Name:            "My Visa",
			ReferenceNumber: "ref_" + strconv.FormatInt(id, 10),
			TransactionCode: "T100",
			CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			PaymentDetail: domain.PaymentDetail{
				CurrencyType:        CreditCardCurrency(),
				CreditCardType:      VisaCardType(),
				AccountNumberMasked: "************4242",
				ExpirationMonth:     12,
				ExpirationYear:      2030,
			},
		},
	}
}

func (b *SavedPaymentMethodBuilder) Default() *SavedPaymentMethodBuilder {
	b.method.IsDefault = true
	return b
}

func (b *SavedPaymentMethodBuilder) WithReferenceNumber(ref string) *SavedPaymentMethodBuilder {
	b.method.ReferenceNumber = ref
	return b
}

// WithoutReference clears every gateway reference so no reference payment can be derived.
func (b *SavedPaymentMethodBuilder) WithoutReference() *SavedPaymentMethodBuilder {
	b.method.ReferenceNumber = ""
	b.method.PaymentDetail.GatewayPersonIdentifier = ""
	return b
}

func (b *SavedPaymentMethodBuilder) WithoutCardType() *SavedPaymentMethodBuilder {
	b.method.PaymentDetail.CreditCardType = nil
	return b
}

func (b *SavedPaymentMethodBuilder) Build() *domain.SavedPaymentMethod {
	m := *b.method
	return &m
}
