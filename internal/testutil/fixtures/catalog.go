package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/internal/domain"
)

// Gateway entity types registered in tests
const (
	EntityTypeAutomated = "test-automated"
	EntityTypeOffline   = "offline"
)

// ActiveGateway returns an active gateway of the automated test type.
func ActiveGateway(id int64) *domain.Gateway {
	return &domain.Gateway{
		ID:         id,
		Name:       "Test Gateway",
		EntityType: EntityTypeAutomated,
		IsActive:   true,
	}
}

// GatewayWithOffset returns an active gateway whose business day starts at offset.
func GatewayWithOffset(id int64, offset time.Duration) *domain.Gateway {
	g := ActiveGateway(id)
	g.BatchTimeOffset = offset
	return g
}

// Account returns an active financial account.
func Account(id int64) *domain.FinancialAccount {
	return &domain.FinancialAccount{
		ID:       id,
		Name:     "General Fund",
		IsActive: true,
	}
}

// InactiveAccount returns an account that can no longer receive gifts.
func InactiveAccount(id int64) *domain.FinancialAccount {
	a := Account(id)
	a.IsActive = false
	return a
}

// ContributionType is the default transaction type lookup value.
func ContributionType() *domain.DefinedValue {
	return &domain.DefinedValue{
		ID:    53,
		GUID:  domain.TransactionTypeContributionGUID,
		Type:  domain.DefinedTypeTransactionType,
		Value: "Contribution",
	}
}

// WebsiteSource is the default source type lookup value.
func WebsiteSource() *domain.DefinedValue {
	return &domain.DefinedValue{
		ID:    10,
		GUID:  domain.SourceTypeWebsiteGUID,
		Type:  domain.DefinedTypeSourceType,
		Value: "Website",
	}
}

// CreditCardCurrency is the credit card currency type.
func CreditCardCurrency() *domain.DefinedValue {
	return &domain.DefinedValue{
		ID:    156,
		GUID:  uuid.MustParse("928a2e04-c77b-4282-888f-ec549cee026a"),
		Type:  domain.DefinedTypeCurrencyType,
		Value: "Credit Card",
	}
}

// VisaCardType is a card type with a batch name suffix.
func VisaCardType() *domain.DefinedValue {
	return &domain.DefinedValue{
		ID:              7,
		GUID:            uuid.MustParse("fc66b5f8-634f-4800-a60d-436964d27b64"),
		Type:            domain.DefinedTypeCreditCardType,
		Value:           "Visa",
		BatchNameSuffix: "Visa",
	}
}
