package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Person is the payer. Several persons may share one GivingID (e.g. a household).
type Person struct {
	GivingID       string `json:"giving_id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	ID             int64  `json:"id"`
	PrimaryAliasID int64  `json:"primary_alias_id"`
}

// FullName joins first and last name
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Gateway is a configured payment gateway instance.
// EntityType selects the gateway component that talks to the provider.
type Gateway struct {
	Name            string        `json:"name"`
	EntityType      string        `json:"entity_type"`
	ID              int64         `json:"id"`
	BatchTimeOffset time.Duration `json:"batch_time_offset"`
	IsActive        bool          `json:"is_active"`
}

// FinancialAccount is a fund a line item can be allocated to
type FinancialAccount struct {
	Name     string `json:"name"`
	ID       int64  `json:"id"`
	IsActive bool   `json:"is_active"`
}

// DefinedValueType groups lookup values
type DefinedValueType string

const (
	DefinedTypeTransactionType DefinedValueType = "transaction_type"
	DefinedTypeSourceType      DefinedValueType = "source_type"
	DefinedTypeCurrencyType    DefinedValueType = "currency_type"
	DefinedTypeCreditCardType  DefinedValueType = "credit_card_type"
)

// DefinedValue is a lookup value such as a transaction type, a source, a currency type or a card brand
type DefinedValue struct {
	Type            DefinedValueType `json:"type"`
	Value           string           `json:"value"`
	BatchNameSuffix string           `json:"batch_name_suffix,omitempty"`
	ID              int64            `json:"id"`
	GUID            uuid.UUID        `json:"guid"`
}

// Well-known lookup values seeded by the initial migration
var (
	TransactionTypeContributionGUID = uuid.MustParse("8c2e4bd4-2f0a-4d55-9c7b-6f1e0a7e3b01")
	SourceTypeWebsiteGUID           = uuid.MustParse("5a0f3f0e-91b7-4c2e-8d3a-2b64c1d9e702")
)
