package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/internal/domain"
)

// EntityStore loads the records a charge request references.
// Lookups of a missing id return (nil, nil); errors are reserved for storage failures.
type EntityStore interface {
	GetPersonByAliasID(ctx context.Context, aliasID int64) (*domain.Person, error)
	GetGateway(ctx context.Context, id int64) (*domain.Gateway, error)
	// GetAccounts returns the accounts that exist among ids, keyed by id
	GetAccounts(ctx context.Context, ids []int64) (map[int64]*domain.FinancialAccount, error)
	// ListSavedPaymentMethods returns the person's saved methods ordered by id
	ListSavedPaymentMethods(ctx context.Context, personID int64) ([]*domain.SavedPaymentMethod, error)
	GetDefinedValue(ctx context.Context, valueType domain.DefinedValueType, guid uuid.UUID) (*domain.DefinedValue, error)
}

// ChargeHistory answers the repeat-charge question
type ChargeHistory interface {
	// AliasIDsByGivingID returns every alias of every person sharing the giving identity
	AliasIDsByGivingID(ctx context.Context, givingID string) ([]int64, error)
	// AliasIDsByPersonID returns every alias of the person, merged ones included
	AliasIDsByPersonID(ctx context.Context, personID int64) ([]int64, error)
	// FindRecentTransaction returns the newest transaction authorized by any of the
	// aliases at or after since, or nil when there is none
	FindRecentTransaction(ctx context.Context, aliasIDs []int64, since time.Time) (*domain.Transaction, error)
}
