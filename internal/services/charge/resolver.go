package charge

import (
	"context"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
)

// ResolvedContext holds every entity a charge request references.
// It is built once per attempt and never mutated afterwards; nil fields mean the
// reference did not resolve.
type ResolvedContext struct {
	Payer              *domain.Person
	Gateway            *domain.Gateway
	Component          *ports.GatewayComponent
	Accounts           map[int64]*domain.FinancialAccount
	SavedPaymentMethod *domain.SavedPaymentMethod
	ReferencePayment   *domain.ReferencePaymentInfo
	TransactionType    *domain.DefinedValue
	SourceType         *domain.DefinedValue
}

// Resolver performs the read-only lookups for a charge request
type Resolver struct {
	store    ports.EntityStore
	registry ports.GatewayRegistry
	policy   Policy
}

// NewResolver creates a new resolver
func NewResolver(store ports.EntityStore, registry ports.GatewayRegistry, policy Policy) *Resolver {
	return &Resolver{
		store:    store,
		registry: registry,
		policy:   policy,
	}
}

// Resolve looks up each referenced entity exactly once. Missing references are left nil;
// only storage failures return an error. When the gateway cannot charge unattended the
// remaining lookups are skipped because validation stops at the gateway check.
func (r *Resolver) Resolve(ctx context.Context, req domain.ChargeRequest) (*ResolvedContext, error) {
	rc := &ResolvedContext{}

	payer, err := r.store.GetPersonByAliasID(ctx, req.PayerAliasID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "resolve payer", err)
	}
	rc.Payer = payer

	gateway, err := r.store.GetGateway(ctx, req.GatewayID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "resolve gateway", err)
	}
	rc.Gateway = gateway
	if gateway != nil {
		rc.Component = r.registry.Component(gateway)
	}
	if gateway == nil || !gateway.IsActive || !rc.Component.SupportsAutomatedCharge() {
		return rc, nil
	}

	if ids := req.AccountIDs(); len(ids) > 0 {
		accounts, err := r.store.GetAccounts(ctx, ids)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "resolve accounts", err)
		}
		rc.Accounts = accounts
	}
	if rc.Accounts == nil {
		rc.Accounts = map[int64]*domain.FinancialAccount{}
	}

	if payer != nil {
		methods, err := r.store.ListSavedPaymentMethods(ctx, payer.ID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "resolve saved payment methods", err)
		}
		rc.SavedPaymentMethod = selectSavedPaymentMethod(methods, req.SavedPaymentMethodID)
	}
	if rc.SavedPaymentMethod != nil {
		rc.ReferencePayment = rc.SavedPaymentMethod.ReferencePayment()
		if rc.ReferencePayment != nil {
			rc.ReferencePayment.Comment1 = req.Memo
		}
	}

	rc.TransactionType, err = r.store.GetDefinedValue(ctx, domain.DefinedTypeTransactionType, r.policy.transactionType(req))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "resolve transaction type", err)
	}
	rc.SourceType, err = r.store.GetDefinedValue(ctx, domain.DefinedTypeSourceType, r.policy.sourceType(req))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "resolve source type", err)
	}

	return rc, nil
}

// selectSavedPaymentMethod applies the precedence: explicit id owned by the payer,
// then the payer's default, then the payer's first method.
func selectSavedPaymentMethod(methods []*domain.SavedPaymentMethod, explicitID *int64) *domain.SavedPaymentMethod {
	if explicitID != nil {
		for _, m := range methods {
			if m.ID == *explicitID {
				return m
			}
		}
		return nil
	}
	for _, m := range methods {
		if m.IsDefault {
			return m
		}
	}
	if len(methods) > 0 {
		return methods[0]
	}
	return nil
}
