package ports

import (
	"context"
	"errors"

	"github.com/kevin07696/automated-charge/internal/domain"
)

// ErrChargeOutcomeUnknown is wrapped by chargers when the request reached the gateway
// but its answer could not be read. The charge may have gone through.
var ErrChargeOutcomeUnknown = errors.New("gateway charge outcome unknown")

// AutomatedCharger charges a stored payment method without the payer present.
// A non-nil error means the gateway rejected the charge and no money moved, unless it
// wraps ErrChargeOutcomeUnknown. A nil transaction with a nil error violates the
// gateway contract.
type AutomatedCharger interface {
	AutomatedCharge(ctx context.Context, gateway *domain.Gateway, info *domain.ReferencePaymentInfo) (*domain.Transaction, error)
}

// GatewayComponent is the provider integration behind a gateway record.
// Charger is nil for components that cannot charge unattended.
type GatewayComponent struct {
	Charger AutomatedCharger
	Name    string
}

// SupportsAutomatedCharge reports the automated-charge capability
func (c *GatewayComponent) SupportsAutomatedCharge() bool {
	return c != nil && c.Charger != nil
}

// GatewayRegistry maps a gateway record to its component
type GatewayRegistry interface {
	// Component returns nil when no component is registered for the gateway
	Component(gateway *domain.Gateway) *GatewayComponent
}
