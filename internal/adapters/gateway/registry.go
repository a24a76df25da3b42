package gateway

import (
	"sync"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
)

// Gateway entity types
const (
	EntityTypeHostedPay = "hosted-pay"
	EntityTypeOffline   = "offline"
)

// Registry maps a gateway's entity type to the component that serves it
type Registry struct {
	mu         sync.RWMutex
	components map[string]*ports.GatewayComponent
}

var _ ports.GatewayRegistry = (*Registry)(nil)

// NewRegistry creates a registry with the offline component registered. Offline gateways
// record manual payments and cannot charge unattended.
func NewRegistry() *Registry {
	r := &Registry{components: make(map[string]*ports.GatewayComponent)}
	r.Register(EntityTypeOffline, nil)
	return r
}

// Register binds entityType to charger; a nil charger registers a component
// that does not support automated charges
func (r *Registry) Register(entityType string, charger ports.AutomatedCharger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[entityType] = &ports.GatewayComponent{
		Name:    entityType,
		Charger: charger,
	}
}

// Component returns the component for gateway, or nil when its type is unknown
func (r *Registry) Component(gateway *domain.Gateway) *ports.GatewayComponent {
	if gateway == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.components[gateway.EntityType]
}
