package charge_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/internal/adapters/gateway"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/kevin07696/automated-charge/internal/services/charge"
	"github.com/kevin07696/automated-charge/internal/testutil/fixtures"
	"github.com/kevin07696/automated-charge/internal/testutil/memstore"
	"github.com/kevin07696/automated-charge/pkg/resilience"
	"github.com/kevin07696/automated-charge/pkg/timeutil"
	"go.uber.org/zap/zaptest"
)

// Seeded ids
const (
	payerID       int64 = 1
	payerAliasID  int64 = 10
	payerAltAlias int64 = 11
	bareID        int64 = 2
	bareAliasID   int64 = 20
	gatewayID     int64 = 7
	offlineID     int64 = 8
	inactiveGwID  int64 = 9
	accountA      int64 = 1
	accountB      int64 = 2
	closedAccount int64 = 3
	savedCardID   int64 = 100
)

var testNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

// stubCharger returns a fresh transaction per call and records what it was asked to charge
type stubCharger struct {
	mu     sync.Mutex
	calls  []domain.ReferencePaymentInfo
	result func(call int) (*domain.Transaction, error)
}

func (s *stubCharger) AutomatedCharge(ctx context.Context, gw *domain.Gateway, info *domain.ReferencePaymentInfo) (*domain.Transaction, error) {
	s.mu.Lock()
	s.calls = append(s.calls, *info)
	n := len(s.calls)
	s.mu.Unlock()
	return s.result(n)
}

func (s *stubCharger) Calls() []domain.ReferencePaymentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ReferencePaymentInfo(nil), s.calls...)
}

func approving() *stubCharger {
	return &stubCharger{result: func(call int) (*domain.Transaction, error) {
		return fixtures.NewTransaction("TXN-" + uuid.NewString()[:8]).Build(), nil
	}}
}

type harness struct {
	store     *memstore.Store
	charger   ports.AutomatedCharger
	clock     *timeutil.ManualClock
	processor *charge.Processor
	policy    charge.Policy
}

type harnessOption func(*charge.Dependencies)

func withLocker(l ports.IdentityLocker) harnessOption {
	return func(d *charge.Dependencies) { d.Locker = l }
}

func newHarness(t *testing.T, charger ports.AutomatedCharger, opts ...harnessOption) *harness {
	t.Helper()

	store := memstore.New()
	store.AddPerson(fixtures.NewPerson(payerID).WithPrimaryAliasID(payerAliasID).Build(), payerAltAlias)
	store.AddPerson(fixtures.NewPerson(bareID).WithPrimaryAliasID(bareAliasID).Build())
	store.AddGateway(fixtures.ActiveGateway(gatewayID))
	store.AddGateway(&domain.Gateway{ID: offlineID, Name: "Cash", EntityType: gateway.EntityTypeOffline, IsActive: true})
	inactive := fixtures.ActiveGateway(inactiveGwID)
	inactive.IsActive = false
	store.AddGateway(inactive)
	store.AddAccount(fixtures.Account(accountA))
	store.AddAccount(fixtures.Account(accountB))
	store.AddAccount(fixtures.InactiveAccount(closedAccount))
	store.AddSavedPaymentMethod(fixtures.NewSavedCard(savedCardID, payerID).Default().Build())
	store.AddDefinedValue(fixtures.ContributionType())
	store.AddDefinedValue(fixtures.WebsiteSource())

	registry := gateway.NewRegistry()
	registry.Register(fixtures.EntityTypeAutomated, charger)

	clock := timeutil.NewManualClock(testNow)
	policy := charge.DefaultPolicy()

	deps := charge.Dependencies{
		Store:        store,
		Charges:      store,
		Registry:     registry,
		DB:           store,
		Transactions: store,
		Batches:      store,
		Attributes:   store,
		Audit:        store,
		Clock:        clock,
		Timeouts:     resilience.TestTimeoutConfig(),
		Logger:       zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &harness{
		store:     store,
		charger:   charger,
		clock:     clock,
		processor: charge.NewProcessor(deps, policy),
		policy:    policy,
	}
}

func scenarioARequest() domain.ChargeRequest {
	return fixtures.NewChargeRequest(payerAliasID, gatewayID).
		WithItem(accountA, "25.00").
		WithItem(accountB, "75.00").
		Build()
}
