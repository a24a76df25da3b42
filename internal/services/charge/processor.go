package charge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/kevin07696/automated-charge/pkg/observability"
	"github.com/kevin07696/automated-charge/pkg/resilience"
	"github.com/kevin07696/automated-charge/pkg/timeutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/kevin07696/automated-charge/internal/services/charge")

// Dependencies wires the processor to its collaborators
type Dependencies struct {
	Store        ports.EntityStore
	Charges      ports.ChargeHistory
	Registry     ports.GatewayRegistry
	DB           ports.TransactionManager
	Transactions ports.TransactionRepository
	Batches      ports.BatchRepository
	Attributes   ports.AttributeRepository
	Audit        ports.HistoryRepository
	Locker       ports.IdentityLocker // optional; nil disables identity locking
	Clock        timeutil.Clock
	NewGUID      func() uuid.UUID
	Timeouts     *resilience.TimeoutConfig
	Logger       *zap.Logger
}

// Processor charges saved payment methods without a payer present
type Processor struct {
	resolver  *Resolver
	guard     *RepeatGuard
	validator *Validator
	executor  *Executor
	ledger    *LedgerWriter
	locker    ports.IdentityLocker
	timeouts  *resilience.TimeoutConfig
	logger    *zap.Logger
}

// NewProcessor creates a new charge processor
func NewProcessor(deps Dependencies, policy Policy) *Processor {
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.NewGUID == nil {
		deps.NewGUID = uuid.New
	}
	if deps.Timeouts == nil {
		deps.Timeouts = resilience.DefaultTimeoutConfig()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Processor{
		resolver:  NewResolver(deps.Store, deps.Registry, policy),
		guard:     NewRepeatGuard(deps.Charges, deps.Clock, policy.RepeatWindow),
		validator: NewValidator(policy),
		executor:  NewExecutor(deps.Timeouts, deps.Logger),
		ledger: &LedgerWriter{
			db:           deps.DB,
			transactions: deps.Transactions,
			batches:      deps.Batches,
			attributes:   deps.Attributes,
			audit:        deps.Audit,
			clock:        deps.Clock,
			newGUID:      deps.NewGUID,
			timeouts:     deps.Timeouts,
			logger:       deps.Logger,
			policy:       policy,
		},
		locker:   deps.Locker,
		timeouts: deps.Timeouts,
		logger:   deps.Logger,
	}
}

// ProcessCharge checks for a repeat, validates, charges once and records the result.
// When the charge succeeds but recording fails the returned error is a
// *domain.ReconciliationError carrying the charged transaction.
func (p *Processor) ProcessCharge(ctx context.Context, req domain.ChargeRequest) (*domain.Transaction, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "charge.ProcessCharge", trace.WithAttributes(
		attribute.Int64("charge.payer_alias_id", req.PayerAliasID),
		attribute.Int64("charge.gateway_id", req.GatewayID),
		attribute.Int("charge.line_items", len(req.LineItems)),
	))
	defer span.End()

	ctx, cancel := p.timeouts.AttemptContext(ctx)
	defer cancel()

	a := &attempt{req: req.Clone()}
	txn, err := p.process(ctx, a)

	gatewayName := ""
	if a.rc != nil && a.rc.Component != nil {
		gatewayName = a.rc.Component.Name
	}
	outcome := outcomeFor(err)
	observability.RecordChargeOutcome(gatewayName, outcome, time.Since(start))
	span.SetAttributes(attribute.String("charge.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.Reason(err))
		if !domain.RequiresReconciliation(err) {
			p.logger.Info("Automated charge not processed",
				zap.Int64("payer_alias_id", req.PayerAliasID),
				zap.String("outcome", outcome),
				zap.String("error_code", string(domain.GetErrorCode(err))),
				zap.String("reason", domain.Reason(err)),
			)
		}
		return nil, err
	}

	observability.RecordChargedAmount(gatewayName, txn.TotalAmount())
	span.SetAttributes(attribute.String("charge.transaction_guid", txn.GUID.String()))
	p.logger.Info("Automated charge processed",
		zap.Int64("transaction_id", txn.ID),
		zap.String("transaction_guid", txn.GUID.String()),
		zap.String("transaction_code", txn.TransactionCode),
		zap.Int64("batch_id", txn.BatchID),
		zap.String("amount", txn.TotalAmount().StringFixed(2)),
	)
	return txn, nil
}

func (p *Processor) process(ctx context.Context, a *attempt) (*domain.Transaction, error) {
	rc, err := p.resolve(ctx, a.req)
	if err != nil {
		return nil, err
	}
	a.rc = rc

	run := func(ctx context.Context) (*domain.Transaction, error) {
		if err := p.guard.Check(ctx, a.req, rc.Payer); err != nil {
			return nil, err
		}
		if err := p.validator.Validate(a.req, rc).Err(); err != nil {
			return nil, err
		}
		if _, err := p.executor.Charge(ctx, a); err != nil {
			return nil, err
		}
		return p.ledger.Persist(ctx, a)
	}

	if p.locker == nil || rc.Payer == nil {
		return run(ctx)
	}

	var txn *domain.Transaction
	err = p.locker.WithLock(ctx, identityLockKey(a.req, rc.Payer), func(ctx context.Context) error {
		var runErr error
		txn, runErr = run(ctx)
		return runErr
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CheckRepeat reports whether the request looks like a repeat of a recent charge.
// A likely repeat returns true together with a DUPLICATE_SUSPECTED error naming the
// earlier transaction.
func (p *Processor) CheckRepeat(ctx context.Context, req domain.ChargeRequest) (bool, error) {
	ctx, span := tracer.Start(ctx, "charge.CheckRepeat")
	defer span.End()

	ctx, cancel := p.timeouts.AttemptContext(ctx)
	defer cancel()

	rc, err := p.resolve(ctx, req)
	if err != nil {
		return false, err
	}
	if rc.Payer == nil {
		return false, domain.NewDomainError(domain.ErrorCodeResolutionGap, "the payer reference did not resolve to a person")
	}

	err = p.guard.Check(ctx, req, rc.Payer)
	if domain.IsDomainError(err, domain.ErrorCodeDuplicateSuspected) {
		return true, err
	}
	return false, err
}

// CheckValid runs resolution and validation without charging
func (p *Processor) CheckValid(ctx context.Context, req domain.ChargeRequest) (bool, error) {
	ctx, span := tracer.Start(ctx, "charge.CheckValid")
	defer span.End()

	ctx, cancel := p.timeouts.AttemptContext(ctx)
	defer cancel()

	rc, err := p.resolve(ctx, req)
	if err != nil {
		return false, err
	}
	result := p.validator.Validate(req, rc)
	return result.OK, result.Err()
}

func (p *Processor) resolve(ctx context.Context, req domain.ChargeRequest) (*ResolvedContext, error) {
	ctx, span := tracer.Start(ctx, "charge.Resolve")
	defer span.End()

	rc, err := p.resolver.Resolve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		return nil, err
	}
	return rc, nil
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case domain.RequiresReconciliation(err):
		return observability.OutcomeReconciliationRequired
	case domain.IsDomainError(err, domain.ErrorCodeDuplicateSuspected):
		return observability.OutcomeDuplicate
	case domain.IsDomainError(err, domain.ErrorCodeChargeInProgress):
		return observability.OutcomeBusy
	case domain.IsValidationError(err):
		return observability.OutcomeInvalid
	case domain.IsDomainError(err, domain.ErrorCodeGatewayRejected):
		return observability.OutcomeGatewayRejected
	case domain.IsDomainError(err, domain.ErrorCodeGatewayInconsistent):
		return observability.OutcomeGatewayInconsistent
	default:
		return observability.OutcomeError
	}
}
