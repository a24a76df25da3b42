package charge

import (
	"context"
	"errors"
	"time"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	pkgerrors "github.com/kevin07696/automated-charge/pkg/errors"
	"github.com/kevin07696/automated-charge/pkg/observability"
	"github.com/kevin07696/automated-charge/pkg/resilience"
	"go.uber.org/zap"
)

// attempt carries the state of one processing attempt
type attempt struct {
	req           domain.ChargeRequest
	rc            *ResolvedContext
	charged       *domain.Transaction
	gatewayCalled bool
}

// Executor issues the single automated charge for an attempt
type Executor struct {
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
}

// NewExecutor creates a new executor
func NewExecutor(timeouts *resilience.TimeoutConfig, logger *zap.Logger) *Executor {
	return &Executor{
		timeouts: timeouts,
		logger:   logger,
	}
}

// Charge calls the gateway at most once per attempt. Errors are never retried.
func (e *Executor) Charge(ctx context.Context, a *attempt) (*domain.Transaction, error) {
	if a.gatewayCalled {
		return nil, domain.ErrChargeAlreadyAttempted
	}
	a.gatewayCalled = true

	rc := a.rc
	info := *rc.ReferencePayment
	info.Amount = a.req.TotalAmount()
	info.Email = rc.Payer.Email
	info.FirstName = rc.Payer.FirstName
	info.LastName = rc.Payer.LastName

	gctx, cancel := e.timeouts.GatewayContext(ctx)
	defer cancel()

	start := time.Now()
	txn, err := rc.Component.Charger.AutomatedCharge(gctx, rc.Gateway, &info)
	elapsed := time.Since(start)

	if errors.Is(err, ports.ErrChargeOutcomeUnknown) {
		observability.RecordGatewayCall(rc.Component.Name, "inconsistent", elapsed)
		e.logger.Error("Gateway charge outcome unknown, check the gateway before retrying",
			zap.Int64("gateway_id", rc.Gateway.ID),
			zap.Int64("payer_id", rc.Payer.ID),
			zap.String("amount", info.Amount.StringFixed(2)),
			zap.Error(err),
		)
		return nil, domain.WrapError(domain.ErrorCodeGatewayInconsistent,
			"Error charging: the gateway response could not be read, the charge may have succeeded", err)
	}
	if err != nil {
		observability.RecordGatewayCall(rc.Component.Name, "error", elapsed)
		e.logger.Warn("Automated charge rejected",
			zap.Int64("gateway_id", rc.Gateway.ID),
			zap.Int64("payer_id", rc.Payer.ID),
			zap.String("amount", info.Amount.StringFixed(2)),
			zap.Error(err),
		)
		return nil, domain.WrapError(domain.ErrorCodeGatewayRejected, "Error charging: "+pkgerrors.GatewayText(err), err)
	}
	if txn == nil {
		observability.RecordGatewayCall(rc.Component.Name, "inconsistent", elapsed)
		e.logger.Error("Gateway reported success without a transaction",
			zap.Int64("gateway_id", rc.Gateway.ID),
			zap.Int64("payer_id", rc.Payer.ID),
		)
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayInconsistent, "Error charging: transaction was not created")
	}

	observability.RecordGatewayCall(rc.Component.Name, "approved", elapsed)
	a.charged = txn
	return txn, nil
}
