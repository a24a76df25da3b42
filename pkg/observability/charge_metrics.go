package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Charge outcomes used as the "outcome" label
const (
	OutcomeSuccess                = "success"
	OutcomeDuplicate              = "duplicate"
	OutcomeBusy                   = "busy"
	OutcomeInvalid                = "invalid"
	OutcomeGatewayRejected        = "gateway_rejected"
	OutcomeGatewayInconsistent    = "gateway_inconsistent"
	OutcomeReconciliationRequired = "reconciliation_required"
	OutcomeError                  = "error"
)

var (
	chargeAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automated_charge_attempts_total",
		Help: "Total automated charge attempts by outcome",
	}, []string{
		"gateway", // gateway component name, "unknown" before resolution
		"outcome",
	})

	chargeAmountCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automated_charge_amount_cents_total",
		Help: "Total amount successfully charged, in cents",
	}, []string{
		"gateway",
	})

	chargeProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "automated_charge_duration_seconds",
		Help: "End-to-end time to process one automated charge",
		// Buckets: 10ms to 30s
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"outcome",
	})

	// Page on any increase: money moved without a complete ledger record
	reconciliationRequiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automated_charge_reconciliation_required_total",
		Help: "Charges that succeeded at the gateway but failed to persist",
	}, []string{
		"stage", // ledger, attributes, history
	})

	batchesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automated_charge_batches_created_total",
		Help: "Settlement batches opened by the charge processor",
	})

	gatewayCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automated_charge_gateway_calls_total",
		Help: "Outbound gateway charge calls by result",
	}, []string{
		"gateway",
		"result", // approved, declined, error, circuit_open
	})

	gatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "automated_charge_gateway_call_duration_seconds",
		Help:    "Time spent waiting on the gateway",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"gateway",
	})
)

// RecordChargeOutcome records one processed charge attempt
func RecordChargeOutcome(gateway, outcome string, duration time.Duration) {
	if gateway == "" {
		gateway = "unknown"
	}
	chargeAttemptsTotal.WithLabelValues(gateway, outcome).Inc()
	chargeProcessingDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordChargedAmount adds a successful charge's total to the revenue counter
func RecordChargedAmount(gateway string, amount decimal.Decimal) {
	chargeAmountCents.WithLabelValues(gateway).Add(float64(amount.Shift(2).Round(0).IntPart()))
}

// RecordReconciliationRequired counts a charge that must be reconciled by hand
func RecordReconciliationRequired(stage string) {
	reconciliationRequiredTotal.WithLabelValues(stage).Inc()
}

// RecordBatchCreated counts a newly opened batch
func RecordBatchCreated() {
	batchesCreatedTotal.Inc()
}

// RecordGatewayCall records one outbound gateway call
func RecordGatewayCall(gateway, result string, duration time.Duration) {
	gatewayCallsTotal.WithLabelValues(gateway, result).Inc()
	gatewayCallDuration.WithLabelValues(gateway).Observe(duration.Seconds())
}
