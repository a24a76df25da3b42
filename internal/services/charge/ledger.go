package charge

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/kevin07696/automated-charge/pkg/observability"
	"github.com/kevin07696/automated-charge/pkg/resilience"
	"github.com/kevin07696/automated-charge/pkg/timeutil"
	"go.uber.org/zap"
)

// Persistence stages reported on a ReconciliationError
const (
	StageLedger     = "ledger"
	StageAttributes = "attributes"
	StageHistory    = "history"
)

// HistoryEntityBatch is the entity type batch audit entries are filed under
const HistoryEntityBatch = "batch"

// LedgerWriter records a charged transaction and its batch
type LedgerWriter struct {
	db           ports.TransactionManager
	transactions ports.TransactionRepository
	batches      ports.BatchRepository
	attributes   ports.AttributeRepository
	audit        ports.HistoryRepository
	clock        timeutil.Clock
	newGUID      func() uuid.UUID
	timeouts     *resilience.TimeoutConfig
	logger       *zap.Logger
	policy       Policy
}

// Persist stamps the charged transaction and writes it. The transaction, its details and the
// batch increment commit as one unit; attribute values and the batch audit trail follow.
// Every failure here happens after money moved and is returned as a ReconciliationError.
func (w *LedgerWriter) Persist(ctx context.Context, a *attempt) (*domain.Transaction, error) {
	// The charge has been issued; caller cancellation must not abandon the write.
	ctx, cancel := w.timeouts.PersistenceContext(ctx)
	defer cancel()

	txn := a.charged
	w.stamp(txn, a)

	key := domain.BatchKey{
		TransactionTime: txn.TransactionDateTime,
		Name:            domain.BatchName(w.policy.batchPrefix(a.req), txn.PaymentDetail),
		Offset:          a.rc.Gateway.BatchTimeOffset,
	}

	var (
		batch   *domain.Batch
		created bool
		changes domain.HistoryChangeList
	)
	err := w.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		changes = nil

		var err error
		batch, created, err = w.batches.FindOrCreateOpen(ctx, tx, key)
		if err != nil {
			return err
		}
		if created {
			changes.AddRecord("Batch")
			changes.EvaluateChange("Batch Name", "", batch.Name)
			changes.EvaluateChange("Status", "", string(batch.Status))
			changes.EvaluateChange("Start Date/Time", "", domain.FormatHistoryTime(batch.BatchStartDateTime))
			changes.EvaluateChange("End Date/Time", "", domain.FormatHistoryTime(batch.BatchEndDateTime))
		}

		before, after, err := w.batches.AddToControlAmount(ctx, tx, batch.ID, txn.TotalAmount())
		if err != nil {
			return err
		}
		changes.AddChange("Control Amount", domain.FormatCurrency(before), domain.FormatCurrency(after))

		txn.BatchID = batch.ID
		return w.transactions.Create(ctx, tx, txn)
	})
	if err != nil {
		txn.ID = 0
		txn.BatchID = 0
		return nil, w.reconcile(StageLedger, txn, err)
	}
	if created {
		observability.RecordBatchCreated()
	}

	if len(txn.Attributes) > 0 {
		if err := w.attributes.SaveTransactionAttributes(ctx, nil, txn.ID, txn.Attributes); err != nil {
			return nil, w.reconcile(StageAttributes, txn, err)
		}
	}

	if err := w.audit.SaveChanges(ctx, nil, HistoryEntityBatch, batch.ID, changes); err != nil {
		return nil, w.reconcile(StageHistory, txn, err)
	}

	return txn, nil
}

// stamp fills the locally authoritative fields. Details come from the request line items,
// never from the gateway's own breakdown.
func (w *LedgerWriter) stamp(txn *domain.Transaction, a *attempt) {
	rc := a.rc
	txn.GUID = w.newGUID()
	txn.AuthorizedPersonAliasID = rc.Payer.PrimaryAliasID
	txn.ShowAsAnonymous = a.req.ShowAsAnonymous
	txn.TransactionDateTime = w.clock.Now()
	txn.GatewayID = rc.Gateway.ID
	txn.TransactionTypeValueID = rc.TransactionType.ID
	txn.SourceTypeValueID = rc.SourceType.ID
	txn.Summary = rc.ReferencePayment.Comment1
	if txn.Status == "" {
		txn.Status = domain.TransactionStatusSuccess
	}

	txn.PaymentDetail = mergePaymentDetail(rc.ReferencePayment.PaymentDetail, txn.PaymentDetail)

	txn.Details = make([]domain.TransactionDetail, 0, len(a.req.LineItems))
	for _, item := range a.req.LineItems {
		txn.Details = append(txn.Details, domain.TransactionDetail{
			AccountID: item.AccountID,
			Amount:    item.Amount,
		})
	}
}

// mergePaymentDetail prefers the saved method's values and falls back to what the gateway reported
func mergePaymentDetail(saved, reported domain.PaymentDetail) domain.PaymentDetail {
	out := saved
	if out.CurrencyType == nil {
		out.CurrencyType = reported.CurrencyType
	}
	if out.CreditCardType == nil {
		out.CreditCardType = reported.CreditCardType
	}
	if out.AccountNumberMasked == "" {
		out.AccountNumberMasked = reported.AccountNumberMasked
	}
	if out.GatewayPersonIdentifier == "" {
		out.GatewayPersonIdentifier = reported.GatewayPersonIdentifier
	}
	if out.ExpirationMonth == 0 {
		out.ExpirationMonth = reported.ExpirationMonth
		out.ExpirationYear = reported.ExpirationYear
	}
	return out
}

func (w *LedgerWriter) reconcile(stage string, txn *domain.Transaction, err error) error {
	observability.RecordReconciliationRequired(stage)
	w.logger.Error("Charge succeeded but was not fully recorded",
		zap.Bool("reconciliation_required", true),
		zap.String("stage", stage),
		zap.String("transaction_code", txn.TransactionCode),
		zap.String("transaction_guid", txn.GUID.String()),
		zap.Int64("gateway_id", txn.GatewayID),
		zap.Int64("authorized_person_alias_id", txn.AuthorizedPersonAliasID),
		zap.String("amount", txn.TotalAmount().StringFixed(2)),
		zap.Error(err),
	)
	return &domain.ReconciliationError{
		Stage:       stage,
		Transaction: txn,
		Err:         err,
	}
}
