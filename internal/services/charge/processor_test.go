package charge_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/internal/adapters/lock"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/services/charge"
	"github.com/kevin07696/automated-charge/internal/testutil/fixtures"
	"github.com/kevin07696/automated-charge/internal/testutil/memstore"
	"github.com/kevin07696/automated-charge/internal/testutil/mocks"
	pkgerrors "github.com/kevin07696/automated-charge/pkg/errors"
	"github.com/kevin07696/automated-charge/pkg/resilience"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestProcessCharge_TwoLineItems charges a default saved method for two accounts
func TestProcessCharge_TwoLineItems(t *testing.T) {
	charger := new(mocks.MockAutomatedCharger)
	charger.On("AutomatedCharge", mock.Anything, mock.MatchedBy(func(g *domain.Gateway) bool {
		return g.ID == gatewayID
	}), mock.MatchedBy(func(info *domain.ReferencePaymentInfo) bool {
		return info.Amount.Equal(fixtures.Dollars("100.00")) &&
			info.Email == "ted.decker@example.com" &&
			info.ReferenceNumber == "ref_100"
	})).Return(fixtures.NewTransaction("TXN-1").Build(), nil).Once()

	h := newHarness(t, charger)

	txn, err := h.processor.ProcessCharge(context.Background(), scenarioARequest())

	require.NoError(t, err)
	require.NotNil(t, txn)
	charger.AssertExpectations(t)

	assert.Equal(t, "TXN-1", txn.TransactionCode)
	assert.True(t, txn.TotalAmount().Equal(fixtures.Dollars("100.00")))
	require.Len(t, txn.Details, 2)
	assert.Equal(t, accountA, txn.Details[0].AccountID)
	assert.True(t, txn.Details[0].Amount.Equal(fixtures.Dollars("25.00")))
	assert.Equal(t, accountB, txn.Details[1].AccountID)
	assert.True(t, txn.Details[1].Amount.Equal(fixtures.Dollars("75.00")))

	batches := h.store.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, "Online Giving Visa", batches[0].Name)
	assert.Equal(t, domain.BatchStatusOpen, batches[0].Status)
	assert.True(t, batches[0].ControlAmount.Equal(fixtures.Dollars("100.00")))
	assert.Equal(t, batches[0].ID, txn.BatchID)

	stored := h.store.Transactions()
	require.Len(t, stored, 1)
	assert.Equal(t, txn.GUID, stored[0].GUID)
}

func TestProcessCharge_StampsTransaction(t *testing.T) {
	charger := approving()
	h := newHarness(t, charger)

	req := fixtures.NewChargeRequest(payerAltAlias, gatewayID).
		WithItem(accountA, "10.00").
		WithMemo("building fund").
		Anonymous().
		Build()

	txn, err := h.processor.ProcessCharge(context.Background(), req)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, txn.GUID)
	assert.Equal(t, payerAliasID, txn.AuthorizedPersonAliasID, "the payer's primary alias is authoritative")
	assert.True(t, txn.ShowAsAnonymous)
	assert.Equal(t, testNow, txn.TransactionDateTime)
	assert.Equal(t, gatewayID, txn.GatewayID)
	assert.Equal(t, fixtures.ContributionType().ID, txn.TransactionTypeValueID)
	assert.Equal(t, fixtures.WebsiteSource().ID, txn.SourceTypeValueID)
	assert.Equal(t, "building fund", txn.Summary)
	assert.Equal(t, domain.TransactionStatusSuccess, txn.Status)
	require.NotNil(t, txn.PaymentDetail.CreditCardType)
	assert.Equal(t, "Visa", txn.PaymentDetail.CreditCardType.Value)
	assert.Equal(t, "************4242", txn.PaymentDetail.AccountNumberMasked)

	calls := charger.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "building fund", calls[0].Comment1)
	assert.Equal(t, "Ted", calls[0].FirstName)
	assert.Equal(t, "Decker", calls[0].LastName)
}

func TestProcessCharge_ZeroAmountIsRejected(t *testing.T) {
	charger := new(mocks.MockAutomatedCharger)
	h := newHarness(t, charger)

	req := fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, "0").Build()

	txn, err := h.processor.ProcessCharge(context.Background(), req)

	assert.Nil(t, txn)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationFailed))
	assert.Equal(t, "the line item amount must be greater than $0", domain.Reason(err))
	charger.AssertNotCalled(t, "AutomatedCharge", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessCharge_PayerWithoutSavedMethod(t *testing.T) {
	charger := new(mocks.MockAutomatedCharger)
	h := newHarness(t, charger)

	req := fixtures.NewChargeRequest(bareAliasID, gatewayID).WithItem(accountA, "20.00").Build()

	_, err := h.processor.ProcessCharge(context.Background(), req)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationFailed))
	assert.Equal(t, "the payer does not have a saved account", domain.Reason(err))
	charger.AssertNotCalled(t, "AutomatedCharge", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessCharge_GatewayDecline(t *testing.T) {
	decline := pkgerrors.NewPaymentError("51", "Insufficient funds", pkgerrors.CategoryInsufficientFunds, true).
		WithGatewayMessage("insufficient funds")
	charger := new(mocks.MockAutomatedCharger)
	charger.On("AutomatedCharge", mock.Anything, mock.Anything, mock.Anything).Return(nil, decline).Once()
	h := newHarness(t, charger)

	txn, err := h.processor.ProcessCharge(context.Background(), scenarioARequest())

	assert.Nil(t, txn)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayRejected))
	assert.Equal(t, "Error charging: insufficient funds", domain.Reason(err))
	assert.ErrorIs(t, err, decline)
	assert.False(t, domain.RequiresReconciliation(err))
	assert.Empty(t, h.store.Transactions())
	assert.Empty(t, h.store.Batches())
	charger.AssertExpectations(t)
}

func TestProcessCharge_GatewayReturnsNoTransaction(t *testing.T) {
	charger := new(mocks.MockAutomatedCharger)
	charger.On("AutomatedCharge", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()
	h := newHarness(t, charger)

	txn, err := h.processor.ProcessCharge(context.Background(), scenarioARequest())

	assert.Nil(t, txn)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayInconsistent))
	assert.Equal(t, "Error charging: transaction was not created", domain.Reason(err))
	assert.Empty(t, h.store.Transactions())
	assert.Empty(t, h.store.Batches())
	assert.Empty(t, h.store.History())
	assert.Zero(t, h.store.Calls(memstore.OpFindOrCreateBatch))
}

// TestProcessCharge_Validation runs every ordered check through both CheckValid and
// ProcessCharge and confirms the gateway is never reached
func TestProcessCharge_Validation(t *testing.T) {
	tests := []struct {
		name   string
		req    domain.ChargeRequest
		code   domain.ErrorCode
		reason string
	}{
		{
			name:   "unknown payer",
			req:    fixtures.NewChargeRequest(999, gatewayID).WithItem(accountA, "5").Build(),
			code:   domain.ErrorCodeResolutionGap,
			reason: "the payer reference did not resolve to a person",
		},
		{
			name:   "unknown gateway",
			req:    fixtures.NewChargeRequest(payerAliasID, 999).WithItem(accountA, "5").Build(),
			code:   domain.ErrorCodeResolutionGap,
			reason: "the gateway id did not resolve",
		},
		{
			name:   "inactive gateway",
			req:    fixtures.NewChargeRequest(payerAliasID, inactiveGwID).WithItem(accountA, "5").Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "the gateway is not active",
		},
		{
			name:   "gateway without automated charging",
			req:    fixtures.NewChargeRequest(payerAliasID, offlineID).WithItem(accountA, "5").Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "the gateway does not support automated charges",
		},
		{
			name:   "no line items",
			req:    fixtures.NewChargeRequest(payerAliasID, gatewayID).Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "at least one line item is required",
		},
		{
			name:   "duplicate account",
			req:    fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, "5").WithItem(accountA, "7").Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "each line item must reference a unique account",
		},
		{
			name:   "unknown account",
			req:    fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, "5").WithItem(999, "7").Build(),
			code:   domain.ErrorCodeResolutionGap,
			reason: "the account '999' did not resolve",
		},
		{
			name:   "negative amount",
			req:    fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, "-5").Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "the line item amount must be greater than $0",
		},
		{
			name:   "amount checked before account activity",
			req:    fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(closedAccount, "5").WithItem(accountA, "0").Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "the line item amount must be greater than $0",
		},
		{
			name:   "inactive account",
			req:    fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, "5").WithItem(closedAccount, "5").Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "the account '3' is not active",
		},
		{
			name:   "below minimum",
			req:    fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, "0.50").WithItem(accountB, "0.25").Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "the total amount must be at least $1.00",
		},
		{
			name:   "explicit saved method not owned by payer",
			req:    fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, "5").WithSavedPaymentMethod(999).Build(),
			code:   domain.ErrorCodeResolutionGap,
			reason: "the saved payment method '999' does not exist for the payer",
		},
		{
			name:   "payer without saved method",
			req:    fixtures.NewChargeRequest(bareAliasID, gatewayID).WithItem(accountA, "5").Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "the payer does not have a saved account",
		},
		{
			name: "unknown transaction type",
			req: fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, "5").
				WithTransactionType(fixtures.WebsiteSource().GUID).Build(),
			code:   domain.ErrorCodeValidationFailed,
			reason: "the transaction type is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charger := approving()
			h := newHarness(t, charger)

			ok, err := h.processor.CheckValid(context.Background(), tt.req)
			assert.False(t, ok)
			assert.True(t, domain.IsDomainError(err, tt.code), "got %v", err)
			assert.Equal(t, tt.reason, domain.Reason(err))

			txn, err := h.processor.ProcessCharge(context.Background(), tt.req)
			assert.Nil(t, txn)
			assert.True(t, domain.IsDomainError(err, tt.code), "got %v", err)
			assert.Equal(t, tt.reason, domain.Reason(err))
			assert.True(t, domain.IsCallerRecoverable(err))

			assert.Empty(t, charger.Calls())
			assert.Empty(t, h.store.Transactions())
		})
	}
}

func TestProcessCharge_SavedMethodWithoutReference(t *testing.T) {
	h := newHarness(t, approving())
	h.store.AddPerson(fixtures.NewPerson(3).WithPrimaryAliasID(30).Build())
	h.store.AddSavedPaymentMethod(fixtures.NewSavedCard(300, 3).WithoutReference().Build())

	req := fixtures.NewChargeRequest(30, gatewayID).WithItem(accountA, "5").Build()
	ok, err := h.processor.CheckValid(context.Background(), req)

	assert.False(t, ok)
	assert.Equal(t, "the saved payment method failed to produce reference payment info", domain.Reason(err))
}

func TestProcessCharge_SavedMethodPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		methods  []*domain.SavedPaymentMethod
		explicit *int64
		wantRef  string
	}{
		{
			name: "default wins over first",
			methods: []*domain.SavedPaymentMethod{
				fixtures.NewSavedCard(401, 4).Build(),
				fixtures.NewSavedCard(402, 4).Default().Build(),
			},
			wantRef: "ref_402",
		},
		{
			name: "first when none is default",
			methods: []*domain.SavedPaymentMethod{
				fixtures.NewSavedCard(412, 4).Build(),
				fixtures.NewSavedCard(411, 4).Build(),
			},
			wantRef: "ref_411",
		},
		{
			name: "explicit id wins over default",
			methods: []*domain.SavedPaymentMethod{
				fixtures.NewSavedCard(421, 4).Build(),
				fixtures.NewSavedCard(422, 4).Default().Build(),
			},
			explicit: fixtures.Int64Ptr(421),
			wantRef:  "ref_421",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charger := approving()
			h := newHarness(t, charger)
			h.store.AddPerson(fixtures.NewPerson(4).WithPrimaryAliasID(40).Build())
			for _, m := range tt.methods {
				h.store.AddSavedPaymentMethod(m)
			}

			req := fixtures.NewChargeRequest(40, gatewayID).WithItem(accountA, "5").Build()
			req.SavedPaymentMethodID = tt.explicit

			_, err := h.processor.ProcessCharge(context.Background(), req)

			require.NoError(t, err)
			calls := charger.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantRef, calls[0].ReferenceNumber)
		})
	}
}

func TestProcessCharge_ExplicitMethodOfAnotherPayer(t *testing.T) {
	charger := approving()
	h := newHarness(t, charger)

	req := fixtures.NewChargeRequest(bareAliasID, gatewayID).WithItem(accountA, "5").WithSavedPaymentMethod(savedCardID).Build()

	_, err := h.processor.ProcessCharge(context.Background(), req)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeResolutionGap))
	assert.Empty(t, charger.Calls())
}

func TestProcessCharge_DetailsComeFromLineItems(t *testing.T) {
	charger := &stubCharger{result: func(int) (*domain.Transaction, error) {
		return fixtures.NewTransaction("TXN-9").WithGatewayDetail(accountA, fixtures.Dollars("100.00")).Build(), nil
	}}
	h := newHarness(t, charger)
	h.store.AddAccount(fixtures.Account(4))

	req := fixtures.NewChargeRequest(payerAliasID, gatewayID).
		WithItem(accountA, "33.33").
		WithItem(accountB, "33.33").
		WithItem(4, "33.34").
		Build()

	txn, err := h.processor.ProcessCharge(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, txn.Details, 3)
	total := decimal.Zero
	for i, d := range txn.Details {
		assert.Equal(t, req.LineItems[i].AccountID, d.AccountID)
		assert.True(t, d.Amount.Equal(req.LineItems[i].Amount))
		assert.Equal(t, txn.ID, d.TransactionID)
		total = total.Add(d.Amount)
	}
	assert.Equal(t, "100.00", total.StringFixed(2))
	assert.True(t, total.Equal(charger.Calls()[0].Amount))
	assert.True(t, total.Equal(h.store.Batches()[0].ControlAmount))
}

func TestProcessCharge_NewBatchHistory(t *testing.T) {
	h := newHarness(t, approving())

	txn, err := h.processor.ProcessCharge(context.Background(), scenarioARequest())
	require.NoError(t, err)

	history := h.store.History()
	require.Len(t, history, 1)
	assert.Equal(t, charge.HistoryEntityBatch, history[0].EntityType)
	assert.Equal(t, txn.BatchID, history[0].EntityID)

	assert.Equal(t, domain.HistoryChangeList{
		{Verb: domain.HistoryVerbAdd, ChangeType: domain.HistoryChangeRecord, Caption: "Batch"},
		{Verb: domain.HistoryVerbAdd, ChangeType: domain.HistoryChangeProperty, Caption: "Batch Name", NewValue: "Online Giving Visa"},
		{Verb: domain.HistoryVerbAdd, ChangeType: domain.HistoryChangeProperty, Caption: "Status", NewValue: "open"},
		{Verb: domain.HistoryVerbAdd, ChangeType: domain.HistoryChangeProperty, Caption: "Start Date/Time", NewValue: "2026-03-14 00:00:00 UTC"},
		{Verb: domain.HistoryVerbAdd, ChangeType: domain.HistoryChangeProperty, Caption: "End Date/Time", NewValue: "2026-03-15 00:00:00 UTC"},
		{Verb: domain.HistoryVerbModify, ChangeType: domain.HistoryChangeProperty, Caption: "Control Amount", OldValue: "$0.00", NewValue: "$100.00"},
	}, history[0].Changes)
}

func TestProcessCharge_ExistingBatchOnlyRecordsControlAmount(t *testing.T) {
	h := newHarness(t, approving())

	_, err := h.processor.ProcessCharge(context.Background(), scenarioARequest())
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	second := fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, "50.00").SkipDuplicateGuard().Build()
	_, err = h.processor.ProcessCharge(context.Background(), second)
	require.NoError(t, err)

	history := h.store.History()
	require.Len(t, history, 2)
	assert.Equal(t, domain.HistoryChangeList{
		{Verb: domain.HistoryVerbModify, ChangeType: domain.HistoryChangeProperty, Caption: "Control Amount", OldValue: "$100.00", NewValue: "$150.00"},
	}, history[1].Changes)
	require.Len(t, h.store.Batches(), 1)
}

func TestProcessCharge_BatchNaming(t *testing.T) {
	h := newHarness(t, approving())

	req := fixtures.NewChargeRequest(payerAliasID, gatewayID).
		WithItem(accountA, "5").
		WithBatchNamePrefix("  Recurring Giving ").
		Build()
	_, err := h.processor.ProcessCharge(context.Background(), req)
	require.NoError(t, err)

	h.store.AddPerson(fixtures.NewPerson(5).WithPrimaryAliasID(50).Build())
	h.store.AddSavedPaymentMethod(fixtures.NewSavedCard(500, 5).WithoutCardType().Build())
	_, err = h.processor.ProcessCharge(context.Background(), fixtures.NewChargeRequest(50, gatewayID).WithItem(accountA, "5").Build())
	require.NoError(t, err)

	names := []string{}
	for _, b := range h.store.Batches() {
		names = append(names, b.Name)
	}
	assert.ElementsMatch(t, []string{"Recurring Giving Visa", "Online Giving"}, names)
}

func TestProcessCharge_GatewayBatchOffset(t *testing.T) {
	h := newHarness(t, approving())
	h.store.AddGateway(fixtures.GatewayWithOffset(12, 6*time.Hour))
	h.clock.Set(time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC))

	_, err := h.processor.ProcessCharge(context.Background(), fixtures.NewChargeRequest(payerAliasID, 12).WithItem(accountA, "5").Build())
	require.NoError(t, err)

	batches := h.store.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, time.Date(2026, 3, 13, 6, 0, 0, 0, time.UTC), batches[0].BatchStartDateTime)
	assert.Equal(t, time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC), batches[0].BatchEndDateTime)
}

// TestProcessCharge_ControlAmountIsOrderIndependent charges the same amounts in random
// orders and checks the batch total always equals their sum
func TestProcessCharge_ControlAmountIsOrderIndependent(t *testing.T) {
	amounts := []string{"1.00", "19.99", "250.00", "1.01", "73.45", "12.50", "999.99", "5.05"}
	want := decimal.Zero
	for _, a := range amounts {
		want = want.Add(fixtures.Dollars(a))
	}

	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 10; run++ {
		order := append([]string(nil), amounts...)
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		t.Run(fmt.Sprintf("order_%d", run), func(t *testing.T) {
			h := newHarness(t, approving())

			for _, amount := range order {
				req := fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountA, amount).SkipDuplicateGuard().Build()
				_, err := h.processor.ProcessCharge(context.Background(), req)
				require.NoError(t, err)
			}

			batches := h.store.Batches()
			require.Len(t, batches, 1)
			assert.True(t, batches[0].ControlAmount.Equal(want), "got %s want %s", batches[0].ControlAmount, want)

			sum := decimal.Zero
			for _, txn := range h.store.Transactions() {
				sum = sum.Add(txn.TotalAmount())
			}
			assert.True(t, sum.Equal(batches[0].ControlAmount))
		})
	}
}

func TestProcessCharge_ConcurrentChargesIntoOneBatch(t *testing.T) {
	h := newHarness(t, approving())
	for id := int64(20); id < 30; id++ {
		h.store.AddAccount(fixtures.Account(id))
	}

	var wg sync.WaitGroup
	for id := int64(20); id < 30; id++ {
		wg.Add(1)
		go func(accountID int64) {
			defer wg.Done()
			req := fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(accountID, "10.10").SkipDuplicateGuard().Build()
			_, err := h.processor.ProcessCharge(context.Background(), req)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	batches := h.store.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, "101.00", batches[0].ControlAmount.StringFixed(2))
	assert.Len(t, h.store.Transactions(), 10)
}

func TestProcessCharge_RepeatThroughAnotherAlias(t *testing.T) {
	charger := approving()
	h := newHarness(t, charger)

	first, err := h.processor.ProcessCharge(context.Background(), scenarioARequest())
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	second := fixtures.NewChargeRequest(payerAltAlias, gatewayID).WithItem(accountA, "25.00").Build()
	txn, err := h.processor.ProcessCharge(context.Background(), second)

	assert.Nil(t, txn)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeDuplicateSuspected))
	assert.Contains(t, domain.Reason(err), fmt.Sprintf("Check transaction id: %d.", first.ID))
	assert.Len(t, charger.Calls(), 1)
}

func TestProcessCharge_ConcurrentRepeatChargesOnce(t *testing.T) {
	charger := &stubCharger{result: func(int) (*domain.Transaction, error) {
		time.Sleep(20 * time.Millisecond)
		return fixtures.NewTransaction("TXN-C").Build(), nil
	}}
	h := newHarness(t, charger, withLocker(lock.NewLocalLocker(resilience.TestTimeoutConfig())))

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			alias := payerAliasID
			if i%2 == 1 {
				alias = payerAltAlias
			}
			_, errs[i] = h.processor.ProcessCharge(context.Background(),
				fixtures.NewChargeRequest(alias, gatewayID).WithItem(accountA, "25.00").Build())
		}(i)
	}
	wg.Wait()

	succeeded, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case domain.IsDomainError(err, domain.ErrorCodeDuplicateSuspected):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, duplicates)
	assert.Len(t, charger.Calls(), 1)
	assert.Len(t, h.store.Transactions(), 1)
}

func TestCheckRepeat(t *testing.T) {
	h := newHarness(t, approving())
	h.store.AddTransaction(&domain.Transaction{
		ID:                      555,
		TransactionCode:         "PRIOR",
		AuthorizedPersonAliasID: payerAltAlias,
		TransactionDateTime:     testNow.Add(-2 * time.Minute),
	})
	req := scenarioARequest()

	repeat, err := h.processor.CheckRepeat(context.Background(), req)
	assert.True(t, repeat)
	assert.Equal(t,
		"Found a likely repeat charge. Check transaction id: 555. Set skip_duplicate_guard to disable this protection.",
		domain.Reason(err))

	skip := req.Clone()
	skip.SkipDuplicateGuard = true
	repeat, err = h.processor.CheckRepeat(context.Background(), skip)
	assert.False(t, repeat)
	assert.NoError(t, err)

	h.clock.Advance(4 * time.Minute)
	repeat, err = h.processor.CheckRepeat(context.Background(), req)
	assert.False(t, repeat, "outside the window")
	assert.NoError(t, err)

	other := fixtures.NewChargeRequest(bareAliasID, gatewayID).WithItem(accountA, "5").Build()
	repeat, err = h.processor.CheckRepeat(context.Background(), other)
	assert.False(t, repeat)
	assert.NoError(t, err)

	repeat, err = h.processor.CheckRepeat(context.Background(), fixtures.NewChargeRequest(999, gatewayID).Build())
	assert.False(t, repeat)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeResolutionGap))
}

func TestCheckRepeat_StorageFailure(t *testing.T) {
	h := newHarness(t, approving())
	h.store.FailOn(memstore.OpFindRecent, errors.New("connection reset"))

	repeat, err := h.processor.CheckRepeat(context.Background(), scenarioARequest())

	assert.False(t, repeat)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeDatabaseError))
}

func TestCheckRepeat_PersonWithoutGivingID(t *testing.T) {
	h := newHarness(t, approving())
	h.store.AddPerson(fixtures.NewPerson(6).WithPrimaryAliasID(60).WithGivingID("").Build(), 61)
	h.store.AddSavedPaymentMethod(fixtures.NewSavedCard(600, 6).Build())
	h.store.AddTransaction(fixtures.NewTransaction("PRIOR").
		WithAuthorizedAlias(61).
		At(testNow.Add(-time.Minute)).
		Build())

	req := fixtures.NewChargeRequest(60, gatewayID).WithItem(accountA, "5").Build()
	repeat, err := h.processor.CheckRepeat(context.Background(), req)
	assert.True(t, repeat)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeDuplicateSuspected))

	_, err = h.processor.ProcessCharge(context.Background(), req)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeDuplicateSuspected))
	assert.Len(t, h.store.Transactions(), 1)
}

func TestProcessCharge_PayerWithoutPrimaryAlias(t *testing.T) {
	charger := approving()
	h := newHarness(t, charger)
	h.store.AddPerson(fixtures.NewPerson(7).WithPrimaryAliasID(0).Build(), 70)
	h.store.AddSavedPaymentMethod(fixtures.NewSavedCard(700, 7).Default().Build())

	txn, err := h.processor.ProcessCharge(context.Background(),
		fixtures.NewChargeRequest(70, gatewayID).WithItem(accountA, "5").Build())

	assert.Nil(t, txn)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeResolutionGap))
	assert.Equal(t, "the payer does not have a primary alias", domain.Reason(err))
	assert.Empty(t, charger.Calls())
	assert.Empty(t, h.store.Transactions())
}

func TestProcessCharge_FractionalCentsAreRejected(t *testing.T) {
	charger := approving()
	h := newHarness(t, charger)

	req := fixtures.NewChargeRequest(payerAliasID, gatewayID).
		WithItem(accountA, "0.995").
		WithItem(accountB, "0.995").
		Build()
	ok, err := h.processor.CheckValid(context.Background(), req)
	assert.False(t, ok)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationFailed))

	_, err = h.processor.ProcessCharge(context.Background(), req)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationFailed))
	assert.Empty(t, charger.Calls())
}

func TestCheckValid_IsIdempotent(t *testing.T) {
	h := newHarness(t, approving())

	valid := scenarioARequest()
	ok1, err1 := h.processor.CheckValid(context.Background(), valid)
	ok2, err2 := h.processor.CheckValid(context.Background(), valid)
	assert.True(t, ok1)
	assert.NoError(t, err1)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, err1, err2)

	invalid := fixtures.NewChargeRequest(payerAliasID, gatewayID).WithItem(closedAccount, "5").Build()
	ok1, err1 = h.processor.CheckValid(context.Background(), invalid)
	ok2, err2 = h.processor.CheckValid(context.Background(), invalid)
	assert.False(t, ok1)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, domain.Reason(err1), domain.Reason(err2))
	assert.Equal(t, domain.GetErrorCode(err1), domain.GetErrorCode(err2))
}

func TestProcessCharge_PersistenceFailureRequiresReconciliation(t *testing.T) {
	tests := []struct {
		name          string
		failOp        string
		stage         string
		wantPersisted int
	}{
		{name: "ledger", failOp: memstore.OpCreateTransaction, stage: charge.StageLedger, wantPersisted: 0},
		{name: "batch increment", failOp: memstore.OpAddToControlAmount, stage: charge.StageLedger, wantPersisted: 0},
		{name: "attributes", failOp: memstore.OpSaveAttributes, stage: charge.StageAttributes, wantPersisted: 1},
		{name: "history", failOp: memstore.OpSaveHistory, stage: charge.StageHistory, wantPersisted: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charger := &stubCharger{result: func(int) (*domain.Transaction, error) {
				return fixtures.NewTransaction("TXN-R").WithAttribute("AuthCode", "123456").Build(), nil
			}}
			h := newHarness(t, charger)
			h.store.FailOn(tt.failOp, errors.New("database unavailable"))

			txn, err := h.processor.ProcessCharge(context.Background(), scenarioARequest())

			assert.Nil(t, txn)
			assert.True(t, domain.RequiresReconciliation(err))
			assert.True(t, domain.IsDomainError(err, domain.ErrorCodePersistenceAfterCharge))
			assert.False(t, domain.IsCallerRecoverable(err))

			var rec *domain.ReconciliationError
			require.ErrorAs(t, err, &rec)
			assert.Equal(t, tt.stage, rec.Stage)
			require.NotNil(t, rec.Transaction)
			assert.Equal(t, "TXN-R", rec.Transaction.TransactionCode)
			assert.True(t, rec.Transaction.TotalAmount().Equal(fixtures.Dollars("100.00")))

			assert.Len(t, charger.Calls(), 1, "a persistence failure must never re-charge")
			assert.Len(t, h.store.Transactions(), tt.wantPersisted)
			if tt.wantPersisted == 0 {
				assert.Empty(t, h.store.Batches(), "a failed ledger write rolls back the batch")
			}
		})
	}
}

func TestProcessCharge_PersistsAttributes(t *testing.T) {
	charger := &stubCharger{result: func(int) (*domain.Transaction, error) {
		return fixtures.NewTransaction("TXN-A").WithAttribute("AuthCode", "123456").Build(), nil
	}}
	h := newHarness(t, charger)

	txn, err := h.processor.ProcessCharge(context.Background(), scenarioARequest())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"AuthCode": "123456"}, h.store.Attributes(txn.ID))
}

func TestProcessCharge_CancellationAfterChargeStillPersists(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	charger := &stubCharger{result: func(int) (*domain.Transaction, error) {
		cancel()
		return fixtures.NewTransaction("TXN-X").Build(), nil
	}}
	h := newHarness(t, charger)

	txn, err := h.processor.ProcessCharge(ctx, scenarioARequest())

	require.NoError(t, err)
	assert.Equal(t, "TXN-X", txn.TransactionCode)
	assert.Len(t, h.store.Transactions(), 1)
}
