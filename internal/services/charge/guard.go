package charge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/kevin07696/automated-charge/pkg/timeutil"
)

// RepeatGuard detects a likely repeat charge for the same giving identity
type RepeatGuard struct {
	history ports.ChargeHistory
	clock   timeutil.Clock
	window  time.Duration
}

// NewRepeatGuard creates a guard that looks back over window
func NewRepeatGuard(history ports.ChargeHistory, clock timeutil.Clock, window time.Duration) *RepeatGuard {
	return &RepeatGuard{
		history: history,
		clock:   clock,
		window:  window,
	}
}

// Check returns a DUPLICATE_SUSPECTED error when any alias sharing the payer's giving
// identity (or, without one, any alias of the payer) authorized a transaction inside the window. A skipped guard or an unresolved
// payer always passes; an unresolved payer is reported by validation instead.
func (g *RepeatGuard) Check(ctx context.Context, req domain.ChargeRequest, payer *domain.Person) error {
	if req.SkipDuplicateGuard || payer == nil {
		return nil
	}

	aliasIDs, err := g.aliasIDs(ctx, payer)
	if err != nil {
		return err
	}
	if len(aliasIDs) == 0 {
		return nil
	}

	since := g.clock.Now().Add(-g.window)
	recent, err := g.history.FindRecentTransaction(ctx, aliasIDs, since)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "query recent transactions", err)
	}
	if recent == nil {
		return nil
	}

	return domain.NewDomainError(domain.ErrorCodeDuplicateSuspected, fmt.Sprintf(
		"Found a likely repeat charge. Check transaction id: %d. Set skip_duplicate_guard to disable this protection.",
		recent.ID,
	)).WithDetail("transaction_id", recent.ID)
}

func (g *RepeatGuard) aliasIDs(ctx context.Context, payer *domain.Person) ([]int64, error) {
	if payer.GivingID == "" {
		ids, err := g.history.AliasIDsByPersonID(ctx, payer.ID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list person aliases", err)
		}
		return ids, nil
	}
	ids, err := g.history.AliasIDsByGivingID(ctx, payer.GivingID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list giving identity aliases", err)
	}
	return ids, nil
}

// identityLockKey names the lock serializing charges for one giving identity
func identityLockKey(req domain.ChargeRequest, payer *domain.Person) string {
	switch {
	case payer == nil:
		return "charge:alias:" + strconv.FormatInt(req.PayerAliasID, 10)
	case payer.GivingID != "":
		return "charge:identity:" + payer.GivingID
	default:
		return "charge:person:" + strconv.FormatInt(payer.ID, 10)
	}
}
