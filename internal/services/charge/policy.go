package charge

import (
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/shopspring/decimal"
)

// Policy holds the business defaults applied to every charge
type Policy struct {
	MinimumAmount          decimal.Decimal
	DefaultBatchNamePrefix string
	RepeatWindow           time.Duration
	DefaultTransactionType uuid.UUID
	DefaultSourceType      uuid.UUID
}

// DefaultPolicy returns the production defaults
func DefaultPolicy() Policy {
	return Policy{
		MinimumAmount:          decimal.NewFromInt(1),
		DefaultBatchNamePrefix: "Online Giving",
		RepeatWindow:           5 * time.Minute,
		DefaultTransactionType: domain.TransactionTypeContributionGUID,
		DefaultSourceType:      domain.SourceTypeWebsiteGUID,
	}
}

func (p Policy) batchPrefix(req domain.ChargeRequest) string {
	if req.BatchNamePrefix != "" {
		return req.BatchNamePrefix
	}
	return p.DefaultBatchNamePrefix
}

func (p Policy) transactionType(req domain.ChargeRequest) uuid.UUID {
	if req.TransactionTypeGUID != nil {
		return *req.TransactionTypeGUID
	}
	return p.DefaultTransactionType
}

func (p Policy) sourceType(req domain.ChargeRequest) uuid.UUID {
	if req.SourceTypeGUID != nil {
		return *req.SourceTypeGUID
	}
	return p.DefaultSourceType
}
