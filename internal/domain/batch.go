package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// BatchStatus is the lifecycle state of a settlement batch
type BatchStatus string

const (
	BatchStatusPending BatchStatus = "pending"
	BatchStatusOpen    BatchStatus = "open"
	BatchStatusClosed  BatchStatus = "closed"
)

// Batch groups transactions for settlement. ControlAmount is the running
// total of every transaction attached to the batch.
type Batch struct {
	BatchStartDateTime time.Time       `json:"batch_start_date_time"`
	BatchEndDateTime   time.Time       `json:"batch_end_date_time"`
	ControlAmount      decimal.Decimal `json:"control_amount"`
	Name               string          `json:"name"`
	Status             BatchStatus     `json:"status"`
	ID                 int64           `json:"id"`
	GUID               uuid.UUID       `json:"guid"`
}

// Contains reports whether t falls in [start, end)
func (b *Batch) Contains(t time.Time) bool {
	return !t.Before(b.BatchStartDateTime) && t.Before(b.BatchEndDateTime)
}

// BatchKey identifies the open batch a transaction belongs to
type BatchKey struct {
	TransactionTime time.Time
	Name            string
	Offset          time.Duration
}

// Window returns the day-long window containing the transaction time.
// The window starts at midnight plus the gateway offset; when that start lies
// after the transaction it moves back one day.
func (k BatchKey) Window() (start, end time.Time) {
	start = timeutil.StartOfDay(k.TransactionTime).Add(k.Offset)
	if start.After(k.TransactionTime.UTC()) {
		start = start.AddDate(0, 0, -1)
	}
	return start, start.AddDate(0, 0, 1)
}

// NewOpenBatch builds a fresh open batch for the key with a zero control amount
func NewOpenBatch(key BatchKey, guid uuid.UUID) *Batch {
	start, end := key.Window()
	return &Batch{
		GUID:               guid,
		Name:               key.Name,
		Status:             BatchStatusOpen,
		BatchStartDateTime: start,
		BatchEndDateTime:   end,
		ControlAmount:      decimal.Zero,
	}
}

// BatchName appends the card type's batch suffix (or else the currency type's) to prefix
func BatchName(prefix string, detail PaymentDetail) string {
	name := strings.TrimSpace(prefix)
	suffix := ""
	if detail.CreditCardType != nil && detail.CreditCardType.BatchNameSuffix != "" {
		suffix = detail.CreditCardType.BatchNameSuffix
	} else if detail.CurrencyType != nil {
		suffix = detail.CurrencyType.BatchNameSuffix
	}
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return name
	}
	return name + " " + suffix
}
