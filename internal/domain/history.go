package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HistoryVerb describes what happened to a record or property
type HistoryVerb string

const (
	HistoryVerbAdd    HistoryVerb = "ADD"
	HistoryVerbModify HistoryVerb = "MODIFY"
	HistoryVerbDelete HistoryVerb = "DELETE"
)

// HistoryChangeType distinguishes whole-record entries from property entries
type HistoryChangeType string

const (
	HistoryChangeRecord   HistoryChangeType = "Record"
	HistoryChangeProperty HistoryChangeType = "Property"
)

// HistoryChange is one audit entry
type HistoryChange struct {
	Verb       HistoryVerb       `json:"verb"`
	ChangeType HistoryChangeType `json:"change_type"`
	Caption    string            `json:"caption"`
	OldValue   string            `json:"old_value,omitempty"`
	NewValue   string            `json:"new_value,omitempty"`
}

// HistoryChangeList accumulates audit entries for one entity
type HistoryChangeList []HistoryChange

// AddRecord records the creation of a whole record
func (l *HistoryChangeList) AddRecord(caption string) {
	*l = append(*l, HistoryChange{
		Verb:       HistoryVerbAdd,
		ChangeType: HistoryChangeRecord,
		Caption:    caption,
	})
}

// AddChange records a property change even when the values are equal
func (l *HistoryChangeList) AddChange(caption, oldValue, newValue string) {
	*l = append(*l, HistoryChange{
		Verb:       verbFor(oldValue, newValue),
		ChangeType: HistoryChangeProperty,
		Caption:    caption,
		OldValue:   oldValue,
		NewValue:   newValue,
	})
}

// EvaluateChange records a property change only when the value actually changed
func (l *HistoryChangeList) EvaluateChange(caption, oldValue, newValue string) {
	if strings.TrimSpace(oldValue) == strings.TrimSpace(newValue) {
		return
	}
	l.AddChange(caption, oldValue, newValue)
}

func verbFor(oldValue, newValue string) HistoryVerb {
	switch {
	case oldValue == "":
		return HistoryVerbAdd
	case newValue == "":
		return HistoryVerbDelete
	default:
		return HistoryVerbModify
	}
}

// FormatCurrency renders an amount as "$1,234.50"
func FormatCurrency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// FormatHistoryTime renders a timestamp for audit entries
func FormatHistoryTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}
