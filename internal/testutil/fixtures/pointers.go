// Package fixtures provides test data builders and helpers.
package fixtures

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to the given int64.
func Int64Ptr(i int64) *int64 {
	return &i
}

// UUIDPtr returns a pointer to the given UUID.
func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

// Dollars parses a decimal literal and panics on malformed input.
func Dollars(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
