package charge

import (
	"fmt"

	"github.com/kevin07696/automated-charge/internal/domain"
)

// ValidationResult is the outcome of a validity check
type ValidationResult struct {
	Code   domain.ErrorCode
	Reason string
	OK     bool
}

// Err converts a failed result into a DomainError
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return domain.NewDomainError(r.Code, r.Reason)
}

func valid() ValidationResult {
	return ValidationResult{OK: true}
}

func invalid(code domain.ErrorCode, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Validator checks a request against its resolved context. It performs no I/O.
type Validator struct {
	policy Policy
}

// NewValidator creates a validator applying policy
func NewValidator(policy Policy) *Validator {
	return &Validator{policy: policy}
}

// Validate runs the checks in a fixed order and reports the first failure
func (v *Validator) Validate(req domain.ChargeRequest, rc *ResolvedContext) ValidationResult {
	if rc == nil || rc.Payer == nil {
		return invalid(domain.ErrorCodeResolutionGap, "the payer reference did not resolve to a person")
	}
	if rc.Payer.PrimaryAliasID == 0 {
		return invalid(domain.ErrorCodeResolutionGap, "the payer does not have a primary alias")
	}

	switch {
	case rc.Gateway == nil:
		return invalid(domain.ErrorCodeResolutionGap, "the gateway id did not resolve")
	case !rc.Gateway.IsActive:
		return invalid(domain.ErrorCodeValidationFailed, "the gateway is not active")
	case !rc.Component.SupportsAutomatedCharge():
		return invalid(domain.ErrorCodeValidationFailed, "the gateway does not support automated charges")
	}

	if len(req.LineItems) == 0 {
		return invalid(domain.ErrorCodeValidationFailed, "at least one line item is required")
	}
	if len(req.AccountIDs()) != len(req.LineItems) {
		return invalid(domain.ErrorCodeValidationFailed, "each line item must reference a unique account")
	}

	for _, item := range req.LineItems {
		if rc.Accounts[item.AccountID] == nil {
			return invalid(domain.ErrorCodeResolutionGap, "the account '%d' did not resolve", item.AccountID)
		}
	}
	for _, item := range req.LineItems {
		if !item.Amount.IsPositive() {
			return invalid(domain.ErrorCodeValidationFailed, "the line item amount must be greater than $0")
		}
		if !item.Amount.Equal(item.Amount.Round(2)) {
			return invalid(domain.ErrorCodeValidationFailed, "the line item amount '%s' has fractions of a cent", item.Amount.String())
		}
	}
	for _, item := range req.LineItems {
		if !rc.Accounts[item.AccountID].IsActive {
			return invalid(domain.ErrorCodeValidationFailed, "the account '%d' is not active", item.AccountID)
		}
	}

	if req.TotalAmount().LessThan(v.policy.MinimumAmount) {
		return invalid(domain.ErrorCodeValidationFailed, "the total amount must be at least %s", domain.FormatCurrency(v.policy.MinimumAmount))
	}

	if rc.SavedPaymentMethod == nil {
		if req.SavedPaymentMethodID != nil {
			return invalid(domain.ErrorCodeResolutionGap, "the saved payment method '%d' does not exist for the payer", *req.SavedPaymentMethodID)
		}
		return invalid(domain.ErrorCodeValidationFailed, "the payer does not have a saved account")
	}
	if rc.ReferencePayment == nil {
		return invalid(domain.ErrorCodeValidationFailed, "the saved payment method failed to produce reference payment info")
	}

	if rc.TransactionType == nil {
		return invalid(domain.ErrorCodeValidationFailed, "the transaction type is invalid")
	}
	if rc.SourceType == nil {
		return invalid(domain.ErrorCodeValidationFailed, "the source type is invalid")
	}

	return valid()
}
