package gateway

import (
	pkgerrors "github.com/kevin07696/automated-charge/pkg/errors"
)

// ResponseCode describes one gateway response code
type ResponseCode struct {
	Code        string
	Display     string
	UserMessage string
	Category    pkgerrors.ErrorCategory
	IsApproved  bool
	IsRetriable bool
}

var responseCodes = map[string]ResponseCode{
	"00": {Code: "00", Display: "APPROVAL", IsApproved: true, UserMessage: "Payment successful"},
	"05": {
		Code:        "05",
		Display:     "DECLINE",
		Category:    pkgerrors.CategoryDeclined,
		UserMessage: "Transaction declined by the card issuer",
	},
	"14": {
		Code:        "14",
		Display:     "INVALID ACCT",
		Category:    pkgerrors.CategoryInvalidCard,
		UserMessage: "The saved card number is invalid",
	},
	"41": {
		Code:        "41",
		Display:     "LOST CARD",
		Category:    pkgerrors.CategoryFraud,
		UserMessage: "Card reported as lost",
	},
	"43": {
		Code:        "43",
		Display:     "STOLEN CARD",
		Category:    pkgerrors.CategoryFraud,
		UserMessage: "Card reported as stolen",
	},
	"51": {
		Code:        "51",
		Display:     "INSUFF FUNDS",
		Category:    pkgerrors.CategoryInsufficientFunds,
		IsRetriable: true,
		UserMessage: "Insufficient funds",
	},
	"54": {
		Code:        "54",
		Display:     "EXP CARD",
		Category:    pkgerrors.CategoryExpiredCard,
		UserMessage: "The saved card has expired",
	},
	"59": {
		Code:        "59",
		Display:     "SUSPECTED FRAUD",
		Category:    pkgerrors.CategoryFraud,
		UserMessage: "Transaction declined for security reasons",
	},
	"91": {
		Code:        "91",
		Display:     "TIMEOUT",
		Category:    pkgerrors.CategorySystemError,
		IsRetriable: true,
		UserMessage: "Issuer or switch timeout",
	},
	"96": {
		Code:        "96",
		Display:     "SYSTEM ERROR",
		Category:    pkgerrors.CategorySystemError,
		IsRetriable: true,
		UserMessage: "Gateway system malfunction",
	},
}

// LookupResponseCode returns the description of code; unknown codes are declines
func LookupResponseCode(code string) ResponseCode {
	if info, ok := responseCodes[code]; ok {
		return info
	}
	return ResponseCode{
		Code:        code,
		Display:     "UNKNOWN",
		Category:    pkgerrors.CategoryDeclined,
		UserMessage: "Transaction declined",
	}
}

// ToPaymentError converts a declined response into a PaymentError carrying the gateway text
func (r ResponseCode) ToPaymentError(gatewayMessage string) *pkgerrors.PaymentError {
	return pkgerrors.NewPaymentError(r.Code, r.UserMessage, r.Category, r.IsRetriable).
		WithGatewayMessage(gatewayMessage)
}
