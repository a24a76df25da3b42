package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	pkgerrors "github.com/kevin07696/automated-charge/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of a gateway response body is read
const maxResponseBytes = 1 << 20

// Attribute keys recorded on charged transactions
const (
	AttributeAuthCode     = "AuthCode"
	AttributeResponseCode = "ResponseCode"
)

// HostedPayConfig configures the hosted-pay charger
type HostedPayConfig struct {
	BaseURL     string
	TerminalID  string     // sent as EPI-Id
	RateLimit   rate.Limit // outbound charges per second
	RateBurst   int
	Breaker     BreakerConfig
	KeyTemplate string // secret path for the signing key, %d is the gateway id
}

// DefaultHostedPayConfig returns defaults for everything but BaseURL and TerminalID
func DefaultHostedPayConfig() HostedPayConfig {
	return HostedPayConfig{
		RateLimit:   rate.Limit(20),
		RateBurst:   5,
		Breaker:     DefaultBreakerConfig(),
		KeyTemplate: "gateways/%d/signing-key",
	}
}

// HostedPayCharger charges saved references through the hosted-pay JSON API
type HostedPayCharger struct {
	config     HostedPayConfig
	secrets    ports.SecretProvider
	httpClient ports.HTTPClient
	breaker    *Breaker
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ ports.AutomatedCharger = (*HostedPayCharger)(nil)

// NewHostedPayCharger creates a new hosted-pay charger
func NewHostedPayCharger(config HostedPayConfig, secrets ports.SecretProvider, httpClient ports.HTTPClient, logger *zap.Logger) *HostedPayCharger {
	c := &HostedPayCharger{
		config:     config,
		secrets:    secrets,
		httpClient: httpClient,
		breaker:    NewBreaker(config.Breaker, isTransportFailure),
		limiter:    rate.NewLimiter(config.RateLimit, config.RateBurst),
		logger:     logger,
	}
	c.breaker.OnStateChange(func(from, to BreakerState) {
		logger.Warn("Gateway circuit breaker changed state",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})
	return c
}

// chargeRequest is the body posted to /charges/{reference}
type chargeRequest struct {
	Amount          string        `json:"amount"`
	Currency        string        `json:"currency"`
	OriginalTxnCode string        `json:"originalTransactionCode,omitempty"`
	CustomerID      string        `json:"customerId,omitempty"`
	Customer        chargeContact `json:"customer"`
	Comment         string        `json:"comment,omitempty"`
	CardEntryMethod string        `json:"cardEntryMethod"` // Z=Token
	IndustryType    string        `json:"industryType"`    // E=Ecommerce
}

type chargeContact struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// chargeResponse is the hosted-pay response envelope
type chargeResponse struct {
	Data struct {
		Response string `json:"response"` // Response code (00, 51, etc.)
		Text     string `json:"text"`
		AuthCode string `json:"authCode"`
	} `json:"data"`
	Reference struct {
		TransactionCode string `json:"transactionCode"`
		MaskedAccount   string `json:"maskedAccount"`
	} `json:"reference"`
}

// AutomatedCharge issues one charge against a saved reference. Declines return a
// PaymentError with the gateway text; an approval without a transaction code returns
// (nil, nil) so the caller can treat the response as inconsistent.
func (c *HostedPayCharger) AutomatedCharge(ctx context.Context, gateway *domain.Gateway, info *domain.ReferencePaymentInfo) (*domain.Transaction, error) {
	reference := info.ReferenceNumber
	if reference == "" {
		reference = info.PaymentDetail.GatewayPersonIdentifier
	}
	if reference == "" {
		return nil, pkgerrors.NewValidationError("reference_number", "a saved payment reference is required")
	}
	if !info.Amount.IsPositive() {
		return nil, pkgerrors.NewValidationError("amount", "amount must be positive")
	}

	secret, err := c.secrets.GetSecret(ctx, fmt.Sprintf(c.config.KeyTemplate, gateway.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key for gateway %d: %w", gateway.ID, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, pkgerrors.NewPaymentError("RATE_LIMITED", "Payment gateway rate limit wait aborted", pkgerrors.CategoryUnavailable, true)
	}

	body := chargeRequest{
		Amount:          info.Amount.StringFixed(2),
		Currency:        "USD",
		OriginalTxnCode: info.TransactionCode,
		CustomerID:      info.PaymentDetail.GatewayPersonIdentifier,
		Customer: chargeContact{
			Email:     info.Email,
			FirstName: info.FirstName,
			LastName:  info.LastName,
		},
		Comment:         info.Comment1,
		CardEntryMethod: "Z",
		IndustryType:    "E",
	}

	var resp chargeResponse
	endpoint := "/charges/" + url.PathEscape(reference)
	err = c.breaker.Call(func() error {
		return c.makeRequest(ctx, secret.Value, http.MethodPost, endpoint, body, &resp)
	})
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyProbes) {
		return nil, pkgerrors.NewPaymentError("CIRCUIT_OPEN", "Payment gateway temporarily unavailable", pkgerrors.CategoryUnavailable, true).
			WithGatewayMessage("payment gateway temporarily unavailable")
	}
	if err != nil {
		return nil, err
	}

	code := LookupResponseCode(resp.Data.Response)
	if !code.IsApproved {
		c.logger.Info("Hosted-pay charge declined",
			zap.Int64("gateway_id", gateway.ID),
			zap.String("response_code", code.Code),
			zap.String("display", code.Display),
		)
		return nil, code.ToPaymentError(resp.Data.Text)
	}

	if strings.TrimSpace(resp.Reference.TransactionCode) == "" {
		c.logger.Error("Hosted-pay approval carried no transaction code",
			zap.Int64("gateway_id", gateway.ID),
		)
		return nil, nil
	}

	txn := &domain.Transaction{
		TransactionCode: resp.Reference.TransactionCode,
		Status:          domain.TransactionStatusSuccess,
		StatusMessage:   resp.Data.Text,
		PaymentDetail: domain.PaymentDetail{
			AccountNumberMasked: resp.Reference.MaskedAccount,
		},
	}
	txn.SetAttribute(AttributeResponseCode, resp.Data.Response)
	if resp.Data.AuthCode != "" {
		txn.SetAttribute(AttributeAuthCode, resp.Data.AuthCode)
	}
	return txn, nil
}

func (c *HostedPayCharger) makeRequest(ctx context.Context, key, method, endpoint string, request interface{}, response interface{}) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("EPI-Id", c.config.TerminalID)
	httpReq.Header.Set("EPI-Signature", Sign(key, endpoint, payload))

	c.logger.Debug("Sending hosted-pay request",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.NewPaymentError("NETWORK_ERROR", "Failed to connect to payment gateway", pkgerrors.CategoryNetworkError, true)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ports.ErrChargeOutcomeUnknown, err)
	}

	if httpResp.StatusCode >= 500 {
		return pkgerrors.NewPaymentError("GATEWAY_ERROR", "Payment gateway error", pkgerrors.CategorySystemError, true)
	}
	if httpResp.StatusCode >= 400 {
		return pkgerrors.NewPaymentError("REQUEST_ERROR", "Invalid request to payment gateway", pkgerrors.CategoryInvalidRequest, false).
			WithGatewayMessage(strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, response); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v", ports.ErrChargeOutcomeUnknown, err)
	}
	return nil
}

// isTransportFailure reports whether err means the gateway itself is unhealthy
func isTransportFailure(err error) bool {
	var pe *pkgerrors.PaymentError
	if !errors.As(err, &pe) {
		return true
	}
	return pe.Category == pkgerrors.CategoryNetworkError || pe.Category == pkgerrors.CategorySystemError
}
