package gateway

import (
	"testing"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Component(t *testing.T) {
	charger := new(mocks.MockAutomatedCharger)
	r := NewRegistry()
	r.Register(EntityTypeHostedPay, charger)

	hosted := r.Component(&domain.Gateway{EntityType: EntityTypeHostedPay})
	require.NotNil(t, hosted)
	assert.True(t, hosted.SupportsAutomatedCharge())
	assert.Equal(t, EntityTypeHostedPay, hosted.Name)

	offline := r.Component(&domain.Gateway{EntityType: EntityTypeOffline})
	require.NotNil(t, offline)
	assert.False(t, offline.SupportsAutomatedCharge())

	assert.Nil(t, r.Component(&domain.Gateway{EntityType: "unknown"}))
	assert.Nil(t, r.Component(nil))
	assert.False(t, r.Component(&domain.Gateway{EntityType: "unknown"}).SupportsAutomatedCharge())
}

func TestSign(t *testing.T) {
	payload := []byte(`{"amount":"10.00"}`)

	sig := Sign("key", "/charges/tok", payload)

	assert.Len(t, sig, 64)
	assert.Equal(t, sig, Sign("key", "/charges/tok", payload))
	assert.True(t, VerifySignature("key", "/charges/tok", payload, sig))
	assert.False(t, VerifySignature("other", "/charges/tok", payload, sig))
	assert.False(t, VerifySignature("key", "/charges/tok2", payload, sig))
}

func TestLookupResponseCode(t *testing.T) {
	assert.True(t, LookupResponseCode("00").IsApproved)

	decline := LookupResponseCode("05")
	assert.False(t, decline.IsApproved)
	pe := decline.ToPaymentError("DO NOT HONOR")
	assert.Equal(t, "DO NOT HONOR", pe.GatewayMessage)
	assert.False(t, pe.IsRetriable)

	unknown := LookupResponseCode("ZZ")
	assert.False(t, unknown.IsApproved)
	assert.Equal(t, "UNKNOWN", unknown.Display)
}
