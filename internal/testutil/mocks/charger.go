// Package mocks provides shared mock implementations for testing.
package mocks

import (
	"context"

	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockAutomatedCharger is a testify mock of ports.AutomatedCharger
type MockAutomatedCharger struct {
	mock.Mock
}

func (m *MockAutomatedCharger) AutomatedCharge(ctx context.Context, gateway *domain.Gateway, info *domain.ReferencePaymentInfo) (*domain.Transaction, error) {
	args := m.Called(ctx, gateway, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

// MockSecretProvider is a testify mock of ports.SecretProvider
type MockSecretProvider struct {
	mock.Mock
}

func (m *MockSecretProvider) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.Secret), args.Error(1)
}
