package mfa_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/artmobile/artkit/pkg/identity"
)

// MockSecondFactorProvider is a mock implementation of
// identity.SecondFactorProvider.
type MockSecondFactorProvider struct {
	mock.Mock
}

func (m *MockSecondFactorProvider) StartEnrollment(ctx context.Context, phoneNumber, captchaToken string) (string, error) {
	args := m.Called(ctx, phoneNumber, captchaToken)
	return args.String(0), args.Error(1)
}

func (m *MockSecondFactorProvider) ConfirmEnrollment(ctx context.Context, verificationID, code, label string) error {
	args := m.Called(ctx, verificationID, code, label)
	return args.Error(0)
}

func (m *MockSecondFactorProvider) StartChallenge(ctx context.Context, resolverID string, hint identity.FactorHint, captchaToken string) (string, error) {
	args := m.Called(ctx, resolverID, hint, captchaToken)
	return args.String(0), args.Error(1)
}

func (m *MockSecondFactorProvider) ResolveChallenge(ctx context.Context, resolverID, verificationID, code string) (*identity.UserRecord, error) {
	args := m.Called(ctx, resolverID, verificationID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.UserRecord), args.Error(1)
}
