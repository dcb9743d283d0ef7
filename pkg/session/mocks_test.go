package session_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/artmobile/artkit/pkg/identity"
	"github.com/artmobile/artkit/pkg/profile"
)

// MockProvider is a mock identity.Provider. The session-change
// subscription is real so tests can drive notifications through Notify.
type MockProvider struct {
	mock.Mock

	mu      sync.Mutex
	fn      identity.SessionChangeFn
	current *identity.UserRecord
}

func (m *MockProvider) SubscribeSessionChanges(fn identity.SessionChangeFn) identity.UnsubscribeFn {
	m.mu.Lock()
	m.fn = fn
	current := m.current
	m.mu.Unlock()
	fn(current)
	return func() {}
}

// Notify simulates a provider-side session change.
func (m *MockProvider) Notify(user *identity.UserRecord) {
	m.mu.Lock()
	m.current = user
	fn := m.fn
	m.mu.Unlock()
	if fn != nil {
		fn(user)
	}
}

func (m *MockProvider) SignUp(ctx context.Context, email, password, displayName string) (*identity.UserRecord, error) {
	args := m.Called(ctx, email, password, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.UserRecord), args.Error(1)
}

func (m *MockProvider) SignIn(ctx context.Context, email, password string) (*identity.UserRecord, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.UserRecord), args.Error(1)
}

func (m *MockProvider) SignOut(ctx context.Context) {
	m.Called(ctx)
	m.Notify(nil)
}

func (m *MockProvider) SendPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockProvider) SendVerificationEmail(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProvider) StartEnrollment(ctx context.Context, phoneNumber, captchaToken string) (string, error) {
	args := m.Called(ctx, phoneNumber, captchaToken)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) ConfirmEnrollment(ctx context.Context, verificationID, code, label string) error {
	return m.Called(ctx, verificationID, code, label).Error(0)
}

func (m *MockProvider) StartChallenge(ctx context.Context, resolverID string, hint identity.FactorHint, captchaToken string) (string, error) {
	args := m.Called(ctx, resolverID, hint, captchaToken)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) ResolveChallenge(ctx context.Context, resolverID, verificationID, code string) (*identity.UserRecord, error) {
	args := m.Called(ctx, resolverID, verificationID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.UserRecord), args.Error(1)
}

var _ identity.Provider = (*MockProvider)(nil)

// MockChallenger is a mock session.Challenger.
type MockChallenger struct {
	mock.Mock
}

func (m *MockChallenger) RequestChallengeCode(ctx context.Context, resolver *identity.Resolver) (string, error) {
	args := m.Called(ctx, resolver)
	return args.String(0), args.Error(1)
}

func (m *MockChallenger) ResolveChallenge(ctx context.Context, resolver *identity.Resolver, verificationID, code string) (*identity.UserRecord, error) {
	args := m.Called(ctx, resolver, verificationID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.UserRecord), args.Error(1)
}

// countingReconciler counts Reconcile invocations to verify profile sync
// runs once per transition into the authenticated state.
type countingReconciler struct {
	mu    sync.Mutex
	calls int
}

func (r *countingReconciler) Reconcile(ctx context.Context, user *identity.UserRecord) *profile.UserProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return &profile.UserProfile{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.DisplayName,
		Role:     profile.RoleUser,
	}
}

func (r *countingReconciler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
