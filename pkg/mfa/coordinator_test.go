package mfa_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artmobile/artkit/pkg/identity"
	"github.com/artmobile/artkit/pkg/mfa"
	"github.com/artmobile/artkit/pkg/validator"
)

const testPhone = "+254712345678"

type coordinatorFixture struct {
	provider *MockSecondFactorProvider
	clock    *time.Time
	coord    *mfa.Coordinator
}

func newFixture(t *testing.T, opts ...mfa.Option) *coordinatorFixture {
	t.Helper()
	provider := &MockSecondFactorProvider{}
	now := time.Now()
	clock := &now
	nowFn := func() time.Time { return *clock }

	base := []mfa.Option{
		mfa.WithCaptcha(identity.StaticCaptcha("captcha-ok")),
		mfa.WithPrincipal(func() *identity.UserRecord {
			return &identity.UserRecord{ID: "uid-1", EmailVerified: true}
		}),
		mfa.WithCooldownStore(mfa.NewMemoryCooldownStore().WithClock(nowFn)),
		mfa.WithNowFunc(nowFn),
	}
	return &coordinatorFixture{
		provider: provider,
		clock:    clock,
		coord:    mfa.NewCoordinator(provider, append(base, opts...)...),
	}
}

func (f *coordinatorFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestRequestEnrollmentCodeValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, phone := range []string{"", "0712345678", "+0712345678", "+1 415 555 2671"} {
		phone := phone
		t.Run("rejects "+phone, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			_, err := f.coord.RequestEnrollmentCode(ctx, phone)
			assert.True(t, validator.IsValidationError(err))
			f.provider.AssertNotCalled(t, "StartEnrollment")
		})
	}
}

func TestEnrollmentRequiresSignedInPrincipal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &MockSecondFactorProvider{}
	coord := mfa.NewCoordinator(provider,
		mfa.WithCaptcha(identity.StaticCaptcha("captcha-ok")),
		mfa.WithPrincipal(func() *identity.UserRecord { return nil }))

	// Signed out: both enrollment steps fail locally, nothing reaches
	// the provider.
	_, err := coord.RequestEnrollmentCode(ctx, testPhone)
	assert.True(t, identity.IsCode(err, identity.CodePreconditionFailed))
	provider.AssertNotCalled(t, "StartEnrollment")

	err = coord.ConfirmEnrollment(ctx, "vid-1", "123456", "Phone")
	assert.True(t, identity.IsCode(err, identity.CodePreconditionFailed))
	provider.AssertNotCalled(t, "ConfirmEnrollment")
}

func TestRequestEnrollmentCodeUnsupportedPlatform(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &MockSecondFactorProvider{}
	coord := mfa.NewCoordinator(provider) // no captcha capability

	assert.False(t, coord.PlatformSupported())

	_, err := coord.RequestEnrollmentCode(ctx, testPhone)
	assert.True(t, identity.IsCode(err, identity.CodePlatformUnsupported))
	provider.AssertNotCalled(t, "StartEnrollment")
}

func TestEnrollmentHappyPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.provider.On("StartEnrollment", ctx, testPhone, "captcha-ok").Return("vid-1", nil).Once()
	f.provider.On("ConfirmEnrollment", ctx, "vid-1", "123456", "Phone").Return(nil).Once()

	request, err := f.coord.RequestEnrollmentCode(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, "vid-1", request.VerificationID)
	assert.Equal(t, testPhone, request.PhoneNumber)
	require.NotNil(t, f.coord.PendingEnrollment())

	require.NoError(t, f.coord.ConfirmEnrollment(ctx, "vid-1", "123456", "Phone"))
	assert.Nil(t, f.coord.PendingEnrollment())
	f.provider.AssertExpectations(t)
}

func TestEnrollmentResendCooldown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.provider.On("StartEnrollment", ctx, testPhone, "captcha-ok").Return("vid-1", nil).Once()
	_, err := f.coord.RequestEnrollmentCode(ctx, testPhone)
	require.NoError(t, err)

	// Immediate resend is rejected locally: exactly one provider call so far.
	_, err = f.coord.RequestEnrollmentCode(ctx, testPhone)
	var cooldownErr *mfa.CooldownError
	require.ErrorAs(t, err, &cooldownErr)
	assert.Greater(t, cooldownErr.Remaining, time.Duration(0))
	f.provider.AssertNumberOfCalls(t, "StartEnrollment", 1)

	assert.Greater(t, f.coord.RemainingEnrollmentCooldown(ctx, testPhone), 55*time.Second)

	// After the cooldown elapses the resend goes through: exactly one
	// more call.
	f.advance(61 * time.Second)
	f.provider.On("StartEnrollment", ctx, testPhone, "captcha-ok").Return("vid-2", nil).Once()
	request, err := f.coord.RequestEnrollmentCode(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, "vid-2", request.VerificationID)
	f.provider.AssertNumberOfCalls(t, "StartEnrollment", 2)
}

func TestEnrollmentRateLimitExtendsCooldown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	rateLimited := identity.NewAuthError(identity.CodeTooManyRequests, "too many requests; slow down")
	f.provider.On("StartEnrollment", ctx, testPhone, "captcha-ok").Return("", rateLimited).Once()

	_, err := f.coord.RequestEnrollmentCode(ctx, testPhone)
	assert.True(t, identity.IsCode(err, identity.CodeTooManyRequests))

	// Cooldown extended to 90s, not the 60s baseline.
	remaining := f.coord.RemainingEnrollmentCooldown(ctx, testPhone)
	assert.Greater(t, remaining, 85*time.Second)

	// Still cooling down past the baseline window.
	f.advance(75 * time.Second)
	_, err = f.coord.RequestEnrollmentCode(ctx, testPhone)
	var cooldownErr *mfa.CooldownError
	assert.ErrorAs(t, err, &cooldownErr)
	f.provider.AssertNumberOfCalls(t, "StartEnrollment", 1)
}

func TestConfirmEnrollmentPreconditions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	// No pending enrollment: precondition failure without a network call.
	err := f.coord.ConfirmEnrollment(ctx, "vid-1", "123456", "Phone")
	assert.True(t, identity.IsCode(err, identity.CodePreconditionFailed))
	f.provider.AssertNotCalled(t, "ConfirmEnrollment")

	// Malformed code: rejected before the provider sees it.
	f.provider.On("StartEnrollment", ctx, testPhone, "captcha-ok").Return("vid-1", nil).Once()
	_, err = f.coord.RequestEnrollmentCode(ctx, testPhone)
	require.NoError(t, err)
	err = f.coord.ConfirmEnrollment(ctx, "vid-1", "12ab56", "Phone")
	assert.True(t, validator.IsValidationError(err))
	f.provider.AssertNotCalled(t, "ConfirmEnrollment")

	// Abandoning drops the pending request.
	f.coord.AbandonEnrollment()
	err = f.coord.ConfirmEnrollment(ctx, "vid-1", "123456", "Phone")
	assert.True(t, identity.IsCode(err, identity.CodePreconditionFailed))
}

func TestConfirmEnrollmentProviderErrorsPassThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.provider.On("StartEnrollment", ctx, testPhone, "captcha-ok").Return("vid-1", nil).Once()
	_, err := f.coord.RequestEnrollmentCode(ctx, testPhone)
	require.NoError(t, err)

	invalid := identity.NewAuthError(identity.CodeInvalidCode, "the verification code is incorrect")
	f.provider.On("ConfirmEnrollment", ctx, "vid-1", "000000", "Phone").Return(invalid).Once()

	err = f.coord.ConfirmEnrollment(ctx, "vid-1", "000000", "Phone")
	assert.True(t, identity.IsCode(err, identity.CodeInvalidCode))

	// Enrollment stays pending for retry.
	assert.NotNil(t, f.coord.PendingEnrollment())
}

func TestRequestChallengeCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	resolver := &identity.Resolver{
		ID: "resolver-1",
		Hints: []identity.FactorHint{
			{UID: "factor-1", DisplayName: "Phone", PhoneNumber: "+2*********78"},
			{UID: "factor-2", DisplayName: "Backup", PhoneNumber: "+1*********99"},
		},
	}

	t.Run("uses first hint", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.provider.On("StartChallenge", ctx, "resolver-1", resolver.Hints[0], "captcha-ok").
			Return("vid-9", nil).Once()

		vid, err := f.coord.RequestChallengeCode(ctx, resolver)
		require.NoError(t, err)
		assert.Equal(t, "vid-9", vid)
		f.provider.AssertExpectations(t)
	})

	t.Run("nil resolver is a precondition failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.coord.RequestChallengeCode(ctx, nil)
		assert.True(t, identity.IsCode(err, identity.CodePreconditionFailed))
		f.provider.AssertNotCalled(t, "StartChallenge")
	})

	t.Run("unsupported platform fails deterministically", func(t *testing.T) {
		t.Parallel()
		provider := &MockSecondFactorProvider{}
		coord := mfa.NewCoordinator(provider)
		_, err := coord.RequestChallengeCode(ctx, resolver)
		assert.True(t, identity.IsCode(err, identity.CodePlatformUnsupported))
		provider.AssertNotCalled(t, "StartChallenge")
	})

	t.Run("resend respects cooldown per resolver", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.provider.On("StartChallenge", ctx, "resolver-1", resolver.Hints[0], "captcha-ok").
			Return("vid-9", nil).Once()

		_, err := f.coord.RequestChallengeCode(ctx, resolver)
		require.NoError(t, err)

		_, err = f.coord.RequestChallengeCode(ctx, resolver)
		var cooldownErr *mfa.CooldownError
		assert.ErrorAs(t, err, &cooldownErr)
		f.provider.AssertNumberOfCalls(t, "StartChallenge", 1)
	})
}

func TestResolveChallenge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	resolver := &identity.Resolver{
		ID:    "resolver-1",
		Hints: []identity.FactorHint{{UID: "factor-1", DisplayName: "Phone"}},
	}

	t.Run("success returns the user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		user := &identity.UserRecord{ID: "uid-1", Email: "user@example.com", EmailVerified: true}
		f.provider.On("ResolveChallenge", ctx, "resolver-1", "vid-9", "123456").Return(user, nil).Once()

		got, err := f.coord.ResolveChallenge(ctx, resolver, "vid-9", "123456")
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("missing verification id is a precondition failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.coord.ResolveChallenge(ctx, resolver, "", "123456")
		assert.True(t, identity.IsCode(err, identity.CodePreconditionFailed))
		f.provider.AssertNotCalled(t, "ResolveChallenge")
	})

	t.Run("malformed code never reaches the provider", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.coord.ResolveChallenge(ctx, resolver, "vid-9", "12-456")
		assert.True(t, validator.IsValidationError(err))
		f.provider.AssertNotCalled(t, "ResolveChallenge")
	})
}
