package identity

import "context"

// SessionChangeFn receives the provider's current user, or nil after
// sign-out. It is invoked once on subscription with the current value and
// again on every change. Token refreshes do not count as changes.
type SessionChangeFn func(user *UserRecord)

// UnsubscribeFn releases a session-change subscription. Idempotent.
type UnsubscribeFn func()

// Provider is the identity provider port consumed by the auth session
// and the MFA coordinator.
type Provider interface {
	// SignUp creates an account with the display name applied and a
	// verification email dispatched best-effort: a failed dispatch is
	// logged by the implementation, never returned.
	SignUp(ctx context.Context, email, password, displayName string) (*UserRecord, error)

	// SignIn verifies credentials. When the account has a second factor
	// enrolled the returned error is an *MfaRequiredError carrying the
	// resolver; all other failures are *AuthError.
	SignIn(ctx context.Context, email, password string) (*UserRecord, error)

	// SignOut clears the provider session. It never fails the caller;
	// implementations apply a best-effort local sign-out and swallow
	// provider errors.
	SignOut(ctx context.Context)

	// SendPasswordReset dispatches a reset email for the address.
	SendPasswordReset(ctx context.Context, email string) error

	// SendVerificationEmail dispatches a verification email to the
	// currently signed-in user, failing with a precondition error when
	// nobody is signed in.
	SendVerificationEmail(ctx context.Context) error

	// SubscribeSessionChanges registers a callback fired with the current
	// user immediately and on every subsequent change. The returned
	// function must be called on teardown.
	SubscribeSessionChanges(fn SessionChangeFn) UnsubscribeFn

	SecondFactorProvider
}

// SecondFactorProvider exposes the phone second-factor primitives:
// two-step enrollment for a signed-in account, and two-step challenge
// resolution for a sign-in held by a resolver.
type SecondFactorProvider interface {
	// StartEnrollment dispatches an SMS code to the phone number for the
	// signed-in user and returns a verification id. The captcha token
	// proves an anti-automation challenge was solved.
	StartEnrollment(ctx context.Context, phoneNumber, captchaToken string) (verificationID string, err error)

	// ConfirmEnrollment completes enrollment with the SMS code, attaching
	// the factor under the given display label.
	ConfirmEnrollment(ctx context.Context, verificationID, code, label string) error

	// StartChallenge dispatches an SMS code for the hinted factor of an
	// in-progress sign-in and returns a verification id.
	StartChallenge(ctx context.Context, resolverID string, hint FactorHint, captchaToken string) (verificationID string, err error)

	// ResolveChallenge completes the held sign-in with the SMS code and
	// returns the signed-in user.
	ResolveChallenge(ctx context.Context, resolverID, verificationID, code string) (*UserRecord, error)
}
