package mfa

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/artmobile/artkit/pkg/identity"
	"github.com/artmobile/artkit/pkg/logger"
	"github.com/artmobile/artkit/pkg/validator"
)

const (
	defaultCodeLength = 6

	// SMS rate limits are provider-enforced in fixed windows, so the
	// extended cooldown is a fixed backoff, not exponential.
	defaultBaseCooldown        = 60 * time.Second
	defaultRateLimitedCooldown = 90 * time.Second
)

// EnrollmentRequest tracks an in-progress phone factor enrollment.
type EnrollmentRequest struct {
	PhoneNumber    string
	VerificationID string
	RequestedAt    time.Time
}

// Coordinator runs the enrollment and challenge protocols against a
// second-factor provider.
type Coordinator struct {
	provider  identity.SecondFactorProvider
	captcha   identity.CaptchaVerifier // nil: platform cannot host the challenge
	principal func() *identity.UserRecord
	cooldowns CooldownStore
	log       *slog.Logger

	codeLength          int
	baseCooldown        time.Duration
	rateLimitedCooldown time.Duration

	mu         sync.Mutex
	enrollment *EnrollmentRequest
	now        func() time.Time
}

// Option configures a Coordinator during construction.
type Option func(*Coordinator)

// WithCaptcha provides the platform's anti-automation capability. When
// it is absent, code dispatch fails with ErrPlatformUnsupported instead
// of hanging against a provider that will never accept the request.
func WithCaptcha(verifier identity.CaptchaVerifier) Option {
	return func(c *Coordinator) { c.captcha = verifier }
}

// WithPrincipal supplies the signed-in user lookup. Enrollment is an
// operation on the signed-in principal, so when the lookup reports
// nobody the coordinator rejects enrollment locally instead of sending
// a request the provider is bound to refuse.
func WithPrincipal(fn func() *identity.UserRecord) Option {
	return func(c *Coordinator) { c.principal = fn }
}

// WithCooldownStore replaces the default in-memory cooldown store.
func WithCooldownStore(store CooldownStore) Option {
	return func(c *Coordinator) { c.cooldowns = store }
}

// WithLogger sets a custom logger for the coordinator.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithCooldowns overrides the resend cooldown policy.
func WithCooldowns(base, rateLimited time.Duration) Option {
	return func(c *Coordinator) {
		c.baseCooldown = base
		c.rateLimitedCooldown = rateLimited
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates an MFA coordinator for the provider.
func NewCoordinator(provider identity.SecondFactorProvider, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider:            provider,
		cooldowns:           NewMemoryCooldownStore(),
		log:                 logger.Noop(),
		codeLength:          defaultCodeLength,
		baseCooldown:        defaultBaseCooldown,
		rateLimitedCooldown: defaultRateLimitedCooldown,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlatformSupported reports whether the runtime can host the
// anti-automation challenge phone verification requires.
func (c *Coordinator) PlatformSupported() bool {
	return c.captcha != nil
}

// RequestEnrollmentCode validates the phone number, solves the captcha
// and asks the provider to dispatch an SMS code, starting a new
// enrollment. Numbers failing E.164 validation never reach the provider.
func (c *Coordinator) RequestEnrollmentCode(ctx context.Context, phoneNumber string) (*EnrollmentRequest, error) {
	if err := validator.Apply(validator.PhoneE164("phone", phoneNumber)); err != nil {
		return nil, err
	}
	if err := c.requireSignedIn(); err != nil {
		return nil, err
	}
	if c.captcha == nil {
		return nil, identity.ErrPlatformUnsupported
	}

	verificationID, err := c.dispatch(ctx, enrollCooldownKey(phoneNumber), func(captchaToken string) (string, error) {
		return c.provider.StartEnrollment(ctx, phoneNumber, captchaToken)
	})
	if err != nil {
		return nil, err
	}

	request := &EnrollmentRequest{
		PhoneNumber:    phoneNumber,
		VerificationID: verificationID,
		RequestedAt:    c.now(),
	}
	c.mu.Lock()
	c.enrollment = request
	c.mu.Unlock()

	c.log.InfoContext(ctx, "enrollment code dispatched",
		logger.Component("mfa"), logger.Phone(phoneNumber))
	return request, nil
}

// ConfirmEnrollment completes the pending enrollment with the SMS code,
// attaching the factor under the given display label.
func (c *Coordinator) ConfirmEnrollment(ctx context.Context, verificationID, code, label string) error {
	if err := validator.Apply(validator.OTPCode("code", code, c.codeLength)); err != nil {
		return err
	}
	if err := c.requireSignedIn(); err != nil {
		return err
	}

	c.mu.Lock()
	pending := c.enrollment
	c.mu.Unlock()
	if pending == nil || pending.VerificationID != verificationID {
		return identity.NewAuthError(identity.CodePreconditionFailed,
			"no enrollment is pending; request a new code first")
	}

	if err := c.provider.ConfirmEnrollment(ctx, verificationID, code, label); err != nil {
		return err
	}

	c.mu.Lock()
	c.enrollment = nil
	c.mu.Unlock()
	_ = c.cooldowns.Clear(ctx, enrollCooldownKey(pending.PhoneNumber))
	return nil
}

// AbandonEnrollment drops the pending enrollment, if any. Called when
// the user navigates away.
func (c *Coordinator) AbandonEnrollment() {
	c.mu.Lock()
	c.enrollment = nil
	c.mu.Unlock()
}

// PendingEnrollment returns the in-progress enrollment, or nil.
func (c *Coordinator) PendingEnrollment() *EnrollmentRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enrollment == nil {
		return nil
	}
	request := *c.enrollment
	return &request
}

// RemainingEnrollmentCooldown reports how long until a code can be
// re-sent to the number. UIs render it as a countdown on the resend
// control.
func (c *Coordinator) RemainingEnrollmentCooldown(ctx context.Context, phoneNumber string) time.Duration {
	remaining, err := c.cooldowns.Remaining(ctx, enrollCooldownKey(phoneNumber))
	if err != nil {
		c.log.WarnContext(ctx, "cooldown lookup failed", logger.Component("mfa"), logger.Error(err))
		return 0
	}
	return remaining
}

// RequestChallengeCode dispatches an SMS code for the first available
// factor of a sign-in held by the resolver.
func (c *Coordinator) RequestChallengeCode(ctx context.Context, resolver *identity.Resolver) (string, error) {
	if resolver == nil || len(resolver.Hints) == 0 {
		return "", identity.NewAuthError(identity.CodePreconditionFailed,
			"no sign-in is awaiting a second factor")
	}
	if c.captcha == nil {
		return "", identity.ErrPlatformUnsupported
	}

	hint := resolver.Hints[0]
	verificationID, err := c.dispatch(ctx, challengeCooldownKey(resolver.ID), func(captchaToken string) (string, error) {
		return c.provider.StartChallenge(ctx, resolver.ID, hint, captchaToken)
	})
	if err != nil {
		return "", err
	}

	c.log.InfoContext(ctx, "challenge code dispatched", logger.Component("mfa"))
	return verificationID, nil
}

// ResolveChallenge completes the held sign-in with the SMS code. Both
// the resolver and a dispatched verification id are required; resolving
// without them is a precondition failure, not a network call.
func (c *Coordinator) ResolveChallenge(ctx context.Context, resolver *identity.Resolver, verificationID, code string) (*identity.UserRecord, error) {
	if resolver == nil || verificationID == "" {
		return nil, identity.NewAuthError(identity.CodePreconditionFailed,
			"no challenge code was dispatched; request one first")
	}
	if err := validator.Apply(validator.OTPCode("code", code, c.codeLength)); err != nil {
		return nil, err
	}

	user, err := c.provider.ResolveChallenge(ctx, resolver.ID, verificationID, code)
	if err != nil {
		return nil, err
	}

	_ = c.cooldowns.Clear(ctx, challengeCooldownKey(resolver.ID))
	return user, nil
}

// requireSignedIn rejects enrollment operations without a signed-in
// principal. Only enforced when a principal lookup was wired; challenge
// operations are pre-auth by nature and never use it.
func (c *Coordinator) requireSignedIn() error {
	if c.principal != nil && c.principal() == nil {
		return identity.NewAuthError(identity.CodePreconditionFailed,
			"sign in before managing two-factor settings")
	}
	return nil
}

// dispatch runs the shared dispatch sequence: cooldown check, captcha,
// provider call, cooldown arming. A provider rate-limit answer extends
// the cooldown beyond the baseline instead of leaving it unchanged.
func (c *Coordinator) dispatch(ctx context.Context, cooldownKey string, send func(captchaToken string) (string, error)) (string, error) {
	remaining, err := c.cooldowns.Remaining(ctx, cooldownKey)
	if err != nil {
		return "", err
	}
	if remaining > 0 {
		return "", &CooldownError{Remaining: remaining}
	}

	captchaToken, err := c.captcha.Verify(ctx)
	if err != nil {
		return "", identity.NewAuthError(identity.CodeCaptchaFailed,
			"the anti-automation check could not be completed")
	}

	verificationID, err := send(captchaToken)
	if err != nil {
		if identity.IsCode(err, identity.CodeTooManyRequests) {
			if cerr := c.cooldowns.Set(ctx, cooldownKey, c.rateLimitedCooldown); cerr != nil {
				c.log.WarnContext(ctx, "failed to extend cooldown", logger.Component("mfa"), logger.Error(cerr))
			}
		}
		return "", err
	}

	if err := c.cooldowns.Set(ctx, cooldownKey, c.baseCooldown); err != nil {
		c.log.WarnContext(ctx, "failed to arm cooldown", logger.Component("mfa"), logger.Error(err))
	}
	return verificationID, nil
}

func enrollCooldownKey(phoneNumber string) string {
	return "enroll:" + phoneNumber
}

func challengeCooldownKey(resolverID string) string {
	return "challenge:" + resolverID
}
