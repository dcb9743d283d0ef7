package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/artmobile/artkit/pkg/broadcast"
	"github.com/artmobile/artkit/pkg/fsm"
	"github.com/artmobile/artkit/pkg/identity"
	"github.com/artmobile/artkit/pkg/logger"
	"github.com/artmobile/artkit/pkg/mfa"
	"github.com/artmobile/artkit/pkg/profile"
	"github.com/artmobile/artkit/pkg/validator"
)

const minPasswordLength = 8

// Challenger is the second-factor surface the session drives during a
// held sign-in. *mfa.Coordinator satisfies it.
type Challenger interface {
	RequestChallengeCode(ctx context.Context, resolver *identity.Resolver) (string, error)
	ResolveChallenge(ctx context.Context, resolver *identity.Resolver, verificationID, code string) (*identity.UserRecord, error)
}

// ProfileReconciler resolves the effective profile for a freshly
// authenticated user. *profile.Sync satisfies it.
type ProfileReconciler interface {
	Reconcile(ctx context.Context, user *identity.UserRecord) *profile.UserProfile
}

// MfaChallenge is the sign-in held for a second factor: the resolver
// handed back by the provider plus the verification id of the last
// dispatched SMS code. A nil VerificationID means no code is in flight
// yet and ResendChallengeCode must run before ResolveChallenge can
// succeed.
type MfaChallenge struct {
	Resolver       *identity.Resolver
	VerificationID string
}

// Hint returns the factor the challenge code targets, or nil.
func (c *MfaChallenge) Hint() *identity.FactorHint {
	if c == nil || c.Resolver == nil || len(c.Resolver.Hints) == 0 {
		return nil
	}
	hint := c.Resolver.Hints[0]
	return &hint
}

// Snapshot is the immutable view of the session published to
// subscribers after every change.
type Snapshot struct {
	State      fsm.State
	User       *identity.UserRecord
	Profile    *profile.UserProfile
	PendingMfa *MfaChallenge
	Loading    bool
	LastError  *identity.AuthError
}

// SignInResult reports a credential sign-in outcome: either a
// signed-in user, or a held sign-in awaiting its second factor.
type SignInResult struct {
	User        *identity.UserRecord
	MfaRequired bool
	Challenge   *MfaChallenge
}

// Session is the auth state holder. Create it with New, call Start once,
// then drive it from UI handlers and observe it via Subscribe.
type Session struct {
	provider   identity.Provider
	challenger Challenger
	profiles   ProfileReconciler
	snapshots  SnapshotStore
	log        *slog.Logger
	events     *broadcast.Memory[Snapshot]

	mu          sync.Mutex
	machine     *fsm.Machine
	user        *identity.UserRecord
	profile     *profile.UserProfile
	pending     *MfaChallenge
	loading     bool
	lastErr     *identity.AuthError
	unsubscribe identity.UnsubscribeFn
	started     bool
}

// Option configures a Session during construction.
type Option func(*Session)

// WithLogger sets a custom logger for the session.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithProfileReconciler sets the profile sync run on every transition
// into the authenticated state.
func WithProfileReconciler(r ProfileReconciler) Option {
	return func(s *Session) { s.profiles = r }
}

// WithSnapshotStore persists the last known user across restarts so the
// UI can render optimistically while the provider bootstraps.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Session) { s.snapshots = store }
}

// WithEventBuffer sets the per-subscriber snapshot buffer size.
func WithEventBuffer(size int) Option {
	return func(s *Session) { s.events = broadcast.NewMemory[Snapshot](size) }
}

// New creates a session over the identity provider and second-factor
// challenger. The session starts in Bootstrapping with the loading flag
// raised until the provider reports its current user.
func New(provider identity.Provider, challenger Challenger, opts ...Option) *Session {
	s := &Session{
		provider:   provider,
		challenger: challenger,
		log:        logger.Noop(),
		events:     broadcast.NewMemory[Snapshot](8),
		machine:    newMachine(),
		loading:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to provider session changes. The provider fires the
// callback immediately with its current user, which settles the
// Bootstrapping state. Calling Start twice is a no-op.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	// Subscription callbacks outlive the Start call.
	cbCtx := context.WithoutCancel(ctx)
	s.unsubscribe = s.provider.SubscribeSessionChanges(func(user *identity.UserRecord) {
		s.handleSessionChange(cbCtx, user)
	})
}

// Stop releases the provider subscription and closes the snapshot
// stream. The session is not reusable afterwards.
func (s *Session) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	_ = s.events.Close()
}

// Subscribe returns a stream of session snapshots. The current snapshot
// is not replayed; read Current first, then watch the stream.
func (s *Session) Subscribe(ctx context.Context) broadcast.Subscriber[Snapshot] {
	return s.events.Subscribe(ctx)
}

// Current returns the session's present snapshot.
func (s *Session) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the machine's current state.
func (s *Session) State() fsm.State {
	return s.machine.Current()
}

// SignUp registers a new account. On success the provider reports an
// unverified user and the session lands in AuthenticatedUnverified with
// a verification email on its way.
func (s *Session) SignUp(ctx context.Context, email, password, confirmation, fullName string) (*identity.UserRecord, error) {
	if err := validator.Apply(
		validator.Required("full_name", fullName),
		validator.ValidEmail("email", email),
		validator.MinPasswordLength("password", password, minPasswordLength),
		validator.PasswordsMatch("confirmation", password, confirmation),
	); err != nil {
		return nil, s.recordError(err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.provider.SignUp(ctx, email, password, fullName)
	if err != nil {
		return nil, s.recordError(err)
	}
	s.adoptUser(ctx, user)
	return user, nil
}

// SignIn verifies credentials and settles the session. Three outcomes:
//
//   - verified user: the session transitions to Authenticated, the
//     profile is reconciled and the result carries the user;
//   - second factor enrolled: the session transitions to MfaPending, a
//     challenge code is dispatched best-effort and the result has
//     MfaRequired set;
//   - unverified user: a verification email is dispatched best-effort,
//     the provider session is signed out again and the returned error
//     tells the caller to verify their email. The session ends where it
//     started, Unauthenticated.
func (s *Session) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if err := validator.Apply(
		validator.ValidEmail("email", email),
		validator.Required("password", password),
	); err != nil {
		return nil, s.recordError(err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		if resolver, ok := identity.AsMfaRequired(err); ok {
			return s.holdForSecondFactor(ctx, resolver)
		}
		return nil, s.recordError(err)
	}

	if !user.EmailVerified {
		return nil, s.forceSignOutUnverified(ctx)
	}

	s.adoptUser(ctx, user)
	return &SignInResult{User: user}, nil
}

// ResolveChallenge completes a held sign-in with the SMS code. The
// verified-email gate applies to this path too: resolving the second
// factor for an unverified account still ends in a forced sign-out.
// A failed resolution keeps the held sign-in so the user can retry.
func (s *Session) ResolveChallenge(ctx context.Context, code string) (*identity.UserRecord, error) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		return nil, s.recordError(identity.NewAuthError(identity.CodePreconditionFailed,
			"no sign-in is awaiting a second factor"))
	}

	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.challenger.ResolveChallenge(ctx, pending.Resolver, pending.VerificationID, code)
	if err != nil {
		return nil, s.recordError(err)
	}

	if !user.EmailVerified {
		return nil, s.forceSignOutUnverified(ctx)
	}

	s.adoptUser(ctx, user)
	return user, nil
}

// ResendChallengeCode dispatches a fresh SMS code for the held sign-in,
// replacing the pending verification id. Rejections from the resend
// cooldown surface as *mfa.CooldownError without any network call.
func (s *Session) ResendChallengeCode(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		return s.recordError(identity.NewAuthError(identity.CodePreconditionFailed,
			"no sign-in is awaiting a second factor"))
	}

	verificationID, err := s.challenger.RequestChallengeCode(ctx, pending.Resolver)
	if err != nil {
		return s.recordError(err)
	}

	s.mu.Lock()
	if s.pending != nil && s.pending.Resolver == pending.Resolver {
		s.pending.VerificationID = verificationID
	}
	s.lastErr = nil
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.events.Broadcast(snapshot)
	return nil
}

// SignOut clears the provider session and all held sign-in state. It
// works from any state and never fails.
func (s *Session) SignOut(ctx context.Context) {
	s.provider.SignOut(ctx)
	s.adoptSignedOut(ctx, eventSignOut)
}

// SendVerificationEmail re-sends the verification email to the
// signed-in user.
func (s *Session) SendVerificationEmail(ctx context.Context) error {
	if err := s.provider.SendVerificationEmail(ctx); err != nil {
		return s.recordError(err)
	}
	return nil
}

// ForgotPassword dispatches a password reset email. It requires no
// session and leaves the state untouched.
func (s *Session) ForgotPassword(ctx context.Context, email string) error {
	if err := validator.Apply(validator.ValidEmail("email", email)); err != nil {
		return s.recordError(err)
	}
	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		return s.recordError(err)
	}
	return nil
}

// ClearError drops the recorded error, typically when the UI has
// displayed it.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = nil
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.events.Broadcast(snapshot)
}

// handleSessionChange is the provider subscription callback. It is the
// single place provider-driven state lands in the machine, and it is
// idempotent: a notification that changes nothing publishes nothing.
func (s *Session) handleSessionChange(ctx context.Context, user *identity.UserRecord) {
	if user == nil {
		s.adoptSignedOut(ctx, eventProviderSignedOut)
		return
	}
	s.adoptUser(ctx, user)
}

// adoptUser settles the session on the given provider user, picking the
// event matching the current state and the user's verification flag.
// Re-adopting the same user in the same resulting state is a no-op.
func (s *Session) adoptUser(ctx context.Context, user *identity.UserRecord) {
	s.mu.Lock()

	target := StateAuthenticatedUnverified
	if user.EmailVerified {
		target = StateAuthenticated
	}
	current := s.machine.Current()
	if current == target && sameUser(s.user, user) && s.user.EmailVerified == user.EmailVerified {
		s.loading = false
		s.mu.Unlock()
		return
	}

	event := eventProviderUnverified
	if user.EmailVerified {
		switch current {
		case StateUnauthenticated:
			event = eventSignInVerified
		case StateMfaPending:
			event = eventMfaResolved
		default:
			event = eventProviderVerified
		}
	}

	if err := s.machine.Fire(ctx, event, user); err != nil {
		s.log.WarnContext(ctx, "session transition rejected",
			logger.Component("session"), logger.Error(err),
			slog.String("event", string(event)), slog.String("state", string(current)))
		s.mu.Unlock()
		return
	}

	freshlyAuthenticated := target == StateAuthenticated &&
		(current != StateAuthenticated || !sameUser(s.user, user))
	s.user = user
	s.pending = nil
	s.lastErr = nil
	s.loading = false

	if freshlyAuthenticated && s.profiles != nil {
		// Runs once per transition into Authenticated; a store failure
		// degrades to defaults inside the reconciler, never blocks here.
		s.profile = s.profiles.Reconcile(ctx, user)
	}

	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if target == StateAuthenticated {
		s.persistUser(ctx, user)
	}
	s.events.Broadcast(snapshot)
}

// adoptSignedOut settles the session on no user. Idempotent: repeated
// sign-out notifications publish nothing.
func (s *Session) adoptSignedOut(ctx context.Context, event fsm.Event) {
	s.mu.Lock()
	if s.machine.Current() == StateUnauthenticated && s.user == nil && s.pending == nil {
		s.loading = false
		s.mu.Unlock()
		return
	}

	if err := s.machine.Fire(ctx, event, nil); err != nil {
		s.log.WarnContext(ctx, "session transition rejected",
			logger.Component("session"), logger.Error(err))
		s.mu.Unlock()
		return
	}
	s.user = nil
	s.profile = nil
	s.pending = nil
	s.lastErr = nil
	s.loading = false
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.clearPersistedUser(ctx)
	s.events.Broadcast(snapshot)
}

// holdForSecondFactor moves the session to MfaPending and dispatches the
// first challenge code best-effort. A failed dispatch leaves the held
// sign-in with no verification id; ResendChallengeCode recovers it.
func (s *Session) holdForSecondFactor(ctx context.Context, resolver *identity.Resolver) (*SignInResult, error) {
	challenge := &MfaChallenge{Resolver: resolver}

	s.mu.Lock()
	if err := s.machine.Fire(ctx, eventMfaRequired, resolver); err != nil {
		s.mu.Unlock()
		return nil, s.recordError(err)
	}
	s.pending = challenge
	s.lastErr = nil
	s.mu.Unlock()

	verificationID, err := s.challenger.RequestChallengeCode(ctx, resolver)
	if err != nil {
		s.log.WarnContext(ctx, "challenge code dispatch failed, sign-in held without a code",
			logger.Component("session"), logger.Error(err))
	}

	s.mu.Lock()
	if s.pending == challenge {
		s.pending.VerificationID = verificationID
	}
	if err != nil {
		// The hold survives, but observers must see why no code arrived.
		// An unsupported platform in particular cannot be retried here and
		// the message points the user at an alternative path.
		s.lastErr = toAuthError(err)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.events.Broadcast(snapshot)

	return &SignInResult{MfaRequired: true, Challenge: challenge}, nil
}

// forceSignOutUnverified applies the unverified-sign-in policy: send a
// verification email while the provider session still exists, then sign
// out locally and surface an email-unverified error.
func (s *Session) forceSignOutUnverified(ctx context.Context) error {
	if err := s.provider.SendVerificationEmail(ctx); err != nil {
		s.log.WarnContext(ctx, "verification email dispatch failed",
			logger.Component("session"), logger.Error(err))
	}
	s.provider.SignOut(ctx)

	s.mu.Lock()
	if s.machine.Current() != StateUnauthenticated {
		if err := s.machine.Fire(ctx, eventSignInUnverified, nil); err != nil {
			s.log.WarnContext(ctx, "session transition rejected",
				logger.Component("session"), logger.Error(err))
		}
	}
	s.user = nil
	s.profile = nil
	s.pending = nil
	verifyErr := identity.NewAuthError(identity.CodeEmailUnverified,
		"your email address is not verified; we sent you a verification link, follow it and sign in again")
	s.lastErr = verifyErr
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.clearPersistedUser(ctx)
	s.events.Broadcast(snapshot)
	return verifyErr
}

// recordError stores the failure for reactive observers and returns it
// unchanged for the caller.
func (s *Session) recordError(err error) error {
	s.mu.Lock()
	s.lastErr = toAuthError(err)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.events.Broadcast(snapshot)
	return err
}

func (s *Session) setLoading(loading bool) {
	s.mu.Lock()
	if s.loading == loading {
		s.mu.Unlock()
		return
	}
	s.loading = loading
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.events.Broadcast(snapshot)
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:      s.machine.Current(),
		User:       s.user,
		Profile:    s.profile,
		PendingMfa: s.pending,
		Loading:    s.loading,
		LastError:  s.lastErr,
	}
}

func (s *Session) persistUser(ctx context.Context, user *identity.UserRecord) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, user); err != nil {
		s.log.WarnContext(ctx, "session snapshot save failed",
			logger.Component("session"), logger.Error(err))
	}
}

func (s *Session) clearPersistedUser(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Clear(ctx); err != nil {
		s.log.WarnContext(ctx, "session snapshot clear failed",
			logger.Component("session"), logger.Error(err))
	}
}

func sameUser(a, b *identity.UserRecord) bool {
	return a != nil && b != nil && a.ID == b.ID
}

// toAuthError normalizes any failure into the error payload observers
// consume: validation problems become invalid-argument, local cooldown
// rejections too-many-requests, and everything unknown internal-error.
func toAuthError(err error) *identity.AuthError {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return identity.NewAuthError(identity.CodeInvalidArgument, validationErrs.Error())
	}
	var cooldownErr *mfa.CooldownError
	if errors.As(err, &cooldownErr) {
		return identity.NewAuthError(identity.CodeTooManyRequests, cooldownErr.Error())
	}
	return identity.NewAuthError(identity.CodeInternal, err.Error())
}
