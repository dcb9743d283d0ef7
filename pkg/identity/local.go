package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/artmobile/artkit/pkg/email"
	"github.com/artmobile/artkit/pkg/logger"
	"github.com/artmobile/artkit/pkg/token"
)

// Token subjects embedded in signed email links.
const (
	SubjectEmailVerify   = "email_verify"
	SubjectPasswordReset = "password_reset"
)

const minPasswordLength = 8

type emailTokenPayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Subject  string `json:"sub"`
	ExpireAt int64  `json:"exp"`
}

type phoneFactor struct {
	uid   string
	label string
	phone string
}

type account struct {
	user         UserRecord
	passwordHash []byte
	factors      []phoneFactor
}

type pendingCode struct {
	uid       string
	phone     string
	code      string
	expiresAt time.Time
}

type pendingSignIn struct {
	uid       string
	codes     map[string]pendingCode // verificationID -> dispatched code
	expiresAt time.Time
}

// LocalProvider is an in-process Provider implementation: bcrypt
// credential store, HMAC-signed email links, SMS codes through a
// CodeSender. It backs development builds and integration tests.
type LocalProvider struct {
	mu         sync.RWMutex
	accounts   map[string]*account
	emailIndex map[string]string // normalized email -> uid
	currentUID string

	enrollments map[string]pendingCode    // verificationID
	signIns     map[string]*pendingSignIn // resolverID

	subMu   sync.Mutex
	subs    map[int]SessionChangeFn
	nextSub int

	tokenSecret string
	bcryptCost  int
	codeTTL     time.Duration
	signInTTL   time.Duration
	linkTTL     time.Duration
	verifyURL   string
	resetURL    string

	emailSender email.EmailSender
	codeSender  CodeSender
	log         *slog.Logger
	now         func() time.Time
}

// LocalOption configures a LocalProvider during construction.
type LocalOption func(*LocalProvider)

// WithLocalLogger sets a custom logger for the provider.
func WithLocalLogger(log *slog.Logger) LocalOption {
	return func(p *LocalProvider) { p.log = log }
}

// WithEmailSender sets the sender used for verification and reset emails.
func WithEmailSender(sender email.EmailSender) LocalOption {
	return func(p *LocalProvider) { p.emailSender = sender }
}

// WithCodeSender sets the SMS delivery port.
func WithCodeSender(sender CodeSender) LocalOption {
	return func(p *LocalProvider) { p.codeSender = sender }
}

// WithBcryptCost sets the bcrypt cost for password hashing.
func WithBcryptCost(cost int) LocalOption {
	return func(p *LocalProvider) { p.bcryptCost = cost }
}

// WithCodeTTL sets how long dispatched SMS codes stay valid.
func WithCodeTTL(ttl time.Duration) LocalOption {
	return func(p *LocalProvider) { p.codeTTL = ttl }
}

// WithSignInTTL sets how long a sign-in held for a second factor stays
// resolvable. Expired holds are reaped so abandoned attempts do not
// accumulate.
func WithSignInTTL(ttl time.Duration) LocalOption {
	return func(p *LocalProvider) { p.signInTTL = ttl }
}

// WithLinkTTL sets how long email verification and reset links stay valid.
func WithLinkTTL(ttl time.Duration) LocalOption {
	return func(p *LocalProvider) { p.linkTTL = ttl }
}

// WithVerificationURL sets the base URL embedded in verification emails.
func WithVerificationURL(u string) LocalOption {
	return func(p *LocalProvider) { p.verifyURL = u }
}

// WithPasswordResetURL sets the base URL embedded in reset emails.
func WithPasswordResetURL(u string) LocalOption {
	return func(p *LocalProvider) { p.resetURL = u }
}

// WithNowFunc overrides the clock. Tests use it to expire codes.
func WithNowFunc(now func() time.Time) LocalOption {
	return func(p *LocalProvider) { p.now = now }
}

// NewLocal creates a local provider signing email links with tokenSecret.
func NewLocal(tokenSecret string, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		accounts:    make(map[string]*account),
		emailIndex:  make(map[string]string),
		enrollments: make(map[string]pendingCode),
		signIns:     make(map[string]*pendingSignIn),
		subs:        make(map[int]SessionChangeFn),
		tokenSecret: tokenSecret,
		bcryptCost:  bcrypt.DefaultCost,
		codeTTL:     5 * time.Minute,
		signInTTL:   30 * time.Minute,
		linkTTL:     24 * time.Hour,
		verifyURL:   "artkit://verify-email",
		resetURL:    "artkit://reset-password",
		emailSender: email.NewDevSender("./tmp/emails"),
		codeSender:  &LogCodeSender{},
		log:         logger.Noop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SignUp creates an account, sets the display name, signs the user in and
// dispatches a verification email. A failed dispatch is logged, never
// returned: the account exists either way.
func (p *LocalProvider) SignUp(ctx context.Context, emailAddr, password, displayName string) (*UserRecord, error) {
	emailAddr = normalizeEmail(emailAddr)

	if len(password) < minPasswordLength {
		return nil, NewAuthError(CodeWeakPassword,
			fmt.Sprintf("password must be at least %d characters long", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p.mu.Lock()
	if _, exists := p.emailIndex[emailAddr]; exists {
		p.mu.Unlock()
		return nil, NewAuthError(CodeEmailAlreadyInUse, "an account already exists for this email address")
	}

	acct := &account{
		user: UserRecord{
			ID:          uuid.New().String(),
			Email:       emailAddr,
			DisplayName: displayName,
			CreatedAt:   p.now(),
		},
		passwordHash: hash,
	}
	p.accounts[acct.user.ID] = acct
	p.emailIndex[emailAddr] = acct.user.ID
	p.currentUID = acct.user.ID
	user := acct.user
	p.mu.Unlock()

	if err := p.dispatchVerificationEmail(ctx, user); err != nil {
		p.log.WarnContext(ctx, "verification email dispatch failed",
			logger.UserID(user.ID), logger.Error(err), logger.Component("identity"))
	}

	p.notify(&user)
	return &user, nil
}

// SignIn verifies credentials. Accounts with an enrolled second factor
// yield an *MfaRequiredError instead of a session.
func (p *LocalProvider) SignIn(ctx context.Context, emailAddr, password string) (*UserRecord, error) {
	emailAddr = normalizeEmail(emailAddr)

	p.mu.Lock()
	uid, ok := p.emailIndex[emailAddr]
	if !ok {
		p.mu.Unlock()
		return nil, NewAuthError(CodeUserNotFound, "no account exists for this email address")
	}
	acct := p.accounts[uid]

	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		p.mu.Unlock()
		return nil, NewAuthError(CodeWrongPassword, "the password is incorrect")
	}

	if len(acct.factors) > 0 {
		p.reapExpiredSignInsLocked()
		resolver := &Resolver{ID: uuid.New().String()}
		for _, f := range acct.factors {
			resolver.Hints = append(resolver.Hints, FactorHint{
				UID:         f.uid,
				DisplayName: f.label,
				PhoneNumber: maskPhone(f.phone),
			})
		}
		p.signIns[resolver.ID] = &pendingSignIn{
			uid:       uid,
			codes:     make(map[string]pendingCode),
			expiresAt: p.now().Add(p.signInTTL),
		}
		p.mu.Unlock()
		return nil, &MfaRequiredError{Resolver: resolver}
	}

	p.currentUID = uid
	user := acct.user
	p.mu.Unlock()

	p.notify(&user)
	return &user, nil
}

// SignOut clears the provider session and abandons pending sign-ins.
// Per the adapter contract it never fails the caller.
func (p *LocalProvider) SignOut(ctx context.Context) {
	p.mu.Lock()
	wasSignedIn := p.currentUID != ""
	p.currentUID = ""
	clear(p.signIns)
	clear(p.enrollments)
	p.mu.Unlock()

	if wasSignedIn {
		p.notify(nil)
	}
}

// SendPasswordReset dispatches a reset email for the address.
func (p *LocalProvider) SendPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)

	p.mu.RLock()
	uid, ok := p.emailIndex[emailAddr]
	var user UserRecord
	if ok {
		user = p.accounts[uid].user
	}
	p.mu.RUnlock()

	if !ok {
		return NewAuthError(CodeUserNotFound, "no account exists for this email address")
	}

	tok, err := p.signLink(user, SubjectPasswordReset)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	return p.emailSender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   user.Email,
		Subject:  "Reset your password",
		BodyHTML: fmt.Sprintf(`<p>Hi %s,</p><p><a href="%s?token=%s">Reset your password</a>. The link expires in %s.</p>`, user.DisplayName, p.resetURL, tok, p.linkTTL),
		Tag:      "password-reset",
	})
}

// ResetPassword completes the reset flow started by SendPasswordReset.
func (p *LocalProvider) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	payload, err := p.parseLink(resetToken, SubjectPasswordReset)
	if err != nil {
		return err
	}

	if len(newPassword) < minPasswordLength {
		return NewAuthError(CodeWeakPassword,
			fmt.Sprintf("password must be at least %d characters long", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[payload.ID]
	if !ok {
		return NewAuthError(CodeUserNotFound, "the account no longer exists")
	}
	acct.passwordHash = hash
	return nil
}

// SendVerificationEmail dispatches a verification email to the signed-in
// user.
func (p *LocalProvider) SendVerificationEmail(ctx context.Context) error {
	p.mu.RLock()
	uid := p.currentUID
	var user UserRecord
	if uid != "" {
		user = p.accounts[uid].user
	}
	p.mu.RUnlock()

	if uid == "" {
		return NewAuthError(CodePreconditionFailed, "no user is signed in")
	}
	return p.dispatchVerificationEmail(ctx, user)
}

// VerifyEmail consumes a verification link token and marks the account's
// email verified. Subscribers are notified when the verified account is
// the current session.
func (p *LocalProvider) VerifyEmail(ctx context.Context, verifyToken string) error {
	payload, err := p.parseLink(verifyToken, SubjectEmailVerify)
	if err != nil {
		return err
	}

	p.mu.Lock()
	acct, ok := p.accounts[payload.ID]
	if !ok {
		p.mu.Unlock()
		return NewAuthError(CodeUserNotFound, "the account no longer exists")
	}
	acct.user.EmailVerified = true
	isCurrent := p.currentUID == payload.ID
	user := acct.user
	p.mu.Unlock()

	if isCurrent {
		p.notify(&user)
	}
	return nil
}

// CurrentUser returns the signed-in user, or nil.
func (p *LocalProvider) CurrentUser() *UserRecord {
	return p.snapshotCurrent()
}

// SubscribeSessionChanges registers a session-change callback. The
// callback fires immediately with the current user and again on every
// sign-in, sign-out and verification change.
func (p *LocalProvider) SubscribeSessionChanges(fn SessionChangeFn) UnsubscribeFn {
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.subMu.Unlock()

	fn(p.snapshotCurrent())

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

// StartEnrollment dispatches an SMS code to enroll a phone factor for the
// signed-in user.
func (p *LocalProvider) StartEnrollment(ctx context.Context, phoneNumber, captchaToken string) (string, error) {
	if captchaToken == "" {
		return "", NewAuthError(CodeCaptchaFailed, "the anti-automation check was not completed")
	}

	p.mu.Lock()
	uid := p.currentUID
	if uid == "" {
		p.mu.Unlock()
		return "", NewAuthError(CodePreconditionFailed, "no user is signed in")
	}

	code, err := generateCode()
	if err != nil {
		p.mu.Unlock()
		return "", err
	}
	verificationID := uuid.New().String()
	p.enrollments[verificationID] = pendingCode{
		uid:       uid,
		phone:     phoneNumber,
		code:      code,
		expiresAt: p.now().Add(p.codeTTL),
	}
	p.mu.Unlock()

	if err := p.codeSender.SendCode(ctx, phoneNumber, code); err != nil {
		p.mu.Lock()
		delete(p.enrollments, verificationID)
		p.mu.Unlock()
		return "", fmt.Errorf("failed to dispatch enrollment code: %w", err)
	}
	return verificationID, nil
}

// ConfirmEnrollment completes enrollment with the dispatched code.
func (p *LocalProvider) ConfirmEnrollment(ctx context.Context, verificationID, code, label string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentUID == "" {
		return NewAuthError(CodePreconditionFailed, "no user is signed in")
	}

	pending, ok := p.enrollments[verificationID]
	if !ok || pending.uid != p.currentUID {
		return NewAuthError(CodeInvalidCode, "the verification code could not be matched to a pending enrollment")
	}
	if p.now().After(pending.expiresAt) {
		delete(p.enrollments, verificationID)
		return NewAuthError(CodeExpiredCode, "the verification code has expired; request a new one")
	}
	if pending.code != code {
		return NewAuthError(CodeInvalidCode, "the verification code is incorrect")
	}

	delete(p.enrollments, verificationID)
	acct := p.accounts[p.currentUID]
	acct.factors = append(acct.factors, phoneFactor{
		uid:   uuid.New().String(),
		label: label,
		phone: pending.phone,
	})
	return nil
}

// StartChallenge dispatches an SMS code for the hinted factor of a
// pending sign-in.
func (p *LocalProvider) StartChallenge(ctx context.Context, resolverID string, hint FactorHint, captchaToken string) (string, error) {
	if captchaToken == "" {
		return "", NewAuthError(CodeCaptchaFailed, "the anti-automation check was not completed")
	}

	p.mu.Lock()
	pending, ok := p.signIns[resolverID]
	if ok && p.now().After(pending.expiresAt) {
		delete(p.signIns, resolverID)
		ok = false
	}
	if !ok {
		p.mu.Unlock()
		return "", NewAuthError(CodePreconditionFailed, "no sign-in is awaiting a second factor")
	}

	var phone string
	for _, f := range p.accounts[pending.uid].factors {
		if f.uid == hint.UID {
			phone = f.phone
			break
		}
	}
	if phone == "" {
		p.mu.Unlock()
		return "", NewAuthError(CodePreconditionFailed, "the hinted factor is not enrolled for this account")
	}

	code, err := generateCode()
	if err != nil {
		p.mu.Unlock()
		return "", err
	}
	verificationID := uuid.New().String()
	pending.codes[verificationID] = pendingCode{
		uid:       pending.uid,
		phone:     phone,
		code:      code,
		expiresAt: p.now().Add(p.codeTTL),
	}
	// Each dispatched code keeps the held sign-in alive for another
	// hold lifetime.
	pending.expiresAt = p.now().Add(p.signInTTL)
	p.mu.Unlock()

	if err := p.codeSender.SendCode(ctx, phone, code); err != nil {
		p.mu.Lock()
		delete(pending.codes, verificationID)
		p.mu.Unlock()
		return "", fmt.Errorf("failed to dispatch challenge code: %w", err)
	}
	return verificationID, nil
}

// ResolveChallenge completes a pending sign-in with the dispatched code.
func (p *LocalProvider) ResolveChallenge(ctx context.Context, resolverID, verificationID, code string) (*UserRecord, error) {
	p.mu.Lock()
	pending, ok := p.signIns[resolverID]
	if ok && p.now().After(pending.expiresAt) {
		delete(p.signIns, resolverID)
		ok = false
	}
	if !ok {
		p.mu.Unlock()
		return nil, NewAuthError(CodePreconditionFailed, "no sign-in is awaiting a second factor")
	}

	dispatched, ok := pending.codes[verificationID]
	if !ok {
		p.mu.Unlock()
		return nil, NewAuthError(CodeInvalidCode, "the verification code could not be matched to this sign-in")
	}
	if p.now().After(dispatched.expiresAt) {
		delete(pending.codes, verificationID)
		p.mu.Unlock()
		return nil, NewAuthError(CodeExpiredCode, "the verification code has expired; request a new one")
	}
	if dispatched.code != code {
		p.mu.Unlock()
		return nil, NewAuthError(CodeInvalidCode, "the verification code is incorrect")
	}

	delete(p.signIns, resolverID)
	p.currentUID = pending.uid
	user := p.accounts[pending.uid].user
	p.mu.Unlock()

	p.notify(&user)
	return &user, nil
}

func (p *LocalProvider) dispatchVerificationEmail(ctx context.Context, user UserRecord) error {
	tok, err := p.signLink(user, SubjectEmailVerify)
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}
	return p.emailSender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   user.Email,
		Subject:  "Verify your email",
		BodyHTML: fmt.Sprintf(`<p>Hi %s,</p><p><a href="%s?token=%s">Verify your email address</a> to finish setting up your account.</p>`, user.DisplayName, p.verifyURL, tok),
		Tag:      "email-verification",
	})
}

func (p *LocalProvider) signLink(user UserRecord, subject string) (string, error) {
	return token.Generate(emailTokenPayload{
		ID:       user.ID,
		Email:    user.Email,
		Subject:  subject,
		ExpireAt: p.now().Add(p.linkTTL).Unix(),
	}, p.tokenSecret)
}

func (p *LocalProvider) parseLink(tok, subject string) (emailTokenPayload, error) {
	payload, err := token.Parse[emailTokenPayload](tok, p.tokenSecret)
	if err != nil {
		return payload, NewAuthError(CodeTokenInvalid, "the link is invalid")
	}
	if payload.Subject != subject {
		return payload, NewAuthError(CodeTokenInvalid, "the link is invalid")
	}
	if p.now().Unix() > payload.ExpireAt {
		return payload, NewAuthError(CodeTokenExpired, "the link has expired; request a new one")
	}
	return payload, nil
}

// reapExpiredSignInsLocked drops abandoned held sign-ins so repeated
// MFA-required attempts do not accumulate. Caller holds p.mu.
func (p *LocalProvider) reapExpiredSignInsLocked() {
	now := p.now()
	for id, pending := range p.signIns {
		if now.After(pending.expiresAt) {
			delete(p.signIns, id)
		}
	}
}

func (p *LocalProvider) snapshotCurrent() *UserRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.currentUID == "" {
		return nil
	}
	user := p.accounts[p.currentUID].user
	return &user
}

func (p *LocalProvider) notify(user *UserRecord) {
	p.subMu.Lock()
	fns := make([]SessionChangeFn, 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeEmail(emailAddr string) string {
	return strings.ToLower(strings.TrimSpace(emailAddr))
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}

var _ Provider = (*LocalProvider)(nil)
