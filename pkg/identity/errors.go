package identity

import (
	"errors"
	"fmt"
)

// Provider error codes surfaced to the UI. The UI displays Message
// verbatim and branches logic on Code.
const (
	CodeUserNotFound        = "user-not-found"
	CodeWrongPassword       = "wrong-password"
	CodeEmailAlreadyInUse   = "email-already-in-use"
	CodeWeakPassword        = "weak-password"
	CodeTooManyRequests     = "too-many-requests"
	CodeInvalidCode         = "invalid-verification-code"
	CodeExpiredCode         = "expired-verification-code"
	CodePreconditionFailed  = "precondition-failed"
	CodePlatformUnsupported = "unsupported-platform"
	CodeEmailUnverified     = "email-unverified"
	CodeCaptchaFailed       = "captcha-check-failed"
	CodeTokenInvalid        = "invalid-token"
	CodeTokenExpired        = "expired-token"
	CodeInvalidArgument     = "invalid-argument"
	CodeInternal            = "internal-error"
)

// AuthError is the error payload surfaced to callers and, transitively,
// to the UI.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAuthError creates an AuthError with the given code and message.
func NewAuthError(code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// CodeOf extracts the auth error code from an error chain, or "" if the
// chain carries no AuthError.
func CodeOf(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries an AuthError with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// MfaRequiredError signals that a credential sign-in passed the password
// check but the account demands a second factor. It is control flow, not
// a failure: callers branch into the challenge path via errors.As.
type MfaRequiredError struct {
	Resolver *Resolver
}

func (e *MfaRequiredError) Error() string {
	return "multi-factor authentication required"
}

// AsMfaRequired extracts the resolver from a sign-in error, reporting
// whether the error was a second-factor-required signal.
func AsMfaRequired(err error) (*Resolver, bool) {
	var mfaErr *MfaRequiredError
	if errors.As(err, &mfaErr) {
		return mfaErr.Resolver, true
	}
	return nil, false
}

// ErrPlatformUnsupported is returned when the runtime cannot host the
// anti-automation challenge required for phone verification. The message
// instructs an alternative path because retrying cannot succeed.
var ErrPlatformUnsupported = NewAuthError(CodePlatformUnsupported,
	"SMS verification is not supported on this platform; use the web app to complete two-factor sign-in or manage enrolled factors")
