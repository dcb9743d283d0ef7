package identity

import "context"

// CaptchaVerifier is the platform capability for solving the provider's
// anti-automation challenge before SMS dispatch. Platforms without a
// challenge surface simply have no verifier; callers treat a nil
// verifier as ErrPlatformUnsupported rather than attempting dispatch.
type CaptchaVerifier interface {
	// Verify solves the challenge and returns a proof token to pass to
	// the second-factor primitives.
	Verify(ctx context.Context) (token string, err error)
}

// StaticCaptcha returns a fixed proof token. Suitable for development
// and for providers that accept a pre-issued site token.
type StaticCaptcha string

func (c StaticCaptcha) Verify(ctx context.Context) (string, error) {
	return string(c), nil
}
