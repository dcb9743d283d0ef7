package session_test

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artmobile/artkit/pkg/email"
	"github.com/artmobile/artkit/pkg/identity"
	"github.com/artmobile/artkit/pkg/mfa"
	"github.com/artmobile/artkit/pkg/session"
)

type captureEmailSender struct {
	mu     sync.Mutex
	bodies []string
}

func (s *captureEmailSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, params.BodyHTML)
	return nil
}

func (s *captureEmailSender) lastToken(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.bodies)
	matches := regexp.MustCompile(`token=([A-Za-z0-9_.-]+)`).FindStringSubmatch(s.bodies[len(s.bodies)-1])
	require.Len(t, matches, 2)
	return matches[1]
}

// TestFullSignInLifecycle drives the whole stack end to end: sign-up,
// email verification, phone factor enrollment, sign-out, and a sign-in
// that must pass the second-factor challenge.
func TestFullSignInLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	emails := &captureEmailSender{}
	sms := identity.NewCaptureCodeSender()
	provider := identity.NewLocal("integration-secret",
		identity.WithBcryptCost(4),
		identity.WithEmailSender(emails),
		identity.WithCodeSender(sms),
	)
	coordinator := mfa.NewCoordinator(provider,
		mfa.WithCaptcha(identity.StaticCaptcha("proof")),
		mfa.WithPrincipal(provider.CurrentUser))
	reconciler := &countingReconciler{}

	s := session.New(provider, coordinator,
		session.WithProfileReconciler(reconciler))
	s.Start(ctx)
	t.Cleanup(s.Stop)
	require.Equal(t, session.StateUnauthenticated, s.State())

	// Sign up: unverified until the emailed link is followed.
	_, err := s.SignUp(ctx, "collector@example.com", "secret-pass", "secret-pass", "Collector")
	require.NoError(t, err)
	require.Equal(t, session.StateAuthenticatedUnverified, s.State())

	require.NoError(t, provider.VerifyEmail(ctx, emails.lastToken(t)))
	require.Equal(t, session.StateAuthenticated, s.State())
	assert.Equal(t, 1, reconciler.count())

	// Enroll a phone factor while signed in.
	const phone = "+254712345678"
	request, err := coordinator.RequestEnrollmentCode(ctx, phone)
	require.NoError(t, err)
	require.NoError(t, coordinator.ConfirmEnrollment(ctx, request.VerificationID, sms.Last(phone), "Phone"))

	s.SignOut(ctx)
	require.Equal(t, session.StateUnauthenticated, s.State())

	// Credentials alone no longer authenticate.
	result, err := s.SignIn(ctx, "collector@example.com", "secret-pass")
	require.NoError(t, err)
	require.True(t, result.MfaRequired)
	require.Equal(t, session.StateMfaPending, s.State())
	require.NotEmpty(t, s.Current().PendingMfa.VerificationID)

	// The wrong code keeps the sign-in held.
	_, err = s.ResolveChallenge(ctx, "000000")
	require.Error(t, err)
	require.Equal(t, session.StateMfaPending, s.State())

	user, err := s.ResolveChallenge(ctx, sms.Last(phone))
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, session.StateAuthenticated, s.State())
	assert.Nil(t, s.Current().PendingMfa)
	assert.Equal(t, 2, reconciler.count())
}
