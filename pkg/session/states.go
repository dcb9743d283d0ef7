package session

import (
	"context"

	"github.com/artmobile/artkit/pkg/fsm"
	"github.com/artmobile/artkit/pkg/identity"
)

// Session lifecycle states.
const (
	StateBootstrapping           = fsm.State("bootstrapping")
	StateUnauthenticated         = fsm.State("unauthenticated")
	StateAuthenticatedUnverified = fsm.State("authenticated_unverified")
	StateAuthenticated           = fsm.State("authenticated")
	StateMfaPending              = fsm.State("mfa_pending")
)

const (
	eventProviderSignedOut  = fsm.Event("provider_signed_out")
	eventProviderVerified   = fsm.Event("provider_verified")
	eventProviderUnverified = fsm.Event("provider_unverified")
	eventSignInVerified     = fsm.Event("sign_in_verified")
	eventSignInUnverified   = fsm.Event("sign_in_unverified")
	eventMfaRequired        = fsm.Event("mfa_required")
	eventMfaResolved        = fsm.Event("mfa_resolved")
	eventSignOut            = fsm.Event("sign_out")
)

// verifiedUser guards every transition into Authenticated: the event
// data must be a user record with a verified email at this very moment.
func verifiedUser(ctx context.Context, data any) bool {
	user, ok := data.(*identity.UserRecord)
	return ok && user.EmailVerified
}

func newMachine() *fsm.Machine {
	return fsm.MustNew(StateBootstrapping,
		// Bootstrap: the first subscription callback decides where we land.
		fsm.WithTransition(StateBootstrapping, StateUnauthenticated, eventProviderSignedOut),
		fsm.WithGuardedTransition(StateBootstrapping, StateAuthenticated, eventProviderVerified, verifiedUser, nil),
		fsm.WithTransition(StateBootstrapping, StateAuthenticatedUnverified, eventProviderUnverified),

		// Credential sign-in outcomes.
		fsm.WithGuardedTransition(StateUnauthenticated, StateAuthenticated, eventSignInVerified, verifiedUser, nil),
		fsm.WithTransition(StateUnauthenticated, StateUnauthenticated, eventSignInUnverified),
		fsm.WithTransition(StateUnauthenticated, StateMfaPending, eventMfaRequired),

		// Subscription updates while signed out (external sign-up/sign-in,
		// idempotent repeated sign-out notifications).
		fsm.WithGuardedTransition(StateUnauthenticated, StateAuthenticated, eventProviderVerified, verifiedUser, nil),
		fsm.WithTransition(StateUnauthenticated, StateAuthenticatedUnverified, eventProviderUnverified),
		fsm.WithTransition(StateUnauthenticated, StateUnauthenticated, eventProviderSignedOut),
		fsm.WithTransition(StateUnauthenticated, StateUnauthenticated, eventSignOut),

		// Second-factor resolution. Resolution success still re-checks the
		// verified-email flag; an unverified user is forced out.
		fsm.WithGuardedTransition(StateMfaPending, StateAuthenticated, eventMfaResolved, verifiedUser, nil),
		fsm.WithGuardedTransition(StateMfaPending, StateAuthenticated, eventProviderVerified, verifiedUser, nil),
		fsm.WithTransition(StateMfaPending, StateUnauthenticated, eventSignInUnverified),
		fsm.WithTransition(StateMfaPending, StateUnauthenticated, eventSignOut),
		fsm.WithTransition(StateMfaPending, StateUnauthenticated, eventProviderSignedOut),

		// Verification completing later, provider downgrades, sign-outs.
		fsm.WithGuardedTransition(StateAuthenticatedUnverified, StateAuthenticated, eventProviderVerified, verifiedUser, nil),
		fsm.WithTransition(StateAuthenticatedUnverified, StateAuthenticatedUnverified, eventProviderUnverified),
		fsm.WithTransition(StateAuthenticatedUnverified, StateUnauthenticated, eventSignInUnverified),
		fsm.WithTransition(StateAuthenticatedUnverified, StateUnauthenticated, eventSignOut),
		fsm.WithTransition(StateAuthenticatedUnverified, StateUnauthenticated, eventProviderSignedOut),

		fsm.WithGuardedTransition(StateAuthenticated, StateAuthenticated, eventProviderVerified, verifiedUser, nil),
		fsm.WithTransition(StateAuthenticated, StateAuthenticatedUnverified, eventProviderUnverified),
		fsm.WithTransition(StateAuthenticated, StateUnauthenticated, eventSignOut),
		fsm.WithTransition(StateAuthenticated, StateUnauthenticated, eventProviderSignedOut),
	)
}
