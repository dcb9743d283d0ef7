// Package session holds the auth session state machine: the single
// owned instance screens call for sign-up, sign-in, second-factor
// resolution and sign-out, and subscribe to for re-rendering.
//
// The lifecycle is Bootstrapping -> {Unauthenticated,
// AuthenticatedUnverified, Authenticated, MfaPending}. The only path
// into Authenticated is a user record whose email is verified at the
// moment of transition; the guard re-checks the flag after second-factor
// resolution and on every provider notification, because the provider
// is the source of truth and may change independently. A credential
// sign-in that returns an unverified user is force-signed-out locally
// (deliberate policy: no authenticated access without a verified email).
//
// Every public operation records provider failures in the session state
// for reactive observers and returns them to the caller for immediate
// feedback. Operations themselves do not queue or reject overlapping
// calls; preventing duplicate submissions while IsLoading is true is the
// caller's responsibility.
package session
