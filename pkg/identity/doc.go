// Package identity defines the identity provider port consumed by the
// auth session, together with the error taxonomy shared across auth
// packages, and a local in-process provider implementation.
//
// The Provider interface mirrors the primitives of a hosted identity
// service: credential sign-up/sign-in, sign-out, password reset,
// verification email, session-change subscription, and phone
// second-factor enrollment/challenge. A sign-in that requires a second
// factor does not fail with a generic error; it returns an
// *MfaRequiredError carrying an opaque Resolver that the MFA coordinator
// uses to complete the sign-in.
//
// LocalProvider implements the port in-process (bcrypt credential store,
// HMAC-signed email links, SMS codes through a CodeSender) so the whole
// flow can run and be tested without the external service.
package identity
