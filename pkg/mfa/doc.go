// Package mfa coordinates phone-based second-factor protocols.
//
// Two independent two-phase protocols share the same provider
// primitives: enrollment adds a factor to an already-signed-in account,
// while a challenge completes a sign-in the provider interrupted with a
// second-factor requirement. They are deliberately not unified: an
// enrollment acts on an authenticated principal, a challenge happens
// before authentication completes, and conflating the two risks silently
// enrolling the wrong account.
//
// The coordinator enforces E.164 phone validation before any network
// call, a fixed resend cooldown between code dispatches (extended when
// the provider reports rate limiting), and deterministic
// platform-unsupported failures on runtimes without a captcha surface.
package mfa
