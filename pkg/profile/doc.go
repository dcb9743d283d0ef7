// Package profile reconciles identity-provider user records with the
// application's user-profile documents.
//
// Sync runs once per transition into the authenticated state: it reads
// the profile by identity id, creates it with merge semantics when
// absent, and lets stored fields (notably the role) override local
// defaults. Profile-store failures are logged and tolerated; a sign-in
// is never blocked or rolled back because the profile store was
// unreachable or denied access.
package profile
