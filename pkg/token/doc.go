// Package token provides compact, signed tokens for embedding JSON payloads
// in email verification and password reset links.
//
// Token format: base64url(payload).base64url(signature), signed with
// HMAC-SHA256 truncated to 16 bytes. Expiry is the payload's concern;
// embed a unix timestamp and check it after parsing.
package token
