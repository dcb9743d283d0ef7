// Package redis connects to a redis server with retries and exposes a
// readiness healthcheck. The shared resend-cooldown store rides on the
// client this package hands out.
package redis
