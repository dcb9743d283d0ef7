// Package broadcast provides a small in-memory fan-out primitive.
//
// The auth session publishes a snapshot on every state change; screens
// subscribe and re-render from the latest snapshot. Sends never block:
// a subscriber whose buffer is full misses intermediate snapshots, which
// is acceptable because only the latest one matters for rendering.
package broadcast
