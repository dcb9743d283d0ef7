// Package fsm implements a small finite state machine used to enforce
// legal transitions in the auth session lifecycle.
//
// States and events are plain strings; transitions are declared up front
// with optional guards and actions. A guard can veto a transition at
// runtime, and an action that returns an error prevents the state change.
//
//	machine := fsm.MustNew("draft",
//	    fsm.WithTransition("draft", "review", "submit"),
//	    fsm.WithGuardedTransition("review", "published", "publish", isApproved, nil),
//	)
//	err := machine.Fire(ctx, "submit", nil)
//
// Errors distinguish "no such transition" from "guard rejected" so callers
// can tell a programming error from a legitimate veto.
package fsm
