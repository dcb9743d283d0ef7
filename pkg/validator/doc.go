// Package validator provides rule-based input validation for auth flows.
//
// Rules are composed at the call site and evaluated together, collecting
// every failure instead of stopping at the first one:
//
//	if err := validator.Apply(
//	    validator.ValidEmail("email", email),
//	    validator.MinPasswordLength("password", password, 8),
//	); err != nil {
//	    return err
//	}
//
// Apply returns ValidationErrors, which callers can inspect per field to
// drive inline form feedback. All rules are pure; nothing here performs
// network calls, so validation always happens before the identity
// provider is contacted.
package validator
