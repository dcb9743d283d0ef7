package identity

import "time"

// UserRecord is the provider's view of an account.
type UserRecord struct {
	ID            string
	Email         string
	DisplayName   string
	EmailVerified bool
	CreatedAt     time.Time
}

// FactorHint describes an enrolled second factor available to satisfy a
// challenge. PhoneNumber is masked by the provider; it is for display only.
type FactorHint struct {
	UID         string
	DisplayName string
	PhoneNumber string
}

// Resolver identifies an in-progress sign-in that requires a second
// factor. The ID is an opaque provider handle; Hints lists the enrolled
// factors that can satisfy the challenge.
type Resolver struct {
	ID    string
	Hints []FactorHint
}
