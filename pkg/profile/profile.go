package profile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/artmobile/artkit/pkg/identity"
	"github.com/artmobile/artkit/pkg/logger"
)

// Roles a profile can hold.
const (
	RoleUser   = "user"
	RoleArtist = "artist"
)

// ErrNotFound is returned by Store.Get when no profile document exists
// for the id.
var ErrNotFound = errors.New("profile: not found")

// UserProfile mirrors the stored user-profile document. The ID equals
// the identity-provider user id; exactly one document exists per id.
type UserProfile struct {
	ID        string
	Email     string
	FullName  string
	Role      string
	CreatedAt time.Time
}

// Store is the profile document store port.
type Store interface {
	// Get returns the profile for the identity id, or ErrNotFound.
	Get(ctx context.Context, id string) (*UserProfile, error)
	// Upsert creates or updates the profile with merge semantics;
	// calling it for an existing document is a no-op merge, not an error.
	Upsert(ctx context.Context, p *UserProfile) error
}

// Sync reconciles identity records with stored profiles.
type Sync struct {
	store Store
	log   *slog.Logger
}

// SyncOption configures a Sync.
type SyncOption func(*Sync)

// WithLogger sets a custom logger for the sync.
func WithLogger(log *slog.Logger) SyncOption {
	return func(s *Sync) { s.log = log }
}

// NewSync creates a profile sync over the store.
func NewSync(store Store, opts ...SyncOption) *Sync {
	s := &Sync{store: store, log: logger.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile returns the effective profile for a freshly authenticated
// user, creating the stored document when absent. It never fails:
// store errors degrade to the local defaults.
func (s *Sync) Reconcile(ctx context.Context, user *identity.UserRecord) *UserProfile {
	local := &UserProfile{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.DisplayName,
		Role:      RoleUser,
		CreatedAt: user.CreatedAt,
	}

	stored, err := s.store.Get(ctx, user.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := s.store.Upsert(ctx, local); err != nil {
			s.log.WarnContext(ctx, "profile create failed, continuing with defaults",
				logger.UserID(user.ID), logger.Error(err), logger.Component("profile"))
		}
		return local
	case err != nil:
		s.log.WarnContext(ctx, "profile read failed, continuing with defaults",
			logger.UserID(user.ID), logger.Error(err), logger.Component("profile"))
		return local
	}

	// Stored fields win over local defaults.
	if stored.Email != "" {
		local.Email = stored.Email
	}
	if stored.FullName != "" {
		local.FullName = stored.FullName
	}
	if stored.Role != "" {
		local.Role = stored.Role
	}
	if !stored.CreatedAt.IsZero() {
		local.CreatedAt = stored.CreatedAt
	}
	return local
}
