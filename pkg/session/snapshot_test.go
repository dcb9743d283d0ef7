package session_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artmobile/artkit/pkg/session"
)

func TestFileSnapshotStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewFileSnapshotStore(filepath.Join(t.TempDir(), "session.json"))

	t.Run("load before save", func(t *testing.T) {
		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, session.ErrNoSnapshot)
	})

	t.Run("roundtrip", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, verifiedUser()))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "uid-1", got.ID)
		assert.True(t, got.EmailVerified)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))
		require.NoError(t, store.Clear(ctx))

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, session.ErrNoSnapshot)
	})
}

func TestSessionPersistsLastKnownUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewFileSnapshotStore(filepath.Join(t.TempDir(), "session.json"))

	provider := &MockProvider{}
	s := session.New(provider, &MockChallenger{}, session.WithSnapshotStore(store))
	s.Start(ctx)
	t.Cleanup(s.Stop)

	assert.Nil(t, s.LastKnownUser(ctx))

	provider.Notify(verifiedUser())
	got := s.LastKnownUser(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "uid-1", got.ID)

	provider.On("SignOut", ctx).Once()
	s.SignOut(ctx)
	assert.Nil(t, s.LastKnownUser(ctx))
}
