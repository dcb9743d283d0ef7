package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artmobile/artkit/pkg/redis"
)

func TestConnect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("connects and pings", func(t *testing.T) {
		t.Parallel()
		srv := miniredis.RunT(t)

		client, err := redis.Connect(ctx, redis.Config{
			ConnectionURL:  "redis://" + srv.Addr(),
			RetryAttempts:  1,
			ConnectTimeout: 5 * time.Second,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		require.NoError(t, redis.Healthcheck(client)(ctx))
	})

	t.Run("rejects malformed url", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(ctx, redis.Config{
			ConnectionURL:  "://nope",
			RetryAttempts:  1,
			ConnectTimeout: time.Second,
		})
		assert.ErrorIs(t, err, redis.ErrInvalidConnectionURL)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(ctx, redis.Config{
			ConnectionURL:  "redis://127.0.0.1:1",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: time.Second,
		})
		assert.ErrorIs(t, err, redis.ErrFailedToConnect)
	})
}
