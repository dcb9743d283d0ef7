package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// New creates a mongo client, retrying the initial connection according
// to the config. The returned client is verified with a ping.
func New(ctx context.Context, cfg Config) (*mongo.Client, error) {
	attempts := max(cfg.RetryAttempts, 1)

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}

		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.ConnectionURL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize).
				SetMinPoolSize(cfg.MinPoolSize).
				SetMaxConnIdleTime(cfg.MaxConnIdleTime),
		)
		if err != nil {
			lastErr = err
			continue
		}

		if err := client.Ping(ctx, nil); err != nil {
			lastErr = err
			_ = client.Disconnect(ctx)
			continue
		}
		return client, nil
	}

	return nil, errors.Join(ErrFailedToConnect, lastErr)
}

// NewWithDatabase creates a mongo client and returns a handle to the
// named database.
func NewWithDatabase(ctx context.Context, cfg Config, database string) (*mongo.Database, error) {
	client, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.Database(database), nil
}

// Healthcheck returns a function performing a lightweight ping, suitable
// for readiness probes.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
