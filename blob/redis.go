package blob

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fieldline/fieldline"
)

// Compile-time interface check.
var _ ArchiveStore = (*Redis)(nil)

// snapshotKeyPrefix namespaces archive snapshots in a shared Redis.
const snapshotKeyPrefix = "fieldline:snapshot:"

// Redis stores snapshots as plain string values. Suited to deployments
// that already run Redis and need snapshots reachable from every node.
type Redis struct {
	client goredis.Cmdable
}

// NewRedis creates a Redis-backed archive store. The caller owns the
// Redis client lifecycle.
func NewRedis(client goredis.Cmdable) *Redis {
	return &Redis{client: client}
}

// Client returns the underlying Redis client.
func (r *Redis) Client() goredis.Cmdable { return r.client }

// Put writes the payload under the key, replacing any previous payload.
// Snapshots are kept forever; no TTL is set.
func (r *Redis) Put(ctx context.Context, key string, payload []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := r.client.Set(ctx, snapshotKeyPrefix+key, payload, 0).Err(); err != nil {
		return fmt.Errorf("blob: redis put %s: %w", key, err)
	}

	return nil
}

// Get returns the payload stored under key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	payload, err := r.client.Get(ctx, snapshotKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fieldline.ErrSnapshotNotFound
		}

		return nil, fmt.Errorf("blob: redis get %s: %w", key, err)
	}

	return payload, nil
}

// Exists reports whether a payload is stored under key.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	n, err := r.client.Exists(ctx, snapshotKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("blob: redis exists %s: %w", key, err)
	}

	return n > 0, nil
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (r *Redis) Close() error { return nil }
