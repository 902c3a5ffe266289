package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 100

// ErrContended is returned when an item kept changing underneath UpdateItem.
var ErrContended = errors.New("storage item kept changing during update")

// RedisKV is the persistent per-browser storage behind guest carts.
type RedisKV struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisKV(client *redis.Client, ttl time.Duration) *RedisKV {
	return &RedisKV{Client: client, TTL: ttl}
}

var _ KeyValue = (*RedisKV)(nil)

func (c *RedisKV) ItemKey(scope, key string) string {
	return "storage:" + scope + ":" + key
}

func (c *RedisKV) GetItem(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := c.Client.Get(ctx, c.ItemKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisKV) SetItem(ctx context.Context, scope, key, value string) error {
	return c.Client.Set(ctx, c.ItemKey(scope, key), value, c.TTL).Err()
}

// UpdateItem runs fn against the current value under WATCH and writes its
// result in a MULTI block, retrying when another writer got there first.
func (c *RedisKV) UpdateItem(ctx context.Context, scope, key string, fn UpdateFunc) error {
	itemKey := c.ItemKey(scope, key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, itemKey).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			current, found = "", false
		} else if err != nil {
			return err
		}

		next, write, err := fn(current, found)
		if err != nil || !write {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, itemKey, next, c.TTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := c.Client.Watch(ctx, txf, itemKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrContended, itemKey)
}
