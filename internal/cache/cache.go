// Package cache is a read-through JSON cache over Redis for account and sub-account reads.
// Balances are always written through the store; the cache only ever holds copies.
package cache

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"
	"fmt"
	"time" // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// DefaultTTL bounds how stale a cached read can be
const DefaultTTL = 60 * time.Second

// Cache wraps a Redis client. A nil *Cache is valid and never hits.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps rdb; a non-positive ttl uses DefaultTTL
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get looks up key and unmarshals it into dest. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, key).Bytes() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key for the configured TTL
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

// Delete removes keys
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// AccountKey caches one account
func AccountKey(id uint) string { return fmt.Sprintf("account:%d", id) }

// OwnerAccountKey caches the account of an owner
func OwnerAccountKey(ownerID uint) string { return fmt.Sprintf("account:owner:%d", ownerID) }

// SubAccountKey caches one sub-account
func SubAccountKey(id uint) string { return fmt.Sprintf("subaccount:%d", id) }

// SubAccountsKey caches the sub-account list of an account
func SubAccountsKey(accountID uint) string { return fmt.Sprintf("account:%d:subaccounts", accountID) }
