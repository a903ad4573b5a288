package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

type StatusEntry struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CacheStatus stores the latest known status for an order number.
func CacheStatus(ctx context.Context, rdb *redis.Client, orderNumber, status string, at time.Time) error {
	b, err := json.Marshal(StatusEntry{Status: status, UpdatedAt: at.UTC()})
	if err != nil {
		return err
	}
	return rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderNumber), b, TTLStatusCache).Err()
}

func CachedStatus(ctx context.Context, rdb *redis.Client, orderNumber string) (StatusEntry, bool, error) {
	b, err := rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderNumber)).Bytes()
	if err == redis.Nil {
		return StatusEntry{}, false, nil
	}
	if err != nil {
		return StatusEntry{}, false, err
	}
	var e StatusEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return StatusEntry{}, false, err
	}
	return e, true, nil
}

// Dedup is a TTL-bounded marker set for at-least-once consumers.
type Dedup struct {
	Redis *redis.Client
	Scope string
}

func (d Dedup) key(id string) string { return fmt.Sprintf(KeyDedup, d.Scope, id) }

func (d Dedup) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, d.Redis, d.key(id))
}

func (d Dedup) Mark(ctx context.Context, id string) error {
	return d.Redis.Set(ctx, d.key(id), "1", TTLDedup).Err()
}

// ForgetStatus drops the cached status of a deleted order.
func ForgetStatus(ctx context.Context, rdb *redis.Client, orderNumber string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderNumber)).Err()
}
