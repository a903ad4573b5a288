package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

// RedisStore keeps each cart as one JSON document under cart:{user_id}.
type RedisStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

func (s *RedisStore) Get(ctx context.Context, userID string) (Cart, error) {
	b, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeyCart, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{UserID: userID}, nil
	}
	if err != nil {
		return Cart{}, err
	}
	var c Cart
	if err := json.Unmarshal(b, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	c.UserID = userID
	return c, nil
}

func (s *RedisStore) Save(ctx context.Context, c Cart) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = redisx.TTLCart
	}
	return s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyCart, c.UserID), b, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCart, userID)).Err()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[string]Cart{}}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return Cart{UserID: userID}, nil
	}
	return copyCart(c), nil
}

func (s *MemoryStore) Save(_ context.Context, c Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.UserID] = copyCart(c)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func copyCart(c Cart) Cart {
	items := make([]Item, len(c.Items))
	for i, it := range c.Items {
		it.Options = it.Options.Clone()
		items[i] = it
	}
	c.Items = items
	return c
}
