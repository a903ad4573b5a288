package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

// LogSender writes notifications to the structured log. Mail and push
// delivery live outside this service.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Logger.Info("notification",
		zap.String("user_id", m.UserID),
		zap.String("order_number", m.OrderNumber),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body))
	return nil
}

type RedisStatusCache struct {
	Redis *redis.Client
}

func (c RedisStatusCache) Put(ctx context.Context, orderNumber string, status orders.Status, at time.Time) error {
	return redisx.CacheStatus(ctx, c.Redis, orderNumber, string(status), at)
}

func (c RedisStatusCache) Forget(ctx context.Context, orderNumber string) error {
	return redisx.ForgetStatus(ctx, c.Redis, orderNumber)
}
