// Package notify turns order lifecycle events into customer notifications
// and keeps the order status cache warm.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Message is what a customer is told about their order.
type Message struct {
	UserID      string
	OrderNumber string
	Subject     string
	Body        string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// StatusCache mirrors the latest status per order number.
type StatusCache interface {
	Put(ctx context.Context, orderNumber string, status orders.Status, at time.Time) error
	Forget(ctx context.Context, orderNumber string) error
}

type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type Deps struct {
	Sender Sender
	Cache  StatusCache // optional
	Dedup  Deduper     // optional
	Logger *zap.Logger
}

type Service struct {
	sender Sender
	cache  StatusCache
	dedup  Deduper
	log    *zap.Logger
}

func NewService(deps Deps) (*Service, error) {
	if deps.Sender == nil {
		return nil, errors.New("notify: sender is required")
	}
	return &Service{
		sender: deps.Sender,
		cache:  deps.Cache,
		dedup:  deps.Dedup,
		log:    logging.OrNop(deps.Logger),
	}, nil
}

// HandleOrderEvent is the consumer handler for the order events topic.
// The dedup marker is set only after the event was fully handled, so a
// failed send is retried on redelivery.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.log.Warn("dropping undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	switch env.EventType {
	case orders.EventOrderPlaced, orders.EventOrderStatusChanged, orders.EventOrderDeleted:
	default:
		return nil
	}

	if s.dedup != nil && env.EventID != "" {
		if seen, err := s.dedup.Seen(ctx, env.EventID); err == nil && seen {
			return nil
		}
	}

	c, err := kafkax.UnwrapPayload[orders.Change](env.Payload)
	if err != nil {
		s.log.Warn("dropping event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	log := s.log.With(
		zap.String("event_id", env.EventID),
		zap.String("trace_id", env.TraceID),
		zap.String("order_number", c.OrderNumber),
	)

	if err := s.refreshCache(ctx, env.EventType, c); err != nil {
		log.Warn("status cache update failed", zap.Error(err))
	}

	if msg, ok := Compose(env.EventType, c); ok {
		if err := s.sender.Send(ctx, msg); err != nil {
			return fmt.Errorf("send notification for %s: %w", c.OrderNumber, err)
		}
		log.Info("customer notified", zap.String("status", string(c.To)))
	}

	if s.dedup != nil && env.EventID != "" {
		if err := s.dedup.Mark(ctx, env.EventID); err != nil {
			log.Warn("dedup mark failed", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) refreshCache(ctx context.Context, typ string, c orders.Change) error {
	if s.cache == nil {
		return nil
	}
	if typ == orders.EventOrderDeleted {
		return s.cache.Forget(ctx, c.OrderNumber)
	}
	return s.cache.Put(ctx, c.OrderNumber, c.To, c.OccurredAt)
}

// Compose renders the customer message for a change. Deletions and moves
// customers do not care about produce none.
func Compose(typ string, c orders.Change) (Message, bool) {
	m := Message{UserID: c.UserID, OrderNumber: c.OrderNumber}
	if typ == orders.EventOrderPlaced {
		m.Subject = "Order " + c.OrderNumber + " received"
		m.Body = fmt.Sprintf("Thanks for your order. Total due: %s.", rupiah(c.TotalAmount))
		return m, true
	}
	if typ != orders.EventOrderStatusChanged {
		return Message{}, false
	}
	switch c.To {
	case orders.StatusProcessing:
		m.Subject = "Payment received for " + c.OrderNumber
		m.Body = "We are preparing your order."
	case orders.StatusShipped:
		m.Subject = "Order " + c.OrderNumber + " shipped"
		m.Body = "Your order is on its way."
	case orders.StatusDelivered:
		m.Subject = "Order " + c.OrderNumber + " delivered"
		m.Body = "Your order has been delivered."
	case orders.StatusCancelled:
		m.Subject = "Order " + c.OrderNumber + " cancelled"
		m.Body = "Your order was cancelled. Any reserved items were released."
	case orders.StatusRefunded:
		m.Subject = "Order " + c.OrderNumber + " refunded"
		m.Body = fmt.Sprintf("A refund of %s is on its way.", rupiah(c.TotalAmount))
	default:
		return Message{}, false
	}
	return m, true
}

// rupiah formats whole IDR with dot thousands separators.
func rupiah(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-Rp" + b.String()
	}
	return "Rp" + b.String()
}
