package orders

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderDeleted       = "OrderDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order number
	Payload       json.RawMessage `json:"payload"`
}

// Change describes one committed lifecycle step of an order.
type Change struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	From        Status    `json:"from,omitempty"`
	To          Status    `json:"to"`
	Reason      string    `json:"reason,omitempty"`
	TotalAmount int64     `json:"total_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventPublisher receives changes after their transaction commits.
type EventPublisher interface {
	PublishOrderChange(ctx context.Context, c Change) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderChange(context.Context, Change) error { return nil }
