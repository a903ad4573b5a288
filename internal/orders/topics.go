package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
)

const TopicOrderEvents = "storefront.order.events"

// Partition key = order number so every event of one order keeps its order.
func PartitionKey(orderNumber string) []byte { return []byte(orderNumber) }

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// KafkaPublisher wraps changes in the v1 envelope and hands them to the
// async producer.
type KafkaPublisher struct {
	Producer Publisher
	Service  string
}

func (p *KafkaPublisher) PublishOrderChange(ctx context.Context, c Change) error {
	payload, err := kafkax.Marshal(c)
	if err != nil {
		return err
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     c.Type,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		TraceID:       traceID(ctx),
		CorrelationID: c.OrderNumber,
		Payload:       payload,
	}
	b, err := kafkax.Marshal(ev)
	if err != nil {
		return err
	}
	p.Producer.Publish(PartitionKey(c.OrderNumber), b,
		kafkago.Header{Key: "x-event-type", Value: []byte(c.Type)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

type traceKey struct{}

// WithTraceID tags ctx so published events carry the request id.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
