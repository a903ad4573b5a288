package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/logging"
)

type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	once    sync.Once
	log     *zap.Logger
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	log = logging.OrNop(log).With(zap.String("topic", topic))
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
			Completion: func(msgs []kafka.Message, err error) {
				if err != nil {
					log.Error("kafka write failed", zap.Int("messages", len(msgs)), zap.Error(err))
				}
			},
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

// Start runs the delivery loop until Close is called or ctx ends. Messages
// already queued when ctx ends are still handed to the writer.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		defer func() {
			if err := p.w.Close(); err != nil {
				p.log.Warn("kafka writer close", zap.Error(err))
			}
		}()
		for {
			select {
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				p.write(m)
			case <-ctx.Done():
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							return
						}
						p.write(m)
					default:
						return
					}
				}
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka enqueue failed", zap.ByteString("key", m.Key), zap.Error(err))
	}
}

// Publish enqueues without blocking; a full inbox drops the message.
// It must not be called after Close.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
	default:
		p.log.Warn("producer inbox full, dropping message", zap.ByteString("key", key))
	}
}

// Close stops accepting messages; the loop flushes what is queued and exits.
func (p *Producer) Close() { p.once.Do(func() { close(p.inbox) }) }

// WaitClosed blocks until the loop has exited and the writer is closed.
func (p *Producer) WaitClosed() { <-p.closeCh }
