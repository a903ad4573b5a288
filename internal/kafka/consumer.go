package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/logging"
)

// Handler returns nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	log     *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: logging.OrNop(log)}
}

// Start fetches messages and fans them out to the worker pool. Messages
// with the same key always land on the same worker, so events for one
// order are handled in the order they were produced. It returns nil on
// ctx cancellation and once all workers have drained.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	idx := make([]int, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 4)
		idx[i] = i
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, id, h, m)
			}
		}(i, lanes[i])
	}
	defer wg.Wait()
	defer func() {
		for _, l := range lanes {
			close(l)
		}
	}()

	// Same hashing the producer uses to pick a partition.
	route := &kafka.Hash{}
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case lanes[route.Balance(m, idx...)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) {
	if err := h(ctx, m); err != nil {
		c.log.Warn("handler failed",
			zap.Int("worker", worker),
			zap.Int64("offset", m.Offset),
			zap.ByteString("key", m.Key),
			zap.Error(err))
		time.Sleep(200 * time.Millisecond)
		return
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}
