package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when the message may be committed. A failing
// message is retried; it must be safe to handle the same message twice.
type Handler func(ctx context.Context, m kafka.Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       reader
	workers int
	log     *zap.Logger

	retryBase time.Duration
	retryMax  time.Duration
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
	if log == nil {
		log = zap.NewNop()
	}
	return newConsumer(r, workers, log.With(zap.String("topic", topic), zap.String("group", group)))
}

func newConsumer(r reader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log, retryBase: 200 * time.Millisecond, retryMax: 10 * time.Second}
}

// Start fans messages out to a worker pool and commits each one after its
// handler succeeds. A partition always lands on the same worker, so its
// messages are handled and committed in offset order, and a failing message
// holds its partition until a retry succeeds. Start returns nil on ctx
// cancellation.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.handle(ctx, h, m) {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn("kafka_commit_failed", zap.Int64("offset", m.Offset), zap.Int("partition", m.Partition), zap.Error(err))
				}
			}
		}(jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// handle runs h until it succeeds. It reports false only when ctx ended
// first, in which case the message stays uncommitted.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) bool {
	wait := c.retryBase
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		c.log.Warn("kafka_handler_failed",
			zap.Int64("offset", m.Offset),
			zap.Int("partition", m.Partition),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		if wait *= 2; wait > c.retryMax {
			wait = c.retryMax
		}
	}
}
