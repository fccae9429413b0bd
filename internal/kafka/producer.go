package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var (
	ErrProducerClosed = errors.New("kafka: producer closed")
	ErrInboxFull      = errors.New("kafka: producer inbox full")
)

// Producer buffers messages in an inbox and writes them from one goroutine.
// The writer has no fixed topic; every message names its own.
type Producer struct {
	w     writer
	inbox chan kafka.Message
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("kafka_write_failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return newProducer(w, buf, log)
}

func newProducer(w writer, buf int, log *zap.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:     w,
		inbox: make(chan kafka.Message, buf),
		log:   log,
		done:  make(chan struct{}),
	}
}

// Run writes queued messages until ctx is cancelled, then flushes whatever
// is still buffered and closes the writer.
func (p *Producer) Run(ctx context.Context) error {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.closed = true
			p.mu.Unlock()
			p.flush()
			return p.w.Close()
		case m := <-p.inbox:
			p.write(m)
		}
	}
}

func (p *Producer) flush() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka_publish_failed", zap.String("topic", m.Topic), zap.ByteString("key", m.Key), zap.Error(err))
	}
}

// Publish never blocks on the broker; a full inbox is reported to the caller.
func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- kafka.Message{Topic: topic, Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return nil
	default:
		return ErrInboxFull
	}
}

// Done is closed once Run has flushed and returned.
func (p *Producer) Done() <-chan struct{} { return p.done }
