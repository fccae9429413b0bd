package orders

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-shop-saga/internal/kafka"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventStockLeaked        = "StockLeaked"
	EventOrderStatusChanged = "OrderStatusChanged"

	eventVersion = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id, or attempt id for leaks
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	Position  int    `json:"position"`
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ItemPrice struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	Items           []ItemPrice     `json:"items"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// StockLeakedPayload lists stock that was reduced for an order that was never stored.
type StockLeakedPayload struct {
	AttemptID  string    `json:"attempt_id"`
	UserID     string    `json:"user_id"`
	Stage      string    `json:"stage"` // reservation | persist
	Reason     string    `json:"reason"`
	FailedItem *ItemQty  `json:"failed_item,omitempty"`
	Items      []ItemQty `json:"items"`
}

type OrderStatusChangedPayload struct {
	OrderID   string `json:"order_id"`
	From      Status `json:"from"`
	To        Status `json:"to"`
	ChangedBy string `json:"changed_by"`
}

// EventPublisher is optional everywhere it appears; a nil publisher drops events.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, env Envelope) error
}

func newEnvelope(ctx context.Context, eventType, producer, correlationID string, payload any, at time.Time) Envelope {
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return env
}

// KafkaPublisher writes envelopes through the async producer, keyed by
// correlation id.
type KafkaPublisher struct {
	Producer *kafkax.Producer
}

func (p *KafkaPublisher) Publish(_ context.Context, topic string, env Envelope) error {
	return p.Producer.Publish(topic, PartitionKey(env.CorrelationID), kafkax.MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}
