package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/ariefcatur/go-shop-saga/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-shop-saga/internal/orders")

// Coordinator turns an order proposal into a stored order. It reduces stock
// for every item in list order, stops at the first failure and never gives
// reduced stock back. Leaks are logged, counted and published instead.
type Coordinator struct {
	Verifier auth.TokenVerifier
	Stock    StockReducer
	Store    Store
	Clock    clock.Clock

	// optional
	Attempts AttemptLog
	Events   EventPublisher
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Service  string
}

func (c *Coordinator) CreateOrder(ctx context.Context, token string, in NewOrder) (*Outcome, error) {
	claims, err := c.Verifier.Verify(token)
	if err != nil {
		c.Metrics.OrderAttempt("rejected")
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		c.Metrics.OrderAttempt("rejected")
		return nil, err
	}

	out := &Outcome{Attempt: Attempt{
		ID:        uuid.NewString(),
		OwnerID:   claims.UserID,
		State:     StateStarted,
		Reserved:  make([]Reservation, 0, len(in.Items)),
		StartedAt: c.now(),
	}}
	a := &out.Attempt
	c.transition(ctx, a, StateStarted)
	c.transition(ctx, a, StateItemsReserving)

	for i, it := range in.Items {
		remaining, err := c.reserve(ctx, token, i+1, it)
		if err != nil {
			rerr := &ReservationError{Index: i + 1, ProductID: it.ProductID, Quantity: it.Quantity, Err: err}
			c.fail(ctx, a, StateReservationFailed, Failure{
				Index:     i + 1,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Reason:    err.Error(),
			})
			return out, rerr
		}
		a.Reserved = append(a.Reserved, Reservation{
			Position:  i + 1,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Remaining: remaining,
		})
	}
	c.transition(ctx, a, StateReserved)
	c.transition(ctx, a, StatePersisting)

	now := c.now()
	order := &Order{
		ID:              uuid.NewString(),
		OwnerID:         claims.UserID,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		ShippingAddress: in.ShippingAddress,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		TotalPrice:      in.TotalPrice,
		Items:           append([]Item(nil), in.Items...),
	}
	if err := c.Store.Create(ctx, order); err != nil {
		c.fail(ctx, a, StatePersistFailed, Failure{Reason: err.Error()})
		return out, &PersistError{Err: err}
	}

	out.Order = order
	a.OrderID = order.ID
	a.FinishedAt = c.now()
	c.transition(ctx, a, StateCommitted)
	c.Metrics.OrderAttempt("committed")
	c.log().Info("order_committed",
		zap.String("order_id", order.ID),
		zap.String("attempt_id", a.ID),
		zap.String("owner_id", order.OwnerID),
		zap.Int("items", len(order.Items)),
	)
	c.publish(ctx, TopicOrderCreated, newEnvelope(ctx, EventOrderCreated, c.Service, order.ID, orderCreatedPayload(order), now))
	return out, nil
}

func (c *Coordinator) reserve(ctx context.Context, token string, position int, it Item) (int, error) {
	ctx, span := tracer.Start(ctx, "orders.reserve_item", trace.WithAttributes(
		attribute.Int("order.item.position", position),
		attribute.String("product.id", it.ProductID),
		attribute.Int("order.item.quantity", it.Quantity),
	))
	defer span.End()

	remaining, err := c.Stock.Reduce(ctx, token, it.ProductID, it.Quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	return remaining, nil
}

func (c *Coordinator) fail(ctx context.Context, a *Attempt, state AttemptState, f Failure) {
	// bookkeeping must survive a cancelled request
	ctx = context.WithoutCancel(ctx)

	a.Failure = &f
	a.FinishedAt = c.now()
	c.transition(ctx, a, state)

	stage := "reservation"
	outcome := "reservation_failed"
	if state == StatePersistFailed {
		stage = "persist"
		outcome = "persist_failed"
	}
	c.Metrics.OrderAttempt(outcome)

	if len(a.Reserved) == 0 {
		c.log().Info("order_rejected",
			zap.String("attempt_id", a.ID),
			zap.String("owner_id", a.OwnerID),
			zap.String("state", string(state)),
			zap.String("reason", f.Reason),
		)
		return
	}

	units := 0
	items := make([]ItemQty, 0, len(a.Reserved))
	for _, r := range a.Reserved {
		units += r.Quantity
		items = append(items, ItemQty{Position: r.Position, ProductID: r.ProductID, Qty: r.Quantity})
	}
	c.Metrics.StockLeak(stage, units)
	c.log().Warn("stock_leaked",
		zap.String("attempt_id", a.ID),
		zap.String("owner_id", a.OwnerID),
		zap.String("stage", stage),
		zap.String("reason", f.Reason),
		zap.Any("reserved", a.Reserved),
	)

	payload := StockLeakedPayload{
		AttemptID: a.ID,
		UserID:    a.OwnerID,
		Stage:     stage,
		Reason:    f.Reason,
		Items:     items,
	}
	if f.Index > 0 {
		payload.FailedItem = &ItemQty{Position: f.Index, ProductID: f.ProductID, Qty: f.Quantity}
	}
	c.publish(ctx, TopicStockLeaked, newEnvelope(ctx, EventStockLeaked, c.Service, a.ID, payload, a.FinishedAt))
}

func (c *Coordinator) transition(ctx context.Context, a *Attempt, s AttemptState) {
	a.State = s
	if c.Attempts == nil {
		return
	}
	if err := c.Attempts.Record(ctx, a.ID, a.fields()); err != nil {
		c.log().Warn("attempt_record_failed", zap.String("attempt_id", a.ID), zap.String("state", string(s)), zap.Error(err))
	}
}

func (c *Coordinator) publish(ctx context.Context, topic string, env Envelope) {
	if c.Events == nil {
		return
	}
	if err := c.Events.Publish(ctx, topic, env); err != nil {
		c.log().Error("event_publish_failed",
			zap.String("topic", topic),
			zap.String("event_id", env.EventID),
			zap.String("correlation_id", env.CorrelationID),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now()
}

func (c *Coordinator) log() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func orderCreatedPayload(o *Order) OrderCreatedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Name: it.Name, Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return OrderCreatedPayload{
		OrderID:         o.ID,
		UserID:          o.OwnerID,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		Items:           items,
		TotalPrice:      o.TotalPrice,
	}
}
