package reconcile

import (
	"context"
	"encoding/json"

	kafkax "github.com/ariefcatur/go-shop-saga/internal/kafka"
	"github.com/ariefcatur/go-shop-saga/internal/metrics"
	"github.com/ariefcatur/go-shop-saga/internal/orders"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Deduper remembers event ids already handled; redisx.Deduper implements it.
type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Service records stock leak events. It never gives stock back.
type Service struct {
	Store   Store
	Dedup   Deduper
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// HandleStockLeaked is the consumer handler for order.stock.leaked. A nil
// return lets the message be committed; malformed messages are dropped so
// they do not block the partition.
func (s *Service) HandleStockLeaked(ctx context.Context, m kafka.Message) error {
	if t := kafkax.Header(m.Headers, "x-event-type"); t != "" && t != orders.EventStockLeaked {
		s.Metrics.ReconcilerEvent("ignored")
		return nil
	}

	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.drop(m, "decode envelope", err)
		return nil
	}
	if env.EventType != orders.EventStockLeaked {
		s.Metrics.ReconcilerEvent("ignored")
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.StockLeakedPayload](env.Payload)
	if err != nil {
		s.drop(m, "decode payload", err)
		return nil
	}

	log := s.log().With(zap.String("event_id", env.EventID), zap.String("attempt_id", p.AttemptID))

	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			return err
		}
		if !first {
			s.Metrics.ReconcilerEvent("duplicate")
			log.Debug("stock_leak_duplicate")
			return nil
		}
	}

	leaks := make([]Leak, 0, len(p.Items))
	units := 0
	for _, it := range p.Items {
		units += it.Qty
		leaks = append(leaks, Leak{
			AttemptID:  p.AttemptID,
			Position:   it.Position,
			ProductID:  it.ProductID,
			Quantity:   it.Qty,
			OwnerID:    p.UserID,
			Stage:      p.Stage,
			Reason:     p.Reason,
			OccurredAt: env.OccurredAt,
		})
	}

	inserted, err := s.Store.Record(ctx, leaks)
	if err != nil {
		if s.Dedup != nil {
			if ferr := s.Dedup.Forget(context.WithoutCancel(ctx), env.EventID); ferr != nil {
				log.Warn("dedup_forget_failed", zap.Error(ferr))
			}
		}
		s.Metrics.ReconcilerEvent("failed")
		return err
	}

	s.Metrics.ReconcilerEvent("recorded")
	log.Warn("stock_leak_recorded",
		zap.String("owner_id", p.UserID),
		zap.String("stage", p.Stage),
		zap.String("reason", p.Reason),
		zap.Int("items", len(leaks)),
		zap.Int("new_rows", inserted),
		zap.Int("units", units),
		zap.String("trace_id", env.TraceID),
	)
	return nil
}

func (s *Service) drop(m kafka.Message, what string, err error) {
	s.Metrics.ReconcilerEvent("invalid")
	s.log().Error("stock_leak_dropped",
		zap.String("reason", what),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.Error(err),
	)
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
