package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/ariefcatur/go-shop-saga/internal/redisx"
	"go.uber.org/zap"
)

// StatusCache is the read-through cache behind GET /orders/{id}/status;
// redisx.StatusCache implements it.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.StatusEntry, bool, error)
	Set(ctx context.Context, orderID string, e redisx.StatusEntry) error
	Delete(ctx context.Context, orderID string) error
}

type Service struct {
	Store  Store
	Policy TransitionPolicy
	Clock  clock.Clock

	// optional
	Cache   StatusCache
	Events  EventPublisher
	Log     *zap.Logger
	Service string
}

// StatusView is the body of GET /orders/{id}/status.
type StatusView struct {
	OrderID   string    `json:"orderId"`
	OwnerID   string    `json:"-"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Cached    bool      `json:"cached"`
}

func (s *Service) ListOwned(ctx context.Context, userID string) ([]Order, error) {
	return s.Store.ListByOwner(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.Store.ListAll(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.Store.Get(ctx, id)
}

// UpdateStatus moves an order to raw under the configured policy. actor is
// recorded on the emitted event.
func (s *Service) UpdateStatus(ctx context.Context, id, raw, actor string) (*Order, error) {
	next, ok := ParseStatus(raw)
	if !ok {
		return nil, ErrInvalidStatus
	}
	policy := s.Policy
	if policy == nil {
		policy = Permissive{}
	}

	o, prev, err := s.Store.UpdateStatus(ctx, id, next, policy, s.now())
	if err != nil {
		return nil, err
	}

	s.log().Info("order_status_changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.String("actor", actor),
	)
	// Concurrent updates may commit in either order; dropping the entry
	// leaves the next read to fill it from the committed row.
	s.invalidate(ctx, o.ID)
	if s.Events != nil {
		env := newEnvelope(ctx, EventOrderStatusChanged, s.Service, o.ID, OrderStatusChangedPayload{
			OrderID: o.ID, From: prev, To: next, ChangedBy: actor,
		}, o.UpdatedAt)
		if err := s.Events.Publish(ctx, TopicOrderStatusChanged, env); err != nil {
			s.log().Error("event_publish_failed", zap.String("topic", TopicOrderStatusChanged), zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	return o, nil
}

// Status serves from the cache when it can and fills it on a miss.
func (s *Service) Status(ctx context.Context, id string) (StatusView, error) {
	if s.Cache != nil {
		e, ok, err := s.Cache.Get(ctx, id)
		if err != nil {
			s.log().Warn("status_cache_get_failed", zap.String("order_id", id), zap.Error(err))
		}
		if ok {
			return StatusView{OrderID: id, OwnerID: e.OwnerID, Status: Status(e.Status), UpdatedAt: e.UpdatedAt, Cached: true}, nil
		}
	}

	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return StatusView{}, err
	}
	s.cache(ctx, o)
	return StatusView{OrderID: o.ID, OwnerID: o.OwnerID, Status: o.Status, UpdatedAt: o.UpdatedAt}, nil
}

func (s *Service) cache(ctx context.Context, o *Order) {
	if s.Cache == nil {
		return
	}
	e := redisx.StatusEntry{OwnerID: o.OwnerID, Status: string(o.Status), UpdatedAt: o.UpdatedAt}
	if err := s.Cache.Set(ctx, o.ID, e); err != nil {
		s.log().Warn("status_cache_set_failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, id); err != nil {
		s.log().Warn("status_cache_delete_failed", zap.String("order_id", id), zap.Error(err))
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
