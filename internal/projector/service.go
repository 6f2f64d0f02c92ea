// Package projector keeps the order read cache in step with order events.
package projector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
}

type Cache interface {
	Put(ctx context.Context, o *orders.Order) error
	Invalidate(ctx context.Context, orderID string) error
}

// Deduper is satisfied by *redisx.Dedup.
type Deduper interface {
	First(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Service struct {
	Orders OrderReader
	Cache  Cache
	Dedup  Deduper
	Log    *zap.Logger
}

// Topics the service consumes.
var Topics = []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged}

// Handle dipasang sebagai handler consumer. Returning nil commits the offset.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope at %s/%d: %w", m.Topic, m.Offset, err)
	}
	if env.EventType != orders.EventOrderPlaced && env.EventType != orders.EventOrderStatusChanged {
		return nil
	}
	if env.EventVersion != 1 {
		s.Log.Warn("unsupported event version, skipped",
			zap.String("event_type", env.EventType), zap.Int("version", env.EventVersion))
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	first, err := s.Dedup.First(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	// 3) apply; kalau gagal, lepas dedup supaya redelivery diproses ulang
	if err := s.apply(ctx, env); err != nil {
		if ferr := s.Dedup.Forget(context.WithoutCancel(ctx), env.EventID); ferr != nil {
			s.Log.Warn("dedup forget failed", zap.String("event_id", env.EventID), zap.Error(ferr))
		}
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, env orders.Envelope) error {
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.placed(ctx, p)
	default:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.statusChanged(ctx, p)
	}
}

func (s *Service) placed(ctx context.Context, p orders.OrderPlacedPayload) error {
	if err := s.refresh(ctx, p.OrderID); err != nil {
		return err
	}
	s.Log.Info("order projected", zap.String("order_id", p.OrderID), zap.Int("items", len(p.Items)))
	return nil
}

// refresh caches the order as stored. The placed and status-changed topics
// are consumed independently, so payload statuses may already be stale.
func (s *Service) refresh(ctx context.Context, orderID string) error {
	o, err := s.Orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return s.Cache.Invalidate(ctx, orderID)
	}
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if err := s.Cache.Put(ctx, o); err != nil {
		return fmt.Errorf("cache order %s: %w", orderID, err)
	}
	return nil
}

func (s *Service) statusChanged(ctx context.Context, p orders.OrderStatusChangedPayload) error {
	if p.StockRestored {
		for _, it := range p.Items {
			s.Log.Info("stock restored",
				zap.String("order_id", p.OrderID),
				zap.String("product_id", it.ProductID),
				zap.String("size", it.Size),
				zap.Int("quantity", it.Quantity))
		}
	}

	if err := s.refresh(ctx, p.OrderID); err != nil {
		return err
	}
	s.Log.Info("order status projected",
		zap.String("order_id", p.OrderID),
		zap.String("from", string(p.From)),
		zap.String("to", string(p.To)))
	return nil
}
