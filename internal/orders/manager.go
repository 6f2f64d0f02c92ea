package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Catalog is the slice of the product store the engine needs. Inside WithinTx
// the ctx carries the transaction and Get must lock what it returns.
type Catalog interface {
	Get(ctx context.Context, productID string) (*catalog.Product, error)
	UpdateStock(ctx context.Context, productID, size string, stock int) error
}

// Store persists orders. Get returns ErrOrderNotFound for unknown ids.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID string, status Status, at time.Time) error
}

// TxManager runs fn inside one transaction: commit when fn returns nil,
// rollback otherwise, session released on every path.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher matches kafkax.Producer; one publisher per topic.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

var tracer = otel.Tracer("github.com/ariefcatur/go-storefront/internal/orders")

// Manager places orders and moves them between statuses, keeping product
// stock consistent with the orders that reference it.
type Manager struct {
	Catalog Catalog
	Orders  Store
	Tx      TxManager
	Log     *zap.Logger

	// optional; nil disables the event
	Placed  Publisher
	Changed Publisher
	Service string

	Now func() time.Time
}

// now is truncated to the storage precision so returned orders match what
// a later read gives back.
func (m *Manager) now() time.Time {
	t := time.Now()
	if m.Now != nil {
		t = m.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}

func (m *Manager) log() *zap.Logger {
	if m.Log == nil {
		return zap.NewNop()
	}
	return m.Log
}

func validatePlace(req PlaceRequest) error {
	if strings.TrimSpace(req.Customer.Name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrValidation)
	}
	for i, it := range req.Items {
		switch {
		case it.ProductID == "":
			return fmt.Errorf("%w: item %d has no product id", ErrValidation, i)
		case it.Size == "":
			return fmt.Errorf("%w: item %d has no size", ErrValidation, i)
		case it.Quantity <= 0:
			return fmt.Errorf("%w: item %d quantity must be positive", ErrValidation, i)
		}
	}
	return nil
}

// PlaceOrder deducts stock for every line and inserts the order, all in one
// transaction. The first failing line aborts everything.
func (m *Manager) PlaceOrder(ctx context.Context, req PlaceRequest) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.items", len(req.Items))))
	defer span.End()

	if err := validatePlace(req); err != nil {
		return nil, fail(span, err)
	}

	now := m.now()
	o := &Order{
		ID:        uuid.NewString(),
		Customer:  req.Customer,
		Items:     append([]Line(nil), req.Items...),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	err := m.Tx.WithinTx(ctx, func(ctx context.Context) error {
		// working copies, so repeated lines on one product see earlier deductions
		snap := make(map[string]*catalog.Product, len(o.Items))
		for i, line := range o.Items {
			p, err := m.product(ctx, snap, line.ProductID)
			if err != nil {
				return &LineError{Index: i, ProductID: line.ProductID, Size: line.Size, Err: err}
			}
			left, err := CheckAndReserve(p, line)
			if err != nil {
				return &LineError{Index: i, ProductID: line.ProductID, Size: line.Size, Err: err}
			}
			p.Sizes[p.SizeIndex(line.Size)].Stock = left
			if err := m.Catalog.UpdateStock(ctx, line.ProductID, line.Size, left); err != nil {
				return fmt.Errorf("update stock %s/%s: %w", line.ProductID, line.Size, err)
			}
		}
		if err := m.Orders.Insert(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		m.log().Warn("order placement failed", zap.String("order_id", o.ID), zap.Error(err))
		return nil, fail(span, err)
	}

	m.log().Info("order placed", zap.String("order_id", o.ID), zap.Int("items", len(o.Items)))
	m.publish(ctx, m.Placed, EventOrderPlaced, o.ID, OrderPlacedPayload{
		OrderID:  o.ID,
		Customer: o.Customer,
		Items:    o.Items,
		Status:   o.Status,
		PlacedAt: o.CreatedAt,
	})
	span.SetStatus(codes.Ok, "order placed")
	return o, nil
}

// ChangeStatus writes a new status. Moving a live order to cancelled gives
// its stock back in the same transaction; this happens at most once per order.
func (m *Manager) ChangeStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.ChangeStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status.to", string(to)),
	))
	defer span.End()

	if !to.Valid() {
		return nil, fail(span, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to))
	}

	var (
		updated  *Order
		from     Status
		restored bool
	)
	err := m.Tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := m.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		if from == to {
			return fmt.Errorf("%w: order %s is already %s", ErrNoEffectiveChange, orderID, to)
		}
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		if RestoresStock(from, to) {
			if err := m.restore(ctx, o); err != nil {
				return err
			}
			restored = true
		}
		at := m.now()
		if err := m.Orders.UpdateStatus(ctx, o.ID, to, at); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		o.Status = to
		o.UpdatedAt = at
		updated = o
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	m.log().Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Bool("stock_restored", restored),
	)
	payload := OrderStatusChangedPayload{OrderID: orderID, From: from, To: to, StockRestored: restored}
	if restored {
		payload.Items = updated.Items
	}
	m.publish(ctx, m.Changed, EventOrderStatusChanged, orderID, payload)
	span.SetAttributes(attribute.Bool("order.stock_restored", restored))
	span.SetStatus(codes.Ok, "status changed")
	return updated, nil
}

// restore gives every line's quantity back. Products or sizes removed from
// the catalog since the order was placed are skipped with a warning.
func (m *Manager) restore(ctx context.Context, o *Order) error {
	snap := make(map[string]*catalog.Product, len(o.Items))
	for _, line := range o.Items {
		p, err := m.product(ctx, snap, line.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			m.log().Warn("restock skipped: product no longer exists",
				zap.String("order_id", o.ID), zap.String("product_id", line.ProductID))
			continue
		}
		if err != nil {
			return err
		}
		stock, ok := Release(p, line)
		if !ok {
			m.log().Warn("restock skipped: size no longer exists",
				zap.String("order_id", o.ID),
				zap.String("product_id", line.ProductID),
				zap.String("size", line.Size))
			continue
		}
		p.Sizes[p.SizeIndex(line.Size)].Stock = stock
		if err := m.Catalog.UpdateStock(ctx, line.ProductID, line.Size, stock); err != nil {
			return fmt.Errorf("restock %s/%s: %w", line.ProductID, line.Size, err)
		}
	}
	return nil
}

func (m *Manager) product(ctx context.Context, snap map[string]*catalog.Product, id string) (*catalog.Product, error) {
	if p, ok := snap[id]; ok {
		return p, nil
	}
	p, err := m.Catalog.Get(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	snap[id] = p
	return p, nil
}

func (m *Manager) publish(ctx context.Context, p Publisher, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    m.now(),
		Producer:      m.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
