package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
)

// memStore backs Catalog, Store and TxManager in tests. A transaction holds
// the write lock for its whole body and restores a snapshot on error, which
// gives serializable behaviour.
type memStore struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	orders   map[string]Order

	stockWrites int
}

type txKey struct{}

func newMemStore(products ...catalog.Product) *memStore {
	s := &memStore{products: map[string]catalog.Product{}, orders: map[string]Order{}}
	for _, p := range products {
		s.products[p.ID] = cloneProduct(p)
	}
	return s
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Sizes = append([]catalog.SizeStock(nil), p.Sizes...)
	return p
}

func cloneOrder(o Order) Order {
	o.Items = append([]Line(nil), o.Items...)
	return o
}

func (s *memStore) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make(map[string]catalog.Product, len(s.products))
	for k, v := range s.products {
		products[k] = cloneProduct(v)
	}
	orders := make(map[string]Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = cloneOrder(v)
	}
	writes := s.stockWrites

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in tx: %v", r)
		}
		if err != nil {
			s.products, s.orders, s.stockWrites = products, orders, writes
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *memStore) Get(ctx context.Context, id string) (*catalog.Product, error) {
	defer s.lock(ctx)()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := cloneProduct(p)
	return &cp, nil
}

func (s *memStore) UpdateStock(ctx context.Context, id, size string, stock int) error {
	defer s.lock(ctx)()
	p, ok := s.products[id]
	if !ok {
		return catalog.ErrNotFound
	}
	i := p.SizeIndex(size)
	if i < 0 {
		return fmt.Errorf("size %q missing", size)
	}
	if stock < 0 {
		return fmt.Errorf("stock check violated for %s/%s", id, size)
	}
	p.Sizes[i].Stock = stock
	s.products[id] = p
	s.stockWrites++
	return nil
}

func (s *memStore) stock(id, size string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	return p.Sizes[p.SizeIndex(size)].Stock
}

func (s *memStore) deleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// orderStore adapts memStore to Store; the method names overlap with Catalog.
type orderStore struct{ *memStore }

func (o orderStore) Insert(ctx context.Context, ord *Order) error {
	defer o.lock(ctx)()
	if _, dup := o.orders[ord.ID]; dup {
		return fmt.Errorf("duplicate order %s", ord.ID)
	}
	o.orders[ord.ID] = cloneOrder(*ord)
	return nil
}

func (o orderStore) Get(ctx context.Context, id string) (*Order, error) {
	defer o.lock(ctx)()
	ord, ok := o.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := cloneOrder(ord)
	return &cp, nil
}

func (o orderStore) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error {
	defer o.lock(ctx)()
	ord, ok := o.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	ord.Status = status
	ord.UpdatedAt = at
	o.orders[id] = ord
	return nil
}
