package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/redis/go-redis/v9"
)

// OrderCache keeps recently read or written orders for the admin detail view.
// Postgres stays the source of truth; every method is best effort.
type OrderCache struct {
	R redis.Cmdable
}

func (c *OrderCache) Get(ctx context.Context, orderID string) (*orders.Order, bool) {
	s, err := c.R.Get(ctx, fmt.Sprintf(KeyOrder, orderID)).Result()
	if err != nil {
		return nil, false
	}
	var o orders.Order
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return nil, false
	}
	return &o, true
}

func (c *OrderCache) Put(ctx context.Context, o *orders.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, fmt.Sprintf(KeyOrder, o.ID), b, TTLOrderCache).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, orderID string) error {
	return c.R.Del(ctx, fmt.Sprintf(KeyOrder, orderID)).Err()
}

// IdemPending marks a key whose order is still being placed.
const IdemPending = "pending"

// Idempotency maps client supplied keys to the order they created.
type Idempotency struct {
	R redis.Cmdable
}

// Begin claims key. When another request already holds it, started is false
// and orderID is the stored order id, or IdemPending while that request runs.
func (i *Idempotency) Begin(ctx context.Context, key string) (orderID string, started bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, key)
	ok, err := MarkOnce(ctx, i.R, k, IdemPending, TTLIdempotency)
	if err != nil || ok {
		return "", ok, err
	}
	orderID, err = i.R.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return i.Begin(ctx, key)
	}
	return orderID, false, err
}

func (i *Idempotency) Complete(ctx context.Context, key, orderID string) error {
	return i.R.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, TTLIdempotency).Err()
}

// Release forgets key, used when the order it guarded was never created.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.R.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Err()
}
