package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepo struct{ DB *pgxpool.Pool }

var _ orders.Store = (*OrderRepo)(nil)

func (r *OrderRepo) tx() *TxManager { return &TxManager{DB: r.DB} }

// Insert writes the order and its items. Called outside a transaction it
// opens its own so the two tables stay consistent.
func (r *OrderRepo) Insert(ctx context.Context, o *orders.Order) error {
	return r.tx().WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.DB)
		if _, err := q.Exec(ctx, `
			INSERT INTO orders(id, customer, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, o.Customer, string(o.Status), o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return err
		}
		for i, it := range o.Items {
			if _, err := q.Exec(ctx, `
				INSERT INTO order_items(order_id, position, product_id, size, quantity)
				VALUES ($1, $2, $3, $4, $5)`,
				o.ID, i, it.ProductID, it.Size, it.Quantity,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	if uuid.Validate(orderID) != nil {
		return nil, orders.ErrOrderNotFound
	}
	q := conn(ctx, r.DB)
	var (
		o      orders.Order
		status string
	)
	err := q.QueryRow(ctx, `SELECT id, customer, status, created_at, updated_at
	                        FROM orders WHERE id=$1`+forUpdate(ctx), orderID).
		Scan(&o.ID, &o.Customer, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)

	rows, err := q.Query(ctx, `SELECT product_id, size, quantity FROM order_items
	                           WHERE order_id=$1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.Line
		if err := rows.Scan(&it.ProductID, &it.Size, &it.Quantity); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID string, status orders.Status, at time.Time) error {
	ct, err := conn(ctx, r.DB).Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, orderID, string(status), at)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

// List returns every order, newest first.
func (r *OrderRepo) List(ctx context.Context) ([]orders.Order, error) {
	q := conn(ctx, r.DB)
	rows, err := q.Query(ctx, `SELECT id, customer, status, created_at, updated_at
	                           FROM orders ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	out := []orders.Order{}
	index := map[string]int{}
	for rows.Next() {
		var (
			o      orders.Order
			status string
		)
		if err := rows.Scan(&o.ID, &o.Customer, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		o.Status = orders.Status(status)
		index[o.ID] = len(out)
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	irows, err := q.Query(ctx, `SELECT order_id, product_id, size, quantity
	                            FROM order_items ORDER BY order_id, position`)
	if err != nil {
		return nil, err
	}
	defer irows.Close()
	for irows.Next() {
		var (
			oid string
			it  orders.Line
		)
		if err := irows.Scan(&oid, &it.ProductID, &it.Size, &it.Quantity); err != nil {
			return nil, err
		}
		if i, ok := index[oid]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	return out, irows.Err()
}

// Delete removes an order without touching stock. Administrative override.
func (r *OrderRepo) Delete(ctx context.Context, orderID string) error {
	if uuid.Validate(orderID) != nil {
		return orders.ErrOrderNotFound
	}
	ct, err := conn(ctx, r.DB).Exec(ctx, `DELETE FROM orders WHERE id=$1`, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}
