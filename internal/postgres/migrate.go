package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id             UUID PRIMARY KEY,
		name           TEXT NOT NULL,
		category       TEXT NOT NULL DEFAULT '',
		description    TEXT NOT NULL DEFAULT '',
		image_url      TEXT NOT NULL DEFAULT '',
		price          NUMERIC(12,2) NOT NULL DEFAULT 0,
		discount_price NUMERIC(12,2),
		is_new_arrival BOOLEAN NOT NULL DEFAULT false,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category)`,

	`CREATE TABLE IF NOT EXISTS product_sizes (
		product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		size       TEXT NOT NULL,
		stock      INTEGER NOT NULL CHECK (stock >= 0),
		PRIMARY KEY (product_id, size)
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id         UUID PRIMARY KEY,
		customer   JSONB NOT NULL,
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)`,

	// product_id is not a foreign key: orders outlive catalog entries
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		product_id UUID NOT NULL,
		size       TEXT NOT NULL,
		quantity   INTEGER NOT NULL CHECK (quantity > 0),
		PRIMARY KEY (order_id, position)
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		photo_url  TEXT NOT NULL DEFAULT '',
		role       TEXT NOT NULL DEFAULT 'customer' CHECK (role IN ('admin', 'customer')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login TIMESTAMPTZ
	)`,
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := db.Exec(ctx, m); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
