package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type CatalogRepo struct{ DB *pgxpool.Pool }

var _ orders.Catalog = (*CatalogRepo)(nil)

const productColumns = `id, name, category, description, image_url, price::text, discount_price::text, is_new_arrival, created_at, updated_at`

func (r *CatalogRepo) tx() *TxManager { return &TxManager{DB: r.DB} }

func scanProduct(row pgx.Row) (*catalog.Product, error) {
	var (
		p        catalog.Product
		price    string
		discount *string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.ImageURL,
		&price, &discount, &p.IsNewArrival, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("price of %s: %w", p.ID, err)
	}
	p.Price = d
	if discount != nil {
		dp, err := decimal.NewFromString(*discount)
		if err != nil {
			return nil, fmt.Errorf("discount price of %s: %w", p.ID, err)
		}
		p.DiscountPrice = &dp
	}
	return &p, nil
}

func discountArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// Get loads one product with its sizes. Inside a transaction the product
// and size rows stay locked until commit.
func (r *CatalogRepo) Get(ctx context.Context, productID string) (*catalog.Product, error) {
	if uuid.Validate(productID) != nil {
		return nil, catalog.ErrNotFound
	}
	q := conn(ctx, r.DB)
	p, err := scanProduct(q.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1`+forUpdate(ctx), productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT size, stock FROM product_sizes
	                           WHERE product_id=$1 ORDER BY position`+forUpdate(ctx), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s catalog.SizeStock
		if err := rows.Scan(&s.Size, &s.Stock); err != nil {
			return nil, err
		}
		p.Sizes = append(p.Sizes, s)
	}
	return p, rows.Err()
}

func (r *CatalogRepo) UpdateStock(ctx context.Context, productID, size string, stock int) error {
	q := conn(ctx, r.DB)
	ct, err := q.Exec(ctx, `UPDATE product_sizes SET stock=$3 WHERE product_id=$1 AND size=$2`,
		productID, size, stock)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s size %s", catalog.ErrNotFound, productID, size)
	}
	_, err = q.Exec(ctx, `UPDATE products SET updated_at=NOW() WHERE id=$1`, productID)
	return err
}

// List returns products matching f, ordered by name.
func (r *CatalogRepo) List(ctx context.Context, f catalog.Filter) ([]catalog.Product, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Search != "" {
		where = append(where, "name ILIKE "+arg("%"+escapeLike(f.Search)+"%"))
	}
	if f.HasCategory() {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.NewArrivals {
		where = append(where, "is_new_arrival")
	}
	if f.DiscountOnly {
		where = append(where, "discount_price IS NOT NULL")
	}
	sql := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY name, id`

	q := conn(ctx, r.DB)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out := []catalog.Product{}
	index := map[string]int{}
	ids := []string{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[p.ID] = len(out)
		ids = append(ids, p.ID)
		out = append(out, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	srows, err := q.Query(ctx, `SELECT product_id, size, stock FROM product_sizes
	                            WHERE product_id = ANY($1::uuid[]) ORDER BY product_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var (
			pid string
			s   catalog.SizeStock
		)
		if err := srows.Scan(&pid, &s.Size, &s.Stock); err != nil {
			return nil, err
		}
		i := index[pid]
		out[i].Sizes = append(out[i].Sizes, s)
	}
	return out, srows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func insertSizes(ctx context.Context, q querier, productID string, sizes []catalog.SizeStock) error {
	for i, s := range sizes {
		if _, err := q.Exec(ctx, `INSERT INTO product_sizes(product_id, position, size, stock)
		                          VALUES ($1,$2,$3,$4)`, productID, i, s.Size, s.Stock); err != nil {
			return err
		}
	}
	return nil
}

// Create assigns an id and stores the product with its sizes.
func (r *CatalogRepo) Create(ctx context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = uuid.NewString()
	return r.tx().WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.DB)
		err := q.QueryRow(ctx, `
			INSERT INTO products(id, name, category, description, image_url, price, discount_price, is_new_arrival)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING created_at, updated_at`,
			p.ID, p.Name, p.Category, p.Description, p.ImageURL, p.Price.String(), discountArg(p.DiscountPrice), p.IsNewArrival,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}
		return insertSizes(ctx, q, p.ID, p.Sizes)
	})
}

// Update replaces every mutable field, sizes included. The product row is
// locked first so this never interleaves with an order transaction on it.
func (r *CatalogRepo) Update(ctx context.Context, p *catalog.Product) error {
	if uuid.Validate(p.ID) != nil {
		return catalog.ErrNotFound
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return r.tx().WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.DB)
		var id string
		err := q.QueryRow(ctx, `SELECT id FROM products WHERE id=$1 FOR UPDATE`, p.ID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrNotFound
		}
		if err != nil {
			return err
		}
		err = q.QueryRow(ctx, `
			UPDATE products SET name=$2, category=$3, description=$4, image_url=$5,
			       price=$6, discount_price=$7, is_new_arrival=$8, updated_at=NOW()
			WHERE id=$1
			RETURNING created_at, updated_at`,
			p.ID, p.Name, p.Category, p.Description, p.ImageURL, p.Price.String(), discountArg(p.DiscountPrice), p.IsNewArrival,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM product_sizes WHERE product_id=$1`, p.ID); err != nil {
			return err
		}
		return insertSizes(ctx, q, p.ID, p.Sizes)
	})
}

func (r *CatalogRepo) Delete(ctx context.Context, productID string) error {
	if uuid.Validate(productID) != nil {
		return catalog.ErrNotFound
	}
	ct, err := conn(ctx, r.DB).Exec(ctx, `DELETE FROM products WHERE id=$1`, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
