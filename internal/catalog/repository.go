package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktrail/stocktrail/internal/shared"
)

// Repository persists catalog master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListStores returns all stores ordered by code.
func (r *Repository) ListStores(ctx context.Context) ([]Store, error) {
	if r == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, created_at FROM stores ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list stores: %w", err)
	}
	defer rows.Close()
	stores := []Store{}
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan store: %w", err)
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: store rows: %w", err)
	}
	return stores, nil
}

// ListProducts returns products matching the filters.
func (r *Repository) ListProducts(ctx context.Context, filters ListFilters) ([]Product, error) {
	if r == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	query := `SELECT id, sku, name, price, is_active, created_at, updated_at FROM products WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		query += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}
	query += ` ORDER BY name ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: product rows: %w", err)
	}
	return products, nil
}

// GetProduct returns one product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	if r == nil {
		return Product{}, errors.New("catalog repository not initialised")
	}
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, price, is_active, created_at, updated_at FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return p, nil
}

// ProvisionStock creates the (store, product) stock pairing with an initial
// quantity. Provisioning happens once, outside the transaction engine; an
// existing pairing is left untouched.
func (r *Repository) ProvisionStock(ctx context.Context, storeID, productID, quantity int64) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	if quantity < 0 {
		return errors.New("catalog: initial quantity must be >= 0")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO stock_records (store_id, product_id, quantity, last_updated)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (store_id, product_id) DO NOTHING`, storeID, productID, quantity)
	if err != nil {
		return fmt.Errorf("catalog: provision stock: %w", err)
	}
	return nil
}
